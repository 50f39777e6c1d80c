// Package qrcode renders payment QR payloads as PNG images.
package qrcode

import (
	"errors"
	"strings"

	skipqrcode "github.com/skip2/go-qrcode"
)

var (
	ErrEmptyContent   = errors.New("qr content cannot be empty")
	ErrGenerateFailed = errors.New("failed to generate QR code")
)

const (
	defaultSize = 256
	maxSize     = 1024
)

// PNG encodes content at size pixels square. Sizes outside 1..1024 fall back
// to 256.
func PNG(content string, size int) ([]byte, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	if size <= 0 || size > maxSize {
		size = defaultSize
	}
	png, err := skipqrcode.Encode(content, skipqrcode.Medium, size)
	if err != nil {
		return nil, errors.Join(ErrGenerateFailed, err)
	}
	return png, nil
}
