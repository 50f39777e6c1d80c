package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrInvalidInput is returned when a canonical string or key cannot be signed.
var ErrInvalidInput = errors.New("invalid signature input")

// ErrInvalidSignature is returned when a provided signature does not match.
var ErrInvalidSignature = errors.New("invalid signature")

// Field is one key=value pair of a canonical signing string.
type Field struct {
	Key   string
	Value string
}

// CanonicalString joins fields as key=value pairs separated by '&', in the
// order given. The gateway recomputes the same string, so the order is part
// of the wire contract.
func CanonicalString(fields ...Field) (string, error) {
	var b strings.Builder
	for i, f := range fields {
		if f.Key == "" {
			return "", fmt.Errorf("%w: empty field name at position %d", ErrInvalidInput, i)
		}
		if !utf8.ValidString(f.Key) || !utf8.ValidString(f.Value) {
			return "", fmt.Errorf("%w: field %q is not valid UTF-8", ErrInvalidInput, f.Key)
		}
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(f.Key)
		b.WriteByte('=')
		b.WriteString(f.Value)
	}
	return b.String(), nil
}

// Sign returns the lowercase hex HMAC-SHA256 of data keyed by secretKey.
func Sign(data, secretKey string) (string, error) {
	if secretKey == "" {
		return "", fmt.Errorf("%w: empty secret key", ErrInvalidInput)
	}
	if !utf8.ValidString(data) {
		return "", fmt.Errorf("%w: data is not valid UTF-8", ErrInvalidInput)
	}

	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify recomputes the signature of data and compares it with the provided
// one in constant time. Hex case in the provided signature is ignored.
func Verify(data, signature, secretKey string) (bool, error) {
	expected, err := Sign(data, secretKey)
	if err != nil {
		return false, err
	}
	provided := strings.ToLower(strings.TrimSpace(signature))
	return hmac.Equal([]byte(expected), []byte(provided)), nil
}
