package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// WebhookEvent is the audit record of one gateway delivery, kept whether or
// not its signature verified.
type WebhookEvent struct {
	ID             int64
	Provider       string
	OrderCode      int64
	PayloadHash    string
	PayloadJSON    string
	SignatureValid bool
	RemoteAddr     string
	ProcessedAt    *time.Time
	ProcessError   string
	CreatedAt      time.Time
}

// HashPayload returns the dedup key of a raw webhook body.
func HashPayload(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
