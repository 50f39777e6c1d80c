package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/aiagenz/billing/internal/domain"
)

// WebhookEventRepository keeps the audit trail of gateway deliveries.
type WebhookEventRepository struct {
	db  DBTX
	now func() time.Time
}

func NewWebhookEventRepository(db DBTX) *WebhookEventRepository {
	return &WebhookEventRepository{db: db, now: time.Now}
}

// Record stores ev and sets its ID. It reports false when an identical body
// from the same provider was already recorded, in which case ev.ID is the
// existing row's.
func (r *WebhookEventRepository) Record(ctx context.Context, ev *domain.WebhookEvent) (bool, error) {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = r.now()
	}
	query := `
		INSERT INTO webhook_events (provider, order_code, payload_hash, payload_json, signature_valid, remote_addr, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (provider, payload_hash) DO NOTHING
		RETURNING id
	`
	err := r.db.QueryRow(ctx, query,
		ev.Provider, ev.OrderCode, ev.PayloadHash, ev.PayloadJSON, ev.SignatureValid, ev.RemoteAddr, ev.CreatedAt,
	).Scan(&ev.ID)
	if err == nil {
		return true, nil
	}
	if !isNotFound(err) {
		return false, fmt.Errorf("failed to record webhook event: %w", err)
	}

	err = r.db.QueryRow(ctx,
		`SELECT id FROM webhook_events WHERE provider = $1 AND payload_hash = $2`,
		ev.Provider, ev.PayloadHash,
	).Scan(&ev.ID)
	if err != nil {
		return false, fmt.Errorf("failed to find webhook event: %w", err)
	}
	return false, nil
}

// MarkProcessed stamps the event with the outcome of handling it.
func (r *WebhookEventRepository) MarkProcessed(ctx context.Context, id int64, processErr string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE webhook_events SET processed_at = $2, process_error = $3 WHERE id = $1`,
		id, r.now(), processErr,
	)
	if err != nil {
		return fmt.Errorf("failed to mark webhook event: %w", err)
	}
	return nil
}
