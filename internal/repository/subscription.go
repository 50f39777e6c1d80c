package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/aiagenz/billing/internal/domain"
	"github.com/jackc/pgx/v5"
)

const subscriptionColumns = `id, user_id, package_id, total_price, transaction_id, order_code, payment_method,
	status, checkout_url, qr_code, paid_at, start_date, end_date, is_active,
	snapshot_package_json, snapshot_limitations_json, created_at, updated_at`

const orderCodeConstraint = "subscriptions_order_code_key"

type SubscriptionRepository struct {
	db DBTX
}

func NewSubscriptionRepository(db DBTX) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (r *SubscriptionRepository) Create(ctx context.Context, sub *domain.Subscription) error {
	query := `
		INSERT INTO subscriptions (` + subscriptionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	_, err := r.db.Exec(ctx, query,
		sub.ID, sub.UserID, sub.PackageID, sub.TotalPrice, sub.TransactionID, sub.OrderCode, sub.PaymentMethod,
		string(sub.Status), sub.CheckoutURL, sub.QRCode, sub.PaidAt, sub.StartDate, sub.EndDate, sub.IsActive,
		sub.SnapshotPackageJSON, sub.SnapshotLimitationsJSON, sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, orderCodeConstraint) {
			return fmt.Errorf("order code %d: %w", sub.OrderCode, domain.ErrOrderCodeConflict)
		}
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

func (r *SubscriptionRepository) FindByID(ctx context.Context, id string) (*domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`
	return r.findOne(ctx, query, id)
}

func (r *SubscriptionRepository) FindByOrderCode(ctx context.Context, orderCode int64) (*domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE order_code = $1`
	return r.findOne(ctx, query, orderCode)
}

// FindCurrentByUser returns the paid, active subscription with the latest end
// date that has not yet ended at now.
func (r *SubscriptionRepository) FindCurrentByUser(ctx context.Context, userID string, now time.Time) (*domain.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE user_id = $1 AND status = 'PAID' AND is_active AND end_date > $2
		ORDER BY end_date DESC LIMIT 1
	`
	return r.findOne(ctx, query, userID, now)
}

func (r *SubscriptionRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*domain.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return subs, nil
}

func (r *SubscriptionRepository) ConfirmPayment(ctx context.Context, c domain.PaymentConfirmation) (bool, error) {
	query := `
		UPDATE subscriptions
		SET status = 'PAID', transaction_id = $2, payment_method = $3, paid_at = $4,
			start_date = $5, end_date = $6, is_active = TRUE, updated_at = $7
		WHERE order_code = $1 AND status = 'PENDING'
	`
	tag, err := r.db.Exec(ctx, query, c.OrderCode, c.TransactionID, c.PaymentMethod, c.PaidAt, c.StartDate, c.EndDate, c.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to confirm payment: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *SubscriptionRepository) UpdateStatus(ctx context.Context, orderCode int64, from, to domain.SubscriptionStatus, now time.Time) (bool, error) {
	query := `UPDATE subscriptions SET status = $3, updated_at = $4 WHERE order_code = $1 AND status = $2`
	tag, err := r.db.Exec(ctx, query, orderCode, string(from), string(to), now)
	if err != nil {
		return false, fmt.Errorf("failed to update subscription status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListExpired returns active subscriptions whose end date is at or before now.
func (r *SubscriptionRepository) ListExpired(ctx context.Context, now time.Time) ([]string, error) {
	query := `
		SELECT id FROM subscriptions
		WHERE is_active AND end_date IS NOT NULL AND end_date <= $1
		ORDER BY end_date
	`
	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired subscriptions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan subscription id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list expired subscriptions: %w", err)
	}
	return ids, nil
}

// Deactivate rechecks expiry in the update so a renewal racing the sweep is
// left alone.
func (r *SubscriptionRepository) Deactivate(ctx context.Context, id string, now time.Time) (bool, error) {
	query := `
		UPDATE subscriptions SET is_active = FALSE, updated_at = $2
		WHERE id = $1 AND is_active AND end_date <= $2
	`
	tag, err := r.db.Exec(ctx, query, id, now)
	if err != nil {
		return false, fmt.Errorf("failed to deactivate subscription: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *SubscriptionRepository) findOne(ctx context.Context, query string, args ...any) (*domain.Subscription, error) {
	sub, err := scanSubscription(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find subscription: %w", err)
	}
	return sub, nil
}

func scanSubscription(row pgx.Row) (*domain.Subscription, error) {
	var sub domain.Subscription
	var status string
	err := row.Scan(
		&sub.ID, &sub.UserID, &sub.PackageID, &sub.TotalPrice, &sub.TransactionID, &sub.OrderCode, &sub.PaymentMethod,
		&status, &sub.CheckoutURL, &sub.QRCode, &sub.PaidAt, &sub.StartDate, &sub.EndDate, &sub.IsActive,
		&sub.SnapshotPackageJSON, &sub.SnapshotLimitationsJSON, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	sub.Status = domain.SubscriptionStatus(status)
	return &sub, nil
}

// Stats counts subscriptions per status along with the currently active ones.
func (r *SubscriptionRepository) Stats(ctx context.Context) (*domain.SubscriptionStats, error) {
	rows, err := r.db.Query(ctx, `
		SELECT status, COUNT(*), COUNT(*) FILTER (WHERE is_active AND status = 'PAID')
		FROM subscriptions GROUP BY status
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count subscriptions: %w", err)
	}
	defer rows.Close()

	stats := &domain.SubscriptionStats{ByStatus: make(map[domain.SubscriptionStatus]int)}
	for rows.Next() {
		var status string
		var total, active int
		if err := rows.Scan(&status, &total, &active); err != nil {
			return nil, fmt.Errorf("failed to scan subscription counts: %w", err)
		}
		stats.ByStatus[domain.SubscriptionStatus(status)] = total
		stats.Active += active
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to count subscriptions: %w", err)
	}
	return stats, nil
}
