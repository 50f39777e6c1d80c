package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/aiagenz/billing/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return mock
}

func TestSubscriptionRepository_CreateOrderCodeConflict(t *testing.T) {
	mock := newMock(t)
	repo := NewSubscriptionRepository(mock)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO subscriptions")).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: orderCodeConstraint})

	err := repo.Create(context.Background(), &domain.Subscription{ID: "s1", OrderCode: 42, Status: domain.StatusPending})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrOrderCodeConflict)
}

func TestSubscriptionRepository_CreateOtherError(t *testing.T) {
	mock := newMock(t)
	repo := NewSubscriptionRepository(mock)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO subscriptions")).
		WillReturnError(errors.New("connection reset"))

	err := repo.Create(context.Background(), &domain.Subscription{ID: "s1", OrderCode: 42})
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrOrderCodeConflict)
}

func TestSubscriptionRepository_FindByOrderCodeMissing(t *testing.T) {
	mock := newMock(t)
	repo := NewSubscriptionRepository(mock)

	mock.ExpectQuery(regexp.QuoteMeta("FROM subscriptions WHERE order_code = $1")).
		WithArgs(int64(42)).
		WillReturnError(pgx.ErrNoRows)

	sub, err := repo.FindByOrderCode(context.Background(), 42)
	require.NoError(t, err)
	assert.Nil(t, sub)
}

func TestSubscriptionRepository_ConfirmPayment(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	c := domain.PaymentConfirmation{
		OrderCode:     42,
		TransactionID: "TXN1",
		PaymentMethod: "gateway",
		PaidAt:        now,
		StartDate:     now,
		EndDate:       now.AddDate(0, 1, 0),
		UpdatedAt:     now,
	}

	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{name: "pending row updated", affected: 1, want: true},
		{name: "already settled", affected: 0, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			repo := NewSubscriptionRepository(mock)

			mock.ExpectExec(regexp.QuoteMeta("WHERE order_code = $1 AND status = 'PENDING'")).
				WithArgs(c.OrderCode, c.TransactionID, c.PaymentMethod, c.PaidAt, c.StartDate, c.EndDate, c.UpdatedAt).
				WillReturnResult(pgxmock.NewResult("UPDATE", tt.affected))

			applied, err := repo.ConfirmPayment(context.Background(), c)
			require.NoError(t, err)
			assert.Equal(t, tt.want, applied)
		})
	}
}

func TestSubscriptionRepository_UpdateStatus(t *testing.T) {
	mock := newMock(t)
	repo := NewSubscriptionRepository(mock)
	now := time.Now()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE subscriptions SET status = $3")).
		WithArgs(int64(42), "PENDING", "CANCELLED", now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	applied, err := repo.UpdateStatus(context.Background(), 42, domain.StatusPending, domain.StatusCancelled, now)
	require.NoError(t, err)
	assert.True(t, applied)
}

func TestSubscriptionRepository_ListExpired(t *testing.T) {
	mock := newMock(t)
	repo := NewSubscriptionRepository(mock)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("end_date <= $1")).
		WithArgs(now).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("a").AddRow("b"))

	ids, err := repo.ListExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestSubscriptionRepository_Deactivate(t *testing.T) {
	mock := newMock(t)
	repo := NewSubscriptionRepository(mock)
	now := time.Now()

	mock.ExpectExec(regexp.QuoteMeta("SET is_active = FALSE")).
		WithArgs("a", now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	changed, err := repo.Deactivate(context.Background(), "a", now)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestSubscriptionRepository_Stats(t *testing.T) {
	mock := newMock(t)
	repo := NewSubscriptionRepository(mock)

	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY status")).
		WillReturnRows(pgxmock.NewRows([]string{"status", "count", "active"}).
			AddRow("PAID", 3, 2).
			AddRow("PENDING", 5, 0))

	stats, err := repo.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.ByStatus[domain.StatusPaid])
	assert.Equal(t, 5, stats.ByStatus[domain.StatusPending])
	assert.Equal(t, 2, stats.Active)
}

func TestPackageRepository_FindByIDMissing(t *testing.T) {
	mock := newMock(t)
	repo := NewPackageRepository(mock)

	mock.ExpectQuery(regexp.QuoteMeta("FROM packages WHERE id = $1")).
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	pkg, err := repo.FindByID(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, pkg)
}

func TestWebhookEventRepository_Record(t *testing.T) {
	t.Run("new event", func(t *testing.T) {
		mock := newMock(t)
		repo := NewWebhookEventRepository(mock)

		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO webhook_events")).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))

		ev := &domain.WebhookEvent{Provider: "gateway", OrderCode: 42, PayloadHash: "h"}
		created, err := repo.Record(context.Background(), ev)
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, int64(7), ev.ID)
		assert.False(t, ev.CreatedAt.IsZero())
	})

	t.Run("duplicate body", func(t *testing.T) {
		mock := newMock(t)
		repo := NewWebhookEventRepository(mock)

		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO webhook_events")).
			WillReturnError(pgx.ErrNoRows)
		mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM webhook_events")).
			WithArgs("gateway", "h").
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(3)))

		ev := &domain.WebhookEvent{Provider: "gateway", OrderCode: 42, PayloadHash: "h"}
		created, err := repo.Record(context.Background(), ev)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, int64(3), ev.ID)
	})
}

func TestWebhookEventRepository_MarkProcessed(t *testing.T) {
	mock := newMock(t)
	repo := NewWebhookEventRepository(mock)
	at := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return at }

	mock.ExpectExec(regexp.QuoteMeta("UPDATE webhook_events SET processed_at")).
		WithArgs(int64(7), at, "").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.MarkProcessed(context.Background(), 7, ""))
}

func TestIsUniqueViolation(t *testing.T) {
	err := &pgconn.PgError{Code: "23505", ConstraintName: "other"}
	assert.True(t, isUniqueViolation(err, ""))
	assert.False(t, isUniqueViolation(err, orderCodeConstraint))
	assert.False(t, isUniqueViolation(errors.New("boom"), ""))
}
