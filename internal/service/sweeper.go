package service

import (
	"context"
	"log/slog"
	"time"
)

// ExpiryStore is the part of the subscription store the sweeper needs.
type ExpiryStore interface {
	// ListExpired returns IDs of active subscriptions whose end date is at or
	// before now.
	ListExpired(ctx context.Context, now time.Time) ([]string, error)
	// Deactivate clears is_active if the subscription is still active and
	// expired at now. It reports whether a row changed.
	Deactivate(ctx context.Context, id string, now time.Time) (bool, error)
}

// SweepResult summarizes one pass of the sweeper.
type SweepResult struct {
	Candidates  int `json:"candidates"`
	Deactivated int `json:"deactivated"`
	Failed      int `json:"failed"`
}

// Sweeper deactivates subscriptions whose paid term has ended.
type Sweeper struct {
	store    ExpiryStore
	interval time.Duration
	log      *slog.Logger
	now      func() time.Time
}

// NewSweeper creates a sweeper that runs every interval once started.
func NewSweeper(store ExpiryStore, interval time.Duration, log *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		log:      log.With(slog.String("component", "sweeper")),
		now:      time.Now,
	}
}

// Start begins the sweep loop in a background goroutine.
func (s *Sweeper) Start(ctx context.Context) {
	// Start immediately, then ticker
	go func() {
		s.runOnce(ctx)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()
}

func (s *Sweeper) runOnce(ctx context.Context) {
	if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
		s.log.ErrorContext(ctx, "sweep failed", slog.Any("error", err))
	}
}

// Sweep deactivates every expired subscription. A failure on one record is
// logged and does not stop the others.
func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	now := s.now()
	ids, err := s.store.ListExpired(ctx, now)
	if err != nil {
		return SweepResult{}, err
	}

	res := SweepResult{Candidates: len(ids)}
	for _, id := range ids {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		changed, err := s.store.Deactivate(ctx, id, now)
		if err != nil {
			res.Failed++
			s.log.ErrorContext(ctx, "failed to deactivate subscription", slog.String("subscription_id", id), slog.Any("error", err))
			continue
		}
		if changed {
			res.Deactivated++
		}
	}

	s.log.InfoContext(ctx, "sweep finished",
		slog.Int("candidates", res.Candidates),
		slog.Int("deactivated", res.Deactivated),
		slog.Int("failed", res.Failed),
	)
	return res, nil
}
