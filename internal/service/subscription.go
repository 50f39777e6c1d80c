package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aiagenz/billing/internal/domain"
	"github.com/aiagenz/billing/internal/lock"
	"github.com/aiagenz/billing/pkg/payment"
)

// maxDescriptionLen is the longest payment description the gateway accepts.
const maxDescriptionLen = 25

// SubscriptionStore persists subscriptions. Finders return nil, nil when
// nothing matches.
type SubscriptionStore interface {
	Create(ctx context.Context, sub *domain.Subscription) error
	FindByID(ctx context.Context, id string) (*domain.Subscription, error)
	FindByOrderCode(ctx context.Context, orderCode int64) (*domain.Subscription, error)
	FindCurrentByUser(ctx context.Context, userID string, now time.Time) (*domain.Subscription, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Subscription, error)
	// ConfirmPayment marks a PENDING subscription PAID. It reports false when
	// the subscription was no longer PENDING.
	ConfirmPayment(ctx context.Context, c domain.PaymentConfirmation) (bool, error)
	// UpdateStatus moves a subscription from one status to another. It
	// reports false when the current status is not from.
	UpdateStatus(ctx context.Context, orderCode int64, from, to domain.SubscriptionStatus, now time.Time) (bool, error)
}

// PackageStore reads package definitions.
type PackageStore interface {
	FindByID(ctx context.Context, id string) (*domain.Package, error)
}

// Option configures a SubscriptionService.
type Option func(*SubscriptionService)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *SubscriptionService) { s.now = now }
}

// WithTimeLocation sets the zone for gateway timestamps that carry no offset.
func WithTimeLocation(loc *time.Location) Option {
	return func(s *SubscriptionService) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// SubscriptionService owns the subscription state machine.
type SubscriptionService struct {
	subs     SubscriptionStore
	packages PackageStore
	gateway  payment.Gateway
	locker   lock.Locker
	log      *slog.Logger
	now      func() time.Time
	loc      *time.Location
}

func NewSubscriptionService(subs SubscriptionStore, packages PackageStore, gateway payment.Gateway, locker lock.Locker, log *slog.Logger, opts ...Option) *SubscriptionService {
	s := &SubscriptionService{
		subs:     subs,
		packages: packages,
		gateway:  gateway,
		locker:   locker,
		log:      log.With(slog.String("component", "subscription")),
		now:      time.Now,
		loc:      time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSubscription snapshots the package, requests a payment link and
// records a PENDING subscription. Nothing is stored unless the gateway
// returned a link.
func (s *SubscriptionService) CreateSubscription(ctx context.Context, userID string, req domain.CreateSubscriptionRequest) (*domain.CheckoutResponse, error) {
	pkg, err := s.packages.FindByID(ctx, req.PackageID)
	if err != nil {
		return nil, domain.ErrInternal("failed to load package", err)
	}
	if pkg == nil {
		return nil, domain.ErrNotFound("package not found", domain.ErrPackageNotFound)
	}

	now := s.now()
	sub := &domain.Subscription{
		ID:         domain.NewSubscriptionID(),
		UserID:     userID,
		PackageID:  pkg.ID,
		TotalPrice: pkg.Price,
		Status:     domain.StatusPending,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := CaptureSnapshot(sub, pkg); err != nil {
		return nil, domain.ErrInternal("failed to snapshot package", err)
	}

	link, err := s.gateway.CreatePaymentLink(ctx, sub.TotalPrice, paymentDescription(pkg.Name), req.ReturnURL, req.CancelURL)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, domain.ErrCanceled("request cancelled before payment link was created", ctxErr)
		}
		s.log.ErrorContext(ctx, "payment link request failed",
			slog.String("user_id", userID),
			slog.String("package_id", pkg.ID),
			slog.Any("error", err),
		)
		return nil, domain.ErrBadGateway("failed to create payment link", err)
	}

	status, err := domain.ParseStatus(link.Status)
	if err != nil || status != domain.StatusPending {
		s.log.ErrorContext(ctx, "gateway returned unexpected link status",
			slog.Int64("order_code", link.OrderCode),
			slog.String("status", link.Status),
		)
		return nil, domain.ErrBadGateway("unexpected payment link status", payment.ErrGatewayResponseMalformed)
	}

	sub.OrderCode = link.OrderCode
	sub.Status = status
	sub.CheckoutURL = link.CheckoutURL
	sub.QRCode = link.QRCode

	// The link is live from here on and the user may pay for it even if the
	// caller goes away, so the insert must not be cancelled with ctx.
	if err := s.subs.Create(context.WithoutCancel(ctx), sub); err != nil {
		if errors.Is(err, domain.ErrOrderCodeConflict) {
			s.log.ErrorContext(ctx, "order code collision", slog.Int64("order_code", sub.OrderCode))
			return nil, domain.ErrConflict("order code already in use, retry the purchase", err)
		}
		return nil, domain.ErrInternal("failed to save subscription", err)
	}

	s.log.InfoContext(ctx, "subscription created",
		slog.String("subscription_id", sub.ID),
		slog.String("user_id", userID),
		slog.String("package_id", pkg.ID),
		slog.Int64("order_code", sub.OrderCode),
		slog.Int64("amount", sub.TotalPrice),
	)

	return &domain.CheckoutResponse{
		SubscriptionID: sub.ID,
		OrderCode:      sub.OrderCode,
		CheckoutURL:    link.CheckoutURL,
		QRCode:         link.QRCode,
		Amount:         sub.TotalPrice,
		Status:         sub.Status,
	}, nil
}

// HandleWebhook applies a verified payment notification. It reports false
// when no subscription has the order code. Replays leave the record as is.
func (s *SubscriptionService) HandleWebhook(ctx context.Context, data payment.WebhookData) (bool, error) {
	status, err := domain.ParseStatus(data.Status)
	if err != nil {
		return false, domain.ErrValidation("unknown payment status", err)
	}

	unlock, err := s.locker.Lock(ctx, strconv.FormatInt(data.OrderCode, 10))
	if err != nil {
		return false, domain.ErrInternal("failed to lock order", err)
	}
	defer unlock()

	sub, err := s.subs.FindByOrderCode(ctx, data.OrderCode)
	if err != nil {
		return false, domain.ErrInternal("failed to find subscription", err)
	}
	log := s.log.With(slog.Int64("order_code", data.OrderCode), slog.String("status", string(status)))
	if sub == nil {
		log.InfoContext(ctx, "webhook for unknown order")
		return false, nil
	}
	log = log.With(slog.String("subscription_id", sub.ID))

	if sub.Status == domain.StatusPaid && status == domain.StatusPaid {
		log.DebugContext(ctx, "duplicate payment webhook ignored")
		return true, nil
	}
	if sub.Status.Terminal() {
		log.WarnContext(ctx, "webhook for settled subscription ignored", slog.String("current_status", string(sub.Status)))
		return true, nil
	}

	now := s.now()
	var applied bool
	switch status {
	case domain.StatusPaid:
		// A paid record always carries the gateway reference.
		if strings.TrimSpace(data.Reference) == "" {
			log.WarnContext(ctx, "paid webhook without reference rejected")
			return false, domain.ErrValidation("missing transaction reference", payment.ErrInvalidInput)
		}
		paidAt, err := data.TransactionTime(s.loc)
		if err != nil {
			return false, domain.ErrValidation("invalid transaction time", err)
		}
		months, err := s.billingCycle(ctx, sub)
		if err != nil {
			return false, err
		}
		if data.Amount != sub.TotalPrice {
			log.WarnContext(ctx, "paid amount differs from subscription price",
				slog.Int64("paid", data.Amount),
				slog.Int64("price", sub.TotalPrice),
			)
		}
		method := data.PaymentMethod
		if method == "" {
			method = s.gateway.Name()
		}
		applied, err = s.subs.ConfirmPayment(ctx, domain.PaymentConfirmation{
			OrderCode:     sub.OrderCode,
			TransactionID: data.Reference,
			PaymentMethod: method,
			PaidAt:        paidAt,
			StartDate:     now,
			EndDate:       now.AddDate(0, months, 0),
			UpdatedAt:     now,
		})
		if err != nil {
			return false, domain.ErrInternal("failed to confirm payment", err)
		}
	default:
		applied, err = s.subs.UpdateStatus(ctx, sub.OrderCode, domain.StatusPending, status, now)
		if err != nil {
			return false, domain.ErrInternal("failed to update subscription status", err)
		}
	}

	if !applied {
		log.WarnContext(ctx, "subscription changed concurrently, webhook not applied")
		return true, nil
	}
	log.InfoContext(ctx, "webhook applied",
		slog.String("reference", data.Reference),
		slog.Duration("since_order", now.Sub(payment.OrderCodeTime(sub.OrderCode))),
	)
	return true, nil
}

// billingCycle returns the term length in months, preferring the snapshot so
// later package edits cannot change what was bought.
func (s *SubscriptionService) billingCycle(ctx context.Context, sub *domain.Subscription) (int, error) {
	if snap, ok := RestorePackage(sub.SnapshotPackageJSON); ok && snap.BillingCycle > 0 {
		return snap.BillingCycle, nil
	}

	s.log.WarnContext(ctx, "package snapshot unusable, falling back to live package", slog.String("subscription_id", sub.ID))
	pkg, err := s.packages.FindByID(ctx, sub.PackageID)
	if err != nil {
		return 0, domain.ErrInternal("failed to load package", err)
	}
	if pkg == nil || pkg.BillingCycle <= 0 {
		return 0, domain.ErrInternal("no billing cycle for subscription", domain.ErrPackageNotFound)
	}
	return pkg.BillingCycle, nil
}

// GetCurrentSubscription returns the subscription that currently entitles
// the user, or nil.
func (s *SubscriptionService) GetCurrentSubscription(ctx context.Context, userID string) (*domain.SubscriptionView, error) {
	now := s.now()
	sub, err := s.subs.FindCurrentByUser(ctx, userID, now)
	if err != nil {
		return nil, domain.ErrInternal("failed to find subscription", err)
	}
	if sub == nil {
		return nil, nil
	}
	return s.view(ctx, sub, now), nil
}

// ListSubscriptions returns the user's purchase history, newest first.
func (s *SubscriptionService) ListSubscriptions(ctx context.Context, userID string) ([]*domain.SubscriptionView, error) {
	subs, err := s.subs.ListByUser(ctx, userID)
	if err != nil {
		return nil, domain.ErrInternal("failed to list subscriptions", err)
	}

	now := s.now()
	views := make([]*domain.SubscriptionView, len(subs))
	for i, sub := range subs {
		views[i] = s.view(ctx, sub, now)
	}
	return views, nil
}

// GetSubscription returns one of the user's subscriptions.
func (s *SubscriptionService) GetSubscription(ctx context.Context, userID, id string) (*domain.SubscriptionView, error) {
	sub, err := s.subs.FindByID(ctx, id)
	if err != nil {
		return nil, domain.ErrInternal("failed to find subscription", err)
	}
	if sub == nil || sub.UserID != userID {
		return nil, domain.ErrNotFound("subscription not found", domain.ErrSubscriptionNotFound)
	}
	return s.view(ctx, sub, s.now()), nil
}

func (s *SubscriptionService) view(ctx context.Context, sub *domain.Subscription, now time.Time) *domain.SubscriptionView {
	pkg, ok := RestorePackage(sub.SnapshotPackageJSON)
	if !ok {
		s.log.DebugContext(ctx, "package snapshot not decodable", slog.String("subscription_id", sub.ID))
	}
	return &domain.SubscriptionView{
		Subscription: sub,
		Package:      pkg,
		Limitations:  RestoreLimitations(sub.SnapshotLimitationsJSON),
		Entitled:     sub.Entitled(now),
	}
}

func paymentDescription(name string) string {
	if utf8.RuneCountInString(name) <= maxDescriptionLen {
		return name
	}
	r := []rune(name)
	return string(r[:maxDescriptionLen])
}
