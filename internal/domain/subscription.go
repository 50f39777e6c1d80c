package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus is the payment state of a subscription.
type SubscriptionStatus string

const (
	StatusPending   SubscriptionStatus = "PENDING"
	StatusPaid      SubscriptionStatus = "PAID"
	StatusCancelled SubscriptionStatus = "CANCELLED"
	StatusFailed    SubscriptionStatus = "FAILED"
)

// ParseStatus normalizes a gateway-reported status. Anything outside the
// known set is rejected with ErrUnknownStatus.
func ParseStatus(raw string) (SubscriptionStatus, error) {
	switch s := SubscriptionStatus(strings.ToUpper(strings.TrimSpace(raw))); s {
	case StatusPending, StatusPaid, StatusCancelled, StatusFailed:
		return s, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
	}
}

// Terminal reports whether no further status transition is accepted.
func (s SubscriptionStatus) Terminal() bool {
	return s == StatusPaid || s == StatusCancelled || s == StatusFailed
}

// Subscription represents one purchase attempt of a package and, once paid,
// the term it grants.
type Subscription struct {
	ID            string             `json:"id"`
	UserID        string             `json:"userId"`
	PackageID     string             `json:"packageId"`
	TotalPrice    int64              `json:"totalPrice"`
	TransactionID string             `json:"transactionId"`
	OrderCode     int64              `json:"orderCode"`
	PaymentMethod string             `json:"paymentMethod"`
	Status        SubscriptionStatus `json:"status"`
	CheckoutURL   string             `json:"checkoutUrl,omitempty"`
	QRCode        string             `json:"-"`
	PaidAt        *time.Time         `json:"paidAt,omitempty"`
	StartDate     *time.Time         `json:"startDate,omitempty"`
	EndDate       *time.Time         `json:"endDate,omitempty"`
	IsActive      bool               `json:"isActive"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`

	SnapshotPackageJSON     string `json:"-"`
	SnapshotLimitationsJSON string `json:"-"`
}

// NewSubscriptionID generates a new subscription ID.
func NewSubscriptionID() string {
	return uuid.New().String()
}

// Entitled reports whether the subscription currently grants its package.
func (s *Subscription) Entitled(now time.Time) bool {
	return s.Status == StatusPaid && s.IsActive && s.EndDate != nil && now.Before(*s.EndDate)
}

// PaymentConfirmation carries the fields written when a subscription becomes PAID.
type PaymentConfirmation struct {
	OrderCode     int64
	TransactionID string
	PaymentMethod string
	PaidAt        time.Time
	StartDate     time.Time
	EndDate       time.Time
	UpdatedAt     time.Time
}

// SubscriptionView is a subscription together with its decoded snapshot.
// Package is nil when the snapshot cannot be decoded.
type SubscriptionView struct {
	*Subscription
	Package     *PackageSnapshot     `json:"package"`
	Limitations []LimitationSnapshot `json:"limitations"`
	Entitled    bool                 `json:"entitled"`
}

// CreateSubscriptionRequest is the input for purchasing a package.
type CreateSubscriptionRequest struct {
	PackageID string `json:"packageId" validate:"required"`
	ReturnURL string `json:"returnUrl" validate:"required,url"`
	CancelURL string `json:"cancelUrl" validate:"required,url"`
}

// CheckoutResponse returns the gateway link the user completes payment on.
type CheckoutResponse struct {
	SubscriptionID string             `json:"subscriptionId"`
	OrderCode      int64              `json:"orderCode"`
	CheckoutURL    string             `json:"checkoutUrl"`
	QRCode         string             `json:"qrCode"`
	Amount         int64              `json:"amount"`
	Status         SubscriptionStatus `json:"status"`
}

// SubscriptionStats are aggregate counts for the admin dashboard.
type SubscriptionStats struct {
	ByStatus map[SubscriptionStatus]int `json:"byStatus"`
	Active   int                        `json:"active"`
}
