package domain

import "time"

// Package is a purchasable service package. Packages are managed elsewhere;
// this service only reads them.
type Package struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	Price        int64        `json:"price"`        // smallest currency unit
	Currency     string       `json:"currency"`     // ISO 4217
	BillingCycle int          `json:"billingCycle"` // months
	Limitations  []Limitation `json:"limitations"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// Limitation is a quota or feature flag attached to a package.
type Limitation struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	IsUnlimited    bool   `json:"isUnlimited"`
	LimitValue     int64  `json:"limitValue"`
	LimitUnit      string `json:"limitUnit"`
	LimitationType string `json:"limitationType"`
	IsDeleted      bool   `json:"isDeleted"`
}

// PackageSnapshot is the frozen copy of a package stored on a subscription.
type PackageSnapshot struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Price        int64  `json:"price"`
	BillingCycle int    `json:"billingCycle"`
	Currency     string `json:"currency"`
}

// LimitationSnapshot is the frozen copy of a limitation stored on a subscription.
type LimitationSnapshot struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	IsUnlimited    bool   `json:"isUnlimited"`
	LimitValue     int64  `json:"limitValue"`
	LimitUnit      string `json:"limitUnit"`
	LimitationType string `json:"limitationType"`
}
