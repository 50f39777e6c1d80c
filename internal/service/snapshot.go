package service

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aiagenz/billing/internal/domain"
)

// CaptureSnapshot freezes the package terms and its non-deleted limitations
// onto sub. Call it once, when the subscription is created.
func CaptureSnapshot(sub *domain.Subscription, pkg *domain.Package) error {
	if sub == nil || pkg == nil {
		return errors.New("snapshot requires a subscription and a package")
	}

	pkgJSON, err := json.Marshal(domain.PackageSnapshot{
		ID:           pkg.ID,
		Name:         pkg.Name,
		Description:  pkg.Description,
		Price:        pkg.Price,
		BillingCycle: pkg.BillingCycle,
		Currency:     pkg.Currency,
	})
	if err != nil {
		return fmt.Errorf("failed to encode package snapshot: %w", err)
	}

	limits := make([]domain.LimitationSnapshot, 0, len(pkg.Limitations))
	for _, l := range pkg.Limitations {
		if l.IsDeleted {
			continue
		}
		limits = append(limits, domain.LimitationSnapshot{
			ID:             l.ID,
			Name:           l.Name,
			Description:    l.Description,
			IsUnlimited:    l.IsUnlimited,
			LimitValue:     l.LimitValue,
			LimitUnit:      l.LimitUnit,
			LimitationType: l.LimitationType,
		})
	}
	limitsJSON, err := json.Marshal(limits)
	if err != nil {
		return fmt.Errorf("failed to encode limitations snapshot: %w", err)
	}

	sub.SnapshotPackageJSON = string(pkgJSON)
	sub.SnapshotLimitationsJSON = string(limitsJSON)
	return nil
}

// RestorePackage decodes a package snapshot. It reports false for empty,
// malformed or incomplete snapshots.
func RestorePackage(raw string) (*domain.PackageSnapshot, bool) {
	if raw == "" {
		return nil, false
	}
	var p domain.PackageSnapshot
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, false
	}
	if p.ID == "" || p.Name == "" {
		return nil, false
	}
	return &p, true
}

// RestoreLimitations decodes a limitations snapshot. It never returns nil.
func RestoreLimitations(raw string) []domain.LimitationSnapshot {
	if raw == "" {
		return []domain.LimitationSnapshot{}
	}
	var limits []domain.LimitationSnapshot
	if err := json.Unmarshal([]byte(raw), &limits); err != nil || limits == nil {
		return []domain.LimitationSnapshot{}
	}
	return limits
}
