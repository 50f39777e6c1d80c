package repository

import (
	"context"
	"fmt"

	"github.com/aiagenz/billing/internal/domain"
)

type PackageRepository struct {
	db DBTX
}

func NewPackageRepository(db DBTX) *PackageRepository {
	return &PackageRepository{db: db}
}

// FindByID loads a package with all of its limitations, deleted ones
// included. Callers decide what to do with deleted entries.
func (r *PackageRepository) FindByID(ctx context.Context, id string) (*domain.Package, error) {
	query := `
		SELECT id, name, description, price, currency, billing_cycle, created_at, updated_at
		FROM packages WHERE id = $1
	`
	var pkg domain.Package
	err := r.db.QueryRow(ctx, query, id).Scan(
		&pkg.ID, &pkg.Name, &pkg.Description, &pkg.Price, &pkg.Currency, &pkg.BillingCycle,
		&pkg.CreatedAt, &pkg.UpdatedAt,
	)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find package: %w", err)
	}

	limits, err := r.limitations(ctx, id)
	if err != nil {
		return nil, err
	}
	pkg.Limitations = limits
	return &pkg, nil
}

func (r *PackageRepository) limitations(ctx context.Context, packageID string) ([]domain.Limitation, error) {
	query := `
		SELECT id, name, description, is_unlimited, limit_value, limit_unit, limitation_type, is_deleted
		FROM limitations WHERE package_id = $1
		ORDER BY position, id
	`
	rows, err := r.db.Query(ctx, query, packageID)
	if err != nil {
		return nil, fmt.Errorf("failed to list limitations: %w", err)
	}
	defer rows.Close()

	var limits []domain.Limitation
	for rows.Next() {
		var l domain.Limitation
		if err := rows.Scan(
			&l.ID, &l.Name, &l.Description, &l.IsUnlimited, &l.LimitValue, &l.LimitUnit, &l.LimitationType, &l.IsDeleted,
		); err != nil {
			return nil, fmt.Errorf("failed to scan limitation: %w", err)
		}
		limits = append(limits, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list limitations: %w", err)
	}
	return limits, nil
}
