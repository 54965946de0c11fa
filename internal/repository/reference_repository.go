package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/elimu-fund/bursary-api/internal/models"
)

// ReferenceRepository reads the static location and institution tables.
type ReferenceRepository struct {
	db *sqlx.DB
}

// NewReferenceRepository constructs the repository.
func NewReferenceRepository(db *sqlx.DB) *ReferenceRepository {
	return &ReferenceRepository{db: db}
}

// ListCounties returns all counties ordered by code.
func (r *ReferenceRepository) ListCounties(ctx context.Context) ([]models.County, error) {
	var counties []models.County
	if err := r.db.SelectContext(ctx, &counties, `SELECT id, code, name FROM counties ORDER BY code`); err != nil {
		return nil, fmt.Errorf("list counties: %w", err)
	}
	return counties, nil
}

// ListSubCounties returns the sub-counties of a county.
func (r *ReferenceRepository) ListSubCounties(ctx context.Context, countyID string) ([]models.SubCounty, error) {
	var subCounties []models.SubCounty
	if err := r.db.SelectContext(ctx, &subCounties, `SELECT id, county_id, name FROM sub_counties WHERE county_id = $1 ORDER BY name`, countyID); err != nil {
		return nil, fmt.Errorf("list sub-counties: %w", err)
	}
	return subCounties, nil
}

// ListWards returns the wards of a sub-county.
func (r *ReferenceRepository) ListWards(ctx context.Context, subCountyID string) ([]models.Ward, error) {
	var wards []models.Ward
	if err := r.db.SelectContext(ctx, &wards, `SELECT id, sub_county_id, name FROM wards WHERE sub_county_id = $1 ORDER BY name`, subCountyID); err != nil {
		return nil, fmt.Errorf("list wards: %w", err)
	}
	return wards, nil
}

// ListInstitutions returns institutions, optionally filtered by county.
func (r *ReferenceRepository) ListInstitutions(ctx context.Context, countyID string) ([]models.Institution, error) {
	query := `SELECT id, name, type, county_id FROM institutions`
	var args []interface{}
	if countyID != "" {
		query += ` WHERE county_id = $1`
		args = append(args, countyID)
	}
	query += ` ORDER BY name`
	var institutions []models.Institution
	if err := r.db.SelectContext(ctx, &institutions, query, args...); err != nil {
		return nil, fmt.Errorf("list institutions: %w", err)
	}
	return institutions, nil
}
