package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/elimu-fund/bursary-api/internal/models"
)

const periodColumns = `id, name, academic_year, start_date, end_date, is_active, created_at, updated_at`

// PeriodRepository handles persistence for application periods.
type PeriodRepository struct {
	db *sqlx.DB
}

// NewPeriodRepository instantiates a period repository.
func NewPeriodRepository(db *sqlx.DB) *PeriodRepository {
	return &PeriodRepository{db: db}
}

// List returns periods matching provided filters.
func (r *PeriodRepository) List(ctx context.Context, filter models.PeriodFilter) ([]models.ApplicationPeriod, int, error) {
	base := "FROM application_periods WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.AcademicYear != "" {
		conditions = append(conditions, fmt.Sprintf("academic_year = $%d", len(args)+1))
		args = append(args, filter.AcademicYear)
	}
	if filter.IsActive != nil {
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", len(args)+1))
		args = append(args, *filter.IsActive)
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY start_date DESC LIMIT %d OFFSET %d", periodColumns, base, size, offset)

	var periods []models.ApplicationPeriod
	if err := r.db.SelectContext(ctx, &periods, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list periods: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count periods: %w", err)
	}

	return periods, total, nil
}

// FindByID loads a period by identifier.
func (r *PeriodRepository) FindByID(ctx context.Context, id string) (*models.ApplicationPeriod, error) {
	query := fmt.Sprintf(`SELECT %s FROM application_periods WHERE id = $1`, periodColumns)
	var period models.ApplicationPeriod
	if err := r.db.GetContext(ctx, &period, query, id); err != nil {
		return nil, err
	}
	return &period, nil
}

// FindActive returns the currently active period.
func (r *PeriodRepository) FindActive(ctx context.Context) (*models.ApplicationPeriod, error) {
	query := fmt.Sprintf(`SELECT %s FROM application_periods WHERE is_active = TRUE LIMIT 1`, periodColumns)
	var period models.ApplicationPeriod
	if err := r.db.GetContext(ctx, &period, query); err != nil {
		return nil, err
	}
	return &period, nil
}

// Create inserts a new period record.
func (r *PeriodRepository) Create(ctx context.Context, period *models.ApplicationPeriod) error {
	if period.ID == "" {
		period.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	period.CreatedAt = now
	period.UpdatedAt = now

	const query = `INSERT INTO application_periods (id, name, academic_year, start_date, end_date, is_active, created_at, updated_at)
        VALUES (:id, :name, :academic_year, :start_date, :end_date, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, period); err != nil {
		return fmt.Errorf("create period: %w", err)
	}
	return nil
}

// Update modifies an existing period.
func (r *PeriodRepository) Update(ctx context.Context, period *models.ApplicationPeriod) error {
	period.UpdatedAt = time.Now().UTC()
	const query = `UPDATE application_periods SET name = :name, academic_year = :academic_year,
        start_date = :start_date, end_date = :end_date, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, period); err != nil {
		return fmt.Errorf("update period: %w", err)
	}
	return nil
}

// SetActive marks the provided period as active and deactivates the rest.
// Both steps run in one transaction so no observable moment has two active
// periods, or none because of a crash mid-sequence.
func (r *PeriodRepository) SetActive(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin set active tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `UPDATE application_periods SET is_active = FALSE, updated_at = $1 WHERE is_active = TRUE AND id <> $2`, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("deactivate other periods: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `UPDATE application_periods SET is_active = TRUE, updated_at = $2 WHERE id = $1`, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("activate period: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit set active tx: %w", err)
	}
	return nil
}

// Delete removes a period permanently.
func (r *PeriodRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM application_periods WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete period: %w", err)
	}
	return nil
}

// CountApplications returns the number of applications referencing the period.
func (r *PeriodRepository) CountApplications(ctx context.Context, id string) (int, error) {
	const query = `SELECT COUNT(*) FROM applications WHERE period_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, id); err != nil {
		return 0, fmt.Errorf("count period applications: %w", err)
	}
	return count, nil
}
