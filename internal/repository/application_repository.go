package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/elimu-fund/bursary-api/internal/models"
)

// ErrDuplicateActive reports that the profile already holds a live
// application for the period. The partial unique index raises this when
// two creates race past the eligibility read.
var ErrDuplicateActive = errors.New("an active application already exists for this profile and period")

// StatusConflictError is returned when a locked application row no longer
// holds the status the caller observed. The loser of a concurrent
// transition race receives this and must not overwrite.
type StatusConflictError struct {
	Current models.ApplicationStatus
}

func (e *StatusConflictError) Error() string {
	return fmt.Sprintf("application status changed concurrently, now %s", e.Current)
}

const applicationColumns = `id, application_number, profile_id, period_id, status,
        amount_requested, total_annual_fees, outstanding_fees, other_bursaries, personal_statement,
        snapshot_full_name, snapshot_national_id, snapshot_passport_number, snapshot_institution_id,
        snapshot_admission_number, snapshot_county_id, snapshot_sub_county_id, snapshot_ward_id,
        snapshot_email, snapshot_phone, submitted_at, reviewed_at, reviewed_by, review_notes,
        disbursed_amount, disbursed_at, created_at, updated_at`

// TransitionParams carries everything one atomic status change needs.
type TransitionParams struct {
	ApplicationID   string
	Expected        models.ApplicationStatus
	Target          models.ApplicationStatus
	ActorID         string
	System          bool
	Reason          *string
	ReviewedBy      *string
	DisbursedAmount *float64
	// Snapshot is non-nil only when leaving DRAFT; written once, never again.
	Snapshot    *models.ApplicationSnapshot
	SubmittedAt *time.Time
}

// ApplicationRepository handles persistence of applications and their
// append-only status ledger.
type ApplicationRepository struct {
	db *sqlx.DB
}

// NewApplicationRepository constructs the repository.
func NewApplicationRepository(db *sqlx.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

// FindByID loads an application by identifier.
func (r *ApplicationRepository) FindByID(ctx context.Context, id string) (*models.Application, error) {
	query := fmt.Sprintf(`SELECT %s FROM applications WHERE id = $1`, applicationColumns)
	var app models.Application
	if err := r.db.GetContext(ctx, &app, query, id); err != nil {
		return nil, err
	}
	return &app, nil
}

// FindActiveByProfile returns the profile's application currently occupying
// the single active slot (DRAFT, PENDING or UNDER_REVIEW), if any.
func (r *ApplicationRepository) FindActiveByProfile(ctx context.Context, profileID string) (*models.Application, error) {
	query := fmt.Sprintf(`SELECT %s FROM applications WHERE profile_id = $1 AND status IN ($2, $3, $4) LIMIT 1`, applicationColumns)
	var app models.Application
	if err := r.db.GetContext(ctx, &app, query, profileID, models.StatusDraft, models.StatusPending, models.StatusUnderReview); err != nil {
		return nil, err
	}
	return &app, nil
}

// ListByProfile returns all applications owned by a profile, newest first.
func (r *ApplicationRepository) ListByProfile(ctx context.Context, profileID string) ([]models.Application, error) {
	query := fmt.Sprintf(`SELECT %s FROM applications WHERE profile_id = $1 ORDER BY created_at DESC`, applicationColumns)
	var apps []models.Application
	if err := r.db.SelectContext(ctx, &apps, query, profileID); err != nil {
		return nil, fmt.Errorf("list profile applications: %w", err)
	}
	return apps, nil
}

// List returns applications matching admin filter criteria.
func (r *ApplicationRepository) List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, int, error) {
	base := `FROM applications a
LEFT JOIN student_profiles p ON p.id = a.profile_id
LEFT JOIN users u ON u.id = p.user_id`
	var conditions []string
	var args []interface{}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("a.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.PeriodID != "" {
		conditions = append(conditions, fmt.Sprintf("a.period_id = $%d", len(args)+1))
		args = append(args, filter.PeriodID)
	}
	if filter.CountyID != "" {
		conditions = append(conditions, fmt.Sprintf("p.county_id = $%d", len(args)+1))
		args = append(args, filter.CountyID)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(a.application_number ILIKE $%d OR u.full_name ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"created_at":         "a.created_at",
		"submitted_at":       "a.submitted_at",
		"application_number": "a.application_number",
		"status":             "a.status",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "a.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
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

	query := fmt.Sprintf(`SELECT a.id, a.application_number, a.profile_id, a.period_id, a.status,
        a.amount_requested, a.total_annual_fees, a.outstanding_fees, a.other_bursaries, a.personal_statement,
        a.snapshot_full_name, a.snapshot_national_id, a.snapshot_passport_number, a.snapshot_institution_id,
        a.snapshot_admission_number, a.snapshot_county_id, a.snapshot_sub_county_id, a.snapshot_ward_id,
        a.snapshot_email, a.snapshot_phone, a.submitted_at, a.reviewed_at, a.reviewed_by, a.review_notes,
        a.disbursed_amount, a.disbursed_at, a.created_at, a.updated_at,
        u.full_name AS applicant_name, u.email AS applicant_email
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var apps []models.ApplicationDetail
	if err := r.db.SelectContext(ctx, &apps, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list applications: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count applications: %w", err)
	}
	return apps, total, nil
}

// Create inserts a DRAFT application and its initial ledger row atomically.
// The application number is drawn from a dedicated sequence so it is
// monotonically increasing and globally unique.
func (r *ApplicationRepository) Create(ctx context.Context, app *models.Application, actorID string) error {
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	app.CreatedAt = now
	app.UpdatedAt = now
	app.Status = models.StatusDraft

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create application tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var seq int64
	if err = tx.GetContext(ctx, &seq, `SELECT nextval('application_number_seq')`); err != nil {
		return fmt.Errorf("next application number: %w", err)
	}
	app.ApplicationNumber = fmt.Sprintf("BSF-%d-%06d", now.Year(), seq)

	const insertApp = `INSERT INTO applications (id, application_number, profile_id, period_id, status,
        amount_requested, total_annual_fees, outstanding_fees, other_bursaries, personal_statement, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	if _, err = tx.ExecContext(ctx, insertApp, app.ID, app.ApplicationNumber, app.ProfileID, app.PeriodID,
		app.Status, app.AmountRequested, app.TotalAnnualFees, app.OutstandingFees, app.OtherBursaries,
		app.PersonalStatement, app.CreatedAt, app.UpdatedAt); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			err = ErrDuplicateActive
			return err
		}
		return fmt.Errorf("create application: %w", err)
	}

	const insertHistory = `INSERT INTO application_status_history (id, application_id, previous_status, new_status, changed_by, reason, is_system, created_at)
        VALUES ($1, $2, NULL, $3, $4, NULL, $5, $6)`
	if _, err = tx.ExecContext(ctx, insertHistory, uuid.NewString(), app.ID, models.StatusDraft, actorID, false, now); err != nil {
		return fmt.Errorf("record initial status: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create application tx: %w", err)
	}
	return nil
}

// UpdateDraft modifies the working fields. The WHERE clause pins the DRAFT
// status so a submission that races this update wins.
func (r *ApplicationRepository) UpdateDraft(ctx context.Context, app *models.Application) (bool, error) {
	app.UpdatedAt = time.Now().UTC()
	const query = `UPDATE applications SET amount_requested = :amount_requested,
        total_annual_fees = :total_annual_fees, outstanding_fees = :outstanding_fees,
        other_bursaries = :other_bursaries, personal_statement = :personal_statement,
        updated_at = :updated_at WHERE id = :id AND status = 'DRAFT'`
	res, err := r.db.NamedExecContext(ctx, query, app)
	if err != nil {
		return false, fmt.Errorf("update draft: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update draft result: %w", err)
	}
	return affected == 1, nil
}

// Transition executes one validated status change atomically: row lock,
// status re-check, update, snapshot write (only when leaving DRAFT) and
// exactly one ledger row. Either everything commits or nothing does.
func (r *ApplicationRepository) Transition(ctx context.Context, p TransitionParams) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transition tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current models.ApplicationStatus
	if err = tx.GetContext(ctx, &current, `SELECT status FROM applications WHERE id = $1 FOR UPDATE`, p.ApplicationID); err != nil {
		return err
	}
	if current != p.Expected {
		err = &StatusConflictError{Current: current}
		return err
	}

	now := time.Now().UTC()
	if p.Snapshot != nil {
		const query = `UPDATE applications SET status = $2,
            snapshot_full_name = $3, snapshot_national_id = $4, snapshot_passport_number = $5,
            snapshot_institution_id = $6, snapshot_admission_number = $7, snapshot_county_id = $8,
            snapshot_sub_county_id = $9, snapshot_ward_id = $10, snapshot_email = $11, snapshot_phone = $12,
            submitted_at = $13, updated_at = $14 WHERE id = $1`
		if _, err = tx.ExecContext(ctx, query, p.ApplicationID, p.Target,
			p.Snapshot.FullName, p.Snapshot.NationalID, p.Snapshot.PassportNumber,
			p.Snapshot.InstitutionID, p.Snapshot.AdmissionNumber, p.Snapshot.CountyID,
			p.Snapshot.SubCountyID, p.Snapshot.WardID, p.Snapshot.Email, p.Snapshot.Phone,
			p.SubmittedAt, now); err != nil {
			return fmt.Errorf("apply submission: %w", err)
		}
	} else if p.Target == models.StatusDisbursed {
		const query = `UPDATE applications SET status = $2, disbursed_amount = $3, disbursed_at = $4,
            reviewed_at = $4, reviewed_by = $5, review_notes = COALESCE($6, review_notes), updated_at = $4 WHERE id = $1`
		if _, err = tx.ExecContext(ctx, query, p.ApplicationID, p.Target, p.DisbursedAmount, now, p.ReviewedBy, p.Reason); err != nil {
			return fmt.Errorf("apply disbursement: %w", err)
		}
	} else {
		const query = `UPDATE applications SET status = $2, reviewed_at = $3, reviewed_by = $4,
            review_notes = COALESCE($5, review_notes), updated_at = $3 WHERE id = $1`
		if _, err = tx.ExecContext(ctx, query, p.ApplicationID, p.Target, now, p.ReviewedBy, p.Reason); err != nil {
			return fmt.Errorf("apply transition: %w", err)
		}
	}

	const insertHistory = `INSERT INTO application_status_history (id, application_id, previous_status, new_status, changed_by, reason, is_system, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err = tx.ExecContext(ctx, insertHistory, uuid.NewString(), p.ApplicationID, p.Expected, p.Target, p.ActorID, p.Reason, p.System, now); err != nil {
		return fmt.Errorf("record status change: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transition tx: %w", err)
	}
	return nil
}

// ListHistory returns the status ledger for an application, oldest first.
func (r *ApplicationRepository) ListHistory(ctx context.Context, applicationID string) ([]models.StatusHistory, error) {
	const query = `SELECT id, application_id, previous_status, new_status, changed_by, reason, is_system, created_at
        FROM application_status_history WHERE application_id = $1 ORDER BY created_at ASC`
	var history []models.StatusHistory
	if err := r.db.SelectContext(ctx, &history, query, applicationID); err != nil {
		return nil, fmt.Errorf("list status history: %w", err)
	}
	return history, nil
}

// CountByStatus aggregates the register per lifecycle state.
func (r *ApplicationRepository) CountByStatus(ctx context.Context, periodID string) ([]models.StatusCount, error) {
	query := `SELECT status, COUNT(*) AS count FROM applications`
	var args []interface{}
	if periodID != "" {
		query += ` WHERE period_id = $1`
		args = append(args, periodID)
	}
	query += ` GROUP BY status`
	var counts []models.StatusCount
	if err := r.db.SelectContext(ctx, &counts, query, args...); err != nil {
		return nil, fmt.Errorf("count applications by status: %w", err)
	}
	return counts, nil
}
