package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elimu-fund/bursary-api/internal/models"
)

func newApplicationRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestApplicationRepositoryCreateAssignsNumber(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT nextval('application_number_seq')")).
		WillReturnRows(sqlmock.NewRows([]string{"nextval"}).AddRow(42))
	mock.ExpectExec("INSERT INTO applications").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO application_status_history").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	app := &models.Application{
		ProfileID:         "profile-1",
		PeriodID:          "period-1",
		AmountRequested:   20000,
		TotalAnnualFees:   80000,
		OutstandingFees:   35000,
		PersonalStatement: "statement",
	}
	require.NoError(t, repo.Create(context.Background(), app, "user-1"))
	assert.Equal(t, models.StatusDraft, app.Status)
	assert.Regexp(t, `^BSF-\d{4}-000042$`, app.ApplicationNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryCreateDuplicateActive(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT nextval('application_number_seq')")).
		WillReturnRows(sqlmock.NewRows([]string{"nextval"}).AddRow(43))
	mock.ExpectExec("INSERT INTO applications").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "uq_applications_one_active"})
	mock.ExpectRollback()

	app := &models.Application{
		ProfileID:         "profile-1",
		PeriodID:          "period-1",
		AmountRequested:   20000,
		TotalAnnualFees:   80000,
		OutstandingFees:   35000,
		PersonalStatement: "statement",
	}
	err := repo.Create(context.Background(), app, "user-1")
	require.ErrorIs(t, err, ErrDuplicateActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryTransitionLocksAndLedgers(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM applications WHERE id = $1 FOR UPDATE")).
		WithArgs("app-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("PENDING"))
	mock.ExpectExec("UPDATE applications SET status").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO application_status_history").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	reviewer := "admin-1"
	err := repo.Transition(context.Background(), TransitionParams{
		ApplicationID: "app-1",
		Expected:      models.StatusPending,
		Target:        models.StatusUnderReview,
		ActorID:       reviewer,
		ReviewedBy:    &reviewer,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryTransitionConflictRollsBack(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM applications WHERE id = $1 FOR UPDATE")).
		WithArgs("app-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("UNDER_REVIEW"))
	mock.ExpectRollback()

	err := repo.Transition(context.Background(), TransitionParams{
		ApplicationID: "app-1",
		Expected:      models.StatusPending,
		Target:        models.StatusUnderReview,
		ActorID:       "admin-1",
	})
	require.Error(t, err)
	var conflict *StatusConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, models.StatusUnderReview, conflict.Current)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryTransitionWritesSnapshot(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM applications WHERE id = $1 FOR UPDATE")).
		WithArgs("app-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("DRAFT"))
	mock.ExpectExec("UPDATE applications SET status(.|\n)*snapshot_full_name").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO application_status_history").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	submittedAt := time.Now().UTC()
	err := repo.Transition(context.Background(), TransitionParams{
		ApplicationID: "app-1",
		Expected:      models.StatusDraft,
		Target:        models.StatusPending,
		ActorID:       "user-1",
		Snapshot: &models.ApplicationSnapshot{
			FullName:        "Achieng Odhiambo",
			InstitutionID:   "inst-1",
			AdmissionNumber: "ADM/001",
			CountyID:        "county-1",
			SubCountyID:     "sub-1",
			WardID:          "ward-1",
			Email:           "achieng@example.com",
			Phone:           "+254700000001",
		},
		SubmittedAt: &submittedAt,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryUpdateDraftPinsStatus(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectExec("UPDATE applications SET amount_requested").
		WillReturnResult(sqlmock.NewResult(0, 0))

	updated, err := repo.UpdateDraft(context.Background(), &models.Application{ID: "app-1"})
	require.NoError(t, err)
	assert.False(t, updated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryListHistory(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	rows := sqlmock.NewRows([]string{"id", "application_id", "previous_status", "new_status", "changed_by", "reason", "is_system", "created_at"}).
		AddRow("h1", "app-1", nil, "DRAFT", "user-1", nil, false, time.Now()).
		AddRow("h2", "app-1", "DRAFT", "PENDING", "user-1", nil, false, time.Now())
	mock.ExpectQuery("SELECT id, application_id, previous_status").
		WithArgs("app-1").
		WillReturnRows(rows)

	history, err := repo.ListHistory(context.Background(), "app-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Nil(t, history[0].PreviousStatus)
	assert.Equal(t, models.StatusPending, history[1].NewStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}
