package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elimu-fund/bursary-api/internal/models"
)

func newPeriodRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestPeriodRepositoryListWithFilter(t *testing.T) {
	db, mock, cleanup := newPeriodRepoMock(t)
	defer cleanup()
	repo := NewPeriodRepository(db)

	rows := sqlmock.NewRows([]string{"id", "name", "academic_year", "start_date", "end_date", "is_active", "created_at", "updated_at"}).
		AddRow("p1", "FY2026 Window", "2026", time.Now(), time.Now(), true, time.Now(), time.Now())
	mock.ExpectQuery("SELECT id, name, academic_year.+FROM application_periods WHERE 1=1 AND academic_year").
		WithArgs("2026", true).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM application_periods WHERE 1=1 AND academic_year")).
		WithArgs("2026", true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	active := true
	periods, total, err := repo.List(context.Background(), models.PeriodFilter{AcademicYear: "2026", IsActive: &active})
	require.NoError(t, err)
	assert.Len(t, periods, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPeriodRepositorySetActiveSingleTransaction(t *testing.T) {
	db, mock, cleanup := newPeriodRepoMock(t)
	defer cleanup()
	repo := NewPeriodRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE application_periods SET is_active = FALSE").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE application_periods SET is_active = TRUE").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.SetActive(context.Background(), "p2"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPeriodRepositorySetActiveRollsBackOnFailure(t *testing.T) {
	db, mock, cleanup := newPeriodRepoMock(t)
	defer cleanup()
	repo := NewPeriodRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE application_periods SET is_active = FALSE").
		WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	require.Error(t, repo.SetActive(context.Background(), "p2"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPeriodRepositoryFindActiveNoRows(t *testing.T) {
	db, mock, cleanup := newPeriodRepoMock(t)
	defer cleanup()
	repo := NewPeriodRepository(db)

	mock.ExpectQuery("SELECT id, name, academic_year.+WHERE is_active = TRUE").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindActive(context.Background())
	require.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
