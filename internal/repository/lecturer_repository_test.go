package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidang-online/sidang-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestLecturerRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLecturerRepository(db)

	rows := sqlmock.NewRows([]string{"id", "nip", "name", "email", "phone", "active", "created_at", "updated_at"}).
		AddRow("l1", nil, "Dr. Adi", nil, nil, true, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, nip, name, email, phone, active, created_at, updated_at FROM lecturers WHERE 1=1 ORDER BY name ASC LIMIT 20 OFFSET 0")).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM lecturers WHERE 1=1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.List(context.Background(), models.LecturerFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLecturerRepositoryListActive(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLecturerRepository(db)

	rows := sqlmock.NewRows([]string{"id", "nip", "name", "email", "phone", "active", "created_at", "updated_at"}).
		AddRow("l1", nil, "Dr. Adi", nil, nil, true, time.Now(), time.Now()).
		AddRow("l2", nil, "Dr. Bima", nil, nil, true, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, nip, name, email, phone, active, created_at, updated_at FROM lecturers WHERE active = TRUE ORDER BY name ASC")).
		WillReturnRows(rows)

	pool, err := repo.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, pool, 2)
	assert.Equal(t, "Dr. Adi", pool[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLecturerRepositoryCreateAndDeactivate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLecturerRepository(db)

	mock.ExpectExec("INSERT INTO lecturers").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "Dr. Adi", sqlmock.AnyArg(), sqlmock.AnyArg(), true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Create(context.Background(), &models.Lecturer{Name: "Dr. Adi", Active: true})
	require.NoError(t, err)

	mock.ExpectExec("UPDATE lecturers SET active = FALSE").
		WithArgs("l1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Deactivate(context.Background(), "l1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLecturerRepositoryExistsByName(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLecturerRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM lecturers WHERE LOWER(name) = LOWER($1) LIMIT 1")).
		WithArgs("dr. adi").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	exists, err := repo.ExistsByName(context.Background(), "dr. adi", "")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}
