package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidang-online/sidang-api/internal/models"
)

func TestDefenseRepositoryCreateBatchInsideTx(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDefenseRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO defense_batches").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO defense_sessions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO defense_sessions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	ctx := context.Background()
	tx, err := db.BeginTxx(ctx, nil)
	require.NoError(t, err)

	batch := &models.DefenseBatch{
		ExamDate:         "2026-09-14",
		WindowStart:      "09:00",
		WindowEnd:        "12:00",
		DurationMinutes:  30,
		SessionsPerClass: 3,
	}
	require.NoError(t, repo.CreateBatch(ctx, tx, batch))
	assert.NotEmpty(t, batch.ID)
	assert.Equal(t, models.DefenseBatchStatusScheduled, batch.Status)

	sessions := []models.DefenseSession{
		{BatchID: batch.ID, SequenceNo: 1, ExamDate: batch.ExamDate, RoomNo: 1, ClassNo: 1, StudentID: "s1", NRP: "5025201001", StudentName: "Andi", Title: "T1", ModeratorID: "l1", ModeratorName: "Dr. Adi", Advisor1Name: "Dr. Adi", Advisor2Name: "Dr. Bima"},
		{BatchID: batch.ID, SequenceNo: 2, ExamDate: batch.ExamDate, RoomNo: 1, ClassNo: 1, StudentID: "s2", NRP: "5025201002", StudentName: "Budi", Title: "T2", ModeratorID: "l3", ModeratorName: "Dr. Cita", Advisor1Name: "Dr. Cita", Advisor2Name: "Dr. Dewi"},
	}
	require.NoError(t, repo.InsertSessions(ctx, tx, sessions))
	assert.NotEmpty(t, sessions[0].ID)

	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDefenseRepositoryListBatchesWithFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDefenseRepository(db)

	rows := sqlmock.NewRows([]string{"id", "exam_date", "window_start", "window_end", "duration_minutes", "sessions_per_class", "status", "warnings", "created_by", "created_at", "updated_at"}).
		AddRow("b1", "2026-09-14", "09:00", "12:00", 30, 3, "SCHEDULED", []byte(`[]`), nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, exam_date, window_start, window_end, duration_minutes, sessions_per_class, status, warnings, created_by, created_at, updated_at FROM defense_batches WHERE 1=1 AND exam_date = $1 AND status = $2 ORDER BY exam_date DESC, created_at DESC LIMIT 20 OFFSET 0")).
		WithArgs("2026-09-14", "SCHEDULED").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM defense_batches WHERE 1=1 AND exam_date = $1 AND status = $2")).
		WithArgs("2026-09-14", "SCHEDULED").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	batches, total, err := repo.ListBatches(context.Background(), models.DefenseBatchFilter{ExamDate: "2026-09-14", Status: "scheduled"})
	require.NoError(t, err)
	assert.Len(t, batches, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDefenseRepositoryListSessionsOrdered(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDefenseRepository(db)

	rows := sqlmock.NewRows([]string{"id", "batch_id", "sequence_no", "exam_date", "start_time", "end_time", "room_no", "class_no", "student_id", "nrp", "student_name", "title", "moderator_id", "moderator_name", "advisor1_name", "advisor2_name", "examiner1_id", "examiner1_name", "examiner2_id", "examiner2_name", "created_at"}).
		AddRow("s1", "b1", 1, "2026-09-14", "09:00", "09:30", 1, 1, "st1", "5025201001", "Andi", "T1", "l1", "Dr. Adi", "Dr. Adi", "Dr. Bima", "l3", "Dr. Cita", "l5", "Dr. Eko", time.Now())
	mock.ExpectQuery("FROM defense_sessions WHERE batch_id = \\$1 ORDER BY sequence_no ASC").
		WithArgs("b1").
		WillReturnRows(rows)

	sessions, err := repo.ListSessionsByBatch(context.Background(), "b1")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "5025201001", sessions[0].NRP)
	require.NotNil(t, sessions[0].Examiner1Name)
	assert.Equal(t, "Dr. Cita", *sessions[0].Examiner1Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDefenseRepositoryDeleteBatchNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDefenseRepository(db)

	mock.ExpectExec("DELETE FROM defense_batches").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.DeleteBatch(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
