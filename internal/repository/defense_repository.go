package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/sidang-online/sidang-api/internal/models"
)

// DefenseRepository persists scheduling runs and their sessions.
type DefenseRepository struct {
	db *sqlx.DB
}

// NewDefenseRepository constructs a DefenseRepository.
func NewDefenseRepository(db *sqlx.DB) *DefenseRepository {
	return &DefenseRepository{db: db}
}

func (r *DefenseRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// CreateBatch inserts a batch record. Callers pass the surrounding
// transaction so the batch and its sessions land atomically.
func (r *DefenseRepository) CreateBatch(ctx context.Context, exec sqlx.ExtContext, batch *models.DefenseBatch) error {
	if batch == nil {
		return fmt.Errorf("batch payload is nil")
	}
	if batch.ID == "" {
		batch.ID = uuid.NewString()
	}
	if batch.Status == "" {
		batch.Status = models.DefenseBatchStatusScheduled
	}
	if len(batch.Warnings) == 0 {
		batch.Warnings = types.JSONText(`[]`)
	}
	now := time.Now().UTC()
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = now
	}
	batch.UpdatedAt = now

	const query = `
INSERT INTO defense_batches (id, exam_date, window_start, window_end, duration_minutes, sessions_per_class, status, warnings, created_by, created_at, updated_at)
VALUES (:id, :exam_date, :window_start, :window_end, :duration_minutes, :sessions_per_class, :status, :warnings, :created_by, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, batch); err != nil {
		return fmt.Errorf("insert defense batch: %w", err)
	}
	return nil
}

// InsertSessions writes every session of a batch inside the caller's
// transaction, in sequence order.
func (r *DefenseRepository) InsertSessions(ctx context.Context, exec sqlx.ExtContext, sessions []models.DefenseSession) error {
	if len(sessions) == 0 {
		return nil
	}
	target := r.exec(exec)
	now := time.Now().UTC()

	const query = `
INSERT INTO defense_sessions (id, batch_id, sequence_no, exam_date, start_time, end_time, room_no, class_no, student_id, nrp, student_name, title, moderator_id, moderator_name, advisor1_name, advisor2_name, examiner1_id, examiner1_name, examiner2_id, examiner2_name, created_at)
VALUES (:id, :batch_id, :sequence_no, :exam_date, :start_time, :end_time, :room_no, :class_no, :student_id, :nrp, :student_name, :title, :moderator_id, :moderator_name, :advisor1_name, :advisor2_name, :examiner1_id, :examiner1_name, :examiner2_id, :examiner2_name, :created_at)`

	for i := range sessions {
		session := &sessions[i]
		if session.ID == "" {
			session.ID = uuid.NewString()
		}
		if session.CreatedAt.IsZero() {
			session.CreatedAt = now
		}
		if _, err := sqlx.NamedExecContext(ctx, target, query, session); err != nil {
			return fmt.Errorf("insert defense session %d: %w", session.SequenceNo, err)
		}
	}
	return nil
}

// ListBatches returns batches matching filters along with total count.
func (r *DefenseRepository) ListBatches(ctx context.Context, filter models.DefenseBatchFilter) ([]models.DefenseBatch, int, error) {
	base := "FROM defense_batches WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.ExamDate != "" {
		conditions = append(conditions, fmt.Sprintf("exam_date = $%d", len(args)+1))
		args = append(args, filter.ExamDate)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, strings.ToUpper(filter.Status))
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

	query := fmt.Sprintf("SELECT id, exam_date, window_start, window_end, duration_minutes, sessions_per_class, status, warnings, created_by, created_at, updated_at %s ORDER BY exam_date DESC, created_at DESC LIMIT %d OFFSET %d", base, size, offset)
	var batches []models.DefenseBatch
	if err := r.db.SelectContext(ctx, &batches, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list defense batches: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count defense batches: %w", err)
	}

	return batches, total, nil
}

// FindBatchByID loads one batch.
func (r *DefenseRepository) FindBatchByID(ctx context.Context, id string) (*models.DefenseBatch, error) {
	const query = `SELECT id, exam_date, window_start, window_end, duration_minutes, sessions_per_class, status, warnings, created_by, created_at, updated_at FROM defense_batches WHERE id = $1`
	var batch models.DefenseBatch
	if err := r.db.GetContext(ctx, &batch, query, id); err != nil {
		return nil, err
	}
	return &batch, nil
}

// ListSessionsByBatch returns a batch's sessions in sequence order.
func (r *DefenseRepository) ListSessionsByBatch(ctx context.Context, batchID string) ([]models.DefenseSession, error) {
	const query = `SELECT id, batch_id, sequence_no, exam_date, start_time, end_time, room_no, class_no, student_id, nrp, student_name, title, moderator_id, moderator_name, advisor1_name, advisor2_name, examiner1_id, examiner1_name, examiner2_id, examiner2_name, created_at
FROM defense_sessions WHERE batch_id = $1 ORDER BY sequence_no ASC`
	var sessions []models.DefenseSession
	if err := r.db.SelectContext(ctx, &sessions, query, batchID); err != nil {
		return nil, fmt.Errorf("list defense sessions: %w", err)
	}
	return sessions, nil
}

// DeleteBatch removes a batch; sessions go with it via the foreign
// key's cascade.
func (r *DefenseRepository) DeleteBatch(ctx context.Context, id string) error {
	const query = `DELETE FROM defense_batches WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete defense batch: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("defense batch rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateBatchStatus moves a batch between lifecycle phases.
func (r *DefenseRepository) UpdateBatchStatus(ctx context.Context, id string, status models.DefenseBatchStatus) error {
	const query = `UPDATE defense_batches SET status = $1, updated_at = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update defense batch status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("defense batch rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
