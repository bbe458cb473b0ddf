package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/sidang-online/sidang-api/internal/dto"
	"github.com/sidang-online/sidang-api/internal/models"
	"github.com/sidang-online/sidang-api/internal/scheduler"
	"github.com/sidang-online/sidang-api/pkg/config"
	appErrors "github.com/sidang-online/sidang-api/pkg/errors"
)

type defenseLecturerReader interface {
	ListActive(ctx context.Context) ([]models.Lecturer, error)
}

type defenseStudentStore interface {
	FindByNRPs(ctx context.Context, nrps []string) (map[string]models.Student, error)
}

type defenseBatchRepository interface {
	CreateBatch(ctx context.Context, exec sqlx.ExtContext, batch *models.DefenseBatch) error
	InsertSessions(ctx context.Context, exec sqlx.ExtContext, sessions []models.DefenseSession) error
	ListBatches(ctx context.Context, filter models.DefenseBatchFilter) ([]models.DefenseBatch, int, error)
	FindBatchByID(ctx context.Context, id string) (*models.DefenseBatch, error)
	ListSessionsByBatch(ctx context.Context, batchID string) ([]models.DefenseSession, error)
	DeleteBatch(ctx context.Context, id string) error
	UpdateBatchStatus(ctx context.Context, id string, status models.DefenseBatchStatus) error
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type batchCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type rosterParser interface {
	Parse(r io.Reader) ([]scheduler.Candidate, error)
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type runObserver interface {
	ObserveScheduleRun(outcome string, warnings int, duration time.Duration)
	RecordCacheOperation(hit bool)
}

const batchCachePrefix = "defense:batch:"

// DefenseScheduleService drives scheduling runs end to end: loading
// the lecturer pool, invoking the engine, persisting the batch with
// its sessions atomically, and serving stored batches.
type DefenseScheduleService struct {
	engine    *scheduler.Engine
	lecturers defenseLecturerReader
	students  defenseStudentStore
	batches   defenseBatchRepository
	tx        txProvider
	cache     batchCache
	roster    rosterParser
	audit     auditWriter
	metrics   runObserver
	validator *validator.Validate
	logger    *zap.Logger
	cfg       config.SchedulerConfig
}

// NewDefenseScheduleService wires scheduling dependencies. cache,
// audit and metrics may be nil; the service then skips those concerns.
func NewDefenseScheduleService(
	engine *scheduler.Engine,
	lecturers defenseLecturerReader,
	students defenseStudentStore,
	batches defenseBatchRepository,
	tx txProvider,
	cache batchCache,
	roster rosterParser,
	audit auditWriter,
	metrics runObserver,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg config.SchedulerConfig,
) *DefenseScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DefenseScheduleService{
		engine:    engine,
		lecturers: lecturers,
		students:  students,
		batches:   batches,
		tx:        tx,
		cache:     cache,
		roster:    roster,
		audit:     audit,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// Generate runs the engine for the request's roster. Dry runs return
// the timetable without touching the database; otherwise the batch and
// every session are persisted inside one transaction.
func (s *DefenseScheduleService) Generate(ctx context.Context, userID string, req dto.GenerateScheduleRequest) (*dto.GenerateScheduleResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule request")
	}

	params := s.paramsWithDefaults(req)
	candidates := make([]scheduler.Candidate, 0, len(req.Roster))
	for _, row := range req.Roster {
		candidates = append(candidates, scheduler.Candidate{
			NRP:      strings.TrimSpace(row.NRP),
			Name:     strings.TrimSpace(row.Name),
			Title:    strings.TrimSpace(row.Title),
			Advisor1: row.Advisor1,
			Advisor2: row.Advisor2,
		})
	}

	known, err := s.resolveStudents(ctx, candidates)
	if err != nil {
		return nil, err
	}

	pool, err := s.lecturers.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lecturer pool")
	}
	engineLecturers := make([]scheduler.Lecturer, 0, len(pool))
	lecturerIDs := make(map[string]string, len(pool))
	for _, lecturer := range pool {
		engineLecturers = append(engineLecturers, scheduler.Lecturer{ID: lecturer.ID, Name: lecturer.Name})
		lecturerIDs[strings.ToLower(lecturer.Name)] = lecturer.ID
	}

	started := time.Now()
	result, err := s.engine.Run(params, candidates, engineLecturers)
	if err != nil {
		s.observeRun(err, 0, time.Since(started))
		return nil, err
	}
	s.observeRun(nil, len(result.Warnings), time.Since(started))

	response := &dto.GenerateScheduleResponse{
		ExamDate: params.ExamDate,
		Sessions: sessionsToDTO(result.Sessions),
		Warnings: result.Warnings,
	}
	if req.DryRun {
		return response, nil
	}

	batch, err := s.persistRun(ctx, userID, params, result, lecturerIDs, known)
	if err != nil {
		return nil, err
	}
	response.BatchID = batch.ID

	if s.cache != nil {
		if err := s.cache.DeleteByPattern(ctx, batchCachePrefix+"*"); err != nil {
			s.logger.Warn("failed to invalidate batch cache", zap.Error(err))
		}
	}
	s.writeAudit(ctx, userID, models.AuditActionScheduleGenerate, batch.ID)

	s.logger.Info("defense schedule generated",
		zap.String("batch_id", batch.ID),
		zap.String("exam_date", params.ExamDate),
		zap.Int("sessions", len(result.Sessions)),
		zap.Int("warnings", len(result.Warnings)),
	)
	return response, nil
}

// ImportRoster parses an uploaded CSV into inline roster rows ready to
// feed Generate. Field-level problems surface on the later run, not
// here; the import only enforces CSV structure and the row cap.
func (s *DefenseScheduleService) ImportRoster(ctx context.Context, r io.Reader) (*dto.RosterImportResponse, error) {
	if s.roster == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "roster parser unavailable")
	}
	candidates, err := s.roster.Parse(r)
	if err != nil {
		return nil, err
	}

	rows := make([]dto.RosterRowRequest, 0, len(candidates))
	for _, c := range candidates {
		rows = append(rows, dto.RosterRowRequest{
			NRP:      c.NRP,
			Name:     c.Name,
			Title:    c.Title,
			Advisor1: c.Advisor1,
			Advisor2: c.Advisor2,
		})
	}
	s.writeAudit(ctx, "", models.AuditActionRosterImport, "")
	return &dto.RosterImportResponse{Rows: len(rows), Roster: rows}, nil
}

// ListBatches returns stored batches plus pagination data.
func (s *DefenseScheduleService) ListBatches(ctx context.Context, query dto.BatchQuery) ([]models.DefenseBatch, *models.Pagination, error) {
	filter := models.DefenseBatchFilter{
		ExamDate: query.ExamDate,
		Status:   query.Status,
		Page:     query.Page,
		PageSize: query.PageSize,
	}
	batches, total, err := s.batches.ListBatches(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list batches")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return batches, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// GetBatch loads one batch with its sessions, read through the cache.
func (s *DefenseScheduleService) GetBatch(ctx context.Context, id string) (*dto.BatchDetailResponse, error) {
	cacheKey := batchCachePrefix + id
	if s.cache != nil {
		var cached dto.BatchDetailResponse
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			if s.metrics != nil {
				s.metrics.RecordCacheOperation(true)
			}
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("batch cache read failed", zap.String("key", cacheKey), zap.Error(err))
		}
		if s.metrics != nil {
			s.metrics.RecordCacheOperation(false)
		}
	}

	batch, err := s.batches.FindBatchByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch")
	}
	sessions, err := s.batches.ListSessionsByBatch(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch sessions")
	}

	detail := &dto.BatchDetailResponse{Batch: *batch, Sessions: storedSessionsToDTO(sessions)}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, detail, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("batch cache write failed", zap.String("key", cacheKey), zap.Error(err))
		}
	}
	return detail, nil
}

// DeleteBatch removes a stored batch and its sessions.
func (s *DefenseScheduleService) DeleteBatch(ctx context.Context, userID, id string) error {
	if err := s.batches.DeleteBatch(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete batch")
	}
	if s.cache != nil {
		if err := s.cache.DeleteByPattern(ctx, batchCachePrefix+"*"); err != nil {
			s.logger.Warn("failed to invalidate batch cache", zap.Error(err))
		}
	}
	s.writeAudit(ctx, userID, models.AuditActionScheduleDelete, id)
	return nil
}

// ArchiveBatch moves a batch out of the active list.
func (s *DefenseScheduleService) ArchiveBatch(ctx context.Context, id string) error {
	if err := s.batches.UpdateBatchStatus(ctx, id, models.DefenseBatchStatusArchived); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive batch")
	}
	if s.cache != nil {
		if err := s.cache.DeleteByPattern(ctx, batchCachePrefix+"*"); err != nil {
			s.logger.Warn("failed to invalidate batch cache", zap.Error(err))
		}
	}
	return nil
}

func (s *DefenseScheduleService) paramsWithDefaults(req dto.GenerateScheduleRequest) scheduler.Params {
	params := scheduler.Params{
		ExamDate:         req.ExamDate,
		WindowStart:      req.WindowStart,
		WindowEnd:        req.WindowEnd,
		DurationMinutes:  req.DurationMinutes,
		SessionsPerClass: req.SessionsPerClass,
	}
	if params.WindowStart == "" {
		params.WindowStart = s.cfg.DefaultWindowStart
	}
	if params.WindowEnd == "" {
		params.WindowEnd = s.cfg.DefaultWindowEnd
	}
	if params.DurationMinutes <= 0 {
		params.DurationMinutes = s.cfg.DefaultDurationMinutes
	}
	if params.SessionsPerClass <= 0 {
		params.SessionsPerClass = s.cfg.DefaultSessionsPerRoom
	}
	return params
}

// resolveStudents maps every roster NRP to an existing student record.
// An NRP without a record fails the whole run; student registration is
// a separate concern and never happens as a side effect of scheduling.
func (s *DefenseScheduleService) resolveStudents(ctx context.Context, candidates []scheduler.Candidate) (map[string]models.Student, error) {
	nrps := make([]string, 0, len(candidates))
	for _, c := range candidates {
		nrps = append(nrps, c.NRP)
	}
	known, err := s.students.FindByNRPs(ctx, nrps)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve students")
	}
	for i, c := range candidates {
		// Blank NRPs are reported by the engine's own row validation.
		if c.NRP == "" {
			continue
		}
		if _, ok := known[c.NRP]; !ok {
			return nil, appErrors.Clone(appErrors.ErrRosterInvalid,
				fmt.Sprintf("row %d: nrp %s does not match any registered student", i+1, c.NRP))
		}
	}
	return known, nil
}

// persistRun writes the batch and inserts every session in a single
// transaction so a failure leaves nothing behind.
func (s *DefenseScheduleService) persistRun(ctx context.Context, userID string, params scheduler.Params, result *scheduler.Result, lecturerIDs map[string]string, known map[string]models.Student) (*models.DefenseBatch, error) {
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	warnings := result.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	warningsJSON, err := json.Marshal(warnings)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode warnings")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	batch := &models.DefenseBatch{
		ExamDate:         params.ExamDate,
		WindowStart:      params.WindowStart,
		WindowEnd:        params.WindowEnd,
		DurationMinutes:  params.DurationMinutes,
		SessionsPerClass: params.SessionsPerClass,
		Status:           models.DefenseBatchStatusScheduled,
		Warnings:         types.JSONText(warningsJSON),
	}
	if userID != "" {
		batch.CreatedBy = &userID
	}
	if err = s.batches.CreateBatch(ctx, tx, batch); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create batch")
		return nil, err
	}

	records := make([]models.DefenseSession, 0, len(result.Sessions))
	for _, session := range result.Sessions {
		student := known[session.NRP]

		record := models.DefenseSession{
			BatchID:       batch.ID,
			SequenceNo:    session.SequenceNo,
			ExamDate:      session.ExamDate,
			StartTime:     session.StartTime,
			EndTime:       session.EndTime,
			RoomNo:        session.RoomNo,
			ClassNo:       session.ClassNo,
			StudentID:     student.ID,
			NRP:           session.NRP,
			StudentName:   session.StudentName,
			Title:         session.Title,
			ModeratorID:   lecturerIDs[strings.ToLower(session.Moderator)],
			ModeratorName: session.Moderator,
			Advisor1Name:  session.Advisor1,
			Advisor2Name:  session.Advisor2,
		}
		if session.Examiner1 != nil {
			record.Examiner1Name = session.Examiner1
			if id, ok := lecturerIDs[strings.ToLower(*session.Examiner1)]; ok {
				record.Examiner1ID = &id
			}
		}
		if session.Examiner2 != nil {
			record.Examiner2Name = session.Examiner2
			if id, ok := lecturerIDs[strings.ToLower(*session.Examiner2)]; ok {
				record.Examiner2ID = &id
			}
		}
		records = append(records, record)
	}

	if err = s.batches.InsertSessions(ctx, tx, records); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist sessions")
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit schedule transaction")
		return nil, err
	}
	return batch, nil
}

func (s *DefenseScheduleService) observeRun(err error, warnings int, duration time.Duration) {
	if s.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "validation_error"
		if appErrors.FromError(err).Code == appErrors.ErrRoleConflict.Code {
			outcome = "role_conflict"
		}
	}
	s.metrics.ObserveScheduleRun(outcome, warnings, duration)
}

func (s *DefenseScheduleService) writeAudit(ctx context.Context, userID, action, resourceID string) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		Action:   action,
		Resource: "defense_schedule",
	}
	if userID != "" {
		log.UserID = &userID
	}
	if resourceID != "" {
		log.ResourceID = &resourceID
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}

func sessionsToDTO(sessions []scheduler.Session) []dto.SessionResponse {
	out := make([]dto.SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, dto.SessionResponse{
			SequenceNo:    s.SequenceNo,
			ExamDate:      s.ExamDate,
			StartTime:     s.StartTime,
			EndTime:       s.EndTime,
			RoomNo:        s.RoomNo,
			ClassNo:       s.ClassNo,
			NRP:           s.NRP,
			StudentName:   s.StudentName,
			Title:         s.Title,
			ModeratorName: s.Moderator,
			Advisor1Name:  s.Advisor1,
			Advisor2Name:  s.Advisor2,
			Examiner1Name: s.Examiner1,
			Examiner2Name: s.Examiner2,
		})
	}
	return out
}

func storedSessionsToDTO(sessions []models.DefenseSession) []dto.SessionResponse {
	out := make([]dto.SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, dto.SessionResponse{
			SequenceNo:    s.SequenceNo,
			ExamDate:      s.ExamDate,
			StartTime:     s.StartTime,
			EndTime:       s.EndTime,
			RoomNo:        s.RoomNo,
			ClassNo:       s.ClassNo,
			NRP:           s.NRP,
			StudentName:   s.StudentName,
			Title:         s.Title,
			ModeratorName: s.ModeratorName,
			Advisor1Name:  s.Advisor1Name,
			Advisor2Name:  s.Advisor2Name,
			Examiner1Name: s.Examiner1Name,
			Examiner2Name: s.Examiner2Name,
		})
	}
	return out
}
