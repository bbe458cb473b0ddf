package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidang-online/sidang-api/internal/dto"
	"github.com/sidang-online/sidang-api/internal/models"
	"github.com/sidang-online/sidang-api/internal/roster"
	"github.com/sidang-online/sidang-api/internal/scheduler"
	"github.com/sidang-online/sidang-api/pkg/config"
	appErrors "github.com/sidang-online/sidang-api/pkg/errors"
)

type lecturerReaderStub struct {
	lecturers []models.Lecturer
	err       error
}

func (s lecturerReaderStub) ListActive(ctx context.Context) ([]models.Lecturer, error) {
	return s.lecturers, s.err
}

type studentStoreStub struct {
	known map[string]models.Student
}

func (s *studentStoreStub) FindByNRPs(ctx context.Context, nrps []string) (map[string]models.Student, error) {
	if s.known == nil {
		return map[string]models.Student{}, nil
	}
	return s.known, nil
}

type batchRepoStub struct {
	createdBatch  *models.DefenseBatch
	savedSessions []models.DefenseSession
	batches       map[string]*models.DefenseBatch
	sessions      map[string][]models.DefenseSession
	deleted       []string
}

func (s *batchRepoStub) CreateBatch(ctx context.Context, exec sqlx.ExtContext, batch *models.DefenseBatch) error {
	if batch.ID == "" {
		batch.ID = "batch-1"
	}
	s.createdBatch = batch
	return nil
}

func (s *batchRepoStub) InsertSessions(ctx context.Context, exec sqlx.ExtContext, sessions []models.DefenseSession) error {
	s.savedSessions = append(s.savedSessions, sessions...)
	return nil
}

func (s *batchRepoStub) ListBatches(ctx context.Context, filter models.DefenseBatchFilter) ([]models.DefenseBatch, int, error) {
	var out []models.DefenseBatch
	for _, b := range s.batches {
		out = append(out, *b)
	}
	return out, len(out), nil
}

func (s *batchRepoStub) FindBatchByID(ctx context.Context, id string) (*models.DefenseBatch, error) {
	if b, ok := s.batches[id]; ok {
		return b, nil
	}
	return nil, sql.ErrNoRows
}

func (s *batchRepoStub) ListSessionsByBatch(ctx context.Context, batchID string) ([]models.DefenseSession, error) {
	return s.sessions[batchID], nil
}

func (s *batchRepoStub) DeleteBatch(ctx context.Context, id string) error {
	if _, ok := s.batches[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.batches, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *batchRepoStub) UpdateBatchStatus(ctx context.Context, id string, status models.DefenseBatchStatus) error {
	b, ok := s.batches[id]
	if !ok {
		return sql.ErrNoRows
	}
	b.Status = status
	return nil
}

type cacheStub struct {
	store      map[string][]byte
	setKeys    []string
	deletedPat []string
}

func (c *cacheStub) Get(ctx context.Context, key string, dest interface{}) error {
	return appErrors.ErrCacheMiss
}

func (c *cacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.setKeys = append(c.setKeys, key)
	return nil
}

func (c *cacheStub) DeleteByPattern(ctx context.Context, pattern string) error {
	c.deletedPat = append(c.deletedPat, pattern)
	return nil
}

type auditStub struct {
	actions []string
}

func (a *auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.actions = append(a.actions, log.Action)
	return nil
}

type txProviderMock struct {
	db *sqlx.DB
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

func newTxProviderMock(t *testing.T) (*txProviderMock, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlx.NewDb(db, "sqlmock")}, mock
}

func schedulerTestConfig() config.SchedulerConfig {
	return config.SchedulerConfig{
		DefaultWindowStart:     "09:00",
		DefaultWindowEnd:       "12:00",
		DefaultDurationMinutes: 30,
		DefaultSessionsPerRoom: 3,
		CacheTTL:               time.Minute,
		MaxRosterRows:          200,
	}
}

func poolStub() lecturerReaderStub {
	return lecturerReaderStub{lecturers: []models.Lecturer{
		{ID: "l1", Name: "Dr. Adi", Active: true},
		{ID: "l2", Name: "Dr. Bima", Active: true},
		{ID: "l3", Name: "Dr. Cita", Active: true},
		{ID: "l4", Name: "Dr. Dewi", Active: true},
		{ID: "l5", Name: "Dr. Eko", Active: true},
		{ID: "l6", Name: "Dr. Fajar", Active: true},
	}}
}

func registeredStudents() *studentStoreStub {
	return &studentStoreStub{known: map[string]models.Student{
		"5025201001": {ID: "st1", NRP: "5025201001", FullName: "Andi"},
		"5025201002": {ID: "st2", NRP: "5025201002", FullName: "Budi"},
		"5025201003": {ID: "st3", NRP: "5025201003", FullName: "Citra"},
	}}
}

func generateRequest() dto.GenerateScheduleRequest {
	return dto.GenerateScheduleRequest{
		ExamDate: "2026-09-14",
		Roster: []dto.RosterRowRequest{
			{NRP: "5025201001", Name: "Andi", Title: "T1", Advisor1: "Dr. Adi", Advisor2: "Dr. Bima"},
			{NRP: "5025201002", Name: "Budi", Title: "T2", Advisor1: "Dr. Cita", Advisor2: "Dr. Dewi"},
			{NRP: "5025201003", Name: "Citra", Title: "T3", Advisor1: "Dr. Eko", Advisor2: "Dr. Fajar"},
		},
	}
}

func TestDefenseScheduleServiceGenerateDryRun(t *testing.T) {
	batches := &batchRepoStub{}
	service := NewDefenseScheduleService(scheduler.New(nil), poolStub(), registeredStudents(), batches, nil, nil, nil, nil, nil, nil, nil, schedulerTestConfig())

	req := generateRequest()
	req.DryRun = true

	resp, err := service.Generate(context.Background(), "admin-1", req)
	require.NoError(t, err)
	require.Len(t, resp.Sessions, 3)
	assert.Empty(t, resp.BatchID)
	assert.Nil(t, batches.createdBatch)
	assert.Empty(t, batches.savedSessions)
	assert.Equal(t, "09:00", *resp.Sessions[0].StartTime)
}

func TestDefenseScheduleServiceGeneratePersistsAtomically(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	batches := &batchRepoStub{}
	cache := &cacheStub{}
	audit := &auditStub{}
	service := NewDefenseScheduleService(scheduler.New(nil), poolStub(), registeredStudents(), batches, tx, cache, nil, audit, nil, nil, nil, schedulerTestConfig())

	resp, err := service.Generate(context.Background(), "admin-1", generateRequest())
	require.NoError(t, err)
	assert.Equal(t, "batch-1", resp.BatchID)

	require.NotNil(t, batches.createdBatch)
	assert.Equal(t, "2026-09-14", batches.createdBatch.ExamDate)
	assert.Equal(t, "09:00", batches.createdBatch.WindowStart)
	require.NotNil(t, batches.createdBatch.CreatedBy)
	assert.Equal(t, "admin-1", *batches.createdBatch.CreatedBy)

	require.Len(t, batches.savedSessions, 3)
	assert.Equal(t, "st1", batches.savedSessions[0].StudentID)
	for _, session := range batches.savedSessions {
		assert.NotEmpty(t, session.StudentID)
	}
	assert.Equal(t, "l1", batches.savedSessions[0].ModeratorID)

	assert.Contains(t, cache.deletedPat, "defense:batch:*")
	assert.Contains(t, audit.actions, models.AuditActionScheduleGenerate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDefenseScheduleServiceGenerateRejectsBadWindow(t *testing.T) {
	batches := &batchRepoStub{}
	service := NewDefenseScheduleService(scheduler.New(nil), poolStub(), registeredStudents(), batches, nil, nil, nil, nil, nil, nil, nil, schedulerTestConfig())

	req := generateRequest()
	req.WindowStart = "13:00"
	req.WindowEnd = "09:00"

	_, err := service.Generate(context.Background(), "admin-1", req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Nil(t, batches.createdBatch)
}

func TestDefenseScheduleServiceGenerateFailsOnUnregisteredNRP(t *testing.T) {
	tx, mock := newTxProviderMock(t)

	batches := &batchRepoStub{}
	students := registeredStudents()
	delete(students.known, "5025201002")
	service := NewDefenseScheduleService(scheduler.New(nil), poolStub(), students, batches, tx, nil, nil, nil, nil, nil, nil, schedulerTestConfig())

	_, err := service.Generate(context.Background(), "admin-1", generateRequest())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrRosterInvalid.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "5025201002")

	// Nothing may reach the database: no batch, no sessions, no
	// transaction.
	assert.Nil(t, batches.createdBatch)
	assert.Empty(t, batches.savedSessions)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDefenseScheduleServiceDryRunFailsOnUnregisteredNRP(t *testing.T) {
	batches := &batchRepoStub{}
	service := NewDefenseScheduleService(scheduler.New(nil), poolStub(), &studentStoreStub{}, batches, nil, nil, nil, nil, nil, nil, nil, schedulerTestConfig())

	req := generateRequest()
	req.DryRun = true

	_, err := service.Generate(context.Background(), "admin-1", req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrRosterInvalid.Code, appErrors.FromError(err).Code)
	assert.Nil(t, batches.createdBatch)
}

func TestDefenseScheduleServiceGetBatchFillsCache(t *testing.T) {
	cache := &cacheStub{}
	batches := &batchRepoStub{
		batches: map[string]*models.DefenseBatch{
			"b1": {ID: "b1", ExamDate: "2026-09-14", Status: models.DefenseBatchStatusScheduled},
		},
		sessions: map[string][]models.DefenseSession{
			"b1": {{ID: "s1", BatchID: "b1", SequenceNo: 1, NRP: "5025201001"}},
		},
	}
	service := NewDefenseScheduleService(scheduler.New(nil), poolStub(), &studentStoreStub{}, batches, nil, cache, nil, nil, nil, nil, nil, schedulerTestConfig())

	detail, err := service.GetBatch(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, "b1", detail.Batch.ID)
	require.Len(t, detail.Sessions, 1)
	assert.Contains(t, cache.setKeys, "defense:batch:b1")
}

func TestDefenseScheduleServiceGetBatchNotFound(t *testing.T) {
	service := NewDefenseScheduleService(scheduler.New(nil), poolStub(), &studentStoreStub{}, &batchRepoStub{}, nil, nil, nil, nil, nil, nil, nil, schedulerTestConfig())

	_, err := service.GetBatch(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestDefenseScheduleServiceDeleteBatch(t *testing.T) {
	cache := &cacheStub{}
	audit := &auditStub{}
	batches := &batchRepoStub{batches: map[string]*models.DefenseBatch{"b1": {ID: "b1"}}}
	service := NewDefenseScheduleService(scheduler.New(nil), poolStub(), &studentStoreStub{}, batches, nil, cache, nil, audit, nil, nil, nil, schedulerTestConfig())

	require.NoError(t, service.DeleteBatch(context.Background(), "admin-1", "b1"))
	assert.Equal(t, []string{"b1"}, batches.deleted)
	assert.Contains(t, audit.actions, models.AuditActionScheduleDelete)

	err := service.DeleteBatch(context.Background(), "admin-1", "b1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestDefenseScheduleServiceImportRoster(t *testing.T) {
	parser := roster.NewParser(10)
	service := NewDefenseScheduleService(scheduler.New(nil), poolStub(), &studentStoreStub{}, &batchRepoStub{}, nil, nil, parser, nil, nil, nil, nil, schedulerTestConfig())

	csv := strings.NewReader("nrp,name,thesis_title,advisor1_name,advisor2_name\n5025201001,Andi,T1,Dr. Adi,Dr. Bima\n")
	resp, err := service.ImportRoster(context.Background(), csv)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Rows)
	require.Len(t, resp.Roster, 1)
	assert.Equal(t, "Dr. Adi", resp.Roster[0].Advisor1)
}
