package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sidang-online/sidang-api/internal/dto"
	"github.com/sidang-online/sidang-api/internal/models"
	appErrors "github.com/sidang-online/sidang-api/pkg/errors"
	"github.com/sidang-online/sidang-api/pkg/export"
	"github.com/sidang-online/sidang-api/pkg/jobs"
	"github.com/sidang-online/sidang-api/pkg/storage"
)

type exportBatchReader interface {
	FindBatchByID(ctx context.Context, id string) (*models.DefenseBatch, error)
	ListSessionsByBatch(ctx context.Context, batchID string) ([]models.DefenseSession, error)
}

type exportFileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type exportDispatcher interface {
	Enqueue(job jobs.Job) error
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title, subtitle string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

type exportJobStatus string

const (
	exportStatusQueued   exportJobStatus = "QUEUED"
	exportStatusDone     exportJobStatus = "DONE"
	exportStatusFailed   exportJobStatus = "FAILED"
	exportTypeSchedule                   = "defense_schedule"
	exportFilePrefix                     = "schedules"
)

type exportJob struct {
	ID        string
	BatchID   string
	Format    string
	Status    exportJobStatus
	URL       string
	RelPath   string
	Error     string
	CreatedAt time.Time
}

// ExportService renders stored batches to CSV or PDF through the
// worker queue and serves signed downloads. Job state lives in memory;
// a restart simply forgets unfinished exports and clients re-request.
type ExportService struct {
	batches exportBatchReader
	storage exportFileStorage
	queue   exportDispatcher
	csv     csvRenderer
	pdf     pdfRenderer
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     ExportConfig

	mu   sync.RWMutex
	jobs map[string]*exportJob
}

// NewExportService constructs an ExportService. The queue is attached
// afterwards via SetQueue because the queue's handler is this service.
func NewExportService(batches exportBatchReader, fileStore exportFileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		batches: batches,
		storage: fileStore,
		csv:     csv,
		pdf:     pdf,
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
		jobs:    make(map[string]*exportJob),
	}
}

// SetQueue attaches the job dispatcher.
func (s *ExportService) SetQueue(queue exportDispatcher) {
	s.queue = queue
}

// CreateJob validates the batch and queues an export.
func (s *ExportService) CreateJob(ctx context.Context, batchID string, req dto.ExportScheduleRequest) (*dto.ExportJobResponse, error) {
	format := strings.ToLower(req.Format)
	if format != "csv" && format != "pdf" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "export queue unavailable")
	}
	if _, err := s.batches.FindBatchByID(ctx, batchID); err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
	}

	job := &exportJob{
		ID:        uuid.NewString(),
		BatchID:   batchID,
		Format:    format,
		Status:    exportStatusQueued,
		CreatedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: exportTypeSchedule}); err != nil {
		s.failJob(job.ID, "failed to enqueue export")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export job")
	}
	return s.jobResponse(job), nil
}

// GetJob reports the state of a queued or finished export.
func (s *ExportService) GetJob(jobID string) (*dto.ExportJobResponse, error) {
	s.mu.RLock()
	job, ok := s.jobs[jobID]
	s.mu.RUnlock()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
	}
	return s.jobResponse(job), nil
}

// Handle is the queue worker entrypoint: it renders the batch and
// stores the signed download.
func (s *ExportService) Handle(ctx context.Context, queued jobs.Job) error {
	s.mu.RLock()
	job, ok := s.jobs[queued.ID]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("export job %s unknown", queued.ID)
	}

	batch, err := s.batches.FindBatchByID(ctx, job.BatchID)
	if err != nil {
		s.failJob(job.ID, "batch no longer exists")
		return fmt.Errorf("load batch %s: %w", job.BatchID, err)
	}
	sessions, err := s.batches.ListSessionsByBatch(ctx, job.BatchID)
	if err != nil {
		s.failJob(job.ID, "failed to load sessions")
		return fmt.Errorf("load sessions for %s: %w", job.BatchID, err)
	}

	dataset := buildScheduleDataset(sessions)
	title := "Thesis Defense Schedule"
	subtitle := fmt.Sprintf("Exam date %s, window %s-%s", batch.ExamDate, batch.WindowStart, batch.WindowEnd)

	var payload []byte
	switch job.Format {
	case "csv":
		payload, err = s.csv.Render(dataset)
	case "pdf":
		payload, err = s.pdf.Render(dataset, title, subtitle)
	default:
		err = fmt.Errorf("unsupported format %s", job.Format)
	}
	if err != nil {
		s.failJob(job.ID, "rendering failed")
		return err
	}

	filename := fmt.Sprintf("%s/%s_%s.%s", exportFilePrefix, batch.ExamDate, time.Now().UTC().Format("20060102_150405"), job.Format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		s.failJob(job.ID, "failed to store export")
		return err
	}

	token, _, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		s.failJob(job.ID, "failed to sign download url")
		return err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	s.mu.Lock()
	job.Status = exportStatusDone
	job.RelPath = relPath
	job.URL = fmt.Sprintf("%s/exports/download/%s", prefix, token)
	s.mu.Unlock()

	s.logger.Info("export rendered",
		zap.String("job_id", job.ID),
		zap.String("batch_id", job.BatchID),
		zap.String("format", job.Format),
		zap.String("path", relPath),
	)
	return nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Cleanup removes rendered files older than ttl (defaults to the
// configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) failJob(id, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok {
		job.Status = exportStatusFailed
		job.Error = message
	}
}

func (s *ExportService) jobResponse(job *exportJob) *dto.ExportJobResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	resp := &dto.ExportJobResponse{
		JobID:     job.ID,
		Status:    string(job.Status),
		Format:    job.Format,
		CreatedAt: job.CreatedAt.Format(time.RFC3339),
	}
	if job.URL != "" {
		url := job.URL
		resp.URL = &url
	}
	if job.Error != "" {
		msg := job.Error
		resp.Error = &msg
	}
	return resp
}

func buildScheduleDataset(sessions []models.DefenseSession) export.Dataset {
	dataset := export.Dataset{
		Headers: []string{"No", "Start", "End", "Room", "Class", "NRP", "Student", "Thesis Title", "Moderator", "Advisor 1", "Advisor 2", "Examiner 1", "Examiner 2"},
	}
	for _, session := range sessions {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"No":           fmt.Sprintf("%d", session.SequenceNo),
			"Start":        derefOr(session.StartTime, "-"),
			"End":          derefOr(session.EndTime, "-"),
			"Room":         fmt.Sprintf("%d", session.RoomNo),
			"Class":        fmt.Sprintf("%d", session.ClassNo),
			"NRP":          session.NRP,
			"Student":      session.StudentName,
			"Thesis Title": session.Title,
			"Moderator":    session.ModeratorName,
			"Advisor 1":    session.Advisor1Name,
			"Advisor 2":    session.Advisor2Name,
			"Examiner 1":   derefOr(session.Examiner1Name, "-"),
			"Examiner 2":   derefOr(session.Examiner2Name, "-"),
		})
	}
	return dataset
}

func derefOr(value *string, fallback string) string {
	if value == nil || *value == "" {
		return fallback
	}
	return *value
}
