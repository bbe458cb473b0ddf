package service

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidang-online/sidang-api/internal/dto"
	"github.com/sidang-online/sidang-api/internal/models"
	appErrors "github.com/sidang-online/sidang-api/pkg/errors"
	"github.com/sidang-online/sidang-api/pkg/jobs"
	"github.com/sidang-online/sidang-api/pkg/storage"
)

type exportBatchReaderStub struct {
	batch    *models.DefenseBatch
	sessions []models.DefenseSession
}

func (s exportBatchReaderStub) FindBatchByID(ctx context.Context, id string) (*models.DefenseBatch, error) {
	if s.batch == nil || s.batch.ID != id {
		return nil, appErrors.ErrNotFound
	}
	return s.batch, nil
}

func (s exportBatchReaderStub) ListSessionsByBatch(ctx context.Context, batchID string) ([]models.DefenseSession, error) {
	return s.sessions, nil
}

type exportStorageStub struct {
	savedName string
	savedData []byte
}

func (s *exportStorageStub) Save(filename string, data []byte) (string, error) {
	s.savedName = filename
	s.savedData = data
	return filename, nil
}

func (s *exportStorageStub) Open(filename string) (*os.File, error) { return nil, os.ErrNotExist }

func (s *exportStorageStub) Delete(filename string) error { return nil }

func (s *exportStorageStub) CleanupOlderThan(ttl time.Duration) ([]string, error) { return nil, nil }

type exportDispatcherStub struct {
	enqueued []jobs.Job
}

func (s *exportDispatcherStub) Enqueue(job jobs.Job) error {
	s.enqueued = append(s.enqueued, job)
	return nil
}

func exportFixture(t *testing.T) (*ExportService, *exportStorageStub, *exportDispatcherStub) {
	t.Helper()
	start := "09:00"
	end := "09:30"
	reader := exportBatchReaderStub{
		batch: &models.DefenseBatch{ID: "b1", ExamDate: "2026-09-14", WindowStart: "09:00", WindowEnd: "12:00"},
		sessions: []models.DefenseSession{
			{
				SequenceNo:    1,
				ExamDate:      "2026-09-14",
				StartTime:     &start,
				EndTime:       &end,
				RoomNo:        1,
				ClassNo:       1,
				NRP:           "5025201001",
				StudentName:   "Andi",
				Title:         "T1",
				ModeratorName: "Dr. Adi",
				Advisor1Name:  "Dr. Adi",
				Advisor2Name:  "Dr. Bima",
			},
		},
	}
	fileStore := &exportStorageStub{}
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	service := NewExportService(reader, fileStore, signer, ExportConfig{}, nil, nil, nil)
	queue := &exportDispatcherStub{}
	service.SetQueue(queue)
	return service, fileStore, queue
}

func TestExportServiceCreateJobQueuesExport(t *testing.T) {
	service, _, queue := exportFixture(t)

	job, err := service.CreateJob(context.Background(), "b1", dto.ExportScheduleRequest{Format: "CSV"})
	require.NoError(t, err)
	assert.Equal(t, "QUEUED", job.Status)
	assert.Equal(t, "csv", job.Format)
	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, job.JobID, queue.enqueued[0].ID)
}

func TestExportServiceCreateJobRejectsUnknownFormat(t *testing.T) {
	service, _, _ := exportFixture(t)

	_, err := service.CreateJob(context.Background(), "b1", dto.ExportScheduleRequest{Format: "xlsx"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestExportServiceCreateJobRejectsMissingBatch(t *testing.T) {
	service, _, _ := exportFixture(t)

	_, err := service.CreateJob(context.Background(), "missing", dto.ExportScheduleRequest{Format: "csv"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestExportServiceHandleRendersAndSigns(t *testing.T) {
	service, fileStore, queue := exportFixture(t)

	job, err := service.CreateJob(context.Background(), "b1", dto.ExportScheduleRequest{Format: "csv"})
	require.NoError(t, err)

	require.NoError(t, service.Handle(context.Background(), queue.enqueued[0]))

	done, err := service.GetJob(job.JobID)
	require.NoError(t, err)
	assert.Equal(t, "DONE", done.Status)
	require.NotNil(t, done.URL)
	assert.Contains(t, *done.URL, "/api/v1/exports/download/")

	assert.Contains(t, fileStore.savedName, "schedules/2026-09-14_")
	assert.Contains(t, string(fileStore.savedData), "5025201001")
	assert.Contains(t, string(fileStore.savedData), "Dr. Adi")
}

func TestExportServiceGetJobUnknown(t *testing.T) {
	service, _, _ := exportFixture(t)

	_, err := service.GetJob("nonexistent")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
