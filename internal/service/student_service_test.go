package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidang-online/sidang-api/internal/models"
	appErrors "github.com/sidang-online/sidang-api/pkg/errors"
)

type studentRepoStub struct {
	byID        map[string]models.Student
	takenNRPs   map[string]bool
	created     []models.Student
	updated     []models.Student
	deactivated []string
}

func (s *studentRepoStub) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	var out []models.Student
	for _, st := range s.byID {
		out = append(out, st)
	}
	return out, len(out), nil
}

func (s *studentRepoStub) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if st, ok := s.byID[id]; ok {
		return &st, nil
	}
	return nil, sql.ErrNoRows
}

func (s *studentRepoStub) ExistsByNRP(ctx context.Context, nrp, excludeID string) (bool, error) {
	return s.takenNRPs[nrp], nil
}

func (s *studentRepoStub) Create(ctx context.Context, student *models.Student) error {
	student.ID = "new-id"
	s.created = append(s.created, *student)
	return nil
}

func (s *studentRepoStub) Update(ctx context.Context, student *models.Student) error {
	s.updated = append(s.updated, *student)
	return nil
}

func (s *studentRepoStub) Deactivate(ctx context.Context, id string) error {
	s.deactivated = append(s.deactivated, id)
	return nil
}

func TestStudentServiceCreateTrimsAndDefaults(t *testing.T) {
	repo := &studentRepoStub{}
	service := NewStudentService(repo, nil, nil)

	title := "  Stream Processing at Scale  "
	student, err := service.Create(context.Background(), CreateStudentRequest{
		NRP:         "  5025201001  ",
		FullName:    "  Andi Saputra  ",
		ThesisTitle: &title,
	})
	require.NoError(t, err)
	assert.Equal(t, "new-id", student.ID)
	assert.Equal(t, "5025201001", student.NRP)
	assert.Equal(t, "Andi Saputra", student.FullName)
	require.NotNil(t, student.ThesisTitle)
	assert.Equal(t, "Stream Processing at Scale", *student.ThesisTitle)
	assert.True(t, student.Active)
	assert.Nil(t, student.Email)
}

func TestStudentServiceCreateRejectsDuplicateNRP(t *testing.T) {
	repo := &studentRepoStub{takenNRPs: map[string]bool{"5025201001": true}}
	service := NewStudentService(repo, nil, nil)

	_, err := service.Create(context.Background(), CreateStudentRequest{
		NRP:      "5025201001",
		FullName: "Andi Saputra",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.created)
}

func TestStudentServiceCreateValidatesPayload(t *testing.T) {
	service := NewStudentService(&studentRepoStub{}, nil, nil)

	bad := "not-an-email"
	_, err := service.Create(context.Background(), CreateStudentRequest{
		NRP:      "5025201001",
		FullName: "Andi Saputra",
		Email:    &bad,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceUpdateTogglesActive(t *testing.T) {
	repo := &studentRepoStub{byID: map[string]models.Student{
		"st1": {ID: "st1", NRP: "5025201001", FullName: "Andi Saputra", Active: true},
	}}
	service := NewStudentService(repo, nil, nil)

	inactive := false
	student, err := service.Update(context.Background(), "st1", UpdateStudentRequest{
		NRP:      "5025201001",
		FullName: "Andi S. Pratama",
		Active:   &inactive,
	})
	require.NoError(t, err)
	assert.Equal(t, "Andi S. Pratama", student.FullName)
	assert.False(t, student.Active)
	require.Len(t, repo.updated, 1)
}

func TestStudentServiceGetNotFound(t *testing.T) {
	service := NewStudentService(&studentRepoStub{}, nil, nil)

	_, err := service.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceDeactivate(t *testing.T) {
	repo := &studentRepoStub{byID: map[string]models.Student{
		"st1": {ID: "st1", NRP: "5025201001", FullName: "Andi Saputra"},
	}}
	service := NewStudentService(repo, nil, nil)

	require.NoError(t, service.Deactivate(context.Background(), "st1"))
	assert.Equal(t, []string{"st1"}, repo.deactivated)

	err := service.Deactivate(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
