package handler

import (
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sidang-online/sidang-api/internal/dto"
	"github.com/sidang-online/sidang-api/internal/service"
	appErrors "github.com/sidang-online/sidang-api/pkg/errors"
	"github.com/sidang-online/sidang-api/pkg/response"
)

// ScheduleHandler wires the defense scheduling services to HTTP routes.
type ScheduleHandler struct {
	schedules *service.DefenseScheduleService
	exports   *service.ExportService
}

// NewScheduleHandler constructs a new ScheduleHandler.
func NewScheduleHandler(schedules *service.DefenseScheduleService, exports *service.ExportService) *ScheduleHandler {
	return &ScheduleHandler{schedules: schedules, exports: exports}
}

// Generate godoc
// @Summary Generate a defense schedule
// @Description Runs the scheduling engine for the inline roster. Set dryRun to preview without persisting.
// @Tags Defense Schedules
// @Accept json
// @Produce json
// @Param payload body dto.GenerateScheduleRequest true "Scheduling request"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /defense-schedules [post]
func (h *ScheduleHandler) Generate(c *gin.Context) {
	var req dto.GenerateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid scheduling payload"))
		return
	}

	userID := ""
	if claims := claimsFromContext(c); claims != nil {
		userID = claims.UserID
	}

	result, err := h.schedules.Generate(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if req.DryRun {
		response.JSON(c, http.StatusOK, result, nil)
		return
	}
	response.Created(c, result)
}

// ImportRoster godoc
// @Summary Import a roster CSV
// @Description Parses an uploaded CSV into inline roster rows ready for the generate endpoint.
// @Tags Defense Schedules
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Roster CSV"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /roster/import [post]
func (h *ScheduleHandler) ImportRoster(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "roster file required"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read roster file"))
		return
	}
	defer file.Close() //nolint:errcheck

	result, err := h.schedules.ImportRoster(c.Request.Context(), file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ListBatches godoc
// @Summary List schedule batches
// @Tags Defense Schedules
// @Produce json
// @Param examDate query string false "Filter by exam date (YYYY-MM-DD)"
// @Param status query string false "Filter by status (SCHEDULED, ARCHIVED)"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /defense-schedules [get]
func (h *ScheduleHandler) ListBatches(c *gin.Context) {
	var query dto.BatchQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid batch query"))
		return
	}

	batches, pagination, err := h.schedules.ListBatches(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, batches, pagination)
}

// GetBatch godoc
// @Summary Get a schedule batch with its sessions
// @Tags Defense Schedules
// @Produce json
// @Param id path string true "Batch ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /defense-schedules/{id} [get]
func (h *ScheduleHandler) GetBatch(c *gin.Context) {
	detail, err := h.schedules.GetBatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// DeleteBatch godoc
// @Summary Delete a schedule batch
// @Tags Defense Schedules
// @Param id path string true "Batch ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /defense-schedules/{id} [delete]
func (h *ScheduleHandler) DeleteBatch(c *gin.Context) {
	userID := ""
	if claims := claimsFromContext(c); claims != nil {
		userID = claims.UserID
	}
	if err := h.schedules.DeleteBatch(c.Request.Context(), userID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ArchiveBatch godoc
// @Summary Archive a schedule batch
// @Tags Defense Schedules
// @Param id path string true "Batch ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /defense-schedules/{id}/archive [post]
func (h *ScheduleHandler) ArchiveBatch(c *gin.Context) {
	if err := h.schedules.ArchiveBatch(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// CreateExport godoc
// @Summary Queue a batch export
// @Description Renders the batch to CSV or PDF in the background; poll the job endpoint for the download URL.
// @Tags Defense Schedules
// @Accept json
// @Produce json
// @Param id path string true "Batch ID"
// @Param payload body dto.ExportScheduleRequest true "Export request"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /defense-schedules/{id}/export [post]
func (h *ScheduleHandler) CreateExport(c *gin.Context) {
	var req dto.ExportScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export payload"))
		return
	}

	job, err := h.exports.CreateJob(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, job, nil)
}

// GetExportJob godoc
// @Summary Get export job status
// @Tags Defense Schedules
// @Produce json
// @Param jobId path string true "Export job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /exports/jobs/{jobId} [get]
func (h *ScheduleHandler) GetExportJob(c *gin.Context) {
	job, err := h.exports.GetJob(c.Param("jobId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// DownloadExport godoc
// @Summary Download a rendered export via signed token
// @Tags Defense Schedules
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Router /exports/download/{token} [get]
func (h *ScheduleHandler) DownloadExport(c *gin.Context) {
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}

	_, relPath, _, err := h.exports.ParseToken(token, false)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, http.StatusUnauthorized, "invalid or expired download token"))
		return
	}

	file, err := h.exports.Open(relPath)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "export file no longer available"))
		return
	}
	defer file.Close() //nolint:errcheck

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat export file"))
		return
	}

	mimeType := "text/csv"
	if strings.EqualFold(path.Ext(relPath), ".pdf") {
		mimeType = "application/pdf"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(relPath)))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, info.Size(), mimeType, file, nil)
}
