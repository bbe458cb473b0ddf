package dto

import "github.com/sidang-online/sidang-api/internal/models"

// RosterRowRequest is one inline roster entry for a scheduling run.
type RosterRowRequest struct {
	NRP      string `json:"nrp" validate:"required"`
	Name     string `json:"name" validate:"required"`
	Title    string `json:"thesisTitle" validate:"required"`
	Advisor1 string `json:"advisor1Name" validate:"required"`
	Advisor2 string `json:"advisor2Name" validate:"required"`
}

// GenerateScheduleRequest instructs the engine to build a defense
// timetable for the given exam date. The roster travels inline;
// CSV uploads arrive through the import endpoint instead.
type GenerateScheduleRequest struct {
	ExamDate         string             `json:"examDate" validate:"required,datetime=2006-01-02"`
	WindowStart      string             `json:"windowStart" validate:"omitempty"`
	WindowEnd        string             `json:"windowEnd" validate:"omitempty"`
	DurationMinutes  int                `json:"durationMinutes" validate:"omitempty,min=1,max=240"`
	SessionsPerClass int                `json:"sessionsPerClass" validate:"omitempty,min=1,max=20"`
	Roster           []RosterRowRequest `json:"roster" validate:"required,min=1,dive"`
	DryRun           bool               `json:"dryRun"`
}

// SessionResponse is one scheduled defense slot.
type SessionResponse struct {
	SequenceNo    int     `json:"sequenceNo"`
	ExamDate      string  `json:"examDate"`
	StartTime     *string `json:"startTime"`
	EndTime       *string `json:"endTime"`
	RoomNo        int     `json:"roomNo"`
	ClassNo       int     `json:"classNo"`
	NRP           string  `json:"nrp"`
	StudentName   string  `json:"studentName"`
	Title         string  `json:"thesisTitle"`
	ModeratorName string  `json:"moderatorName"`
	Advisor1Name  string  `json:"advisor1Name"`
	Advisor2Name  string  `json:"advisor2Name"`
	Examiner1Name *string `json:"examiner1Name"`
	Examiner2Name *string `json:"examiner2Name"`
}

// GenerateScheduleResponse returns the produced timetable. BatchID is
// empty on dry runs, which skip persistence.
type GenerateScheduleResponse struct {
	BatchID  string            `json:"batchId,omitempty"`
	ExamDate string            `json:"examDate"`
	Sessions []SessionResponse `json:"sessions"`
	Warnings []string          `json:"warnings"`
}

// BatchQuery filters persisted batches.
type BatchQuery struct {
	ExamDate string `form:"examDate" json:"examDate"`
	Status   string `form:"status" json:"status"`
	Page     int    `form:"page" json:"page"`
	PageSize int    `form:"pageSize" json:"pageSize"`
}

// BatchDetailResponse bundles a stored batch with its sessions.
type BatchDetailResponse struct {
	Batch    models.DefenseBatch `json:"batch"`
	Sessions []SessionResponse   `json:"sessions"`
}

// RosterImportResponse reports an accepted CSV roster.
type RosterImportResponse struct {
	Rows     int                `json:"rows"`
	Roster   []RosterRowRequest `json:"roster"`
	Warnings []string           `json:"warnings,omitempty"`
}

// ExportScheduleRequest queues an export of a stored batch.
type ExportScheduleRequest struct {
	Format string `json:"format" validate:"required,oneof=csv pdf"`
}

// ExportJobResponse reports a queued or finished export.
type ExportJobResponse struct {
	JobID     string  `json:"jobId"`
	Status    string  `json:"status"`
	Format    string  `json:"format"`
	URL       *string `json:"url,omitempty"`
	Error     *string `json:"error,omitempty"`
	CreatedAt string  `json:"createdAt"`
}
