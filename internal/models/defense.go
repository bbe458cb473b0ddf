package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// DefenseBatchStatus represents lifecycle phases for a persisted
// scheduling run.
type DefenseBatchStatus string

const (
	DefenseBatchStatusScheduled DefenseBatchStatus = "SCHEDULED"
	DefenseBatchStatusArchived  DefenseBatchStatus = "ARCHIVED"
)

// DefenseBatch captures one scheduling run: its parameters and the set
// of sessions it produced. Sessions are inserted atomically with the
// batch inside one transaction.
type DefenseBatch struct {
	ID               string             `db:"id" json:"id"`
	ExamDate         string             `db:"exam_date" json:"exam_date"`
	WindowStart      string             `db:"window_start" json:"window_start"`
	WindowEnd        string             `db:"window_end" json:"window_end"`
	DurationMinutes  int                `db:"duration_minutes" json:"duration_minutes"`
	SessionsPerClass int                `db:"sessions_per_class" json:"sessions_per_class"`
	Status           DefenseBatchStatus `db:"status" json:"status"`
	Warnings         types.JSONText     `db:"warnings" json:"warnings,omitempty"`
	CreatedBy        *string            `db:"created_by" json:"created_by,omitempty"`
	CreatedAt        time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time          `db:"updated_at" json:"updated_at"`
}

// DefenseSession is one persisted timetable row: a student's defense
// slot with its room, class, moderator and examiners. Times are null
// when the session could not be placed inside the window.
type DefenseSession struct {
	ID            string    `db:"id" json:"id"`
	BatchID       string    `db:"batch_id" json:"batch_id"`
	SequenceNo    int       `db:"sequence_no" json:"sequence_no"`
	ExamDate      string    `db:"exam_date" json:"exam_date"`
	StartTime     *string   `db:"start_time" json:"start_time,omitempty"`
	EndTime       *string   `db:"end_time" json:"end_time,omitempty"`
	RoomNo        int       `db:"room_no" json:"room_no"`
	ClassNo       int       `db:"class_no" json:"class_no"`
	StudentID     string    `db:"student_id" json:"student_id"`
	NRP           string    `db:"nrp" json:"nrp"`
	StudentName   string    `db:"student_name" json:"student_name"`
	Title         string    `db:"title" json:"title"`
	ModeratorID   string    `db:"moderator_id" json:"moderator_id"`
	ModeratorName string    `db:"moderator_name" json:"moderator_name"`
	Advisor1Name  string    `db:"advisor1_name" json:"advisor1_name"`
	Advisor2Name  string    `db:"advisor2_name" json:"advisor2_name"`
	Examiner1ID   *string   `db:"examiner1_id" json:"examiner1_id,omitempty"`
	Examiner1Name *string   `db:"examiner1_name" json:"examiner1_name,omitempty"`
	Examiner2ID   *string   `db:"examiner2_id" json:"examiner2_id,omitempty"`
	Examiner2Name *string   `db:"examiner2_name" json:"examiner2_name,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// DefenseBatchFilter describes query params for listing batches.
type DefenseBatchFilter struct {
	ExamDate string
	Status   string
	Page     int
	PageSize int
}

// DefenseBatchDetail bundles a batch with its ordered sessions.
type DefenseBatchDetail struct {
	Batch    DefenseBatch     `json:"batch"`
	Sessions []DefenseSession `json:"sessions"`
}
