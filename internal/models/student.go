package models

import "time"

// Student represents a mahasiswa registered for a thesis defense.
type Student struct {
	ID          string    `db:"id" json:"id"`
	NRP         string    `db:"nrp" json:"nrp"`
	FullName    string    `db:"full_name" json:"full_name"`
	ThesisTitle *string   `db:"thesis_title" json:"thesis_title,omitempty"`
	Email       *string   `db:"email" json:"email,omitempty"`
	Phone       *string   `db:"phone" json:"phone,omitempty"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
