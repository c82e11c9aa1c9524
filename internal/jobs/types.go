package jobs

import (
	"errors"
	"fmt"
	"time"
)

// JobID is the canonical internal job identifier: a plain sequence number.
// The display form is produced by FormatID only; the two representations are
// never compared against each other.
type JobID int64

// FormatID renders the display identifier, e.g. JOB-2024-007. Pure and
// deterministic; the 2024 series prefix is fixed for the platform rollout.
func FormatID(id JobID) string {
	return fmt.Sprintf("JOB-2024-%03d", id)
}

// Status is the canonical job lifecycle state.
type Status string

const (
	StatusAssigned        Status = "assigned"
	StatusInProgress      Status = "in_progress"
	StatusPendingApproval Status = "pending_approval"
	StatusCompleted       Status = "completed"
)

// NormalizeStatus maps legacy spellings found in older exports to the
// canonical vocabulary. Unknown strings are returned as-is and fail Valid.
func NormalizeStatus(raw string) Status {
	switch raw {
	case "progress":
		return StatusInProgress
	case "pending":
		return StatusPendingApproval
	default:
		return Status(raw)
	}
}

// Valid reports whether s is one of the four canonical states.
func (s Status) Valid() bool {
	switch s {
	case StatusAssigned, StatusInProgress, StatusPendingApproval, StatusCompleted:
		return true
	}
	return false
}

// Job is a unit of field work. PaymentLKR is in whole rupees, no floats.
// Partner is a denormalized display name alongside the AssigneeID reference.
type Job struct {
	ID          JobID     `json:"id"`
	Title       string    `json:"title"`
	Location    string    `json:"location"`
	Region      string    `json:"region"`
	PaymentLKR  int64     `json:"payment_lkr"`
	Deadline    time.Time `json:"deadline"`
	Partner     string    `json:"partner"`
	AssigneeID  string    `json:"assignee_id,omitempty"`
	Description string    `json:"description,omitempty"`
	Status      Status    `json:"status"`
	Progress    int       `json:"progress"`

	Attachments []string `json:"attachments,omitempty"`
	Photos      int      `json:"photos"`
	Documents   int      `json:"documents"`

	CreatedBy       string     `json:"created_by"`
	CreatedAt       time.Time  `json:"created_at"`
	SubmittedAt     *time.Time `json:"submitted_at,omitempty"`
	ApprovedBy      string     `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	RejectedBy      string     `json:"rejected_by,omitempty"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
}

// DisplayID is FormatID over the record's canonical id.
func (j Job) DisplayID() string { return FormatID(j.ID) }

var (
	ErrNotFound          = errors.New("jobs: job not found")
	ErrInvalidInput      = errors.New("jobs: invalid input")
	ErrInvalidTransition = errors.New("jobs: invalid status transition")
	ErrNoAttachments     = errors.New("jobs: at least one proof attachment is required")
	ErrEmptyReason       = errors.New("jobs: rejection reason is required")
	ErrPermissionDenied  = errors.New("jobs: permission denied")
	ErrNotAssignee       = errors.New("jobs: only the assigned partner may act on this job")
)

// CreateJobParams is the input for Engine.Create.
type CreateJobParams struct {
	Title       string
	Location    string
	Region      string
	PaymentLKR  int64
	Deadline    time.Time
	Description string
}
