package audit

import (
	"fmt"
	"time"

	"fieldops.lk/internal/rbac"
)

// EntryType enumerates the auditable action categories.
type EntryType string

const (
	TypeLogin          EntryType = "login"
	TypeLogout         EntryType = "logout"
	TypeSessionTimeout EntryType = "session_timeout"
	TypeJobCreate      EntryType = "job_create"
	TypeJobAssign      EntryType = "job_assign"
	TypeJobUpdate      EntryType = "job_update"
	TypeJobApprove     EntryType = "job_approve"
	TypeJobReject      EntryType = "job_reject"
	TypeUserCreate     EntryType = "user_create"
	TypeUserUpdate     EntryType = "user_update"
	TypeUserDeactivate EntryType = "user_deactivate"
	TypePasswordReset  EntryType = "password_reset"
	TypeSystemSettings EntryType = "system_settings"
	TypeDocumentUpload EntryType = "document_upload"
	TypePaymentDefine  EntryType = "payment_define"
	TypeAccessDenied   EntryType = "access_denied"
)

// Actor is the acting-user snapshot captured at write time. It is not a live
// reference; later changes to the user record do not alter history.
type Actor struct {
	ID   string    `json:"id"`
	Name string    `json:"name"`
	Role rbac.Role `json:"role"`
}

// Entry is an immutable audit record.
type Entry struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Type      EntryType      `json:"type"`
	Actor     *Actor         `json:"user"`
	Details   map[string]any `json:"details"`
}

// Message renders a human-readable line for operators.
func (e Entry) Message() string {
	ts := e.Timestamp.Format(time.RFC3339)
	name := "Unknown"
	if e.Actor != nil {
		name = e.Actor.Name
	}
	switch e.Type {
	case TypeLogin:
		return fmt.Sprintf("%s - %s logged in", ts, name)
	case TypeLogout:
		return fmt.Sprintf("%s - %s logged out", ts, name)
	case TypeSessionTimeout:
		return fmt.Sprintf("%s - %s session timed out", ts, name)
	case TypeJobCreate:
		return fmt.Sprintf("%s - %s created job %v", ts, name, e.Details["job_id"])
	case TypeJobAssign:
		return fmt.Sprintf("%s - %s assigned job %v to %v", ts, name, e.Details["job_id"], e.Details["assigned_to"])
	case TypeJobApprove:
		return fmt.Sprintf("%s - %s approved job %v", ts, name, e.Details["job_id"])
	case TypeJobReject:
		return fmt.Sprintf("%s - %s rejected job %v", ts, name, e.Details["job_id"])
	case TypeJobUpdate:
		return fmt.Sprintf("%s - %s updated job %v", ts, name, e.Details["job_id"])
	case TypeUserCreate:
		return fmt.Sprintf("%s - %s created user %v", ts, name, e.Details["user_id"])
	case TypeUserDeactivate:
		return fmt.Sprintf("%s - %s deactivated user %v", ts, name, e.Details["user_id"])
	case TypePasswordReset:
		return fmt.Sprintf("%s - %s reset password for user %v", ts, name, e.Details["user_id"])
	case TypeDocumentUpload:
		return fmt.Sprintf("%s - %s uploaded document for job %v", ts, name, e.Details["job_id"])
	case TypeAccessDenied:
		return fmt.Sprintf("%s - %s access denied to %v", ts, name, e.Details["resource"])
	default:
		return fmt.Sprintf("%s - %s performed %s", ts, name, e.Type)
	}
}
