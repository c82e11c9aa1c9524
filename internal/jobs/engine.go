package jobs

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"fieldops.lk/internal/audit"
	"fieldops.lk/internal/obs"
	"fieldops.lk/internal/rbac"
)

// Engine drives the job lifecycle:
//
//	assigned -> in_progress -> pending_approval -> completed
//	                 ^               |
//	                 +--- reject ----+
//
// Every transition is permission-checked against the context principal and
// recorded on the audit trail. The engine serializes read-modify-write cycles
// with a single mutex so concurrent callers cannot interleave a stale read
// with a write.
type Engine struct {
	mu    sync.Mutex
	store Store
	trail *audit.Log
	now   func() time.Time
}

// Option configures Engine behavior.
type Option func(*Engine)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(e *Engine) {
		if fn != nil {
			e.now = fn
		}
	}
}

// NewEngine constructs an Engine.
func NewEngine(store Store, trail *audit.Log, opts ...Option) *Engine {
	e := &Engine{store: store, trail: trail, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) denied(ctx context.Context, action string, id JobID) error {
	details := map[string]any{
		"resource": "jobs",
		"action":   action,
	}
	if id != 0 {
		details["job_id"] = FormatID(id)
	}
	e.trail.Record(ctx, audit.TypeAccessDenied, details)
	return ErrPermissionDenied
}

// Create registers a new job in the assigned state. Requires create_jobs.
func (e *Engine) Create(ctx context.Context, params CreateJobParams) (Job, error) {
	actor, ok := rbac.PrincipalFromContext(ctx)
	if !ok {
		return Job{}, ErrPermissionDenied
	}
	if !actor.HasPermission(rbac.PermCreateJobs) {
		return Job{}, e.denied(ctx, "create_job", 0)
	}
	params.Title = strings.TrimSpace(params.Title)
	params.Location = strings.TrimSpace(params.Location)
	params.Region = strings.TrimSpace(params.Region)
	if params.Title == "" || params.Location == "" {
		return Job{}, fmt.Errorf("%w: title and location are required", ErrInvalidInput)
	}
	if params.PaymentLKR < 0 {
		return Job{}, fmt.Errorf("%w: payment must not be negative", ErrInvalidInput)
	}
	// Regional managers can only open work inside their own region.
	if actor.Role == rbac.RoleRegionalManager {
		if params.Region == "" {
			params.Region = actor.Region
		}
		if !strings.EqualFold(params.Region, actor.Region) {
			return Job{}, e.denied(ctx, "create_job", 0)
		}
	}
	job := Job{
		Title:       params.Title,
		Location:    params.Location,
		Region:      params.Region,
		PaymentLKR:  params.PaymentLKR,
		Deadline:    params.Deadline,
		Description: strings.TrimSpace(params.Description),
		Status:      StatusAssigned,
		CreatedBy:   actor.UserID,
		CreatedAt:   e.now().UTC(),
	}
	created, err := e.store.Insert(ctx, job)
	if err != nil {
		return Job{}, err
	}
	e.trail.Record(ctx, audit.TypeJobCreate, map[string]any{
		"job_id": created.DisplayID(),
		"title":  created.Title,
		"region": created.Region,
	})
	obs.CountJobTransition("create")
	return created, nil
}

// Assign hands the job to a field partner. Requires assign_jobs. The partner
// identity is resolved by the caller; the engine only records the reference
// and the denormalized display name.
func (e *Engine) Assign(ctx context.Context, id JobID, assigneeID, assigneeName string) (Job, error) {
	actor, ok := rbac.PrincipalFromContext(ctx)
	if !ok {
		return Job{}, ErrPermissionDenied
	}
	if !actor.HasPermission(rbac.PermAssignJobs) {
		return Job{}, e.denied(ctx, "assign_job", id)
	}
	if strings.TrimSpace(assigneeID) == "" {
		return Job{}, fmt.Errorf("%w: assignee is required", ErrInvalidInput)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	job, err := e.store.Get(ctx, id)
	if err != nil {
		return Job{}, err
	}
	if job.Status == StatusCompleted {
		return Job{}, fmt.Errorf("%w: cannot reassign a completed job", ErrInvalidTransition)
	}
	job.AssigneeID = assigneeID
	job.Partner = assigneeName
	if err := e.store.Update(ctx, job); err != nil {
		return Job{}, err
	}
	e.trail.Record(ctx, audit.TypeJobAssign, map[string]any{
		"job_id":      job.DisplayID(),
		"assigned_to": assigneeName,
		"assignee_id": assigneeID,
	})
	obs.CountJobTransition("assign")
	return job, nil
}

// Accept moves an assigned job to in_progress. Only the assigned partner may
// accept, and only from the assigned state.
func (e *Engine) Accept(ctx context.Context, id JobID) (Job, error) {
	actor, ok := rbac.PrincipalFromContext(ctx)
	if !ok {
		return Job{}, ErrPermissionDenied
	}
	if !actor.HasPermission(rbac.PermUpdateJobStatus) {
		return Job{}, e.denied(ctx, "accept_job", id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	job, err := e.store.Get(ctx, id)
	if err != nil {
		return Job{}, err
	}
	if job.AssigneeID != actor.UserID {
		return Job{}, ErrNotAssignee
	}
	if job.Status != StatusAssigned {
		return Job{}, fmt.Errorf("%w: accept from %s", ErrInvalidTransition, job.Status)
	}
	job.Status = StatusInProgress
	if err := e.store.Update(ctx, job); err != nil {
		return Job{}, err
	}
	e.trail.Record(ctx, audit.TypeJobUpdate, map[string]any{
		"job_id": job.DisplayID(),
		"status": string(job.Status),
	})
	obs.CountJobTransition("accept")
	return job, nil
}

// UpdateProgress records a completion percentage on an in_progress job.
// Only the assigned partner may report progress.
func (e *Engine) UpdateProgress(ctx context.Context, id JobID, progress int) (Job, error) {
	actor, ok := rbac.PrincipalFromContext(ctx)
	if !ok {
		return Job{}, ErrPermissionDenied
	}
	if !actor.HasPermission(rbac.PermUpdateJobStatus) {
		return Job{}, e.denied(ctx, "update_progress", id)
	}
	if progress < 0 || progress > 100 {
		return Job{}, fmt.Errorf("%w: progress must be 0-100", ErrInvalidInput)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	job, err := e.store.Get(ctx, id)
	if err != nil {
		return Job{}, err
	}
	if job.AssigneeID != actor.UserID {
		return Job{}, ErrNotAssignee
	}
	if job.Status != StatusInProgress {
		return Job{}, fmt.Errorf("%w: progress updates only while in_progress", ErrInvalidTransition)
	}
	job.Progress = progress
	if err := e.store.Update(ctx, job); err != nil {
		return Job{}, err
	}
	e.trail.Record(ctx, audit.TypeJobUpdate, map[string]any{
		"job_id":   job.DisplayID(),
		"progress": progress,
	})
	return job, nil
}

// Submit moves an in_progress job to pending_approval. The assigned partner
// must attach at least one proof photo or document; the attachments replace
// the set from any earlier (rejected) submission. A standing rejection reason
// is deliberately left in place so reviewers still see it on resubmission.
func (e *Engine) Submit(ctx context.Context, id JobID, attachments []string) (Job, error) {
	actor, ok := rbac.PrincipalFromContext(ctx)
	if !ok {
		return Job{}, ErrPermissionDenied
	}
	if !actor.HasPermission(rbac.PermUpdateJobStatus) {
		return Job{}, e.denied(ctx, "submit_job", id)
	}
	if len(attachments) == 0 {
		return Job{}, ErrNoAttachments
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	job, err := e.store.Get(ctx, id)
	if err != nil {
		return Job{}, err
	}
	if job.AssigneeID != actor.UserID {
		return Job{}, ErrNotAssignee
	}
	if job.Status != StatusInProgress {
		return Job{}, fmt.Errorf("%w: submit from %s", ErrInvalidTransition, job.Status)
	}
	now := e.now().UTC()
	job.Status = StatusPendingApproval
	job.Progress = 100
	job.Attachments = append([]string(nil), attachments...)
	job.Photos = len(attachments)
	job.SubmittedAt = &now
	if err := e.store.Update(ctx, job); err != nil {
		return Job{}, err
	}
	e.trail.Record(ctx, audit.TypeJobUpdate, map[string]any{
		"job_id":      job.DisplayID(),
		"status":      string(job.Status),
		"attachments": len(attachments),
	})
	e.trail.Record(ctx, audit.TypeDocumentUpload, map[string]any{
		"job_id": job.DisplayID(),
		"count":  len(attachments),
	})
	obs.CountJobTransition("submit")
	return job, nil
}

// Approve completes a pending_approval job. Requires approve_jobs. Approval
// is terminal and clears any rejection reason left from an earlier review.
func (e *Engine) Approve(ctx context.Context, id JobID) (Job, error) {
	actor, ok := rbac.PrincipalFromContext(ctx)
	if !ok {
		return Job{}, ErrPermissionDenied
	}
	if !actor.HasPermission(rbac.PermApproveJobs) {
		return Job{}, e.denied(ctx, "approve_job", id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	job, err := e.store.Get(ctx, id)
	if err != nil {
		return Job{}, err
	}
	if job.Status != StatusPendingApproval {
		return Job{}, fmt.Errorf("%w: approve from %s", ErrInvalidTransition, job.Status)
	}
	now := e.now().UTC()
	job.Status = StatusCompleted
	job.ApprovedBy = actor.UserID
	job.ApprovedAt = &now
	job.RejectedBy = ""
	job.RejectedAt = nil
	job.RejectionReason = ""
	if err := e.store.Update(ctx, job); err != nil {
		return Job{}, err
	}
	e.trail.Record(ctx, audit.TypeJobApprove, map[string]any{
		"job_id": job.DisplayID(),
	})
	obs.CountJobTransition("approve")
	return job, nil
}

// Reject returns a pending_approval job to in_progress for rework. Requires
// approve_jobs and a non-empty reason. The reason stays on the record until a
// later approval clears it.
func (e *Engine) Reject(ctx context.Context, id JobID, reason string) (Job, error) {
	actor, ok := rbac.PrincipalFromContext(ctx)
	if !ok {
		return Job{}, ErrPermissionDenied
	}
	if !actor.HasPermission(rbac.PermApproveJobs) {
		return Job{}, e.denied(ctx, "reject_job", id)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Job{}, ErrEmptyReason
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	job, err := e.store.Get(ctx, id)
	if err != nil {
		return Job{}, err
	}
	if job.Status != StatusPendingApproval {
		return Job{}, fmt.Errorf("%w: reject from %s", ErrInvalidTransition, job.Status)
	}
	now := e.now().UTC()
	job.Status = StatusInProgress
	job.RejectedBy = actor.UserID
	job.RejectedAt = &now
	job.RejectionReason = reason
	if err := e.store.Update(ctx, job); err != nil {
		return Job{}, err
	}
	e.trail.Record(ctx, audit.TypeJobReject, map[string]any{
		"job_id": job.DisplayID(),
		"reason": reason,
	})
	obs.CountJobTransition("reject")
	return job, nil
}

// SetPayment records the payment amount for a job. Requires define_payments.
func (e *Engine) SetPayment(ctx context.Context, id JobID, amountLKR int64) (Job, error) {
	actor, ok := rbac.PrincipalFromContext(ctx)
	if !ok {
		return Job{}, ErrPermissionDenied
	}
	if !actor.HasPermission(rbac.PermDefinePayments) {
		return Job{}, e.denied(ctx, "define_payment", id)
	}
	if amountLKR < 0 {
		return Job{}, fmt.Errorf("%w: payment must not be negative", ErrInvalidInput)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	job, err := e.store.Get(ctx, id)
	if err != nil {
		return Job{}, err
	}
	job.PaymentLKR = amountLKR
	if err := e.store.Update(ctx, job); err != nil {
		return Job{}, err
	}
	e.trail.Record(ctx, audit.TypePaymentDefine, map[string]any{
		"job_id":      job.DisplayID(),
		"payment_lkr": amountLKR,
	})
	return job, nil
}

// Get returns a single job, subject to the caller's visibility.
func (e *Engine) Get(ctx context.Context, id JobID) (Job, error) {
	actor, ok := rbac.PrincipalFromContext(ctx)
	if !ok {
		return Job{}, ErrPermissionDenied
	}
	job, err := e.store.Get(ctx, id)
	if err != nil {
		return Job{}, err
	}
	if !visible(actor, job) {
		return Job{}, ErrNotFound
	}
	return job, nil
}

// ListVisible returns the jobs the context principal may see, newest first.
// Business support sees everything despite holding no view permission: the
// assignment workflow needs the full board.
func (e *Engine) ListVisible(ctx context.Context) ([]Job, error) {
	actor, ok := rbac.PrincipalFromContext(ctx)
	if !ok {
		return nil, ErrPermissionDenied
	}
	all, err := e.store.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []Job
	for _, j := range all {
		if visible(actor, j) {
			out = append(out, j)
		}
	}
	sortJobs(out)
	return out, nil
}

func visible(actor rbac.Principal, j Job) bool {
	switch {
	case actor.HasPermission(rbac.PermViewAllJobs):
		return true
	case actor.Role == rbac.RoleBusinessSupport:
		return true
	case actor.HasPermission(rbac.PermViewRegionalJobs):
		return strings.EqualFold(j.Region, actor.Region)
	case actor.HasPermission(rbac.PermViewAssignedJobs):
		return j.AssigneeID == actor.UserID
	default:
		return false
	}
}

func sortJobs(jobs []Job) {
	sort.SliceStable(jobs, func(i, j int) bool {
		return jobs[i].ID > jobs[j].ID
	})
}
