package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fieldops.lk/internal/jobs"
	"fieldops.lk/internal/rbac"
)

type createJobRequest struct {
	Title       string `json:"title"`
	Location    string `json:"location"`
	Region      string `json:"region"`
	PaymentLKR  int64  `json:"payment_lkr"`
	Deadline    string `json:"deadline"`
	Description string `json:"description"`
}

type assignJobRequest struct {
	AssigneeID string `json:"assignee_id"`
}

type submitJobRequest struct {
	Attachments []string `json:"attachments"`
}

type rejectJobRequest struct {
	Reason string `json:"reason"`
}

type progressRequest struct {
	Progress int `json:"progress"`
}

type paymentRequest struct {
	PaymentLKR int64 `json:"payment_lkr"`
}

// jobView decorates a job record with its display identifier.
type jobView struct {
	jobs.Job
	DisplayID string `json:"display_id"`
}

func jobViewOf(j jobs.Job) jobView {
	return jobView{Job: j, DisplayID: j.DisplayID()}
}

func (a *API) handleJobsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listJobs(w, r)
	case http.MethodPost:
		a.createJob(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleJobResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/jobs/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	id, err := parseJobID(parts[0])
	if err != nil {
		writeError(w, r, http.StatusNotFound, "job not found")
		return
	}

	switch {
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.getJob(w, r, id)
	case len(parts) == 2:
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.jobAction(w, r, id, parts[1])
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func parseJobID(raw string) (jobs.JobID, error) {
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return 0, errors.New("invalid job id")
	}
	return jobs.JobID(v), nil
}

func (a *API) listJobs(w http.ResponseWriter, r *http.Request) {
	visible, err := a.jobs.ListVisible(r.Context())
	if err != nil {
		handleJobsError(w, r, err)
		return
	}
	out := make([]jobView, 0, len(visible))
	for _, j := range visible {
		out = append(out, jobViewOf(j))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": out,
		"as_of": time.Now().UTC(),
	})
}

func (a *API) createJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	params := jobs.CreateJobParams{
		Title:       req.Title,
		Location:    req.Location,
		Region:      req.Region,
		PaymentLKR:  req.PaymentLKR,
		Description: req.Description,
	}
	if strings.TrimSpace(req.Deadline) != "" {
		deadline, err := time.Parse(time.RFC3339, req.Deadline)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "deadline must be RFC3339")
			return
		}
		params.Deadline = deadline
	}
	job, err := a.jobs.Create(r.Context(), params)
	if err != nil {
		handleJobsError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/jobs/"+strconv.FormatInt(int64(job.ID), 10))
	writeJSON(w, http.StatusCreated, jobViewOf(job))
}

func (a *API) getJob(w http.ResponseWriter, r *http.Request, id jobs.JobID) {
	job, err := a.jobs.Get(r.Context(), id)
	if err != nil {
		handleJobsError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jobViewOf(job))
}

func (a *API) jobAction(w http.ResponseWriter, r *http.Request, id jobs.JobID, action string) {
	var (
		job jobs.Job
		err error
	)
	switch action {
	case "assign":
		var req assignJobRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		assignee, lookupErr := a.users.Get(r.Context(), strings.TrimSpace(req.AssigneeID))
		if lookupErr != nil {
			writeError(w, r, http.StatusBadRequest, "assignee not found")
			return
		}
		if assignee.Role != rbac.RoleTechLeadPartner {
			writeError(w, r, http.StatusBadRequest, "assignee must be a tech lead partner")
			return
		}
		job, err = a.jobs.Assign(r.Context(), id, assignee.ID, assignee.Name)
	case "accept":
		job, err = a.jobs.Accept(r.Context(), id)
	case "progress":
		var req progressRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		job, err = a.jobs.UpdateProgress(r.Context(), id, req.Progress)
	case "submit":
		var req submitJobRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		job, err = a.jobs.Submit(r.Context(), id, req.Attachments)
	case "approve":
		job, err = a.jobs.Approve(r.Context(), id)
	case "reject":
		var req rejectJobRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		job, err = a.jobs.Reject(r.Context(), id, req.Reason)
	case "payment":
		var req paymentRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		job, err = a.jobs.SetPayment(r.Context(), id, req.PaymentLKR)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if err != nil {
		handleJobsError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jobViewOf(job))
}

func handleJobsError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, jobs.ErrInvalidInput),
		errors.Is(err, jobs.ErrNoAttachments),
		errors.Is(err, jobs.ErrEmptyReason):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, jobs.ErrInvalidTransition):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, jobs.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "job not found")
	case errors.Is(err, jobs.ErrPermissionDenied), errors.Is(err, jobs.ErrNotAssignee):
		writeError(w, r, http.StatusForbidden, "permission denied")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
