package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"fieldops.lk/internal/audit"
	"fieldops.lk/internal/rbac"
)

type auditEntryView struct {
	audit.Entry
	Message string `json:"message"`
}

func (a *API) handleAudit(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listAudit(w, r)
	case http.MethodDelete:
		a.clearAudit(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodDelete)
	}
}

// listAudit supports ?limit=, ?type=, ?user= and ?from=/?to= (RFC3339).
// Filters are exclusive; the first one present wins, in that order.
func (a *API) listAudit(w http.ResponseWriter, r *http.Request) {
	if !rbac.CanAccess(r.Context(), rbac.PermAuditLogs) {
		a.trail.Record(r.Context(), audit.TypeAccessDenied, map[string]any{
			"resource": "audit_logs",
			"action":   "view",
		})
		writeError(w, r, http.StatusForbidden, "permission denied")
		return
	}

	q := r.URL.Query()
	var (
		entries []audit.Entry
		err     error
	)
	switch {
	case strings.TrimSpace(q.Get("type")) != "":
		entries, err = a.trail.ByType(audit.EntryType(strings.TrimSpace(q.Get("type"))))
	case strings.TrimSpace(q.Get("user")) != "":
		entries, err = a.trail.ByUser(strings.TrimSpace(q.Get("user")))
	case strings.TrimSpace(q.Get("from")) != "" || strings.TrimSpace(q.Get("to")) != "":
		var from, to time.Time
		from, to, err = parseDateRange(q.Get("from"), q.Get("to"))
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		entries, err = a.trail.ByDateRange(from, to)
	default:
		limit := audit.MaxEntries
		if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
			limit, err = strconv.Atoi(raw)
			if err != nil || limit < 1 {
				writeError(w, r, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
		}
		entries, err = a.trail.Recent(limit)
	}
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]auditEntryView, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditEntryView{Entry: e, Message: e.Message()})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": out,
		"as_of": time.Now().UTC(),
	})
}

func parseDateRange(fromRaw, toRaw string) (time.Time, time.Time, error) {
	from := time.Time{}
	to := time.Now().UTC()
	if s := strings.TrimSpace(fromRaw); s != "" {
		v, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, time.Time{}, errInvalidDate("from")
		}
		from = v
	}
	if s := strings.TrimSpace(toRaw); s != "" {
		v, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, time.Time{}, errInvalidDate("to")
		}
		to = v
	}
	return from, to, nil
}

type errInvalidDate string

func (e errInvalidDate) Error() string { return string(e) + " must be RFC3339" }

func (a *API) clearAudit(w http.ResponseWriter, r *http.Request) {
	if err := a.trail.Clear(r.Context()); err != nil {
		writeError(w, r, http.StatusForbidden, "permission denied")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleAuditExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !rbac.CanAccess(r.Context(), rbac.PermAuditLogs) {
		writeError(w, r, http.StatusForbidden, "permission denied")
		return
	}
	data, err := a.trail.Export()
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="audit-log.json"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
