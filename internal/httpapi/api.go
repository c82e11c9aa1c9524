package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"fieldops.lk/internal/audit"
	"fieldops.lk/internal/directory"
	"fieldops.lk/internal/jobs"
	"fieldops.lk/internal/mailer"
	"fieldops.lk/internal/obs"
	"fieldops.lk/internal/poller"
	"fieldops.lk/internal/session"
)

// ReadyProbe checks backing-store readiness (ping DB when one is attached).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Config carries the API's collaborators. Mail may be nil; the OTP endpoints
// then answer 503.
type Config struct {
	Users      *directory.Service
	Jobs       *jobs.Engine
	Trail      *audit.Log
	Sessions   *session.Manager
	Changes    *poller.Poller
	Mail       *mailer.Client
	ReadyProbe ReadyProbe
	Version    string
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	users      *directory.Service
	jobs       *jobs.Engine
	trail      *audit.Log
	sessions   *session.Manager
	changes    *poller.Poller
	mail       *mailer.Client
	readyProbe ReadyProbe
	version    string

	otp *otpVault
}

// New wires the routes.
func New(cfg Config) *API {
	a := &API{
		mux:        http.NewServeMux(),
		users:      cfg.Users,
		jobs:       cfg.Jobs,
		trail:      cfg.Trail,
		sessions:   cfg.Sessions,
		changes:    cfg.Changes,
		mail:       cfg.Mail,
		readyProbe: cfg.ReadyProbe,
		version:    cfg.Version,
		otp:        newOTPVault(),
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// auth
	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/auth/logout", a.handleLogout)

	// user directory
	a.mux.HandleFunc("/v1/users", a.handleUsersCollection)
	a.mux.HandleFunc("/v1/users/", a.handleUserResource)

	// jobs
	a.mux.HandleFunc("/v1/jobs", a.handleJobsCollection)
	a.mux.HandleFunc("/v1/jobs/", a.handleJobResource)

	// audit trail
	a.mux.HandleFunc("/v1/audit", a.handleAudit)
	a.mux.HandleFunc("/v1/audit/export", a.handleAuditExport)

	// change feed
	a.mux.HandleFunc("/v1/changes", a.handleChanges)
	a.mux.HandleFunc("/v1/changes/stream", a.ChangeStream)

	// self-service profile
	a.mux.HandleFunc("/v1/profile", a.handleProfile)
	a.mux.HandleFunc("/v1/profile/password-otp", a.handlePasswordOTP)
	a.mux.HandleFunc("/v1/profile/password", a.handlePasswordChange)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped http.Handler.
func (a *API) Handler() http.Handler {
	h := a.withAuth(a.mux)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, 40, 20)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = Logging(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "fieldops-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "fieldops-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}
