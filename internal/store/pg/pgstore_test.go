package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"fieldops.lk/internal/audit"
	"fieldops.lk/internal/directory"
	"fieldops.lk/internal/jobs"
)

func TestUserInsertMapsUniqueViolation(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("insert into users").
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})

	store := NewStore(db).Users()
	err = store.Insert(context.Background(), directory.User{ID: "USER-1", Username: "admin"})
	if !errors.Is(err, directory.ErrUsernameTaken) {
		t.Fatalf("err = %v, want ErrUsernameTaken", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserGetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("select .* from users where id=").
		WithArgs("USER-404").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = NewStore(db).Users().Get(context.Background(), "USER-404")
	if !errors.Is(err, directory.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestJobInsertReturnsSequence(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("insert into jobs").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	created, err := NewStore(db).Jobs().Insert(context.Background(), jobs.Job{
		Title:     "Fiber splice",
		Location:  "Galle",
		Status:    jobs.StatusAssigned,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if created.ID != 7 {
		t.Fatalf("id = %d, want 7", created.ID)
	}
	if got := created.DisplayID(); got != "JOB-2024-007" {
		t.Fatalf("display id = %s", got)
	}
}

func TestJobGetNormalizesLegacyStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	cols := []string{"id", "title", "location", "region", "payment_lkr", "deadline",
		"partner", "assignee_id", "description", "status", "progress", "attachments",
		"photos", "documents", "created_by", "created_at", "submitted_at",
		"approved_by", "approved_at", "rejected_by", "rejected_at", "rejection_reason"}
	mock.ExpectQuery("select .* from jobs where id=").
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			int64(3), "Drop wire", "Galle", "Southern", int64(15000), nil,
			"Nimal Perera", "USER-P1", "", "progress", 40, []byte(`["a.jpg"]`),
			1, 0, "USER-BS1", time.Now().UTC(), nil, "", nil, "", nil, ""))

	job, err := NewStore(db).Jobs().Get(context.Background(), 3)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if job.Status != jobs.StatusInProgress {
		t.Fatalf("status = %s, want in_progress", job.Status)
	}
	if len(job.Attachments) != 1 || job.Attachments[0] != "a.jpg" {
		t.Fatalf("attachments = %v", job.Attachments)
	}
}

func TestAuditPrependTrimsInOneTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("insert into audit_logs").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("delete from audit_logs").
		WithArgs(1000).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	store := NewStore(db).Audit()
	entry := audit.Entry{
		ID:        "LOG-1",
		Timestamp: time.Now().UTC(),
		Type:      audit.TypeLogin,
		Actor:     &audit.Actor{ID: "USER-1", Name: "Admin"},
		Details:   map[string]any{"session_id": "SES-1"},
	}
	if err := store.Prepend(entry, 1000); err != nil {
		t.Fatalf("Prepend: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
