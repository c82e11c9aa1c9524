// Package pg implements the directory, jobs and audit stores over PostgreSQL
// using database/sql with the pgx stdlib driver.
package pg

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

// Store bundles the shared connection pool. The per-dataset stores are thin
// views over it.
type Store struct {
	db *sql.DB
}

// Open connects to Postgres with pool settings sized for the API workload.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewStore wraps an existing handle (used by tests with sqlmock).
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// Users returns the directory store view.
func (s *Store) Users() *UserStore { return &UserStore{db: s.db} }

// Jobs returns the job store view.
func (s *Store) Jobs() *JobStore { return &JobStore{db: s.db} }

// Audit returns the audit store view.
func (s *Store) Audit() *AuditStore { return &AuditStore{db: s.db} }

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}
