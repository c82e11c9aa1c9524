package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"fieldops.lk/internal/audit"
)

// AuditStore implements audit.Store on PostgreSQL. The retention cap is
// enforced at write time: the insert and the trim run in one transaction so a
// reader never observes more than max entries.
type AuditStore struct {
	db *sql.DB
}

var _ audit.Store = (*AuditStore)(nil)

func (s *AuditStore) Prepend(entry audit.Entry, max int) error {
	ctx := context.Background()

	var actorJSON []byte
	if entry.Actor != nil {
		raw, err := json.Marshal(entry.Actor)
		if err != nil {
			return fmt.Errorf("encode actor: %w", err)
		}
		actorJSON = raw
	}
	detailsJSON, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("encode details: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		insert into audit_logs (id, ts, entry_type, actor, details)
		values ($1,$2,$3,$4,$5)
	`, entry.ID, entry.Timestamp, string(entry.Type), actorJSON, detailsJSON); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		delete from audit_logs
		where seq not in (select seq from audit_logs order by seq desc limit $1)
	`, max); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *AuditStore) All() ([]audit.Entry, error) {
	rows, err := s.db.QueryContext(context.Background(), `
		select id, ts, entry_type, actor, details
		from audit_logs order by seq desc
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []audit.Entry
	for rows.Next() {
		var (
			e       audit.Entry
			typ     string
			actor   []byte
			details []byte
		)
		if err := rows.Scan(&e.ID, &e.Timestamp, &typ, &actor, &details); err != nil {
			return nil, err
		}
		e.Type = audit.EntryType(typ)
		if len(actor) > 0 {
			e.Actor = &audit.Actor{}
			if err := json.Unmarshal(actor, e.Actor); err != nil {
				return nil, fmt.Errorf("decode actor: %w", err)
			}
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("decode details: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *AuditStore) Reset() error {
	_, err := s.db.ExecContext(context.Background(), `truncate audit_logs`)
	return err
}
