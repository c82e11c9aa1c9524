package pg

import (
	"context"
	"database/sql"
	"errors"

	"fieldops.lk/internal/jobs"
)

// JobStore implements jobs.Store on PostgreSQL. The id column is a bigserial;
// Insert returns the record with the database-assigned sequence number.
type JobStore struct {
	db *sql.DB
}

var _ jobs.Store = (*JobStore)(nil)

const jobColumns = `id, title, location, region, payment_lkr, deadline, partner, assignee_id, description, status, progress, attachments, photos, documents, created_by, created_at, submitted_at, approved_by, approved_at, rejected_by, rejected_at, rejection_reason`

func scanJob(row interface{ Scan(...any) error }) (jobs.Job, error) {
	var (
		j           jobs.Job
		status      string
		deadline    sql.NullTime
		submittedAt sql.NullTime
		approvedAt  sql.NullTime
		rejectedAt  sql.NullTime
		attachments []byte
	)
	err := row.Scan(&j.ID, &j.Title, &j.Location, &j.Region, &j.PaymentLKR,
		&deadline, &j.Partner, &j.AssigneeID, &j.Description, &status, &j.Progress,
		&attachments, &j.Photos, &j.Documents, &j.CreatedBy, &j.CreatedAt,
		&submittedAt, &j.ApprovedBy, &approvedAt, &j.RejectedBy, &rejectedAt,
		&j.RejectionReason)
	if err != nil {
		return jobs.Job{}, err
	}
	j.Status = jobs.NormalizeStatus(status)
	if deadline.Valid {
		j.Deadline = deadline.Time
	}
	if submittedAt.Valid {
		t := submittedAt.Time
		j.SubmittedAt = &t
	}
	if approvedAt.Valid {
		t := approvedAt.Time
		j.ApprovedAt = &t
	}
	if rejectedAt.Valid {
		t := rejectedAt.Time
		j.RejectedAt = &t
	}
	if len(attachments) > 0 {
		if err := decodeTextArray(attachments, &j.Attachments); err != nil {
			return jobs.Job{}, err
		}
	}
	return j, nil
}

func (s *JobStore) Insert(ctx context.Context, j jobs.Job) (jobs.Job, error) {
	err := s.db.QueryRowContext(ctx, `
		insert into jobs (title, location, region, payment_lkr, deadline, partner,
			assignee_id, description, status, progress, attachments, photos,
			documents, created_by, created_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		returning id
	`, j.Title, j.Location, j.Region, j.PaymentLKR, nullTime(j.Deadline), j.Partner,
		j.AssigneeID, j.Description, string(j.Status), j.Progress,
		encodeTextArray(j.Attachments), j.Photos, j.Documents, j.CreatedBy,
		j.CreatedAt).Scan(&j.ID)
	if err != nil {
		return jobs.Job{}, err
	}
	return j, nil
}

func (s *JobStore) Get(ctx context.Context, id jobs.JobID) (jobs.Job, error) {
	row := s.db.QueryRowContext(ctx, `select `+jobColumns+` from jobs where id=$1`, int64(id))
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return jobs.Job{}, jobs.ErrNotFound
	}
	return j, err
}

func (s *JobStore) List(ctx context.Context) ([]jobs.Job, error) {
	rows, err := s.db.QueryContext(ctx, `select `+jobColumns+` from jobs order by id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []jobs.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (s *JobStore) Update(ctx context.Context, j jobs.Job) error {
	res, err := s.db.ExecContext(ctx, `
		update jobs set title=$2, location=$3, region=$4, payment_lkr=$5,
			deadline=$6, partner=$7, assignee_id=$8, description=$9, status=$10,
			progress=$11, attachments=$12, photos=$13, documents=$14,
			submitted_at=$15, approved_by=$16, approved_at=$17,
			rejected_by=$18, rejected_at=$19, rejection_reason=$20
		where id=$1
	`, int64(j.ID), j.Title, j.Location, j.Region, j.PaymentLKR,
		nullTime(j.Deadline), j.Partner, j.AssigneeID, j.Description,
		string(j.Status), j.Progress, encodeTextArray(j.Attachments), j.Photos,
		j.Documents, nullTimePtr(j.SubmittedAt), j.ApprovedBy,
		nullTimePtr(j.ApprovedAt), j.RejectedBy, nullTimePtr(j.RejectedAt),
		j.RejectionReason)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return jobs.ErrNotFound
	}
	return nil
}

func (s *JobStore) Delete(ctx context.Context, id jobs.JobID) error {
	res, err := s.db.ExecContext(ctx, `delete from jobs where id=$1`, int64(id))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return jobs.ErrNotFound
	}
	return nil
}
