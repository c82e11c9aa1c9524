package pg

import (
	"context"
	"database/sql"
	"errors"

	"fieldops.lk/internal/directory"
	"fieldops.lk/internal/rbac"
)

// UserStore implements directory.Store on PostgreSQL.
type UserStore struct {
	db *sql.DB
}

var _ directory.Store = (*UserStore)(nil)

const userColumns = `id, username, name, email, password_hash, default_password_hash, role, region, profile_photo, created_by, created_at`

func scanUser(row interface{ Scan(...any) error }) (directory.User, error) {
	var u directory.User
	var role string
	err := row.Scan(&u.ID, &u.Username, &u.Name, &u.Email, &u.PasswordHash,
		&u.DefaultPasswordHash, &role, &u.Region, &u.ProfilePhoto, &u.CreatedBy, &u.CreatedAt)
	if err != nil {
		return directory.User{}, err
	}
	u.Role = rbac.Role(role)
	return u, nil
}

func (s *UserStore) Insert(ctx context.Context, u directory.User) error {
	_, err := s.db.ExecContext(ctx, `
		insert into users (`+userColumns+`)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, u.ID, u.Username, u.Name, u.Email, u.PasswordHash, u.DefaultPasswordHash,
		string(u.Role), u.Region, u.ProfilePhoto, u.CreatedBy, u.CreatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return directory.ErrUsernameTaken
		}
		return err
	}
	return nil
}

func (s *UserStore) Get(ctx context.Context, id string) (directory.User, error) {
	row := s.db.QueryRowContext(ctx, `select `+userColumns+` from users where id=$1`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return directory.User{}, directory.ErrNotFound
	}
	return u, err
}

func (s *UserStore) FindByCredential(ctx context.Context, credential string) (directory.User, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+userColumns+` from users
		where lower(username)=lower($1) or lower(email)=lower($1)
	`, credential)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return directory.User{}, directory.ErrNotFound
	}
	return u, err
}

func (s *UserStore) List(ctx context.Context) ([]directory.User, error) {
	rows, err := s.db.QueryContext(ctx, `select `+userColumns+` from users order by created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []directory.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *UserStore) Update(ctx context.Context, u directory.User) error {
	res, err := s.db.ExecContext(ctx, `
		update users set name=$2, email=$3, password_hash=$4, region=$5, profile_photo=$6
		where id=$1
	`, u.ID, u.Name, u.Email, u.PasswordHash, u.Region, u.ProfilePhoto)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return directory.ErrNotFound
	}
	return nil
}

func (s *UserStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from users where id=$1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return directory.ErrNotFound
	}
	return nil
}
