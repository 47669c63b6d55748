package pg

import (
	"context"
	"database/sql"
	"errors"

	"wardbook.org/internal/auth"
	"wardbook.org/internal/rbac"
)

// Users implements auth.UserStore over PostgreSQL.
type Users struct {
	db *sql.DB
}

var _ auth.UserStore = (*Users)(nil)

const userColumns = `id, email, password_hash, role, ward_id, is_active, email_verified, created_at, updated_at`

func scanUser(row *sql.Row) (*auth.User, error) {
	var (
		u    auth.User
		role string
		ward sql.NullString
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &role, &ward, &u.IsActive, &u.EmailVerified, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Role = rbac.Role(role)
	if ward.Valid {
		u.WardID = ward.String
	}
	return &u, nil
}

func (s *Users) FindByID(ctx context.Context, id string) (*auth.User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where id=$1`, id)
	return scanUser(row)
}

func (s *Users) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where email=$1`, email)
	return scanUser(row)
}

func (s *Users) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`update users set password_hash=$2, updated_at=now() where id=$1`, userID, passwordHash)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Users) SetEmailVerified(ctx context.Context, userID string) error {
	res, err := s.db.ExecContext(ctx,
		`update users set email_verified=true, updated_at=now() where id=$1`, userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return auth.ErrNotFound
	}
	return nil
}
