package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/jrsteele09/go-admissions-auth/profiles"
	"github.com/jrsteele09/go-admissions-auth/roles"
	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

var _ profiles.Repo = (*ProfileRepo)(nil)

// ProfileRepo implements profiles.Repo on SQLite.
type ProfileRepo struct {
	db *sql.DB
}

func NewProfileRepo(db *sql.DB) *ProfileRepo {
	return &ProfileRepo{db: db}
}

func (r *ProfileRepo) Get(ctx context.Context, userID string) (*profiles.UserProfile, error) {
	row := r.db.QueryRowContext(ctx, `SELECT user_id, role, created_at, updated_at FROM user_profiles WHERE user_id = ?`, userID)
	profile, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, profiles.ErrProfileNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "[ProfileRepo.Get] select")
	}
	return profile, nil
}

func (r *ProfileRepo) Insert(ctx context.Context, profile *profiles.UserProfile) error {
	if profile.UserID == "" {
		return profiles.ErrEmptyUserID
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO user_profiles (user_id, role, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		profile.UserID, string(profile.Role), profile.CreatedAt.UTC(), profile.UpdatedAt.UTC())
	if isUniqueViolation(err) {
		return profiles.ErrProfileExists
	}
	return errors.Wrap(err, "[ProfileRepo.Insert] insert")
}

func (r *ProfileRepo) UpdateRole(ctx context.Context, userID string, from, to roles.Role) error {
	res, err := r.db.ExecContext(ctx, `UPDATE user_profiles SET role = ?, updated_at = ? WHERE user_id = ? AND role = ?`,
		string(to), time.Now().UTC(), userID, string(from))
	if err != nil {
		return errors.Wrap(err, "[ProfileRepo.UpdateRole] update")
	}
	if n, err := res.RowsAffected(); err != nil {
		return errors.Wrap(err, "[ProfileRepo.UpdateRole] rows affected")
	} else if n == 1 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM user_profiles WHERE user_id = ?)`, userID).Scan(&exists); err != nil {
		return errors.Wrap(err, "[ProfileRepo.UpdateRole] exists")
	}
	if !exists {
		return profiles.ErrProfileNotFound
	}
	return profiles.ErrRoleConflict
}

func (r *ProfileRepo) List(ctx context.Context, offset, limit int) ([]*profiles.UserProfile, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx, `SELECT user_id, role, created_at, updated_at FROM user_profiles ORDER BY created_at, user_id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "[ProfileRepo.List] query")
	}
	defer rows.Close()

	result := []*profiles.UserProfile{}
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, errors.Wrap(err, "[ProfileRepo.List] scan")
		}
		result = append(result, profile)
	}
	return result, errors.Wrap(rows.Err(), "[ProfileRepo.List] rows")
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProfile(row scanner) (*profiles.UserProfile, error) {
	var (
		profile profiles.UserProfile
		role    string
	)
	if err := row.Scan(&profile.UserID, &role, &profile.CreatedAt, &profile.UpdatedAt); err != nil {
		return nil, err
	}
	profile.Role = roles.Role(role)
	return &profile, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey || sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
