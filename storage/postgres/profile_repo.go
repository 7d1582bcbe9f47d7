package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jrsteele09/go-admissions-auth/profiles"
	"github.com/jrsteele09/go-admissions-auth/roles"
	"github.com/pkg/errors"
)

const uniqueViolation = "23505"

var _ profiles.Repo = (*ProfileRepo)(nil)

// ProfileRepo implements profiles.Repo backed by PostgreSQL.
type ProfileRepo struct {
	pool *pgxpool.Pool
}

func NewProfileRepo(pool *pgxpool.Pool) *ProfileRepo {
	return &ProfileRepo{pool: pool}
}

func (r *ProfileRepo) Get(ctx context.Context, userID string) (*profiles.UserProfile, error) {
	const selectSQL = `
		SELECT user_id, role, created_at, updated_at
		FROM user_profiles
		WHERE user_id = $1
	`

	profile, err := scanProfile(r.pool.QueryRow(ctx, selectSQL, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, profiles.ErrProfileNotFound
		}
		return nil, errors.Wrap(err, "[ProfileRepo.Get] select")
	}
	return profile, nil
}

func (r *ProfileRepo) Insert(ctx context.Context, profile *profiles.UserProfile) error {
	const insertSQL = `
		INSERT INTO user_profiles (user_id, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
	`

	if profile.UserID == "" {
		return profiles.ErrEmptyUserID
	}
	_, err := r.pool.Exec(ctx, insertSQL, profile.UserID, string(profile.Role), profile.CreatedAt, profile.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return profiles.ErrProfileExists
		}
		return errors.Wrap(err, "[ProfileRepo.Insert] insert")
	}
	return nil
}

func (r *ProfileRepo) UpdateRole(ctx context.Context, userID string, from, to roles.Role) error {
	const updateSQL = `
		UPDATE user_profiles
		SET role = $3, updated_at = now()
		WHERE user_id = $1 AND role = $2
	`
	const existsSQL = `SELECT EXISTS (SELECT 1 FROM user_profiles WHERE user_id = $1)`

	tag, err := r.pool.Exec(ctx, updateSQL, userID, string(from), string(to))
	if err != nil {
		return errors.Wrap(err, "[ProfileRepo.UpdateRole] update")
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, existsSQL, userID).Scan(&exists); err != nil {
		return errors.Wrap(err, "[ProfileRepo.UpdateRole] exists")
	}
	if !exists {
		return profiles.ErrProfileNotFound
	}
	return profiles.ErrRoleConflict
}

func (r *ProfileRepo) List(ctx context.Context, offset, limit int) ([]*profiles.UserProfile, error) {
	const listSQL = `
		SELECT user_id, role, created_at, updated_at
		FROM user_profiles
		ORDER BY created_at, user_id
		OFFSET $1
		LIMIT $2
	`

	var limitArg *int
	if limit > 0 {
		limitArg = &limit
	}
	rows, err := r.pool.Query(ctx, listSQL, offset, limitArg)
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

func scanProfile(row pgx.Row) (*profiles.UserProfile, error) {
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
