package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xela07ax/printhub-backend/internal/domain"
)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

const userColumns = `id, email, display_name, phone, password_hash, role, created_at, updated_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	u := &domain.User{}
	err := row.Scan(
		&u.ID, &u.Email, &u.DisplayName, &u.Phone, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

// Create вставляет пользователя. Дубликат email мапится в domain.ErrEmailTaken
// по коду unique_violation, а не предварительным SELECT (без гонки).
func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	query := `
		INSERT INTO users (id, email, display_name, phone, password_hash, role)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query, u.ID, u.Email, u.DisplayName, u.Phone, u.PasswordHash, u.Role)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrEmailTaken
		}
		return fmt.Errorf("postgres: failed to create user: %w", err)
	}
	return nil
}

func (r *UserRepo) UpdateProfile(ctx context.Context, id string, upd domain.ProfileUpdate) error {
	query := `UPDATE users SET display_name = $1, phone = $2, updated_at = NOW() WHERE id = $3`

	result, err := r.pool.Exec(ctx, query, upd.DisplayName, upd.Phone, id)
	if err != nil {
		return fmt.Errorf("postgres: failed to update profile: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListStaff возвращает учетки с ролями Administrator и Owner.
func (r *UserRepo) ListStaff(ctx context.Context) ([]*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE role IN ($1, $2) ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, domain.RoleAdministrator, domain.RoleOwner)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query staff: %w", err)
	}
	defer rows.Close()

	// Инициализируем пустой слайс, чтобы в JSON был [] вместо null
	results := make([]*domain.User, 0)
	for rows.Next() {
		u := &domain.User{}
		err := rows.Scan(
			&u.ID, &u.Email, &u.DisplayName, &u.Phone, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan staff row: %w", err)
		}
		results = append(results, u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}

	return results, nil
}

func (r *UserRepo) UpdateRole(ctx context.Context, id string, role domain.Role) error {
	query := `UPDATE users SET role = $1, updated_at = NOW() WHERE id = $2`

	result, err := r.pool.Exec(ctx, query, role, id)
	if err != nil {
		return fmt.Errorf("postgres: failed to update role: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *UserRepo) Delete(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: failed to delete user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
