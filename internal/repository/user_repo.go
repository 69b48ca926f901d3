package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dosquisd/testing-kubernetes/internal/model"
)

// ErrNotFound is returned when no row matches the lookup.
var ErrNotFound = errors.New("user not found")

const userColumns = "id, email, name, age, is_active, created_at, updated_at"

// UserRepository handles user data persistence. It is the sole source of
// truth; the cache layer above it is never authoritative.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// NewPool builds the connection pool with the service's timeouts applied.
func NewPool(ctx context.Context, uri string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URI: %w", err)
	}

	cfg.ConnConfig.ConnectTimeout = 8 * time.Second
	cfg.MaxConnIdleTime = 600 * time.Second
	cfg.MaxConnLifetime = 3600 * time.Second
	cfg.MinConns = 1
	cfg.MaxConns = 10

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	return pool, nil
}

// FindByID retrieves a user by id. Returns ErrNotFound when the row does
// not exist.
func (r *UserRepository) FindByID(ctx context.Context, id int) (*model.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)

	user, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// FindByEmail retrieves a user by email. Returns ErrNotFound when the row
// does not exist.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE email = $1`, userColumns)

	user, err := scanUser(r.pool.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return user, nil
}

// List retrieves users with offset/limit pagination. When search is
// non-empty, rows are filtered by a case-sensitive substring match on name
// or email.
func (r *UserRepository) List(ctx context.Context, offset, limit int, search string) ([]model.User, error) {
	var (
		rows pgx.Rows
		err  error
	)

	if search != "" {
		query := fmt.Sprintf(`
			SELECT %s FROM users
			WHERE name LIKE '%%' || $1 || '%%' OR email LIKE '%%' || $1 || '%%'
			ORDER BY id
			OFFSET $2 LIMIT $3
		`, userColumns)
		rows, err = r.pool.Query(ctx, query, search, offset, limit)
	} else {
		query := fmt.Sprintf(`
			SELECT %s FROM users
			ORDER BY id
			OFFSET $1 LIMIT $2
		`, userColumns)
		rows, err = r.pool.Query(ctx, query, offset, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

// Insert stores a new user. The store assigns the id and is_active is
// forced to true; created_at/updated_at are left to the column defaults.
func (r *UserRepository) Insert(ctx context.Context, user model.UserCreate) (*model.User, error) {
	query := fmt.Sprintf(`
		INSERT INTO users (email, name, age, is_active)
		VALUES ($1, $2, $3, TRUE)
		RETURNING %s
	`, userColumns)

	created, err := scanUser(r.pool.QueryRow(ctx, query, user.Email, user.Name, user.Age))
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return created, nil
}

// Update loads the existing row and applies the patch: name and email
// change only when supplied, while age and is_active are always written
// from the patch value, clearing the columns when the patch omits them.
// Returns ErrNotFound when the row does not exist.
func (r *UserRepository) Update(ctx context.Context, id int, patch model.UserUpdate) (*model.User, error) {
	existing, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	email := existing.Email
	if patch.Email != nil {
		email = *patch.Email
	}
	name := existing.Name
	if patch.Name != nil {
		name = *patch.Name
	}

	query := fmt.Sprintf(`
		UPDATE users
		SET email = $2, name = $3, age = $4, is_active = $5
		WHERE id = $1
		RETURNING %s
	`, userColumns)

	updated, err := scanUser(r.pool.QueryRow(ctx, query, id, email, name, patch.Age, patch.IsActive))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	return updated, nil
}

// Delete removes a user and returns the row's last known state. Returns
// ErrNotFound when the row does not exist.
func (r *UserRepository) Delete(ctx context.Context, id int) (*model.User, error) {
	query := fmt.Sprintf(`DELETE FROM users WHERE id = $1 RETURNING %s`, userColumns)

	deleted, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to delete user: %w", err)
	}

	return deleted, nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	user := &model.User{}
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Age,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}
