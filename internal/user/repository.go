package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolation is the Postgres SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateUser(ctx context.Context, user *User) (*User, error) {
	query := "INSERT INTO users (username, password) VALUES ($1, $2) RETURNING id, created_at"

	err := r.db.QueryRowContext(ctx, query, user.Username, user.Password).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	u := &User{}
	query := "SELECT id, username, password, created_at FROM users WHERE username = $1"

	err := r.db.QueryRowContext(ctx, query, username).Scan(&u.ID, &u.Username, &u.Password, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (r *Repository) SearchUsers(ctx context.Context, query string) ([]User, error) {
	q := `SELECT id, username, created_at FROM users WHERE username ILIKE $1 ORDER BY username LIMIT 10`
	return r.queryUsers(ctx, q, "%"+query+"%")
}

// ListUsers returns every user except the caller.
func (r *Repository) ListUsers(ctx context.Context, exceptID int) ([]User, error) {
	q := `SELECT id, username, created_at FROM users WHERE id <> $1 ORDER BY username`
	return r.queryUsers(ctx, q, exceptID)
}

func (r *Repository) ListFollowing(ctx context.Context, userID int) ([]User, error) {
	q := `
		SELECT u.id, u.username, u.created_at
		FROM follows f
		JOIN users u ON u.id = f.followee_id
		WHERE f.follower_id = $1
		ORDER BY u.username
	`
	return r.queryUsers(ctx, q, userID)
}

func (r *Repository) Follow(ctx context.Context, followerID, followeeID int) error {
	q := `INSERT INTO follows (follower_id, followee_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	if _, err := r.db.ExecContext(ctx, q, followerID, followeeID); err != nil {
		return fmt.Errorf("follow: %w", err)
	}
	return nil
}

func (r *Repository) Unfollow(ctx context.Context, followerID, followeeID int) error {
	q := `DELETE FROM follows WHERE follower_id = $1 AND followee_id = $2`
	if _, err := r.db.ExecContext(ctx, q, followerID, followeeID); err != nil {
		return fmt.Errorf("unfollow: %w", err)
	}
	return nil
}

func (r *Repository) GetProfile(ctx context.Context, viewerID int, username string) (*Profile, error) {
	q := `
		SELECT u.username, u.created_at,
			(SELECT count(*) FROM follows WHERE followee_id = u.id),
			(SELECT count(*) FROM follows WHERE follower_id = u.id),
			(SELECT count(*) FROM posts WHERE author_id = u.id),
			EXISTS (SELECT 1 FROM follows WHERE follower_id = $1 AND followee_id = u.id)
		FROM users u
		WHERE u.username = $2
	`
	p := &Profile{}
	err := r.db.QueryRowContext(ctx, q, viewerID, username).
		Scan(&p.Username, &p.CreatedAt, &p.Followers, &p.Following, &p.Posts, &p.FollowedByMe)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func (r *Repository) queryUsers(ctx context.Context, q string, args ...any) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
