package post

import (
	"context"
	"database/sql"
	"fmt"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, authorID int, content string) (*Post, error) {
	query := `
		INSERT INTO posts (author_id, content) VALUES ($1, $2)
		RETURNING id, content, created_at, (SELECT username FROM users WHERE id = $1)
	`
	p := &Post{}
	if err := r.db.QueryRowContext(ctx, query, authorID, content).Scan(&p.ID, &p.Content, &p.CreatedAt, &p.AuthorUsername); err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	return p, nil
}

// Feed returns the newest posts by viewerID and everyone they follow.
func (r *Repository) Feed(ctx context.Context, viewerID, limit int) ([]Post, error) {
	query := `
		SELECT p.id, u.username, p.content, p.created_at
		FROM posts p
		JOIN users u ON u.id = p.author_id
		WHERE p.author_id = $1
		   OR p.author_id IN (SELECT followee_id FROM follows WHERE follower_id = $1)
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, viewerID, limit)
	if err != nil {
		return nil, fmt.Errorf("feed: %w", err)
	}
	defer rows.Close()

	posts := []Post{}
	for rows.Next() {
		var p Post
		if err := rows.Scan(&p.ID, &p.AuthorUsername, &p.Content, &p.CreatedAt); err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}
