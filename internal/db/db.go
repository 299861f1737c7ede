package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type Database struct {
	Conn *sql.DB
}

func NewDatabase(ctx context.Context, dsn string) (*Database, error) {
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(25)
	conn.SetConnMaxLifetime(5 * time.Minute)
	return &Database{Conn: conn}, nil
}

func (d *Database) Close() error {
	return d.Conn.Close()
}

// Migrations is the schema, applied in order. Each statement is idempotent.
var Migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id SERIAL PRIMARY KEY,
		username VARCHAR(30) UNIQUE NOT NULL,
		password VARCHAR(255) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS follows (
		follower_id INT REFERENCES users(id) ON DELETE CASCADE,
		followee_id INT REFERENCES users(id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (follower_id, followee_id),
		CHECK (follower_id <> followee_id)
	)`,

	`CREATE TABLE IF NOT EXISTS posts (
		id SERIAL PRIMARY KEY,
		author_id INT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		content TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS messages (
		id BIGSERIAL PRIMARY KEY,
		sender_username VARCHAR(30) NOT NULL REFERENCES users(username) ON DELETE CASCADE,
		receiver_username VARCHAR(30) NOT NULL REFERENCES users(username) ON DELETE CASCADE,
		message TEXT NOT NULL,
		sent_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE INDEX IF NOT EXISTS messages_pair_idx
		ON messages (LEAST(sender_username, receiver_username), GREATEST(sender_username, receiver_username), sent_at, id)`,

	`CREATE INDEX IF NOT EXISTS posts_author_idx ON posts (author_id, created_at DESC)`,
}

func (d *Database) AutoMigrate(ctx context.Context) error {
	for i, query := range Migrations {
		if _, err := d.Conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	return nil
}
