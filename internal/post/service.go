package post

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"
)

const (
	maxPostChars = 280
	feedLimit    = 50
)

var (
	ErrEmptyPost   = errors.New("post cannot be empty")
	ErrPostTooLong = errors.New("post is too long")
)

// Store persists posts. *Repository implements it.
type Store interface {
	Create(ctx context.Context, authorID int, content string) (*Post, error)
	Feed(ctx context.Context, viewerID, limit int) ([]Post, error)
}

type Service struct {
	repo Store
}

func NewService(repo Store) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, authorID int, req CreateRequest) (*Post, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, ErrEmptyPost
	}
	if utf8.RuneCountInString(content) > maxPostChars {
		return nil, ErrPostTooLong
	}
	return s.repo.Create(ctx, authorID, content)
}

func (s *Service) Feed(ctx context.Context, viewerID int) ([]Post, error) {
	return s.repo.Feed(ctx, viewerID, feedLimit)
}
