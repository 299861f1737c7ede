package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenIssuer = "devnet"
	tokenTTL    = 24 * time.Hour
	minPassword = 8
)

// Store is the persistence the service depends on. *Repository implements it.
type Store interface {
	CreateUser(ctx context.Context, user *User) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	SearchUsers(ctx context.Context, query string) ([]User, error)
	ListUsers(ctx context.Context, exceptID int) ([]User, error)
	ListFollowing(ctx context.Context, userID int) ([]User, error)
	Follow(ctx context.Context, followerID, followeeID int) error
	Unfollow(ctx context.Context, followerID, followeeID int) error
	GetProfile(ctx context.Context, viewerID int, username string) (*Profile, error)
}

type Service struct {
	repo       Store
	jwtSecret  string
	bcryptCost int
	now        func() time.Time
}

type MyJWTClaims struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Option customises a Service.
type Option func(*Service)

// WithBcryptCost overrides the hashing cost (tests use bcrypt.MinCost).
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.bcryptCost = cost }
}

// WithClock overrides the token clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo Store, secret string, opts ...Option) *Service {
	s := &Service{
		repo:       repo,
		jwtSecret:  secret,
		bcryptCost: bcrypt.DefaultCost,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*User, error) {
	username := NormalizeUsername(req.Username)
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if len(req.Password) < minPassword {
		return nil, ErrWeakPassword
	}

	hashedPwd, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &User{
		Username: username,
		Password: string(hashedPwd),
	}
	return s.repo.CreateUser(ctx, u)
}

func (s *Service) Login(ctx context.Context, req *RegisterRequest) (*LoginResponse, error) {
	u, err := s.repo.GetUserByUsername(ctx, NormalizeUsername(req.Username))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, MyJWTClaims{
		ID:       u.ID,
		Username: u.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	})

	ss, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &LoginResponse{
		AccessToken: ss,
		ID:          u.ID,
		Username:    u.Username,
	}, nil
}

func (s *Service) ValidateToken(tokenString string) (int, string, error) {
	claims := &MyJWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.jwtSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return 0, "", ErrInvalidToken
	}
	return claims.ID, claims.Username, nil
}

// Exists reports whether username is registered. Used by chat to check receivers.
func (s *Service) Exists(ctx context.Context, username string) (bool, error) {
	_, err := s.repo.GetUserByUsername(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *Service) SearchUsers(ctx context.Context, query string) ([]User, error) {
	return s.repo.SearchUsers(ctx, NormalizeUsername(query))
}

func (s *Service) ListUsers(ctx context.Context, callerID int) ([]User, error) {
	return s.repo.ListUsers(ctx, callerID)
}

func (s *Service) ListFollowing(ctx context.Context, callerID int) ([]User, error) {
	return s.repo.ListFollowing(ctx, callerID)
}

func (s *Service) Follow(ctx context.Context, callerID int, username string) error {
	target, err := s.repo.GetUserByUsername(ctx, NormalizeUsername(username))
	if err != nil {
		return err
	}
	if target.ID == callerID {
		return ErrSelfFollow
	}
	return s.repo.Follow(ctx, callerID, target.ID)
}

func (s *Service) Unfollow(ctx context.Context, callerID int, username string) error {
	target, err := s.repo.GetUserByUsername(ctx, NormalizeUsername(username))
	if err != nil {
		return err
	}
	return s.repo.Unfollow(ctx, callerID, target.ID)
}

func (s *Service) Profile(ctx context.Context, callerID int, username string) (*Profile, error) {
	return s.repo.GetProfile(ctx, callerID, NormalizeUsername(username))
}
