package user

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// memStore is an in-memory Store for unit tests.
type memStore struct {
	mu      sync.Mutex
	nextID  int
	users   map[string]*User
	follows map[[2]int]bool
}

func newMemStore() *memStore {
	return &memStore{users: map[string]*User{}, follows: map[[2]int]bool{}}
}

func (m *memStore) CreateUser(_ context.Context, u *User) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.Username]; ok {
		return nil, ErrUsernameTaken
	}
	m.nextID++
	u.ID = m.nextID
	u.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cp := *u
	m.users[u.Username] = &cp
	return u, nil
}

func (m *memStore) GetUserByUsername(_ context.Context, username string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) SearchUsers(_ context.Context, query string) ([]User, error) {
	return m.filter(func(u *User) bool { return strings.Contains(u.Username, query) }), nil
}

func (m *memStore) ListUsers(_ context.Context, exceptID int) ([]User, error) {
	return m.filter(func(u *User) bool { return u.ID != exceptID }), nil
}

func (m *memStore) ListFollowing(_ context.Context, userID int) ([]User, error) {
	return m.filter(func(u *User) bool { return m.follows[[2]int{userID, u.ID}] }), nil
}

func (m *memStore) Follow(_ context.Context, followerID, followeeID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.follows[[2]int{followerID, followeeID}] = true
	return nil
}

func (m *memStore) Unfollow(_ context.Context, followerID, followeeID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.follows, [2]int{followerID, followeeID})
	return nil
}

func (m *memStore) GetProfile(_ context.Context, viewerID int, username string) (*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	p := &Profile{Username: u.Username, CreatedAt: u.CreatedAt}
	for pair := range m.follows {
		if pair[1] == u.ID {
			p.Followers++
		}
		if pair[0] == u.ID {
			p.Following++
		}
	}
	p.FollowedByMe = m.follows[[2]int{viewerID, u.ID}]
	return p, nil
}

func (m *memStore) filter(keep func(*User) bool) []User {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []User{}
	for _, u := range m.users {
		if keep(u) {
			out = append(out, User{ID: u.ID, Username: u.Username, CreatedAt: u.CreatedAt})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}
