// Package api is a typed client for the devnet REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"devnet/internal/chat"
	"devnet/internal/post"
	"devnet/internal/user"
)

// ErrNoToken is returned by authenticated calls on a client without a token.
var ErrNoToken = errors.New("api: not signed in")

// Error is a non-2xx response. Message is the server's "error" field, or
// the status text when the body carried none.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

// Message returns the server-provided message of err, or err's text.
func Message(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

type Client struct {
	base  string
	token string
	http  *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken sets the bearer token sent on authenticated calls.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimSuffix(baseURL, "/"),
		http: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns the bearer token in use.
func (c *Client) Token() string { return c.token }

func (c *Client) Register(ctx context.Context, username, password string) (*user.User, error) {
	var u user.User
	err := c.do(ctx, http.MethodPost, "/register", false, user.RegisterRequest{Username: username, Password: password}, &u)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Login authenticates and keeps the returned token for later calls.
func (c *Client) Login(ctx context.Context, username, password string) (*user.LoginResponse, error) {
	var res user.LoginResponse
	err := c.do(ctx, http.MethodPost, "/login", false, user.RegisterRequest{Username: username, Password: password}, &res)
	if err != nil {
		return nil, err
	}
	c.token = res.AccessToken
	return &res, nil
}

// ListUsers returns the users the caller follows: the people they can message.
// It is deliberately narrower than AllUsers: an empty result means the caller
// follows nobody yet, not that nobody else is registered.
func (c *Client) ListUsers(ctx context.Context) ([]user.User, error) {
	var users []user.User
	if err := c.do(ctx, http.MethodGet, "/api/users/following", true, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// AllUsers returns every user except the caller.
func (c *Client) AllUsers(ctx context.Context) ([]user.User, error) {
	var users []user.User
	if err := c.do(ctx, http.MethodGet, "/api/users", true, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *Client) SearchUsers(ctx context.Context, q string) ([]user.User, error) {
	var users []user.User
	if err := c.do(ctx, http.MethodGet, "/api/users/search?q="+url.QueryEscape(q), true, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *Client) Follow(ctx context.Context, username string) error {
	return c.do(ctx, http.MethodPost, "/api/users/"+url.PathEscape(username)+"/follow", true, nil, nil)
}

func (c *Client) Unfollow(ctx context.Context, username string) error {
	return c.do(ctx, http.MethodDelete, "/api/users/"+url.PathEscape(username)+"/follow", true, nil, nil)
}

func (c *Client) Profile(ctx context.Context, username string) (*user.Profile, error) {
	var p user.Profile
	if err := c.do(ctx, http.MethodGet, "/api/users/"+url.PathEscape(username), true, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetChat returns the conversation between the caller and other.
func (c *Client) GetChat(ctx context.Context, other string) ([]chat.Message, error) {
	var msgs []chat.Message
	if err := c.do(ctx, http.MethodGet, "/api/chat/"+url.PathEscape(other), true, nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// NewMsg sends content to receiver and returns the stored message.
func (c *Client) NewMsg(ctx context.Context, content, receiver string) (*chat.Message, error) {
	var m chat.Message
	err := c.do(ctx, http.MethodPost, "/api/chat/messages", true, chat.NewMsgRequest{MsgContent: content, MsgReciever: receiver}, &m)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) CreatePost(ctx context.Context, content string) (*post.Post, error) {
	var p post.Post
	if err := c.do(ctx, http.MethodPost, "/api/posts", true, post.CreateRequest{Content: content}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Feed returns recent posts from the caller and the users they follow.
func (c *Client) Feed(ctx context.Context) ([]post.Post, error) {
	var posts []post.Post
	if err := c.do(ctx, http.MethodGet, "/api/feed", true, nil, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (c *Client) do(ctx context.Context, method, path string, auth bool, in, out any) error {
	if auth && c.token == "" {
		return ErrNoToken
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if auth {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &Error{Status: resp.StatusCode}
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err == nil && body.Error != "" {
		apiErr.Message = body.Error
	} else {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
