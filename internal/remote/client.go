// Package remote is the HTTP client of the remote mirror backend.
package remote

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

	"patapesa/internal/model"

	"go.uber.org/zap"
)

// DefaultTimeout bounds every mirror call; on expiry the caller falls back.
const DefaultTimeout = 5 * time.Second

// ErrUnavailable tags transport failures, timeouts, 5xx answers and
// unreadable bodies: the mirror could not give a business answer.
var ErrUnavailable = errors.New("remote mirror unavailable")

// APIError is a business rejection from a reachable mirror.
type APIError struct {
	StatusCode int
	Message    string
	Code       string // e.g. INVALID_PASSWORD
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("remote rejected request (%d %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("remote rejected request (%d): %s", e.StatusCode, e.Message)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a mirror client. A zero timeout means DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) (*model.Envelope, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("mirror request failed", zap.String("endpoint", endpoint), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response body: %v", ErrUnavailable, err)
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var env model.Envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, fmt.Errorf("%w: undecodable response (status %d): %v", ErrUnavailable, resp.StatusCode, err)
	}
	if resp.StatusCode >= 400 || env.Status == model.StatusError {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: env.Message, Code: env.Error}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, fmt.Errorf("%w: unexpected data shape: %v", ErrUnavailable, err)
		}
	}
	return &env, nil
}

// Register creates the user on the mirror.
func (c *Client) Register(ctx context.Context, req model.RegisterRequest) (*model.User, error) {
	var user model.User
	if _, err := c.do(ctx, http.MethodPost, "/register", req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Login authenticates against the mirror, which also stamps lastLogin.
func (c *Client) Login(ctx context.Context, username, password string) (*model.User, error) {
	var user model.User
	req := model.LoginRequest{Username: username, Password: password}
	if _, err := c.do(ctx, http.MethodPost, "/login", req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdatePoints overwrites the mirror's balance and returns what it stored.
func (c *Client) UpdatePoints(ctx context.Context, userID string, points int64) (int64, error) {
	var data model.PointsData
	endpoint := "/profile/" + url.PathEscape(userID) + "/points"
	if _, err := c.do(ctx, http.MethodPut, endpoint, model.UpdatePointsRequest{Points: &points}, &data); err != nil {
		return 0, err
	}
	return data.Points, nil
}

func (c *Client) Profile(ctx context.Context, userID string) (*model.User, error) {
	var user model.User
	if _, err := c.do(ctx, http.MethodGet, "/profile/"+url.PathEscape(userID), nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListUsers is the debug listing; it returns the users and the reported total.
func (c *Client) ListUsers(ctx context.Context) ([]model.User, int, error) {
	var users []model.User
	env, err := c.do(ctx, http.MethodGet, "/users", nil, &users)
	if err != nil {
		return nil, 0, err
	}
	total := len(users)
	if env.Total != nil {
		total = *env.Total
	}
	return users, total, nil
}

func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/ping", nil, nil)
	return err
}
