package userdirectory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sems/expense-service/internal"
)

// Client talks to the identity service over HTTP. Every call is bounded by
// the configured timeout so a slow directory cannot hang a workflow
// operation.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
		logger:     logger,
	}
}

// UserExists reports whether the directory knows the user. A 404 is a
// definitive no; any other non-200 answer or transport failure is an error.
func (c *Client) UserExists(ctx context.Context, id uuid.UUID) (bool, error) {
	ctx, cancel := internal.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/api/users/%s", c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("user directory request failed", "error", err, "user_id", id)
		return false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("user directory returned status %d", resp.StatusCode)
	}
}

type rolesResponse struct {
	Roles []uuid.UUID `json:"roles"`
}

// RolesOf returns the set of role IDs the user holds.
func (c *Client) RolesOf(ctx context.Context, id uuid.UUID) (map[uuid.UUID]struct{}, error) {
	ctx, cancel := internal.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/api/users/%s/roles", c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("user directory role request failed", "error", err, "user_id", id)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user directory returned status %d", resp.StatusCode)
	}

	var body rolesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding roles response: %w", err)
	}

	roles := make(map[uuid.UUID]struct{}, len(body.Roles))
	for _, role := range body.Roles {
		roles[role] = struct{}{}
	}
	return roles, nil
}
