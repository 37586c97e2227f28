// Package fetch retrieves raw conversation logs from the Watson Assistant
// v1 logs API, paginating until the requested count is reached or the
// cursor is exhausted, with an on-disk cache keyed by the derived filename.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const pageLimit = 500

// pageDelay is the fixed delay spacing out paginated calls.
const pageDelay = 200 * time.Millisecond

// Params identifies the skill or assistant whose logs to fetch.
type Params struct {
	WorkspaceID string   `json:"workspace_id,omitempty"`
	SkillID     string   `json:"skill_id,omitempty"`
	AssistantID string   `json:"assistant_id,omitempty"`
	Filters     []string `json:"filters,omitempty"`
	Count       int      `json:"count"`
}

// Validate checks that the params can address the logs API at all.
func (p Params) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Count, validation.Required, validation.Min(1)),
		validation.Field(&p.WorkspaceID, validation.By(func(any) error {
			if p.WorkspaceID == "" && p.SkillID == "" && p.AssistantID == "" {
				return fmt.Errorf("one of workspace_id, skill_id, or assistant_id is required")
			}
			return nil
		})),
	)
}

// filter renders the effective filter string: the caller's filters plus the
// defaults derived from the assistant and skill ids, comma joined.
func (p Params) filter() string {
	filters := append([]string{}, p.Filters...)
	if p.AssistantID != "" {
		filters = append(filters, "request.context.system.assistant_id::"+p.AssistantID)
	}
	if p.SkillID != "" {
		filters = append(filters, "workspace_id::"+p.SkillID)
	}
	return strings.Join(filters, ",")
}

// Client calls the Assistant v1 logs endpoints.
type Client struct {
	baseURL string
	apiKey  string
	version string
	client  *http.Client
	logger  *slog.Logger
	delay   time.Duration
}

func NewClient(baseURL, apiKey, version string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		version: version,
		client:  &http.Client{Timeout: 60 * time.Second},
		logger:  logger,
		delay:   pageDelay,
	}
}

type logsPage struct {
	Logs       []any `json:"logs"`
	Pagination struct {
		NextCursor string `json:"next_cursor"`
	} `json:"pagination"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// FetchLogs pages through the logs API until it has the requested count or
// the service stops returning a cursor. Failures propagate without retry.
func (c *Client) FetchLogs(ctx context.Context, p Params) ([]any, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	var logs []any
	remaining := p.Count
	cursor := ""

	for remaining > 0 {
		page, err := c.fetchPage(ctx, p, cursor)
		if err != nil {
			return nil, err
		}

		take := len(page.Logs)
		if take > remaining {
			take = remaining
		}
		logs = append(logs, page.Logs[:take]...)
		remaining -= take
		c.logger.Debug("fetched log page", "page_size", len(page.Logs), "total", len(logs))

		cursor = page.Pagination.NextCursor
		if cursor == "" {
			break
		}
		if remaining > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.delay):
			}
		}
	}

	c.logger.Info("log fetch complete", "requested", p.Count, "retrieved", len(logs))
	return logs, nil
}

func (c *Client) fetchPage(ctx context.Context, p Params, cursor string) (*logsPage, error) {
	endpoint := c.baseURL + "/v1/logs"
	if p.WorkspaceID != "" {
		endpoint = c.baseURL + "/v1/workspaces/" + p.WorkspaceID + "/logs"
	}

	query := url.Values{}
	query.Set("version", c.version)
	query.Set("page_limit", fmt.Sprint(pageLimit))
	if filter := p.filter(); filter != "" {
		query.Set("filter", filter)
	}
	if cursor != "" {
		query.Set("cursor", cursor)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth("apikey", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("logs api call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
			return nil, fmt.Errorf("logs api error %d: %s", resp.StatusCode, errResp.Error)
		}
		return nil, fmt.Errorf("logs api error %d: %s", resp.StatusCode, string(body))
	}

	var page logsPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("unmarshal logs page: %w", err)
	}
	return &page, nil
}
