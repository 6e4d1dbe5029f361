package shopsim

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	json "github.com/goccy/go-json"

	"github.com/okian/tailor/internal/domain/model"
)

// Client talks to the service HTTP API.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a client for the service at base.
func NewClient(base string, timeout time.Duration) *Client {
	return &Client{base: base, http: &http.Client{Timeout: timeout}}
}

// AckResponse is the reply to an event submission.
type AckResponse struct {
	Status    string `json:"status"`
	EventID   string `json:"event_id"`
	Duplicate bool   `json:"duplicate"`
}

// PageResponse is one feed or reel page.
type PageResponse struct {
	Items     []model.Candidate `json:"items"`
	Cursor    *string           `json:"cursor"`
	ColdStart bool              `json:"coldStart"`
	Failed    []string          `json:"failedSources"`
	Debug     []model.ScoreRow  `json:"debug"`
}

// StatusError is a non-2xx reply.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Body)
}

// SubmitEvent posts one event.
func (c *Client) SubmitEvent(ctx context.Context, e *Event) (AckResponse, error) {
	var ack AckResponse
	err := c.do(ctx, http.MethodPost, "/events", e, &ack)
	return ack, err
}

// SetGender stores the visitor's gender.
func (c *Client) SetGender(ctx context.Context, identity string, g model.Gender) error {
	body := map[string]string{"gender": string(g)}
	return c.do(ctx, http.MethodPut, "/profiles/"+url.PathEscape(identity)+"/gender", body, nil)
}

// Feed fetches one feed page.
func (c *Client) Feed(ctx context.Context, identity, cursor string, limit int) (PageResponse, error) {
	var p PageResponse
	err := c.do(ctx, http.MethodGet, "/feed?"+pageQuery(identity, cursor, limit), nil, &p)
	return p, err
}

// Reel fetches one reel page for seed.
func (c *Client) Reel(ctx context.Context, identity, seed, cursor string, limit int) (PageResponse, error) {
	var p PageResponse
	err := c.do(ctx, http.MethodGet, "/reel/"+url.PathEscape(seed)+"?"+pageQuery(identity, cursor, limit), nil, &p)
	return p, err
}

func pageQuery(identity, cursor string, limit int) string {
	q := url.Values{}
	if identity != "" {
		q.Set("identity", identity)
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return q.Encode()
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader = http.NoBody
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return &StatusError{Status: resp.StatusCode, Body: string(bytes.TrimSpace(data))}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}
