// Package analyze calls the analyze-node function that rewrites or summarizes note text.
package analyze

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/brainboard/internal/errs"
)

// Action selects what the function does with the content.
type Action string

const (
	ActionReorganize Action = "reorganize"
	ActionSummarize  Action = "summarize"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool { return a == ActionReorganize || a == ActionSummarize }

// Request is the body posted to the function.
type Request struct {
	NodeID  uuid.UUID `json:"nodeId"`
	Content string    `json:"content"`
	Action  Action    `json:"action"`
}

// Result carries Content for reorganize and Summary with Tags for summarize.
type Result struct {
	Content string   `json:"content,omitempty"`
	Summary string   `json:"summary,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

// maxResponse bounds the response body read from the function.
const maxResponse = 1 << 20

// Client posts requests to a single endpoint. There is no retry.
type Client struct {
	url  string
	hc   *http.Client
	auth string
	log  *zap.Logger
}

// Options of New.
type Options struct {
	// HTTPClient defaults to a client with a 30s timeout.
	HTTPClient *http.Client
	// APIKey is sent as a bearer token when set.
	APIKey string
	Logger *zap.Logger
}

func New(url string, o Options) *Client {
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return &Client{url: url, hc: o.HTTPClient, auth: o.APIKey, log: o.Logger}
}

// Analyze runs action over content.
func (c *Client) Analyze(ctx context.Context, req Request) (Result, error) {
	if !req.Action.Valid() {
		return Result{}, fmt.Errorf("%w: analyze action %q", errs.ErrInvalidArgument, req.Action)
	}
	if c.url == "" {
		return Result{}, fmt.Errorf("analyze: %w", errs.ErrUnavailable)
	}
	body, err := json.Marshal(req)
	if err != nil {
		return Result{}, err
	}
	hr, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	hr.Header.Set("Content-Type", "application/json")
	if c.auth != "" {
		hr.Header.Set("Authorization", "Bearer "+c.auth)
	}

	start := time.Now()
	resp, err := c.hc.Do(hr)
	if err != nil {
		return Result{}, fmt.Errorf("analyze: %w", err)
	}
	defer resp.Body.Close()
	c.log.Info("analyze",
		zap.String("action", string(req.Action)),
		zap.Int("status", resp.StatusCode),
		zap.Duration("dur", time.Since(start)),
	)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponse))
	if err != nil {
		return Result{}, fmt.Errorf("analyze: read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, fmt.Errorf("analyze: status %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	}
	var out Result
	if err := json.Unmarshal(raw, &out); err != nil {
		return Result{}, fmt.Errorf("analyze: decode: %w", err)
	}
	return out, nil
}
