// Package loki pushes OTP delivery log lines to Grafana Loki.
package loki

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	defaultJob         = "auth-gateway"
	defaultMaxAttempts = 3
	pushPath           = "/loki/api/v1/push"
)

// ErrNoBaseURL is returned by Push when the client has no Loki URL.
var ErrNoBaseURL = errors.New("loki: base URL is empty")

type pushBody struct {
	Streams []stream `json:"streams"`
}

type stream struct {
	Labels map[string]string `json:"stream"`
	Values [][2]string       `json:"values"`
}

var invalidLabelChars = regexp.MustCompile(`[^a-zA-Z0-9_\-:]`)

// Client pushes to one Loki instance. Server errors and transport failures are
// retried up to MaxAttempts; 4xx responses are not.
type Client struct {
	BaseURL     string
	Job         string
	TenantID    string
	MaxAttempts int
	// InitialBackoff overrides the first retry delay; zero keeps the library default.
	InitialBackoff time.Duration
	HTTPClient     *http.Client
}

// NewClient returns a client for baseURL (e.g. http://localhost:3100).
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:     strings.TrimSuffix(baseURL, "/"),
		Job:         defaultJob,
		MaxAttempts: defaultMaxAttempts,
		HTTPClient:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Push sends line at ts in a single stream labelled with job plus labels.
// Its signature matches notify.DeliveryLog.
func (c *Client) Push(ctx context.Context, ts time.Time, line string, labels map[string]string) error {
	if c.BaseURL == "" {
		return ErrNoBaseURL
	}
	body, err := json.Marshal(pushBody{Streams: []stream{{
		Labels: c.streamLabels(labels),
		Values: [][2]string{{strconv.FormatInt(ts.UnixNano(), 10), line}},
	}}})
	if err != nil {
		return fmt.Errorf("loki: encode: %w", err)
	}
	attempts := c.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	b := backoff.NewExponentialBackOff()
	if c.InitialBackoff > 0 {
		b.InitialInterval = c.InitialBackoff
	}
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, c.post(ctx, body)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(attempts)))
	return err
}

func (c *Client) streamLabels(extra map[string]string) map[string]string {
	job := c.Job
	if job == "" {
		job = defaultJob
	}
	out := map[string]string{"job": job}
	for k, v := range extra {
		if v = invalidLabelChars.ReplaceAllString(strings.TrimSpace(v), "_"); v != "" {
			out[k] = v
		}
	}
	return out
}

func (c *Client) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+pushPath, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.TenantID != "" {
		req.Header.Set("X-Scope-OrgID", c.TenantID)
	}
	hc := c.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("loki: push returned %s", resp.Status)
	case resp.StatusCode >= 300:
		return backoff.Permanent(fmt.Errorf("loki: push returned %s", resp.Status))
	}
	return nil
}
