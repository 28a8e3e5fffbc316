package directory

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

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"auth-gateway/backend/internal/directory/domain"
)

const (
	defaultTimeout = 5 * time.Second
	maxErrorBody   = 512
)

// HTTPClient calls the directory's REST API:
//
//	GET  {base}/users/by-email/{email}
//	GET  {base}/users/by-username/{username}
//	POST {base}/users/from-auth
type HTTPClient struct {
	BaseURL     string
	HTTPClient  *http.Client
	MaxAttempts int
	// InitialBackoff is the first retry delay when MaxAttempts > 1.
	InitialBackoff time.Duration

	tracer trace.Tracer
}

// NewHTTPClient returns a client for baseURL (e.g. http://localhost:8083/api).
// maxAttempts <= 1 means a single blocking call with no retry.
func NewHTTPClient(baseURL string, timeout time.Duration, maxAttempts int) *HTTPClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &HTTPClient{
		BaseURL:        strings.TrimRight(baseURL, "/"),
		HTTPClient:     &http.Client{Timeout: timeout},
		MaxAttempts:    maxAttempts,
		InitialBackoff: 200 * time.Millisecond,
		tracer:         otel.Tracer("auth-gateway/directory"),
	}
}

// ByEmail looks up an account by email.
func (c *HTTPClient) ByEmail(ctx context.Context, email string) Result {
	return c.call(ctx, "directory.by_email", func(ctx context.Context) Result {
		return c.lookup(ctx, "/users/by-email/"+url.PathEscape(email))
	})
}

// ByUsername looks up an account by username.
func (c *HTTPClient) ByUsername(ctx context.Context, username string) Result {
	return c.call(ctx, "directory.by_username", func(ctx context.Context) Result {
		return c.lookup(ctx, "/users/by-username/"+url.PathEscape(username))
	})
}

// Create asks the directory to create the account. A 409 is reported as
// Unavailable wrapping ErrConflict and is not retried.
func (c *HTTPClient) Create(ctx context.Context, req domain.CreateRequest) Result {
	raw, err := json.Marshal(req)
	if err != nil {
		return UnavailableResult(err)
	}
	return c.call(ctx, "directory.create", func(ctx context.Context) Result {
		resp, err := c.do(ctx, http.MethodPost, "/users/from-auth", raw)
		if err != nil {
			return UnavailableResult(err)
		}
		defer resp.Body.Close()
		switch {
		case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
			return decodeAccount(resp.Body)
		case resp.StatusCode == http.StatusConflict:
			return UnavailableResult(ErrConflict)
		default:
			return UnavailableResult(statusError(resp))
		}
	})
}

func (c *HTTPClient) lookup(ctx context.Context, path string) Result {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return UnavailableResult(err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return NotFoundResult()
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return decodeAccount(resp.Body)
	default:
		return UnavailableResult(statusError(resp))
	}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.HTTPClient.Do(req)
}

// call runs one attempt, or up to MaxAttempts with exponential backoff.
// Only transport-level Unavailable results are retried.
func (c *HTTPClient) call(ctx context.Context, name string, attempt func(context.Context) Result) Result {
	tracer := c.tracer
	if tracer == nil {
		tracer = otel.Tracer("auth-gateway/directory")
	}
	ctx, span := tracer.Start(ctx, name)
	defer span.End()

	var res Result
	if c.MaxAttempts <= 1 {
		res = attempt(ctx)
	} else {
		tries := 0
		_, err := backoff.Retry(ctx, func() (Result, error) {
			tries++
			res = attempt(ctx)
			if res.Outcome != Unavailable {
				return res, nil
			}
			if errors.Is(res.Err, ErrConflict) {
				return res, backoff.Permanent(res.Err)
			}
			return res, res.Err
		},
			backoff.WithBackOff(c.backOff()),
			backoff.WithMaxTries(uint(c.MaxAttempts)),
		)
		span.SetAttributes(attribute.Int("directory.attempts", tries))
		if res.Outcome == Unavailable && res.Err == nil {
			res = UnavailableResult(err)
		}
	}

	span.SetAttributes(attribute.String("directory.outcome", res.Outcome.String()))
	if res.Outcome == Unavailable {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, "directory unavailable")
	}
	return res
}

func (c *HTTPClient) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if c.InitialBackoff > 0 {
		b.InitialInterval = c.InitialBackoff
	}
	return b
}

func decodeAccount(r io.Reader) Result {
	var a domain.Account
	if err := json.NewDecoder(r).Decode(&a); err != nil {
		return UnavailableResult(fmt.Errorf("decode account: %w", err))
	}
	return FoundResult(&a)
}

func statusError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return fmt.Errorf("directory: request failed status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(b)))
}
