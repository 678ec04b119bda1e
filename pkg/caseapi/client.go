// Package caseapi is an HTTP client for the case-management API. It implements
// transition.Submitter so the stage change dialog can run against a live backend.
package caseapi

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

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

var ErrCircuitOpen = errors.New("case api unavailable: circuit open")

// APIError is a non-2xx response carrying the server's error envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("case api: http %d", e.Status)
	}
	return fmt.Sprintf("case api: %s: %s", e.Code, e.Message)
}

type Options struct {
	BaseURL string
	// Token is sent as a bearer token. Without one, StaffID/StaffRole are sent as the
	// dev identity headers.
	Token      string
	StaffID    string
	StaffRole  string
	HTTPClient *http.Client
	Logger     *zap.Logger
	// FailureThreshold is the number of consecutive 5xx or transport failures that
	// opens the circuit.
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

type Client struct {
	base    *url.URL
	opts    Options
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[response]
	logger  *zap.Logger
}

type response struct {
	status int
	body   []byte
}

// errServer marks a 5xx so the breaker counts it; the response is still decoded.
type errServer struct{ resp response }

func (e errServer) Error() string { return fmt.Sprintf("http %d", e.resp.status) }

func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid case api url %q", opts.BaseURL)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.FailureThreshold == 0 {
		opts.FailureThreshold = 5
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = 30 * time.Second
	}

	logger := opts.Logger
	threshold := opts.FailureThreshold
	breaker := gobreaker.NewCircuitBreaker[response](gobreaker.Settings{
		Name:    "caseapi",
		Timeout: opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Client{base: base, opts: opts, http: opts.HTTPClient, breaker: breaker, logger: logger}, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in any) (response, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return response{}, err
		}
		body = bytes.NewReader(b)
	}

	u := *c.base
	u.Path = c.base.Path + path
	u.RawQuery = query.Encode()

	resp, err := c.breaker.Execute(func() (response, error) {
		req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
		if err != nil {
			return response{}, err
		}
		req.Header.Set("Accept", "application/json")
		if in != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		c.authorize(req)

		res, err := c.http.Do(req)
		if err != nil {
			return response{}, err
		}
		defer res.Body.Close()

		b, err := io.ReadAll(res.Body)
		if err != nil {
			return response{}, err
		}
		out := response{status: res.StatusCode, body: b}
		if res.StatusCode >= 500 {
			return out, errServer{resp: out}
		}
		return out, nil
	})

	var se errServer
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return response{}, ErrCircuitOpen
	case errors.As(err, &se):
		resp = se.resp
	case err != nil:
		return response{}, err
	}

	c.logger.Debug("case api call", zap.String("method", method), zap.String("path", path), zap.Int("status", resp.status))
	if resp.status >= 300 {
		return resp, decodeError(resp)
	}
	return resp, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.Token)
		return
	}
	if c.opts.StaffID != "" {
		req.Header.Set("X-Staff-Id", c.opts.StaffID)
		if c.opts.StaffRole != "" {
			req.Header.Set("X-Staff-Role", c.opts.StaffRole)
		}
	}
}

func decodeError(resp response) error {
	var env struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	apiErr := &APIError{Status: resp.status}
	if err := json.Unmarshal(resp.body, &env); err == nil {
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
	}
	return apiErr
}

func decode[T any](resp response) (T, error) {
	var v T
	if err := json.Unmarshal(resp.body, &v); err != nil {
		return v, fmt.Errorf("decode case api response: %w", err)
	}
	return v, nil
}
