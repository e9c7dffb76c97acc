package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/oauth2"

	"github.com/dtroode/jobboard-client/internal/config"
	"github.com/dtroode/jobboard-client/internal/logger"
	"github.com/dtroode/jobboard-client/internal/model"
)

// CSRFHeader carries the anti-forgery token when one is known.
const CSRFHeader = "X-CSRF-Token"

const maxBodySize = 1 << 20

var errRetryableStatus = errors.New("retryable status")

// CSRFSource returns the current anti-forgery token, empty when none.
type CSRFSource func(ctx context.Context) string

// Ensure Client implements the model.AuthAPI interface.
var _ model.AuthAPI = (*Client)(nil)

// Client is the API gateway: every backend call goes through it with a fixed
// per-attempt timeout, bounded transport-level retry and uniform error
// classification.
type Client struct {
	baseURL    string
	timeout    time.Duration
	maxRetries uint64
	retryDelay time.Duration
	transport  http.RoundTripper
	csrf       CSRFSource
	logger     *logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTransport overrides the underlying round tripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.transport = rt
	}
}

// WithCSRFSource sets the anti-forgery token source.
func WithCSRFSource(src CSRFSource) Option {
	return func(c *Client) {
		c.csrf = src
	}
}

// New creates a new API gateway client.
func New(cfg config.API, logger *logger.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		transport:  http.DefaultTransport,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type response struct {
	status int
	body   []byte
}

type envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Code    string            `json:"code"`
	Data    model.LockoutData `json:"data"`
}

func (r response) envelope() (envelope, bool) {
	var env envelope
	if len(r.body) == 0 {
		return env, false
	}
	if err := json.Unmarshal(r.body, &env); err != nil {
		return env, false
	}
	return env, true
}

func (r response) ok() bool {
	return r.status >= 200 && r.status < 300
}

func (r response) retryable() bool {
	if r.status >= 500 {
		return true
	}
	if r.status == http.StatusTooManyRequests {
		env, _ := r.envelope()
		return env.Code != model.LockoutCode
	}
	return false
}

// send performs a request with retries. The returned error is always a
// KindNetwork *model.APIError; HTTP statuses are left to the caller.
func (c *Client) send(ctx context.Context, method, path string, payload any, bearer string) (response, error) {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return response{}, model.NewAPIError(model.KindUnknown, 0, "", fmt.Errorf("failed to marshal request: %w", err))
		}
	}

	httpClient := &http.Client{Timeout: c.timeout, Transport: c.transport}
	if bearer != "" {
		httpClient.Transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: bearer}),
			Base:   c.transport,
		}
	}

	var (
		resp    response
		lastErr error
	)
	operation := func() error {
		r, err := c.roundTrip(ctx, httpClient, method, path, body)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		resp, lastErr = r, nil
		if r.retryable() {
			return errRetryableStatus
		}
		return nil
	}

	notify := func(err error, wait time.Duration) {
		c.logger.Debug("API client: request failed, retrying",
			"method", method,
			"path", path,
			"status", resp.status,
			"wait", wait,
			"error", err.Error())
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), c.maxRetries), ctx), notify)
	if err != nil && !errors.Is(err, errRetryableStatus) {
		if lastErr == nil {
			lastErr = err
		}
		c.logger.Warn("API client: request failed",
			"method", method,
			"path", path,
			"error", lastErr.Error())
		return response{}, model.NewAPIError(model.KindNetwork, 0, "", lastErr)
	}

	return resp, nil
}

func (c *Client) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryDelay
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func (c *Client) roundTrip(ctx context.Context, httpClient *http.Client, method, path string, body []byte) (response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return response{}, backoff.Permanent(fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.csrf != nil {
		if token := c.csrf(ctx); token != "" {
			req.Header.Set(CSRFHeader, token)
		}
	}

	res, err := httpClient.Do(req)
	if err != nil {
		return response{}, err
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxBodySize))
	if err != nil {
		return response{}, fmt.Errorf("failed to read response body: %w", err)
	}

	return response{status: res.StatusCode, body: data}, nil
}

// failure classifies a non-2xx response. A 401 means the bearer credential
// was rejected only on bearer calls; elsewhere it is a business rejection.
func failure(resp response, bearer bool, fallback string) error {
	env, _ := resp.envelope()
	msg := env.Message
	if msg == "" {
		msg = fallback
	}

	switch {
	case resp.status == http.StatusUnauthorized && bearer:
		return &model.APIError{Kind: model.KindAuthorization, Status: resp.status, Code: env.Code, Message: env.Message}
	case env.Code == model.LockoutCode:
		return &model.APIError{Kind: model.KindLockout, Status: resp.status, Code: env.Code, Message: msg, LockoutRemaining: env.Data.LockoutRemaining}
	case resp.retryable():
		return &model.APIError{Kind: model.KindNetwork, Status: resp.status, Code: env.Code, Message: env.Message}
	case resp.status >= 400:
		return &model.APIError{Kind: model.KindValidation, Status: resp.status, Code: env.Code, Message: msg}
	default:
		return &model.APIError{Kind: model.KindUnknown, Status: resp.status, Message: env.Message, Err: model.ErrMalformedResponse}
	}
}

func decode(resp response, out any) error {
	if err := json.Unmarshal(resp.body, out); err != nil {
		return &model.APIError{Kind: model.KindUnknown, Status: resp.status, Err: fmt.Errorf("%w: %v", model.ErrMalformedResponse, err)}
	}
	return nil
}
