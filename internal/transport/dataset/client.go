// Package dataset fetches the tender list from a remote JSON document.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/tenderfilter/internal/domain"
	"github.com/kailas-cloud/tenderfilter/internal/domain/tender"
	logpkg "github.com/kailas-cloud/tenderfilter/internal/logger"
	"github.com/kailas-cloud/tenderfilter/internal/metrics"
	"github.com/kailas-cloud/tenderfilter/internal/transport/httpx"
)

const (
	upstreamName = "dataset"

	// DefaultMaxBodyBytes caps the dataset download.
	DefaultMaxBodyBytes = 32 << 20
)

var (
	errBodyTooLarge = errors.New("response body too large")
	errDecode       = errors.New("malformed dataset")
)

// Config holds the dataset source settings.
type Config struct {
	URL          string
	Timeout      time.Duration
	MaxBodyBytes int64
	HTTPClient   *http.Client         // optional; a client without its own timeout is used by default
	Breaker      httpx.CircuitBreaker // optional
	Logger       *zap.Logger
}

// Client downloads the tender dataset on every call. Nothing is cached.
type Client struct {
	url          string
	timeout      time.Duration
	maxBodyBytes int64
	http         *http.Client
	breaker      httpx.CircuitBreaker
	logger       *zap.Logger
}

// NewClient creates a dataset client.
func NewClient(cfg *Config) *Client {
	c := &Client{
		url:          cfg.URL,
		timeout:      cfg.Timeout,
		maxBodyBytes: cfg.MaxBodyBytes,
		http:         cfg.HTTPClient,
		breaker:      cfg.Breaker,
		logger:       cfg.Logger,
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.maxBodyBytes <= 0 {
		c.maxBodyBytes = DefaultMaxBodyBytes
	}
	if c.breaker == nil {
		c.breaker = httpx.NoopBreaker{}
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// Fetch downloads and decodes the tender list.
// Every failure is wrapped with domain.ErrUpstreamFailure.
func (c *Client) Fetch(ctx context.Context) ([]tender.Tender, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()

	var tenders []tender.Tender
	err := c.breaker.Execute(func() error {
		var fetchErr error
		tenders, fetchErr = c.fetch(ctx)
		return fetchErr
	})

	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(upstreamName, "error").Inc()
		metrics.UpstreamErrorsTotal.WithLabelValues(upstreamName, errorType(err)).Inc()
		log := logpkg.FromContextOr(ctx, c.logger)
		if httpx.IsUpstreamFailure(err) {
			log.Error("Dataset fetch failed", zap.String("url", c.url), zap.Error(err))
		} else {
			log.Info("Dataset fetch abandoned", zap.String("url", c.url), zap.Error(err))
		}
		return nil, fmt.Errorf("dataset fetch: %w: %w", domain.ErrUpstreamFailure, err)
	}

	metrics.UpstreamRequestsTotal.WithLabelValues(upstreamName, "success").Inc()
	metrics.UpstreamRequestDuration.WithLabelValues(upstreamName).Observe(time.Since(start).Seconds())
	return tenders, nil
}

func (c *Client) fetch(ctx context.Context) ([]tender.Tender, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", c.url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > c.maxBodyBytes {
		return nil, fmt.Errorf("%w: limit %d bytes", errBodyTooLarge, c.maxBodyBytes)
	}

	tenders, err := tender.DecodeList(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errDecode, err)
	}
	return tenders, nil
}

// HealthCheck verifies the dataset URL answers a HEAD request with a 2xx/3xx status.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.url, http.NoBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("head %s: %w", c.url, err)
	}
	_ = resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &StatusError{StatusCode: resp.StatusCode}
	}
	return nil
}

// StatusError is returned when the dataset host answers with a non-2xx status.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}

func errorType(err error) string {
	var statusErr *StatusError
	switch {
	case errors.Is(err, httpx.ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &statusErr):
		return "status"
	case errors.Is(err, errBodyTooLarge):
		return "body_too_large"
	case errors.Is(err, errDecode):
		return "decode"
	default:
		return "transport"
	}
}
