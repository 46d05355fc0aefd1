// Package razorpay verifies customer subscriptions against the Razorpay API.
package razorpay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/tenderfilter/internal/domain"
	"github.com/kailas-cloud/tenderfilter/internal/domain/subscription"
	logpkg "github.com/kailas-cloud/tenderfilter/internal/logger"
	"github.com/kailas-cloud/tenderfilter/internal/metrics"
	"github.com/kailas-cloud/tenderfilter/internal/transport/httpx"
)

const (
	upstreamName     = "razorpay"
	subscriptionPath = "/v1/subscriptions"
	maxBodyBytes     = 1 << 20
)

// Config holds the Razorpay client settings.
type Config struct {
	BaseURL    string
	KeyID      string
	KeySecret  string
	PlanID     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Breaker    httpx.CircuitBreaker
	Logger     *zap.Logger
}

// Checker looks up subscriptions for a customer and plan.
type Checker struct {
	baseURL   string
	keyID     string
	keySecret string
	planID    string
	timeout   time.Duration
	http      *http.Client
	breaker   httpx.CircuitBreaker
	logger    *zap.Logger
}

// NewChecker creates a Razorpay subscription checker.
func NewChecker(cfg *Config) *Checker {
	c := &Checker{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		keyID:     cfg.KeyID,
		keySecret: cfg.KeySecret,
		planID:    cfg.PlanID,
		timeout:   cfg.Timeout,
		http:      cfg.HTTPClient,
		breaker:   cfg.Breaker,
		logger:    cfg.Logger,
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.breaker == nil {
		c.breaker = httpx.NoopBreaker{}
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// subscriptionList mirrors the Razorpay collection response.
type subscriptionList struct {
	Items []struct {
		ID         string `json:"id"`
		PlanID     string `json:"plan_id"`
		CustomerID string `json:"customer_id"`
		Status     string `json:"status"`
	} `json:"items"`
}

// Verify returns the entitling subscriptions of a customer.
// Every failure is wrapped with domain.ErrBillingProviderError.
func (c *Checker) Verify(ctx context.Context, customerID string) (subscription.Verification, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()

	var list subscriptionList
	err := c.breaker.Execute(func() error {
		var callErr error
		list, callErr = c.list(ctx, customerID)
		return callErr
	})
	log := logpkg.FromContextOr(ctx, c.logger)
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(upstreamName, "error").Inc()
		metrics.UpstreamErrorsTotal.WithLabelValues(upstreamName, errorType(err)).Inc()
		if httpx.IsUpstreamFailure(err) {
			log.Error("Razorpay subscription lookup failed", zap.Error(err))
		} else {
			log.Info("Razorpay rejected subscription lookup", zap.Error(err))
		}
		return subscription.Verification{}, fmt.Errorf("razorpay: %w: %w", domain.ErrBillingProviderError, err)
	}

	metrics.UpstreamRequestsTotal.WithLabelValues(upstreamName, "success").Inc()
	metrics.UpstreamRequestDuration.WithLabelValues(upstreamName).Observe(time.Since(start).Seconds())

	subs := make([]subscription.Subscription, 0, len(list.Items))
	for _, it := range list.Items {
		subs = append(subs, subscription.Subscription{
			ID:     it.ID,
			PlanID: it.PlanID,
			Status: subscription.Status(it.Status),
		})
	}
	entitled := subscription.Entitled(subs)

	log.Debug("Subscription verified",
		zap.String("customer_id", customerID),
		zap.Int("returned", len(subs)),
		zap.Int("entitled", len(entitled)),
	)

	return subscription.Verification{CustomerID: customerID, Entitled: entitled}, nil
}

func (c *Checker) list(ctx context.Context, customerID string) (subscriptionList, error) {
	q := url.Values{}
	q.Set("customer_id", customerID)
	q.Set("plan_id", c.planID)
	q.Set("status", "active")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+subscriptionPath+"?"+q.Encode(), http.NoBody)
	if err != nil {
		return subscriptionList{}, fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return subscriptionList{}, fmt.Errorf("list subscriptions: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return subscriptionList{}, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return subscriptionList{}, &APIError{StatusCode: resp.StatusCode, Description: extractDescription(body)}
	}

	var list subscriptionList
	if err := json.Unmarshal(body, &list); err != nil {
		return subscriptionList{}, fmt.Errorf("%w: %w", errMalformed, err)
	}
	return list, nil
}

var errMalformed = errors.New("malformed subscription list")

// APIError is a non-2xx answer from Razorpay.
type APIError struct {
	StatusCode  int
	Description string
}

// CallerFault reports whether Razorpay rejected the request itself, such as
// an unknown customer id. Auth, timeout and rate-limit answers are not caller faults.
func (e *APIError) CallerFault() bool {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusRequestTimeout, http.StatusTooManyRequests:
		return false
	}
	return e.StatusCode >= 400 && e.StatusCode < 500
}

func (e *APIError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Description)
	}
	return fmt.Sprintf("api error %d", e.StatusCode)
}

// extractDescription pulls error.description out of a Razorpay error body.
func extractDescription(body []byte) string {
	var parsed struct {
		Error struct {
			Description string `json:"description"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &parsed) == nil {
		return parsed.Error.Description
	}
	return ""
}

func errorType(err error) string {
	var apiErr *APIError
	switch {
	case errors.Is(err, httpx.ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &apiErr):
		return "api_error"
	case errors.Is(err, errMalformed):
		return "decode"
	default:
		return "transport"
	}
}
