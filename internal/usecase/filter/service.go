package filter

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/tenderfilter/internal/domain"
	"github.com/kailas-cloud/tenderfilter/internal/domain/query"
	"github.com/kailas-cloud/tenderfilter/internal/domain/tender"
	logpkg "github.com/kailas-cloud/tenderfilter/internal/logger"
	"github.com/kailas-cloud/tenderfilter/internal/metrics"
)

// GateMode controls when the subscription check runs.
type GateMode int

const (
	// GateOff never checks subscriptions.
	GateOff GateMode = iota
	// GateOptional checks only when a user id is supplied.
	GateOptional
	// GateRequired rejects requests without a user id.
	GateRequired
)

// ParseGateMode maps a config value to a GateMode.
func ParseGateMode(s string) (GateMode, error) {
	switch s {
	case "off":
		return GateOff, nil
	case "optional":
		return GateOptional, nil
	case "required":
		return GateRequired, nil
	default:
		return GateOff, fmt.Errorf("unknown gate mode %q", s)
	}
}

// Options configures the relevance filter.
type Options struct {
	Threshold  float64
	MaxResults int
	Keywords   query.Options
}

// DefaultOptions returns the settings used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Threshold:  0.85,
		MaxResults: 10,
		Keywords:   query.Options{MinKeywordLength: query.DefaultMinKeywordLength},
	}
}

// Result is the outcome of one filter request.
type Result struct {
	Query     string
	Threshold float64
	// Total counts every matching tender, including those cut by MaxResults.
	Total   int
	Tenders []tender.Tender
}

// Service validates a query, gates access and filters the remote dataset.
type Service struct {
	source DatasetSource
	gate   SubscriptionChecker
	mode   GateMode
	opts   Options
}

// New creates a filter service. gate may be nil only when mode is GateOff.
func New(source DatasetSource, gate SubscriptionChecker, mode GateMode, opts Options) *Service {
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultOptions().MaxResults
	}
	return &Service{source: source, gate: gate, mode: mode, opts: opts}
}

// Threshold returns the configured relevance threshold.
func (s *Service) Threshold() float64 { return s.opts.Threshold }

// Filter runs the full request pipeline: validate, verify subscription, fetch, score.
func (s *Service) Filter(ctx context.Context, rawQuery, userID string) (Result, error) {
	q, err := query.Parse(rawQuery, s.opts.Keywords)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", domain.ErrQueryRequired, err)
	}

	if err = s.checkSubscription(ctx, userID); err != nil {
		return Result{}, err
	}

	tenders, err := s.source.Fetch(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("fetch tenders: %w", err)
	}

	kept, total := Select(tenders, q.Keywords(), s.opts.Threshold, s.opts.MaxResults)
	metrics.FilterMatches.Observe(float64(total))

	logpkg.FromContext(ctx).Debug("Tenders filtered",
		zap.Int("dataset_size", len(tenders)),
		zap.Int("keywords", len(q.Keywords())),
		zap.Int("matched", total),
	)

	return Result{
		Query:     q.Text(),
		Threshold: s.opts.Threshold,
		Total:     total,
		Tenders:   kept,
	}, nil
}

// checkSubscription applies the gate. Any failure to verify denies access.
func (s *Service) checkSubscription(ctx context.Context, userID string) error {
	if s.mode == GateOff {
		return nil
	}
	if userID == "" {
		if s.mode == GateRequired {
			return domain.ErrSubscriptionRequired
		}
		return nil
	}
	if s.gate == nil {
		return fmt.Errorf("no subscription checker configured: %w", domain.ErrSubscriptionNotFound)
	}

	ctx = logpkg.WithFields(ctx, zap.String("user_id", userID))
	v, err := s.gate.Verify(ctx, userID)
	if err != nil {
		logpkg.FromContext(ctx).Warn("Subscription verification failed", zap.Error(err))
		return fmt.Errorf("verify subscription: %w: %w", domain.ErrSubscriptionNotFound, err)
	}
	if !v.Active() {
		return fmt.Errorf("customer %q: %w", userID, domain.ErrSubscriptionNotFound)
	}
	return nil
}
