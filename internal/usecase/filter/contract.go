package filter

import (
	"context"

	"github.com/kailas-cloud/tenderfilter/internal/domain/subscription"
	"github.com/kailas-cloud/tenderfilter/internal/domain/tender"
)

// DatasetSource retrieves the full tender list.
type DatasetSource interface {
	Fetch(ctx context.Context) ([]tender.Tender, error)
}

// SubscriptionChecker looks up a customer's billing subscriptions.
type SubscriptionChecker interface {
	Verify(ctx context.Context, customerID string) (subscription.Verification, error)
}
