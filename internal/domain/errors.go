package domain

import "errors"

// KeyPrefix namespaces every key tenderfilter writes to the cache store.
const KeyPrefix = "tenderfilter:"

var (
	// ErrQueryRequired signals a missing or empty query parameter.
	ErrQueryRequired = errors.New("query is required")
	// ErrSubscriptionRequired signals that no user_id was supplied while the gate demands one.
	ErrSubscriptionRequired = errors.New("subscription required")
	// ErrSubscriptionNotFound signals that verification found no active subscription or could not complete.
	ErrSubscriptionNotFound = errors.New("active subscription not found")
	// ErrUpstreamFailure signals a failed dataset fetch or decode.
	ErrUpstreamFailure = errors.New("upstream failure")
	// ErrBillingProviderError signals a failed call to the billing API.
	ErrBillingProviderError = errors.New("billing provider error")
)
