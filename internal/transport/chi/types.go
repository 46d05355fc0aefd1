package chi

import "github.com/kailas-cloud/tenderfilter/internal/domain/tender"

// FilterTendersParams defines parameters for GET /api/filter.
type FilterTendersParams struct {
	// Query is the free-text search input.
	Query *string `form:"query,omitempty" json:"query,omitempty"`
	// UserID is the billing customer id checked by the subscription gate.
	UserID *string `form:"user_id,omitempty" json:"user_id,omitempty"`
}

// FilterTendersResponse is the 200 body of GET /api/filter.
type FilterTendersResponse struct {
	Success   bool    `json:"success"`
	Query     string  `json:"query"`
	Threshold float64 `json:"threshold"`
	// ResultsCount is the size of the full matching set, before truncation.
	ResultsCount    int             `json:"results_count"`
	FilteredTenders []tender.Tender `json:"filtered_tenders"`
}

// ErrorInfo carries optional hints attached to an error.
type ErrorInfo struct {
	AccessURL string `json:"access_url,omitempty"`
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error string     `json:"error"`
	Info  *ErrorInfo `json:"info,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Client-facing error messages.
const (
	MsgQueryRequired        = "Query parameter is required."
	MsgQueryTooLong         = "Query parameter is too long."
	MsgSubscriptionMissing  = "Subscription Required: a user_id with an active subscription is needed to use this API."
	MsgSubscriptionInactive = "Subscription Required: no active subscription was found for this user."
	MsgInternal             = "Failed to process tender filtering."
)
