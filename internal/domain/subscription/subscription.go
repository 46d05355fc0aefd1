package subscription

import "strings"

// Status is a billing subscription state as reported by Razorpay.
type Status string

// Statuses that grant access.
const (
	Active        Status = "active"
	Authenticated Status = "authenticated"
)

// Entitles reports whether a subscription in this state grants API access.
func (s Status) Entitles() bool {
	switch Status(strings.ToLower(string(s))) {
	case Active, Authenticated:
		return true
	default:
		return false
	}
}

// Subscription is a single billing subscription.
type Subscription struct {
	ID     string
	PlanID string
	Status Status
}

// Verification is the outcome of a subscription lookup for one customer.
type Verification struct {
	CustomerID string
	Entitled   []Subscription
}

// Active reports whether at least one entitling subscription was found.
func (v Verification) Active() bool { return len(v.Entitled) > 0 }

// Entitled filters subscriptions down to those that grant access, preserving order.
func Entitled(subs []Subscription) []Subscription {
	out := make([]Subscription, 0, len(subs))
	for _, s := range subs {
		if s.Status.Entitles() {
			out = append(out, s)
		}
	}
	return out
}
