package chi

import (
	"fmt"
	"net/http"

	"github.com/oapi-codegen/runtime"
)

// bindFilterTendersParams reads the query string of GET /api/filter.
// Both parameters are optional at this layer; the filter service decides what is required.
func bindFilterTendersParams(r *http.Request) (FilterTendersParams, error) {
	var params FilterTendersParams

	if err := runtime.BindQueryParameter("form", true, false, "query", r.URL.Query(), &params.Query); err != nil {
		return params, fmt.Errorf("invalid format for parameter query: %w", err)
	}
	if err := runtime.BindQueryParameter("form", true, false, "user_id", r.URL.Query(), &params.UserID); err != nil {
		return params, fmt.Errorf("invalid format for parameter user_id: %w", err)
	}
	return params, nil
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
