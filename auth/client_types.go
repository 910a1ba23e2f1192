package auth

import (
	"net/http"

	"github.com/grafana/rbac-actions/types"
)

// HTTPRequestDoer performs HTTP requests.
// The standard http.Client implements this interface.
type HTTPRequestDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Response is the envelope of every admin API response.
type Response[T any] struct {
	Data  *T        `json:"data"`
	Error *APIError `json:"error,omitempty"`
}

type APIError struct {
	Status  int    `json:"status"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

// CheckItem is a single permission submitted to the server for condition evaluation.
type CheckItem struct {
	Action  string `json:"action"`
	Subject string `json:"subject,omitempty"`
	Field   string `json:"field,omitempty"`
}

type checkRequest struct {
	Permissions []CheckItem `json:"permissions"`
}

// checkQuery is the context the conditions are evaluated in.
type checkQuery struct {
	Locale string `url:"locale,omitempty"`
}

func toCheckItems(permissions []types.Permission) []CheckItem {
	items := make([]CheckItem, 0, len(permissions))
	for _, p := range permissions {
		items = append(items, CheckItem{Action: p.Action, Subject: p.Subject})
	}
	return items
}
