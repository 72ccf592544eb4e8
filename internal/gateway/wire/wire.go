// Package wire holds the request and response shapes spoken between the
// REST gateway client and the dev gateway server.
package wire

import "github.com/trailtalk/trailtalk/internal/gateway"

// Error codes carried in ErrorResponse.Code.
const (
	CodeAuthRequired     = "auth_required"
	CodePermissionDenied = "permission_denied"
	CodeNotFound         = "not_found"
	CodeBadRequest       = "bad_request"
	CodeInternal         = "internal"
)

// ErrorResponse is the JSON body of every non-2xx reply.
type ErrorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// RowsResponse carries selected or inserted rows.
type RowsResponse struct {
	Rows []gateway.Row `json:"rows"`
}

// CountRequest asks for the number of matching rows.
type CountRequest struct {
	Table   string           `json:"table"`
	Filters []gateway.Filter `json:"filters,omitempty"`
}

// CountResponse carries the count.
type CountResponse struct {
	Count int64 `json:"count"`
}

// InsertRequest creates rows in one relation.
type InsertRequest struct {
	Table string        `json:"table"`
	Rows  []gateway.Row `json:"rows"`
}

// UpdateRequest patches matching rows.
type UpdateRequest struct {
	Table   string           `json:"table"`
	Patch   gateway.Row      `json:"patch"`
	Filters []gateway.Filter `json:"filters,omitempty"`
}

// DeleteRequest removes matching rows.
type DeleteRequest struct {
	Table   string           `json:"table"`
	Filters []gateway.Filter `json:"filters,omitempty"`
}

// TokenRequest asks the dev gateway to mint a session token. Development
// convenience only; real tokens come from the hosted auth service.
type TokenRequest struct {
	UserID string `json:"user_id"`
}

// TokenResponse carries the minted bearer token.
type TokenResponse struct {
	Token string `json:"token"`
}

// Subscription control actions sent client to server on the realtime socket.
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
)

// ControlFrame manages one multiplexed subscription on the realtime socket.
// ID is chosen by the client and scopes every event back to its subscription.
type ControlFrame struct {
	Action  string            `json:"action"`
	ID      uint64            `json:"id"`
	Table   string            `json:"table,omitempty"`
	Filters []gateway.Filter  `json:"filters,omitempty"`
	Mask    gateway.EventMask `json:"mask,omitempty"`
}

// EventFrame is one change event pushed server to client.
type EventFrame struct {
	ID    uint64              `json:"id"`
	Event gateway.ChangeEvent `json:"event"`
}
