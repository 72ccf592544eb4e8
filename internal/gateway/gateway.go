// Package gateway defines the relational boundary the TrailTalk core talks
// through. The hosted backend owns durability, auth, and change fan-out; the
// core only ever sees these generic query, mutation, count, and subscribe
// operations over named relations.
package gateway

import (
	"context"
	"errors"
)

// Relations consumed by the core
const (
	TablePosts       = "posts"
	TablePostLikes   = "post_likes"
	TableComments    = "comments"
	TableReposts     = "reposts"
	TableBookmarks   = "bookmarks"
	TableProfiles    = "profiles"
	TableFollows     = "follows"
	TableCommunities = "communities"
)

// Sentinel errors surfaced by gateway implementations
var (
	// ErrAuthRequired means the operation needs a signed-in user. Surfaced
	// to the caller for UI prompting; never retried.
	ErrAuthRequired = errors.New("gateway: sign-in required")

	// ErrPermissionDenied means the backend's row access policy rejected
	// the operation (e.g. deleting another user's comment).
	ErrPermissionDenied = errors.New("gateway: permission denied")

	// ErrNotFound means no row matched a single-row lookup.
	ErrNotFound = errors.New("gateway: row not found")
)

// Row is a generic relation row. Column names follow the wire format
// (snake_case); Decode converts rows into typed models.
type Row = map[string]any

// FilterOp enumerates the filter operators the core needs.
type FilterOp string

const (
	OpEq    FilterOp = "eq"
	OpIn    FilterOp = "in"
	OpILike FilterOp = "ilike"
)

// Filter is one column predicate. Filters in a slice are AND-ed.
type Filter struct {
	Column string   `json:"column"`
	Op     FilterOp `json:"op"`
	Value  any      `json:"value"`
}

// Eq matches rows whose column equals value.
func Eq(column string, value any) Filter {
	return Filter{Column: column, Op: OpEq, Value: value}
}

// In matches rows whose column is one of values.
func In(column string, values []string) Filter {
	return Filter{Column: column, Op: OpIn, Value: values}
}

// ILike matches rows whose column matches the pattern case-insensitively.
func ILike(column, pattern string) Filter {
	return Filter{Column: column, Op: OpILike, Value: pattern}
}

// Query describes a row read.
type Query struct {
	Table   string   `json:"table"`
	Columns []string `json:"columns,omitempty"` // empty selects all columns
	Filters []Filter `json:"filters,omitempty"`

	// OrFilters are OR-ed together and then AND-ed with Filters.
	// Used by search; the core's own reads never need it.
	OrFilters []Filter `json:"or_filters,omitempty"`

	OrderBy    string `json:"order_by,omitempty"`
	Descending bool   `json:"descending,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

// EventType identifies a row change kind.
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// EventMask selects which change kinds a subscription receives.
type EventMask uint8

const (
	MaskInsert EventMask = 1 << iota
	MaskUpdate
	MaskDelete

	MaskAll = MaskInsert | MaskUpdate | MaskDelete
)

// Has reports whether the mask includes the event type.
func (m EventMask) Has(t EventType) bool {
	switch t {
	case EventInsert:
		return m&MaskInsert != 0
	case EventUpdate:
		return m&MaskUpdate != 0
	case EventDelete:
		return m&MaskDelete != 0
	}
	return false
}

// ChangeEvent is an asynchronous notification of a row change on a
// subscribed relation. Before is set for updates and deletes, After for
// inserts and updates.
type ChangeEvent struct {
	Type   EventType `json:"type"`
	Table  string    `json:"table"`
	Before Row       `json:"before,omitempty"`
	After  Row       `json:"after,omitempty"`
}

// Subscription delivers change events until closed. Implementations own
// reconnection; the core carries no retry logic for dropped subscriptions.
type Subscription interface {
	// Events yields change events. The channel is closed when the
	// subscription ends, whether by Close or by the gateway going away.
	Events() <-chan ChangeEvent

	// Close tears the subscription down. Safe to call more than once.
	Close()
}

// Gateway is the full remote data boundary.
type Gateway interface {
	Select(ctx context.Context, q Query) ([]Row, error)

	// Count returns the number of matching rows without returning them.
	Count(ctx context.Context, table string, filters []Filter) (int64, error)

	Insert(ctx context.Context, table string, rows []Row) ([]Row, error)
	Update(ctx context.Context, table string, patch Row, filters []Filter) error
	Delete(ctx context.Context, table string, filters []Filter) error

	SubscribeChanges(ctx context.Context, table string, filters []Filter, mask EventMask) (Subscription, error)
}

// MatchesEq reports whether the event's row satisfies every Eq filter.
// Only Eq filters participate in subscription routing; anything else is
// ignored, which matches the coarse server-side channel semantics.
func MatchesEq(ev ChangeEvent, filters []Filter) bool {
	row := ev.After
	if row == nil {
		row = ev.Before
	}
	for _, f := range filters {
		if f.Op != OpEq {
			continue
		}
		if row == nil {
			return false
		}
		got, ok := row[f.Column]
		if !ok || !looseEqual(got, f.Value) {
			return false
		}
	}
	return true
}

// looseEqual compares scalar column values across the JSON decode boundary,
// where ints arrive as float64 and everything else as string or bool.
func looseEqual(a, b any) bool {
	if a == b {
		return true
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	return aok && bok && as == bs
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	return 0, false
}
