package interaction

import (
	"context"
	"fmt"

	"github.com/trailtalk/trailtalk/internal/gateway"
	"github.com/trailtalk/trailtalk/internal/metrics"
)

// Reconciler produces authoritative interaction counts. It only ever counts
// rows, never mutates them; every locally guessed value is replaced by what
// it returns.
type Reconciler struct {
	gw gateway.Gateway
}

// NewReconciler wraps a gateway.
func NewReconciler(gw gateway.Gateway) *Reconciler {
	return &Reconciler{gw: gw}
}

// Recount returns the current cardinality of the kind's relation for the
// post. The result is non-negative by construction and zero for an empty
// relation.
func (r *Reconciler) Recount(ctx context.Context, postID string, kind Kind) (int64, error) {
	n, err := r.gw.Count(ctx, kind.Table(), []gateway.Filter{gateway.Eq("post_id", postID)})
	if err != nil {
		metrics.GatewayErrors.WithLabelValues("count").Inc()
		return 0, fmt.Errorf("recount %s for post %s: %w", kind, postID, err)
	}
	metrics.Reconciliations.WithLabelValues(string(kind)).Inc()
	if n < 0 {
		n = 0
	}
	return n, nil
}

// RecountAll recounts every kind and returns the results keyed by kind.
// Individual failures are reported in errs but never abort the other
// recounts.
func (r *Reconciler) RecountAll(ctx context.Context, postID string) (counts map[Kind]int64, errs map[Kind]error) {
	counts = make(map[Kind]int64, len(Kinds))
	errs = make(map[Kind]error)
	for _, k := range Kinds {
		n, err := r.Recount(ctx, postID, k)
		if err != nil {
			errs[k] = err
			continue
		}
		counts[k] = n
	}
	return counts, errs
}
