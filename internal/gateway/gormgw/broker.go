package gormgw

import (
	"sync"

	"go.uber.org/zap"

	"github.com/trailtalk/trailtalk/internal/gateway"
	"github.com/trailtalk/trailtalk/internal/logger"
	"github.com/trailtalk/trailtalk/internal/metrics"
)

// subscriptionBuffer is the per-subscriber event queue depth. A subscriber
// that falls this far behind starts losing events; the core treats realtime
// as a refresh trigger, so a dropped event only delays convergence until the
// next one.
const subscriptionBuffer = 64

// broker fans change events out to matching subscriptions in-process.
type broker struct {
	mu   sync.RWMutex
	subs map[*subscription]struct{}
}

func newBroker() *broker {
	return &broker{subs: make(map[*subscription]struct{})}
}

type subscription struct {
	b       *broker
	table   string
	filters []gateway.Filter
	mask    gateway.EventMask
	ch      chan gateway.ChangeEvent
	once    sync.Once
}

// Events implements gateway.Subscription.
func (s *subscription) Events() <-chan gateway.ChangeEvent {
	return s.ch
}

// Close implements gateway.Subscription.
func (s *subscription) Close() {
	s.once.Do(func() {
		s.b.remove(s)
		close(s.ch)
	})
}

func (b *broker) subscribe(table string, filters []gateway.Filter, mask gateway.EventMask) *subscription {
	sub := &subscription{
		b:       b,
		table:   table,
		filters: filters,
		mask:    mask,
		ch:      make(chan gateway.ChangeEvent, subscriptionBuffer),
	}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

func (b *broker) remove(sub *subscription) {
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()
}

func (b *broker) publish(ev gateway.ChangeEvent) {
	metrics.RealtimeEvents.WithLabelValues(ev.Table, string(ev.Type)).Inc()

	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs {
		if sub.table != ev.Table || !sub.mask.Has(ev.Type) {
			continue
		}
		if !gateway.MatchesEq(ev, sub.filters) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			logger.Log.Warn("Dropping change event for slow subscriber",
				logger.WithTable(ev.Table), zap.String("event", string(ev.Type)))
		}
	}
}
