package rest

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/trailtalk/trailtalk/internal/gateway"
	"github.com/trailtalk/trailtalk/internal/gateway/wire"
	"github.com/trailtalk/trailtalk/internal/logger"
)

const (
	reconnectBase = time.Second
	reconnectMax  = 30 * time.Second
	eventBuffer   = 64
)

// realtime owns one websocket to the gateway and multiplexes every
// subscription over it. The connection is dialed lazily on the first
// subscribe and redialed with backoff when it drops; active subscriptions
// are replayed after every reconnect.
type realtime struct {
	url   string
	token string

	mu     sync.Mutex
	ws     *websocket.Conn
	nextID uint64
	subs   map[uint64]*subscription
	closed bool
}

// subscription is one multiplexed change stream.
type subscription struct {
	rt    *realtime
	id    uint64
	frame wire.ControlFrame
	ch    chan gateway.ChangeEvent
	once  sync.Once
}

func (s *subscription) Events() <-chan gateway.ChangeEvent { return s.ch }

func (s *subscription) Close() {
	s.once.Do(func() {
		s.rt.unsubscribe(s.id)
	})
}

func newRealtime(baseURL string) *realtime {
	return &realtime{
		url:  websocketURL(baseURL),
		subs: make(map[uint64]*subscription),
	}
}

// websocketURL maps the gateway's HTTP base to its realtime endpoint.
func websocketURL(baseURL string) string {
	u := strings.TrimSuffix(baseURL, "/")
	u = strings.Replace(u, "https://", "wss://", 1)
	u = strings.Replace(u, "http://", "ws://", 1)
	return u + "/realtime"
}

func (rt *realtime) setToken(token string) {
	rt.mu.Lock()
	rt.token = token
	rt.mu.Unlock()
}

func (rt *realtime) subscribe(ctx context.Context, table string, filters []gateway.Filter, mask gateway.EventMask) (gateway.Subscription, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.closed {
		return nil, gateway.ErrNotFound
	}
	if rt.ws == nil {
		if err := rt.dialLocked(ctx); err != nil {
			return nil, err
		}
	}

	rt.nextID++
	sub := &subscription{
		rt: rt,
		id: rt.nextID,
		frame: wire.ControlFrame{
			Action:  wire.ActionSubscribe,
			ID:      rt.nextID,
			Table:   table,
			Filters: filters,
			Mask:    mask,
		},
		ch: make(chan gateway.ChangeEvent, eventBuffer),
	}
	rt.subs[sub.id] = sub

	if err := wsjson.Write(ctx, rt.ws, sub.frame); err != nil {
		delete(rt.subs, sub.id)
		return nil, err
	}
	return sub, nil
}

// dialLocked connects and starts the read loop. Caller holds rt.mu.
func (rt *realtime) dialLocked(ctx context.Context) error {
	opts := &websocket.DialOptions{}
	if rt.token != "" {
		opts.HTTPHeader = http.Header{"Authorization": {"Bearer " + rt.token}}
	}
	ws, _, err := websocket.Dial(ctx, rt.url, opts)
	if err != nil {
		return err
	}
	rt.ws = ws
	go rt.readLoop(ws)
	return nil
}

// readLoop dispatches pushed events until the socket dies, then hands off
// to the reconnect loop.
func (rt *realtime) readLoop(ws *websocket.Conn) {
	ctx := context.Background()
	for {
		var frame wire.EventFrame
		if err := wsjson.Read(ctx, ws, &frame); err != nil {
			rt.mu.Lock()
			stale := rt.ws != ws
			closed := rt.closed
			if !stale {
				rt.ws = nil
			}
			hasSubs := len(rt.subs) > 0
			rt.mu.Unlock()

			if stale || closed {
				return
			}
			if hasSubs {
				logger.Log.Warn("Realtime socket dropped, reconnecting", zap.Error(err))
				go rt.reconnect()
			}
			return
		}
		rt.dispatch(frame)
	}
}

// dispatch delivers under rt.mu so a concurrent unsubscribe cannot close
// the channel mid-send. The send never blocks.
func (rt *realtime) dispatch(frame wire.EventFrame) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	sub, ok := rt.subs[frame.ID]
	if !ok {
		return
	}
	select {
	case sub.ch <- frame.Event:
	default:
		logger.Log.Warn("Dropping realtime event, subscriber too slow",
			logger.WithTable(frame.Event.Table))
	}
}

// reconnect redials with exponential backoff and replays every active
// subscription frame on the fresh socket.
func (rt *realtime) reconnect() {
	backoff := reconnectBase
	for {
		time.Sleep(backoff)

		rt.mu.Lock()
		if rt.closed || len(rt.subs) == 0 {
			rt.mu.Unlock()
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := rt.dialLocked(ctx)
		cancel()
		if err == nil {
			ws := rt.ws
			for _, sub := range rt.subs {
				if werr := wsjson.Write(context.Background(), ws, sub.frame); werr != nil {
					logger.Log.Warn("Realtime resubscribe failed", zap.Error(werr))
					break
				}
			}
			rt.mu.Unlock()
			logger.Log.Info("Realtime socket reconnected")
			return
		}
		rt.mu.Unlock()

		logger.Log.Warn("Realtime reconnect failed", zap.Error(err))
		backoff *= 2
		if backoff > reconnectMax {
			backoff = reconnectMax
		}
	}
}

func (rt *realtime) unsubscribe(id uint64) {
	rt.mu.Lock()
	sub, ok := rt.subs[id]
	if ok {
		delete(rt.subs, id)
		close(sub.ch)
	}
	ws := rt.ws
	rt.mu.Unlock()
	if !ok {
		return
	}

	if ws != nil {
		frame := wire.ControlFrame{Action: wire.ActionUnsubscribe, ID: id}
		if err := wsjson.Write(context.Background(), ws, frame); err != nil {
			logger.Log.Debug("Unsubscribe frame failed", zap.Error(err))
		}
	}
}

func (rt *realtime) close() {
	rt.mu.Lock()
	if rt.closed {
		rt.mu.Unlock()
		return
	}
	rt.closed = true
	for _, sub := range rt.subs {
		close(sub.ch)
	}
	rt.subs = map[uint64]*subscription{}
	ws := rt.ws
	rt.ws = nil
	rt.mu.Unlock()

	if ws != nil {
		ws.Close(websocket.StatusNormalClosure, "client closing")
	}
}
