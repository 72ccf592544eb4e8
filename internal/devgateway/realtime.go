package devgateway

import (
	"context"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/trailtalk/trailtalk/internal/gateway"
	"github.com/trailtalk/trailtalk/internal/gateway/wire"
	"github.com/trailtalk/trailtalk/internal/logger"
)

// conn multiplexes change subscriptions over one websocket. The client opens
// subscriptions with control frames and scopes events back by id.
type conn struct {
	ws *websocket.Conn

	writeMu sync.Mutex
	mu      sync.Mutex
	subs    map[uint64]gateway.Subscription
}

// handleRealtime upgrades to a websocket and serves subscription traffic
// until the client goes away. Auth is not required to listen; change events
// carry no more than the rows the query API would return.
func (s *Server) handleRealtime(c *gin.Context) {
	ws, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
		CompressionMode:    websocket.CompressionContextTakeover,
	})
	if err != nil {
		logger.Log.Warn("Realtime upgrade failed", zap.Error(err))
		return
	}

	rc := &conn{ws: ws, subs: make(map[uint64]gateway.Subscription)}
	defer rc.closeAll()

	ctx := c.Request.Context()
	for {
		var frame wire.ControlFrame
		if err := wsjson.Read(ctx, ws, &frame); err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure &&
				websocket.CloseStatus(err) != websocket.StatusGoingAway {
				logger.Log.Debug("Realtime read ended", zap.Error(err))
			}
			return
		}
		switch frame.Action {
		case wire.ActionSubscribe:
			s.openSubscription(ctx, rc, frame)
		case wire.ActionUnsubscribe:
			rc.drop(frame.ID)
		}
	}
}

func (s *Server) openSubscription(ctx context.Context, rc *conn, frame wire.ControlFrame) {
	mask := frame.Mask
	if mask == 0 {
		mask = gateway.MaskAll
	}
	sub, err := s.base.SubscribeChanges(ctx, frame.Table, frame.Filters, mask)
	if err != nil {
		logger.Log.Warn("Realtime subscribe failed",
			logger.WithTable(frame.Table), zap.Error(err))
		return
	}

	rc.mu.Lock()
	if prev, ok := rc.subs[frame.ID]; ok {
		prev.Close()
	}
	rc.subs[frame.ID] = sub
	rc.mu.Unlock()

	go func() {
		for ev := range sub.Events() {
			if err := rc.write(ctx, wire.EventFrame{ID: frame.ID, Event: ev}); err != nil {
				sub.Close()
				return
			}
		}
	}()
}

// write serializes event frames; forwarder goroutines share the socket.
func (c *conn) write(ctx context.Context, frame wire.EventFrame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return wsjson.Write(ctx, c.ws, frame)
}

func (c *conn) drop(id uint64) {
	c.mu.Lock()
	sub, ok := c.subs[id]
	delete(c.subs, id)
	c.mu.Unlock()
	if ok {
		sub.Close()
	}
}

func (c *conn) closeAll() {
	c.mu.Lock()
	subs := c.subs
	c.subs = map[uint64]gateway.Subscription{}
	c.mu.Unlock()
	for _, sub := range subs {
		sub.Close()
	}
	c.ws.Close(websocket.StatusNormalClosure, "server closing")
}
