package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cory-johannsen/destiny/internal/game/event"
	"github.com/cory-johannsen/destiny/internal/gameserver"
)

const (
	// MaxMessageSize caps one inbound action.
	MaxMessageSize = 64 << 10
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
)

// DefaultWriteTimeout applies when the gateway config leaves it unset.
const DefaultWriteTimeout = 5 * time.Second

// Message types sent to WebSocket clients.
const (
	TypeEvent   = "event"
	TypeOutcome = "outcome"
	TypeError   = "error"
)

// Message is one frame sent to a WebSocket client.
type Message struct {
	Type    string              `json:"type"`
	Event   *event.Event        `json:"event,omitempty"`
	Outcome *gameserver.Outcome `json:"outcome,omitempty"`
	Error   string              `json:"error,omitempty"`
	Code    string              `json:"code,omitempty"`
}

// client is one WebSocket connection. readPump turns inbound frames into
// actions; writePump is the only writer of the connection and merges the
// action replies with the event stream.
type client struct {
	id      string
	gw      *Gateway
	conn    *websocket.Conn
	events  <-chan event.Event
	cancel  func()
	replies chan Message
	done    chan struct{}
	once    sync.Once
}

func newClient(gw *Gateway, conn *websocket.Conn) *client {
	events, cancel := gw.game.Bus().Channel(gw.cfg.EventBuffer)
	return &client{
		id:      uuid.NewString(),
		gw:      gw,
		conn:    conn,
		events:  events,
		cancel:  cancel,
		replies: make(chan Message, 16),
		done:    make(chan struct{}),
	}
}

// close releases the bus subscription and the connection once.
func (c *client) close() {
	c.once.Do(func() {
		c.cancel()
		close(c.done)
		_ = c.conn.Close()
		c.gw.logger.Info("websocket client disconnected", zap.String("client", c.id))
	})
}

func (c *client) readPump() {
	defer c.close()
	c.conn.SetReadLimit(MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.gw.logger.Warn("websocket read", zap.String("client", c.id), zap.Error(err))
			}
			return
		}
		reply := c.handle(raw)
		select {
		case c.replies <- reply:
		case <-c.done:
			return
		}
	}
}

func (c *client) handle(raw []byte) Message {
	var a gameserver.Action
	if err := json.Unmarshal(raw, &a); err != nil {
		return Message{Type: TypeError, Error: "decoding action: " + err.Error(), Code: "InvalidArgument"}
	}
	out, err := c.gw.game.Act(context.Background(), a)
	if err != nil {
		return Message{Type: TypeError, Error: err.Error(), Code: gameserver.ErrorCode(err).String()}
	}
	return Message{Type: TypeOutcome, Outcome: &out}
}

func (c *client) writePump() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		c.close()
	}()
	for {
		select {
		case <-c.done:
			return
		case ev, ok := <-c.events:
			if !ok {
				return
			}
			if !c.write(Message{Type: TypeEvent, Event: &ev}) {
				return
			}
		case m := <-c.replies:
			if !c.write(m) {
				return
			}
		case <-ping.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.gw.writeTimeout()))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) write(m Message) bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.gw.writeTimeout()))
	if err := c.conn.WriteJSON(m); err != nil {
		c.gw.logger.Warn("websocket write", zap.String("client", c.id), zap.Error(err))
		return false
	}
	return true
}

func (g *Gateway) writeTimeout() time.Duration {
	if g.cfg.WriteTimeout > 0 {
		return g.cfg.WriteTimeout
	}
	return DefaultWriteTimeout
}
