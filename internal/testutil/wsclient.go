package testutil

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// WSClient is a WebSocket test client exchanging JSON frames.
type WSClient struct {
	conn *websocket.Conn
	t    *testing.T
}

// NewWSClient dials the ws:// form of an http:// URL.
//
// Precondition: url must point at a WebSocket endpoint of a running server.
// Postcondition: Returns a connected WSClient or fails the test. The
// connection is closed when the test ends.
func NewWSClient(t *testing.T, url string) *WSClient {
	t.Helper()
	start := time.Now()
	wsURL := "ws" + strings.TrimPrefix(url, "http")

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("connecting to %s: %v [%s]", wsURL, err, time.Since(start))
	}
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("connecting to %s: status %d", wsURL, resp.StatusCode)
	}
	t.Cleanup(func() { conn.Close() })

	t.Logf("websocket client connected to %s [%s]", wsURL, time.Since(start))
	return &WSClient{conn: conn, t: t}
}

// ReadUntil reads frames until match accepts one or timeout passes.
//
// Postcondition: Returns the matching frame, or fails the test.
func (c *WSClient) ReadUntil(match func(frame map[string]any) bool, timeout time.Duration) map[string]any {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
	var seen int
	for {
		var frame map[string]any
		if err := c.conn.ReadJSON(&frame); err != nil {
			c.t.Fatalf("reading frames: %d seen, no match, error: %v", seen, err)
		}
		seen++
		if match(frame) {
			return frame
		}
	}
}

// Send writes v as one JSON frame.
func (c *WSClient) Send(v any) {
	c.t.Helper()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := c.conn.WriteJSON(v); err != nil {
		c.t.Fatalf("sending %v: %v", v, err)
	}
}

// Close closes the underlying connection.
func (c *WSClient) Close() {
	c.conn.Close()
}
