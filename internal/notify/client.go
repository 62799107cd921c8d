package notify

import (
	"context"
	"slices"
	"sync"
	"time"

	ws "github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
)

// Subscription is the only frame a client sends. Views limits delivery to
// messages that mark at least one of them stale; an empty list means all.
type Subscription struct {
	Views []string `json:"views"`
}

// Client is one websocket connection and the views it cares about.
type Client struct {
	hub  *Hub
	conn *ws.Conn
	send chan Message

	mu    sync.RWMutex
	views []string
}

func NewClient(hub *Hub, conn *ws.Conn) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan Message, sendBufferSize),
	}
}

// Run blocks until the connection closes or ctx ends.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.writePump(ctx)
	c.readPump(ctx)
}

func (c *Client) subscribe(views []string) {
	c.mu.Lock()
	c.views = slices.Clone(views)
	c.mu.Unlock()
}

// wants reports whether msg touches a subscribed view. Messages without
// stale views, such as data_imported with no list, always go out.
func (c *Client) wants(msg Message) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.views) == 0 || len(msg.Stale) == 0 {
		return true
	}
	for _, v := range msg.Stale {
		if slices.Contains(c.views, v) {
			return true
		}
	}
	return false
}

// readPump applies subscription frames. A frame that is not valid JSON
// closes the connection.
func (c *Client) readPump(ctx context.Context) {
	for {
		var sub Subscription
		if err := wsjson.Read(ctx, c.conn, &sub); err != nil {
			return
		}
		c.subscribe(sub.Views)
		c.hub.logger.Debug("websocket client subscribed", "views", sub.Views)
	}
}

func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := wsjson.Write(ctx, c.conn, msg); err != nil {
				c.hub.logger.Debug("websocket write failed", "type", msg.Type, "error", err)
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
