package websocket

import (
	"CollabChatAPI/internal/helper"
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 16 * 1024
	sendBufferSize    = 256
	inboundBufferSize = 32
)

// Client is one websocket connection. ReadPump decodes frames, DispatchPump
// handles them one at a time, and WritePump drains Send.
type Client struct {
	Hub    *Hub
	Conn   *websocket.Conn
	Send   chan []byte
	UserID uuid.UUID

	inbound   chan ClientEvent
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func NewClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		Hub:     hub,
		Conn:    conn,
		Send:    make(chan []byte, sendBufferSize),
		UserID:  userID,
		inbound: make(chan ClientEvent, inboundBufferSize),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// kick cancels in-flight work and closes the socket. The read pump then fails
// and unregisters the client.
func (c *Client) kick() {
	c.closeOnce.Do(func() {
		c.cancel()
		if c.Conn != nil {
			c.Conn.Close()
		}
	})
}

func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.kick()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("Websocket closed unexpectedly", "error", err, "userID", c.UserID)
			}
			return
		}

		var ev ClientEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			c.Hub.sendError(c, "", helper.NewBadRequestError("Malformed event"))
			continue
		}

		if !c.Hub.allowInbound(c) {
			c.Hub.sendError(c, ev.Type, helper.NewTooManyRequestsError("Too many events, slow down"))
			continue
		}

		select {
		case c.inbound <- ev:
		default:
			c.Hub.sendError(c, ev.Type, helper.NewTooManyRequestsError("Too many pending events"))
		}
	}
}

// DispatchPump handles the connection's events one at a time until the client
// is kicked or disconnects.
func (c *Client) DispatchPump() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case ev := <-c.inbound:
			c.Hub.handleClientEvent(c.ctx, c, ev)
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
