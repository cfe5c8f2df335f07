package ws

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/coder/websocket"
)

// Client represents a single connected WebSocket connection. A connection
// holds exactly one user identity for its lifetime and zero or more room
// subscriptions, all of which die with it.
type Client struct {
	// ID uniquely identifies this connection.
	ID string
	// UserID is the stubbed identity bound at upgrade time.
	UserID string

	conn   *websocket.Conn
	send   chan []byte
	bridge *Bridge
}

// readPump pumps frames from the WebSocket connection into the bridge until
// the connection drops, then triggers unregistration.
func (c *Client) readPump() {
	defer func() {
		c.bridge.unregister <- c
		c.conn.Close(websocket.StatusNormalClosure, "Client disconnected")
	}()

	for {
		_, frame, err := c.conn.Read(context.Background())
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure || websocket.CloseStatus(err) == websocket.StatusGoingAway {
				slog.Info("WebSocket closed normally by client", "clientID", c.ID)
			} else if err != io.EOF {
				slog.Error("WebSocket read error", "clientID", c.ID, "error", err)
			}
			break
		}

		c.bridge.routeInbound(c.ID, frame)
	}
}

// writePump pumps messages from the client's send channel to the WebSocket
// connection.
func (c *Client) writePump() {
	defer func() {
		c.conn.Close(websocket.StatusNormalClosure, "Server-side cleanup")
	}()

	for {
		message, ok := <-c.send
		if !ok {
			// The bridge closed the channel.
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := c.conn.Write(ctx, websocket.MessageText, message)
		cancel()
		if err != nil {
			slog.Error("WebSocket write error", "clientID", c.ID, "error", err)
			return
		}
	}
}
