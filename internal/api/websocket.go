package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AaronLay10/plannerbench/internal/events"
)

const (
	// Number of recent events to send on connection
	recentEventsCount = 50

	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Read-only stream of public run events.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsConn pairs a connection with its event subscription.
type wsConn struct {
	conn *websocket.Conn
	sub  events.Subscriber
}

func (c *wsConn) close() {
	events.Unsubscribe(c.sub)
	c.conn.Close()
}

func (c *wsConn) write(messageType int, data []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, data)
}

func (c *wsConn) writeEvent(e events.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return nil
	}
	return c.write(websocket.TextMessage, data)
}

// wsEventsHandler streams events over a WebSocket: the recent backlog
// first, then live events until the peer goes away.
func wsEventsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	// ?prefix=job. streams job events only.
	filter := events.Filter(r.URL.Query()["prefix"])
	c := &wsConn{conn: conn, sub: events.Subscribe()}

	for _, e := range filter.Recent(recentEventsCount) {
		if err := c.writeEvent(e); err != nil {
			log.Printf("ws write recent event failed: %v", err)
			c.close()
			return
		}
	}

	// The reader only services pongs and close frames.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			c.close()
			return

		case e, ok := <-c.sub:
			if !ok {
				// Closed on shutdown.
				conn.Close()
				return
			}
			if !filter.Match(e) {
				continue
			}
			if err := c.writeEvent(e); err != nil {
				log.Printf("ws write event failed: %v", err)
				c.close()
				return
			}

		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}
