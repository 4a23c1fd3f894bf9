package gateway

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tphan267/huddle/pkg/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer, enough for SDP with many candidates.
	maxMessageSize = 64 * 1024
)

// Conn is one participant's websocket connection
type Conn struct {
	ID    string
	Codec protocol.Codec

	gw   *Gateway
	ws   *websocket.Conn
	send chan protocol.Message

	mu     sync.Mutex
	closed bool
}

// Send queues msg for the writer goroutine without blocking. It reports false
// when the queue is full or the connection is gone.
func (c *Conn) Send(msg protocol.Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Conn) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ReadPump decodes frames and hands them to the gateway. When it returns the
// connection has left its room, whether or not it asked to.
func (c *Conn) ReadPump() {
	defer func() {
		c.gw.disconnect(c)
		c.ws.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.gw.log.Warn("read error on %s: %v", c.ID, err)
			}
			return
		}

		msg, err := c.Codec.Decode(data)
		if err != nil {
			c.gw.decodeErrors.Add(1)
			c.gw.log.Warn("skipping frame from %s: %v", c.ID, err)
			continue
		}

		c.gw.Dispatch(c, msg)
	}
}

// WritePump is the only writer on the websocket.
func (c *Conn) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := c.Codec.Encode(msg)
			if err != nil {
				c.gw.log.Error("failed to encode %s for %s: %v", msg.Kind(), c.ID, err)
				continue
			}
			if err := c.ws.WriteMessage(c.Codec.FrameType(), data); err != nil {
				c.gw.log.Warn("write error on %s: %v", c.ID, err)
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
