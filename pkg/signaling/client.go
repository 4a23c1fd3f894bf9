package signaling

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tphan267/huddle/pkg/logger"
	"github.com/tphan267/huddle/pkg/protocol"
	"github.com/tphan267/huddle/pkg/utils"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
	outboundSize = 100
)

// Client is a participant's connection to the signaling server. A dropped
// connection is reported to the handler and never re-established.
type Client struct {
	serverURL string
	codec     protocol.Codec
	conn      *websocket.Conn
	mutex     sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc

	handler      Handler
	outboundChan chan protocol.Message

	closing   chan struct{}
	closeOnce sync.Once
	writerWG  sync.WaitGroup

	logger *logger.Logger
}

// NewClient creates a client for the server at serverURL (http or ws scheme)
func NewClient(serverURL string, codec protocol.Codec, log *logger.Logger) *Client {
	if codec == nil {
		codec = protocol.JSON
	}
	if log == nil {
		log = logger.NewDefault("HUDDLE")
	}
	return &Client{
		serverURL:    serverURL,
		codec:        codec,
		outboundChan: make(chan protocol.Message, outboundSize),
		closing:      make(chan struct{}),
		logger:       log,
	}
}

// Connect dials the server and starts the reader and writer goroutines.
// Unlike a background service it does not retry: the error is returned.
func (c *Client) Connect(ctx context.Context, handler Handler) error {
	wsURL := utils.WebsocketURL(c.serverURL, "/ws") + "?codec=" + c.codec.Name()
	c.logger.Printf("[Signaling] Connecting to %s", wsURL)

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to signaling server: %w", err)
	}

	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.handler = handler

	c.mutex.Lock()
	c.conn = conn
	c.mutex.Unlock()

	c.logger.Printf("[Signaling] Connected")

	go c.readMessages()

	c.writerWG.Add(1)
	go c.processOutboundMessages()

	return nil
}

// readMessages delivers frames to the handler sequentially
func (c *Client) readMessages() {
	for {
		c.mutex.RLock()
		conn := c.conn
		c.mutex.RUnlock()

		if conn == nil {
			return
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closing:
				// we closed it ourselves
			default:
				c.logger.Printf("[Signaling] Read error: %v", err)
				c.handler.HandleDisconnect(err)
			}
			c.cancel()
			return
		}

		msg, err := c.codec.Decode(data)
		if err != nil {
			c.logger.Printf("[Signaling] Failed to decode message: %v", err)
			continue
		}

		if err := c.handler.HandleMessage(c.ctx, msg); err != nil {
			c.logger.Printf("[Signaling] Handler error for %s: %v", msg.Kind(), err)
		}
	}
}

// Send queues a message without blocking
func (c *Client) Send(msg protocol.Message) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	select {
	case <-c.closing:
		return ErrNotConnected
	default:
	}

	select {
	case c.outboundChan <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// processOutboundMessages is the only writer on the connection. On Close it
// flushes what is queued before sending the close frame.
func (c *Client) processOutboundMessages() {
	defer c.writerWG.Done()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case msg := <-c.outboundChan:
			if err := c.write(msg); err != nil {
				c.logger.Printf("[Signaling] Failed to send %s: %v", msg.Kind(), err)
			}
		case <-ticker.C:
			if err := c.writeRaw(websocket.PingMessage, nil); err != nil {
				c.logger.Printf("[Signaling] Ping failed: %v", err)
			}
		case <-c.closing:
			c.flush()
			closeFrame := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")
			_ = c.writeRaw(websocket.CloseMessage, closeFrame)
			return
		}
	}
}

func (c *Client) flush() {
	for {
		select {
		case msg := <-c.outboundChan:
			if err := c.write(msg); err != nil {
				c.logger.Printf("[Signaling] Failed to flush %s: %v", msg.Kind(), err)
			}
		default:
			return
		}
	}
}

func (c *Client) write(msg protocol.Message) error {
	data, err := c.codec.Encode(msg)
	if err != nil {
		return err
	}
	return c.writeRaw(c.codec.FrameType(), data)
}

func (c *Client) writeRaw(frameType int, data []byte) error {
	c.mutex.RLock()
	conn := c.conn
	c.mutex.RUnlock()

	if conn == nil {
		return ErrNotConnected
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(frameType, data)
}

// Close flushes queued messages, says goodbye and closes the connection
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closing)

		done := make(chan struct{})
		go func() {
			c.writerWG.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(writeWait):
			c.logger.Printf("[Signaling] Timed out flushing outbound messages")
		}

		if c.cancel != nil {
			c.cancel()
		}

		c.mutex.Lock()
		if c.conn != nil {
			err = c.conn.Close()
			c.conn = nil
		}
		c.mutex.Unlock()

		c.logger.Printf("[Signaling] Connection closed")
	})
	return err
}

// IsConnected returns true if the client is connected
func (c *Client) IsConnected() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.conn != nil
}
