// Package gateway accepts participant websocket connections and dispatches
// their messages to the presence registry and the relay.
package gateway

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/tphan267/huddle/pkg/logger"
	"github.com/tphan267/huddle/pkg/presence"
	"github.com/tphan267/huddle/pkg/protocol"
	"github.com/tphan267/huddle/pkg/relay"
)

const DefaultSendBuffer = 256

// Stats are cumulative connection counters
type Stats struct {
	Accepted     uint64 `json:"accepted"`
	Active       int    `json:"active"`
	DecodeErrors uint64 `json:"decode_errors"`
}

// Gateway is an http.Handler serving the signaling websocket
type Gateway struct {
	registry   *presence.Registry
	relay      *relay.Relay
	upgrader   websocket.Upgrader
	sendBuffer int
	log        *logger.Logger

	mu    sync.Mutex
	conns map[string]*Conn
	wg    sync.WaitGroup

	accepted, decodeErrors atomic.Uint64
}

func New(registry *presence.Registry, rl *relay.Relay, sendBuffer int, log *logger.Logger) *Gateway {
	if sendBuffer <= 0 {
		sendBuffer = DefaultSendBuffer
	}
	if log == nil {
		log = logger.NewDefault("HUDDLE")
	}
	return &Gateway{
		registry: registry,
		relay:    rl,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// the static page and native clients connect from anywhere
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		sendBuffer: sendBuffer,
		log:        log.Named("Gateway"),
		conns:      make(map[string]*Conn),
	}
}

// ServeHTTP upgrades the request and starts the connection pumps. The codec
// is chosen with the "codec" query parameter.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	codec, err := protocol.CodecByName(r.URL.Query().Get("codec"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn("upgrade failed from %s: %v", r.RemoteAddr, err)
		return
	}

	c := &Conn{
		ID:    uuid.NewString(),
		Codec: codec,
		gw:    g,
		ws:    ws,
		send:  make(chan protocol.Message, g.sendBuffer),
	}

	g.mu.Lock()
	g.conns[c.ID] = c
	g.mu.Unlock()
	g.accepted.Add(1)
	g.wg.Add(1)

	g.log.Debug("connection %s from %s (%s)", c.ID, r.RemoteAddr, codec.Name())

	go c.WritePump()
	go func() {
		defer g.wg.Done()
		c.ReadPump()
	}()
}

// Dispatch handles one decoded message. Every message kind is listed; kinds
// only the server may send are ignored.
func (g *Gateway) Dispatch(c *Conn, msg protocol.Message) {
	switch m := msg.(type) {
	case protocol.Join:
		p := protocol.Participant{ID: c.ID, Name: m.Name}
		if _, err := g.registry.Join(m.Room, p, c); err != nil {
			g.log.Warn("join refused for %s: %v", c.ID, err)
			c.Send(protocol.Error{Reason: err.Error()})
		}
	case protocol.Offer:
		g.relay.Relay(c.ID, m)
	case protocol.Answer:
		g.relay.Relay(c.ID, m)
	case protocol.IceCandidate:
		g.relay.Relay(c.ID, m)
	case protocol.MicToggle:
		g.registry.SetMuted(c.ID, !m.Active)
	case protocol.Leave:
		g.registry.Leave(c.ID)
	case protocol.UserList, protocol.UserJoined, protocol.UserLeft, protocol.Error:
		g.log.Warn("ignoring server-only %s from %s", msg.Kind(), c.ID)
	default:
		g.log.Warn("unhandled %T from %s", msg, c.ID)
	}
}

func (g *Gateway) disconnect(c *Conn) {
	g.registry.Leave(c.ID)

	g.mu.Lock()
	delete(g.conns, c.ID)
	g.mu.Unlock()

	c.closeSend()
	g.log.Debug("connection %s closed", c.ID)
}

// Shutdown closes every connection and waits for their readers to finish.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	for _, c := range g.conns {
		c.ws.Close()
	}
	g.mu.Unlock()

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Gateway) Stats() Stats {
	g.mu.Lock()
	active := len(g.conns)
	g.mu.Unlock()

	return Stats{
		Accepted:     g.accepted.Load(),
		Active:       active,
		DecodeErrors: g.decodeErrors.Load(),
	}
}
