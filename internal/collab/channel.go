package collab

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wanderplan/wanderplan-server/internal/models"
)

// State of the session channel
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateJoined
	StateStale
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateJoined:
		return "joined"
	case StateStale:
		return "stale"
	}
	return "unknown"
}

// ErrNotJoined is returned by Emit while the channel has no live connection
var ErrNotJoined = errors.New("channel not joined")

// ChannelSettings tune dialing and reconnection
type ChannelSettings struct {
	DialTimeout time.Duration
	BackoffMin  time.Duration
	BackoffMax  time.Duration
}

// DefaultChannelSettings returns the standard tuning
func DefaultChannelSettings() ChannelSettings {
	return ChannelSettings{
		DialTimeout: 5 * time.Second,
		BackoffMin:  500 * time.Millisecond,
		BackoffMax:  30 * time.Second,
	}
}

// Channel is one realtime connection for a (itinerary, user) session. It runs
// the {disconnected, connecting, joined, stale} state machine: a dropped
// connection goes stale and is re-dialed with exponential backoff, and every
// successful rejoin first runs the resync callback so the local document is
// rebuilt from the REST snapshot before live events are replayed on top.
type Channel struct {
	url         string
	itineraryID string
	userID      string
	settings    ChannelSettings
	dialer      *websocket.Dialer

	handler func(models.Event)
	resync  func(ctx context.Context) error

	mu     sync.Mutex
	conn   *websocket.Conn
	state  State
	cancel context.CancelFunc
	gen    int // connection generation; bumped by Connect/Disconnect
}

// NewChannel creates a channel for the websocket endpoint at url. handler
// receives every incoming event; resync (optional) is invoked after each
// reconnect before the channel reports itself joined.
func NewChannel(
	url string,
	itineraryID string,
	userID string,
	handler func(models.Event),
	resync func(ctx context.Context) error,
	settings ChannelSettings,
) *Channel {
	return &Channel{
		url:         url,
		itineraryID: itineraryID,
		userID:      userID,
		settings:    settings,
		dialer: &websocket.Dialer{
			HandshakeTimeout: settings.DialTimeout,
		},
		handler: handler,
		resync:  resync,
		state:   StateDisconnected,
	}
}

// State returns the current connection state
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect dials the endpoint and announces membership. Calling Connect on an
// already-connected channel replaces the previous connection.
func (c *Channel) Connect(ctx context.Context) error {
	c.Disconnect()

	runCtx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	c.cancel = cancel
	c.gen++
	gen := c.gen
	c.state = StateConnecting
	c.mu.Unlock()

	conn, err := c.dialAndJoin(runCtx)
	if err != nil {
		c.mu.Lock()
		if c.gen == gen {
			c.state = StateDisconnected
		}
		c.mu.Unlock()
		cancel()
		return err
	}

	c.mu.Lock()
	if c.gen != gen {
		// Raced with another Connect/Disconnect; discard this dial
		c.mu.Unlock()
		conn.Close()
		cancel()
		return nil
	}
	c.conn = conn
	c.state = StateJoined
	c.mu.Unlock()

	go c.run(runCtx, conn, gen)
	return nil
}

// Disconnect tears the channel down and releases its goroutines. The server
// interprets the drop as an implicit stop-editing for every held lock.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.gen++
	c.state = StateDisconnected
	c.mu.Unlock()
}

// Emit sends one event, fire and forget. Events emitted while the channel is
// not joined are dropped with ErrNotJoined; no retry or buffering happens.
func (c *Channel) Emit(event string, payload interface{}) error {
	ev, err := models.NewEvent(event, payload)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateJoined || c.conn == nil {
		return ErrNotJoined
	}

	return c.conn.WriteJSON(ev)
}

// run reads events until the connection fails, then cycles through
// stale -> backoff redial -> resync -> joined until the context is done
func (c *Channel) run(ctx context.Context, conn *websocket.Conn, gen int) {
	for {
		c.readLoop(conn)

		if ctx.Err() != nil || !c.setStale(gen) {
			return
		}

		next, ok := c.redial(ctx, gen)
		if !ok {
			return
		}
		conn = next
	}
}

func (c *Channel) readLoop(conn *websocket.Conn) {
	for {
		var ev models.Event
		if err := conn.ReadJSON(&ev); err != nil {
			return
		}
		if c.handler != nil {
			c.handler(ev)
		}
	}
}

// setStale marks the channel stale if this generation still owns it
func (c *Channel) setStale(gen int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return false
	}
	c.conn = nil
	c.state = StateStale
	return true
}

// redial reconnects with exponential backoff. A successful dial resyncs the
// document before the channel reports itself joined again, so a client that
// missed events while disconnected cannot keep a stale document.
func (c *Channel) redial(ctx context.Context, gen int) (*websocket.Conn, bool) {
	backoff := c.settings.BackoffMin

	for {
		select {
		case <-ctx.Done():
			return nil, false
		case <-time.After(backoff):
		}

		if backoff *= 2; backoff > c.settings.BackoffMax {
			backoff = c.settings.BackoffMax
		}

		conn, err := c.dialAndJoin(ctx)
		if err != nil {
			continue
		}

		if c.resync != nil {
			if err := c.resync(ctx); err != nil {
				conn.Close()
				continue
			}
		}

		c.mu.Lock()
		if c.gen != gen {
			c.mu.Unlock()
			conn.Close()
			return nil, false
		}
		c.conn = conn
		c.state = StateJoined
		c.mu.Unlock()

		return conn, true
	}
}

func (c *Channel) dialAndJoin(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return nil, err
	}

	join, err := models.NewEvent(models.EventJoinRoom, models.JoinRoomPayload{
		ItineraryID: c.itineraryID,
		UserID:      c.userID,
	})
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := conn.WriteJSON(join); err != nil {
		conn.Close()
		return nil, err
	}

	return conn, nil
}
