package realtime

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wanderplan/wanderplan-server/internal/config"
	"github.com/wanderplan/wanderplan-server/internal/models"
)

const (
	sessionSendBuffer = 64
	maxEventSize      = 64 * 1024
)

// Session is one websocket connection for one (itinerary, user) pair. The
// read and write pumps follow the usual discipline: the read side owns the
// pong deadline, the write side owns the ping ticker, and nothing outside
// writePump ever writes to the connection.
type Session struct {
	room   *Room
	userID string
	conn   *websocket.Conn
	cfg    config.RealtimeConfig

	send      chan models.Event
	closeOnce sync.Once
	closed    chan struct{}
}

func newSession(room *Room, userID string, conn *websocket.Conn, cfg config.RealtimeConfig) *Session {
	return &Session{
		room:   room,
		userID: userID,
		conn:   conn,
		cfg:    cfg,
		send:   make(chan models.Event, sessionSendBuffer),
		closed: make(chan struct{}),
	}
}

// enqueue hands an event to the write pump. A session whose buffer is full is
// too far behind to ever catch up, so it is dropped; the client reconnects
// and resyncs through the REST document snapshot.
func (s *Session) enqueue(ev models.Event) {
	select {
	case s.send <- ev:
	case <-s.closed:
	default:
		s.room.hub.logger.Error("dropping slow session for user %s", s.userID)
		s.close()
	}
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.conn.Close()
	})
}

func (s *Session) readPump() {
	defer func() {
		s.room.leave <- s
	}()

	s.conn.SetReadLimit(maxEventSize)
	s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		return nil
	})

	for {
		var ev models.Event
		if err := s.conn.ReadJSON(&ev); err != nil {
			return
		}

		select {
		case s.room.inbound <- roomMsg{sess: s, ev: ev}:
		case <-s.closed:
			return
		}
	}
}

func (s *Session) writePump() {
	ping := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ping.Stop()
		s.close()
	}()

	for {
		select {
		case ev := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := s.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ping.C:
			s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.closed:
			return
		}
	}
}
