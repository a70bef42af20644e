package realtime

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/wanderplan/wanderplan-server/internal/config"
	"github.com/wanderplan/wanderplan-server/internal/service"
	"github.com/wanderplan/wanderplan-server/internal/utils"
)

// Hub owns one Room per itinerary with at least one live session. Rooms are
// created on first join and reaped once their last session leaves.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]*Room

	svc    service.Service
	logger *utils.Logger
	cfg    config.RealtimeConfig
}

// NewHub creates the hub
func NewHub(svc service.Service, logger *utils.Logger, cfg config.RealtimeConfig) *Hub {
	return &Hub{
		rooms:  make(map[string]*Room),
		svc:    svc,
		logger: logger,
		cfg:    cfg,
	}
}

// Join attaches an upgraded websocket connection to the itinerary's room as
// the given user. The caller must have checked access already. A second join
// for the same (itinerary, user) pair replaces the first session.
func (h *Hub) Join(itineraryID, userID string, conn *websocket.Conn) *Session {
	h.mu.Lock()
	room, ok := h.rooms[itineraryID]
	if !ok {
		room = newRoom(h, itineraryID)
		h.rooms[itineraryID] = room
		go room.run()
	}
	room.refs++
	h.mu.Unlock()

	sess := newSession(room, userID, conn, h.cfg)
	room.join <- sess
	return sess
}

// release is called by a room once a session has fully detached. The room is
// removed from the hub when its last session goes; its run loop then exits.
func (h *Hub) release(room *Room) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room.refs--
	if room.refs == 0 {
		delete(h.rooms, room.itineraryID)
		close(room.quit)
	}
}

// RoomCount reports the number of active rooms, for diagnostics
func (h *Hub) RoomCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms)
}
