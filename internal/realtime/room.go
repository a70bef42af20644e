package realtime

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/wanderplan/wanderplan-server/internal/models"
	"github.com/wanderplan/wanderplan-server/internal/service"
)

const serviceCallTimeout = 5 * time.Second

type roomMsg struct {
	sess *Session
	ev   models.Event
}

type fieldLock struct {
	userID    string
	expiresAt time.Time
}

// Room serializes all collaborative-editing events for one itinerary. Its run
// loop is the single consumer of inbound traffic: every broadcast is stamped
// with a monotonically increasing sequence number and delivered to all
// sessions in that one order, so every client converges on the same final
// state regardless of which session sent what.
type Room struct {
	itineraryID string
	hub         *Hub
	refs        int // guarded by hub.mu

	join    chan *Session
	leave   chan *Session
	inbound chan roomMsg
	quit    chan struct{}

	sessions map[string]*Session // keyed by userID, one session per user
	locks    map[string]fieldLock
	seq      int64
}

func newRoom(hub *Hub, itineraryID string) *Room {
	return &Room{
		itineraryID: itineraryID,
		hub:         hub,
		join:        make(chan *Session),
		leave:       make(chan *Session),
		inbound:     make(chan roomMsg, 64),
		quit:        make(chan struct{}),
		sessions:    make(map[string]*Session),
		locks:       make(map[string]fieldLock),
	}
}

func (r *Room) run() {
	sweepInterval := r.hub.cfg.LockTTL / 3
	if sweepInterval < time.Second {
		sweepInterval = time.Second
	}
	sweep := time.NewTicker(sweepInterval)
	defer sweep.Stop()

	for {
		select {
		case sess := <-r.join:
			r.handleJoin(sess)
		case sess := <-r.leave:
			r.handleLeave(sess)
		case msg := <-r.inbound:
			r.handleEvent(msg.sess, msg.ev)
		case <-sweep.C:
			r.expireLocks()
		case <-r.quit:
			return
		}
	}
}

func (r *Room) handleJoin(sess *Session) {
	// A second session for the same user replaces the first
	if old, ok := r.sessions[sess.userID]; ok {
		old.close()
	}
	r.sessions[sess.userID] = sess

	go sess.readPump()
	go sess.writePump()

	// Replay the current lock table so a (re)joining client rebuilds presence
	for field, lock := range r.locks {
		r.sendTo(sess, models.EventFieldLocked, models.FieldLockedPayload{
			Field:  field,
			UserID: lock.userID,
		})
	}

	r.broadcast(models.EventUserJoined, models.UserPresencePayload{UserID: sess.userID})
	r.hub.logger.Info("user %s joined itinerary room %s", sess.userID, r.itineraryID)
}

func (r *Room) handleLeave(sess *Session) {
	// Only detach if this session is still the live one for the user; it may
	// have been replaced by a newer join
	if current, ok := r.sessions[sess.userID]; ok && current == sess {
		delete(r.sessions, sess.userID)

		// A disconnect implicitly stops editing everything the user held
		for field, lock := range r.locks {
			if lock.userID == sess.userID {
				delete(r.locks, field)
				r.broadcast(models.EventFieldUnlocked, models.FieldUnlockedPayload{Field: field})
			}
		}

		r.broadcast(models.EventUserLeft, models.UserPresencePayload{UserID: sess.userID})
		r.hub.logger.Info("user %s left itinerary room %s", sess.userID, r.itineraryID)
	}

	sess.close()
	r.hub.release(r)
}

func (r *Room) handleEvent(sess *Session, ev models.Event) {
	switch ev.Name {
	case models.EventJoinRoom:
		// Membership was established at upgrade time; the announce is harmless

	case models.EventStartEditing:
		var p models.EditingPayload
		if err := ev.Decode(&p); err != nil {
			r.sendError(sess, "malformed startEditing payload")
			return
		}
		r.startEditing(sess, p.Field)

	case models.EventStopEditing:
		var p models.EditingPayload
		if err := ev.Decode(&p); err != nil {
			r.sendError(sess, "malformed stopEditing payload")
			return
		}
		r.stopEditing(sess, p.Field)

	case models.EventSuggestChange:
		var p models.SuggestChangePayload
		if err := ev.Decode(&p); err != nil {
			r.sendError(sess, "malformed suggestChange payload")
			return
		}
		// The sender's identity comes from the session, never the payload
		r.broadcast(models.EventSuggestedChange, models.SuggestedChangePayload{
			UserID: sess.userID,
			Field:  p.Field,
			Value:  p.Value,
		})

	case models.EventLogChange:
		var p models.LogChangePayload
		if err := ev.Decode(&p); err != nil {
			r.sendError(sess, "malformed logChange payload")
			return
		}
		r.logChange(sess, p)

	case models.EventUndoChange:
		r.undoChange(sess)

	default:
		r.sendError(sess, "unknown event: "+ev.Name)
	}
}

// startEditing grants the advisory lock if the field is free (or already held
// by the requester) and broadcasts the grant. The requester learns it won only
// from the broadcast; on a lost race it is told who holds the lock instead.
func (r *Room) startEditing(sess *Session, field string) {
	now := time.Now()

	if lock, held := r.locks[field]; held && lock.userID != sess.userID && now.Before(lock.expiresAt) {
		r.sendTo(sess, models.EventFieldLocked, models.FieldLockedPayload{
			Field:  field,
			UserID: lock.userID,
		})
		return
	}

	r.locks[field] = fieldLock{userID: sess.userID, expiresAt: now.Add(r.hub.cfg.LockTTL)}
	r.broadcast(models.EventFieldLocked, models.FieldLockedPayload{
		Field:  field,
		UserID: sess.userID,
	})
}

func (r *Room) stopEditing(sess *Session, field string) {
	lock, held := r.locks[field]
	if !held || lock.userID != sess.userID {
		return
	}

	delete(r.locks, field)
	r.broadcast(models.EventFieldUnlocked, models.FieldUnlockedPayload{Field: field})
}

func (r *Room) logChange(sess *Session, p models.LogChangePayload) {
	ctx, cancel := context.WithTimeout(context.Background(), serviceCallTimeout)
	defer cancel()

	entry, err := r.hub.svc.SubmitChange(ctx, sess.userID, r.itineraryID, models.SubmitChangeRequest{
		Field:         p.Field,
		NewValue:      p.NewValue,
		PreviousValue: p.PreviousValue,
		ChangeType:    p.Type,
	})
	if err != nil {
		r.hub.logger.Error("logChange for itinerary %s failed: %v", r.itineraryID, err)
		r.sendError(sess, "change could not be recorded")
		return
	}

	r.broadcast(models.EventChangeLogged, models.ChangeLoggedPayload{Entry: *entry})
}

// undoChange reverts the caller's latest field update by broadcasting the
// captured previous value as a regular suggested change, so all participants
// (including the caller) apply it through the normal merge path.
func (r *Room) undoChange(sess *Session) {
	ctx, cancel := context.WithTimeout(context.Background(), serviceCallTimeout)
	defer cancel()

	entry, err := r.hub.svc.UndoLastChange(ctx, sess.userID, r.itineraryID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			r.sendError(sess, "nothing to undo")
			return
		}
		r.hub.logger.Error("undoChange for itinerary %s failed: %v", r.itineraryID, err)
		r.sendError(sess, "undo failed")
		return
	}

	// A different userId than the caller's keeps the revert out of the
	// caller's own-echo filtering; the reserved system id keeps it honest
	r.broadcast(models.EventSuggestedChange, models.SuggestedChangePayload{
		UserID: "system:undo",
		Field:  entry.Field,
		Value:  entry.NewValue,
	})
	r.broadcast(models.EventChangeLogged, models.ChangeLoggedPayload{Entry: *entry})
}

func (r *Room) expireLocks() {
	now := time.Now()
	for field, lock := range r.locks {
		if now.After(lock.expiresAt) {
			delete(r.locks, field)
			r.broadcast(models.EventFieldUnlocked, models.FieldUnlockedPayload{Field: field})
		}
	}
}

// broadcast stamps the event with a ULID and this room's next sequence number
// and delivers it to every session, the sender included. Reconciling echoes of
// a client's own events is the client's responsibility.
func (r *Room) broadcast(name string, payload interface{}) {
	ev, err := models.NewEvent(name, payload)
	if err != nil {
		r.hub.logger.Error("failed to encode %s event: %v", name, err)
		return
	}

	r.seq++
	ev.ID = ulid.Make().String()
	ev.Seq = r.seq

	for _, sess := range r.sessions {
		sess.enqueue(ev)
	}
}

// sendTo delivers an event to a single session, outside the broadcast order
func (r *Room) sendTo(sess *Session, name string, payload interface{}) {
	ev, err := models.NewEvent(name, payload)
	if err != nil {
		r.hub.logger.Error("failed to encode %s event: %v", name, err)
		return
	}

	ev.ID = ulid.Make().String()
	sess.enqueue(ev)
}

func (r *Room) sendError(sess *Session, message string) {
	r.sendTo(sess, models.EventError, models.ErrorPayload{Message: message})
}
