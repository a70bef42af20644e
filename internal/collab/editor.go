package collab

import (
	"fmt"
	"time"

	"github.com/wanderplan/wanderplan-server/internal/models"
)

// Emitter sends an event up the session channel. Sends are fire-and-forget;
// the editor never waits for acknowledgement.
type Emitter interface {
	Emit(event string, payload interface{}) error
}

// ChangeRecord is one entry of the editor's local append-only change log
type ChangeRecord struct {
	Field         string
	NewValue      string
	PreviousValue string
	Type          string
	UserID        string
	At            time.Time
}

// Editor is the client-side merge engine for one collaborative session. It
// owns the local document, mirrors the advisory lock table, propagates
// completed local edits, and replays incoming suggestions in the room's
// delivery order with last-write-wins semantics, discarding only stale echoes
// of its own superseded edits.
//
// The editor is single-goroutine by design: UI callbacks and channel events
// must be funneled into it from one place.
type Editor struct {
	itineraryID string
	userID      string
	doc         *Document
	emitter     Emitter

	locks        map[string]string // field -> holding userId
	lastSent     map[string]string // field -> latest value suggested by this user
	log          []ChangeRecord
	participants map[string]bool
}

// NewEditor creates an editor over doc for the given session identity
func NewEditor(itineraryID, userID string, doc *Document, emitter Emitter) *Editor {
	return &Editor{
		itineraryID:  itineraryID,
		userID:       userID,
		doc:          doc,
		emitter:      emitter,
		locks:        make(map[string]string),
		lastSent:     make(map[string]string),
		participants: make(map[string]bool),
	}
}

// Document returns the live local document
func (e *Editor) Document() *Document {
	return e.doc
}

// ChangeLog returns a copy of the local change log
func (e *Editor) ChangeLog() []ChangeRecord {
	out := make([]ChangeRecord, len(e.log))
	copy(out, e.log)
	return out
}

// Participants returns the user ids currently present in the room
func (e *Editor) Participants() []string {
	out := make([]string, 0, len(e.participants))
	for id := range e.participants {
		out = append(out, id)
	}
	return out
}

// Editable reports whether the local user may edit the field. A field is
// non-editable only while another participant holds its lock.
func (e *Editor) Editable(field string) bool {
	holder, locked := e.locks[field]
	return !locked || holder == e.userID
}

// LockHolder returns the user currently holding the field's lock, if any
func (e *Editor) LockHolder(field string) (string, bool) {
	holder, locked := e.locks[field]
	return holder, locked
}

// StartEditing is called on field focus. It only announces intent: the
// authoritative lock state is whatever fieldLocked event comes back, so the
// client never locally decides it won a race.
func (e *Editor) StartEditing(field string) {
	e.emit(models.EventStartEditing, models.EditingPayload{
		ItineraryID: e.itineraryID,
		UserID:      e.userID,
		Field:       field,
	})
}

// StopEditing is called on field blur, after any change was handled
func (e *Editor) StopEditing(field string) {
	e.emit(models.EventStopEditing, models.EditingPayload{
		ItineraryID: e.itineraryID,
		UserID:      e.userID,
		Field:       field,
	})
}

// HandleFieldBlur completes a local edit: an unchanged value does nothing at
// all, otherwise the change is logged, then suggested to the room, and the
// local document keeps the optimistically applied value.
func (e *Editor) HandleFieldBlur(field, previousValue, newValue string) error {
	if newValue == previousValue {
		return nil
	}

	key, err := ParseFieldKey(field)
	if err != nil {
		return err
	}

	if err := e.doc.Apply(key, newValue); err != nil {
		return err
	}

	e.log = append(e.log, ChangeRecord{
		Field:         field,
		NewValue:      newValue,
		PreviousValue: previousValue,
		Type:          models.ChangeTypeUpdateField,
		UserID:        e.userID,
		At:            time.Now(),
	})

	e.emit(models.EventLogChange, models.LogChangePayload{
		ItineraryID:   e.itineraryID,
		UserID:        e.userID,
		Field:         field,
		NewValue:      newValue,
		PreviousValue: previousValue,
		Type:          models.ChangeTypeUpdateField,
	})

	e.emit(models.EventSuggestChange, models.SuggestChangePayload{
		ItineraryID: e.itineraryID,
		UserID:      e.userID,
		Field:       field,
		Value:       newValue,
	})
	e.lastSent[field] = newValue

	return nil
}

// Undo asks the server to revert this user's latest change. The revert comes
// back as a regular suggested change, so it flows through the normal merge
// path on every participant.
func (e *Editor) Undo() {
	e.emit(models.EventUndoChange, models.UndoChangePayload{
		ItineraryID: e.itineraryID,
		UserID:      e.userID,
	})
}

// HandleEvent reconciles one channel event into local state
func (e *Editor) HandleEvent(ev models.Event) error {
	switch ev.Name {
	case models.EventFieldLocked:
		var p models.FieldLockedPayload
		if err := ev.Decode(&p); err != nil {
			return fmt.Errorf("malformed fieldLocked: %w", err)
		}
		e.locks[p.Field] = p.UserID

	case models.EventFieldUnlocked:
		var p models.FieldUnlockedPayload
		if err := ev.Decode(&p); err != nil {
			return fmt.Errorf("malformed fieldUnlocked: %w", err)
		}
		delete(e.locks, p.Field)

	case models.EventSuggestedChange:
		var p models.SuggestedChangePayload
		if err := ev.Decode(&p); err != nil {
			return fmt.Errorf("malformed suggestedChange: %w", err)
		}
		return e.applySuggestion(p)

	case models.EventChangeLogged:
		var p models.ChangeLoggedPayload
		if err := ev.Decode(&p); err != nil {
			return fmt.Errorf("malformed changeLogged: %w", err)
		}
		// Own changes were appended at blur time; mirror only remote ones
		if p.Entry.UserID != e.userID {
			e.log = append(e.log, ChangeRecord{
				Field:         p.Entry.Field,
				NewValue:      p.Entry.NewValue,
				PreviousValue: p.Entry.PreviousValue,
				Type:          p.Entry.ChangeType,
				UserID:        p.Entry.UserID,
				At:            p.Entry.Timestamp,
			})
		}

	case models.EventUserJoined:
		var p models.UserPresencePayload
		if err := ev.Decode(&p); err != nil {
			return fmt.Errorf("malformed userJoined: %w", err)
		}
		e.participants[p.UserID] = true

	case models.EventUserLeft:
		var p models.UserPresencePayload
		if err := ev.Decode(&p); err != nil {
			return fmt.Errorf("malformed userLeft: %w", err)
		}
		delete(e.participants, p.UserID)

	case models.EventError:
		// Channel-level errors stay out of the UI; collaboration degrades
		// silently and manual save/reload over REST still works
	}

	return nil
}

// applySuggestion merges one suggested change in the room's delivery order,
// last write wins. Own echoes are replayed too, because the room's order is
// authoritative: dropping them would leave this client stuck on a remote value
// that the rest of the room has already overwritten with ours. The only echo
// discarded is a stale one, carrying an older value than the latest this user
// sent for the field, since replaying it would clobber the in-flight edit.
func (e *Editor) applySuggestion(p models.SuggestedChangePayload) error {
	if p.UserID == e.userID && asString(p.Value) != e.lastSent[p.Field] {
		return nil
	}

	key, err := ParseFieldKey(p.Field)
	if err != nil {
		return err
	}

	return e.doc.Apply(key, p.Value)
}

func (e *Editor) emit(event string, payload interface{}) {
	// Fire and forget: transport failure is silent by contract
	_ = e.emitter.Emit(event, payload)
}
