package models

import "encoding/json"

// Client -> server event names
const (
	EventJoinRoom      = "joinRoom"
	EventStartEditing  = "startEditing"
	EventStopEditing   = "stopEditing"
	EventSuggestChange = "suggestChange"
	EventLogChange     = "logChange"
	EventUndoChange    = "undoChange"
)

// Server -> client event names
const (
	EventFieldLocked     = "fieldLocked"
	EventFieldUnlocked   = "fieldUnlocked"
	EventUserJoined      = "userJoined"
	EventUserLeft        = "userLeft"
	EventSuggestedChange = "suggestedChange"
	EventChangeLogged    = "changeLogged"
	EventError           = "error"
)

// Event is the wire frame for the realtime channel. Server-originated events
// carry a ULID id and the per-room sequence number so every client observes
// the same total order.
type Event struct {
	Name    string          `json:"event"`
	ID      string          `json:"id,omitempty"`
	Seq     int64           `json:"seq,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEvent marshals payload into an Event frame
func NewEvent(name string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Name: name, Payload: raw}, nil
}

// Decode unmarshals the event payload into v
func (e Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

type JoinRoomPayload struct {
	ItineraryID string `json:"itineraryId"`
	UserID      string `json:"userId"`
}

type EditingPayload struct {
	ItineraryID string `json:"itineraryId"`
	UserID      string `json:"userId"`
	Field       string `json:"field"`
}

type SuggestChangePayload struct {
	ItineraryID string      `json:"itineraryId"`
	UserID      string      `json:"userId"`
	Field       string      `json:"field"`
	Value       interface{} `json:"value"`
}

type LogChangePayload struct {
	ItineraryID   string `json:"itineraryId"`
	UserID        string `json:"userId"`
	Field         string `json:"field"`
	NewValue      string `json:"newValue"`
	PreviousValue string `json:"previousValue"`
	Type          string `json:"type"`
}

type UndoChangePayload struct {
	ItineraryID string `json:"itineraryId"`
	UserID      string `json:"userId"`
}

type FieldLockedPayload struct {
	Field  string `json:"field"`
	UserID string `json:"userId"`
}

type FieldUnlockedPayload struct {
	Field string `json:"field"`
}

type UserPresencePayload struct {
	UserID string `json:"userId"`
}

type SuggestedChangePayload struct {
	UserID string      `json:"userId"`
	Field  string      `json:"field"`
	Value  interface{} `json:"value"`
}

type ChangeLoggedPayload struct {
	Entry ChangeLogEntry `json:"entry"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
