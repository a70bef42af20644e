package models

import (
	"time"
)

// Collaborator roles for an itinerary
const (
	RoleOwner  = "owner"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

// Suggestion statuses for places added by collaborators
const (
	SuggestionPending  = "pending"
	SuggestionAccepted = "accepted"
	SuggestionRejected = "rejected"
)

// User mirrors the external identity provider's user record. It exists only
// so collaborator identity strings (email or username) can be resolved to ids.
type User struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	Username  string    `db:"username" json:"username"`
	Name      string    `db:"name" json:"name"`
	Password  string    `db:"password" json:"-"` // Password hash, not returned in JSON
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Itinerary is the shared trip container collaborative sessions edit
type Itinerary struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	OwnerID     string    `db:"owner_id" json:"ownerId"`
	IsPublic    bool      `db:"is_public" json:"isPublic"`
	StartDate   string    `db:"start_date" json:"startDate"`
	EndDate     string    `db:"end_date" json:"endDate"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// ItineraryPlace is one scheduled stop within an itinerary. OrderIndex defines
// presentation order and is kept contiguous per itinerary.
type ItineraryPlace struct {
	ID               string    `db:"id" json:"id"`
	ItineraryID      string    `db:"itinerary_id" json:"itineraryId"`
	PlaceID          string    `db:"place_id" json:"placeId"`
	VisitDate        string    `db:"visit_date" json:"visitDate"`
	VisitTime        string    `db:"visit_time" json:"visitTime"`
	VisitDuration    float64   `db:"visit_duration" json:"visitDuration"` // hours
	EstimatedCost    float64   `db:"estimated_cost" json:"estimatedCost"`
	Notes            string    `db:"notes" json:"notes"`
	OrderIndex       int       `db:"order_index" json:"orderIndex"`
	SuggestionStatus string    `db:"suggestion_status" json:"suggestionStatus"`
	CreatedBy        string    `db:"created_by" json:"createdBy"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time `db:"updated_at" json:"updatedAt"`
}

// ItineraryUser represents membership of a user in an itinerary (for sharing).
// Exactly one owner exists per itinerary.
type ItineraryUser struct {
	ItineraryID string    `db:"itinerary_id" json:"itineraryId"`
	UserID      string    `db:"user_id" json:"userId"`
	Role        string    `db:"role" json:"role"` // "owner", "editor" or "viewer"
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// PlaceParticipant records a tap-in (attendance confirmation) for one stop
type PlaceParticipant struct {
	PlaceID   string    `db:"place_id" json:"placeId"`
	UserID    string    `db:"user_id" json:"userId"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// ChangeLogEntry is one append-only record of a field mutation. PreviousValue
// is captured so the entry can be replayed in reverse for undo.
type ChangeLogEntry struct {
	ID             string    `db:"id" json:"id"`
	ItineraryID    string    `db:"itinerary_id" json:"itineraryId"`
	UserID         string    `db:"user_id" json:"userId"`
	SequenceNumber int64     `db:"sequence_number" json:"sequenceNumber"`
	Field          string    `db:"field" json:"field"`
	NewValue       string    `db:"new_value" json:"newValue"`
	PreviousValue  string    `db:"previous_value" json:"previousValue"`
	ChangeType     string    `db:"change_type" json:"changeType"`
	Timestamp      time.Time `db:"timestamp" json:"timestamp"`
}

// Change types recorded in the log
const (
	ChangeTypeUpdateField = "update_field"
	ChangeTypeUndoField   = "undo_field"
)

// ItineraryDocument is the full snapshot a client fetches to (re)build its
// local document, e.g. when resyncing after a reconnect.
type ItineraryDocument struct {
	Itinerary Itinerary        `json:"itinerary"`
	Places    []ItineraryPlace `json:"places"`
	Members   []ItineraryUser  `json:"members"`
}
