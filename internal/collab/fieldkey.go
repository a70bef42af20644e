package collab

import (
	"fmt"
	"strconv"
	"strings"
)

// Top-level itinerary attributes addressable by a field key
const (
	AttrName        = "name"
	AttrDescription = "description"
)

// Per-place attributes addressable by a field key
const (
	AttrVisitDate     = "visitDate"
	AttrVisitTime     = "visitTime"
	AttrVisitDuration = "visitDuration"
	AttrEstimatedCost = "estimatedCost"
	AttrNotes         = "notes"
)

var topLevelAttrs = map[string]bool{
	AttrName:        true,
	AttrDescription: true,
}

var placeAttrs = map[string]bool{
	AttrVisitDate:     true,
	AttrVisitTime:     true,
	AttrVisitDuration: true,
	AttrEstimatedCost: true,
	AttrNotes:         true,
}

// FieldKey names one editable field of the shared document. Three encodings
// exist on the wire:
//
//	"name"            top-level itinerary attribute
//	"notes.3"         place attribute by display position (one-based)
//	"notes:<placeId>" place attribute by stable id
//
// The ordinal form is what legacy clients send; it is fragile under
// concurrent reordering, so new clients prefer the stable form whenever the
// place id is known. Both decode here.
type FieldKey struct {
	Attribute  string
	OrderIndex int    // -1 unless ordinal-addressed
	PlaceID    string // "" unless stable-addressed
}

// TopLevelKey addresses a top-level itinerary attribute
func TopLevelKey(attribute string) FieldKey {
	return FieldKey{Attribute: attribute, OrderIndex: -1}
}

// OrdinalKey addresses a place attribute by zero-based display position
func OrdinalKey(attribute string, orderIndex int) FieldKey {
	return FieldKey{Attribute: attribute, OrderIndex: orderIndex}
}

// StableKey addresses a place attribute by the place's id
func StableKey(attribute, placeID string) FieldKey {
	return FieldKey{Attribute: attribute, OrderIndex: -1, PlaceID: placeID}
}

// IsTopLevel reports whether the key names a top-level itinerary attribute
func (k FieldKey) IsTopLevel() bool {
	return k.PlaceID == "" && k.OrderIndex < 0
}

// String encodes the key in its wire form
func (k FieldKey) String() string {
	if k.PlaceID != "" {
		return k.Attribute + ":" + k.PlaceID
	}
	if k.OrderIndex >= 0 {
		// Ordinal keys are one-based on the wire
		return fmt.Sprintf("%s.%d", k.Attribute, k.OrderIndex+1)
	}
	return k.Attribute
}

// ParseFieldKey decodes a wire-form field key
func ParseFieldKey(s string) (FieldKey, error) {
	if i := strings.IndexByte(s, ':'); i >= 0 {
		attribute, placeID := s[:i], s[i+1:]
		if !placeAttrs[attribute] {
			return FieldKey{}, fmt.Errorf("unknown place attribute %q", attribute)
		}
		if placeID == "" {
			return FieldKey{}, fmt.Errorf("field key %q has an empty place id", s)
		}
		return StableKey(attribute, placeID), nil
	}

	if i := strings.IndexByte(s, '.'); i >= 0 {
		attribute, position := s[:i], s[i+1:]
		if !placeAttrs[attribute] {
			return FieldKey{}, fmt.Errorf("unknown place attribute %q", attribute)
		}
		n, err := strconv.Atoi(position)
		if err != nil || n < 1 {
			return FieldKey{}, fmt.Errorf("field key %q has an invalid position", s)
		}
		return OrdinalKey(attribute, n-1), nil
	}

	if !topLevelAttrs[s] {
		return FieldKey{}, fmt.Errorf("unknown itinerary attribute %q", s)
	}
	return TopLevelKey(s), nil
}
