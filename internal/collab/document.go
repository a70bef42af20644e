package collab

import (
	"fmt"
	"strconv"
	"time"

	"github.com/wanderplan/wanderplan-server/internal/models"
)

const visitDateLayout = "2006-01-02"

// Place is the client-side view of one scheduled stop
type Place struct {
	ID               string
	PlaceID          string
	VisitDate        string
	VisitTime        string
	VisitDuration    float64 // hours
	EstimatedCost    float64
	Notes            string
	OrderIndex       int
	SuggestionStatus string
}

// Document is the in-memory itinerary a collaborative session edits. It is
// not safe for concurrent use; the editor owns it and all mutation funnels
// through a single goroutine.
type Document struct {
	ID          string
	Name        string
	Description string
	Places      []Place
}

// Aggregates are the derived totals shown alongside the itinerary. They are
// recomputed locally from the place list and never sent over the wire.
type Aggregates struct {
	TotalCost      float64
	TotalHours     float64
	DaysSpanned    int
	AvgCostPerDay  float64
	AvgHoursPerDay float64
}

// NewDocument builds a client document from a server snapshot
func NewDocument(snapshot *models.ItineraryDocument) *Document {
	doc := &Document{
		ID:          snapshot.Itinerary.ID,
		Name:        snapshot.Itinerary.Name,
		Description: snapshot.Itinerary.Description,
		Places:      make([]Place, 0, len(snapshot.Places)),
	}

	for _, p := range snapshot.Places {
		doc.Places = append(doc.Places, Place{
			ID:               p.ID,
			PlaceID:          p.PlaceID,
			VisitDate:        p.VisitDate,
			VisitTime:        p.VisitTime,
			VisitDuration:    p.VisitDuration,
			EstimatedCost:    p.EstimatedCost,
			Notes:            p.Notes,
			OrderIndex:       p.OrderIndex,
			SuggestionStatus: p.SuggestionStatus,
		})
	}

	return doc
}

// Apply sets the field named by key to value. Values arrive as decoded JSON,
// so numbers may be float64 or numeric strings; both coerce.
func (d *Document) Apply(key FieldKey, value interface{}) error {
	if key.IsTopLevel() {
		switch key.Attribute {
		case AttrName:
			d.Name = asString(value)
		case AttrDescription:
			d.Description = asString(value)
		default:
			return fmt.Errorf("unknown itinerary attribute %q", key.Attribute)
		}
		return nil
	}

	place := d.findPlace(key)
	if place == nil {
		return fmt.Errorf("no place for field key %q", key.String())
	}

	switch key.Attribute {
	case AttrVisitDate:
		place.VisitDate = asString(value)
	case AttrVisitTime:
		place.VisitTime = asString(value)
	case AttrNotes:
		place.Notes = asString(value)
	case AttrVisitDuration:
		f, err := asFloat(value)
		if err != nil {
			return fmt.Errorf("field %q: %w", key.String(), err)
		}
		place.VisitDuration = f
	case AttrEstimatedCost:
		f, err := asFloat(value)
		if err != nil {
			return fmt.Errorf("field %q: %w", key.String(), err)
		}
		place.EstimatedCost = f
	default:
		return fmt.Errorf("unknown place attribute %q", key.Attribute)
	}

	return nil
}

// Value reads the current value of the field named by key
func (d *Document) Value(key FieldKey) (string, error) {
	if key.IsTopLevel() {
		switch key.Attribute {
		case AttrName:
			return d.Name, nil
		case AttrDescription:
			return d.Description, nil
		}
		return "", fmt.Errorf("unknown itinerary attribute %q", key.Attribute)
	}

	place := d.findPlace(key)
	if place == nil {
		return "", fmt.Errorf("no place for field key %q", key.String())
	}

	switch key.Attribute {
	case AttrVisitDate:
		return place.VisitDate, nil
	case AttrVisitTime:
		return place.VisitTime, nil
	case AttrNotes:
		return place.Notes, nil
	case AttrVisitDuration:
		return strconv.FormatFloat(place.VisitDuration, 'f', -1, 64), nil
	case AttrEstimatedCost:
		return strconv.FormatFloat(place.EstimatedCost, 'f', -1, 64), nil
	}
	return "", fmt.Errorf("unknown place attribute %q", key.Attribute)
}

// MoveUp shifts the place at orderIndex one position earlier. Reorders are a
// local-only mutation: they do not travel through the suggestion protocol and
// reach the server only on a full save.
func (d *Document) MoveUp(orderIndex int) bool {
	return d.swap(orderIndex, orderIndex-1)
}

// MoveDown shifts the place at orderIndex one position later
func (d *Document) MoveDown(orderIndex int) bool {
	return d.swap(orderIndex, orderIndex+1)
}

func (d *Document) swap(a, b int) bool {
	if a < 0 || b < 0 || a >= len(d.Places) || b >= len(d.Places) {
		return false
	}
	d.Places[a], d.Places[b] = d.Places[b], d.Places[a]
	d.renumber()
	return true
}

// renumber keeps order indexes contiguous from zero
func (d *Document) renumber() {
	for i := range d.Places {
		d.Places[i].OrderIndex = i
	}
}

// Aggregates recomputes the derived totals. Rejected suggestions are skipped;
// day-based averages are zero when no place carries a parseable visit date.
func (d *Document) Aggregates() Aggregates {
	var agg Aggregates
	var minDate, maxDate time.Time

	for _, p := range d.Places {
		if p.SuggestionStatus == models.SuggestionRejected {
			continue
		}

		agg.TotalCost += p.EstimatedCost
		agg.TotalHours += p.VisitDuration

		date, err := time.Parse(visitDateLayout, p.VisitDate)
		if err != nil {
			continue
		}
		if minDate.IsZero() || date.Before(minDate) {
			minDate = date
		}
		if maxDate.IsZero() || date.After(maxDate) {
			maxDate = date
		}
	}

	if !minDate.IsZero() {
		agg.DaysSpanned = int(maxDate.Sub(minDate).Hours()/24) + 1
		agg.AvgCostPerDay = agg.TotalCost / float64(agg.DaysSpanned)
		agg.AvgHoursPerDay = agg.TotalHours / float64(agg.DaysSpanned)
	}

	return agg
}

// Replace swaps in a fresh snapshot, e.g. after a reconnect resync
func (d *Document) Replace(other *Document) {
	d.ID = other.ID
	d.Name = other.Name
	d.Description = other.Description
	d.Places = make([]Place, len(other.Places))
	copy(d.Places, other.Places)
}

func (d *Document) findPlace(key FieldKey) *Place {
	if key.PlaceID != "" {
		for i := range d.Places {
			if d.Places[i].ID == key.PlaceID {
				return &d.Places[i]
			}
		}
		return nil
	}
	if key.OrderIndex >= 0 && key.OrderIndex < len(d.Places) {
		return &d.Places[key.OrderIndex]
	}
	return nil
}

func asString(value interface{}) string {
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprint(value)
}

func asFloat(value interface{}) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", v)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("not a number: %v", value)
	}
}
