package api_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wanderplan/wanderplan-server/internal/api/testutils"
	"github.com/wanderplan/wanderplan-server/internal/models"
)

func addTestPlace(t *testing.T, testCtx *testutils.TestContext, jwt, itineraryID, placeID string) models.ItineraryPlace {
	t.Helper()

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/itineraries/"+itineraryID+"/places",
		models.AddPlaceRequest{
			PlaceID:       placeID,
			VisitDate:     "2026-09-02",
			VisitTime:     "10:00",
			VisitDuration: 2,
			EstimatedCost: 35,
			Notes:         "added by tests",
		},
		testutils.AuthHeaders(jwt),
	)
	assert.Equal(t, http.StatusCreated, w.Code)

	var place models.ItineraryPlace
	testutils.DecodeData(t, w.Body.Bytes(), &place)
	assert.NotEmpty(t, place.ID)
	return place
}

func TestAddPlace(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	itinerary := createTestItinerary(t, testCtx, "Place Trip")

	// Owner-added places are accepted immediately and ordered by arrival
	first := addTestPlace(t, testCtx, testCtx.TestUserJWT, itinerary.ID, "place-1")
	second := addTestPlace(t, testCtx, testCtx.TestUserJWT, itinerary.ID, "place-2")
	assert.Equal(t, models.SuggestionAccepted, first.SuggestionStatus)
	assert.Equal(t, 0, first.OrderIndex)
	assert.Equal(t, 1, second.OrderIndex)

	// Missing placeId is rejected
	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/itineraries/"+itinerary.ID+"/places",
		models.AddPlaceRequest{Notes: "no place id"},
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdatePlace(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	itinerary := createTestItinerary(t, testCtx, "Update Place Trip")
	place := addTestPlace(t, testCtx, testCtx.TestUserJWT, itinerary.ID, "place-1")

	notes := "new notes"
	cost := 55.5
	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPatch,
		"/api/itineraries/"+itinerary.ID+"/places/"+place.ID,
		models.UpdatePlaceRequest{Notes: &notes, EstimatedCost: &cost},
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assert.Equal(t, http.StatusOK, w.Code)

	var updated models.ItineraryPlace
	testutils.DecodeData(t, w.Body.Bytes(), &updated)
	assert.Equal(t, "new notes", updated.Notes)
	assert.Equal(t, 55.5, updated.EstimatedCost)
	assert.Equal(t, place.VisitDate, updated.VisitDate, "omitted fields keep their values")
}

func TestRemovePlaceRenumbers(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	itinerary := createTestItinerary(t, testCtx, "Remove Place Trip")
	addTestPlace(t, testCtx, testCtx.TestUserJWT, itinerary.ID, "place-1")
	middle := addTestPlace(t, testCtx, testCtx.TestUserJWT, itinerary.ID, "place-2")
	addTestPlace(t, testCtx, testCtx.TestUserJWT, itinerary.ID, "place-3")

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodDelete,
		"/api/itineraries/"+itinerary.ID+"/places/"+middle.ID,
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assert.Equal(t, http.StatusOK, w.Code)

	doc := fetchDocument(t, testCtx, testCtx.TestUserJWT, itinerary.ID)
	assert.Len(t, doc.Places, 2)
	for i, p := range doc.Places {
		assert.Equal(t, i, p.OrderIndex, "order indexes stay contiguous after removal")
	}
}

func TestMovePlace(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	itinerary := createTestItinerary(t, testCtx, "Move Place Trip")
	first := addTestPlace(t, testCtx, testCtx.TestUserJWT, itinerary.ID, "place-1")
	second := addTestPlace(t, testCtx, testCtx.TestUserJWT, itinerary.ID, "place-2")

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/itineraries/"+itinerary.ID+"/places/"+second.ID+"/move",
		models.MovePlaceRequest{Direction: "up"},
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assert.Equal(t, http.StatusOK, w.Code)

	var places []models.ItineraryPlace
	testutils.DecodeData(t, w.Body.Bytes(), &places)
	assert.Len(t, places, 2)
	assert.Equal(t, second.ID, places[0].ID)
	assert.Equal(t, first.ID, places[1].ID)

	// Moving the top place further up is a no-op, not an error
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/itineraries/"+itinerary.ID+"/places/"+second.ID+"/move",
		models.MovePlaceRequest{Direction: "up"},
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assert.Equal(t, http.StatusOK, w.Code)
	testutils.DecodeData(t, w.Body.Bytes(), &places)
	assert.Equal(t, second.ID, places[0].ID)

	// Unknown direction is rejected by validation
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/itineraries/"+itinerary.ID+"/places/"+second.ID+"/move",
		models.MovePlaceRequest{Direction: "sideways"},
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestViewerSuggestionFlow(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	itinerary := createTestItinerary(t, testCtx, "Suggestion Trip")
	_, viewerJWT := testutils.CreateUser(t, testCtx.Repository, string(testCtx.JWTSecret), "viewer@example.com", "viewer")
	addCollaborator(t, testCtx, itinerary.ID, "viewer@example.com", models.RoleViewer)

	// A viewer's place lands as a pending suggestion
	suggested := addTestPlace(t, testCtx, viewerJWT, itinerary.ID, "place-suggested")
	assert.Equal(t, models.SuggestionPending, suggested.SuggestionStatus)

	// The viewer cannot resolve it
	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/itineraries/"+itinerary.ID+"/places/"+suggested.ID+"/resolve",
		models.ResolveSuggestionRequest{Status: models.SuggestionAccepted},
		testutils.AuthHeaders(viewerJWT),
	)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// The owner accepts it
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/itineraries/"+itinerary.ID+"/places/"+suggested.ID+"/resolve",
		models.ResolveSuggestionRequest{Status: models.SuggestionAccepted},
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assert.Equal(t, http.StatusOK, w.Code)

	var resolved models.ItineraryPlace
	testutils.DecodeData(t, w.Body.Bytes(), &resolved)
	assert.Equal(t, models.SuggestionAccepted, resolved.SuggestionStatus)

	// Resolving twice conflicts
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/itineraries/"+itinerary.ID+"/places/"+suggested.ID+"/resolve",
		models.ResolveSuggestionRequest{Status: models.SuggestionRejected},
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestTapInTapOut(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	itinerary := createTestItinerary(t, testCtx, "Attendance Trip")
	place := addTestPlace(t, testCtx, testCtx.TestUserJWT, itinerary.ID, "place-1")
	addTestPlace(t, testCtx, testCtx.TestUserJWT, itinerary.ID, "place-2")

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/itineraries/"+itinerary.ID+"/places/"+place.ID+"/tap-in",
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assert.Equal(t, http.StatusOK, w.Code)

	// Tapping in twice is idempotent
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/itineraries/"+itinerary.ID+"/places/"+place.ID+"/tap-in",
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assert.Equal(t, http.StatusOK, w.Code)

	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/itineraries/"+itinerary.ID+"/places/"+place.ID+"/tap-out",
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assert.Equal(t, http.StatusOK, w.Code)

	// Whole-itinerary attendance
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/itineraries/"+itinerary.ID+"/tap-all-in",
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assert.Equal(t, http.StatusOK, w.Code)

	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/itineraries/"+itinerary.ID+"/tap-all-out",
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assert.Equal(t, http.StatusOK, w.Code)
}

func fetchDocument(t *testing.T, testCtx *testutils.TestContext, jwt, itineraryID string) models.ItineraryDocument {
	t.Helper()

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		"/api/itineraries/"+itineraryID+"/document",
		nil,
		testutils.AuthHeaders(jwt),
	)
	assert.Equal(t, http.StatusOK, w.Code)

	var doc models.ItineraryDocument
	testutils.DecodeData(t, w.Body.Bytes(), &doc)
	return doc
}
