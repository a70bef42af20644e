package api_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wanderplan/wanderplan-server/internal/api/testutils"
	"github.com/wanderplan/wanderplan-server/internal/models"
)

func TestPlaceInsightEndpoints(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	// Miss before anything is stored
	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		"/api/places/place-1/insight",
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assert.Equal(t, http.StatusOK, w.Code)

	var insight models.InsightData
	testutils.DecodeData(t, w.Body.Bytes(), &insight)
	assert.False(t, insight.Cached)
	assert.Empty(t, insight.Text)

	// Store and read back
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPut,
		"/api/places/place-1/insight",
		models.SaveInsightRequest{Text: "Quietest before 9am"},
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assert.Equal(t, http.StatusOK, w.Code)

	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		"/api/places/place-1/insight",
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assert.Equal(t, http.StatusOK, w.Code)
	testutils.DecodeData(t, w.Body.Bytes(), &insight)
	assert.True(t, insight.Cached)
	assert.Equal(t, "Quietest before 9am", insight.Text)

	// Empty body is rejected
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPut,
		"/api/places/place-1/insight",
		models.SaveInsightRequest{},
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFeedbackNudgeEndpoints(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	itinerary := createTestItinerary(t, testCtx, "Nudged Trip")

	// Fresh user: no prompt
	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		"/api/feedback/nudge",
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assert.Equal(t, http.StatusOK, w.Code)

	var nudge models.NudgeData
	testutils.DecodeData(t, w.Body.Bytes(), &nudge)
	assert.False(t, nudge.ShouldPrompt)
	assert.Equal(t, 0, nudge.Sessions)

	// Document fetches count as sessions, submitted changes as edits
	fetchDocument(t, testCtx, testCtx.TestUserJWT, itinerary.ID)
	submitTestChange(t, testCtx, testCtx.TestUserJWT, itinerary.ID, models.SubmitChangeRequest{
		Field:      "name",
		NewValue:   "v1",
		ChangeType: models.ChangeTypeUpdateField,
	})

	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		"/api/feedback/nudge",
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assert.Equal(t, http.StatusOK, w.Code)
	testutils.DecodeData(t, w.Body.Bytes(), &nudge)
	assert.Equal(t, 1, nudge.Sessions)
	assert.Equal(t, 1, nudge.Edits)

	// Acknowledging the prompt resets the counters
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/feedback/nudge/prompted",
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assert.Equal(t, http.StatusOK, w.Code)

	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		"/api/feedback/nudge",
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assert.Equal(t, http.StatusOK, w.Code)
	testutils.DecodeData(t, w.Body.Bytes(), &nudge)
	assert.Equal(t, 0, nudge.Sessions)
	assert.Equal(t, 0, nudge.Edits)
	assert.False(t, nudge.ShouldPrompt, "cooldown keeps the prompt off after acknowledgement")
}
