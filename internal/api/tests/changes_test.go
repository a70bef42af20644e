package api_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wanderplan/wanderplan-server/internal/api/testutils"
	"github.com/wanderplan/wanderplan-server/internal/models"
)

func submitTestChange(t *testing.T, testCtx *testutils.TestContext, jwt, itineraryID string, req models.SubmitChangeRequest) models.ChangeLogEntry {
	t.Helper()

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/itineraries/"+itineraryID+"/changes",
		req,
		testutils.AuthHeaders(jwt),
	)
	assert.Equal(t, http.StatusOK, w.Code)

	var entry models.ChangeLogEntry
	testutils.DecodeData(t, w.Body.Bytes(), &entry)
	return entry
}

func TestSubmitChange(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	itinerary := createTestItinerary(t, testCtx, "Changing Trip")

	entry := submitTestChange(t, testCtx, testCtx.TestUserJWT, itinerary.ID, models.SubmitChangeRequest{
		Field:         "name",
		NewValue:      "New Name",
		PreviousValue: "Changing Trip",
		ChangeType:    models.ChangeTypeUpdateField,
	})

	assert.Equal(t, int64(1), entry.SequenceNumber)
	assert.Equal(t, testCtx.TestUserID, entry.UserID)
	assert.Equal(t, "name", entry.Field)
	assert.Equal(t, "Changing Trip", entry.PreviousValue, "the blur-time value is stored as submitted")
	assert.NotEmpty(t, entry.ID)

	second := submitTestChange(t, testCtx, testCtx.TestUserJWT, itinerary.ID, models.SubmitChangeRequest{
		Field:      "name",
		NewValue:   "Newer Name",
		ChangeType: models.ChangeTypeUpdateField,
	})
	assert.Equal(t, int64(2), second.SequenceNumber)

	// Sequences are per itinerary, not global
	other := createTestItinerary(t, testCtx, "Other Trip")
	first := submitTestChange(t, testCtx, testCtx.TestUserJWT, other.ID, models.SubmitChangeRequest{
		Field:      "name",
		NewValue:   "x",
		ChangeType: models.ChangeTypeUpdateField,
	})
	assert.Equal(t, int64(1), first.SequenceNumber)
}

func TestGetChanges(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	itinerary := createTestItinerary(t, testCtx, "History Trip")
	for i := 1; i <= 5; i++ {
		submitTestChange(t, testCtx, testCtx.TestUserJWT, itinerary.ID, models.SubmitChangeRequest{
			Field:      "name",
			NewValue:   fmt.Sprintf("v%d", i),
			ChangeType: models.ChangeTypeUpdateField,
		})
	}

	// Everything after sequence 2
	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		"/api/itineraries/"+itinerary.ID+"/changes?fromSequence=2",
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assert.Equal(t, http.StatusOK, w.Code)

	var data models.ChangesData
	testutils.DecodeData(t, w.Body.Bytes(), &data)
	assert.Len(t, data.Changes, 3)
	assert.Equal(t, int64(5), data.LatestSequenceNumber)
	for i, c := range data.Changes {
		assert.Equal(t, int64(3+i), c.SequenceNumber, "changes arrive in sequence order")
	}

	// Bounded range
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		"/api/itineraries/"+itinerary.ID+"/changes?fromSequence=1&toSequence=3",
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assert.Equal(t, http.StatusOK, w.Code)
	testutils.DecodeData(t, w.Body.Bytes(), &data)
	assert.Len(t, data.Changes, 2)

	// Latest sequence endpoint agrees
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		"/api/itineraries/"+itinerary.ID+"/sequence",
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assert.Equal(t, http.StatusOK, w.Code)

	var seq models.SequenceData
	testutils.DecodeData(t, w.Body.Bytes(), &seq)
	assert.Equal(t, int64(5), seq.LatestSequenceNumber)
}

func TestUndoLastChange(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	itinerary := createTestItinerary(t, testCtx, "Undone Trip")

	// Nothing to undo yet
	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/itineraries/"+itinerary.ID+"/undo",
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assert.Equal(t, http.StatusNotFound, w.Code)

	submitTestChange(t, testCtx, testCtx.TestUserJWT, itinerary.ID, models.SubmitChangeRequest{
		Field:         "name",
		NewValue:      "mistake",
		PreviousValue: "Undone Trip",
		ChangeType:    models.ChangeTypeUpdateField,
	})

	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/itineraries/"+itinerary.ID+"/undo",
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assert.Equal(t, http.StatusOK, w.Code)

	var revert models.ChangeLogEntry
	testutils.DecodeData(t, w.Body.Bytes(), &revert)
	assert.Equal(t, models.ChangeTypeUndoField, revert.ChangeType)
	assert.Equal(t, "Undone Trip", revert.NewValue, "undo restores the captured previous value")
	assert.Equal(t, "mistake", revert.PreviousValue)
	assert.Equal(t, int64(2), revert.SequenceNumber, "the revert is appended, never rewritten in place")

	// The log keeps both entries
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		"/api/itineraries/"+itinerary.ID+"/changes",
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assert.Equal(t, http.StatusOK, w.Code)

	var data models.ChangesData
	testutils.DecodeData(t, w.Body.Bytes(), &data)
	assert.Len(t, data.Changes, 2)
}

func TestUndoStepsBackThroughHistory(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	itinerary := createTestItinerary(t, testCtx, "Layered Trip")

	submitTestChange(t, testCtx, testCtx.TestUserJWT, itinerary.ID, models.SubmitChangeRequest{
		Field:         "name",
		NewValue:      "second",
		PreviousValue: "first",
		ChangeType:    models.ChangeTypeUpdateField,
	})
	submitTestChange(t, testCtx, testCtx.TestUserJWT, itinerary.ID, models.SubmitChangeRequest{
		Field:         "name",
		NewValue:      "third",
		PreviousValue: "second",
		ChangeType:    models.ChangeTypeUpdateField,
	})

	undo := func() *httptest.ResponseRecorder {
		return testutils.PerformRequest(
			testCtx.Router,
			http.MethodPost,
			"/api/itineraries/"+itinerary.ID+"/undo",
			nil,
			testutils.AuthHeaders(testCtx.TestUserJWT),
		)
	}

	// First undo reverts the newest change
	w := undo()
	assert.Equal(t, http.StatusOK, w.Code)
	var revert models.ChangeLogEntry
	testutils.DecodeData(t, w.Body.Bytes(), &revert)
	assert.Equal(t, "second", revert.NewValue)

	// Second undo steps past the already-reverted change to the older one
	w = undo()
	assert.Equal(t, http.StatusOK, w.Code)
	testutils.DecodeData(t, w.Body.Bytes(), &revert)
	assert.Equal(t, "first", revert.NewValue)
	assert.Equal(t, "second", revert.PreviousValue)

	// Nothing left to revert
	w = undo()
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestConcurrentSequenceAssignment(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	itinerary := createTestItinerary(t, testCtx, "Concurrent Trip")

	const numGoroutines = 10
	const changesPerGoroutine = 5

	sequences := make(chan int64, numGoroutines*changesPerGoroutine)
	var wg sync.WaitGroup

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(routineID int) {
			defer wg.Done()

			for j := 0; j < changesPerGoroutine; j++ {
				w := testutils.PerformRequest(
					testCtx.Router,
					http.MethodPost,
					"/api/itineraries/"+itinerary.ID+"/changes",
					models.SubmitChangeRequest{
						Field:      fmt.Sprintf("notes.%d", routineID+1),
						NewValue:   fmt.Sprintf("edit %d_%d", routineID, j),
						ChangeType: models.ChangeTypeUpdateField,
					},
					testutils.AuthHeaders(testCtx.TestUserJWT),
				)
				assert.Equal(t, http.StatusOK, w.Code)

				var entry models.ChangeLogEntry
				testutils.DecodeData(t, w.Body.Bytes(), &entry)
				sequences <- entry.SequenceNumber
			}
		}(i)
	}

	wg.Wait()
	close(sequences)

	var all []int64
	for seq := range sequences {
		all = append(all, seq)
	}

	assert.Len(t, all, numGoroutines*changesPerGoroutine)
	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })
	for i, seq := range all {
		assert.Equal(t, int64(i+1), seq, "sequence numbers must be dense with no duplicates")
	}
}
