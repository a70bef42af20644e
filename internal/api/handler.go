package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/wanderplan/wanderplan-server/internal/cache"
	"github.com/wanderplan/wanderplan-server/internal/models"
	"github.com/wanderplan/wanderplan-server/internal/realtime"
	"github.com/wanderplan/wanderplan-server/internal/service"
	"github.com/wanderplan/wanderplan-server/internal/utils"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Mobile clients carry no Origin header
		return true
	},
}

// Handler wires the HTTP surface to the service, the realtime hub and the
// client-facing caches
type Handler struct {
	svc      service.Service
	hub      *realtime.Hub
	insights *cache.PlaceInsightCache
	nudges   *cache.FeedbackNudge
	logger   *utils.Logger
}

// NewHandler creates a new API handler
func NewHandler(
	svc service.Service,
	hub *realtime.Hub,
	insights *cache.PlaceInsightCache,
	nudges *cache.FeedbackNudge,
	logger *utils.Logger,
) *Handler {
	return &Handler{
		svc:      svc,
		hub:      hub,
		insights: insights,
		nudges:   nudges,
		logger:   logger,
	}
}

// SetupRoutes registers all API routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api", AuthMiddleware())

	api.POST("/itineraries", h.createItinerary)
	api.GET("/itineraries", h.listItineraries)
	api.GET("/itineraries/:id", h.getItinerary)
	api.PATCH("/itineraries/:id", h.updateItinerary)
	api.DELETE("/itineraries/:id", h.deleteItinerary)
	api.GET("/itineraries/:id/document", h.getDocument)

	api.POST("/itineraries/:id/places", h.addPlace)
	api.PATCH("/itineraries/:id/places/:placeId", h.updatePlace)
	api.DELETE("/itineraries/:id/places/:placeId", h.removePlace)
	api.POST("/itineraries/:id/places/:placeId/move", h.movePlace)
	api.POST("/itineraries/:id/places/:placeId/resolve", h.resolveSuggestion)

	api.POST("/itineraries/:id/places/:placeId/tap-in", h.tapIn)
	api.POST("/itineraries/:id/places/:placeId/tap-out", h.tapOut)
	api.POST("/itineraries/:id/tap-all-in", h.tapAllIn)
	api.POST("/itineraries/:id/tap-all-out", h.tapAllOut)

	api.GET("/itineraries/:id/collaborators", h.listCollaborators)
	api.POST("/itineraries/:id/collaborators", h.addCollaborator)
	api.PATCH("/itineraries/:id/collaborators/:userId", h.updateCollaborator)
	api.DELETE("/itineraries/:id/collaborators/:userId", h.removeCollaborator)

	api.POST("/itineraries/:id/changes", h.submitChange)
	api.GET("/itineraries/:id/changes", h.getChanges)
	api.GET("/itineraries/:id/sequence", h.getSequence)
	api.POST("/itineraries/:id/undo", h.undoChange)

	api.GET("/itineraries/:id/ws", h.joinRoom)

	api.GET("/places/:placeId/insight", h.getInsight)
	api.PUT("/places/:placeId/insight", h.saveInsight)
	api.GET("/feedback/nudge", h.getNudge)
	api.POST("/feedback/nudge/prompted", h.nudgePrompted)
}

func userID(c *gin.Context) string {
	return c.GetString("userId")
}

// Itinerary handlers
func (h *Handler) createItinerary(c *gin.Context) {
	var req models.CreateItineraryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	itinerary, err := h.svc.CreateItinerary(c.Request.Context(), userID(c), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respond(c, http.StatusCreated, itinerary)
}

func (h *Handler) listItineraries(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	itineraries, pagination, err := h.svc.ListItineraries(c.Request.Context(), userID(c), page, limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respond(c, http.StatusOK, models.PaginatedData{
		Data:       itineraries,
		Pagination: pagination,
	})
}

func (h *Handler) getItinerary(c *gin.Context) {
	itinerary, err := h.svc.GetItinerary(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respond(c, http.StatusOK, itinerary)
}

func (h *Handler) updateItinerary(c *gin.Context) {
	var req models.UpdateItineraryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	itinerary, err := h.svc.UpdateItinerary(c.Request.Context(), userID(c), c.Param("id"), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respond(c, http.StatusOK, itinerary)
}

func (h *Handler) deleteItinerary(c *gin.Context) {
	if err := h.svc.DeleteItinerary(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		respondServiceError(c, err)
		return
	}

	respond(c, http.StatusOK, nil)
}

// getDocument serves the full snapshot used by clients to (re)build their
// local document; fetching it also counts as a session for the feedback nudge
func (h *Handler) getDocument(c *gin.Context) {
	doc, err := h.svc.GetDocument(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	if err := h.nudges.RecordSession(c.Request.Context(), userID(c)); err != nil {
		h.logger.Error("failed to record nudge session: %v", err)
	}

	respond(c, http.StatusOK, doc)
}

// Place handlers
func (h *Handler) addPlace(c *gin.Context) {
	var req models.AddPlaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	place, err := h.svc.AddPlace(c.Request.Context(), userID(c), c.Param("id"), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respond(c, http.StatusCreated, place)
}

func (h *Handler) updatePlace(c *gin.Context) {
	var req models.UpdatePlaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	place, err := h.svc.UpdatePlace(c.Request.Context(), userID(c), c.Param("id"), c.Param("placeId"), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respond(c, http.StatusOK, place)
}

func (h *Handler) removePlace(c *gin.Context) {
	if err := h.svc.RemovePlace(c.Request.Context(), userID(c), c.Param("id"), c.Param("placeId")); err != nil {
		respondServiceError(c, err)
		return
	}

	respond(c, http.StatusOK, nil)
}

func (h *Handler) movePlace(c *gin.Context) {
	var req models.MovePlaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	places, err := h.svc.MovePlace(c.Request.Context(), userID(c), c.Param("id"), c.Param("placeId"), req.Direction)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respond(c, http.StatusOK, places)
}

func (h *Handler) resolveSuggestion(c *gin.Context) {
	var req models.ResolveSuggestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	place, err := h.svc.ResolveSuggestion(c.Request.Context(), userID(c), c.Param("id"), c.Param("placeId"), req.Status)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respond(c, http.StatusOK, place)
}

// Attendance handlers
func (h *Handler) tapIn(c *gin.Context) {
	if err := h.svc.TapIn(c.Request.Context(), userID(c), c.Param("id"), c.Param("placeId")); err != nil {
		respondServiceError(c, err)
		return
	}
	respond(c, http.StatusOK, nil)
}

func (h *Handler) tapOut(c *gin.Context) {
	if err := h.svc.TapOut(c.Request.Context(), userID(c), c.Param("id"), c.Param("placeId")); err != nil {
		respondServiceError(c, err)
		return
	}
	respond(c, http.StatusOK, nil)
}

func (h *Handler) tapAllIn(c *gin.Context) {
	if err := h.svc.TapAllIn(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		respondServiceError(c, err)
		return
	}
	respond(c, http.StatusOK, nil)
}

func (h *Handler) tapAllOut(c *gin.Context) {
	if err := h.svc.TapAllOut(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		respondServiceError(c, err)
		return
	}
	respond(c, http.StatusOK, nil)
}

// Collaborator handlers
func (h *Handler) listCollaborators(c *gin.Context) {
	members, err := h.svc.ListCollaborators(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respond(c, http.StatusOK, members)
}

func (h *Handler) addCollaborator(c *gin.Context) {
	var req models.AddCollaboratorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	member, err := h.svc.AddCollaborator(c.Request.Context(), userID(c), c.Param("id"), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respond(c, http.StatusCreated, member)
}

func (h *Handler) updateCollaborator(c *gin.Context) {
	var req models.UpdateCollaboratorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	err := h.svc.UpdateCollaboratorRole(c.Request.Context(), userID(c), c.Param("id"), c.Param("userId"), req.Role)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respond(c, http.StatusOK, nil)
}

func (h *Handler) removeCollaborator(c *gin.Context) {
	err := h.svc.RemoveCollaborator(c.Request.Context(), userID(c), c.Param("id"), c.Param("userId"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respond(c, http.StatusOK, nil)
}

// Change log handlers
func (h *Handler) submitChange(c *gin.Context) {
	var req models.SubmitChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	entry, err := h.svc.SubmitChange(c.Request.Context(), userID(c), c.Param("id"), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	if err := h.nudges.RecordEdit(c.Request.Context(), userID(c)); err != nil {
		h.logger.Error("failed to record nudge edit: %v", err)
	}

	respond(c, http.StatusOK, entry)
}

func (h *Handler) getChanges(c *gin.Context) {
	fromSeq, _ := strconv.ParseInt(c.DefaultQuery("fromSequence", "0"), 10, 64)
	toSeq, _ := strconv.ParseInt(c.DefaultQuery("toSequence", "0"), 10, 64)

	changes, latestSeq, err := h.svc.GetChanges(c.Request.Context(), userID(c), c.Param("id"), fromSeq, toSeq)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respond(c, http.StatusOK, models.ChangesData{
		ItineraryID:          c.Param("id"),
		Changes:              changes,
		LatestSequenceNumber: latestSeq,
	})
}

func (h *Handler) getSequence(c *gin.Context) {
	latestSeq, err := h.svc.GetLatestSequence(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respond(c, http.StatusOK, models.SequenceData{
		ItineraryID:          c.Param("id"),
		LatestSequenceNumber: latestSeq,
	})
}

func (h *Handler) undoChange(c *gin.Context) {
	entry, err := h.svc.UndoLastChange(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respond(c, http.StatusOK, entry)
}

// joinRoom upgrades the connection and attaches it to the itinerary's
// collaborative editing room
func (h *Handler) joinRoom(c *gin.Context) {
	itineraryID := c.Param("id")
	uid := userID(c)

	ok, err := h.svc.CheckAccess(c.Request.Context(), itineraryID, uid, false)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if !ok {
		respondError(c, http.StatusForbidden, "no access to this itinerary")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		h.logger.Error("websocket upgrade failed: %v", err)
		return
	}

	h.hub.Join(itineraryID, uid, conn)
}

// Insight cache handlers
func (h *Handler) getInsight(c *gin.Context) {
	text, hit, err := h.insights.Get(c.Request.Context(), userID(c), c.Param("placeId"))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "insight cache unavailable")
		return
	}

	respond(c, http.StatusOK, models.InsightData{
		PlaceID: c.Param("placeId"),
		Text:    text,
		Cached:  hit,
	})
}

func (h *Handler) saveInsight(c *gin.Context) {
	var req models.SaveInsightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.insights.Put(c.Request.Context(), userID(c), c.Param("placeId"), req.Text); err != nil {
		respondError(c, http.StatusInternalServerError, "insight cache unavailable")
		return
	}

	respond(c, http.StatusOK, models.InsightData{
		PlaceID: c.Param("placeId"),
		Text:    req.Text,
		Cached:  true,
	})
}

// Feedback nudge handlers
func (h *Handler) getNudge(c *gin.Context) {
	shouldPrompt, err := h.nudges.ShouldPrompt(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "nudge state unavailable")
		return
	}

	sessions, edits, err := h.nudges.Counters(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "nudge state unavailable")
		return
	}

	respond(c, http.StatusOK, models.NudgeData{
		ShouldPrompt: shouldPrompt,
		Sessions:     sessions,
		Edits:        edits,
	})
}

func (h *Handler) nudgePrompted(c *gin.Context) {
	if err := h.nudges.Prompted(c.Request.Context(), userID(c)); err != nil {
		respondError(c, http.StatusInternalServerError, "nudge state unavailable")
		return
	}

	respond(c, http.StatusOK, nil)
}
