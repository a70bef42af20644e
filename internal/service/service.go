package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wanderplan/wanderplan-server/internal/models"
	"github.com/wanderplan/wanderplan-server/internal/repository"
)

// Sentinel errors mapped to HTTP status codes by the API layer
var (
	ErrNotFound  = errors.New("resource not found")
	ErrForbidden = errors.New("permission denied")
	ErrConflict  = errors.New("conflicting state")
	ErrInvalid   = errors.New("invalid request")
)

// Service defines all the business logic operations
type Service interface {
	// Itinerary operations
	CreateItinerary(ctx context.Context, userID string, req models.CreateItineraryRequest) (*models.Itinerary, error)
	GetItinerary(ctx context.Context, userID, itineraryID string) (*models.Itinerary, error)
	UpdateItinerary(ctx context.Context, userID, itineraryID string, req models.UpdateItineraryRequest) (*models.Itinerary, error)
	DeleteItinerary(ctx context.Context, userID, itineraryID string) error
	ListItineraries(ctx context.Context, userID string, page, limit int) ([]models.Itinerary, models.Pagination, error)
	GetDocument(ctx context.Context, userID, itineraryID string) (*models.ItineraryDocument, error)

	// Place operations
	AddPlace(ctx context.Context, userID, itineraryID string, req models.AddPlaceRequest) (*models.ItineraryPlace, error)
	UpdatePlace(ctx context.Context, userID, itineraryID, placeID string, req models.UpdatePlaceRequest) (*models.ItineraryPlace, error)
	RemovePlace(ctx context.Context, userID, itineraryID, placeID string) error
	MovePlace(ctx context.Context, userID, itineraryID, placeID, direction string) ([]models.ItineraryPlace, error)
	ResolveSuggestion(ctx context.Context, userID, itineraryID, placeID, status string) (*models.ItineraryPlace, error)

	// Collaborator operations
	AddCollaborator(ctx context.Context, userID, itineraryID string, req models.AddCollaboratorRequest) (*models.ItineraryUser, error)
	UpdateCollaboratorRole(ctx context.Context, userID, itineraryID, targetUserID, role string) error
	RemoveCollaborator(ctx context.Context, userID, itineraryID, targetUserID string) error
	ListCollaborators(ctx context.Context, userID, itineraryID string) ([]models.ItineraryUser, error)

	// Attendance operations
	TapIn(ctx context.Context, userID, itineraryID, placeID string) error
	TapOut(ctx context.Context, userID, itineraryID, placeID string) error
	TapAllIn(ctx context.Context, userID, itineraryID string) error
	TapAllOut(ctx context.Context, userID, itineraryID string) error

	// Change log operations
	SubmitChange(ctx context.Context, userID, itineraryID string, req models.SubmitChangeRequest) (*models.ChangeLogEntry, error)
	GetChanges(ctx context.Context, userID, itineraryID string, fromSeq, toSeq int64) ([]models.ChangeLogEntry, int64, error)
	GetLatestSequence(ctx context.Context, userID, itineraryID string) (int64, error)
	UndoLastChange(ctx context.Context, userID, itineraryID string) (*models.ChangeLogEntry, error)

	// Access check used by the realtime layer before admitting a session
	CheckAccess(ctx context.Context, itineraryID, userID string, write bool) (bool, error)
}

// DefaultService implements the Service interface
type DefaultService struct {
	repo repository.Repository
}

// NewDefaultService creates a new DefaultService
func NewDefaultService(repo repository.Repository) Service {
	return &DefaultService{
		repo: repo,
	}
}

// Itinerary operations
func (s *DefaultService) CreateItinerary(
	ctx context.Context,
	userID string,
	req models.CreateItineraryRequest,
) (*models.Itinerary, error) {
	itinerary := &models.Itinerary{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Description: req.Description,
		OwnerID:     userID,
		IsPublic:    req.IsPublic,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	}

	if err := s.repo.CreateItinerary(ctx, itinerary); err != nil {
		return nil, fmt.Errorf("error creating itinerary: %w", err)
	}

	return itinerary, nil
}

func (s *DefaultService) GetItinerary(ctx context.Context, userID, itineraryID string) (*models.Itinerary, error) {
	itinerary, err := s.repo.GetItinerary(ctx, itineraryID)
	if err != nil {
		return nil, fmt.Errorf("error getting itinerary: %w", err)
	}

	if itinerary == nil {
		return nil, ErrNotFound
	}

	if !itinerary.IsPublic {
		role, err := s.repo.GetItineraryUserRole(ctx, itineraryID, userID)
		if err != nil {
			return nil, fmt.Errorf("error checking membership: %w", err)
		}
		if role == "" {
			return nil, ErrForbidden
		}
	}

	return itinerary, nil
}

func (s *DefaultService) UpdateItinerary(
	ctx context.Context,
	userID string,
	itineraryID string,
	req models.UpdateItineraryRequest,
) (*models.Itinerary, error) {
	itinerary, err := s.requireItinerary(ctx, itineraryID)
	if err != nil {
		return nil, err
	}

	if err := s.requireWriteRole(ctx, itineraryID, userID); err != nil {
		return nil, err
	}

	if req.Name != nil {
		itinerary.Name = *req.Name
	}
	if req.Description != nil {
		itinerary.Description = *req.Description
	}
	if req.IsPublic != nil {
		itinerary.IsPublic = *req.IsPublic
	}
	if req.StartDate != nil {
		itinerary.StartDate = *req.StartDate
	}
	if req.EndDate != nil {
		itinerary.EndDate = *req.EndDate
	}

	if err := s.repo.UpdateItinerary(ctx, itinerary); err != nil {
		return nil, fmt.Errorf("error updating itinerary: %w", err)
	}

	return itinerary, nil
}

func (s *DefaultService) DeleteItinerary(ctx context.Context, userID, itineraryID string) error {
	itinerary, err := s.requireItinerary(ctx, itineraryID)
	if err != nil {
		return err
	}

	// Only the owner may delete
	if itinerary.OwnerID != userID {
		return ErrForbidden
	}

	if err := s.repo.DeleteItinerary(ctx, itineraryID); err != nil {
		return fmt.Errorf("error deleting itinerary: %w", err)
	}

	return nil
}

func (s *DefaultService) ListItineraries(
	ctx context.Context,
	userID string,
	page, limit int,
) ([]models.Itinerary, models.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	itineraries, total, err := s.repo.GetUserItineraries(ctx, userID, (page-1)*limit, limit)
	if err != nil {
		return nil, models.Pagination{}, fmt.Errorf("error listing itineraries: %w", err)
	}

	totalPages := (total + limit - 1) / limit
	pagination := models.Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
	}

	return itineraries, pagination, nil
}

// GetDocument returns the full snapshot a client needs for a resync
func (s *DefaultService) GetDocument(ctx context.Context, userID, itineraryID string) (*models.ItineraryDocument, error) {
	itinerary, err := s.GetItinerary(ctx, userID, itineraryID)
	if err != nil {
		return nil, err
	}

	places, err := s.repo.GetItineraryPlaces(ctx, itineraryID)
	if err != nil {
		return nil, fmt.Errorf("error getting places: %w", err)
	}

	members, err := s.repo.GetItineraryUsers(ctx, itineraryID)
	if err != nil {
		return nil, fmt.Errorf("error getting members: %w", err)
	}

	return &models.ItineraryDocument{
		Itinerary: *itinerary,
		Places:    places,
		Members:   members,
	}, nil
}

// Place operations
func (s *DefaultService) AddPlace(
	ctx context.Context,
	userID string,
	itineraryID string,
	req models.AddPlaceRequest,
) (*models.ItineraryPlace, error) {
	if _, err := s.requireItinerary(ctx, itineraryID); err != nil {
		return nil, err
	}

	role, err := s.repo.GetItineraryUserRole(ctx, itineraryID, userID)
	if err != nil {
		return nil, fmt.Errorf("error checking membership: %w", err)
	}
	if role == "" {
		return nil, ErrForbidden
	}

	// Owner and editor additions are accepted immediately; viewers only suggest
	status := models.SuggestionAccepted
	if role == models.RoleViewer {
		status = models.SuggestionPending
	}

	place := &models.ItineraryPlace{
		ID:               uuid.New().String(),
		ItineraryID:      itineraryID,
		PlaceID:          req.PlaceID,
		VisitDate:        req.VisitDate,
		VisitTime:        req.VisitTime,
		VisitDuration:    req.VisitDuration,
		EstimatedCost:    req.EstimatedCost,
		Notes:            req.Notes,
		SuggestionStatus: status,
		CreatedBy:        userID,
	}

	if err := s.repo.AddPlace(ctx, place); err != nil {
		return nil, fmt.Errorf("error adding place: %w", err)
	}

	return place, nil
}

func (s *DefaultService) UpdatePlace(
	ctx context.Context,
	userID string,
	itineraryID string,
	placeID string,
	req models.UpdatePlaceRequest,
) (*models.ItineraryPlace, error) {
	place, err := s.requirePlace(ctx, itineraryID, placeID)
	if err != nil {
		return nil, err
	}

	if err := s.requireWriteRole(ctx, itineraryID, userID); err != nil {
		return nil, err
	}

	if req.VisitDate != nil {
		place.VisitDate = *req.VisitDate
	}
	if req.VisitTime != nil {
		place.VisitTime = *req.VisitTime
	}
	if req.VisitDuration != nil {
		place.VisitDuration = *req.VisitDuration
	}
	if req.EstimatedCost != nil {
		place.EstimatedCost = *req.EstimatedCost
	}
	if req.Notes != nil {
		place.Notes = *req.Notes
	}

	if err := s.repo.UpdatePlace(ctx, place); err != nil {
		return nil, fmt.Errorf("error updating place: %w", err)
	}

	return place, nil
}

func (s *DefaultService) RemovePlace(ctx context.Context, userID, itineraryID, placeID string) error {
	if _, err := s.requirePlace(ctx, itineraryID, placeID); err != nil {
		return err
	}

	if err := s.requireWriteRole(ctx, itineraryID, userID); err != nil {
		return err
	}

	if err := s.repo.RemovePlace(ctx, itineraryID, placeID); err != nil {
		return fmt.Errorf("error removing place: %w", err)
	}

	return nil
}

// MovePlace shifts a place one step up or down and returns the reordered list
func (s *DefaultService) MovePlace(
	ctx context.Context,
	userID string,
	itineraryID string,
	placeID string,
	direction string,
) ([]models.ItineraryPlace, error) {
	place, err := s.requirePlace(ctx, itineraryID, placeID)
	if err != nil {
		return nil, err
	}

	if err := s.requireWriteRole(ctx, itineraryID, userID); err != nil {
		return nil, err
	}

	places, err := s.repo.GetItineraryPlaces(ctx, itineraryID)
	if err != nil {
		return nil, fmt.Errorf("error getting places: %w", err)
	}

	target := place.OrderIndex
	switch direction {
	case "up":
		target--
	case "down":
		target++
	default:
		return nil, ErrInvalid
	}

	// Already at the boundary: nothing to do
	if target < 0 || target >= len(places) {
		return places, nil
	}

	if err := s.repo.SwapPlaceOrder(ctx, itineraryID, place.OrderIndex, target); err != nil {
		return nil, fmt.Errorf("error reordering places: %w", err)
	}

	return s.repo.GetItineraryPlaces(ctx, itineraryID)
}

// ResolveSuggestion accepts or rejects a pending place suggested by a viewer
func (s *DefaultService) ResolveSuggestion(
	ctx context.Context,
	userID string,
	itineraryID string,
	placeID string,
	status string,
) (*models.ItineraryPlace, error) {
	place, err := s.requirePlace(ctx, itineraryID, placeID)
	if err != nil {
		return nil, err
	}

	if err := s.requireWriteRole(ctx, itineraryID, userID); err != nil {
		return nil, err
	}

	if place.SuggestionStatus != models.SuggestionPending {
		return nil, ErrConflict
	}

	if status != models.SuggestionAccepted && status != models.SuggestionRejected {
		return nil, ErrInvalid
	}

	if err := s.repo.SetSuggestionStatus(ctx, placeID, status); err != nil {
		return nil, fmt.Errorf("error resolving suggestion: %w", err)
	}

	place.SuggestionStatus = status
	return place, nil
}

// Collaborator operations
func (s *DefaultService) AddCollaborator(
	ctx context.Context,
	userID string,
	itineraryID string,
	req models.AddCollaboratorRequest,
) (*models.ItineraryUser, error) {
	if _, err := s.requireItinerary(ctx, itineraryID); err != nil {
		return nil, err
	}

	if err := s.requireWriteRole(ctx, itineraryID, userID); err != nil {
		return nil, err
	}

	// Resolve the identity string against the user directory
	userToAdd, err := s.repo.GetUserByIdentity(ctx, req.Identity)
	if err != nil {
		return nil, fmt.Errorf("error resolving identity: %w", err)
	}

	if userToAdd == nil {
		return nil, ErrNotFound
	}

	// The owner role is fixed at creation and never granted here
	existingRole, err := s.repo.GetItineraryUserRole(ctx, itineraryID, userToAdd.ID)
	if err != nil {
		return nil, fmt.Errorf("error checking membership: %w", err)
	}
	if existingRole == models.RoleOwner {
		return nil, ErrConflict
	}

	member := &models.ItineraryUser{
		ItineraryID: itineraryID,
		UserID:      userToAdd.ID,
		Role:        req.Role,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.repo.AddItineraryUser(ctx, member); err != nil {
		return nil, fmt.Errorf("error adding collaborator: %w", err)
	}

	return member, nil
}

func (s *DefaultService) UpdateCollaboratorRole(
	ctx context.Context,
	userID string,
	itineraryID string,
	targetUserID string,
	role string,
) error {
	itinerary, err := s.requireItinerary(ctx, itineraryID)
	if err != nil {
		return err
	}

	if err := s.requireWriteRole(ctx, itineraryID, userID); err != nil {
		return err
	}

	// The single owner's role is immutable
	if targetUserID == itinerary.OwnerID {
		return ErrConflict
	}

	existingRole, err := s.repo.GetItineraryUserRole(ctx, itineraryID, targetUserID)
	if err != nil {
		return fmt.Errorf("error checking membership: %w", err)
	}
	if existingRole == "" {
		return ErrNotFound
	}

	if err := s.repo.UpdateItineraryUserRole(ctx, itineraryID, targetUserID, role); err != nil {
		return fmt.Errorf("error updating role: %w", err)
	}

	return nil
}

func (s *DefaultService) RemoveCollaborator(ctx context.Context, userID, itineraryID, targetUserID string) error {
	itinerary, err := s.requireItinerary(ctx, itineraryID)
	if err != nil {
		return err
	}

	// Collaborators may remove themselves; otherwise write role is required
	if userID != targetUserID {
		if err := s.requireWriteRole(ctx, itineraryID, userID); err != nil {
			return err
		}
	}

	// The owner cannot leave their own itinerary
	if targetUserID == itinerary.OwnerID {
		return ErrConflict
	}

	existingRole, err := s.repo.GetItineraryUserRole(ctx, itineraryID, targetUserID)
	if err != nil {
		return fmt.Errorf("error checking membership: %w", err)
	}
	if existingRole == "" {
		return ErrNotFound
	}

	if err := s.repo.RemoveItineraryUser(ctx, itineraryID, targetUserID); err != nil {
		return fmt.Errorf("error removing collaborator: %w", err)
	}

	return nil
}

func (s *DefaultService) ListCollaborators(ctx context.Context, userID, itineraryID string) ([]models.ItineraryUser, error) {
	if _, err := s.GetItinerary(ctx, userID, itineraryID); err != nil {
		return nil, err
	}

	members, err := s.repo.GetItineraryUsers(ctx, itineraryID)
	if err != nil {
		return nil, fmt.Errorf("error listing collaborators: %w", err)
	}

	return members, nil
}

// Attendance operations
func (s *DefaultService) TapIn(ctx context.Context, userID, itineraryID, placeID string) error {
	if err := s.requireMembership(ctx, itineraryID, userID); err != nil {
		return err
	}

	if _, err := s.requirePlace(ctx, itineraryID, placeID); err != nil {
		return err
	}

	if err := s.repo.TapIn(ctx, placeID, userID); err != nil {
		return fmt.Errorf("error tapping in: %w", err)
	}

	return nil
}

func (s *DefaultService) TapOut(ctx context.Context, userID, itineraryID, placeID string) error {
	if err := s.requireMembership(ctx, itineraryID, userID); err != nil {
		return err
	}

	if _, err := s.requirePlace(ctx, itineraryID, placeID); err != nil {
		return err
	}

	if err := s.repo.TapOut(ctx, placeID, userID); err != nil {
		return fmt.Errorf("error tapping out: %w", err)
	}

	return nil
}

func (s *DefaultService) TapAllIn(ctx context.Context, userID, itineraryID string) error {
	if err := s.requireMembership(ctx, itineraryID, userID); err != nil {
		return err
	}

	if err := s.repo.TapAll(ctx, itineraryID, userID, true); err != nil {
		return fmt.Errorf("error tapping all in: %w", err)
	}

	return nil
}

func (s *DefaultService) TapAllOut(ctx context.Context, userID, itineraryID string) error {
	if err := s.requireMembership(ctx, itineraryID, userID); err != nil {
		return err
	}

	if err := s.repo.TapAll(ctx, itineraryID, userID, false); err != nil {
		return fmt.Errorf("error tapping all out: %w", err)
	}

	return nil
}

// Change log operations
func (s *DefaultService) SubmitChange(
	ctx context.Context,
	userID string,
	itineraryID string,
	req models.SubmitChangeRequest,
) (*models.ChangeLogEntry, error) {
	if _, err := s.requireItinerary(ctx, itineraryID); err != nil {
		return nil, err
	}

	if err := s.requireWriteRole(ctx, itineraryID, userID); err != nil {
		return nil, err
	}

	changeType := req.ChangeType
	if changeType == "" {
		changeType = models.ChangeTypeUpdateField
	}

	change := &models.ChangeLogEntry{
		ID:            uuid.New().String(),
		ItineraryID:   itineraryID,
		UserID:        userID,
		Field:         req.Field,
		NewValue:      req.NewValue,
		PreviousValue: req.PreviousValue,
		ChangeType:    changeType,
		Timestamp:     time.Now().UTC(),
	}

	if err := s.repo.AppendChange(ctx, change); err != nil {
		return nil, fmt.Errorf("error appending change: %w", err)
	}

	return change, nil
}

func (s *DefaultService) GetChanges(
	ctx context.Context,
	userID string,
	itineraryID string,
	fromSeq int64,
	toSeq int64,
) ([]models.ChangeLogEntry, int64, error) {
	if _, err := s.GetItinerary(ctx, userID, itineraryID); err != nil {
		return nil, 0, err
	}

	changes, err := s.repo.GetChangesBySequenceRange(ctx, itineraryID, fromSeq, toSeq)
	if err != nil {
		return nil, 0, fmt.Errorf("error getting changes: %w", err)
	}

	latestSeq, err := s.repo.GetLatestSequenceNumber(ctx, itineraryID)
	if err != nil {
		return nil, 0, fmt.Errorf("error getting latest sequence number: %w", err)
	}

	return changes, latestSeq, nil
}

func (s *DefaultService) GetLatestSequence(ctx context.Context, userID, itineraryID string) (int64, error) {
	if _, err := s.GetItinerary(ctx, userID, itineraryID); err != nil {
		return 0, err
	}

	latestSeq, err := s.repo.GetLatestSequenceNumber(ctx, itineraryID)
	if err != nil {
		return 0, fmt.Errorf("error getting latest sequence number: %w", err)
	}

	return latestSeq, nil
}

// UndoLastChange appends a compensating entry that reverts the user's most
// recent field update. The caller broadcasts the revert as a suggested change
// so every participant converges on the restored value.
func (s *DefaultService) UndoLastChange(ctx context.Context, userID, itineraryID string) (*models.ChangeLogEntry, error) {
	if _, err := s.requireItinerary(ctx, itineraryID); err != nil {
		return nil, err
	}

	if err := s.requireWriteRole(ctx, itineraryID, userID); err != nil {
		return nil, err
	}

	last, err := s.repo.GetLatestChangeByUser(ctx, itineraryID, userID)
	if err != nil {
		return nil, fmt.Errorf("error finding undo target: %w", err)
	}

	if last == nil {
		return nil, ErrNotFound
	}

	compensating := &models.ChangeLogEntry{
		ID:            uuid.New().String(),
		ItineraryID:   itineraryID,
		UserID:        userID,
		Field:         last.Field,
		NewValue:      last.PreviousValue,
		PreviousValue: last.NewValue,
		ChangeType:    models.ChangeTypeUndoField,
		Timestamp:     time.Now().UTC(),
	}

	if err := s.repo.AppendChange(ctx, compensating); err != nil {
		return nil, fmt.Errorf("error appending undo entry: %w", err)
	}

	return compensating, nil
}

// CheckAccess reports whether the user may view (write=false) or edit
// (write=true) the itinerary
func (s *DefaultService) CheckAccess(ctx context.Context, itineraryID, userID string, write bool) (bool, error) {
	itinerary, err := s.repo.GetItinerary(ctx, itineraryID)
	if err != nil {
		return false, fmt.Errorf("error getting itinerary: %w", err)
	}
	if itinerary == nil {
		return false, nil
	}

	role, err := s.repo.GetItineraryUserRole(ctx, itineraryID, userID)
	if err != nil {
		return false, fmt.Errorf("error checking membership: %w", err)
	}

	if write {
		return role == models.RoleOwner || role == models.RoleEditor, nil
	}

	return role != "" || itinerary.IsPublic, nil
}

// Helper methods
func (s *DefaultService) requireItinerary(ctx context.Context, itineraryID string) (*models.Itinerary, error) {
	itinerary, err := s.repo.GetItinerary(ctx, itineraryID)
	if err != nil {
		return nil, fmt.Errorf("error getting itinerary: %w", err)
	}
	if itinerary == nil {
		return nil, ErrNotFound
	}
	return itinerary, nil
}

func (s *DefaultService) requirePlace(ctx context.Context, itineraryID, placeID string) (*models.ItineraryPlace, error) {
	place, err := s.repo.GetPlace(ctx, placeID)
	if err != nil {
		return nil, fmt.Errorf("error getting place: %w", err)
	}
	if place == nil || place.ItineraryID != itineraryID {
		return nil, ErrNotFound
	}
	return place, nil
}

func (s *DefaultService) requireMembership(ctx context.Context, itineraryID, userID string) error {
	if _, err := s.requireItinerary(ctx, itineraryID); err != nil {
		return err
	}

	role, err := s.repo.GetItineraryUserRole(ctx, itineraryID, userID)
	if err != nil {
		return fmt.Errorf("error checking membership: %w", err)
	}
	if role == "" {
		return ErrForbidden
	}
	return nil
}

func (s *DefaultService) requireWriteRole(ctx context.Context, itineraryID, userID string) error {
	role, err := s.repo.GetItineraryUserRole(ctx, itineraryID, userID)
	if err != nil {
		return fmt.Errorf("error checking membership: %w", err)
	}
	if role != models.RoleOwner && role != models.RoleEditor {
		return ErrForbidden
	}
	return nil
}
