package models

import "time"

// Request models
type CreateItineraryRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	IsPublic    bool   `json:"isPublic"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
}

type UpdateItineraryRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	IsPublic    *bool   `json:"isPublic,omitempty"`
	StartDate   *string `json:"startDate,omitempty"`
	EndDate     *string `json:"endDate,omitempty"`
}

type AddPlaceRequest struct {
	PlaceID       string  `json:"placeId" binding:"required"`
	VisitDate     string  `json:"visitDate"`
	VisitTime     string  `json:"visitTime"`
	VisitDuration float64 `json:"visitDuration"`
	EstimatedCost float64 `json:"estimatedCost"`
	Notes         string  `json:"notes"`
}

type UpdatePlaceRequest struct {
	VisitDate     *string  `json:"visitDate,omitempty"`
	VisitTime     *string  `json:"visitTime,omitempty"`
	VisitDuration *float64 `json:"visitDuration,omitempty"`
	EstimatedCost *float64 `json:"estimatedCost,omitempty"`
	Notes         *string  `json:"notes,omitempty"`
}

type MovePlaceRequest struct {
	Direction string `json:"direction" binding:"required,oneof=up down"`
}

type ResolveSuggestionRequest struct {
	Status string `json:"status" binding:"required,oneof=accepted rejected"`
}

type AddCollaboratorRequest struct {
	// Identity is an email address or username resolved against the user directory
	Identity string `json:"identity" binding:"required"`
	Role     string `json:"role" binding:"required,oneof=editor viewer"`
}

type UpdateCollaboratorRequest struct {
	Role string `json:"role" binding:"required,oneof=editor viewer"`
}

type SubmitChangeRequest struct {
	Field         string `json:"field" binding:"required"`
	NewValue      string `json:"newValue"`
	PreviousValue string `json:"previousValue"`
	ChangeType    string `json:"changeType"`
}

type SaveInsightRequest struct {
	Text string `json:"text" binding:"required"`
}

// Response envelope shared by every endpoint
type Response struct {
	Success    bool        `json:"success"`
	Data       interface{} `json:"data,omitempty"`
	Message    string      `json:"message,omitempty"`
	StatusCode int         `json:"statusCode,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
	Path       string      `json:"path,omitempty"`
	Method     string      `json:"method,omitempty"`
}

// Pagination metadata returned by list endpoints
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// PaginatedData wraps list payloads inside the response envelope
type PaginatedData struct {
	Data       interface{} `json:"data"`
	Pagination Pagination  `json:"pagination"`
}

type ChangesData struct {
	ItineraryID          string           `json:"itineraryId"`
	Changes              []ChangeLogEntry `json:"changes"`
	LatestSequenceNumber int64            `json:"latestSequenceNumber"`
}

type SequenceData struct {
	ItineraryID          string `json:"itineraryId"`
	LatestSequenceNumber int64  `json:"latestSequenceNumber"`
}

type InsightData struct {
	PlaceID string `json:"placeId"`
	Text    string `json:"text"`
	Cached  bool   `json:"cached"`
}

type NudgeData struct {
	ShouldPrompt bool `json:"shouldPrompt"`
	Sessions     int  `json:"sessions"`
	Edits        int  `json:"edits"`
}
