package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/wanderplan/wanderplan-server/internal/models"
)

// Repository interface defines the methods that any repository implementation must satisfy
type Repository interface {
	// User directory operations
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByIdentity(ctx context.Context, identity string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// Itinerary operations
	CreateItinerary(ctx context.Context, itinerary *models.Itinerary) error
	GetItinerary(ctx context.Context, itineraryID string) (*models.Itinerary, error)
	UpdateItinerary(ctx context.Context, itinerary *models.Itinerary) error
	DeleteItinerary(ctx context.Context, itineraryID string) error
	GetUserItineraries(ctx context.Context, userID string, offset, limit int) ([]models.Itinerary, int, error)

	// Place operations
	AddPlace(ctx context.Context, place *models.ItineraryPlace) error
	GetPlace(ctx context.Context, placeID string) (*models.ItineraryPlace, error)
	GetItineraryPlaces(ctx context.Context, itineraryID string) ([]models.ItineraryPlace, error)
	UpdatePlace(ctx context.Context, place *models.ItineraryPlace) error
	RemovePlace(ctx context.Context, itineraryID, placeID string) error
	SwapPlaceOrder(ctx context.Context, itineraryID string, indexA, indexB int) error
	SetSuggestionStatus(ctx context.Context, placeID, status string) error

	// Membership operations
	AddItineraryUser(ctx context.Context, member *models.ItineraryUser) error
	UpdateItineraryUserRole(ctx context.Context, itineraryID, userID, role string) error
	RemoveItineraryUser(ctx context.Context, itineraryID, userID string) error
	GetItineraryUsers(ctx context.Context, itineraryID string) ([]models.ItineraryUser, error)
	GetItineraryUserRole(ctx context.Context, itineraryID, userID string) (string, error)

	// Attendance operations
	TapIn(ctx context.Context, placeID, userID string) error
	TapOut(ctx context.Context, placeID, userID string) error
	TapAll(ctx context.Context, itineraryID, userID string, in bool) error
	GetPlaceParticipants(ctx context.Context, placeID string) ([]models.PlaceParticipant, error)

	// Change log operations
	AppendChange(ctx context.Context, change *models.ChangeLogEntry) error
	GetChangesBySequenceRange(ctx context.Context, itineraryID string, fromSeq, toSeq int64) ([]models.ChangeLogEntry, error)
	GetLatestChangeByUser(ctx context.Context, itineraryID, userID string) (*models.ChangeLogEntry, error)
	GetLatestSequenceNumber(ctx context.Context, itineraryID string) (int64, error)
}

// PostgresRepository implements the Repository interface using PostgreSQL
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{
		db: db,
	}
}

// GetDB returns the underlying database connection
func (r *PostgresRepository) GetDB() *sqlx.DB {
	return r.db
}

// User directory methods
func (r *PostgresRepository) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, email, username, name, password, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	// Generate a new UUID if not provided
	if user.ID == "" {
		user.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Email, user.Username, user.Name, user.Password, user.CreatedAt, user.UpdatedAt)

	return err
}

// GetUserByIdentity resolves a collaborator identity string, which may be
// either an email address or a username
func (r *PostgresRepository) GetUserByIdentity(ctx context.Context, identity string) (*models.User, error) {
	query := `SELECT * FROM users WHERE email = $1 OR username = $1`

	var user models.User
	err := r.db.GetContext(ctx, &user, query, identity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found
		}
		return nil, err
	}

	return &user, nil
}

func (r *PostgresRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT * FROM users WHERE id = $1`

	var user models.User
	err := r.db.GetContext(ctx, &user, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found
		}
		return nil, err
	}

	return &user, nil
}

// Itinerary methods
func (r *PostgresRepository) CreateItinerary(ctx context.Context, itinerary *models.Itinerary) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	query := `
		INSERT INTO itineraries (id, name, description, owner_id, is_public, start_date, end_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	// Generate a new UUID if not provided
	if itinerary.ID == "" {
		itinerary.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	itinerary.CreatedAt = now
	itinerary.UpdatedAt = now

	_, err = tx.ExecContext(ctx, query,
		itinerary.ID, itinerary.Name, itinerary.Description, itinerary.OwnerID,
		itinerary.IsPublic, itinerary.StartDate, itinerary.EndDate,
		itinerary.CreatedAt, itinerary.UpdatedAt)

	if err != nil {
		return err
	}

	// Add the creator as the single owner
	_, err = tx.ExecContext(ctx,
		`INSERT INTO itinerary_users (itinerary_id, user_id, role, created_at) VALUES ($1, $2, $3, $4)`,
		itinerary.ID, itinerary.OwnerID, models.RoleOwner, now)
	if err != nil {
		return err
	}

	// Seed the change sequence so AppendChange can UPDATE ... RETURNING
	_, err = tx.ExecContext(ctx,
		`INSERT INTO itinerary_sequences (itinerary_id, current_sequence) VALUES ($1, 0)`,
		itinerary.ID)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (r *PostgresRepository) GetItinerary(ctx context.Context, itineraryID string) (*models.Itinerary, error) {
	query := `SELECT * FROM itineraries WHERE id = $1`

	var itinerary models.Itinerary
	err := r.db.GetContext(ctx, &itinerary, query, itineraryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Itinerary not found
		}
		return nil, err
	}

	return &itinerary, nil
}

func (r *PostgresRepository) UpdateItinerary(ctx context.Context, itinerary *models.Itinerary) error {
	query := `
		UPDATE itineraries
		SET name = $1, description = $2, is_public = $3, start_date = $4, end_date = $5, updated_at = $6
		WHERE id = $7
	`

	itinerary.UpdatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, query,
		itinerary.Name, itinerary.Description, itinerary.IsPublic,
		itinerary.StartDate, itinerary.EndDate, itinerary.UpdatedAt, itinerary.ID)

	return err
}

func (r *PostgresRepository) DeleteItinerary(ctx context.Context, itineraryID string) error {
	// Dependent rows cascade via foreign keys
	_, err := r.db.ExecContext(ctx, `DELETE FROM itineraries WHERE id = $1`, itineraryID)
	return err
}

func (r *PostgresRepository) GetUserItineraries(ctx context.Context, userID string, offset, limit int) ([]models.Itinerary, int, error) {
	countQuery := `
		SELECT COUNT(*) FROM itineraries i
		JOIN itinerary_users iu ON i.id = iu.itinerary_id
		WHERE iu.user_id = $1
	`

	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, userID); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT i.* FROM itineraries i
		JOIN itinerary_users iu ON i.id = iu.itinerary_id
		WHERE iu.user_id = $1
		ORDER BY i.updated_at DESC
		OFFSET $2 LIMIT $3
	`

	var itineraries []models.Itinerary
	err := r.db.SelectContext(ctx, &itineraries, query, userID, offset, limit)
	if err != nil {
		return nil, 0, err
	}

	return itineraries, total, nil
}

// Place methods
func (r *PostgresRepository) AddPlace(ctx context.Context, place *models.ItineraryPlace) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	// Append at the end of the current order
	var nextIndex int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(order_index) + 1, 0) FROM itinerary_places WHERE itinerary_id = $1`,
		place.ItineraryID).Scan(&nextIndex)
	if err != nil {
		return err
	}

	place.OrderIndex = nextIndex

	if place.ID == "" {
		place.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	place.CreatedAt = now
	place.UpdatedAt = now

	query := `
		INSERT INTO itinerary_places
			(id, itinerary_id, place_id, visit_date, visit_time, visit_duration,
			 estimated_cost, notes, order_index, suggestion_status, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err = tx.ExecContext(ctx, query,
		place.ID, place.ItineraryID, place.PlaceID, place.VisitDate, place.VisitTime,
		place.VisitDuration, place.EstimatedCost, place.Notes, place.OrderIndex,
		place.SuggestionStatus, place.CreatedBy, place.CreatedAt, place.UpdatedAt)

	if err != nil {
		return err
	}

	return tx.Commit()
}

func (r *PostgresRepository) GetPlace(ctx context.Context, placeID string) (*models.ItineraryPlace, error) {
	query := `SELECT * FROM itinerary_places WHERE id = $1`

	var place models.ItineraryPlace
	err := r.db.GetContext(ctx, &place, query, placeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Place not found
		}
		return nil, err
	}

	return &place, nil
}

func (r *PostgresRepository) GetItineraryPlaces(ctx context.Context, itineraryID string) ([]models.ItineraryPlace, error) {
	query := `SELECT * FROM itinerary_places WHERE itinerary_id = $1 ORDER BY order_index ASC`

	var places []models.ItineraryPlace
	err := r.db.SelectContext(ctx, &places, query, itineraryID)
	if err != nil {
		return nil, err
	}

	return places, nil
}

func (r *PostgresRepository) UpdatePlace(ctx context.Context, place *models.ItineraryPlace) error {
	query := `
		UPDATE itinerary_places
		SET visit_date = $1, visit_time = $2, visit_duration = $3,
			estimated_cost = $4, notes = $5, updated_at = $6
		WHERE id = $7
	`

	place.UpdatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, query,
		place.VisitDate, place.VisitTime, place.VisitDuration,
		place.EstimatedCost, place.Notes, place.UpdatedAt, place.ID)

	return err
}

// RemovePlace deletes a place and renumbers the remaining order indexes so
// they stay contiguous
func (r *PostgresRepository) RemovePlace(ctx context.Context, itineraryID, placeID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	var removedIndex int
	err = tx.QueryRowContext(ctx,
		`DELETE FROM itinerary_places WHERE id = $1 AND itinerary_id = $2 RETURNING order_index`,
		placeID, itineraryID).Scan(&removedIndex)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE itinerary_places SET order_index = order_index - 1 WHERE itinerary_id = $1 AND order_index > $2`,
		itineraryID, removedIndex)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// SwapPlaceOrder exchanges the order indexes of two places in one transaction
func (r *PostgresRepository) SwapPlaceOrder(ctx context.Context, itineraryID string, indexA, indexB int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	// Park one row on a sentinel index to avoid a transient duplicate
	_, err = tx.ExecContext(ctx,
		`UPDATE itinerary_places SET order_index = -1 WHERE itinerary_id = $1 AND order_index = $2`,
		itineraryID, indexA)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE itinerary_places SET order_index = $2 WHERE itinerary_id = $1 AND order_index = $3`,
		itineraryID, indexA, indexB)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE itinerary_places SET order_index = $2 WHERE itinerary_id = $1 AND order_index = -1`,
		itineraryID, indexB)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (r *PostgresRepository) SetSuggestionStatus(ctx context.Context, placeID, status string) error {
	query := `UPDATE itinerary_places SET suggestion_status = $1, updated_at = $2 WHERE id = $3`
	_, err := r.db.ExecContext(ctx, query, status, time.Now().UTC(), placeID)
	return err
}

// Membership methods
func (r *PostgresRepository) AddItineraryUser(ctx context.Context, member *models.ItineraryUser) error {
	if member.CreatedAt.IsZero() {
		member.CreatedAt = time.Now().UTC()
	}

	// Re-adding an existing member updates the role instead
	query := `
		INSERT INTO itinerary_users (itinerary_id, user_id, role, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (itinerary_id, user_id) DO UPDATE SET role = EXCLUDED.role
	`

	_, err := r.db.ExecContext(ctx, query,
		member.ItineraryID, member.UserID, member.Role, member.CreatedAt)

	return err
}

func (r *PostgresRepository) UpdateItineraryUserRole(ctx context.Context, itineraryID, userID, role string) error {
	query := `UPDATE itinerary_users SET role = $1 WHERE itinerary_id = $2 AND user_id = $3`
	_, err := r.db.ExecContext(ctx, query, role, itineraryID, userID)
	return err
}

func (r *PostgresRepository) RemoveItineraryUser(ctx context.Context, itineraryID, userID string) error {
	query := `DELETE FROM itinerary_users WHERE itinerary_id = $1 AND user_id = $2`
	_, err := r.db.ExecContext(ctx, query, itineraryID, userID)
	return err
}

func (r *PostgresRepository) GetItineraryUsers(ctx context.Context, itineraryID string) ([]models.ItineraryUser, error) {
	query := `SELECT * FROM itinerary_users WHERE itinerary_id = $1 ORDER BY created_at ASC`

	var members []models.ItineraryUser
	err := r.db.SelectContext(ctx, &members, query, itineraryID)
	if err != nil {
		return nil, err
	}

	return members, nil
}

// GetItineraryUserRole returns the member's role, or the empty string when
// the user is not a member
func (r *PostgresRepository) GetItineraryUserRole(ctx context.Context, itineraryID, userID string) (string, error) {
	query := `SELECT role FROM itinerary_users WHERE itinerary_id = $1 AND user_id = $2`

	var role string
	err := r.db.GetContext(ctx, &role, query, itineraryID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil // Not a member
		}
		return "", err
	}

	return role, nil
}

// Attendance methods
func (r *PostgresRepository) TapIn(ctx context.Context, placeID, userID string) error {
	query := `
		INSERT INTO place_participants (place_id, user_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (place_id, user_id) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query, placeID, userID, time.Now().UTC())
	return err
}

func (r *PostgresRepository) TapOut(ctx context.Context, placeID, userID string) error {
	query := `DELETE FROM place_participants WHERE place_id = $1 AND user_id = $2`
	_, err := r.db.ExecContext(ctx, query, placeID, userID)
	return err
}

// TapAll taps the user in or out of every place in the itinerary
func (r *PostgresRepository) TapAll(ctx context.Context, itineraryID, userID string, in bool) error {
	if in {
		query := `
			INSERT INTO place_participants (place_id, user_id, created_at)
			SELECT id, $2, $3 FROM itinerary_places WHERE itinerary_id = $1
			ON CONFLICT (place_id, user_id) DO NOTHING
		`
		_, err := r.db.ExecContext(ctx, query, itineraryID, userID, time.Now().UTC())
		return err
	}

	query := `
		DELETE FROM place_participants
		WHERE user_id = $2 AND place_id IN (SELECT id FROM itinerary_places WHERE itinerary_id = $1)
	`
	_, err := r.db.ExecContext(ctx, query, itineraryID, userID)
	return err
}

func (r *PostgresRepository) GetPlaceParticipants(ctx context.Context, placeID string) ([]models.PlaceParticipant, error) {
	query := `SELECT * FROM place_participants WHERE place_id = $1`

	var participants []models.PlaceParticipant
	err := r.db.SelectContext(ctx, &participants, query, placeID)
	if err != nil {
		return nil, err
	}

	return participants, nil
}

// Change log methods
func (r *PostgresRepository) AppendChange(ctx context.Context, change *models.ChangeLogEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	// Get and increment the sequence number atomically
	var nextSeq int64
	err = tx.QueryRowContext(ctx,
		`UPDATE itinerary_sequences
		SET current_sequence = current_sequence + 1
		WHERE itinerary_id = $1
		RETURNING current_sequence`,
		change.ItineraryID).Scan(&nextSeq)
	if err != nil {
		return err
	}

	change.SequenceNumber = nextSeq

	// Generate a new UUID if not provided
	if change.ID == "" {
		change.ID = uuid.New().String()
	}

	// Set timestamp if not provided
	if change.Timestamp.IsZero() {
		change.Timestamp = time.Now().UTC()
	}

	query := `
		INSERT INTO itinerary_changes
			(id, itinerary_id, user_id, sequence_number, field, new_value, previous_value, change_type, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = tx.ExecContext(ctx, query,
		change.ID, change.ItineraryID, change.UserID, change.SequenceNumber,
		change.Field, change.NewValue, change.PreviousValue, change.ChangeType, change.Timestamp)

	if err != nil {
		return err
	}

	return tx.Commit()
}

func (r *PostgresRepository) GetChangesBySequenceRange(
	ctx context.Context,
	itineraryID string,
	fromSeq,
	toSeq int64,
) ([]models.ChangeLogEntry, error) {
	query := `
		SELECT * FROM itinerary_changes
		WHERE itinerary_id = $1 AND sequence_number >= $2
	`

	args := []interface{}{itineraryID, fromSeq}

	// Add toSeq condition if provided
	if toSeq > 0 {
		query += ` AND sequence_number <= $3`
		args = append(args, toSeq)
	}

	query += ` ORDER BY sequence_number ASC`

	var changes []models.ChangeLogEntry
	err := r.db.SelectContext(ctx, &changes, query, args...)
	if err != nil {
		return nil, err
	}

	return changes, nil
}

// GetLatestChangeByUser returns the user's most recent update_field entry
// that is not already reverted, used as the undo target. Every undo_field
// entry consumes the next older update_field entry for the same field, so
// repeated undos step backwards through the user's history instead of
// re-reverting the same change.
func (r *PostgresRepository) GetLatestChangeByUser(ctx context.Context, itineraryID, userID string) (*models.ChangeLogEntry, error) {
	query := `
		SELECT * FROM itinerary_changes
		WHERE itinerary_id = $1 AND user_id = $2
		ORDER BY sequence_number DESC
	`

	var changes []models.ChangeLogEntry
	if err := r.db.SelectContext(ctx, &changes, query, itineraryID, userID); err != nil {
		return nil, err
	}

	pending := make(map[string]int)
	for i := range changes {
		change := &changes[i]
		switch change.ChangeType {
		case models.ChangeTypeUndoField:
			pending[change.Field]++
		case models.ChangeTypeUpdateField:
			if pending[change.Field] > 0 {
				pending[change.Field]--
				continue
			}
			return change, nil
		}
	}

	return nil, nil // Nothing left to undo
}

func (r *PostgresRepository) GetLatestSequenceNumber(ctx context.Context, itineraryID string) (int64, error) {
	query := `SELECT current_sequence FROM itinerary_sequences WHERE itinerary_id = $1`

	var seqNum int64
	err := r.db.GetContext(ctx, &seqNum, query, itineraryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil // Return 0 if no sequence exists yet
		}
		return 0, err
	}

	return seqNum, nil
}
