package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fitSquadAPI/internal/apperrors"
	"fitSquadAPI/internal/gincana"
	"fitSquadAPI/internal/logger"
)

// GincanaService owns group competitions: creation, live standings and the
// finalize/declare-winner lifecycle. The ledger is read through
// CheckinService; standings themselves are computed by the pure functions in
// internal/gincana.
type GincanaService struct {
	db            *pgxpool.Pool
	media         ImageUploader
	groups        *GroupService
	checkins      *CheckinService
	notifications *NotificationService
}

func NewGincanaService(db *pgxpool.Pool, media ImageUploader, groups *GroupService, checkins *CheckinService, notifications *NotificationService) *GincanaService {
	return &GincanaService{
		db:            db,
		media:         media,
		groups:        groups,
		checkins:      checkins,
		notifications: notifications,
	}
}

func (s *GincanaService) resolveUserID(ctx context.Context, clerkID string) (uuid.UUID, error) {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("user not found: %w", err)
	}
	return userID, nil
}

// CreateGincana validates the request, stores the prize image (when given)
// and persists the instance together with its roster in one transaction. Only
// the group admin may create one, and a group can hold at most one active
// gincana at a time.
func (s *GincanaService) CreateGincana(ctx context.Context, clerkID string, groupID uuid.UUID, req *gincana.CreateGincanaRequest, prizeImage []byte, imageContentType string) (*gincana.Gincana, error) {
	userID, err := s.resolveUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	isAdmin, err := s.groups.IsGroupAdmin(ctx, userID, groupID)
	if err != nil {
		return nil, err
	}
	if !isAdmin {
		return nil, apperrors.NewAuthorization("only the group admin can create a gincana")
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}

	g := &gincana.Gincana{
		ID:               uuid.New(),
		GroupID:          groupID,
		PrizeDescription: req.PrizeDescription,
		StartDate:        req.StartDate,
		EndDate:          req.NormalizedEndDate(),
		CreatedBy:        userID,
		IsActive:         true,
		CreatedAt:        time.Now(),
	}

	// Reject a duplicate before touching the bucket so a refused creation
	// leaves no orphan prize object. The transaction re-checks below.
	var hasActive bool
	err = s.db.QueryRow(ctx, `
	SELECT EXISTS(SELECT 1 FROM gincanas WHERE group_id = $1 AND is_active = true)
	`, groupID).Scan(&hasActive)
	if err != nil {
		return nil, &apperrors.PersistenceError{Op: "check active gincana", Err: err}
	}
	if hasActive {
		return nil, apperrors.NewValidation("group already has an active gincana")
	}

	// The prize asset must exist before the gincana does.
	if len(prizeImage) > 0 {
		url, err := s.media.UploadImage(ctx, prizeImage, UploadOptions{
			Folder:      "gincana-prizes",
			Name:        g.ID.String(),
			ContentType: imageContentType,
		})
		if err != nil {
			return nil, &apperrors.MediaUploadError{Err: err}
		}
		g.PrizeImageURL = &url
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, &apperrors.PersistenceError{Op: "create gincana", Err: err}
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
	SELECT EXISTS(SELECT 1 FROM gincanas WHERE group_id = $1 AND is_active = true)
	`, groupID).Scan(&hasActive)
	if err != nil {
		return nil, &apperrors.PersistenceError{Op: "check active gincana", Err: err}
	}
	if hasActive {
		return nil, apperrors.NewValidation("group already has an active gincana")
	}

	_, err = tx.Exec(ctx, `
	INSERT INTO gincanas (id, group_id, prize_description, prize_image_url, start_date, end_date, created_by, is_active, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, true, $8)
	`, g.ID, g.GroupID, g.PrizeDescription, g.PrizeImageURL, g.StartDate, g.EndDate, g.CreatedBy, g.CreatedAt)
	if err != nil {
		return nil, &apperrors.PersistenceError{Op: "insert gincana", Err: err}
	}

	// Insertion order is load-bearing: it decides ranking ties.
	for _, participantID := range req.ParticipantIDs {
		_, err = tx.Exec(ctx, `
		INSERT INTO gincana_participants (gincana_id, user_id)
		VALUES ($1, $2)
		`, g.ID, participantID)
		if err != nil {
			return nil, &apperrors.PersistenceError{Op: "insert gincana participant", Err: err}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, &apperrors.PersistenceError{Op: "create gincana", Err: err}
	}

	logger.WithFields(map[string]interface{}{
		"gincana_id": g.ID,
		"group_id":   groupID,
		"roster":     len(req.ParticipantIDs),
	}).Info("gincana created")

	return g, nil
}

func (s *GincanaService) scanGincana(row pgx.Row) (*gincana.Gincana, error) {
	g := &gincana.Gincana{}
	err := row.Scan(
		&g.ID,
		&g.GroupID,
		&g.PrizeDescription,
		&g.PrizeImageURL,
		&g.StartDate,
		&g.EndDate,
		&g.CreatedBy,
		&g.IsActive,
		&g.WinnerUserID,
		&g.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return g, nil
}

const gincanaColumns = `id, group_id, prize_description, prize_image_url, start_date, end_date, created_by, is_active, winner_user_id, created_at`

// GetActiveGincana returns the group's running gincana with live standings,
// or a null gincana when none is running. No gincana is the normal state, not
// an error.
func (s *GincanaService) GetActiveGincana(ctx context.Context, groupID uuid.UUID) (*gincana.ActiveGincanaResponse, error) {
	g, err := s.scanGincana(s.db.QueryRow(ctx, `
	SELECT `+gincanaColumns+`
	FROM gincanas
	WHERE group_id = $1 AND is_active = true
	`, groupID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &gincana.ActiveGincanaResponse{Gincana: nil}, nil
		}
		return nil, fmt.Errorf("failed to fetch active gincana: %w", err)
	}

	standings, err := s.loadStandings(ctx, g)
	if err != nil {
		return nil, err
	}

	return &gincana.ActiveGincanaResponse{Gincana: g, Standings: standings}, nil
}

// loadStandings runs the ranking engine: roster in insertion order, ledger
// events for the window, tally, stable sort.
func (s *GincanaService) loadStandings(ctx context.Context, g *gincana.Gincana) ([]*gincana.StandingRow, error) {
	rows, err := s.db.Query(ctx, `
	SELECT p.user_id, u.username, u.image_url
	FROM gincana_participants p
	INNER JOIN users u ON u.id = p.user_id
	WHERE p.gincana_id = $1
	ORDER BY p.id
	`, g.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch roster: %w", err)
	}
	defer rows.Close()

	var roster []gincana.RosterEntry
	for rows.Next() {
		var entry gincana.RosterEntry
		if err := rows.Scan(&entry.UserID, &entry.Username, &entry.ImageURL); err != nil {
			return nil, fmt.Errorf("failed to scan roster entry: %w", err)
		}
		roster = append(roster, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(roster) == 0 {
		return []*gincana.StandingRow{}, nil
	}

	userIDs := make([]uuid.UUID, len(roster))
	for i, entry := range roster {
		userIDs[i] = entry.UserID
	}

	events, err := s.checkins.EventsInWindow(ctx, g.GroupID, userIDs, g.StartDate, g.EndDate)
	if err != nil {
		return nil, err
	}

	counts := gincana.TallyCheckins(events, g.StartDate, g.EndDate)
	return gincana.ComputeStandings(roster, counts), nil
}

// FinalizeIfElapsed closes the group's gincana once its window has passed and
// declares the winner. Any member's client may poll this; when there is
// nothing to finalize it returns (nil, nil). Safe to call concurrently: the
// deactivation is a conditional write and only the caller whose update lands
// proceeds to the winner record and notifications.
func (s *GincanaService) FinalizeIfElapsed(ctx context.Context, clerkID string, groupID uuid.UUID) (*gincana.FinalizeResult, error) {
	requesterID, err := s.resolveUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	g, err := s.scanGincana(s.db.QueryRow(ctx, `
	SELECT `+gincanaColumns+`
	FROM gincanas
	WHERE group_id = $1 AND is_active = true AND end_date < NOW()
	`, groupID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Nothing pending finalization. Normal no-op for polling clients.
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch pending gincana: %w", err)
	}

	standings, err := s.loadStandings(ctx, g)
	if err != nil {
		return nil, err
	}

	if len(standings) == 0 {
		// Empty roster: deactivate without a winner.
		_, err := s.db.Exec(ctx, `
		UPDATE gincanas SET is_active = false WHERE id = $1 AND is_active = true
		`, g.ID)
		if err != nil {
			return nil, &apperrors.PersistenceError{Op: "deactivate gincana", Err: err}
		}
		logger.Warnf("gincana %s finalized with empty roster, no winner declared", g.ID)
		return nil, nil
	}

	winner := standings[0]

	result, err := s.db.Exec(ctx, `
	UPDATE gincanas
	SET is_active = false, winner_user_id = $2
	WHERE id = $1 AND is_active = true
	`, g.ID, winner.UserID)
	if err != nil {
		return nil, &apperrors.PersistenceError{Op: "finalize gincana", Err: err}
	}
	if result.RowsAffected() == 0 {
		// A concurrent caller finalized first; treat like nothing pending.
		return nil, nil
	}

	// The winner audit row is best-effort: the winner id already lives on the
	// instance, so a failure here is logged and swallowed.
	_, err = s.db.Exec(ctx, `
	INSERT INTO gincana_winners (gincana_id, user_id, rank, created_at)
	VALUES ($1, $2, 1, NOW())
	`, g.ID, winner.UserID)
	if err != nil {
		logger.Errorf("failed to insert winner record for gincana %s: %v", g.ID, err)
	}

	logger.WithFields(map[string]interface{}{
		"gincana_id": g.ID,
		"winner":     winner.UserID,
		"checkins":   winner.CheckinsCount,
	}).Info("gincana finalized")

	s.notifyWinner(ctx, g, standings)

	return &gincana.FinalizeResult{
		IsWinner:         winner.UserID == requesterID,
		WinnerName:       winner.Username,
		PrizeDescription: g.PrizeDescription,
	}, nil
}

func (s *GincanaService) notifyWinner(ctx context.Context, g *gincana.Gincana, standings []*gincana.StandingRow) {
	if s.notifications == nil {
		return
	}

	winner := standings[0]
	participantIDs := make([]uuid.UUID, 0, len(standings))
	for _, row := range standings {
		participantIDs = append(participantIDs, row.UserID)
	}

	s.notifications.NotifyUsers(ctx, participantIDs,
		"Gincana finished!",
		fmt.Sprintf("%s won the gincana with %d check-ins. Prize: %s", winner.Username, winner.CheckinsCount, g.PrizeDescription),
		map[string]string{
			"type":       "gincana_finished",
			"gincana_id": g.ID.String(),
			"winner_id":  winner.UserID.String(),
		},
	)
}
