package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"fitSquadAPI/internal/apperrors"
	"fitSquadAPI/internal/checkin"
	"fitSquadAPI/internal/logger"
)

// CheckinService owns the append-only check-in ledger. Competitions only read
// from it (EventsInWindow); the write path is the members' daily photo post.
type CheckinService struct {
	db     *pgxpool.Pool
	media  ImageUploader
	groups *GroupService
}

func NewCheckinService(db *pgxpool.Pool, media ImageUploader, groups *GroupService) *CheckinService {
	return &CheckinService{db: db, media: media, groups: groups}
}

func (s *CheckinService) resolveUserID(ctx context.Context, clerkID string) (uuid.UUID, error) {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("user not found: %w", err)
	}
	return userID, nil
}

// AddCheckIn stores the photo first, then appends the ledger row. An upload
// failure means no row is written; an insert failure leaves at worst an
// unreferenced object in the bucket.
func (s *CheckinService) AddCheckIn(ctx context.Context, clerkID string, groupID uuid.UUID, image []byte, contentType string, caption string) (*checkin.CheckIn, error) {
	if len(image) == 0 {
		return nil, apperrors.NewValidation("a check-in photo is required")
	}

	userID, err := s.resolveUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	isMember, err := s.groups.IsGroupMember(ctx, userID, groupID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, apperrors.NewAuthorization("only group members can check in")
	}

	imageURL, err := s.media.UploadImage(ctx, image, UploadOptions{
		Folder:      "checkins",
		ContentType: contentType,
	})
	if err != nil {
		return nil, &apperrors.MediaUploadError{Err: err}
	}

	c := &checkin.CheckIn{
		ID:       uuid.New(),
		GroupID:  groupID,
		UserID:   userID,
		ImageURL: imageURL,
	}
	if caption != "" {
		c.Caption = &caption
	}

	err = s.db.QueryRow(ctx, `
	INSERT INTO checkins (id, group_id, user_id, image_url, caption, occurred_at)
	VALUES ($1, $2, $3, $4, $5, NOW())
	RETURNING occurred_at
	`, c.ID, c.GroupID, c.UserID, c.ImageURL, c.Caption).Scan(&c.OccurredAt)
	if err != nil {
		return nil, &apperrors.PersistenceError{Op: "add check-in", Err: err}
	}

	logger.WithFields(map[string]interface{}{
		"user_id":  userID,
		"group_id": groupID,
	}).Debug("check-in recorded")

	return c, nil
}

// GetGroupFeed returns the most recent check-ins of a group with author
// display data, newest first.
func (s *CheckinService) GetGroupFeed(ctx context.Context, clerkID string, groupID uuid.UUID, limit int) ([]*checkin.FeedItem, error) {
	userID, err := s.resolveUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	isMember, err := s.groups.IsGroupMember(ctx, userID, groupID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, apperrors.NewAuthorization("only group members can view the feed")
	}

	if limit <= 0 || limit > 100 {
		limit = 50
	}

	rows, err := s.db.Query(ctx, `
	SELECT c.id, c.group_id, c.user_id, c.image_url, c.caption, c.occurred_at, u.username, u.image_url
	FROM checkins c
	INNER JOIN users u ON u.id = c.user_id
	WHERE c.group_id = $1
	ORDER BY c.occurred_at DESC
	LIMIT $2
	`, groupID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer rows.Close()

	var feed []*checkin.FeedItem
	for rows.Next() {
		item := &checkin.FeedItem{}
		err := rows.Scan(
			&item.ID,
			&item.GroupID,
			&item.UserID,
			&item.ImageURL,
			&item.Caption,
			&item.OccurredAt,
			&item.Username,
			&item.UserImageURL,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed item: %w", err)
		}
		feed = append(feed, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if feed == nil {
		feed = []*checkin.FeedItem{}
	}
	return feed, nil
}

// EventsInWindow is the ledger read used by the gincana ranking engine: all
// events of the given users in the group whose occurred_at falls in
// [start, end).
func (s *CheckinService) EventsInWindow(ctx context.Context, groupID uuid.UUID, userIDs []uuid.UUID, start, end time.Time) ([]*checkin.CheckIn, error) {
	rows, err := s.db.Query(ctx, `
	SELECT id, group_id, user_id, image_url, caption, occurred_at
	FROM checkins
	WHERE group_id = $1
		AND user_id = ANY($2)
		AND occurred_at >= $3
		AND occurred_at < $4
	`, groupID, userIDs, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch check-in events: %w", err)
	}
	defer rows.Close()

	var events []*checkin.CheckIn
	for rows.Next() {
		c := &checkin.CheckIn{}
		if err := rows.Scan(&c.ID, &c.GroupID, &c.UserID, &c.ImageURL, &c.Caption, &c.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan check-in: %w", err)
		}
		events = append(events, c)
	}
	return events, rows.Err()
}
