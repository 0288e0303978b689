package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/skip2/go-qrcode"

	"fitSquadAPI/internal/apperrors"
	"fitSquadAPI/internal/group"
)

type GroupService struct {
	db *pgxpool.Pool
}

func NewGroupService(db *pgxpool.Pool) *GroupService {
	return &GroupService{db: db}
}

func (s *GroupService) resolveUserID(ctx context.Context, clerkID string) (uuid.UUID, error) {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("user not found: %w", err)
	}
	return userID, nil
}

func (s *GroupService) CreateGroup(ctx context.Context, clerkID string, req *group.CreateGroupRequest) (*group.Group, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, apperrors.NewValidation("group name is required")
	}

	userID, err := s.resolveUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	g := &group.Group{
		ID:         uuid.New(),
		Name:       strings.TrimSpace(req.Name),
		InviteCode: uuid.New().String(),
		CreatedBy:  userID,
		CreatedAt:  time.Now(),
	}
	if req.Description != "" {
		desc := req.Description
		g.Description = &desc
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, &apperrors.PersistenceError{Op: "create group", Err: err}
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
	INSERT INTO groups (id, name, description, invite_code, created_by, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	`, g.ID, g.Name, g.Description, g.InviteCode, g.CreatedBy, g.CreatedAt)
	if err != nil {
		return nil, &apperrors.PersistenceError{Op: "create group", Err: err}
	}

	_, err = tx.Exec(ctx, `
	INSERT INTO group_members (group_id, user_id, role, joined_at)
	VALUES ($1, $2, $3, NOW())
	`, g.ID, userID, group.RoleAdmin)
	if err != nil {
		return nil, &apperrors.PersistenceError{Op: "add group admin", Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, &apperrors.PersistenceError{Op: "create group", Err: err}
	}

	return g, nil
}

func (s *GroupService) JoinGroup(ctx context.Context, clerkID, inviteCode string) (*group.Group, error) {
	if inviteCode == "" {
		return nil, apperrors.NewValidation("invite code is required")
	}

	userID, err := s.resolveUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	g := &group.Group{}
	err = s.db.QueryRow(ctx, `
	SELECT id, name, description, image_url, invite_code, created_by, created_at
	FROM groups
	WHERE invite_code = $1
	`, inviteCode).Scan(&g.ID, &g.Name, &g.Description, &g.ImageURL, &g.InviteCode, &g.CreatedBy, &g.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &apperrors.NotFoundError{Resource: "group"}
		}
		return nil, fmt.Errorf("failed to look up invite code: %w", err)
	}

	_, err = s.db.Exec(ctx, `
	INSERT INTO group_members (group_id, user_id, role, joined_at)
	VALUES ($1, $2, $3, NOW())
	ON CONFLICT (group_id, user_id) DO NOTHING
	`, g.ID, userID, group.RoleMember)
	if err != nil {
		return nil, &apperrors.PersistenceError{Op: "join group", Err: err}
	}

	return g, nil
}

func (s *GroupService) GetUserGroups(ctx context.Context, clerkID string) ([]*group.Group, error) {
	userID, err := s.resolveUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
	SELECT g.id, g.name, g.description, g.image_url, g.invite_code, g.created_by, g.created_at
	FROM groups g
	INNER JOIN group_members gm ON gm.group_id = g.id
	WHERE gm.user_id = $1
	ORDER BY g.created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch groups: %w", err)
	}
	defer rows.Close()

	var groups []*group.Group
	for rows.Next() {
		g := &group.Group{}
		if err := rows.Scan(&g.ID, &g.Name, &g.Description, &g.ImageURL, &g.InviteCode, &g.CreatedBy, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if groups == nil {
		groups = []*group.Group{}
	}
	return groups, nil
}

func (s *GroupService) GetMembers(ctx context.Context, groupID uuid.UUID) ([]*group.Member, error) {
	rows, err := s.db.Query(ctx, `
	SELECT gm.user_id, u.username, u.image_url, gm.role, gm.joined_at
	FROM group_members gm
	INNER JOIN users u ON u.id = gm.user_id
	WHERE gm.group_id = $1
	ORDER BY gm.joined_at
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch members: %w", err)
	}
	defer rows.Close()

	var members []*group.Member
	for rows.Next() {
		m := &group.Member{}
		if err := rows.Scan(&m.UserID, &m.Username, &m.ImageURL, &m.Role, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// IsGroupAdmin reports whether the user holds the admin role in the group.
func (s *GroupService) IsGroupAdmin(ctx context.Context, userID, groupID uuid.UUID) (bool, error) {
	var isAdmin bool
	err := s.db.QueryRow(ctx, `
	SELECT EXISTS(
		SELECT 1 FROM group_members
		WHERE group_id = $1 AND user_id = $2 AND role = 'admin'
	)
	`, groupID, userID).Scan(&isAdmin)
	if err != nil {
		return false, fmt.Errorf("failed to check group admin: %w", err)
	}
	return isAdmin, nil
}

func (s *GroupService) IsGroupMember(ctx context.Context, userID, groupID uuid.UUID) (bool, error) {
	var isMember bool
	err := s.db.QueryRow(ctx, `
	SELECT EXISTS(
		SELECT 1 FROM group_members
		WHERE group_id = $1 AND user_id = $2
	)
	`, groupID, userID).Scan(&isMember)
	if err != nil {
		return false, fmt.Errorf("failed to check group membership: %w", err)
	}
	return isMember, nil
}

// GenerateInviteQR renders the group's invite deep link as a QR png, base64
// encoded for the client to display.
func (s *GroupService) GenerateInviteQR(ctx context.Context, clerkID string, groupID uuid.UUID) (*group.InviteQRResponse, error) {
	userID, err := s.resolveUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	isMember, err := s.IsGroupMember(ctx, userID, groupID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, apperrors.NewAuthorization("only group members can share the invite")
	}

	var inviteCode string
	err = s.db.QueryRow(ctx, `SELECT invite_code FROM groups WHERE id = $1`, groupID).Scan(&inviteCode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &apperrors.NotFoundError{Resource: "group"}
		}
		return nil, fmt.Errorf("failed to fetch invite code: %w", err)
	}

	qrContent := fmt.Sprintf("fitsquad://groups/join/%s", inviteCode)
	pngBytes, err := qrcode.Encode(qrContent, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR png: %w", err)
	}

	return &group.InviteQRResponse{
		GroupID:      groupID,
		InviteCode:   inviteCode,
		QrCodeBase64: base64.StdEncoding.EncodeToString(pngBytes),
	}, nil
}

// GetGroupRanking returns the rolling check-in ranking for the current week or
// month. Every member appears, zero check-ins included.
func (s *GroupService) GetGroupRanking(ctx context.Context, clerkID string, groupID uuid.UUID, period string) (*group.Ranking, error) {
	var trunc string
	switch period {
	case "weekly", "":
		trunc = "week"
	case "monthly":
		trunc = "month"
	default:
		return nil, apperrors.NewValidation("period must be 'weekly' or 'monthly'")
	}

	userID, err := s.resolveUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
	SELECT
		u.id AS user_id,
		u.username,
		u.image_url,
		COUNT(c.id) AS checkins_count,
		RANK() OVER (ORDER BY COUNT(c.id) DESC) AS rank
	FROM group_members gm
	INNER JOIN users u ON u.id = gm.user_id
	LEFT JOIN checkins c
		ON c.user_id = gm.user_id
		AND c.group_id = gm.group_id
		AND c.occurred_at >= DATE_TRUNC('%s', CURRENT_DATE)
	WHERE gm.group_id = $1
	GROUP BY u.id, u.username, u.image_url
	ORDER BY checkins_count DESC, u.username
	`, trunc)

	rows, err := s.db.Query(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch group ranking: %w", err)
	}
	defer rows.Close()

	var entries []*group.RankingEntry
	var userPosition *group.RankingEntry

	for rows.Next() {
		entry := &group.RankingEntry{}
		err := rows.Scan(
			&entry.UserID,
			&entry.Username,
			&entry.ImageURL,
			&entry.CheckinsCount,
			&entry.Rank,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		entries = append(entries, entry)

		if entry.UserID == userID {
			userPosition = entry
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &group.Ranking{
		Entries:      entries,
		UserPosition: userPosition,
		TotalMembers: len(entries),
	}, nil
}
