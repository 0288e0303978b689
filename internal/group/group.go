package group

import (
	"time"

	"github.com/google/uuid"
)

type Group struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	ImageURL    *string   `json:"imageUrl,omitempty"`
	InviteCode  string    `json:"inviteCode"`
	CreatedBy   uuid.UUID `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Member struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	ImageURL *string   `json:"image_url"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

type CreateGroupRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type JoinGroupRequest struct {
	InviteCode string `json:"invite_code"`
}

type InviteQRResponse struct {
	GroupID      uuid.UUID `json:"group_id"`
	InviteCode   string    `json:"invite_code"`
	QrCodeBase64 string    `json:"qr_code_base64"`
}

// RankingEntry is one row of the rolling weekly/monthly group ranking. This is
// the general ranking outside competitions; rank ties share a RANK() value.
type RankingEntry struct {
	UserID        uuid.UUID `json:"user_id"`
	Username      string    `json:"username"`
	ImageURL      *string   `json:"image_url"`
	CheckinsCount int       `json:"checkins_count"`
	Rank          int       `json:"rank"`
}

type Ranking struct {
	Entries      []*RankingEntry `json:"entries"`
	UserPosition *RankingEntry   `json:"user_position"`
	TotalMembers int             `json:"total_members"`
}
