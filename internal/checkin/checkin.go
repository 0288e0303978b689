package checkin

import (
	"time"

	"github.com/google/uuid"
)

// CheckIn is one entry of the append-only check-in ledger. Rankings only ever
// read these; nothing in the competition flow mutates them.
type CheckIn struct {
	ID         uuid.UUID `json:"id"`
	GroupID    uuid.UUID `json:"group_id"`
	UserID     uuid.UUID `json:"user_id"`
	ImageURL   string    `json:"image_url"`
	Caption    *string   `json:"caption,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// FeedItem is a check-in joined with its author's display data.
type FeedItem struct {
	CheckIn
	Username     string  `json:"username"`
	UserImageURL *string `json:"user_image_url"`
}
