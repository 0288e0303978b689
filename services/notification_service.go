package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"fitSquadAPI/internal/apperrors"
	"fitSquadAPI/internal/logger"
	"fitSquadAPI/internal/notification"
)

type NotificationService struct {
	db       *pgxpool.Pool
	provider notification.PushProvider
}

func NewNotificationService(db *pgxpool.Pool) *NotificationService {
	return &NotificationService{db: db}
}

// SetPushProvider injects the push backend. Without one, notification calls
// become no-ops so the rest of the app keeps working.
func (s *NotificationService) SetPushProvider(p notification.PushProvider) {
	s.provider = p
}

func (s *NotificationService) RegisterDevice(ctx context.Context, clerkID string, req *notification.RegisterDeviceRequest) error {
	if req.Token == "" {
		return apperrors.NewValidation("device token is required")
	}

	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		return fmt.Errorf("user not found: %w", err)
	}

	query := `
	INSERT INTO device_tokens (user_id, token, platform, created_at)
	VALUES ($1, $2, $3, NOW())
	ON CONFLICT (token) DO UPDATE SET user_id = $1, platform = $3
	`
	if _, err := s.db.Exec(ctx, query, userID, req.Token, req.Platform); err != nil {
		return &apperrors.PersistenceError{Op: "register device", Err: err}
	}
	return nil
}

// NotifyUsers pushes the same message to every registered device of the given
// users. Delivery is best-effort; failures are logged and never bubble up to
// the triggering flow.
func (s *NotificationService) NotifyUsers(ctx context.Context, userIDs []uuid.UUID, title, body string, data map[string]string) {
	if s.provider == nil || len(userIDs) == 0 {
		return
	}

	rows, err := s.db.Query(ctx, `
	SELECT user_id, token, platform, created_at
	FROM device_tokens
	WHERE user_id = ANY($1)
	`, userIDs)
	if err != nil {
		logger.Errorf("notify: failed to load device tokens: %v", err)
		return
	}
	defer rows.Close()

	var tokens []notification.DeviceToken
	for rows.Next() {
		var t notification.DeviceToken
		if err := rows.Scan(&t.UserID, &t.Token, &t.Platform, &t.CreatedAt); err != nil {
			logger.Errorf("notify: failed to scan device token: %v", err)
			return
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		logger.Errorf("notify: device token rows: %v", err)
		return
	}

	if err := s.provider.SendPush(ctx, tokens, title, body, data); err != nil {
		logger.Warnf("notify: push delivery failed: %v", err)
	}
}
