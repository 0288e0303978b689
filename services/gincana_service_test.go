package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"fitSquadAPI/internal/apperrors"
	"fitSquadAPI/internal/gincana"
	"fitSquadAPI/internal/group"
)

// stubUploader stands in for MediaService so tests can force upload failures
// and observe whether an upload was attempted at all.
type stubUploader struct {
	err   error
	calls int
}

func (u *stubUploader) UploadImage(ctx context.Context, data []byte, opts UploadOptions) (string, error) {
	u.calls++
	if u.err != nil {
		return "", u.err
	}
	return "https://cdn.test/" + opts.Folder + "/" + opts.Name, nil
}

func setupTestDB(t *testing.T) *pgxpool.Pool {
	_ = godotenv.Load("../.env")

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping database tests")
	}

	db, err := pgxpool.New(context.Background(), dbURL)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	if err := db.Ping(context.Background()); err != nil {
		t.Fatalf("failed to ping test database: %v", err)
	}
	return db
}

// seedUser inserts a throwaway user and returns its id and clerk id.
func seedUser(t *testing.T, db *pgxpool.Pool, username string) (uuid.UUID, string) {
	id := uuid.New()
	clerkID := "user_test_" + uuid.New().String()

	_, err := db.Exec(context.Background(), `
	INSERT INTO users (id, clerk_id, email, username, first_name, last_name, created_at, updated_at)
	VALUES ($1, $2, $3, $4, '', '', NOW(), NOW())
	`, id, clerkID, fmt.Sprintf("%s-%s@example.com", username, id), username+"-"+id.String()[:8])
	if err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}

	t.Cleanup(func() {
		db.Exec(context.Background(), `DELETE FROM users WHERE id = $1`, id)
	})

	return id, clerkID
}

func seedGroup(t *testing.T, db *pgxpool.Pool, adminID uuid.UUID) uuid.UUID {
	id := uuid.New()
	ctx := context.Background()

	_, err := db.Exec(ctx, `
	INSERT INTO groups (id, name, invite_code, created_by, created_at)
	VALUES ($1, 'test squad', $2, $3, NOW())
	`, id, uuid.New().String(), adminID)
	if err != nil {
		t.Fatalf("failed to seed group: %v", err)
	}

	_, err = db.Exec(ctx, `
	INSERT INTO group_members (group_id, user_id, role, joined_at)
	VALUES ($1, $2, $3, NOW())
	`, id, adminID, group.RoleAdmin)
	if err != nil {
		t.Fatalf("failed to seed group admin: %v", err)
	}

	t.Cleanup(func() {
		db.Exec(ctx, `DELETE FROM gincana_winners WHERE gincana_id IN (SELECT id FROM gincanas WHERE group_id = $1)`, id)
		db.Exec(ctx, `DELETE FROM gincana_participants WHERE gincana_id IN (SELECT id FROM gincanas WHERE group_id = $1)`, id)
		db.Exec(ctx, `DELETE FROM gincanas WHERE group_id = $1`, id)
		db.Exec(ctx, `DELETE FROM checkins WHERE group_id = $1`, id)
		db.Exec(ctx, `DELETE FROM group_members WHERE group_id = $1`, id)
		db.Exec(ctx, `DELETE FROM groups WHERE id = $1`, id)
	})

	return id
}

func addMember(t *testing.T, db *pgxpool.Pool, groupID, userID uuid.UUID) {
	_, err := db.Exec(context.Background(), `
	INSERT INTO group_members (group_id, user_id, role, joined_at)
	VALUES ($1, $2, $3, NOW())
	`, groupID, userID, group.RoleMember)
	if err != nil {
		t.Fatalf("failed to add member: %v", err)
	}
}

func seedCheckin(t *testing.T, db *pgxpool.Pool, groupID, userID uuid.UUID, at time.Time) {
	_, err := db.Exec(context.Background(), `
	INSERT INTO checkins (id, group_id, user_id, image_url, occurred_at)
	VALUES ($1, $2, $3, 'https://cdn.test/checkin.jpg', $4)
	`, uuid.New(), groupID, userID, at)
	if err != nil {
		t.Fatalf("failed to seed check-in: %v", err)
	}
}

func newGincanaService(db *pgxpool.Pool) *GincanaService {
	groups := NewGroupService(db)
	checkins := NewCheckinService(db, nil, groups)
	return NewGincanaService(db, nil, groups, checkins, nil)
}

func TestCreateGincanaRollsBackWhenRosterInsertFails(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	adminID, adminClerkID := seedUser(t, db, "admin")
	memberID, _ := seedUser(t, db, "member")
	groupID := seedGroup(t, db, adminID)
	addMember(t, db, groupID, memberID)

	svc := newGincanaService(db)

	// The second participant does not exist, so the roster insert violates
	// the FK and the whole creation must roll back.
	req := &gincana.CreateGincanaRequest{
		PrizeDescription: "trophy",
		ParticipantIDs:   []uuid.UUID{adminID, uuid.New()},
		StartDate:        time.Now().AddDate(0, 0, -1),
		EndDate:          time.Now().AddDate(0, 0, 5),
	}

	_, err := svc.CreateGincana(ctx, adminClerkID, groupID, req, nil, "")
	if err == nil {
		t.Fatal("expected creation to fail")
	}

	var count int
	if err := db.QueryRow(ctx, `SELECT COUNT(*) FROM gincanas WHERE group_id = $1`, groupID).Scan(&count); err != nil {
		t.Fatalf("failed to count gincanas: %v", err)
	}
	if count != 0 {
		t.Errorf("expected no gincana rows after rollback, got %d", count)
	}
}

func TestCreateGincanaRejectsSecondActive(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	adminID, adminClerkID := seedUser(t, db, "admin")
	memberID, _ := seedUser(t, db, "member")
	groupID := seedGroup(t, db, adminID)
	addMember(t, db, groupID, memberID)

	svc := newGincanaService(db)

	req := &gincana.CreateGincanaRequest{
		PrizeDescription: "trophy",
		ParticipantIDs:   []uuid.UUID{adminID, memberID},
		StartDate:        time.Now().AddDate(0, 0, -1),
		EndDate:          time.Now().AddDate(0, 0, 5),
	}

	if _, err := svc.CreateGincana(ctx, adminClerkID, groupID, req, nil, ""); err != nil {
		t.Fatalf("first creation failed: %v", err)
	}

	if _, err := svc.CreateGincana(ctx, adminClerkID, groupID, req, nil, ""); err == nil {
		t.Fatal("expected second active gincana to be rejected")
	}
}

func TestCreateGincanaNoRowWhenUploadFails(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	adminID, adminClerkID := seedUser(t, db, "admin")
	memberID, _ := seedUser(t, db, "member")
	groupID := seedGroup(t, db, adminID)
	addMember(t, db, groupID, memberID)

	uploader := &stubUploader{err: errors.New("bucket unavailable")}
	groups := NewGroupService(db)
	checkins := NewCheckinService(db, nil, groups)
	svc := NewGincanaService(db, uploader, groups, checkins, nil)

	req := &gincana.CreateGincanaRequest{
		PrizeDescription: "trophy",
		ParticipantIDs:   []uuid.UUID{adminID, memberID},
		StartDate:        time.Now().AddDate(0, 0, -1),
		EndDate:          time.Now().AddDate(0, 0, 5),
	}

	_, err := svc.CreateGincana(ctx, adminClerkID, groupID, req, []byte("not a real jpeg"), "image/jpeg")

	var mErr *apperrors.MediaUploadError
	if !errors.As(err, &mErr) {
		t.Fatalf("expected a media upload error, got %v", err)
	}

	var count int
	if err := db.QueryRow(ctx, `SELECT COUNT(*) FROM gincanas WHERE group_id = $1`, groupID).Scan(&count); err != nil {
		t.Fatalf("failed to count gincanas: %v", err)
	}
	if count != 0 {
		t.Errorf("expected no gincana rows after a failed upload, got %d", count)
	}
}

func TestCreateGincanaSkipsUploadWhenActiveExists(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	adminID, adminClerkID := seedUser(t, db, "admin")
	memberID, _ := seedUser(t, db, "member")
	groupID := seedGroup(t, db, adminID)
	addMember(t, db, groupID, memberID)

	uploader := &stubUploader{}
	groups := NewGroupService(db)
	checkins := NewCheckinService(db, nil, groups)
	svc := NewGincanaService(db, uploader, groups, checkins, nil)

	req := &gincana.CreateGincanaRequest{
		PrizeDescription: "trophy",
		ParticipantIDs:   []uuid.UUID{adminID, memberID},
		StartDate:        time.Now().AddDate(0, 0, -1),
		EndDate:          time.Now().AddDate(0, 0, 5),
	}

	if _, err := svc.CreateGincana(ctx, adminClerkID, groupID, req, nil, ""); err != nil {
		t.Fatalf("first creation failed: %v", err)
	}

	_, err := svc.CreateGincana(ctx, adminClerkID, groupID, req, []byte("prize pic"), "image/jpeg")

	var vErr *apperrors.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected a validation error, got %v", err)
	}
	if uploader.calls != 0 {
		t.Errorf("prize image was uploaded %d time(s) for a rejected creation", uploader.calls)
	}
}

func TestFinalizeNothingPendingIsNoOp(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	adminID, adminClerkID := seedUser(t, db, "admin")
	groupID := seedGroup(t, db, adminID)

	svc := newGincanaService(db)

	result, err := svc.FinalizeIfElapsed(context.Background(), adminClerkID, groupID)
	if err != nil {
		t.Fatalf("finalize returned error: %v", err)
	}
	if result != nil {
		t.Errorf("expected nil result when nothing is pending, got %+v", result)
	}
}

func TestFinalizeEmptyRosterDeactivatesWithoutWinner(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	adminID, adminClerkID := seedUser(t, db, "admin")
	groupID := seedGroup(t, db, adminID)

	// An elapsed gincana whose roster was never populated. Creation can no
	// longer produce this, but old rows can still hold it.
	gincanaID := uuid.New()
	_, err := db.Exec(ctx, `
	INSERT INTO gincanas (id, group_id, prize_description, start_date, end_date, created_by, is_active, created_at)
	VALUES ($1, $2, 'orphaned prize', NOW() - INTERVAL '7 days', NOW() - INTERVAL '1 day', $3, true, NOW())
	`, gincanaID, groupID, adminID)
	if err != nil {
		t.Fatalf("failed to insert gincana: %v", err)
	}

	svc := newGincanaService(db)

	result, err := svc.FinalizeIfElapsed(ctx, adminClerkID, groupID)
	if err != nil {
		t.Fatalf("finalize returned error: %v", err)
	}
	if result != nil {
		t.Errorf("expected nil result for an empty roster, got %+v", result)
	}

	var winnerID *uuid.UUID
	var isActive bool
	err = db.QueryRow(ctx, `SELECT winner_user_id, is_active FROM gincanas WHERE id = $1`, gincanaID).Scan(&winnerID, &isActive)
	if err != nil {
		t.Fatalf("failed to reload gincana: %v", err)
	}
	if isActive {
		t.Error("gincana should be deactivated after finalize")
	}
	if winnerID != nil {
		t.Errorf("expected no winner, got %s", winnerID)
	}
}

func TestFinalizeDeclaresWinnerExactlyOnce(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	adminID, adminClerkID := seedUser(t, db, "admin")
	memberID, _ := seedUser(t, db, "member")
	groupID := seedGroup(t, db, adminID)
	addMember(t, db, groupID, memberID)

	svc := newGincanaService(db)

	// Window already elapsed: ended yesterday.
	req := &gincana.CreateGincanaRequest{
		PrizeDescription: "a golden kettlebell",
		ParticipantIDs:   []uuid.UUID{adminID, memberID},
		StartDate:        time.Now().AddDate(0, 0, -7),
		EndDate:          time.Now().AddDate(0, 0, -1),
	}

	g, err := svc.CreateGincana(ctx, adminClerkID, groupID, req, nil, "")
	if err != nil {
		t.Fatalf("creation failed: %v", err)
	}

	seedCheckin(t, db, groupID, memberID, time.Now().AddDate(0, 0, -3))
	seedCheckin(t, db, groupID, memberID, time.Now().AddDate(0, 0, -2))
	seedCheckin(t, db, groupID, adminID, time.Now().AddDate(0, 0, -2))

	result, err := svc.FinalizeIfElapsed(ctx, adminClerkID, groupID)
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	if result == nil {
		t.Fatal("expected a finalize result")
	}
	if result.IsWinner {
		t.Error("requester should not be the winner")
	}
	if result.PrizeDescription != req.PrizeDescription {
		t.Errorf("unexpected prize description %q", result.PrizeDescription)
	}

	var winnerID uuid.UUID
	var isActive bool
	err = db.QueryRow(ctx, `SELECT winner_user_id, is_active FROM gincanas WHERE id = $1`, g.ID).Scan(&winnerID, &isActive)
	if err != nil {
		t.Fatalf("failed to reload gincana: %v", err)
	}
	if isActive {
		t.Error("gincana should be deactivated after finalize")
	}
	if winnerID != memberID {
		t.Errorf("expected winner %s, got %s", memberID, winnerID)
	}

	var winnerRows int
	if err := db.QueryRow(ctx, `SELECT COUNT(*) FROM gincana_winners WHERE gincana_id = $1`, g.ID).Scan(&winnerRows); err != nil {
		t.Fatalf("failed to count winner records: %v", err)
	}
	if winnerRows != 1 {
		t.Errorf("expected exactly one winner record, got %d", winnerRows)
	}

	// Second finalize finds nothing pending.
	again, err := svc.FinalizeIfElapsed(ctx, adminClerkID, groupID)
	if err != nil {
		t.Fatalf("second finalize errored: %v", err)
	}
	if again != nil {
		t.Errorf("second finalize should be a no-op, got %+v", again)
	}
}
