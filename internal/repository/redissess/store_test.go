package redissess

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/luminapress/comms-engine/internal/domain"
	"github.com/luminapress/comms-engine/internal/service/verification"
)

func newStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client, 30*time.Minute), mr
}

func sample() *domain.VerificationSession {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &domain.VerificationSession{
		ID:         "sess-1",
		DraftEmail: "a@x.com",
		Step:       domain.StepAwaitingEmailOTP,
		EmailOTP: &domain.OTPChallenge{
			CodeHash:          "abc123",
			ExpiresAt:         now.Add(10 * time.Minute),
			AttemptsRemaining: 3,
			LastSentAt:        now,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, sample()); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := store.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Step != domain.StepAwaitingEmailOTP {
		t.Errorf("step = %s", got.Step)
	}
	if got.EmailOTP == nil || got.EmailOTP.AttemptsRemaining != 3 {
		t.Errorf("otp challenge should round-trip, got %+v", got.EmailOTP)
	}
}

func TestGetMissingSession(t *testing.T) {
	store, _ := newStore(t)
	if _, err := store.Get(context.Background(), "nope"); err != verification.ErrSessionNotFound {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestTTLEvictsAbandonedSessions(t *testing.T) {
	store, mr := newStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, sample()); err != nil {
		t.Fatalf("put: %v", err)
	}
	mr.FastForward(31 * time.Minute)

	if _, err := store.Get(ctx, "sess-1"); err != verification.ErrSessionNotFound {
		t.Errorf("expired session should look missing, got %v", err)
	}
}

func TestPutRefreshesTTL(t *testing.T) {
	store, mr := newStore(t)
	ctx := context.Background()

	sess := sample()
	if err := store.Put(ctx, sess); err != nil {
		t.Fatalf("put: %v", err)
	}
	mr.FastForward(20 * time.Minute)
	if err := store.Put(ctx, sess); err != nil {
		t.Fatalf("refresh put: %v", err)
	}
	mr.FastForward(20 * time.Minute)

	// 40 minutes after creation but only 20 since the last write.
	if _, err := store.Get(ctx, "sess-1"); err != nil {
		t.Errorf("active session should survive, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, sample()); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Delete(ctx, "sess-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "sess-1"); err != verification.ErrSessionNotFound {
		t.Errorf("deleted session should be gone, got %v", err)
	}
	if err := store.Delete(ctx, "sess-1"); err != nil {
		t.Errorf("double delete should be a no-op, got %v", err)
	}
}
