package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

const testRefreshTTL = 7 * 24 * time.Hour

func TestTokenLedger_Create(t *testing.T) {
	db := testDB(t)
	user := seedTestUser(t, db, "creator")
	ledger := NewTokenLedger(db)
	ctx := context.Background()

	token, raw, err := ledger.Create(ctx, user.ID, testRefreshTTL)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if raw == "" {
		t.Fatal("Create() should return the raw token")
	}
	if token.FamilyID == "" {
		t.Fatal("Create() should start a new family")
	}
	if !token.Live() {
		t.Error("freshly created token should be the live family member")
	}
	if token.TokenHash != HashToken(raw) {
		t.Error("stored hash should match the raw token")
	}
}

func TestTokenLedger_RotateOnce(t *testing.T) {
	db := testDB(t)
	user := seedTestUser(t, db, "rotator")
	ledger := NewTokenLedger(db)
	ctx := context.Background()

	first, raw, err := ledger.Create(ctx, user.ID, testRefreshTTL)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	successor, newRaw, err := ledger.Rotate(ctx, raw, testRefreshTTL)
	if err != nil {
		t.Fatalf("Rotate() error = %v", err)
	}

	if newRaw == raw {
		t.Error("rotation should mint a new raw token")
	}
	if successor.FamilyID != first.FamilyID {
		t.Error("successor should stay in the same family")
	}
	if !successor.Live() {
		t.Error("successor should be the live family member")
	}

	// The predecessor now records its successor and is no longer live.
	got, err := ledger.GetByID(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.RotatedTo != successor.ID {
		t.Errorf("RotatedTo = %q, want %q", got.RotatedTo, successor.ID)
	}
	if got.Live() {
		t.Error("rotated token must not remain live")
	}
}

func TestTokenLedger_ReuseRevokesFamily(t *testing.T) {
	db := testDB(t)
	user := seedTestUser(t, db, "victim")
	ledger := NewTokenLedger(db)
	ctx := context.Background()

	_, raw, err := ledger.Create(ctx, user.ID, testRefreshTTL)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	successor, successorRaw, err := ledger.Rotate(ctx, raw, testRefreshTTL)
	if err != nil {
		t.Fatalf("first Rotate() error = %v", err)
	}

	// Replaying the consumed token is reuse.
	_, _, err = ledger.Rotate(ctx, raw, testRefreshTTL)
	var reuse *ReuseError
	if !errors.As(err, &reuse) {
		t.Fatalf("second Rotate() error = %v, want *ReuseError", err)
	}
	if !errors.Is(err, ErrTokenReuse) {
		t.Error("ReuseError should unwrap to ErrTokenReuse")
	}
	if reuse.FamilyID != successor.FamilyID {
		t.Errorf("ReuseError.FamilyID = %q, want %q", reuse.FamilyID, successor.FamilyID)
	}

	// The teardown must take the whole family with it, including the most
	// recently issued successor.
	got, err := ledger.GetByID(ctx, successor.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if !got.Revoked {
		t.Error("successor should be revoked after reuse detection")
	}

	if _, _, err := ledger.Rotate(ctx, successorRaw, testRefreshTTL); !errors.Is(err, ErrTokenReuse) {
		t.Errorf("rotating the revoked successor should fail as reuse, got %v", err)
	}
}

func TestTokenLedger_RotateUnknownToken(t *testing.T) {
	db := testDB(t)
	seedTestUser(t, db, "nobody-home")
	ledger := NewTokenLedger(db)
	ctx := context.Background()

	_, _, err := ledger.Rotate(ctx, "never-issued-token", testRefreshTTL)
	if !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("Rotate() unknown token error = %v, want ErrTokenInvalid", err)
	}
}

func TestTokenLedger_RotateExpiredToken(t *testing.T) {
	db := testDB(t)
	user := seedTestUser(t, db, "sleeper")
	ledger := NewTokenLedger(db)
	ctx := context.Background()

	_, raw, err := ledger.Create(ctx, user.ID, -time.Minute)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, _, err := ledger.Rotate(ctx, raw, testRefreshTTL); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("Rotate() expired token error = %v, want ErrTokenExpired", err)
	}
}

func TestTokenLedger_RevokeFamily(t *testing.T) {
	db := testDB(t)
	user := seedTestUser(t, db, "logout")
	ledger := NewTokenLedger(db)
	ctx := context.Background()

	token, raw, err := ledger.Create(ctx, user.ID, testRefreshTTL)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := ledger.RevokeFamily(ctx, token.FamilyID); err != nil {
		t.Fatalf("RevokeFamily() error = %v", err)
	}

	if _, _, err := ledger.Rotate(ctx, raw, testRefreshTTL); !errors.Is(err, ErrTokenReuse) {
		t.Errorf("rotating a revoked token should fail as reuse, got %v", err)
	}
}

func TestTokenLedger_Revoke(t *testing.T) {
	db := testDB(t)
	user := seedTestUser(t, db, "self-logout")
	other := seedTestUser(t, db, "bystander")
	ledger := NewTokenLedger(db)
	ctx := context.Background()

	_, raw, err := ledger.Create(ctx, user.ID, testRefreshTTL)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// A token cannot be revoked on someone else's behalf.
	if err := ledger.Revoke(ctx, other.ID, raw); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("Revoke() by non-owner = %v, want ErrTokenInvalid", err)
	}
	if _, _, err := ledger.Rotate(ctx, raw, testRefreshTTL); err != nil {
		t.Fatalf("token should still rotate after failed foreign revoke: %v", err)
	}

	_, raw2, err := ledger.Create(ctx, user.ID, testRefreshTTL)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := ledger.Revoke(ctx, user.ID, raw2); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	if _, _, err := ledger.Rotate(ctx, raw2, testRefreshTTL); !errors.Is(err, ErrTokenReuse) {
		t.Errorf("rotating a revoked token should fail as reuse, got %v", err)
	}

	if err := ledger.Revoke(ctx, user.ID, "unknown-token"); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("Revoke() of unknown token = %v, want ErrTokenInvalid", err)
	}
}

func TestTokenLedger_RevokeAllForUser(t *testing.T) {
	db := testDB(t)
	user := seedTestUser(t, db, "multi-device")
	ledger := NewTokenLedger(db)
	ctx := context.Background()

	// Two independent families (two logins).
	_, raw1, _ := ledger.Create(ctx, user.ID, testRefreshTTL)
	_, raw2, _ := ledger.Create(ctx, user.ID, testRefreshTTL)

	if err := ledger.RevokeAllForUser(ctx, user.ID); err != nil {
		t.Fatalf("RevokeAllForUser() error = %v", err)
	}

	for i, raw := range []string{raw1, raw2} {
		if _, _, err := ledger.Rotate(ctx, raw, testRefreshTTL); !errors.Is(err, ErrTokenReuse) {
			t.Errorf("family %d should be dead after RevokeAllForUser, got %v", i+1, err)
		}
	}
}

func TestTokenLedger_DeleteExpired(t *testing.T) {
	db := testDB(t)
	user := seedTestUser(t, db, "sweeper")
	ledger := NewTokenLedger(db)
	ctx := context.Background()

	expired, _, _ := ledger.Create(ctx, user.ID, -time.Hour)
	live, _, _ := ledger.Create(ctx, user.ID, testRefreshTTL)

	n, err := ledger.DeleteExpired(ctx)
	if err != nil {
		t.Fatalf("DeleteExpired() error = %v", err)
	}
	if n != 1 {
		t.Errorf("DeleteExpired() = %d, want 1", n)
	}

	if _, err := ledger.GetByID(ctx, expired.ID); !errors.Is(err, ErrTokenInvalid) {
		t.Error("expired entry should be deleted")
	}
	if _, err := ledger.GetByID(ctx, live.ID); err != nil {
		t.Errorf("live entry should remain, got %v", err)
	}
}

// TestTokenLedger_ConcurrentRotate exercises the race closed by the
// conditional update: two concurrent Rotate calls on the same live token
// must not both succeed, and the loser must observe reuse semantics.
func TestTokenLedger_ConcurrentRotate(t *testing.T) {
	db := testDB(t)
	user := seedTestUser(t, db, "racer")
	ledger := NewTokenLedger(db)
	ctx := context.Background()

	_, raw, err := ledger.Create(ctx, user.ID, testRefreshTTL)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	const attempts = 2
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	wg.Add(attempts)

	for i := 0; i < attempts; i++ {
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = ledger.Rotate(ctx, raw, testRefreshTTL)
		}(i)
	}
	wg.Wait()

	var successes, reuses int
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrTokenReuse):
			reuses++
		default:
			t.Errorf("unexpected rotate error: %v", err)
		}
	}

	if successes != 1 {
		t.Errorf("successes = %d, want exactly 1", successes)
	}
	if reuses != 1 {
		t.Errorf("reuse results = %d, want exactly 1", reuses)
	}
}
