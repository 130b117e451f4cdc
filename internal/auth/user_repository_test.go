package auth

import (
	"context"
	"errors"
	"testing"
)

func TestUserRepository_CreateAndGet(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user := &User{
		Username:     "alice@example.com",
		PasswordHash: "$argon2id$v=19$m=65536,t=3,p=1$c2FsdA$aGFzaA",
	}

	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if user.ID == "" {
		t.Fatal("Create() should generate an ID")
	}

	got, err := repo.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Username != "alice@example.com" {
		t.Errorf("Username = %q, want %q", got.Username, "alice@example.com")
	}
	if got.PasswordHash != user.PasswordHash {
		t.Error("PasswordHash should round-trip")
	}

	byName, err := repo.GetByUsername(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("GetByUsername() error = %v", err)
	}
	if byName.ID != user.ID {
		t.Errorf("GetByUsername().ID = %q, want %q", byName.ID, user.ID)
	}
}

func TestUserRepository_DuplicateUsername(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	seedTestUser(t, db, "taken@example.com")

	err := repo.Create(ctx, &User{Username: "taken@example.com", PasswordHash: "x"})
	if !errors.Is(err, ErrUsernameExists) {
		t.Errorf("Create() with duplicate username error = %v, want ErrUsernameExists", err)
	}
}

func TestUserRepository_GetMissing(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	if _, err := repo.GetByID(ctx, "usr-missing"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("GetByID() error = %v, want ErrUserNotFound", err)
	}
	if _, err := repo.GetByUsername(ctx, "nobody"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("GetByUsername() error = %v, want ErrUserNotFound", err)
	}
}

func TestUserRepository_Update(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user := seedTestUser(t, db, "old-name")
	user.Username = "new-name"

	if err := repo.Update(ctx, user); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := repo.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Username != "new-name" {
		t.Errorf("Username = %q, want %q", got.Username, "new-name")
	}
}

func TestUserRepository_UpdateToTakenUsername(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	seedTestUser(t, db, "first")
	second := seedTestUser(t, db, "second")

	second.Username = "first"
	if err := repo.Update(ctx, second); !errors.Is(err, ErrUsernameExists) {
		t.Errorf("Update() to taken username error = %v, want ErrUsernameExists", err)
	}
}

func TestUserRepository_UpdateMissing(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	err := repo.Update(ctx, &User{ID: "usr-missing", Username: "ghost"})
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Update() error = %v, want ErrUserNotFound", err)
	}
}

func TestUserRepository_UpdatePassword(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user := seedTestUser(t, db, "pwchange")

	if err := repo.UpdatePassword(ctx, user.ID, "new-hash"); err != nil {
		t.Fatalf("UpdatePassword() error = %v", err)
	}

	got, _ := repo.GetByID(ctx, user.ID)
	if got.PasswordHash != "new-hash" {
		t.Error("password hash should be updated")
	}
}

func TestUserRepository_DeleteCascadesTokens(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)
	ledger := NewTokenLedger(db)
	ctx := context.Background()

	user := seedTestUser(t, db, "doomed")
	token, _, err := ledger.Create(ctx, user.ID, testRefreshTTL)
	if err != nil {
		t.Fatalf("ledger.Create() error = %v", err)
	}

	if err := repo.Delete(ctx, user.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, err := repo.GetByID(ctx, user.ID); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("user should be gone, got %v", err)
	}
	if _, err := ledger.GetByID(ctx, token.ID); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("refresh tokens should cascade on user delete, got %v", err)
	}
}
