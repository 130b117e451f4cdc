package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TokenLedger is the single source of truth for which refresh tokens are
// currently redeemable. It owns the family lineage: Create starts a family,
// Rotate advances it, and the Revoke methods tear it down.
type TokenLedger interface {
	// Create starts a new token family for a user and returns the ledger
	// entry plus the raw token to hand to the client.
	Create(ctx context.Context, userID string, ttl time.Duration) (*RefreshToken, string, error)

	// Rotate redeems a raw refresh token for its successor. It fails with
	// ErrTokenInvalid (unknown token), ErrTokenExpired, or a *ReuseError
	// (token exists but is no longer the live family member — the whole
	// family is revoked as a side effect).
	Rotate(ctx context.Context, raw string, ttl time.Duration) (*RefreshToken, string, error)

	// Revoke resolves a raw token belonging to userID and revokes its
	// entire family. Used on logout.
	Revoke(ctx context.Context, userID, raw string) error

	GetByID(ctx context.Context, id string) (*RefreshToken, error)
	RevokeFamily(ctx context.Context, familyID string) error
	RevokeAllForUser(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// ReuseError reports presentation of a non-current refresh token: either it
// was already rotated (replay of a consumed token) or its family was revoked.
// By the time the caller sees this error the entire family is dead.
type ReuseError struct {
	TokenID  string
	FamilyID string
	UserID   string
}

func (e *ReuseError) Error() string {
	return fmt.Sprintf("refresh token reuse detected: token %s in family %s", e.TokenID, e.FamilyID)
}

// Unwrap lets errors.Is(err, ErrTokenReuse) match.
func (e *ReuseError) Unwrap() error {
	return ErrTokenReuse
}

// SQLiteTokenLedger implements TokenLedger using SQLite.
type SQLiteTokenLedger struct {
	db *sql.DB
}

// NewTokenLedger creates a new SQLite-backed token ledger.
func NewTokenLedger(db *sql.DB) *SQLiteTokenLedger {
	return &SQLiteTokenLedger{db: db}
}

// newTokenID generates a ledger entry ID.
func newTokenID() string {
	return "rt-" + uuid.NewString()[:16]
}

// Create starts a new token family: generates a raw token, stores its hash
// as the family's first (live) entry, and returns the raw token.
func (l *SQLiteTokenLedger) Create(ctx context.Context, userID string, ttl time.Duration) (*RefreshToken, string, error) {
	raw, err := GenerateRefreshToken()
	if err != nil {
		return nil, "", err
	}

	now := time.Now().UTC()
	token := &RefreshToken{
		ID:        newTokenID(),
		UserID:    userID,
		FamilyID:  uuid.NewString(),
		TokenHash: HashToken(raw),
		ExpiresAt: now.Add(ttl),
		CreatedAt: now.Truncate(time.Second),
	}

	if err := l.insert(ctx, l.db, token); err != nil {
		return nil, "", err
	}

	return token, raw, nil
}

// Rotate redeems a presented raw token and advances its family.
//
// The advance is a single conditional UPDATE — "mark rotated if and only if
// this entry is still the live member" — not a read-then-write pair. Two
// concurrent Rotate calls on the same token therefore cannot both succeed:
// the loser's UPDATE matches zero rows and is handled as reuse, which
// revokes the family. That is deliberate (replay of an already-consumed
// token and a lost race must be observably identical).
func (l *SQLiteTokenLedger) Rotate(ctx context.Context, raw string, ttl time.Duration) (*RefreshToken, string, error) {
	presented, err := l.getByTokenHash(ctx, HashToken(raw))
	if err != nil {
		return nil, "", err
	}

	if time.Now().After(presented.ExpiresAt) {
		return nil, "", ErrTokenExpired
	}

	newRaw, err := GenerateRefreshToken()
	if err != nil {
		return nil, "", err
	}

	now := time.Now().UTC()
	successor := &RefreshToken{
		ID:        newTokenID(),
		UserID:    presented.UserID,
		FamilyID:  presented.FamilyID,
		TokenHash: HashToken(newRaw),
		ExpiresAt: now.Add(ttl),
		CreatedAt: now.Truncate(time.Second),
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, "", fmt.Errorf("beginning rotation transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is no-op after commit

	result, err := tx.ExecContext(ctx,
		`UPDATE refresh_tokens SET rotated_to = ?
		 WHERE id = ? AND rotated_to IS NULL AND revoked = 0`,
		successor.ID, presented.ID,
	)
	if err != nil {
		return nil, "", fmt.Errorf("advancing token family: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		// The entry exists but is not the live member: it was already
		// rotated or its family revoked. Treat as theft — tear down the
		// entire family so the holder of the stolen successor loses it too.
		tx.Rollback() //nolint:errcheck // explicit: abandon the rotation before revoking

		if err := l.RevokeFamily(ctx, presented.FamilyID); err != nil {
			return nil, "", err
		}
		return nil, "", &ReuseError{
			TokenID:  presented.ID,
			FamilyID: presented.FamilyID,
			UserID:   presented.UserID,
		}
	}

	if err := l.insert(ctx, tx, successor); err != nil {
		return nil, "", err
	}

	if err := tx.Commit(); err != nil {
		return nil, "", fmt.Errorf("committing rotation: %w", err)
	}

	return successor, newRaw, nil
}

// Revoke resolves a raw token and revokes its family. The token must belong
// to userID; a token owned by someone else reads as ErrTokenInvalid.
func (l *SQLiteTokenLedger) Revoke(ctx context.Context, userID, raw string) error {
	presented, err := l.getByTokenHash(ctx, HashToken(raw))
	if err != nil {
		return err
	}
	if presented.UserID != userID {
		return ErrTokenInvalid
	}
	return l.RevokeFamily(ctx, presented.FamilyID)
}

// GetByID retrieves a ledger entry by its ID.
func (l *SQLiteTokenLedger) GetByID(ctx context.Context, id string) (*RefreshToken, error) {
	return l.get(ctx,
		`SELECT id, user_id, family_id, token_hash, rotated_to, expires_at, revoked, created_at
		 FROM refresh_tokens WHERE id = ?`, id)
}

// getByTokenHash retrieves a ledger entry by the SHA-256 hash of the raw token.
func (l *SQLiteTokenLedger) getByTokenHash(ctx context.Context, tokenHash string) (*RefreshToken, error) {
	return l.get(ctx,
		`SELECT id, user_id, family_id, token_hash, rotated_to, expires_at, revoked, created_at
		 FROM refresh_tokens WHERE token_hash = ?`, tokenHash)
}

// RevokeFamily marks every entry in a family as revoked. Used on logout and
// on reuse detection.
func (l *SQLiteTokenLedger) RevokeFamily(ctx context.Context, familyID string) error {
	_, err := l.db.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked = 1 WHERE family_id = ?", familyID)
	if err != nil {
		return fmt.Errorf("revoking token family: %w", err)
	}
	return nil
}

// RevokeAllForUser marks all refresh tokens for a user as revoked.
// Used on password change.
func (l *SQLiteTokenLedger) RevokeAllForUser(ctx context.Context, userID string) error {
	_, err := l.db.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked = 1 WHERE user_id = ?", userID)
	if err != nil {
		return fmt.Errorf("revoking all tokens for user: %w", err)
	}
	return nil
}

// DeleteExpired removes entries past their expiry, freeing storage.
// Returns the number of deleted rows.
func (l *SQLiteTokenLedger) DeleteExpired(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	result, err := l.db.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE expires_at <= ?", now)
	if err != nil {
		return 0, fmt.Errorf("deleting expired tokens: %w", err)
	}

	count, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	return count, nil
}

// execer covers *sql.DB and *sql.Tx for inserts.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// insert writes a ledger entry.
func (l *SQLiteTokenLedger) insert(ctx context.Context, ex execer, token *RefreshToken) error {
	var rotatedTo sql.NullString
	if token.RotatedTo != "" {
		rotatedTo = sql.NullString{String: token.RotatedTo, Valid: true}
	}

	_, err := ex.ExecContext(ctx,
		`INSERT INTO refresh_tokens (id, user_id, family_id, token_hash, rotated_to, expires_at, revoked, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		token.ID, token.UserID, token.FamilyID, token.TokenHash, rotatedTo,
		token.ExpiresAt.UTC().Format(time.RFC3339),
		boolToInt(token.Revoked),
		token.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("creating refresh token: %w", err)
	}
	return nil
}

// get executes a single-row ledger query.
func (l *SQLiteTokenLedger) get(ctx context.Context, query string, args ...any) (*RefreshToken, error) {
	var t RefreshToken
	var rotatedTo sql.NullString
	var revoked int
	var expiresAt, createdAt string

	err := l.db.QueryRowContext(ctx, query, args...).Scan(
		&t.ID, &t.UserID, &t.FamilyID, &t.TokenHash, &rotatedTo,
		&expiresAt, &revoked, &createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTokenInvalid
		}
		return nil, fmt.Errorf("getting refresh token: %w", err)
	}

	if rotatedTo.Valid {
		t.RotatedTo = rotatedTo.String
	}
	t.Revoked = revoked != 0
	t.ExpiresAt, _ = time.Parse(time.RFC3339, expiresAt) //nolint:errcheck // format is controlled
	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled

	return &t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
