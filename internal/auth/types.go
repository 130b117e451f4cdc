package auth

import (
	"errors"
	"regexp"
	"time"
)

// identifierPattern defines the valid format for account identifiers:
// printable non-whitespace characters, 3-254 characters. The identifier is
// an opaque unique string; both email addresses and plain usernames pass.
var identifierPattern = regexp.MustCompile(`^[\x21-\x7E]{3,254}$`)

// MinPasswordLength is the minimum accepted password length.
const MinPasswordLength = 8

// IsValidIdentifier checks if an account identifier meets format requirements.
func IsValidIdentifier(identifier string) bool {
	return identifierPattern.MatchString(identifier)
}

// User represents an account that owns patient records.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // never serialised
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RefreshToken represents one ledger entry in a refresh token family.
//
// The raw token is never stored; TokenHash holds its SHA-256 digest.
// RotatedTo points at the successor entry once this token has been
// redeemed. The live member of a family is the single entry with
// RotatedTo empty and Revoked false.
type RefreshToken struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	FamilyID  string    `json:"family_id"`
	TokenHash string    `json:"-"` // never serialised
	RotatedTo string    `json:"rotated_to,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
	Revoked   bool      `json:"revoked"`
	CreatedAt time.Time `json:"created_at"`
}

// Live reports whether this entry is the current live member of its family.
func (t *RefreshToken) Live() bool {
	return t.RotatedTo == "" && !t.Revoked
}

// Sentinel errors for auth operations.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUsernameExists     = errors.New("username already exists")
	ErrEmptyPassword      = errors.New("password must not be empty")
	ErrTokenExpired       = errors.New("token has expired")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrTokenReuse         = errors.New("refresh token reuse detected")
)
