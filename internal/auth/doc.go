// Package auth provides authentication and session management for Medtrack Core.
//
// It implements:
//   - Argon2id password hashing with constant-time verification
//   - Short-lived HS256 JWT access tokens, validated by signature only
//   - Opaque rotating refresh tokens persisted as a ledger with
//     family-based reuse (theft) detection
//
// Access tokens are stateless: once issued they remain valid until expiry,
// so compromise is bounded by the short TTL rather than by revocation.
// Refresh tokens are the opposite: every one is tracked server-side, only
// the current live member of a family is redeemable, and presenting an
// already-rotated or revoked token revokes the whole family.
package auth
