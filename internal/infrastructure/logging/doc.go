// Package logging provides structured logging for Medtrack Core.
//
// It wraps log/slog with configuration-driven setup (level, format, output)
// and default service/version attributes. Components derive their own
// loggers with With("component", ...).
//
// Passwords, password hashes, signing secrets, and raw tokens must never be
// passed to the logger.
package logging
