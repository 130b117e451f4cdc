package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/medtrack/medtrack-core/internal/auth"
)

// ─── Request/Response Types ────────────────────────────────────────

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type updateProfileRequest struct {
	Username        *string `json:"username,omitempty"`
	NewPassword     *string `json:"new_password,omitempty"`
	CurrentPassword *string `json:"current_password,omitempty"`
}

// tokenResponse is the session payload returned by login and refresh.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// ─── Handlers ──────────────────────────────────────────────────────

// handleRegister creates a new user account.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if !auth.IsValidIdentifier(req.Username) {
		writeValidationError(w, "username must be 3-254 printable ASCII characters without spaces")
		return
	}
	if len(req.Password) < auth.MinPasswordLength {
		writeValidationError(w, "password must be at least 8 characters")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error("hash password failed", "error", err)
		writeInternalError(w, "failed to create account")
		return
	}

	user := &auth.User{
		Username:     req.Username,
		PasswordHash: hash,
	}

	if err := s.users.Create(r.Context(), user); err != nil {
		if errors.Is(err, auth.ErrUsernameExists) {
			writeConflict(w, "username already exists")
			return
		}
		s.logger.Error("create user failed", "error", err)
		writeInternalError(w, "failed to create account")
		return
	}

	s.logger.Info("user registered", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, user)
}

// handleLogin verifies credentials and opens a new session: a short-lived
// access token plus the first refresh token of a fresh family.
//
// Unknown usernames and wrong passwords produce byte-identical responses so
// the endpoint cannot be used to probe which accounts exist.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	user, err := s.users.GetByUsername(r.Context(), req.Username)
	if err != nil {
		if !errors.Is(err, auth.ErrUserNotFound) {
			s.logger.Error("login lookup failed", "error", err)
			writeInternalError(w, "failed to log in")
			return
		}
		writeUnauthorized(w, "invalid credentials")
		return
	}

	ok, err := auth.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil {
		s.logger.Error("password verification failed", "error", err)
		writeInternalError(w, "failed to log in")
		return
	}
	if !ok {
		writeUnauthorized(w, "invalid credentials")
		return
	}

	s.writeSession(w, r, user.ID)
}

// handleRefresh redeems a refresh token for a new token pair, advancing the
// token's family. A replayed or revoked token kills the whole family.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.RefreshToken == "" {
		writeBadRequest(w, "refresh_token is required")
		return
	}

	successor, raw, err := s.ledger.Rotate(r.Context(), req.RefreshToken, s.refreshTokenTTL())
	if err != nil {
		var reuse *auth.ReuseError
		switch {
		case errors.As(err, &reuse):
			// Token theft signal. The ledger has already revoked the
			// family; log the lineage, tell the client nothing.
			s.logger.Warn("refresh token reuse detected",
				"token_id", reuse.TokenID,
				"family_id", reuse.FamilyID,
				"user_id", reuse.UserID,
				"request_id", r.Context().Value(ctxKeyRequestID),
			)
			writeUnauthorized(w, "invalid refresh token")
		case errors.Is(err, auth.ErrTokenExpired), errors.Is(err, auth.ErrTokenInvalid):
			writeUnauthorized(w, "invalid refresh token")
		default:
			s.logger.Error("refresh rotation failed", "error", err)
			writeInternalError(w, "failed to refresh session")
		}
		return
	}

	s.writeSessionTokens(w, successor.UserID, raw)
}

// handleLogout revokes the presented refresh token's family, ending the
// session. Logout is idempotent: an unknown token is a no-op 204.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.RefreshToken == "" {
		writeBadRequest(w, "refresh_token is required")
		return
	}

	userID := userIDFromContext(r.Context())
	if err := s.ledger.Revoke(r.Context(), userID, req.RefreshToken); err != nil {
		if !errors.Is(err, auth.ErrTokenInvalid) {
			s.logger.Error("logout revoke failed", "error", err)
			writeInternalError(w, "failed to log out")
			return
		}
	} else {
		s.logger.Info("session ended", "user_id", userID)
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleGetProfile returns the authenticated user's account.
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	user, err := s.users.GetByID(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			// The account was deleted while its access token was still valid.
			writeUnauthorized(w, "authentication required")
			return
		}
		s.logger.Error("get profile failed", "error", err)
		writeInternalError(w, "failed to get profile")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// handleUpdateProfile modifies the authenticated user's username and/or
// password. A password change requires the current password and revokes
// every session the user holds.
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) { //nolint:gocognit // profile update: field patching + credential re-check + session teardown
	userID := userIDFromContext(r.Context())

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	user, err := s.users.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeUnauthorized(w, "authentication required")
			return
		}
		s.logger.Error("get user for update failed", "error", err)
		writeInternalError(w, "failed to update profile")
		return
	}

	if req.Username != nil && *req.Username != user.Username {
		if !auth.IsValidIdentifier(*req.Username) {
			writeValidationError(w, "username must be 3-254 printable ASCII characters without spaces")
			return
		}
		user.Username = *req.Username
		if err := s.users.Update(r.Context(), user); err != nil {
			if errors.Is(err, auth.ErrUsernameExists) {
				writeConflict(w, "username already exists")
				return
			}
			s.logger.Error("update username failed", "error", err)
			writeInternalError(w, "failed to update profile")
			return
		}
		s.logger.Info("username changed", "user_id", userID)
	}

	if req.NewPassword != nil {
		if len(*req.NewPassword) < auth.MinPasswordLength {
			writeValidationError(w, "password must be at least 8 characters")
			return
		}
		if req.CurrentPassword == nil {
			writeUnauthorized(w, "current password is incorrect")
			return
		}
		ok, err := auth.VerifyPassword(*req.CurrentPassword, user.PasswordHash)
		if err != nil {
			s.logger.Error("password verification failed", "error", err)
			writeInternalError(w, "failed to update profile")
			return
		}
		if !ok {
			writeUnauthorized(w, "current password is incorrect")
			return
		}

		hash, err := auth.HashPassword(*req.NewPassword)
		if err != nil {
			s.logger.Error("hash password failed", "error", err)
			writeInternalError(w, "failed to update profile")
			return
		}
		if err := s.users.UpdatePassword(r.Context(), userID, hash); err != nil {
			s.logger.Error("update password failed", "error", err)
			writeInternalError(w, "failed to update profile")
			return
		}

		// Existing sessions were authorised by the old credential.
		if err := s.ledger.RevokeAllForUser(r.Context(), userID); err != nil {
			s.logger.Error("revoke sessions after password change failed", "error", err)
		}
		s.logger.Info("password changed, sessions revoked", "user_id", userID)
	}

	writeJSON(w, http.StatusOK, user)
}

// ─── Session helpers ───────────────────────────────────────────────

// writeSession starts a new token family for the user and writes the pair.
func (s *Server) writeSession(w http.ResponseWriter, r *http.Request, userID string) {
	_, raw, err := s.ledger.Create(r.Context(), userID, s.refreshTokenTTL())
	if err != nil {
		s.logger.Error("create refresh token failed", "error", err)
		writeInternalError(w, "failed to log in")
		return
	}

	s.logger.Info("session opened", "user_id", userID)
	s.writeSessionTokens(w, userID, raw)
}

// writeSessionTokens mints an access token and writes the token pair.
func (s *Server) writeSessionTokens(w http.ResponseWriter, userID, rawRefresh string) {
	ttl := s.accessTokenTTL()

	access, err := auth.GenerateAccessToken(userID, s.secCfg.JWT.Secret, ttl)
	if err != nil {
		s.logger.Error("generate access token failed", "error", err)
		writeInternalError(w, "failed to generate token")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  access,
		RefreshToken: rawRefresh,
		TokenType:    "Bearer",
		ExpiresIn:    int(ttl.Seconds()),
	})
}

func (s *Server) accessTokenTTL() time.Duration {
	return time.Duration(s.secCfg.JWT.AccessTokenTTL) * time.Minute
}

func (s *Server) refreshTokenTTL() time.Duration {
	return time.Duration(s.secCfg.JWT.RefreshTokenTTL) * time.Minute
}
