package api

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/medtrack/medtrack-core/internal/auth"
	"github.com/medtrack/medtrack-core/internal/infrastructure/config"
	"github.com/medtrack/medtrack-core/internal/infrastructure/logging"
	"github.com/medtrack/medtrack-core/internal/medication"
	"github.com/medtrack/medtrack-core/internal/patient"
)

const testJWTSecret = "test-secret-0123456789-0123456789-0123456789"

// testSchema is the full application schema, matching the migrations.
const testSchema = `
CREATE TABLE users (
	id            TEXT PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL
) STRICT;

CREATE TABLE refresh_tokens (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	family_id  TEXT NOT NULL,
	token_hash TEXT NOT NULL UNIQUE,
	rotated_to TEXT,
	expires_at TEXT NOT NULL,
	revoked    INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
) STRICT;

CREATE TABLE patients (
	id              TEXT PRIMARY KEY,
	user_id         TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	patient_name    TEXT NOT NULL,
	patient_dob     TEXT NOT NULL,
	patient_allergy TEXT,
	patient_md      TEXT,
	created_at      TEXT NOT NULL,
	updated_at      TEXT NOT NULL
) STRICT;

CREATE TABLE medications (
	id         TEXT PRIMARY KEY,
	patient_id TEXT NOT NULL REFERENCES patients(id) ON DELETE CASCADE,
	user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	med_name   TEXT NOT NULL,
	med_dose   TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
) STRICT;

CREATE TABLE schedule (
	id            TEXT PRIMARY KEY,
	medication_id TEXT NOT NULL REFERENCES medications(id) ON DELETE CASCADE,
	med_time      TEXT NOT NULL,
	med_taken     INTEGER NOT NULL DEFAULT 0,
	created_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL
) STRICT;
`

// testServer builds a fully wired server over a temp SQLite database and
// returns its router for httptest use.
func testServer(t *testing.T) http.Handler {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(testSchema); err != nil {
		t.Fatalf("creating test schema: %v", err)
	}

	logger := &logging.Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	srv, err := New(Deps{
		Config: config.APIConfig{Host: "127.0.0.1", Port: 0},
		Security: config.SecurityConfig{JWT: config.JWTConfig{
			Secret:          testJWTSecret,
			AccessTokenTTL:  15,
			RefreshTokenTTL: 10080,
		}},
		Logger:      logger,
		Users:       auth.NewUserRepository(db),
		Ledger:      auth.NewTokenLedger(db),
		Patients:    patient.NewRepository(db),
		Medications: medication.NewRepository(db),
		Version:     "test",
	})
	if err != nil {
		t.Fatalf("creating server: %v", err)
	}

	return srv.buildRouter()
}

// doJSON performs a request with an optional JSON body and bearer token.
func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshalling request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// decodeBody unmarshals a recorded JSON response into v.
func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
}

// registerAndLogin creates an account and opens a session, returning the
// token pair.
func registerAndLogin(t *testing.T, h http.Handler, username, password string) tokenResponse {
	t.Helper()

	creds := map[string]string{"username": username, "password": password}
	if rec := doJSON(t, h, http.MethodPost, "/auth/register", "", creds); rec.Code != http.StatusCreated {
		t.Fatalf("register returned %d: %s", rec.Code, rec.Body.String())
	}

	rec := doJSON(t, h, http.MethodPost, "/auth/login", "", creds)
	if rec.Code != http.StatusOK {
		t.Fatalf("login returned %d: %s", rec.Code, rec.Body.String())
	}

	var tokens tokenResponse
	decodeBody(t, rec, &tokens)
	return tokens
}
