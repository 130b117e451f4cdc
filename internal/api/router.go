package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Health check (no auth required)
	r.Get("/health", s.handleHealth)

	// NFC reader smoke test used by wall-mounted clients (no auth required)
	r.Get("/nfctest", s.handleNFCTest)

	// Auth endpoints (no auth required)
	r.Post("/auth/register", s.handleRegister)
	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/refresh", s.handleRefresh)

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Post("/auth/logout", s.handleLogout)
		r.Get("/auth/users", s.handleGetProfile)
		r.Put("/auth/users", s.handleUpdateProfile)

		// Patient endpoints
		r.Route("/patients", func(r chi.Router) {
			r.Get("/", s.handleListPatients)
			r.Post("/", s.handleCreatePatient)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetPatient)
				r.Put("/", s.handleUpdatePatient)
				r.Delete("/", s.handleDeletePatient)
			})
		})

		// Medication endpoints
		r.Route("/medications", func(r chi.Router) {
			r.Get("/", s.handleListMedications)
			r.Post("/", s.handleCreateMedication)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetMedication)
				r.Put("/", s.handleUpdateMedication)
				r.Delete("/", s.handleDeleteMedication)
				r.Get("/schedule", s.handleListSchedule)
				r.Post("/schedule", s.handleCreateScheduleEntry)
			})
		})

		// Schedule entries addressed directly
		r.Route("/schedule/{id}", func(r chi.Router) {
			r.Put("/", s.handleUpdateScheduleEntry)
			r.Delete("/", s.handleDeleteScheduleEntry)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}

// handleNFCTest is the unauthenticated echo route used to verify that a
// client's NFC reader can reach the server.
func (s *Server) handleNFCTest(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"nfc":    "reachable",
	})
}
