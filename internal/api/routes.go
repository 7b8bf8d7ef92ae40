package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vidforge/vidforge-agent/internal/generate"
	"github.com/vidforge/vidforge-agent/internal/session"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/status", statusHandler(cfg))
		r.Post("/generate", generateHandler(cfg))
		r.Get("/sessions", listSessionsHandler(cfg))
		r.Get("/sessions/{id}", getSessionHandler(cfg))
		r.Delete("/sessions/{id}", cleanupSessionHandler(cfg))
		r.Get("/playback/final", playbackHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: cfg.Version,
			UptimeS: int64(time.Since(cfg.StartTime).Seconds()),
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		total, _ := cfg.Repository.CountSessions(ctx)
		active := 0
		for _, s := range cfg.Sessions.List() {
			if s.State() == session.StateActive {
				active++
			}
		}

		state := "idle"
		if active > 0 {
			state = "generating"
		}

		resp := StatusResponse{
			State:          state,
			SessionsTotal:  total,
			ActiveSessions: active,
		}
		if cfg.Doctor != nil {
			if caps, err := cfg.Doctor.Get(ctx); err == nil && caps != nil {
				resp.Media = &MediaStatusResponse{
					HasFFmpeg:   caps.HasFFmpeg,
					HasFFprobe:  caps.HasFFprobe,
					LastProbeAt: caps.ProbedAt.Format(time.RFC3339),
				}
			}
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func generateHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Topic == "" {
			WriteError(w, http.StatusBadRequest, "topic is required", "BAD_REQUEST")
			return
		}

		outcome, err := cfg.Orchestrator.Run(r.Context(), generate.Mission{
			Topic:     req.Topic,
			Platform:  req.Platform,
			DurationS: req.DurationS,
			Category:  req.Category,
			Script:    req.Script,
			Voice:     req.Voice,
			Style:     req.Style,
		})
		if err != nil {
			if outcome != nil && outcome.SessionID != "" {
				// The session exists with partial artifacts; point the caller
				// at it alongside the failure.
				WriteJSON(w, http.StatusBadGateway, GenerateResponse{SessionID: outcome.SessionID})
				return
			}
			WriteError(w, http.StatusInternalServerError, err.Error(), "GENERATION_FAILED")
			return
		}

		resp := GenerateResponse{
			SessionID:    outcome.SessionID,
			SummaryPath:  outcome.SummaryPath,
			SyncAccuracy: outcome.SyncAccuracy,
			Cues:         CuesToResponse(outcome.Timings),
		}
		if outcome.Report != nil {
			resp.Issues = len(outcome.Report.Issues)
			resp.Warnings = len(outcome.Report.Warnings)
		}
		WriteJSON(w, http.StatusCreated, resp)
	}
}

func listSessionsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}

		rows, err := cfg.Repository.ListSessions(r.Context(), limit)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list sessions", "INTERNAL_ERROR")
			return
		}

		resp := SessionsResponse{Sessions: make([]SessionResponse, len(rows))}
		for i, row := range rows {
			resp.Sessions[i] = SessionToResponse(row)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getSessionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		row, err := cfg.Repository.GetSession(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if row == nil {
			WriteError(w, http.StatusNotFound, "session not found", "NOT_FOUND")
			return
		}

		steps, err := cfg.Repository.ListSteps(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		files, err := cfg.Repository.ListFiles(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}

		resp := SessionDetailResponse{
			Session: SessionToResponse(row),
			Steps:   make([]StepResponse, len(steps)),
			Files:   make([]FileResponse, len(files)),
		}
		for i, s := range steps {
			resp.Steps[i] = StepToResponse(s)
		}
		for i, f := range files {
			resp.Files[i] = FileToResponse(f)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func cleanupSessionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		keep := r.URL.Query().Get("keep_final_output") != "false"

		if _, ok := cfg.Sessions.Get(id); !ok {
			WriteError(w, http.StatusNotFound, "session not found", "NOT_FOUND")
			return
		}
		if err := cfg.Sessions.Cleanup(r.Context(), id, keep); err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func playbackHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.URL.Query().Get("session_id")
		name := r.URL.Query().Get("name")
		if sessionID == "" || name == "" {
			WriteError(w, http.StatusBadRequest, "session_id and name are required", "BAD_REQUEST")
			return
		}

		if err := cfg.Playback.ServeFinalOutput(w, r, sessionID, name); err != nil {
			cfg.Logger.Error("playback error", "error", err, "session_id", sessionID)
		}
	}
}
