package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/quantpulse/regimescout/Internal/handlers/monitoring"
	"github.com/quantpulse/regimescout/Internal/handlers/risk"
	"github.com/quantpulse/regimescout/Internal/strategy/metrics"
	"github.com/quantpulse/regimescout/Internal/utils/config"
	"github.com/quantpulse/regimescout/Internal/utils/logger"
)

// Server exposes the scanner's runtime state over HTTP: scheduler
// status, recent decisions, tracked positions, and admission events.
// Start/stop control is JWT-protected; everything else is read-only.
type Server struct {
	Scheduler   *monitoring.Scheduler
	RiskManager *risk.Manager
	CfgStore    *config.Store
	JWTManager  *JWTManager
	Log         *logrus.Logger
}

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(logger.Middleware(s.Log))
	r.Use(CorsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    "healthy",
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Get("/api/status", s.HandleGetStatus)
	r.Get("/api/decisions", s.HandleGetDecisions)
	r.Get("/api/positions", s.HandleGetPositions)
	r.Get("/api/events", s.HandleGetEvents)
	r.Get("/api/stats", s.HandleGetStats)
	r.Get("/api/config", s.HandleGetConfig)
	r.Post("/api/token", s.HandleGenerateToken)

	// Scheduler control requires a token
	r.Group(func(r chi.Router) {
		r.Use(JWTAuthMiddleware(s.JWTManager))
		r.Post("/api/scheduler/start", s.HandleStartScheduler)
		r.Post("/api/scheduler/stop", s.HandleStopScheduler)
	})

	return r
}

func (s *Server) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, s.Scheduler.GetStatus())
}

func (s *Server) HandleGetDecisions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"decisions": s.Scheduler.RecentDecisions(limit),
	})
}

func (s *Server) HandleGetPositions(w http.ResponseWriter, r *http.Request) {
	positions := s.RiskManager.ActivePositions()
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"positions": positions,
		"total":     s.RiskManager.CountOpenPositions(),
	})
}

// HandleGetStats aggregates the recent decision window into per-strategy
// pass rates and regime distribution.
func (s *Server) HandleGetStats(w http.ResponseWriter, r *http.Request) {
	summary := metrics.Summarize(s.Scheduler.RecentDecisions(0))
	WriteJSON(w, http.StatusOK, summary)
}

func (s *Server) HandleGetEvents(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"events": s.RiskManager.GetEvents(50),
	})
}

// HandleGetConfig reports the live scanner and limits settings plus
// reload counters, so a rejected hot-reload is visible without log
// access.
func (s *Server) HandleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg := s.CfgStore.Get()
	reloads, rejected := s.CfgStore.ReloadCounts()
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"scanner":          cfg.Scanner,
		"limits":           cfg.Limits,
		"sessions":         cfg.Sessions,
		"reloads_applied":  reloads,
		"reloads_rejected": rejected,
	})
}

func (s *Server) HandleGenerateToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	token, err := s.JWTManager.GenerateToken(req.UserID, 24)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"token": token})
}

func (s *Server) HandleStartScheduler(w http.ResponseWriter, r *http.Request) {
	if err := s.Scheduler.Start(); err != nil {
		WriteError(w, http.StatusConflict, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"running": true})
}

func (s *Server) HandleStopScheduler(w http.ResponseWriter, r *http.Request) {
	s.Scheduler.Stop()
	WriteJSON(w, http.StatusOK, map[string]interface{}{"running": false})
}

func WriteJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
