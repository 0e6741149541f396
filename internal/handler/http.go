package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/LukeAtkinz/dashdice-sub004/internal/domain"
	"github.com/LukeAtkinz/dashdice-sub004/internal/matchmaking"
	"github.com/LukeAtkinz/dashdice-sub004/internal/websocket"
)

// Handler provides HTTP handlers for the matchmaking API
type Handler struct {
	engine *matchmaking.Engine
	hub    *websocket.Hub
	logger *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(engine *matchmaking.Engine, hub *websocket.Hub, logger *slog.Logger) *Handler {
	return &Handler{
		engine: engine,
		hub:    hub,
		logger: logger,
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// QueueRequest identifies one player's entry in one queue
type QueueRequest struct {
	PlayerID    string             `json:"player_id"`
	GameMode    string             `json:"game_mode"`
	SessionType domain.SessionType `json:"session_type"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	// WebSocket endpoint
	r.Get("/ws", h.HandleWebSocket)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/queues", func(r chi.Router) {
			r.Post("/join", h.Join)
			r.Post("/leave", h.Leave)
			r.Post("/match", h.FindMatch)
			r.Get("/stats", h.GetQueueStats)

			r.Get("/{gameMode}/{sessionType}/players/{playerID}/status", h.GetQueueStatus)
		})

		// WebSocket info endpoint
		r.Get("/ws/stats", h.GetWebSocketStats)
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]interface{}{
		"total_connections": h.hub.GetTotalConnections(),
	})
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck returns service readiness status
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "ready"})
}

// Join handles a player starting a game search
func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	var req domain.JoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	entryID, err := h.engine.Join(req)
	if err != nil {
		if domain.IsValidationError(err) {
			h.writeError(w, http.StatusBadRequest, err)
			return
		}
		h.logger.Error("failed to join queue", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    map[string]string{"entry_id": entryID},
	})
}

// Leave handles a player cancelling a game search. A player not in
// the queue is a normal outcome reported in the payload, not an error.
func (h *Handler) Leave(w http.ResponseWriter, r *http.Request) {
	var req QueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	if req.PlayerID == "" || req.GameMode == "" || !req.SessionType.Valid() {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	found := h.engine.Leave(req.PlayerID, req.GameMode, req.SessionType)
	h.writeSuccess(w, map[string]bool{"found": found})
}

// FindMatch runs a pairing pass for the requesting player. An empty
// pair means no match yet; callers poll until matched or give up.
func (h *Handler) FindMatch(w http.ResponseWriter, r *http.Request) {
	var req QueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	if req.PlayerID == "" || req.GameMode == "" || !req.SessionType.Valid() {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	pair := h.engine.FindMatch(req.PlayerID, req.GameMode, req.SessionType)
	h.writeSuccess(w, map[string]interface{}{
		"matched": len(pair) == 2,
		"players": pair,
	})
}

// GetQueueStatus returns a player's view of their queue
func (h *Handler) GetQueueStatus(w http.ResponseWriter, r *http.Request) {
	gameMode := chi.URLParam(r, "gameMode")
	sessionType := domain.SessionType(chi.URLParam(r, "sessionType"))
	playerID := chi.URLParam(r, "playerID")
	if gameMode == "" || playerID == "" || !sessionType.Valid() {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	status, found := h.engine.QueueStatus(playerID, gameMode, sessionType)
	if !found {
		h.writeError(w, http.StatusNotFound, domain.ErrEntryNotFound)
		return
	}

	h.writeSuccess(w, status)
}

// GetQueueStats returns the current length of every queue
func (h *Handler) GetQueueStats(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, h.engine.QueueLengths())
}
