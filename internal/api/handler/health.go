package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/proctor/internal/database"
)

const Version = "0.3.0"

// ActiveSessionCounter reports the number of live sessions
type ActiveSessionCounter interface {
	ActiveSessions() int
}

type HealthHandler struct {
	db       database.Pinger
	sessions ActiveSessionCounter
}

// NewHealthHandler; db is nil when running without persistence
func NewHealthHandler(db database.Pinger, sessions ActiveSessionCounter) *HealthHandler {
	return &HealthHandler{db: db, sessions: sessions}
}

type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version,omitempty"`
	Sessions *int   `json:"active_sessions,omitempty"`
	Database string `json:"database,omitempty"`
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	resp := HealthResponse{
		Status:  "ok",
		Version: Version,
	}
	if h.sessions != nil {
		n := h.sessions.ActiveSessions()
		resp.Sessions = &n
	}
	return c.JSON(resp)
}

func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	if h.db == nil {
		return c.JSON(HealthResponse{Status: "ready", Database: "disabled"})
	}

	if err := database.HealthCheck(c.Context(), h.db); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(HealthResponse{
			Status:   "unavailable",
			Database: err.Error(),
		})
	}

	return c.JSON(HealthResponse{Status: "ready", Database: "ok"})
}
