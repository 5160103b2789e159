package ws

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// Handler streams the events of the session named by the :id route param.
// The id is checked before the upgrade so a bad one gets a plain 400.
func Handler(hub *Hub) fiber.Handler {
	stream := websocket.New(func(c *websocket.Conn) {
		sessionID, _ := c.Locals("session_id").(uuid.UUID)

		client := newClient(hub, c, sessionID)
		if !hub.Join(client) {
			_ = c.Close()
			return
		}

		go client.WritePump()
		client.ReadPump()
	})

	return func(c *fiber.Ctx) error {
		sessionID, err := uuid.Parse(c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid session id")
		}
		c.Locals("session_id", sessionID)
		return stream(c)
	}
}

// UpgradeMiddleware answers 426 to plain HTTP requests
func UpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return c.Next()
	}
}
