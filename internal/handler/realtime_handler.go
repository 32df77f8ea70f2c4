package handler

import (
	"chatsync-be/internal/pkg/logger"
	"chatsync-be/internal/pkg/serverutils"
	internalWS "chatsync-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

type RealtimeHandler struct {
	hub       *internalWS.Hub
	sends     internalWS.SendHandler
	jwtSecret string
	logger    logger.ILogger
}

func NewRealtimeHandler(hub *internalWS.Hub, sends internalWS.SendHandler, jwtSecret string, log logger.ILogger) *RealtimeHandler {
	return &RealtimeHandler{
		hub:       hub,
		sends:     sends,
		jwtSecret: jwtSecret,
		logger:    log,
	}
}

// ServeWs authenticates the handshake and upgrades it.
func (h *RealtimeHandler) ServeWs(c *fiber.Ctx) error {
	// Query param first (browsers cannot set headers on a websocket handshake)
	tokenStr := c.Query("token")
	if tokenStr == "" {
		tokenStr = serverutils.BearerToken(c)
	}

	userID, err := serverutils.ParseUserToken(h.jwtSecret, tokenStr)
	if err != nil {
		h.logger.Warn("RealtimeHandler", "Rejected WS handshake", map[string]interface{}{"error": err})
		return err
	}

	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	return websocket.New(func(conn *websocket.Conn) {
		h.logger.Info("RealtimeHandler", "Starting WebSocket session", map[string]interface{}{"user_id": userID})
		internalWS.ServeWs(h.hub, conn, userID, h.sends)
		h.logger.Info("RealtimeHandler", "WebSocket session ended", map[string]interface{}{"user_id": userID})
	})(c)
}

func (h *RealtimeHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/ws", h.ServeWs)
}
