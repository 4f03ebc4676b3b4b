package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/guiartbp/Hackathon-QITech-sub002/internal/funding"
)

// RegisterGatewayRoutes wires the authenticated part of the gateway OAuth flow.
func RegisterGatewayRoutes(r fiber.Router, h *funding.Handler) {
	r.Post("/gateway/connect", h.Connect)
	r.Get("/gateway/account", h.GatewayAccount)
}

// RegisterCallbackRoute wires the unauthenticated OAuth callback behind limit.
func RegisterCallbackRoute(r fiber.Router, h *funding.Handler, limit fiber.Handler) {
	r.Get("/gateway/callback", limit, h.Callback)
}
