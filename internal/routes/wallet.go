package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/guiartbp/Hackathon-QITech-sub002/internal/funding"
)

// RegisterWalletRoutes wires wallet-related endpoints.
func RegisterWalletRoutes(r fiber.Router, h *funding.Handler) {
	r.Post("/wallets", h.CreateWallet)
	r.Get("/wallets/me", h.MyWallet)
}

// RegisterTransactionRoutes wires the wallet transaction endpoints.
func RegisterTransactionRoutes(r fiber.Router, h *funding.Handler) {
	r.Get("/wallet-transactions", h.ListTransactions)
	r.Get("/wallet-transactions/:id", h.GetTransaction)
	r.Post("/wallet-transactions", h.CreateTransaction)
	r.Patch("/wallet-transactions/:id", h.UpdateTransaction)
	r.Delete("/wallet-transactions/:id", h.DeleteTransaction)
}
