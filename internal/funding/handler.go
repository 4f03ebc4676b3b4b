package funding

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gofiber/fiber/v2"

	"github.com/guiartbp/Hackathon-QITech-sub002/internal/apperr"
	"github.com/guiartbp/Hackathon-QITech-sub002/internal/gateway"
	"github.com/guiartbp/Hackathon-QITech-sub002/internal/ledger"
	"github.com/guiartbp/Hackathon-QITech-sub002/internal/middleware"
)

// Handler exposes HTTP endpoints for wallets, wallet transactions and the
// gateway connection flow.
type Handler struct {
	service   *Service
	returnURL string
}

// NewHandler constructs a handler. returnURL is where the browser lands after
// a successful gateway callback.
func NewHandler(service *Service, returnURL string) *Handler {
	return &Handler{service: service, returnURL: returnURL}
}

func actorFrom(c *fiber.Ctx) (Actor, error) {
	uid, _ := c.Locals(middleware.LocalUserID).(string)
	if uid == "" {
		return Actor{}, apperr.ErrUnauthorized
	}
	role, _ := c.Locals(middleware.LocalRole).(string)
	return Actor{UserID: uid, Role: role}, nil
}

// CreateWallet ensures the caller has a wallet: 201 when created, 200 when it
// already existed.
func (h *Handler) CreateWallet(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	w, created, err := h.service.EnsureWallet(c.UserContext(), actor.UserID)
	if err != nil {
		return err
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.Status(status).JSON(w.View())
}

// MyWallet returns the caller's balances.
func (h *Handler) MyWallet(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	w, err := h.service.MyWallet(c.UserContext(), actor.UserID)
	if err != nil {
		return err
	}
	return c.JSON(w.View())
}

// ListTransactions lists the transactions of ?carteiraId, or of the caller's
// own wallet when it is omitted.
func (h *Handler) ListTransactions(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	txs, err := h.service.List(c.UserContext(), actor, c.Query("carteiraId"))
	if err != nil {
		return err
	}
	out := TransactionList{Data: make([]ledger.View, 0, len(txs))}
	for _, tx := range txs {
		out.Data = append(out.Data, tx.View())
	}
	return c.JSON(out)
}

// GetTransaction returns one transaction.
func (h *Handler) GetTransaction(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	tx, err := h.service.Get(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(tx.View())
}

// CreateTransaction records a transaction and applies the settlement policy.
func (h *Handler) CreateTransaction(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req CreateTransactionRequest
	if err := c.BodyParser(&req); err != nil {
		return fmt.Errorf("malformed body: %w", apperr.ErrValidation)
	}
	kind, err := ledger.ParseType(req.Type)
	if err != nil {
		return err
	}

	tx, err := h.service.Submit(c.UserContext(), actor, ledger.RecordInput{
		WalletID:    req.WalletID,
		UserID:      req.UserID,
		Type:        kind,
		Amount:      req.Amount,
		Description: req.Description,
		Reference:   req.Reference,
		Metadata:    req.Metadata,
	})
	switch {
	case err == nil:
		return c.Status(http.StatusCreated).JSON(tx.View())
	case errors.Is(err, ledger.ErrDuplicateTransaction):
		return c.Status(http.StatusOK).JSON(tx.View())
	default:
		return err
	}
}

// UpdateTransaction changes the status of a PENDING transaction. Any field
// other than status is rejected.
func (h *Handler) UpdateTransaction(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(c.Body(), &fields); err != nil {
		return fmt.Errorf("malformed body: %w", apperr.ErrValidation)
	}
	for name := range fields {
		if name != "status" {
			return fmt.Errorf("field %q cannot be updated: %w", name, apperr.ErrValidation)
		}
	}
	var req UpdateTransactionRequest
	if raw, ok := fields["status"]; !ok || json.Unmarshal(raw, &req.Status) != nil {
		return fmt.Errorf("status is required: %w", apperr.ErrValidation)
	}
	status, err := ledger.ParseStatus(req.Status)
	if err != nil {
		return err
	}

	tx, err := h.service.Settle(c.UserContext(), actor, c.Params("id"), status)
	if err != nil {
		return err
	}
	return c.JSON(tx.View())
}

// DeleteTransaction cancels a PENDING transaction. Records are never removed.
func (h *Handler) DeleteTransaction(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	tx, err := h.service.Cancel(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(tx.View())
}

// Connect starts the gateway OAuth flow.
func (h *Handler) Connect(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	u, err := h.service.ConnectURL(c.UserContext(), actor.UserID)
	if err != nil {
		return err
	}
	return c.JSON(ConnectResponse{URL: u})
}

// GatewayAccount reports the caller's connected gateway account.
func (h *Handler) GatewayAccount(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	st, err := h.service.GatewayAccount(c.UserContext(), actor.UserID)
	if err != nil {
		return err
	}
	return c.JSON(GatewayAccountResponse{
		AccountID:   st.AccountID,
		Scope:       st.Scope,
		LiveMode:    st.LiveMode,
		ConnectedAt: st.ConnectedAt,
		Usable:      st.Usable,
	})
}

// Callback receives the browser redirect from the gateway. The token stays on
// the server; the browser is sent back to the application.
func (h *Handler) Callback(c *fiber.Ctx) error {
	if reason := c.Query("error"); reason != "" {
		return fiber.NewError(http.StatusBadRequest, "gateway authorization denied")
	}
	_, err := h.service.CompleteConnect(c.UserContext(), c.Query("code"), c.Query("state"))
	if errors.Is(err, gateway.ErrMissingCode) {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "authorization code is required", "code": "validation_error"})
	}
	if err != nil {
		return err
	}
	return c.Redirect(withQuery(h.returnURL, "gateway", "connected"), http.StatusSeeOther)
}

func withQuery(raw, key, value string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}
