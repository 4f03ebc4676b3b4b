package funding

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/guiartbp/Hackathon-QITech-sub002/internal/ledger"
)

// CreateTransactionRequest is the body of POST /wallet-transactions.
type CreateTransactionRequest struct {
	WalletID    string          `json:"carteiraId"`
	UserID      string          `json:"uidUsuario"`
	Type        string          `json:"tipo"`
	Amount      decimal.Decimal `json:"valor"`
	Description string          `json:"descricao"`
	Reference   string          `json:"referenciaExterna"`
	Metadata    ledger.Metadata `json:"metadata"`
}

// UpdateTransactionRequest is the body of PATCH /wallet-transactions/:id.
// Status is the only mutable field.
type UpdateTransactionRequest struct {
	Status string `json:"status"`
}

// ConnectResponse carries the gateway authorize URL.
type ConnectResponse struct {
	URL string `json:"url"`
}

// TransactionList wraps transaction views for list responses.
type TransactionList struct {
	Data []ledger.View `json:"data"`
}

// GatewayAccountResponse is the body of GET /gateway/account.
type GatewayAccountResponse struct {
	AccountID   string    `json:"accountId"`
	Scope       string    `json:"scope"`
	LiveMode    bool      `json:"liveMode"`
	ConnectedAt time.Time `json:"connectedAt"`
	Usable      bool      `json:"usable"`
}
