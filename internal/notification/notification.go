package notification

import (
	"context"
	"log/slog"
	"time"
)

const (
	// KindTransactionSettled is emitted when a wallet transaction reaches a terminal status.
	KindTransactionSettled = "wallet.transaction.settled"
	// KindAccountConnected is emitted after a gateway account is linked to a user.
	KindAccountConnected = "gateway.account.connected"
)

// Event describes something downstream systems may react to. It never carries
// balances or gateway secrets.
type Event struct {
	Kind          string    `json:"kind"`
	TransactionID string    `json:"transaction_id,omitempty"`
	WalletID      string    `json:"wallet_id,omitempty"`
	UserID        string    `json:"user_id"`
	Type          string    `json:"type,omitempty"`
	Status        string    `json:"status,omitempty"`
	Amount        string    `json:"amount,omitempty"`
	AccountID     string    `json:"account_id,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Publisher delivers events to downstream systems.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close()
}

// LoggerNotifier writes events to the structured logger. It is used when no
// broker is configured or the broker is unreachable at startup.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging publisher.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Publish writes the event to the structured logger.
func (n *LoggerNotifier) Publish(_ context.Context, event Event) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification",
		"kind", event.Kind,
		"transaction_id", event.TransactionID,
		"wallet_id", event.WalletID,
		"status", event.Status,
	)
	return nil
}

// Close is a no-op.
func (n *LoggerNotifier) Close() {}
