package wallet

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet is the per-user balance record. CurrentBalance always equals
// AvailableForWithdrawal + BlockedAmount and no field is ever negative.
type Wallet struct {
	ID                     string
	UserID                 string
	CurrentBalance         decimal.Decimal
	AvailableForWithdrawal decimal.Decimal
	BlockedAmount          decimal.Decimal
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// Delta is a signed adjustment applied to the three balance fields at once.
type Delta struct {
	Balance   decimal.Decimal
	Available decimal.Decimal
	Blocked   decimal.Decimal
}

// Balances is the read model returned to API callers.
type Balances struct {
	WalletID               string          `json:"id"`
	UserID                 string          `json:"uid_usuario"`
	CurrentBalance         decimal.Decimal `json:"saldo_atual"`
	AvailableForWithdrawal decimal.Decimal `json:"disponivel_saque"`
	BlockedAmount          decimal.Decimal `json:"valor_bloqueado"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

// View converts a wallet into its API representation.
func (w Wallet) View() Balances {
	return Balances{
		WalletID:               w.ID,
		UserID:                 w.UserID,
		CurrentBalance:         w.CurrentBalance,
		AvailableForWithdrawal: w.AvailableForWithdrawal,
		BlockedAmount:          w.BlockedAmount,
		UpdatedAt:              w.UpdatedAt,
	}
}
