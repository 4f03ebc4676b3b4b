package ledger

import (
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/guiartbp/Hackathon-QITech-sub002/internal/apperr"
)

// Type enumerates the kinds of balance-affecting events.
type Type string

const (
	TypeDeposit       Type = "DEPOSIT"
	TypeWithdrawal    Type = "WITHDRAWAL"
	TypeInvestment    Type = "INVESTMENT"
	TypeReturn        Type = "RETURN"
	TypePixDeposit    Type = "PIX_DEPOSIT"
	TypePixWithdrawal Type = "PIX_WITHDRAWAL"
)

// Status is the lifecycle state of a transaction. PENDING is the only
// non-terminal state.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

const (
	maxDescriptionLength = 255
	maxReferenceLength   = 128
)

// MaxAmount bounds a single transaction so it fits NUMERIC(20,2).
var MaxAmount = decimal.New(1, 15)

// ParseType normalises and validates a transaction type.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case TypeDeposit, TypeWithdrawal, TypeInvestment, TypeReturn, TypePixDeposit, TypePixWithdrawal:
		return t, nil
	}
	return "", fmt.Errorf("unknown transaction type %q: %w", s, apperr.ErrValidation)
}

// Credit reports whether a completed transaction of this type increases the
// wallet balance.
func (t Type) Credit() bool {
	switch t {
	case TypeDeposit, TypeReturn, TypePixDeposit:
		return true
	}
	return false
}

// ParseStatus normalises and validates a status.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case StatusPending, StatusCompleted, StatusFailed, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("unknown status %q: %w", s, apperr.ErrValidation)
}

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Transaction is a single ledger entry. ProcessedAt is set iff Status is terminal.
type Transaction struct {
	ID                string
	WalletID          string
	UserID            string
	Type              Type
	Amount            decimal.Decimal
	Description       string
	Status            Status
	ExternalReference string
	Metadata          Metadata
	ProcessedAt       *time.Time
	CreatedAt         time.Time
}

// View is the JSON shape exposed by the API.
type View struct {
	ID                string          `json:"id"`
	WalletID          string          `json:"carteiraId"`
	UserID            string          `json:"uidUsuario"`
	Type              Type            `json:"tipo"`
	Amount            decimal.Decimal `json:"valor"`
	Description       string          `json:"descricao"`
	Status            Status          `json:"status"`
	ExternalReference string          `json:"referenciaExterna,omitempty"`
	Metadata          Metadata        `json:"metadata,omitempty"`
	ProcessedAt       *time.Time      `json:"processadoEm"`
	CreatedAt         time.Time       `json:"createdAt"`
}

// View converts the transaction to its API representation.
func (t Transaction) View() View {
	return View{
		ID:                t.ID,
		WalletID:          t.WalletID,
		UserID:            t.UserID,
		Type:              t.Type,
		Amount:            t.Amount,
		Description:       t.Description,
		Status:            t.Status,
		ExternalReference: t.ExternalReference,
		Metadata:          t.Metadata,
		ProcessedAt:       t.ProcessedAt,
		CreatedAt:         t.CreatedAt,
	}
}

// RecordInput captures the data required to append a PENDING transaction.
type RecordInput struct {
	WalletID    string
	UserID      string
	Type        Type
	Amount      decimal.Decimal
	Description string
	Reference   string
	Metadata    Metadata
}

// Validate checks everything that can be checked without the stores.
func (in RecordInput) Validate() error {
	if strings.TrimSpace(in.WalletID) == "" {
		return fmt.Errorf("carteiraId is required: %w", apperr.ErrValidation)
	}
	if strings.TrimSpace(in.UserID) == "" {
		return fmt.Errorf("uidUsuario is required: %w", apperr.ErrValidation)
	}
	if _, err := ParseType(string(in.Type)); err != nil {
		return err
	}
	if err := ValidateAmount(in.Amount); err != nil {
		return err
	}
	desc := strings.TrimSpace(in.Description)
	if desc == "" {
		return fmt.Errorf("descricao is required: %w", apperr.ErrValidation)
	}
	if len(desc) > maxDescriptionLength {
		return fmt.Errorf("descricao exceeds %d characters: %w", maxDescriptionLength, apperr.ErrValidation)
	}
	if len(in.Reference) > maxReferenceLength {
		return fmt.Errorf("referenciaExterna exceeds %d characters: %w", maxReferenceLength, apperr.ErrValidation)
	}
	return in.Metadata.Validate()
}

// Normalize validates in and returns the form ledgers store: canonical type,
// trimmed identifiers and text, and a private copy of the metadata.
func (in RecordInput) Normalize() (RecordInput, error) {
	if err := in.Validate(); err != nil {
		return RecordInput{}, err
	}
	t, err := ParseType(string(in.Type))
	if err != nil {
		return RecordInput{}, err
	}
	in.Type = t
	in.WalletID = strings.TrimSpace(in.WalletID)
	in.UserID = strings.TrimSpace(in.UserID)
	in.Description = strings.TrimSpace(in.Description)
	in.Reference = strings.TrimSpace(in.Reference)
	in.Metadata = maps.Clone(in.Metadata)
	return in, nil
}

// ValidateAmount requires a strictly positive amount with at most two
// fractional digits.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("valor must be greater than zero: %w", ErrInvalidAmount)
	}
	if !amount.Equal(amount.Round(2)) {
		return fmt.Errorf("valor must have at most 2 decimal places: %w", ErrInvalidAmount)
	}
	if amount.GreaterThan(MaxAmount) {
		return fmt.Errorf("valor exceeds maximum: %w", ErrInvalidAmount)
	}
	return nil
}

func checkTransition(tx Transaction, to Status) error {
	if to == StatusPending {
		return fmt.Errorf("transaction %s: cannot move back to %s: %w", tx.ID, StatusPending, apperr.ErrInvalidTransition)
	}
	if !to.Terminal() {
		return fmt.Errorf("transaction %s: unknown target %q: %w", tx.ID, to, apperr.ErrInvalidTransition)
	}
	if tx.Status.Terminal() {
		return fmt.Errorf("transaction %s is already %s: %w", tx.ID, tx.Status, apperr.ErrInvalidTransition)
	}
	return nil
}
