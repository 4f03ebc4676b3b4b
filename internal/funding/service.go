package funding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/guiartbp/Hackathon-QITech-sub002/internal/apperr"
	"github.com/guiartbp/Hackathon-QITech-sub002/internal/gateway"
	"github.com/guiartbp/Hackathon-QITech-sub002/internal/ledger"
	"github.com/guiartbp/Hackathon-QITech-sub002/internal/metrics"
	"github.com/guiartbp/Hackathon-QITech-sub002/internal/notification"
	"github.com/guiartbp/Hackathon-QITech-sub002/internal/wallet"
)

// Roles carried in the session token that may settle transactions.
const (
	RoleSettlement = "settlement"
	RoleAdmin      = "admin"
)

const publishTimeout = 2 * time.Second

// DefaultDeferredTypes stay PENDING after Submit and wait for an external
// settlement call.
var DefaultDeferredTypes = []ledger.Type{ledger.TypePixDeposit, ledger.TypePixWithdrawal}

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID string
	Role   string
}

// Privileged reports whether the actor may settle and read any wallet.
func (a Actor) Privileged() bool {
	return a.Role == RoleSettlement || a.Role == RoleAdmin
}

// StateStore issues and consumes OAuth state values.
type StateStore interface {
	Issue(ctx context.Context, userID string) (string, error)
	Consume(ctx context.Context, state string) (string, error)
}

// CodeGuard rejects authorization codes that were already presented.
type CodeGuard interface {
	Claim(ctx context.Context, code string) error
}

// Deps groups the collaborators of the Service. Publisher, Metrics and Logger
// are optional.
type Deps struct {
	Wallets       wallet.Store
	Ledger        ledger.Ledger
	Exchanger     gateway.Exchanger
	States        StateStore
	Codes         CodeGuard
	Sealer        *gateway.Sealer
	Vault         gateway.Vault
	Authorize     gateway.AuthorizeConfig
	Publisher     notification.Publisher
	Metrics       *metrics.Recorder
	Logger        *slog.Logger
	DeferredTypes []ledger.Type
}

// Service orchestrates wallet creation, ledger movements and the gateway
// account connection flow.
type Service struct {
	wallets   wallet.Store
	ledger    ledger.Ledger
	exchanger gateway.Exchanger
	states    StateStore
	codes     CodeGuard
	sealer    *gateway.Sealer
	vault     gateway.Vault
	authorize gateway.AuthorizeConfig
	publisher notification.Publisher
	metrics   *metrics.Recorder
	logger    *slog.Logger
	deferred  map[ledger.Type]bool
	now       func() time.Time
}

// NewService validates deps and builds the orchestrator.
func NewService(d Deps) (*Service, error) {
	if d.Wallets == nil {
		return nil, errors.New("wallet store is required")
	}
	if d.Ledger == nil {
		return nil, errors.New("ledger is required")
	}
	if d.Exchanger == nil {
		d.Exchanger = gateway.StaticExchanger{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Publisher == nil {
		d.Publisher = notification.NewLoggerNotifier(d.Logger)
	}
	if d.DeferredTypes == nil {
		d.DeferredTypes = DefaultDeferredTypes
	}
	deferred := make(map[ledger.Type]bool, len(d.DeferredTypes))
	for _, t := range d.DeferredTypes {
		deferred[t] = true
	}
	return &Service{
		wallets:   d.Wallets,
		ledger:    d.Ledger,
		exchanger: d.Exchanger,
		states:    d.States,
		codes:     d.Codes,
		sealer:    d.Sealer,
		vault:     d.Vault,
		authorize: d.Authorize,
		publisher: d.Publisher,
		metrics:   d.Metrics,
		logger:    d.Logger,
		deferred:  deferred,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// EnsureWallet returns the user's wallet, creating an empty one on first use.
// created is true only for the call that inserted it.
func (s *Service) EnsureWallet(ctx context.Context, userID string) (wallet.Wallet, bool, error) {
	return s.wallets.GetOrCreate(ctx, userID)
}

// MyWallet returns the balances of the caller's wallet.
func (s *Service) MyWallet(ctx context.Context, userID string) (wallet.Wallet, error) {
	return s.wallets.Get(ctx, userID)
}

// Movement describes a balance-affecting request on the user's own wallet.
type Movement struct {
	UserID      string
	Amount      decimal.Decimal
	Description string
	Reference   string
	Metadata    ledger.Metadata
}

// Deposit credits the user's wallet.
func (s *Service) Deposit(ctx context.Context, m Movement) (ledger.Transaction, error) {
	return s.move(ctx, ledger.TypeDeposit, m)
}

// Withdraw debits the user's wallet if enough is available for withdrawal.
func (s *Service) Withdraw(ctx context.Context, m Movement) (ledger.Transaction, error) {
	return s.move(ctx, ledger.TypeWithdrawal, m)
}

// Invest moves funds out of the wallet into an investment.
func (s *Service) Invest(ctx context.Context, m Movement) (ledger.Transaction, error) {
	return s.move(ctx, ledger.TypeInvestment, m)
}

// Return credits the proceeds of an investment.
func (s *Service) Return(ctx context.Context, m Movement) (ledger.Transaction, error) {
	return s.move(ctx, ledger.TypeReturn, m)
}

// PixDeposit records an incoming PIX transfer.
func (s *Service) PixDeposit(ctx context.Context, m Movement) (ledger.Transaction, error) {
	return s.move(ctx, ledger.TypePixDeposit, m)
}

// PixWithdraw records an outgoing PIX transfer.
func (s *Service) PixWithdraw(ctx context.Context, m Movement) (ledger.Transaction, error) {
	return s.move(ctx, ledger.TypePixWithdrawal, m)
}

func (s *Service) move(ctx context.Context, kind ledger.Type, m Movement) (ledger.Transaction, error) {
	w, _, err := s.wallets.GetOrCreate(ctx, m.UserID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	return s.submit(ctx, ledger.RecordInput{
		WalletID:    w.ID,
		UserID:      m.UserID,
		Type:        kind,
		Amount:      m.Amount,
		Description: m.Description,
		Reference:   m.Reference,
		Metadata:    m.Metadata,
	})
}

// Submit records a transaction on behalf of actor. Only privileged actors may
// record for another user.
//
// A reused external reference returns the original transaction together with
// ledger.ErrDuplicateTransaction and nothing is settled again.
func (s *Service) Submit(ctx context.Context, actor Actor, in ledger.RecordInput) (ledger.Transaction, error) {
	if actor.UserID == "" {
		return ledger.Transaction{}, apperr.ErrUnauthorized
	}
	if in.UserID != actor.UserID && !actor.Privileged() {
		return ledger.Transaction{}, fmt.Errorf("cannot record transactions for another user: %w", apperr.ErrForbidden)
	}
	return s.submit(ctx, in)
}

func (s *Service) submit(ctx context.Context, in ledger.RecordInput) (ledger.Transaction, error) {
	tx, err := s.ledger.Record(ctx, in)
	if err != nil {
		return tx, err
	}
	if s.deferred[tx.Type] {
		return tx, nil
	}
	return s.transition(ctx, tx.ID, ledger.StatusCompleted)
}

// Settle moves a PENDING transaction to status. Owners may only cancel;
// completing or failing requires the settlement or admin role.
func (s *Service) Settle(ctx context.Context, actor Actor, id string, status ledger.Status) (ledger.Transaction, error) {
	tx, err := s.Get(ctx, actor, id)
	if err != nil {
		return ledger.Transaction{}, err
	}
	if status != ledger.StatusCancelled && !actor.Privileged() {
		return tx, fmt.Errorf("status %s requires the %s role: %w", status, RoleSettlement, apperr.ErrForbidden)
	}
	return s.transition(ctx, tx.ID, status)
}

// Cancel soft-deletes a PENDING transaction.
func (s *Service) Cancel(ctx context.Context, actor Actor, id string) (ledger.Transaction, error) {
	return s.Settle(ctx, actor, id, ledger.StatusCancelled)
}

// Get returns a transaction visible to actor.
func (s *Service) Get(ctx context.Context, actor Actor, id string) (ledger.Transaction, error) {
	if actor.UserID == "" {
		return ledger.Transaction{}, apperr.ErrUnauthorized
	}
	tx, err := s.ledger.Get(ctx, id)
	if err != nil {
		return ledger.Transaction{}, err
	}
	if tx.UserID != actor.UserID && !actor.Privileged() {
		// other users' transactions are reported as missing
		return ledger.Transaction{}, fmt.Errorf("transaction %s: %w", id, apperr.ErrNotFound)
	}
	return tx, nil
}

// List returns the transactions of walletID, oldest first.
func (s *Service) List(ctx context.Context, actor Actor, walletID string) ([]ledger.Transaction, error) {
	if actor.UserID == "" {
		return nil, apperr.ErrUnauthorized
	}
	if strings.TrimSpace(walletID) == "" {
		w, err := s.wallets.Get(ctx, actor.UserID)
		if err != nil {
			return nil, err
		}
		walletID = w.ID
	}
	w, err := s.wallets.GetByID(ctx, walletID)
	if err != nil {
		return nil, err
	}
	if w.UserID != actor.UserID && !actor.Privileged() {
		return nil, fmt.Errorf("wallet %s: %w", walletID, apperr.ErrNotFound)
	}
	return s.ledger.ListByWallet(ctx, walletID)
}

func (s *Service) transition(ctx context.Context, id string, status ledger.Status) (ledger.Transaction, error) {
	tx, err := s.ledger.Transition(ctx, id, status)
	switch {
	case err == nil:
	case errors.Is(err, apperr.ErrInsufficientFunds):
		s.logger.Info("transaction failed for insufficient funds", "transaction_id", tx.ID, "wallet_id", tx.WalletID)
	case errors.Is(err, apperr.ErrInvariantViolation):
		s.logger.Error("balance invariant violation", "transaction_id", id, "error", err)
		return tx, err
	default:
		return tx, err
	}
	s.settled(ctx, tx)
	return tx, err
}

// settled reports a terminal transaction. Publishing is best effort.
func (s *Service) settled(ctx context.Context, tx ledger.Transaction) {
	if !tx.Status.Terminal() {
		return
	}
	s.metrics.Transaction(string(tx.Type), string(tx.Status))
	s.publish(ctx, notification.Event{
		Kind:          notification.KindTransactionSettled,
		TransactionID: tx.ID,
		WalletID:      tx.WalletID,
		UserID:        tx.UserID,
		Type:          string(tx.Type),
		Status:        string(tx.Status),
		Amount:        tx.Amount.StringFixed(2),
		OccurredAt:    s.now(),
	})
}

func (s *Service) publish(ctx context.Context, event notification.Event) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(pubCtx, event); err != nil {
		s.logger.Warn("publish event failed", "kind", event.Kind, "transaction_id", event.TransactionID, "error", err)
	}
}

// ConnectURL starts the gateway connection flow for userID and returns the
// URL the browser must visit.
func (s *Service) ConnectURL(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", apperr.ErrUnauthorized
	}
	if s.states == nil {
		return "", errors.New("gateway state store is not configured")
	}
	state, err := s.states.Issue(ctx, userID)
	if err != nil {
		return "", err
	}
	return s.authorize.URL(state), nil
}

// CompleteConnect finishes the flow started by ConnectURL. A missing code is
// rejected before anything else happens. The state must be one this service
// issued, and each code is exchanged at most once. The resulting tokens are
// sealed before they are stored.
func (s *Service) CompleteConnect(ctx context.Context, code, state string) (gateway.ConnectedAccount, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return gateway.ConnectedAccount{}, gateway.ErrMissingCode
	}
	if s.states == nil || s.codes == nil || s.sealer == nil || s.vault == nil {
		return gateway.ConnectedAccount{}, errors.New("gateway connection is not configured")
	}

	userID, err := s.states.Consume(ctx, state)
	if err != nil {
		return gateway.ConnectedAccount{}, err
	}
	if err := s.codes.Claim(ctx, code); err != nil {
		return gateway.ConnectedAccount{}, err
	}

	tok, err := s.exchanger.ExchangeCode(ctx, code)
	if err != nil {
		outcome := "rejected"
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = "timeout"
		}
		s.metrics.GatewayExchange(outcome)
		s.logger.Error("gateway code exchange failed", "user_id", userID, "outcome", outcome, "error", err)
		return gateway.ConnectedAccount{}, err
	}
	s.metrics.GatewayExchange("ok")

	access, err := s.sealer.Seal(tok.AccessToken)
	if err != nil {
		return gateway.ConnectedAccount{}, fmt.Errorf("seal access token: %w", err)
	}
	var refresh []byte
	if tok.RefreshToken != "" {
		if refresh, err = s.sealer.Seal(tok.RefreshToken); err != nil {
			return gateway.ConnectedAccount{}, fmt.Errorf("seal refresh token: %w", err)
		}
	}

	account := gateway.ConnectedAccount{
		UserID:             userID,
		AccountID:          tok.AccountID,
		Scope:              tok.Scope,
		LiveMode:           tok.LiveMode,
		SealedAccessToken:  access,
		SealedRefreshToken: refresh,
		ConnectedAt:        s.now(),
	}
	if err := s.vault.Save(ctx, account); err != nil {
		return gateway.ConnectedAccount{}, err
	}
	s.logger.Info("gateway account connected", "user_id", userID, "token", tok)
	s.publish(ctx, notification.Event{
		Kind:       notification.KindAccountConnected,
		UserID:     userID,
		AccountID:  tok.AccountID,
		OccurredAt: account.ConnectedAt,
	})
	return account, nil
}

// AccountStatus describes a user's linked gateway account without its tokens.
type AccountStatus struct {
	AccountID   string
	Scope       string
	LiveMode    bool
	ConnectedAt time.Time
	// Usable is false when the stored token no longer opens with the current
	// key and the user has to connect again.
	Usable bool
}

// GatewayAccount reports the connected account of userID.
func (s *Service) GatewayAccount(ctx context.Context, userID string) (AccountStatus, error) {
	if userID == "" {
		return AccountStatus{}, apperr.ErrUnauthorized
	}
	if s.sealer == nil || s.vault == nil {
		return AccountStatus{}, errors.New("gateway connection is not configured")
	}
	account, err := s.vault.Get(ctx, userID)
	if err != nil {
		return AccountStatus{}, err
	}
	status := AccountStatus{
		AccountID:   account.AccountID,
		Scope:       account.Scope,
		LiveMode:    account.LiveMode,
		ConnectedAt: account.ConnectedAt,
		Usable:      true,
	}
	if _, err := s.sealer.Open(account.SealedAccessToken); err != nil {
		s.logger.Warn("stored gateway token unreadable", "user_id", userID, "error", err)
		status.Usable = false
	}
	return status, nil
}
