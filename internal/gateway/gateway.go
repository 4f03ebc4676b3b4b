// Package gateway links platform users to connected accounts at the external
// payment processor: OAuth authorization-code exchange, CSRF state handling,
// replay protection for codes and sealed storage of the resulting tokens.
package gateway

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/guiartbp/Hackathon-QITech-sub002/internal/apperr"
)

var (
	// ErrMissingCode is returned before any network call when the callback
	// carried no authorization code.
	ErrMissingCode = fmt.Errorf("authorization code is required: %w", apperr.ErrValidation)

	// ErrInvalidState indicates the state parameter was absent, unknown,
	// expired or already used.
	ErrInvalidState = fmt.Errorf("invalid or expired state: %w", apperr.ErrValidation)

	// ErrCodeReplayed indicates the authorization code was already presented.
	ErrCodeReplayed = fmt.Errorf("authorization code already used: %w", apperr.ErrConflict)
)

// Token is the payload returned by the gateway's token endpoint. AccessToken
// and RefreshToken are secrets and must never be logged or sent to browsers.
type Token struct {
	AccessToken    string
	RefreshToken   string
	TokenType      string
	Scope          string
	AccountID      string
	PublishableKey string
	LiveMode       bool
}

// LogValue redacts the secret parts of the token.
func (t Token) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("account_id", t.AccountID),
		slog.String("scope", t.Scope),
		slog.Bool("livemode", t.LiveMode),
		slog.String("access_token", "[redacted]"),
	)
}

// String keeps the secret out of fmt verbs as well.
func (t Token) String() string {
	return fmt.Sprintf("Token{account=%s scope=%s livemode=%v}", t.AccountID, t.Scope, t.LiveMode)
}

// Exchanger trades an authorization code for a connected-account token.
type Exchanger interface {
	ExchangeCode(ctx context.Context, code string) (Token, error)
}
