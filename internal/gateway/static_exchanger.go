package gateway

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// StaticExchanger simulates a successful gateway integration for local
// development. The account id is derived from the code so repeated runs are
// stable.
type StaticExchanger struct{}

// ExchangeCode approves any non-empty code.
func (StaticExchanger) ExchangeCode(_ context.Context, code string) (Token, error) {
	if code == "" {
		return Token{}, ErrMissingCode
	}
	sum := sha256.Sum256([]byte(code))
	return Token{
		AccessToken: "sk_test_" + hex.EncodeToString(sum[:12]),
		TokenType:   "bearer",
		Scope:       "read_write",
		AccountID:   "acct_" + hex.EncodeToString(sum[:8]),
	}, nil
}
