package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/guiartbp/Hackathon-QITech-sub002/internal/apperr"
)

const (
	defaultExchangeTimeout = 10 * time.Second
	maxTokenResponseBytes  = 64 << 10
	tokenPath              = "/oauth/token"
)

// HTTPConfig configures the token endpoint client.
type HTTPConfig struct {
	BaseURL      string
	ClientSecret string
	Timeout      time.Duration
	HTTPClient   *http.Client
}

// HTTPExchanger performs the authorization-code grant against a Stripe
// Connect style token endpoint.
type HTTPExchanger struct {
	baseURL string
	secret  string
	timeout time.Duration
	client  *http.Client
}

// NewHTTPExchanger builds a token endpoint client.
func NewHTTPExchanger(cfg HTTPConfig) *HTTPExchanger {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultExchangeTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPExchanger{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		secret:  cfg.ClientSecret,
		timeout: timeout,
		client:  client,
	}
}

type tokenResponse struct {
	AccessToken          string `json:"access_token"`
	RefreshToken         string `json:"refresh_token"`
	TokenType            string `json:"token_type"`
	Scope                string `json:"scope"`
	LiveMode             bool   `json:"livemode"`
	StripeUserID         string `json:"stripe_user_id"`
	StripePublishableKey string `json:"stripe_publishable_key"`
}

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// ExchangeCode performs a single POST to the token endpoint. Every failure is
// reported as apperr.ErrGateway; a missed deadline additionally wraps
// context.DeadlineExceeded.
func (e *HTTPExchanger) ExchangeCode(ctx context.Context, code string) (Token, error) {
	if strings.TrimSpace(code) == "" {
		return Token{}, ErrMissingCode
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"client_secret": {e.secret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+tokenPath, strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, fmt.Errorf("build token request: %w", apperr.ErrGateway)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Token{}, fmt.Errorf("token exchange timed out after %s: %w: %w", e.timeout, apperr.ErrGateway, context.DeadlineExceeded)
		}
		// the url.Error text only carries the endpoint; the secret travels in the body
		return Token{}, fmt.Errorf("token exchange request failed: %w", apperr.ErrGateway)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseBytes))
	if err != nil {
		return Token{}, fmt.Errorf("read token response: %w", apperr.ErrGateway)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var gwErr errorResponse
		_ = json.Unmarshal(body, &gwErr)
		kind := gwErr.Error
		if kind == "" {
			kind = "unknown"
		}
		return Token{}, fmt.Errorf("token exchange rejected with status %d (%s): %w", resp.StatusCode, kind, apperr.ErrGateway)
	}

	var payload tokenResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return Token{}, fmt.Errorf("malformed token response: %w", apperr.ErrGateway)
	}
	if payload.AccessToken == "" || payload.StripeUserID == "" {
		return Token{}, fmt.Errorf("incomplete token response: %w", apperr.ErrGateway)
	}

	return Token{
		AccessToken:    payload.AccessToken,
		RefreshToken:   payload.RefreshToken,
		TokenType:      payload.TokenType,
		Scope:          payload.Scope,
		AccountID:      payload.StripeUserID,
		PublishableKey: payload.StripePublishableKey,
		LiveMode:       payload.LiveMode,
	}, nil
}
