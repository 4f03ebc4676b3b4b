package gateway

import (
	"net/url"
	"strings"
)

// AuthorizeConfig describes the gateway's OAuth authorize endpoint.
type AuthorizeConfig struct {
	AuthorizeURL string
	ClientID     string
	RedirectURL  string
	Scope        string
}

// URL builds the URL the browser is sent to in order to connect an
// account. state must come from StateStore.Issue.
func (c AuthorizeConfig) URL(state string) string {
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", c.ClientID)
	q.Set("state", state)
	scope := c.Scope
	if scope == "" {
		scope = "read_write"
	}
	q.Set("scope", scope)
	if c.RedirectURL != "" {
		q.Set("redirect_uri", c.RedirectURL)
	}
	sep := "?"
	if strings.Contains(c.AuthorizeURL, "?") {
		sep = "&"
	}
	return c.AuthorizeURL + sep + q.Encode()
}
