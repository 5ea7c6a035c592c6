// Package auth holds the credentials collaborators that produce the
// authentication headers attached to every API call.
package auth

import (
	"errors"
	"strconv"

	"softlayer-rpc/protocol"
)

// Credentials produces the headers that authenticate a call.
type Credentials interface {
	AuthenticationHeaders() map[string]any
	Validate() error
}

// APIKey authenticates with a username and API key.
type APIKey struct {
	Username string
	APIKey   string
}

func (a APIKey) Validate() error {
	switch {
	case a.Username == "" && a.APIKey == "":
		return errors.New("username and API key are required")
	case a.Username == "":
		return errors.New("username is required")
	case a.APIKey == "":
		return errors.New("API key is required")
	}
	return nil
}

func (a APIKey) AuthenticationHeaders() map[string]any {
	return map[string]any{
		protocol.AuthenticateHeader: map[string]any{
			"username": a.Username,
			"apiKey":   a.APIKey,
		},
	}
}

// String hides the key.
func (a APIKey) String() string {
	return "APIKey{" + a.Username + ", ****}"
}

// Token authenticates with a portal login token.
type Token struct {
	UserID    int
	AuthToken string
}

func (t Token) Validate() error {
	if t.UserID <= 0 {
		return errors.New("user id must be positive")
	}
	if t.AuthToken == "" {
		return errors.New("auth token is required")
	}
	return nil
}

func (t Token) AuthenticationHeaders() map[string]any {
	return map[string]any{
		protocol.AuthenticateHeader: map[string]any{
			"complexType": "PortalLoginToken",
			"userId":      t.UserID,
			"authToken":   t.AuthToken,
		},
	}
}

func (t Token) String() string {
	return "Token{user " + strconv.Itoa(t.UserID) + ", ****}"
}
