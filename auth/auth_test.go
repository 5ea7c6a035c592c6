package auth

import (
	"fmt"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestAPIKeyHeaders(t *testing.T) {
	c := qt.New(t)
	creds := APIKey{Username: "SL12345", APIKey: "abcdef"}
	c.Assert(creds.Validate(), qt.IsNil)
	c.Assert(creds.AuthenticationHeaders(), qt.DeepEquals, map[string]any{
		"authenticate": map[string]any{"username": "SL12345", "apiKey": "abcdef"},
	})
}

func TestAPIKeyValidate(t *testing.T) {
	c := qt.New(t)
	c.Assert(APIKey{}.Validate(), qt.ErrorMatches, "username and API key are required")
	c.Assert(APIKey{APIKey: "k"}.Validate(), qt.ErrorMatches, "username is required")
	c.Assert(APIKey{Username: "u"}.Validate(), qt.ErrorMatches, "API key is required")
}

func TestTokenHeaders(t *testing.T) {
	c := qt.New(t)
	creds := Token{UserID: 42, AuthToken: "tok"}
	c.Assert(creds.Validate(), qt.IsNil)
	c.Assert(creds.AuthenticationHeaders(), qt.DeepEquals, map[string]any{
		"authenticate": map[string]any{"complexType": "PortalLoginToken", "userId": 42, "authToken": "tok"},
	})
	c.Assert(Token{AuthToken: "tok"}.Validate(), qt.ErrorMatches, "user id must be positive")
	c.Assert(Token{UserID: 1}.Validate(), qt.ErrorMatches, "auth token is required")
}

func TestStringHidesSecrets(t *testing.T) {
	c := qt.New(t)
	c.Assert(fmt.Sprint(APIKey{Username: "u", APIKey: "secret"}), qt.Equals, "APIKey{u, ****}")
	c.Assert(fmt.Sprint(Token{UserID: 7, AuthToken: "secret"}), qt.Equals, "Token{user 7, ****}")
}
