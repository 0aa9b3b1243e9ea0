package httpclient

import "net/http"

// AuthType identifies the authentication method.
type AuthType int

const (
	// AuthNone disables authentication.
	AuthNone AuthType = iota
	// AuthBearer sends "Authorization: Bearer <token>".
	AuthBearer
	// AuthToken sends the token returned by a callback as the raw
	// Authorization header, skipping the header when it is empty.
	AuthToken
	// AuthCustom uses a custom request modifier.
	AuthCustom
)

// AuthConfig configures request authentication.
type AuthConfig struct {
	Type  AuthType
	Token string
	// TokenFunc supplies the current token for AuthToken.
	TokenFunc func() string
	// Apply modifies the request for AuthCustom.
	Apply func(*http.Request)
}

// BearerAuth creates a static bearer token auth config.
func BearerAuth(token string) *AuthConfig {
	return &AuthConfig{Type: AuthBearer, Token: token}
}

// TokenAuth reads the token on every request, so a token store can
// rotate it without rebuilding the client.
func TokenAuth(fn func() string) *AuthConfig {
	return &AuthConfig{Type: AuthToken, TokenFunc: fn}
}

// CustomAuth creates a custom auth config with a request modifier function.
func CustomAuth(fn func(*http.Request)) *AuthConfig {
	return &AuthConfig{Type: AuthCustom, Apply: fn}
}

func (a *AuthConfig) apply(req *http.Request) {
	if a == nil {
		return
	}
	switch a.Type {
	case AuthBearer:
		req.Header.Set("Authorization", "Bearer "+a.Token)
	case AuthToken:
		if a.TokenFunc == nil {
			return
		}
		if tok := a.TokenFunc(); tok != "" {
			req.Header.Set("Authorization", tok)
		}
	case AuthCustom:
		if a.Apply != nil {
			a.Apply(req)
		}
	}
}
