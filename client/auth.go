package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	apperrors "github.com/kbukum/pbkit/errors"
	"github.com/kbukum/pbkit/logger"
	"github.com/kbukum/pbkit/validation"
)

type authResponse struct {
	Token  string          `json:"token"`
	Record json.RawMessage `json:"record"`
	Admin  json.RawMessage `json:"admin"`
	Meta   json.RawMessage `json:"meta"`
}

// AuthWithPassword signs in with a username or email and password and
// stores the returned token.
func (c *Collection[T]) AuthWithPassword(ctx context.Context, identity, password string) (*AuthResult[T], error) {
	if err := validation.New().
		Required("identity", identity).
		Required("password", password).
		Validate(); err != nil {
		return nil, err
	}
	body := map[string]string{"identity": identity, "password": password}
	return c.authenticate(ctx, "/auth-with-password", body)
}

// AuthWithOAuth2 completes an OAuth2 sign-in. createData is used for the
// new record when the account is not linked yet; it may be nil.
func (c *Collection[T]) AuthWithOAuth2(ctx context.Context, payload OAuth2Payload, createData map[string]any) (*AuthResult[T], error) {
	if err := validation.Validate(payload); err != nil {
		return nil, err
	}
	body := map[string]any{
		"provider":     payload.Provider,
		"code":         payload.Code,
		"codeVerifier": payload.CodeVerifier,
		"redirectUrl":  payload.RedirectURL,
	}
	if len(createData) > 0 {
		body["createData"] = createData
	}
	return c.authenticate(ctx, "/auth-with-oauth2", body)
}

// AuthRefresh exchanges the stored token for a fresh one.
func (c *Collection[T]) AuthRefresh(ctx context.Context) (*AuthResult[T], error) {
	if !c.client.auth.LoggedIn() {
		return nil, apperrors.Unauthorized("")
	}
	return c.authenticate(ctx, "/auth-refresh", nil)
}

func (c *Collection[T]) authenticate(ctx context.Context, endpoint string, body any) (*AuthResult[T], error) {
	opts := []SendOption{}
	if body != nil {
		opts = append(opts, WithBody(body))
	}
	resp, err := sendJSON[authResponse](ctx, c.client, c.authPath+endpoint, http.MethodPost, opts...)
	if err != nil {
		return nil, err
	}

	raw := resp.Record
	if len(raw) == 0 {
		raw = resp.Admin
	}
	out := &AuthResult[T]{Token: resp.Token, Meta: resp.Meta, Raw: raw}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out.Record); err != nil {
			return nil, apperrors.Internal(err)
		}
	}

	c.client.auth.Save(resp.Token, raw, c.admin)
	c.client.log.Debug("Authenticated", logger.Fields(logger.FieldPath, c.authPath+endpoint))
	return out, nil
}

// ListAuthMethods lists the sign-in methods enabled on the collection.
func (c *Collection[T]) ListAuthMethods(ctx context.Context) (*AuthMethods, error) {
	res, err := sendJSON[AuthMethods](ctx, c.client, c.authPath+"/auth-methods", http.MethodGet)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// RequestVerification sends a verification email.
func (c *Collection[T]) RequestVerification(ctx context.Context, email string) error {
	if err := validation.New().Tag("email", email, "email").Validate(); err != nil {
		return err
	}
	return c.post(ctx, "/request-verification", map[string]string{"email": email})
}

// ConfirmVerification confirms an email with the token from the mail.
func (c *Collection[T]) ConfirmVerification(ctx context.Context, token string) error {
	if err := validation.Required("token", token); err != nil {
		return err
	}
	return c.post(ctx, "/confirm-verification", map[string]string{"token": token})
}

// RequestPasswordReset sends a password reset email.
func (c *Collection[T]) RequestPasswordReset(ctx context.Context, email string) error {
	if err := validation.New().Tag("email", email, "email").Validate(); err != nil {
		return err
	}
	return c.post(ctx, "/request-password-reset", map[string]string{"email": email})
}

// ConfirmPasswordReset sets a new password with the token from the mail.
func (c *Collection[T]) ConfirmPasswordReset(ctx context.Context, token, password, passwordConfirm string) error {
	if err := validation.New().
		Required("token", token).
		Required("password", password).
		Custom(password == passwordConfirm, "passwordConfirm", "does not match password").
		Validate(); err != nil {
		return err
	}
	return c.post(ctx, "/confirm-password-reset", map[string]string{
		"token":           token,
		"password":        password,
		"passwordConfirm": passwordConfirm,
	})
}

// RequestEmailChange asks for the signed-in record's email to change.
func (c *Collection[T]) RequestEmailChange(ctx context.Context, newEmail string) error {
	if !c.client.auth.LoggedIn() {
		return apperrors.Unauthorized("")
	}
	if err := validation.New().Tag("newEmail", newEmail, "email").Validate(); err != nil {
		return err
	}
	return c.post(ctx, "/request-email-change", map[string]string{"newEmail": newEmail})
}

// ConfirmEmailChange applies an email change with the token from the mail.
func (c *Collection[T]) ConfirmEmailChange(ctx context.Context, token, password string) error {
	if err := validation.New().
		Required("token", token).
		Required("password", password).
		Validate(); err != nil {
		return err
	}
	return c.post(ctx, "/confirm-email-change", map[string]string{"token": token, "password": password})
}

// ListExternalAuths lists the OAuth2 accounts linked to the signed-in
// record.
func (c *Collection[T]) ListExternalAuths(ctx context.Context) ([]ExternalAuth, error) {
	path, err := c.externalAuthsPath()
	if err != nil {
		return nil, err
	}
	return sendJSON[[]ExternalAuth](ctx, c.client, path, http.MethodGet)
}

// UnlinkExternalAuth removes the link to an OAuth2 provider.
func (c *Collection[T]) UnlinkExternalAuth(ctx context.Context, provider string) error {
	if err := validation.Required("provider", provider); err != nil {
		return err
	}
	path, err := c.externalAuthsPath()
	if err != nil {
		return err
	}
	_, err = c.client.Send(ctx, path+"/"+url.PathEscape(provider), http.MethodDelete)
	return err
}

func (c *Collection[T]) externalAuthsPath() (string, error) {
	id := c.client.auth.RecordID()
	if !c.client.auth.LoggedIn() || id == "" {
		return "", apperrors.Unauthorized("")
	}
	return c.recordPath(id) + "/external-auths", nil
}

func (c *Collection[T]) post(ctx context.Context, endpoint string, body any) error {
	_, err := c.client.Send(ctx, c.authPath+endpoint, http.MethodPost, WithBody(body))
	return err
}
