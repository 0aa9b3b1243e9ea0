package client

import (
	"encoding/json"

	"github.com/kbukum/pbkit/schema"
)

// Record holds the fields every record carries. Embed it in record types.
type Record struct {
	ID             string `json:"id,omitempty"`
	CollectionID   string `json:"collectionId,omitempty"`
	CollectionName string `json:"collectionName,omitempty"`
	Created        string `json:"created,omitempty"`
	Updated        string `json:"updated,omitempty"`
}

// User is a record of the built-in users auth collection.
type User struct {
	Record
	Username        string `json:"username,omitempty"`
	Email           string `json:"email,omitempty"`
	EmailVisibility bool   `json:"emailVisibility,omitempty"`
	Verified        bool   `json:"verified,omitempty"`
	Name            string `json:"name,omitempty"`
	Avatar          string `json:"avatar,omitempty"`
	// Password fields are only sent, never returned.
	Password        string `json:"password,omitempty"`
	PasswordConfirm string `json:"passwordConfirm,omitempty"`
}

// Admin is a backend administrator.
type Admin struct {
	Record
	Email           string `json:"email,omitempty"`
	Avatar          int    `json:"avatar,omitempty"`
	Password        string `json:"password,omitempty"`
	PasswordConfirm string `json:"passwordConfirm,omitempty"`
}

// CollectionModel is a collection definition.
type CollectionModel struct {
	Record
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Schema     []schema.Field `json:"schema"`
	System     bool           `json:"system,omitempty"`
	ListRule   *string        `json:"listRule"`
	ViewRule   *string        `json:"viewRule"`
	CreateRule *string        `json:"createRule"`
	UpdateRule *string        `json:"updateRule"`
	DeleteRule *string        `json:"deleteRule"`
	Options    map[string]any `json:"options,omitempty"`
	Indexes    []string       `json:"indexes,omitempty"`
}

// Collection types.
const (
	CollectionTypeBase = "base"
	CollectionTypeAuth = "auth"
	CollectionTypeView = "view"
)

// ListResult is one page of records.
type ListResult[T any] struct {
	Page       int `json:"page"`
	PerPage    int `json:"perPage"`
	TotalItems int `json:"totalItems"`
	TotalPages int `json:"totalPages"`
	Items      []T `json:"items"`
}

// AuthResult is returned by the auth endpoints.
type AuthResult[T any] struct {
	Token  string          `json:"token"`
	Record T               `json:"-"`
	Meta   json.RawMessage `json:"meta,omitempty"`
	// Raw is the undecoded record.
	Raw json.RawMessage `json:"-"`
}

// AuthProvider describes one OAuth2 provider.
type AuthProvider struct {
	Name                string `json:"name"`
	State               string `json:"state"`
	CodeVerifier        string `json:"codeVerifier"`
	CodeChallenge       string `json:"codeChallenge"`
	CodeChallengeMethod string `json:"codeChallengeMethod"`
	AuthURL             string `json:"authUrl"`
}

// AuthMethods lists the auth options enabled on a collection.
type AuthMethods struct {
	UsernamePassword bool           `json:"usernamePassword"`
	EmailPassword    bool           `json:"emailPassword"`
	AuthProviders    []AuthProvider `json:"authProviders"`
}

// OAuth2Payload completes an OAuth2 sign-in.
type OAuth2Payload struct {
	Provider     string `json:"provider" validate:"required"`
	Code         string `json:"code" validate:"required"`
	CodeVerifier string `json:"codeVerifier" validate:"required"`
	RedirectURL  string `json:"redirectUrl" validate:"required,url"`
}

// ExternalAuth links an auth record to an OAuth2 account.
type ExternalAuth struct {
	Record
	RecordID   string `json:"recordId"`
	Provider   string `json:"provider"`
	ProviderID string `json:"providerId"`
}
