package client

import (
	"context"

	"github.com/kbukum/pbkit/schema"
)

// Schemas of the built-in collections.
var (
	UserSchema = schema.MustNew(
		schema.Text("username"),
		schema.Email("email"),
		schema.Bool("emailVisibility"),
		schema.Text("password", schema.Required(), schema.Min(8)),
		schema.Text("passwordConfirm", schema.Required()),
		schema.Bool("verified"),
	)

	AdminSchema = schema.MustNew(
		schema.Email("email", schema.Required()),
		schema.Text("password", schema.Required(), schema.Min(10)),
		schema.Text("passwordConfirm", schema.Required()),
	)

	CollectionSchema = schema.MustNew(
		schema.Text("name", schema.Required(), schema.Pattern(`^[A-Za-z0-9_]+$`)),
		schema.Select("type", []string{CollectionTypeBase, CollectionTypeAuth, CollectionTypeView}, schema.Required()),
		schema.JSON("schema"),
		schema.Bool("system"),
		schema.Text("listRule"),
		schema.Text("viewRule"),
		schema.Text("createRule"),
		schema.Text("updateRule"),
		schema.Text("deleteRule"),
	)
)

// Users returns the built-in users auth collection.
func Users(c *Client) *Collection[User] {
	return NewCollection[User](c, "users", UserSchema)
}

// Admins returns the admin accounts. Tokens obtained through it are
// stored as admin tokens.
func Admins(c *Client) *Collection[Admin] {
	return &Collection[Admin]{
		client:   c,
		name:     "admins",
		path:     "/api/admins",
		authPath: "/api/admins",
		schema:   AdminSchema,
		admin:    true,
	}
}

// Collections returns the collection definitions.
func Collections(c *Client) *Collection[CollectionModel] {
	return &Collection[CollectionModel]{
		client:   c,
		name:     "collections",
		path:     "/api/collections",
		authPath: "/api/collections",
		schema:   CollectionSchema,
	}
}

// CreateCollection creates a base collection with the fields of s.
func (c *Client) CreateCollection(ctx context.Context, name string, s *schema.Schema) (CollectionModel, error) {
	return Collections(c).Create(ctx, CollectionModel{
		Name:   name,
		Type:   CollectionTypeBase,
		Schema: s.Fields(),
	})
}
