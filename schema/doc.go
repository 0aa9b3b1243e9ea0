// Package schema describes collection fields and validates record
// payloads against them before they are sent to the backend.
//
//	posts := schema.MustNew(
//	    schema.Text("title", schema.Required(), schema.Max(120)),
//	    schema.Select("status", []string{"draft", "live"}),
//	    schema.Relation("author", "users", schema.MaxSelect(1)),
//	)
//	err := posts.Validate(map[string]any{"title": "Hello"})
//
// Fields returns the definition in the shape the backend expects when a
// collection is created.
package schema
