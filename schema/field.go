package schema

// Kind is a field type understood by the backend.
type Kind string

const (
	KindText     Kind = "text"
	KindNumber   Kind = "number"
	KindBool     Kind = "bool"
	KindEmail    Kind = "email"
	KindURL      Kind = "url"
	KindDate     Kind = "date"
	KindSelect   Kind = "select"
	KindFile     Kind = "file"
	KindRelation Kind = "relation"
	KindJSON     Kind = "json"
)

var kinds = map[Kind]bool{
	KindText: true, KindNumber: true, KindBool: true, KindEmail: true, KindURL: true,
	KindDate: true, KindSelect: true, KindFile: true, KindRelation: true, KindJSON: true,
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool { return kinds[k] }

// Field is one column of a collection.
type Field struct {
	ID       string  `json:"id,omitempty"`
	Name     string  `json:"name"`
	Type     Kind    `json:"type"`
	Required bool    `json:"required"`
	Unique   bool    `json:"unique"`
	System   bool    `json:"system"`
	Options  Options `json:"options"`
}

// Options holds the kind-specific settings. Only the ones meaningful for
// the field's kind are set.
type Options struct {
	// Min and Max bound text length and number value.
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
	// Pattern is a regular expression text values must match.
	Pattern string `json:"pattern,omitempty"`

	OnlyDomains   []string `json:"onlyDomains,omitempty"`
	ExceptDomains []string `json:"exceptDomains,omitempty"`

	// Values lists the allowed select choices.
	Values    []string `json:"values,omitempty"`
	MaxSelect int      `json:"maxSelect,omitempty"`

	MaxSize   int64    `json:"maxSize,omitempty"`
	MimeTypes []string `json:"mimeTypes,omitempty"`
	Thumbs    []string `json:"thumbs,omitempty"`

	CollectionID  string `json:"collectionId,omitempty"`
	CascadeDelete bool   `json:"cascadeDelete,omitempty"`
}

// FieldOption customizes a Field.
type FieldOption func(*Field)

// Required marks the field as mandatory.
func Required() FieldOption { return func(f *Field) { f.Required = true } }

// Unique asks the backend to enforce unique values.
func Unique() FieldOption { return func(f *Field) { f.Unique = true } }

// System marks a field managed by the backend.
func System() FieldOption { return func(f *Field) { f.System = true } }

// WithID sets the field id assigned by the backend.
func WithID(id string) FieldOption { return func(f *Field) { f.ID = id } }

// Min sets the minimum text length or number value.
func Min(v float64) FieldOption { return func(f *Field) { f.Options.Min = &v } }

// Max sets the maximum text length or number value.
func Max(v float64) FieldOption { return func(f *Field) { f.Options.Max = &v } }

// Pattern restricts text values to a regular expression.
func Pattern(re string) FieldOption { return func(f *Field) { f.Options.Pattern = re } }

// OnlyDomains restricts email and url values to the given domains.
func OnlyDomains(domains ...string) FieldOption {
	return func(f *Field) { f.Options.OnlyDomains = domains }
}

// ExceptDomains rejects email and url values from the given domains.
func ExceptDomains(domains ...string) FieldOption {
	return func(f *Field) { f.Options.ExceptDomains = domains }
}

// MaxSelect caps how many entries a select, file or relation holds.
func MaxSelect(n int) FieldOption { return func(f *Field) { f.Options.MaxSelect = n } }

// MaxSize caps the size in bytes of each uploaded file.
func MaxSize(n int64) FieldOption { return func(f *Field) { f.Options.MaxSize = n } }

// MimeTypes restricts uploaded file types.
func MimeTypes(types ...string) FieldOption {
	return func(f *Field) { f.Options.MimeTypes = types }
}

// Thumbs lists thumbnail sizes such as "100x100".
func Thumbs(sizes ...string) FieldOption {
	return func(f *Field) { f.Options.Thumbs = sizes }
}

// CascadeDelete deletes the record when a related record is deleted.
func CascadeDelete() FieldOption { return func(f *Field) { f.Options.CascadeDelete = true } }

// NewField builds a field of any kind.
func NewField(name string, kind Kind, opts ...FieldOption) Field {
	f := Field{Name: name, Type: kind}
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

func Text(name string, opts ...FieldOption) Field   { return NewField(name, KindText, opts...) }
func Number(name string, opts ...FieldOption) Field { return NewField(name, KindNumber, opts...) }
func Bool(name string, opts ...FieldOption) Field   { return NewField(name, KindBool, opts...) }
func Email(name string, opts ...FieldOption) Field  { return NewField(name, KindEmail, opts...) }
func URL(name string, opts ...FieldOption) Field    { return NewField(name, KindURL, opts...) }
func Date(name string, opts ...FieldOption) Field   { return NewField(name, KindDate, opts...) }
func File(name string, opts ...FieldOption) Field   { return NewField(name, KindFile, opts...) }
func JSON(name string, opts ...FieldOption) Field   { return NewField(name, KindJSON, opts...) }

// Select builds a select field with the allowed values.
func Select(name string, values []string, opts ...FieldOption) Field {
	f := NewField(name, KindSelect, opts...)
	f.Options.Values = values
	return f
}

// Relation builds a relation to records of collectionID.
func Relation(name, collectionID string, opts ...FieldOption) Field {
	f := NewField(name, KindRelation, opts...)
	f.Options.CollectionID = collectionID
	return f
}
