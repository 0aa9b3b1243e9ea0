package schema

import (
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/kbukum/pbkit/errors"
	"github.com/kbukum/pbkit/validation"
)

// DateLayout is the backend's datetime format.
const DateLayout = "2006-01-02 15:04:05.000Z"

var dateLayouts = []string{DateLayout, "2006-01-02 15:04:05Z", time.RFC3339, "2006-01-02"}

// Schema is an ordered set of fields.
type Schema struct {
	fields   []Field
	index    map[string]int
	patterns map[string]*regexp.Regexp
}

// New builds a schema. Field names must be unique and kinds known.
func New(fields ...Field) (*Schema, error) {
	s := &Schema{
		fields:   slices.Clone(fields),
		index:    make(map[string]int, len(fields)),
		patterns: make(map[string]*regexp.Regexp),
	}

	v := validation.New()
	for i, f := range fields {
		key := fmt.Sprintf("fields[%d]", i)
		v.CollectionName(key+".name", f.Name)
		v.Custom(f.Type.Valid(), key+".type", fmt.Sprintf("unknown kind %q", f.Type))
		if _, dup := s.index[f.Name]; dup {
			v.AddError(key+".name", fmt.Sprintf("duplicate field %q", f.Name))
		}
		s.index[f.Name] = i

		if f.Options.Pattern != "" {
			re, err := regexp.Compile(f.Options.Pattern)
			if err != nil {
				v.AddError(key+".options.pattern", err.Error())
				continue
			}
			s.patterns[f.Name] = re
		}
	}
	if err := v.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// MustNew is New that panics on an invalid definition.
func MustNew(fields ...Field) *Schema {
	s, err := New(fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// Fields returns the definition payload used when creating a collection.
func (s *Schema) Fields() []Field {
	if s == nil {
		return nil
	}
	return slices.Clone(s.fields)
}

// Field looks up a field by name.
func (s *Schema) Field(name string) (Field, bool) {
	if s == nil {
		return Field{}, false
	}
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// Names returns the field names in definition order.
func (s *Schema) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// Validate checks a record payload. Keys not in the schema are ignored;
// system fields are never required from the caller. A nil schema accepts
// anything.
func (s *Schema) Validate(data map[string]any) error {
	return s.validate(data, false)
}

// ValidateRecord validates any JSON-encodable record, such as a typed
// struct, by its JSON form.
func (s *Schema) ValidateRecord(record any) error {
	if s == nil {
		return nil
	}
	data, err := toMap(record)
	if err != nil {
		return err
	}
	return s.validate(data, false)
}

// ValidatePatch validates a partial update: absent keys are not required.
func (s *Schema) ValidatePatch(record any) error {
	if s == nil {
		return nil
	}
	data, err := toMap(record)
	if err != nil {
		return err
	}
	return s.validate(data, true)
}

func (s *Schema) validate(data map[string]any, partial bool) error {
	if s == nil {
		return nil
	}

	v := validation.New()
	for _, f := range s.fields {
		value, present := data[f.Name]
		if partial && !present {
			continue
		}
		if !present || isEmpty(value) {
			if f.Required && !f.System {
				v.AddError(f.Name, "is required")
			}
			continue
		}
		s.checkValue(v, f, value)
	}
	return v.Validate()
}

func toMap(record any) (map[string]any, error) {
	if data, ok := record.(map[string]any); ok {
		return data, nil
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return nil, errors.Validation("record is not JSON encodable").WithCause(err)
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, errors.Validation("record must encode to a JSON object").WithCause(err)
	}
	return data, nil
}

func (s *Schema) checkValue(v *validation.Validator, f Field, value any) {
	switch f.Type {
	case KindText:
		str, ok := value.(string)
		if !ok {
			v.AddError(f.Name, "must be a string")
			return
		}
		n := float64(len([]rune(str)))
		if f.Options.Min != nil && n < *f.Options.Min {
			v.AddError(f.Name, fmt.Sprintf("must be at least %g characters", *f.Options.Min))
		}
		if f.Options.Max != nil && n > *f.Options.Max {
			v.AddError(f.Name, fmt.Sprintf("must be %g characters or less", *f.Options.Max))
		}
		if re := s.patterns[f.Name]; re != nil && !re.MatchString(str) {
			v.AddError(f.Name, "does not match required format")
		}

	case KindNumber:
		n, ok := toFloat(value)
		if !ok {
			v.AddError(f.Name, "must be a number")
			return
		}
		if f.Options.Min != nil {
			v.Min(f.Name, n, *f.Options.Min)
		}
		if f.Options.Max != nil {
			v.Max(f.Name, n, *f.Options.Max)
		}

	case KindBool:
		if _, ok := value.(bool); !ok {
			v.AddError(f.Name, "must be a boolean")
		}

	case KindEmail, KindURL:
		str, ok := value.(string)
		if !ok {
			v.AddError(f.Name, "must be a string")
			return
		}
		tag := "email"
		if f.Type == KindURL {
			tag = "url"
		}
		before := len(v.Errors())
		v.Tag(f.Name, str, tag)
		if len(v.Errors()) == before {
			checkDomain(v, f, domainOf(f.Type, str))
		}

	case KindDate:
		if _, ok := value.(time.Time); ok {
			return
		}
		str, ok := value.(string)
		if !ok || !validDate(str) {
			v.AddError(f.Name, "must be a valid date")
		}

	case KindSelect, KindFile, KindRelation:
		items, ok := toStrings(value)
		if !ok {
			v.AddError(f.Name, "must be a string or a list of strings")
			return
		}
		maxSelect := f.Options.MaxSelect
		if maxSelect <= 0 {
			maxSelect = 1
		}
		if len(items) > maxSelect {
			v.AddError(f.Name, fmt.Sprintf("must have at most %d entries", maxSelect))
		}
		for _, item := range items {
			switch f.Type {
			case KindSelect:
				v.OneOf(f.Name, item, f.Options.Values)
			case KindRelation:
				v.RecordID(f.Name, item)
			}
		}

	case KindJSON:
		if _, err := json.Marshal(value); err != nil {
			v.AddError(f.Name, "must be JSON encodable")
		}
	}
}

func validDate(s string) bool {
	for _, layout := range dateLayouts {
		if validation.Var(s, "datetime="+layout) {
			return true
		}
	}
	return false
}

func checkDomain(v *validation.Validator, f Field, domain string) {
	domain = strings.ToLower(domain)
	if len(f.Options.OnlyDomains) > 0 && !containsFold(f.Options.OnlyDomains, domain) {
		v.AddError(f.Name, "domain is not allowed")
	}
	if containsFold(f.Options.ExceptDomains, domain) {
		v.AddError(f.Name, "domain is not allowed")
	}
}

func domainOf(kind Kind, value string) string {
	if kind == KindEmail {
		if i := strings.LastIndexByte(value, '@'); i >= 0 {
			return value[i+1:]
		}
		return ""
	}
	host := value
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	if i := strings.LastIndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	return host
}

func containsFold(list []string, s string) bool {
	return slices.ContainsFunc(list, func(d string) bool { return strings.EqualFold(d, s) })
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []string:
		return len(v) == 0
	case []any:
		return len(v) == 0
	}
	return false
}

func toFloat(value any) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func toStrings(value any) ([]string, bool) {
	switch v := value.(type) {
	case string:
		return []string{v}, true
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}
