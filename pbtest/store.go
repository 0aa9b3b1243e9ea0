package pbtest

import (
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DateLayout is the timestamp format of created and updated.
const DateLayout = "2006-01-02 15:04:05.000Z"

// UsersCollection is the auth collection every server starts with.
const UsersCollection = "users"

type collection struct {
	ID      string
	Name    string
	Type    string
	Records map[string]map[string]any
	Order   []string
	// Passwords by record id, for auth collections.
	Passwords map[string]string
}

func (c *collection) clone() *collection {
	out := &collection{
		ID:        c.ID,
		Name:      c.Name,
		Type:      c.Type,
		Records:   make(map[string]map[string]any, len(c.Records)),
		Order:     slices.Clone(c.Order),
		Passwords: maps.Clone(c.Passwords),
	}
	for id, r := range c.Records {
		out.Records[id] = maps.Clone(r)
	}
	return out
}

// store holds collections and their records. Callers hold Server.mu.
type store struct {
	collections map[string]*collection
}

func newStore() *store {
	st := &store{collections: make(map[string]*collection)}
	st.ensure(UsersCollection, "auth")
	return st
}

func (st *store) clone() *store {
	out := &store{collections: make(map[string]*collection, len(st.collections))}
	for name, c := range st.collections {
		out.collections[name] = c.clone()
	}
	return out
}

func (st *store) ensure(name, typ string) *collection {
	if c, ok := st.collections[name]; ok {
		return c
	}
	c := &collection{
		ID:        newID(),
		Name:      name,
		Type:      typ,
		Records:   make(map[string]map[string]any),
		Passwords: make(map[string]string),
	}
	st.collections[name] = c
	return c
}

func (st *store) insert(name string, data map[string]any) map[string]any {
	c := st.ensure(name, "base")
	now := time.Now().UTC().Format(DateLayout)

	rec := maps.Clone(data)
	if rec == nil {
		rec = map[string]any{}
	}
	id, _ := rec["id"].(string)
	if id == "" {
		id = newID()
	}
	if pw, ok := rec["password"].(string); ok {
		c.Passwords[id] = pw
	}
	delete(rec, "password")
	delete(rec, "passwordConfirm")

	rec["id"] = id
	rec["collectionId"] = c.ID
	rec["collectionName"] = c.Name
	rec["created"] = now
	rec["updated"] = now
	c.Records[id] = rec
	c.Order = append(c.Order, id)
	return maps.Clone(rec)
}

func (st *store) get(name, id string) (map[string]any, bool) {
	c, ok := st.collections[name]
	if !ok {
		return nil, false
	}
	rec, ok := c.Records[id]
	if !ok {
		return nil, false
	}
	return maps.Clone(rec), true
}

func (st *store) update(name, id string, patch map[string]any) (map[string]any, bool) {
	c, ok := st.collections[name]
	if !ok {
		return nil, false
	}
	rec, ok := c.Records[id]
	if !ok {
		return nil, false
	}
	for k, v := range patch {
		switch k {
		case "id", "collectionId", "collectionName", "created", "updated", "passwordConfirm", "oldPassword":
		case "password":
			if pw, ok := v.(string); ok {
				c.Passwords[id] = pw
			}
		default:
			rec[k] = v
		}
	}
	rec["updated"] = time.Now().UTC().Format(DateLayout)
	return maps.Clone(rec), true
}

func (st *store) remove(name, id string) (map[string]any, bool) {
	c, ok := st.collections[name]
	if !ok {
		return nil, false
	}
	rec, ok := c.Records[id]
	if !ok {
		return nil, false
	}
	delete(c.Records, id)
	delete(c.Passwords, id)
	c.Order = slices.DeleteFunc(c.Order, func(v string) bool { return v == id })
	return rec, true
}

// list returns the records of name that match filter, in sort order.
func (st *store) list(name, filter, sort string) ([]map[string]any, error) {
	c, ok := st.collections[name]
	if !ok {
		return nil, nil
	}
	conds, err := parseFilter(filter)
	if err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0, len(c.Order))
	for _, id := range c.Order {
		rec := c.Records[id]
		if matches(rec, conds) {
			out = append(out, maps.Clone(rec))
		}
	}

	if field, desc := strings.CutPrefix(sort, "-"); field != "" {
		slices.SortStableFunc(out, func(a, b map[string]any) int {
			cmp := strings.Compare(fmt.Sprint(a[field]), fmt.Sprint(b[field]))
			if desc {
				return -cmp
			}
			return cmp
		})
	}
	return out, nil
}

// authenticate finds the auth record with identity as email or username.
func (st *store) authenticate(name, identity, password string) (map[string]any, bool) {
	c, ok := st.collections[name]
	if !ok || c.Type != "auth" {
		return nil, false
	}
	for _, id := range c.Order {
		rec := c.Records[id]
		if rec["email"] != identity && rec["username"] != identity {
			continue
		}
		if c.Passwords[id] != password {
			return nil, false
		}
		return maps.Clone(rec), true
	}
	return nil, false
}

type condition struct {
	field string
	value string
}

var conditionPattern = regexp.MustCompile(`^\s*([A-Za-z0-9_.]+)\s*=\s*(?:'([^']*)'|"([^"]*)")\s*$`)

// parseFilter accepts equality conditions joined with &&, e.g.
// status = 'active' && author = "abc".
func parseFilter(filter string) ([]condition, error) {
	if strings.TrimSpace(filter) == "" {
		return nil, nil
	}
	var conds []condition
	for _, part := range strings.Split(filter, "&&") {
		m := conditionPattern.FindStringSubmatch(part)
		if m == nil {
			return nil, fmt.Errorf("unsupported filter expression %q", strings.TrimSpace(part))
		}
		conds = append(conds, condition{field: m[1], value: m[2] + m[3]})
	}
	return conds, nil
}

func matches(rec map[string]any, conds []condition) bool {
	for _, c := range conds {
		if fmt.Sprint(rec[c.field]) != c.value {
			return false
		}
	}
	return true
}

// newID returns a 15 character lowercase alphanumeric record id.
func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:15]
}
