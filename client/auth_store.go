package client

import (
	"encoding/json"
	"slices"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthChangeFunc is called after the stored token or record changes.
type AuthChangeFunc func(token string, record json.RawMessage)

// AuthStore holds the current auth token and record. It is safe for
// concurrent use.
type AuthStore struct {
	mu     sync.RWMutex
	token  string
	record json.RawMessage
	admin  bool

	nextID    int
	listeners []authListener

	now func() time.Time
}

type authListener struct {
	id int
	fn AuthChangeFunc
}

// NewAuthStore creates an empty store.
func NewAuthStore() *AuthStore {
	return &AuthStore{now: time.Now}
}

// Token returns the raw token, or "" when logged out.
func (s *AuthStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Record returns the authenticated record as JSON.
func (s *AuthStore) Record() json.RawMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.record)
}

// RecordID returns the id of the authenticated record.
func (s *AuthStore) RecordID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var r struct {
		ID string `json:"id"`
	}
	if len(s.record) > 0 {
		_ = json.Unmarshal(s.record, &r)
	}
	return r.ID
}

// IsAdmin reports whether the token belongs to an admin.
func (s *AuthStore) IsAdmin() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.admin
}

// LoggedIn reports whether a token is stored, regardless of expiry.
func (s *AuthStore) LoggedIn() bool {
	return s.Token() != ""
}

// Expiry returns the token's exp claim. ok is false for a missing or
// unparsable token or one without exp.
func (s *AuthStore) Expiry() (exp time.Time, ok bool) {
	token := s.Token()
	if token == "" {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	e, err := claims.GetExpirationTime()
	if err != nil || e == nil {
		return time.Time{}, false
	}
	return e.Time, true
}

// IsValid reports whether a token is stored and not yet expired. The
// signature is not verified; only the backend can do that.
func (s *AuthStore) IsValid() bool {
	exp, ok := s.Expiry()
	return ok && s.now().Before(exp)
}

// Save stores a token and record and notifies listeners.
func (s *AuthStore) Save(token string, record json.RawMessage, admin bool) {
	s.mu.Lock()
	s.token = token
	s.record = slices.Clone(record)
	s.admin = admin
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	for _, l := range listeners {
		l.fn(token, slices.Clone(record))
	}
}

// Clear logs out.
func (s *AuthStore) Clear() {
	s.Save("", nil, false)
}

// OnChange registers fn and returns a function that removes it.
func (s *AuthStore) OnChange(fn AuthChangeFunc) (remove func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, authListener{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.listeners = slices.DeleteFunc(s.listeners, func(l authListener) bool { return l.id == id })
	}
}
