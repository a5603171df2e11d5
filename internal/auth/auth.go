// Package auth issues and validates the opaque bearer tokens protecting
// the HTTP surface. The manager runs in one of two states: auth-enabled
// (a single username plus a bcrypt hash of the password) or
// auth-disabled, the development default when the process starts
// without credentials.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// NoAuthToken is the sentinel returned by Login in auth-disabled mode.
const NoAuthToken = "no-auth-required"

// DefaultTokenLifetime applies when no lifetime is configured.
const DefaultTokenLifetime = 24 * time.Hour

// Manager owns credential state and the active token set. One lock
// covers both; login and validate take it.
type Manager struct {
	mu       sync.Mutex
	enabled  bool
	username string
	passHash []byte
	lifetime time.Duration
	tokens   map[string]time.Time // token -> expiry

	// now is swappable for expiry tests.
	now func() time.Time
}

// NewManager creates a manager in auth-disabled mode with the given
// token lifetime (DefaultTokenLifetime when zero).
func NewManager(lifetime time.Duration) *Manager {
	if lifetime <= 0 {
		lifetime = DefaultTokenLifetime
	}

	return &Manager{
		lifetime: lifetime,
		tokens:   make(map[string]time.Time),
		now:      time.Now,
	}
}

// SetCredentials switches to auth-enabled mode with the given username
// and password. An empty username or password switches the manager to
// auth-disabled and clears any active tokens.
func (m *Manager) SetCredentials(username, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if username == "" || password == "" {
		m.enabled = false
		m.username = ""
		m.passHash = nil
		m.tokens = make(map[string]time.Time)
		slog.Info("authentication disabled")
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	m.enabled = true
	m.username = username
	m.passHash = hash

	return nil
}

// Enabled reports whether the manager requires credentials.
func (m *Manager) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

// Lifetime returns the configured token lifetime.
func (m *Manager) Lifetime() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lifetime
}

// Login verifies the supplied credentials and mints a fresh token. In
// auth-disabled mode the sentinel token is returned. On failure the
// empty string is returned; callers must treat "" as an authentication
// failure. Login never fails with an error.
func (m *Manager) Login(username, password string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.enabled {
		return NoAuthToken
	}

	// Username comparison is constant time; bcrypt's comparison is
	// constant time by construction. Both checks always run so a
	// wrong username costs the same as a wrong password.
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(m.username)) == 1
	passOK := bcrypt.CompareHashAndPassword(m.passHash, []byte(password)) == nil

	if !userOK || !passOK {
		slog.Warn("login failed", "username", username)
		return ""
	}

	m.evictExpired()

	token := mintToken()
	m.tokens[token] = m.now().Add(m.lifetime)

	slog.Info("login succeeded", "username", username)

	return token
}

// Validate reports whether the token grants access. Auth-disabled mode
// accepts everything. Expired tokens are evicted on observation.
func (m *Manager) Validate(token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.enabled {
		return true
	}

	expiry, ok := m.tokens[token]
	if !ok {
		return false
	}

	if !expiry.After(m.now()) {
		delete(m.tokens, token)
		return false
	}

	return true
}

// Logout removes the token if present.
func (m *Manager) Logout(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.tokens, token)
}

// Expire forces a token's expiry to the past. Used administratively and
// by tests.
func (m *Manager) Expire(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tokens[token]; ok {
		m.tokens[token] = m.now().Add(-time.Second)
	}
}

// evictExpired drops expired tokens. Caller holds m.mu.
func (m *Manager) evictExpired() {
	now := m.now()
	for token, expiry := range m.tokens {
		if !expiry.After(now) {
			delete(m.tokens, token)
		}
	}
}

// mintToken generates 32 bytes from the OS cryptographic RNG, hex
// encoded.
func mintToken() string {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		// crypto/rand never fails on supported platforms; if it does,
		// refusing to mint is the only safe answer.
		return ""
	}
	return hex.EncodeToString(raw)
}
