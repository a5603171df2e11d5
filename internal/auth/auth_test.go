package auth

import (
	"testing"
	"time"
)

func TestDisabledMode(t *testing.T) {
	m := NewManager(0)

	if m.Enabled() {
		t.Fatal("manager must start auth-disabled")
	}
	if got := m.Login("anyone", "anything"); got != NoAuthToken {
		t.Errorf("login: %q", got)
	}
	if !m.Validate("whatever") {
		t.Error("validate must accept anything in disabled mode")
	}
	if !m.Validate("") {
		t.Error("validate must accept the empty token in disabled mode")
	}
}

func TestTokenLifecycle(t *testing.T) {
	m := NewManager(time.Hour)
	if err := m.SetCredentials("admin", "secret"); err != nil {
		t.Fatal(err)
	}

	if tok := m.Login("admin", "wrong"); tok != "" {
		t.Errorf("wrong password must yield empty token, got %q", tok)
	}
	if tok := m.Login("other", "secret"); tok != "" {
		t.Errorf("wrong username must yield empty token, got %q", tok)
	}

	tok := m.Login("admin", "secret")
	if tok == "" || tok == NoAuthToken {
		t.Fatalf("login: %q", tok)
	}
	// 32 random bytes hex encoded.
	if len(tok) != 64 {
		t.Errorf("token length: %d", len(tok))
	}

	if !m.Validate(tok) {
		t.Error("freshly minted token must validate")
	}
	if m.Validate("not-a-token") {
		t.Error("unknown token must not validate")
	}

	m.Logout(tok)
	if m.Validate(tok) {
		t.Error("token must be invalid after logout")
	}
}

func TestTokenExpiry(t *testing.T) {
	m := NewManager(time.Hour)
	if err := m.SetCredentials("admin", "secret"); err != nil {
		t.Fatal(err)
	}

	tok := m.Login("admin", "secret")
	if !m.Validate(tok) {
		t.Fatal("token must validate before expiry")
	}

	m.Expire(tok)
	if m.Validate(tok) {
		t.Error("expired token must not validate")
	}
	// Expired tokens are evicted on observation.
	if m.Validate(tok) {
		t.Error("evicted token must stay invalid")
	}
}

func TestExpiredTokensEvictedOnLogin(t *testing.T) {
	m := NewManager(time.Hour)
	if err := m.SetCredentials("admin", "secret"); err != nil {
		t.Fatal(err)
	}

	old := m.Login("admin", "secret")
	m.Expire(old)

	// A fresh login opportunistically sweeps the expired entry.
	fresh := m.Login("admin", "secret")

	m.mu.Lock()
	_, oldPresent := m.tokens[old]
	_, freshPresent := m.tokens[fresh]
	m.mu.Unlock()

	if oldPresent {
		t.Error("expired token must be evicted on login")
	}
	if !freshPresent {
		t.Error("fresh token must be recorded")
	}
}

func TestTokensUnique(t *testing.T) {
	m := NewManager(time.Hour)
	if err := m.SetCredentials("admin", "secret"); err != nil {
		t.Fatal(err)
	}

	seen := make(map[string]bool)
	for range 16 {
		tok := m.Login("admin", "secret")
		if seen[tok] {
			t.Fatal("token minted twice")
		}
		seen[tok] = true
	}
}

func TestSetCredentials_EmptyDisables(t *testing.T) {
	m := NewManager(time.Hour)
	if err := m.SetCredentials("admin", "secret"); err != nil {
		t.Fatal(err)
	}

	tok := m.Login("admin", "secret")
	if tok == "" {
		t.Fatal("login failed")
	}

	if err := m.SetCredentials("", ""); err != nil {
		t.Fatal(err)
	}

	if m.Enabled() {
		t.Error("empty credentials must disable auth")
	}

	// Active tokens are cleared; disabled mode accepts everything, so
	// check the map directly.
	m.mu.Lock()
	remaining := len(m.tokens)
	m.mu.Unlock()
	if remaining != 0 {
		t.Errorf("tokens after disable: %d", remaining)
	}
}
