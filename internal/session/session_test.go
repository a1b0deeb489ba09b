package session

import "testing"

func TestCurrentWhenLoggedOut(t *testing.T) {
	m := NewManager()
	if _, ok := m.Current(); ok {
		t.Fatal("new manager should have no session")
	}
}

func TestLoginLogout(t *testing.T) {
	m := NewManager()
	s := m.Login("0xabc", "0x01", "gavin")
	if s.Address != "0xabc" || s.ProfileID != "0x01" {
		t.Fatalf("unexpected session: %+v", s)
	}

	got, ok := m.Current()
	if !ok {
		t.Fatal("expected active session after login")
	}
	if got.Handle != "gavin" {
		t.Errorf("handle = %q, want gavin", got.Handle)
	}

	m.Logout()
	if _, ok := m.Current(); ok {
		t.Error("expected no session after logout")
	}
}

func TestLoginReplacesSession(t *testing.T) {
	m := NewManager()
	m.Login("0xabc", "0x01", "first")
	m.Login("0xdef", "0x02", "second")

	got, _ := m.Current()
	if got.Address != "0xdef" || got.ProfileID != "0x02" {
		t.Errorf("session not replaced: %+v", got)
	}
}
