package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/halvard/gebo/internal/apperr"
	"github.com/halvard/gebo/internal/protocol"
	"github.com/halvard/gebo/internal/store"
	"github.com/halvard/gebo/internal/testutil"
)

type fakeRelay struct {
	mu         sync.Mutex
	challenges int
	verifies   int
	failStep   string // "challenge" or "verify"
	expiresAt  time.Time
}

func (f *fakeRelay) FetchChallenge(_ context.Context, address string) (protocol.Challenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.challenges++
	if f.failStep == "challenge" {
		return protocol.Challenge{}, errors.New("relay unreachable")
	}
	return protocol.Challenge{ID: "ch-1", Text: "sign for " + address}, nil
}

func (f *fakeRelay) VerifyChallenge(_ context.Context, _, _, challengeID, signature string) (protocol.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifies++
	if f.failStep == "verify" {
		return protocol.Credential{}, errors.New("signature rejected")
	}
	if challengeID != "ch-1" || signature == "" {
		return protocol.Credential{}, errors.New("bad handshake")
	}
	return protocol.Credential{Token: "tok-fresh", ExpiresAt: f.expiresAt}, nil
}

type memCreds struct {
	mu    sync.Mutex
	items map[string]store.Credential
}

func newMemCreds() *memCreds {
	return &memCreds{items: make(map[string]store.Credential)}
}

func (m *memCreds) GetCredential(address string) (*store.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.items[address]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *memCreds) PutCredential(c store.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[c.Address] = c
	return nil
}

func newTestGuarantor(relay *fakeRelay, creds *memCreds) *Guarantor {
	g := NewGuarantor(relay, NewHMACSigner("test-key"), creds)
	return g
}

func TestEnsureValidSkipsRefreshWhenFresh(t *testing.T) {
	relay := &fakeRelay{expiresAt: time.Now().Add(time.Hour)}
	creds := newMemCreds()
	_ = creds.PutCredential(store.Credential{
		Address: "0xabc", Token: "tok-cached", ExpiresAt: time.Now().Add(time.Hour),
	})

	g := newTestGuarantor(relay, creds)
	if err := g.EnsureValid(context.Background(), "0xabc", "0x01"); err != nil {
		t.Fatalf("EnsureValid: %v", err)
	}
	if relay.challenges != 0 {
		t.Errorf("challenges = %d, want 0", relay.challenges)
	}
	tok, err := g.Token("0xabc")
	if err != nil || tok != "tok-cached" {
		t.Errorf("Token = %q, %v", tok, err)
	}
}

func TestEnsureValidRefreshesExpired(t *testing.T) {
	relay := &fakeRelay{expiresAt: time.Now().Add(time.Hour)}
	creds := newMemCreds()
	_ = creds.PutCredential(store.Credential{
		Address: "0xabc", Token: "tok-stale", ExpiresAt: time.Now().Add(-time.Minute),
	})

	g := newTestGuarantor(relay, creds)
	if err := g.EnsureValid(context.Background(), "0xabc", "0x01"); err != nil {
		t.Fatalf("EnsureValid: %v", err)
	}
	if relay.challenges != 1 || relay.verifies != 1 {
		t.Errorf("handshake calls = %d/%d, want 1/1", relay.challenges, relay.verifies)
	}
	tok, _ := g.Token("0xabc")
	if tok != "tok-fresh" {
		t.Errorf("token = %q, want tok-fresh", tok)
	}
}

func TestEnsureValidRefreshesMissing(t *testing.T) {
	relay := &fakeRelay{expiresAt: time.Now().Add(time.Hour)}
	g := newTestGuarantor(relay, newMemCreds())

	if err := g.EnsureValid(context.Background(), "0xabc", "0x01"); err != nil {
		t.Fatalf("EnsureValid: %v", err)
	}
	if relay.challenges != 1 {
		t.Errorf("challenges = %d, want 1", relay.challenges)
	}
}

func TestEnsureValidChallengeFailure(t *testing.T) {
	relay := &fakeRelay{failStep: "challenge"}
	g := newTestGuarantor(relay, newMemCreds())

	err := g.EnsureValid(context.Background(), "0xabc", "0x01")
	if !errors.Is(err, apperr.ErrAuthFailed) {
		t.Fatalf("err = %v, want ErrAuthFailed", err)
	}
}

func TestEnsureValidVerifyFailure(t *testing.T) {
	relay := &fakeRelay{failStep: "verify"}
	creds := newMemCreds()
	g := newTestGuarantor(relay, creds)

	err := g.EnsureValid(context.Background(), "0xabc", "0x01")
	if !errors.Is(err, apperr.ErrAuthFailed) {
		t.Fatalf("err = %v, want ErrAuthFailed", err)
	}
	// No partial state: nothing persisted on failure.
	if cred, _ := creds.GetCredential("0xabc"); cred != nil {
		t.Error("failed handshake must not persist a credential")
	}
}

func TestConcurrentRefreshCoalesces(t *testing.T) {
	relay := &fakeRelay{expiresAt: time.Now().Add(time.Hour)}
	creds := newMemCreds()
	g := newTestGuarantor(relay, creds)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if err := g.EnsureValid(context.Background(), "0xabc", "0x01"); err != nil {
				t.Errorf("EnsureValid: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	// Coalescing plus the in-flight recheck keeps this well below the
	// number of callers; with all callers racing the same key it is 1.
	if relay.verifies > 2 {
		t.Errorf("verifies = %d, want coalesced", relay.verifies)
	}
}

func TestGuarantorPersistsToSQLite(t *testing.T) {
	relay := &fakeRelay{expiresAt: time.Now().Add(time.Hour).UTC().Truncate(time.Second)}
	db := testutil.TestStore(t)
	g := NewGuarantor(relay, NewHMACSigner("test-key"), db)

	if err := g.EnsureValid(context.Background(), "0xabc", "0x01"); err != nil {
		t.Fatalf("EnsureValid: %v", err)
	}

	cred, err := db.GetCredential("0xabc")
	if err != nil {
		t.Fatalf("GetCredential: %v", err)
	}
	if cred == nil || cred.Token != "tok-fresh" || cred.ProfileID != "0x01" {
		t.Errorf("cred = %+v", cred)
	}

	// A second call hits the cache, not the relay.
	if err := g.EnsureValid(context.Background(), "0xabc", "0x01"); err != nil {
		t.Fatalf("EnsureValid: %v", err)
	}
	if relay.challenges != 1 {
		t.Errorf("challenges = %d, want 1", relay.challenges)
	}
}

func TestHMACSignerDeterministic(t *testing.T) {
	s := NewHMACSigner("key")
	a, err := s.Sign(context.Background(), "text")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := s.Sign(context.Background(), "text")
	if a != b || a == "" {
		t.Errorf("signatures differ: %q vs %q", a, b)
	}
	c, _ := NewHMACSigner("other").Sign(context.Background(), "text")
	if c == a {
		t.Error("different keys must produce different signatures")
	}
}
