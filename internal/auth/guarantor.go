// Package auth implements the credential guarantor that runs before every
// mutating relay call: verify the cached credential, or perform the
// challenge-response handshake and persist the result.
package auth

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/halvard/gebo/internal/apperr"
	"github.com/halvard/gebo/internal/protocol"
	"github.com/halvard/gebo/internal/store"
)

// Relay is the subset of the relay client the guarantor needs.
type Relay interface {
	FetchChallenge(ctx context.Context, address string) (protocol.Challenge, error)
	VerifyChallenge(ctx context.Context, address, profileID, challengeID, signature string) (protocol.Credential, error)
}

// CredentialStore is the subset of the store the guarantor needs.
type CredentialStore interface {
	GetCredential(address string) (*store.Credential, error)
	PutCredential(c store.Credential) error
}

// DefaultLeeway is how close to expiry a credential is treated as expired.
const DefaultLeeway = time.Minute

// Guarantor ensures a valid credential exists before any write. Concurrent
// refreshes for the same address are coalesced, so two submissions racing on
// an expired credential perform one handshake.
type Guarantor struct {
	relay  Relay
	signer Signer
	creds  CredentialStore
	leeway time.Duration
	group  singleflight.Group

	now func() time.Time // test hook
}

// NewGuarantor creates a guarantor with the default expiry leeway.
func NewGuarantor(relay Relay, signer Signer, creds CredentialStore) *Guarantor {
	return &Guarantor{
		relay:  relay,
		signer: signer,
		creds:  creds,
		leeway: DefaultLeeway,
		now:    time.Now,
	}
}

// EnsureValid verifies that a fresh credential exists for address, refreshing
// it through the challenge-response handshake if missing or expired. There is
// no partial state: either a valid credential is stored on return, or an
// apperr.ErrAuthFailed is returned and nothing was written.
func (g *Guarantor) EnsureValid(ctx context.Context, address, profileID string) error {
	cred, err := g.creds.GetCredential(address)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrAuthFailed, err)
	}
	if cred != nil && !cred.Expired(g.now(), g.leeway) {
		return nil
	}

	_, err, _ = g.group.Do(address, func() (any, error) {
		return nil, g.refresh(ctx, address, profileID)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrAuthFailed, err)
	}
	return nil
}

// Token returns the stored credential token for address. Call after
// EnsureValid.
func (g *Guarantor) Token(address string) (string, error) {
	cred, err := g.creds.GetCredential(address)
	if err != nil {
		return "", err
	}
	if cred == nil {
		return "", fmt.Errorf("%w: no credential for %s", apperr.ErrAuthFailed, address)
	}
	return cred.Token, nil
}

// refresh performs the handshake. A coalesced caller may arrive after another
// flight already refreshed, so the cache is re-checked first.
func (g *Guarantor) refresh(ctx context.Context, address, profileID string) error {
	if cred, err := g.creds.GetCredential(address); err == nil && cred != nil && !cred.Expired(g.now(), g.leeway) {
		return nil
	}

	challenge, err := g.relay.FetchChallenge(ctx, address)
	if err != nil {
		return fmt.Errorf("challenge: %v", err)
	}

	signature, err := g.signer.Sign(ctx, challenge.Text)
	if err != nil {
		return fmt.Errorf("sign: %v", err)
	}

	issued, err := g.relay.VerifyChallenge(ctx, address, profileID, challenge.ID, signature)
	if err != nil {
		return fmt.Errorf("verify: %v", err)
	}

	return g.creds.PutCredential(store.Credential{
		Address:   address,
		ProfileID: profileID,
		Token:     issued.Token,
		ExpiresAt: issued.ExpiresAt,
	})
}
