package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Signer produces the signature the relay expects over a challenge text.
// The actual signing scheme is the identity owner's concern; the workflow
// only needs a string it can send back.
type Signer interface {
	Sign(ctx context.Context, text string) (string, error)
}

// HMACSigner signs challenges with HMAC-SHA256 over a configured key.
type HMACSigner struct {
	key []byte
}

// NewHMACSigner creates a signer from the configured key.
func NewHMACSigner(key string) *HMACSigner {
	return &HMACSigner{key: []byte(key)}
}

// Sign returns the hex-encoded HMAC-SHA256 of text.
func (s *HMACSigner) Sign(_ context.Context, text string) (string, error) {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(text))
	return hex.EncodeToString(mac.Sum(nil)), nil
}
