// Package protocol implements the HTTP client for the social-protocol relay:
// auth challenges, profile management, follows, and post submission. The
// relay's signing and indexing mechanics are opaque; this client only speaks
// its JSON API.
package protocol

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/halvard/gebo/internal/apperr"
	"github.com/halvard/gebo/internal/metadata"
)

// Client talks to the relay at BaseURL.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a relay client with the given timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// Challenge is a signable text issued by the relay for an address.
type Challenge struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Credential is an issued auth token bound to an address and profile.
type Credential struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Profile is the relay's view of a profile.
type Profile struct {
	ID      string `json:"id"`
	Handle  string `json:"handle"`
	OwnedBy string `json:"owned_by"`
}

// errBody is the relay's structured failure payload.
type errBody struct {
	Reason string `json:"reason"`
}

// FetchChallenge requests a signable challenge for address.
func (c *Client) FetchChallenge(ctx context.Context, address string) (Challenge, error) {
	var out Challenge
	err := c.doJSON(ctx, http.MethodPost, "/auth/challenge",
		map[string]string{"address": address}, &out, nil)
	return out, err
}

// VerifyChallenge submits the signed challenge and returns the issued
// credential.
func (c *Client) VerifyChallenge(ctx context.Context, address, profileID, challengeID, signature string) (Credential, error) {
	var out Credential
	err := c.doJSON(ctx, http.MethodPost, "/auth/verify", map[string]string{
		"address":      address,
		"profile_id":   profileID,
		"challenge_id": challengeID,
		"signature":    signature,
	}, &out, nil)
	return out, err
}

// SubmitPost publishes a metadata record as a signed post and returns the
// created post reference. A structured rejection surfaces as
// apperr.ErrSubmitRejected wrapping the relay's reason verbatim.
func (c *Client) SubmitPost(ctx context.Context, token string, record metadata.Record) (string, error) {
	var out struct {
		Reference string `json:"reference"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/posts", record, &out, func(status int, reason string) error {
		return fmt.Errorf("%w: %s", apperr.ErrSubmitRejected, reason)
	}, withToken(token))
	if err != nil {
		return "", err
	}
	return out.Reference, nil
}

// LatestPost returns the most recent post by a profile carrying the given
// type tag, or apperr.ErrNotFound when none exists.
func (c *Client) LatestPost(ctx context.Context, profileID string, tag metadata.Tag) (metadata.Record, error) {
	var out metadata.Record
	path := fmt.Sprintf("/profiles/%s/posts/latest?type=%s", profileID, tag)
	err := c.doJSON(ctx, http.MethodGet, path, nil, &out, func(status int, reason string) error {
		if status == http.StatusNotFound {
			return apperr.ErrNotFound
		}
		return fmt.Errorf("relay: %s", reason)
	})
	return out, err
}

// CreateProfile registers a new handle for address and returns the profile.
func (c *Client) CreateProfile(ctx context.Context, token, address, handle string) (Profile, error) {
	var out Profile
	err := c.doJSON(ctx, http.MethodPost, "/profiles", map[string]string{
		"address": address,
		"handle":  handle,
	}, &out, func(status int, reason string) error {
		return fmt.Errorf("%w: %s", apperr.ErrSubmitRejected, reason)
	}, withToken(token))
	return out, err
}

// Profile fetches a profile by id.
func (c *Client) Profile(ctx context.Context, profileID string) (Profile, error) {
	var out Profile
	err := c.doJSON(ctx, http.MethodGet, "/profiles/"+profileID, nil, &out, func(status int, reason string) error {
		if status == http.StatusNotFound {
			return apperr.ErrNotFound
		}
		return fmt.Errorf("relay: %s", reason)
	})
	return out, err
}

// Follow makes follower follow profileID.
func (c *Client) Follow(ctx context.Context, token, follower, profileID string) error {
	return c.doJSON(ctx, http.MethodPost, "/profiles/"+profileID+"/follow",
		map[string]string{"follower": follower}, nil, nil, withToken(token))
}

// Unfollow removes follower's follow of profileID.
func (c *Client) Unfollow(ctx context.Context, token, follower, profileID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/profiles/"+profileID+"/follow",
		map[string]string{"follower": follower}, nil, nil, withToken(token))
}

// IsFollowing reports whether follower follows profileID.
func (c *Client) IsFollowing(ctx context.Context, follower, profileID string) (bool, error) {
	var out struct {
		Following bool `json:"following"`
	}
	path := fmt.Sprintf("/profiles/%s/follow?follower=%s", profileID, follower)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out, nil); err != nil {
		return false, err
	}
	return out.Following, nil
}

type reqOption func(*http.Request)

func withToken(token string) reqOption {
	return func(r *http.Request) {
		if token != "" {
			r.Header.Set("Authorization", "Bearer "+token)
		}
	}
}

// doJSON performs one JSON round-trip. onReject, if non-nil, maps a non-2xx
// response (with its decoded reason) to a caller error; otherwise a generic
// error carrying the reason is returned.
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any,
	onReject func(status int, reason string) error, opts ...reqOption) error {

	var body *bytes.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("relay: encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("relay: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for _, opt := range opts {
		opt(req)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("relay: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errBody
		_ = json.NewDecoder(resp.Body).Decode(&eb)
		if eb.Reason == "" {
			eb.Reason = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
		if onReject != nil {
			return onReject(resp.StatusCode, eb.Reason)
		}
		return fmt.Errorf("relay: %s %s: %s", method, path, eb.Reason)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("relay: decode response: %w", err)
		}
	}
	return nil
}
