package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/halvard/gebo/internal/apperr"
	"github.com/halvard/gebo/internal/metadata"
)

func TestSubmitPostSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/posts" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("auth header = %q", got)
		}
		var rec metadata.Record
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			t.Errorf("decode record: %v", err)
		}
		if rec.Type != metadata.TagOpportunity {
			t.Errorf("record type = %s", rec.Type)
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"reference": "post-123"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	rec, _ := metadata.Build(metadata.Author{Address: "0xabc"}, metadata.TagOpportunity, "", nil)
	ref, err := c.SubmitPost(context.Background(), "tok", rec)
	if err != nil {
		t.Fatalf("SubmitPost: %v", err)
	}
	if ref != "post-123" {
		t.Errorf("reference = %q", ref)
	}
}

func TestSubmitPostRejectionCarriesReason(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]string{"reason": "handle not allowed"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	rec, _ := metadata.Build(metadata.Author{Address: "0xabc"}, metadata.TagGoal, "", nil)
	_, err := c.SubmitPost(context.Background(), "tok", rec)
	if !errors.Is(err, apperr.ErrSubmitRejected) {
		t.Fatalf("err = %v, want ErrSubmitRejected", err)
	}
	if !strings.Contains(err.Error(), "handle not allowed") {
		t.Errorf("reason not passed through: %q", err.Error())
	}
}

func TestChallengeVerifyRoundTrip(t *testing.T) {
	expires := time.Now().Add(30 * time.Minute).UTC().Truncate(time.Second)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/challenge":
			_ = json.NewEncoder(w).Encode(Challenge{ID: "ch-1", Text: "sign me"})
		case "/auth/verify":
			var req map[string]string
			_ = json.NewDecoder(r.Body).Decode(&req)
			if req["challenge_id"] != "ch-1" || req["signature"] == "" {
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{"reason": "bad signature"})
				return
			}
			_ = json.NewEncoder(w).Encode(Credential{Token: "tok-1", ExpiresAt: expires})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	ch, err := c.FetchChallenge(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("FetchChallenge: %v", err)
	}
	cred, err := c.VerifyChallenge(context.Background(), "0xabc", "0x01", ch.ID, "sig")
	if err != nil {
		t.Fatalf("VerifyChallenge: %v", err)
	}
	if cred.Token != "tok-1" || !cred.ExpiresAt.Equal(expires) {
		t.Errorf("credential = %+v", cred)
	}
}

func TestLatestPostNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"reason": "no posts"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	_, err := c.LatestPost(context.Background(), "0x01", metadata.TagGoal)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
