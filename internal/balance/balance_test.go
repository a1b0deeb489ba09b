package balance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestBalanceQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("token"); got != "0xVHR" {
			t.Errorf("token = %q", got)
		}
		if got := r.URL.Query().Get("address"); got != "0xabc" {
			t.Errorf("address = %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]float64{"value": 412.5})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "0xVHR", 5*time.Second)
	got, err := c.Balance(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if got != 412.5 {
		t.Errorf("balance = %v", got)
	}
}

func TestBalanceQueryError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "0xVHR", 5*time.Second)
	if _, err := c.Balance(context.Background(), "0xabc"); err == nil {
		t.Fatal("expected error on HTTP 503")
	}
}

func TestSummarize(t *testing.T) {
	cases := []struct {
		amount, goal float64
		percent      int
		remaining    float64
		reached      bool
	}{
		{150, 600, 25, 450, false},
		{600, 600, 100, 0, true},
		{750, 600, 100, 0, true},
		{0, 600, 0, 600, false},
		{100, 0, 0, 0, false},
	}
	for _, tc := range cases {
		s := Summarize("0xabc", tc.amount, tc.goal)
		if s.Percent != tc.percent || s.Remaining != tc.remaining || s.Reached != tc.reached {
			t.Errorf("Summarize(%v, %v) = %+v", tc.amount, tc.goal, s)
		}
	}
}
