package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: "session.login", Data: map[string]string{"handle": "foodbank1"}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: session.login") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"handle":"foodbank1"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishOutcomeSuccessAndFailure(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishOutcome("0x01", "ORG_PUBLISH_OPPORTUNITY", "post-123", "", false)
	b.PublishOutcome("0x01", "ORG_PUBLISH_OPPORTUNITY", "", "rate limited", false)

	var got []string
	for i := 0; i < 2; i++ {
		select {
		case msg := <-ch:
			got = append(got, string(msg))
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for outcome events")
		}
	}

	if !strings.Contains(got[0], "event: publish.succeeded") || !strings.Contains(got[0], `"reference":"post-123"`) {
		t.Errorf("first event = %q", got[0])
	}
	if !strings.Contains(got[1], "event: publish.failed") || !strings.Contains(got[1], `"reason":"rate limited"`) {
		t.Errorf("second event = %q", got[1])
	}
}

func TestGoalUpdateThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Two successful goal posts in quick succession: both outcome events
	// arrive, only one goal.updated does.
	b.PublishOutcome("0x01", "ORG_PUBLISH_GOAL", "post-1", "", true)
	b.PublishOutcome("0x01", "ORG_PUBLISH_GOAL", "post-2", "", true)

	time.Sleep(50 * time.Millisecond)
	goalCount := 0
	outcomeCount := 0
loop:
	for {
		select {
		case msg := <-ch:
			s := string(msg)
			if strings.Contains(s, "goal.updated") {
				goalCount++
			} else {
				outcomeCount++
			}
		default:
			break loop
		}
	}

	if outcomeCount != 2 {
		t.Errorf("outcome events = %d, want 2", outcomeCount)
	}
	if goalCount != 1 {
		t.Errorf("goal.updated events = %d, want 1 (throttled)", goalCount)
	}
}

func TestFailedGoalPostDoesNotRefreshDashboards(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishOutcome("0x01", "ORG_PUBLISH_GOAL", "", "relay down", true)

	time.Sleep(50 * time.Millisecond)
loop:
	for {
		select {
		case msg := <-ch:
			if strings.Contains(string(msg), "goal.updated") {
				t.Error("goal.updated emitted for a failed post")
			}
		default:
			break loop
		}
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.PublishOutcome("0x01", "ORG_PUBLISH_OPPORTUNITY", "post-9", "", false)
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: publish.succeeded") {
		t.Errorf("handler output missing event: %q", body)
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Fill buffer (capacity 64) and then one more should not block.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// Safe no-ops after close.
	b.Publish(Event{Type: "session.login", Data: map[string]string{}})
	b.PublishOutcome("0x01", "ORG_PUBLISH_GOAL", "post-1", "", true)
}
