package publish

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/halvard/gebo/internal/apperr"
	"github.com/halvard/gebo/internal/media"
	"github.com/halvard/gebo/internal/metadata"
)

// fakeDeps records the order of collaborator calls and can fail any step.
type fakeDeps struct {
	mu    sync.Mutex
	calls []string

	authErr   error
	uploadErr error
	submitErr error

	submitted metadata.Record
	reference string
}

func (f *fakeDeps) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeDeps) EnsureValid(_ context.Context, _, _ string) error {
	f.record("auth")
	return f.authErr
}

func (f *fakeDeps) Token(string) (string, error) {
	return "tok", nil
}

func (f *fakeDeps) Resolve(_ context.Context, att *media.Attachment, prior string) (string, error) {
	f.record("upload")
	if att == nil {
		return prior, nil
	}
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	return "ipfs://fresh", nil
}

func (f *fakeDeps) SubmitPost(_ context.Context, _ string, record metadata.Record) (string, error) {
	f.record("submit")
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.submitted = record
	if f.reference == "" {
		f.reference = "post-1"
	}
	return f.reference, nil
}

func opportunityRequest() Request {
	return Request{
		Author: metadata.Author{Address: "0xabc", ProfileID: "0x01"},
		Tag:    metadata.TagOpportunity,
		Attributes: map[string]string{
			"name":         "Food Drive",
			"startDate":    "2024-01-01",
			"endDate":      "2024-01-02",
			"hoursPerWeek": "5.5",
			"category":     "Community",
			"website":      "",
			"description":  "Help sort food",
		},
		MediaAttribute: "imageUrl",
	}
}

func TestMissingIdentityFailsWithoutNetworkCalls(t *testing.T) {
	deps := &fakeDeps{}
	wf := NewWorkflow(deps, deps, deps)

	req := opportunityRequest()
	req.Author = metadata.Author{}
	res := wf.Run(context.Background(), req)

	if res.State != StateFailed {
		t.Fatalf("state = %s", res.State)
	}
	if !errors.Is(res.Err, apperr.ErrNoProfile) {
		t.Errorf("err = %v, want ErrNoProfile", res.Err)
	}
	if res.Reason != "profile null" {
		t.Errorf("reason = %q", res.Reason)
	}
	if len(deps.calls) != 0 {
		t.Errorf("network calls = %v, want none", deps.calls)
	}
}

func TestAuthRunsBeforeUploadAndSubmit(t *testing.T) {
	deps := &fakeDeps{reference: "post-123"}
	wf := NewWorkflow(deps, deps, deps)

	res := wf.Run(context.Background(), opportunityRequest())
	if res.State != StateSucceeded {
		t.Fatalf("state = %s, reason = %q", res.State, res.Reason)
	}
	want := []string{"auth", "upload", "submit"}
	if fmt.Sprint(deps.calls) != fmt.Sprint(want) {
		t.Errorf("call order = %v, want %v", deps.calls, want)
	}
}

func TestAuthFailureAborts(t *testing.T) {
	deps := &fakeDeps{authErr: fmt.Errorf("%w: signature rejected", apperr.ErrAuthFailed)}
	wf := NewWorkflow(deps, deps, deps)

	res := wf.Run(context.Background(), opportunityRequest())
	if res.State != StateFailed {
		t.Fatalf("state = %s", res.State)
	}
	if res.Reason != "signature rejected" {
		t.Errorf("reason = %q", res.Reason)
	}
	for _, c := range deps.calls {
		if c == "upload" || c == "submit" {
			t.Errorf("%s must not run after auth failure", c)
		}
	}
}

func TestUploadFailureSkipsRecordAndSubmit(t *testing.T) {
	deps := &fakeDeps{uploadErr: fmt.Errorf("%w: storage unreachable", apperr.ErrUploadFailed)}
	wf := NewWorkflow(deps, deps, deps)

	req := opportunityRequest()
	req.Attachment = &media.Attachment{Filename: "a.png", Data: []byte("x")}
	res := wf.Run(context.Background(), req)

	if res.State != StateFailed {
		t.Fatalf("state = %s", res.State)
	}
	if !errors.Is(res.Err, apperr.ErrUploadFailed) {
		t.Errorf("err = %v", res.Err)
	}
	if res.Record.ID != "" {
		t.Error("record must not be constructed after upload failure")
	}
	for _, c := range deps.calls {
		if c == "submit" {
			t.Error("submit must not run after upload failure")
		}
	}
}

func TestEditFlowKeepsPriorMediaReference(t *testing.T) {
	deps := &fakeDeps{}
	wf := NewWorkflow(deps, deps, deps)

	req := opportunityRequest()
	req.RecordID = "post-7"
	req.PriorMediaRef = "ipfs://original"
	res := wf.Run(context.Background(), req)

	if res.State != StateSucceeded {
		t.Fatalf("state = %s, reason = %q", res.State, res.Reason)
	}
	if got := deps.submitted.Attributes["imageUrl"]; got != "ipfs://original" {
		t.Errorf("imageUrl = %q, want prior reference unchanged", got)
	}
	if deps.submitted.ID != "post-7" {
		t.Errorf("record id = %q, want post-7", deps.submitted.ID)
	}
}

func TestFreshAttachmentReplacesReference(t *testing.T) {
	deps := &fakeDeps{}
	wf := NewWorkflow(deps, deps, deps)

	req := opportunityRequest()
	req.Attachment = &media.Attachment{Filename: "new.png", Data: []byte("x")}
	req.PriorMediaRef = "ipfs://original"
	res := wf.Run(context.Background(), req)

	if res.State != StateSucceeded {
		t.Fatalf("state = %s", res.State)
	}
	if got := deps.submitted.Attributes["imageUrl"]; got != "ipfs://fresh" {
		t.Errorf("imageUrl = %q", got)
	}
}

func TestSubmitRejectionCarriesReasonVerbatim(t *testing.T) {
	deps := &fakeDeps{submitErr: fmt.Errorf("%w: rate limited", apperr.ErrSubmitRejected)}
	wf := NewWorkflow(deps, deps, deps)

	res := wf.Run(context.Background(), opportunityRequest())
	if res.State != StateFailed {
		t.Fatalf("state = %s", res.State)
	}
	if !strings.Contains(res.Reason, "rate limited") {
		t.Errorf("reason = %q", res.Reason)
	}
}

func TestConcreteOpportunityScenario(t *testing.T) {
	deps := &fakeDeps{reference: "post-123"}
	wf := NewWorkflow(deps, deps, deps)

	res := wf.Run(context.Background(), opportunityRequest())
	if res.State != StateSucceeded {
		t.Fatalf("state = %s, reason = %q", res.State, res.Reason)
	}
	if res.Reference != "post-123" {
		t.Errorf("reference = %q", res.Reference)
	}
	rec := deps.submitted
	if rec.Type != metadata.TagOpportunity || rec.Version != metadata.OpportunityVersion {
		t.Errorf("record tag/version = %s/%s", rec.Type, rec.Version)
	}
	if rec.Attributes["name"] != "Food Drive" || rec.Attributes["hoursPerWeek"] != "5.5" {
		t.Errorf("attributes = %v", rec.Attributes)
	}
	// Exactly one of reference/reason.
	if res.Reason != "" {
		t.Errorf("success carries reason %q", res.Reason)
	}
}

func TestGoalRequestSkipsMediaResolution(t *testing.T) {
	deps := &fakeDeps{}
	wf := NewWorkflow(deps, deps, deps)

	res := wf.Run(context.Background(), Request{
		Author:     metadata.Author{Address: "0xabc", ProfileID: "0x01"},
		Tag:        metadata.TagGoal,
		Attributes: map[string]string{"goal": "100", "goalDate": ""},
	})
	if res.State != StateSucceeded {
		t.Fatalf("state = %s, reason = %q", res.State, res.Reason)
	}
	for _, c := range deps.calls {
		if c == "upload" {
			t.Error("goal publish must not touch the media resolver")
		}
	}
	if deps.submitted.Version != metadata.GoalVersion {
		t.Errorf("version = %s", deps.submitted.Version)
	}
}
