// Package publish implements the authenticated content-publish workflow
// shared by every modal: ensure a valid credential, resolve the attachment,
// build the versioned metadata record, and submit it to the relay. Failures
// from any step abort the sequence; nothing is retried automatically.
package publish

import (
	"context"
	"errors"
	"fmt"

	"github.com/halvard/gebo/internal/apperr"
	"github.com/halvard/gebo/internal/media"
	"github.com/halvard/gebo/internal/metadata"
)

// State is the caller-visible workflow state.
type State string

// Workflow states.
const (
	StateIdle      State = "idle"
	StatePending   State = "pending"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Authenticator guarantees a valid credential before the write.
type Authenticator interface {
	EnsureValid(ctx context.Context, address, profileID string) error
	Token(address string) (string, error)
}

// Resolver turns an optional attachment into a content reference.
type Resolver interface {
	Resolve(ctx context.Context, att *media.Attachment, prior string) (string, error)
}

// Submitter performs the remote write.
type Submitter interface {
	SubmitPost(ctx context.Context, token string, record metadata.Record) (string, error)
}

// Request is one submission: the acting identity, the post kind, and the
// kind-specific fields. RecordID is empty for create flows and carries the
// original id for modify flows. MediaAttribute, when set, names the attribute
// that receives the resolved content reference.
type Request struct {
	Author         metadata.Author
	Tag            metadata.Tag
	RecordID       string
	Attributes     map[string]string
	Attachment     *media.Attachment
	PriorMediaRef  string
	MediaAttribute string
}

// Result is the tagged outcome of one attempt: exactly one of Reference
// (success) or Reason (failure) is populated.
type Result struct {
	State     State
	Reference string
	Record    metadata.Record
	Reason    string
	Err       error
}

// Workflow wires the collaborators of the publish sequence.
type Workflow struct {
	auth   Authenticator
	media  Resolver
	relay  Submitter
}

// NewWorkflow creates a workflow over its three collaborators.
func NewWorkflow(auth Authenticator, resolver Resolver, relay Submitter) *Workflow {
	return &Workflow{auth: auth, media: resolver, relay: relay}
}

// Run executes one submission attempt. The identity precondition is checked
// before any network call; credential refresh runs before the upload; the
// record is only built once the media reference is resolved.
func (w *Workflow) Run(ctx context.Context, req Request) Result {
	if req.Author.Address == "" || req.Author.ProfileID == "" {
		return failure(apperr.ErrNoProfile)
	}

	if err := w.auth.EnsureValid(ctx, req.Author.Address, req.Author.ProfileID); err != nil {
		return failure(err)
	}

	mediaRef := req.PriorMediaRef
	if req.MediaAttribute != "" {
		ref, err := w.media.Resolve(ctx, req.Attachment, req.PriorMediaRef)
		if err != nil {
			return failure(err)
		}
		mediaRef = ref
	}

	attrs := make(map[string]string, len(req.Attributes)+1)
	for k, v := range req.Attributes {
		attrs[k] = v
	}
	if req.MediaAttribute != "" {
		attrs[req.MediaAttribute] = mediaRef
	}

	record, err := metadata.Build(req.Author, req.Tag, req.RecordID, attrs)
	if err != nil {
		return failure(err)
	}

	token, err := w.auth.Token(req.Author.Address)
	if err != nil {
		return failure(fmt.Errorf("%w: %v", apperr.ErrAuthFailed, err))
	}

	reference, err := w.relay.SubmitPost(ctx, token, record)
	if err != nil {
		res := failure(err)
		res.Record = record
		return res
	}

	return Result{State: StateSucceeded, Reference: reference, Record: record}
}

// failure maps an error to a failed result carrying the raw reason verbatim.
func failure(err error) Result {
	return Result{State: StateFailed, Reason: reason(err), Err: err}
}

// reason strips the sentinel prefix when the error wraps one of the workflow
// sentinels with a more specific message, so the user sees the raw cause.
func reason(err error) string {
	for _, sentinel := range []error{apperr.ErrAuthFailed, apperr.ErrUploadFailed, apperr.ErrSubmitRejected} {
		if errors.Is(err, sentinel) {
			msg := err.Error()
			prefix := sentinel.Error() + ": "
			if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
				return msg[len(prefix):]
			}
			return msg
		}
	}
	return err.Error()
}
