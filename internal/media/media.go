// Package media resolves form attachments to stable content references.
// An attachment is uploaded to the configured backend; edit flows without a
// new attachment keep their prior reference.
package media

import (
	"context"
	"fmt"

	"github.com/halvard/gebo/internal/apperr"
)

// Attachment is a binary resource selected in a form, replaced wholesale on
// re-selection and never persisted as draft state.
type Attachment struct {
	Filename string
	Data     []byte
}

// Uploader stores attachment bytes and returns the assigned reference.
type Uploader interface {
	Upload(ctx context.Context, att Attachment) (string, error)
}

// Resolver applies the attachment-resolution contract of the publish
// workflow.
type Resolver struct {
	uploader Uploader
}

// NewResolver creates a resolver over an upload backend.
func NewResolver(uploader Uploader) *Resolver {
	return &Resolver{uploader: uploader}
}

// Resolve returns the content reference for the submission: the prior
// reference when no attachment is present, or the freshly uploaded one.
// Upload failures wrap apperr.ErrUploadFailed; there are no retries here.
func (r *Resolver) Resolve(ctx context.Context, att *Attachment, prior string) (string, error) {
	if att == nil {
		return prior, nil
	}
	ref, err := r.uploader.Upload(ctx, *att)
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperr.ErrUploadFailed, err)
	}
	return ref, nil
}
