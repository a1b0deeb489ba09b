package api

import (
	"github.com/halvard/gebo/internal/balance"
	"github.com/halvard/gebo/internal/protocol"
	"github.com/halvard/gebo/internal/publish"
	"github.com/halvard/gebo/internal/session"
	"github.com/halvard/gebo/internal/store"
)

// LoginRequest binds a wallet address and profile to the process session.
type LoginRequest struct {
	Address   string `json:"address" example:"0xabc" validate:"required"`
	ProfileID string `json:"profile_id" example:"0x01" validate:"required"`
	Handle    string `json:"handle" example:"foodbank1"`
}

// CreateProfileRequest registers a new handle for an address.
type CreateProfileRequest struct {
	Address string `json:"address" example:"0xabc" validate:"required"`
	Handle  string `json:"handle" example:"foodbank1" validate:"required"`
}

// GoalRequest is the reward-goal form payload.
type GoalRequest struct {
	Goal     string `json:"goal" example:"600" validate:"required"`
	GoalDate string `json:"goalDate" example:"2024-12-31"`
}

// PublishResponse is the terminal outcome of one submission attempt.
type PublishResponse struct {
	State     publish.State `json:"state" example:"succeeded"`
	Reference string        `json:"reference,omitempty" example:"post-123"`
	RecordID  string        `json:"record_id,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	Display   string        `json:"display,omitempty"`
}

// FollowResponse reports the follow relationship after a query or toggle.
type FollowResponse struct {
	Following bool `json:"following"`
}

// MediaUploadResponse is returned after a successful media upload.
type MediaUploadResponse struct {
	Reference string `json:"reference" example:"/media/abc123.png" validate:"required"`
	Size      int64  `json:"size" example:"12345" validate:"required"`
}

// Submission is one logged publish attempt (aliased from the domain layer).
type Submission = store.Submission

// SubmissionsResponse wraps the submission log listing.
type SubmissionsResponse struct {
	Submissions []Submission `json:"submissions" validate:"required"`
}

// Session is the acting identity (aliased from the domain layer).
type Session = session.Session

// Profile is the relay profile payload (aliased from the domain layer).
type Profile = protocol.Profile

// Summary is the reward-balance dashboard payload (aliased from the domain layer).
type Summary = balance.Summary
