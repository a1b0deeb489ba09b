// Package pubservice coordinates the publish workflows behind the API: form
// validation, per-profile submission tasks, the submission log, and the
// events stream.
package pubservice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/halvard/gebo/internal/apperr"
	"github.com/halvard/gebo/internal/balance"
	"github.com/halvard/gebo/internal/forms"
	"github.com/halvard/gebo/internal/media"
	"github.com/halvard/gebo/internal/metadata"
	"github.com/halvard/gebo/internal/protocol"
	"github.com/halvard/gebo/internal/publish"
	"github.com/halvard/gebo/internal/sse"
	"github.com/halvard/gebo/internal/store"
)

// ValidationError carries per-field validation messages (i18n keys).
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%d invalid field(s)", len(e.Fields))
}

// Unwrap lets callers match with errors.Is(err, forms.ErrInvalid).
func (e *ValidationError) Unwrap() error { return forms.ErrInvalid }

// Relay is the subset of the relay client the service needs beyond the
// publish workflow itself.
type Relay interface {
	CreateProfile(ctx context.Context, token, address, handle string) (protocol.Profile, error)
	Profile(ctx context.Context, profileID string) (protocol.Profile, error)
	Follow(ctx context.Context, token, follower, profileID string) error
	Unfollow(ctx context.Context, token, follower, profileID string) error
	IsFollowing(ctx context.Context, follower, profileID string) (bool, error)
	LatestPost(ctx context.Context, profileID string, tag metadata.Tag) (metadata.Record, error)
}

// BalanceReader reads reward-token balances.
type BalanceReader interface {
	Balance(ctx context.Context, address string) (float64, error)
}

// SubmissionLog is the subset of the store the service writes and reads.
type SubmissionLog interface {
	AppendSubmission(s store.Submission) error
	ListSubmissions(limit int) ([]store.Submission, error)
	LatestGoal(profileID string) (*store.Submission, error)
}

// Service coordinates publish operations for all profiles.
type Service struct {
	log         *slog.Logger
	wf          *publish.Workflow
	auth        publish.Authenticator
	relay       Relay
	balances    BalanceReader
	subs        SubmissionLog
	events      *sse.Broker
	defaultGoal float64

	mu    sync.Mutex
	tasks map[string]*publish.Task
}

// NewService creates the publish service.
func NewService(log *slog.Logger, wf *publish.Workflow, auth publish.Authenticator,
	relay Relay, balances BalanceReader, subs SubmissionLog, events *sse.Broker,
	defaultGoal float64) *Service {

	return &Service{
		log:         log,
		wf:          wf,
		auth:        auth,
		relay:       relay,
		balances:    balances,
		subs:        subs,
		events:      events,
		defaultGoal: defaultGoal,
		tasks:       make(map[string]*publish.Task),
	}
}

// task returns the submission task for one profile and form kind, creating it
// on first use. One task per key enforces the no-concurrent-submit rule.
func (s *Service) task(profileID, kind string) *publish.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := profileID + "/" + kind
	t, ok := s.tasks[key]
	if !ok {
		t = publish.NewTask(s.wf)
		s.tasks[key] = t
	}
	return t
}

// validate runs values through schema and returns the draft values on
// success or a ValidationError listing every failed field. Apply (not Set)
// keeps the result independent of map iteration order.
func validate(schema forms.Schema, values forms.Values) (forms.Values, error) {
	f := forms.New(schema, nil)
	f.Apply(values)
	if !f.Validate() {
		return nil, &ValidationError{Fields: f.Errors()}
	}
	return f.Values(), nil
}

// PublishOpportunity validates and publishes a new opportunity post.
func (s *Service) PublishOpportunity(ctx context.Context, author metadata.Author,
	values forms.Values, att *media.Attachment) (publish.Result, error) {

	return s.publishOpportunity(ctx, author, "", "", values, att)
}

// ModifyOpportunity republishes an existing opportunity under its original
// record id. When no new attachment is given the prior media reference is
// carried over unchanged.
func (s *Service) ModifyOpportunity(ctx context.Context, author metadata.Author,
	recordID, priorMediaRef string, values forms.Values, att *media.Attachment) (publish.Result, error) {

	return s.publishOpportunity(ctx, author, recordID, priorMediaRef, values, att)
}

func (s *Service) publishOpportunity(ctx context.Context, author metadata.Author,
	recordID, priorMediaRef string, values forms.Values, att *media.Attachment) (publish.Result, error) {

	clean, err := validate(forms.Opportunity(), values)
	if err != nil {
		return publish.Result{}, err
	}

	res, err := s.task(author.ProfileID, "opportunity").Do(ctx, publish.Request{
		Author:         author,
		Tag:            metadata.TagOpportunity,
		RecordID:       recordID,
		Attributes:     map[string]string(clean),
		Attachment:     att,
		PriorMediaRef:  priorMediaRef,
		MediaAttribute: "imageUrl",
	})
	if err != nil {
		return res, err
	}
	s.finish(author.ProfileID, metadata.TagOpportunity, res, 0)
	return res, nil
}

// PublishGoal validates and publishes a reward goal post.
func (s *Service) PublishGoal(ctx context.Context, author metadata.Author,
	values forms.Values) (publish.Result, error) {

	clean, err := validate(forms.Goal(), values)
	if err != nil {
		return publish.Result{}, err
	}
	amount, err := forms.ParseAmount(clean["goal"])
	if err != nil {
		return publish.Result{}, &ValidationError{Fields: map[string]string{"goal": "errors.goal-invalid"}}
	}

	res, err := s.task(author.ProfileID, "goal").Do(ctx, publish.Request{
		Author:     author,
		Tag:        metadata.TagGoal,
		Attributes: map[string]string(clean),
	})
	if err != nil {
		return res, err
	}
	s.finish(author.ProfileID, metadata.TagGoal, res, amount)
	return res, nil
}

// finish logs the terminal attempt, appends it to the submission log, and
// notifies stream subscribers. The tag comes from the request because a
// failure before record construction leaves Result.Record empty.
func (s *Service) finish(profileID string, tag metadata.Tag, res publish.Result, goal float64) {
	status := store.StatusSucceeded
	if res.State == publish.StateFailed {
		status = store.StatusFailed
	}

	sub := store.Submission{
		RecordID:  res.Record.ID,
		ProfileID: profileID,
		Type:      tag,
		Status:    status,
		Reference: res.Reference,
		Reason:    res.Reason,
	}
	if status == store.StatusSucceeded {
		sub.Goal = goal
	}
	if err := s.subs.AppendSubmission(sub); err != nil {
		s.log.Error("append submission", "error", err)
	}

	s.events.PublishOutcome(profileID, string(tag), res.Reference, res.Reason, tag == metadata.TagGoal)

	if status == store.StatusSucceeded {
		s.log.Info("publish succeeded", "profile_id", profileID, "type", tag, "reference", res.Reference)
	} else {
		s.log.Warn("publish failed", "profile_id", profileID, "type", tag, "reason", res.Reason)
	}
}

// CreateProfile registers a new handle for address. The handle is lowercased
// before validation and registration.
func (s *Service) CreateProfile(ctx context.Context, address, handle string) (protocol.Profile, error) {
	handle = strings.ToLower(strings.TrimSpace(handle))
	if _, err := validate(forms.Profile(), forms.Values{"handle": handle}); err != nil {
		return protocol.Profile{}, err
	}

	if err := s.auth.EnsureValid(ctx, address, ""); err != nil {
		return protocol.Profile{}, err
	}
	token, err := s.auth.Token(address)
	if err != nil {
		return protocol.Profile{}, fmt.Errorf("%w: %v", apperr.ErrAuthFailed, err)
	}

	p, err := s.relay.CreateProfile(ctx, token, address, handle)
	if err != nil {
		return protocol.Profile{}, err
	}
	s.log.Info("profile created", "profile_id", p.ID, "handle", p.Handle)
	return p, nil
}

// Follow makes the acting profile follow target.
func (s *Service) Follow(ctx context.Context, author metadata.Author, target string) error {
	return s.setFollow(ctx, author, target, true)
}

// Unfollow removes the acting profile's follow of target.
func (s *Service) Unfollow(ctx context.Context, author metadata.Author, target string) error {
	return s.setFollow(ctx, author, target, false)
}

func (s *Service) setFollow(ctx context.Context, author metadata.Author, target string, follow bool) error {
	if author.Address == "" || author.ProfileID == "" {
		return apperr.ErrNoProfile
	}
	if err := s.auth.EnsureValid(ctx, author.Address, author.ProfileID); err != nil {
		return err
	}
	token, err := s.auth.Token(author.Address)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrAuthFailed, err)
	}
	if follow {
		return s.relay.Follow(ctx, token, author.ProfileID, target)
	}
	return s.relay.Unfollow(ctx, token, author.ProfileID, target)
}

// IsFollowing reports whether the acting profile follows target.
func (s *Service) IsFollowing(ctx context.Context, author metadata.Author, target string) (bool, error) {
	if author.ProfileID == "" {
		return false, apperr.ErrNoProfile
	}
	return s.relay.IsFollowing(ctx, author.ProfileID, target)
}

// Profile fetches a profile from the relay.
func (s *Service) Profile(ctx context.Context, profileID string) (protocol.Profile, error) {
	return s.relay.Profile(ctx, profileID)
}

// VHRSummary reads the reward-token balance of address and computes progress
// toward the profile's most recent published goal. A profile that never set a
// goal gets the configured default.
func (s *Service) VHRSummary(ctx context.Context, address, profileID string) (balance.Summary, error) {
	amount, err := s.balances.Balance(ctx, address)
	if err != nil {
		return balance.Summary{}, err
	}

	goal := s.defaultGoal
	latest, err := s.subs.LatestGoal(profileID)
	if err != nil {
		return balance.Summary{}, err
	}
	if latest != nil && latest.Goal > 0 {
		goal = latest.Goal
	}
	return balance.Summarize(address, amount, goal), nil
}

// Submissions returns the most recent terminal publish attempts.
func (s *Service) Submissions(limit int) ([]store.Submission, error) {
	return s.subs.ListSubmissions(limit)
}

// LatestOpportunity returns the profile's most recent opportunity post from
// the relay, used to prefill the modify form.
func (s *Service) LatestOpportunity(ctx context.Context, profileID string) (metadata.Record, error) {
	return s.relay.LatestPost(ctx, profileID, metadata.TagOpportunity)
}
