// Package metadata defines the versioned, tagged records submitted to the
// relay. The version of a record is derived from its type tag, so a record of
// a given kind always carries that kind's schema version.
package metadata

import (
	"fmt"

	"github.com/google/uuid"
)

// Tag identifies a post kind. The set is closed; downstream readers filter
// feeds by these values.
type Tag string

// Known post tags.
const (
	TagOpportunity Tag = "ORG_PUBLISH_OPPORTUNITY"
	TagGoal        Tag = "ORG_PUBLISH_GOAL"
)

// Version is a record schema version.
type Version string

// Schema versions per tag. Bump only with a reader-compatible migration.
const (
	OpportunityVersion Version = "1.0.1"
	GoalVersion        Version = "1.0.0"
)

var versions = map[Tag]Version{
	TagOpportunity: OpportunityVersion,
	TagGoal:        GoalVersion,
}

// VersionFor returns the schema version bound to a tag.
func VersionFor(tag Tag) (Version, bool) {
	v, ok := versions[tag]
	return v, ok
}

// Author references the publishing identity.
type Author struct {
	Address   string `json:"address"`
	ProfileID string `json:"profile_id"`
}

// Record is the payload submitted to the relay. Attributes carry the
// kind-specific fields (opportunity details or goal value and date).
type Record struct {
	Version    Version           `json:"version"`
	Type       Tag               `json:"type"`
	ID         string            `json:"id"`
	Author     Author            `json:"author"`
	Attributes map[string]string `json:"attributes"`
}

// Build assembles a record for the given tag. An empty id mints a fresh one
// (create flow); a non-empty id is carried through unchanged (modify flow).
// The version is always derived from the tag.
func Build(author Author, tag Tag, id string, attrs map[string]string) (Record, error) {
	version, ok := VersionFor(tag)
	if !ok {
		return Record{}, fmt.Errorf("metadata: unknown tag %q", tag)
	}
	if author.Address == "" {
		return Record{}, fmt.Errorf("metadata: author address is required")
	}
	if id == "" {
		id = uuid.NewString()
	}
	if attrs == nil {
		attrs = map[string]string{}
	}
	return Record{
		Version:    version,
		Type:       tag,
		ID:         id,
		Author:     author,
		Attributes: attrs,
	}, nil
}

// Validate checks the version/type invariant on a record received from
// elsewhere (e.g. read back from the relay).
func (r Record) Validate() error {
	want, ok := VersionFor(r.Type)
	if !ok {
		return fmt.Errorf("metadata: unknown tag %q", r.Type)
	}
	if r.Version != want {
		return fmt.Errorf("metadata: tag %q requires version %s, got %s", r.Type, want, r.Version)
	}
	if r.ID == "" {
		return fmt.Errorf("metadata: id is required")
	}
	return nil
}
