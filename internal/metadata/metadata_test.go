package metadata

import "testing"

func TestBuildDerivesVersionFromTag(t *testing.T) {
	author := Author{Address: "0xabc", ProfileID: "0x01"}

	opp, err := Build(author, TagOpportunity, "", map[string]string{"name": "Food Drive"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if opp.Version != OpportunityVersion {
		t.Errorf("opportunity version = %s, want %s", opp.Version, OpportunityVersion)
	}

	goal, err := Build(author, TagGoal, "", map[string]string{"goal": "100"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if goal.Version != GoalVersion {
		t.Errorf("goal version = %s, want %s", goal.Version, GoalVersion)
	}
}

func TestBuildMintsIDForCreateFlow(t *testing.T) {
	author := Author{Address: "0xabc"}
	a, _ := Build(author, TagGoal, "", nil)
	b, _ := Build(author, TagGoal, "", nil)
	if a.ID == "" || b.ID == "" {
		t.Fatal("create flow must mint an id")
	}
	if a.ID == b.ID {
		t.Error("two create flows should mint distinct ids")
	}
}

func TestBuildKeepsIDForModifyFlow(t *testing.T) {
	r, err := Build(Author{Address: "0xabc"}, TagOpportunity, "post-123", nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if r.ID != "post-123" {
		t.Errorf("id = %q, want post-123", r.ID)
	}
}

func TestBuildRejectsUnknownTag(t *testing.T) {
	if _, err := Build(Author{Address: "0xabc"}, Tag("BOGUS"), "", nil); err == nil {
		t.Fatal("unknown tag should fail")
	}
}

func TestBuildRequiresAuthor(t *testing.T) {
	if _, err := Build(Author{}, TagGoal, "", nil); err == nil {
		t.Fatal("missing author address should fail")
	}
}

func TestValidateVersionTypeConsistency(t *testing.T) {
	r := Record{Version: GoalVersion, Type: TagOpportunity, ID: "x", Author: Author{Address: "0xabc"}}
	if err := r.Validate(); err == nil {
		t.Fatal("mismatched version/type should fail")
	}

	r.Version = OpportunityVersion
	if err := r.Validate(); err != nil {
		t.Fatalf("consistent record should pass: %v", err)
	}
}
