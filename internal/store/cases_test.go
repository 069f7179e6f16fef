package store

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"

	"guildwarden/internal/cases"
)

func TestCaseFilterBuildsOnlySetFields(t *testing.T) {
	query := caseFilter(cases.Filter{})
	if len(query) != 0 {
		t.Fatalf("empty filter must build an empty query, got %v", query)
	}

	query = caseFilter(cases.Filter{
		SubjectID: "user1",
		Kind:      cases.KindMute,
		Active:    cases.BoolPtr(true),
		Deleted:   cases.BoolPtr(false),
	})
	want := bson.D{
		{Key: "user_id", Value: "user1"},
		{Key: "type", Value: cases.KindMute},
		{Key: "active", Value: true},
		{Key: "deleted", Value: false},
	}
	assertDocEqual(t, query, want)
}

func TestCaseFilterByID(t *testing.T) {
	query := caseFilter(cases.Filter{CaseID: 42})
	want := bson.D{{Key: "case_id", Value: int64(42)}}
	assertDocEqual(t, query, want)
}

func TestCasePatchBuildsOnlySetFields(t *testing.T) {
	if set := casePatch(cases.Patch{}); len(set) != 0 {
		t.Fatalf("empty patch must build an empty set, got %v", set)
	}

	set := casePatch(cases.Patch{
		Reason: cases.StringPtr("updated"),
		Active: cases.BoolPtr(false),
	})
	want := bson.D{
		{Key: "reason", Value: "updated"},
		{Key: "active", Value: false},
	}
	assertDocEqual(t, set, want)
}

func TestCasePatchKeepsFalseValues(t *testing.T) {
	set := casePatch(cases.Patch{
		Received: cases.BoolPtr(false),
		Deleted:  cases.BoolPtr(false),
	})
	want := bson.D{
		{Key: "received", Value: false},
		{Key: "deleted", Value: false},
	}
	assertDocEqual(t, set, want)
}

func assertDocEqual(t *testing.T, got, want bson.D) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("doc %v, want %v", got, want)
	}
	for i := range want {
		if got[i].Key != want[i].Key || got[i].Value != want[i].Value {
			t.Fatalf("doc %v, want %v", got, want)
		}
	}
}
