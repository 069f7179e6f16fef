package cases

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestReconciler(repo *fakeRepo, platform *fakePlatform, now time.Time) *Reconciler {
	enforcer := NewEnforcer(platform, zap.NewNop())
	enforcer.WithNow(func() time.Time { return now })
	rec := NewReconciler(repo, enforcer, zap.NewNop())
	rec.WithNow(func() time.Time { return now })
	return rec
}

func TestTickRetiresExpiredCases(t *testing.T) {
	now := testStart.Add(2 * time.Hour)
	repo := &fakeRepo{
		records: []Record{
			{ID: 1, SubjectID: "a", Kind: KindMute, CreatedAt: testStart.Unix(), Duration: 3600, Active: true},
			{ID: 2, SubjectID: "b", Kind: KindBan, CreatedAt: testStart.Unix(), Duration: 86400, Active: true},
			{ID: 3, SubjectID: "c", Kind: KindBan, CreatedAt: testStart.Unix(), Duration: Permanent, Active: true},
		},
	}
	platform := newFakePlatform()
	rec := newTestReconciler(repo, platform, now)

	if err := rec.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}

	if platform.clearCalls != 1 {
		t.Fatalf("expected one timeout clear, got %d", platform.clearCalls)
	}
	if platform.unbanCalls != 0 {
		t.Fatalf("unexpired and permanent bans must stay, got %d unbans", platform.unbanCalls)
	}
	if repo.records[0].Active {
		t.Fatalf("expired mute still active")
	}
	if !repo.records[1].Active || !repo.records[2].Active {
		t.Fatalf("unexpired cases were retired")
	}
}

func TestTickIsIdempotent(t *testing.T) {
	now := testStart.Add(2 * time.Hour)
	repo := &fakeRepo{
		records: []Record{
			{ID: 1, SubjectID: "a", Kind: KindMute, CreatedAt: testStart.Unix(), Duration: 3600, Active: true},
		},
	}
	platform := newFakePlatform()
	rec := newTestReconciler(repo, platform, now)
	ctx := context.Background()

	if err := rec.Tick(ctx); err != nil {
		t.Fatalf("first tick: %v", err)
	}
	if err := rec.Tick(ctx); err != nil {
		t.Fatalf("second tick: %v", err)
	}
	if platform.clearCalls != 1 {
		t.Fatalf("retirement must happen once, got %d clears", platform.clearCalls)
	}
}

func TestTickRetiresEvenWhenReversalFails(t *testing.T) {
	now := testStart.Add(2 * time.Hour)
	repo := &fakeRepo{
		records: []Record{
			{ID: 1, SubjectID: "a", Kind: KindBan, CreatedAt: testStart.Unix(), Duration: 3600, Active: true},
		},
	}
	platform := newFakePlatform()
	platform.unbanErr = errors.New("api down")
	rec := newTestReconciler(repo, platform, now)

	if err := rec.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if repo.records[0].Active {
		t.Fatalf("case must be retired despite the failed reversal")
	}
}

func TestTickSkipsDeletedCases(t *testing.T) {
	now := testStart.Add(2 * time.Hour)
	repo := &fakeRepo{
		records: []Record{
			{ID: 1, SubjectID: "a", Kind: KindMute, CreatedAt: testStart.Unix(), Duration: 3600, Active: true, Deleted: true},
		},
	}
	platform := newFakePlatform()
	rec := newTestReconciler(repo, platform, now)

	if err := rec.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if platform.clearCalls != 0 {
		t.Fatalf("deleted cases must not be touched")
	}
}
