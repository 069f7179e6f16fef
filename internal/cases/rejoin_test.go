package cases

import (
	"context"
	"testing"
	"time"
)

func TestRejoinReappliesRemainingMute(t *testing.T) {
	created := testStart.Add(-10 * time.Minute)
	repo := &fakeRepo{
		records: []Record{
			{ID: 1, SubjectID: "user", Kind: KindMute, CreatedAt: created.Unix(), Duration: 3600, Active: true},
		},
	}
	platform := newFakePlatform()
	svc := newTestService(repo, platform)

	svc.HandleRejoin(context.Background(), "user")

	if len(platform.timeouts) != 1 {
		t.Fatalf("expected one timeout, got %d", len(platform.timeouts))
	}
	want := testStart.Add(50 * time.Minute)
	if !platform.timeouts[0].Equal(want) {
		t.Fatalf("timeout until %v, want %v", platform.timeouts[0], want)
	}
	if !repo.records[0].Active {
		t.Fatalf("rejoin must never retire a case")
	}
}

func TestRejoinReappliesChannelBan(t *testing.T) {
	repo := &fakeRepo{
		records: []Record{
			{ID: 1, SubjectID: "user", Kind: KindChannelBan, ChannelID: "chan1",
				CreatedAt: testStart.Unix(), Duration: Permanent, Active: true},
		},
	}
	platform := newFakePlatform()
	svc := newTestService(repo, platform)

	svc.HandleRejoin(context.Background(), "user")

	if len(platform.hideCalls) != 1 || platform.hideCalls[0] != "chan1" {
		t.Fatalf("expected hide on chan1, got %v", platform.hideCalls)
	}
}

func TestRejoinSkipsExpiredAndBans(t *testing.T) {
	created := testStart.Add(-2 * time.Hour)
	repo := &fakeRepo{
		records: []Record{
			{ID: 1, SubjectID: "user", Kind: KindMute, CreatedAt: created.Unix(), Duration: 3600, Active: true},
			{ID: 2, SubjectID: "user", Kind: KindBan, CreatedAt: testStart.Unix(), Duration: Permanent, Active: true},
		},
	}
	platform := newFakePlatform()
	svc := newTestService(repo, platform)

	svc.HandleRejoin(context.Background(), "user")

	if len(platform.timeouts) != 0 {
		t.Fatalf("expired mute must not be re-applied")
	}
	if platform.banCalls != 0 {
		t.Fatalf("bans are never re-applied on rejoin")
	}
	if !repo.records[0].Active {
		t.Fatalf("expired record is left for the reconciler")
	}
}
