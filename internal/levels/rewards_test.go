package levels

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"guildwarden/internal/store"
)

type fakeBalances struct {
	entries map[string]store.CoinsEntry
	credits map[string]int64
}

func newFakeBalances() *fakeBalances {
	return &fakeBalances{
		entries: make(map[string]store.CoinsEntry),
		credits: make(map[string]int64),
	}
}

func (f *fakeBalances) CoinsEntryFor(ctx context.Context, userID string) (store.CoinsEntry, error) {
	entry := f.entries[userID]
	entry.UserID = userID
	return entry, nil
}

func (f *fakeBalances) AddCoins(ctx context.Context, userID string, delta int64) (store.CoinsEntry, error) {
	entry := f.entries[userID]
	entry.UserID = userID
	entry.Coins += delta
	f.entries[userID] = entry
	f.credits[userID] += delta
	return entry, nil
}

func (f *fakeBalances) SetKnownLevel(ctx context.Context, userID string, level int) error {
	entry := f.entries[userID]
	entry.UserID = userID
	entry.KnownLevel = level
	f.entries[userID] = entry
	return nil
}

func singlePageServer(players []Player) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := players
		if r.URL.Query().Get("page") != "0" {
			resp = nil
		}
		_ = json.NewEncoder(w).Encode(map[string][]Player{"players": resp})
	}))
}

func TestTickPaysOutLevelUps(t *testing.T) {
	server := singlePageServer([]Player{{ID: "user1", Level: 7}})
	defer server.Close()

	client := NewClient(server.URL, 100, time.Minute)
	client.WithHTTPClient(server.Client())

	balances := newFakeBalances()
	balances.entries["user1"] = store.CoinsEntry{UserID: "user1", Coins: 10, KnownLevel: 5}

	rewarder := NewRewarder(client, balances, 50, zap.NewNop())
	rewarder.MarkActive("user1")

	if err := rewarder.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if balances.credits["user1"] != 100 {
		t.Fatalf("expected 100 coins for two levels, got %d", balances.credits["user1"])
	}
	if balances.entries["user1"].KnownLevel != 7 {
		t.Fatalf("known level not advanced")
	}
}

func TestTickSkipsMembersWithoutLevelUp(t *testing.T) {
	server := singlePageServer([]Player{{ID: "user1", Level: 5}})
	defer server.Close()

	client := NewClient(server.URL, 100, time.Minute)
	client.WithHTTPClient(server.Client())

	balances := newFakeBalances()
	balances.entries["user1"] = store.CoinsEntry{UserID: "user1", KnownLevel: 5}

	rewarder := NewRewarder(client, balances, 50, zap.NewNop())
	rewarder.MarkActive("user1")

	if err := rewarder.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if balances.credits["user1"] != 0 {
		t.Fatalf("no payout expected, got %d", balances.credits["user1"])
	}
}

func TestTickSkipsUnrankedMembers(t *testing.T) {
	server := singlePageServer(nil)
	defer server.Close()

	client := NewClient(server.URL, 100, time.Minute)
	client.WithHTTPClient(server.Client())

	balances := newFakeBalances()
	rewarder := NewRewarder(client, balances, 50, zap.NewNop())
	rewarder.MarkActive("ghost")

	if err := rewarder.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if len(balances.credits) != 0 {
		t.Fatalf("unranked member must not be paid")
	}
}

func TestTickDrainsTheActiveSet(t *testing.T) {
	server := singlePageServer([]Player{{ID: "user1", Level: 3}})
	defer server.Close()

	client := NewClient(server.URL, 100, time.Minute)
	client.WithHTTPClient(server.Client())

	balances := newFakeBalances()
	rewarder := NewRewarder(client, balances, 50, zap.NewNop())
	rewarder.MarkActive("user1")
	ctx := context.Background()

	if err := rewarder.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}
	first := balances.credits["user1"]

	if err := rewarder.Tick(ctx); err != nil {
		t.Fatalf("second tick: %v", err)
	}
	if balances.credits["user1"] != first {
		t.Fatalf("member rewarded twice without new activity")
	}
}
