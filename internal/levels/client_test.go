package levels

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

func leaderboard(t *testing.T, pages [][]Player, hits *int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(hits, 1)
		number, _ := strconv.Atoi(r.URL.Query().Get("page"))
		players := []Player{}
		if number < len(pages) {
			players = pages[number]
		}
		_ = json.NewEncoder(w).Encode(map[string][]Player{"players": players})
	}))
}

func TestUserLevelWalksPages(t *testing.T) {
	var hits int64
	server := leaderboard(t, [][]Player{
		{{ID: "a", Level: 40}, {ID: "b", Level: 38}},
		{{ID: "c", Level: 12}},
	}, &hits)
	defer server.Close()

	client := NewClient(server.URL, 2, time.Minute)
	client.WithHTTPClient(server.Client())

	level, err := client.UserLevel(context.Background(), "c")
	if err != nil {
		t.Fatalf("user level: %v", err)
	}
	if level != 12 {
		t.Fatalf("level = %d, want 12", level)
	}
}

func TestUserLevelNotFound(t *testing.T) {
	var hits int64
	server := leaderboard(t, [][]Player{
		{{ID: "a", Level: 40}},
	}, &hits)
	defer server.Close()

	client := NewClient(server.URL, 2, time.Minute)
	client.WithHTTPClient(server.Client())

	_, err := client.UserLevel(context.Background(), "ghost")
	if !errors.Is(err, ErrPlayerNotFound) {
		t.Fatalf("expected ErrPlayerNotFound, got %v", err)
	}
}

func TestPageCacheAvoidsRefetch(t *testing.T) {
	var hits int64
	server := leaderboard(t, [][]Player{
		{{ID: "a", Level: 40}},
	}, &hits)
	defer server.Close()

	now := time.Unix(1700000000, 0)
	client := NewClient(server.URL, 2, time.Minute)
	client.WithHTTPClient(server.Client())
	client.WithNow(func() time.Time { return now })
	ctx := context.Background()

	if _, err := client.Page(ctx, 0); err != nil {
		t.Fatalf("page: %v", err)
	}
	if _, err := client.Page(ctx, 0); err != nil {
		t.Fatalf("page: %v", err)
	}
	if atomic.LoadInt64(&hits) != 1 {
		t.Fatalf("expected a single fetch, got %d", hits)
	}

	now = now.Add(2 * time.Minute)
	if _, err := client.Page(ctx, 0); err != nil {
		t.Fatalf("page: %v", err)
	}
	if atomic.LoadInt64(&hits) != 2 {
		t.Fatalf("stale cache should refetch, got %d hits", hits)
	}
}

func TestPageRejectsBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL, 2, time.Minute)
	client.WithHTTPClient(server.Client())

	if _, err := client.Page(context.Background(), 0); err == nil {
		t.Fatalf("expected error for a 404")
	}
}
