// Package levels talks to the external leaderboard API and pays out coin
// rewards for level-ups.
package levels

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// ErrPlayerNotFound is returned when a member has no leaderboard entry.
var ErrPlayerNotFound = fmt.Errorf("player not on leaderboard")

// Player is one leaderboard row.
type Player struct {
	ID    string `json:"id"`
	Level int    `json:"level"`
	XP    int64  `json:"xp"`
}

type page struct {
	Players []Player `json:"players"`
}

// Client fetches leaderboard pages with retries and caches them briefly.
// The upstream rate-limits aggressively; retryablehttp backs off on 429
// and 5xx responses on its own.
type Client struct {
	baseURL   string
	pageLimit int
	cacheTTL  time.Duration
	http      *http.Client
	now       func() time.Time

	mu        sync.Mutex
	pages     map[int]cachedPage
	userCache map[string]cachedLevel
}

type cachedPage struct {
	players []Player
	fetched time.Time
}

type cachedLevel struct {
	level   int
	fetched time.Time
}

func NewClient(baseURL string, pageLimit int, cacheTTL time.Duration) *Client {
	retry := retryablehttp.NewClient()
	retry.RetryMax = 5
	retry.Logger = nil

	if pageLimit <= 0 {
		pageLimit = 1000
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &Client{
		baseURL:   baseURL,
		pageLimit: pageLimit,
		cacheTTL:  cacheTTL,
		http:      retry.StandardClient(),
		now:       time.Now,
		pages:     make(map[int]cachedPage),
		userCache: make(map[string]cachedLevel),
	}
}

// WithHTTPClient overrides the underlying client, for tests.
func (c *Client) WithHTTPClient(h *http.Client) { c.http = h }

// WithNow overrides the clock, for tests.
func (c *Client) WithNow(now func() time.Time) { c.now = now }

// Page returns one leaderboard page, from cache when fresh.
func (c *Client) Page(ctx context.Context, number int) ([]Player, error) {
	c.mu.Lock()
	if cached, ok := c.pages[number]; ok && c.now().Sub(cached.fetched) < c.cacheTTL {
		players := cached.players
		c.mu.Unlock()
		return players, nil
	}
	c.mu.Unlock()

	url := fmt.Sprintf("%s?page=%d&limit=%d", c.baseURL, number, c.pageLimit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("leaderboard page %d: status %d", number, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var decoded page
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("leaderboard page %d: %w", number, err)
	}

	c.mu.Lock()
	c.pages[number] = cachedPage{players: decoded.Players, fetched: c.now()}
	c.mu.Unlock()
	return decoded.Players, nil
}

// UserLevel walks pages until the member appears. An empty page ends the
// walk; the member simply has no entry yet.
func (c *Client) UserLevel(ctx context.Context, userID string) (int, error) {
	c.mu.Lock()
	if cached, ok := c.userCache[userID]; ok && c.now().Sub(cached.fetched) < c.cacheTTL {
		level := cached.level
		c.mu.Unlock()
		return level, nil
	}
	c.mu.Unlock()

	for number := 0; ; number++ {
		players, err := c.Page(ctx, number)
		if err != nil {
			return 0, err
		}
		if len(players) == 0 {
			return 0, ErrPlayerNotFound
		}
		for _, player := range players {
			if player.ID == userID {
				c.mu.Lock()
				c.userCache[userID] = cachedLevel{level: player.Level, fetched: c.now()}
				c.mu.Unlock()
				return player.Level, nil
			}
		}
	}
}
