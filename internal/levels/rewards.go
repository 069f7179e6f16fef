package levels

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"guildwarden/internal/store"
)

// Balances is the slice of the store the rewarder needs.
type Balances interface {
	CoinsEntryFor(ctx context.Context, userID string) (store.CoinsEntry, error)
	AddCoins(ctx context.Context, userID string, delta int64) (store.CoinsEntry, error)
	SetKnownLevel(ctx context.Context, userID string, level int) error
}

// Rewarder credits coins when a recently-active member's leaderboard level
// moves past the last level they were rewarded at.
type Rewarder struct {
	client        *Client
	balances      Balances
	logger        *zap.Logger
	coinsPerLevel int64

	mu     sync.Mutex
	recent map[string]struct{}
}

func NewRewarder(client *Client, balances Balances, coinsPerLevel int64, logger *zap.Logger) *Rewarder {
	if coinsPerLevel <= 0 {
		coinsPerLevel = 50
	}
	return &Rewarder{
		client:        client,
		balances:      balances,
		logger:        logger,
		coinsPerLevel: coinsPerLevel,
		recent:        make(map[string]struct{}),
	}
}

// MarkActive queues a member for the next reward pass.
func (r *Rewarder) MarkActive(userID string) {
	r.mu.Lock()
	r.recent[userID] = struct{}{}
	r.mu.Unlock()
}

// Tick drains the recently-active set and pays out any level-ups. Runs as
// a scheduler job.
func (r *Rewarder) Tick(ctx context.Context) error {
	r.mu.Lock()
	drained := r.recent
	r.recent = make(map[string]struct{})
	r.mu.Unlock()

	for userID := range drained {
		level, err := r.client.UserLevel(ctx, userID)
		if errors.Is(err, ErrPlayerNotFound) {
			continue
		}
		if err != nil {
			r.logger.Warn("leaderboard lookup failed", zap.String("user", userID), zap.Error(err))
			continue
		}

		entry, err := r.balances.CoinsEntryFor(ctx, userID)
		if err != nil {
			r.logger.Warn("balance lookup failed", zap.String("user", userID), zap.Error(err))
			continue
		}
		if level <= entry.KnownLevel {
			continue
		}

		gained := int64(level-entry.KnownLevel) * r.coinsPerLevel
		if _, err := r.balances.AddCoins(ctx, userID, gained); err != nil {
			r.logger.Warn("coin credit failed", zap.String("user", userID), zap.Error(err))
			continue
		}
		if err := r.balances.SetKnownLevel(ctx, userID, level); err != nil {
			r.logger.Warn("level record failed", zap.String("user", userID), zap.Error(err))
			continue
		}
		r.logger.Info("level reward paid",
			zap.String("user", userID),
			zap.Int("level", level),
			zap.Int64("coins", gained))
	}
	return nil
}
