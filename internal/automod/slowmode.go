package automod

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"guildwarden/internal/scheduler"
)

// Gate is the permission surface the cooldown needs.
type Gate interface {
	DenySend(ctx context.Context, channelID, userID string) error
	AllowSend(ctx context.Context, channelID, userID string) error
}

// Slowmode implements a per-channel posting cooldown beyond the platform's
// native cap. After each message the author loses send permission in that
// channel until the cooldown lapses.
type Slowmode struct {
	gate    Gate
	clock   scheduler.Clock
	logger  *zap.Logger
	mu      sync.Mutex
	cooled  map[string]time.Duration
	pending map[string]scheduler.Timer
}

func NewSlowmode(gate Gate, clock scheduler.Clock, logger *zap.Logger) *Slowmode {
	return &Slowmode{
		gate:    gate,
		clock:   clock,
		logger:  logger,
		cooled:  make(map[string]time.Duration),
		pending: make(map[string]scheduler.Timer),
	}
}

// SetChannel enables the cooldown for a channel; zero disables it.
func (s *Slowmode) SetChannel(channelID string, cooldown time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cooldown <= 0 {
		delete(s.cooled, channelID)
		return
	}
	s.cooled[channelID] = cooldown
}

// Cooldown returns the configured cooldown for a channel.
func (s *Slowmode) Cooldown(channelID string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cooled[channelID]
}

// HandleMessage arms the cooldown for the author if the channel has one.
func (s *Slowmode) HandleMessage(ctx context.Context, channelID, userID string) {
	s.mu.Lock()
	cooldown, ok := s.cooled[channelID]
	if !ok {
		s.mu.Unlock()
		return
	}
	key := channelID + "|" + userID
	if _, armed := s.pending[key]; armed {
		s.mu.Unlock()
		return
	}
	// Reserve the key before arming the timer: a near-zero cooldown can
	// fire the callback before this function stores the timer, and the
	// callback's delete must not leave a stale entry behind.
	s.pending[key] = nil
	s.mu.Unlock()

	if err := s.gate.DenySend(ctx, channelID, userID); err != nil {
		s.mu.Lock()
		delete(s.pending, key)
		s.mu.Unlock()
		s.logger.Warn("cooldown deny failed",
			zap.String("channel", channelID), zap.String("user", userID), zap.Error(err))
		return
	}

	timer := s.clock.AfterFunc(cooldown, func() {
		s.mu.Lock()
		delete(s.pending, key)
		s.mu.Unlock()
		if err := s.gate.AllowSend(context.Background(), channelID, userID); err != nil {
			s.logger.Warn("cooldown release failed",
				zap.String("channel", channelID), zap.String("user", userID), zap.Error(err))
		}
	})
	s.mu.Lock()
	if _, live := s.pending[key]; live {
		s.pending[key] = timer
	}
	s.mu.Unlock()
}

// Release lifts every pending cooldown, for shutdown.
func (s *Slowmode) Release(ctx context.Context) {
	s.mu.Lock()
	pending := s.pending
	s.pending = make(map[string]scheduler.Timer)
	s.mu.Unlock()
	for key, timer := range pending {
		if timer != nil {
			timer.Stop()
		}
		channelID, userID, ok := strings.Cut(key, "|")
		if !ok {
			continue
		}
		if err := s.gate.AllowSend(ctx, channelID, userID); err != nil {
			s.logger.Warn("cooldown release failed", zap.String("key", key), zap.Error(err))
		}
	}
}
