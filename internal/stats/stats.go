// Package stats batches message and voice activity in memory and flushes
// it to the store once a minute. It also rotates the active-member role.
package stats

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"guildwarden/internal/store"
)

// Sink is the slice of the store the recorder writes to.
type Sink interface {
	InsertMessageStats(ctx context.Context, stats []store.MessageStat) error
	InsertVoiceStats(ctx context.Context, stats []store.VoiceStat) error
	MessageCounts(ctx context.Context, since int64) (map[string]int64, error)
	VoiceTotals(ctx context.Context, since int64) (map[string]int64, error)
}

// RoleAssigner rotates the active-member role to a winner set.
type RoleAssigner interface {
	RotateRole(ctx context.Context, roleID string, userIDs []string) error
}

type Config struct {
	ActiveLookback time.Duration
	ActiveLimit    int
}

type Recorder struct {
	sink     Sink
	roles    RoleAssigner
	snapshot func() store.GuildConfig
	logger   *zap.Logger
	cfg      Config
	now      func() time.Time

	mu           sync.Mutex
	messages     map[msgKey]int64
	sessions     map[string]voiceSession
	pendingVoice []store.VoiceStat
}

type msgKey struct {
	userID    string
	channelID string
}

type voiceSession struct {
	channelID string
	since     time.Time
}

func NewRecorder(sink Sink, roles RoleAssigner, snapshot func() store.GuildConfig, cfg Config, logger *zap.Logger) *Recorder {
	if cfg.ActiveLookback <= 0 {
		cfg.ActiveLookback = 28 * 24 * time.Hour
	}
	if cfg.ActiveLimit <= 0 {
		cfg.ActiveLimit = 10
	}
	return &Recorder{
		sink:     sink,
		roles:    roles,
		snapshot: snapshot,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
		messages: make(map[msgKey]int64),
		sessions: make(map[string]voiceSession),
	}
}

// WithNow overrides the clock, for tests.
func (r *Recorder) WithNow(now func() time.Time) { r.now = now }

// CountMessage adds one message to the pending batch.
func (r *Recorder) CountMessage(userID, channelID string) {
	r.mu.Lock()
	r.messages[msgKey{userID: userID, channelID: channelID}]++
	r.mu.Unlock()
}

// VoiceJoin opens a voice session for a member.
func (r *Recorder) VoiceJoin(userID, channelID string) {
	r.mu.Lock()
	r.sessions[userID] = voiceSession{channelID: channelID, since: r.now()}
	r.mu.Unlock()
}

// VoiceLeave closes a member's voice session; the elapsed slice joins the
// pending batch on the next flush.
func (r *Recorder) VoiceLeave(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[userID]
	if !ok {
		return
	}
	delete(r.sessions, userID)
	r.pendingVoice = append(r.pendingVoice, store.VoiceStat{
		UserID:    userID,
		ChannelID: session.channelID,
		Seconds:   int64(r.now().Sub(session.since).Seconds()),
		Timestamp: r.now().Unix(),
	})
}

// Flush writes the pending batches to the store. Runs as a scheduler job.
// Open voice sessions are sliced at the flush instant and restarted so a
// marathon session still counts minute by minute.
func (r *Recorder) Flush(ctx context.Context) error {
	now := r.now()

	r.mu.Lock()
	msgBatch := make([]store.MessageStat, 0, len(r.messages))
	for key, count := range r.messages {
		msgBatch = append(msgBatch, store.MessageStat{
			UserID:    key.userID,
			ChannelID: key.channelID,
			Count:     count,
			Timestamp: now.Unix(),
		})
	}
	r.messages = make(map[msgKey]int64)

	voiceBatch := r.pendingVoice
	r.pendingVoice = nil
	for userID, session := range r.sessions {
		seconds := int64(now.Sub(session.since).Seconds())
		if seconds <= 0 {
			continue
		}
		voiceBatch = append(voiceBatch, store.VoiceStat{
			UserID:    userID,
			ChannelID: session.channelID,
			Seconds:   seconds,
			Timestamp: now.Unix(),
		})
		r.sessions[userID] = voiceSession{channelID: session.channelID, since: now}
	}
	r.mu.Unlock()

	if err := r.sink.InsertMessageStats(ctx, msgBatch); err != nil {
		return err
	}
	return r.sink.InsertVoiceStats(ctx, voiceBatch)
}

// RotateActiveRole recomputes the most-active member set over the lookback
// window and hands the active role to them. Runs as a scheduler job.
func (r *Recorder) RotateActiveRole(ctx context.Context) error {
	guild := r.snapshot()
	if guild.ActiveRole == "" {
		return nil
	}
	since := r.now().Add(-r.cfg.ActiveLookback).Unix()

	byMessages, err := r.sink.MessageCounts(ctx, since)
	if err != nil {
		return err
	}
	byVoice, err := r.sink.VoiceTotals(ctx, since)
	if err != nil {
		return err
	}

	// One voice minute weighs the same as one message.
	scores := make(map[string]int64, len(byMessages))
	for userID, count := range byMessages {
		scores[userID] += count
	}
	for userID, seconds := range byVoice {
		scores[userID] += seconds / 60
	}

	type ranked struct {
		userID string
		score  int64
	}
	order := make([]ranked, 0, len(scores))
	for userID, score := range scores {
		if score > 0 {
			order = append(order, ranked{userID: userID, score: score})
		}
	}
	sort.Slice(order, func(i, j int) bool {
		if order[i].score != order[j].score {
			return order[i].score > order[j].score
		}
		return order[i].userID < order[j].userID
	})
	if len(order) > r.cfg.ActiveLimit {
		order = order[:r.cfg.ActiveLimit]
	}

	winners := make([]string, len(order))
	for i, entry := range order {
		winners[i] = entry.userID
	}
	r.logger.Debug("active role rotation", zap.Int("winners", len(winners)))
	return r.roles.RotateRole(ctx, guild.ActiveRole, winners)
}
