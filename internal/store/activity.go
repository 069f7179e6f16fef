package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CoinsEntry tracks a member's coin balance and the last leaderboard level
// they were rewarded for.
type CoinsEntry struct {
	UserID     string `bson:"user_id"`
	Coins      int64  `bson:"coins"`
	KnownLevel int    `bson:"known_level"`
}

// MessageStat is one flushed batch of messages for a member.
type MessageStat struct {
	UserID    string `bson:"user_id"`
	ChannelID string `bson:"channel_id"`
	Count     int64  `bson:"count"`
	Timestamp int64  `bson:"ts"`
}

// VoiceStat is one completed or flushed voice session slice.
type VoiceStat struct {
	UserID    string `bson:"user_id"`
	ChannelID string `bson:"channel_id"`
	Seconds   int64  `bson:"seconds"`
	Timestamp int64  `bson:"ts"`
}

// CoinsEntryFor returns the member's balance row, zero-valued when absent.
func (s *Store) CoinsEntryFor(ctx context.Context, userID string) (CoinsEntry, error) {
	var entry CoinsEntry
	err := s.coins.FindOne(ctx, bson.D{{Key: "user_id", Value: userID}}).Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return CoinsEntry{UserID: userID}, nil
	}
	if err != nil {
		return CoinsEntry{}, err
	}
	return entry, nil
}

// AddCoins adjusts a balance by delta, clamping at zero.
func (s *Store) AddCoins(ctx context.Context, userID string, delta int64) (CoinsEntry, error) {
	entry, err := s.CoinsEntryFor(ctx, userID)
	if err != nil {
		return CoinsEntry{}, err
	}
	entry.Coins += delta
	if entry.Coins < 0 {
		entry.Coins = 0
	}
	return entry, s.upsertCoins(ctx, entry)
}

// SetKnownLevel records the leaderboard level a member was last rewarded at.
func (s *Store) SetKnownLevel(ctx context.Context, userID string, level int) error {
	entry, err := s.CoinsEntryFor(ctx, userID)
	if err != nil {
		return err
	}
	entry.KnownLevel = level
	return s.upsertCoins(ctx, entry)
}

func (s *Store) upsertCoins(ctx context.Context, entry CoinsEntry) error {
	opts := options.Replace().SetUpsert(true)
	_, err := s.coins.ReplaceOne(ctx, bson.D{{Key: "user_id", Value: entry.UserID}}, entry, opts)
	return err
}

// InsertMessageStats stores one flush batch.
func (s *Store) InsertMessageStats(ctx context.Context, stats []MessageStat) error {
	if len(stats) == 0 {
		return nil
	}
	docs := make([]any, len(stats))
	for i, stat := range stats {
		docs[i] = stat
	}
	_, err := s.msgStats.InsertMany(ctx, docs)
	return err
}

// InsertVoiceStats stores one flush batch.
func (s *Store) InsertVoiceStats(ctx context.Context, stats []VoiceStat) error {
	if len(stats) == 0 {
		return nil
	}
	docs := make([]any, len(stats))
	for i, stat := range stats {
		docs[i] = stat
	}
	_, err := s.voiceLogs.InsertMany(ctx, docs)
	return err
}

// MessageCounts sums stored message counts per member since the given
// unix second.
func (s *Store) MessageCounts(ctx context.Context, since int64) (map[string]int64, error) {
	cursor, err := s.msgStats.Find(ctx, bson.D{{Key: "ts", Value: bson.D{{Key: "$gte", Value: since}}}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	totals := make(map[string]int64)
	for cursor.Next(ctx) {
		var stat MessageStat
		if err := cursor.Decode(&stat); err != nil {
			return nil, err
		}
		totals[stat.UserID] += stat.Count
	}
	return totals, cursor.Err()
}

// VoiceTotals sums stored voice seconds per member since the given unix
// second.
func (s *Store) VoiceTotals(ctx context.Context, since int64) (map[string]int64, error) {
	cursor, err := s.voiceLogs.Find(ctx, bson.D{{Key: "ts", Value: bson.D{{Key: "$gte", Value: since}}}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	totals := make(map[string]int64)
	for cursor.Next(ctx) {
		var stat VoiceStat
		if err := cursor.Decode(&stat); err != nil {
			return nil, err
		}
		totals[stat.UserID] += stat.Seconds
	}
	return totals, cursor.Err()
}
