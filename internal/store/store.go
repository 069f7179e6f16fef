// Package store is the Mongo persistence layer: case records, the guild
// configuration document, coin balances and activity stats.
package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
	logger *zap.Logger

	cases     *mongo.Collection
	config    *mongo.Collection
	coins     *mongo.Collection
	msgStats  *mongo.Collection
	voiceLogs *mongo.Collection
}

// Connect dials Mongo, verifies the connection with a ping and binds the
// named database.
func Connect(ctx context.Context, uri, database string, logger *zap.Logger) (*Store, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	opts := options.Client().ApplyURI(uri).SetServerSelectionTimeout(10 * time.Second)
	client, err := mongo.Connect(dialCtx, opts)
	if err != nil {
		return nil, err
	}

	pingCtx, cancelPing := context.WithTimeout(ctx, 10*time.Second)
	defer cancelPing()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	db := client.Database(database)
	logger.Info("mongo connected", zap.String("database", database))

	return &Store{
		client:    client,
		db:        db,
		logger:    logger,
		cases:     db.Collection("cases"),
		config:    db.Collection("config"),
		coins:     db.Collection("coins"),
		msgStats:  db.Collection("message_stats"),
		voiceLogs: db.Collection("voice_stats"),
	}, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
