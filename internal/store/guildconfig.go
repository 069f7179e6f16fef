package store

import (
	"context"
	"errors"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// GuildConfig is the single per-guild settings document. Consumers get a
// value snapshot; mutation goes through UpdateGuildConfig and a reload.
type GuildConfig struct {
	GeneralChannel string `bson:"general_channel,omitempty"`
	LogChannel     string `bson:"log_channel,omitempty"`
	ModlogChannel  string `bson:"modlog_channel,omitempty"`
	AutomodChannel string `bson:"automod_channel,omitempty"`
	StickyChannel  string `bson:"sticky_channel,omitempty"`

	HelperRole string `bson:"helper_role,omitempty"`
	TmodRole   string `bson:"tmod_role,omitempty"`
	RmodRole   string `bson:"rmod_role,omitempty"`
	SmodRole   string `bson:"smod_role,omitempty"`
	HmodRole   string `bson:"hmod_role,omitempty"`
	SeniorRole string `bson:"senior_role,omitempty"`
	AdminRole  string `bson:"admin_role,omitempty"`
	ActiveRole string `bson:"active_role,omitempty"`

	DomainAllow []string `bson:"domain_wl,omitempty"`
	DomainBlock []string `bson:"domain_bl,omitempty"`

	IgnoredRoles    []string `bson:"ignored_roles,omitempty"`
	IgnoredChannels []string `bson:"ignored_channels,omitempty"`

	WelcomeMessage string `bson:"welcome_msg,omitempty"`
	StickyMessage  string `bson:"sticky_msg,omitempty"`
}

// StaffRoles returns the ladder from lowest to highest clearance.
func (c GuildConfig) StaffRoles() []string {
	return []string{c.HelperRole, c.TmodRole, c.RmodRole, c.SmodRole, c.HmodRole, c.SeniorRole, c.AdminRole}
}

// LoadGuildConfig reads the settings document, inserting an empty one the
// first time the bot runs against a fresh database.
func (s *Store) LoadGuildConfig(ctx context.Context) (GuildConfig, error) {
	var cfg GuildConfig
	err := s.config.FindOne(ctx, bson.D{}).Decode(&cfg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if _, err := s.config.InsertOne(ctx, GuildConfig{}); err != nil {
			return GuildConfig{}, err
		}
		return GuildConfig{}, nil
	}
	if err != nil {
		return GuildConfig{}, err
	}
	return cfg, nil
}

// UpdateGuildConfig applies a $set patch to the settings document and
// returns the new snapshot.
func (s *Store) UpdateGuildConfig(ctx context.Context, set map[string]any) (GuildConfig, error) {
	fields := bson.D{}
	for key, value := range set {
		fields = append(fields, bson.E{Key: key, Value: value})
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After).SetUpsert(true)
	var cfg GuildConfig
	err := s.config.FindOneAndUpdate(ctx, bson.D{}, bson.D{{Key: "$set", Value: fields}}, opts).Decode(&cfg)
	if err != nil {
		return GuildConfig{}, err
	}
	return cfg, nil
}

// ConfigHolder is the in-process handle to the current guild config.
// Reads return a snapshot; Update and Reload swap it atomically.
type ConfigHolder struct {
	mu    sync.RWMutex
	store *Store
	cur   GuildConfig
}

func NewConfigHolder(ctx context.Context, store *Store) (*ConfigHolder, error) {
	cfg, err := store.LoadGuildConfig(ctx)
	if err != nil {
		return nil, err
	}
	return &ConfigHolder{store: store, cur: cfg}, nil
}

// Snapshot returns the current configuration by value.
func (h *ConfigHolder) Snapshot() GuildConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cur
}

// Reload re-reads the document from the store.
func (h *ConfigHolder) Reload(ctx context.Context) (GuildConfig, error) {
	cfg, err := h.store.LoadGuildConfig(ctx)
	if err != nil {
		return GuildConfig{}, err
	}
	h.mu.Lock()
	h.cur = cfg
	h.mu.Unlock()
	return cfg, nil
}

// Update patches the stored document and swaps in the new snapshot.
func (h *ConfigHolder) Update(ctx context.Context, set map[string]any) (GuildConfig, error) {
	cfg, err := h.store.UpdateGuildConfig(ctx, set)
	if err != nil {
		return GuildConfig{}, err
	}
	h.mu.Lock()
	h.cur = cfg
	h.mu.Unlock()
	return cfg, nil
}
