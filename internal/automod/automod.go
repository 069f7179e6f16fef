// Package automod enforces the link filter and the per-channel cooldown.
package automod

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/net/idna"

	"guildwarden/internal/cases"
	"guildwarden/internal/metrics"
	"guildwarden/internal/store"
)

var linkPattern = regexp.MustCompile(`https?://\S+`)

// Messenger is the slice of the platform the module needs for cleanup.
type Messenger interface {
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	SendMessage(ctx context.Context, channelID, content string) error
}

// Muter issues the automated mute once a member runs out of strikes.
type Muter interface {
	AutoMute(ctx context.Context, subjectID, reason string, seconds int64) (cases.Record, error)
}

type Config struct {
	StrikeLimit int
	MuteSeconds int64
}

// Message is the subset of an incoming message the filter inspects.
type Message struct {
	ID        string
	ChannelID string
	AuthorID  string
	Roles     []string
	Content   string
}

type Module struct {
	cfg      Config
	snapshot func() store.GuildConfig
	msgr     Messenger
	muter    Muter
	logger   *zap.Logger

	mu      sync.Mutex
	strikes map[string]int
}

func New(cfg Config, snapshot func() store.GuildConfig, msgr Messenger, muter Muter, logger *zap.Logger) *Module {
	if cfg.StrikeLimit <= 0 {
		cfg.StrikeLimit = 5
	}
	if cfg.MuteSeconds <= 0 {
		cfg.MuteSeconds = 120
	}
	return &Module{
		cfg:      cfg,
		snapshot: snapshot,
		msgr:     msgr,
		muter:    muter,
		logger:   logger,
		strikes:  make(map[string]int),
	}
}

// HandleMessage runs the link filter. It reports whether the message was
// removed.
func (m *Module) HandleMessage(ctx context.Context, msg Message) bool {
	guild := m.snapshot()
	if exemptChannel(guild, msg.ChannelID) || exemptRoles(guild, msg.Roles) {
		return false
	}

	host, offending := offendingHost(guild, msg.Content)
	if !offending {
		return false
	}

	if err := m.msgr.DeleteMessage(ctx, msg.ChannelID, msg.ID); err != nil {
		m.logger.Warn("automod delete failed",
			zap.String("channel", msg.ChannelID),
			zap.String("message", msg.ID),
			zap.Error(err))
		return false
	}
	metrics.AutomodDeletions.Inc()
	_ = m.msgr.SendMessage(ctx, msg.ChannelID,
		fmt.Sprintf("<@%s>, links to `%s` are not allowed here.", msg.AuthorID, host))

	m.mu.Lock()
	m.strikes[msg.AuthorID]++
	count := m.strikes[msg.AuthorID]
	if count >= m.cfg.StrikeLimit {
		delete(m.strikes, msg.AuthorID)
	}
	m.mu.Unlock()

	if count >= m.cfg.StrikeLimit {
		reason := fmt.Sprintf("[AUTO] %d Auto-Mod infractions.", count)
		if _, err := m.muter.AutoMute(ctx, msg.AuthorID, reason, m.cfg.MuteSeconds); err != nil {
			m.logger.Warn("auto mute failed", zap.String("subject", msg.AuthorID), zap.Error(err))
		}
	}
	return true
}

// DecayStrikes drops one strike per member per tick so occasional slips
// never accumulate into a mute.
func (m *Module) DecayStrikes(ctx context.Context) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	for userID, count := range m.strikes {
		if count <= 1 {
			delete(m.strikes, userID)
			continue
		}
		m.strikes[userID] = count - 1
	}
	return nil
}

// Strikes returns a member's current strike count, for tests and status.
func (m *Module) Strikes(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.strikes[userID]
}

// offendingHost returns the first linked host that violates the domain
// lists. Blocked hosts always violate; when an allowlist exists, any host
// outside it violates too.
func offendingHost(guild store.GuildConfig, content string) (string, bool) {
	links := linkPattern.FindAllString(content, -1)
	if len(links) == 0 {
		return "", false
	}

	allow := hostSet(guild.DomainAllow)
	block := hostSet(guild.DomainBlock)

	for _, link := range links {
		parsed, err := url.Parse(link)
		if err != nil || parsed.Hostname() == "" {
			continue
		}
		host := normalizeHost(parsed.Hostname())
		if _, blocked := block[host]; blocked {
			return host, true
		}
		if len(allow) > 0 {
			if _, allowed := allow[host]; !allowed {
				return host, true
			}
		}
	}
	return "", false
}

func exemptChannel(guild store.GuildConfig, channelID string) bool {
	for _, id := range guild.IgnoredChannels {
		if id == channelID {
			return true
		}
	}
	return false
}

func exemptRoles(guild store.GuildConfig, roles []string) bool {
	ignored := toSet(guild.IgnoredRoles)
	staff := toSet(guild.StaffRoles())
	delete(staff, "")
	for _, id := range roles {
		if _, ok := ignored[id]; ok {
			return true
		}
		if _, ok := staff[id]; ok {
			return true
		}
	}
	return false
}

// normalizeHost lowercases, strips the www prefix and converts
// internationalized names to their punycode form, so a unicode spelling of
// a listed domain matches its ASCII entry.
func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimPrefix(host, "www."))
	if ascii, err := idna.ToASCII(host); err == nil {
		host = ascii
	}
	return host
}

// hostSet normalizes list entries the same way message hosts are, so a
// moderator may enter either spelling of an internationalized domain.
func hostSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[normalizeHost(strings.TrimSpace(v))] = struct{}{}
	}
	return set
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[strings.ToLower(v)] = struct{}{}
	}
	return set
}
