package cases

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Platform is the surface of the chat platform the engine needs. The
// discordgo implementation lives in internal/platform; tests use fakes.
type Platform interface {
	Timeout(ctx context.Context, userID string, until time.Time) error
	ClearTimeout(ctx context.Context, userID string) error
	Ban(ctx context.Context, userID, reason string) error
	Unban(ctx context.Context, userID string) error
	HideChannel(ctx context.Context, channelID, userID string) error
	UnhideChannel(ctx context.Context, channelID, userID string) error

	IsTimedOut(ctx context.Context, userID string) (bool, error)
	IsBanned(ctx context.Context, userID string) (bool, error)
	IsChannelHidden(ctx context.Context, channelID, userID string) (bool, error)

	DirectMessage(ctx context.Context, userID, content string) error
	Kick(ctx context.Context, userID, reason string) error
	SetNickname(ctx context.Context, userID, nick string) error
	DisplayName(ctx context.Context, userID string) (string, error)

	// Clearance returns the subject's staff rank, zero for regular members.
	Clearance(ctx context.Context, userID string) (int, error)
}

// Enforcer translates a case kind into its platform effect. It never
// retries; callers decide whether a failure is fatal.
type Enforcer struct {
	platform Platform
	logger   *zap.Logger
	now      func() time.Time
}

func NewEnforcer(platform Platform, logger *zap.Logger) *Enforcer {
	return &Enforcer{platform: platform, logger: logger, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (e *Enforcer) WithNow(now func() time.Time) { e.now = now }

// Apply puts the sanction for the given kind into effect. Kinds without a
// standing platform effect are a no-op here; their effects (kick, nickname
// edits, DMs) happen at the service layer because they are one-shot.
func (e *Enforcer) Apply(ctx context.Context, kind Kind, subjectID, channelID string, duration int64) error {
	switch kind {
	case KindMute:
		until := e.now().Add(time.Duration(duration) * time.Second)
		return e.platform.Timeout(ctx, subjectID, until)
	case KindBan:
		return e.platform.Ban(ctx, subjectID, "")
	case KindChannelBan:
		return e.platform.HideChannel(ctx, channelID, subjectID)
	case KindNote, KindDM, KindWarn, KindKick, KindUnmute, KindUnban,
		KindChannelUnban, KindDecancer, KindModnick:
		return nil
	default:
		return nil
	}
}

// Reverse lifts the standing effect of the given kind.
func (e *Enforcer) Reverse(ctx context.Context, kind Kind, subjectID, channelID string) error {
	switch kind {
	case KindMute:
		return e.platform.ClearTimeout(ctx, subjectID)
	case KindBan:
		return e.platform.Unban(ctx, subjectID)
	case KindChannelBan:
		return e.platform.UnhideChannel(ctx, channelID, subjectID)
	case KindNote, KindDM, KindWarn, KindKick, KindUnmute, KindUnban,
		KindChannelUnban, KindDecancer, KindModnick:
		return nil
	default:
		return nil
	}
}
