package cases

import "time"

// Permanent marks a sanction that never expires. The value is large enough
// that CreatedAt+Duration stays well inside int64 unix seconds.
const Permanent int64 = 1<<31 - 1

// DefaultReason is stored when a moderator gives no reason.
const DefaultReason = "No reason provided."

// Kind is the closed set of case types. Adding a kind requires updating
// every switch in this package; the compiler-checked exhaustive switches
// replace string-keyed dispatch on purpose.
type Kind string

const (
	KindNote         Kind = "note"
	KindDM           Kind = "dm"
	KindWarn         Kind = "warn"
	KindKick         Kind = "kick"
	KindMute         Kind = "mute"
	KindBan          Kind = "ban"
	KindChannelBan   Kind = "channel_ban"
	KindUnmute       Kind = "unmute"
	KindUnban        Kind = "unban"
	KindChannelUnban Kind = "channel_unban"
	KindDecancer     Kind = "decancer"
	KindModnick      Kind = "modnick"
)

// Kinds lists every valid kind, in display order.
var Kinds = []Kind{
	KindNote, KindDM, KindWarn, KindKick,
	KindMute, KindBan, KindChannelBan,
	KindUnmute, KindUnban, KindChannelUnban,
	KindDecancer, KindModnick,
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindNote, KindDM, KindWarn, KindKick, KindMute, KindBan, KindChannelBan,
		KindUnmute, KindUnban, KindChannelUnban, KindDecancer, KindModnick:
		return true
	default:
		return false
	}
}

// Timed reports whether records of this kind carry a running sanction and
// are therefore created active.
func (k Kind) Timed() bool {
	switch k {
	case KindMute, KindBan, KindChannelBan:
		return true
	case KindNote, KindDM, KindWarn, KindKick, KindUnmute, KindUnban,
		KindChannelUnban, KindDecancer, KindModnick:
		return false
	default:
		return false
	}
}

// ChannelScoped reports whether the kind targets a single channel.
func (k Kind) ChannelScoped() bool {
	switch k {
	case KindChannelBan, KindChannelUnban:
		return true
	case KindNote, KindDM, KindWarn, KindKick, KindMute, KindBan,
		KindUnmute, KindUnban, KindDecancer, KindModnick:
		return false
	default:
		return false
	}
}

// Inverse returns the kind that lifts this sanction, or "" when the kind
// has no inverse.
func (k Kind) Inverse() Kind {
	switch k {
	case KindMute:
		return KindUnmute
	case KindBan:
		return KindUnban
	case KindChannelBan:
		return KindChannelUnban
	case KindNote, KindDM, KindWarn, KindKick, KindUnmute, KindUnban,
		KindChannelUnban, KindDecancer, KindModnick:
		return ""
	default:
		return ""
	}
}

// Display returns the human-readable label used in embeds and history.
func (k Kind) Display() string {
	switch k {
	case KindNote:
		return "Note"
	case KindDM:
		return "DM"
	case KindWarn:
		return "Warn"
	case KindKick:
		return "Kick"
	case KindMute:
		return "Mute"
	case KindBan:
		return "Ban"
	case KindChannelBan:
		return "Channel Ban"
	case KindUnmute:
		return "Unmute"
	case KindUnban:
		return "Unban"
	case KindChannelUnban:
		return "Channel Unban"
	case KindDecancer:
		return "Decancer"
	case KindModnick:
		return "Modnick"
	default:
		return string(k)
	}
}

// Record is one moderation case. CreatedAt is immutable after insertion;
// Active only ever transitions true to false.
type Record struct {
	ID          int64  `bson:"case_id"`
	ModeratorID string `bson:"mod_id"`
	SubjectID   string `bson:"user_id"`
	ChannelID   string `bson:"channel_id,omitempty"`
	Kind        Kind   `bson:"type"`
	Reason      string `bson:"reason"`
	CreatedAt   int64  `bson:"created"`
	Duration    int64  `bson:"duration,omitempty"`
	Received    bool   `bson:"received"`
	Active      bool   `bson:"active"`
	Deleted     bool   `bson:"deleted"`
}

// ExpiresAt returns the unix second at which the sanction lapses.
// Meaningless when Duration is zero or Permanent.
func (r Record) ExpiresAt() int64 {
	return r.CreatedAt + r.Duration
}

// ExpiredAt reports whether the sanction has lapsed at the given instant.
// Expiry is strict: at exactly the expiry second the sanction still holds.
// Records without a duration and permanent records never expire.
func (r Record) ExpiredAt(now time.Time) bool {
	if r.Duration <= 0 || r.Duration == Permanent {
		return false
	}
	return now.Unix() > r.ExpiresAt()
}

// Remaining returns how much of the sanction is left at the given instant,
// clamped to zero. Permanent sanctions report Permanent.
func (r Record) Remaining(now time.Time) int64 {
	if r.Duration == Permanent {
		return Permanent
	}
	if r.Duration <= 0 {
		return 0
	}
	left := r.ExpiresAt() - now.Unix()
	if left < 0 {
		return 0
	}
	return left
}
