package cases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"guildwarden/internal/metrics"
)

// Limits bounds moderator-supplied durations.
type Limits struct {
	MuteMinSeconds int64
	MuteMaxSeconds int64
}

// Service implements the moderation command surface on top of the
// repository, the enforcer and the platform client.
type Service struct {
	repo     Repository
	enforcer *Enforcer
	platform Platform
	logger   *zap.Logger
	guild    string
	limits   Limits
	now      func() time.Time
}

func NewService(repo Repository, enforcer *Enforcer, platform Platform, logger *zap.Logger, guildName string, limits Limits) *Service {
	return &Service{
		repo:     repo,
		enforcer: enforcer,
		platform: platform,
		logger:   logger,
		guild:    guildName,
		limits:   limits,
		now:      time.Now,
	}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) { s.now = now }

// Note records an internal note about a member. No notification is sent.
func (s *Service) Note(ctx context.Context, moderatorID, subjectID, reason string) (Record, error) {
	if err := s.checkTarget(ctx, subjectID); err != nil {
		return Record{}, err
	}
	return s.insert(ctx, Record{
		ModeratorID: moderatorID,
		SubjectID:   subjectID,
		Kind:        KindNote,
		Reason:      orDefault(reason),
	})
}

// DM sends a direct message to a member and records it. Unlike every other
// command the delivery itself is the point, so a failed send is fatal.
func (s *Service) DM(ctx context.Context, moderatorID, subjectID, content string) (Record, error) {
	if err := s.checkTarget(ctx, subjectID); err != nil {
		return Record{}, err
	}
	if err := s.platform.DirectMessage(ctx, subjectID, content); err != nil {
		return Record{}, fmt.Errorf("dm delivery: %w", err)
	}
	return s.insert(ctx, Record{
		ModeratorID: moderatorID,
		SubjectID:   subjectID,
		Kind:        KindDM,
		Reason:      content,
		Received:    true,
	})
}

// Warn notifies a member of a rule violation and records it.
func (s *Service) Warn(ctx context.Context, moderatorID, subjectID, reason string) (Record, error) {
	if err := s.checkTarget(ctx, subjectID); err != nil {
		return Record{}, err
	}
	reason = orDefault(reason)
	received := s.notify(ctx, subjectID, KindWarn, reason, 0)
	return s.insert(ctx, Record{
		ModeratorID: moderatorID,
		SubjectID:   subjectID,
		Kind:        KindWarn,
		Reason:      reason,
		Received:    received,
	})
}

// Kick removes a member from the guild. The notification goes out before
// the kick because a removed member can no longer be messaged.
func (s *Service) Kick(ctx context.Context, moderatorID, subjectID, reason string) (Record, error) {
	if err := s.checkTarget(ctx, subjectID); err != nil {
		return Record{}, err
	}
	reason = orDefault(reason)
	received := s.notify(ctx, subjectID, KindKick, reason, 0)
	if err := s.platform.Kick(ctx, subjectID, reason); err != nil {
		return Record{}, fmt.Errorf("kick: %w", err)
	}
	return s.insert(ctx, Record{
		ModeratorID: moderatorID,
		SubjectID:   subjectID,
		Kind:        KindKick,
		Reason:      reason,
		Received:    received,
	})
}

// Mute times a member out for the given duration. A member who already
// left the guild still gets an active record so a rejoin re-applies it.
func (s *Service) Mute(ctx context.Context, moderatorID, subjectID, reason, duration string) (Record, error) {
	if err := s.checkTarget(ctx, subjectID); err != nil {
		return Record{}, err
	}
	seconds, err := ParseDuration(duration)
	if err != nil {
		return Record{}, err
	}
	if err := CheckMuteRange(duration, seconds, s.limits.MuteMinSeconds, s.limits.MuteMaxSeconds); err != nil {
		return Record{}, err
	}

	present := true
	muted, err := s.platform.IsTimedOut(ctx, subjectID)
	switch {
	case errors.Is(err, ErrUnknownMember):
		present = false
	case err != nil:
		return Record{}, fmt.Errorf("mute state check: %w", err)
	case muted:
		return Record{}, &AlreadySanctionedError{SubjectID: subjectID, Kind: KindMute}
	}

	reason = orDefault(reason)
	received := false
	if present {
		received = s.notify(ctx, subjectID, KindMute, reason, seconds)
		if err := s.enforcer.Apply(ctx, KindMute, subjectID, "", seconds); err != nil {
			return Record{}, fmt.Errorf("mute: %w", err)
		}
	}
	return s.insert(ctx, Record{
		ModeratorID: moderatorID,
		SubjectID:   subjectID,
		Kind:        KindMute,
		Reason:      reason,
		Duration:    seconds,
		Received:    received,
		Active:      true,
	})
}

// AutoMute is the automated-moderation entry point. It runs the mute
// pipeline with an empty moderator id and a preformatted reason.
func (s *Service) AutoMute(ctx context.Context, subjectID, reason string, seconds int64) (Record, error) {
	muted, err := s.platform.IsTimedOut(ctx, subjectID)
	if err != nil && !errors.Is(err, ErrUnknownMember) {
		return Record{}, fmt.Errorf("mute state check: %w", err)
	}
	if muted {
		return Record{}, &AlreadySanctionedError{SubjectID: subjectID, Kind: KindMute}
	}

	received := s.notify(ctx, subjectID, KindMute, reason, seconds)
	if err := s.enforcer.Apply(ctx, KindMute, subjectID, "", seconds); err != nil {
		return Record{}, fmt.Errorf("mute: %w", err)
	}
	return s.insert(ctx, Record{
		SubjectID: subjectID,
		Kind:      KindMute,
		Reason:    reason,
		Duration:  seconds,
		Received:  received,
		Active:    true,
	})
}

// Ban bans a member. An empty duration means permanent.
func (s *Service) Ban(ctx context.Context, moderatorID, subjectID, reason, duration string) (Record, error) {
	if err := s.checkTarget(ctx, subjectID); err != nil {
		return Record{}, err
	}
	seconds := Permanent
	if duration != "" {
		var err error
		seconds, err = ParseDuration(duration)
		if err != nil {
			return Record{}, err
		}
	}

	banned, err := s.platform.IsBanned(ctx, subjectID)
	if err != nil {
		return Record{}, fmt.Errorf("ban state check: %w", err)
	}
	if banned {
		return Record{}, &AlreadySanctionedError{SubjectID: subjectID, Kind: KindBan}
	}

	reason = orDefault(reason)
	received := s.notify(ctx, subjectID, KindBan, reason, seconds)
	if err := s.enforcer.Apply(ctx, KindBan, subjectID, "", seconds); err != nil {
		return Record{}, fmt.Errorf("ban: %w", err)
	}
	return s.insert(ctx, Record{
		ModeratorID: moderatorID,
		SubjectID:   subjectID,
		Kind:        KindBan,
		Reason:      reason,
		Duration:    seconds,
		Received:    received,
		Active:      true,
	})
}

// ChannelBan hides a channel from a member. An empty duration means
// permanent.
func (s *Service) ChannelBan(ctx context.Context, moderatorID, subjectID, channelID, reason, duration string) (Record, error) {
	if err := s.checkTarget(ctx, subjectID); err != nil {
		return Record{}, err
	}
	seconds := Permanent
	if duration != "" {
		var err error
		seconds, err = ParseDuration(duration)
		if err != nil {
			return Record{}, err
		}
	}

	hidden, err := s.platform.IsChannelHidden(ctx, channelID, subjectID)
	if err != nil {
		return Record{}, fmt.Errorf("channel ban state check: %w", err)
	}
	if hidden {
		return Record{}, &AlreadySanctionedError{SubjectID: subjectID, Kind: KindChannelBan, ChannelID: channelID}
	}

	reason = orDefault(reason)
	received := s.notify(ctx, subjectID, KindChannelBan, reason, seconds)
	if err := s.enforcer.Apply(ctx, KindChannelBan, subjectID, channelID, seconds); err != nil {
		return Record{}, fmt.Errorf("channel ban: %w", err)
	}
	return s.insert(ctx, Record{
		ModeratorID: moderatorID,
		SubjectID:   subjectID,
		ChannelID:   channelID,
		Kind:        KindChannelBan,
		Reason:      reason,
		Duration:    seconds,
		Received:    received,
		Active:      true,
	})
}

// Unmute lifts a timeout.
func (s *Service) Unmute(ctx context.Context, moderatorID, subjectID, reason string) (Record, error) {
	muted, err := s.platform.IsTimedOut(ctx, subjectID)
	if err != nil {
		return Record{}, fmt.Errorf("mute state check: %w", err)
	}
	if !muted {
		return Record{}, &NotSanctionedError{SubjectID: subjectID, Kind: KindMute}
	}
	return s.lift(ctx, moderatorID, subjectID, "", KindMute, reason)
}

// Unban lifts a ban.
func (s *Service) Unban(ctx context.Context, moderatorID, subjectID, reason string) (Record, error) {
	banned, err := s.platform.IsBanned(ctx, subjectID)
	if err != nil {
		return Record{}, fmt.Errorf("ban state check: %w", err)
	}
	if !banned {
		return Record{}, &NotSanctionedError{SubjectID: subjectID, Kind: KindBan}
	}
	return s.lift(ctx, moderatorID, subjectID, "", KindBan, reason)
}

// ChannelUnban restores a member's view of a channel.
func (s *Service) ChannelUnban(ctx context.Context, moderatorID, subjectID, channelID, reason string) (Record, error) {
	hidden, err := s.platform.IsChannelHidden(ctx, channelID, subjectID)
	if err != nil {
		return Record{}, fmt.Errorf("channel ban state check: %w", err)
	}
	if !hidden {
		return Record{}, &NotSanctionedError{SubjectID: subjectID, Kind: KindChannelBan, ChannelID: channelID}
	}
	return s.lift(ctx, moderatorID, subjectID, channelID, KindChannelBan, reason)
}

// lift reverses a standing sanction, records the inverse case and retires
// every matching active record so a crash between steps never revives the
// sanction.
func (s *Service) lift(ctx context.Context, moderatorID, subjectID, channelID string, kind Kind, reason string) (Record, error) {
	if err := s.enforcer.Reverse(ctx, kind, subjectID, channelID); err != nil {
		return Record{}, fmt.Errorf("reverse %s: %w", kind, err)
	}
	record, err := s.insert(ctx, Record{
		ModeratorID: moderatorID,
		SubjectID:   subjectID,
		ChannelID:   channelID,
		Kind:        kind.Inverse(),
		Reason:      orDefault(reason),
	})
	if err != nil {
		return Record{}, err
	}
	s.endActive(ctx, subjectID, channelID, kind)
	return record, nil
}

// endActive retires every active record for (subject, kind, channel).
// Multiple records can exist after manual edits; all of them go inactive.
func (s *Service) endActive(ctx context.Context, subjectID, channelID string, kind Kind) {
	filter := Filter{
		SubjectID: subjectID,
		Kind:      kind,
		ChannelID: channelID,
		Active:    BoolPtr(true),
		Deleted:   BoolPtr(false),
	}
	for {
		updated, err := s.repo.UpdateCase(ctx, filter, Patch{Active: BoolPtr(false)})
		if errors.Is(err, ErrCaseNotFound) {
			return
		}
		if err != nil {
			s.logger.Error("retiring case failed", zap.String("subject", subjectID), zap.Error(err))
			return
		}
		metrics.CasesRetired.Inc()
		s.logger.Info("case retired",
			zap.Int64("case_id", updated.ID),
			zap.String("kind", string(kind)),
			zap.String("subject", subjectID))
	}
}

// Decancer normalizes a member's display name to plain ASCII.
func (s *Service) Decancer(ctx context.Context, moderatorID, subjectID string) (Record, error) {
	if err := s.checkTarget(ctx, subjectID); err != nil {
		return Record{}, err
	}
	name, err := s.platform.DisplayName(ctx, subjectID)
	if err != nil {
		return Record{}, fmt.Errorf("display name: %w", err)
	}
	cleaned := normalizeName(name)
	if cleaned == name {
		return Record{}, fmt.Errorf("display name %q is already clean", name)
	}
	if err := s.platform.SetNickname(ctx, subjectID, cleaned); err != nil {
		return Record{}, fmt.Errorf("set nickname: %w", err)
	}
	return s.insert(ctx, Record{
		ModeratorID: moderatorID,
		SubjectID:   subjectID,
		Kind:        KindDecancer,
		Reason:      fmt.Sprintf("Normalized %q to %q.", name, cleaned),
	})
}

// Modnick replaces a member's nickname with a moderated placeholder.
func (s *Service) Modnick(ctx context.Context, moderatorID, subjectID string) (Record, error) {
	if err := s.checkTarget(ctx, subjectID); err != nil {
		return Record{}, err
	}
	nick := fmt.Sprintf("Moderated Nickname %04d", s.now().UnixNano()%10000)
	if err := s.platform.SetNickname(ctx, subjectID, nick); err != nil {
		return Record{}, fmt.Errorf("set nickname: %w", err)
	}
	return s.insert(ctx, Record{
		ModeratorID: moderatorID,
		SubjectID:   subjectID,
		Kind:        KindModnick,
		Reason:      fmt.Sprintf("Nickname set to %q.", nick),
	})
}

// EditReason replaces the reason of an existing case.
func (s *Service) EditReason(ctx context.Context, caseID int64, reason string) (Record, error) {
	record, err := s.repo.CaseByID(ctx, caseID)
	if err != nil {
		return Record{}, err
	}
	if record.Deleted {
		return Record{}, ErrCaseDeleted
	}
	return s.repo.UpdateCase(ctx, Filter{CaseID: caseID}, Patch{Reason: StringPtr(orDefault(reason))})
}

// EditDuration replaces the duration of a timed case. When the case is
// active and the new duration has already elapsed, the sanction is lifted
// best-effort and the case retired in the same update.
func (s *Service) EditDuration(ctx context.Context, caseID int64, duration string) (Record, error) {
	record, err := s.repo.CaseByID(ctx, caseID)
	if err != nil {
		return Record{}, err
	}
	if record.Deleted {
		return Record{}, ErrCaseDeleted
	}
	if !record.Kind.Timed() {
		return Record{}, fmt.Errorf("case %d (%s) has no duration", caseID, record.Kind)
	}
	seconds, err := ParseDuration(duration)
	if err != nil {
		return Record{}, err
	}
	if record.Kind == KindMute {
		if err := CheckMuteRange(duration, seconds, s.limits.MuteMinSeconds, s.limits.MuteMaxSeconds); err != nil {
			return Record{}, err
		}
	}

	patch := Patch{Duration: Int64Ptr(seconds)}
	edited := record
	edited.Duration = seconds
	if record.Active && edited.ExpiredAt(s.now()) {
		if err := s.enforcer.Reverse(ctx, record.Kind, record.SubjectID, record.ChannelID); err != nil {
			s.logger.Warn("reversal after duration edit failed",
				zap.Int64("case_id", caseID), zap.Error(err))
		}
		patch.Active = BoolPtr(false)
		metrics.CasesRetired.Inc()
	} else if record.Active && record.Kind == KindMute {
		// Timeouts carry their own expiry on the platform side, so an
		// extended or shortened mute has to be re-applied.
		if err := s.enforcer.Apply(ctx, KindMute, record.SubjectID, "", edited.Remaining(s.now())); err != nil {
			s.logger.Warn("timeout adjustment failed",
				zap.Int64("case_id", caseID), zap.Error(err))
		}
	}
	return s.repo.UpdateCase(ctx, Filter{CaseID: caseID}, patch)
}

// SoftDelete hides a case from history. Active cases must be lifted or
// expired first so a deleted case can never hold a live sanction.
func (s *Service) SoftDelete(ctx context.Context, caseID int64) (Record, error) {
	record, err := s.repo.CaseByID(ctx, caseID)
	if err != nil {
		return Record{}, err
	}
	if record.Active {
		return Record{}, ErrCaseActive
	}
	if record.Deleted {
		return Record{}, ErrCaseDeleted
	}
	return s.repo.UpdateCase(ctx, Filter{CaseID: caseID}, Patch{Deleted: BoolPtr(true)})
}

// Restore undoes a soft deletion. The record stays inactive; restoring
// never resurrects a sanction.
func (s *Service) Restore(ctx context.Context, caseID int64) (Record, error) {
	record, err := s.repo.CaseByID(ctx, caseID)
	if err != nil {
		return Record{}, err
	}
	if !record.Deleted {
		return Record{}, fmt.Errorf("case %d is not deleted", caseID)
	}
	return s.repo.UpdateCase(ctx, Filter{CaseID: caseID}, Patch{Deleted: BoolPtr(false)})
}

// History returns a member's cases, newest last. Soft-deleted cases are
// omitted unless requested.
func (s *Service) History(ctx context.Context, subjectID string, includeDeleted bool) ([]Record, error) {
	filter := Filter{SubjectID: subjectID}
	if !includeDeleted {
		filter.Deleted = BoolPtr(false)
	}
	return s.repo.SearchCases(ctx, filter)
}

// Case returns a single case by id.
func (s *Service) Case(ctx context.Context, caseID int64) (Record, error) {
	return s.repo.CaseByID(ctx, caseID)
}

func (s *Service) checkTarget(ctx context.Context, subjectID string) error {
	rank, err := s.platform.Clearance(ctx, subjectID)
	if err != nil {
		if errors.Is(err, ErrUnknownMember) {
			return nil
		}
		return fmt.Errorf("clearance check: %w", err)
	}
	if rank > 0 {
		return ErrTargetProtected
	}
	return nil
}

// insert assigns the next case id, stamps the creation time and persists
// the record. Sanctions are already in effect by the time this runs, so an
// insert failure is surfaced loudly.
func (s *Service) insert(ctx context.Context, record Record) (Record, error) {
	id, err := s.repo.NextCaseID(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("case id: %w", err)
	}
	record.ID = id
	record.CreatedAt = s.now().Unix()
	if err := s.repo.InsertCase(ctx, record); err != nil {
		return Record{}, fmt.Errorf("insert case: %w", err)
	}
	metrics.CasesCreated.WithLabelValues(string(record.Kind)).Inc()
	s.logger.Info("case created",
		zap.Int64("case_id", record.ID),
		zap.String("kind", string(record.Kind)),
		zap.String("subject", record.SubjectID),
		zap.String("moderator", record.ModeratorID))
	return record, nil
}

// notify delivers the sanction DM and reports whether it arrived.
func (s *Service) notify(ctx context.Context, subjectID string, kind Kind, reason string, seconds int64) bool {
	var b strings.Builder
	fmt.Fprintf(&b, "You received a %s in %s.", strings.ToLower(kind.Display()), s.guild)
	fmt.Fprintf(&b, "\nReason: %s", reason)
	if seconds > 0 {
		if seconds == Permanent {
			b.WriteString("\nDuration: permanent")
		} else {
			fmt.Fprintf(&b, "\nDuration: %s", FormatDuration(seconds))
		}
	}
	if err := s.platform.DirectMessage(ctx, subjectID, b.String()); err != nil {
		s.logger.Debug("sanction dm not delivered",
			zap.String("subject", subjectID), zap.Error(err))
		return false
	}
	return true
}

// FormatDuration renders seconds in the same grammar ParseDuration accepts.
func FormatDuration(seconds int64) string {
	if seconds == Permanent {
		return "permanent"
	}
	if seconds <= 0 {
		return "0s"
	}
	units := []struct {
		suffix byte
		size   int64
	}{
		{'y', 31536000}, {'w', 604800}, {'d', 86400},
		{'h', 3600}, {'m', 60}, {'s', 1},
	}
	var b strings.Builder
	for _, u := range units {
		if seconds >= u.size {
			fmt.Fprintf(&b, "%d%c", seconds/u.size, u.suffix)
			seconds %= u.size
		}
	}
	return b.String()
}

// normalizeName strips combining marks and non-ASCII noise from a display
// name, keeping it pingable.
func normalizeName(name string) string {
	decomposed := norm.NFKD.String(name)
	var b strings.Builder
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		if r > unicode.MaxASCII {
			continue
		}
		if unicode.IsPrint(r) {
			b.WriteRune(r)
		}
	}
	cleaned := strings.TrimSpace(b.String())
	if cleaned == "" {
		cleaned = "Moderated Nickname"
	}
	return cleaned
}

func orDefault(reason string) string {
	if strings.TrimSpace(reason) == "" {
		return DefaultReason
	}
	return reason
}
