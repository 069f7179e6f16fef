package cases

import (
	"context"

	"go.uber.org/zap"
)

// HandleRejoin re-applies every unexpired active sanction when a member
// rejoins. Timeouts are dropped by the platform when a member leaves, so
// the stored case is the source of truth here. Expired records are left
// for the reconciler; this hook only ever re-applies, never retires.
func (s *Service) HandleRejoin(ctx context.Context, subjectID string) {
	active, err := s.repo.SearchCases(ctx, Filter{
		SubjectID: subjectID,
		Active:    BoolPtr(true),
		Deleted:   BoolPtr(false),
	})
	if err != nil {
		s.logger.Error("rejoin case lookup failed",
			zap.String("subject", subjectID), zap.Error(err))
		return
	}

	now := s.now()
	for _, record := range active {
		if record.ExpiredAt(now) {
			continue
		}
		var err error
		switch record.Kind {
		case KindMute:
			err = s.enforcer.Apply(ctx, KindMute, subjectID, "", record.Remaining(now))
		case KindChannelBan:
			err = s.enforcer.Apply(ctx, KindChannelBan, subjectID, record.ChannelID, record.Duration)
		case KindBan:
			// A banned member cannot rejoin; nothing to re-apply.
			continue
		case KindNote, KindDM, KindWarn, KindKick, KindUnmute, KindUnban,
			KindChannelUnban, KindDecancer, KindModnick:
			continue
		default:
			continue
		}
		if err != nil {
			s.logger.Warn("sanction re-apply failed",
				zap.Int64("case_id", record.ID),
				zap.String("kind", string(record.Kind)),
				zap.String("subject", subjectID),
				zap.Error(err))
			continue
		}
		s.logger.Info("sanction re-applied on rejoin",
			zap.Int64("case_id", record.ID),
			zap.String("kind", string(record.Kind)),
			zap.String("subject", subjectID))
	}
}
