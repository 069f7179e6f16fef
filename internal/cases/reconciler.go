package cases

import (
	"context"
	"time"

	"go.uber.org/zap"

	"guildwarden/internal/metrics"
)

// Reconciler retires expired sanctions. It runs as a scheduler job; the
// scheduler guarantees ticks never overlap, so no locking happens here.
type Reconciler struct {
	repo     Repository
	enforcer *Enforcer
	logger   *zap.Logger
	now      func() time.Time
}

func NewReconciler(repo Repository, enforcer *Enforcer, logger *zap.Logger) *Reconciler {
	return &Reconciler{repo: repo, enforcer: enforcer, logger: logger, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (r *Reconciler) WithNow(now func() time.Time) { r.now = now }

// Tick scans active cases and retires every expired one. Reversal is
// best-effort: a failed platform call is logged and the record still goes
// inactive, so retirement happens exactly once per case.
func (r *Reconciler) Tick(ctx context.Context) error {
	metrics.ReconcilerTicks.Inc()

	active, err := r.repo.SearchCases(ctx, Filter{
		Active:  BoolPtr(true),
		Deleted: BoolPtr(false),
	})
	if err != nil {
		return err
	}

	now := r.now()
	for _, record := range active {
		if !record.ExpiredAt(now) {
			continue
		}
		if err := r.enforcer.Reverse(ctx, record.Kind, record.SubjectID, record.ChannelID); err != nil {
			r.logger.Warn("sanction reversal failed",
				zap.Int64("case_id", record.ID),
				zap.String("kind", string(record.Kind)),
				zap.String("subject", record.SubjectID),
				zap.Error(err))
		}
		if _, err := r.repo.UpdateCase(ctx, Filter{CaseID: record.ID}, Patch{Active: BoolPtr(false)}); err != nil {
			r.logger.Error("case retirement failed",
				zap.Int64("case_id", record.ID), zap.Error(err))
			continue
		}
		metrics.CasesRetired.Inc()
		r.logger.Info("expired case retired",
			zap.Int64("case_id", record.ID),
			zap.String("kind", string(record.Kind)),
			zap.String("subject", record.SubjectID))
	}
	return nil
}
