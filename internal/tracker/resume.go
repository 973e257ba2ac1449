package tracker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/AndreyMartjushev/takingPills/internal/store"
)

// ResumeMedication reactivates medID and clears its untaken intakes from now
// on, so they are regenerated from the current schedule. changed is false
// when the medication was already active.
func ResumeMedication(ctx context.Context, repo store.Repo, log *zap.Logger, medID int64, now time.Time) (changed bool, err error) {
	changed, err = repo.SetMedicationActive(ctx, medID, true, nil)
	if err != nil || !changed {
		return false, err
	}
	n, err := repo.ClearFutureUntakenIntakes(ctx, medID, now)
	if err != nil {
		return true, err
	}
	log.Info("medication resumed", zap.Int64("med_id", medID), zap.Int64("cleared", n))
	return true, nil
}
