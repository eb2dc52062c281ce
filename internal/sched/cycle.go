package sched

import (
	"context"

	"lift-maintenance-backend/internal/civdate"
	"lift-maintenance-backend/internal/policy"
	"lift-maintenance-backend/internal/store"
)

// checkCycleGap rejects a candidate planned date more than 14 days away
// from the equipment's most recent other schedule. With no prior schedule
// any date is valid. Applied at creation time only; moves are not
// re-checked.
func checkCycleGap(ctx context.Context, tx store.Store, equipmentID int64, candidate civdate.DateKey, excludeID int64) error {
	prior, err := tx.LatestOtherSchedule(ctx, equipmentID, excludeID)
	if err != nil {
		return err
	}
	if prior == nil || prior.CurrentPlannedDate == nil {
		return nil
	}

	gap, err := civdate.DaysBetween(*prior.CurrentPlannedDate, candidate)
	if err != nil {
		return err
	}
	if gap < 0 {
		gap = -gap
	}
	if gap > policy.CycleDays {
		return &CycleViolationError{Prior: prior, CandidateDate: candidate, GapDays: gap}
	}
	return nil
}
