package sched

import (
	"context"

	"lift-maintenance-backend/internal/civdate"
	"lift-maintenance-backend/internal/model"
	"lift-maintenance-backend/internal/store"
)

// SweepOverduePlanned moves every PLANNED schedule whose planned date is
// strictly before today (fixed zone) to PENDING, and returns how many were
// transitioned. The trigger is delivered at least once, so the sweep is
// idempotent: a second run over the same day finds nothing left to do.
func (e *Engine) SweepOverduePlanned(ctx context.Context) (int, error) {
	today := civdate.Today(e.now())

	var swept []model.Schedule
	err := e.store.Transaction(ctx, func(tx store.Store) error {
		overdue, err := tx.OverduePlanned(ctx, today)
		if err != nil {
			return err
		}
		for i := range overdue {
			overdue[i].Status = model.StatusPending
			if err := tx.SaveSchedule(ctx, &overdue[i]); err != nil {
				return err
			}
		}
		swept = overdue
		return nil
	})
	if err != nil {
		return 0, err
	}

	for i := range swept {
		e.notify(swept[i].ZoneID, swept[i].ID, "pending")
	}
	return len(swept), nil
}
