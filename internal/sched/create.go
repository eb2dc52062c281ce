package sched

import (
	"context"
	"fmt"

	"lift-maintenance-backend/internal/civdate"
	"lift-maintenance-backend/internal/model"
	"lift-maintenance-backend/internal/policy"
	"lift-maintenance-backend/internal/store"
)

// CreateRequest describes one manually or import-created schedule.
type CreateRequest struct {
	EquipmentID             int64
	R0                      civdate.DateKey
	R1                      *civdate.DateKey
	Batch                   *model.Batch
	TimeSlot                model.TimeSlot
	WorkOrderNumber         *string
	FixedEngineerID         *int64
	RotatingEngineerID      *int64
	AllowIneligibleLateSlot bool
}

// Create validates and persists a new PLANNED schedule. The due date is
// computed once from R0 and never changes afterwards.
func (e *Engine) Create(ctx context.Context, req CreateRequest) (*model.Schedule, error) {
	if _, err := civdate.Parse(string(req.R0)); err != nil {
		return nil, err
	}
	r1 := req.R0
	if req.R1 != nil {
		if _, err := civdate.Parse(string(*req.R1)); err != nil {
			return nil, err
		}
		r1 = *req.R1
	}

	slot := req.TimeSlot
	if !policy.ValidSlot(slot) {
		// Same deliberate fallback the slot-to-wall-clock table applies.
		slot = model.Slot0130
	}

	var out *model.Schedule
	err := e.store.Transaction(ctx, func(tx store.Store) error {
		eq, err := tx.GetEquipment(ctx, req.EquipmentID)
		if err != nil {
			return err
		}
		if eq == nil {
			return fmt.Errorf("equipment %d: %w", req.EquipmentID, ErrNotFound)
		}

		if slot == model.Slot2300 && !policy.CanUseLateNightSlot(eq) && !req.AllowIneligibleLateSlot {
			return fmt.Errorf("equipment %s: %w", eq.Number, ErrSlotEligibility)
		}

		if err := checkCycleGap(ctx, tx, eq.ID, r1, 0); err != nil {
			return err
		}

		if req.WorkOrderNumber != nil {
			exists, err := tx.WorkOrderExists(ctx, *req.WorkOrderNumber, 0)
			if err != nil {
				return err
			}
			if exists {
				return fmt.Errorf("work order %s: %w", *req.WorkOrderNumber, ErrDuplicateWorkOrder)
			}
		}

		if err := checkEngineerAssignment(ctx, tx, req.FixedEngineerID, req.RotatingEngineerID); err != nil {
			return err
		}

		due, err := policy.DueDate(req.R0)
		if err != nil {
			return err
		}
		batch := model.Batch("")
		if req.Batch != nil {
			batch = *req.Batch
		} else {
			batch, err = policy.DetermineBatch(req.R0)
			if err != nil {
				return err
			}
		}

		planned := r1
		sched := &model.Schedule{
			EquipmentID:         eq.ID,
			ZoneID:              eq.ZoneID,
			BaselinePlannedDate: req.R0,
			CurrentPlannedDate:  &planned,
			DueDate:             due,
			TimeSlot:            slot,
			Batch:               batch,
			Status:              model.StatusPlanned,
			IsLate:              policy.IsAtRisk(planned, due, model.StatusPlanned),
			WorkOrderNumber:     req.WorkOrderNumber,
			FixedEngineerID:     req.FixedEngineerID,
			RotatingEngineerID:  req.RotatingEngineerID,
		}
		if err := tx.CreateSchedule(ctx, sched); err != nil {
			return err
		}
		out = sched
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.notify(out.ZoneID, out.ID, "created")
	return out, nil
}

// BulkCreateRequest generates one schedule per equipment per 14-day tick
// inside [From, To].
type BulkCreateRequest struct {
	EquipmentIDs []int64
	From, To     civdate.DateKey
	Batch        *model.Batch
	TimeSlot     *model.TimeSlot
}

// BulkCreate generates recurring schedules across a date range. Batch
// alternates per tick unless given explicitly; the time slot rotates
// through the three windows when no default is given. Ticks that land
// within one day of an existing schedule for the same equipment are
// skipped.
func (e *Engine) BulkCreate(ctx context.Context, req BulkCreateRequest) ([]model.Schedule, error) {
	if _, err := civdate.Parse(string(req.From)); err != nil {
		return nil, err
	}
	if _, err := civdate.Parse(string(req.To)); err != nil {
		return nil, err
	}
	if civdate.Compare(req.From, req.To) > 0 {
		return nil, fmt.Errorf("range %s..%s: %w", req.From, req.To, civdate.ErrInvalidDate)
	}

	var created []model.Schedule
	err := e.store.Transaction(ctx, func(tx store.Store) error {
		for _, eqID := range req.EquipmentIDs {
			eq, err := tx.GetEquipment(ctx, eqID)
			if err != nil {
				return err
			}
			if eq == nil {
				return fmt.Errorf("equipment %d: %w", eqID, ErrNotFound)
			}

			tick := 0
			for d := req.From; civdate.Compare(d, req.To) <= 0; tick++ {
				sched, err := e.bulkTick(ctx, tx, eq, d, tick, req)
				if err != nil {
					return err
				}
				if sched != nil {
					created = append(created, *sched)
				}

				next, err := civdate.AddDays(d, policy.CycleDays)
				if err != nil {
					return err
				}
				d = next
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i := range created {
		e.notify(created[i].ZoneID, created[i].ID, "created")
	}
	return created, nil
}

// bulkTick creates the schedule for one equipment on one 14-day tick, or
// returns nil when a schedule already exists within the ±1-day window.
func (e *Engine) bulkTick(ctx context.Context, tx store.Store, eq *model.Equipment, d civdate.DateKey, tick int, req BulkCreateRequest) (*model.Schedule, error) {
	existing, err := tx.SchedulesWithinWindow(ctx, eq.ID, d, 1)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, nil
	}

	slot := model.Slot0130
	if req.TimeSlot != nil && policy.ValidSlot(*req.TimeSlot) {
		slot = *req.TimeSlot
	} else if req.TimeSlot == nil {
		slot = policy.RotationOrder[tick%len(policy.RotationOrder)]
	}
	if slot == model.Slot2300 && !policy.CanUseLateNightSlot(eq) {
		// Rotation must not place an ineligible unit into the 23:00 slot.
		slot = model.Slot0130
	}

	batch := model.Batch("")
	if req.Batch != nil {
		batch = *req.Batch
	} else {
		batch, err = policy.DetermineBatch(d)
		if err != nil {
			return nil, err
		}
	}

	due, err := policy.DueDate(d)
	if err != nil {
		return nil, err
	}
	planned := d
	sched := &model.Schedule{
		EquipmentID:         eq.ID,
		ZoneID:              eq.ZoneID,
		BaselinePlannedDate: d,
		CurrentPlannedDate:  &planned,
		DueDate:             due,
		TimeSlot:            slot,
		Batch:               batch,
		Status:              model.StatusPlanned,
		IsLate:              policy.IsAtRisk(planned, due, model.StatusPlanned),
	}
	if err := tx.CreateSchedule(ctx, sched); err != nil {
		return nil, err
	}
	return sched, nil
}

// AssignEngineers sets or replaces the engineer assignments of a schedule.
// The fixed role requires the RLW and SAFETY certifications; violation is
// a rejected request, never a silent downgrade to the rotating role.
func (e *Engine) AssignEngineers(ctx context.Context, scheduleID int64, fixedID, rotatingID *int64) (*model.Schedule, error) {
	var out *model.Schedule
	err := e.store.Transaction(ctx, func(tx store.Store) error {
		sched, err := tx.GetSchedule(ctx, scheduleID)
		if err != nil {
			return err
		}
		if sched == nil {
			return fmt.Errorf("schedule %d: %w", scheduleID, ErrNotFound)
		}
		if sched.Terminal() {
			return fmt.Errorf("schedule %d is %s: %w", sched.ID, sched.Status, ErrImmutableState)
		}

		if err := checkEngineerAssignment(ctx, tx, fixedID, rotatingID); err != nil {
			return err
		}

		sched.FixedEngineerID = fixedID
		sched.RotatingEngineerID = rotatingID
		if err := tx.SaveSchedule(ctx, sched); err != nil {
			return err
		}
		out = sched
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func checkEngineerAssignment(ctx context.Context, tx store.Store, fixedID, rotatingID *int64) error {
	if fixedID != nil {
		eng, err := tx.GetEngineer(ctx, *fixedID)
		if err != nil {
			return err
		}
		if eng == nil {
			return fmt.Errorf("engineer %d: %w", *fixedID, ErrNotFound)
		}
		if !eng.QualifiedForFixedRole() {
			return fmt.Errorf("engineer %s lacks %s/%s: %w",
				eng.StaffCode, model.CertRegisteredLiftWorker, model.CertSafetyCompetency, ErrUnqualifiedEngineer)
		}
	}
	if rotatingID != nil {
		eng, err := tx.GetEngineer(ctx, *rotatingID)
		if err != nil {
			return err
		}
		if eng == nil {
			return fmt.Errorf("engineer %d: %w", *rotatingID, ErrNotFound)
		}
	}
	return nil
}
