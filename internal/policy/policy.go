package policy

import (
	"lift-maintenance-backend/internal/civdate"
	"lift-maintenance-backend/internal/model"
)

// CycleDays is the maintenance cycle length: a unit is due again 14 days
// after its baseline planned date, exact, with no business-day adjustment.
const CycleDays = 14

// BatchEpoch anchors the global A/B alternation. It is one epoch for the
// whole system, not per equipment, so batch labels are comparable across
// zones and bulk-generation runs.
const BatchEpoch = civdate.DateKey("2024-11-02")

// RiskBufferDays: a PLANNED schedule is at risk once fewer than 6 days of
// buffer remain before the due date, i.e. planned >= due - 5.
const RiskBufferDays = 5

// DueDate computes the hard compliance deadline from R0.
func DueDate(r0 civdate.DateKey) (civdate.DateKey, error) {
	return civdate.AddDays(r0, CycleDays)
}

// SlotWallClock maps a symbolic time slot to its wall-clock hour and
// minute in the fixed zone. Unknown slot values fail closed to the middle
// slot (01:30); callers that need strict validation check the enum before
// calling. The fallback is deliberate and covered by a test.
func SlotWallClock(slot model.TimeSlot) (hour, minute int) {
	switch slot {
	case model.Slot2300:
		return 23, 0
	case model.Slot0130:
		return 1, 30
	case model.Slot0330:
		return 3, 30
	default:
		return 1, 30
	}
}

// ValidSlot reports whether the value is one of the three known slots.
func ValidSlot(slot model.TimeSlot) bool {
	switch slot {
	case model.Slot2300, model.Slot0130, model.Slot0330:
		return true
	}
	return false
}

// SlotSearchOrder is the order the push-forward search tries slots on each
// candidate day: late-night first when the equipment is eligible, then the
// two early-morning slots in fixed order.
func SlotSearchOrder(lateNightEligible bool) []model.TimeSlot {
	if lateNightEligible {
		return []model.TimeSlot{model.Slot2300, model.Slot0130, model.Slot0330}
	}
	return []model.TimeSlot{model.Slot0130, model.Slot0330}
}

// RotationOrder is the slot rotation used by bulk generation when no
// default slot is given.
var RotationOrder = []model.TimeSlot{model.Slot2300, model.Slot0130, model.Slot0330}

// DetermineBatch returns the A/B label for a date relative to the global
// epoch: floor(daysSince(epoch)/14) mod 2, 0 -> A, 1 -> B.
func DetermineBatch(date civdate.DateKey) (model.Batch, error) {
	days, err := civdate.DaysBetween(BatchEpoch, date)
	if err != nil {
		return "", err
	}
	tick := days / CycleDays
	if days < 0 && days%CycleDays != 0 {
		tick-- // floor division for dates before the epoch
	}
	if tick%2 == 0 {
		return model.BatchA, nil
	}
	return model.BatchB, nil
}

// IsAtRisk reports whether a schedule's planned date leaves fewer than six
// days of buffer before its due date. Only PLANNED schedules can be at
// risk; every other status is false regardless of dates. Pure predicate;
// the caller persists the result as IsLate on date-affecting transitions.
func IsAtRisk(planned, due civdate.DateKey, status model.ScheduleStatus) bool {
	if status != model.StatusPlanned {
		return false
	}
	threshold, err := civdate.AddDays(due, -RiskBufferDays)
	if err != nil {
		return false
	}
	return civdate.Compare(planned, threshold) >= 0
}

// CanUseLateNightSlot reports whether the equipment may take the 23:00
// slot without an override.
func CanUseLateNightSlot(eq *model.Equipment) bool {
	return eq.EligibleForLateNightSlot
}
