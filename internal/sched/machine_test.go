package sched

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lift-maintenance-backend/internal/model"
)

func TestValidate_Completed(t *testing.T) {
	env := newTestEnv(t)
	eq := env.addEquipment(t, "HOK-E01", false)
	eng := env.addEngineer(t, "ENG-01", model.CertRegisteredLiftWorker, model.CertSafetyCompetency)

	sched := env.addSchedule(t, eq, model.StatusPending, dk("2024-12-20"), dkp("2024-12-28"), model.Slot0330)
	sched.FixedEngineerID = &eng.ID
	require.NoError(t, env.db.Save(&sched).Error)

	got, err := env.engine.Validate(context.Background(), sched.ID, ActionCompleted)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
	// Planned 2024-12-28 against due 2025-01-03: six or more days of
	// buffer, completed on time.
	assert.False(t, got.IsLate)

	// A visit record was written for the assigned engineer.
	var visits []model.MaintenanceVisit
	require.NoError(t, env.db.Where("schedule_id = ?", sched.ID).Find(&visits).Error)
	require.Len(t, visits, 1)
	assert.Equal(t, eng.ID, visits[0].EngineerID)
	assert.Equal(t, model.VisitOnTime, visits[0].Outcome)
	require.NotNil(t, visits[0].CompletedAt)
}

func TestValidate_CompletedLate(t *testing.T) {
	env := newTestEnv(t)
	eq := env.addEquipment(t, "HOK-E01", false)

	// Planned 2025-01-01 with due 2025-01-03: well inside the risk buffer.
	sched := env.addSchedule(t, eq, model.StatusPending, dk("2024-12-20"), dkp("2025-01-01"), model.Slot0130)

	got, err := env.engine.Validate(context.Background(), sched.ID, ActionCompleted)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.True(t, got.IsLate)
}

func TestValidate_ToReschedule_BeforeDueDateSkips(t *testing.T) {
	env := newTestEnv(t)
	eq := env.addEquipment(t, "HOK-E01", false)

	// Due 2025-01-11, ten days past testNow: reschedulable.
	sched := env.addSchedule(t, eq, model.StatusPending, dk("2024-12-28"), dkp("2024-12-30"), model.Slot0130)
	require.Equal(t, dk("2025-01-11"), sched.DueDate)

	got, err := env.engine.Validate(context.Background(), sched.ID, ActionToReschedule)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSkipped, got.Status)
	assert.Nil(t, got.CurrentPlannedDate)
	assert.Equal(t, dkp("2024-12-30"), got.LastSkippedDate)
	assert.Equal(t, 1, got.SkippedCount)
	assert.False(t, got.IsLate)
}

func TestValidate_ToReschedule_PastDueDateMisses(t *testing.T) {
	env := newTestEnv(t)
	eq := env.addEquipment(t, "HOK-E01", false)

	// Due 2024-12-31, the day before testNow: no further rescheduling.
	sched := env.addSchedule(t, eq, model.StatusPending, dk("2024-12-17"), dkp("2024-12-29"), model.Slot0130)
	require.Equal(t, dk("2024-12-31"), sched.DueDate)

	got, err := env.engine.Validate(context.Background(), sched.ID, ActionToReschedule)
	require.NoError(t, err)
	assert.Equal(t, model.StatusMissed, got.Status)
	assert.Nil(t, got.CurrentPlannedDate)
	assert.Equal(t, dkp("2024-12-29"), got.LastSkippedDate)
	// Skip counter untouched for a miss.
	assert.Equal(t, 0, got.SkippedCount)
}

func TestValidate_ToReschedule_DueTodayStillSkips(t *testing.T) {
	env := newTestEnv(t)
	eq := env.addEquipment(t, "HOK-E01", false)

	// Due exactly today: MISSED requires today strictly after the due date.
	sched := env.addSchedule(t, eq, model.StatusPending, dk("2024-12-18"), dkp("2024-12-30"), model.Slot0130)
	require.Equal(t, dk("2025-01-01"), sched.DueDate)

	got, err := env.engine.Validate(context.Background(), sched.ID, ActionToReschedule)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSkipped, got.Status)
	assert.Equal(t, 1, got.SkippedCount)
}

func TestValidate_RequiresPending(t *testing.T) {
	env := newTestEnv(t)
	eq := env.addEquipment(t, "HOK-E01", false)

	planned := env.addSchedule(t, eq, model.StatusPlanned, dk("2025-01-01"), dkp("2025-01-01"), model.Slot0130)
	_, err := env.engine.Validate(context.Background(), planned.ID, ActionCompleted)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	completed := env.addSchedule(t, eq, model.StatusCompleted, dk("2024-12-01"), dkp("2024-12-01"), model.Slot0130)
	_, err = env.engine.Validate(context.Background(), completed.ID, ActionCompleted)
	assert.ErrorIs(t, err, ErrImmutableState)
}

func TestValidate_UnknownActionRejected(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.engine.Validate(context.Background(), 1, ValidateAction("approve"))
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestValidate_NotFound(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.engine.Validate(context.Background(), 42, ActionCompleted)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCancel(t *testing.T) {
	env := newTestEnv(t)
	eq := env.addEquipment(t, "HOK-E01", false)

	sched := env.addSchedule(t, eq, model.StatusPlanned, dk("2025-01-01"), dkp("2025-01-01"), model.Slot0130)
	got, err := env.engine.Cancel(context.Background(), sched.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, got.Status)

	// Cancelling twice is rejected.
	_, err = env.engine.Cancel(context.Background(), sched.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCancel_EvidenceStatesRejected(t *testing.T) {
	env := newTestEnv(t)
	eq := env.addEquipment(t, "HOK-E01", false)

	completed := env.addSchedule(t, eq, model.StatusCompleted, dk("2024-12-01"), dkp("2024-12-01"), model.Slot0130)
	_, err := env.engine.Cancel(context.Background(), completed.ID)
	assert.ErrorIs(t, err, ErrImmutableState)

	missed := env.addSchedule(t, eq, model.StatusMissed, dk("2024-12-02"), nil, model.Slot0130)
	_, err = env.engine.Cancel(context.Background(), missed.ID)
	assert.ErrorIs(t, err, ErrImmutableState)
}

func TestCancel_RejectedWhenVisitRecorded(t *testing.T) {
	env := newTestEnv(t)
	eq := env.addEquipment(t, "HOK-E01", false)
	eng := env.addEngineer(t, "ENG-01")

	sched := env.addSchedule(t, eq, model.StatusPending, dk("2024-12-20"), dkp("2024-12-28"), model.Slot0130)
	require.NoError(t, env.db.Create(&model.MaintenanceVisit{
		ScheduleID:  &sched.ID,
		EquipmentID: eq.ID,
		EngineerID:  eng.ID,
		StartedAt:   testNow,
		Outcome:     model.VisitOnTime,
	}).Error)

	_, err := env.engine.Cancel(context.Background(), sched.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, model.StatusPending, env.reload(t, sched.ID).Status)
}
