package sched

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"lift-maintenance-backend/internal/civdate"
	"lift-maintenance-backend/internal/model"
	"lift-maintenance-backend/internal/store"
)

// Tests pin "now" to 2025-01-01 12:00 HKT so date arithmetic is stable.
var testNow = time.Date(2025, 1, 1, 12, 0, 0, 0, civdate.Zone)

func fixedNow() time.Time { return testNow }

type testEnv struct {
	db     *gorm.DB
	store  store.Store
	engine *Engine
	zone   model.Zone
}

// recordingNotifier collects dispatched events for assertions.
type recordingNotifier struct {
	events []string
}

func (n *recordingNotifier) ScheduleChanged(zoneID, scheduleID int64, event string) {
	n.events = append(n.events, fmt.Sprintf("%d/%d/%s", zoneID, scheduleID, event))
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&model.Zone{},
		&model.Equipment{},
		&model.Engineer{},
		&model.EngineerCertification{},
		&model.Schedule{},
		&model.MaintenanceVisit{},
	))

	zone := model.Zone{Code: "MTR-01", Name: "Hong Kong Island Line"}
	require.NoError(t, db.Create(&zone).Error)

	s := store.NewGormStore(db)
	return &testEnv{
		db:     db,
		store:  s,
		engine: NewEngine(s, fixedNow, nil),
		zone:   zone,
	}
}

func (env *testEnv) addEquipment(t *testing.T, number string, lateNight bool) model.Equipment {
	t.Helper()
	eq := model.Equipment{
		ZoneID:                   env.zone.ID,
		Number:                   number,
		Type:                     model.EquipmentElevator,
		EligibleForLateNightSlot: lateNight,
	}
	require.NoError(t, env.db.Create(&eq).Error)
	return eq
}

func (env *testEnv) addEngineer(t *testing.T, staffCode string, certs ...string) model.Engineer {
	t.Helper()
	eng := model.Engineer{ZoneID: env.zone.ID, Name: "Engineer " + staffCode, StaffCode: staffCode}
	require.NoError(t, env.db.Create(&eng).Error)
	for _, c := range certs {
		require.NoError(t, env.db.Create(&model.EngineerCertification{EngineerID: eng.ID, Code: c}).Error)
	}
	return eng
}

// addSchedule inserts a schedule directly, bypassing the engine, so tests
// can construct arbitrary starting states.
func (env *testEnv) addSchedule(t *testing.T, eq model.Equipment, status model.ScheduleStatus, r0 civdate.DateKey, planned *civdate.DateKey, slot model.TimeSlot) model.Schedule {
	t.Helper()
	due, err := civdate.AddDays(r0, 14)
	require.NoError(t, err)
	sched := model.Schedule{
		EquipmentID:         eq.ID,
		ZoneID:              eq.ZoneID,
		BaselinePlannedDate: r0,
		CurrentPlannedDate:  planned,
		DueDate:             due,
		TimeSlot:            slot,
		Batch:               model.BatchA,
		Status:              status,
	}
	require.NoError(t, env.db.Create(&sched).Error)
	return sched
}

func (env *testEnv) reload(t *testing.T, id int64) model.Schedule {
	t.Helper()
	var sched model.Schedule
	require.NoError(t, env.db.First(&sched, id).Error)
	return sched
}

func dk(s string) civdate.DateKey { return civdate.DateKey(s) }

func dkp(s string) *civdate.DateKey {
	d := civdate.DateKey(s)
	return &d
}
