package extsync

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"lift-maintenance-backend/config"
	"lift-maintenance-backend/internal/model"
	"lift-maintenance-backend/internal/store"
)

const rosterPayload = `{
	"code": 0,
	"data": {
		"total": 3,
		"items": [
			{"lift_no": "HOK-E25", "district": "MTR-01", "district_name": "Island Line", "category": "lift", "overnight_eligible": "Y"},
			{"asset_code": "CEN-S11", "region": "MTR-01", "equipment_type": "escalator"},
			{"staff_no": "ENG-007", "staff_name": "A. Wong", "zone": "MTR-01", "certifications": "RLW,SAFETY"},
			{"comment": "malformed row"}
		]
	}
}`

func newSyncTest(t *testing.T, handler http.HandlerFunc) (*Service, *gorm.DB) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

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

	cfg := &config.Config{}
	cfg.Sync.Enabled = true
	cfg.Sync.URL = server.URL
	cfg.Sync.CacheTTLSeconds = 300

	return NewService(cfg, store.NewGormStore(db)), db
}

func TestSyncOnce(t *testing.T) {
	svc, db := newSyncTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(rosterPayload))
	})

	report, err := svc.SyncOnce(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 4, report.RowsSeen)
	assert.Equal(t, 1, report.RowsSkipped)
	assert.Equal(t, 1, report.ZonesUpserted)
	assert.Equal(t, 2, report.EquipmentUpserted)
	assert.Equal(t, 1, report.EngineersUpserted)

	var eq model.Equipment
	require.NoError(t, db.Where("number = ?", "HOK-E25").First(&eq).Error)
	assert.True(t, eq.EligibleForLateNightSlot)
	assert.Equal(t, model.EquipmentElevator, eq.Type)

	var eng model.Engineer
	require.NoError(t, db.Preload("Certifications").Where("staff_code = ?", "ENG-007").First(&eng).Error)
	assert.True(t, eng.QualifiedForFixedRole())

	var zone model.Zone
	require.NoError(t, db.Where("code = ?", "MTR-01").First(&zone).Error)
	assert.Equal(t, "Island Line", zone.Name)
}

func TestSyncOnceIsIdempotent(t *testing.T) {
	svc, db := newSyncTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(rosterPayload))
	})

	_, err := svc.SyncOnce(context.Background())
	require.NoError(t, err)
	_, err = svc.SyncOnce(context.Background())
	require.NoError(t, err)

	var eqCount, engCount, certCount int64
	require.NoError(t, db.Model(&model.Equipment{}).Count(&eqCount).Error)
	require.NoError(t, db.Model(&model.Engineer{}).Count(&engCount).Error)
	require.NoError(t, db.Model(&model.EngineerCertification{}).Count(&certCount).Error)
	assert.Equal(t, int64(2), eqCount)
	assert.Equal(t, int64(1), engCount)
	assert.Equal(t, int64(2), certCount)
}

func TestSyncPayloadCache(t *testing.T) {
	var hits int32
	svc, _ := newSyncTest(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte(rosterPayload))
	})

	_, err := svc.SyncOnce(context.Background())
	require.NoError(t, err)
	_, err = svc.SyncOnce(context.Background())
	require.NoError(t, err)

	// The second run inside the TTL reuses the cached payload.
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestSyncFetchError(t *testing.T) {
	svc, _ := newSyncTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := svc.SyncOnce(context.Background())
	assert.Error(t, err)
}
