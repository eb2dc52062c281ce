package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"lift-maintenance-backend/config"
	"lift-maintenance-backend/internal/civdate"
	"lift-maintenance-backend/internal/model"
	"lift-maintenance-backend/internal/sched"
	"lift-maintenance-backend/internal/store"
)

var testNow = time.Date(2025, 1, 1, 12, 0, 0, 0, civdate.Zone)

type apiEnv struct {
	db     *gorm.DB
	router http.Handler
	zone   model.Zone
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

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
		&model.PushSubscription{},
	))

	zone := model.Zone{Code: "MTR-01", Name: "Hong Kong Island Line"}
	require.NoError(t, db.Create(&zone).Error)

	s := store.NewGormStore(db)
	engine := sched.NewEngine(s, func() time.Time { return testNow }, nil)
	cfg := config.ServerConfig{RateLimitPerSec: 1000, RateLimitBurst: 1000, CacheTTLSeconds: 1}
	return &apiEnv{db: db, router: NewRouter(cfg, s, engine, nil), zone: zone}
}

func (env *apiEnv) addEquipment(t *testing.T, number string) model.Equipment {
	t.Helper()
	eq := model.Equipment{
		ZoneID: env.zone.ID,
		Number: number,
		Type:   model.EquipmentElevator,
	}
	require.NoError(t, env.db.Create(&eq).Error)
	return eq
}

func (env *apiEnv) do(method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	env.router.ServeHTTP(w, req)
	return w
}

func TestPostSchedule(t *testing.T) {
	env := newAPIEnv(t)
	eq := env.addEquipment(t, "HOK-E25")

	body := fmt.Sprintf(`{"equipment_id":%d,"planned_date":"2025-01-04","time_slot":"SLOT_0130"}`, eq.ID)
	w := env.do("POST", "/api/schedules", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp ScheduleResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "HOK-E25", resp.EquipmentNumber)
	assert.Equal(t, "2025-01-04", resp.BaselinePlannedDate)
	assert.Equal(t, "2025-01-18", resp.DueDate)
	assert.Equal(t, "PLANNED", resp.Status)
	require.NotNil(t, resp.CurrentPlannedDate)
	assert.Equal(t, "2025-01-04", *resp.CurrentPlannedDate)
}

func TestPostScheduleUnknownEquipment(t *testing.T) {
	env := newAPIEnv(t)

	w := env.do("POST", "/api/schedules", `{"equipment_id":999,"planned_date":"2025-01-04"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPostScheduleInvalidDate(t *testing.T) {
	env := newAPIEnv(t)
	eq := env.addEquipment(t, "HOK-E25")

	body := fmt.Sprintf(`{"equipment_id":%d,"planned_date":"04/01/2025"}`, eq.ID)
	w := env.do("POST", "/api/schedules", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPostMoveScheduleConflict(t *testing.T) {
	env := newAPIEnv(t)
	eqA := env.addEquipment(t, "HOK-E01")
	eqB := env.addEquipment(t, "HOK-E02")

	for _, eq := range []model.Equipment{eqA, eqB} {
		body := fmt.Sprintf(`{"equipment_id":%d,"planned_date":"2025-01-0%d","time_slot":"SLOT_0130"}`, eq.ID, eq.ID+2)
		w := env.do("POST", "/api/schedules", body)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	// Moving onto the other unit's occupied slot without naming a swap
	// partner is refused rather than double-booked.
	var target model.Schedule
	require.NoError(t, env.db.Where("equipment_id = ?", eqA.ID).First(&target).Error)
	var other model.Schedule
	require.NoError(t, env.db.Where("equipment_id = ?", eqB.ID).First(&other).Error)

	body := fmt.Sprintf(`{"target_date":"%s","target_slot":"SLOT_0130"}`, *other.CurrentPlannedDate)
	w := env.do("POST", fmt.Sprintf("/api/schedules/%d/move", target.ID), body)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestPostMoveSchedulePastDate(t *testing.T) {
	env := newAPIEnv(t)
	eq := env.addEquipment(t, "HOK-E01")

	body := fmt.Sprintf(`{"equipment_id":%d,"planned_date":"2025-01-04"}`, eq.ID)
	w := env.do("POST", "/api/schedules", body)
	require.Equal(t, http.StatusCreated, w.Code)

	var created model.Schedule
	require.NoError(t, env.db.First(&created).Error)

	w = env.do("POST", fmt.Sprintf("/api/schedules/%d/move", created.ID),
		`{"target_date":"2024-12-30","target_slot":"SLOT_0130"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetSchedulesFilter(t *testing.T) {
	env := newAPIEnv(t)
	eqA := env.addEquipment(t, "HOK-E01")
	eqB := env.addEquipment(t, "HOK-E02")

	for i, eq := range []model.Equipment{eqA, eqB} {
		body := fmt.Sprintf(`{"equipment_id":%d,"planned_date":"2025-01-0%d"}`, eq.ID, i+4)
		w := env.do("POST", "/api/schedules", body)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := env.do("GET", fmt.Sprintf("/api/schedules?equipment_id=%d", eqA.ID), "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp []ScheduleResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, eqA.ID, resp[0].EquipmentID)

	w = env.do("GET", "/api/schedules?status=PLANNED", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp, 2)
}

func TestDeleteScheduleCancels(t *testing.T) {
	env := newAPIEnv(t)
	eq := env.addEquipment(t, "HOK-E01")

	body := fmt.Sprintf(`{"equipment_id":%d,"planned_date":"2025-01-04"}`, eq.ID)
	w := env.do("POST", "/api/schedules", body)
	require.Equal(t, http.StatusCreated, w.Code)

	var created model.Schedule
	require.NoError(t, env.db.First(&created).Error)

	w = env.do("DELETE", fmt.Sprintf("/api/schedules/%d", created.ID), "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp ScheduleResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "CANCELLED", resp.Status)

	// Cancelling again is a state conflict, not a repeatable delete.
	w = env.do("DELETE", fmt.Sprintf("/api/schedules/%d", created.ID), "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestPostValidateUnknownAction(t *testing.T) {
	env := newAPIEnv(t)
	eq := env.addEquipment(t, "HOK-E01")

	body := fmt.Sprintf(`{"equipment_id":%d,"planned_date":"2025-01-04"}`, eq.ID)
	w := env.do("POST", "/api/schedules", body)
	require.Equal(t, http.StatusCreated, w.Code)

	var created model.Schedule
	require.NoError(t, env.db.First(&created).Error)

	w = env.do("POST", fmt.Sprintf("/api/schedules/%d/validate", created.ID), `{"action":"done"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestGetZones(t *testing.T) {
	env := newAPIEnv(t)
	env.addEquipment(t, "HOK-E01")
	env.addEquipment(t, "HOK-E02")

	w := env.do("GET", "/api/zones", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp []ZoneResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "MTR-01", resp[0].Code)
	assert.Equal(t, int64(2), resp[0].TotalEquipment)
}

func TestGetSchedulesReflectsMoveImmediately(t *testing.T) {
	env := newAPIEnv(t)
	eq := env.addEquipment(t, "HOK-E01")

	body := fmt.Sprintf(`{"equipment_id":%d,"planned_date":"2025-01-04"}`, eq.ID)
	w := env.do("POST", "/api/schedules", body)
	require.Equal(t, http.StatusCreated, w.Code)

	var created model.Schedule
	require.NoError(t, env.db.First(&created).Error)

	w = env.do("GET", "/api/schedules", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do("POST", fmt.Sprintf("/api/schedules/%d/move", created.ID),
		`{"target_date":"2025-01-06","target_slot":"SLOT_0330"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// The listing is not behind the response cache; the move shows up on
	// the very next read.
	w = env.do("GET", "/api/schedules", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp []ScheduleResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	require.NotNil(t, resp[0].CurrentPlannedDate)
	assert.Equal(t, "2025-01-06", *resp[0].CurrentPlannedDate)
	assert.Equal(t, "SLOT_0330", resp[0].TimeSlot)
}
