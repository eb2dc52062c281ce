package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lift-maintenance-backend/internal/civdate"
	"lift-maintenance-backend/internal/model"
)

// Store defines the interface for all database operations the scheduling
// core performs. Transaction returns a Store bound to the transaction so
// multi-record mutations (swap, push-forward) commit as one unit.
type Store interface {
	DB() *gorm.DB
	Transaction(ctx context.Context, fn func(tx Store) error) error

	GetSchedule(ctx context.Context, id int64) (*model.Schedule, error)
	GetEquipment(ctx context.Context, id int64) (*model.Equipment, error)
	GetEngineer(ctx context.Context, id int64) (*model.Engineer, error)

	CreateSchedule(ctx context.Context, s *model.Schedule) error
	SaveSchedule(ctx context.Context, s *model.Schedule) error
	CreateVisit(ctx context.Context, v *model.MaintenanceVisit) error

	// FindOccupant returns the schedule occupying (zone, date, slot), or
	// nil when the slot is free. A schedule occupies a slot while its
	// status is PLANNED or PENDING.
	FindOccupant(ctx context.Context, zoneID int64, date civdate.DateKey, slot model.TimeSlot, excludeID int64) (*model.Schedule, error)

	// LatestOtherSchedule returns the equipment's most recent non-cancelled
	// slot-holding schedule other than excludeID, by planned date, or nil.
	LatestOtherSchedule(ctx context.Context, equipmentID, excludeID int64) (*model.Schedule, error)

	// SchedulesWithinWindow returns the equipment's non-cancelled schedules
	// whose planned date falls within ±windowDays of date.
	SchedulesWithinWindow(ctx context.Context, equipmentID int64, date civdate.DateKey, windowDays int) ([]model.Schedule, error)

	WorkOrderExists(ctx context.Context, number string, excludeID int64) (bool, error)
	VisitCountForSchedule(ctx context.Context, scheduleID int64) (int64, error)

	// OverduePlanned returns PLANNED schedules whose planned date key is
	// strictly before today, for the pending sweep.
	OverduePlanned(ctx context.Context, today civdate.DateKey) ([]model.Schedule, error)

	ListSchedules(ctx context.Context, f ScheduleFilter) ([]model.Schedule, error)
	ListZones(ctx context.Context) ([]model.Zone, error)

	// UpsertZoneByCode creates the zone or refreshes its name, keyed by code.
	UpsertZoneByCode(ctx context.Context, code, name string) (*model.Zone, error)

	// UpsertEquipmentByNumber creates or refreshes an equipment row, keyed
	// by its unit number. The row's ID is populated on return.
	UpsertEquipmentByNumber(ctx context.Context, eq *model.Equipment) error

	GetEquipmentByNumber(ctx context.Context, number string) (*model.Equipment, error)

	// UpsertEngineerByStaffCode creates or refreshes an engineer row and
	// merges in the given certification codes.
	UpsertEngineerByStaffCode(ctx context.Context, eng *model.Engineer, certs []string) error
}

// ScheduleFilter narrows ListSchedules.
type ScheduleFilter struct {
	ZoneID      *int64
	EquipmentID *int64
	Status      *model.ScheduleStatus
	FromDate    *civdate.DateKey
	ToDate      *civdate.DateKey
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB { return s.db }

// Transaction runs fn against a store bound to a single database
// transaction.
func (s *gormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

func (s *gormStore) GetSchedule(ctx context.Context, id int64) (*model.Schedule, error) {
	var sched model.Schedule
	err := s.db.WithContext(ctx).
		Preload("Equipment").
		First(&sched, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch schedule %d: %w", id, err)
	}
	return &sched, nil
}

func (s *gormStore) GetEquipment(ctx context.Context, id int64) (*model.Equipment, error) {
	var eq model.Equipment
	err := s.db.WithContext(ctx).First(&eq, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch equipment %d: %w", id, err)
	}
	return &eq, nil
}

func (s *gormStore) GetEngineer(ctx context.Context, id int64) (*model.Engineer, error) {
	var eng model.Engineer
	err := s.db.WithContext(ctx).Preload("Certifications").First(&eng, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch engineer %d: %w", id, err)
	}
	return &eng, nil
}

func (s *gormStore) CreateSchedule(ctx context.Context, sched *model.Schedule) error {
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(sched).Error; err != nil {
		return fmt.Errorf("failed to create schedule for equipment %d: %w", sched.EquipmentID, err)
	}
	return nil
}

func (s *gormStore) SaveSchedule(ctx context.Context, sched *model.Schedule) error {
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Save(sched).Error; err != nil {
		return fmt.Errorf("failed to save schedule %d: %w", sched.ID, err)
	}
	return nil
}

func (s *gormStore) CreateVisit(ctx context.Context, v *model.MaintenanceVisit) error {
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(v).Error; err != nil {
		return fmt.Errorf("failed to create visit for equipment %d: %w", v.EquipmentID, err)
	}
	return nil
}

var occupyingStatuses = []model.ScheduleStatus{model.StatusPlanned, model.StatusPending}

func (s *gormStore) FindOccupant(ctx context.Context, zoneID int64, date civdate.DateKey, slot model.TimeSlot, excludeID int64) (*model.Schedule, error) {
	var occupant model.Schedule
	q := s.db.WithContext(ctx).
		Preload("Equipment").
		Where("zone_id = ? AND current_planned_date = ? AND time_slot = ? AND status IN ?",
			zoneID, date, slot, occupyingStatuses)
	if excludeID > 0 {
		q = q.Where("id <> ?", excludeID)
	}
	err := q.First(&occupant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query occupant for zone %d %s %s: %w", zoneID, date, slot, err)
	}
	return &occupant, nil
}

func (s *gormStore) LatestOtherSchedule(ctx context.Context, equipmentID, excludeID int64) (*model.Schedule, error) {
	var sched model.Schedule
	q := s.db.WithContext(ctx).
		Where("equipment_id = ? AND status <> ? AND current_planned_date IS NOT NULL",
			equipmentID, model.StatusCancelled).
		Order("current_planned_date DESC")
	if excludeID > 0 {
		q = q.Where("id <> ?", excludeID)
	}
	err := q.First(&sched).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest schedule for equipment %d: %w", equipmentID, err)
	}
	return &sched, nil
}

func (s *gormStore) SchedulesWithinWindow(ctx context.Context, equipmentID int64, date civdate.DateKey, windowDays int) ([]model.Schedule, error) {
	from, err := civdate.AddDays(date, -windowDays)
	if err != nil {
		return nil, err
	}
	to, err := civdate.AddDays(date, windowDays)
	if err != nil {
		return nil, err
	}
	var scheds []model.Schedule
	err = s.db.WithContext(ctx).
		Where("equipment_id = ? AND status <> ? AND current_planned_date BETWEEN ? AND ?",
			equipmentID, model.StatusCancelled, from, to).
		Find(&scheds).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query schedule window for equipment %d: %w", equipmentID, err)
	}
	return scheds, nil
}

func (s *gormStore) WorkOrderExists(ctx context.Context, number string, excludeID int64) (bool, error) {
	var count int64
	q := s.db.WithContext(ctx).
		Model(&model.Schedule{}).
		Where("work_order_number = ?", number)
	if excludeID > 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check work order %s: %w", number, err)
	}
	return count > 0, nil
}

func (s *gormStore) VisitCountForSchedule(ctx context.Context, scheduleID int64) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&model.MaintenanceVisit{}).
		Where("schedule_id = ?", scheduleID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count visits for schedule %d: %w", scheduleID, err)
	}
	return count, nil
}

func (s *gormStore) OverduePlanned(ctx context.Context, today civdate.DateKey) ([]model.Schedule, error) {
	var scheds []model.Schedule
	err := s.db.WithContext(ctx).
		Where("status = ? AND current_planned_date < ?", model.StatusPlanned, today).
		Find(&scheds).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query overdue planned schedules: %w", err)
	}
	return scheds, nil
}

func (s *gormStore) ListSchedules(ctx context.Context, f ScheduleFilter) ([]model.Schedule, error) {
	q := s.db.WithContext(ctx).Preload("Equipment").Order("current_planned_date, time_slot")
	if f.ZoneID != nil {
		q = q.Where("zone_id = ?", *f.ZoneID)
	}
	if f.EquipmentID != nil {
		q = q.Where("equipment_id = ?", *f.EquipmentID)
	}
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}
	if f.FromDate != nil {
		q = q.Where("current_planned_date >= ?", *f.FromDate)
	}
	if f.ToDate != nil {
		q = q.Where("current_planned_date <= ?", *f.ToDate)
	}
	var scheds []model.Schedule
	if err := q.Find(&scheds).Error; err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	return scheds, nil
}

func (s *gormStore) ListZones(ctx context.Context) ([]model.Zone, error) {
	var zones []model.Zone
	if err := s.db.WithContext(ctx).Order("code").Find(&zones).Error; err != nil {
		return nil, fmt.Errorf("failed to list zones: %w", err)
	}
	return zones, nil
}

func (s *gormStore) UpsertZoneByCode(ctx context.Context, code, name string) (*model.Zone, error) {
	zone := model.Zone{Code: code, Name: name}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
		}).Create(&zone).Error
	if err != nil {
		return nil, fmt.Errorf("failed to upsert zone %s: %w", code, err)
	}
	// The conflict path does not populate the ID, so read it back.
	if err := s.db.WithContext(ctx).Where("code = ?", code).First(&zone).Error; err != nil {
		return nil, fmt.Errorf("failed to reload zone %s: %w", code, err)
	}
	return &zone, nil
}

func (s *gormStore) UpsertEquipmentByNumber(ctx context.Context, eq *model.Equipment) error {
	err := s.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "number"}},
			DoUpdates: clause.AssignmentColumns([]string{"zone_id", "type", "eligible_for_late_night_slot", "updated_at"}),
		}).Create(eq).Error
	if err != nil {
		return fmt.Errorf("failed to upsert equipment %s: %w", eq.Number, err)
	}
	if err := s.db.WithContext(ctx).Where("number = ?", eq.Number).First(eq).Error; err != nil {
		return fmt.Errorf("failed to reload equipment %s: %w", eq.Number, err)
	}
	return nil
}

func (s *gormStore) UpsertEngineerByStaffCode(ctx context.Context, eng *model.Engineer, certs []string) error {
	err := s.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "staff_code"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "zone_id", "updated_at"}),
		}).Create(eng).Error
	if err != nil {
		return fmt.Errorf("failed to upsert engineer %s: %w", eng.StaffCode, err)
	}
	if err := s.db.WithContext(ctx).Where("staff_code = ?", eng.StaffCode).First(eng).Error; err != nil {
		return fmt.Errorf("failed to reload engineer %s: %w", eng.StaffCode, err)
	}
	for _, code := range certs {
		cert := model.EngineerCertification{EngineerID: eng.ID, Code: code}
		err := s.db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&cert).Error
		if err != nil {
			return fmt.Errorf("failed to upsert certification %s for engineer %s: %w", code, eng.StaffCode, err)
		}
	}
	return nil
}

func (s *gormStore) GetEquipmentByNumber(ctx context.Context, number string) (*model.Equipment, error) {
	var eq model.Equipment
	err := s.db.WithContext(ctx).Where("number = ?", number).First(&eq).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch equipment %s: %w", number, err)
	}
	return &eq, nil
}
