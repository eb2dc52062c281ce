package extsync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"lift-maintenance-backend/config"
	"lift-maintenance-backend/internal/model"
	"lift-maintenance-backend/internal/store"
)

const payloadCacheKey = "roster_payload"

// apiResponse models the upstream aggregation feed. Item shapes vary per
// contractor system, so rows stay loosely typed until normalization.
type apiResponse struct {
	Code int `json:"code"`
	Data struct {
		Total int              `json:"total"`
		Items []map[string]any `json:"items"`
	} `json:"data"`
}

// RunReport summarizes one sync run for logging and tests.
type RunReport struct {
	RunID              string
	RowsSeen           int
	RowsSkipped        int
	ZonesUpserted      int
	EquipmentUpserted  int
	EngineersUpserted  int
	WorkOrdersAttached int
}

// Service periodically pulls the equipment and engineer roster from the
// upstream aggregation feed and reconciles it into the local tables.
type Service struct {
	cfg    *config.Config
	store  store.Store
	client *http.Client
	cache  *cache.Cache
}

// NewService creates a sync service. The payload cache suppresses
// refetching when runs are triggered more often than the configured TTL.
func NewService(cfg *config.Config, s store.Store) *Service {
	ttl := time.Duration(cfg.Sync.CacheTTLSeconds) * time.Second
	return &Service{
		cfg:    cfg,
		store:  s,
		client: &http.Client{Timeout: 30 * time.Second},
		cache:  cache.New(ttl, 2*ttl),
	}
}

// Run starts the sync loop.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Sync.Enabled {
		log.Println("Roster sync is disabled. Not starting.")
		return
	}
	log.Println("Starting roster sync service...")

	if _, err := s.SyncOnce(ctx); err != nil {
		log.Printf("Roster sync failed: %v", err)
	}

	timer := time.NewTimer(s.cfg.Sync.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Roster sync service shutting down.")
			return
		case <-timer.C:
			if _, err := s.SyncOnce(ctx); err != nil {
				log.Printf("Roster sync failed: %v", err)
			}
			timer.Reset(s.cfg.Sync.Interval)
		}
	}
}

// SyncOnce performs a single fetch-normalize-reconcile round.
func (s *Service) SyncOnce(ctx context.Context) (*RunReport, error) {
	report := &RunReport{RunID: uuid.NewString()}
	log.Printf("Roster sync run %s starting", report.RunID)

	items, err := s.fetchItems(ctx)
	if err != nil {
		return nil, err
	}
	report.RowsSeen = len(items)

	var records []Record
	for _, row := range items {
		rec, err := Normalize(row)
		if err != nil {
			log.Printf("Roster sync run %s: skipping row: %v", report.RunID, err)
			report.RowsSkipped++
			continue
		}
		records = append(records, rec)
	}

	err = s.store.Transaction(ctx, func(tx store.Store) error {
		zones := make(map[string]*model.Zone)
		zoneFor := func(code, name string) (*model.Zone, error) {
			if z, ok := zones[code]; ok {
				return z, nil
			}
			if name == "" {
				name = code
			}
			z, err := tx.UpsertZoneByCode(ctx, code, name)
			if err != nil {
				return nil, err
			}
			zones[code] = z
			report.ZonesUpserted++
			return z, nil
		}

		for _, rec := range records {
			zone, err := zoneFor(rec.ZoneCode, rec.ZoneName)
			if err != nil {
				return err
			}

			switch rec.Kind {
			case KindEquipment:
				eq := model.Equipment{
					ZoneID:                   zone.ID,
					Number:                   rec.Number,
					Type:                     rec.Type,
					EligibleForLateNightSlot: rec.LateNightEligible,
				}
				if err := tx.UpsertEquipmentByNumber(ctx, &eq); err != nil {
					return err
				}
				report.EquipmentUpserted++

				if rec.WorkOrder != "" {
					attached, err := s.attachWorkOrder(ctx, tx, eq.ID, rec.WorkOrder)
					if err != nil {
						return err
					}
					if attached {
						report.WorkOrdersAttached++
					}
				}

			case KindEngineer:
				eng := model.Engineer{
					ZoneID:    zone.ID,
					Name:      rec.StaffName,
					StaffCode: rec.StaffCode,
				}
				if eng.Name == "" {
					eng.Name = rec.StaffCode
				}
				if err := tx.UpsertEngineerByStaffCode(ctx, &eng, rec.Certifications); err != nil {
					return err
				}
				report.EngineersUpserted++
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("roster sync run %s: %w", report.RunID, err)
	}

	log.Printf("Roster sync run %s finished: %d rows, %d equipment, %d engineers, %d skipped",
		report.RunID, report.RowsSeen, report.EquipmentUpserted, report.EngineersUpserted, report.RowsSkipped)
	return report, nil
}

// attachWorkOrder records an upstream work order number against the
// equipment's most recent schedule that has none. Numbers already known
// anywhere are left alone.
func (s *Service) attachWorkOrder(ctx context.Context, tx store.Store, equipmentID int64, number string) (bool, error) {
	exists, err := tx.WorkOrderExists(ctx, number, 0)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	sched, err := tx.LatestOtherSchedule(ctx, equipmentID, 0)
	if err != nil {
		return false, err
	}
	if sched == nil || sched.WorkOrderNumber != nil {
		return false, nil
	}

	sched.WorkOrderNumber = &number
	if err := tx.SaveSchedule(ctx, sched); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) fetchItems(ctx context.Context) ([]map[string]any, error) {
	if cached, found := s.cache.Get(payloadCacheKey); found {
		return cached.([]map[string]any), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.Sync.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create roster request: %w", err)
	}
	for key, value := range s.cfg.Sync.Headers {
		req.Header.Set(key, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch roster: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("roster fetch returned status %d: %s", resp.StatusCode, body)
	}

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode roster response: %w", err)
	}

	s.cache.SetDefault(payloadCacheKey, parsed.Data.Items)
	return parsed.Data.Items, nil
}
