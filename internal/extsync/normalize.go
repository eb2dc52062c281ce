package extsync

import (
	"fmt"
	"strings"

	"lift-maintenance-backend/internal/model"
)

// RecordKind tells which roster table a normalized row belongs to.
type RecordKind string

const (
	KindEquipment RecordKind = "equipment"
	KindEngineer  RecordKind = "engineer"
)

// Record is one normalized upstream row. The upstream feed is an
// aggregation of several contractor systems, so the same logical field
// arrives under different names depending on the source.
type Record struct {
	Kind RecordKind

	// Equipment fields
	Number            string
	ZoneCode          string
	ZoneName          string
	Type              model.EquipmentType
	LateNightEligible bool
	WorkOrder         string

	// Engineer fields
	StaffCode      string
	StaffName      string
	Certifications []string
}

// fieldAliases maps each canonical field to the names it arrives under.
var fieldAliases = map[string][]string{
	"number":     {"number", "unit_no", "equipment_no", "lift_no", "asset_code"},
	"zone_code":  {"zone", "zone_code", "district", "region"},
	"zone_name":  {"zone_name", "district_name", "region_name"},
	"type":       {"type", "category", "equipment_type"},
	"late_night": {"late_night_ok", "overnight_eligible", "night_window"},
	"work_order": {"work_order", "wo_no", "work_order_number"},
	"staff_code": {"staff_code", "staff_no", "employee_no"},
	"staff_name": {"name", "staff_name", "employee_name"},
	"certs":      {"certs", "certifications", "licences"},
}

func lookup(row map[string]any, field string) (any, bool) {
	for _, alias := range fieldAliases[field] {
		if v, ok := row[alias]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func lookupString(row map[string]any, field string) string {
	v, ok := lookup(row, field)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// lookupBool tolerates the flag encodings the contractor feeds use.
func lookupBool(row map[string]any, field string) bool {
	v, ok := lookup(row, field)
	if !ok {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		switch strings.ToUpper(strings.TrimSpace(t)) {
		case "Y", "YES", "TRUE", "1":
			return true
		}
	}
	return false
}

func normalizeType(raw string) (model.EquipmentType, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "LIFT", "ELEVATOR", "E":
		return model.EquipmentElevator, true
	case "ESCALATOR", "WALKWAY", "ES":
		return model.EquipmentEscalator, true
	}
	return "", false
}

func normalizeCerts(v any) []string {
	var out []string
	add := func(raw string) {
		c := strings.ToUpper(strings.TrimSpace(raw))
		if c != "" {
			out = append(out, c)
		}
	}
	switch t := v.(type) {
	case string:
		for _, part := range strings.Split(t, ",") {
			add(part)
		}
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok {
				add(s)
			}
		}
	}
	return out
}

// Normalize maps one loosely-typed upstream row to a Record. Rows that
// name neither a unit number nor a staff code are rejected.
func Normalize(row map[string]any) (Record, error) {
	rec := Record{
		Number:    lookupString(row, "number"),
		ZoneCode:  lookupString(row, "zone_code"),
		ZoneName:  lookupString(row, "zone_name"),
		WorkOrder: lookupString(row, "work_order"),
		StaffCode: lookupString(row, "staff_code"),
		StaffName: lookupString(row, "staff_name"),
	}

	switch {
	case rec.StaffCode != "":
		rec.Kind = KindEngineer
		if v, ok := lookup(row, "certs"); ok {
			rec.Certifications = normalizeCerts(v)
		}
		if rec.ZoneCode == "" {
			return rec, fmt.Errorf("engineer row %s has no zone", rec.StaffCode)
		}
	case rec.Number != "":
		rec.Kind = KindEquipment
		if rec.ZoneCode == "" {
			return rec, fmt.Errorf("equipment row %s has no zone", rec.Number)
		}
		eqType, ok := normalizeType(lookupString(row, "type"))
		if !ok {
			return rec, fmt.Errorf("equipment row %s has unknown type", rec.Number)
		}
		rec.Type = eqType
		rec.LateNightEligible = lookupBool(row, "late_night")
	default:
		return rec, fmt.Errorf("row has neither unit number nor staff code")
	}

	return rec, nil
}
