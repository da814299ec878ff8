package domain

import (
	"fmt"
	"strings"
)

// Plan is the subzone variant of a service zone.
type Plan string

const (
	PlanA Plan = "A"
	PlanB Plan = "B"
)

// ParsePlan normalizes a plan to uppercase and rejects anything but A or B.
func ParsePlan(s string) (Plan, error) {
	p := Plan(strings.ToUpper(strings.TrimSpace(s)))
	switch p {
	case PlanA, PlanB:
		return p, nil
	}
	return "", &FieldError{Field: "plan", Reason: fmt.Sprintf("must be A or B, got %q", s)}
}

// ZoneKey identifies a zone/plan pair. It is the unit of caching, loading
// and storage partitioning.
type ZoneKey struct {
	Zone int  `json:"zone"`
	Plan Plan `json:"plan"`
}

// NewZoneKey validates both parts and normalizes the plan.
func NewZoneKey(zone int, plan string) (ZoneKey, error) {
	if zone <= 0 {
		return ZoneKey{}, &FieldError{Field: "zone", Reason: fmt.Sprintf("must be a positive integer, got %d", zone)}
	}
	p, err := ParsePlan(plan)
	if err != nil {
		return ZoneKey{}, err
	}
	return ZoneKey{Zone: zone, Plan: p}, nil
}

func (k ZoneKey) String() string { return fmt.Sprintf("%d_%s", k.Zone, k.Plan) }

// FileName is the KML file provisioned for this key, e.g. Zona9_SottozonaB.kml.
func (k ZoneKey) FileName() string {
	return fmt.Sprintf("Zona%d_Sottozona%s.kml", k.Zone, k.Plan)
}

// Service zone record.
type Zone struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}
