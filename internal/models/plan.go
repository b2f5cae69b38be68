package models

import (
	"time"
)

// PlanKind identifies a subscription plan. The values are the plan names the
// admin passes to /verificar and the ones stored in last_plan.
type PlanKind string

const (
	PlanBasic    PlanKind = "basico"
	PlanCombined PlanKind = "combinada"
	PlanMonthly  PlanKind = "mensual"
)

var planDurations = map[PlanKind]time.Duration{
	PlanBasic:    7 * 24 * time.Hour,
	PlanCombined: 15 * 24 * time.Hour,
	PlanMonthly:  30 * 24 * time.Hour,
}

// PlanPrices is the fixed price table used for the revenue estimate.
var PlanPrices = map[PlanKind]float64{
	PlanBasic:    3.99,
	PlanCombined: 7.99,
	PlanMonthly:  29.99,
}

// Duration returns the subscription time a plan grants, or false for an
// unknown plan kind.
func (p PlanKind) Duration() (time.Duration, bool) {
	d, ok := planDurations[p]
	return d, ok
}
