// Package stats derives aggregate numbers from the snapshot for the admin
// /stats report.
package stats

import (
	"context"
	"time"

	"nexapicks-bot/internal/models"
	"nexapicks-bot/internal/store"
)

// Snapshot is one computed report. Revenue counts each user's last plan
// once, whatever their renewal history — it is an estimate by design, not a
// payment ledger.
type Snapshot struct {
	TotalUsers        int
	ActiveSubscribers int
	TotalTips         int
	TotalPurchases    int
	PlanCounts        map[models.PlanKind]int
	Revenue           float64
}

// Compute reads the store independently of the ledger and aggregates it.
func Compute(ctx context.Context, st store.Store, now time.Time) (Snapshot, error) {
	state, err := st.Load(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return FromState(state, now), nil
}

// FromState aggregates an already-loaded snapshot.
func FromState(state *models.State, now time.Time) Snapshot {
	snap := Snapshot{
		TotalUsers:     len(state.Users),
		TotalTips:      len(state.Tips),
		TotalPurchases: len(state.Purchases),
		PlanCounts:     make(map[models.PlanKind]int),
	}

	for _, user := range state.Users {
		if user.ActiveAt(now) {
			snap.ActiveSubscribers++
		}
		if price, ok := models.PlanPrices[user.LastPlan]; ok {
			snap.PlanCounts[user.LastPlan]++
			snap.Revenue += price
		}
	}
	return snap
}
