package models

import (
	"time"
)

// Purchase records a verified tip purchase. At most one exists per
// (user, tip) pair, keyed in the snapshot by PurchaseKey.
type Purchase struct {
	UserID      string    `json:"user_id"`
	TipID       string    `json:"tip_id"`
	PurchasedAt time.Time `json:"purchased_at"`
}

// PurchaseKey builds the composite snapshot key for a purchase.
func PurchaseKey(userID, tipID string) string {
	return userID + "_" + tipID
}
