package models

import (
	"time"
)

// Tip is a purchasable piece of betting advice. Odds and Price are opaque
// display strings; tips are immutable once created.
type Tip struct {
	Odds        string    `json:"cuota"`
	Price       string    `json:"precio"`
	Description string    `json:"descripcion"`
	CreatedAt   time.Time `json:"created_at"`
}
