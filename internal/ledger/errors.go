package ledger

import (
	"errors"
)

var (
	// ErrInvalidPlan unrecognized plan kind
	ErrInvalidPlan = errors.New("unknown plan kind")

	// ErrTipNotFound unknown tip identifier
	ErrTipNotFound = errors.New("tip not found")

	// ErrAlreadyPurchased duplicate purchase for the same user and tip
	ErrAlreadyPurchased = errors.New("tip already purchased")

	// ErrEmptyTipField tip created with a missing field
	ErrEmptyTipField = errors.New("tip fields must not be empty")
)
