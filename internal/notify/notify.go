// Package notify is the delivery boundary the ledger talks to after a
// mutation is committed. Delivery is best effort: callers log failures and
// never roll back.
package notify

import (
	"context"
	"errors"
	"time"
)

// ErrDelivery wraps any transport failure from a Notifier implementation.
var ErrDelivery = errors.New("notification delivery failed")

// Notifier generates single-use invite credentials and delivers messages to
// individual users.
type Notifier interface {
	// CreateInviteLink returns a single-use group invite link that expires
	// at the given time.
	CreateInviteLink(ctx context.Context, expiresAt time.Time) (string, error)

	// SendMessage delivers text to one user by their platform ID.
	SendMessage(ctx context.Context, userID string, text string) error
}
