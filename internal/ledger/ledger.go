// Package ledger holds the entitlement bookkeeping: subscription windows,
// tip catalog and per-user tip purchases, all over one snapshot store.
package ledger

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"nexapicks-bot/internal/models"
	"nexapicks-bot/internal/notify"
	"nexapicks-bot/internal/store"
)

const (
	// inviteValidity is how long a group invite link stays usable.
	inviteValidity = 24 * time.Hour

	// notifyTimeout bounds every call into the dispatch boundary.
	notifyTimeout = 10 * time.Second
)

// Ledger owns the in-memory snapshot and writes it back after every
// mutation. Handlers run concurrently, so every read-modify-write of the
// snapshot (Save included) happens under one mutex.
type Ledger struct {
	mu       sync.Mutex
	store    store.Store
	state    *models.State
	notifier notify.Notifier
}

// New loads the last durable snapshot. A corrupt snapshot surfaces as an
// error wrapping store.ErrCorrupt; the caller must not start with an empty
// state in that case. The notifier may be nil, which disables delivery.
func New(ctx context.Context, st store.Store, notifier notify.Notifier) (*Ledger, error) {
	state, err := st.Load(ctx)
	if err != nil {
		return nil, err
	}
	return &Ledger{store: st, state: state, notifier: notifier}, nil
}

// RegisterUser creates a user record on first contact. Registering an
// existing user returns the stored record unchanged.
func (l *Ledger) RegisterUser(ctx context.Context, userID, username, firstName string, now time.Time) (models.User, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if user, ok := l.state.Users[userID]; ok {
		return *user, nil
	}

	user := &models.User{
		Username:  username,
		FirstName: firstName,
		CreatedAt: now,
	}
	l.state.Users[userID] = user

	if err := l.store.Save(ctx, l.state); err != nil {
		delete(l.state.Users, userID)
		return models.User{}, fmt.Errorf("failed to save snapshot: %w", err)
	}
	return *user, nil
}

// ExtendSubscription applies a verified plan payment. An active subscription
// stacks (new end = current end + plan duration); a lapsed or absent one
// resets to now + plan duration. The user record is created implicitly if
// missing, and last_plan is updated for reporting.
func (l *Ledger) ExtendSubscription(ctx context.Context, userID string, plan models.PlanKind, now time.Time) (time.Time, error) {
	duration, ok := plan.Duration()
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidPlan, plan)
	}

	l.mu.Lock()
	user, existed := l.state.Users[userID]
	if !existed {
		user = &models.User{CreatedAt: now}
		l.state.Users[userID] = user
	}
	prevEnd, prevPlan := user.SubscriptionEnd, user.LastPlan

	var newEnd time.Time
	if user.SubscriptionEnd != nil && user.SubscriptionEnd.After(now) {
		newEnd = user.SubscriptionEnd.Add(duration)
	} else {
		newEnd = now.Add(duration)
	}
	user.SubscriptionEnd = &newEnd
	user.LastPlan = plan

	err := l.store.Save(ctx, l.state)
	if err != nil {
		// The durable store never saw the extension; keep memory in step so
		// the admin's re-issued command grants the plan exactly once.
		if existed {
			user.SubscriptionEnd = prevEnd
			user.LastPlan = prevPlan
		} else {
			delete(l.state.Users, userID)
		}
	}
	l.mu.Unlock()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to save snapshot: %w", err)
	}

	l.notifySubscription(userID, newEnd, now)
	return newEnd, nil
}

// IsActive reports whether the user holds a subscription ending strictly
// after now.
func (l *Ledger) IsActive(userID string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	user, ok := l.state.Users[userID]
	return ok && user.ActiveAt(now)
}

// CreateTip adds a tip to the catalog and returns its generated ID. IDs are
// derived from the creation time and bumped on collision, so they stay
// unique and sort in creation order.
func (l *Ledger) CreateTip(ctx context.Context, odds, price, description string, now time.Time) (string, error) {
	if odds == "" || price == "" || description == "" {
		return "", ErrEmptyTipField
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	ts := now.Unix()
	tipID := fmt.Sprintf("tip_%d", ts)
	for _, exists := l.state.Tips[tipID]; exists; _, exists = l.state.Tips[tipID] {
		ts++
		tipID = fmt.Sprintf("tip_%d", ts)
	}

	l.state.Tips[tipID] = &models.Tip{
		Odds:        odds,
		Price:       price,
		Description: description,
		CreatedAt:   now,
	}

	if err := l.store.Save(ctx, l.state); err != nil {
		delete(l.state.Tips, tipID)
		return "", fmt.Errorf("failed to save snapshot: %w", err)
	}
	return tipID, nil
}

// PurchaseTip records a verified tip purchase and delivers the tip content.
// A second purchase of the same tip by the same user is rejected without
// mutation.
func (l *Ledger) PurchaseTip(ctx context.Context, userID, tipID string, now time.Time) (models.Purchase, error) {
	l.mu.Lock()
	tip, ok := l.state.Tips[tipID]
	if !ok {
		l.mu.Unlock()
		return models.Purchase{}, fmt.Errorf("%w: %q", ErrTipNotFound, tipID)
	}

	key := models.PurchaseKey(userID, tipID)
	if _, exists := l.state.Purchases[key]; exists {
		l.mu.Unlock()
		return models.Purchase{}, fmt.Errorf("%w: %s", ErrAlreadyPurchased, key)
	}

	purchase := &models.Purchase{
		UserID:      userID,
		TipID:       tipID,
		PurchasedAt: now,
	}
	l.state.Purchases[key] = purchase
	content := *tip

	err := l.store.Save(ctx, l.state)
	if err != nil {
		delete(l.state.Purchases, key)
	}
	l.mu.Unlock()
	if err != nil {
		return models.Purchase{}, fmt.Errorf("failed to save snapshot: %w", err)
	}

	l.notifyTipContent(userID, content)
	return *purchase, nil
}

// ListActiveSubscribers returns the IDs of all users active at now, sorted
// for stable broadcast order.
func (l *Ledger) ListActiveSubscribers(now time.Time) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	var ids []string
	for id, user := range l.state.Users {
		if user.ActiveAt(now) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// ExpiringBetween returns the IDs of users whose subscription ends inside
// [from, to], both ends inclusive. The reminder worker uses it to find
// soon-to-lapse subscribers.
func (l *Ledger) ExpiringBetween(from, to time.Time) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	var ids []string
	for id, user := range l.state.Users {
		end := user.SubscriptionEnd
		if end != nil && !end.Before(from) && !end.After(to) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// GetUser returns a copy of the user record, if any.
func (l *Ledger) GetUser(userID string) (models.User, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	user, ok := l.state.Users[userID]
	if !ok {
		return models.User{}, false
	}
	return *user, true
}

// TipEntry pairs a tip with its catalog ID.
type TipEntry struct {
	ID  string
	Tip models.Tip
}

// ListTips returns the catalog sorted by ID, which is creation order.
func (l *Ledger) ListTips() []TipEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := make([]TipEntry, 0, len(l.state.Tips))
	for id, tip := range l.state.Tips {
		entries = append(entries, TipEntry{ID: id, Tip: *tip})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries
}

// HasPurchased reports whether a purchase record exists for the pair.
func (l *Ledger) HasPurchased(userID, tipID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, ok := l.state.Purchases[models.PurchaseKey(userID, tipID)]
	return ok
}

// GetTip returns a copy of one tip, if it exists.
func (l *Ledger) GetTip(tipID string) (models.Tip, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tip, ok := l.state.Tips[tipID]
	if !ok {
		return models.Tip{}, false
	}
	return *tip, true
}

// notifySubscription delivers the invite link after a committed extension.
// The entitlement is already granted, so failures are logged, never retried
// and never rolled back.
func (l *Ledger) notifySubscription(userID string, newEnd, now time.Time) {
	if l.notifier == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	link, err := l.notifier.CreateInviteLink(ctx, now.Add(inviteValidity))
	if err != nil {
		log.Printf("Failed to create invite link for %s: %v", userID, err)
		return
	}

	text := fmt.Sprintf("✅ ¡Pago verificado!\n\nTu suscripción está activa hasta el %s.\n\n🔗 Enlace al grupo VIP: %s\n\n⚠️ El enlace expira en 24 horas y solo puede usarse una vez.",
		newEnd.Format("02/01/2006"), link)
	if err := l.notifier.SendMessage(ctx, userID, text); err != nil {
		log.Printf("Failed to deliver invite to %s: %v", userID, err)
	}
}

// notifyTipContent delivers the purchased tip after a committed purchase.
func (l *Ledger) notifyTipContent(userID string, tip models.Tip) {
	if l.notifier == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	text := fmt.Sprintf("✅ ¡Pago verificado!\n\nAquí está tu tip:\n\nCuota: %s\n📝 Detalles: %s\n\n¡Buena suerte!", tip.Odds, tip.Description)
	if err := l.notifier.SendMessage(ctx, userID, text); err != nil {
		log.Printf("Failed to deliver tip to %s: %v", userID, err)
	}
}
