package ledger_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"nexapicks-bot/internal/ledger"
	"nexapicks-bot/internal/models"
	"nexapicks-bot/internal/notify"
	"nexapicks-bot/internal/store"

	"github.com/stretchr/testify/require"
)

type fakeNotifier struct {
	failSend    bool
	failInvite  bool
	invites     int
	sentTo      []string
	lastMessage string
}

func (f *fakeNotifier) CreateInviteLink(_ context.Context, _ time.Time) (string, error) {
	if f.failInvite {
		return "", fmt.Errorf("invite refused")
	}
	f.invites++
	return "https://t.me/+invite", nil
}

func (f *fakeNotifier) SendMessage(_ context.Context, userID string, text string) error {
	if f.failSend {
		return fmt.Errorf("delivery refused")
	}
	f.sentTo = append(f.sentTo, userID)
	f.lastMessage = text
	return nil
}

// flakyStore lets a test make Save fail on demand.
type flakyStore struct {
	store.Store
	failSave bool
}

func (s *flakyStore) Save(ctx context.Context, state *models.State) error {
	if s.failSave {
		return fmt.Errorf("disk full")
	}
	return s.Store.Save(ctx, state)
}

func newLedger(t *testing.T, n notify.Notifier) (*ledger.Ledger, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	ld, err := ledger.New(context.Background(), st, n)
	require.NoError(t, err)
	return ld, st
}

func TestExtendSubscription_Policy(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		prior   []models.PlanKind // extensions applied at t0 before the one under test
		now     time.Time
		plan    models.PlanKind
		wantEnd time.Time
	}{
		{
			name:    "no prior subscription resets from now",
			now:     t0,
			plan:    models.PlanBasic,
			wantEnd: t0.Add(7 * 24 * time.Hour),
		},
		{
			name:    "combined plan grants 15 days",
			now:     t0,
			plan:    models.PlanCombined,
			wantEnd: t0.Add(15 * 24 * time.Hour),
		},
		{
			name:    "monthly plan grants 30 days",
			now:     t0,
			plan:    models.PlanMonthly,
			wantEnd: t0.Add(30 * 24 * time.Hour),
		},
		{
			name:    "active subscription stacks on current end",
			prior:   []models.PlanKind{models.PlanMonthly},
			now:     t0.Add(10 * 24 * time.Hour),
			plan:    models.PlanBasic,
			wantEnd: t0.Add(37 * 24 * time.Hour),
		},
		{
			name:    "lapsed subscription resets from now",
			prior:   []models.PlanKind{models.PlanBasic},
			now:     t0.Add(20 * 24 * time.Hour),
			plan:    models.PlanCombined,
			wantEnd: t0.Add(35 * 24 * time.Hour),
		},
		{
			name:    "end equal to now counts as lapsed",
			prior:   []models.PlanKind{models.PlanBasic},
			now:     t0.Add(7 * 24 * time.Hour),
			plan:    models.PlanBasic,
			wantEnd: t0.Add(14 * 24 * time.Hour),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ld, _ := newLedger(t, nil)
			ctx := context.Background()

			for _, plan := range tt.prior {
				_, err := ld.ExtendSubscription(ctx, "100", plan, t0)
				require.NoError(t, err)
			}

			end, err := ld.ExtendSubscription(ctx, "100", tt.plan, tt.now)
			require.NoError(t, err)
			require.True(t, end.Equal(tt.wantEnd), "got %s, want %s", end, tt.wantEnd)
		})
	}
}

func TestExtendSubscription_RenewalChain(t *testing.T) {
	ld, _ := newLedger(t, nil)
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	day := 24 * time.Hour

	end, err := ld.ExtendSubscription(ctx, "42", models.PlanMonthly, t0)
	require.NoError(t, err)
	require.True(t, end.Equal(t0.Add(30*day)))

	// Still active at t0+10d, so the week stacks onto the existing end.
	end, err = ld.ExtendSubscription(ctx, "42", models.PlanBasic, t0.Add(10*day))
	require.NoError(t, err)
	require.True(t, end.Equal(t0.Add(37*day)))

	// Lapsed by t0+40d, so the 15 days count from now, not from the old end.
	end, err = ld.ExtendSubscription(ctx, "42", models.PlanCombined, t0.Add(40*day))
	require.NoError(t, err)
	require.True(t, end.Equal(t0.Add(55*day)))
}

func TestExtendSubscription_InvalidPlan(t *testing.T) {
	ld, _ := newLedger(t, nil)

	_, err := ld.ExtendSubscription(context.Background(), "100", "semanal", time.Now())
	require.ErrorIs(t, err, ledger.ErrInvalidPlan)

	// Rejected requests must not create the user implicitly.
	_, ok := ld.GetUser("100")
	require.False(t, ok)
}

func TestExtendSubscription_ImplicitUserAndLastPlan(t *testing.T) {
	ld, st := newLedger(t, nil)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	_, err := ld.ExtendSubscription(ctx, "55", models.PlanCombined, now)
	require.NoError(t, err)

	user, ok := ld.GetUser("55")
	require.True(t, ok)
	require.Equal(t, models.PlanCombined, user.LastPlan)
	require.True(t, user.CreatedAt.Equal(now))

	// The mutation must have been committed before the call returned.
	state, err := st.Load(ctx)
	require.NoError(t, err)
	require.Contains(t, state.Users, "55")
	require.NotNil(t, state.Users["55"].SubscriptionEnd)
}

func TestIsActive_Boundary(t *testing.T) {
	ld, _ := newLedger(t, nil)
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	end, err := ld.ExtendSubscription(ctx, "7", models.PlanBasic, t0)
	require.NoError(t, err)

	require.True(t, ld.IsActive("7", end.Add(-time.Second)))
	require.False(t, ld.IsActive("7", end), "end == now must be inactive")
	require.False(t, ld.IsActive("7", end.Add(time.Second)))
	require.False(t, ld.IsActive("unknown", t0))
}

func TestRegisterUser_Idempotent(t *testing.T) {
	ld, _ := newLedger(t, nil)
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	first, err := ld.RegisterUser(ctx, "9", "ana", "Ana", t0)
	require.NoError(t, err)
	require.Equal(t, "ana", first.Username)
	require.Equal(t, 0, first.Referrals)
	require.Nil(t, first.SubscriptionEnd)

	again, err := ld.RegisterUser(ctx, "9", "other", "Other", t0.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, first, again, "existing record must be returned unchanged")
}

func TestCreateTip_Validation(t *testing.T) {
	ld, _ := newLedger(t, nil)
	ctx := context.Background()
	now := time.Now()

	for _, args := range [][3]string{
		{"", "5", "desc"},
		{"1.50", "", "desc"},
		{"1.50", "5", ""},
	} {
		_, err := ld.CreateTip(ctx, args[0], args[1], args[2], now)
		require.ErrorIs(t, err, ledger.ErrEmptyTipField)
	}
	require.Empty(t, ld.ListTips())
}

func TestCreateTip_UniqueOrderedIDs(t *testing.T) {
	ld, _ := newLedger(t, nil)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	// Same creation instant must still yield distinct, ordered IDs.
	first, err := ld.CreateTip(ctx, "1.50", "5", "Real Madrid gana", now)
	require.NoError(t, err)
	second, err := ld.CreateTip(ctx, "2.10", "8", "Más de 2.5 goles", now)
	require.NoError(t, err)

	require.NotEqual(t, first, second)
	require.Less(t, first, second)

	entries := ld.ListTips()
	require.Len(t, entries, 2)
	require.Equal(t, first, entries[0].ID)
}

func TestPurchaseTip(t *testing.T) {
	ld, st := newLedger(t, nil)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	tipID, err := ld.CreateTip(ctx, "1.65", "5", "Barcelona gana", now)
	require.NoError(t, err)

	_, err = ld.PurchaseTip(ctx, "11", "tip_missing", now)
	require.ErrorIs(t, err, ledger.ErrTipNotFound)

	purchase, err := ld.PurchaseTip(ctx, "11", tipID, now.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, "11", purchase.UserID)
	require.Equal(t, tipID, purchase.TipID)
	require.True(t, purchase.PurchasedAt.Equal(now.Add(time.Minute)))

	// Exactly one record, keyed by the composite.
	state, err := st.Load(ctx)
	require.NoError(t, err)
	require.Len(t, state.Purchases, 1)
	require.Contains(t, state.Purchases, models.PurchaseKey("11", tipID))

	// The second attempt is rejected and nothing changes.
	_, err = ld.PurchaseTip(ctx, "11", tipID, now.Add(2*time.Minute))
	require.ErrorIs(t, err, ledger.ErrAlreadyPurchased)

	state, err = st.Load(ctx)
	require.NoError(t, err)
	require.Len(t, state.Purchases, 1)

	// A different user may still buy the same tip.
	_, err = ld.PurchaseTip(ctx, "12", tipID, now.Add(3*time.Minute))
	require.NoError(t, err)
}

func TestNotificationFailureDoesNotRollBack(t *testing.T) {
	notifier := &fakeNotifier{failSend: true, failInvite: true}
	st := store.NewMemoryStore()
	ld, err := ledger.New(context.Background(), st, notifier)
	require.NoError(t, err)

	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	// The entitlement is granted even though delivery fails.
	end, err := ld.ExtendSubscription(ctx, "21", models.PlanMonthly, now)
	require.NoError(t, err)
	require.True(t, ld.IsActive("21", now.Add(time.Hour)))

	tipID, err := ld.CreateTip(ctx, "1.80", "6", "Empate al descanso", now)
	require.NoError(t, err)
	_, err = ld.PurchaseTip(ctx, "21", tipID, now)
	require.NoError(t, err)

	// Both mutations survived the failed deliveries durably.
	state, err := st.Load(ctx)
	require.NoError(t, err)
	require.True(t, state.Users["21"].SubscriptionEnd.Equal(end))
	require.Len(t, state.Purchases, 1)
}

func TestSuccessfulVerificationNotifies(t *testing.T) {
	notifier := &fakeNotifier{}
	st := store.NewMemoryStore()
	ld, err := ledger.New(context.Background(), st, notifier)
	require.NoError(t, err)

	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	_, err = ld.ExtendSubscription(ctx, "31", models.PlanBasic, now)
	require.NoError(t, err)
	require.Equal(t, 1, notifier.invites)
	require.Equal(t, []string{"31"}, notifier.sentTo)
	require.Contains(t, notifier.lastMessage, "https://t.me/+invite")

	tipID, err := ld.CreateTip(ctx, "2.00", "7", "Ambos marcan", now)
	require.NoError(t, err)
	_, err = ld.PurchaseTip(ctx, "31", tipID, now)
	require.NoError(t, err)
	require.Equal(t, []string{"31", "31"}, notifier.sentTo)
	require.Contains(t, notifier.lastMessage, "Ambos marcan")
}

func TestListActiveSubscribers(t *testing.T) {
	ld, _ := newLedger(t, nil)
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	_, err := ld.ExtendSubscription(ctx, "2", models.PlanMonthly, t0)
	require.NoError(t, err)
	_, err = ld.ExtendSubscription(ctx, "1", models.PlanBasic, t0)
	require.NoError(t, err)
	_, err = ld.RegisterUser(ctx, "3", "", "Nunca", t0)
	require.NoError(t, err)

	// "1" lapses after a week, "2" stays active for a month.
	require.Equal(t, []string{"1", "2"}, ld.ListActiveSubscribers(t0.Add(time.Hour)))
	require.Equal(t, []string{"2"}, ld.ListActiveSubscribers(t0.Add(10*24*time.Hour)))
	require.Empty(t, ld.ListActiveSubscribers(t0.Add(40*24*time.Hour)))
}

func TestExpiringBetween(t *testing.T) {
	ld, _ := newLedger(t, nil)
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	_, err := ld.ExtendSubscription(ctx, "5", models.PlanBasic, t0) // ends t0+7d
	require.NoError(t, err)
	_, err = ld.ExtendSubscription(ctx, "6", models.PlanMonthly, t0) // ends t0+30d
	require.NoError(t, err)

	now := t0.Add(6 * 24 * time.Hour)
	require.Equal(t, []string{"5"}, ld.ExpiringBetween(now.Add(23*time.Hour), now.Add(25*time.Hour)))
	require.Empty(t, ld.ExpiringBetween(now.Add(30*time.Hour), now.Add(40*time.Hour)))

	// Both window ends are inclusive.
	end5 := t0.Add(7 * 24 * time.Hour)
	require.Equal(t, []string{"5"}, ld.ExpiringBetween(end5, end5))
	require.Equal(t, []string{"5"}, ld.ExpiringBetween(end5.Add(-time.Hour), end5))
	require.Equal(t, []string{"5"}, ld.ExpiringBetween(end5, end5.Add(time.Hour)))
}

func TestSaveFailureRollsBackExtension(t *testing.T) {
	st := &flakyStore{Store: store.NewMemoryStore()}
	ld, err := ledger.New(context.Background(), st, nil)
	require.NoError(t, err)

	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	// Failed save on a brand-new user must also undo the implicit creation.
	st.failSave = true
	_, err = ld.ExtendSubscription(ctx, "100", models.PlanBasic, t0)
	require.Error(t, err)
	_, ok := ld.GetUser("100")
	require.False(t, ok)

	// The re-issued command grants the week exactly once, not stacked on a
	// phantom end from the failed attempt.
	st.failSave = false
	end, err := ld.ExtendSubscription(ctx, "100", models.PlanBasic, t0)
	require.NoError(t, err)
	require.True(t, end.Equal(t0.Add(7*24*time.Hour)))

	// Failed save on an existing user restores the old end and last plan.
	st.failSave = true
	_, err = ld.ExtendSubscription(ctx, "100", models.PlanMonthly, t0.Add(24*time.Hour))
	require.Error(t, err)
	user, ok := ld.GetUser("100")
	require.True(t, ok)
	require.True(t, user.SubscriptionEnd.Equal(t0.Add(7*24*time.Hour)))
	require.Equal(t, models.PlanBasic, user.LastPlan)

	st.failSave = false
	end, err = ld.ExtendSubscription(ctx, "100", models.PlanMonthly, t0.Add(24*time.Hour))
	require.NoError(t, err)
	require.True(t, end.Equal(t0.Add(37*24*time.Hour)))
}

func TestSaveFailureRollsBackOtherMutations(t *testing.T) {
	st := &flakyStore{Store: store.NewMemoryStore()}
	ld, err := ledger.New(context.Background(), st, nil)
	require.NoError(t, err)

	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	st.failSave = true
	_, err = ld.RegisterUser(ctx, "9", "ana", "Ana", now)
	require.Error(t, err)
	_, ok := ld.GetUser("9")
	require.False(t, ok)

	_, err = ld.CreateTip(ctx, "1.50", "5", "Gana el local", now)
	require.Error(t, err)
	require.Empty(t, ld.ListTips())

	st.failSave = false
	tipID, err := ld.CreateTip(ctx, "1.50", "5", "Gana el local", now)
	require.NoError(t, err)

	st.failSave = true
	_, err = ld.PurchaseTip(ctx, "9", tipID, now)
	require.Error(t, err)
	require.False(t, ld.HasPurchased("9", tipID))

	// Once the store recovers, the same purchase goes through cleanly.
	st.failSave = false
	_, err = ld.PurchaseTip(ctx, "9", tipID, now)
	require.NoError(t, err)
}

func TestStatePersistsAcrossReload(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	ld, err := ledger.New(ctx, st, nil)
	require.NoError(t, err)
	_, err = ld.ExtendSubscription(ctx, "77", models.PlanMonthly, now)
	require.NoError(t, err)
	tipID, err := ld.CreateTip(ctx, "1.45", "4", "Gana el local", now)
	require.NoError(t, err)

	reloaded, err := ledger.New(ctx, st, nil)
	require.NoError(t, err)
	require.True(t, reloaded.IsActive("77", now.Add(time.Hour)))
	_, ok := reloaded.GetTip(tipID)
	require.True(t, ok)
}
