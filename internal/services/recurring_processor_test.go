package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/AgusMolinaCode/FIRE_Api.git/internal/database/dbtest"
	"github.com/AgusMolinaCode/FIRE_Api.git/internal/models"
	"github.com/AgusMolinaCode/FIRE_Api.git/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type booking struct {
	id string
	at time.Time
}

type fakeRecurring struct {
	mu       sync.Mutex
	items    []models.RecurringContribution
	bookings []booking
	fail     map[string]bool
}

func (f *fakeRecurring) ListActive(ctx context.Context) ([]models.RecurringContribution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.RecurringContribution
	for _, rc := range f.items {
		if rc.IsActive {
			out = append(out, rc)
		}
	}
	return out, nil
}

func (f *fakeRecurring) BookContribution(ctx context.Context, id, assetID string, amount decimal.Decimal, previous *time.Time, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[id] {
		return false, errors.New("disk full")
	}
	for i := range f.items {
		if f.items[i].ID != id {
			continue
		}
		last := f.items[i].LastProcessedDate
		if (last == nil) != (previous == nil) || (last != nil && !last.Equal(*previous)) {
			return false, nil
		}
		t := at
		f.items[i].LastProcessedDate = &t
	}
	f.bookings = append(f.bookings, booking{id: id, at: at})
	return true, nil
}

func (f *fakeRecurring) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.bookings)
}

func TestProcessRecurringContributionsCatchUp(t *testing.T) {
	start := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	last := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeRecurring{items: []models.RecurringContribution{
		{ID: "weekly", AssetID: "a", Amount: decimal.NewFromInt(50), StartDate: start, Interval: models.IntervalWeekly, IsActive: true},
		{ID: "monthly", AssetID: "b", Amount: decimal.NewFromInt(100), StartDate: last, Interval: models.IntervalMonthly, IsActive: true, LastProcessedDate: &last},
		{ID: "paused", AssetID: "c", Amount: decimal.NewFromInt(1), StartDate: start, Interval: models.IntervalWeekly, IsActive: false},
	}}
	p := NewRecurringProcessor(time.Hour, store, store)

	now := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)
	n, err := p.ProcessRecurringContributions(context.Background(), now)
	require.NoError(t, err)

	// semanal: 10, 17, 24, 31 de enero; mensual: 1 de febrero
	assert.Equal(t, 5, n)
	var weekly []time.Time
	for _, b := range store.bookings {
		if b.id == "weekly" {
			weekly = append(weekly, b.at)
		}
	}
	assert.Equal(t, []time.Time{
		start, start.AddDate(0, 0, 7), start.AddDate(0, 0, 14), start.AddDate(0, 0, 21),
	}, weekly)

	// una segunda pasada no vuelve a registrar nada
	n, err = p.ProcessRecurringContributions(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestProcessRecurringContributionsBiweeklyNotDue(t *testing.T) {
	last := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeRecurring{items: []models.RecurringContribution{
		{ID: "bi", AssetID: "a", Amount: decimal.NewFromInt(5), StartDate: last, Interval: models.IntervalBiweekly, IsActive: true, LastProcessedDate: &last},
	}}
	p := NewRecurringProcessor(time.Hour, store, store)

	n, err := p.ProcessRecurringContributions(context.Background(), last.AddDate(0, 0, 13))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = p.ProcessRecurringContributions(context.Background(), last.AddDate(0, 0, 14))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// staleStore devuelve siempre la misma lista, como dos réplicas que leyeron a la vez
type staleStore struct {
	items []models.RecurringContribution
}

func (s staleStore) ListActive(ctx context.Context) ([]models.RecurringContribution, error) {
	return s.items, nil
}

func TestProcessRecurringContributionsStaleSnapshotBooksOnce(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	assets := repository.NewAssetRepository(db)
	recurring := repository.NewRecurringRepository(db)

	user, err := repository.NewUserRepository(db).Register(ctx, &models.UserAccount{
		Email: "rec@example.com", PasswordHash: "hash", FullName: "Rec",
	})
	require.NoError(t, err)
	providers, err := assets.ListProviders(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, providers)

	asset := &models.BrokerAsset{Name: "ISA", UserAccountID: user.Account.ID, ProviderID: providers[0].ID, AccountType: models.AccountTypeISA}
	require.NoError(t, assets.CreateBrokerAsset(ctx, asset))

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rc := &models.RecurringContribution{AssetID: asset.ID, Amount: decimal.NewFromInt(100), StartDate: start, Interval: models.IntervalMonthly, IsActive: true}
	require.NoError(t, recurring.Create(ctx, rc))

	snapshot, err := recurring.ListActive(ctx)
	require.NoError(t, err)
	stale := staleStore{items: snapshot}

	now := start.Add(time.Hour)
	first := NewRecurringProcessor(time.Hour, stale, assets)
	second := NewRecurringProcessor(time.Hour, stale, assets)

	n, err := first.ProcessRecurringContributions(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = second.ProcessRecurringContributions(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	contributions, err := assets.ListHistory(ctx, repository.AssetContributions, asset.ID, repository.ListQuery{})
	require.NoError(t, err)
	assert.Len(t, contributions, 1)
}

func TestProcessRecurringContributionsConcurrentRunsBookOnce(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeRecurring{items: []models.RecurringContribution{
		{ID: "m", AssetID: "a", Amount: decimal.NewFromInt(10), StartDate: start, Interval: models.IntervalMonthly, IsActive: true},
	}}
	p := NewRecurringProcessor(time.Hour, store, store)
	now := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.ProcessRecurringContributions(context.Background(), now)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// 1 de enero, febrero y marzo
	assert.Equal(t, 3, store.count())
}

func TestProcessRecurringContributionsMonthEnd(t *testing.T) {
	start := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	store := &fakeRecurring{items: []models.RecurringContribution{
		{ID: "eom", AssetID: "a", Amount: decimal.NewFromInt(10), StartDate: start, Interval: models.IntervalMonthly, IsActive: true},
	}}
	p := NewRecurringProcessor(time.Hour, store, store)

	n, err := p.ProcessRecurringContributions(context.Background(), time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	var got []time.Time
	for _, b := range store.bookings {
		got = append(got, b.at)
	}
	assert.Equal(t, []time.Time{
		start,
		time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC),
	}, got)
}

func TestProcessRecurringContributionsKeepsGoingAfterFailure(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeRecurring{
		items: []models.RecurringContribution{
			{ID: "bad", AssetID: "a", Amount: decimal.NewFromInt(1), StartDate: start, Interval: models.IntervalMonthly, IsActive: true},
			{ID: "good", AssetID: "b", Amount: decimal.NewFromInt(1), StartDate: start, Interval: models.IntervalMonthly, IsActive: true},
		},
		fail: map[string]bool{"bad": true},
	}
	p := NewRecurringProcessor(time.Hour, store, store)

	n, err := p.ProcessRecurringContributions(context.Background(), start)
	assert.Error(t, err)
	assert.Equal(t, 1, n)
}

func TestRecurringProcessorStartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := &fakeRecurring{items: []models.RecurringContribution{
		{ID: "r", AssetID: "a", Amount: decimal.NewFromInt(1), StartDate: time.Now().Add(-time.Hour), Interval: models.IntervalMonthly, IsActive: true},
	}}
	p := NewRecurringProcessor(10*time.Millisecond, store, store)
	p.Start()
	p.Start()

	assert.Eventually(t, func() bool { return store.count() == 1 }, time.Second, 5*time.Millisecond)
	p.Stop()
	p.Stop()
	assert.False(t, p.LastRun().IsZero())
}

func TestRecurringProcessorRunStopsWithContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := &fakeRecurring{}
	p := NewRecurringProcessor(time.Hour, store, store)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx) }()
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
