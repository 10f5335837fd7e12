package repository

import (
	"context"
	"testing"
	"time"

	"github.com/AgusMolinaCode/FIRE_Api.git/internal/database"
	"github.com/AgusMolinaCode/FIRE_Api.git/internal/database/dbtest"
	"github.com/AgusMolinaCode/FIRE_Api.git/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUser(t *testing.T, db *database.Database, email string) *models.SessionUser {
	t.Helper()
	user, err := NewUserRepository(db).Register(context.Background(), &models.UserAccount{
		Email:        email,
		PasswordHash: "hash",
		FullName:     "Test User",
	})
	require.NoError(t, err)
	return user
}

func firstProvider(t *testing.T, db *database.Database) models.BrokerProvider {
	t.Helper()
	providers, err := NewAssetRepository(db).ListProviders(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, providers)
	return providers[0]
}

func TestRegisterAndSessionUser(t *testing.T) {
	db := dbtest.New(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user := newUser(t, db, "ana@example.com")
	got, err := repo.SessionUser(ctx, user.Account.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, "ana@example.com", got.Account.Email)
	require.NotNil(t, got.Profile)

	_, err = repo.Register(ctx, &models.UserAccount{Email: "ana@example.com", PasswordHash: "x", FullName: "Dup"})
	assert.ErrorIs(t, err, ErrConflict)

	byEmail, err := repo.GetAccountByEmail(ctx, "ANA@EXAMPLE.COM")
	require.NoError(t, err)
	assert.Equal(t, user.Account.ID, byEmail.ID)

	_, err = repo.GetAccount(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVerificationSupersede(t *testing.T) {
	db := dbtest.New(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	user := newUser(t, db, "v@example.com")

	exp := time.Now().Add(time.Hour)
	first, err := repo.CreateVerification(ctx, EmailVerification, user.Account.ID, "tok-1", exp, true)
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	_, err = repo.CreateVerification(ctx, EmailVerification, user.Account.ID, "tok-2", exp, true)
	require.NoError(t, err)

	latest, err := repo.LatestVerification(ctx, EmailVerification, user.Account.ID)
	require.NoError(t, err)
	assert.Equal(t, "tok-2", latest.Token)

	old, err := repo.FindVerificationByToken(ctx, EmailVerification, first.Token)
	require.NoError(t, err)
	assert.True(t, old.IsCompleted)

	require.NoError(t, repo.CompleteVerification(ctx, EmailVerification, latest))
	account, err := repo.GetAccount(ctx, user.Account.ID)
	require.NoError(t, err)
	assert.True(t, account.IsEmailVerified)
}

func TestResetPasswordRevokesFamilies(t *testing.T) {
	db := dbtest.New(t)
	users := NewUserRepository(db)
	tokens := NewRefreshTokenRepository(db)
	ctx := context.Background()
	user := newUser(t, db, "reset@example.com")

	ts := time.Now().UTC()
	for _, fam := range []string{"fam-a", "fam-b"} {
		require.NoError(t, tokens.CreateRefreshToken(ctx, &models.RefreshToken{
			ID: fam + "-id", TenantID: user.ID, UserAccountID: user.Account.ID, TokenHash: fam + "-hash",
			FamilyID: fam, ExpiresAt: ts.Add(time.Hour), CreatedAt: ts,
		}))
	}
	n, err := tokens.ActiveFamilies(ctx, user.Account.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	reset, err := users.CreateVerification(ctx, PasswordReset, user.Account.ID, "reset-tok", ts.Add(time.Hour), false)
	require.NoError(t, err)
	require.NoError(t, users.ResetPassword(ctx, reset.ID, user.Account.ID, "new-hash"))

	n, err = tokens.ActiveFamilies(ctx, user.Account.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	changes, err := users.PasswordChanges(ctx, user.Account.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, changes)

	account, err := users.GetAccount(ctx, user.Account.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", account.PasswordHash)
}

func TestRotateRefreshToken(t *testing.T) {
	db := dbtest.New(t)
	tokens := NewRefreshTokenRepository(db)
	ctx := context.Background()
	user := newUser(t, db, "rot@example.com")
	ts := time.Now().UTC()

	current := &models.RefreshToken{
		ID: "r1", TenantID: user.ID, UserAccountID: user.Account.ID, TokenHash: "h1",
		FamilyID: "f1", ExpiresAt: ts.Add(time.Hour), CreatedAt: ts,
	}
	require.NoError(t, tokens.CreateRefreshToken(ctx, current))

	found, err := tokens.FindActiveRefreshToken(ctx, user.Account.ID, "f1")
	require.NoError(t, err)
	assert.Equal(t, "h1", found.TokenHash)

	parent := "h1"
	next := &models.RefreshToken{
		ID: "r2", TenantID: user.ID, UserAccountID: user.Account.ID, TokenHash: "h2",
		FamilyID: "f2", ParentTokenHash: &parent, ExpiresAt: ts.Add(time.Hour), CreatedAt: ts,
	}
	require.NoError(t, tokens.RotateRefreshToken(ctx, found, next))

	_, err = tokens.FindActiveRefreshToken(ctx, user.Account.ID, "f1")
	assert.ErrorIs(t, err, ErrNotFound)

	// la segunda rotación de la misma familia falla
	assert.ErrorIs(t, tokens.RotateRefreshToken(ctx, found, &models.RefreshToken{
		ID: "r3", TenantID: user.ID, UserAccountID: user.Account.ID, TokenHash: "h3",
		FamilyID: "f3", ExpiresAt: ts.Add(time.Hour), CreatedAt: ts,
	}), ErrNotFound)

	rotated, err := tokens.FindActiveRefreshToken(ctx, user.Account.ID, "f2")
	require.NoError(t, err)
	require.NotNil(t, rotated.ParentTokenHash)
	assert.Equal(t, "h1", *rotated.ParentTokenHash)
}

func TestBrokerAssetLifecycle(t *testing.T) {
	db := dbtest.New(t)
	repo := NewAssetRepository(db)
	ctx := context.Background()
	user := newUser(t, db, "assets@example.com")
	other := newUser(t, db, "other@example.com")
	provider := firstProvider(t, db)

	asset := &models.BrokerAsset{
		Name: "My ISA", CurrentValue: decimal.NewFromInt(1000), UserAccountID: user.Account.ID,
		ProviderID: provider.ID, AccountType: models.AccountTypeISA,
	}
	require.NoError(t, repo.CreateBrokerAsset(ctx, asset))

	dup := *asset
	assert.ErrorIs(t, repo.CreateBrokerAsset(ctx, &dup), ErrConflict)

	got, err := repo.GetBrokerAsset(ctx, user.Account.ID, asset.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(1000).Equal(got.CurrentValue))
	assert.Equal(t, provider.Name, got.Provider.Name)

	_, err = repo.GetBrokerAsset(ctx, other.Account.ID, asset.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// el valor inicial se guardó junto con el activo
	history, err := repo.ListHistory(ctx, AssetValues, asset.ID, ListQuery{})
	require.NoError(t, err)
	require.Len(t, history, 1)

	later := &models.AssetValue{AssetID: asset.ID, Value: decimal.NewFromInt(1500), RecordedAt: time.Now().Add(time.Hour)}
	require.NoError(t, repo.AddHistory(ctx, AssetValues, models.AssetTypeBroker, later))
	got, err = repo.GetBrokerAsset(ctx, user.Account.ID, asset.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(1500).Equal(got.CurrentValue))

	earlier := &models.AssetValue{AssetID: asset.ID, Value: decimal.NewFromInt(10), RecordedAt: time.Now().Add(-48 * time.Hour)}
	require.NoError(t, repo.AddHistory(ctx, AssetValues, models.AssetTypeBroker, earlier))
	got, err = repo.GetBrokerAsset(ctx, user.Account.ID, asset.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(1500).Equal(got.CurrentValue), "an older value must not replace the latest")

	require.NoError(t, repo.DeleteHistory(ctx, AssetValues, models.AssetTypeBroker, asset.ID, later.ID))
	got, err = repo.GetBrokerAsset(ctx, user.Account.ID, asset.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(1000).Equal(got.CurrentValue))

	list, err := repo.ListBrokerAssets(ctx, user.Account.ID, ListQuery{Filters: []Filter{{Field: "accountType", Op: "eq", Value: "isa"}}})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, repo.DeleteBrokerAsset(ctx, user.Account.ID, asset.ID))
	assert.ErrorIs(t, repo.DeleteBrokerAsset(ctx, user.Account.ID, asset.ID), ErrNotFound)
}

func TestGeneralAssetRecalculatesToZero(t *testing.T) {
	db := dbtest.New(t)
	repo := NewAssetRepository(db)
	ctx := context.Background()
	user := newUser(t, db, "general@example.com")

	asset := &models.GeneralAsset{Name: "Cash", CurrentValue: decimal.NewFromInt(250), UserAccountID: user.Account.ID}
	require.NoError(t, repo.CreateGeneralAsset(ctx, asset))

	history, err := repo.ListHistory(ctx, AssetValues, asset.ID, ListQuery{})
	require.NoError(t, err)
	require.Len(t, history, 1)

	require.NoError(t, repo.DeleteHistory(ctx, AssetValues, models.AssetTypeGeneral, asset.ID, history[0].ID))
	got, err := repo.GetGeneralAsset(ctx, user.Account.ID, asset.ID)
	require.NoError(t, err)
	assert.True(t, got.CurrentValue.IsZero())

	assetType, err := repo.FindAssetType(ctx, user.Account.ID, asset.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AssetTypeGeneral, assetType)

	total, err := repo.TotalValue(ctx, user.Account.ID, nil)
	require.NoError(t, err)
	assert.True(t, total.IsZero())
}

func TestAssetsWithHistory(t *testing.T) {
	db := dbtest.New(t)
	repo := NewAssetRepository(db)
	ctx := context.Background()
	user := newUser(t, db, "hist@example.com")
	provider := firstProvider(t, db)

	isa := &models.BrokerAsset{Name: "ISA", CurrentValue: decimal.NewFromInt(10), UserAccountID: user.Account.ID, ProviderID: provider.ID, AccountType: models.AccountTypeISA}
	require.NoError(t, repo.CreateBrokerAsset(ctx, isa))
	cash := &models.GeneralAsset{Name: "Cash", CurrentValue: decimal.NewFromInt(5), UserAccountID: user.Account.ID}
	require.NoError(t, repo.CreateGeneralAsset(ctx, cash))

	all, err := repo.AssetsWithHistory(ctx, user.Account.ID, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	sipp := models.AccountTypeSIPP
	none, err := repo.AssetsWithHistory(ctx, user.Account.ID, &sipp)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestAPIKeyConnectionUpsert(t *testing.T) {
	db := dbtest.New(t)
	repo := NewAssetRepository(db)
	ctx := context.Background()
	user := newUser(t, db, "conn@example.com")
	provider := firstProvider(t, db)

	asset := &models.BrokerAsset{Name: "GIA", UserAccountID: user.Account.ID, ProviderID: provider.ID, AccountType: models.AccountTypeGIA}
	require.NoError(t, repo.CreateBrokerAsset(ctx, asset))

	first, err := repo.ConnectAPIKey(ctx, asset.ID, "key-1")
	require.NoError(t, err)
	second, err := repo.ConnectAPIKey(ctx, asset.ID, "key-2")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestHoldingsAndSecurities(t *testing.T) {
	db := dbtest.New(t)
	assets := NewAssetRepository(db)
	securities := NewSecurityRepository(db)
	holdings := NewHoldingsRepository(db)
	ctx := context.Background()
	user := newUser(t, db, "hold@example.com")
	provider := firstProvider(t, db)

	asset := &models.BrokerAsset{Name: "ISA", UserAccountID: user.Account.ID, ProviderID: provider.ID, AccountType: models.AccountTypeISA}
	require.NoError(t, assets.CreateBrokerAsset(ctx, asset))

	sec, created, err := securities.CreateOrFind(ctx, &models.Security{Symbol: "VWRL.L", Name: "Vanguard FTSE All-World"})
	require.NoError(t, err)
	assert.True(t, created)
	again, created, err := securities.CreateOrFind(ctx, &models.Security{Symbol: "vwrl.l", Name: "dup"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, sec.ID, again.ID)

	_, _, err = securities.CreateOrFind(ctx, &models.Security{Symbol: "VWRP.L", Name: "Vanguard FTSE All-World Acc"})
	require.NoError(t, err)

	found, err := securities.Search(ctx, "vwrl.l")
	require.NoError(t, err)
	require.NotEmpty(t, found)
	assert.Equal(t, "VWRL.L", found[0].Symbol)

	found, err = securities.Search(ctx, "all-world")
	require.NoError(t, err)
	assert.Len(t, found, 2)

	require.NoError(t, holdings.UpsertHolding(ctx, asset.ID, sec.ID, decimal.NewFromInt(10)))
	require.NoError(t, holdings.UpsertHolding(ctx, asset.ID, sec.ID, decimal.NewFromInt(12)))

	list, err := holdings.GetHoldings(ctx, asset.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, decimal.NewFromInt(12).Equal(list[0].Shares))
	assert.Equal(t, "VWRL.L", list[0].Security.Symbol)

	shares, err := holdings.SharesBySymbol(ctx, user.Account.ID, "vwrl.l")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(12).Equal(shares))

	require.NoError(t, holdings.DeleteHolding(ctx, asset.ID, sec.ID))
	assert.ErrorIs(t, holdings.DeleteHolding(ctx, asset.ID, sec.ID), ErrNotFound)
}

func TestMilestonesAndFire(t *testing.T) {
	db := dbtest.New(t)
	milestones := NewMilestoneRepository(db)
	fire := NewFireRepository(db)
	ctx := context.Background()
	user := newUser(t, db, "goals@example.com")

	for _, name := range []string{"First 10k", "First 100k"} {
		require.NoError(t, milestones.Create(ctx, &models.Milestone{UserAccountID: user.Account.ID, Name: name, TargetValue: decimal.NewFromInt(10000)}))
		time.Sleep(2 * time.Millisecond)
	}
	list, err := milestones.ListByUser(ctx, user.Account.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "First 100k", list[0].Name)

	require.NoError(t, milestones.SetCompleted(ctx, list[0].ID, true))
	pending, err := milestones.ListPending(ctx, user.Account.ID)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	settings := models.DefaultFireSettings(user.Account.ID)
	require.NoError(t, fire.Create(ctx, &settings))
	dup := models.DefaultFireSettings(user.Account.ID)
	assert.ErrorIs(t, fire.Create(ctx, &dup), ErrConflict)

	got, err := fire.GetByUser(ctx, user.Account.ID)
	require.NoError(t, err)
	assert.Equal(t, 60, got.TargetRetirementAge)
	assert.True(t, decimal.NewFromInt(48000).Equal(got.AnnualIncomeGoal))
	assert.True(t, got.AdjustInflation)
}

func TestRecurringBookContribution(t *testing.T) {
	db := dbtest.New(t)
	assets := NewAssetRepository(db)
	recurring := NewRecurringRepository(db)
	ctx := context.Background()
	user := newUser(t, db, "rec@example.com")
	provider := firstProvider(t, db)

	asset := &models.BrokerAsset{Name: "SIPP", UserAccountID: user.Account.ID, ProviderID: provider.ID, AccountType: models.AccountTypeSIPP}
	require.NoError(t, assets.CreateBrokerAsset(ctx, asset))

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rc := &models.RecurringContribution{AssetID: asset.ID, Amount: decimal.NewFromInt(100), StartDate: start, Interval: models.IntervalMonthly, IsActive: true}
	require.NoError(t, recurring.Create(ctx, rc))

	booked, err := assets.BookContribution(ctx, rc.ID, asset.ID, rc.Amount, nil, start)
	require.NoError(t, err)
	assert.True(t, booked)

	// una segunda pasada con la misma foto vieja no duplica el aporte
	booked, err = assets.BookContribution(ctx, rc.ID, asset.ID, rc.Amount, nil, start)
	require.NoError(t, err)
	assert.False(t, booked)

	active, err := recurring.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.NotNil(t, active[0].LastProcessedDate)
	assert.True(t, start.Equal(*active[0].LastProcessedDate))

	contributions, err := assets.ListHistory(ctx, AssetContributions, asset.ID, ListQuery{})
	require.NoError(t, err)
	require.Len(t, contributions, 1)
	assert.True(t, decimal.NewFromInt(100).Equal(contributions[0].Value))

	// avanza desde el valor leído de la base
	feb := start.AddDate(0, 1, 0)
	booked, err = assets.BookContribution(ctx, rc.ID, asset.ID, rc.Amount, active[0].LastProcessedDate, feb)
	require.NoError(t, err)
	assert.True(t, booked)
	booked, err = assets.BookContribution(ctx, rc.ID, asset.ID, rc.Amount, active[0].LastProcessedDate, feb)
	require.NoError(t, err)
	assert.False(t, booked)

	contributions, err = assets.ListHistory(ctx, AssetContributions, asset.ID, ListQuery{})
	require.NoError(t, err)
	assert.Len(t, contributions, 2)
}
