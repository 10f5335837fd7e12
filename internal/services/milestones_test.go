package services

import (
	"context"
	"errors"
	"testing"

	"github.com/AgusMolinaCode/FIRE_Api.git/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMilestones struct {
	pending   []models.Milestone
	completed []string
}

func (f *fakeMilestones) ListPending(context.Context, string) ([]models.Milestone, error) {
	return f.pending, nil
}

func (f *fakeMilestones) SetCompleted(_ context.Context, id string, completed bool) error {
	if completed {
		f.completed = append(f.completed, id)
	}
	return nil
}

type fakeValues map[string]decimal.Decimal

func (f fakeValues) TotalValue(_ context.Context, _ string, accountType *string) (decimal.Decimal, error) {
	if accountType == nil {
		return f[""], nil
	}
	return f[*accountType], nil
}

type fakeAccounts struct{}

func (fakeAccounts) GetAccount(_ context.Context, id string) (*models.UserAccount, error) {
	return &models.UserAccount{ID: id, Email: "saver@example.com"}, nil
}

type fakeNotifier struct {
	sent []string
	err  error
}

func (f *fakeNotifier) SendMilestoneReachedEmail(email, milestone string, _, _ decimal.Decimal, _ string) error {
	f.sent = append(f.sent, email+":"+milestone)
	return f.err
}

func TestMilestoneCheckerCompletesReachedTargets(t *testing.T) {
	isa := "ISA"
	store := &fakeMilestones{pending: []models.Milestone{
		{ID: "m1", Name: "50k", TargetValue: decimal.NewFromInt(50000)},
		{ID: "m2", Name: "100k", TargetValue: decimal.NewFromInt(100000)},
		{ID: "m3", Name: "ISA 20k", TargetValue: decimal.NewFromInt(20000), AccountType: &isa},
	}}
	values := fakeValues{"": decimal.NewFromInt(60000), "ISA": decimal.NewFromInt(20000)}
	notifier := &fakeNotifier{}

	checker := NewMilestoneChecker(store, values, fakeAccounts{}, notifier, "GBP")
	done, err := checker.Check(context.Background(), "acc")
	require.NoError(t, err)

	require.Len(t, done, 2)
	assert.Equal(t, []string{"m1", "m3"}, store.completed)
	assert.True(t, done[0].IsCompleted)
	assert.Equal(t, []string{"saver@example.com:50k", "saver@example.com:ISA 20k"}, notifier.sent)
}

func TestMilestoneCheckerIgnoresEmailFailures(t *testing.T) {
	store := &fakeMilestones{pending: []models.Milestone{{ID: "m1", Name: "1k", TargetValue: decimal.NewFromInt(1000)}}}
	checker := NewMilestoneChecker(store, fakeValues{"": decimal.NewFromInt(1000)}, fakeAccounts{}, &fakeNotifier{err: errors.New("smtp down")}, "GBP")

	done, err := checker.Check(context.Background(), "acc")
	require.NoError(t, err)
	assert.Len(t, done, 1)
}
