package services

import (
	"context"
	"fmt"

	"github.com/AgusMolinaCode/FIRE_Api.git/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type MilestoneStore interface {
	ListPending(ctx context.Context, accountID string) ([]models.Milestone, error)
	SetCompleted(ctx context.Context, id string, completed bool) error
}

type ValueSource interface {
	TotalValue(ctx context.Context, accountID string, accountType *string) (decimal.Decimal, error)
}

type AccountSource interface {
	GetAccount(ctx context.Context, id string) (*models.UserAccount, error)
}

type MilestoneNotifier interface {
	SendMilestoneReachedEmail(email, milestone string, target, current decimal.Decimal, currency string) error
}

// MilestoneChecker completa las metas cuyo objetivo ya se alcanzó y avisa por correo.
type MilestoneChecker struct {
	milestones MilestoneStore
	values     ValueSource
	accounts   AccountSource
	notifier   MilestoneNotifier
	currency   string
}

func NewMilestoneChecker(milestones MilestoneStore, values ValueSource, accounts AccountSource, notifier MilestoneNotifier, currency string) *MilestoneChecker {
	return &MilestoneChecker{
		milestones: milestones,
		values:     values,
		accounts:   accounts,
		notifier:   notifier,
		currency:   currency,
	}
}

// Check devuelve las metas completadas en esta pasada. Un correo que falla no deshace la meta.
func (c *MilestoneChecker) Check(ctx context.Context, accountID string) ([]models.Milestone, error) {
	pending, err := c.milestones.ListPending(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("listing milestones: %w", err)
	}
	if len(pending) == 0 {
		return nil, nil
	}

	values := make(map[string]decimal.Decimal)
	valueFor := func(accountType *string) (decimal.Decimal, error) {
		key := ""
		if accountType != nil {
			key = *accountType
		}
		if v, ok := values[key]; ok {
			return v, nil
		}
		v, err := c.values.TotalValue(ctx, accountID, accountType)
		if err != nil {
			return v, err
		}
		values[key] = v
		return v, nil
	}

	var completed []models.Milestone
	for _, m := range pending {
		current, err := valueFor(m.AccountType)
		if err != nil {
			return completed, fmt.Errorf("portfolio value: %w", err)
		}
		if current.LessThan(m.TargetValue) {
			continue
		}
		if err := c.milestones.SetCompleted(ctx, m.ID, true); err != nil {
			return completed, fmt.Errorf("completing milestone %s: %w", m.ID, err)
		}
		m.IsCompleted = true
		completed = append(completed, m)
		zap.L().Info("meta alcanzada", zap.String("milestoneId", m.ID), zap.String("userAccountId", accountID))

		c.notify(ctx, accountID, m, current)
	}
	return completed, nil
}

func (c *MilestoneChecker) notify(ctx context.Context, accountID string, m models.Milestone, current decimal.Decimal) {
	if c.notifier == nil || c.accounts == nil {
		return
	}
	account, err := c.accounts.GetAccount(ctx, accountID)
	if err != nil {
		zap.L().Warn("no se pudo cargar la cuenta para el aviso", zap.String("userAccountId", accountID), zap.Error(err))
		return
	}
	if err := c.notifier.SendMilestoneReachedEmail(account.Email, m.Name, m.TargetValue, current, c.currency); err != nil {
		zap.L().Warn("no se pudo enviar el aviso de meta", zap.String("milestoneId", m.ID), zap.Error(err))
	}
}
