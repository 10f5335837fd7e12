package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AgusMolinaCode/FIRE_Api.git/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RecurringStore lista los aportes recurrentes activos
type RecurringStore interface {
	ListActive(ctx context.Context) ([]models.RecurringContribution, error)
}

// ContributionBooker registra un aporte y avanza last_processed_date en una transacción.
// Solo avanza si last_processed_date sigue valiendo previous; si no, devuelve false.
type ContributionBooker interface {
	BookContribution(ctx context.Context, contributionID, assetID string, amount decimal.Decimal, previous *time.Time, at time.Time) (bool, error)
}

// RecurringProcessor registra periódicamente los aportes recurrentes vencidos
type RecurringProcessor struct {
	interval  time.Duration
	recurring RecurringStore
	booker    ContributionBooker
	isRunning bool
	stopChan  chan struct{}
	done      chan struct{}
	mutex     sync.Mutex
	runMu     sync.Mutex
	lastRun   time.Time
	now       func() time.Time
}

// NewRecurringProcessor crea el procesador; no arranca hasta llamar a Start
func NewRecurringProcessor(interval time.Duration, recurring RecurringStore, booker ContributionBooker) *RecurringProcessor {
	return &RecurringProcessor{
		interval:  interval,
		recurring: recurring,
		booker:    booker,
		now:       time.Now,
	}
}

// ProcessRecurringContributions registra cada ocurrencia vencida hasta now, en su fecha programada.
// Un aporte nunca procesado empieza por su fecha de inicio. Devuelve cuántos aportes se registraron.
func (p *RecurringProcessor) ProcessRecurringContributions(ctx context.Context, now time.Time) (int, error) {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	contributions, err := p.recurring.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing recurring contributions: %w", err)
	}

	processed := 0
	var errs []error
	for _, rc := range contributions {
		prev := rc.LastProcessedDate
		next := rc.StartDate
		if prev != nil {
			next = rc.Next(*prev)
		}

		for !next.After(now) {
			if err := ctx.Err(); err != nil {
				return processed, err
			}
			booked, err := p.booker.BookContribution(ctx, rc.ID, rc.AssetID, rc.Amount, prev, next)
			if err != nil {
				zap.L().Error("booking recurring contribution",
					zap.String("recurringContributionId", rc.ID),
					zap.Time("scheduledFor", next),
					zap.Error(err))
				errs = append(errs, fmt.Errorf("contribution %s: %w", rc.ID, err))
				break
			}
			if !booked {
				// otra pasada ya avanzó este aporte
				zap.L().Debug("recurring contribution already booked",
					zap.String("recurringContributionId", rc.ID),
					zap.Time("scheduledFor", next))
				break
			}
			processed++
			at := next
			prev = &at
			next = rc.Next(next)
		}
	}

	return processed, errors.Join(errs...)
}

// Start inicia el procesamiento periódico
func (p *RecurringProcessor) Start() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.isRunning || p.interval <= 0 {
		return
	}

	p.isRunning = true
	p.stopChan = make(chan struct{})
	p.done = make(chan struct{})

	go func(stop <-chan struct{}, done chan<- struct{}) {
		defer close(done)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		// Procesar inmediatamente al iniciar
		p.runOnce(stop)

		for {
			select {
			case <-ticker.C:
				p.runOnce(stop)
			case <-stop:
				return
			}
		}
	}(p.stopChan, p.done)

	zap.L().Info("recurring contribution processor started", zap.Duration("interval", p.interval))
}

// Stop detiene el procesador y espera a que termine la pasada en curso
func (p *RecurringProcessor) Stop() {
	p.mutex.Lock()
	if !p.isRunning {
		p.mutex.Unlock()
		return
	}
	p.isRunning = false
	close(p.stopChan)
	done := p.done
	p.mutex.Unlock()

	<-done
	zap.L().Info("recurring contribution processor stopped")
}

// Run arranca el procesador y lo detiene cuando se cancela ctx
func (p *RecurringProcessor) Run(ctx context.Context) error {
	p.Start()
	<-ctx.Done()
	p.Stop()
	return nil
}

func (p *RecurringProcessor) runOnce(stop <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	n, err := p.ProcessRecurringContributions(ctx, p.now())
	if err != nil && !errors.Is(err, context.Canceled) {
		zap.L().Error("processing recurring contributions", zap.Error(err))
	}

	p.mutex.Lock()
	p.lastRun = p.now()
	p.mutex.Unlock()

	if n > 0 {
		zap.L().Info("recurring contributions booked", zap.Int("count", n))
	}
}

// LastRun devuelve la última vez que se procesaron los aportes
func (p *RecurringProcessor) LastRun() time.Time {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return p.lastRun
}
