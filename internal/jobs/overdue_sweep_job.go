package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ahc-eng/payflow-api/internal/domain"
	"github.com/ahc-eng/payflow-api/internal/repository"
)

// OverdueSweepJobName is the name of the overdue payment sweep job
const OverdueSweepJobName = "overdue_sweep"

// AgingSource provides the in-flight payment rows the sweep examines.
// Satisfied by *repository.PaymentRepository.
type AgingSource interface {
	// ListAllForAging returns every SLA-tracked payment regardless of
	// visibility scope; the sweep notifies role holders, not the caller.
	ListAllForAging(ctx context.Context) ([]repository.AgingRow, error)

	// GetByID loads the full payment for notification fan-out.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentRequest, error)
}

// OverdueCalculator decides whether a payment breached its stage limit.
type OverdueCalculator interface {
	Compute(status domain.PaymentStatus, enteredAt time.Time, now time.Time) *domain.SLAInfoDTO
}

// OverdueNotifier delivers the breach notifications.
type OverdueNotifier interface {
	NotifyOverdue(ctx context.Context, payment *domain.PaymentRequest, daysOverdue int) error
}

// OverdueSweepJob walks all SLA-tracked payments and notifies the
// stage-responsible role holders about every row past its limit.
type OverdueSweepJob struct {
	payments   AgingSource
	calculator OverdueCalculator
	notifier   OverdueNotifier
	logger     *zap.Logger
	timeout    time.Duration
}

// NewOverdueSweepJob creates a new overdue sweep job.
// The timeout controls how long one sweep is allowed to run.
func NewOverdueSweepJob(payments AgingSource, calculator OverdueCalculator, notifier OverdueNotifier, logger *zap.Logger, timeout time.Duration) *OverdueSweepJob {
	return &OverdueSweepJob{
		payments:   payments,
		calculator: calculator,
		notifier:   notifier,
		logger:     logger,
		timeout:    timeout,
	}
}

// Run executes one sweep. This is called by the scheduler according to the
// cron expression.
func (j *OverdueSweepJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start := time.Now()
	now := start.UTC()

	rows, err := j.payments.ListAllForAging(ctx)
	if err != nil {
		j.logger.Error("overdue sweep failed to list payments",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)))
		return
	}

	var overdue, notified, failed int
	for _, row := range rows {
		enteredAt := row.UpdatedAt
		if enteredAt.IsZero() {
			enteredAt = row.CreatedAt
		}

		info := j.calculator.Compute(row.Status, enteredAt, now)
		if info == nil || !info.IsOverdue {
			continue
		}
		overdue++

		payment, err := j.payments.GetByID(ctx, row.ID)
		if err != nil {
			j.logger.Warn("overdue sweep could not load payment",
				zap.String("payment_id", row.ID.String()),
				zap.Error(err))
			failed++
			continue
		}

		if err := j.notifier.NotifyOverdue(ctx, payment, info.DaysOverdue); err != nil {
			j.logger.Warn("overdue sweep could not notify",
				zap.String("payment_id", row.ID.String()),
				zap.Error(err))
			failed++
			continue
		}
		notified++
	}

	j.logger.Info("overdue sweep completed",
		zap.Int("examined", len(rows)),
		zap.Int("overdue", overdue),
		zap.Int("notified", notified),
		zap.Int("failed", failed),
		zap.Duration("duration", time.Since(start)))
}

// RegisterOverdueSweepJob registers the overdue sweep with the scheduler.
// The cronExpr should be a valid cron expression (e.g., "0 0 7 * * *" for
// 07:00 every day). If runOnStartup is true, one sweep runs immediately in a
// background goroutine so it doesn't block API startup.
func RegisterOverdueSweepJob(scheduler *Scheduler, payments AgingSource, calculator OverdueCalculator, notifier OverdueNotifier, logger *zap.Logger, cronExpr string, timeout time.Duration, runOnStartup bool) error {
	job := NewOverdueSweepJob(payments, calculator, notifier, logger, timeout)

	if runOnStartup {
		go job.Run()
	}

	return scheduler.AddJob(OverdueSweepJobName, cronExpr, job.Run)
}
