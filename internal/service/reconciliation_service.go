package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ahc-eng/payflow-api/internal/auth"
	"github.com/ahc-eng/payflow-api/internal/domain"
	"github.com/ahc-eng/payflow-api/internal/ledger"
	"github.com/ahc-eng/payflow-api/internal/repository"
)

// ErrLedgerDisabled is returned when the accounting ledger integration is not
// configured for this deployment
var ErrLedgerDisabled = errors.New("ledger integration is not enabled")

// SettlementSource is the slice of the ledger client the reconciliation
// report needs. Satisfied by *ledger.Client.
type SettlementSource interface {
	IsEnabled() bool
	SupplierSettlements(ctx context.Context, from, to time.Time) ([]ledger.SettledRow, error)
}

// ReconciliationService compares settled payment volumes in this system
// against the accounting ledger, per supplier. Finance runs it after each
// payment batch to catch invoices booked in only one of the two systems.
type ReconciliationService struct {
	paymentRepo *repository.PaymentRepository
	settlements SettlementSource
	logger      *zap.Logger
}

// NewReconciliationService creates a new reconciliation service instance.
// settlements may wrap a nil ledger client; Report then returns
// ErrLedgerDisabled.
func NewReconciliationService(paymentRepo *repository.PaymentRepository, settlements SettlementSource, logger *zap.Logger) *ReconciliationService {
	return &ReconciliationService{
		paymentRepo: paymentRepo,
		settlements: settlements,
		logger:      logger,
	}
}

// Report builds the per-supplier reconciliation for payments settled in
// [from, to). Only finance (or admin) may run it; supplier rows are not
// project-scoped because the ledger side has no project dimension.
func (s *ReconciliationService) Report(ctx context.Context, from, to time.Time) (*domain.ReconciliationReportDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}
	if !userCtx.HasAnyRole(domain.RoleFinance) {
		return nil, fmt.Errorf("%w: only finance can run reconciliation", ErrPermissionDenied)
	}
	if s.settlements == nil || !s.settlements.IsEnabled() {
		return nil, ErrLedgerDisabled
	}
	if !to.After(from) {
		return nil, fmt.Errorf("%w: to must be after from", ErrInvalidInput)
	}

	system, err := s.paymentRepo.SupplierPaidTotals(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to sum settled payments: %w", err)
	}

	booked, err := s.settlements.SupplierSettlements(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger settlements: %w", err)
	}

	// Join the two sides on the normalized supplier name. Suppliers present
	// on only one side still get a line, with zeros on the other.
	lines := make(map[string]*domain.ReconciliationLineDTO)
	for i := range system {
		row := system[i]
		key := reconciliationKey(row.SupplierName)
		supplierID := row.SupplierID
		lines[key] = &domain.ReconciliationLineDTO{
			SupplierID:   &supplierID,
			SupplierName: row.SupplierName,
			SystemCount:  row.PaidCount,
			SystemAmount: row.PaidAmount,
			LedgerAmount: decimal.Zero,
		}
	}
	for _, row := range booked {
		key := reconciliationKey(row.SupplierName)
		line, exists := lines[key]
		if !exists {
			line = &domain.ReconciliationLineDTO{
				SupplierName: domain.NormalizeSupplierName(row.SupplierName),
				SystemAmount: decimal.Zero,
			}
			lines[key] = line
		}
		line.LedgerCount += row.InvoiceCount
		line.LedgerAmount = line.LedgerAmount.Add(row.SettledAmount)
	}

	report := &domain.ReconciliationReportDTO{
		From:        from.UTC().Format("2006-01-02T15:04:05Z"),
		To:          to.UTC().Format("2006-01-02T15:04:05Z"),
		GeneratedAt: time.Now().UTC().Format("2006-01-02T15:04:05Z"),
		Lines:       make([]domain.ReconciliationLineDTO, 0, len(lines)),
	}
	for _, line := range lines {
		line.Difference = line.LedgerAmount.Sub(line.SystemAmount)
		line.Matched = line.Difference.IsZero()
		if line.Matched {
			report.MatchedCount++
		} else {
			report.MismatchedCount++
		}
		report.Lines = append(report.Lines, *line)
	}
	// Mismatches first, then by settled volume, so the rows that need a human
	// land at the top.
	sort.Slice(report.Lines, func(i, j int) bool {
		a, b := report.Lines[i], report.Lines[j]
		if a.Matched != b.Matched {
			return !a.Matched
		}
		if !a.LedgerAmount.Equal(b.LedgerAmount) {
			return a.LedgerAmount.GreaterThan(b.LedgerAmount)
		}
		return a.SupplierName < b.SupplierName
	})

	s.logger.Info("reconciliation report generated",
		zap.Time("from", from),
		zap.Time("to", to),
		zap.Int("suppliers", len(report.Lines)),
		zap.Int("mismatches", report.MismatchedCount))

	return report, nil
}

func reconciliationKey(name string) string {
	return strings.ToLower(domain.NormalizeSupplierName(name))
}
