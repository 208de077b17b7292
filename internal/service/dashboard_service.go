package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ahc-eng/payflow-api/internal/auth"
	"github.com/ahc-eng/payflow-api/internal/domain"
	"github.com/ahc-eng/payflow-api/internal/repository"
	"github.com/ahc-eng/payflow-api/internal/workflow"
)

// chipEntry is one cached badge-count computation.
type chipEntry struct {
	counts    domain.ChipCountsDTO
	expiresAt time.Time
}

// DashboardService aggregates metrics, reports and the navbar badge counts.
// All numbers are computed inside the requesting user's visibility scope.
type DashboardService struct {
	paymentRepo      *repository.PaymentRepository
	notificationRepo *repository.NotificationRepository
	payments         *PaymentService
	visibility       *VisibilityResolver
	sla              *SLAService
	chipTTL          time.Duration
	logger           *zap.Logger

	mu    sync.Mutex
	chips map[uuid.UUID]chipEntry
}

// NewDashboardService creates a new dashboard service instance
func NewDashboardService(
	paymentRepo *repository.PaymentRepository,
	notificationRepo *repository.NotificationRepository,
	payments *PaymentService,
	visibility *VisibilityResolver,
	sla *SLAService,
	chipTTL time.Duration,
	logger *zap.Logger,
) *DashboardService {
	return &DashboardService{
		paymentRepo:      paymentRepo,
		notificationRepo: notificationRepo,
		payments:         payments,
		visibility:       visibility,
		sla:              sla,
		chipTTL:          chipTTL,
		logger:           logger,
		chips:            make(map[uuid.UUID]chipEntry),
	}
}

// ChipCounts returns the badge counts for the current user, cached briefly
// because the navbar polls them on every page load.
func (s *DashboardService) ChipCounts(ctx context.Context) (*domain.ChipCountsDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}

	now := time.Now()
	s.mu.Lock()
	if entry, ok := s.chips[userCtx.UserID]; ok && now.Before(entry.expiresAt) {
		counts := entry.counts
		s.mu.Unlock()
		return &counts, nil
	}
	s.mu.Unlock()

	v, err := s.visibility.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	counts := domain.ChipCountsDTO{}

	if statuses := workflow.ActionRequiredStatuses(v.Role); len(statuses) > 0 {
		actionRequired, err := s.paymentRepo.CountByStatuses(ctx, v, statuses)
		if err != nil {
			return nil, fmt.Errorf("failed to count action required: %w", err)
		}
		counts.ActionRequired = int(actionRequired)
	}

	overdue, err := s.countOverdue(ctx, v, now)
	if err != nil {
		return nil, err
	}
	counts.Overdue = overdue

	unread, err := s.notificationRepo.CountUnread(ctx, userCtx.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	counts.UnreadNotices = unread

	s.mu.Lock()
	s.chips[userCtx.UserID] = chipEntry{counts: counts, expiresAt: now.Add(s.chipTTL)}
	s.mu.Unlock()

	return &counts, nil
}

// countOverdue counts visible payments sitting past their stage limit.
func (s *DashboardService) countOverdue(ctx context.Context, v repository.Visibility, now time.Time) (int, error) {
	rows, err := s.paymentRepo.ListForAging(ctx, v)
	if err != nil {
		return 0, fmt.Errorf("failed to load aging rows: %w", err)
	}
	overdue := 0
	for _, row := range rows {
		if s.sla.IsOverdue(row.Status, StageEnteredAt(row.CreatedAt, row.UpdatedAt), now) {
			overdue++
		}
	}
	return overdue, nil
}

// Metrics builds the dashboard KPI header, breakdowns and recent activity.
func (s *DashboardService) Metrics(ctx context.Context) (*domain.DashboardMetrics, error) {
	v, err := s.visibility.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	var filters repository.PaymentFilters

	totalRequests, err := s.paymentRepo.CountVisible(ctx, v, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to count payments: %w", err)
	}

	totals, err := s.paymentRepo.Totals(ctx, v, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to compute totals: %w", err)
	}

	statusCounts, err := s.paymentRepo.StatusCounts(ctx, v, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to compute status counts: %w", err)
	}

	projectTotals, err := s.paymentRepo.ProjectTotals(ctx, v)
	if err != nil {
		return nil, fmt.Errorf("failed to compute project totals: %w", err)
	}

	overdue, err := s.countOverdue(ctx, v, time.Now())
	if err != nil {
		return nil, err
	}

	recent, err := s.paymentRepo.ListRecent(ctx, v, 10)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent payments: %w", err)
	}

	metrics := &domain.DashboardMetrics{
		TotalRequests:   totalRequests,
		TotalAmount:     totals.TotalAmount,
		PaidAmount:      totals.PaidAmount,
		PendingAmount:   totals.PendingAmount,
		RejectedAmount:  totals.RejectedAmount,
		OverdueCount:    int64(overdue),
		StatusBreakdown: statusCounts,
		ProjectTotals:   projectTotals,
	}
	for i := range recent {
		metrics.RecentPayments = append(metrics.RecentPayments, s.payments.decorate(&recent[i], v.Role))
	}

	return metrics, nil
}

// StageDurations builds the stage dwell report for every visible in-flight
// payment: current-stage ages sorted most overdue first, average historical
// dwell time per stage derived from the approval trails, and the per-stage
// overdue breakdown with the worst stage named.
func (s *DashboardService) StageDurations(ctx context.Context) (*domain.StageDurationReportDTO, error) {
	v, err := s.visibility.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	statuses := []domain.PaymentStatus{
		domain.StatusPendingPM, domain.StatusPendingEng,
		domain.StatusPendingFinance, domain.StatusReadyForPayment,
	}
	payments, err := s.paymentRepo.ListWithTrail(ctx, v, statuses)
	if err != nil {
		return nil, fmt.Errorf("failed to list in-flight payments: %w", err)
	}

	now := time.Now()
	rows := make([]domain.StageDurationDTO, 0, len(payments))
	for i := range payments {
		p := &payments[i]
		info := s.sla.Compute(p.Status, StageEnteredAt(p.CreatedAt, p.UpdatedAt), now)
		if info == nil {
			continue
		}
		row := domain.StageDurationDTO{
			PaymentID:   p.ID,
			Status:      p.Status,
			EnteredAt:   info.EnteredAt,
			AgeDays:     info.AgeDays,
			LimitDays:   info.LimitDays,
			DaysOverdue: info.DaysOverdue,
		}
		if p.Project != nil {
			row.ProjectName = p.Project.Name
		}
		if p.Supplier != nil {
			row.Supplier = p.Supplier.Name
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].DaysOverdue != rows[j].DaysOverdue {
			return rows[i].DaysOverdue > rows[j].DaysOverdue
		}
		return rows[i].AgeDays > rows[j].AgeDays
	})

	report := &domain.StageDurationReportDTO{
		Rows:          rows,
		StageAverages: s.sla.StageAverages(payments),
	}
	report.OverdueByStage, report.WorstStage = s.sla.OverdueBreakdown(rows)

	return report, nil
}
