package service

import (
	"math"
	"sort"
	"time"

	"github.com/ahc-eng/payflow-api/internal/config"
	"github.com/ahc-eng/payflow-api/internal/domain"
)

// SLAService computes how long a payment has sat in its current stage and
// whether it breached the stage's day limit. Only the four pending stages
// are tracked; draft and terminal states never go overdue.
type SLAService struct {
	cfg *config.SLAConfig
}

func NewSLAService(cfg *config.SLAConfig) *SLAService {
	return &SLAService{cfg: cfg}
}

// LimitDays returns the day limit for a status and whether the status is
// SLA-tracked at all.
func (s *SLAService) LimitDays(status domain.PaymentStatus) (int, bool) {
	switch status {
	case domain.StatusPendingPM:
		return s.cfg.PendingPMDays, true
	case domain.StatusPendingEng:
		return s.cfg.PendingEngDays, true
	case domain.StatusPendingFinance:
		return s.cfg.PendingFinanceDays, true
	case domain.StatusReadyForPayment:
		return s.cfg.ReadyForPaymentDays, true
	default:
		return 0, false
	}
}

// Compute builds the SLA view for one payment. enteredAt is when the payment
// reached its current status; the caller passes the row's updated_at, falling
// back to created_at for rows that were never touched.
func (s *SLAService) Compute(status domain.PaymentStatus, enteredAt time.Time, now time.Time) *domain.SLAInfoDTO {
	limit, tracked := s.LimitDays(status)
	if !tracked {
		return nil
	}

	ageDays := now.Sub(enteredAt).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}

	info := &domain.SLAInfoDTO{
		Status:    status,
		EnteredAt: enteredAt.UTC().Format("2006-01-02T15:04:05Z"),
		LimitDays: limit,
		AgeDays:   math.Round(ageDays*100) / 100,
	}

	if ageDays > float64(limit) {
		info.IsOverdue = true
		overdue := int(math.Floor(ageDays - float64(limit)))
		if overdue < 1 {
			overdue = 1
		}
		info.DaysOverdue = overdue
	}

	return info
}

// IsOverdue is a cheap check used by the badge counts and the sweep job.
func (s *SLAService) IsOverdue(status domain.PaymentStatus, enteredAt time.Time, now time.Time) bool {
	limit, tracked := s.LimitDays(status)
	if !tracked {
		return false
	}
	return now.Sub(enteredAt).Hours()/24 > float64(limit)
}

// StageEnteredAt picks the timestamp a payment entered its current stage.
func StageEnteredAt(createdAt, updatedAt time.Time) time.Time {
	if updatedAt.IsZero() {
		return createdAt
	}
	return updatedAt
}

// StageAverages walks each payment's approval trail in decision order and
// averages the time spent in every stage passed through. The first stage's
// clock starts at the payment's creation time. A span that comes out zero
// or negative (clock skew, backfilled rows) is skipped rather than pulling
// the average down.
func (s *SLAService) StageAverages(payments []domain.PaymentRequest) []domain.StageAverageDTO {
	type acc struct {
		total   time.Duration
		samples int
	}
	totals := make(map[domain.PaymentStatus]*acc)

	for i := range payments {
		p := &payments[i]
		trail := make([]domain.PaymentApproval, len(p.Approvals))
		copy(trail, p.Approvals)
		sort.SliceStable(trail, func(a, b int) bool {
			return trail[a].DecidedAt.Before(trail[b].DecidedAt)
		})

		start := p.CreatedAt
		stage := domain.StatusDraft
		for j := range trail {
			a := &trail[j]
			exited := stage
			if a.OldStatus != nil {
				exited = *a.OldStatus
			}
			if span := a.DecidedAt.Sub(start); span > 0 {
				entry := totals[exited]
				if entry == nil {
					entry = &acc{}
					totals[exited] = entry
				}
				entry.total += span
				entry.samples++
			}
			start = a.DecidedAt
			stage = a.NewStatus
		}
	}

	var report []domain.StageAverageDTO
	for _, status := range domain.AllPaymentStatuses {
		entry := totals[status]
		if entry == nil {
			continue
		}
		days := entry.total.Hours() / 24 / float64(entry.samples)
		report = append(report, domain.StageAverageDTO{
			Status:      status,
			Samples:     entry.samples,
			AverageDays: math.Round(days*100) / 100,
		})
	}
	return report
}

// OverdueBreakdown counts the overdue rows per stage and names the worst
// stage: the one holding the most overdue payments, ties going to the
// lexicographically first stage name.
func (s *SLAService) OverdueBreakdown(rows []domain.StageDurationDTO) ([]domain.StageOverdueDTO, domain.PaymentStatus) {
	counts := make(map[domain.PaymentStatus]int)
	for _, row := range rows {
		if row.DaysOverdue > 0 {
			counts[row.Status]++
		}
	}

	var breakdown []domain.StageOverdueDTO
	var worst domain.PaymentStatus
	worstCount := 0
	for _, status := range domain.AllPaymentStatuses {
		n, ok := counts[status]
		if !ok {
			continue
		}
		breakdown = append(breakdown, domain.StageOverdueDTO{Status: status, Overdue: n})
		if n > worstCount || (n == worstCount && string(status) < string(worst)) {
			worst = status
			worstCount = n
		}
	}
	return breakdown, worst
}
