package service_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahc-eng/payflow-api/internal/config"
	"github.com/ahc-eng/payflow-api/internal/domain"
	"github.com/ahc-eng/payflow-api/internal/service"
)

func newSLA() *service.SLAService {
	return service.NewSLAService(&config.SLAConfig{
		PendingPMDays:       3,
		PendingEngDays:      4,
		PendingFinanceDays:  3,
		ReadyForPaymentDays: 2,
	})
}

func TestSLACompute(t *testing.T) {
	sla := newSLA()
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	t.Run("within limit", func(t *testing.T) {
		entered := now.Add(-2 * 24 * time.Hour)
		info := sla.Compute(domain.StatusPendingPM, entered, now)
		require.NotNil(t, info)
		assert.False(t, info.IsOverdue)
		assert.Equal(t, 3, info.LimitDays)
		assert.InDelta(t, 2.0, info.AgeDays, 0.01)
		assert.Zero(t, info.DaysOverdue)
	})

	t.Run("ten days in a three day stage", func(t *testing.T) {
		entered := now.Add(-10 * 24 * time.Hour)
		info := sla.Compute(domain.StatusPendingFinance, entered, now)
		require.NotNil(t, info)
		assert.True(t, info.IsOverdue)
		assert.Equal(t, 7, info.DaysOverdue)
	})

	t.Run("barely over rounds up to one day", func(t *testing.T) {
		entered := now.Add(-3*24*time.Hour - time.Hour)
		info := sla.Compute(domain.StatusPendingPM, entered, now)
		require.NotNil(t, info)
		assert.True(t, info.IsOverdue)
		assert.Equal(t, 1, info.DaysOverdue)
	})

	t.Run("draft and terminal stages are untracked", func(t *testing.T) {
		entered := now.Add(-30 * 24 * time.Hour)
		assert.Nil(t, sla.Compute(domain.StatusDraft, entered, now))
		assert.Nil(t, sla.Compute(domain.StatusPaid, entered, now))
		assert.Nil(t, sla.Compute(domain.StatusRejected, entered, now))
	})

	t.Run("clock skew clamps to zero", func(t *testing.T) {
		entered := now.Add(time.Hour)
		info := sla.Compute(domain.StatusPendingEng, entered, now)
		require.NotNil(t, info)
		assert.Zero(t, info.AgeDays)
		assert.False(t, info.IsOverdue)
	})
}

func TestStageAverages(t *testing.T) {
	sla := newSLA()
	base := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

	pendingPM := domain.StatusPendingPM
	pendingEng := domain.StatusPendingEng
	draft := domain.StatusDraft

	trail := func(created time.Time, steps ...domain.PaymentApproval) domain.PaymentRequest {
		return domain.PaymentRequest{
			BaseModel: domain.BaseModel{CreatedAt: created},
			Approvals: steps,
		}
	}

	t.Run("first stage starts at creation", func(t *testing.T) {
		// Two days in draft, then one day in pending_pm.
		p := trail(base,
			domain.PaymentApproval{OldStatus: &draft, NewStatus: domain.StatusPendingPM, DecidedAt: base.Add(48 * time.Hour)},
			domain.PaymentApproval{OldStatus: &pendingPM, NewStatus: domain.StatusPendingEng, DecidedAt: base.Add(72 * time.Hour)},
		)
		averages := sla.StageAverages([]domain.PaymentRequest{p})
		require.Len(t, averages, 2)
		assert.Equal(t, domain.StatusDraft, averages[0].Status)
		assert.InDelta(t, 2.0, averages[0].AverageDays, 0.01)
		assert.Equal(t, domain.StatusPendingPM, averages[1].Status)
		assert.InDelta(t, 1.0, averages[1].AverageDays, 0.01)
	})

	t.Run("averages span payments", func(t *testing.T) {
		// One payment spends two days in pending_pm, the other four.
		first := trail(base,
			domain.PaymentApproval{OldStatus: &draft, NewStatus: domain.StatusPendingPM, DecidedAt: base},
			domain.PaymentApproval{OldStatus: &pendingPM, NewStatus: domain.StatusPendingEng, DecidedAt: base.Add(48 * time.Hour)},
		)
		second := trail(base,
			domain.PaymentApproval{OldStatus: &draft, NewStatus: domain.StatusPendingPM, DecidedAt: base},
			domain.PaymentApproval{OldStatus: &pendingPM, NewStatus: domain.StatusPendingEng, DecidedAt: base.Add(96 * time.Hour)},
		)
		averages := sla.StageAverages([]domain.PaymentRequest{first, second})
		require.Len(t, averages, 1)
		assert.Equal(t, domain.StatusPendingPM, averages[0].Status)
		assert.Equal(t, 2, averages[0].Samples)
		assert.InDelta(t, 3.0, averages[0].AverageDays, 0.01)
	})

	t.Run("non positive spans are skipped", func(t *testing.T) {
		// A backfilled decision stamped before creation must not count.
		p := trail(base,
			domain.PaymentApproval{OldStatus: &draft, NewStatus: domain.StatusPendingPM, DecidedAt: base.Add(-time.Hour)},
			domain.PaymentApproval{OldStatus: &pendingPM, NewStatus: domain.StatusPendingEng, DecidedAt: base.Add(24 * time.Hour)},
		)
		averages := sla.StageAverages([]domain.PaymentRequest{p})
		require.Len(t, averages, 1)
		assert.Equal(t, domain.StatusPendingPM, averages[0].Status)
		assert.Equal(t, 1, averages[0].Samples)
	})

	t.Run("unordered trails are sorted before walking", func(t *testing.T) {
		p := trail(base,
			domain.PaymentApproval{OldStatus: &pendingPM, NewStatus: domain.StatusPendingEng, DecidedAt: base.Add(72 * time.Hour)},
			domain.PaymentApproval{OldStatus: &draft, NewStatus: domain.StatusPendingPM, DecidedAt: base.Add(24 * time.Hour)},
			domain.PaymentApproval{OldStatus: &pendingEng, NewStatus: domain.StatusPendingFinance, DecidedAt: base.Add(120 * time.Hour)},
		)
		averages := sla.StageAverages([]domain.PaymentRequest{p})
		require.Len(t, averages, 3)
		assert.Equal(t, domain.StatusDraft, averages[0].Status)
		assert.InDelta(t, 1.0, averages[0].AverageDays, 0.01)
		assert.Equal(t, domain.StatusPendingPM, averages[1].Status)
		assert.InDelta(t, 2.0, averages[1].AverageDays, 0.01)
		assert.Equal(t, domain.StatusPendingEng, averages[2].Status)
		assert.InDelta(t, 2.0, averages[2].AverageDays, 0.01)
	})

	t.Run("no approvals means no samples", func(t *testing.T) {
		p := trail(base)
		assert.Empty(t, sla.StageAverages([]domain.PaymentRequest{p}))
	})
}

func TestOverdueBreakdown(t *testing.T) {
	sla := newSLA()

	rows := []domain.StageDurationDTO{
		{Status: domain.StatusPendingPM, DaysOverdue: 2},
		{Status: domain.StatusPendingPM, DaysOverdue: 1},
		{Status: domain.StatusPendingEng, DaysOverdue: 5},
		{Status: domain.StatusPendingFinance, DaysOverdue: 0},
	}

	breakdown, worst := sla.OverdueBreakdown(rows)
	require.Len(t, breakdown, 2)
	assert.Equal(t, domain.StatusPendingPM, breakdown[0].Status)
	assert.Equal(t, 2, breakdown[0].Overdue)
	assert.Equal(t, domain.StatusPendingEng, breakdown[1].Status)
	assert.Equal(t, 1, breakdown[1].Overdue)
	assert.Equal(t, domain.StatusPendingPM, worst)

	t.Run("ties break to the lexicographically first stage", func(t *testing.T) {
		tied := []domain.StageDurationDTO{
			{Status: domain.StatusPendingPM, DaysOverdue: 1},
			{Status: domain.StatusPendingEng, DaysOverdue: 1},
		}
		_, worst := sla.OverdueBreakdown(tied)
		// "pending_eng" sorts before "pending_pm".
		assert.Equal(t, domain.StatusPendingEng, worst)
	})

	t.Run("nothing overdue names no worst stage", func(t *testing.T) {
		clean := []domain.StageDurationDTO{{Status: domain.StatusPendingPM, DaysOverdue: 0}}
		breakdown, worst := sla.OverdueBreakdown(clean)
		assert.Empty(t, breakdown)
		assert.Empty(t, worst)
	})
}

func TestStageEnteredAt(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	updated := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, updated, service.StageEnteredAt(created, updated))
	assert.Equal(t, created, service.StageEnteredAt(created, time.Time{}))
}
