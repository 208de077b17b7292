package jobs_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ahc-eng/payflow-api/internal/domain"
	"github.com/ahc-eng/payflow-api/internal/jobs"
	"github.com/ahc-eng/payflow-api/internal/repository"
)

type stubAgingSource struct {
	rows    []repository.AgingRow
	listErr error
	loadErr map[uuid.UUID]error
}

func (s *stubAgingSource) ListAllForAging(_ context.Context) ([]repository.AgingRow, error) {
	return s.rows, s.listErr
}

func (s *stubAgingSource) GetByID(_ context.Context, id uuid.UUID) (*domain.PaymentRequest, error) {
	if err, ok := s.loadErr[id]; ok {
		return nil, err
	}
	return &domain.PaymentRequest{BaseModel: domain.BaseModel{ID: id}}, nil
}

// overdueAfter flags any payment older than the configured age.
type overdueAfter struct {
	age time.Duration
}

func (c overdueAfter) Compute(status domain.PaymentStatus, enteredAt time.Time, now time.Time) *domain.SLAInfoDTO {
	if status == domain.StatusDraft {
		return nil
	}
	elapsed := now.Sub(enteredAt)
	return &domain.SLAInfoDTO{
		Status:      status,
		IsOverdue:   elapsed > c.age,
		DaysOverdue: int(elapsed.Hours() / 24),
	}
}

type recordingNotifier struct {
	notified []uuid.UUID
	fail     map[uuid.UUID]error
}

func (n *recordingNotifier) NotifyOverdue(_ context.Context, payment *domain.PaymentRequest, _ int) error {
	if err, ok := n.fail[payment.ID]; ok {
		return err
	}
	n.notified = append(n.notified, payment.ID)
	return nil
}

func TestOverdueSweepNotifiesBreachedPayments(t *testing.T) {
	now := time.Now().UTC()
	fresh := uuid.New()
	stale := uuid.New()
	draft := uuid.New()

	source := &stubAgingSource{rows: []repository.AgingRow{
		{ID: fresh, Status: domain.StatusPendingPM, UpdatedAt: now.Add(-time.Hour)},
		{ID: stale, Status: domain.StatusPendingFinance, UpdatedAt: now.Add(-10 * 24 * time.Hour)},
		{ID: draft, Status: domain.StatusDraft, UpdatedAt: now.Add(-30 * 24 * time.Hour)},
	}}
	notifier := &recordingNotifier{}

	job := jobs.NewOverdueSweepJob(source, overdueAfter{age: 3 * 24 * time.Hour}, notifier, zap.NewNop(), time.Minute)
	job.Run()

	require.Len(t, notifier.notified, 1)
	assert.Equal(t, stale, notifier.notified[0])
}

func TestOverdueSweepFallsBackToCreatedAt(t *testing.T) {
	now := time.Now().UTC()
	id := uuid.New()
	source := &stubAgingSource{rows: []repository.AgingRow{
		{ID: id, Status: domain.StatusPendingEng, CreatedAt: now.Add(-5 * 24 * time.Hour)},
	}}
	notifier := &recordingNotifier{}

	job := jobs.NewOverdueSweepJob(source, overdueAfter{age: 24 * time.Hour}, notifier, zap.NewNop(), time.Minute)
	job.Run()

	require.Len(t, notifier.notified, 1)
	assert.Equal(t, id, notifier.notified[0])
}

func TestOverdueSweepKeepsGoingAfterFailures(t *testing.T) {
	now := time.Now().UTC()
	broken := uuid.New()
	unloadable := uuid.New()
	good := uuid.New()

	entered := now.Add(-10 * 24 * time.Hour)
	source := &stubAgingSource{
		rows: []repository.AgingRow{
			{ID: unloadable, Status: domain.StatusPendingPM, UpdatedAt: entered},
			{ID: broken, Status: domain.StatusPendingPM, UpdatedAt: entered},
			{ID: good, Status: domain.StatusPendingPM, UpdatedAt: entered},
		},
		loadErr: map[uuid.UUID]error{unloadable: errors.New("gone")},
	}
	notifier := &recordingNotifier{fail: map[uuid.UUID]error{broken: errors.New("smtp down")}}

	job := jobs.NewOverdueSweepJob(source, overdueAfter{age: time.Hour}, notifier, zap.NewNop(), time.Minute)
	job.Run()

	require.Len(t, notifier.notified, 1)
	assert.Equal(t, good, notifier.notified[0])
}

func TestOverdueSweepListFailure(t *testing.T) {
	source := &stubAgingSource{listErr: errors.New("db down")}
	notifier := &recordingNotifier{}

	job := jobs.NewOverdueSweepJob(source, overdueAfter{age: time.Hour}, notifier, zap.NewNop(), time.Minute)
	job.Run()

	assert.Empty(t, notifier.notified)
}
