package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/OsGift/safawinet-api/internal/metrics"
)

type fakePurger struct {
	days   int
	cutoff time.Time
	purged int64
	err    error
	calls  int
}

func (f *fakePurger) PurgeOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	f.calls++
	f.cutoff = cutoff
	return f.purged, f.err
}

func (f *fakePurger) RetentionDays() int { return f.days }

func newJob(p *fakePurger) (*RetentionJob, *metrics.Metrics) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	j := NewRetentionJob(p, m, zap.NewNop())
	j.now = func() time.Time { return time.Date(2026, 4, 10, 3, 15, 0, 0, time.UTC) }
	return j, m
}

func TestRetentionJob_Run(t *testing.T) {
	p := &fakePurger{days: 90, purged: 12}
	j, m := newJob(p)

	n, err := j.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)
	assert.Equal(t, time.Date(2026, 1, 10, 3, 15, 0, 0, time.UTC), p.cutoff)
	assert.Equal(t, 12.0, testutil.ToFloat64(m.AuditLogsPurgedTotal))
}

func TestRetentionJob_Disabled(t *testing.T) {
	p := &fakePurger{days: 0}
	j, _ := newJob(p)

	n, err := j.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, p.calls)
}

func TestRetentionJob_Error(t *testing.T) {
	p := &fakePurger{days: 30, err: errors.New("connection reset")}
	j, m := newJob(p)

	_, err := j.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Zero(t, testutil.ToFloat64(m.AuditLogsPurgedTotal))
}

func TestScheduler_RejectsBadSpec(t *testing.T) {
	s := NewScheduler(zap.NewNop())
	j, _ := newJob(&fakePurger{days: 1})

	assert.Error(t, s.ScheduleRetention("every tuesday", j))
	assert.NoError(t, s.ScheduleRetention("15 3 * * *", j))

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
