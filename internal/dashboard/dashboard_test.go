package dashboard

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nshruti113/netguard-dashboard/internal/models"
)

type fakeSource struct {
	status    models.Status
	flows     []models.NetworkFlow
	alerts    []models.Alert
	statusErr error
	flowsErr  error
	alertsErr error
}

func (f *fakeSource) Status(context.Context) (models.Status, error) {
	return f.status, f.statusErr
}

func (f *fakeSource) Flows(context.Context) ([]models.NetworkFlow, error) {
	return f.flows, f.flowsErr
}

func (f *fakeSource) Alerts(context.Context) ([]models.Alert, error) {
	return f.alerts, f.alertsErr
}

func manyFlows(n int) []models.NetworkFlow {
	out := make([]models.NetworkFlow, n)
	for i := range out {
		out[i] = models.NetworkFlow{ID: fmt.Sprintf("f%d", i)}
	}
	return out
}

func manyAlerts(n int) []models.Alert {
	out := make([]models.Alert, n)
	for i := range out {
		out[i] = models.Alert{ID: fmt.Sprintf("a%d", i), Severity: models.SeverityLow}
	}
	return out
}

func TestFetchAllParts(t *testing.T) {
	src := &fakeSource{
		status: models.Status{NetworkStatus: models.StatusUnderAttack},
		flows:  manyFlows(8),
		alerts: manyAlerts(6),
	}
	agg := NewAggregator(src)

	snap, err := agg.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.RecentFlows, RecentFlowsLimit)
	assert.Len(t, snap.RecentAlerts, RecentAlertsLimit)
	assert.Equal(t, 8, snap.TotalFlows)
	assert.Equal(t, 6, snap.TotalAlerts)
	assert.Equal(t, "threat", snap.Security.Level)
	assert.Empty(t, snap.Failures)
	assert.False(t, snap.SettledAt.IsZero())
}

func TestFetchPartialFailureKeepsPreviousPart(t *testing.T) {
	src := &fakeSource{
		status: models.Status{NetworkStatus: models.StatusSafe},
		flows:  manyFlows(2),
		alerts: manyAlerts(2),
	}
	agg := NewAggregator(src)
	_, err := agg.Fetch(context.Background())
	require.NoError(t, err)

	src.flowsErr = errors.New("timeout")
	src.alerts = manyAlerts(1)
	src.status = models.Status{NetworkStatus: models.StatusUnderAttack}

	snap, err := agg.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.RecentFlows, 2, "failed part keeps previous value")
	assert.Len(t, snap.RecentAlerts, 1)
	assert.Equal(t, models.StatusUnderAttack, snap.Status.NetworkStatus)
	assert.Equal(t, map[string]string{PartFlows: "timeout"}, snap.Failures)

	src.flowsErr = nil
	snap, err = agg.Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Failures)
}

func TestFetchFailsOnlyWhenAllPartsFail(t *testing.T) {
	boom := errors.New("down")
	src := &fakeSource{statusErr: boom, flowsErr: boom, alertsErr: boom}

	_, err := NewAggregator(src).Fetch(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), PartAlerts)
}

func TestSeedBacksFirstPartialFailure(t *testing.T) {
	src := &fakeSource{statusErr: errors.New("x"), flows: manyFlows(1)}
	agg := NewAggregator(src)
	agg.Seed(Snapshot{Status: models.Status{NetworkStatus: models.StatusSafe}})

	snap, err := agg.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.StatusSafe, snap.Status.NetworkStatus)
	assert.Contains(t, snap.Failures, PartStatus)
}
