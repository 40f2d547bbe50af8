// Package dashboard builds the landing-page aggregate from three
// independently settled fetches.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nshruti113/netguard-dashboard/internal/models"
	"github.com/nshruti113/netguard-dashboard/internal/view"
)

const (
	RecentFlowsLimit  = 5
	RecentAlertsLimit = 3
)

// Part names, also used as keys of Snapshot.Failures
const (
	PartStatus = "status"
	PartFlows  = "flows"
	PartAlerts = "alerts"
)

// Source is the subset of the API client the dashboard needs
type Source interface {
	Status(ctx context.Context) (models.Status, error)
	Flows(ctx context.Context) ([]models.NetworkFlow, error)
	Alerts(ctx context.Context) ([]models.Alert, error)
}

// Snapshot is one settled dashboard cycle. A part that failed keeps the
// value of the previous cycle and is listed in Failures.
type Snapshot struct {
	Status       models.Status        `json:"status"`
	RecentFlows  []models.NetworkFlow `json:"recent_flows"`
	RecentAlerts []models.Alert       `json:"recent_alerts"`
	Security     view.SecurityLevel   `json:"security"`
	TotalFlows   int                  `json:"total_flows"`
	TotalAlerts  int                  `json:"total_alerts"`
	Failures     map[string]string    `json:"failures,omitempty"`
	SettledAt    time.Time            `json:"settled_at"`
}

// Aggregator remembers the last snapshot so partial failures can fall back
// to it.
type Aggregator struct {
	src Source

	mu   sync.Mutex
	last Snapshot
}

func NewAggregator(src Source) *Aggregator {
	return &Aggregator{src: src}
}

// Seed sets the snapshot failed parts fall back to
func (a *Aggregator) Seed(s Snapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.last = s
}

// Fetch issues the three requests concurrently and waits for all of them.
// It fails only when every part fails; the error then joins all three.
func (a *Aggregator) Fetch(ctx context.Context) (Snapshot, error) {
	var (
		wg                             sync.WaitGroup
		status                         models.Status
		flows                          []models.NetworkFlow
		alerts                         []models.Alert
		statusErr, flowsErr, alertsErr error
	)
	wg.Go(func() { status, statusErr = a.src.Status(ctx) })
	wg.Go(func() { flows, flowsErr = a.src.Flows(ctx) })
	wg.Go(func() { alerts, alertsErr = a.src.Alerts(ctx) })
	wg.Wait()

	if statusErr != nil && flowsErr != nil && alertsErr != nil {
		return Snapshot{}, errors.Join(
			fmt.Errorf("%s: %w", PartStatus, statusErr),
			fmt.Errorf("%s: %w", PartFlows, flowsErr),
			fmt.Errorf("%s: %w", PartAlerts, alertsErr),
		)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	next := a.last
	next.Failures = nil
	fail := func(part string, err error) {
		if next.Failures == nil {
			next.Failures = make(map[string]string)
		}
		next.Failures[part] = err.Error()
	}

	if statusErr != nil {
		fail(PartStatus, statusErr)
	} else {
		next.Status = status
		next.Security = view.SecurityLevelOf(status.NetworkStatus)
	}
	if flowsErr != nil {
		fail(PartFlows, flowsErr)
	} else {
		next.RecentFlows = view.Recent(flows, RecentFlowsLimit)
		next.TotalFlows = len(flows)
	}
	if alertsErr != nil {
		fail(PartAlerts, alertsErr)
	} else {
		next.RecentAlerts = view.Recent(alerts, RecentAlertsLimit)
		next.TotalAlerts = len(alerts)
	}
	next.SettledAt = time.Now()

	a.last = next
	return next, nil
}
