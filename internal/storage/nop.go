package storage

import (
	"context"
	"time"

	"github.com/nshruti113/netguard-dashboard/internal/models"
)

// Nop is the Cache used when no Redis address is configured
type Nop struct{}

var _ Cache = Nop{}

func (Nop) StoreSnapshot(context.Context, string, any) error { return nil }

func (Nop) LoadSnapshot(context.Context, string, any) (time.Time, bool, error) {
	return time.Time{}, false, nil
}

func (Nop) StoreFlows(context.Context, []models.NetworkFlow) (int, error) { return 0, nil }

func (Nop) RecentFlowHistory(context.Context, time.Duration) ([]models.NetworkFlow, error) {
	return nil, nil
}

func (Nop) TrafficWindow(context.Context, time.Time) (*models.TrafficWindow, error) {
	return nil, nil
}

func (Nop) PublishNewAlerts(context.Context, []models.Alert) (int, error) { return 0, nil }

func (Nop) Close() error { return nil }
