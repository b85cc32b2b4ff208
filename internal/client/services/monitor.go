package services

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/restosession/internal/logging"
)

// Pinger checks whether the backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConnectivityMonitor tracks whether the backend is reachable. It starts
// optimistic: the client counts as online until a ping fails.
type ConnectivityMonitor struct {
	pinger   Pinger
	interval time.Duration
	timeout  time.Duration
	logger   logging.Logger
	online   atomic.Bool
}

func NewConnectivityMonitor(pinger Pinger, interval time.Duration, logger logging.Logger) *ConnectivityMonitor {
	m := &ConnectivityMonitor{
		pinger:   pinger,
		interval: interval,
		timeout:  3 * time.Second,
		logger:   logger.With("component", "connectivity"),
	}
	m.online.Store(true)
	return m
}

// Online reports the result of the latest check.
func (m *ConnectivityMonitor) Online() bool {
	return m.online.Load()
}

// Check pings the backend once and records the result.
func (m *ConnectivityMonitor) Check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	err := m.pinger.Ping(ctx)
	cancel()

	online := err == nil
	if prev := m.online.Swap(online); prev != online {
		if online {
			m.logger.Info(ctx, "switched to online mode")
		} else {
			m.logger.Warn(ctx, "switched to offline mode", "error", err)
		}
	}
	return online
}

// Run checks connectivity every interval until ctx is done.
func (m *ConnectivityMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Check(ctx)
		case <-ctx.Done():
			return
		}
	}
}
