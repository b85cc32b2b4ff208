// Package probe ships login diagnostics to the backend's logging endpoint.
//
// Reports are fire-and-forget: Report returns immediately and every
// failure (timeout, transport, encoding, even a panic in the sender) is
// logged locally and dropped.
package probe

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/restosession/internal/client/client"
	"github.com/dmitrijs2005/restosession/internal/client/device"
	"github.com/dmitrijs2005/restosession/internal/client/models"
	"github.com/dmitrijs2005/restosession/internal/clock"
	"github.com/dmitrijs2005/restosession/internal/logging"
	"github.com/google/uuid"
)

// DefaultTimeout bounds a single report's network call.
const DefaultTimeout = 5 * time.Second

// Sender delivers one log entry. client.HTTPClient satisfies it.
type Sender interface {
	SendLog(ctx context.Context, entry client.LogEntry) error
}

// Reporter sends diagnostics in background goroutines.
type Reporter struct {
	sender  Sender
	logger  logging.Logger
	clk     clock.Clock
	timeout time.Duration
	network device.NetworkProbe

	wg     sync.WaitGroup
	sent   atomic.Uint64
	failed atomic.Uint64
}

// NewReporter returns a Reporter. network may be nil; a non-positive
// timeout selects DefaultTimeout.
func NewReporter(sender Sender, logger logging.Logger, clk clock.Clock, timeout time.Duration, network device.NetworkProbe) *Reporter {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Reporter{
		sender:  sender,
		logger:  logger.With("component", "probe"),
		clk:     clk,
		timeout: timeout,
		network: network,
	}
}

// Report ships err with its endpoint and diagnostic info. It never blocks
// on the network and never fails.
func (r *Reporter) Report(err error, endpoint string, diagnosticInfo map[string]any) {
	entry := client.LogEntry{
		Endpoint:       endpoint,
		Timestamp:      r.clk.Now().UTC().Format(time.RFC3339Nano),
		TraceID:        uuid.NewString(),
		DiagnosticInfo: diagnosticInfo,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	if r.network != nil {
		if info := r.network(); !info.Empty() {
			entry.NetworkInfo = &info
		}
	}

	r.wg.Add(1)
	go r.ship(entry)
}

func (r *Reporter) ship(entry client.LogEntry) {
	defer r.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	defer func() {
		if p := recover(); p != nil {
			r.failed.Add(1)
			r.logger.Warn(ctx, "diagnostic report panicked", "trace_id", entry.TraceID, "panic", fmt.Sprint(p))
		}
	}()

	if err := r.sender.SendLog(ctx, entry); err != nil {
		r.failed.Add(1)
		r.logger.Warn(ctx, "diagnostic report dropped", "trace_id", entry.TraceID, "endpoint", entry.Endpoint, "error", err)
		return
	}
	r.sent.Add(1)
	r.logger.Debug(ctx, "diagnostic report sent", "trace_id", entry.TraceID, "endpoint", entry.Endpoint)
}

// Wait blocks until every report started so far has finished.
func (r *Reporter) Wait() {
	r.wg.Wait()
}

// Stats returns the number of delivered and dropped reports.
func (r *Reporter) Stats() (sent, failed uint64) {
	return r.sent.Load(), r.failed.Load()
}

// AttemptInfo flattens a login AttemptRecord into diagnostic info.
func AttemptInfo(rec models.AttemptRecord) map[string]any {
	steps := make([]map[string]any, len(rec.Steps))
	for i, s := range rec.Steps {
		steps[i] = map[string]any{"label": s.Label, "at": s.At.UTC().Format(time.RFC3339Nano)}
	}
	return map[string]any{
		"attempt_id": rec.ID,
		"strategy":   rec.Strategy,
		"retries":    rec.Retries,
		"success":    rec.Success,
		"started_at": rec.StartedAt.UTC().Format(time.RFC3339Nano),
		"steps":      steps,
	}
}
