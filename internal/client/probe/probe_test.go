package probe

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/restosession/internal/client/client"
	"github.com/dmitrijs2005/restosession/internal/client/device"
	"github.com/dmitrijs2005/restosession/internal/client/models"
	"github.com/dmitrijs2005/restosession/internal/clock"
	"github.com/dmitrijs2005/restosession/internal/logging"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeSender struct {
	mu      sync.Mutex
	entries []client.LogEntry
	err     error
	block   chan struct{}
	panics  bool
}

func (f *fakeSender) SendLog(ctx context.Context, entry client.LogEntry) error {
	if f.panics {
		panic("boom")
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return f.err
}

func (f *fakeSender) all() []client.LogEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]client.LogEntry(nil), f.entries...)
}

func TestReport_ShipsEntry(t *testing.T) {
	s := &fakeSender{}
	r := NewReporter(s, logging.NewNop(), clock.Fake(epoch), 0, device.StaticNetwork("3g", 1.5, false))

	r.Report(errors.New("login failed"), "/api/auth/login", map[string]any{"retries": 2})
	r.Wait()

	entries := s.all()
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "login failed", e.Error)
	assert.Equal(t, "/api/auth/login", e.Endpoint)
	assert.Equal(t, "2026-03-01T09:00:00Z", e.Timestamp)
	assert.Equal(t, 2, e.DiagnosticInfo["retries"])
	require.NotNil(t, e.NetworkInfo)
	assert.Equal(t, "3g", e.NetworkInfo.EffectiveType)
	_, err := uuid.Parse(e.TraceID)
	assert.NoError(t, err)

	sent, failed := r.Stats()
	assert.Equal(t, uint64(1), sent)
	assert.Zero(t, failed)
}

func TestReport_OmitsEmptyNetworkInfo(t *testing.T) {
	s := &fakeSender{}
	r := NewReporter(s, logging.NewNop(), clock.Fake(epoch), 0, device.StaticNetwork("", 0, false))
	r.Report(nil, "/api/auth/login", nil)
	r.Wait()

	require.Len(t, s.all(), 1)
	assert.Nil(t, s.all()[0].NetworkInfo)
	assert.Empty(t, s.all()[0].Error)

	r = NewReporter(s, logging.NewNop(), clock.Fake(epoch), 0, nil)
	r.Report(nil, "/api/auth/login", nil)
	r.Wait()
	assert.Nil(t, s.all()[1].NetworkInfo)
}

func TestReport_DoesNotBlockAndSwallowsTimeout(t *testing.T) {
	s := &fakeSender{block: make(chan struct{})}
	r := NewReporter(s, logging.NewNop(), clock.Fake(epoch), 20*time.Millisecond, nil)

	done := make(chan struct{})
	go func() {
		r.Report(errors.New("x"), "/api/auth/login", nil)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Report blocked on the sender")
	}

	r.Wait()
	sent, failed := r.Stats()
	assert.Zero(t, sent)
	assert.Equal(t, uint64(1), failed)
}

func TestReport_SwallowsSenderFailures(t *testing.T) {
	for name, s := range map[string]*fakeSender{
		"error": {err: errors.New("503")},
		"panic": {panics: true},
	} {
		t.Run(name, func(t *testing.T) {
			r := NewReporter(s, logging.NewNop(), clock.Fake(epoch), 0, nil)
			assert.NotPanics(t, func() {
				r.Report(errors.New("x"), "/api/auth/login", nil)
				r.Wait()
			})
			_, failed := r.Stats()
			assert.Equal(t, uint64(1), failed)
		})
	}
}

func TestReport_OverHTTP(t *testing.T) {
	got := make(chan map[string]any, 1)
	router := chi.NewRouter()
	router.Post("/api/auth/_log", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		got <- body
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(router)
	defer srv.Close()

	c, err := client.NewHTTPClient(srv.URL, nil, "")
	require.NoError(t, err)
	r := NewReporter(c, logging.NewNop(), clock.Fake(epoch), time.Second, nil)

	rec := models.AttemptRecord{ID: "a1", StartedAt: epoch, Strategy: "mobile", Retries: 1}
	rec.Step("start", epoch)
	r.Report(errors.New("network down"), "/api/auth/login", AttemptInfo(rec))
	r.Wait()

	body := <-got
	assert.Equal(t, "network down", body["error"])
	assert.NotContains(t, body, "networkInfo")
	info, ok := body["diagnosticInfo"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "a1", info["attempt_id"])
	assert.Equal(t, "mobile", info["strategy"])
	assert.EqualValues(t, 1, info["retries"])
}
