package server

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/GoCodeAlone/ranked/comms"
	"github.com/GoCodeAlone/ranked/config"
	"github.com/GoCodeAlone/ranked/gateway"
	"github.com/GoCodeAlone/ranked/provider"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestServer serves a Server backed by p through httptest.
func newTestServer(t *testing.T, p provider.Provider, mutate func(*config.Config)) (*Server, *httptest.Server, *comms.InMemoryBus) {
	t.Helper()
	cfg := config.DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	logger := discardLogger()
	bus := comms.NewInMemoryBus(cfg.Reorder.HistorySize)

	s := New(*cfg, "test", logger)
	s.SetGateway(gateway.New(p, time.Second, logger))
	s.SetBus(bus)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts, bus
}
