// Command rankedd is the ranked server daemon.
// It serves the reorder API, forwarding each request to the configured model.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GoCodeAlone/ranked/comms"
	"github.com/GoCodeAlone/ranked/config"
	"github.com/GoCodeAlone/ranked/gateway"
	"github.com/GoCodeAlone/ranked/internal/version"
	"github.com/GoCodeAlone/ranked/reorder"
	"github.com/GoCodeAlone/ranked/server"
)

var (
	configPath = flag.String("config", "", "path to a YAML or TOML config file (defaults are used when empty)")
	addr       = flag.String("addr", "", "listen address, overrides server.addr")
)

func main() {
	flag.Parse()

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config %s: %v", *configPath, err)
		}
		cfg = loaded
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Level(),
	}))
	logger.Info("starting rankedd",
		"version", version.Version,
		"commit", version.Commit,
		"provider", cfg.Gateway.Provider,
	)

	p, err := gateway.NewProvider(cfg.Gateway, logger)
	if err != nil {
		log.Fatalf("Failed to build provider: %v", err)
	}
	if c, ok := p.(io.Closer); ok {
		defer c.Close() //nolint:errcheck
	}

	bus := comms.NewInMemoryBus(cfg.Reorder.HistorySize)
	unsub := bus.Subscribe(comms.KindAll, func(_ context.Context, o *comms.Outcome) error {
		if o.UpstreamError != "" {
			logger.Warn("model unavailable", "kind", o.Kind, "err", o.UpstreamError)
		}
		return nil
	})
	defer unsub()

	srv := server.New(*cfg, version.Version, logger)
	srv.SetGateway(gateway.New(p, cfg.Gateway.Timeout, logger))
	srv.SetEngine(reorder.NewEngine(reorder.WithLogger(logger)))
	srv.SetBus(bus)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	fmt.Printf("ranked daemon running on %s\n", cfg.Server.Addr)
	fmt.Printf("Version: %s\n", version.String())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}

	fmt.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		logger.Error("server stop error", "error", err)
	}
	fmt.Println("Shutdown complete")
}
