// Command labstation is the instrument station's entrypoint: it loads
// config.yml, builds the device registry and experiment scheduler,
// and serves both an HTTP control API and an interactive console.
//
// Grounded on original_source's main.py, which is a two-line bootstrap
// (`yaml.load` into `Setup(config)`, then `reactor.run()`). This adds
// structured logging, mDNS advertisement, and the operator console the
// Python original leaves to a separate frontend process.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/labstation/orchestrator/cmd/labstation/console"
	"github.com/labstation/orchestrator/internal/clock"
	"github.com/labstation/orchestrator/pkg/api"
	"github.com/labstation/orchestrator/pkg/config"
	"github.com/labstation/orchestrator/pkg/discovery"
	"github.com/labstation/orchestrator/pkg/experiment"
)

func main() {
	configPath := flag.String("config", "config.yml", "path to the station's YAML configuration")
	headless := flag.Bool("headless", false, "skip the interactive console and just serve the HTTP API")
	runsDir := flag.String("runs-dir", "runs", "directory each experiment run's logs are written under; empty disables run recording")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, nil))

	raw, err := config.Load(*configPath)
	if err != nil {
		log.Error("labstation: failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if raw.LogLevel != "" {
		log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: levelFromName(raw.LogLevel)}))
	}

	clk := clock.Real{}
	reg, err := config.BuildDevices(raw, clk, log, nil)
	if err != nil {
		log.Error("labstation: failed to build devices", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx := context.Background()
	for name, dev := range reg.Devices {
		if err := dev.Connect(ctx); err != nil {
			log.Warn("labstation: initial connect failed, reconnect loop will retry", slog.String("device", name), slog.String("error", err.Error()))
		}
	}

	sched := experiment.NewScheduler(clk)
	station := api.NewStation(raw, reg, sched, clk, *runsDir)

	addr := fmt.Sprintf(":%d", raw.ListenPort)
	server := api.NewServer(addr, station)
	go func() {
		log.Info("labstation: serving control API", slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil {
			log.Error("labstation: http server stopped", slog.String("error", err.Error()))
		}
	}()

	if adv, err := discovery.Advertise("labstation", raw.ListenPort, nil); err != nil {
		log.Warn("labstation: mDNS advertisement failed", slog.String("error", err.Error()))
	} else {
		defer adv.Shutdown()
	}

	if *headless {
		select {}
	}
	console.Run(station)
}

func levelFromName(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
