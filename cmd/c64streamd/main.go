/*
NAME
  main.go

DESCRIPTION
  c64streamd is the daemon that receives a C64 Ultimate's video and
  audio UDP streams, assembles complete frames, and exposes the stream's
  statistics over HTTP.

LICENSE
  Copyright (C) 2026 the c64stream authors. All Rights Reserved.
*/

package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/waltermfi/c64stream/stream"
)

// tickPeriod drives Stream.Tick: statistics batching, staleness checks
// and control-channel retry (spec.md §4.7 tick()).
const tickPeriod = 20 * time.Millisecond

var (
	configPath string
	listenAddr string
)

func main() {
	root := &cobra.Command{
		Use:   "c64streamd",
		Short: "Receive and assemble a C64 Ultimate's video and audio UDP streams.",
		RunE:  run,
	}
	root.Flags().StringVar(&configPath, "config", "/etc/c64streamd/config.yaml", "path to the YAML configuration file")
	root.Flags().StringVar(&listenAddr, "listen", ":8064", "address for the HTTP status server")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	bootstrapLogger := newLogger(false)
	cfg, err := loadConfig(configPath, bootstrapLogger)
	if err != nil {
		return fmt.Errorf("c64streamd: %w", err)
	}

	logger := newLogger(cfg.DebugLogging)
	cfg.Logger = logger
	defer logger.Sync()

	warn := newWarnLimiter(logger, 1, 5)

	elevatePriority(logger)

	reg := prometheus.NewRegistry()

	var frameCount, sampleCount uint64
	s := stream.New(cfg,
		func(rgba []byte, w, h int, ts time.Time) { frameCount++ },
		func(payload []byte, ts time.Time) { sampleCount++ },
		reg,
	)

	if err := s.Start(); err != nil {
		return fmt.Errorf("c64streamd: stream start: %w", err)
	}
	logger.Info("stream started",
		zap.String("device_host", cfg.DeviceHost),
		zap.Uint16("video_port", cfg.VideoPort),
		zap.Uint16("audio_port", cfg.AudioPort),
	)

	srv := newStatusServer(logger, s, reg)
	httpSrv := &http.Server{Addr: listenAddr, Handler: srv.handler()}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			warn.Warn("http server stopped", zap.Error(err))
		}
	}()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("config hot-reload unavailable", zap.Error(err))
	} else {
		defer watcher.Close()
		if err := watcher.Add(configPath); err != nil {
			logger.Debug("could not watch config file", zap.Error(err), zap.String("path", configPath))
		}
	}

	watchdogInterval, wdErr := daemon.SdWatchdogEnabled(false)
	var watchdogTick <-chan time.Time
	if wdErr == nil && watchdogInterval > 0 {
		t := time.NewTicker(watchdogInterval / 2)
		defer t.Stop()
		watchdogTick = t.C
	}

	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		logger.Debug("systemd notify failed", zap.Error(err))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	ticker := time.NewTicker(tickPeriod)
	defer ticker.Stop()

	var fsEvents <-chan fsnotify.Event
	if watcher != nil {
		fsEvents = watcher.Events
	}

	for {
		select {
		case now := <-ticker.C:
			s.Tick(now)
			srv.update(now)

		case <-watchdogTick:
			if _, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog); err != nil {
				logger.Debug("systemd watchdog notify failed", zap.Error(err))
			}

		case ev := <-fsEvents:
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			logger.Info("reloading configuration", zap.String("path", configPath))
			newCfg, err := loadConfig(configPath, logger)
			if err != nil {
				warn.Warn("config reload failed", zap.Error(err))
				continue
			}
			vars := map[string]string{}
			collectVars(newCfg, vars)
			if err := s.Update(vars); err != nil {
				warn.Warn("applying reloaded config failed", zap.Error(err))
			}

		case sig := <-sigCh:
			logger.Info("shutting down", zap.String("signal", sig.String()))
			s.Destroy()
			_ = httpSrv.Close()
			return nil
		}
	}
}
