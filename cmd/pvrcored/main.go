package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tvheadless/pvrcore/internal/adapters/secondary/svdrp"
	"github.com/tvheadless/pvrcore/internal/application/services"
	"github.com/tvheadless/pvrcore/internal/infrastructure/config"
	"github.com/tvheadless/pvrcore/internal/ports"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	showVersion := flag.Bool("version", false, "show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("pvrcored v%s (%s %s)\n", version, commit, date)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.Log.Level),
	}))

	logger.Info("starting pvrcored", slog.String("version", version), slog.String("commit", commit), slog.String("date", date))
	logger.Info("configuration loaded",
		slog.Duration("refresh_interval", cfg.Refresh.Interval),
		slog.Bool("timer_notifications", cfg.Notifications.Timers),
		slog.Bool("daily_wakeup", cfg.Power.DailyWakeup),
	)

	// Wire a simulated backend world; configured SVDRP backends replace the
	// simulated timer list but keep the local channel, guide and gate stubs.
	world := newSimWorld()
	registry := world.registry
	if len(cfg.Backends) > 0 {
		backends := make([]ports.TimerBackend, 0, len(cfg.Backends))
		for _, bc := range cfg.Backends {
			backends = append(backends, svdrp.NewBackend(bc.ClientID, bc.Host, bc.Port, bc.Timeout, world.resolver))
			logger.Info("svdrp backend configured",
				slog.Int("client", bc.ClientID),
				slog.String("host", bc.Host),
				slog.Int("port", bc.Port),
			)
		}
		registry = ports.NewStaticRegistry(backends...)
	}

	timerService := services.NewTimerService(
		registry,
		world.resolver,
		world.guide,
		world.gate,
		&logNotifier{logger: logger},
		logger,
		timerSettings(cfg),
	)
	wakeupService := services.NewWakeupService(timerService, powerSettings(cfg, logger))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	count, err := timerService.Load(ctx, nil)
	if err != nil {
		logger.Error("initial timer load failed", slog.Any("error", err))
		os.Exit(1)
	}
	timerService.SetStarted()
	logger.Info("timers loaded", slog.Int("count", count))

	// Reload resolved settings when the config file changes on disk.
	watcher, err := config.Watch(*configPath,
		func(next *config.Config) {
			timerService.ApplySettings(timerSettings(next))
			wakeupService.ApplySettings(powerSettings(next, logger))
			logger.Info("configuration reloaded")
		},
		func(err error) {
			logger.Warn("config reload failed", slog.Any("error", err))
		},
	)
	if err != nil {
		logger.Warn("config watcher not started", slog.Any("error", err))
	} else {
		defer watcher.Close()
	}

	ticker := time.NewTicker(cfg.Refresh.Interval)
	defer ticker.Stop()

	logWakeup := func() {
		if wakeup, ok := wakeupService.NextWakeupTime(); ok {
			logger.Info("next wakeup", slog.Time("at", wakeup))
		} else {
			logger.Info("no wakeup needed")
		}
	}
	logWakeup()

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			timerService.Unload()
			return

		case <-ticker.C:
		case <-timerService.RefreshRequests():
		}

		if err := timerService.RefreshTimers(ctx); err != nil {
			logger.Debug("refresh not performed", slog.Any("error", err))
			continue
		}
		logWakeup()
	}
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func timerSettings(cfg *config.Config) services.TimerSettings {
	return services.TimerSettings{
		Notifications:         cfg.Notifications.Timers,
		InstantRecordDuration: time.Duration(cfg.Record.InstantDurationMin) * time.Minute,
	}
}

func powerSettings(cfg *config.Config, logger *slog.Logger) services.PowerSettings {
	hour, minute, err := cfg.Power.WakeupClock()
	if err != nil {
		// Load already validated the clock; keep daily wakeup off if it is
		// somehow broken anyway.
		logger.Warn("invalid daily wakeup time", slog.Any("error", err))
		return services.PowerSettings{
			PrewakeMargin: time.Duration(cfg.Power.PrewakeMarginMin) * time.Minute,
			BackendIdle:   time.Duration(cfg.Power.BackendIdleMin) * time.Minute,
		}
	}
	return services.PowerSettings{
		DailyWakeup:       cfg.Power.DailyWakeup,
		DailyWakeupHour:   hour,
		DailyWakeupMinute: minute,
		PrewakeMargin:     time.Duration(cfg.Power.PrewakeMarginMin) * time.Minute,
		BackendIdle:       time.Duration(cfg.Power.BackendIdleMin) * time.Minute,
	}
}
