package main

import (
	"os"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"

	"github.com/dokzlo13/housekeepd/internal/app"
	"github.com/dokzlo13/housekeepd/internal/config"
)

func main() {
	configPath := flag.StringP("config", "c", "config.yaml", "Path to configuration file")
	resetSchedule := flag.Bool("reset-schedule", false, "Discard all pending housekeeping tasks on startup")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	setupLogging(cfg.Log.GetLevel(), cfg.Log.UseJSON, cfg.Log.Colors)

	log.Info().Str("config", *configPath).Msg("Starting housekeepd")

	application, err := app.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create application")
	}

	// Create context that cancels on shutdown signal
	ctx := app.SignalContext()

	if *resetSchedule {
		log.Info().Msg("Clearing housekeeping schedule (--reset-schedule)")
		if err := application.ResetSchedule(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to clear housekeeping schedule")
		}
	}

	if err := application.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}
	notify(daemon.SdNotifyReady)

	// Wait for shutdown
	application.Wait()
	notify(daemon.SdNotifyStopping)

	if err := application.Stop(); err != nil {
		log.Error().Err(err).Msg("Error during shutdown")
	}
}

// notify reports state to systemd; a no-op outside a notify-type unit
func notify(state string) {
	if sent, err := daemon.SdNotify(false, state); err != nil {
		log.Warn().Err(err).Str("state", state).Msg("Failed to notify systemd")
	} else if sent {
		log.Debug().Str("state", state).Msg("Notified systemd")
	}
}

func setupLogging(level string, useJSON bool, colors bool) {
	// ISO 8601 format with timezone
	zerolog.TimeFieldFormat = time.RFC3339

	if useJSON {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "2006-01-02T15:04:05.000Z07:00",
			NoColor:    !colors,
		})
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}
