package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/housekeepd/internal/config"
	"github.com/dokzlo13/housekeepd/internal/db"
	"github.com/dokzlo13/housekeepd/internal/device"
	"github.com/dokzlo13/housekeepd/internal/geo"
	"github.com/dokzlo13/housekeepd/internal/globals"
	"github.com/dokzlo13/housekeepd/internal/housekeeping"
	"github.com/dokzlo13/housekeepd/internal/ledger"
	luart "github.com/dokzlo13/housekeepd/internal/lua"
	"github.com/dokzlo13/housekeepd/internal/metrics"
	"github.com/dokzlo13/housekeepd/internal/timewindow"
)

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config

	// Core infrastructure
	DB      *db.DB
	Globals *globals.SQLiteStore
	Ledger  *ledger.Ledger // nil when disabled
	Metrics *metrics.Metrics
	Devices device.Dispatcher
	GeoCalc *geo.Calculator // nil without coordinates
	Windows *timewindow.Evaluator

	Keeper *housekeeping.Keeper

	// High-level services
	Housekeeping *HousekeepingService
	Scenes       *SceneService
	HTTP         *HTTPService

	cron         *cron.Cron
	closeDevices func()
}

// NewServices creates all services with proper dependency injection.
func NewServices(cfg *config.Config) (*Services, error) {
	s := &Services{cfg: cfg}
	ctx := context.Background()

	// Initialize database
	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	s.DB = database

	s.Globals = globals.NewSQLiteStore(database.DB)
	for _, g := range cfg.Globals {
		created, err := s.Globals.Declare(ctx, g.Name, g.Value)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to declare global %s: %w", g.Name, err)
		}
		if created {
			log.Info().Str("name", g.Name).Msg("Global variable declared")
		}
	}

	store := housekeeping.NewStore(s.Globals, cfg.Housekeeping.Slot)
	if created, err := store.Init(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to initialize schedule slot: %w", err)
	} else if created {
		log.Info().Str("slot", store.Slot()).Msg("Housekeeping schedule slot created")
	}

	s.Devices, s.closeDevices, err = newDispatcher(cfg.Devices)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.Metrics = metrics.New()
	opts := []housekeeping.Option{
		housekeeping.WithObserver(s.Metrics),
		housekeeping.WithDispatchTimeout(cfg.Housekeeping.DispatchTimeout.Duration()),
	}
	sceneObservers := []luart.SceneObserver{s.Metrics}

	if cfg.Ledger.IsEnabled() {
		s.Ledger = ledger.New(database.DB)
		recorder := ledger.NewRecorder(s.Ledger)
		opts = append(opts, housekeeping.WithObserver(recorder))
		sceneObservers = append(sceneObservers, recorder)
	}

	s.Keeper = housekeeping.New(store, housekeeping.NewValidator(s.Globals), s.Globals, s.Devices, opts...)

	// Geo is optional; without it only fixed time windows work
	tz, _ := time.LoadLocation(cfg.Geo.Timezone)
	if cfg.Geo.IsEnabled() {
		s.GeoCalc, err = geo.NewCalculator(cfg.Geo.Name, cfg.Geo.Lat, cfg.Geo.Lon, cfg.Geo.Timezone)
		if err != nil {
			s.Close()
			return nil, err
		}
	} else {
		log.Info().Msg("Geo is disabled - sun-relative time windows (@sunset, @dawn, etc.) are not available")
	}
	s.Windows = timewindow.NewEvaluator(s.GeoCalc, tz)

	s.cron = cron.New(
		cron.WithParser(config.CronParser),
		cron.WithLocation(tz),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	s.Housekeeping = NewHousekeepingService(cfg, s.Keeper, s.Metrics, s.Ledger, s.cron)
	s.Scenes = NewSceneService(cfg, luart.RuntimeDeps{
		Keeper:    s.Keeper,
		Globals:   s.Globals,
		Devices:   s.Devices,
		Windows:   s.Windows,
		Observers: sceneObservers,
	}, s.cron)
	s.HTTP = NewHTTPService(cfg, database, s.Keeper, s.Scenes.Runtime, s.Metrics.Handler())

	return s, nil
}

// Start starts all services in the correct order.
func (s *Services) Start(ctx context.Context) error {
	if err := s.Scenes.Start(ctx); err != nil {
		return err
	}
	if err := s.Housekeeping.Start(ctx); err != nil {
		return err
	}
	s.cron.Start()
	s.HTTP.Start(ctx)

	return nil
}

// ResetSchedule discards every pending housekeeping task.
func (s *Services) ResetSchedule(ctx context.Context) error {
	return s.Keeper.Reset(ctx)
}

// Stop gracefully stops all services, waiting up to the shutdown timeout for
// running cron jobs.
func (s *Services) Stop() error {
	if s.cron != nil {
		select {
		case <-s.cron.Stop().Done():
		case <-time.After(s.cfg.ShutdownTimeout.Duration()):
			log.Warn().Msg("Timed out waiting for running jobs")
		}
	}
	s.Close()
	return nil
}

// Close releases all resources.
func (s *Services) Close() {
	if s.Scenes != nil {
		s.Scenes.Close()
	}
	if s.closeDevices != nil {
		s.closeDevices()
	}
	if s.DB != nil {
		s.DB.Close()
	}
}
