package commands

import (
	"context"
	"fmt"

	"github.com/openfleet/openfleet/pkg/config"
	"github.com/openfleet/openfleet/pkg/events"
	"github.com/openfleet/openfleet/pkg/fleet"
	"github.com/openfleet/openfleet/pkg/provider/hetzner"
	"github.com/openfleet/openfleet/pkg/stores"
	"github.com/openfleet/openfleet/pkg/telemetry"
)

// app bundles the wired service graph shared by all commands.
type app struct {
	cfg        *config.Config
	logger     *telemetry.Logger
	metrics    *telemetry.Metrics
	tracer     *telemetry.Tracer
	store      *stores.SQLiteStore
	events     *events.Publisher
	controller *fleet.Controller
	sweeper    *fleet.Sweeper
}

// setupApp loads configuration and wires the store, provider, controller,
// and sweeper. Callers must Close the returned app.
func setupApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.Provider.Token == "" {
		return nil, fmt.Errorf("provider token is required: set provider.token or OPENFLEET_PROVIDER_TOKEN")
	}

	logger, err := telemetry.NewLogger(cfg.Telemetry.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	metrics, err := telemetry.NewMetrics(cfg.Telemetry.Metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	tracer, err := telemetry.NewTracer(cfg.Telemetry.Tracing,
		cfg.Telemetry.ServiceName, cfg.Telemetry.ServiceVersion, cfg.Telemetry.Environment)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}

	store, err := stores.NewSQLiteStore(stores.Config{Path: cfg.Store.Path})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}

	publisher, err := events.NewPublisher(cfg.Events, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	providerClient := hetzner.New(cfg.Provider.Token)

	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		tracer:  tracer,
		store:   store,
		events:  publisher,
	}

	a.controller, err = fleet.NewController(fleet.ControllerOptions{
		Store:           store,
		Provider:        providerClient,
		Catalog:         cfg.BuildCatalog(),
		Logger:          logger,
		Metrics:         metrics,
		Tracer:          tracer,
		Events:          publisher,
		Location:        cfg.Provider.Location,
		Image:           cfg.Provider.Image,
		ProviderTimeout: cfg.Sweep.ProviderTimeout.Std(),
	})
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	a.sweeper, err = fleet.NewSweeper(fleet.SweeperOptions{
		Store:           store,
		Provider:        providerClient,
		Logger:          logger,
		Metrics:         metrics,
		Tracer:          tracer,
		Events:          publisher,
		Interval:        cfg.Sweep.Interval.Std(),
		ProviderTimeout: cfg.Sweep.ProviderTimeout.Std(),
	})
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	return a, nil
}

// Close releases the app's resources in reverse wiring order.
func (a *app) Close(ctx context.Context) {
	a.events.Close()
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.tracer != nil {
		_ = a.tracer.Shutdown(ctx)
	}
}
