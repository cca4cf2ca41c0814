package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"elspot2mqtt/internal/cache"
	"elspot2mqtt/internal/config"
	"elspot2mqtt/internal/fetcher"
	"elspot2mqtt/internal/publish"
	"elspot2mqtt/internal/scheduler"
	"elspot2mqtt/internal/service"
	"elspot2mqtt/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}

	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) newCache(store *storage.Store) (*cache.Cache, error) {
	loc, err := a.Config.Location()
	if err != nil {
		return nil, err
	}

	source := fetcher.NewNordpool(fetcher.NordpoolOptions{
		BaseURL:        a.Config.Market.BaseURL,
		Area:           a.Config.Market.Area,
		Currency:       a.Config.Market.Currency,
		Timeout:        a.Config.Market.RequestTimeout,
		UserAgent:      a.Config.Market.UserAgent,
		RequestsPerSec: a.Config.Market.RequestsPerSec,
	}, a.Logger)

	return cache.New(store, source, cache.Options{
		RetentionDays:    a.Config.Cache.RetentionDays,
		WindowDays:       a.Config.Cache.WindowDays,
		PublishAfterHour: a.Config.Cache.PublishAfterHour,
		Location:         loc,
	}, a.Logger), nil
}

func (a *App) newPublisher() publish.Publisher {
	return publish.NewMQTT(publish.Options{
		Host:     a.Config.MQTT.Host,
		Port:     a.Config.MQTT.Port,
		Username: a.Config.MQTT.Username,
		Password: a.Config.MQTT.Password,
		ClientID: a.Config.MQTT.ClientID,
		Topic:    a.Config.MQTT.Topic,
		Retain:   a.Config.MQTT.Retain,
		Timeout:  a.Config.MQTT.Timeout,
	}, a.Logger)
}

func (a *App) newService(ctx context.Context, withScheduler bool) (*service.Service, func(), error) {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}

	priceCache, err := a.newCache(store)
	if err != nil {
		closeStore()
		return nil, nil, err
	}

	var sched *scheduler.Scheduler
	var locker storage.AdvisoryLocker
	if withScheduler {
		sched = scheduler.New(scheduler.Options{
			Interval:     a.Config.Scheduler.Interval,
			AlignToStart: a.Config.Scheduler.AlignToBucket,
			StartupDelay: a.Config.Scheduler.StartupDelay,
		}, a.Logger)
		locker = store
	}

	svc, err := service.New(a.Config, priceCache, a.newPublisher(), sched, locker, a.Logger)
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	return svc, closeStore, nil
}

// RunOptions configure a one-shot run.
type RunOptions struct {
	// Stdout prints the payload instead of publishing it.
	Stdout bool
}

// Run executes one publish cycle.
func (a *App) Run(ctx context.Context, opts RunOptions) error {
	svc, closeStore, err := a.newService(ctx, false)
	if err != nil {
		return err
	}
	defer closeStore()

	if opts.Stdout {
		payload, err := svc.Compute(ctx)
		if err != nil {
			return err
		}
		body, err := json.MarshalIndent(payload, "", "    ")
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		fmt.Fprintln(os.Stdout, string(body))
		return nil
	}

	return svc.RunOnce(ctx)
}

// Serve runs the publish cycle as a daemon until interrupted.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	svc, closeStore, err := a.newService(ctx, true)
	if err != nil {
		return err
	}
	defer closeStore()

	a.Logger.Info().Msg("starting publish daemon")
	err = svc.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("daemon terminated with error")
		return err
	}

	a.Logger.Info().Msg("publish daemon stopped")
	return nil
}

// Update refreshes the price cache without computing or publishing.
func (a *App) Update(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	priceCache, err := a.newCache(store)
	if err != nil {
		return err
	}

	if err := priceCache.Prune(ctx); err != nil {
		return err
	}
	return priceCache.Update(ctx)
}

// ExportOptions hold parameters for exporting the look-ahead horizon.
type ExportOptions struct {
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}
