package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"elspot2mqtt/internal/cache"
	"elspot2mqtt/internal/charge"
	"elspot2mqtt/internal/config"
	"elspot2mqtt/internal/horizon"
	"elspot2mqtt/internal/pricing"
	"elspot2mqtt/internal/publish"
	"elspot2mqtt/internal/scheduler"
	"elspot2mqtt/internal/storage"
)

// Service orchestrates one publish cycle: refresh the price cache, build
// the look-ahead and look-behind horizons, compute the charge window, and
// hand the payload to the publisher.
type Service struct {
	cache     *cache.Cache
	publisher publish.Publisher
	scheduler *scheduler.Scheduler
	locker    storage.AdvisoryLocker
	logger    zerolog.Logger

	tariff   pricing.Tariff
	rules    []pricing.Rule
	loc      *time.Location
	cfg      *config.Config
	lockKey  int64
	now      func() time.Time
	decimals int32
}

// New constructs the service. The scheduler and locker may be nil for
// one-shot runs.
func New(cfg *config.Config, priceCache *cache.Cache, publisher publish.Publisher, sched *scheduler.Scheduler, locker storage.AdvisoryLocker, logger zerolog.Logger) (*Service, error) {
	rules, err := cfg.Rules()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	return &Service{
		cache:     priceCache,
		publisher: publisher,
		scheduler: sched,
		locker:    locker,
		logger:    logger.With().Str("component", "service").Logger(),
		tariff:    cfg.Tariff(),
		rules:     rules,
		loc:       loc,
		cfg:       cfg,
		lockKey:   cfg.Scheduler.AdvisoryLockKey,
		now:       time.Now,
		decimals:  int32(cfg.Horizon.Decimals),
	}, nil
}

// Compute refreshes the cache and assembles the outbound payload.
func (s *Service) Compute(ctx context.Context) (*publish.Payload, error) {
	prices, err := s.cache.Prices(ctx)
	if err != nil {
		return nil, fmt.Errorf("refresh price cache: %w", err)
	}
	if len(prices) == 0 {
		return nil, fmt.Errorf("no prices available")
	}

	now := s.now()
	opts := horizon.Options{
		Now:             now,
		Offset:          s.cfg.Horizon.Offset,
		AvgWindowSize:   s.cfg.Horizon.AvgWindowSize,
		MinimaLookahead: s.cfg.Horizon.MinimaLookahead,
		Rules:           s.rules,
		Location:        s.loc,
		Decimals:        s.decimals,
	}

	payload := &publish.Payload{
		Ahead:  horizon.LookAhead(prices, s.tariff, opts),
		Behind: horizon.LookBehind(prices, s.tariff, opts),
	}

	if s.cfg.ChargeWindow.Enabled {
		payload.ChargeWindow = s.findChargeWindow(prices, now)
	}

	s.logger.Info().
		Int("ahead", len(payload.Ahead)).
		Int("behind", len(payload.Behind)).
		Bool("charge_window", payload.ChargeWindow != nil).
		Msg("payload computed")

	return payload, nil
}

func (s *Service) findChargeWindow(prices pricing.Series, now time.Time) *charge.Window {
	next24h := prices.Between(now.Unix()+1, now.Unix()+24*3600)

	window, err := charge.Find(next24h, s.tariff, charge.Options{
		Start:     s.cfg.ChargeWindow.Start,
		End:       s.cfg.ChargeWindow.End,
		Threshold: s.cfg.ChargeWindow.Threshold,
		Now:       now,
		Location:  s.loc,
		Decimals:  s.decimals,
	})
	if err != nil {
		if errors.Is(err, charge.ErrNoWindow) {
			s.logger.Warn().Msg("no charge window possible")
		} else {
			s.logger.Warn().Err(err).Msg("charge window computation failed")
		}
		return nil
	}
	return window
}

// RunOnce computes and publishes a single payload.
func (s *Service) RunOnce(ctx context.Context) error {
	payload, err := s.Compute(ctx)
	if err != nil {
		return err
	}

	if !s.cfg.MQTT.Publish {
		s.logger.Info().Msg("mqtt.publish disabled; skipping publish")
		return nil
	}
	return s.publisher.Publish(ctx, *payload)
}

// Serve runs the publish cycle on the configured cadence until ctx is
// cancelled.
func (s *Service) Serve(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.processTick)
}

func (s *Service) processTick(ctx context.Context, bucket time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("bucket", bucket).Msg("skip bucket because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	return s.RunOnce(ctx)
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.locker == nil {
		return nil, true, nil
	}
	return s.locker.TryAdvisoryLock(ctx, s.lockKey)
}
