// Package rates maintains the SOL/USD exchange rate the tip flow converts
// claims with. The rate is cached; a refresher keeps the cache warm so submit
// calls rarely block on the price API.
package rates

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/takshakmudgal/tippit/internal/app/system"
	"github.com/takshakmudgal/tippit/pkg/logger"
)

// ErrUnavailable signals that no rate could be obtained, neither cached nor
// fresh. Callers treat it as retryable.
var ErrUnavailable = errors.New("sol/usd rate unavailable")

// Service serves the current SOL/USD rate from cache, falling back to a
// synchronous fetch on a miss.
type Service struct {
	fetcher Fetcher
	cache   Cache
	log     *logger.Logger
}

// New creates the rate service.
func New(fetcher Fetcher, cache Cache, log *logger.Logger) *Service {
	if cache == nil {
		cache = NewMemoryCache(time.Minute)
	}
	if log == nil {
		log = logger.NewDefault("rates")
	}
	return &Service{fetcher: fetcher, cache: cache, log: log}
}

// Current returns the SOL/USD rate. A zero or negative rate is never
// returned; on total failure the error wraps ErrUnavailable.
func (s *Service) Current(ctx context.Context) (float64, error) {
	if rate, ok, err := s.cache.Get(ctx); err == nil && ok {
		return rate, nil
	} else if err != nil {
		s.log.WithError(err).Warn("rate cache read failed")
	}

	rate, err := s.Refresh(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return rate, nil
}

// Refresh fetches a fresh rate and stores it in the cache.
func (s *Service) Refresh(ctx context.Context) (float64, error) {
	if s.fetcher == nil {
		return 0, fmt.Errorf("no fetcher configured")
	}
	rate, err := s.fetcher.Fetch(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.cache.Set(ctx, rate); err != nil {
		s.log.WithError(err).Warn("rate cache write failed")
	}
	return rate, nil
}

// Refresher periodically refreshes the rate cache in the background.
type Refresher struct {
	service  *Service
	interval time.Duration
	log      *logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

var _ system.Service = (*Refresher)(nil)

// NewRefresher creates a refresher around the rate service.
func NewRefresher(service *Service, interval time.Duration, log *logger.Logger) *Refresher {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if log == nil {
		log = logger.NewDefault("rates-refresher")
	}
	return &Refresher{service: service, interval: interval, log: log}
}

func (r *Refresher) Name() string { return "rates-refresher" }

func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.running = true

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		if _, err := r.service.Refresh(runCtx); err != nil {
			r.log.WithError(err).Warn("initial rate refresh failed")
		}

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if _, err := r.service.Refresh(runCtx); err != nil {
					r.log.WithError(err).Warn("rate refresh failed")
				}
			}
		}
	}()

	return nil
}

func (r *Refresher) Stop(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return nil
	}
	r.cancel()
	r.wg.Wait()
	r.running = false
	return nil
}
