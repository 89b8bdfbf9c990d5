package app

import (
	"context"
	"fmt"
	"time"

	"github.com/takshakmudgal/tippit/internal/app/metrics"
	"github.com/takshakmudgal/tippit/internal/app/services/rates"
	"github.com/takshakmudgal/tippit/internal/app/services/submissions"
	"github.com/takshakmudgal/tippit/internal/app/services/tips"
	"github.com/takshakmudgal/tippit/internal/app/services/users"
	"github.com/takshakmudgal/tippit/internal/app/storage"
	"github.com/takshakmudgal/tippit/internal/app/storage/memory"
	"github.com/takshakmudgal/tippit/internal/app/system"
	"github.com/takshakmudgal/tippit/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Users       storage.UserStore
	Submissions storage.SubmissionStore
	Tips        storage.TipStore
}

// Options carries the non-store collaborators the services need.
type Options struct {
	// Verifier checks tip transactions against the ledger. Required.
	Verifier tips.Verifier
	// RateFetcher supplies the SOL/USD rate; nil disables the background
	// refresher and leaves rate lookups to the cache.
	RateFetcher rates.Fetcher
	// RateCache defaults to an in-memory cache when nil.
	RateCache rates.Cache
	// RefreshInterval for the background rate refresher. Zero uses the
	// refresher default.
	RefreshInterval time.Duration
	// AdminWallets may moderate submissions.
	AdminWallets []string
	// TipJarLimit overrides the default USD cap on new submissions when
	// positive.
	TipJarLimit float64
	// Metrics is optional; nil disables instrumentation.
	Metrics *metrics.Metrics
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Users       *users.Service
	Submissions *submissions.Service
	Tips        *tips.Service
	Rates       *rates.Service
	Metrics     *metrics.Metrics
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}
	if opts.Verifier == nil {
		return nil, fmt.Errorf("verifier is required")
	}

	mem := memory.New()
	if stores.Users == nil {
		stores.Users = mem
	}
	if stores.Submissions == nil {
		stores.Submissions = mem
	}
	if stores.Tips == nil {
		stores.Tips = mem
	}

	manager := system.NewManager()

	cache := opts.RateCache
	if cache == nil {
		cache = rates.NewMemoryCache(0)
	}
	rateService := rates.New(opts.RateFetcher, cache, log)

	userService := users.New(stores.Users, log)
	submissionService := submissions.New(stores.Users, stores.Submissions, opts.AdminWallets, log)
	if opts.TipJarLimit > 0 {
		submissionService.SetTipJarLimit(opts.TipJarLimit)
	}
	tipService := tips.New(stores.Users, stores.Submissions, stores.Tips, opts.Verifier, rateService, log)
	if opts.Metrics != nil {
		tipService.AttachMetrics(opts.Metrics)
	}

	// Request-scoped services have no background work; registering them as
	// no-ops keeps the lifecycle log uniform across all services.
	for _, name := range []string{"users", "submissions", "tips"} {
		if err := manager.Register(system.NoopService{ServiceName: name}); err != nil {
			return nil, fmt.Errorf("register %s service: %w", name, err)
		}
	}

	if opts.RateFetcher != nil {
		refresher := rates.NewRefresher(rateService, opts.RefreshInterval, log)
		if err := manager.Register(refresher); err != nil {
			return nil, fmt.Errorf("register %s: %w", refresher.Name(), err)
		}
	} else {
		log.Warn("rate fetcher not configured; background refresher disabled")
	}

	return &Application{
		manager:     manager,
		log:         log,
		Users:       userService,
		Submissions: submissionService,
		Tips:        tipService,
		Rates:       rateService,
		Metrics:     opts.Metrics,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
