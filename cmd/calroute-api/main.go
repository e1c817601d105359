// README: Entry point; loads config, wires the travel cache, maps client and planner, starts the HTTP server.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"calroute/internal/config"
	httptransport "calroute/internal/http"
	"calroute/internal/infra"
	"calroute/internal/maps"
	"calroute/internal/modules/planner"
	"calroute/internal/modules/routing"
	"calroute/internal/modules/schedule"
	"calroute/internal/modules/tasks"
	"calroute/internal/modules/travel"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Maps.APIKey == "" {
		log.Fatal("GOOGLE_MAPS_API_KEY is required")
	}
	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("timezone: %v", err)
	}
	dayStart, err := config.ParseClock(cfg.Planner.DayStart)
	if err != nil {
		log.Fatal(err)
	}
	modes, err := travel.ParseModes(cfg.Planner.DefaultModes)
	if err != nil {
		log.Fatalf("default modes: %v", err)
	}

	mapsClient, err := maps.NewClient(maps.WithAPIKey(cfg.Maps.APIKey), maps.WithRateLimit(cfg.Maps.RateLimit))
	if err != nil {
		log.Fatal(err)
	}

	cacheStore, closeCache, err := newCacheStore(ctx, cfg)
	if err != nil {
		log.Fatalf("travel cache: %v", err)
	}
	defer closeCache()

	builder := travel.NewMatrixBuilder(
		maps.NewDistanceMatrixService(mapsClient),
		travel.NewMatrixCache(cacheStore, cfg.Cache.TTL),
		travel.BuilderConfig{
			Workers:      cfg.Matrix.Workers,
			BatchDelay:   cfg.Matrix.BatchDelay,
			BatchTimeout: cfg.Matrix.BatchTimeout,
		},
	)
	solver := routing.NewAnnealingSolver(routing.AnnealingConfig{
		TimeBudget:    cfg.Solver.Budget,
		Seed:          cfg.Solver.Seed,
		MaxIterations: cfg.Solver.MaxIterations,
	})
	plannerSvc := planner.NewService(planner.Deps{
		Builder:      builder,
		Solver:       solver,
		Selector:     travel.NewModeSelector(travel.DefaultSelectorConfig()),
		Materializer: schedule.NewMaterializer(schedule.Config{Buffer: cfg.Planner.ConflictBuffer}),
		POI:          maps.NewPlacesService(mapsClient),
	}, planner.Config{
		Location:     loc,
		DayStart:     dayStart,
		DefaultModes: modes,
	})

	deps := httptransport.ServerDeps{
		Planner:  plannerSvc,
		Resolver: maps.NewGeocoder(mapsClient),
		Location: loc,
	}
	if cfg.DB.DSN != "" {
		dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
		if err != nil {
			log.Fatal(err)
		}
		defer dbPool.Close()
		deps.Store = tasks.NewStore(dbPool)
	}

	handler := httptransport.NewServer(deps)
	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler.Routes()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Printf("[HTTP] listening on %s (cache=%s tz=%s)", cfg.HTTP.Addr, cfg.Cache.Backend, loc)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}

// newCacheStore opens the configured travel cache backend. The SQLite
// backend drops expired rows on open.
func newCacheStore(ctx context.Context, cfg config.Config) (travel.CacheStore, func(), error) {
	switch cfg.Cache.Backend {
	case "redis":
		client, err := infra.NewRedis(ctx, cfg.Redis.Addr)
		if err != nil {
			return nil, nil, err
		}
		return travel.NewRedisCacheStore(client, cfg.Cache.TTL), func() { _ = client.Close() }, nil
	case "sqlite":
		db, err := infra.NewSQLite(ctx, cfg.Cache.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		store, err := travel.NewSQLiteCacheStore(ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		if n, err := store.Purge(ctx, cfg.Cache.TTL); err != nil {
			log.Printf("[MATRIX] cache purge failed: %v", err)
		} else if n > 0 {
			log.Printf("[MATRIX] purged %d expired cache rows", n)
		}
		return store, func() { _ = db.Close() }, nil
	default:
		return travel.NewMemoryCacheStore(), func() {}, nil
	}
}
