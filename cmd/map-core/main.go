package main

import (
	"context"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"techloc/map-core/internal/config"
	"techloc/map-core/internal/db"
	"techloc/map-core/internal/directory"
	"techloc/map-core/internal/engine"
	"techloc/map-core/internal/feed"
	"techloc/map-core/internal/fleet"
	"techloc/map-core/internal/httpapi"
	"techloc/map-core/internal/metrics"
	"techloc/map-core/internal/prefs"
	"techloc/map-core/internal/vehiclesync"
)

func main() {
	configPath := flag.String("config", os.Getenv("MAPCORE_CONFIG"), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		errLogger := httpapi.NewLogger("error")
		errLogger.Fatal().Err(err).Msg("failed to load config")
	}
	logger := httpapi.NewLogger(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	var pool *db.Pool
	if cfg.Database.URL != "" {
		p, err := db.Open(ctx, cfg.Database.URL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer p.Close()
		pool = p
	}

	store := openPrefsStore(ctx, logger, cfg, pool)
	if c, ok := store.(io.Closer); ok {
		defer func() {
			if err := c.Close(); err != nil {
				logger.Warn().Err(err).Msg("close layout store")
			}
		}()
	}
	layout, err := store.LoadLayout(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("layout preferences unavailable; using defaults")
	}

	// hub is assigned before any event is dispatched.
	var hub *httpapi.Hub
	eng := engine.New(engine.Options{
		Taxonomy:           cfg.Taxonomy(),
		Sidebar:            cfg.InitialSidebar(),
		Layout:             layout,
		ClusteringDisabled: cfg.Map.ClusteringDisabled,
		HideVehicles:       cfg.Map.HideVehicles,
		Sync:               vehiclesync.Options{RejectStale: cfg.Map.RejectStaleDeltas},
		Frame:              cfg.Map.RelayoutFrame,
		Log:                logger,
		Metrics:            m,
		Hooks: engine.Hooks{
			Preferences: store,
			Popup:       engine.PopupRendererFunc(func(e fleet.Entity) { hub.RenderDetail(e) }),
			Invalidator: engine.InvalidatorFunc(func() { hub.Invalidate() }),
		},
	})

	h := httpapi.NewHandler(logger, pool, eng, m).WithRequestTimeout(cfg.HTTP.RequestTimeout)
	hub = h.Hub()

	var wg sync.WaitGroup
	run := func(fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx)
		}()
	}

	var sink feed.Sink = &feed.EngineSink{Engine: eng}
	if q := pool.Queries(); q != nil {
		sink = directory.NewRecorder(logger, sink, q, directory.StoreTx(pool.InTx), eng.Vehicle)
		refresher := directory.New(logger, q, eng, directory.Options{
			Interval: cfg.Directory.Interval,
			Keys:     eng.Taxonomy().PartnerKeys(),
		}, m)
		if err := refresher.LoadVehicles(ctx); err != nil {
			logger.Warn().Err(err).Msg("initial vehicle snapshot unavailable")
		}
		run(refresher.Run)
	}

	if cfg.GTFSRT.URL != "" {
		poller := feed.NewPoller(logger, feed.NewGTFSRTSource(cfg.GTFSRT.URL, cfg.GTFSRT.FetchTimeout), sink, feed.PollerOptions{
			Interval:     cfg.GTFSRT.Interval,
			FetchTimeout: cfg.GTFSRT.FetchTimeout,
			Name:         "gtfsrt",
		}, m)
		run(poller.Run)
	}
	if cfg.Kafka.Enabled() {
		reader, err := feed.NewKafkaReader(feed.KafkaOptions{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			GroupID: cfg.Kafka.GroupID,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure kafka reader")
		}
		consumer := feed.NewKafkaConsumer(logger, reader, sink, m)
		run(func(ctx context.Context) {
			if err := consumer.Run(ctx); err != nil {
				logger.Error().Err(err).Msg("kafka consumer stopped")
			}
		})
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTP.Addr).Msg("map-core listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	hub.Close()
	_ = srv.Shutdown(shutdownCtx)
	wg.Wait()
	logger.Info().Msg("shutdown complete")
}

// openPrefsStore prefers Redis, then Postgres, then process memory.
func openPrefsStore(ctx context.Context, log zerolog.Logger, cfg *config.Config, pool *db.Pool) prefs.Store {
	if cfg.Redis.Addr != "" {
		client, err := prefs.NewRedisClient(ctx, prefs.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err == nil {
			log.Info().Str("addr", cfg.Redis.Addr).Msg("layout preferences stored in redis")
			return prefs.NewRedisStore(client, cfg.Map.LayoutProfile, cfg.Redis.LayoutTTL)
		}
		log.Warn().Err(err).Msg("redis unavailable; falling back")
	}
	if q := pool.Queries(); q != nil {
		return prefs.NewPostgresStore(q, cfg.Map.LayoutProfile)
	}
	return &prefs.MemoryStore{}
}
