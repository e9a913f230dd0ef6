package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	domrepo "MarketPulse/internal/domain/repository"
	"MarketPulse/internal/service/ratelimit"
	"MarketPulse/internal/usecase"
	"MarketPulse/pkg/cache"
	pkgch "MarketPulse/pkg/clickhouse"
	"MarketPulse/pkg/config"
	xhttp "MarketPulse/pkg/http"
	"MarketPulse/pkg/http/middleware"
	pkgkafka "MarketPulse/pkg/kafka"
	applogger "MarketPulse/pkg/logger"
)

const defaultFlushInterval = 30 * time.Second

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	monitor    *usecase.Monitor
	gate       *usecase.Gate
	supervisor *usecase.Supervisor
	grader     *usecase.Grader
	flusher    *usecase.Flusher
	markets    domrepo.MarketStore

	consumer *pkgkafka.Consumer
	ingest   pkgkafka.MessageHandler

	httpServer  *xhttp.Server
	httpHandler xhttp.Handler

	chClient   *pkgch.Client
	redisCache *cache.RedisCache

	flushStop chan struct{}
	flushDone chan struct{}
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	monitor *usecase.Monitor,
	gate *usecase.Gate,
	supervisor *usecase.Supervisor,
	grader *usecase.Grader,
	flusher *usecase.Flusher,
	markets domrepo.MarketStore,
	consumer *pkgkafka.Consumer,
	ingest pkgkafka.MessageHandler,
	httpHandler xhttp.Handler,
	chClient *pkgch.Client,
	redisCache *cache.RedisCache,
) *App {
	return &App{
		cfg:         cfg,
		log:         log,
		monitor:     monitor,
		gate:        gate,
		supervisor:  supervisor,
		grader:      grader,
		flusher:     flusher,
		markets:     markets,
		consumer:    consumer,
		ingest:      ingest,
		httpHandler: httpHandler,
		chClient:    chClient,
		redisCache:  redisCache,
		flushStop:   make(chan struct{}),
		flushDone:   make(chan struct{}),
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.httpHandler, a.log,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)
	if rl := a.cfg.Server.RateLimit; rl.Enabled {
		a.httpServer.Echo().Use(middleware.RateLimit(ratelimit.New(), rl.Limit, rl.Window))
	}

	// Reconcile against the clock before the first timer fires: markets that
	// are open right now register as if their open transition just happened.
	if err := a.gate.Bootstrap(ctx); err != nil {
		a.log.Error("gate bootstrap failed", applogger.Error(err))
	}

	if err := a.monitor.Start(ctx); err != nil {
		return err
	}
	a.log.Info("market monitor started")

	if a.consumer != nil && a.ingest != nil {
		a.consumer.RegisterHandler(a.ingest)
		if err := a.consumer.Start(); err != nil {
			a.log.Error("kafka consumer start error", applogger.Error(err))
			return err
		}
		a.log.Info("kafka consumer started", applogger.String("topic", a.ingest.Topic()))
	}

	go a.flushLoop(ctx)

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// flushLoop periodically drains each controlled market's closed-bar queue
// into durable storage. A final pass runs on the way out so a clean shutdown
// leaves the queues empty.
func (a *App) flushLoop(ctx context.Context) {
	defer close(a.flushDone)

	interval := a.cfg.Flush.Interval
	if interval <= 0 {
		interval = defaultFlushInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.flushAll(ctx)
		case <-a.flushStop:
			a.flushAll(context.Background())
			return
		}
	}
}

func (a *App) flushAll(ctx context.Context) {
	markets, err := a.markets.Controlled(ctx)
	if err != nil {
		a.log.Error("flush: controlled markets lookup failed", applogger.Error(err))
		return
	}
	for _, m := range markets {
		if err := a.flusher.FlushOnce(ctx, m.Key); err != nil {
			a.log.Error("flush failed", applogger.String("market", m.Key), applogger.Error(err))
		}
	}
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	a.monitor.Stop()
	a.supervisor.StopAll()
	a.grader.Stop()

	// Drain the ingest path before the last flush pass.
	if a.consumer != nil {
		stopCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
		if err := a.consumer.Stop(stopCtx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
		cancel()
	}

	close(a.flushStop)
	select {
	case <-a.flushDone:
	case <-time.After(a.cfg.Server.ShutdownTimeout):
		a.log.Warn("flush loop did not stop in time")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	if a.redisCache != nil {
		if err := a.redisCache.Client().Close(); err != nil {
			a.log.Warn("redis close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
