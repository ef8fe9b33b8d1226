package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	drepo "github.com/hislov/overdrive-bot/internal/domain/repository"
	"github.com/hislov/overdrive-bot/pkg/cache"
	"github.com/hislov/overdrive-bot/pkg/config"
	xhttp "github.com/hislov/overdrive-bot/pkg/http"
	applogger "github.com/hislov/overdrive-bot/pkg/logger"
	"github.com/hislov/overdrive-bot/pkg/queue"
)

// App encapsulates the application lifecycle: the front-door HTTP server,
// the hunt queue workers, and every infrastructure client that needs a
// graceful close.
type App struct {
	cfg       *config.Config
	log       *applogger.Logger
	handler   xhttp.Handler
	queue     *queue.RedisQueue
	runLog    drepo.RunLog
	publisher drepo.ReportPublisher
	stream    drepo.QuoteStream
	cache     cache.Service

	httpServer *xhttp.Server
}

// New creates an App instance. runLog, publisher, and stream may be nil
// when their backing service is disabled in config.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	handler xhttp.Handler,
	q *queue.RedisQueue,
	runLog drepo.RunLog,
	publisher drepo.ReportPublisher,
	stream drepo.QuoteStream,
	cacheSvc cache.Service,
) *App {
	return &App{
		cfg:       cfg,
		log:       log,
		handler:   handler,
		queue:     q,
		runLog:    runLog,
		publisher: publisher,
		stream:    stream,
		cache:     cacheSvc,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.queue.Start(); err != nil {
		return err
	}

	if a.stream != nil {
		if err := a.stream.Connect(ctx); err != nil {
			a.log.Warn("quote stream connect failed, live prices disabled",
				applogger.Error(err))
		}
	}

	metricsPath := ""
	if a.cfg.Metrics.Enabled {
		metricsPath = a.cfg.Metrics.Path
	}
	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithServerLogger(a.log),
	)
	if err := a.httpServer.Start(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services and closes clients.
func (a *App) shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if err := a.queue.Stop(shutdownCtx); err != nil {
		a.log.Warn("queue stop error", applogger.Error(err))
	}

	if a.stream != nil {
		if err := a.stream.Close(); err != nil {
			a.log.Warn("quote stream close error", applogger.Error(err))
		}
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.log.Warn("publisher close error", applogger.Error(err))
		}
	}
	if a.runLog != nil {
		if err := a.runLog.Close(); err != nil {
			a.log.Warn("run log close error", applogger.Error(err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.log.Warn("cache close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
