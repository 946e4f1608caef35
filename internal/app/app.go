package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yungbote/minutes-backend/internal/data/db"
	httpapi "github.com/yungbote/minutes-backend/internal/http"
	"github.com/yungbote/minutes-backend/internal/observability"
	"github.com/yungbote/minutes-backend/internal/platform/logger"
	"github.com/yungbote/minutes-backend/internal/realtime/sse"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Router   *gin.Engine
	Cfg      Config
	Clients  Clients
	Services Services
	SSEHub   *sse.Hub
	Metrics  *observability.Metrics

	dbSvc        *db.Service
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
	closeOnce    sync.Once
}

func New(ctx context.Context) (*App, error) {
	cfg, err := LoadConfig(nil)
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	log.Info("Configuration loaded", "env", cfg.Environment, "db_driver", cfg.DB.Driver, "llm_provider", cfg.LLMProvider)

	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "minutes-backend",
		Environment: cfg.Environment,
	})
	metrics := observability.Init(log)

	dbSvc, err := db.Open(log, cfg.DB)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init database: %w", err)
	}

	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		_ = dbSvc.Close()
		log.Sync()
		return nil, err
	}

	hub := sse.NewHub(log)
	services := wireServices(dbSvc.DB(), log, cfg, clients)
	router := wireRouter(log, cfg, metrics, dbSvc, services, hub)

	return &App{
		Log:          log,
		DB:           dbSvc.DB(),
		Router:       router,
		Cfg:          cfg,
		Clients:      clients,
		Services:     services,
		SSEHub:       hub,
		Metrics:      metrics,
		dbSvc:        dbSvc,
		otelShutdown: otelShutdown,
	}, nil
}

// Start launches the background loops: the event forwarder feeding the SSE
// hub and the Redis metrics collector.
func (a *App) Start(ctx context.Context) error {
	if a == nil || a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if err := a.Clients.Bus.StartForwarder(ctx, a.SSEHub.Publish); err != nil {
		return fmt.Errorf("start event forwarder: %w", err)
	}
	a.Metrics.StartRedisCollector(ctx, a.Log, a.Cfg.RedisAddr)
	return nil
}

// Run serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	if err := a.Start(ctx); err != nil {
		return err
	}
	addr := ":" + a.Cfg.Port
	a.Log.Info("HTTP server listening", "addr", addr)
	srv := &httpapi.Server{Engine: a.Router}
	return srv.Run(ctx, addr)
}

// Close releases clients and the database. Safe to call more than once.
func (a *App) Close() {
	if a == nil {
		return
	}
	a.closeOnce.Do(func() {
		if a.cancel != nil {
			a.cancel()
		}
		a.Clients.Close(a.Log)
		if a.dbSvc != nil {
			if err := a.dbSvc.Close(); err != nil {
				a.Log.Warn("Database close failed", "error", err)
			}
		}
		if a.otelShutdown != nil {
			if err := a.otelShutdown(context.Background()); err != nil {
				a.Log.Warn("OTel shutdown failed", "error", err)
			}
		}
		a.Log.Sync()
	})
}
