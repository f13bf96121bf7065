package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"objectvision/internal/config"
	"objectvision/internal/logger"
	"objectvision/internal/model"
	"objectvision/internal/route"
	"objectvision/internal/service"
	"objectvision/internal/service/ai"
	"objectvision/internal/service/ai/onnx"
	"objectvision/internal/service/ai/opencv"
	"objectvision/internal/service/ai/remote"
	"objectvision/internal/service/cache"
	"objectvision/internal/service/websocket"
	"objectvision/internal/version"
)

type App struct {
	config     *config.Config
	logger     *logger.Logger
	hubService *websocket.HubService
	manager    *service.Manager
}

// NewApp loads the configuration and wires the prediction pipeline. A model
// that fails to load is logged and the server starts without one, so
// /api/health keeps answering and predictions fail with 503.
func NewApp(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.Log.Directory, cfg.Log.Mode)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	pool, err := loadDetectors(ctx, cfg, log)
	if err != nil {
		log.Warning("Model not loaded, predictions are disabled: %v", err)
		pool = nil
	}

	hub := websocket.NewHubService(log)
	mng := service.NewManager(pool, newCache(ctx, cfg.Cache, log), opencv.NewAnnotator(), hub, service.ManagerOptions{
		MinConfidence:    cfg.Detector.MinConfidence,
		DefaultThreshold: cfg.Detector.DefaultThreshold,
		AcquireTimeout:   cfg.Detector.AcquireTimeout,
	}, log)

	return &App{
		config:     cfg,
		logger:     log,
		hubService: hub,
		manager:    mng,
	}, nil
}

// loadDetectors creates cfg.Detector.Workers detectors of the configured backend.
func loadDetectors(ctx context.Context, cfg *config.Config, log *logger.Logger) (*ai.Pool, error) {
	catalog, err := ai.DefaultCatalog(cfg.Model.Format, cfg.Model.LabelsPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrUninitialized, err)
	}

	if cfg.Model.Backend == config.BackendONNX {
		if err := onnx.InitEnvironment(cfg.Model.OnnxLibraryPath); err != nil {
			return nil, err
		}
	}

	detectors := make([]ai.Detector, 0, cfg.Detector.Workers)
	for i := 0; i < cfg.Detector.Workers; i++ {
		d, err := newDetector(ctx, cfg, catalog, log)
		if err != nil {
			for _, loaded := range detectors {
				loaded.Close()
			}
			return nil, err
		}
		detectors = append(detectors, d)
	}
	pool, err := ai.NewPool(detectors)
	if err != nil {
		return nil, err
	}
	log.Info("Detector pool ready with %d %s detector(s)", pool.Size(), cfg.Model.Backend)
	return pool, nil
}

func newDetector(ctx context.Context, cfg *config.Config, catalog *model.ClassCatalog, log *logger.Logger) (ai.Detector, error) {
	m := cfg.Model
	switch m.Backend {
	case config.BackendOpenCV:
		return opencv.New(opencv.Options{
			Format:       m.Format,
			ModelPath:    m.Path,
			ConfigPath:   m.ConfigPath,
			Name:         m.Name,
			PretrainedOn: m.PretrainedOn,
			InputSize:    m.InputSize,
			NMSThreshold: cfg.Detector.NMSThreshold,
			Catalog:      catalog,
		}, log)
	case config.BackendONNX:
		return onnx.New(onnx.Options{
			ModelPath:    m.Path,
			Name:         m.Name,
			PretrainedOn: m.PretrainedOn,
			InputSize:    m.InputSize,
			InputName:    m.OnnxInputName,
			OutputName:   m.OnnxOutputName,
			NMSThreshold: cfg.Detector.NMSThreshold,
			Catalog:      catalog,
		}, log)
	case config.BackendRemote:
		return remote.New(ctx, remote.Options{
			BaseURL:      m.RemoteURL,
			Timeout:      m.RemoteTimeout,
			Name:         m.Name,
			PretrainedOn: m.PretrainedOn,
			Catalog:      catalog,
		}, log)
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", model.ErrUninitialized, m.Backend)
	}
}

// newCache connects to Redis when an address is configured.
func newCache(ctx context.Context, cfg config.CacheConfig, log *logger.Logger) cache.DetectionCache {
	if cfg.RedisAddr == "" {
		return cache.Nop{}
	}
	c, err := cache.NewRedis(ctx, cache.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		TTL:      cfg.TTL,
	})
	if err != nil {
		log.Warning("Detection cache disabled: %v", err)
		return cache.Nop{}
	}
	log.Info("Detection cache connected to %s", cfg.RedisAddr)
	return c
}

// Run serves HTTP until SIGINT or SIGTERM and then shuts down gracefully.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	defer a.logger.Sync()

	// Start background services
	go a.hubService.Run(ctx)

	gin.SetMode(a.config.Server.Mode)
	router := route.SetupRoutes(a.manager, a.config, a.logger)

	srv := &http.Server{
		Addr:         a.config.Address(),
		Handler:      router,
		ReadTimeout:  a.config.Server.ReadTimeout,
		WriteTimeout: a.config.Server.WriteTimeout,
	}

	a.logger.Info("ObjectVision %s listening on %s (backend %s, model %s, ready=%t)",
		version.Version, srv.Addr, a.config.Model.Backend, a.config.Model.Name, a.manager.Ready())

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case err := <-serveErr:
		runErr = err
	case <-ctx.Done():
		a.logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			runErr = fmt.Errorf("server shutdown: %w", err)
		}
	}

	if err := a.manager.Close(); err != nil {
		a.logger.Error("Failed to release detectors: %v", err)
	}
	if a.config.Model.Backend == config.BackendONNX {
		if err := onnx.DestroyEnvironment(); err != nil {
			a.logger.Error("Failed to destroy ONNX environment: %v", err)
		}
	}
	return runErr
}

func (a *App) shutdownTimeout() time.Duration {
	if a.config.Server.ShutdownTimeout > 0 {
		return a.config.Server.ShutdownTimeout
	}
	return 10 * time.Second
}
