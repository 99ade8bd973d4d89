package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"go-offline-proxy/internal/config"
	"go-offline-proxy/internal/fetch"
	"go-offline-proxy/internal/httpserver"
	"go-offline-proxy/internal/interceptor"
	"go-offline-proxy/internal/interfaces"
	"go-offline-proxy/internal/lifecycle"
	"go-offline-proxy/internal/manifest"
	"go-offline-proxy/internal/notifier"
	"go-offline-proxy/internal/region"
	"go-offline-proxy/internal/region/l1"
	"go-offline-proxy/internal/region/l2"
	"go-offline-proxy/internal/region/multi"
	"go-offline-proxy/internal/region/noop"
	"go-offline-proxy/internal/region/service"
)

// subscriber buffer of the client notifier
const notifierBuffer = 16

// CompositionRoot holds all application dependencies and provides a centralized
// place for dependency injection and service initialization.
type CompositionRoot struct {
	// Configuration
	Env      *Env
	Config   *config.Config
	Manifest *manifest.Manifest
	Logger   *zap.Logger
	Origin   *url.URL

	// Region stores
	L1Store interfaces.RegionStore
	L2Store interfaces.RegionStore
	Store   interfaces.RegionStore

	// Request handling
	Fetcher    interfaces.Fetcher
	KeyBuilder interfaces.KeyBuilder
	Notifier   *notifier.Hub
	Host       *lifecycle.Host

	// Services
	RegionService *service.RegionService
	HTTPServer    *httpserver.Server
}

// NewCompositionRoot creates and initializes all application dependencies.
//
// Initialization order:
// 1. Logger (needed by all other components)
// 2. Environment and configuration
// 3. Deployment manifest
// 4. Region stores (L1, L2, layered)
// 5. Fetcher, notifier and lifecycle host
// 6. HTTP Server (uses all above components)
func NewCompositionRoot() (*CompositionRoot, error) {
	root := &CompositionRoot{}

	// Initialize logger first
	if err := root.initLogger(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	// Load configuration
	if err := root.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// Load deployment manifest
	if err := root.loadManifest(); err != nil {
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}

	// Initialize region stores
	if err := root.initStores(); err != nil {
		return nil, fmt.Errorf("failed to initialize region stores: %w", err)
	}

	// Initialize request handling
	if err := root.initRequestHandling(); err != nil {
		return nil, fmt.Errorf("failed to initialize request handling: %w", err)
	}

	// Initialize HTTP server
	if err := root.initHTTPServer(); err != nil {
		return nil, fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	return root, nil
}

// initLogger initializes the application logger
func (r *CompositionRoot) initLogger() error {
	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	r.Logger = logger
	return nil
}

// loadConfig loads the environment and the application configuration
func (r *CompositionRoot) loadConfig() error {
	e, err := LoadEnv()
	if err != nil {
		return err
	}
	r.Env = e

	cfg, err := config.LoadConfig(e.ConfigFile, r.Logger)
	if err != nil {
		return err
	}
	if e.SocketPath != "" {
		cfg.Server.SocketPath = e.SocketPath
	}
	r.Config = cfg

	origin, err := url.Parse(cfg.Upstream.Origin)
	if err != nil {
		return fmt.Errorf("invalid upstream origin: %w", err)
	}
	r.Origin = origin
	return nil
}

// loadManifest loads the deployment manifest
func (r *CompositionRoot) loadManifest() error {
	m, err := manifest.LoadManifest(r.Env.ManifestFile, r.Logger)
	if err != nil {
		return err
	}
	r.Manifest = m
	return nil
}

// initStores initializes L1, L2 and the layered store over them
func (r *CompositionRoot) initStores() error {
	// Initialize L1 store (BigCache)
	if err := r.initL1Store(); err != nil {
		return fmt.Errorf("failed to initialize L1 store: %w", err)
	}

	// Initialize L2 store (KeyDB)
	r.initL2Store()

	r.Store = multi.NewMultiStore(
		[]interfaces.RegionStore{r.L1Store, r.L2Store},
		r.Logger,
		r.Config.MultiCache.EnablePropagation,
	)
	r.RegionService = service.NewRegionService(r.Store, r.Logger)
	return nil
}

// initL1Store initializes the L1 store (BigCache)
func (r *CompositionRoot) initL1Store() error {
	if r.Config.L1.Enabled {
		l1Store, err := l1.NewBigCacheStore(&r.Config.L1, r.Logger)
		if err != nil {
			return err
		}
		r.L1Store = l1Store
		r.Logger.Info("BigCache (L1) initialized",
			zap.String("size", humanize.IBytes(uint64(r.Config.L1.Size)*1024*1024)),
			zap.String("max_entry_size", humanize.IBytes(uint64(r.Config.L1.MaxEntrySizeKB)*1024)))
	} else {
		r.L1Store = noop.NewNoOpStore()
		r.Logger.Info("BigCache (L1) disabled")
	}
	return nil
}

// initL2Store initializes the L2 store (KeyDB)
func (r *CompositionRoot) initL2Store() {
	if !r.Config.L2.Enabled {
		r.L2Store = noop.NewNoOpStore()
		r.Logger.Info("KeyDB (L2) disabled")
		return
	}

	keydbURL := GetKeyDBURL(r.Env, r.Logger)

	// Create KeyDB client
	keydbClient, err := l2.NewRedisKeyDbClient(&r.Config.L2, keydbURL, r.Logger)
	if err != nil {
		r.Logger.Warn("Failed to connect to KeyDB, falling back to no L2 store",
			zap.String("keydb_url", keydbURL),
			zap.Error(err))
		r.L2Store = noop.NewNoOpStore()
		return
	}

	// Create L2 store with the client
	r.L2Store = l2.NewKeyDBStore(&r.Config.L2, keydbClient, r.Logger)
	r.Logger.Info("KeyDB (L2) initialized", zap.String("keydb_url", keydbURL))
}

// initRequestHandling initializes the fetcher, the notifier and the lifecycle host
func (r *CompositionRoot) initRequestHandling() error {
	fetcher, err := fetch.NewHTTPFetcher(&r.Config.Upstream, nil, r.Logger)
	if err != nil {
		return err
	}
	r.Fetcher = fetcher
	r.KeyBuilder = region.NewKeyBuilder()
	r.Notifier = notifier.NewHub(notifierBuffer, r.Logger)
	r.Host = lifecycle.NewHost(r.Logger)
	return nil
}

// initHTTPServer initializes the HTTP server
func (r *CompositionRoot) initHTTPServer() error {
	server, err := httpserver.NewServer(r.Config, r.Host, r.Notifier, r.RegionService, r.Logger)
	if err != nil {
		return err
	}
	r.HTTPServer = server
	return nil
}

// NewInterceptor builds an interceptor for one deployment manifest
func (r *CompositionRoot) NewInterceptor(m *manifest.Manifest) (*interceptor.Interceptor, error) {
	assets, err := m.ResolveAssets(r.Origin)
	if err != nil {
		return nil, err
	}

	return interceptor.New(interceptor.Options{
		Version:              m.Version,
		Assets:               assets,
		Fallback:             m.ResolveFallback(r.Origin),
		Store:                r.Store,
		Fetcher:              r.Fetcher,
		Classifier:           manifest.NewClassifier(r.Logger, m),
		KeyBuilder:           r.KeyBuilder,
		Notifier:             r.Notifier,
		Controller:           r.Host,
		FetchTimeout:         r.Config.Upstream.GetFetchTimeout(),
		ProvisionConcurrency: r.Config.Upstream.ProvisionConcurrency,
		Logger:               r.Logger,
	})
}

// RegisterManifest registers a deployment manifest with the host
func (r *CompositionRoot) RegisterManifest(ctx context.Context, m *manifest.Manifest) error {
	ic, err := r.NewInterceptor(m)
	if err != nil {
		return err
	}
	r.Host.Register(ctx, ic)
	return nil
}

// Reload re-reads the manifest file and registers it as a new deployment
func (r *CompositionRoot) Reload(ctx context.Context) error {
	m, err := manifest.LoadManifest(r.Env.ManifestFile, r.Logger)
	if err != nil {
		return err
	}
	return r.RegisterManifest(ctx, m)
}

// Cleanup performs cleanup of all resources
func (r *CompositionRoot) Cleanup() error {
	var errs []error

	// Close L1 store
	if s, ok := r.L1Store.(*l1.BigCacheStore); ok {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close L1 store: %w", err))
		}
	}

	// Close L2 store
	if s, ok := r.L2Store.(*l2.KeyDBStore); ok {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close L2 store: %w", err))
		}
	}

	// Sync logger
	if r.Logger != nil {
		if err := r.Logger.Sync(); err != nil {
			errs = append(errs, fmt.Errorf("failed to sync logger: %w", err))
		}
	}

	return errors.Join(errs...)
}
