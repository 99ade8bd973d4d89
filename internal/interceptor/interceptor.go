package interceptor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"go-offline-proxy/internal/interfaces"
	"go-offline-proxy/internal/metrics"
	"go-offline-proxy/internal/models"
	"go-offline-proxy/internal/region"
)

const (
	defaultProvisionConcurrency = 4
	unavailableMessage          = "Service Unavailable"
)

// Options configures one interceptor version
type Options struct {
	Version              string
	Assets               []*url.URL
	Fallback             *url.URL // optional offline page served on cache-first navigation failures
	Store                interfaces.RegionStore
	Fetcher              interfaces.Fetcher
	Classifier           interfaces.RequestClassifier
	KeyBuilder           interfaces.KeyBuilder
	Notifier             interfaces.ClientNotifier
	Controller           interfaces.WorkerController
	FetchTimeout         time.Duration
	ProvisionConcurrency int
	Logger               *zap.Logger
}

// Interceptor owns the region of one deployment version and arbitrates
// requests between it and the network
type Interceptor struct {
	version      string
	assets       []*url.URL
	fallback     *url.URL
	store        interfaces.RegionStore
	fetcher      interfaces.Fetcher
	classifier   interfaces.RequestClassifier
	keys         interfaces.KeyBuilder
	notifier     interfaces.ClientNotifier
	controller   interfaces.WorkerController
	fetchTimeout time.Duration
	concurrency  int
	logger       *zap.Logger

	mu     sync.Mutex
	region interfaces.Region

	retired atomic.Bool // set once the host replaced this version
}

// New creates an interceptor for a single version
func New(opts Options) (*Interceptor, error) {
	if opts.Version == "" {
		return nil, errors.New("version cannot be empty")
	}
	if opts.Store == nil {
		return nil, errors.New("region store is required")
	}
	if opts.Fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if opts.Classifier == nil {
		return nil, errors.New("classifier is required")
	}

	keys := opts.KeyBuilder
	if keys == nil {
		keys = region.NewKeyBuilder()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	concurrency := opts.ProvisionConcurrency
	if concurrency <= 0 {
		concurrency = defaultProvisionConcurrency
	}

	return &Interceptor{
		version:      opts.Version,
		assets:       append([]*url.URL(nil), opts.Assets...),
		fallback:     opts.Fallback,
		store:        opts.Store,
		fetcher:      opts.Fetcher,
		classifier:   opts.Classifier,
		keys:         keys,
		notifier:     opts.Notifier,
		controller:   opts.Controller,
		fetchTimeout: opts.FetchTimeout,
		concurrency:  concurrency,
		logger:       logger.With(zap.String("version", opts.Version)),
	}, nil
}

// Version returns the name of the region this interceptor owns
func (ic *Interceptor) Version() string {
	return ic.version
}

// Retire stops this version from writing to its region. Requests still in
// flight keep being answered.
func (ic *Interceptor) Retire() {
	ic.retired.Store(true)
}

// Retired reports whether Retire was called
func (ic *Interceptor) Retired() bool {
	return ic.retired.Load()
}

// openRegion opens the current region once and reuses the handle
func (ic *Interceptor) openRegion(ctx context.Context) (interfaces.Region, error) {
	ic.mu.Lock()
	defer ic.mu.Unlock()

	if ic.region != nil {
		return ic.region, nil
	}
	r, err := ic.store.Open(ctx, ic.version)
	if err != nil {
		return nil, err
	}
	ic.region = r
	return r, nil
}

// Provision fetches every asset and stores it in the current region.
// Nothing is stored unless every asset answers with a 2xx status.
func (ic *Interceptor) Provision(ctx context.Context) error {
	start := time.Now()

	r, err := ic.openRegion(ctx)
	if err != nil {
		metrics.RecordProvision(false, time.Since(start))
		return fmt.Errorf("%w: open region %s: %w", models.ErrProvisionFailed, ic.version, err)
	}

	keys := make([]string, len(ic.assets))
	responses := make([]*models.ResponseSnapshot, len(ic.assets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ic.concurrency)
	for i, asset := range ic.assets {
		i, asset := i, asset
		g.Go(func() error {
			req := &models.RequestDescriptor{Method: http.MethodGet, URL: asset, Header: make(http.Header)}
			key, err := ic.keys.Build(req)
			if err != nil {
				return fmt.Errorf("asset %s: %w", asset, err)
			}

			resp, err := ic.fetch(gctx, models.ClassStatic, req)
			if err != nil {
				return fmt.Errorf("asset %s: %w", asset, err)
			}
			if !resp.IsOK() {
				return fmt.Errorf("asset %s: unexpected status %d", asset, resp.Status)
			}

			keys[i] = key
			responses[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		metrics.RecordProvision(false, time.Since(start))
		return fmt.Errorf("%w: %w", models.ErrProvisionFailed, err)
	}

	for i := range responses {
		if ic.Retired() {
			metrics.RecordProvision(false, time.Since(start))
			return fmt.Errorf("%w: version %s was retired", models.ErrProvisionFailed, ic.version)
		}
		if err := r.Put(ctx, keys[i], stamp(responses[i])); err != nil {
			metrics.RecordProvision(false, time.Since(start))
			return fmt.Errorf("%w: store %s: %w", models.ErrProvisionFailed, keys[i], err)
		}
	}

	metrics.RecordProvision(true, time.Since(start))
	ic.logger.Info("Provisioned region",
		zap.Int("assets", len(ic.assets)),
		zap.Duration("duration", time.Since(start)))
	return nil
}

// Install runs the provisioning hook. A failure is logged and swallowed.
func (ic *Interceptor) Install(ctx context.Context) {
	if err := ic.Provision(ctx); err != nil {
		ic.logger.Error("Provisioning failed", zap.Error(err))
	}
}

// Evict deletes every region whose name is not the current version and
// returns the deleted names
func (ic *Interceptor) Evict(ctx context.Context) ([]string, error) {
	// the current region always survives, even when provisioning never ran
	if _, err := ic.store.Open(ctx, ic.version); err != nil {
		return nil, fmt.Errorf("failed to open region %s: %w", ic.version, err)
	}

	names, err := ic.store.Names(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list regions: %w", err)
	}

	var deleted []string
	var errs []error
	for _, name := range names {
		if name == ic.version {
			continue
		}
		if _, err := ic.store.Delete(ctx, name); err != nil {
			errs = append(errs, fmt.Errorf("delete region %s: %w", name, err))
			continue
		}
		deleted = append(deleted, name)
		ic.logger.Info("Evicted stale region", zap.String("region", name))
	}

	metrics.RecordRegionsEvicted(len(deleted))
	return deleted, errors.Join(errs...)
}

// NotifyControllerChange tells every client a new version controls it and
// returns the number of clients reached
func (ic *Interceptor) NotifyControllerChange(ctx context.Context) int {
	if ic.notifier == nil {
		return 0
	}
	msg := models.ClientMessage{Type: models.MessageUpdateAvailable, Version: ic.version}
	n := ic.notifier.Broadcast(ctx, msg)
	metrics.RecordClientMessage("out", msg.Type)
	return n
}

// HandleMessage processes a message posted by a client
func (ic *Interceptor) HandleMessage(ctx context.Context, msg models.ClientMessage) error {
	switch msg.Type {
	case models.MessageSkipWaiting:
		metrics.RecordClientMessage("in", msg.Type)
		if ic.controller == nil {
			return errors.New("no worker controller configured")
		}
		ic.logger.Info("Skip waiting requested")
		return ic.controller.SkipWaiting(ctx)
	default:
		metrics.RecordClientMessage("in", "unknown")
		ic.logger.Debug("Ignoring client message", zap.String("type", msg.Type))
		return nil
	}
}

// Arbitrate answers one request from the region or the network according to
// the strategy of its class
func (ic *Interceptor) Arbitrate(ctx context.Context, req *models.RequestDescriptor) (*models.Result, error) {
	class := ic.classifier.Classify(req)
	strategy := ic.classifier.StrategyFor(class)
	metrics.RecordRequest(string(class))

	var (
		res *models.Result
		err error
	)
	switch strategy {
	case models.StrategyCacheFirst:
		res, err = ic.cacheFirst(ctx, class, req)
	case models.StrategyNetworkFirst:
		res, err = ic.networkFirst(ctx, class, req)
	default:
		res, err = ic.networkOnly(ctx, class, req)
	}
	if err != nil {
		return nil, err
	}

	res.Class = class
	res.Strategy = strategy
	metrics.RecordResponse(string(class), string(res.Source))
	return res, nil
}

// lookup resolves the key and region of a request; a nil region means the
// request cannot use the cache
func (ic *Interceptor) lookup(ctx context.Context, req *models.RequestDescriptor) (interfaces.Region, string) {
	key, err := ic.keys.Build(req)
	if err != nil {
		ic.logger.Warn("Failed to build cache key", zap.String("url", req.String()), zap.Error(err))
		return nil, ""
	}
	r, err := ic.openRegion(ctx)
	if err != nil {
		ic.logger.Error("Failed to open region", zap.Error(err))
		return nil, ""
	}
	return r, key
}

func (ic *Interceptor) cacheFirst(ctx context.Context, class models.RequestClass, req *models.RequestDescriptor) (*models.Result, error) {
	r, key := ic.lookup(ctx, req)
	if r != nil {
		if resp, found := r.Match(ctx, key); found {
			metrics.RecordCacheHit(string(class))
			return &models.Result{Response: resp, Source: models.SourceCache}, nil
		}
		metrics.RecordCacheMiss(string(class))
	}

	resp, err := ic.fetch(ctx, class, req)
	if err != nil {
		return ic.noFallback(ctx, r, req, err)
	}

	stored := false
	if r != nil && resp.IsCacheableStatic() {
		stored = ic.put(ctx, class, r, key, resp)
	}
	return &models.Result{Response: resp, Source: models.SourceNetwork, Stored: stored}, nil
}

func (ic *Interceptor) networkFirst(ctx context.Context, class models.RequestClass, req *models.RequestDescriptor) (*models.Result, error) {
	r, key := ic.lookup(ctx, req)

	resp, err := ic.fetch(ctx, class, req)
	if err == nil {
		stored := false
		if r != nil {
			stored = ic.put(ctx, class, r, key, resp)
		}
		return &models.Result{Response: resp, Source: models.SourceNetwork, Stored: stored}, nil
	}

	ic.logger.Warn("Network fetch failed, falling back to cache",
		zap.String("url", req.String()),
		zap.Error(err))

	if r != nil {
		if cached, found := r.Match(ctx, key); found {
			metrics.RecordCacheHit(string(class))
			return &models.Result{Response: cached, Source: models.SourceCache}, nil
		}
		metrics.RecordCacheMiss(string(class))
	}

	return &models.Result{
		Response: models.NewUnavailableResponse(unavailableMessage),
		Source:   models.SourceSynthesized,
	}, nil
}

func (ic *Interceptor) networkOnly(ctx context.Context, class models.RequestClass, req *models.RequestDescriptor) (*models.Result, error) {
	resp, err := ic.fetch(ctx, class, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrNoFallback, err)
	}
	return &models.Result{Response: resp, Source: models.SourceNetwork}, nil
}

// noFallback handles a cache-first miss whose fetch failed. Navigations get
// the offline page when it was provisioned.
func (ic *Interceptor) noFallback(ctx context.Context, r interfaces.Region, req *models.RequestDescriptor, fetchErr error) (*models.Result, error) {
	if r != nil && ic.fallback != nil && isNavigation(req) {
		key, err := region.KeyForURL(ic.keys, ic.fallback)
		if err == nil {
			if resp, found := r.Match(ctx, key); found {
				ic.logger.Info("Serving offline fallback",
					zap.String("url", req.String()),
					zap.Error(fetchErr))
				return &models.Result{Response: resp, Source: models.SourceFallback}, nil
			}
		}
	}

	ic.logger.Warn("Cache miss and network fetch failed",
		zap.String("url", req.String()),
		zap.Error(fetchErr))
	return nil, fmt.Errorf("%w: %w", models.ErrNoFallback, fetchErr)
}

// fetch bounds the network call by the fetch timeout
func (ic *Interceptor) fetch(ctx context.Context, class models.RequestClass, req *models.RequestDescriptor) (*models.ResponseSnapshot, error) {
	if ic.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ic.fetchTimeout)
		defer cancel()
	}

	done := metrics.TimeFetch(string(class))
	resp, err := ic.fetcher.Fetch(ctx, req)
	done()
	if err != nil {
		kind := "network"
		if errors.Is(err, context.DeadlineExceeded) {
			kind = "timeout"
		}
		metrics.RecordFetchError(string(class), kind)
		return nil, err
	}
	return resp, nil
}

// put writes a stamped copy so the caller keeps an unshared response
func (ic *Interceptor) put(ctx context.Context, class models.RequestClass, r interfaces.Region, key string, resp *models.ResponseSnapshot) bool {
	if ic.Retired() {
		ic.logger.Debug("Version retired, skipping write-back", zap.String("key", key))
		return false
	}
	if err := r.Put(ctx, key, stamp(resp)); err != nil {
		ic.logger.Warn("Failed to store response",
			zap.String("key", key),
			zap.Error(err))
		return false
	}
	metrics.RecordCacheWrite(string(class))
	return true
}

func stamp(resp *models.ResponseSnapshot) *models.ResponseSnapshot {
	c := resp.Clone()
	c.StoredAt = time.Now().Unix()
	return c
}

// isNavigation approximates a page navigation by the Accept header
func isNavigation(req *models.RequestDescriptor) bool {
	if req == nil || req.Header == nil {
		return false
	}
	return strings.Contains(req.Header.Get("Accept"), "text/html")
}
