package lifecycle

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"go-offline-proxy/internal/interceptor"
	"go-offline-proxy/internal/interfaces"
	"go-offline-proxy/internal/metrics"
)

// State is the lifecycle state of one interceptor version
type State string

const (
	StateInstalling State = "installing"
	StateInstalled  State = "installed"
	StateActivating State = "activating"
	StateActivated  State = "activated"
	StateRedundant  State = "redundant"
)

// Ensure Host implements interfaces.WorkerController
var _ interfaces.WorkerController = (*Host)(nil)

// Host drives interceptor versions through install and activation. At most
// one version controls requests; a newer one waits until SkipWaiting.
type Host struct {
	mu         sync.Mutex // serializes lifecycle transitions, never held during install
	active     atomic.Pointer[interceptor.Interceptor]
	waiting    *interceptor.Interceptor
	installing *interceptor.Interceptor
	generation uint64 // bumped by every accepted registration
	states     map[string]State
	logger     *zap.Logger
}

// NewHost creates a host with no registered version
func NewHost(logger *zap.Logger) *Host {
	return &Host{
		states: make(map[string]State),
		logger: logger,
	}
}

// Register installs a new version. The first version activates
// immediately; later ones wait for SkipWaiting. A version that is already
// active, waiting or installing is ignored.
func (h *Host) Register(ctx context.Context, ic *interceptor.Interceptor) {
	version := ic.Version()

	h.mu.Lock()
	if known := h.known(version); known != "" {
		h.mu.Unlock()
		h.logger.Info("Version already registered, ignoring registration",
			zap.String("version", version),
			zap.String("state", string(known)))
		return
	}
	h.generation++
	generation := h.generation
	h.installing = ic
	h.states[version] = StateInstalling
	h.mu.Unlock()

	h.logger.Info("Installing version", zap.String("version", version))
	ic.Install(ctx)

	h.mu.Lock()
	defer h.mu.Unlock()

	if generation != h.generation {
		h.retire(ic)
		h.logger.Info("Version superseded during install", zap.String("version", version))
		return
	}
	h.installing = nil
	h.states[version] = StateInstalled

	if h.waiting != nil {
		h.logger.Info("Replacing waiting version",
			zap.String("replaced", h.waiting.Version()),
			zap.String("version", version))
		h.retire(h.waiting)
	}

	if h.active.Load() == nil {
		h.waiting = nil
		h.activate(ctx, ic)
		return
	}

	h.waiting = ic
	h.logger.Info("Version installed and waiting", zap.String("version", version))
}

// known returns the state of version when it is active, waiting or
// installing, and "" otherwise. Callers hold h.mu.
func (h *Host) known(version string) State {
	if current := h.active.Load(); current != nil && current.Version() == version {
		return StateActivated
	}
	if h.waiting != nil && h.waiting.Version() == version {
		return StateInstalled
	}
	if h.installing != nil && h.installing.Version() == version {
		return StateInstalling
	}
	return ""
}

// retire marks a version redundant and stops its cache writes. Callers hold h.mu.
func (h *Host) retire(ic *interceptor.Interceptor) {
	ic.Retire()
	h.states[ic.Version()] = StateRedundant
}

// SkipWaiting activates the waiting version now. Without one it does nothing.
func (h *Host) SkipWaiting(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.waiting == nil {
		h.logger.Debug("Skip waiting with no waiting version")
		return nil
	}

	ic := h.waiting
	h.waiting = nil
	h.activate(ctx, ic)
	return nil
}

// activate evicts stale regions, takes control of requests and announces the
// controller change. Callers hold h.mu.
func (h *Host) activate(ctx context.Context, ic *interceptor.Interceptor) {
	version := ic.Version()
	h.states[version] = StateActivating

	deleted, err := ic.Evict(ctx)
	if err != nil {
		h.logger.Error("Eviction failed", zap.String("version", version), zap.Error(err))
	}

	previous := h.active.Swap(ic)
	if previous != nil {
		h.retire(previous)
	}
	h.states[version] = StateActivated
	metrics.SetActiveVersion(version)

	h.logger.Info("Version activated",
		zap.String("version", version),
		zap.Strings("evicted", deleted))

	ic.NotifyControllerChange(ctx)
}

// Active returns the version controlling requests, or nil before the first activation
func (h *Host) Active() *interceptor.Interceptor {
	return h.active.Load()
}

// Waiting returns the installed version waiting for activation
func (h *Host) Waiting() *interceptor.Interceptor {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.waiting
}

// State returns the lifecycle state of a version
func (h *Host) State(version string) (State, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.states[version]
	return s, ok
}
