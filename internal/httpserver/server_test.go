package httpserver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"go-offline-proxy/internal/config"
	"go-offline-proxy/internal/fetch"
	"go-offline-proxy/internal/interceptor"
	"go-offline-proxy/internal/lifecycle"
	"go-offline-proxy/internal/manifest"
	"go-offline-proxy/internal/models"
	"go-offline-proxy/internal/notifier"
	"go-offline-proxy/internal/region/l1"
	"go-offline-proxy/internal/region/service"
)

// upstream is a fake application origin counting hits per path
type upstream struct {
	mu   sync.Mutex
	hits map[string]int
	srv  *httptest.Server
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()
	u := &upstream{hits: make(map[string]int)}
	u.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		u.hits[r.URL.Path]++
		n := u.hits[r.URL.Path]
		u.mu.Unlock()

		switch r.URL.Path {
		case "/missing.css":
			http.NotFound(w, r)
		case "/health":
			_, _ = w.Write([]byte("upstream-health"))
		case "/echo":
			data, _ := io.ReadAll(r.Body)
			_, _ = w.Write(data)
		case "/api/data":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"n":` + strconv.Itoa(n) + `}`))
		default:
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte("content of " + r.URL.Path))
		}
	}))
	t.Cleanup(u.srv.Close)
	return u
}

func (u *upstream) count(path string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.hits[path]
}

type testEnv struct {
	upstream *upstream
	cfg      *config.Config
	store    *l1.BigCacheStore
	fetcher  *fetch.HTTPFetcher
	hub      *notifier.Hub
	host     *lifecycle.Host
	server   *Server
	router   http.Handler
	logger   *zap.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zaptest.NewLogger(t)
	up := newUpstream(t)

	cfg := &config.Config{
		Upstream: config.UpstreamConfig{
			Origin:       up.srv.URL,
			FetchTimeout: 1000,
			MaxBodyBytes: 1 << 20,
		},
		Server: config.ServerConfig{ReadTimeout: 5, WriteTimeout: 5, IdleTimeout: 5},
	}

	store, err := l1.NewBigCacheStore(&config.L1Config{Size: 10, MaxEntrySizeKB: 1024}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	fetcher, err := fetch.NewHTTPFetcher(&cfg.Upstream, nil, logger)
	require.NoError(t, err)

	hub := notifier.NewHub(4, logger)
	host := lifecycle.NewHost(logger)

	server, err := NewServer(cfg, host, hub, service.NewRegionService(store, logger), logger)
	require.NoError(t, err)

	return &testEnv{
		upstream: up,
		cfg:      cfg,
		store:    store,
		fetcher:  fetcher,
		hub:      hub,
		host:     host,
		server:   server,
		router:   server.createRouter(),
		logger:   logger,
	}
}

func (e *testEnv) register(t *testing.T, version string, assets ...string) {
	t.Helper()
	origin, err := url.Parse(e.cfg.Upstream.Origin)
	require.NoError(t, err)

	m := &manifest.Manifest{
		Version:          version,
		Assets:           assets,
		DynamicPatterns:  []string{"/api/"},
		DynamicStrategy:  models.StrategyNetworkFirst,
		CacheableMethods: []string{http.MethodGet},
	}
	resolved, err := m.ResolveAssets(origin)
	require.NoError(t, err)

	ic, err := interceptor.New(interceptor.Options{
		Version:      version,
		Assets:       resolved,
		Store:        e.store,
		Fetcher:      e.fetcher,
		Classifier:   manifest.NewClassifier(e.logger, m),
		Notifier:     e.hub,
		Controller:   e.host,
		FetchTimeout: e.cfg.Upstream.GetFetchTimeout(),
		Logger:       e.logger,
	})
	require.NoError(t, err)
	e.host.Register(context.Background(), ic)
}

func (e *testEnv) do(method, target string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"starting"`)

	env.register(t, "v1")
	rec = env.do(http.MethodGet, "/health", nil)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "v1", body["version"])
}

func TestServer_Metrics(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/metrics", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestServer_Proxy_NoActiveVersion(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/a.html", nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, 0, env.upstream.count("/a.html"))
}

func TestServer_Proxy_ProvisionedAssetServedFromCache(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "v1", "/a.html")
	require.Equal(t, 1, env.upstream.count("/a.html"))

	rec := env.do(http.MethodGet, "/a.html", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "content of /a.html", rec.Body.String())
	assert.Equal(t, "cache", rec.Header().Get(SourceHeader))
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
	assert.Equal(t, 1, env.upstream.count("/a.html"))
}

func TestServer_Proxy_StaticMissThenHit(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "v1")

	rec := env.do(http.MethodGet, "/b.css?v=1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "network", rec.Header().Get(SourceHeader))

	rec = env.do(http.MethodGet, "/b.css?v=1", nil)
	assert.Equal(t, "cache", rec.Header().Get(SourceHeader))
	assert.Equal(t, "content of /b.css", rec.Body.String())
	assert.Equal(t, 1, env.upstream.count("/b.css"))
}

func TestServer_Proxy_StaticNotFoundIsNotStored(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "v1")

	for i := 0; i < 2; i++ {
		rec := env.do(http.MethodGet, "/missing.css", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "network", rec.Header().Get(SourceHeader))
	}
	assert.Equal(t, 2, env.upstream.count("/missing.css"))
}

func TestServer_Proxy_DynamicFallsBackToStaleEntry(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "v1")

	rec := env.do(http.MethodGet, "/api/data", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "network", rec.Header().Get(SourceHeader))
	assert.Equal(t, `{"n":1}`, rec.Body.String())

	env.upstream.srv.Close()

	rec = env.do(http.MethodGet, "/api/data", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cache", rec.Header().Get(SourceHeader))
	assert.Equal(t, `{"n":1}`, rec.Body.String())
}

func TestServer_Proxy_DynamicUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "v1")
	env.upstream.srv.Close()

	rec := env.do(http.MethodGet, "/api/data", nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "synthesized", rec.Header().Get(SourceHeader))
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
	assert.Equal(t, "Service Unavailable", rec.Body.String())
}

func TestServer_Proxy_CacheFirstWithoutFallback(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "v1")
	env.upstream.srv.Close()

	rec := env.do(http.MethodGet, "/c.css", nil)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Empty(t, rec.Header().Get(SourceHeader))
}

func TestServer_Proxy_BypassForwardsBody(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "v1")

	rec := env.do(http.MethodPost, "/echo", strings.NewReader("payload"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "payload", rec.Body.String())
	assert.Equal(t, "network", rec.Header().Get(SourceHeader))

	rec = env.do(http.MethodPost, "/echo", strings.NewReader("again"))
	assert.Equal(t, "again", rec.Body.String())
	assert.Equal(t, 2, env.upstream.count("/echo"))
}

func TestServer_Proxy_AbsoluteFormIsForwarded(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "v1")

	rec := env.do(http.MethodGet, env.upstream.srv.URL+"/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "upstream-health", rec.Body.String())
	assert.Equal(t, 1, env.upstream.count("/health"))
}

func TestServer_Message_SkipWaiting(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "v1", "/a.html")
	env.register(t, "v2", "/a.html")
	require.Equal(t, "v1", env.host.Active().Version())

	rec := env.do(http.MethodPost, "/sw/message", bytes.NewBufferString(`{"type":"SKIP_WAITING"}`))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":true`)
	assert.Equal(t, "v2", env.host.Active().Version())

	names, err := env.store.Names(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"v2"}, names)
}

func TestServer_Message_Errors(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/sw/message", bytes.NewBufferString(`{"type":"SKIP_WAITING"}`))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	env.register(t, "v1")

	rec = env.do(http.MethodPost, "/sw/message", bytes.NewBufferString(`not json`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/sw/message", bytes.NewBufferString(`{}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Regions(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "v1", "/a.html")
	env.register(t, "v2", "/a.html", "/b.css")

	rec := env.do(http.MethodGet, "/sw/regions?keys=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp RegionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "v1", resp.Active)
	assert.Equal(t, "v2", resp.Waiting)
	require.Len(t, resp.Regions, 2)
	assert.Equal(t, "v1", resp.Regions[0].Name)
	assert.Equal(t, 1, resp.Regions[0].Entries)
	assert.Equal(t, "v2", resp.Regions[1].Name)
	assert.Equal(t, 2, resp.Regions[1].Entries)
	assert.Len(t, resp.Regions[1].Keys, 2)
}

func TestServer_Events(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "v1")

	ts := httptest.NewServer(env.router)
	t.Cleanup(ts.Close)
	t.Cleanup(env.hub.Close)

	resp, err := http.Get(ts.URL + "/sw/events")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": connected\n", line)

	require.Eventually(t, func() bool { return env.hub.Count() == 1 }, time.Second, 10*time.Millisecond)

	delivered := env.hub.Broadcast(context.Background(), models.ClientMessage{Type: models.MessageUpdateAvailable, Version: "v2"})
	assert.Equal(t, 1, delivered)

	var data string
	for {
		line, err = reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: ") {
			data = strings.TrimSpace(strings.TrimPrefix(line, "data: "))
			break
		}
	}

	var msg models.ClientMessage
	require.NoError(t, json.Unmarshal([]byte(data), &msg))
	assert.Equal(t, models.MessageUpdateAvailable, msg.Type)
	assert.Equal(t, "v2", msg.Version)
}

func TestServer_StartUnixSocket(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "v1", "/a.html")

	socketPath := filepath.Join(t.TempDir(), "proxy.sock")
	done := make(chan error, 1)
	go func() { done <- env.server.StartUnixSocket(socketPath) }()

	client := &http.Client{Transport: &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socketPath)
		},
	}}

	var resp *http.Response
	require.Eventually(t, func() bool {
		var err error
		resp, err = client.Get("http://proxy/a.html")
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "content of /a.html", string(body))
	assert.Equal(t, "cache", resp.Header.Get(SourceHeader))

	require.NoError(t, env.server.Stop(context.Background()))
	assert.NoError(t, <-done)
}

func TestServer_Stop_WithoutStart(t *testing.T) {
	env := newTestEnv(t)

	assert.NoError(t, env.server.Stop(context.Background()))
}
