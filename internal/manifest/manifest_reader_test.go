package manifest

import (
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"go-offline-proxy/internal/models"
)

func createTempYAMLFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadManifest_Success(t *testing.T) {
	logger := zaptest.NewLogger(t)

	validYAML := `
version: checklog-admin-cache-v1
assets:
  - ./
  - ./index.html
  - https://cdn.tailwindcss.com
  - https://fonts.googleapis.com/css2?family=Sarabun:wght@400;500;700&display=swap
dynamic_patterns:
  - script.google.com/macros/s/
offline_fallback: /offline.html
`

	m, err := LoadManifest(createTempYAMLFile(t, validYAML), logger)

	require.NoError(t, err)
	require.NotNil(t, m)

	assert.Equal(t, "checklog-admin-cache-v1", m.Version)
	assert.Len(t, m.Assets, 4)
	assert.Equal(t, []string{"script.google.com/macros/s/"}, m.DynamicPatterns)
	assert.Equal(t, models.StrategyNetworkFirst, m.DynamicStrategy)
	assert.Equal(t, []string{"GET"}, m.CacheableMethods)
	assert.Equal(t, "/offline.html", m.OfflineFallback)
}

func TestLoadManifest_NetworkOnlyVariant(t *testing.T) {
	logger := zaptest.NewLogger(t)

	variantYAML := `
version: usd-stock-tracker-v1.1
assets: ["/", "/index.html"]
dynamic_patterns: [googleapis.com, firebaseapp.com, tradingview.com, gstatic.com, unpkg.com]
dynamic_strategy: network_only
cacheable_methods: [get]
`

	m, err := LoadManifest(createTempYAMLFile(t, variantYAML), logger)

	require.NoError(t, err)
	assert.Equal(t, models.StrategyNetworkOnly, m.DynamicStrategy)
	assert.Equal(t, []string{"GET"}, m.CacheableMethods)
	assert.Len(t, m.DynamicPatterns, 5)
}

func TestLoadManifest_FileNotFound(t *testing.T) {
	logger := zaptest.NewLogger(t)

	m, err := LoadManifest("/nonexistent/file.yaml", logger)

	assert.Error(t, err)
	assert.Nil(t, m)
	assert.Contains(t, err.Error(), "failed to open manifest file")
}

func TestLoadManifest_InvalidYAML(t *testing.T) {
	logger := zaptest.NewLogger(t)

	m, err := LoadManifest(createTempYAMLFile(t, "version: [unclosed"), logger)

	assert.Error(t, err)
	assert.Nil(t, m)
	assert.Contains(t, err.Error(), "failed to decode YAML manifest")
}

func TestLoadManifest_ValidationErrors(t *testing.T) {
	logger := zaptest.NewLogger(t)

	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "missing version",
			yaml: `assets: ["/"]`,
		},
		{
			name: "no assets",
			yaml: `version: v1`,
		},
		{
			name: "empty asset",
			yaml: `
version: v1
assets: ["/", ""]
`,
		},
		{
			name: "unknown strategy",
			yaml: `
version: v1
assets: ["/"]
dynamic_strategy: stale_while_revalidate
`,
		},
		{
			name: "cache first is not a dynamic strategy",
			yaml: `
version: v1
assets: ["/"]
dynamic_strategy: cache_first
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := LoadManifest(createTempYAMLFile(t, tt.yaml), logger)
			assert.Error(t, err)
			assert.Nil(t, m)
		})
	}
}

func TestManifest_ResolveAssets(t *testing.T) {
	origin, err := url.Parse("https://app.example.com/admin/")
	require.NoError(t, err)

	m := &Manifest{
		Version: "v1",
		Assets:  []string{"./", "./index.html", "/a.html", "https://cdn.tailwindcss.com"},
	}

	resolved, err := m.ResolveAssets(origin)

	require.NoError(t, err)
	require.Len(t, resolved, 4)
	assert.Equal(t, "https://app.example.com/admin/", resolved[0].String())
	assert.Equal(t, "https://app.example.com/admin/index.html", resolved[1].String())
	assert.Equal(t, "https://app.example.com/a.html", resolved[2].String())
	assert.Equal(t, "https://cdn.tailwindcss.com", resolved[3].String())
}

func TestManifest_ResolveFallback(t *testing.T) {
	origin, err := url.Parse("https://app.example.com")
	require.NoError(t, err)

	assert.Nil(t, (&Manifest{}).ResolveFallback(origin))

	fallback := (&Manifest{OfflineFallback: "/offline.html"}).ResolveFallback(origin)
	require.NotNil(t, fallback)
	assert.Equal(t, "https://app.example.com/offline.html", fallback.String())
}
