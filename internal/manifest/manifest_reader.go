package manifest

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"go-offline-proxy/internal/models"
)

var validate = validator.New()

// LoadManifest loads a deployment manifest from a YAML file
func LoadManifest(path string, logger *zap.Logger) (*Manifest, error) {
	logger.Info("Loading deployment manifest", zap.String("path", path))

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest file: %w", err)
	}
	defer file.Close()

	var m Manifest
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to decode YAML manifest: %w", err)
	}

	m.applyDefaults()

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("manifest validation failed: %w", err)
	}

	logger.Info("Deployment manifest loaded",
		zap.String("version", m.Version),
		zap.Int("assets", len(m.Assets)),
		zap.Int("dynamic_patterns", len(m.DynamicPatterns)))

	return &m, nil
}

// Validate checks the manifest structure
func (m *Manifest) Validate() error {
	if err := validate.Struct(m); err != nil {
		return err
	}
	for _, asset := range m.Assets {
		if _, err := url.Parse(asset); err != nil {
			return fmt.Errorf("invalid asset URL %q: %w", asset, err)
		}
	}
	return nil
}

func (m *Manifest) applyDefaults() {
	if m.DynamicStrategy == "" {
		m.DynamicStrategy = models.StrategyNetworkFirst
	}
	if len(m.CacheableMethods) == 0 {
		m.CacheableMethods = []string{http.MethodGet}
	}
	for i, method := range m.CacheableMethods {
		m.CacheableMethods[i] = strings.ToUpper(method)
	}
}

// ResolveAssets resolves every asset against the upstream origin, keeping order
func (m *Manifest) ResolveAssets(origin *url.URL) ([]*url.URL, error) {
	resolved := make([]*url.URL, 0, len(m.Assets))
	for _, asset := range m.Assets {
		ref, err := url.Parse(asset)
		if err != nil {
			return nil, fmt.Errorf("invalid asset URL %q: %w", asset, err)
		}
		resolved = append(resolved, origin.ResolveReference(ref))
	}
	return resolved, nil
}

// ResolveFallback resolves the offline fallback URL, or returns nil when none is configured
func (m *Manifest) ResolveFallback(origin *url.URL) *url.URL {
	if m.OfflineFallback == "" {
		return nil
	}
	ref, err := url.Parse(m.OfflineFallback)
	if err != nil {
		return nil
	}
	return origin.ResolveReference(ref)
}
