package manifest

import (
	"go-offline-proxy/internal/models"
)

// Manifest describes one deployment: the region version, the assets that
// must be provisioned and the URL patterns served network-first
type Manifest struct {
	Version          string          `yaml:"version" validate:"required"`
	Assets           []string        `yaml:"assets" validate:"required,min=1,dive,required"`
	DynamicPatterns  []string        `yaml:"dynamic_patterns" validate:"dive,required"`
	DynamicStrategy  models.Strategy `yaml:"dynamic_strategy" validate:"omitempty,oneof=network_first network_only"`
	CacheableMethods []string        `yaml:"cacheable_methods" validate:"dive,required"`
	OfflineFallback  string          `yaml:"offline_fallback"`
}
