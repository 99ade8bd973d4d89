package manifest

import (
	"strings"

	"go.uber.org/zap"

	"go-offline-proxy/internal/interfaces"
	"go-offline-proxy/internal/models"
)

// Classifier implements the RequestClassifier interface
type Classifier struct {
	logger           *zap.Logger
	patterns         []string
	dynamicStrategy  models.Strategy
	cacheableMethods map[string]struct{}
}

// Ensure Classifier implements the RequestClassifier interface
var _ interfaces.RequestClassifier = (*Classifier)(nil)

// NewClassifier creates a classifier from the manifest's patterns
func NewClassifier(logger *zap.Logger, m *Manifest) *Classifier {
	c := &Classifier{
		logger:           logger,
		patterns:         append([]string(nil), m.DynamicPatterns...),
		dynamicStrategy:  m.DynamicStrategy,
		cacheableMethods: make(map[string]struct{}, len(m.CacheableMethods)),
	}
	if c.dynamicStrategy == "" {
		c.dynamicStrategy = models.StrategyNetworkFirst
	}
	for _, method := range m.CacheableMethods {
		c.cacheableMethods[strings.ToUpper(method)] = struct{}{}
	}
	return c
}

// Classify implements RequestClassifier interface
func (c *Classifier) Classify(req *models.RequestDescriptor) models.RequestClass {
	if req == nil || req.URL == nil {
		return models.ClassBypass
	}

	if _, ok := c.cacheableMethods[strings.ToUpper(req.Method)]; !ok {
		return models.ClassBypass
	}

	u := req.URL.String()
	for _, pattern := range c.patterns {
		if strings.Contains(u, pattern) {
			if c.logger != nil {
				c.logger.Debug("Request matched dynamic pattern",
					zap.String("url", u),
					zap.String("pattern", pattern))
			}
			return models.ClassDynamic
		}
	}

	return models.ClassStatic
}

// StrategyFor implements RequestClassifier interface
func (c *Classifier) StrategyFor(class models.RequestClass) models.Strategy {
	switch class {
	case models.ClassStatic:
		return models.StrategyCacheFirst
	case models.ClassDynamic:
		return c.dynamicStrategy
	default:
		return models.StrategyNetworkOnly
	}
}
