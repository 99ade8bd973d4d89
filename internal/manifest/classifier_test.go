package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"go-offline-proxy/internal/models"
)

func newDescriptor(t *testing.T, method, rawURL string) *models.RequestDescriptor {
	t.Helper()
	req, err := models.NewRequestDescriptor(method, rawURL)
	require.NoError(t, err)
	return req
}

func TestClassifier_Classify(t *testing.T) {
	logger := zaptest.NewLogger(t)

	m := &Manifest{
		Version:          "v1",
		Assets:           []string{"/"},
		DynamicPatterns:  []string{"api.example.com", "script.google.com/macros/s/"},
		DynamicStrategy:  models.StrategyNetworkFirst,
		CacheableMethods: []string{"GET"},
	}
	classifier := NewClassifier(logger, m)

	tests := []struct {
		name     string
		method   string
		url      string
		expected models.RequestClass
	}{
		{"static same origin asset", "GET", "https://app.example.com/b.css", models.ClassStatic},
		{"static cdn asset", "GET", "https://cdn.tailwindcss.com/", models.ClassStatic},
		{"dynamic api host", "GET", "https://api.example.com/data", models.ClassDynamic},
		{"dynamic apps script", "GET", "https://script.google.com/macros/s/AKfycb/exec?sheet=daily", models.ClassDynamic},
		{"pattern matches anywhere in url", "GET", "https://proxy.local/?to=api.example.com", models.ClassDynamic},
		{"post is bypassed", "POST", "https://app.example.com/b.css", models.ClassBypass},
		{"post to api is bypassed", "POST", "https://api.example.com/data", models.ClassBypass},
		{"lowercase method is normalized", "get", "https://app.example.com/", models.ClassStatic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, classifier.Classify(newDescriptor(t, tt.method, tt.url)))
		})
	}
}

func TestClassifier_Classify_NilRequest(t *testing.T) {
	classifier := NewClassifier(nil, &Manifest{CacheableMethods: []string{"GET"}})

	assert.Equal(t, models.ClassBypass, classifier.Classify(nil))
	assert.Equal(t, models.ClassBypass, classifier.Classify(&models.RequestDescriptor{Method: "GET"}))
}

func TestClassifier_StrategyFor(t *testing.T) {
	tests := []struct {
		name            string
		dynamicStrategy models.Strategy
		class           models.RequestClass
		expected        models.Strategy
	}{
		{"static is cache first", models.StrategyNetworkFirst, models.ClassStatic, models.StrategyCacheFirst},
		{"dynamic is network first", models.StrategyNetworkFirst, models.ClassDynamic, models.StrategyNetworkFirst},
		{"dynamic network only variant", models.StrategyNetworkOnly, models.ClassDynamic, models.StrategyNetworkOnly},
		{"empty strategy defaults to network first", "", models.ClassDynamic, models.StrategyNetworkFirst},
		{"bypass is network only", models.StrategyNetworkFirst, models.ClassBypass, models.StrategyNetworkOnly},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classifier := NewClassifier(nil, &Manifest{DynamicStrategy: tt.dynamicStrategy})
			assert.Equal(t, tt.expected, classifier.StrategyFor(tt.class))
		})
	}
}
