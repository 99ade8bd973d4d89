package main

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Env holds process settings read from the environment
type Env struct {
	ConfigFile   string `env:"OFFLINE_PROXY_CONFIG_FILE" envDefault:"/app/config.yaml"`
	ManifestFile string `env:"OFFLINE_PROXY_MANIFEST_FILE" envDefault:"/app/manifest.yaml"`
	SocketPath   string `env:"OFFLINE_PROXY_SOCKET_PATH"`
	KeyDBURL     string `env:"KEYDB_URL"`
	KeyDBURLFile string `env:"CACHE_KEYDB_URL_FILE" envDefault:"/app/.keydb-url"`
}

// LoadEnv parses the environment
func LoadEnv() (*Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return &e, nil
}
