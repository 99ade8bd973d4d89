package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

func main() {
	// Initialize composition root with all dependencies
	root, err := NewCompositionRoot()
	if err != nil {
		fmt.Printf("Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	// Ensure cleanup on exit
	defer func() {
		if err := root.Cleanup(); err != nil {
			root.Logger.Error("Failed to cleanup resources", zap.Error(err))
		}
	}()

	// Install and activate the first version before taking traffic
	if err := root.RegisterManifest(context.Background(), root.Manifest); err != nil {
		root.Logger.Error("Failed to register manifest", zap.Error(err))
		return
	}

	serverCfg := root.Config.Server

	if serverCfg.ListenAddr != "" {
		go func() {
			if err := root.HTTPServer.Start(serverCfg.ListenAddr); err != nil {
				root.Logger.Error("Server failed to start", zap.Error(err))
			}
		}()
	}

	if serverCfg.SocketPath != "" {
		go func() {
			if err := root.HTTPServer.StartUnixSocket(serverCfg.SocketPath); err != nil {
				root.Logger.Error("Server failed to start on Unix socket", zap.Error(err))
			}
		}()
	}

	// SIGHUP registers a new deployment; SIGINT/SIGTERM shut down
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)

	for sig := range signals {
		if sig == syscall.SIGHUP {
			root.Logger.Info("Reloading manifest")
			go func() {
				if err := root.Reload(context.Background()); err != nil {
					root.Logger.Error("Failed to reload manifest", zap.Error(err))
				}
			}()
			continue
		}
		break
	}

	root.Logger.Info("Shutting down server...")

	// Create a deadline for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), serverCfg.GetShutdownTimeout())
	defer cancel()

	if err := root.HTTPServer.Stop(ctx); err != nil {
		root.Logger.Error("HTTP server forced to shutdown", zap.Error(err))
	}

	root.Logger.Info("Server exited")
}
