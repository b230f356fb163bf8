// Package startup prepares the application server
package startup

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/benjarmc/portal-pji-project-sub000/internal/application/container"
	"github.com/benjarmc/portal-pji-project-sub000/internal/presentation/http/server"
	"github.com/benjarmc/portal-pji-project-sub000/pkg/config"
)

// Initialize builds the container, starts the background cleanup worker
// and serves HTTP until SIGINT or SIGTERM.
func Initialize(port string) error {
	setupLogging()

	start := time.Now().UTC()

	ctx, cancelBackgroundTasks := context.WithCancel(context.Background())
	defer cancelBackgroundTasks()

	log.Println("\033[32m" + `
  ██████╗      ██╗██╗
  ██╔══██╗     ██║██║
  ██████╔╝     ██║██║
  ██╔═══╝ ██   ██║██║
  ██║     ╚█████╔╝██║
  ╚═╝      ╚════╝ ╚═╝` + "\033[97m" + `
  portal de cotización
` + "\033[0m")

	// Step 1: Create dependency injection container
	log.Println("Initializing dependency injection container...")
	appContainer, err := container.NewContainer(ctx, container.Options{})
	if err != nil {
		return fmt.Errorf("failed to create container: %w", err)
	}
	defer func() {
		if err := appContainer.Close(); err != nil {
			log.Printf("Error closing container: %v", err)
		}
	}()

	logger := appContainer.Logger
	logger.Startup().Info("Container initialization complete - switching to channeled logging",
		"stateStore", config.StateStore,
		"backend", config.BackendBaseURL)
	logger.LogStartupPhase("container", time.Since(start), true)

	// Step 2: Start background cleanup worker
	logger.Startup().Info("Starting background cleanup worker...")
	go appContainer.CleanupWorker.Start(ctx)

	// Step 3: Start HTTP server
	if port == "" {
		port = config.Port
	}
	httpServer := server.New(port, appContainer)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- httpServer.Start()
	}()

	logger.Startup().Info("Application startup complete",
		"totalDuration", time.Since(start),
		"port", port)

	// Step 4: Wait for a shutdown signal or a server failure
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(gracefulShutdown)

	var runErr error
	select {
	case <-gracefulShutdown:
		logger.Shutdown().Info("Shutdown signal received, starting graceful shutdown...")
	case runErr = <-serverErr:
		if runErr != nil {
			logger.System().Error("HTTP server failed", "error", runErr.Error())
		}
	}

	shutdownStart := time.Now()
	cancelBackgroundTasks()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Shutdown().Error("Error during server shutdown", "error", err.Error())
	} else {
		logger.Shutdown().Info("HTTP server stopped successfully")
	}

	logger.Shutdown().Info("Application shutdown complete",
		"totalUptime", time.Since(start),
		"shutdownDuration", time.Since(shutdownStart))

	return runErr
}

// setupLogging configures application logging
func setupLogging() {
	if config.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}
