package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/lk2023060901/ai-search-dispatcher/internal/conf"
	"github.com/lk2023060901/ai-search-dispatcher/internal/pkg/injector"
	"github.com/lk2023060901/ai-search-dispatcher/internal/pkg/logger"
	"github.com/lk2023060901/ai-search-dispatcher/internal/search/backend"
)

var (
	configFile = flag.String("config", "", "config file path (defaults and SEARCH_* environment when empty)")
)

func main() {
	flag.Parse()

	// Load configuration
	config, err := conf.LoadConfig(*configFile)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log, err := logger.New(&config.Log)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	if err := logger.InitGlobal(&config.Log); err != nil {
		log.Fatal("failed to initialize global logger", zap.Error(err))
	}

	log.Info("config loaded successfully",
		zap.String("mode", config.Dispatch.Mode),
		zap.String("unsupported_option_policy", string(config.Dispatch.Policy)),
		zap.Bool("failover", config.Dispatch.Failover),
	)

	app, err := injector.NewApp(config, log, backend.EnvCredentials{})
	if err != nil {
		log.Fatal("failed to assemble application", zap.Error(err))
	}

	go func() {
		if err := app.HTTPServer.Start(); err != nil {
			log.Fatal("failed to start HTTP server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), config.Server.ShutdownTimeout)
	defer cancel()

	if err := app.HTTPServer.Stop(ctx); err != nil {
		log.Error("HTTP server forced to shutdown", zap.Error(err))
	}

	log.Info("server exited")
}
