package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"triad-service/internal/api"
	"triad-service/internal/config"
	"triad-service/internal/repo"
	"triad-service/internal/service"
	"triad-service/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "path to config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Load Config
	config.LoadConfig(configPath)
	conf := config.GlobalConfig

	// 2. Init Logger
	if err := logger.InitLogger(conf.Server.Mode); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Log.Sync()

	logger.Log.Info("Starting server...", zap.String("mode", conf.Server.Mode))

	// 3. Init DB & Redis
	repo.InitDB()
	repo.InitRedis()

	// 3.5 Init Services
	services := service.NewContainer(repo.DB, repo.RDB, conf.Match)

	// 4. Init Router
	if conf.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	api.RegisterRoutes(r, services, conf.Server.AllowedOrigins)

	// 5. Start Server
	addr := fmt.Sprintf(":%s", conf.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Log.Info("Server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Log.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(conf.Server.ShutdownTimeout)*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return services.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Log.Fatal("Server stopped with error", zap.Error(err))
	}
	logger.Log.Info("Server stopped")
}
