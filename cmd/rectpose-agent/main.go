package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/rectpose/internal/agent"
	"github.com/example/rectpose/internal/camera"
	"github.com/example/rectpose/internal/config"
	"github.com/example/rectpose/internal/dispatcher"
	"github.com/example/rectpose/internal/estimator"
	"github.com/example/rectpose/internal/handoff"
	"github.com/example/rectpose/internal/logging"
	"github.com/example/rectpose/internal/poselog"
)

func main() {
	logger, err := logging.NewLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	cfg := config.LoadAgent()
	logbook := poselog.NewRing()

	sampler := camera.NewSampler(cfg.CameraDevice, logger)
	estimatorClient := estimator.NewHTTPClient(cfg.EstimatorURL, logger)
	sender := handoff.NewClient(cfg.RobotURL, logbook, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loop := dispatcher.New(sampler, estimatorClient, nil, logbook, cfg.FrameInterval, logger)
	defer loop.Stop()

	ctl := agent.NewControl(ctx, loop, sender, sampler, logbook, cfg.MMPerPixel)

	r := gin.Default()
	ctl.RegisterRoutes(r)

	server := &http.Server{
		Addr:    cfg.ControlAddr,
		Handler: r,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))

		loop.Stop()
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("rectpose agent control surface listening",
		zap.String("addr", cfg.ControlAddr),
		zap.String("estimator", cfg.EstimatorURL),
		zap.String("robot", cfg.RobotURL),
		zap.Duration("frame_interval", cfg.FrameInterval),
	)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("control server failed", zap.Error(err))
	}
}
