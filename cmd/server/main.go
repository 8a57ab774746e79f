package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Brownie44l1/skinclass/internal/app"
	"github.com/Brownie44l1/skinclass/internal/config"
	"github.com/Brownie44l1/skinclass/internal/handlers"
	"github.com/Brownie44l1/skinclass/internal/logging"
	"github.com/Brownie44l1/skinclass/internal/metrics"
)

func main() {
	logger := logging.New()

	// the full CLI lives in cmd/skinclass; this binary only serves
	cfg, err := config.Load(os.Getenv("SKINCLASS_CONFIG"))
	if err != nil {
		logger.WithError(err).Fatal("failed to load config")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	a, err := app.New(cfg, logger, m)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize model")
	}
	defer a.Close()

	handler := handlers.NewHandler(a.Pipeline, cfg.MaxUploadBytes(), logger)

	port := cfg.Server.Port
	logger.WithField("labels", a.Pipeline.Labels().Names()).Info("endpoints: GET /health, POST /predict, POST /predict/image, POST /predict/batch, GET /metrics")
	logger.Infof("upload test: curl -X POST -F \"image=@lesion.jpg\" http://localhost:%s/predict/image", port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = handlers.Serve(ctx, ":"+port, handlers.Routes(handler, m, reg), logger)
	if err != nil && err != http.ErrServerClosed {
		logger.WithError(err).Error("server failed")
		a.Close()
		os.Exit(1)
	}
}
