package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"kestrel/internal/config"
	"kestrel/internal/engine"
	"kestrel/internal/metrics"
	kestrelNet "kestrel/internal/net"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	engCfg := engine.DefaultConfig()
	engCfg.MinPrice = cfg.Engine.MinPrice
	engCfg.MaxPrice = cfg.Engine.MaxPrice
	if engCfg.MaxPrice == 0 {
		engCfg.MaxPrice = math.MaxUint32
	}
	engCfg.TickSize = cfg.Engine.TickSize
	engCfg.ExpectedMaxOrders = cfg.Engine.ExpectedMaxOrders
	engCfg.ExpectedPriceLevels = cfg.Engine.ExpectedPriceLevels
	engCfg.MaxOrders = cfg.Engine.MaxOrders
	engCfg.EnableStopOrders = cfg.Engine.EnableStopOrders
	engCfg.EnableIcebergOrders = cfg.Engine.EnableIcebergOrders
	engCfg.EnableTimeExpiry = cfg.Engine.EnableTimeExpiry
	engCfg.AutoProcessStops = cfg.Engine.AutoProcessStops

	eng := engine.New(engine.NewContext(engCfg))
	for _, symbol := range cfg.Symbols {
		if _, err := eng.CreateBook(symbol); err != nil {
			log.Fatal().Err(err).Str("symbol", symbol).Msg("unable to create book")
		}
		log.Info().Str("symbol", symbol).Msg("book created")
	}

	mtr := metrics.New()
	go func() {
		addr := fmt.Sprintf(":%d", cfg.MetricsPort)
		mux := http.NewServeMux()
		mux.Handle("/metrics", mtr.Handler())
		srv := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		log.Info().Str("address", addr).Msg("metrics listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	srv := kestrelNet.NewServer(cfg.ListenAddress, cfg.ListenPort, eng, mtr)
	go srv.Run(ctx)

	<-ctx.Done()
	log.Info().Msg("shutdown complete")
}
