package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cajapos/internal/conectividad"
	"cajapos/internal/config"
	"cajapos/internal/handler"
	"cajapos/internal/infra"
	"cajapos/internal/metrics"
	"cajapos/internal/offline"
	"cajapos/internal/ordenclient"
	"cajapos/internal/router"
	"cajapos/internal/sincronizacion"
	"cajapos/internal/terminal"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	infra.ConfigurarLogger(cfg.Env, "cajapos-terminal")

	db, err := infra.NewSQLite(cfg.TerminalDBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.TerminalDBPath).Msg("failed to open local database")
	}
	store, err := offline.NewStore(db)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to migrate local database")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewTerminal(reg)

	cbCfg := infra.DefaultCBConfig("servidor")
	cbCfg.IsFailure = ordenclient.EsTransitorio
	cbCfg.OnStateChange = func(nombre string, from, to infra.CBState) {
		log.Warn().Str("breaker", nombre).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
	}
	cliente := ordenclient.New(cfg.ServidorURL, cfg.ServidorToken, cfg.ServidorTimeout(), infra.NewCircuitBreaker(cbCfg))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	monitor := conectividad.NewMonitor(cliente, cfg.SondaIntervalo(), m)
	coord := sincronizacion.New(store, cliente, m)
	monitor.AlReconectar(func() {
		rep, err := coord.Sincronizar(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("sincronizacion al reconectar")
			return
		}
		log.Info().Int("sincronizadas", rep.Sincronizadas).Int("fallidas", rep.Fallidas).Msg("sincronizacion al reconectar")
	})
	go monitor.Run(ctx)

	registrador := terminal.NewRegistrador(store, cliente, monitor, cfg.TerminalSucursalID, m)
	h := handler.NewTerminalHandler(registrador, store, coord, monitor.EnLinea, cfg.TerminalSucursalID)

	srv := &http.Server{
		Addr:         fmt.Sprintf("127.0.0.1:%d", cfg.TerminalPort),
		Handler:      router.NewTerminal(cfg.Env, h, reg),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Int("sucursal_id", cfg.TerminalSucursalID).Msgf("cajapos terminal listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("terminal server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down terminal…")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("terminal exited")
}
