package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"Go2TraceSpectra/internal/api"
	"Go2TraceSpectra/internal/config"
	"Go2TraceSpectra/internal/engine/manager"
	"Go2TraceSpectra/internal/engine/streamaggregator"
	"Go2TraceSpectra/internal/metrics"
	"Go2TraceSpectra/internal/query"
	"Go2TraceSpectra/internal/report"
	"Go2TraceSpectra/internal/sink"
	_ "Go2TraceSpectra/internal/snapshot"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	var (
		configPath string
		live       bool
	)
	cmd := &cobra.Command{
		Use:   "ns-api",
		Short: "Serve trace analysis, the latest report and report history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath, live)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "Path to the configuration file")
	cmd.Flags().BoolVar(&live, "live", false, "Also consume the NATS trace feed and serve its interval reports")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := cmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, live bool) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	cfg.SetupLogging()

	querier, err := query.New(cfg)
	if err != nil {
		return err
	}
	if querier != nil {
		defer querier.Close()
	} else {
		log.Println("No history source configured, history endpoint disabled.")
	}

	met := metrics.New()
	srv := api.NewServer(cfg.Engine, querier, met)

	if live {
		out, err := sink.FromConfig(cfg, met)
		if err != nil {
			return err
		}
		defer out.Close()

		streamAgg, err := streamaggregator.NewStreamAggregator(cfg, func(rep *report.Report) {
			srv.SetLatest(rep)
			if err := out.Handle(rep); err != nil {
				log.Printf("Report %s was not fully written: %v", rep.ID, err)
			}
		}, manager.WithMetrics(met))
		if err != nil {
			return err
		}
		if err := streamAgg.Start(); err != nil {
			return err
		}
		defer streamAgg.Stop()
	}

	if cfg.API.GRPCAddr != "" {
		grpcSrv, _ := api.NewHealthServer()
		go func() {
			if err := api.ServeHealth(grpcSrv, cfg.API.GRPCAddr); err != nil {
				log.Errorf("gRPC health server failed: %v", err)
			}
		}()
		defer grpcSrv.GracefulStop()
	}

	server := &http.Server{
		Addr:    cfg.API.ListenAddr,
		Handler: srv.Router(),
	}
	go func() {
		log.Printf("API server starting on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Could not listen on %s: %v", server.Addr, err)
		}
	}()

	<-ctx.Done()
	log.Println("API server shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Println("API server exited.")
	return nil
}
