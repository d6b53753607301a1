package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"Go2TraceSpectra/internal/config"
	"Go2TraceSpectra/internal/engine/manager"
	"Go2TraceSpectra/internal/engine/streamaggregator"
	"Go2TraceSpectra/internal/metrics"
	"Go2TraceSpectra/internal/report"
	"Go2TraceSpectra/internal/sink"
	_ "Go2TraceSpectra/internal/snapshot"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	var (
		configPath  string
		metricsAddr string
	)
	cmd := &cobra.Command{
		Use:   "ns-engine",
		Short: "Classify the live trace feed and write one report per interval",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath, metricsAddr)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "Path to the configuration file")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := cmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, metricsAddr string) error {
	log.Println("Starting ns-engine...")

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	cfg.SetupLogging()
	log.Println("Configuration loaded successfully.")

	met := metrics.New()
	out, err := sink.FromConfig(cfg, met)
	if err != nil {
		return err
	}
	defer out.Close()

	handle := func(rep *report.Report) {
		if err := out.Handle(rep); err != nil {
			log.Printf("Report %s was not fully written: %v", rep.ID, err)
		}
	}
	streamAgg, err := streamaggregator.NewStreamAggregator(cfg, handle, manager.WithMetrics(met))
	if err != nil {
		return err
	}

	var metricsSrv *http.Server
	if metricsAddr != "" {
		metricsSrv = &http.Server{Addr: metricsAddr, Handler: met.Handler()}
		go func() {
			log.Printf("Metrics server starting on %s", metricsAddr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorf("Metrics server failed: %v", err)
			}
		}()
	}

	if err := streamAgg.Start(); err != nil {
		return err
	}
	log.Printf("Engine running, writing a report every %s to %v.", cfg.Interval(), out.Writers())

	<-ctx.Done()
	log.Println("Shutdown signal received, stopping aggregator...")
	streamAgg.Stop()

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		metricsSrv.Shutdown(shutdownCtx)
	}
	log.Println("Shutdown complete.")
	return nil
}
