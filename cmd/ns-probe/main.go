package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"Go2TraceSpectra/internal/config"
	"Go2TraceSpectra/internal/core/model"
	"Go2TraceSpectra/internal/probe"
	"Go2TraceSpectra/pkg/pcap"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// lineSink is satisfied by *probe.Publisher.
type lineSink interface {
	Publish(line string) error
}

func main() {
	var configPath string
	cmd := &cobra.Command{
		Use:   "ns-probe [trace file]",
		Short: "Publish tcpdump -nn trace lines to NATS",
		Long: `ns-probe reads a text trace from a file or stdin and publishes every line
to the configured NATS subject, where ns-engine picks it up.

Example:
  tcpdump -nn -l -i eth0 tcp port 1414 | ns-probe`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			cfg.SetupLogging()

			input := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				file, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("%w: %w", model.ErrUpstreamRead, err)
				}
				defer file.Close()
				input = file
			}

			pub, err := probe.NewPublisher(cfg.Probe)
			if err != nil {
				return fmt.Errorf("failed to connect to NATS: %w", err)
			}
			defer pub.Close()

			n, err := publishLines(cmd.Context(), input, pub)
			log.Printf("%d lines published to '%s'.", n, cfg.Probe.Subject)
			return err
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "Path to the configuration file")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := cmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// publishLines forwards every line of r until r ends or ctx is cancelled.
func publishLines(ctx context.Context, r io.Reader, pub lineSink) (int, error) {
	published := 0
	for line, err := range pcap.Lines(r) {
		if err != nil {
			return published, fmt.Errorf("%w: %w", model.ErrUpstreamRead, err)
		}
		if ctx.Err() != nil {
			log.Println("Shutdown signal received, stopping probe...")
			return published, nil
		}
		if line == "" {
			continue
		}
		if err := pub.Publish(line); err != nil {
			log.Printf("Failed to publish line: %v", err)
			continue
		}
		published++
		if published%1000 == 0 {
			log.Printf("%d lines published...", published)
		}
	}
	return published, nil
}
