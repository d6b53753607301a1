package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"Go2TraceSpectra/internal/config"
	"Go2TraceSpectra/internal/core/model"
	"Go2TraceSpectra/internal/engine/manager"
	"Go2TraceSpectra/internal/report"
	"Go2TraceSpectra/internal/sink"
	_ "Go2TraceSpectra/internal/snapshot"
	"Go2TraceSpectra/pkg/pcap"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type options struct {
	configPath string
	format     string
	filter     string
	workers    int
	jsonOutput bool
	write      bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "trace-analyzer [trace file]",
		Short: "Classify a packet trace by endpoint group",
		Long: `trace-analyzer reads a tcpdump -nn text trace or a pcap/pcapng capture,
attributes its packets to the configured endpoint groups and prints a report
with traffic distribution, connection lifecycle and size signature counts.

Without a file argument, or with "-", the trace is read from stdin.

Examples:
  tcpdump -nn -r capture.pcap | trace-analyzer
  trace-analyzer capture.pcap --json
  trace-analyzer trace.txt --filter 'length > 0' --write`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			return run(cmd.Context(), opts, path, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "configs/config.yaml", "Path to the configuration file")
	flags.StringVarP(&opts.format, "format", "f", "auto", "Trace format: auto, text, pcap, pcapng")
	flags.StringVar(&opts.filter, "filter", "", "Record filter expression, overrides engine.filter")
	flags.IntVarP(&opts.workers, "workers", "w", 0, "Reducer workers, overrides engine.num_workers")
	flags.BoolVar(&opts.jsonOutput, "json", false, "Print the report as JSON instead of text")
	flags.BoolVar(&opts.write, "write", false, "Hand the report to the configured writers and alerter")
	return cmd
}

func parseFormat(s string) (pcap.Format, error) {
	switch s {
	case "", "auto":
		return "", nil
	case string(pcap.FormatText), string(pcap.FormatPcap), string(pcap.FormatPcapNG):
		return pcap.Format(s), nil
	}
	return "", fmt.Errorf("%w: unknown trace format '%s'", model.ErrConfig, s)
}

func run(ctx context.Context, opts *options, path string, stdin io.Reader, stdout io.Writer) error {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}
	cfg.SetupLogging()
	if opts.filter != "" {
		cfg.Engine.Filter = opts.filter
	}
	if opts.workers > 0 {
		cfg.Engine.NumWorkers = opts.workers
	}
	format, err := parseFormat(opts.format)
	if err != nil {
		return err
	}

	input := stdin
	source := "<stdin>"
	if path != "-" {
		file, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("%w: %w", model.ErrUpstreamRead, err)
		}
		defer file.Close()
		input, source = file, path
	}

	mgr, err := manager.NewManager(cfg.Engine)
	if err != nil {
		return err
	}
	mgr.Start()
	defer mgr.Stop()

	detected, results, err := pcap.Stream(input, format)
	if err != nil {
		return err
	}
	log.Printf("Reading %s trace from '%s'...", detected, source)

	res, runErr := mgr.RunResults(ctx, results)
	rep := report.Build(res, report.Meta{Source: source, Filter: mgr.Filter(), Err: runErr})

	if opts.jsonOutput {
		data, err := rep.JSON()
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(stdout, string(data)); err != nil {
			return err
		}
	} else if err := report.RenderText(stdout, rep); err != nil {
		return err
	}

	if opts.write {
		s, err := sink.FromConfig(cfg, nil)
		if err != nil {
			return err
		}
		defer s.Close()
		if err := s.Handle(rep); err != nil {
			return errors.Join(runErr, err)
		}
	}
	return runErr
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Errorf("trace-analyzer: %v", err)
		stop()
		os.Exit(1)
	}
}
