package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"jvmScope/collector"
	"jvmScope/config"
	"jvmScope/converter"
	"jvmScope/filter"
	"jvmScope/logging"
	"jvmScope/processor"
	"jvmScope/report"
	"jvmScope/sender"
)

// options are the command line flags.
type options struct {
	configPath string
	outputFile string
	pprofFile  string
	logLevel   string
	debug      bool
	noBanner   bool
	top        int
}

func printWelcomeBanner(w io.Writer, cfg *config.Config, spec filter.Spec) {
	fmt.Fprintln(w, "\033[0;33mjvmScope\033[0m - thread dump sampling profiler")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "🚀 Starting jvmScope with configuration:")
	fmt.Fprintf(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(w, "📡 Thread dump URL:    %s\n", cfg.URL)
	fmt.Fprintf(w, "🔢 Samples:            %d\n", cfg.Samples)
	fmt.Fprintf(w, "⏱️  Interval:           %.2f - %.2f sec\n", cfg.MinInterval, cfg.MaxInterval)
	fmt.Fprintf(w, "🔍 Filter:             %s\n", spec)
	if cfg.ExcludePattern != "" {
		fmt.Fprintf(w, "🚫 Exclude Pattern:    %s\n", cfg.ExcludePattern)
	}
	if len(cfg.ThreadStates) > 0 {
		fmt.Fprintf(w, "🧵 Thread States:      %v\n", cfg.ThreadStates)
	}
	fmt.Fprintf(w, "📄 Output File:        %s\n", cfg.OutputFile)
	if cfg.PprofFile != "" {
		fmt.Fprintf(w, "📦 pprof File:         %s\n", cfg.PprofFile)
	}
	if cfg.Pyroscope.Enabled() {
		fmt.Fprintf(w, "📤 Pyroscope:          %s (%s)\n", cfg.Pyroscope.URL, cfg.Pyroscope.AppName)
	}
	fmt.Fprintf(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "jvmscope",
		Short: "Sample JVM thread dumps and report method hotspots",
		Long: `Sample a running JVM through its HTTP thread dump endpoint
(e.g. Spring Boot Actuator /actuator/threaddump) at randomized intervals,
count how often each method is on a stack and at what call depth, and write
the result as a CSV report.

Examples:
  jvmscope --config config.json
  jvmscope --config config.yaml --output reports/orders.csv --pprof orders.pb.gz`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts, cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "config.json", "Path to the config file (JSON or YAML)")
	cmd.Flags().StringVarP(&opts.outputFile, "output", "o", "", "Path to the output CSV file (overrides output_file)")
	cmd.Flags().StringVar(&opts.pprofFile, "pprof", "", "Also write a pprof profile to this path (overrides pprof_file)")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "Log level: trace, debug, info, warn, error (overrides log_level)")
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	cmd.Flags().BoolVar(&opts.noBanner, "no-banner", false, "Do not print the startup banner")
	cmd.Flags().IntVar(&opts.top, "top", 10, "Number of hotspots to log when sampling ends")

	return cmd
}

// run loads the configuration, samples the target and writes the reports.
// The CSV report is written for every run that got past configuration, also
// when sampling ended early.
func run(ctx context.Context, opts options, stderr io.Writer) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.outputFile != "" {
		cfg.OutputFile = opts.outputFile
	}
	if opts.pprofFile != "" {
		cfg.PprofFile = opts.pprofFile
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if opts.debug {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logCfg := logging.Config{Level: cfg.LogLevel, Pretty: true, Output: stderr}
	logger := logging.New(logCfg)

	spec, err := filter.NewSpec(cfg.PackageFilter, cfg.MethodFilter).WithExclude(cfg.ExcludePattern)
	if err != nil {
		return fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}
	spec = spec.WithThreadStates(cfg.ThreadStates...)
	if cfg.PackageFilter != "" && cfg.MethodFilter != "" {
		logger.Warn().Msg("Both package_filter and method_filter are set; using method_filter")
	}

	client := collector.New(cfg.URL, cfg.Timeout(), logging.NewWithComponent(logCfg, "collector"))
	proc, err := processor.New(processor.Config{
		Samples:     cfg.Samples,
		MinInterval: cfg.MinWait(),
		MaxInterval: cfg.MaxWait(),
		Filter:      spec,
		Logger:      logging.NewWithComponent(logCfg, "processor"),
	}, client)
	if err != nil {
		return err
	}

	if !opts.noBanner {
		printWelcomeBanner(stderr, cfg, spec)
	}

	res := proc.Run(ctx)

	if err := report.WriteFile(cfg.OutputFile, res.Rows); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	logger.Info().Str("path", cfg.OutputFile).Int("methods", len(res.Rows)).Msg("Report written")
	report.Summary(logger, res.Rows, opts.top)

	export(ctx, logger, logCfg, cfg, spec, res)

	if res.Fatal() {
		return fmt.Errorf("no sample collected from %s: %w", cfg.URL, res.Err)
	}
	return nil
}

// export writes and uploads the pprof form of the result. Failures are logged
// and do not change the exit code since the CSV report already exists.
func export(ctx context.Context, logger zerolog.Logger, logCfg logging.Config, cfg *config.Config, spec filter.Spec, res *processor.Result) {
	if cfg.PprofFile == "" && !cfg.Pyroscope.Enabled() {
		return
	}

	prof := converter.ConvertRowsToPprof(res.Rows, res.Started, res.Finished,
		"url: "+cfg.URL,
		"filter: "+spec.String(),
		fmt.Sprintf("samples: %d/%d", res.Collected, res.Configured),
	)
	if prof == nil {
		logger.Info().Msg("Nothing recorded, skipping pprof export")
		return
	}

	if cfg.PprofFile != "" {
		if err := converter.WriteFile(cfg.PprofFile, prof); err != nil {
			logger.Error().Err(err).Msg("Failed to write pprof profile")
		} else {
			logger.Info().Str("path", cfg.PprofFile).Msg("pprof profile written")
		}
	}

	if cfg.Pyroscope.Enabled() {
		s := sender.New(sender.Config{
			PyroscopeURL: cfg.Pyroscope.URL,
			AuthToken:    cfg.Pyroscope.AuthToken,
			AppName:      cfg.Pyroscope.AppName,
			Tags:         cfg.Pyroscope.Tags,
		}, logging.NewWithComponent(logCfg, "sender"))
		s.SetSpan(res.Started, res.Finished)

		// The upload still happens after an interrupt.
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
		defer cancel()
		if err := s.SendSample(sendCtx, prof, converter.SampleTypeConfig); err != nil {
			logger.Error().Err(err).Msg("Failed to send profile to Pyroscope")
		}
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if errors.Is(err, config.ErrInvalidConfig) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
