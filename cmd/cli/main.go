package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/nomis52/flowscope/buildinfo"
	"github.com/nomis52/flowscope/config"
	"github.com/nomis52/flowscope/logging"
	"github.com/nomis52/flowscope/metrics"
	"github.com/nomis52/flowscope/workflows"
)

type Args struct {
	ConfigPath  string
	ShowVersion bool
	Validate    bool
	DumpMetrics bool
}

// errTasksRejected is returned after the report is printed if any task was rejected.
var errTasksRejected = errors.New("one or more tasks were rejected")

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(argv []string, stdout, stderr io.Writer) error {
	args, err := parseArgs(argv, stderr)
	if err != nil {
		return err
	}

	if args.ShowVersion {
		fmt.Fprintln(stdout, buildinfo.Get())
		return nil
	}

	if args.ConfigPath == "" {
		return fmt.Errorf("config flag (-c or --config) is required")
	}

	cfg, err := config.LoadConfig(args.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if args.Validate {
		fmt.Fprintf(stdout, "Configuration validation successful: %s\n", args.ConfigPath)
		return nil
	}

	logger, err := logging.New(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Output:    cfg.Logging.Output,
		AddSource: cfg.Logging.AddSource,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Close()

	props := buildinfo.Get()
	logger.Info("flowscope started",
		"version", props.Version,
		"git_commit", props.GitCommit,
		"config_path", args.ConfigPath,
	)

	registry, scrape, err := newRegistry(cfg.Monitoring, logger)
	if err != nil {
		return err
	}
	builderMetrics, err := metrics.NewBuilderMetrics(registry)
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	b, buildErr := workflows.FromConfig(cfg.Workflow, workflows.Params{
		Logger:  logger.Logger,
		Metrics: builderMetrics,
	})
	if b == nil {
		return buildErr
	}
	if buildErr != nil {
		logger.Error("workflow has rejected tasks", "error", buildErr)
	}

	fmt.Fprintln(stdout, b.Build())

	if push, ok := registry.(*metrics.PushRegistry); ok {
		ctx, cancel := context.WithTimeout(context.Background(), metrics.DefaultTimeout)
		defer cancel()
		if err := push.Close(ctx); err != nil {
			logger.Warn("metrics not fully pushed", "error", err)
		}
	}

	if args.DumpMetrics && scrape != nil {
		if err := scrape.WriteText(stderr); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}

	if buildErr != nil {
		return errTasksRejected
	}
	logger.Info("workflow built", "workflow", b.Name(), "tasks", b.Len())
	return nil
}

// newRegistry returns a push registry if a remote write URL is configured,
// otherwise a scrape registry that can be dumped locally.
func newRegistry(cfg config.MonitoringConfig, logger *logging.Logger) (metrics.Registry, *metrics.ScrapeRegistry, error) {
	if cfg.VictoriaMetricsURL != "" {
		hostname, err := os.Hostname()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get hostname: %w", err)
		}
		return metrics.NewPushRegistry(metrics.PushConfig{
			URL:      cfg.VictoriaMetricsURL,
			Prefix:   cfg.MetricsPrefix,
			Job:      cfg.JobName,
			Instance: hostname,
			Logger:   logger.Logger,
		}), nil, nil
	}

	scrape, err := metrics.NewScrapeRegistry()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create metrics registry: %w", err)
	}
	return scrape, scrape, nil
}

func parseArgs(argv []string, output io.Writer) (Args, error) {
	fs := flag.NewFlagSet("flowscope", flag.ContinueOnError)
	fs.SetOutput(output)

	configPath := fs.String("config", "", "Path to config file")
	configPathShort := fs.String("c", "", "Path to config file (shorthand)")
	showVersion := fs.Bool("version", false, "Show version information")
	versionShort := fs.Bool("v", false, "Show version information (shorthand)")
	validate := fs.Bool("validate", false, "Validate configuration and exit")
	dumpMetrics := fs.Bool("metrics", false, "Write metrics to stderr after the report")

	fs.Usage = func() {
		fmt.Fprintf(output, "Usage: flowscope [options]\n")
		fmt.Fprintf(output, "\nBuild a workflow from its definition and print a summary\n\n")
		fmt.Fprintf(output, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(output, "\nExamples:\n")
		fmt.Fprintf(output, "  flowscope --config workflow.yaml\n")
		fmt.Fprintf(output, "  flowscope --config workflow.yaml --validate\n")
		fmt.Fprintf(output, "  flowscope --version\n")
	}

	if err := fs.Parse(argv); err != nil {
		return Args{}, err
	}

	path := *configPath
	if path == "" {
		path = *configPathShort
	}

	return Args{
		ConfigPath:  path,
		ShowVersion: *showVersion || *versionShort,
		Validate:    *validate,
		DumpMetrics: *dumpMetrics,
	}, nil
}
