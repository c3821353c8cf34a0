// Command interdiag runs manifest-driven diagram pipelines and lists the
// recorded runs.
//
//	interdiag run -manifest run.yaml [-watch]
//	interdiag runs [-limit n]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"interdiag/internal/blob"
	"interdiag/internal/cmdutil"
	"interdiag/internal/config"
	"interdiag/internal/ledger"
	"interdiag/internal/logging"
	"interdiag/internal/observability"
	"interdiag/internal/pipeline"
	"interdiag/internal/watch"
)

var exitFunc = os.Exit

func main() {
	exitFunc(cli(os.Args[1:], os.Stdout, os.Stderr))
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: interdiag run -manifest file.yaml [-watch]")
	fmt.Fprintln(w, "       interdiag runs [-limit n]")
}

func cli(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return cmdutil.ExitUsage
	}
	switch args[0] {
	case "run":
		return runCmd(args[1:], stdout, stderr)
	case "runs":
		return runsCmd(args[1:], stdout, stderr)
	case "-h", "-help", "--help", "help":
		usage(stdout)
		return cmdutil.ExitOK
	default:
		fmt.Fprintf(stderr, "interdiag: unknown command %q\n", args[0])
		usage(stderr)
		return cmdutil.ExitUsage
	}
}

func runCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("interdiag run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	manifestPath := fs.String("manifest", "", "pipeline manifest (YAML)")
	rerun := fs.Bool("watch", false, "re-run whenever the manifest or an input changes")
	if err := fs.Parse(args); err != nil {
		return cmdutil.ExitUsage
	}
	if *manifestPath == "" || fs.NArg() != 0 {
		fs.Usage()
		return cmdutil.ExitUsage
	}

	cfg, logger, err := cmdutil.Setup(stderr)
	if err != nil {
		return cmdutil.Fail(stderr, "interdiag", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner, closeAll, err := newRunner(ctx, cfg, logger)
	if err != nil {
		return cmdutil.Fail(stderr, "interdiag", err)
	}
	defer closeAll()

	once := func(ctx context.Context) error {
		m, err := pipeline.LoadManifest(*manifestPath)
		if err != nil {
			return err
		}
		run, err := runner.Run(ctx, m)
		if cfg.MetricsTextfile != "" {
			if werr := runner.Metrics.WriteTextfile(cfg.MetricsTextfile); werr != nil {
				logger.Warn("write metrics textfile", "path", cfg.MetricsTextfile, "error", werr)
			}
		}
		if run.ID != "" {
			printRun(stdout, run)
		}
		return err
	}

	if err := once(ctx); err != nil && !*rerun {
		return cmdutil.Fail(stderr, "interdiag", err)
	} else if err != nil {
		logger.Error("run failed", "error", err)
	}
	if !*rerun {
		return cmdutil.ExitOK
	}
	m, err := pipeline.LoadManifest(*manifestPath)
	if err != nil {
		return cmdutil.Fail(stderr, "interdiag", err)
	}
	paths := append([]string{*manifestPath}, m.Paths()...)
	if err := watch.Files(ctx, paths, once, watch.WithLogger(logger)); err != nil {
		return cmdutil.Fail(stderr, "interdiag", err)
	}
	return cmdutil.ExitOK
}

func newRunner(ctx context.Context, cfg config.Config, logger logging.Logger) (*pipeline.Runner, func(), error) {
	store, err := blob.Open(ctx, cfg.Blob, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open artifact store: %w", err)
	}
	led, err := ledger.Open(ctx, cfg.Ledger)
	if err != nil {
		return nil, nil, fmt.Errorf("open ledger: %w", err)
	}
	tracer, err := observability.NewTracer(ctx, cfg.ServiceName, cfg.OTLPEndpoint, cfg.OTLPInsecure)
	if err != nil {
		_ = led.Close()
		return nil, nil, err
	}
	closeAll := func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracer.Shutdown(sctx); err != nil {
			logger.Warn("flush traces", "error", err)
		}
		if err := led.Close(); err != nil {
			logger.Warn("close ledger", "error", err)
		}
	}
	return &pipeline.Runner{
		Store:   store,
		Ledger:  led,
		Logger:  logger,
		Metrics: observability.NewRecorder("interdiag"),
		Tracer:  tracer,
	}, closeAll, nil
}

func printRun(w io.Writer, run ledger.Run) {
	fmt.Fprintf(w, "run %s %s (%d warnings)\n", run.ID, run.Status, len(run.Warnings))
	for _, a := range run.Artifacts {
		fmt.Fprintf(w, "  %s\n", a)
	}
	if run.Error != "" {
		fmt.Fprintf(w, "  error: %s\n", run.Error)
	}
}

func runsCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("interdiag runs", flag.ContinueOnError)
	fs.SetOutput(stderr)
	limit := fs.Int("limit", 20, "maximum number of runs to list (0 for all)")
	if err := fs.Parse(args); err != nil {
		return cmdutil.ExitUsage
	}
	if fs.NArg() != 0 || *limit < 0 {
		fs.Usage()
		return cmdutil.ExitUsage
	}
	cfg, _, err := cmdutil.Setup(stderr)
	if err != nil {
		return cmdutil.Fail(stderr, "interdiag", err)
	}
	ctx := context.Background()
	led, err := ledger.Open(ctx, cfg.Ledger)
	if err != nil {
		return cmdutil.Fail(stderr, "interdiag", fmt.Errorf("open ledger: %w", err))
	}
	defer led.Close()
	runs, err := led.List(ctx, *limit)
	if err != nil {
		return cmdutil.Fail(stderr, "interdiag", err)
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tSTARTED\tDURATION\tWARNINGS\tINPUTS")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			r.ID, r.Name, r.Status, r.StartedAt.Format(time.RFC3339), r.Duration().Round(time.Millisecond),
			len(r.Warnings), inputsLabel(r.Inputs))
	}
	if err := tw.Flush(); err != nil {
		return cmdutil.Fail(stderr, "interdiag", err)
	}
	return cmdutil.ExitOK
}

func inputsLabel(inputs []string) string {
	switch len(inputs) {
	case 0:
		return "-"
	case 1:
		return filepath.Base(inputs[0])
	default:
		return fmt.Sprintf("%s +%d", filepath.Base(inputs[0]), len(inputs)-1)
	}
}
