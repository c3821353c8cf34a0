// Command draw-interactions draws the residue interaction diagram and its
// per-residue summary from a control file, an averaged decomposition table
// and consolidated hydrogen bonds.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"interdiag/internal/cmdutil"
	"interdiag/internal/control"
	"interdiag/internal/decomp"
	"interdiag/internal/diagram"
	"interdiag/internal/hbond"
	"interdiag/internal/logging"
	"interdiag/internal/warnings"
	"interdiag/internal/watch"
)

var exitFunc = os.Exit

func main() {
	exitFunc(cli(os.Args[1:], os.Stdout, os.Stderr))
}

type job struct {
	control, decomp, hbonds, compare string
	out, summary                     string
	format                           diagram.Format
	opts                             diagram.Options
}

func cli(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("draw-interactions", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: draw-interactions [-o] [-x] [-c compare] [-t thresh] [-l title] [-format png|svg] [-watch] control decomp hbonds thresh out summary")
		fs.PrintDefaults()
	}
	var j job
	j.opts = diagram.DefaultOptions()
	fs.BoolVar(&j.opts.OmitNone, "o", false, "omit residues without interactions unless marked with +")
	fs.BoolVar(&j.opts.OmitSameColumn, "x", false, "omit interactions between residues of the same column")
	fs.StringVar(&j.compare, "c", "", "averaged decomposition table to compare against")
	fs.Float64Var(&j.opts.CompareThreshold, "t", j.opts.CompareThreshold, "minimum change drawn when comparing, kcal/mol")
	fs.StringVar(&j.opts.Title, "l", "", "diagram title")
	format := fs.String("format", "", "png or svg (default: from the output extension)")
	rerun := fs.Bool("watch", false, "redraw whenever an input changes")
	if err := fs.Parse(args); err != nil {
		return cmdutil.ExitUsage
	}
	if fs.NArg() != 6 {
		fs.Usage()
		return cmdutil.ExitUsage
	}
	j.control, j.decomp, j.hbonds = fs.Arg(0), fs.Arg(1), fs.Arg(2)
	j.out, j.summary = fs.Arg(4), fs.Arg(5)
	thresh, err := strconv.Atoi(fs.Arg(3))
	if err != nil || thresh < 0 {
		fmt.Fprintf(stderr, "draw-interactions: hbond threshold %q is not a non-negative integer\n", fs.Arg(3))
		return cmdutil.ExitUsage
	}
	j.opts.HBondThreshold = thresh
	if j.format, err = outputFormat(*format, j.out); err != nil {
		fmt.Fprintf(stderr, "draw-interactions: %v\n", err)
		return cmdutil.ExitUsage
	}
	if j.compare != "" {
		j.opts.CompareLabel = filepath.Base(j.compare)
	}

	_, logger, err := cmdutil.Setup(stderr)
	if err != nil {
		return cmdutil.Fail(stderr, "draw-interactions", err)
	}
	if err := j.draw(stdout, logger); err != nil {
		return cmdutil.Fail(stderr, "draw-interactions", err)
	}
	if !*rerun {
		return cmdutil.ExitOK
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	inputs := []string{j.control, j.decomp, j.hbonds}
	if j.compare != "" {
		inputs = append(inputs, j.compare)
	}
	err = watch.Files(ctx, inputs, func(context.Context) error { return j.draw(stdout, logger) }, watch.WithLogger(logger))
	if err != nil {
		return cmdutil.Fail(stderr, "draw-interactions", err)
	}
	return cmdutil.ExitOK
}

func outputFormat(flagValue, out string) (diagram.Format, error) {
	if flagValue != "" {
		return diagram.ParseFormat(flagValue)
	}
	if f, err := diagram.ParseFormat(filepath.Ext(out)); err == nil {
		return f, nil
	}
	return diagram.FormatPNG, nil
}

func (j *job) draw(stdout io.Writer, logger logging.Logger) error {
	warn := warnings.New(logger)
	cf, err := os.Open(j.control)
	if err != nil {
		return fmt.Errorf("open control file: %w", err)
	}
	sheet, err := control.Read(j.control, cf, warn)
	cf.Close()
	if err != nil {
		return err
	}
	m, err := decomp.ReadTableFile(j.decomp, warn)
	if err != nil {
		return err
	}
	hf, err := os.Open(j.hbonds)
	if err != nil {
		return fmt.Errorf("open hbonds: %w", err)
	}
	bonds, err := hbond.Read(j.hbonds, hf, warn)
	hf.Close()
	if err != nil {
		return err
	}
	opts := j.opts
	if j.compare != "" {
		if opts.Compare, err = decomp.ReadTableFile(j.compare, warn); err != nil {
			return err
		}
	}
	d, err := diagram.Build(sheet, m, bonds, opts, warn)
	if err != nil {
		return err
	}
	if err := cmdutil.WriteFile(j.out, func(w io.Writer) error { return diagram.Render(w, d, j.format) }); err != nil {
		return err
	}
	if err := cmdutil.WriteFile(j.summary, func(w io.Writer) error { return diagram.WriteSummary(w, d) }); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s: %d residues, %d interactions, %d warnings\n", j.out, len(d.Placements), len(d.Edges), warn.Len())
	return nil
}
