// Command decomp-table averages per-replicate pairwise energy decomposition
// tables into one residue by residue matrix.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"interdiag/internal/cmdutil"
	"interdiag/internal/decomp"
	"interdiag/internal/warnings"
)

var exitFunc = os.Exit

func main() {
	exitFunc(cli(os.Args[1:], os.Stdout, os.Stderr))
}

func cli(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("decomp-table", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: decomp-table [-t threshold] [-z] [-column n] in1 [in2 ...] out")
		fs.PrintDefaults()
	}
	opts := decomp.DefaultOptions()
	fs.Float64Var(&opts.Threshold, "t", opts.Threshold, "blank averaged energies whose magnitude is below `threshold` kcal/mol")
	fs.BoolVar(&opts.OmitZero, "z", false, "omit residues without any energy above the threshold")
	fs.IntVar(&opts.ValueColumn, "column", opts.ValueColumn, "zero-based index of the energy column")
	if err := fs.Parse(args); err != nil {
		return cmdutil.ExitUsage
	}
	if fs.NArg() < 2 {
		fs.Usage()
		return cmdutil.ExitUsage
	}
	if opts.Threshold < 0 {
		fmt.Fprintln(stderr, "decomp-table: threshold must not be negative")
		return cmdutil.ExitUsage
	}
	inputs, out := fs.Args()[:fs.NArg()-1], fs.Arg(fs.NArg()-1)

	_, logger, err := cmdutil.Setup(stderr)
	if err != nil {
		return cmdutil.Fail(stderr, "decomp-table", err)
	}
	warn := warnings.New(logger)
	m, err := decomp.Aggregate(inputs, opts, warn)
	if err != nil {
		var incomplete *decomp.IncompleteError
		if errors.As(err, &incomplete) {
			logger.Error("decomposition tables disagree", "files", incomplete.Files, "missing_pairs", len(incomplete.Missing))
		}
		return cmdutil.Fail(stderr, "decomp-table", err)
	}
	if err := cmdutil.WriteFile(out, func(w io.Writer) error { return decomp.WriteTable(w, m) }); err != nil {
		return cmdutil.Fail(stderr, "decomp-table", err)
	}
	fmt.Fprintf(stdout, "%s: %d residues, %d significant pairs from %d files\n", out, len(m.Residues()), len(m.Pairs()), len(inputs))
	return cmdutil.ExitOK
}
