// Command interaction-control derives a diagram control file from the
// consolidated hydrogen bonds, the averaged decomposition table and a residue
// mapping.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"interdiag/internal/cmdutil"
	"interdiag/internal/control"
	"interdiag/internal/decomp"
	"interdiag/internal/hbond"
	"interdiag/internal/residue"
	"interdiag/internal/warnings"
)

var exitFunc = os.Exit

func main() {
	exitFunc(cli(os.Args[1:], os.Stdout, os.Stderr))
}

func cli(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("interaction-control", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: interaction-control -m mapping [-c order] hbonds decomp out")
		fs.PrintDefaults()
	}
	mappingPath := fs.String("m", "", "residue mapping CSV with from,to,chain columns (required)")
	order := fs.String("c", "", "chain letters left to right, e.g. \"AB\" (default: mapping order)")
	if err := fs.Parse(args); err != nil {
		return cmdutil.ExitUsage
	}
	if *mappingPath == "" || fs.NArg() != 3 {
		fs.Usage()
		return cmdutil.ExitUsage
	}

	_, logger, err := cmdutil.Setup(stderr)
	if err != nil {
		return cmdutil.Fail(stderr, "interaction-control", err)
	}
	warn := warnings.New(logger)
	entries, err := build(*mappingPath, *order, fs.Arg(0), fs.Arg(1), warn)
	if err != nil {
		if errors.Is(err, residue.ErrUnmapped) {
			logger.Error("add the residue to the mapping file", "mapping", *mappingPath)
		}
		return cmdutil.Fail(stderr, "interaction-control", err)
	}
	if err := cmdutil.WriteFile(fs.Arg(2), func(w io.Writer) error { return control.Write(w, entries) }); err != nil {
		return cmdutil.Fail(stderr, "interaction-control", err)
	}
	fmt.Fprintf(stdout, "%s: %d residues\n", fs.Arg(2), len(entries))
	return cmdutil.ExitOK
}

func build(mappingPath, order, hbondsPath, decompPath string, warn *warnings.Log) ([]control.Entry, error) {
	mf, err := os.Open(mappingPath)
	if err != nil {
		return nil, fmt.Errorf("open mapping: %w", err)
	}
	mapping, err := residue.ReadMapping(mf)
	mf.Close()
	if err != nil {
		return nil, err
	}
	hf, err := os.Open(hbondsPath)
	if err != nil {
		return nil, fmt.Errorf("open hbonds: %w", err)
	}
	bonds, err := hbond.Read(hbondsPath, hf, warn)
	hf.Close()
	if err != nil {
		return nil, err
	}
	m, err := decomp.ReadTableFile(decompPath, warn)
	if err != nil {
		return nil, err
	}
	return control.Build(bonds.Residues(), m.Residues(), mapping, order)
}
