// Command consolidate-hbonds sums hydrogen-bond frame counts per residue
// pair across hbond average files.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"interdiag/internal/cmdutil"
	"interdiag/internal/hbond"
	"interdiag/internal/warnings"
)

var exitFunc = os.Exit

func main() {
	exitFunc(cli(os.Args[1:], os.Stdout, os.Stderr))
}

func cli(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("consolidate-hbonds", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: consolidate-hbonds [-r repeat] in1 [in2 ...] out")
		fs.PrintDefaults()
	}
	repeat := fs.Int("r", hbond.NoFolding, "fold residue numbers of a homo-oligomer with `repeat` residues per monomer")
	if err := fs.Parse(args); err != nil {
		return cmdutil.ExitUsage
	}
	if fs.NArg() < 2 || *repeat < 0 {
		fs.Usage()
		return cmdutil.ExitUsage
	}
	inputs, out := fs.Args()[:fs.NArg()-1], fs.Arg(fs.NArg()-1)

	_, logger, err := cmdutil.Setup(stderr)
	if err != nil {
		return cmdutil.Fail(stderr, "consolidate-hbonds", err)
	}
	m, err := hbond.Consolidate(inputs, *repeat, warnings.New(logger))
	if err != nil {
		return cmdutil.Fail(stderr, "consolidate-hbonds", err)
	}
	if err := cmdutil.WriteFile(out, func(w io.Writer) error { return hbond.Write(w, m) }); err != nil {
		return cmdutil.Fail(stderr, "consolidate-hbonds", err)
	}
	fmt.Fprintf(stdout, "%s: %d residue pairs from %d files\n", out, m.Len(), len(inputs))
	return cmdutil.ExitOK
}
