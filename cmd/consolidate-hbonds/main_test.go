package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"interdiag/internal/testutil"
)

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := cli(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(b)
}

func TestCLISumsFramesAcrossFiles(t *testing.T) {
	dir := testutil.WriteFiles(t, t.TempDir(), map[string]string{
		"a.dat": testutil.HBondFile,
		"b.dat": testutil.HBondFile + "ASP_12@O  LEU_53@H  LEU_53@N  5  0.05  3.0  150.0\n",
	})
	out := filepath.Join(dir, "hbonds.csv")
	code, stdout, stderr := runCLI(t, filepath.Join(dir, "a.dat"), filepath.Join(dir, "b.dat"), out)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, stderr)
	}
	if got := readFile(t, out); got != "ASP  12,LEU  53,85\n" {
		t.Fatalf("unexpected output %q", got)
	}
	if !strings.Contains(stdout, "1 residue pairs from 2 files") {
		t.Fatalf("unexpected summary %q", stdout)
	}
}

func TestCLIFoldsRepeats(t *testing.T) {
	dir := testutil.WriteFiles(t, t.TempDir(), map[string]string{"a.dat": testutil.HBondFile})
	out := filepath.Join(dir, "hbonds.csv")
	if code, _, stderr := runCLI(t, "-r", "50", filepath.Join(dir, "a.dat"), out); code != 0 {
		t.Fatalf("exit %d: %s", code, stderr)
	}
	if got := readFile(t, out); got != "LEU   3,ASP  12,40\n" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestCLIErrors(t *testing.T) {
	dir := t.TempDir()
	if code, _, _ := runCLI(t, filepath.Join(dir, "out.csv")); code != 2 {
		t.Fatalf("expected usage exit, got %d", code)
	}
	if code, _, _ := runCLI(t, "-r", "-3", "a.dat", "out.csv"); code != 2 {
		t.Fatalf("expected usage exit for negative repeat, got %d", code)
	}
	code, _, stderr := runCLI(t, filepath.Join(dir, "missing.dat"), filepath.Join(dir, "out.csv"))
	if code != 1 || !strings.Contains(stderr, "consolidate-hbonds:") {
		t.Fatalf("expected failure, got %d %q", code, stderr)
	}
}

// TestMainExitCodes invokes main with a patched exitFunc.
func TestMainExitCodes(t *testing.T) {
	dir := testutil.WriteFiles(t, t.TempDir(), map[string]string{"a.dat": testutil.HBondFile})
	var codes []int
	oldExit, oldArgs := exitFunc, os.Args
	exitFunc = func(code int) { codes = append(codes, code) }
	defer func() { exitFunc, os.Args = oldExit, oldArgs }()

	os.Args = []string{"consolidate-hbonds", filepath.Join(dir, "a.dat"), filepath.Join(dir, "out.csv")}
	main()
	os.Args = []string{"consolidate-hbonds"}
	main()
	if len(codes) != 2 || codes[0] != 0 || codes[1] != 2 {
		t.Fatalf("unexpected exit codes: %v", codes)
	}
}
