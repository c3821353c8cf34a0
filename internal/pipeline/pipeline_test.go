package pipeline

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interdiag/internal/blob"
	"interdiag/internal/config"
	"interdiag/internal/decomp"
	"interdiag/internal/ledger"
	"interdiag/internal/observability"
	"interdiag/internal/testutil"
)

type fixture struct {
	dir      string
	manifest string
}

func writeFixture(t *testing.T, extra string, skip [2]string) fixture {
	t.Helper()
	dir := t.TempDir()
	energy := testutil.Energies()
	files := map[string]string{
		"r1.csv":      testutil.RawDecomp(energy, [2]string{}),
		"r2.csv":      testutil.RawDecomp(energy, skip),
		"hb1.dat":     testutil.HBondFile,
		"mapping.csv": testutil.MappingFile,
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	manifest := `name: wt
decomp:
  inputs: [r1.csv, r2.csv]
hbonds:
  inputs: [hb1.dat]
control:
  mapping: mapping.csv
diagram:
  title: Wild type
  hbond_threshold: 10
` + extra
	path := filepath.Join(dir, "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(manifest), 0o644))
	return fixture{dir: dir, manifest: path}
}

func newRunner(store blob.Store) (*Runner, ledger.Store) {
	led := ledger.NewMemory()
	var n atomic.Int64
	return &Runner{
		Store:   store,
		Ledger:  led,
		Metrics: observability.NewRecorder("interdiag"),
		NewID:   func() string { return "run-" + string(rune('0'+n.Add(1))) },
	}, led
}

func readArtifact(t *testing.T, store blob.Store, key string) string {
	t.Helper()
	_, rc, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(b)
}

func TestRunStoresArtifactsAndRecordsLedger(t *testing.T) {
	fx := writeFixture(t, "", [2]string{})
	m, err := LoadManifest(fx.manifest)
	require.NoError(t, err)
	store := blob.NewMemory()
	runner, led := newRunner(store)

	run, err := runner.Run(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusSucceeded, run.Status)
	assert.Equal(t, 3, run.Residues)
	assert.Equal(t, 2, run.Pairs)
	assert.Equal(t, 1, run.HBonds)
	assert.Equal(t, []string{
		"runs/run-1/decomp.csv",
		"runs/run-1/hbonds.csv",
		"runs/run-1/control.csv",
		"runs/run-1/diagram.png",
		"runs/run-1/summary.csv",
	}, run.Artifacts)

	assert.Equal(t, "ASP  12,LEU  53,40\n", readArtifact(t, store, "runs/run-1/hbonds.csv"))
	summary := readArtifact(t, store, "runs/run-1/summary.csv")
	assert.Contains(t, summary, "Column,Chain,Residue,Total\n")
	assert.Contains(t, summary, "A,L53,4\n")
	assert.Contains(t, summary, "B,D12,6\n")
	img := readArtifact(t, store, "runs/run-1/diagram.png")
	assert.True(t, strings.HasPrefix(img, "\x89PNG"))

	stored, err := led.Get(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusSucceeded, stored.Status)
	assert.False(t, stored.FinishedAt.IsZero())
	assert.Equal(t, m.Paths(), stored.Inputs)
}

func TestRunWithCompareAndPrebuiltControl(t *testing.T) {
	fx := writeFixture(t, "  compare: wt.csv\n  format: svg\n", [2]string{})
	require.NoError(t, os.WriteFile(filepath.Join(fx.dir, "wt.csv"),
		[]byte("Res,GLY   7,ASP  12,LEU  53\nGLY   7,,-2,\nASP  12,-2,,-1\nLEU  53,,-1,\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(fx.dir, "control.csv"),
		[]byte("Col,Id,Legend,Chain,Fill\n1,LEU  53,L53,A,Hydro\n1,GLY   7,G7,A,Hydro\n2,ASP  12,D12,B,#00FF00\n"), 0o644))
	m, err := LoadManifest(fx.manifest)
	require.NoError(t, err)
	m.Control.File = filepath.Join(fx.dir, "control.csv")

	store := blob.NewMemory()
	runner, _ := newRunner(store)
	run, err := runner.Run(context.Background(), m)
	require.NoError(t, err)
	assert.Contains(t, run.Artifacts, "runs/run-1/diagram.svg")
	assert.Contains(t, readArtifact(t, store, "runs/run-1/diagram.svg"), "<svg")
	assert.True(t, strings.HasPrefix(readArtifact(t, store, "runs/run-1/control.csv"), "Col,Id,Legend,Chain,Fill\n1,LEU  53"))
	// |-4| - |-1| = 3 for L53-D12; G7-D12 is unchanged and dropped.
	assert.Contains(t, readArtifact(t, store, "runs/run-1/summary.csv"), "1,A,L53,3\n")
}

func TestRunIncompleteDecompFailsRun(t *testing.T) {
	fx := writeFixture(t, "", [2]string{"LEU  53", "ASP  12"})
	m, err := LoadManifest(fx.manifest)
	require.NoError(t, err)
	// Both directions must be missing for the pair to be absent from r2.
	require.NoError(t, os.WriteFile(m.Decomp.Inputs[1], []byte(strings.ReplaceAll(
		testutil.RawDecomp(map[[2]string]string{}, [2]string{"LEU  53", "ASP  12"}),
		"ASP  12,LEU  53"+strings.Repeat(",0.0", decomp.DefaultValueColumn-2)+",0.0\n", "")), 0o644))

	store := blob.NewMemory()
	runner, led := newRunner(store)
	run, err := runner.Run(context.Background(), m)
	require.Error(t, err)
	var incomplete *decomp.IncompleteError
	assert.True(t, errors.As(err, &incomplete), "error %v", err)
	assert.Equal(t, ledger.StatusFailed, run.Status)
	assert.Empty(t, run.Artifacts)

	stored, err := led.Get(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusFailed, stored.Status)
	assert.Contains(t, stored.Error, "decomp stage")
}

func TestRunMissingHBondInputKeepsEarlierArtifacts(t *testing.T) {
	fx := writeFixture(t, "", [2]string{})
	m, err := LoadManifest(fx.manifest)
	require.NoError(t, err)
	require.NoError(t, os.Remove(m.HBonds.Inputs[0]))

	runner, _ := newRunner(blob.NewMemory())
	run, err := runner.Run(context.Background(), m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hbond stage")
	assert.Equal(t, []string{"runs/run-1/decomp.csv"}, run.Artifacts)
}

func TestRunOnS3Store(t *testing.T) {
	fx := writeFixture(t, "", [2]string{})
	m, err := LoadManifest(fx.manifest)
	require.NoError(t, err)
	store, setFailing := blob.NewMockS3ForTests()
	runner, _ := newRunner(store)

	run, err := runner.Run(context.Background(), m)
	require.NoError(t, err)
	infos, err := store.List(context.Background(), "runs/"+run.ID+"/")
	require.NoError(t, err)
	assert.Len(t, infos, 5)

	setFailing(true)
	run, err = runner.Run(context.Background(), m)
	require.Error(t, err)
	assert.Equal(t, ledger.StatusFailed, run.Status)
}

func TestRunHonoursCancellation(t *testing.T) {
	fx := writeFixture(t, "", [2]string{})
	m, err := LoadManifest(fx.manifest)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	runner, _ := newRunner(blob.NewMemory())
	_, err = runner.Run(ctx, m)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunDrawsFromStoredTable(t *testing.T) {
	fx := writeFixture(t, "", [2]string{})
	energy := map[[2]string]string{{"LEU  53", "ASP  12"}: "-4.004", {"GLY   7", "ASP  12"}: "-2.004"}
	testutil.WriteFiles(t, fx.dir, map[string]string{
		"r1.csv": testutil.RawDecomp(energy, [2]string{}),
		"r2.csv": testutil.RawDecomp(energy, [2]string{}),
	})
	m, err := LoadManifest(fx.manifest)
	require.NoError(t, err)
	store := blob.NewMemory()
	runner, _ := newRunner(store)

	_, err = runner.Run(context.Background(), m)
	require.NoError(t, err)
	// 4.00 + 2.00 from the rounded table, not 6.01 from the raw means.
	assert.Contains(t, readArtifact(t, store, "runs/run-1/summary.csv"), "2,B,D12,6\n")
}

// cancelAfterPut cancels the run once the first artifact is stored.
type cancelAfterPut struct {
	blob.Store
	cancel context.CancelFunc
}

func (c cancelAfterPut) Put(ctx context.Context, key string, r io.Reader, opts blob.PutOptions) (blob.Info, error) {
	info, err := c.Store.Put(ctx, key, r, opts)
	c.cancel()
	return info, err
}

func TestCancelledRunIsRecordedAsFailed(t *testing.T) {
	fx := writeFixture(t, "", [2]string{})
	m, err := LoadManifest(fx.manifest)
	require.NoError(t, err)
	led, err := ledger.Open(context.Background(), config.Ledger{Driver: "sqlite", SQLitePath: filepath.Join(fx.dir, "ledger.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = led.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runner, _ := newRunner(cancelAfterPut{Store: blob.NewMemory(), cancel: cancel})
	runner.Ledger = led

	run, err := runner.Run(ctx, m)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, ledger.StatusFailed, run.Status)

	stored, err := led.Get(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusFailed, stored.Status)
	assert.False(t, stored.FinishedAt.IsZero())
	assert.Equal(t, []string{"runs/" + run.ID + "/decomp.csv"}, stored.Artifacts)
}

func TestParseManifest(t *testing.T) {
	m, err := ParseManifest(strings.NewReader("name: x\ndecomp:\n  inputs: [a.csv]\nhbonds:\n  inputs: [/abs/h.dat]\ncontrol:\n  file: c.csv\n"), "/data")
	require.NoError(t, err)
	assert.Equal(t, decomp.DefaultThreshold, m.Decomp.Threshold)
	assert.Equal(t, decomp.DefaultValueColumn, m.Decomp.ValueColumn)
	assert.Equal(t, "png", m.Diagram.Format)
	assert.Equal(t, []string{"/data/a.csv"}, m.Decomp.Inputs)
	assert.Equal(t, []string{"/abs/h.dat"}, m.HBonds.Inputs)
	assert.Equal(t, "/data/c.csv", m.Control.File)

	_, err = ParseManifest(strings.NewReader("name: x\ndecomp:\n  inputs: [a]\nhbonds:\n  inputs: [b]\n"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Mapping is required when File is not set")

	_, err = ParseManifest(strings.NewReader("name: x\nbogus: 1\n"), "")
	require.Error(t, err)

	_, err = ParseManifest(strings.NewReader("name: x\ndecomp:\n  inputs: []\nhbonds:\n  inputs: [b]\ncontrol:\n  file: c\ndiagram:\n  format: pdf\n"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Inputs must have at least 1 entries")
	assert.Contains(t, err.Error(), "Format must be one of: png svg")
}
