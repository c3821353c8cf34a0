package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"interdiag/internal/blob"
	"interdiag/internal/control"
	"interdiag/internal/decomp"
	"interdiag/internal/diagram"
	"interdiag/internal/hbond"
	"interdiag/internal/ledger"
	"interdiag/internal/logging"
	"interdiag/internal/observability"
	"interdiag/internal/residue"
	"interdiag/internal/warnings"
)

// Artifact names written under runs/<run-id>/.
const (
	ArtifactDecomp  = "decomp.csv"
	ArtifactHBonds  = "hbonds.csv"
	ArtifactControl = "control.csv"
	ArtifactSummary = "summary.csv"
	artifactDiagram = "diagram"
)

// Stage names used for metrics, spans and warnings.
const (
	StageDecomp  = "decomp"
	StageHBond   = "hbond"
	StageControl = "control"
	StageDraw    = "diagram"
)

// Runner executes manifests. Store and Ledger are required; the rest are
// optional.
type Runner struct {
	Store   blob.Store
	Ledger  ledger.Store
	Logger  logging.Logger
	Metrics *observability.Recorder
	Tracer  *observability.Tracer

	// NewID and Now are replaced in tests.
	NewID func() string
	Now   func() time.Time
}

// RunKey returns the artifact key of name within run id.
func RunKey(id, name string) string { return path.Join("runs", id, name) }

type execution struct {
	r    *Runner
	m    *Manifest
	run  ledger.Run
	warn *warnings.Log

	matrix *decomp.Matrix
	bonds  *hbond.Map
	sheet  *control.Sheet
}

// Run executes every stage of m. The run is recorded before the first stage
// and again when it finishes; a failed stage marks the run failed and its
// error is returned together with the recorded run.
func (r *Runner) Run(ctx context.Context, m *Manifest) (ledger.Run, error) {
	logger := r.logger()
	newID := r.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	now := r.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	ctx, span := r.Tracer.Start(ctx, "run")
	x := &execution{
		r: r,
		m: m,
		run: ledger.Run{
			ID:        newID(),
			Name:      m.Name,
			Status:    ledger.StatusRunning,
			StartedAt: now(),
			Inputs:    m.Paths(),
		},
		warn: warnings.New(logger),
	}
	span.SetAttributes(attribute.String("run.id", x.run.ID), attribute.String("run.name", m.Name))
	if err := r.Ledger.Record(ctx, x.run); err != nil {
		span.End(err)
		return x.run, fmt.Errorf("record run start: %w", err)
	}
	logger.Info("run started", "run", x.run.ID, "name", m.Name)

	err := x.execute(ctx)

	x.run.FinishedAt = now()
	for _, e := range x.warn.Entries() {
		x.run.Warnings = append(x.run.Warnings, e.Stage+": "+e.Message)
	}
	x.run.Status = ledger.StatusSucceeded
	if err != nil {
		x.run.Status = ledger.StatusFailed
		x.run.Error = err.Error()
	}
	r.Metrics.ObserveRun(string(x.run.Status))
	// A cancelled run must still leave its final state in the ledger.
	if rerr := r.Ledger.Record(context.WithoutCancel(ctx), x.run); rerr != nil && err == nil {
		err = fmt.Errorf("record run result: %w", rerr)
	}
	span.End(err)
	if err != nil {
		logger.Error("run failed", "run", x.run.ID, "error", err)
		return x.run, err
	}
	logger.Info("run finished", "run", x.run.ID, "duration", x.run.Duration().String(),
		"artifacts", len(x.run.Artifacts), "warnings", len(x.run.Warnings))
	return x.run, nil
}

func (r *Runner) logger() logging.Logger {
	if r.Logger == nil {
		return logging.Nop()
	}
	return r.Logger
}

func (x *execution) execute(ctx context.Context) error {
	stages := []struct {
		name string
		fn   func(context.Context) error
	}{
		{StageDecomp, x.aggregate},
		{StageHBond, x.consolidate},
		{StageControl, x.control},
		{StageDraw, x.draw},
	}
	for _, s := range stages {
		if err := x.stage(ctx, s.name, s.fn); err != nil {
			return fmt.Errorf("%s stage: %w", s.name, err)
		}
	}
	return nil
}

func (x *execution) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ctx, span := x.r.Tracer.Start(ctx, name)
	before := x.warn.Len()
	start := time.Now()
	err := fn(ctx)
	x.r.Metrics.Observe(ctx, name, err == nil, time.Since(start))
	x.r.Metrics.AddWarnings(name, x.warn.Len()-before)
	span.SetAttributes(attribute.Int("warnings", x.warn.Len()-before))
	span.End(err)
	return err
}

func (x *execution) put(ctx context.Context, stage, name, contentType string, body []byte) error {
	key := RunKey(x.run.ID, name)
	_, err := x.r.Store.Put(ctx, key, bytes.NewReader(body), blob.PutOptions{
		ContentType: contentType,
		Metadata:    map[string]string{"run": x.run.ID, "stage": stage},
	})
	if err != nil {
		return fmt.Errorf("store %s: %w", name, err)
	}
	x.run.Artifacts = append(x.run.Artifacts, key)
	return nil
}

func (x *execution) aggregate(ctx context.Context) error {
	opts := decomp.Options{
		Threshold:   x.m.Decomp.Threshold,
		OmitZero:    x.m.Decomp.OmitZero,
		ValueColumn: x.m.Decomp.ValueColumn,
	}
	m, err := decomp.Aggregate(x.m.Decomp.Inputs, opts, x.warn)
	if err != nil {
		return err
	}
	x.run.Residues = len(m.Residues())
	x.run.Pairs = len(m.Pairs())
	var buf bytes.Buffer
	if err := decomp.WriteTable(&buf, m); err != nil {
		return err
	}
	// Later stages see the stored two-decimal table, as draw-interactions does.
	if x.matrix, err = decomp.ReadTable(ArtifactDecomp, bytes.NewReader(buf.Bytes()), x.warn); err != nil {
		return err
	}
	return x.put(ctx, StageDecomp, ArtifactDecomp, "text/csv", buf.Bytes())
}

func (x *execution) consolidate(ctx context.Context) error {
	bonds, err := hbond.Consolidate(x.m.HBonds.Inputs, x.m.HBonds.Repeat, x.warn)
	if err != nil {
		return err
	}
	x.bonds = bonds
	x.run.HBonds = bonds.Len()
	var buf bytes.Buffer
	if err := hbond.Write(&buf, bonds); err != nil {
		return err
	}
	return x.put(ctx, StageHBond, ArtifactHBonds, "text/csv", buf.Bytes())
}

func (x *execution) control(ctx context.Context) error {
	var raw []byte
	if x.m.Control.File != "" {
		b, err := os.ReadFile(x.m.Control.File)
		if err != nil {
			return fmt.Errorf("read control file: %w", err)
		}
		raw = b
	} else {
		f, err := os.Open(x.m.Control.Mapping)
		if err != nil {
			return fmt.Errorf("open mapping: %w", err)
		}
		mapping, err := residue.ReadMapping(f)
		f.Close()
		if err != nil {
			return err
		}
		entries, err := control.Build(x.bonds.Residues(), x.matrix.Residues(), mapping, x.m.Control.ColumnOrder)
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := control.Write(&buf, entries); err != nil {
			return err
		}
		raw = buf.Bytes()
	}
	sheet, err := control.Read(ArtifactControl, bytes.NewReader(raw), x.warn)
	if err != nil {
		return err
	}
	x.sheet = sheet
	return x.put(ctx, StageControl, ArtifactControl, "text/csv", raw)
}

func (x *execution) draw(ctx context.Context) error {
	format, err := diagram.ParseFormat(x.m.Diagram.Format)
	if err != nil {
		return err
	}
	opts := diagram.Options{
		OmitNone:         x.m.Diagram.OmitNone,
		OmitSameColumn:   x.m.Diagram.OmitSameColumn,
		HBondThreshold:   x.m.Diagram.HBondThreshold,
		CompareThreshold: x.m.Diagram.CompareThreshold,
		Title:            x.m.Diagram.Title,
	}
	if x.m.Diagram.Compare != "" {
		cmp, err := decomp.ReadTableFile(x.m.Diagram.Compare, x.warn)
		if err != nil {
			return err
		}
		opts.Compare = cmp
		opts.CompareLabel = filepath.Base(x.m.Diagram.Compare)
	}
	d, err := diagram.Build(x.sheet, x.matrix, x.bonds, opts, x.warn)
	if err != nil {
		return err
	}
	var img, summary bytes.Buffer
	if err := diagram.Render(&img, d, format); err != nil {
		return err
	}
	if err := diagram.WriteSummary(&summary, d); err != nil {
		return err
	}
	if err := x.put(ctx, StageDraw, artifactDiagram+"."+string(format), format.ContentType(), img.Bytes()); err != nil {
		return err
	}
	return x.put(ctx, StageDraw, ArtifactSummary, "text/csv", summary.Bytes())
}
