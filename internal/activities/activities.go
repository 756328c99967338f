package activities

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"magegraph/internal/config"
	"magegraph/internal/graph"
	"magegraph/internal/metrics"
	"magegraph/internal/render"
	"magegraph/internal/storage"
	"magegraph/internal/util"

	"go.temporal.io/sdk/temporal"
)

// Application error types returned by BuildStudyActivity. Both are
// non-retryable: the same bytes will fail the same way.
const (
	ErrTypeStructure = "StructureError"
	ErrTypeParse     = "DocumentParseError"
)

type Activities struct {
	cfg       config.Config
	studyRepo *storage.StudyRepo
	runRepo   *storage.RunRepo
	metrics   *metrics.Registry
	logger    *slog.Logger
}

// New wires the activities. db may be nil for workers that only build and
// render; the persistence activities then fail.
func New(cfg config.Config, db *storage.DB, reg *metrics.Registry, logger *slog.Logger) *Activities {
	if reg == nil {
		reg = metrics.NewRegistry()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	a := &Activities{cfg: cfg, metrics: reg, logger: logger}
	if db != nil {
		a.studyRepo = storage.NewStudyRepo(db)
		a.runRepo = storage.NewRunRepo(db)
	}
	return a
}

func (a *Activities) ComputeDocumentIDActivity(ctx context.Context, in ComputeDocumentIDInput) (ComputeDocumentIDOutput, error) {
	_ = ctx
	id, err := util.SHA256HexFile(in.DocumentPath)
	if err != nil {
		return ComputeDocumentIDOutput{}, err
	}
	return ComputeDocumentIDOutput{DocumentID: id}, nil
}

func (a *Activities) BuildStudyActivity(ctx context.Context, in BuildStudyInput) (BuildStudyOutput, error) {
	_ = ctx
	doc, err := graph.LoadFile(in.DocumentPath)
	if err != nil {
		a.metrics.RecordFailure("parse")
		return BuildStudyOutput{}, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeParse, err)
	}
	start := time.Now()
	study, err := graph.Process(doc, graph.WithLogger(a.logger))
	if err != nil {
		if errors.Is(err, graph.ErrStructure) {
			a.metrics.RecordFailure("structure")
			return BuildStudyOutput{}, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeStructure, err)
		}
		return BuildStudyOutput{}, err
	}
	a.metrics.RecordBuild(time.Since(start), len(study.Nodes), len(study.Edges))
	a.logger.Info("study built", "path", in.DocumentPath, "study", study.Name, "nodes", len(study.Nodes), "edges", len(study.Edges))
	return BuildStudyOutput{Study: *study, NodeCount: len(study.Nodes), EdgeCount: len(study.Edges)}, nil
}

func (a *Activities) WriteStudyArtifactsActivity(ctx context.Context, in WriteStudyArtifactsInput) (WriteStudyArtifactsOutput, error) {
	_ = ctx
	formats, err := a.formats(in.Formats)
	if err != nil {
		return WriteStudyArtifactsOutput{}, temporal.NewNonRetryableApplicationError(err.Error(), "UnknownFormat", err)
	}
	base := filepath.Join(a.cfg.DataOutRoot, in.DocumentID)
	out := WriteStudyArtifactsOutput{Paths: make([]string, 0, len(formats))}
	for _, f := range formats {
		path := filepath.Join(base, "study."+f.Extension())
		err := util.WriteFileAtomic(path, func(w io.Writer) error {
			if f == render.FormatDOT {
				return render.DOT(w, &in.Study, render.DOTOptions{LinkBase: a.cfg.GraphLinkBase})
			}
			return render.Render(w, f, &in.Study)
		})
		if err != nil {
			return WriteStudyArtifactsOutput{}, fmt.Errorf("write %s artifact: %w", f, err)
		}
		out.Paths = append(out.Paths, path)
	}

	out.Manifest = filepath.Join(base, "manifest.json")
	names := make([]string, 0, len(formats))
	for _, f := range formats {
		names = append(names, string(f))
	}
	if err := util.WriteJSONAtomic(out.Manifest, map[string]any{
		"document_id":  in.DocumentID,
		"study":        in.Study.Name,
		"study_db_id":  in.Study.DBID,
		"node_count":   len(in.Study.Nodes),
		"edge_count":   len(in.Study.Edges),
		"formats":      names,
		"generated_at": time.Now().UTC(),
	}); err != nil {
		return WriteStudyArtifactsOutput{}, fmt.Errorf("write manifest: %w", err)
	}
	return out, nil
}

func (a *Activities) formats(requested []string) ([]render.Format, error) {
	if len(requested) == 0 {
		return render.ParseFormats(a.cfg.RenderFormats)
	}
	out := make([]render.Format, 0, len(requested))
	for _, r := range requested {
		f, err := render.ParseFormat(r)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func (a *Activities) PersistStudyActivity(ctx context.Context, in PersistStudyInput) error {
	if a.studyRepo == nil {
		return fmt.Errorf("persist study: no database configured")
	}
	return a.studyRepo.SaveStudy(ctx, in.RunID, in.DocumentID, &in.Study)
}

func (a *Activities) UpdateRunStatusActivity(ctx context.Context, in UpdateRunStatusInput) error {
	if a.runRepo == nil {
		return fmt.Errorf("update run status: no database configured")
	}
	return a.runRepo.UpdateRunStatus(ctx, in.RunID, in.Status, in.FailReason, in.NodeCount, in.EdgeCount)
}
