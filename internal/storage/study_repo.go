package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"magegraph/internal/graph"
	"magegraph/internal/models"
	"magegraph/internal/util"

	"github.com/jackc/pgx/v5"
)

type StudyRepo struct {
	db *DB
}

func NewStudyRepo(db *DB) *StudyRepo {
	return &StudyRepo{db: db}
}

// SaveStudy replaces the stored graph for documentID with study. Nodes and
// edges keep their build order through the position column.
func (r *StudyRepo) SaveStudy(ctx context.Context, runID, documentID string, study *graph.Study) error {
	if err := r.db.EnsureSchema(ctx); err != nil {
		return err
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin study tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM studies WHERE document_id=$1`, documentID); err != nil {
		return fmt.Errorf("delete previous study: %w", err)
	}
	_, err = tx.Exec(ctx, `
INSERT INTO studies(document_id, name, db_id, run_id, node_count, edge_count)
VALUES ($1, $2, $3, NULLIF($4,''), $5, $6)`,
		documentID, util.SanitizeText(study.Name), util.SanitizeText(study.DBID), runID, len(study.Nodes), len(study.Edges))
	if err != nil {
		return fmt.Errorf("insert study: %w", err)
	}

	batch := &pgx.Batch{}
	for i, n := range study.Nodes {
		chars, err := nullableJSON(n.Characteristics)
		if err != nil {
			return fmt.Errorf("encode characteristics for %s: %w", n.ID, err)
		}
		batch.Queue(`
INSERT INTO study_nodes(document_id, position, node_id, db_id, addition, label, node_type, taxon, uri, characteristics)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::json)`,
			documentID, i, util.SanitizeText(n.ID), util.SanitizeText(n.DBID), n.Addition,
			util.SanitizeText(n.Label), util.SanitizeText(n.Type), util.SanitizeText(n.Taxon), util.SanitizeText(n.URI), chars)
	}
	for i, e := range study.Edges {
		params, err := nullableJSON(e.Params)
		if err != nil {
			return fmt.Errorf("encode params for %s->%s: %w", e.From, e.To, err)
		}
		batch.Queue(`
INSERT INTO study_edges(document_id, position, db_id, addition, source_node_id, target_node_id, label, params)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8::json)`,
			documentID, i, util.SanitizeText(e.DBID), e.Addition,
			util.SanitizeText(e.From), util.SanitizeText(e.To), util.SanitizeText(e.Label), params)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert study graph: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit study: %w", err)
	}
	return nil
}

// GetGraph rebuilds the stored study for documentID.
func (r *StudyRepo) GetGraph(ctx context.Context, documentID string) (*graph.Study, error) {
	if err := r.db.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	study := &graph.Study{}
	err := r.db.Pool.QueryRow(ctx, `SELECT name, db_id FROM studies WHERE document_id=$1`, documentID).Scan(&study.Name, &study.DBID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", util.ErrStudyNotFound, documentID)
	}
	if err != nil {
		return nil, fmt.Errorf("get study: %w", err)
	}

	nodeRows, err := r.db.Pool.Query(ctx, `
SELECT node_id, db_id, addition, label, node_type, taxon, uri, characteristics
FROM study_nodes WHERE document_id=$1 ORDER BY position`, documentID)
	if err != nil {
		return nil, fmt.Errorf("query study nodes: %w", err)
	}
	defer nodeRows.Close()
	study.Nodes = make([]graph.Node, 0)
	for nodeRows.Next() {
		var n graph.Node
		var chars []byte
		if err := nodeRows.Scan(&n.ID, &n.DBID, &n.Addition, &n.Label, &n.Type, &n.Taxon, &n.URI, &chars); err != nil {
			return nil, fmt.Errorf("scan study node: %w", err)
		}
		if len(chars) > 0 {
			if err := json.Unmarshal(chars, &n.Characteristics); err != nil {
				return nil, fmt.Errorf("decode characteristics for %s: %w", n.ID, err)
			}
		}
		study.Nodes = append(study.Nodes, n)
	}
	if err := nodeRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate study nodes: %w", err)
	}

	edgeRows, err := r.db.Pool.Query(ctx, `
SELECT db_id, addition, source_node_id, target_node_id, label, params
FROM study_edges WHERE document_id=$1 ORDER BY position`, documentID)
	if err != nil {
		return nil, fmt.Errorf("query study edges: %w", err)
	}
	defer edgeRows.Close()
	study.Edges = make([]graph.Edge, 0)
	for edgeRows.Next() {
		var e graph.Edge
		var params []byte
		if err := edgeRows.Scan(&e.DBID, &e.Addition, &e.From, &e.To, &e.Label, &params); err != nil {
			return nil, fmt.Errorf("scan study edge: %w", err)
		}
		if len(params) > 0 {
			e.Params = graph.NewParamMap()
			if err := json.Unmarshal(params, e.Params); err != nil {
				return nil, fmt.Errorf("decode params for %s->%s: %w", e.From, e.To, err)
			}
		}
		study.Edges = append(study.Edges, e)
	}
	if err := edgeRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate study edges: %w", err)
	}
	return study, nil
}

func (r *StudyRepo) ListStudies(ctx context.Context) ([]models.StudySummary, error) {
	if err := r.db.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := r.db.Pool.Query(ctx, `
SELECT document_id, name, db_id, COALESCE(run_id,''), node_count, edge_count, created_at
FROM studies ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list studies: %w", err)
	}
	defer rows.Close()

	out := make([]models.StudySummary, 0)
	for rows.Next() {
		var s models.StudySummary
		if err := rows.Scan(&s.DocumentID, &s.Name, &s.DBID, &s.RunID, &s.NodeCount, &s.EdgeCount, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan study: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate studies: %w", err)
	}
	return out, nil
}

// nullableJSON encodes v for a json column, returning nil (SQL NULL) for
// absent values so the absent/empty distinction survives storage.
func nullableJSON(v any) (any, error) {
	switch x := v.(type) {
	case []string:
		if x == nil {
			return nil, nil
		}
	case *graph.ParamMap:
		if x == nil {
			return nil, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
