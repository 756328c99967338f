package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"magegraph/internal/config"
	"magegraph/internal/graph"
	"magegraph/internal/logging"
	"magegraph/internal/models"
	"magegraph/internal/render"
	"magegraph/internal/storage"
	"magegraph/internal/util"

	"github.com/beevik/etree"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	buildFormat   string
	buildOut      string
	buildLinkBase string
	storeTimeout  time.Duration
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "magegraph",
		Short:         "Convert MAGE-TAB study documents into study graphs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	buildCmd := &cobra.Command{
		Use:   "build <file.xml>",
		Short: "Build the study graph and render it",
		Args:  cobra.ExactArgs(1),
		RunE:  runBuild,
	}
	buildCmd.Flags().StringVarP(&buildFormat, "format", "f", "json", "output format: json, yaml or dot")
	buildCmd.Flags().StringVarP(&buildOut, "out", "o", "", "write to this file instead of stdout")
	buildCmd.Flags().StringVar(&buildLinkBase, "link-base", "", "URL prefix for node and edge links in dot output")

	statsCmd := &cobra.Command{
		Use:   "stats <file.xml>",
		Short: "Print node and edge counts with the per-protocol_app expansion",
		Args:  cobra.ExactArgs(1),
		RunE:  runStats,
	}

	storeCmd := &cobra.Command{
		Use:   "store <file.xml>",
		Short: "Build the study graph and persist it to Postgres",
		Args:  cobra.ExactArgs(1),
		RunE:  runStore,
	}
	storeCmd.Flags().DurationVar(&storeTimeout, "timeout", 30*time.Second, "database timeout")

	root.AddCommand(buildCmd, statsCmd, storeCmd)
	return root
}

func loadStudy(path string) (*etree.Document, *graph.Study, error) {
	doc, err := graph.LoadFile(path)
	if err != nil {
		return nil, nil, err
	}
	study, err := graph.Process(doc, graph.WithLogger(logging.New(config.Load().LogLevel)))
	if err != nil {
		return nil, nil, err
	}
	return doc, study, nil
}

func runBuild(cmd *cobra.Command, args []string) error {
	format, err := render.ParseFormat(buildFormat)
	if err != nil {
		return err
	}
	_, study, err := loadStudy(args[0])
	if err != nil {
		return err
	}
	write := func(w io.Writer) error {
		if format == render.FormatDOT {
			return render.DOT(w, study, render.DOTOptions{LinkBase: buildLinkBase})
		}
		return render.Render(w, format, study)
	}
	if buildOut == "" {
		return write(cmd.OutOrStdout())
	}
	if err := util.WriteFileAtomic(buildOut, write); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%d nodes, %d edges)\n", buildOut, len(study.Nodes), len(study.Edges))
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	doc, study, err := loadStudy(args[0])
	if err != nil {
		return err
	}
	exp, err := graph.Expansions(doc)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "study: %s (db_id %s)\n", study.Name, study.DBID)
	fmt.Fprintf(out, "nodes: %d\n", len(study.Nodes))
	fmt.Fprintf(out, "edges: %d\n", len(study.Edges))
	sum := 0
	for _, e := range exp {
		fmt.Fprintf(out, "  protocol_app %s %q: %d x %d = %d\n", e.DBID, e.Protocol, e.Inputs, e.Outputs, e.Edges())
		sum += e.Edges()
	}
	fmt.Fprintf(out, "expansion sum: %d\n", sum)
	return nil
}

func runStore(cmd *cobra.Command, args []string) error {
	path := args[0]
	_, study, err := loadStudy(path)
	if err != nil {
		return err
	}
	documentID, err := util.SHA256HexFile(path)
	if err != nil {
		return err
	}

	cfg := config.Load()
	ctx, cancel := context.WithTimeout(cmd.Context(), storeTimeout)
	defer cancel()
	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		return err
	}
	defer db.Close()

	runs := storage.NewRunRepo(db)
	runID := uuid.NewString()
	if err := runs.CreateRun(ctx, models.ConversionRun{
		RunID:      runID,
		DocumentID: documentID,
		Filename:   filepath.Base(path),
		Status:     models.RunProcessing,
	}); err != nil {
		return err
	}
	if err := storage.NewStudyRepo(db).SaveStudy(ctx, runID, documentID, study); err != nil {
		_ = runs.UpdateRunStatus(ctx, runID, models.RunFailed, err.Error(), 0, 0)
		return err
	}
	if err := runs.UpdateRunStatus(ctx, runID, models.RunCompleted, "", len(study.Nodes), len(study.Edges)); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "stored %s run=%s nodes=%d edges=%d\n", documentID, runID, len(study.Nodes), len(study.Edges))
	return nil
}
