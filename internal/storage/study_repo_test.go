package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"magegraph/internal/graph"
	"magegraph/internal/models"
	"magegraph/internal/util"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestNullableJSON(t *testing.T) {
	v, err := nullableJSON([]string(nil))
	require.NoError(t, err)
	require.Nil(t, v)

	v, err = nullableJSON((*graph.ParamMap)(nil))
	require.NoError(t, err)
	require.Nil(t, v)

	v, err = nullableJSON([]string{"liver"})
	require.NoError(t, err)
	require.Equal(t, `["liver"]`, v)

	p := graph.NewParamMap()
	p.Add("time", "10")
	p.Add("temp", "37")
	v, err = nullableJSON(p)
	require.NoError(t, err)
	require.Equal(t, `{"time":["10"],"temp":["37"]}`, v)
}

// openTestDB connects to MAGEGRAPH_TEST_POSTGRES_URL or skips.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("MAGEGRAPH_TEST_POSTGRES_URL")
	if dsn == "" {
		t.Skip("MAGEGRAPH_TEST_POSTGRES_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := NewDB(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func TestStudyRepoRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	doc, err := graph.LoadFile("../graph/testdata/study.xml")
	require.NoError(t, err)
	study, err := graph.Process(doc)
	require.NoError(t, err)

	repo := NewStudyRepo(db)
	documentID := "test-" + uuid.NewString()
	require.NoError(t, repo.SaveStudy(ctx, "", documentID, study))
	// saving again replaces rather than duplicates
	require.NoError(t, repo.SaveStudy(ctx, "", documentID, study))

	got, err := repo.GetGraph(ctx, documentID)
	require.NoError(t, err)
	if diff := cmp.Diff(study, got); diff != "" {
		t.Fatalf("stored study differs (-built +stored):\n%s", diff)
	}

	_, err = repo.GetGraph(ctx, "missing-"+uuid.NewString())
	require.ErrorIs(t, err, util.ErrStudyNotFound)
}

func TestRunRepoLifecycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewRunRepo(db)

	runID := uuid.NewString()
	documentID := "doc-" + uuid.NewString()
	require.NoError(t, repo.CreateRun(ctx, models.ConversionRun{RunID: runID, DocumentID: documentID, Filename: "study.xml"}))

	run, err := repo.GetRun(ctx, runID)
	require.NoError(t, err)
	require.Equal(t, models.RunPending, run.Status)

	require.NoError(t, repo.UpdateRunStatus(ctx, runID, models.RunCompleted, "", 3, 4))
	run, err = repo.LatestRunForDocument(ctx, documentID)
	require.NoError(t, err)
	require.Equal(t, models.RunCompleted, run.Status)
	require.Equal(t, 4, run.EdgeCount)

	require.ErrorIs(t, repo.UpdateRunStatus(ctx, uuid.NewString(), models.RunFailed, "x", 0, 0), util.ErrRunNotFound)
}
