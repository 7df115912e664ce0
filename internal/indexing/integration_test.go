package indexing

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"codegraph/internal/engine/graph"
	"codegraph/internal/query"
)

// Full pipeline: discover and index a tree, then serve queries over the
// resulting store and verify incremental updates invalidate cached answers.
func TestPipelineIndexThenQuery(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"main.inc": "include \"./lib.inc\"\n",
		"lib.inc":  "include \"./util.inc\"\n",
		"util.inc": "plain text\n",
	})

	builder, store := newTestBuilder(t, root)
	stats, err := builder.RebuildAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, stats.FileCount)

	svc, err := query.New(store, query.Options{})
	require.NoError(t, err)
	ctx := context.Background()

	digest := svc.Digest(ctx, "")
	require.Equal(t, 3, digest.FileCount)
	require.NotEmpty(t, digest.Hotspots)

	impact := svc.Impact(ctx, "util.inc", 2)
	require.Equal(t, []string{"lib.inc"}, impact.DirectDependents)
	require.Equal(t, 2, impact.TotalAffected)

	path := svc.Path(ctx, "main.inc", "util.inc", query.PathOptions{})
	require.True(t, path.Connected)
	require.Equal(t, []string{"main.inc", "lib.inc", "util.inc"}, path.ShortestPath)
}

func TestPipelineIncrementalInvalidatesQueries(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"main.inc": "include \"./lib.inc\"\n",
		"lib.inc":  "plain text\n",
	})

	builder, store := newTestBuilder(t, root)
	_, err := builder.RebuildAll(context.Background())
	require.NoError(t, err)

	svc, err := query.New(store, query.Options{})
	require.NoError(t, err)
	ctx := context.Background()

	before := svc.Digest(ctx, "")
	require.Equal(t, 2, before.FileCount)

	writeTree(t, root, map[string]string{"extra.inc": "plain text\n"})
	require.NoError(t, builder.ApplyChanges(ctx, []string{"extra.inc"}))

	after := svc.Digest(ctx, "")
	require.Equal(t, 3, after.FileCount, "mutation must invalidate the cached digest")

	require.NoError(t, os.Remove(filepath.Join(root, "extra.inc")))
	require.NoError(t, builder.ApplyChanges(ctx, []string{"extra.inc"}))

	final := svc.Digest(ctx, "")
	require.Equal(t, 2, final.FileCount)
	_, found := store.GetNode(graph.FileID("extra.inc"))
	require.False(t, found)
}
