package integration_tests

import (
	"testing"
	"time"

	"github.com/specialistvlad/pipegrid/internal/app"
	"github.com/specialistvlad/pipegrid/internal/registry"
	"github.com/specialistvlad/pipegrid/internal/testutil"
	"github.com/specialistvlad/pipegrid/internal/verdict"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDagConcurrency_FanOutExecution validates that independent matrix
// instances run concurrently when workers allow it.
func TestDagConcurrency_FanOutExecution(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	const sleep = 300 * time.Millisecond
	sleeper := testutil.NewSleeperModule(sleep)
	files := map[string]string{"main.hcl": `
job "fan" {
  matrix {
    axis "shard" { values = ["1", "2", "3", "4"] }
  }
  step "work" {
    uses = "sleep"
    with = { id = "shard-$${MATRIX_SHARD}" }
  }
}
`}

	// --- Act ---
	start := time.Now()
	result := testutil.RunIntegrationTest(t, testutil.Harness{
		Files:   files,
		Config:  app.Config{Workers: 4},
		Modules: []registry.Module{sleeper},
	})
	elapsed := time.Since(start)

	// --- Assert ---
	require.NoError(t, result.Err)
	require.Equal(t, verdict.Succeeded, result.Report.Verdict)
	require.Equal(t, 4, sleeper.Ran())
	assert.Less(t, elapsed, 4*sleep, "instances should not run one after another")

	first, _ := sleeper.Record("shard-1")
	last, _ := sleeper.Record("shard-4")
	assert.True(t, first.Overlaps(last), "shard-1 and shard-4 should overlap")
}

// TestDagConcurrency_WorkerLimit validates that a single worker serializes
// the same fan-out.
func TestDagConcurrency_WorkerLimit(t *testing.T) {
	t.Parallel()

	sleeper := testutil.NewSleeperModule(50 * time.Millisecond)
	files := map[string]string{"main.hcl": `
job "fan" {
  matrix {
    axis "shard" { values = ["1", "2", "3"] }
  }
  step "work" {
    uses = "sleep"
    with = { id = "shard-$${MATRIX_SHARD}" }
  }
}
`}

	result := testutil.RunIntegrationTest(t, testutil.Harness{
		Files:   files,
		Config:  app.Config{Workers: 1},
		Modules: []registry.Module{sleeper},
	})

	require.NoError(t, result.Err)
	ids := []string{"shard-1", "shard-2", "shard-3"}
	for i := 1; i < len(ids); i++ {
		prev, ok := sleeper.Record(ids[i-1])
		require.True(t, ok)
		next, ok := sleeper.Record(ids[i])
		require.True(t, ok)
		assert.False(t, prev.Overlaps(next), "%s and %s overlapped with one worker", ids[i-1], ids[i])
	}
}
