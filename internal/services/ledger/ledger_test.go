package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/antigravity-dev/ragforge/internal/models"
	"github.com/antigravity-dev/ragforge/internal/storage/blob/localfs"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	store, err := localfs.New(t.TempDir(), arbor.NewLogger())
	require.NoError(t, err)
	return New(store, arbor.NewLogger())
}

func TestRecord_AssignsIncreasingSequence(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	require.NoError(t, l.Record(ctx, "job_1", models.ProgressEvent{Phase: "extract", Progress: 10, Status: models.JobStatusRunning}))
	require.NoError(t, l.Record(ctx, "job_1", models.ProgressEvent{Phase: "extract", Progress: 50, Status: models.JobStatusRunning}))
	require.NoError(t, l.Record(ctx, "job_1", models.ProgressEvent{Phase: "success", Progress: 100, Status: models.JobStatusCompleted}))

	snapshot, history, err := l.Read(ctx, "job_1", true)
	require.NoError(t, err)

	require.Len(t, history, 3)
	assert.Equal(t, 1, history[0].Sequence)
	assert.Equal(t, 2, history[1].Sequence)
	assert.Equal(t, 3, history[2].Sequence)

	assert.Equal(t, 3, snapshot.Sequence)
	assert.Equal(t, models.JobStatusCompleted, snapshot.Status)
	assert.Equal(t, 100, snapshot.Progress)
}

func TestRead_WithoutHistorySkipsHistoryFetch(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	require.NoError(t, l.Record(ctx, "job_2", models.ProgressEvent{Phase: "extract", Progress: 5, Status: models.JobStatusRunning}))

	snapshot, history, err := l.Read(ctx, "job_2", false)
	require.NoError(t, err)
	assert.Nil(t, history)
	assert.Equal(t, "job_2", snapshot.JobID)
}

func TestRead_UnknownJobErrors(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	_, _, err := l.Read(ctx, "job_never_submitted", false)
	assert.Error(t, err)
}

func TestRecord_SeparateJobsHaveIndependentSequences(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	require.NoError(t, l.Record(ctx, "job_a", models.ProgressEvent{Phase: "extract", Progress: 1, Status: models.JobStatusRunning}))
	require.NoError(t, l.Record(ctx, "job_b", models.ProgressEvent{Phase: "extract", Progress: 1, Status: models.JobStatusRunning}))
	require.NoError(t, l.Record(ctx, "job_a", models.ProgressEvent{Phase: "extract", Progress: 2, Status: models.JobStatusRunning}))

	_, historyA, err := l.Read(ctx, "job_a", true)
	require.NoError(t, err)
	_, historyB, err := l.Read(ctx, "job_b", true)
	require.NoError(t, err)

	require.Len(t, historyA, 2)
	require.Len(t, historyB, 1)
	assert.Equal(t, 1, historyB[0].Sequence)
}

func TestGC_SweepsOnlyTerminalJobsPastTTL(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	require.NoError(t, l.Record(ctx, "job_done", models.ProgressEvent{Phase: "success", Progress: 100, Status: models.JobStatusCompleted}))
	require.NoError(t, l.Record(ctx, "job_running", models.ProgressEvent{Phase: "extract", Progress: 40, Status: models.JobStatusRunning}))

	swept, err := l.GC(ctx, -time.Hour) // negative TTL: everything terminal is "older" than cutoff
	require.NoError(t, err)
	assert.Equal(t, []string{"job_done"}, swept)

	_, _, err = l.Read(ctx, "job_done", false)
	assert.Error(t, err, "swept job's snapshot should be gone")

	snapshot, _, err := l.Read(ctx, "job_running", false)
	require.NoError(t, err, "running job must survive gc regardless of age")
	assert.Equal(t, models.JobStatusRunning, snapshot.Status)
}

func TestGC_NothingTerminalSweepsNothing(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	require.NoError(t, l.Record(ctx, "job_running", models.ProgressEvent{Phase: "extract", Progress: 10, Status: models.JobStatusRunning}))

	swept, err := l.GC(ctx, -time.Hour)
	require.NoError(t, err)
	assert.Empty(t, swept)
}

func TestGC_RecentTerminalJobIsNotSwept(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	require.NoError(t, l.Record(ctx, "job_done", models.ProgressEvent{Phase: "success", Progress: 100, Status: models.JobStatusCompleted}))

	swept, err := l.GC(ctx, 24*time.Hour) // still within TTL
	require.NoError(t, err)
	assert.Empty(t, swept)
}
