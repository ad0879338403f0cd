package uploader

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moyoez/cloudsend/types"
)

func sized(path string, size int64) types.UploadEntry {
	return types.UploadEntry{Content: bytes.NewReader(nil), RelativePath: path, SizeBytes: size}
}

func TestClassify(t *testing.T) {
	entries := []types.UploadEntry{
		sized("below.txt", 99),
		sized("equal.bin", 100),
		sized("empty.txt", 0),
		sized("above.bin", 101),
		sized("tiny.txt", 1),
	}

	direct, chunked := Classify(entries, 100)

	paths := func(es []types.UploadEntry) []string {
		out := make([]string, 0, len(es))
		for _, e := range es {
			out = append(out, e.RelativePath)
		}
		return out
	}
	assert.Equal(t, []string{"below.txt", "empty.txt", "tiny.txt"}, paths(direct))
	assert.Equal(t, []string{"equal.bin", "above.bin"}, paths(chunked))
	assert.Len(t, append(direct, chunked...), len(entries))
}

func TestPlanChunks(t *testing.T) {
	tests := []struct {
		size      int64
		chunk     int64
		wantTotal int
		wantLast  int64
	}{
		{size: 1, chunk: 4, wantTotal: 1, wantLast: 1},
		{size: 4, chunk: 4, wantTotal: 1, wantLast: 4},
		{size: 5, chunk: 4, wantTotal: 2, wantLast: 1},
		{size: 10 * mib, chunk: 4 * mib, wantTotal: 3, wantLast: 2 * mib},
		{size: 12 * mib, chunk: 4 * mib, wantTotal: 3, wantLast: 4 * mib},
		{size: 1000, chunk: 7, wantTotal: 143, wantLast: 6},
	}
	for _, tt := range tests {
		session, err := NewSession(sized("f.bin", tt.size), tt.chunk, "")
		require.NoError(t, err)
		assert.Equal(t, tt.wantTotal, session.TotalChunks)
		assert.Equal(t, types.SessionPending, session.Status)
		assert.NotEmpty(t, session.ID)

		tasks := PlanChunks(session)
		require.Len(t, tasks, tt.wantTotal)
		var next int64
		for i, task := range tasks {
			assert.Equal(t, i, task.Index)
			assert.Equal(t, session.ID, task.SessionID)
			assert.Equal(t, next, task.Start, "chunks must be contiguous")
			assert.Positive(t, task.Len())
			assert.LessOrEqual(t, task.Len(), tt.chunk)
			next = task.End
		}
		assert.Equal(t, tt.size, next)
		last := tasks[len(tasks)-1].Len()
		assert.Equal(t, tt.wantLast, last)
		assert.Equal(t, tt.size-int64(tt.wantTotal-1)*tt.chunk, last)
	}
}

func TestNewSessionRejectsEmpty(t *testing.T) {
	_, err := NewSession(sized("empty.bin", 0), 4, "")
	assert.Error(t, err)
	_, err = NewSession(sized("f.bin", 10), 0, "")
	assert.Error(t, err)
}

func TestSessionStatusTransitions(t *testing.T) {
	assert.True(t, types.SessionPending.CanTransitionTo(types.SessionChunkingInFlight))
	assert.True(t, types.SessionChunkingInFlight.CanTransitionTo(types.SessionFinalizing))
	assert.True(t, types.SessionChunkingInFlight.CanTransitionTo(types.SessionFailed))
	assert.True(t, types.SessionFinalizing.CanTransitionTo(types.SessionSucceeded))
	assert.False(t, types.SessionPending.CanTransitionTo(types.SessionFinalizing))
	assert.False(t, types.SessionChunkingInFlight.CanTransitionTo(types.SessionSucceeded))
	assert.False(t, types.SessionSucceeded.CanTransitionTo(types.SessionFailed))
	assert.False(t, types.SessionFailed.CanTransitionTo(types.SessionSucceeded))
	assert.True(t, types.SessionFailed.Terminal())
}

func TestMatchBatchResults(t *testing.T) {
	entries := []types.UploadEntry{
		sized("a/readme.md", 1),
		sized("b/readme.md", 1),
		sized("c/notes.txt", 1),
		sized("d/lost.txt", 1),
	}
	resp := types.BatchResponse{
		SuccessfulUploads: []types.FileDescriptor{
			{ID: "1", FileName: "readme.md"},
			{ID: "2", FileName: "stray.bin"},
		},
		FailedUploads: []types.FailedUpload{
			{FileName: "readme.md", Path: "a/readme.md", Error: "Name conflict"},
			{FileName: "notes.txt", Error: ""},
		},
	}

	outcomes := matchBatchResults(entries, resp)
	require.Len(t, outcomes, len(entries))

	assert.False(t, outcomes[0].Succeeded())
	assert.Equal(t, "Name conflict", outcomes[0].Reason)

	require.True(t, outcomes[1].Succeeded())
	assert.Equal(t, "1", outcomes[1].Descriptor.ID)
	assert.Equal(t, "b/readme.md", outcomes[1].RelativePath)

	assert.False(t, outcomes[2].Succeeded())
	assert.Equal(t, "Upload failed", outcomes[2].Reason)

	assert.False(t, outcomes[3].Succeeded())
	assert.Equal(t, MissingResultReason, outcomes[3].Reason)
}

func TestAggregateAndSummary(t *testing.T) {
	ok := types.SuccessOutcome(sized("a.txt", 1), types.FileDescriptor{ID: "1"})
	bad := types.FailureOutcome(sized("dir/b.txt", 1), "Upload failed")

	report := Aggregate([]types.UploadOutcome{ok}, nil, []types.UploadOutcome{bad, ok})
	assert.Len(t, report.Successes, 2)
	assert.Len(t, report.Failures, 1)
	assert.Equal(t, 3, report.Total())
	assert.Equal(t, "a.txt", report.Successes[0].Descriptor.FileName)
	assert.Equal(t, "2 of 3 files uploaded, 1 failed: b.txt", Summary(report))

	report.Cancelled = true
	assert.Contains(t, Summary(report), "(cancelled)")

	empty := Aggregate()
	assert.NotNil(t, empty.Successes)
	assert.Equal(t, "0 of 0 files uploaded", Summary(empty))
}
