package uploader

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/moyoez/cloudsend/tool"
	"github.com/moyoez/cloudsend/transfer"
	"github.com/moyoez/cloudsend/types"
)

var (
	ErrInvalidEntry     = errors.New("invalid upload entry")
	ErrRestrictedCaller = errors.New("caller is not allowed to upload")
)

// Transport is the remote store as seen by the engine. *transfer.Client
// implements it.
type Transport interface {
	UploadChunk(ctx context.Context, chunk types.ChunkUpload) error
	FinalizeUpload(ctx context.Context, req types.FinalizeRequest) (types.FileDescriptor, error)
	UploadBatch(ctx context.Context, batch types.BatchUpload) (types.BatchResponse, error)
}

type Options struct {
	ChunkSizeBytes int64
	// ThresholdBytes is the size from which an entry is chunked.
	// Zero means ChunkSizeBytes.
	ThresholdBytes    int64
	MaxInFlight       int
	RequestsPerSecond float64
	Observer          Observer
}

// Engine uploads selections of entries to the remote store. One engine may
// serve concurrent Upload calls; they share its in-flight limit.
type Engine struct {
	transport Transport
	opts      Options
	pool      *pool
	observer  Observer
}

func New(transport Transport, opts Options) (*Engine, error) {
	if transport == nil {
		return nil, errors.New("uploader: nil transport")
	}
	if opts.ChunkSizeBytes == 0 {
		opts.ChunkSizeBytes = tool.DefaultChunkSize
	}
	if opts.ChunkSizeBytes < 0 {
		return nil, fmt.Errorf("uploader: invalid chunk size %d", opts.ChunkSizeBytes)
	}
	if opts.ThresholdBytes == 0 {
		opts.ThresholdBytes = opts.ChunkSizeBytes
	}
	if opts.ThresholdBytes < 0 {
		return nil, fmt.Errorf("uploader: invalid chunk threshold %d", opts.ThresholdBytes)
	}
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = tool.DefaultMaxInFlight
	}
	observer := opts.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	return &Engine{
		transport: transport,
		opts:      opts,
		pool:      newPool(opts.MaxInFlight, opts.RequestsPerSecond),
		observer:  observer,
	}, nil
}

// WithObserver returns an engine that reports to observer and shares the
// in-flight limit of e.
func (e *Engine) WithObserver(observer Observer) *Engine {
	clone := *e
	if observer == nil {
		observer = nopObserver{}
	}
	clone.observer = observer
	clone.opts.Observer = observer
	return &clone
}

// Upload transfers entries into parentFolderID (empty for the caller's root)
// and settles every entry. Per-file failures are part of the report; an
// error is returned only when the call itself is refused.
func (e *Engine) Upload(ctx context.Context, caller types.Caller, entries []types.UploadEntry, parentFolderID string) (types.AggregateReport, error) {
	if !caller.CanUpload() {
		return types.AggregateReport{}, fmt.Errorf("%w: %s has role %q", ErrRestrictedCaller, caller.Name, caller.Role)
	}
	if err := ValidateEntries(entries); err != nil {
		return types.AggregateReport{}, err
	}
	if len(entries) == 0 {
		return Aggregate(), nil
	}

	start := time.Now()
	direct, chunked := classifyIndices(entries, e.opts.ThresholdBytes)
	tool.DefaultLogger.Infof("[Upload] %s uploading %d files (%s): %d direct, %d chunked",
		caller.Name, len(entries), tool.HumanBytes(tool.TotalSize(entries)), len(direct), len(chunked))

	c := newCollector(entries, e.observer)
	for _, idx := range chunked {
		c.spawn([]int{idx}, func() []types.UploadOutcome {
			return []types.UploadOutcome{e.runSession(ctx, entries[idx], parentFolderID)}
		})
	}
	if len(direct) > 0 {
		c.spawn(direct, func() []types.UploadOutcome {
			batch := make([]types.UploadEntry, 0, len(direct))
			for _, idx := range direct {
				batch = append(batch, entries[idx])
			}
			return e.runBatch(ctx, batch, parentFolderID)
		})
	}

	report := Aggregate(c.wait())
	report.Cancelled = ctx.Err() != nil && cutShort(report)
	for _, failure := range report.Failures {
		tool.DefaultLogger.Warnf("[Upload] %s: %s", failure.RelativePath, failure.Reason)
	}
	tool.DefaultLogger.Infof("[Upload] %s in %s", Summary(report), time.Since(start).Round(time.Millisecond))
	return report, nil
}

// cutShort reports whether cancellation left any entry unfinished.
func cutShort(report types.AggregateReport) bool {
	for _, failure := range report.Failures {
		if failure.Reason == transfer.CancelledReason {
			return true
		}
	}
	return false
}

// ValidateEntries rejects entries no upload could be built from.
func ValidateEntries(entries []types.UploadEntry) error {
	for i, entry := range entries {
		switch {
		case entry.Content == nil:
			return fmt.Errorf("%w: entry %d (%s) has no content", ErrInvalidEntry, i, entry.RelativePath)
		case entry.SizeBytes < 0:
			return fmt.Errorf("%w: entry %d (%s) has negative size", ErrInvalidEntry, i, entry.RelativePath)
		case !validRelativePath(entry.RelativePath):
			return fmt.Errorf("%w: entry %d has invalid path %q", ErrInvalidEntry, i, entry.RelativePath)
		}
	}
	return nil
}

func validRelativePath(p string) bool {
	if p == "" || path.IsAbs(p) || strings.Contains(p, "\\") {
		return false
	}
	if path.Clean(p) != p || p == "." || p == ".." || strings.HasPrefix(p, "../") {
		return false
	}
	return !strings.HasSuffix(p, "/")
}
