package uploader

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/moyoez/cloudsend/tool"
	"github.com/moyoez/cloudsend/transfer"
	"github.com/moyoez/cloudsend/types"
)

// InternalErrorReason is reported for entries whose task panicked.
const InternalErrorReason = "Upload failed (internal error)"

// Aggregate merges outcome lists into one report, keeping their order.
func Aggregate(results ...[]types.UploadOutcome) types.AggregateReport {
	report := types.AggregateReport{
		Successes: []types.UploadOutcome{},
		Failures:  []types.UploadOutcome{},
	}
	for _, outcomes := range results {
		for _, outcome := range outcomes {
			if outcome.Succeeded() {
				report.Successes = append(report.Successes, outcome)
			} else {
				report.Failures = append(report.Failures, outcome)
			}
		}
	}
	return report
}

// Summary renders a report as one line for logs and the CLI.
func Summary(report types.AggregateReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d files uploaded", len(report.Successes), report.Total())
	if len(report.Failures) > 0 {
		fmt.Fprintf(&b, ", %d failed: %s", len(report.Failures), strings.Join(report.FailedFileNames(), ", "))
	}
	if report.Cancelled {
		b.WriteString(" (cancelled)")
	}
	return b.String()
}

// collector waits for every sub-task of a run and stores each outcome at the
// index of its entry, so a run settles all entries no matter how its tasks end.
type collector struct {
	entries  []types.UploadEntry
	observer Observer

	wg       sync.WaitGroup
	mu       sync.Mutex
	outcomes []types.UploadOutcome
	settled  []bool
	count    int
}

func newCollector(entries []types.UploadEntry, observer Observer) *collector {
	return &collector{
		entries:  entries,
		observer: observer,
		outcomes: make([]types.UploadOutcome, len(entries)),
		settled:  make([]bool, len(entries)),
	}
}

// spawn runs task in its own goroutine. task must return one outcome per
// index, in the same order.
func (c *collector) spawn(indices []int, task func() []types.UploadOutcome) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				tool.DefaultLogger.Errorf("[Upload] Task for %d entries panicked: %v", len(indices), r)
				for _, idx := range indices {
					c.record(idx, types.FailureOutcome(c.entries[idx], InternalErrorReason))
				}
			}
		}()
		outcomes := task()
		for n, idx := range indices {
			if n < len(outcomes) {
				c.record(idx, outcomes[n])
			} else {
				c.record(idx, types.FailureOutcome(c.entries[idx], transfer.GenericFailureReason))
			}
		}
	}()
}

// record settles entry idx once; later outcomes for it are ignored.
func (c *collector) record(idx int, outcome types.UploadOutcome) {
	c.mu.Lock()
	if c.settled[idx] {
		c.mu.Unlock()
		return
	}
	c.settled[idx] = true
	c.outcomes[idx] = outcome
	c.count++
	settled := c.count
	c.mu.Unlock()

	closeContent(c.entries[idx])
	c.observer.EntrySettled(outcome, settled, len(c.entries))
}

// wait blocks until every task returned. Entries no task settled become
// failures.
func (c *collector) wait() []types.UploadOutcome {
	c.wg.Wait()
	for idx := range c.entries {
		c.record(idx, types.FailureOutcome(c.entries[idx], transfer.GenericFailureReason))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outcomes
}

func closeContent(entry types.UploadEntry) {
	closer, ok := entry.Content.(io.Closer)
	if !ok {
		return
	}
	if err := closer.Close(); err != nil {
		tool.DefaultLogger.Warnf("[Upload] Failed to close %s: %v", entry.RelativePath, err)
	}
}
