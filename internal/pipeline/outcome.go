package pipeline

import (
	"fmt"
	"strings"
	"time"
)

// Status is the terminal state of one document in a run.
type Status string

const (
	// StatusCommitted means both stores hold the document's current content.
	StatusCommitted Status = "committed"

	// StatusSkippedUnchanged means the content hash matched the stored
	// record, so chunking and embedding were skipped entirely.
	StatusSkippedUnchanged Status = "skipped-unchanged"

	// StatusSkippedFiltered means the document fell outside the configured
	// month filter.
	StatusSkippedFiltered Status = "skipped-filtered"

	// StatusFailed means the document could not be ingested this run.
	StatusFailed Status = "failed"
)

// Reason codes for failed outcomes.
const (
	ReasonFetch       = "fetch"
	ReasonParse       = "parse"
	ReasonStore       = "store"
	ReasonEmbedding   = "embedding"
	ReasonVectorWrite = "vector-write"
	ReasonCancelled   = "cancelled"
)

// Outcome is the per-document result, used only for run-level reporting.
type Outcome struct {
	URL        string
	DocumentID string
	Status     Status

	// Reason is the failure reason code; empty unless Status is failed.
	Reason string

	// Err is the underlying error; nil unless Status is failed.
	Err error

	// Chunks is the number of chunk vectors written for committed documents.
	Chunks int
}

// Summary aggregates a run's outcomes.
type Summary struct {
	RunID    string
	Started  time.Time
	Finished time.Time
	Outcomes []Outcome
}

func (s *Summary) count(status Status) int {
	n := 0
	for _, o := range s.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

// Committed returns the number of committed documents.
func (s *Summary) Committed() int { return s.count(StatusCommitted) }

// SkippedUnchanged returns the number of unchanged documents.
func (s *Summary) SkippedUnchanged() int { return s.count(StatusSkippedUnchanged) }

// SkippedFiltered returns the number of filtered-out documents.
func (s *Summary) SkippedFiltered() int { return s.count(StatusSkippedFiltered) }

// Failed returns the number of failed documents.
func (s *Summary) Failed() int { return s.count(StatusFailed) }

// FailureRate returns failed/total, or 0 for an empty run.
func (s *Summary) FailureRate() float64 {
	if len(s.Outcomes) == 0 {
		return 0
	}
	return float64(s.Failed()) / float64(len(s.Outcomes))
}

// String renders the run summary for CLI output. Every failure is listed
// with its reason; none is silently dropped.
func (s *Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s: %d documents, %d committed, %d skipped (unchanged), %d skipped (filtered), %d failed in %s\n",
		s.RunID, len(s.Outcomes), s.Committed(), s.SkippedUnchanged(),
		s.SkippedFiltered(), s.Failed(), s.Finished.Sub(s.Started).Round(time.Millisecond))
	for _, o := range s.Outcomes {
		if o.Status != StatusFailed {
			continue
		}
		fmt.Fprintf(&b, "  failed [%s] %s: %v\n", o.Reason, o.URL, o.Err)
	}
	return b.String()
}
