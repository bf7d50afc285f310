package app

import "time"

// Batch item status strings.
const (
	ItemInstalled        = "installed"
	ItemAlreadyInstalled = "already-installed"
	ItemUninstalled      = "uninstalled"
	ItemFailed           = "failed"
)

// ItemResult is the outcome of one application within a batch operation.
type ItemResult struct {
	AppID     string
	Success   bool
	Version   string
	Status    string
	Error     string
	StartedAt time.Time
	Duration  time.Duration
}

// BatchResult aggregates the ordered outcomes of a batch call. Aggregates are
// computed once by Finish.
type BatchResult struct {
	Operation string
	Requested []string
	Items     []ItemResult
	StartedAt time.Time
	EndedAt   time.Time

	SucceededCount    int
	FailedCount       int
	CompletionPercent float64
	TotalDuration     time.Duration
}

// NewBatchResult starts a batch for the requested ids.
func NewBatchResult(operation string, requested []string, now time.Time) *BatchResult {
	return &BatchResult{
		Operation: operation,
		Requested: append([]string(nil), requested...),
		StartedAt: now,
	}
}

// Add appends one item outcome.
func (b *BatchResult) Add(item ItemResult) {
	b.Items = append(b.Items, item)
}

// Finish records the end time and computes the aggregates.
func (b *BatchResult) Finish(now time.Time) {
	b.EndedAt = now
	b.TotalDuration = now.Sub(b.StartedAt)
	b.SucceededCount = 0
	b.FailedCount = 0
	for _, item := range b.Items {
		if item.Success {
			b.SucceededCount++
		} else {
			b.FailedCount++
		}
	}
	if len(b.Requested) == 0 {
		b.CompletionPercent = 100
		return
	}
	b.CompletionPercent = float64(b.SucceededCount) * 100 / float64(len(b.Requested))
}

// AllSucceeded reports whether every requested item was attempted and
// succeeded.
func (b *BatchResult) AllSucceeded() bool {
	return b.FailedCount == 0 && len(b.Items) == len(b.Requested)
}

// Failures returns the failed items in order.
func (b *BatchResult) Failures() []ItemResult {
	var out []ItemResult
	for _, item := range b.Items {
		if !item.Success {
			out = append(out, item)
		}
	}
	return out
}
