// Package progress fans installer progress records out to subscribers.
package progress

import (
	"context"
	"sync"

	"github.com/Cornman92/Better11-sub004/internal/domain/app"
	"github.com/Cornman92/Better11-sub004/internal/ports"
)

// Subscription is returned by Subscribe. Call Unsubscribe to stop delivery.
type Subscription interface {
	Unsubscribe()
}

// Publisher delivers each record synchronously to every subscribed sink, in
// subscription order. It implements ports.ProgressSink.
type Publisher struct {
	mu     sync.RWMutex
	subs   []subscriptionEntry
	nextID int
}

type subscriptionEntry struct {
	id   int
	sink ports.ProgressSink
}

// NewPublisher creates a Publisher with the given initial sinks.
func NewPublisher(sinks ...ports.ProgressSink) *Publisher {
	p := &Publisher{}
	for _, sink := range sinks {
		p.Subscribe(sink)
	}
	return p
}

// Report implements ports.ProgressSink.
func (p *Publisher) Report(ctx context.Context, record app.Progress) {
	if p == nil {
		return
	}
	p.mu.RLock()
	subs := append([]subscriptionEntry(nil), p.subs...)
	p.mu.RUnlock()

	for _, entry := range subs {
		entry.sink.Report(ctx, record)
	}
}

// Subscribe registers sink for every subsequent record.
func (p *Publisher) Subscribe(sink ports.ProgressSink) Subscription {
	if p == nil || sink == nil {
		return noopSubscription{}
	}
	p.mu.Lock()
	p.nextID++
	id := p.nextID
	p.subs = append(p.subs, subscriptionEntry{id: id, sink: sink})
	p.mu.Unlock()

	return subscription{
		cancel: func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			for i, entry := range p.subs {
				if entry.id == id {
					p.subs = append(p.subs[:i], p.subs[i+1:]...)
					break
				}
			}
		},
	}
}

type noopSubscription struct{}

func (noopSubscription) Unsubscribe() {}

type subscription struct {
	cancel func()
}

func (s subscription) Unsubscribe() {
	if s.cancel != nil {
		s.cancel()
	}
}

// LoggingSink writes each record as a structured log entry. Byte-level
// download records are logged at debug level.
type LoggingSink struct {
	logger ports.Logger
}

// NewLoggingSink creates a LoggingSink.
func NewLoggingSink(logger ports.Logger) *LoggingSink {
	return &LoggingSink{logger: logger.With("component", "progress")}
}

// Report implements ports.ProgressSink.
func (s *LoggingSink) Report(ctx context.Context, record app.Progress) {
	fields := []interface{}{"app_id", record.AppID, "stage", string(record.Stage), "percent", record.Percent}
	if record.BytesTotal > 0 || record.BytesDownloaded > 0 {
		fields = append(fields, "bytes_downloaded", record.BytesDownloaded, "bytes_total", record.BytesTotal)
	}
	switch {
	case record.Stage == app.StageFailed:
		s.logger.Error(ctx, record.Message, append(fields, "error", record.Error)...)
	case record.Stage == app.StageDownloading && record.BytesDownloaded > 0:
		s.logger.Debug(ctx, record.Message, fields...)
	default:
		s.logger.Info(ctx, record.Message, fields...)
	}
}

// Recorder keeps every record it receives. It is safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	records []app.Progress
}

// Report implements ports.ProgressSink.
func (r *Recorder) Report(_ context.Context, record app.Progress) {
	r.mu.Lock()
	r.records = append(r.records, record)
	r.mu.Unlock()
}

// Records returns a copy of the received records.
func (r *Recorder) Records() []app.Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]app.Progress(nil), r.records...)
}

var (
	_ ports.ProgressSink = (*Publisher)(nil)
	_ ports.ProgressSink = (*LoggingSink)(nil)
	_ ports.ProgressSink = (*Recorder)(nil)
)
