package wsstats

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/telhawk-systems/flowhook/internal/metrics"
)

// maxSeenSessions caps the per-workspace set of sessions already written today.
const maxSeenSessions = 10000

// FlushReport summarizes one flush.
type FlushReport struct {
	Workspaces     int
	Events         int64
	NewSessions    int
	ByProvider     map[string]int64
	FailedRequeued []string
}

// Collector accumulates workspace usage and flushes it to Redis periodically.
// Safe for concurrent use.
type Collector struct {
	client   *Client
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[string]*BatchUpdate

	// seen holds session keys already added to today's Redis set, so repeat
	// messages in a conversation do not resend them.
	seenDay string
	seen    map[string]map[string]struct{}

	flushMu  sync.Mutex
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewCollector starts a collector that flushes every interval.
func NewCollector(client *Client, interval time.Duration, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Collector{
		client:   client,
		interval: interval,
		logger:   logger,
		pending:  make(map[string]*BatchUpdate),
		seen:     make(map[string]map[string]struct{}),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go c.run()
	return c
}

// Record accumulates one normalized webhook.
func (c *Collector) Record(workspaceID, provider, sessionKey, ip string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	batch := c.pending[workspaceID]
	if batch == nil {
		batch = NewBatchUpdate(workspaceID)
		c.pending[workspaceID] = batch
	}
	batch.Add(provider, sessionKey, ip)
}

func (c *Collector) run() {
	defer close(c.done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.FlushNow()
		case <-c.stop:
			c.FlushNow()
			return
		}
	}
}

// FlushNow writes all pending batches and reports what was sent. Batches
// that fail stay pending for the next flush.
func (c *Collector) FlushNow() FlushReport {
	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	batches := c.take()
	report := FlushReport{ByProvider: make(map[string]int64)}
	if len(batches) == 0 {
		return report
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, batch := range batches {
		c.dropSeenSessions(batch)
		if err := c.client.FlushBatch(ctx, batch); err != nil {
			metrics.StatsFlushes.WithLabelValues("error").Inc()
			c.logger.Error("failed to flush workspace stats",
				"workspace_id", batch.WorkspaceID,
				"event_count", batch.EventCount,
				"error", err,
			)
			c.requeue(batch)
			report.FailedRequeued = append(report.FailedRequeued, batch.WorkspaceID)
			continue
		}

		metrics.StatsFlushes.WithLabelValues("ok").Inc()
		c.markSeen(batch.WorkspaceID, batch.Sessions)
		report.Workspaces++
		report.Events += batch.EventCount
		report.NewSessions += len(batch.Sessions)
		for p, n := range batch.ByProvider {
			report.ByProvider[p] += n
		}
	}

	if report.Workspaces > 0 {
		c.logger.Debug("flushed workspace stats",
			"workspaces", report.Workspaces,
			"events", report.Events,
			"new_sessions", report.NewSessions,
			"by_provider", report.ByProvider,
		)
	}
	sort.Strings(report.FailedRequeued)
	return report
}

// take swaps out the pending batches.
func (c *Collector) take() map[string]*BatchUpdate {
	c.mu.Lock()
	defer c.mu.Unlock()

	batches := c.pending
	c.pending = make(map[string]*BatchUpdate)
	return batches
}

func (c *Collector) requeue(batch *BatchUpdate) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.pending[batch.WorkspaceID]; ok {
		existing.Merge(batch)
		return
	}
	c.pending[batch.WorkspaceID] = batch
}

// dropSeenSessions removes sessions already written today from batch.
func (c *Collector) dropSeenSessions(batch *BatchUpdate) {
	day := c.client.now().Format("20060102")
	if day != c.seenDay {
		c.seenDay = day
		c.seen = make(map[string]map[string]struct{})
	}

	seen := c.seen[batch.WorkspaceID]
	for s := range batch.Sessions {
		if _, ok := seen[s]; ok {
			delete(batch.Sessions, s)
		}
	}
}

func (c *Collector) markSeen(workspaceID string, sessions map[string]struct{}) {
	if len(sessions) == 0 {
		return
	}
	seen := c.seen[workspaceID]
	if seen == nil || len(seen)+len(sessions) > maxSeenSessions {
		seen = make(map[string]struct{}, len(sessions))
		c.seen[workspaceID] = seen
	}
	for s := range sessions {
		seen[s] = struct{}{}
	}
}

// Stop halts the flush loop after a final flush.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
	<-c.done
}

// Pending returns unflushed event counts keyed by workspace.
func (c *Collector) Pending() map[string]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	pending := make(map[string]int64, len(c.pending))
	for id, batch := range c.pending {
		pending[id] = batch.EventCount
	}
	return pending
}
