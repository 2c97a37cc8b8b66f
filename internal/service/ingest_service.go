package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/telhawk-systems/flowhook/common/logging"
	"github.com/telhawk-systems/flowhook/internal/dispatch"
	"github.com/telhawk-systems/flowhook/internal/logstore"
	"github.com/telhawk-systems/flowhook/internal/metrics"
	"github.com/telhawk-systems/flowhook/internal/models"
	"github.com/telhawk-systems/flowhook/internal/normalizer"
	"github.com/telhawk-systems/flowhook/internal/repository"
	"github.com/telhawk-systems/flowhook/internal/wsstats"
)

var (
	ErrMissingWorkspace = errors.New("workspaceId is required")
	ErrUnknownLogType   = errors.New("unknown log type")
	ErrStatsDisabled    = errors.New("workspace stats are not enabled")
)

// StatsRecorder accumulates per-workspace usage.
type StatsRecorder interface {
	Record(workspaceID, provider, sessionKey, ip string)
}

// StatsReader reads per-workspace usage.
type StatsReader interface {
	GetStats(ctx context.Context, workspaceID string) (*wsstats.Stats, error)
}

// WebhookInput is one inbound webhook as handed over by the HTTP layer.
type WebhookInput struct {
	WorkspaceID string
	NodeID      string
	// Route is the provider label from the URL; it is informational only.
	Route   string
	Request normalizer.Request
}

// IngestService normalizes webhooks and fans the result out to the bounded
// logs and the optional collaborators.
type IngestService struct {
	normalizer  *normalizer.Normalizer
	webhookLogs *logstore.Store
	apiCallLogs *logstore.Store

	repo        repository.Repository
	dispatcher  dispatch.Dispatcher
	statsWriter StatsRecorder
	statsReader StatsReader
	logger      *logging.Logger

	newID func() string
	now   func() time.Time

	stats      models.IngestionStats
	statsMutex sync.RWMutex
}

// Option configures an IngestService.
type Option func(*IngestService)

// WithRepository enables durable log history.
func WithRepository(repo repository.Repository) Option {
	return func(s *IngestService) { s.repo = repo }
}

// WithDispatcher enables hand-off of session-bearing events to the flow engine.
func WithDispatcher(d dispatch.Dispatcher) Option {
	return func(s *IngestService) { s.dispatcher = d }
}

// WithStats enables workspace usage statistics.
func WithStats(w StatsRecorder, r StatsReader) Option {
	return func(s *IngestService) {
		s.statsWriter = w
		s.statsReader = r
	}
}

func WithLogger(l *logging.Logger) Option {
	return func(s *IngestService) { s.logger = l }
}

// WithClock overrides the record timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *IngestService) { s.now = now }
}

// WithIDGenerator overrides record id generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *IngestService) { s.newID = gen }
}

func NewIngestService(n *normalizer.Normalizer, webhookLogs, apiCallLogs *logstore.Store, opts ...Option) *IngestService {
	s := &IngestService{
		normalizer:  n,
		webhookLogs: webhookLogs,
		apiCallLogs: apiCallLogs,
		dispatcher:  dispatch.Noop{},
		logger:      logging.Default(),
		newID:       uuid.NewString,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IngestWebhook normalizes in and records it. Only a missing workspace is an
// error; collaborator failures are logged and counted.
func (s *IngestService) IngestWebhook(ctx context.Context, in WebhookInput) (*models.CanonicalEvent, error) {
	if in.WorkspaceID == "" {
		return nil, ErrMissingWorkspace
	}

	start := time.Now()
	event := s.normalizer.Normalize(in.Request)
	metrics.NormalizationDuration.Observe(time.Since(start).Seconds())

	details, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode canonical event: %w", err)
	}

	rec := models.LogRecord{
		ID:          s.newID(),
		WorkspaceID: in.WorkspaceID,
		Type:        models.LogTypeWebhook,
		NodeID:      in.NodeID,
		Timestamp:   s.now().UTC(),
		Details:     details,
	}
	s.webhookLogs.Append(in.WorkspaceID, rec)
	metrics.LogAppends.WithLabelValues(string(models.LogTypeWebhook)).Inc()
	metrics.WebhooksTotal.WithLabelValues(metrics.RouteLabel(in.Route), event.Provider.String()).Inc()
	metrics.WebhookBytesTotal.Add(float64(len(in.Request.Body)))

	s.persist(ctx, rec)

	if s.statsWriter != nil {
		var session string
		if event.SessionKey != nil {
			session = *event.SessionKey
		}
		s.statsWriter.Record(in.WorkspaceID, event.Provider.String(), session, event.IP)
	}

	routed, failed := false, false
	if shouldDispatch(event) {
		routed = true
		failed = !s.dispatch(ctx, in, event)
	}

	s.updateStats(len(in.Request.Body), routed, failed)

	s.logger.WithContext(ctx).Debug("webhook normalized",
		logging.WorkspaceID(in.WorkspaceID),
		logging.Provider(event.Provider.String()),
		logging.FlowContext(string(event.FlowContext)),
		logging.SessionKey(event.SessionKey),
	)

	return event, nil
}

// shouldDispatch reports whether the flow engine should see the event.
func shouldDispatch(event *models.CanonicalEvent) bool {
	switch event.Provider {
	case models.ProviderChatwoot, models.ProviderDialogy, models.ProviderEvolution:
		return event.HasSession()
	case models.ProviderUnrecognized:
		return false
	}
	return false
}

func (s *IngestService) dispatch(ctx context.Context, in WebhookInput, event *models.CanonicalEvent) bool {
	fc := string(event.FlowContext)
	if err := s.dispatcher.Dispatch(ctx, dispatch.NewTrigger(in.WorkspaceID, in.NodeID, event)); err != nil {
		metrics.DispatchTotal.WithLabelValues(fc, "error").Inc()
		s.logger.WithContext(ctx).Error("flow dispatch failed",
			logging.WorkspaceID(in.WorkspaceID),
			logging.FlowContext(fc),
			logging.Error(err),
		)
		return false
	}
	metrics.DispatchTotal.WithLabelValues(fc, "ok").Inc()
	return true
}

func (s *IngestService) persist(ctx context.Context, rec models.LogRecord) {
	if s.repo == nil {
		return
	}

	start := time.Now()
	err := s.repo.SaveLog(ctx, rec)
	metrics.RepositoryDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RepositoryErrors.Inc()
		s.logger.WithContext(ctx).Error("failed to persist log record",
			logging.WorkspaceID(rec.WorkspaceID),
			"log_type", string(rec.Type),
			logging.Error(err),
		)
	}
}

// RecordLog stores a caller-supplied telemetry record in the log of type typ.
func (s *IngestService) RecordLog(ctx context.Context, typ models.LogType, sub models.LogSubmission) (models.LogRecord, error) {
	store, err := s.storeFor(typ)
	if err != nil {
		return models.LogRecord{}, err
	}
	if sub.WorkspaceID == "" {
		return models.LogRecord{}, ErrMissingWorkspace
	}

	rec := models.LogRecord{
		ID:          s.newID(),
		WorkspaceID: sub.WorkspaceID,
		Type:        typ,
		NodeID:      sub.NodeID,
		Timestamp:   s.now().UTC(),
		Details:     sub.Details,
	}
	store.Append(sub.WorkspaceID, rec)
	metrics.LogAppends.WithLabelValues(string(typ)).Inc()

	s.persist(ctx, rec)
	return rec, nil
}

// ListLogs returns the bounded log of type typ for a workspace, newest first.
func (s *IngestService) ListLogs(typ models.LogType, workspaceID string) ([]models.LogRecord, error) {
	store, err := s.storeFor(typ)
	if err != nil {
		return nil, err
	}
	if workspaceID == "" {
		return nil, ErrMissingWorkspace
	}
	return store.List(workspaceID), nil
}

// History reads durable records beyond the bounded window.
func (s *IngestService) History(ctx context.Context, typ models.LogType, workspaceID string, limit int) ([]models.LogRecord, error) {
	if _, err := s.storeFor(typ); err != nil {
		return nil, err
	}
	if workspaceID == "" {
		return nil, ErrMissingWorkspace
	}
	if s.repo == nil {
		return nil, repository.ErrNotConfigured
	}
	return s.repo.ListRecent(ctx, workspaceID, typ, limit)
}

// WorkspaceStats returns cross-replica usage for a workspace.
func (s *IngestService) WorkspaceStats(ctx context.Context, workspaceID string) (*wsstats.Stats, error) {
	if workspaceID == "" {
		return nil, ErrMissingWorkspace
	}
	if s.statsReader == nil {
		return nil, ErrStatsDisabled
	}
	return s.statsReader.GetStats(ctx, workspaceID)
}

// GetStats returns process-local ingestion counters.
func (s *IngestService) GetStats() models.IngestionStats {
	s.statsMutex.RLock()
	defer s.statsMutex.RUnlock()
	return s.stats
}

// ActiveWorkspaces returns the number of workspaces with bounded webhook logs.
func (s *IngestService) ActiveWorkspaces() int {
	return len(s.webhookLogs.Workspaces())
}

func (s *IngestService) storeFor(typ models.LogType) (*logstore.Store, error) {
	switch typ {
	case models.LogTypeWebhook:
		return s.webhookLogs, nil
	case models.LogTypeAPICall:
		return s.apiCallLogs, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownLogType, typ)
}

func (s *IngestService) updateStats(bytes int, routed, dispatchFailed bool) {
	s.statsMutex.Lock()
	defer s.statsMutex.Unlock()

	s.stats.TotalEvents++
	s.stats.TotalBytes += int64(bytes)
	if routed {
		s.stats.RoutedEvents++
	} else {
		s.stats.UnroutedEvents++
	}
	if dispatchFailed {
		s.stats.DispatchFailures++
	}
	s.stats.LastEvent = s.now().UTC()
}
