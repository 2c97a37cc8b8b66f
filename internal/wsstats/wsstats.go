// Package wsstats provides Redis-backed per-workspace webhook usage statistics.
//
// Multiple flowhook replicas write concurrently, so counters live in Redis
// rather than in the bounded in-process logs.
//
// Redis Key Structure:
//
//	flowhook:stats:{workspace}                 - Hash with totals, per-provider counts, last event
//	flowhook:hourly:{workspace}:{YYYYMMDDHH}   - Event count for specific hour (expires 48h)
//	flowhook:daily:{workspace}:{YYYYMMDD}      - Event count for specific day (expires 7d)
//	flowhook:sessions:{workspace}:{YYYYMMDD}   - Set of session keys seen that day (expires 7d)
//	flowhook:instances:{workspace}             - Hash of replica -> last seen timestamp
package wsstats

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix      = "flowhook:"
	statsKeyPrefix = keyPrefix + "stats:"
	providerField  = "provider:"
)

// Stats is the current usage of one workspace.
type Stats struct {
	WorkspaceID         string            `json:"workspace_id"`
	LastEventAt         *time.Time        `json:"last_event_at,omitempty"`
	LastIP              string            `json:"last_ip,omitempty"`
	TotalEvents         int64             `json:"total_events"`
	EventsByProvider    map[string]int64  `json:"events_by_provider"`
	EventsLastHour      int64             `json:"events_last_hour"`
	EventsLast24h       int64             `json:"events_last_24h"`
	UniqueSessionsToday int64             `json:"unique_sessions_today"`
	Instances           map[string]string `json:"instances,omitempty"`
	StatsRetrievedAt    time.Time         `json:"stats_retrieved_at"`
}

// Client records and reads workspace statistics.
type Client struct {
	redis      *redis.Client
	instanceID string
	now        func() time.Time
}

// NewClient connects to redisURL. instanceID should be unique per replica.
func NewClient(redisURL string, instanceID string) (*Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return NewClientFromRedis(client, instanceID), nil
}

// NewClientFromRedis creates a client from an existing Redis connection.
func NewClientFromRedis(client *redis.Client, instanceID string) *Client {
	return &Client{
		redis:      client,
		instanceID: instanceID,
		now:        time.Now,
	}
}

// BatchUpdate holds accumulated stats for one workspace between flushes.
type BatchUpdate struct {
	WorkspaceID string
	EventCount  int64
	ByProvider  map[string]int64
	Sessions    map[string]struct{}
	LastIP      string
}

// NewBatchUpdate creates an empty accumulator for a workspace.
func NewBatchUpdate(workspaceID string) *BatchUpdate {
	return &BatchUpdate{
		WorkspaceID: workspaceID,
		ByProvider:  make(map[string]int64),
		Sessions:    make(map[string]struct{}),
	}
}

// Add accumulates one event. An empty sessionKey is not counted as a session.
func (b *BatchUpdate) Add(provider, sessionKey, ip string) {
	b.EventCount++
	b.ByProvider[provider]++
	if sessionKey != "" {
		b.Sessions[sessionKey] = struct{}{}
	}
	if ip != "" {
		b.LastIP = ip
	}
}

// Merge folds other into b.
func (b *BatchUpdate) Merge(other *BatchUpdate) {
	b.EventCount += other.EventCount
	for p, n := range other.ByProvider {
		b.ByProvider[p] += n
	}
	for s := range other.Sessions {
		b.Sessions[s] = struct{}{}
	}
	if other.LastIP != "" {
		b.LastIP = other.LastIP
	}
}

// FlushBatch writes accumulated batch stats to Redis in one pipeline.
func (c *Client) FlushBatch(ctx context.Context, batch *BatchUpdate) error {
	if batch.EventCount == 0 {
		return nil
	}

	now := c.now()
	hourKey := now.Format("2006010215")
	dayKey := now.Format("20060102")
	nowUnix := strconv.FormatInt(now.Unix(), 10)
	ws := batch.WorkspaceID

	pipe := c.redis.Pipeline()

	statsKey := statsKeyPrefix + ws
	fields := map[string]interface{}{"last_event_at": nowUnix}
	if batch.LastIP != "" {
		fields["last_ip"] = batch.LastIP
	}
	pipe.HSet(ctx, statsKey, fields)
	pipe.HIncrBy(ctx, statsKey, "total_events", batch.EventCount)
	for provider, n := range batch.ByProvider {
		pipe.HIncrBy(ctx, statsKey, providerField+provider, n)
	}

	hourlyKey := fmt.Sprintf("%shourly:%s:%s", keyPrefix, ws, hourKey)
	pipe.IncrBy(ctx, hourlyKey, batch.EventCount)
	pipe.Expire(ctx, hourlyKey, 48*time.Hour)

	dailyKey := fmt.Sprintf("%sdaily:%s:%s", keyPrefix, ws, dayKey)
	pipe.IncrBy(ctx, dailyKey, batch.EventCount)
	pipe.Expire(ctx, dailyKey, 7*24*time.Hour)

	if len(batch.Sessions) > 0 {
		sessionsKey := fmt.Sprintf("%ssessions:%s:%s", keyPrefix, ws, dayKey)
		members := make([]interface{}, 0, len(batch.Sessions))
		for s := range batch.Sessions {
			members = append(members, s)
		}
		pipe.SAdd(ctx, sessionsKey, members...)
		pipe.Expire(ctx, sessionsKey, 7*24*time.Hour)
	}

	instancesKey := keyPrefix + "instances:" + ws
	pipe.HSet(ctx, instancesKey, c.instanceID, nowUnix)
	pipe.Expire(ctx, instancesKey, 24*time.Hour)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to flush batch: %w", err)
	}

	return nil
}

// GetStats retrieves current statistics for a workspace. Unknown workspaces
// yield zero counters.
func (c *Client) GetStats(ctx context.Context, workspaceID string) (*Stats, error) {
	now := c.now()
	hourKey := now.Format("2006010215")
	dayKey := now.Format("20060102")

	pipe := c.redis.Pipeline()

	statsCmd := pipe.HGetAll(ctx, statsKeyPrefix+workspaceID)
	currentHourCmd := pipe.Get(ctx, fmt.Sprintf("%shourly:%s:%s", keyPrefix, workspaceID, hourKey))

	// Rolling 24h window over the hourly counters
	hourlyCmds := make([]*redis.StringCmd, 24)
	for i := range hourlyCmds {
		t := now.Add(-time.Duration(i) * time.Hour)
		hourlyCmds[i] = pipe.Get(ctx, fmt.Sprintf("%shourly:%s:%s", keyPrefix, workspaceID, t.Format("2006010215")))
	}

	sessionsCmd := pipe.SCard(ctx, fmt.Sprintf("%ssessions:%s:%s", keyPrefix, workspaceID, dayKey))
	instancesCmd := pipe.HGetAll(ctx, keyPrefix+"instances:"+workspaceID)

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}

	stats := &Stats{
		WorkspaceID:      workspaceID,
		EventsByProvider: make(map[string]int64),
		Instances:        make(map[string]string),
		StatsRetrievedAt: now.UTC(),
	}

	if fields, err := statsCmd.Result(); err == nil {
		for k, v := range fields {
			switch {
			case k == "last_event_at":
				if unix, err := strconv.ParseInt(v, 10, 64); err == nil {
					t := time.Unix(unix, 0).UTC()
					stats.LastEventAt = &t
				}
			case k == "last_ip":
				stats.LastIP = v
			case k == "total_events":
				stats.TotalEvents, _ = strconv.ParseInt(v, 10, 64)
			case strings.HasPrefix(k, providerField):
				n, _ := strconv.ParseInt(v, 10, 64)
				stats.EventsByProvider[strings.TrimPrefix(k, providerField)] = n
			}
		}
	}

	if val, err := currentHourCmd.Int64(); err == nil {
		stats.EventsLastHour = val
	}

	for _, cmd := range hourlyCmds {
		if val, err := cmd.Int64(); err == nil {
			stats.EventsLast24h += val
		}
	}

	if val, err := sessionsCmd.Result(); err == nil {
		stats.UniqueSessionsToday = val
	}

	if instances, err := instancesCmd.Result(); err == nil {
		for instance, lastSeen := range instances {
			if unix, err := strconv.ParseInt(lastSeen, 10, 64); err == nil {
				stats.Instances[instance] = time.Unix(unix, 0).UTC().Format(time.RFC3339)
			}
		}
	}

	return stats, nil
}

// ListActiveWorkspaces returns workspace IDs with an event in the last since.
func (c *Client) ListActiveWorkspaces(ctx context.Context, since time.Duration) ([]string, error) {
	var ids []string
	cutoff := c.now().Add(-since).Unix()

	iter := c.redis.Scan(ctx, 0, statsKeyPrefix+"*", 1000).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		lastEvent, err := c.redis.HGet(ctx, key, "last_event_at").Int64()
		if err == nil && lastEvent >= cutoff {
			ids = append(ids, strings.TrimPrefix(key, statsKeyPrefix))
		}
	}

	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan workspaces: %w", err)
	}

	return ids, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.redis.Close()
}
