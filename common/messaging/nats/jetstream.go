package nats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/telhawk-systems/flowhook/common/messaging"
)

// JetStreamClient publishes through JetStream so flow triggers survive a
// flow engine restart. It satisfies messaging.Client.
type JetStreamClient struct {
	*Client
	js jetstream.JetStream
}

// StreamConfig defines a JetStream stream configuration.
type StreamConfig struct {
	Name      string
	Subjects  []string
	MaxAge    time.Duration
	MaxBytes  int64
	MaxMsgs   int64
	Retention jetstream.RetentionPolicy
	Storage   jetstream.StorageType
}

// FlowsInboundStream captures every normalized webhook trigger.
var FlowsInboundStream = StreamConfig{
	Name:      "FLOWS_INBOUND",
	Subjects:  []string{messaging.SubjectFlowsInboundAll},
	MaxAge:    24 * time.Hour,
	MaxBytes:  512 * 1024 * 1024, // 512MB
	MaxMsgs:   1000000,
	Retention: jetstream.WorkQueuePolicy, // Each trigger consumed once
	Storage:   jetstream.FileStorage,
}

// NewJetStreamClient creates a JetStream-enabled client.
func NewJetStreamClient(cfg Config, log *slog.Logger) (*JetStreamClient, error) {
	client, err := NewClient(cfg, log)
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(client.conn)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return &JetStreamClient{
		Client: client,
		js:     js,
	}, nil
}

// CreateOrUpdateStream creates or updates a stream.
func (c *JetStreamClient) CreateOrUpdateStream(ctx context.Context, cfg StreamConfig) (jetstream.Stream, error) {
	stream, err := c.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      cfg.Name,
		Subjects:  cfg.Subjects,
		MaxAge:    cfg.MaxAge,
		MaxBytes:  cfg.MaxBytes,
		MaxMsgs:   cfg.MaxMsgs,
		Retention: cfg.Retention,
		Storage:   cfg.Storage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create/update stream %s: %w", cfg.Name, err)
	}

	return stream, nil
}

// Publish sends data and waits for the stream acknowledgement.
func (c *JetStreamClient) Publish(ctx context.Context, subject string, data []byte) error {
	return c.PublishMsg(ctx, &messaging.Message{Subject: subject, Data: data})
}

// PublishMsg sends msg with headers and waits for the stream acknowledgement.
func (c *JetStreamClient) PublishMsg(ctx context.Context, msg *messaging.Message) error {
	if _, err := c.js.PublishMsg(ctx, c.outbound(ctx, msg)); err != nil {
		return fmt.Errorf("jetstream publish %s: %w", msg.Subject, err)
	}
	return nil
}
