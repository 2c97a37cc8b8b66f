// Package nats implements the messaging interfaces on NATS core and
// JetStream. Flow triggers carry the originating request ID as a header; it
// is restored into the handler context on receipt so subscribers log with
// the same correlation ID as the HTTP request that produced the trigger.
package nats

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/telhawk-systems/flowhook/common/messaging"
	"github.com/telhawk-systems/flowhook/common/middleware"
)

// HeaderPublishedAt carries the publish time in Unix milliseconds. NATS core
// has no server timestamp.
const HeaderPublishedAt = "Flowhook-Published-At"

// Config holds connection settings.
type Config struct {
	URL           string
	Name          string
	MaxReconnects int // -1 reconnects forever
	ReconnectWait time.Duration
	Timeout       time.Duration

	Username string
	Password string
	Token    string
}

// DefaultConfig targets a local server and reconnects forever.
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		Name:          "flowhook",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

func (cfg Config) connectOptions(log *slog.Logger) []nats.Option {
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected, triggers will buffer until reconnect", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("nats reconnected", "url", c.ConnectedUrlRedacted())
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			log.Error("nats async error", "subject", subject, "error", err)
		}),
	}

	switch {
	case cfg.Token != "":
		opts = append(opts, nats.Token(cfg.Token))
	case cfg.Username != "":
		opts = append(opts, nats.UserInfo(cfg.Username, cfg.Password))
	}
	return opts
}

// Client implements messaging.Client on a NATS core connection.
type Client struct {
	conn *nats.Conn
	log  *slog.Logger
	now  func() time.Time

	mu   sync.Mutex
	subs map[*subscription]struct{}
}

// NewClient connects to cfg.URL. A nil logger uses slog.Default.
func NewClient(cfg Config, log *slog.Logger) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}

	conn, err := nats.Connect(cfg.URL, cfg.connectOptions(log)...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
	}

	return &Client{
		conn: conn,
		log:  log,
		now:  time.Now,
		subs: make(map[*subscription]struct{}),
	}, nil
}

// Publish sends raw data with no headers.
func (c *Client) Publish(ctx context.Context, subject string, data []byte) error {
	return c.PublishMsg(ctx, &messaging.Message{Subject: subject, Data: data})
}

// PublishMsg sends msg with its metadata as headers, stamping the publish
// time and the request ID from ctx when the caller did not set them.
func (c *Client) PublishMsg(ctx context.Context, msg *messaging.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.conn.PublishMsg(c.outbound(ctx, msg))
}

func (c *Client) outbound(ctx context.Context, msg *messaging.Message) *nats.Msg {
	out := toNATS(msg)
	if out.Header == nil {
		out.Header = nats.Header{}
	}
	if out.Header.Get(HeaderPublishedAt) == "" {
		out.Header.Set(HeaderPublishedAt, strconv.FormatInt(c.now().UnixMilli(), 10))
	}
	if id := middleware.GetRequestID(ctx); id != "" && out.Header.Get(messaging.HeaderRequestID) == "" {
		out.Header.Set(messaging.HeaderRequestID, id)
	}
	return out
}

// Subscribe delivers every message on subject to handler. The handler
// context carries the request ID of the publishing request, if any.
func (c *Client) Subscribe(subject string, handler messaging.MessageHandler) (messaging.Subscription, error) {
	s := &subscription{client: c}

	natsSub, err := c.conn.Subscribe(subject, func(m *nats.Msg) {
		msg := fromNATS(m, c.now)
		ctx := context.Background()
		if id := msg.Metadata[messaging.HeaderRequestID]; id != "" {
			ctx = middleware.WithRequestID(ctx, id)
		}
		if err := handler(ctx, msg); err != nil {
			c.log.Error("flow trigger handler failed",
				"subject", m.Subject,
				"request_id", msg.Metadata[messaging.HeaderRequestID],
				"error", err,
			)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	s.natsSub = natsSub

	c.mu.Lock()
	c.subs[s] = struct{}{}
	c.mu.Unlock()
	return s, nil
}

func (c *Client) forget(s *subscription) {
	c.mu.Lock()
	delete(c.subs, s)
	c.mu.Unlock()
}

// Close unsubscribes everything and closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	subs := c.subs
	c.subs = make(map[*subscription]struct{})
	c.mu.Unlock()

	for s := range subs {
		_ = s.natsSub.Unsubscribe()
	}
	c.conn.Close()
	return nil
}

// Drain flushes pending publishes and in-flight handlers before closing.
func (c *Client) Drain() error { return c.conn.Drain() }

func (c *Client) IsConnected() bool { return c.conn.IsConnected() }

func (c *Client) RTT() (time.Duration, error) { return c.conn.RTT() }

type subscription struct {
	client  *Client
	natsSub *nats.Subscription
}

func (s *subscription) Unsubscribe() error {
	s.client.forget(s)
	return s.natsSub.Unsubscribe()
}

func (s *subscription) Subject() string { return s.natsSub.Subject }

func toNATS(msg *messaging.Message) *nats.Msg {
	out := nats.NewMsg(msg.Subject)
	out.Data = msg.Data
	if len(msg.Metadata) == 0 {
		out.Header = nil
		return out
	}
	for k, v := range msg.Metadata {
		out.Header.Set(k, v)
	}
	return out
}

// fromNATS converts a received message. Timestamp is the publish time from
// HeaderPublishedAt when present, otherwise the receive time.
func fromNATS(m *nats.Msg, now func() time.Time) *messaging.Message {
	msg := &messaging.Message{
		Subject:   m.Subject,
		Data:      m.Data,
		Timestamp: now(),
	}
	if len(m.Header) == 0 {
		return msg
	}

	msg.Metadata = make(map[string]string, len(m.Header))
	for k := range m.Header {
		msg.Metadata[k] = m.Header.Get(k)
	}
	if ms, err := strconv.ParseInt(msg.Metadata[HeaderPublishedAt], 10, 64); err == nil {
		msg.Timestamp = time.UnixMilli(ms)
	}
	return msg
}
