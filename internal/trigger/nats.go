package trigger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/nats-io/nats.go"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// Connect dials the NATS server at url and reconnects forever.
func Connect(ctx context.Context, url, name string) (*nats.Conn, error) {
	logger := log.FromContext(ctx).WithName("nats")
	opts := []nats.Option{
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Error(err, "disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("reconnected", "url", nc.ConnectedUrl())
		}),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats at %s: %w", url, err)
	}
	return nc, nil
}

// Listener serves requests from a NATS queue group.
type Listener struct {
	nc    *nats.Conn
	queue string
	d     *Dispatcher
	subs  []*nats.Subscription
}

// NewListener creates a listener on nc.
func NewListener(nc *nats.Conn, queue string, d *Dispatcher) *Listener {
	return &Listener{nc: nc, queue: queue, d: d}
}

// Start subscribes to every request subject. Handlers run with ctx.
func (l *Listener) Start(ctx context.Context) error {
	logger := log.FromContext(ctx).WithName("trigger")
	for _, subject := range Subjects(l.d.Prefix) {
		sub, err := l.nc.QueueSubscribe(subject, l.queue, l.handler(ctx, logger))
		if err != nil {
			l.Stop()
			return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
		}
		l.subs = append(l.subs, sub)
	}
	logger.Info("listening for requests", "prefix", l.d.Prefix, "queue", l.queue)
	return nil
}

func (l *Listener) handler(ctx context.Context, logger logr.Logger) nats.MsgHandler {
	return func(msg *nats.Msg) {
		reqLog := logger.WithValues("subject", msg.Subject)
		reply := l.d.Dispatch(log.IntoContext(ctx, reqLog), msg.Subject, msg.Data)
		if !reply.OK {
			reqLog.Info("request failed", "error", reply.Error)
		}
		if msg.Reply == "" {
			return
		}
		data, err := json.Marshal(reply)
		if err != nil {
			reqLog.Error(err, "failed to encode reply")
			return
		}
		if err := msg.Respond(data); err != nil {
			reqLog.Error(err, "failed to send reply")
		}
	}
}

// Stop drains the subscriptions. In-flight handlers finish first.
func (l *Listener) Stop() {
	for _, sub := range l.subs {
		_ = sub.Drain()
	}
	l.subs = nil
}

// Client sends requests to a listener.
type Client struct {
	nc     *nats.Conn
	prefix string
}

// NewClient creates a client publishing under prefix.
func NewClient(nc *nats.Conn, prefix string) *Client {
	return &Client{nc: nc, prefix: prefix}
}

// Request sends action on entity id and waits for the reply until ctx is done.
func (c *Client) Request(ctx context.Context, action, entity string, id int64) (*Reply, error) {
	data, err := json.Marshal(Request{ID: id})
	if err != nil {
		return nil, err
	}
	msg, err := c.nc.RequestWithContext(ctx, Subject(c.prefix, action, entity), data)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	var reply Reply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return nil, fmt.Errorf("failed to decode reply: %w", err)
	}
	return &reply, nil
}
