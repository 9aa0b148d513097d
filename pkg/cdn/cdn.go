// Package cdn requests invalidation of content delivery cache entries.
package cdn

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/walteh/docpatch/pkg/config"
	"gitlab.com/tozd/go/errors"
)

// flushTimeout bounds the publish acknowledgement when the caller set no deadline
const flushTimeout = 5 * time.Second

// 🌐 Invalidator starts a cache invalidation for paths and returns its id
type Invalidator interface {
	Invalidate(ctx context.Context, paths []string) (string, error)
}

// Request is the message published for each invalidation
type Request struct {
	ID          string    `json:"id"`
	Paths       []string  `json:"paths"`
	RequestedAt time.Time `json:"requestedAt"`
}

// 🏭 New creates the invalidator selected by cfg.Type
func New(ctx context.Context, cfg config.CDN) (Invalidator, error) {
	switch cfg.Type {
	case "nats":
		return NewNATS(ctx, cfg.NATSURL, cfg.Subject)
	case "log", "":
		return &Log{}, nil
	default:
		return nil, errors.Errorf("unknown cdn type %q", cfg.Type)
	}
}

// Close releases the invalidator's connection, if any
func Close(inv Invalidator) {
	if n, ok := inv.(*NATS); ok {
		n.Close()
	}
}

// NATS publishes invalidation requests for an edge worker to execute
type NATS struct {
	conn    *nats.Conn
	subject string
	now     func() time.Time
}

// NewNATS connects to url and publishes on subject
func NewNATS(ctx context.Context, url, subject string) (*NATS, error) {
	logger := zerolog.Ctx(ctx)

	nc, err := nats.Connect(url,
		nats.Name("docpatch"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("nats disconnected")
			}
		}),
	)
	if err != nil {
		return nil, errors.Errorf("connecting to nats: %w", err)
	}

	return NewNATSWithConn(nc, subject), nil
}

// NewNATSWithConn publishes on subject using an existing connection
func NewNATSWithConn(nc *nats.Conn, subject string) *NATS {
	return &NATS{conn: nc, subject: subject, now: time.Now}
}

func (n *NATS) Invalidate(ctx context.Context, paths []string) (string, error) {
	req := Request{
		ID:          uuid.NewString(),
		Paths:       paths,
		RequestedAt: n.now().UTC(),
	}

	data, err := json.Marshal(req)
	if err != nil {
		return "", errors.Errorf("marshaling invalidation request: %w", err)
	}

	if err := n.conn.Publish(n.subject, data); err != nil {
		return "", errors.Errorf("publishing invalidation request: %w", err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, flushTimeout)
		defer cancel()
	}
	if err := n.conn.FlushWithContext(ctx); err != nil {
		return "", errors.Errorf("flushing invalidation request: %w", err)
	}

	zerolog.Ctx(ctx).Info().
		Str("invalidation_id", req.ID).
		Strs("paths", paths).
		Str("subject", n.subject).
		Msg("published cdn invalidation")

	return req.ID, nil
}

// Close drains the connection
func (n *NATS) Close() {
	n.conn.Close()
}

// Log records invalidations without contacting a CDN
type Log struct{}

func (l *Log) Invalidate(ctx context.Context, paths []string) (string, error) {
	id := uuid.NewString()
	zerolog.Ctx(ctx).Info().
		Str("invalidation_id", id).
		Strs("paths", paths).
		Msg("cdn invalidation (log only)")
	return id, nil
}
