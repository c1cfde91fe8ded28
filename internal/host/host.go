// Package host owns annotation sessions and persists what they produce.
//
// A Host creates one session at a time, hands it the display, and acts as
// its receiver: when the session completes, the host wraps the encoded pair
// into an export.Bundle and queues it. Flush writes the queue to the sink.
// Nothing is written for a session that is abandoned.
package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/roach88/motionvdl/internal/display"
	"github.com/roach88/motionvdl/internal/export"
	"github.com/roach88/motionvdl/internal/session"
	"github.com/roach88/motionvdl/internal/skeleton"
	"github.com/roach88/motionvdl/internal/video"
)

// Host runs labelling sessions against one display and one sink.
//
// Thread-safety: Start and the session's events belong to the input
// goroutine. Flush and Pending may be called from any goroutine.
type Host struct {
	display  display.Display
	sink     export.Sink
	ids      IDGenerator
	logger   *slog.Logger
	skeleton *skeleton.Skeleton

	current *session.Session
	id      string
	source  string

	mu      sync.Mutex
	pending []*export.Bundle
}

// Option configures a Host.
type Option func(*Host)

// WithIDGenerator sets the session ID source. Defaults to UUIDv7.
func WithIDGenerator(g IDGenerator) Option {
	return func(h *Host) {
		h.ids = g
	}
}

// WithLogger sets the host logger. Sessions log through it too.
func WithLogger(l *slog.Logger) Option {
	return func(h *Host) {
		h.logger = l
	}
}

// WithSkeleton sets the joint layout. Defaults to skeleton.Default().
func WithSkeleton(s *skeleton.Skeleton) Option {
	return func(h *Host) {
		h.skeleton = s
	}
}

// New creates a host. sink may be nil when results are only inspected
// through Pending.
func New(d display.Display, sink export.Sink, opts ...Option) *Host {
	h := &Host{
		display:  d,
		sink:     sink,
		ids:      UUIDv7Generator{},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		skeleton: skeleton.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Start opens a session on v. source is recorded in the bundle (a path or a
// noise source). A session still open from an earlier Start is abandoned.
func (h *Host) Start(v *video.Video, source string) (*session.Session, error) {
	if h.current != nil && h.current.Active() {
		h.logger.Warn("abandoning open session", "session", h.id)
		h.current.Abandon()
	}

	id := h.ids.Generate()
	s := session.New(h.display, h,
		session.WithJoints(h.skeleton.Joints),
		session.WithLogger(h.logger.With("session", id)),
	)
	if err := s.Activate(v); err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	h.current, h.id, h.source = s, id, source
	h.logger.Info("session started", "session", id, "source", source, "skeleton", h.skeleton.Name)
	return s, nil
}

// Current returns the most recently started session and its ID.
func (h *Host) Current() (*session.Session, string) {
	return h.current, h.id
}

// Receive implements session.Receiver. It bundles the result of the current
// session and queues it for Flush.
func (h *Host) Receive(r session.Result) error {
	if h.id == "" {
		return errors.New("receive: no session started")
	}
	b, err := export.NewBundle(h.id, h.source, r)
	if err != nil {
		return fmt.Errorf("receive: %w", err)
	}

	h.mu.Lock()
	h.pending = append(h.pending, b)
	h.mu.Unlock()

	h.logger.Info("bundle queued", "session", b.SessionID, "digest", b.Digest)
	return nil
}

// Pending returns the bundles not yet flushed.
func (h *Host) Pending() []*export.Bundle {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*export.Bundle(nil), h.pending...)
}

// Flush writes queued bundles to the sink in completion order and returns
// their keys. On failure the unwritten bundles stay queued.
func (h *Host) Flush(ctx context.Context) ([]string, error) {
	if h.sink == nil {
		return nil, errors.New("flush: no sink configured")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	keys := make([]string, 0, len(h.pending))
	for len(h.pending) > 0 {
		b := h.pending[0]
		key, err := h.sink.Write(ctx, b)
		if err != nil {
			return keys, fmt.Errorf("flush %s: %w", b.SessionID, err)
		}
		h.logger.Info("bundle written", "session", b.SessionID, "key", key)
		keys = append(keys, key)
		h.pending = h.pending[1:]
	}
	return keys, nil
}
