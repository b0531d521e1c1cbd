package queuestream

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSConfig configures a NATS-backed reader or writer.
type NATSConfig struct {
	// URL is the NATS server URL, e.g. "nats://127.0.0.1:4222".
	// Default: nats.DefaultURL.
	URL string

	// Subject carries the stream's chunks. Required.
	Subject string

	// Prefix is prepended to the subject. Default: "streamio".
	Prefix string

	// Name is an optional NATS connection name.
	Name string

	// ReadTimeout bounds how long a read waits for a chunk before
	// returning ErrReadTimeout. Default: 1s. Reader side only.
	ReadTimeout time.Duration
}

func (cfg *NATSConfig) fill() error {
	if cfg.Subject == "" {
		return fmt.Errorf("queuestream: subject cannot be empty")
	}
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "streamio"
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = time.Second
	}
	return nil
}

func (cfg *NATSConfig) subject() string {
	return cfg.Prefix + "." + cfg.Subject
}

func natsConnect(cfg NATSConfig) (*nats.Conn, error) {
	return nats.Connect(cfg.URL, func(o *nats.Options) error {
		if cfg.Name != "" {
			o.Name = cfg.Name
		}
		return nil
	})
}

// NATSWriter publishes each written chunk to a subject. Writes never
// block on the consumer; the server buffers for slow subscribers.
type NATSWriter struct {
	nc      *nats.Conn
	subject string
	closed  bool
}

var _ io.WriteCloser = (*NATSWriter)(nil)

// NewNATSWriter connects to the server and returns the producing end of
// a stream over cfg.Subject.
func NewNATSWriter(cfg NATSConfig) (*NATSWriter, error) {
	if err := cfg.fill(); err != nil {
		return nil, err
	}
	nc, err := natsConnect(cfg)
	if err != nil {
		return nil, err
	}
	return &NATSWriter{nc: nc, subject: cfg.subject()}, nil
}

func (w *NATSWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	// Publish copies the payload before buffering, the caller may
	// reuse p.
	if err := w.nc.Publish(w.subject, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close flushes pending publishes and drops the connection.
func (w *NATSWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	err := w.nc.Flush()
	w.nc.Close()
	return err
}

// NATSReader consumes chunks from a subject in publish order. A read
// that finds no chunk within ReadTimeout returns ErrReadTimeout; there
// is no end-of-stream over plain NATS, so io.EOF is never returned.
type NATSReader struct {
	nc       *nats.Conn
	sub      *nats.Subscription
	timeout  time.Duration
	leftover []byte
	closed   bool
}

var _ io.ReadCloser = (*NATSReader)(nil)

// NewNATSReader connects to the server and subscribes to cfg.Subject.
// Chunks published before the subscription exists are not seen.
func NewNATSReader(cfg NATSConfig) (*NATSReader, error) {
	if err := cfg.fill(); err != nil {
		return nil, err
	}
	nc, err := natsConnect(cfg)
	if err != nil {
		return nil, err
	}
	sub, err := nc.SubscribeSync(cfg.subject())
	if err != nil {
		nc.Close()
		return nil, err
	}
	return &NATSReader{nc: nc, sub: sub, timeout: cfg.ReadTimeout}, nil
}

func (r *NATSReader) Read(p []byte) (int, error) {
	if r.closed {
		return 0, ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	if len(r.leftover) == 0 {
		msg, err := r.sub.NextMsg(r.timeout)
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) {
				return 0, ErrReadTimeout
			}
			return 0, err
		}
		r.leftover = msg.Data
	}
	n := copy(p, r.leftover)
	r.leftover = r.leftover[n:]
	return n, nil
}

// Available reports the bytes deliverable without a server round trip:
// the unread part of the current chunk only.
func (r *NATSReader) Available() int {
	return len(r.leftover)
}

// Close unsubscribes and drops the connection.
func (r *NATSReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	err := r.sub.Unsubscribe()
	r.nc.Close()
	return err
}
