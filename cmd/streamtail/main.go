// Command streamtail follows a file like tail -f and prints appended
// lines. With -listen it also serves Prometheus metrics and the most
// recent lines over HTTP.
//
// Usage:
//
//	streamtail [-config streamtail.yaml] [-listen :9120] [-from-end] [-re-open] <path>
//
// Flags override the config file, which in turn is overridden by
// STREAMIO_* environment variables for the fields both define.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/fluxorio/streamio/pkg/config"
	"github.com/fluxorio/streamio/pkg/log"
	"github.com/fluxorio/streamio/pkg/metric"
	"github.com/fluxorio/streamio/pkg/tailer"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "streamtail:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "path to a YAML or JSON config file")
		listen     = flag.String("listen", "", "serve /metrics and /tail on this address")
		fromEnd    = flag.Bool("from-end", false, "start at the current end of the file")
		reOpen     = flag.Bool("re-open", false, "close and reopen the file between polls")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if flag.NArg() > 0 {
		cfg.Tail.Path = flag.Arg(0)
	}
	if *listen != "" {
		cfg.Serve.Listen = *listen
	}
	if *fromEnd {
		cfg.Tail.FromEnd = true
	}
	if *reOpen {
		cfg.Tail.ReOpen = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level := log.LevelInfo
	if *verbose {
		level = log.LevelDebug
	}
	logger := log.New(os.Stderr, level)
	metrics := metric.Get()

	recent := newRing(cfg.Serve.TailBufferLines)
	listener := &printListener{logger: logger, recent: recent}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	t := tailer.New(cfg.Tail.Path, listener, tailer.Config{
		Delay:      cfg.Tail.Delay(),
		FromEnd:    cfg.Tail.FromEnd,
		ReOpen:     cfg.Tail.ReOpen,
		BufferSize: cfg.Tail.BufferSize,
		Logger:     logger,
		Metrics:    metrics,
	})
	t.Start(context.Background())
	defer func() {
		t.Stop()
		<-t.Done()
	}()

	var srv *fasthttp.Server
	if cfg.Serve.Listen != "" {
		srv = newServer(recent)
		go func() {
			logger.Infof("serving metrics on %s", cfg.Serve.Listen)
			if err := srv.ListenAndServe(cfg.Serve.Listen); err != nil {
				logger.Errorf("http server: %v", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case <-t.Done():
		// The tailer hit an unrecoverable error; the listener already
		// logged it.
	}
	if srv != nil {
		if err := srv.Shutdown(); err != nil {
			logger.Warnf("http shutdown: %v", err)
		}
	}
	return nil
}

// printListener writes lines to stdout, keeps the recent-lines ring
// current, and logs lifecycle events.
type printListener struct {
	tailer.ListenerAdapter
	logger log.Logger
	recent *ring
}

func (l *printListener) Handle(line string) {
	fmt.Println(line)
	l.recent.add(line)
}

func (l *printListener) FileNotFound() {
	l.logger.Warn("file not found, waiting for it to appear")
}

func (l *printListener) FileRotated() {
	l.logger.Info("file rotated, restarting from the beginning")
}

func (l *printListener) Error(err error) {
	l.logger.Errorf("tailing stopped: %v", err)
}

// newServer routes /metrics to the Prometheus registry and /tail to
// the recent-lines ring.
func newServer(recent *ring) *fasthttp.Server {
	metricsHandler := fasthttpadaptor.NewFastHTTPHandler(
		promhttp.HandlerFor(metric.DefaultRegistry, promhttp.HandlerOpts{}))

	handler := func(ctx *fasthttp.RequestCtx) {
		switch string(ctx.Path()) {
		case "/metrics":
			metricsHandler(ctx)
		case "/tail":
			ctx.SetContentType("application/json")
			if err := json.NewEncoder(ctx).Encode(recent.snapshot()); err != nil {
				ctx.SetStatusCode(http.StatusInternalServerError)
			}
		case "/live":
			ctx.SetContentType("application/json")
			ctx.SetBodyString(`{"status":"up"}`)
		default:
			ctx.SetStatusCode(http.StatusNotFound)
		}
	}
	return &fasthttp.Server{Handler: handler, Name: "streamtail"}
}

// ring is a fixed-capacity buffer of the most recent lines.
type ring struct {
	mu    sync.Mutex
	lines []string
	next  int
	full  bool
}

func newRing(capacity int) *ring {
	if capacity <= 0 {
		capacity = 100
	}
	return &ring{lines: make([]string, capacity)}
}

func (r *ring) add(line string) {
	r.mu.Lock()
	r.lines[r.next] = line
	r.next = (r.next + 1) % len(r.lines)
	if r.next == 0 {
		r.full = true
	}
	r.mu.Unlock()
}

// snapshot returns the buffered lines, oldest first.
func (r *ring) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.full {
		return append([]string(nil), r.lines[:r.next]...)
	}
	out := make([]string, 0, len(r.lines))
	out = append(out, r.lines[r.next:]...)
	out = append(out, r.lines[:r.next]...)
	return out
}
