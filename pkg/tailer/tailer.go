// Package tailer follows a file the way tail -f does, delivering
// complete lines to a listener as they are appended. It survives the
// file not existing yet, being truncated, and being rotated away and
// recreated.
package tailer

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/fluxorio/streamio/pkg/failfast"
	"github.com/fluxorio/streamio/pkg/log"
	"github.com/fluxorio/streamio/pkg/metric"
)

// State describes what a tailer is currently doing.
type State int32

const (
	// StateInitializing is the state before the first poll.
	StateInitializing State = iota

	// StateTailing means the file is open and being read.
	StateTailing

	// StateEndReached means the last poll consumed everything appended
	// so far.
	StateEndReached

	// StateFileNotFound means the file does not exist, the tailer keeps
	// polling for it to appear.
	StateFileNotFound

	// StateStopped is terminal: Stop was called, the context was
	// cancelled, or an unrecoverable error was delivered.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateTailing:
		return "tailing"
	case StateEndReached:
		return "end-reached"
	case StateFileNotFound:
		return "file-not-found"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Listener receives tailing events. All methods are called from the
// tailer's single goroutine, in order: Init exactly once before
// anything else, then line and lifecycle events as they happen. Error
// is terminal; nothing is delivered after it.
type Listener interface {
	// Init is called once, before the first poll.
	Init(t *Tailer)

	// Handle delivers one complete line, without its terminator.
	Handle(line string)

	// FileNotFound is called once per transition into the missing-file
	// state, not on every poll while the file stays missing.
	FileNotFound()

	// FileRotated is called when the file was replaced or truncated.
	// Reading restarts from the beginning of the new file.
	FileRotated()

	// EndOfFileReached is called each time a poll consumes everything
	// currently in the file.
	EndOfFileReached()

	// Error delivers an unrecoverable error. The tailer stops after
	// this call.
	Error(err error)
}

// ListenerAdapter is a Listener with no-op methods, for embedding when
// only some events matter.
type ListenerAdapter struct{}

var _ Listener = (*ListenerAdapter)(nil)

func (ListenerAdapter) Init(*Tailer)      {}
func (ListenerAdapter) Handle(string)     {}
func (ListenerAdapter) FileNotFound()     {}
func (ListenerAdapter) FileRotated()      {}
func (ListenerAdapter) EndOfFileReached() {}
func (ListenerAdapter) Error(error)       {}

// Config configures a Tailer.
type Config struct {
	// Delay is the pause between polls. Default: 1s.
	Delay time.Duration

	// FromEnd starts tailing at the current end of the file instead of
	// its beginning, like tail -f without -n.
	FromEnd bool

	// ReOpen closes and reopens the file between polls, for platforms
	// or filesystems where a held handle pins a rotated file.
	ReOpen bool

	// BufferSize is the read chunk size. Default: 4096.
	BufferSize int

	// Logger receives diagnostics. Default: no logging.
	Logger log.Logger

	// Metrics receives per-path counters. Default: none.
	Metrics *metric.Metrics

	// OnTransition, if set, observes every state change.
	OnTransition func(State)
}

// Tailer follows one file. Create with New, run with Start, halt with
// Stop. A stopped tailer cannot be restarted.
type Tailer struct {
	id       string
	path     string
	listener Listener

	delay      time.Duration
	fromEnd    bool
	reOpen     bool
	bufferSize int
	logger     log.Logger
	metrics    *metric.Metrics
	transition func(State)

	state atomic.Int32

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}

	// reader state, owned by the run goroutine
	file      *os.File
	fileInfo  os.FileInfo
	pos       int64
	partial   []byte
	lastWasCR bool
	firstOpen bool
}

// New creates a tailer for path. The listener must not be nil.
func New(path string, listener Listener, cfg Config) *Tailer {
	failfast.If(path != "", "path cannot be empty")
	failfast.NotNil(listener, "listener")

	delay := cfg.Delay
	if delay <= 0 {
		delay = time.Second
	}
	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = 4096
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	return &Tailer{
		id:         uuid.NewString(),
		path:       path,
		listener:   listener,
		delay:      delay,
		fromEnd:    cfg.FromEnd,
		reOpen:     cfg.ReOpen,
		bufferSize: bufferSize,
		logger:     logger,
		metrics:    cfg.Metrics,
		transition: cfg.OnTransition,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		firstOpen:  true,
	}
}

// ID is a unique identifier for this tailer instance.
func (t *Tailer) ID() string { return t.id }

// Path is the file being tailed.
func (t *Tailer) Path() string { return t.path }

// State is the current lifecycle state.
func (t *Tailer) State() State { return State(t.state.Load()) }

func (t *Tailer) setState(s State) {
	if t.state.Swap(int32(s)) != int32(s) && t.transition != nil {
		t.transition(s)
	}
}

// Start launches the polling goroutine. Call at most once.
func (t *Tailer) Start(ctx context.Context) {
	go t.run(ctx)
}

// Stop halts the tailer. It is idempotent and returns without waiting;
// use Done to wait for the goroutine to exit.
func (t *Tailer) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
}

// Done is closed when the polling goroutine has exited.
func (t *Tailer) Done() <-chan struct{} { return t.done }

func (t *Tailer) run(ctx context.Context) {
	defer close(t.done)
	defer t.setState(StateStopped)
	defer t.closeFile()

	t.listener.Init(t)

	for {
		if err := t.poll(); err != nil {
			t.logger.Errorf("tailer %s: %v", t.path, err)
			t.listener.Error(err)
			return
		}
		select {
		case <-t.stop:
			return
		case <-ctx.Done():
			// Cancellation is unrecoverable, surface it like any other
			// terminal error so the listener can tell it apart from a
			// deliberate Stop.
			t.listener.Error(ctx.Err())
			return
		case <-time.After(t.delay):
		}
	}
}

func (t *Tailer) closeFile() {
	if t.file != nil {
		t.file.Close()
		t.file = nil
	}
}

// poll performs one cycle: ensure the file is open, detect rotation,
// read appended bytes. Only the missing file is recoverable; any other
// error is returned and terminates the tailer.
func (t *Tailer) poll() error {
	if t.file == nil {
		if err := t.open(); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				if t.State() != StateFileNotFound {
					t.setState(StateFileNotFound)
					t.listener.FileNotFound()
					if t.metrics != nil {
						t.metrics.RecordNotFound(t.path)
					}
				}
				return nil
			}
			return err
		}
	}

	rotated, gone, err := t.checkRotation()
	if err != nil {
		return err
	}
	if gone {
		if t.State() != StateFileNotFound {
			t.setState(StateFileNotFound)
			t.listener.FileNotFound()
			if t.metrics != nil {
				t.metrics.RecordNotFound(t.path)
			}
		}
		return nil
	}
	if rotated {
		t.listener.FileRotated()
		if t.metrics != nil {
			t.metrics.RecordRotation(t.path)
		}
		if err := t.open(); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				// Rotated away and not recreated yet.
				t.setState(StateFileNotFound)
				t.listener.FileNotFound()
				if t.metrics != nil {
					t.metrics.RecordNotFound(t.path)
				}
				return nil
			}
			return err
		}
	}

	t.setState(StateTailing)
	if err := t.readLines(); err != nil {
		return err
	}
	t.setState(StateEndReached)
	t.listener.EndOfFileReached()

	if t.reOpen {
		t.closeFile()
	}
	return nil
}

// open (re)opens the file and positions it. The first open of a
// FromEnd tailer seeks to the end; every other open resumes at the
// last read position, or the start after a rotation (pos reset by the
// caller).
func (t *Tailer) open() error {
	t.closeFile()

	f, err := os.Open(t.path)
	if err != nil {
		return err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}

	if t.firstOpen && t.fromEnd {
		t.pos = fi.Size()
	}
	t.firstOpen = false
	// A pos beyond the current size means the file shrank while the
	// handle was closed; checkRotation sees it and reports a rotation.
	if _, err := f.Seek(t.pos, io.SeekStart); err != nil {
		f.Close()
		return err
	}

	t.file = f
	t.fileInfo = fi
	return nil
}

// checkRotation reports whether the path now refers to a different
// file, to the same file truncated below the read position, or to
// nothing at all. On rotation or removal the partial line from the old
// file is dropped and reading restarts at the beginning.
func (t *Tailer) checkRotation() (rotated, gone bool, err error) {
	fi, err := os.Stat(t.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			t.reset()
			return false, true, nil
		}
		return false, false, err
	}
	if os.SameFile(t.fileInfo, fi) && fi.Size() >= t.pos {
		return false, false, nil
	}
	t.reset()
	return true, false, nil
}

// reset drops the handle and all progress, as if the file were new.
func (t *Tailer) reset() {
	t.closeFile()
	t.pos = 0
	t.partial = nil
	t.lastWasCR = false
}

// readLines consumes everything from pos to the current end of file,
// delivering complete lines and holding back a trailing partial line.
func (t *Tailer) readLines() error {
	if t.file == nil {
		return nil
	}
	buf := make([]byte, t.bufferSize)
	for {
		n, err := t.file.Read(buf)
		if n > 0 {
			t.pos += int64(n)
			t.split(buf[:n])
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// split scans a chunk for line terminators. LF, CRLF and bare CR all
// end a line; a CR at the end of a chunk is held until the next byte
// shows whether it belongs to a CRLF.
func (t *Tailer) split(chunk []byte) {
	for _, b := range chunk {
		switch b {
		case '\n':
			if t.lastWasCR {
				// Second half of a CRLF, the line already went out.
				t.lastWasCR = false
				continue
			}
			t.emit()
		case '\r':
			t.lastWasCR = true
			t.emit()
		default:
			t.lastWasCR = false
			t.partial = append(t.partial, b)
		}
	}
}

func (t *Tailer) emit() {
	line := string(t.partial)
	t.partial = t.partial[:0]
	t.listener.Handle(line)
	if t.metrics != nil {
		t.metrics.RecordLine(t.path)
	}
}
