package store

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"peaceclaims.dev/internal/protocol"
)

// Op is one durable write. Name is used for logging only.
type Op struct {
	Name string
	Run  func(ctx context.Context, b Backend) error
}

// Pending is the completion handle of a submitted op.
type Pending struct {
	done chan struct{}
	err  error
}

func (p *Pending) finish(err error) {
	p.err = err
	close(p.done)
}

// Done is closed once the op has run (or was dropped).
func (p *Pending) Done() <-chan struct{} { return p.done }

// Err is the op's result; only meaningful once Done is closed.
func (p *Pending) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Wait blocks until the op completes or ctx expires. Expiry yields
// protocol.ErrTimedOut; the op itself still runs.
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return protocol.ErrTimedOut
	}
}

type WriterConfig struct {
	Backend   Backend
	Logger    *log.Logger
	QueueSize int
	// OpTimeout bounds a single backend call.
	OpTimeout time.Duration
	// OnError is invoked from the writer goroutine for every failed op.
	OnError func(op Op, err error)
}

// Writer serializes all writes onto one goroutine so the request path never
// blocks on the backend.
type Writer struct {
	cfg WriterConfig

	ch   chan job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.RWMutex
	closed bool

	submitted atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
}

type job struct {
	op      Op
	pending *Pending
}

func NewWriter(cfg WriterConfig) *Writer {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 4096
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = 5 * time.Second
	}
	w := &Writer{
		cfg: cfg,
		ch:  make(chan job, cfg.QueueSize),
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.loop()
	}()
	return w
}

// Submit enqueues op. A full queue or a closed writer completes the handle
// immediately with an internal error rather than blocking the caller.
func (w *Writer) Submit(op Op) *Pending {
	p := &Pending{done: make(chan struct{})}
	if w == nil {
		p.finish(protocol.New(protocol.ErrInternal, "persistence_closed"))
		return p
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		p.finish(protocol.New(protocol.ErrInternal, "persistence_closed"))
		return p
	}
	select {
	case w.ch <- job{op: op, pending: p}:
		w.submitted.Add(1)
	default:
		w.dropped.Add(1)
		err := protocol.New(protocol.ErrInternal, "persistence_busy")
		w.report(op, err)
		p.finish(err)
	}
	return p
}

// Flush waits until every op submitted before the call has run.
func (w *Writer) Flush(ctx context.Context) error {
	return w.Submit(Op{Name: "flush", Run: func(context.Context, Backend) error { return nil }}).Wait(ctx)
}

type WriterStats struct {
	Submitted uint64 `json:"submitted"`
	Failed    uint64 `json:"failed"`
	Dropped   uint64 `json:"dropped"`
	Queued    int    `json:"queued"`
}

func (w *Writer) Stats() WriterStats {
	return WriterStats{
		Submitted: w.submitted.Load(),
		Failed:    w.failed.Load(),
		Dropped:   w.dropped.Load(),
		Queued:    len(w.ch),
	}
}

func (w *Writer) Close() error {
	w.once.Do(func() {
		w.mu.Lock()
		w.closed = true
		close(w.ch)
		w.mu.Unlock()
		w.wg.Wait()
	})
	return nil
}

func (w *Writer) loop() {
	for j := range w.ch {
		ctx, cancel := context.WithTimeout(context.Background(), w.cfg.OpTimeout)
		err := j.op.Run(ctx, w.cfg.Backend)
		cancel()
		if err != nil {
			w.failed.Add(1)
			w.report(j.op, err)
		}
		j.pending.finish(err)
	}
}

func (w *Writer) report(op Op, err error) {
	if w.cfg.Logger != nil {
		w.cfg.Logger.Printf("persist %s: %v", op.Name, err)
	}
	if w.cfg.OnError != nil {
		w.cfg.OnError(op, err)
	}
}
