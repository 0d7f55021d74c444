package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// WriteFunc performs database writes inside the batch transaction.
// tx is nil when the writer has no database.
type WriteFunc func(ctx context.Context, tx *sql.Tx) error

// ErrBatchWriterClosed is returned by Submit and Close once Close has been called.
var ErrBatchWriterClosed = errors.New("batch writer closed")

// BatchWriter is the write path of the definition cache. Writes are grouped
// into one transaction per batch; a batch is committed when it reaches its
// size, when the flush interval elapses, on Flush and on Close. A failing
// write rolls back its whole batch.
type BatchWriter struct {
	db       *sql.DB
	size     int
	interval time.Duration

	// OnError receives every failed batch. When nil the failure is logged.
	OnError func(error)
	Logger  *slog.Logger

	in    chan WriteFunc
	flush chan struct{}
	done  chan struct{}

	mu     sync.RWMutex // closed, and closing in
	closed bool

	committed atomic.Int64
	errMu     sync.Mutex
	firstErr  error
}

// NewBatchWriter starts a writer on db. size <= 0 defaults to 10; an
// interval of 0 disables timed flushes.
func NewBatchWriter(db *sql.DB, size int, interval time.Duration) *BatchWriter {
	if size <= 0 {
		size = 10
	}
	bw := &BatchWriter{
		db:       db,
		size:     size,
		interval: interval,
		in:       make(chan WriteFunc, size),
		flush:    make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	go bw.run()
	return bw
}

// Submit queues w. It blocks while the writer is busy and its queue is full.
func (bw *BatchWriter) Submit(w WriteFunc) error {
	bw.mu.RLock()
	defer bw.mu.RUnlock()
	if bw.closed {
		return ErrBatchWriterClosed
	}
	bw.in <- w
	return nil
}

// Flush asks the writer to commit everything submitted so far. It does not wait.
func (bw *BatchWriter) Flush() {
	select {
	case bw.flush <- struct{}{}:
	default:
	}
}

// Committed returns the number of writes committed so far.
func (bw *BatchWriter) Committed() int64 {
	return bw.committed.Load()
}

// Err returns the first failure seen by the writer.
func (bw *BatchWriter) Err() error {
	bw.errMu.Lock()
	defer bw.errMu.Unlock()
	return bw.firstErr
}

// Close commits the pending writes, stops the writer and returns Err.
func (bw *BatchWriter) Close() error {
	bw.mu.Lock()
	if bw.closed {
		bw.mu.Unlock()
		return ErrBatchWriterClosed
	}
	bw.closed = true
	close(bw.in)
	bw.mu.Unlock()

	<-bw.done
	return bw.Err()
}

func (bw *BatchWriter) run() {
	defer close(bw.done)

	var tick <-chan time.Time
	if bw.interval > 0 {
		t := time.NewTicker(bw.interval)
		defer t.Stop()
		tick = t.C
	}

	pending := make([]WriteFunc, 0, bw.size)
	commit := func() {
		if len(pending) == 0 {
			return
		}
		bw.commit(pending)
		pending = make([]WriteFunc, 0, bw.size)
	}

	for {
		select {
		case w, ok := <-bw.in:
			if !ok {
				commit()
				return
			}
			pending = append(pending, w)
			if len(pending) >= bw.size {
				commit()
			}
		case <-tick:
			commit()
		case <-bw.flush:
			pending = drain(bw.in, pending)
			commit()
		}
	}
}

// drain moves the writes already queued on in to pending without blocking.
func drain(in <-chan WriteFunc, pending []WriteFunc) []WriteFunc {
	for {
		select {
		case w, ok := <-in:
			if !ok {
				return pending
			}
			pending = append(pending, w)
		default:
			return pending
		}
	}
}

func (bw *BatchWriter) commit(batch []WriteFunc) {
	if err := bw.exec(batch); err != nil {
		bw.report(err)
		return
	}
	bw.committed.Add(int64(len(batch)))
}

func (bw *BatchWriter) exec(batch []WriteFunc) error {
	// Batches outlive the request that submitted them.
	ctx := context.Background()

	if bw.db == nil {
		for _, w := range batch {
			if err := w(ctx, nil); err != nil {
				return err
			}
		}
		return nil
	}

	tx, err := bw.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, w := range batch {
		if err := w(ctx, tx); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch of %d: %w", len(batch), err)
	}
	return nil
}

func (bw *BatchWriter) report(err error) {
	bw.errMu.Lock()
	if bw.firstErr == nil {
		bw.firstErr = err
	}
	bw.errMu.Unlock()

	if bw.OnError != nil {
		bw.OnError(err)
		return
	}
	logger := bw.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error("batch write failed", slog.String("error", err.Error()))
}
