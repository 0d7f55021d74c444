package ingest

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/japaniel/readerer/pkg/db"
)

func openScratchDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })
	if _, err := conn.Exec("CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT)"); err != nil {
		t.Fatalf("create table: %v", err)
	}
	return conn
}

func insertNote(body string) WriteFunc {
	return func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "INSERT INTO notes (body) VALUES (?)", body)
		return err
	}
}

func countNotes(t *testing.T, conn *sql.DB) int {
	t.Helper()
	var n int
	if err := conn.QueryRow("SELECT COUNT(*) FROM notes").Scan(&n); err != nil {
		t.Fatalf("count notes: %v", err)
	}
	return n
}

// waitCommitted polls until bw has committed want writes.
func waitCommitted(t *testing.T, bw *BatchWriter, want int64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for bw.Committed() < want {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d committed writes, got %d", want, bw.Committed())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBatchWriterCommitsOnClose(t *testing.T) {
	conn := openScratchDB(t)
	bw := NewBatchWriter(conn, 10, 0)

	for _, body := range []string{"neko", "inu", "tori"} {
		if err := bw.Submit(insertNote(body)); err != nil {
			t.Fatalf("submit %s: %v", body, err)
		}
	}
	if err := bw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if n := countNotes(t, conn); n != 3 {
		t.Fatalf("expected 3 rows after close, got %d", n)
	}
	if bw.Committed() != 3 {
		t.Errorf("Committed() = %d, want 3", bw.Committed())
	}
}

func TestBatchWriterRollsBackFailedBatch(t *testing.T) {
	conn := openScratchDB(t)
	bw := NewBatchWriter(conn, 2, 0)
	var reported []error
	var mu sync.Mutex
	bw.OnError = func(err error) {
		mu.Lock()
		reported = append(reported, err)
		mu.Unlock()
	}

	boom := errors.New("constraint violated")
	_ = bw.Submit(insertNote("kept only if the batch commits"))
	_ = bw.Submit(func(ctx context.Context, tx *sql.Tx) error { return boom })
	// The next batch is independent of the failed one.
	_ = bw.Submit(insertNote("second batch"))

	if err := bw.Close(); !errors.Is(err, boom) {
		t.Fatalf("Close() = %v, want %v", err, boom)
	}
	if n := countNotes(t, conn); n != 1 {
		t.Fatalf("expected only the second batch to commit, got %d rows", n)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(reported) != 1 || !errors.Is(reported[0], boom) {
		t.Fatalf("expected one reported failure, got %v", reported)
	}
}

func TestBatchWriterTriggers(t *testing.T) {
	tests := []struct {
		name     string
		size     int
		interval time.Duration
		writes   int
		flush    bool
		// want is the number of writes committed before Close.
		want int64
	}{
		{name: "full batches", size: 5, writes: 12, want: 10},
		{name: "interval", size: 100, interval: 20 * time.Millisecond, writes: 3, want: 3},
		{name: "explicit flush", size: 100, writes: 4, flush: true, want: 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bw := NewBatchWriter(nil, tt.size, tt.interval)
			var calls atomic.Int64
			for i := 0; i < tt.writes; i++ {
				if err := bw.Submit(func(ctx context.Context, tx *sql.Tx) error {
					if tx != nil {
						t.Errorf("expected nil tx without a database")
					}
					calls.Add(1)
					return nil
				}); err != nil {
					t.Fatalf("submit: %v", err)
				}
			}
			if tt.flush {
				bw.Flush()
			}
			waitCommitted(t, bw, tt.want)

			if err := bw.Close(); err != nil {
				t.Fatalf("close: %v", err)
			}
			if got := calls.Load(); got != int64(tt.writes) {
				t.Fatalf("expected every write to run by Close, got %d of %d", got, tt.writes)
			}
		})
	}
}

func TestBatchWriterRejectsAfterClose(t *testing.T) {
	bw := NewBatchWriter(nil, 1, 0)
	if err := bw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := bw.Submit(func(ctx context.Context, tx *sql.Tx) error { return nil }); !errors.Is(err, ErrBatchWriterClosed) {
		t.Fatalf("Submit after Close = %v, want ErrBatchWriterClosed", err)
	}
	if err := bw.Close(); !errors.Is(err, ErrBatchWriterClosed) {
		t.Fatalf("second Close = %v, want ErrBatchWriterClosed", err)
	}
}

func TestBatchWriterCloseWaitsForRunningBatch(t *testing.T) {
	bw := NewBatchWriter(nil, 1, 0)
	started := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool

	if err := bw.Submit(func(ctx context.Context, tx *sql.Tx) error {
		close(started)
		<-release
		finished.Store(true)
		return nil
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	<-started

	closed := make(chan error, 1)
	go func() { closed <- bw.Close() }()

	select {
	case <-closed:
		t.Fatal("Close returned while a batch was still running")
	case <-time.After(20 * time.Millisecond):
	}
	close(release)
	if err := <-closed; err != nil {
		t.Fatalf("close: %v", err)
	}
	if !finished.Load() {
		t.Fatal("running batch did not finish before Close returned")
	}
}

func TestBatchWriterFlushCommitsDefinitions(t *testing.T) {
	conn, err := db.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	defer conn.Close()

	bw := NewBatchWriter(conn, 100, 0)
	for _, w := range []string{"cat", "dog", "bird"} {
		word := w
		if err := bw.Submit(func(ctx context.Context, tx *sql.Tx) error {
			return db.PutDefinition(tx, word, "English", "a "+word)
		}); err != nil {
			t.Fatalf("submit failed: %v", err)
		}
	}
	bw.Flush()
	waitCommitted(t, bw, 3)

	n, err := db.CountDefinitions(conn, "English")
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 definitions, got %d", n)
	}
	if err := bw.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
}

func TestBatchWriterErrIsSticky(t *testing.T) {
	bw := NewBatchWriter(nil, 1, 0)
	bw.OnError = func(error) {}
	first := errors.New("first")
	_ = bw.Submit(func(ctx context.Context, tx *sql.Tx) error { return first })
	_ = bw.Submit(func(ctx context.Context, tx *sql.Tx) error { return errors.New("second") })
	if err := bw.Close(); err != first {
		t.Fatalf("expected first error, got %v", err)
	}
	if err := bw.Err(); err != first {
		t.Fatalf("expected Err to keep first error, got %v", err)
	}
}
