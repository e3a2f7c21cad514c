package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
)

// WriteFunc is a callback that performs database writes inside a transaction.
type WriteFunc func(ctx context.Context, tx *sql.Tx) error

// batch is one transaction's worth of writes. done, if set, is closed once
// the batch has been committed, rolled back or dropped.
type batch struct {
	writes []WriteFunc
	done   chan struct{}
}

// BatchWriter buffers write operations and flushes them in batches inside a
// transaction. Batches commit in submission order on a single goroutine.
type BatchWriter struct {
	mu          sync.Mutex
	buf         []WriteFunc
	cap         int
	flushTicker *time.Ticker
	closed      bool
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc

	commitCh chan batch
	db       *sql.DB
	OnError  func(error)

	// lastErr stores the first asynchronous error seen by the writer. Protected by errMu.
	errMu   sync.Mutex
	lastErr error
}

// NewBatchWriter creates a new BatchWriter.
// db: the database connection to use for transactions.
// bufferSize: flush when buffer reaches this size.
// flushInterval: flush after this duration (0 to disable).
func NewBatchWriter(db *sql.DB, bufferSize int, flushInterval time.Duration) *BatchWriter {
	if bufferSize <= 0 {
		bufferSize = 10
	}
	ctx, cancel := context.WithCancel(context.Background())
	bw := &BatchWriter{
		buf:      make([]WriteFunc, 0, bufferSize),
		cap:      bufferSize,
		ctx:      ctx,
		cancel:   cancel,
		commitCh: make(chan batch, 2), // Buffer a couple of batches
		db:       db,
	}

	bw.wg.Add(1)
	go bw.committer()

	if flushInterval > 0 {
		bw.flushTicker = time.NewTicker(flushInterval)
		bw.wg.Add(1)
		go bw.loop()
	}
	return bw
}

// Submit enqueues a write function.
func (bw *BatchWriter) Submit(w WriteFunc) error {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	if bw.closed {
		return ErrBatchWriterClosed
	}
	bw.buf = append(bw.buf, w)
	if len(bw.buf) >= bw.cap {
		bw.flushLocked(nil)
	}
	return nil
}

// Flush commits everything submitted so far and waits for it. It returns
// the first asynchronous error seen by the writer.
func (bw *BatchWriter) Flush(ctx context.Context) error {
	done := make(chan struct{})
	bw.mu.Lock()
	if bw.closed {
		bw.mu.Unlock()
		return ErrBatchWriterClosed
	}
	bw.flushLocked(done)
	bw.mu.Unlock()

	select {
	case <-done:
		return bw.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the first asynchronous error, if any.
func (bw *BatchWriter) Err() error {
	bw.errMu.Lock()
	defer bw.errMu.Unlock()
	return bw.lastErr
}

func (bw *BatchWriter) recordErr(err error) {
	bw.errMu.Lock()
	if bw.lastErr == nil {
		bw.lastErr = err
	}
	bw.errMu.Unlock()
	if bw.OnError != nil {
		bw.OnError(err)
	}
}

// flushLocked assumes bw.mu is held. An empty buffer is still sent when
// done is set, as a barrier behind earlier batches.
func (bw *BatchWriter) flushLocked(done chan struct{}) {
	if len(bw.buf) == 0 && done == nil {
		return
	}
	b := batch{writes: bw.buf, done: done}
	bw.buf = make([]WriteFunc, 0, bw.cap)

	// Blocking here while holding the lock propagates backpressure to Submit
	// when the committer falls behind.
	select {
	case bw.commitCh <- b:
	case <-bw.ctx.Done():
		// shutdown: report dropped batch via OnError and record the error so callers can detect potential data loss.
		bw.recordErr(fmt.Errorf("batch writer: dropping batch of %d items due to context cancellation", len(b.writes)))
		if done != nil {
			close(done)
		}
	}
}

func (bw *BatchWriter) committer() {
	defer bw.wg.Done()
	for b := range bw.commitCh {
		if len(b.writes) > 0 {
			if err := bw.executeBatch(b.writes); err != nil {
				bw.recordErr(err)
			}
		}
		if b.done != nil {
			close(b.done)
		}
	}
}

func (bw *BatchWriter) executeBatch(writes []WriteFunc) error {
	// Use background context for flushing to avoid "context canceled" if bw is closing.
	ctx := context.Background()

	// Without a DB (tests) the callbacks run with a nil tx.
	if bw.db == nil {
		for _, w := range writes {
			if err := w(ctx, nil); err != nil {
				return err
			}
		}
		return nil
	}

	tx, err := bw.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin batch tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // ignored if committed
	}()

	for _, w := range writes {
		if err := w(ctx, tx); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch (%d items): %w", len(writes), err)
	}
	return nil
}

func (bw *BatchWriter) loop() {
	defer bw.wg.Done()
	for {
		select {
		case <-bw.ctx.Done():
			return
		case <-bw.flushTicker.C:
			bw.mu.Lock()
			bw.flushLocked(nil)
			bw.mu.Unlock()
		}
	}
}

// Close stops accepting submissions and waits for pending writes to complete.
func (bw *BatchWriter) Close() error {
	bw.mu.Lock()
	if bw.closed {
		bw.mu.Unlock()
		return ErrBatchWriterClosed
	}
	bw.closed = true
	if bw.flushTicker != nil {
		bw.flushTicker.Stop()
	}
	bw.flushLocked(nil)
	bw.mu.Unlock()

	bw.cancel()        // Stop ticker loop
	close(bw.commitCh) // Stop committer loop
	bw.wg.Wait()

	// Return any async error that was recorded during execution
	return bw.Err()
}

var ErrBatchWriterClosed = &BatchWriterError{"batch writer closed"}

type BatchWriterError struct{ msg string }

func (e *BatchWriterError) Error() string { return e.msg }
