package runtimeclient

import (
	"context"
	"sync"
	"time"
)

// DefaultWriteDebounce is the debounce window applied between an enqueue
// and the underlying platform write, per §4.9.
const DefaultWriteDebounce = 200 * time.Millisecond

// WriteStatus is the terminal status of one enqueued write.
type WriteStatus string

const (
	WriteStatusWritten  WriteStatus = "written"
	WriteStatusCanceled WriteStatus = "canceled"
)

// WriteInput is one file write request handed to the coalescer.
type WriteInput struct {
	Path     string
	Content  string
	Encoding string
}

// WriteResult is delivered on the channel Enqueue returns once the write's
// generation settles. Err is set only when Status is WriteStatusWritten and
// the underlying platform write itself failed.
type WriteResult struct {
	Generation int64
	Status     WriteStatus
	Err        error
}

// FileWriter is the narrow dependency WriteCoalescer drives; RuntimeAPI
// satisfies it.
type FileWriter interface {
	WriteFile(ctx context.Context, token, path, content, encoding string) error
}

type pendingWrite struct {
	generation int64
	token      string
	input      WriteInput
	resultCh   chan WriteResult
}

type dispatchedWrite struct {
	generation int64
	token      string
	input      WriteInput
	resultCh   chan WriteResult
	done       chan struct{}
}

// fileQueue is the per-path state described in §4.9: a latest generation
// counter, a debounce timer, the job that timer will dispatch, every
// still-pending generation's resolver, and a worker goroutine that plays
// the role of the spec's per-file promise chain.
type fileQueue struct {
	mu        sync.Mutex
	latestGen int64
	timer     *time.Timer
	latestJob *pendingWrite
	pending   map[int64]chan WriteResult
	jobs      chan dispatchedWrite
}

// WriteCoalescer debounces and serializes writes per file: only the newest
// generation enqueued within the debounce window ever reaches the network,
// and writes to the same path never run concurrently.
type WriteCoalescer struct {
	writer   FileWriter
	debounce time.Duration

	mu    sync.Mutex
	files map[string]*fileQueue
}

// NewWriteCoalescer builds a WriteCoalescer. debounce <= 0 uses
// DefaultWriteDebounce.
func NewWriteCoalescer(writer FileWriter, debounce time.Duration) *WriteCoalescer {
	if debounce <= 0 {
		debounce = DefaultWriteDebounce
	}
	return &WriteCoalescer{writer: writer, debounce: debounce, files: make(map[string]*fileQueue)}
}

func (w *WriteCoalescer) queueFor(path string) *fileQueue {
	w.mu.Lock()
	defer w.mu.Unlock()
	fq, ok := w.files[path]
	if !ok {
		fq = &fileQueue{pending: make(map[int64]chan WriteResult), jobs: make(chan dispatchedWrite, 8)}
		w.files[path] = fq
		go w.worker(fq)
	}
	return fq
}

func (w *WriteCoalescer) worker(fq *fileQueue) {
	for dj := range fq.jobs {
		err := w.writer.WriteFile(context.Background(), dj.token, dj.input.Path, dj.input.Content, dj.input.Encoding)
		dj.resultCh <- WriteResult{Generation: dj.generation, Status: WriteStatusWritten, Err: err}
		close(dj.resultCh)
		close(dj.done)
	}
}

// Enqueue schedules input for debounced write, returning a channel that
// receives exactly one WriteResult once this generation settles.
func (w *WriteCoalescer) Enqueue(token string, input WriteInput) <-chan WriteResult {
	fq := w.queueFor(input.Path)

	fq.mu.Lock()
	fq.latestGen++
	gen := fq.latestGen
	resultCh := make(chan WriteResult, 1)
	fq.pending[gen] = resultCh
	fq.latestJob = &pendingWrite{generation: gen, token: token, input: input, resultCh: resultCh}
	if fq.timer != nil {
		fq.timer.Stop()
	}
	fq.timer = time.AfterFunc(w.debounce, func() { w.dispatch(fq) })
	fq.mu.Unlock()

	return resultCh
}

// dispatch snapshots the latest job (if any), resolves every older pending
// generation as canceled, and hands the snapshot to the file's worker
// goroutine. It returns a channel closed when that write settles, or nil
// if there was nothing to dispatch.
func (w *WriteCoalescer) dispatch(fq *fileQueue) <-chan struct{} {
	fq.mu.Lock()
	job := fq.latestJob
	if job == nil {
		fq.mu.Unlock()
		return nil
	}
	fq.latestJob = nil
	if fq.timer != nil {
		fq.timer.Stop()
		fq.timer = nil
	}
	for gen, ch := range fq.pending {
		if gen == job.generation {
			delete(fq.pending, gen) // ownership passes to the worker below
			continue
		}
		ch <- WriteResult{Generation: gen, Status: WriteStatusCanceled}
		close(ch)
		delete(fq.pending, gen)
	}
	fq.mu.Unlock()

	done := make(chan struct{})
	fq.jobs <- dispatchedWrite{generation: job.generation, token: job.token, input: job.input, resultCh: job.resultCh, done: done}
	return done
}

// Flush immediately dispatches any pending timer for each path (or every
// tracked path, if none given) and waits for its write to settle, repeating
// if a new job appeared while waiting.
func (w *WriteCoalescer) Flush(paths ...string) {
	if len(paths) == 0 {
		w.mu.Lock()
		for p := range w.files {
			paths = append(paths, p)
		}
		w.mu.Unlock()
	}
	for _, p := range paths {
		w.flushOne(p)
	}
}

// FlushMatching flushes every tracked path satisfying predicate.
func (w *WriteCoalescer) FlushMatching(predicate func(path string) bool) {
	w.Flush(w.matchingPaths(predicate)...)
}

func (w *WriteCoalescer) flushOne(path string) {
	w.mu.Lock()
	fq, ok := w.files[path]
	w.mu.Unlock()
	if !ok {
		return
	}
	for {
		done := w.dispatch(fq)
		if done == nil {
			return
		}
		<-done
	}
}

// Cancel clears the pending timer and job for each path (or every tracked
// path, if none given), resolving all still-pending generations canceled.
// Writes already handed to a worker are in flight and are not affected.
func (w *WriteCoalescer) Cancel(paths ...string) {
	if len(paths) == 0 {
		w.mu.Lock()
		for p := range w.files {
			paths = append(paths, p)
		}
		w.mu.Unlock()
	}
	for _, p := range paths {
		w.cancelOne(p)
	}
}

// CancelMatching cancels every tracked path satisfying predicate.
func (w *WriteCoalescer) CancelMatching(predicate func(path string) bool) {
	w.Cancel(w.matchingPaths(predicate)...)
}

func (w *WriteCoalescer) cancelOne(path string) {
	w.mu.Lock()
	fq, ok := w.files[path]
	w.mu.Unlock()
	if !ok {
		return
	}

	fq.mu.Lock()
	defer fq.mu.Unlock()
	if fq.timer != nil {
		fq.timer.Stop()
		fq.timer = nil
	}
	fq.latestJob = nil
	for gen, ch := range fq.pending {
		ch <- WriteResult{Generation: gen, Status: WriteStatusCanceled}
		close(ch)
		delete(fq.pending, gen)
	}
}

func (w *WriteCoalescer) matchingPaths(predicate func(path string) bool) []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []string
	for p := range w.files {
		if predicate(p) {
			out = append(out, p)
		}
	}
	return out
}
