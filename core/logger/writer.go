package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
)

// asyncWriter moves log lines off the calling goroutine. One goroutine owns
// the buffered sinks; callers only touch the queue.
type asyncWriter struct {
	lines  chan []byte
	flush  chan chan error
	closed chan struct{}
	stop   sync.Once

	mu  sync.Mutex
	err error

	out []*bufio.Writer
}

func newAsyncWriter(sinks []io.Writer, size int) *asyncWriter {
	if size <= 0 {
		size = 64 << 10
	}
	w := &asyncWriter{
		lines:  make(chan []byte, 256),
		flush:  make(chan chan error),
		closed: make(chan struct{}),
	}
	for _, s := range sinks {
		if s != nil {
			w.out = append(w.out, bufio.NewWriterSize(s, size))
		}
	}
	go w.run()
	return w
}

func (w *asyncWriter) run() {
	defer close(w.closed)
	for {
		select {
		case line, ok := <-w.lines:
			if !ok {
				w.fail(w.drain())
				return
			}
			w.fail(w.write(line))
		case ack := <-w.flush:
			// Lines queued before the flush request are written first.
			for pending := len(w.lines); pending > 0; pending-- {
				w.fail(w.write(<-w.lines))
			}
			ack <- w.drain()
		}
	}
}

// Write queues a copy of p. It blocks when the queue is full.
func (w *asyncWriter) Write(p []byte) error {
	if err := w.failed(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	w.lines <- append([]byte(nil), p...)
	return nil
}

// Flush returns once every queued line reached the sinks.
func (w *asyncWriter) Flush() error {
	if err := w.failed(); err != nil {
		return err
	}
	ack := make(chan error, 1)
	select {
	case w.flush <- ack:
		return <-ack
	case <-w.closed:
		return w.failed()
	}
}

// Close drains the queue, stops the writer goroutine and returns the first
// sink error seen.
func (w *asyncWriter) Close() error {
	w.stop.Do(func() { close(w.lines) })
	<-w.closed
	return w.failed()
}

// write hands one line to every sink and pushes it through right away so a
// crash loses at most the queue.
func (w *asyncWriter) write(line []byte) error {
	if len(line) == 0 {
		return nil
	}
	for _, s := range w.out {
		if _, err := s.Write(line); err != nil {
			return err
		}
		if err := s.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func (w *asyncWriter) drain() error {
	var errs []error
	for _, s := range w.out {
		errs = append(errs, s.Flush())
	}
	return errors.Join(errs...)
}

func (w *asyncWriter) fail(err error) {
	if err == nil {
		return
	}
	w.mu.Lock()
	if w.err == nil {
		w.err = err
	}
	w.mu.Unlock()
}

func (w *asyncWriter) failed() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}
