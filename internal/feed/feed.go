package feed

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/vidsum/vidsumd/internal/event"
	"github.com/vidsum/vidsumd/internal/queue"
)

// maxLineBytes bounds a single mention event line. Transcript-sized
// payloads never travel inbound, so this is generous.
const maxLineBytes = 1 << 20

// Reader decodes newline-delimited mention events from a stream into
// the inbound queue.
type Reader struct {
	src io.Reader
	out *queue.Queue[event.Mention]

	log *slog.Logger
}

// NewReader creates a feed reader.
func NewReader(src io.Reader, out *queue.Queue[event.Mention],
	log *slog.Logger) *Reader {

	if log == nil {
		log = slog.Default()
	}

	return &Reader{
		src: src,
		out: out,
		log: log,
	}
}

// Run reads until EOF or context cancellation, then closes the queue so
// downstream consumers drain and stop. Undecodable lines are logged and
// skipped.
func (r *Reader) Run(ctx context.Context) error {
	defer r.out.Close()

	scanner := bufio.NewScanner(r.src)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var mention event.Mention
		if err := json.Unmarshal(line, &mention); err != nil {
			r.log.WarnContext(ctx, "skipping undecodable event",
				"error", err)
			continue
		}

		if !r.out.Put(ctx, mention) {
			return ctx.Err()
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("event stream read failed: %w", err)
	}

	return nil
}

// Writer encodes answered mention events from the outbound queue as
// newline-delimited JSON.
type Writer struct {
	dst io.Writer
	in  *queue.Queue[event.Mention]

	log *slog.Logger
}

// NewWriter creates a feed writer.
func NewWriter(dst io.Writer, in *queue.Queue[event.Mention],
	log *slog.Logger) *Writer {

	if log == nil {
		log = slog.Default()
	}

	return &Writer{
		dst: dst,
		in:  in,
		log: log,
	}
}

// Run drains the outbound queue until the context is cancelled or the
// queue closes.
func (w *Writer) Run(ctx context.Context) error {
	enc := json.NewEncoder(w.dst)

	for mention := range w.in.Receive(ctx) {
		if err := enc.Encode(mention); err != nil {
			return fmt.Errorf("event stream write failed: %w",
				err)
		}
	}

	return ctx.Err()
}

// Flush writes any replies still buffered after the queue has closed.
// It is the shutdown companion to Run: cancellation can stop Run with
// answered events still queued, and those should not be dropped.
func (w *Writer) Flush() error {
	enc := json.NewEncoder(w.dst)

	for mention := range w.in.Drain() {
		if err := enc.Encode(mention); err != nil {
			return fmt.Errorf("event stream write failed: %w",
				err)
		}
	}

	return nil
}
