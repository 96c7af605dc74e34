// Package stream carries accepted questions to consumers as they are
// accepted: an NDJSON wire format, sinks that feed it, and the HTTP API
// built on top.
package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/abhisek/codequiz/internal/quiz"
)

// ContentType is the media type of a question stream.
const ContentType = "application/x-ndjson"

// RecordType discriminates stream records.
type RecordType string

const (
	RecordMeta     RecordType = "meta"
	RecordQuestion RecordType = "question"
	RecordDone     RecordType = "done"
	RecordError    RecordType = "error"
)

// Record is one line of a stream. Which fields are set depends on Type.
type Record struct {
	Type     RecordType     `json:"type"`
	Total    *int           `json:"total,omitempty"`
	Question *quiz.Question `json:"question,omitempty"`
	Count    *int           `json:"count,omitempty"`
	Message  string         `json:"message,omitempty"`
}

// Meta announces how many questions the producer is aiming for.
func Meta(total int) Record { return Record{Type: RecordMeta, Total: &total} }

// QuestionRecord carries one accepted question.
func QuestionRecord(q quiz.Question) Record { return Record{Type: RecordQuestion, Question: &q} }

// Done closes a successful stream with the number of questions sent.
func Done(count int) Record { return Record{Type: RecordDone, Count: &count} }

// Error closes a failed stream.
func Error(msg string) Record { return Record{Type: RecordError, Message: msg} }

// Writer encodes records one per line. When the underlying writer is an
// http.Flusher each record is flushed as soon as it is written.
type Writer struct {
	mu      sync.Mutex
	enc     *json.Encoder
	flusher http.Flusher
	sent    int
}

// NewWriter creates a Writer on w.
func NewWriter(w io.Writer) *Writer {
	f, _ := w.(http.Flusher)
	return &Writer{enc: json.NewEncoder(w), flusher: f}
}

// Write encodes and flushes one record.
func (w *Writer) Write(r Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(r); err != nil {
		return fmt.Errorf("write %s record: %w", r.Type, err)
	}
	if r.Type == RecordQuestion {
		w.sent++
	}
	if w.flusher != nil {
		w.flusher.Flush()
	}
	return nil
}

// Sent returns how many question records were written.
func (w *Writer) Sent() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sent
}

// StreamError is the message of an error record.
type StreamError struct {
	Message string
}

func (e *StreamError) Error() string {
	return "stream error: " + e.Message
}

// Reader decodes a record stream.
type Reader struct {
	dec *json.Decoder
}

// NewReader creates a Reader on r.
func NewReader(r io.Reader) *Reader {
	return &Reader{dec: json.NewDecoder(r)}
}

// Next returns the next record, or io.EOF when the input ends.
func (r *Reader) Next() (Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		return Record{}, err
	}
	switch rec.Type {
	case RecordMeta, RecordQuestion, RecordDone, RecordError:
	default:
		return Record{}, fmt.Errorf("unknown record type %q", rec.Type)
	}
	if rec.Type == RecordQuestion && rec.Question == nil {
		return Record{}, fmt.Errorf("question record without a question")
	}
	return rec, nil
}

// Collect reads questions until a done or error record. Each question is
// passed to fn as it arrives when fn is non-nil. An error record becomes a
// *StreamError; input that ends before either is io.ErrUnexpectedEOF.
func Collect(r io.Reader, fn func(quiz.Question)) ([]quiz.Question, error) {
	rd := NewReader(r)
	var out []quiz.Question
	for {
		rec, err := rd.Next()
		if errors.Is(err, io.EOF) {
			return out, io.ErrUnexpectedEOF
		}
		if err != nil {
			return out, err
		}
		switch rec.Type {
		case RecordQuestion:
			out = append(out, *rec.Question)
			if fn != nil {
				fn(*rec.Question)
			}
		case RecordDone:
			return out, nil
		case RecordError:
			return out, &StreamError{Message: rec.Message}
		}
	}
}
