package stream

import (
	"context"
	"sync"

	"github.com/abhisek/codequiz/internal/quiz"
)

// NDJSONSink writes every accepted question to a Writer.
type NDJSONSink struct {
	W *Writer
}

// Emit writes q as a question record. Write errors stop the run, which is
// what a departed client should do.
func (s NDJSONSink) Emit(ctx context.Context, q quiz.Question) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.W.Write(QuestionRecord(q))
}

// ChannelSink hands accepted questions to a consumer over an unbuffered
// channel. Emit blocks until the consumer takes the question, so the
// producer never runs ahead of it and receive order is acceptance order.
type ChannelSink struct {
	ch   chan quiz.Question
	done chan struct{}
	once sync.Once
}

// NewChannelSink creates a ChannelSink.
func NewChannelSink() *ChannelSink {
	return &ChannelSink{
		ch:   make(chan quiz.Question),
		done: make(chan struct{}),
	}
}

// C returns the receive side. It is closed by Close.
func (s *ChannelSink) C() <-chan quiz.Question { return s.ch }

// Emit blocks until the question is received, ctx ends, or the consumer
// calls Abandon.
func (s *ChannelSink) Emit(ctx context.Context, q quiz.Question) error {
	select {
	case s.ch <- q:
		return nil
	case <-s.done:
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Abandon tells the producer the consumer has gone. Pending and future
// Emits fail.
func (s *ChannelSink) Abandon() {
	s.once.Do(func() { close(s.done) })
}

// Close closes the receive channel. Only the producer may call it, after
// its last Emit.
func (s *ChannelSink) Close() {
	close(s.ch)
}
