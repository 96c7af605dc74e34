package stream

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/codequiz/internal/quiz"
)

func tf(label string) quiz.Question {
	return quiz.Question{Snippet: label, Quiz: &quiz.TrueFalse{Statement: label + " holds", Answer: true}}
}

func TestWriter_OneRecordPerLine(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Write(Meta(3)))
	require.NoError(t, w.Write(QuestionRecord(tf("a"))))
	require.NoError(t, w.Write(Done(0)))
	require.NoError(t, w.Write(Error("boom")))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.JSONEq(t, `{"type":"meta","total":3}`, lines[0])
	assert.Contains(t, lines[1], `"type":"question"`)
	assert.Contains(t, lines[1], `"type":"true-false"`)
	assert.JSONEq(t, `{"type":"done","count":0}`, lines[2])
	assert.JSONEq(t, `{"type":"error","message":"boom"}`, lines[3])
	assert.Equal(t, 1, w.Sent())
}

func TestCollect(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Write(Meta(2)))
	require.NoError(t, w.Write(QuestionRecord(tf("a"))))
	require.NoError(t, w.Write(QuestionRecord(tf("b"))))
	require.NoError(t, w.Write(Done(2)))
	require.NoError(t, w.Write(QuestionRecord(tf("ignored"))))

	var seen []string
	got, err := Collect(&buf, func(q quiz.Question) { seen = append(seen, q.Snippet) })
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"a", "b"}, seen)
	assert.Equal(t, quiz.TypeTrueFalse, got[1].Type())
}

func TestCollect_ErrorRecord(t *testing.T) {
	in := `{"type":"meta","total":1}` + "\n" + `{"type":"error","message":"no chunks"}` + "\n"
	got, err := Collect(strings.NewReader(in), nil)
	assert.Empty(t, got)
	var serr *StreamError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "no chunks", serr.Message)
}

func TestCollect_Truncated(t *testing.T) {
	in := `{"type":"meta","total":1}` + "\n"
	_, err := Collect(strings.NewReader(in), nil)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestReader_RejectsUnknownRecords(t *testing.T) {
	_, err := NewReader(strings.NewReader(`{"type":"progress"}`)).Next()
	assert.ErrorContains(t, err, "unknown record type")

	_, err = NewReader(strings.NewReader(`{"type":"question"}`)).Next()
	assert.ErrorContains(t, err, "without a question")
}

func TestNDJSONSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NDJSONSink{W: NewWriter(&buf)}
	require.NoError(t, sink.Emit(context.Background(), tf("a")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sink.Emit(ctx, tf("b")), context.Canceled)
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
}

func TestChannelSink_OrderAndBackPressure(t *testing.T) {
	sink := NewChannelSink()
	emitted := make(chan string, 3)

	go func() {
		defer sink.Close()
		for _, l := range []string{"a", "b", "c"} {
			if err := sink.Emit(context.Background(), tf(l)); err != nil {
				t.Error(err)
				return
			}
			emitted <- l
		}
	}()

	// Nothing is emitted until someone receives.
	select {
	case l := <-emitted:
		t.Fatalf("emit of %q returned before it was received", l)
	case <-time.After(20 * time.Millisecond):
	}

	var got []string
	for q := range sink.C() {
		got = append(got, q.Snippet)
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestChannelSink_Abandon(t *testing.T) {
	sink := NewChannelSink()
	errc := make(chan error, 1)
	go func() { errc <- sink.Emit(context.Background(), tf("a")) }()

	sink.Abandon()
	sink.Abandon()
	select {
	case err := <-errc:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(time.Second):
		t.Fatal("Emit did not return after Abandon")
	}
}
