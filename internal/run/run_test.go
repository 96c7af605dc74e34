package run

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/abhisek/codequiz/internal/quiz"
)

func TestQuotasFor(t *testing.T) {
	types := []quiz.Type{quiz.TypeFillBlank, quiz.TypeMultipleChoice}

	assert.Equal(t, Quotas{quiz.TypeFillBlank: 1, quiz.TypeMultipleChoice: 1}, QuotasFor(types, 3))
	assert.Equal(t, Quotas{quiz.TypeFillBlank: 1, quiz.TypeMultipleChoice: 1}, QuotasFor(types, 2))
	assert.Empty(t, QuotasFor(types, 1))
	assert.Empty(t, QuotasFor(nil, 5))
}

func TestCompleteRequiresTargetAndQuotas(t *testing.T) {
	s := New("r", 2, QuotasFor([]quiz.Type{quiz.TypeFillBlank, quiz.TypeTrueFalse}, 2))
	assert.False(t, s.Complete())

	s.RecordAccept(quiz.TypeFillBlank)
	s.RecordAccept(quiz.TypeFillBlank)
	assert.False(t, s.Complete(), "target reached but true-false quota unmet")
	assert.Equal(t, []quiz.Type{quiz.TypeTrueFalse}, s.QuotaShortfall())

	s.RecordAccept(quiz.TypeTrueFalse)
	assert.True(t, s.Complete())
	assert.Empty(t, s.QuotaShortfall())
}

func TestCompleteWithoutQuotas(t *testing.T) {
	s := New("r", 1, nil)
	assert.False(t, s.Complete())
	s.RecordAccept(quiz.TypeSelectAll)
	assert.True(t, s.Complete())
}

func TestCountersAndSnapshot(t *testing.T) {
	s := New("run-1", 3, nil)
	s.Scheduled = 5
	s.RecordCall(false)
	s.RecordCall(true)
	s.RecordReject(2)
	s.RecordAccept(quiz.TypeOrderSequence)

	snap := s.Snapshot()
	assert.Equal(t, "run-1", snap.ID)
	assert.Equal(t, 2, snap.Calls)
	assert.Equal(t, 1, snap.Failed)
	assert.Equal(t, 2, snap.Rejected)
	assert.Equal(t, 1, snap.Accepted)
	assert.Equal(t, 5, snap.Scheduled)
	assert.False(t, snap.Complete)

	// The snapshot does not alias the live map.
	s.RecordAccept(quiz.TypeOrderSequence)
	assert.Equal(t, 1, snap.PerType[quiz.TypeOrderSequence])
}

func TestAdmitsReservesRoomForQuotas(t *testing.T) {
	s := New("r", 3, QuotasFor([]quiz.Type{quiz.TypeFillBlank, quiz.TypeMultipleChoice}, 3))

	assert.True(t, s.Admits(quiz.TypeMultipleChoice))
	s.RecordAccept(quiz.TypeMultipleChoice)
	assert.True(t, s.Admits(quiz.TypeMultipleChoice), "one free slot left besides the fill-blank reservation")
	s.RecordAccept(quiz.TypeMultipleChoice)
	assert.False(t, s.Admits(quiz.TypeMultipleChoice), "last slot is reserved for fill-blank")
	assert.True(t, s.Admits(quiz.TypeFillBlank))

	s.RecordAccept(quiz.TypeFillBlank)
	assert.True(t, s.Complete())
	assert.False(t, s.Admits(quiz.TypeFillBlank))
}
