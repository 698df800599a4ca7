package view

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zappabad/stockpond/internal/notice"
)

func TestLogKeepsNewest(t *testing.T) {
	l := NewLog(3)
	assert.Nil(t, l.Latest(2))

	for i := 1; i <= 5; i++ {
		l.Record(notice.Notice{Message: fmt.Sprintf("n%d", i)})
	}
	assert.Equal(t, 3, l.Len())

	got := l.Latest(10)
	require.Len(t, got, 3)
	assert.Equal(t, "n3", got[0].Message)
	assert.Equal(t, "n5", got[2].Message)

	last := l.Latest(1)
	require.Len(t, last, 1)
	assert.Equal(t, "n5", last[0].Message)
}

func TestLogFoldsRepeats(t *testing.T) {
	l := NewLog(10)
	t0 := time.Date(2024, 3, 8, 9, 0, 0, 0, time.UTC)
	fail := notice.Notice{ID: "a", Time: t0, Symbol: "AAPL", Level: notice.LevelError, Message: "failed to fetch data for: AAPL"}

	first := l.Record(fail)
	assert.Zero(t, first.Repeat)

	again := fail
	again.ID = "b"
	again.Time = t0.Add(time.Minute)
	folded := l.Record(again)
	assert.Equal(t, "a", folded.ID)
	assert.Equal(t, 1, folded.Repeat)
	assert.Equal(t, t0.Add(time.Minute), folded.Time)
	assert.Equal(t, 1, l.Len())

	other := fail
	other.Level = notice.LevelWarn
	l.Record(other)
	l.Record(fail)
	assert.Equal(t, 3, l.Len(), "only consecutive repeats fold")
}

func TestLogForSymbol(t *testing.T) {
	l := NewLog(10)
	l.Record(notice.Notice{Symbol: "AAPL", Message: "one"})
	l.Record(notice.Notice{Symbol: "MSFT", Message: "two"})
	l.Record(notice.Notice{Message: "started"})
	l.Record(notice.Notice{Symbol: "AAPL", Message: "three"})

	got := l.ForSymbol("AAPL", 5)
	require.Len(t, got, 2)
	assert.Equal(t, "one", got[0].Message)
	assert.Equal(t, "three", got[1].Message)

	got = l.ForSymbol("AAPL", 1)
	require.Len(t, got, 1)
	assert.Equal(t, "three", got[0].Message)
	assert.Empty(t, l.ForSymbol("TSLA", 5))
}
