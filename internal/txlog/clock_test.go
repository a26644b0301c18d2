package txlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClock_StampsStartAtOne(t *testing.T) {
	c := NewClock()
	assert.Zero(t, c.Current())

	stamps := []int64{c.Next(), c.Next(), c.Next()}
	assert.Equal(t, []int64{1, 2, 3}, stamps)
	assert.Equal(t, int64(3), c.Current())
}

func TestClock_ResumesAfterJournal(t *testing.T) {
	c := NewClockAt(41)
	assert.Equal(t, int64(41), c.Current())
	assert.Equal(t, int64(42), c.Next())
}
