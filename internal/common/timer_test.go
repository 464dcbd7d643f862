package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimer(t *testing.T) {
	timer := NewNamedTimer("im_detect")
	assert.Equal(t, "im_detect", timer.Name())
	assert.Zero(t, timer.AverageTime())

	timer.Tic()
	time.Sleep(10 * time.Millisecond)
	d := timer.Toc()

	assert.GreaterOrEqual(t, d, 10*time.Millisecond)
	assert.Equal(t, d, timer.Last())
	assert.Equal(t, d, timer.Total())
	assert.Equal(t, 1, timer.Calls())
	assert.Equal(t, d, timer.AverageTime())

	str := timer.String()
	assert.Contains(t, str, "im_detect")
	assert.Contains(t, str, "1 calls")
}

func TestTimer_Average(t *testing.T) {
	timer := NewTimer()
	for range 3 {
		timer.Tic()
		time.Sleep(2 * time.Millisecond)
		timer.Toc()
	}

	assert.Equal(t, 3, timer.Calls())
	assert.Equal(t, timer.Total()/3, timer.AverageTime())
	assert.GreaterOrEqual(t, timer.AverageTime(), 2*time.Millisecond)
	assert.Empty(t, timer.Name())
}

func TestTimer_TocWithoutTic(t *testing.T) {
	timer := NewTimer()
	assert.Zero(t, timer.Toc())
	assert.Zero(t, timer.Calls())

	timer.Tic()
	timer.Toc()
	assert.Zero(t, timer.Toc(), "second toc has no open interval")
	assert.Equal(t, 1, timer.Calls())
}
