package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputePercentage(t *testing.T) {
	assert.Equal(t, 0, ComputePercentage(0, 0))
	assert.Equal(t, 0, ComputePercentage(5, 0))
	assert.Equal(t, 0, ComputePercentage(3, -1))

	assert.Equal(t, 100, ComputePercentage(10, 10))
	assert.Equal(t, 50, ComputePercentage(5, 10))
	assert.Equal(t, 33, ComputePercentage(1, 3))
	assert.Equal(t, 67, ComputePercentage(2, 3))

	// 四舍五入：0.5 向上
	assert.Equal(t, 13, ComputePercentage(1, 8))  // 12.5
	assert.Equal(t, 38, ComputePercentage(3, 8))  // 37.5
}

func TestAttemptExpired(t *testing.T) {
	started := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	a := &Attempt{StartedAt: started}

	assert.False(t, a.Expired(30, started.Add(29*time.Minute)))
	// 到点即过期（闭区间）
	assert.True(t, a.Expired(30, started.Add(30*time.Minute)))
	assert.True(t, a.Expired(30, started.Add(31*time.Minute)))
}

func TestAttemptTerminal(t *testing.T) {
	for status, terminal := range map[AttemptStatus]bool{
		AttemptInProgress:  false,
		AttemptCompleted:   true,
		AttemptAbandoned:   true,
		AttemptTimeExpired: true,
	} {
		a := &Attempt{Status: status}
		assert.Equal(t, terminal, a.Terminal(), "status %s", status)
	}
}

func TestQuizWithinWindow(t *testing.T) {
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)
	q := &Quiz{StartAt: start, EndAt: end}

	assert.False(t, q.WithinWindow(start.Add(-time.Second)))
	assert.True(t, q.WithinWindow(start))
	assert.True(t, q.WithinWindow(start.Add(time.Hour)))
	assert.True(t, q.WithinWindow(end))
	assert.False(t, q.WithinWindow(end.Add(time.Second)))
}

func TestQuizTotalPoints(t *testing.T) {
	q := &Quiz{Questions: []Question{{Points: 4}, {Points: 3}, {Points: 3}}}
	assert.Equal(t, 10, q.TotalPoints())

	empty := &Quiz{}
	assert.Equal(t, 0, empty.TotalPoints())
}
