// FilePath: internal/accounting/transition_test.go
package accounting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fabwatch/factoryhub/internal/models"
)

func TestTransition_SameStatus_NoMutation(t *testing.T) {
	d := transition(models.StatusRunning, models.StatusRunning, 2*time.Hour)
	assert.False(t, d.changed)
	assert.Equal(t, time.Duration(0), d.commit)
	assert.Equal(t, bucketNone, d.bucket)
}

func TestTransition_RunningToStopped_CommitsActive(t *testing.T) {
	d := transition(models.StatusRunning, models.StatusStopped, 2*time.Hour)
	assert.True(t, d.changed)
	assert.Equal(t, 2*time.Hour, d.commit)
	assert.Equal(t, bucketActive, d.bucket)
}

func TestTransition_StoppedToRunning_CommitsStop(t *testing.T) {
	d := transition(models.StatusStopped, models.StatusRunning, 30*time.Minute)
	assert.True(t, d.changed)
	assert.Equal(t, 30*time.Minute, d.commit)
	assert.Equal(t, bucketStop, d.bucket)
}

func TestTransition_Debounce_FlipWithoutTime(t *testing.T) {
	// Flips at or below one second are bounce: status survives, no time.
	for _, elapsed := range []time.Duration{0, 500 * time.Millisecond, time.Second} {
		d := transition(models.StatusStopped, models.StatusRunning, elapsed)
		assert.True(t, d.changed, "elapsed %v", elapsed)
		assert.Equal(t, time.Duration(0), d.commit, "elapsed %v", elapsed)
		assert.Equal(t, bucketNone, d.bucket, "elapsed %v", elapsed)
	}

	// Just past the window is a real transition.
	d := transition(models.StatusStopped, models.StatusRunning, time.Second+time.Millisecond)
	assert.True(t, d.changed)
	assert.Equal(t, time.Second+time.Millisecond, d.commit)
	assert.Equal(t, bucketStop, d.bucket)
}
