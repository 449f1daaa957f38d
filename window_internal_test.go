package touchloop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHeadlessWindowFrameLimit(t *testing.T) {
	assert := require.New(t)

	w := NewHeadlessWindow(NewTree(), 10, 10)
	var slept []time.Duration
	w.sleep = func(d time.Duration) { slept = append(slept, d) }

	assert.NoError(w.Flip())
	assert.Empty(slept)

	w.MaxFPS = 10
	assert.NoError(w.Flip())
	assert.Empty(slept)
	assert.NoError(w.Flip())
	assert.Len(slept, 1)
	assert.LessOrEqual(slept[0], 100*time.Millisecond)
	assert.Equal(uint64(3), w.Frames())

	assert.NoError(w.Close())
	assert.NoError(w.Close())
	assert.True(w.Closed())
}
