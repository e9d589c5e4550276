package hls

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNullSegment(t *testing.T) {
	seg := NullSegment()

	require.Len(t, seg, 10*188)

	for i := 0; i < 10; i++ {
		pkt := seg[i*188 : (i+1)*188]
		assert.Equal(t, byte(0x47), pkt[0], "packet %d sync byte", i)
		// PID 0x1FFF spread over bytes 1-2
		assert.Equal(t, byte(0x1F), pkt[1], "packet %d", i)
		assert.Equal(t, byte(0xFF), pkt[2], "packet %d", i)
		assert.Equal(t, byte(0x10), pkt[3], "packet %d", i)
	}
}

func TestNullSegmentReturnsFreshSlice(t *testing.T) {
	a := NullSegment()
	a[0] = 0x00

	b := NullSegment()
	assert.Equal(t, byte(0x47), b[0])
}
