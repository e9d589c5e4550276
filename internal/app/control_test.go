package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/twitch-vod-go/internal/domain"
)

func TestWaitIfPaused_RunningReturnsImmediately(t *testing.T) {
	ctrl := NewJobControl()
	assert.NoError(t, ctrl.WaitIfPaused())
}

func TestWaitIfPaused_BlocksUntilResume(t *testing.T) {
	ctrl := NewJobControl()
	ctrl.Pause()

	released := make(chan error, 1)
	go func() {
		released <- ctrl.WaitIfPaused()
	}()

	select {
	case <-released:
		t.Fatal("WaitIfPaused returned while paused")
	case <-time.After(50 * time.Millisecond):
	}

	ctrl.Resume()

	select {
	case err := <-released:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("WaitIfPaused did not return after Resume")
	}
}

func TestWaitIfPaused_AbortWhilePaused(t *testing.T) {
	ctrl := NewJobControl()
	ctrl.Pause()

	released := make(chan error, 1)
	go func() {
		released <- ctrl.WaitIfPaused()
	}()

	time.Sleep(20 * time.Millisecond)
	ctrl.Abort()

	select {
	case err := <-released:
		assert.ErrorIs(t, err, domain.ErrCancelled)
	case <-time.After(time.Second):
		t.Fatal("WaitIfPaused did not return after Abort")
	}
}

func TestWaitIfPaused_AbortedBeforeWait(t *testing.T) {
	ctrl := NewJobControl()
	ctrl.Abort()

	err := ctrl.WaitIfPaused()
	require.ErrorIs(t, err, domain.ErrCancelled)
	assert.True(t, ctrl.Aborted())
}
