package app

import (
	"sync"

	"github.com/yourusername/twitch-vod-go/internal/domain"
)

// JobControl coordinates pause/resume/abort for one download job. Waiters
// block on a condition variable instead of polling, so Resume and Abort
// take effect immediately and test timing stays deterministic.
type JobControl struct {
	mu      sync.Mutex
	cond    *sync.Cond
	paused  bool
	aborted bool
}

// NewJobControl creates a control in the running state
func NewJobControl() *JobControl {
	c := &JobControl{}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Pause requests that no further batch starts
func (c *JobControl) Pause() {
	c.mu.Lock()
	c.paused = true
	c.mu.Unlock()
}

// Resume releases a paused job
func (c *JobControl) Resume() {
	c.mu.Lock()
	c.paused = false
	c.mu.Unlock()
	c.cond.Broadcast()
}

// Abort cancels the job, unblocking any pause-wait
func (c *JobControl) Abort() {
	c.mu.Lock()
	c.aborted = true
	c.mu.Unlock()
	c.cond.Broadcast()
}

// Paused reports whether the job is currently paused
func (c *JobControl) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// Aborted reports whether the job was cancelled
func (c *JobControl) Aborted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aborted
}

// WaitIfPaused blocks while the job is paused. It returns
// domain.ErrCancelled if the job is aborted before or during the wait.
func (c *JobControl) WaitIfPaused() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for c.paused && !c.aborted {
		c.cond.Wait()
	}
	if c.aborted {
		return domain.ErrCancelled
	}
	return nil
}
