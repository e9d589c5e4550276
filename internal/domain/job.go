package domain

import (
	"fmt"
	"sync"
	"time"
)

// JobState represents the lifecycle state of a download job
type JobState string

const (
	StateRunning   JobState = "running"
	StatePaused    JobState = "paused"
	StateCompleted JobState = "completed"
	StateAborted   JobState = "aborted"
	StateFailed    JobState = "failed"
)

// DownloadRequest is a request to start a VOD download
type DownloadRequest struct {
	VodID       string     `json:"vod_id"`
	PlaylistURL string     `json:"playlist_url,omitempty"`
	Quality     string     `json:"quality,omitempty"`
	FileFormat  FileFormat `json:"file_format,omitempty"`
	ClipStart   float64    `json:"clip_start,omitempty"`
	ClipEnd     float64    `json:"clip_end,omitempty"`
	IncludeChat bool       `json:"include_chat,omitempty"`
	Filename    string     `json:"filename,omitempty"`
}

// DownloadJob is the run-scoped state of one download attempt. Mutated
// by the segment downloader on every batch boundary; evicted from live
// tracking on completion, cancellation or unrecoverable failure. Never
// copy a DownloadJob; serialize and share it through Snapshot.
type DownloadJob struct {
	ID          string // {vodID}_{startMillis}
	VodID       string
	Quality     string
	Filename    string
	FileFormat  FileFormat
	IncludeChat bool

	TotalSegments         int
	CompletedCount        int
	FailedCount           int
	CopyrightBlockedCount int
	TotalBytes            int64
	State                 JobState
	Concurrency           int

	StartedAt    time.Time
	ErrorMessage string

	mu sync.Mutex
}

// JobSnapshot is a point-in-time copy of a job's fields. Plain data,
// safe to copy and serialize while the live job keeps mutating.
type JobSnapshot struct {
	ID          string     `json:"id"`
	VodID       string     `json:"vod_id"`
	Quality     string     `json:"quality"`
	Filename    string     `json:"filename"`
	FileFormat  FileFormat `json:"file_format"`
	IncludeChat bool       `json:"include_chat"`

	TotalSegments         int      `json:"total_segments"`
	CompletedCount        int      `json:"completed_count"`
	FailedCount           int      `json:"failed_count"`
	CopyrightBlockedCount int      `json:"copyright_blocked_count"`
	TotalBytes            int64    `json:"total_bytes"`
	State                 JobState `json:"state"`
	Concurrency           int      `json:"concurrency"`

	StartedAt    time.Time `json:"started_at"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// Percent returns the completion percentage over all attempted segments
func (s JobSnapshot) Percent() int {
	if s.TotalSegments == 0 {
		return 0
	}
	done := s.CompletedCount + s.FailedCount + s.CopyrightBlockedCount
	return int(float64(done) / float64(s.TotalSegments) * 100)
}

// NewDownloadJob creates a running job with a unique per-attempt id
func NewDownloadJob(vodID, quality string, format FileFormat, concurrency int) *DownloadJob {
	now := time.Now()
	return &DownloadJob{
		ID:          fmt.Sprintf("%s_%d", vodID, now.UnixMilli()),
		VodID:       vodID,
		Quality:     quality,
		FileFormat:  format,
		State:       StateRunning,
		Concurrency: concurrency,
		StartedAt:   now,
	}
}

// RecordSegment counts one successfully stored segment
func (j *DownloadJob) RecordSegment(size int64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.CompletedCount++
	j.TotalBytes += size
}

// RecordBlocked counts one copyright-blocked segment
func (j *DownloadJob) RecordBlocked() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.CopyrightBlockedCount++
}

// RecordFailure counts one segment given up after retries
func (j *DownloadJob) RecordFailure() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.FailedCount++
}

// MarkPaused transitions running → paused
func (j *DownloadJob) MarkPaused() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.State == StateRunning {
		j.State = StatePaused
	}
}

// MarkResumed transitions paused → running
func (j *DownloadJob) MarkResumed() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.State == StatePaused {
		j.State = StateRunning
	}
}

// MarkCompleted marks the job finished
func (j *DownloadJob) MarkCompleted() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.State = StateCompleted
}

// MarkAborted marks the job cancelled by the user
func (j *DownloadJob) MarkAborted() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.State = StateAborted
}

// MarkFailed marks the job failed with an error message
func (j *DownloadJob) MarkFailed(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.State = StateFailed
	if err != nil {
		j.ErrorMessage = err.Error()
	}
}

// IsTerminal reports whether the job reached a final state
func (j *DownloadJob) IsTerminal() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.State == StateCompleted || j.State == StateAborted || j.State == StateFailed
}

// Snapshot returns the job's fields as plain data
func (j *DownloadJob) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return JobSnapshot{
		ID:                    j.ID,
		VodID:                 j.VodID,
		Quality:               j.Quality,
		Filename:              j.Filename,
		FileFormat:            j.FileFormat,
		IncludeChat:           j.IncludeChat,
		TotalSegments:         j.TotalSegments,
		CompletedCount:        j.CompletedCount,
		FailedCount:           j.FailedCount,
		CopyrightBlockedCount: j.CopyrightBlockedCount,
		TotalBytes:            j.TotalBytes,
		State:                 j.State,
		Concurrency:           j.Concurrency,
		StartedAt:             j.StartedAt,
		ErrorMessage:          j.ErrorMessage,
	}
}

// JobStats aggregates counts across jobs
type JobStats struct {
	Active    int `json:"active"`
	Paused    int `json:"paused"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Aborted   int `json:"aborted"`
}
