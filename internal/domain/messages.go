package domain

// MessageAction discriminates the push messages sent to clients. The set
// is closed: every message type below carries exactly one action value.
type MessageAction string

const (
	ActionDownloadProgress MessageAction = "downloadProgress"
	ActionDownloadComplete MessageAction = "downloadComplete"
)

// Message is the closed union of push message types
type Message interface {
	MessageAction() MessageAction
}

// ProgressMessage is emitted at batch granularity while a job runs
type ProgressMessage struct {
	Action          MessageAction `json:"action"`
	DownloadID      string        `json:"download_id"`
	Percent         int           `json:"percent"`
	Current         int           `json:"current"`
	Total           int           `json:"total"`
	Speed           float64       `json:"speed"` // bytes per second
	DownloadedBytes int64         `json:"downloaded_bytes"`
}

// NewProgressMessage builds a progress message from a job snapshot
func NewProgressMessage(snap JobSnapshot, speed float64) ProgressMessage {
	return ProgressMessage{
		Action:          ActionDownloadProgress,
		DownloadID:      snap.ID,
		Percent:         snap.Percent(),
		Current:         snap.CompletedCount + snap.FailedCount + snap.CopyrightBlockedCount,
		Total:           snap.TotalSegments,
		Speed:           speed,
		DownloadedBytes: snap.TotalBytes,
	}
}

func (m ProgressMessage) MessageAction() MessageAction { return ActionDownloadProgress }

// CompleteMessage is emitted exactly once per job, success or failure
type CompleteMessage struct {
	Action     MessageAction `json:"action"`
	DownloadID string        `json:"download_id"`
	Success    bool          `json:"success"`
	TotalBytes int64         `json:"total_bytes"`
	FailedCount int          `json:"failed_count"`
	FilePath   string        `json:"file_path,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// NewCompleteMessage builds the terminal message from a job snapshot
func NewCompleteMessage(snap JobSnapshot, filePath string, err error) CompleteMessage {
	m := CompleteMessage{
		Action:      ActionDownloadComplete,
		DownloadID:  snap.ID,
		Success:     err == nil,
		TotalBytes:  snap.TotalBytes,
		FailedCount: snap.FailedCount + snap.CopyrightBlockedCount,
		FilePath:    filePath,
	}
	if err != nil {
		m.Error = err.Error()
	}
	return m
}

func (m CompleteMessage) MessageAction() MessageAction { return ActionDownloadComplete }
