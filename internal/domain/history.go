package domain

import (
	"time"

	"github.com/google/uuid"
)

// DownloadRecord is one entry in the persistent download history
type DownloadRecord struct {
	ID             string    `json:"id" gorm:"primaryKey"`
	VodID          string    `json:"vod_id" gorm:"index"`
	Channel        string    `json:"channel"`
	Title          string    `json:"title"`
	Quality        string    `json:"quality"`
	Thumbnail      string    `json:"thumbnail,omitempty"`
	FilePath       string    `json:"file_path"`
	FileSize       int64     `json:"file_size"`
	Segments       int       `json:"segments"`
	FailedSegments int       `json:"failed_segments"`
	Duration       int       `json:"duration"`
	Success        bool      `json:"success"`
	DownloadedAt   time.Time `json:"downloaded_at" gorm:"autoCreateTime;index"`
}

// NewDownloadRecord creates a history record from a terminal job snapshot
func NewDownloadRecord(snap JobSnapshot, meta *VodMetadata, filePath string) *DownloadRecord {
	rec := &DownloadRecord{
		ID:             uuid.New().String(),
		VodID:          snap.VodID,
		Quality:        snap.Quality,
		Thumbnail:      ThumbnailURL(snap.VodID, 320, 180),
		FilePath:       filePath,
		FileSize:       snap.TotalBytes,
		Segments:       snap.CompletedCount,
		FailedSegments: snap.FailedCount + snap.CopyrightBlockedCount,
		Success:        snap.State == StateCompleted,
		DownloadedAt:   time.Now(),
	}
	if meta != nil {
		rec.Channel = meta.OwnerLogin
		rec.Title = meta.Title
		rec.Duration = meta.LengthSeconds
	}
	return rec
}
