package domain

// QuotaInfo is a snapshot of durable storage usage
type QuotaInfo struct {
	Usage     int64 `json:"usage"`
	Quota     int64 `json:"quota"`
	Available int64 `json:"available"`
}

// SegmentStore is the durable per-segment store. Records are keyed by
// (downloadID, index); a record is either absent or holds exactly the
// bytes the origin returned for that segment.
type SegmentStore interface {
	// Put stores a segment buffer. A retried segment overwrites its own
	// slot, never another's.
	Put(downloadID string, index int, data []byte) error

	// Get returns the stored buffer, or (nil, nil) if the segment was
	// never stored.
	Get(downloadID string, index int) ([]byte, error)

	// DeleteDownload removes every record belonging to a download.
	DeleteDownload(downloadID string) error

	// Quota reports current usage against the configured quota.
	Quota() (QuotaInfo, error)
}

// HistoryRepository persists finished-download records
type HistoryRepository interface {
	Add(record *DownloadRecord) error
	List(limit int) ([]*DownloadRecord, error)
	Prune(keep int) error
}
