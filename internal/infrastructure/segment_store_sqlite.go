package infrastructure

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/yourusername/twitch-vod-go/internal/domain"
)

// storedSegment is one durable segment record. The composite key
// (download_id, segment_index) means concurrent jobs never collide and a
// retried segment overwrites only its own slot.
type storedSegment struct {
	DownloadID   string `gorm:"primaryKey;index:idx_segment_download"`
	SegmentIndex int    `gorm:"primaryKey"`
	Size         int64
	Data         []byte `gorm:"type:blob"`
}

// SQLiteSegmentStore implements domain.SegmentStore and
// domain.HistoryRepository over one SQLite database file.
type SQLiteSegmentStore struct {
	db         *gorm.DB
	quotaBytes int64
}

// NewSQLiteSegmentStore opens (and migrates) the store
func NewSQLiteSegmentStore(dbPath string, quotaBytes int64) (*SQLiteSegmentStore, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&storedSegment{}, &domain.DownloadRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &SQLiteSegmentStore{db: db, quotaBytes: quotaBytes}, nil
}

// Put stores a segment buffer, upserting its own slot
func (s *SQLiteSegmentStore) Put(downloadID string, index int, data []byte) error {
	rec := storedSegment{
		DownloadID:   downloadID,
		SegmentIndex: index,
		Size:         int64(len(data)),
		Data:         data,
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "download_id"}, {Name: "segment_index"}},
		UpdateAll: true,
	}).Create(&rec).Error
	if err != nil && isFullError(err) {
		return fmt.Errorf("%w: %v", domain.ErrStorageQuota, err)
	}
	return err
}

// Get returns the stored buffer, or (nil, nil) when absent
func (s *SQLiteSegmentStore) Get(downloadID string, index int) ([]byte, error) {
	var rec storedSegment
	err := s.db.Where("download_id = ? AND segment_index = ?", downloadID, index).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec.Data, nil
}

// DeleteDownload removes every segment belonging to a download
func (s *SQLiteSegmentStore) DeleteDownload(downloadID string) error {
	return s.db.Where("download_id = ?", downloadID).Delete(&storedSegment{}).Error
}

// Quota reports current segment usage against the configured quota
func (s *SQLiteSegmentStore) Quota() (domain.QuotaInfo, error) {
	var usage int64
	err := s.db.Model(&storedSegment{}).Select("COALESCE(SUM(size), 0)").Scan(&usage).Error
	if err != nil {
		return domain.QuotaInfo{}, err
	}
	info := domain.QuotaInfo{Usage: usage, Quota: s.quotaBytes}
	info.Available = info.Quota - info.Usage
	if info.Available < 0 {
		info.Available = 0
	}
	return info, nil
}

// Add persists a history record
func (s *SQLiteSegmentStore) Add(record *domain.DownloadRecord) error {
	return s.db.Create(record).Error
}

// List returns the most recent history records
func (s *SQLiteSegmentStore) List(limit int) ([]*domain.DownloadRecord, error) {
	var records []*domain.DownloadRecord
	q := s.db.Order("downloaded_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&records).Error
	return records, err
}

// Prune deletes history records beyond the newest keep entries
func (s *SQLiteSegmentStore) Prune(keep int) error {
	if keep <= 0 {
		return nil
	}
	var ids []string
	err := s.db.Model(&domain.DownloadRecord{}).
		Order("downloaded_at DESC").
		Offset(keep).
		Pluck("id", &ids).Error
	if err != nil || len(ids) == 0 {
		return err
	}
	return s.db.Delete(&domain.DownloadRecord{}, "id IN ?", ids).Error
}

// Close closes the underlying database connection
func (s *SQLiteSegmentStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// isFullError detects SQLite disk/quota exhaustion on a write
func isFullError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database or disk is full") || strings.Contains(msg, "out of memory")
}
