package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCDNLocation(t *testing.T) {
	meta := &VodMetadata{
		SeekPreviewsURL: "https://d1m7jfoe9zdc1j.cloudfront.net/abc123def/storyboards/123-info.json",
	}

	loc, err := meta.CDNLocation()
	require.NoError(t, err)
	assert.Equal(t, "d1m7jfoe9zdc1j.cloudfront.net", loc.Domain)
	assert.Equal(t, "abc123def", loc.StorageID)
}

func TestCDNLocation_NoStoryboards(t *testing.T) {
	meta := &VodMetadata{
		SeekPreviewsURL: "https://d1m7jfoe9zdc1j.cloudfront.net/abc123def/other/123-info.json",
	}

	_, err := meta.CDNLocation()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storyboards")
}

func TestCDNLocation_NoStorageID(t *testing.T) {
	meta := &VodMetadata{
		SeekPreviewsURL: "https://d1m7jfoe9zdc1j.cloudfront.net/storyboards/123-info.json",
	}

	_, err := meta.CDNLocation()
	require.Error(t, err)
}

func TestAgeDays(t *testing.T) {
	now := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	meta := &VodMetadata{CreatedAt: now.Add(-10 * 24 * time.Hour)}
	assert.InDelta(t, 10.0, meta.AgeDays(now), 0.01)
}

func TestDisplayLabel(t *testing.T) {
	chunked := &QualityCandidate{Key: "chunked", Resolution: "1920x1080"}
	assert.Equal(t, "1080p", chunked.DisplayLabel())

	named := &QualityCandidate{Key: "720p60", Resolution: "1280x720"}
	assert.Equal(t, "720p60", named.DisplayLabel())
}

func TestFileFormat(t *testing.T) {
	assert.Equal(t, "video/mp2t", FormatTS.MIMEType())
	assert.Equal(t, "video/mp4", FormatMP4.MIMEType())
	assert.Equal(t, FormatTS, FileFormat("").OrDefault())
	assert.Equal(t, FormatMP4, FormatMP4.OrDefault())
	assert.True(t, ValidateFormat(FormatTS))
	assert.False(t, ValidateFormat(FileFormat("mkv")))
}
