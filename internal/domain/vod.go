package domain

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// BroadcastType identifies how a VOD was produced. It determines the
// shape of the CDN stream URL.
type BroadcastType string

const (
	BroadcastLiveRerun BroadcastType = "live_rerun"
	BroadcastHighlight BroadcastType = "highlight"
	BroadcastUpload    BroadcastType = "upload"
	BroadcastArchive   BroadcastType = "archive"
)

// VodMetadata identifies a video. Fetched once per download attempt via
// the GraphQL metadata query; immutable thereafter.
type VodMetadata struct {
	VodID           string
	BroadcastType   BroadcastType
	CreatedAt       time.Time
	OwnerLogin      string
	Title           string
	LengthSeconds   int
	SeekPreviewsURL string
}

// CDNLocation is the pair of opaque path fragments recovered from the
// seek-previews URL: the CDN host and the per-VOD storage identifier.
type CDNLocation struct {
	Domain    string
	StorageID string
}

// CDNLocation extracts the CDN host and storage id from the seek-previews
// URL. The storage id is the path element immediately before the
// "storyboards" fragment; a URL without that fragment is a format error.
func (m *VodMetadata) CDNLocation() (CDNLocation, error) {
	u, err := url.Parse(m.SeekPreviewsURL)
	if err != nil {
		return CDNLocation{}, fmt.Errorf("invalid seek previews URL %q: %w", m.SeekPreviewsURL, err)
	}

	parts := strings.Split(u.Path, "/")
	for i, p := range parts {
		if strings.Contains(p, "storyboards") {
			if i == 0 || parts[i-1] == "" {
				return CDNLocation{}, fmt.Errorf("seek previews URL %q has no storage id before storyboards", m.SeekPreviewsURL)
			}
			return CDNLocation{Domain: u.Host, StorageID: parts[i-1]}, nil
		}
	}

	return CDNLocation{}, fmt.Errorf("seek previews URL %q has no storyboards fragment", m.SeekPreviewsURL)
}

// AgeDays returns the VOD age in days at the given instant
func (m *VodMetadata) AgeDays(now time.Time) float64 {
	return now.Sub(m.CreatedAt).Hours() / 24
}

// QualityCandidate is one offered rendition of a VOD
type QualityCandidate struct {
	Key        string // canonical quality label, e.g. "720p60", "chunked"
	Resolution string // WxH
	FrameRate  int
	Codec      string // determined by probing the media playlist
	Bandwidth  int    // synthetic, strictly decreasing per emitted candidate
	StreamURL  string
}

// DisplayLabel maps the source quality to the user-facing label;
// "chunked" is shown as its vertical resolution.
func (q *QualityCandidate) DisplayLabel() string {
	if q.Key != "chunked" {
		return q.Key
	}
	if i := strings.Index(q.Resolution, "x"); i >= 0 {
		return q.Resolution[i+1:] + "p"
	}
	return q.Key
}

// SegmentEntry is one fetchable chunk of a media playlist. Index is
// 0-based and order-significant: storage and reassembly key on it.
type SegmentEntry struct {
	Index    int
	URL      string
	Duration float64 // seconds, from the #EXTINF tag
}

// FileFormat is the output container for a finished download
type FileFormat string

const (
	FormatTS  FileFormat = "ts"
	FormatMP4 FileFormat = "mp4"
)

// MIMEType returns the container MIME type for the format
func (f FileFormat) MIMEType() string {
	if f == FormatMP4 {
		return "video/mp4"
	}
	return "video/mp2t"
}

// Extension returns the file extension without the dot
func (f FileFormat) Extension() string {
	if f == FormatMP4 {
		return "mp4"
	}
	return "ts"
}

// OrDefault returns the format, defaulting to ts when unset
func (f FileFormat) OrDefault() FileFormat {
	if f == "" {
		return FormatTS
	}
	return f
}

// ValidateFormat checks if a file format is valid
func ValidateFormat(f FileFormat) bool {
	return f == FormatTS || f == FormatMP4
}

// ThumbnailURL derives the CDN thumbnail location for a VOD
func ThumbnailURL(vodID string, width, height int) string {
	return fmt.Sprintf("https://static-cdn.jtvnw.net/cf_vods/%s/thumb/thumb0-%dx%d.jpg", vodID, width, height)
}
