package hls

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/twitch-vod-go/internal/domain"
)

func mediaPlaylist(count int, duration float64) string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-TARGETDURATION:10\n#EXT-X-PLAYLIST-TYPE:VOD\n")
	for i := 0; i < count; i++ {
		fmt.Fprintf(&b, "#EXTINF:%.3f,\n%d.ts\n", duration, i)
	}
	b.WriteString("#EXT-X-ENDLIST\n")
	return b.String()
}

func TestExtractSegments_FullPlaylist(t *testing.T) {
	segments, err := ExtractSegments(mediaPlaylist(5, 10), "https://cdn.example.com/abc/chunked/index-dvr.m3u8", 0, 0)
	require.NoError(t, err)
	require.Len(t, segments, 5)

	for i, seg := range segments {
		assert.Equal(t, i, seg.Index)
		assert.Equal(t, fmt.Sprintf("https://cdn.example.com/abc/chunked/%d.ts", i), seg.URL)
		assert.InDelta(t, 10.0, seg.Duration, 0.001)
	}
}

func TestExtractSegments_ClipWindow(t *testing.T) {
	// 10 segments of 10s each; the window [25, 45) overlaps the source
	// segments covering 20-30, 30-40 and 40-50.
	segments, err := ExtractSegments(mediaPlaylist(10, 10), "https://cdn.example.com/abc/chunked/index-dvr.m3u8", 25, 45)
	require.NoError(t, err)
	require.Len(t, segments, 3)

	assert.True(t, strings.HasSuffix(segments[0].URL, "/2.ts"))
	assert.True(t, strings.HasSuffix(segments[1].URL, "/3.ts"))
	assert.True(t, strings.HasSuffix(segments[2].URL, "/4.ts"))

	// Selected segments are re-indexed from zero
	for i, seg := range segments {
		assert.Equal(t, i, seg.Index)
	}
}

func TestExtractSegments_BoundaryExclusive(t *testing.T) {
	// A segment ending exactly at clipStart or starting exactly at
	// clipEnd does not overlap the window.
	segments, err := ExtractSegments(mediaPlaylist(10, 10), "https://cdn.example.com/x/chunked/index-dvr.m3u8", 20, 40)
	require.NoError(t, err)
	require.Len(t, segments, 2)
	assert.True(t, strings.HasSuffix(segments[0].URL, "/2.ts"))
	assert.True(t, strings.HasSuffix(segments[1].URL, "/3.ts"))
}

func TestExtractSegments_EmptyWindow(t *testing.T) {
	_, err := ExtractSegments(mediaPlaylist(3, 10), "https://cdn.example.com/x/chunked/index-dvr.m3u8", 500, 600)
	assert.ErrorIs(t, err, domain.ErrNoSegmentsInRange)
}

func TestExtractSegments_AbsoluteURLs(t *testing.T) {
	playlist := "#EXTM3U\n#EXTINF:4.0,\nhttps://other.example.com/seg0.ts\n#EXT-X-ENDLIST\n"
	segments, err := ExtractSegments(playlist, "https://cdn.example.com/x/chunked/index-dvr.m3u8", 0, 0)
	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.Equal(t, "https://other.example.com/seg0.ts", segments[0].URL)
}

func TestExtractSegments_NonStandardTags(t *testing.T) {
	// Playlists with unknown tags still parse through the fallback scanner
	playlist := "#EXTM3U\n#EXT-X-TWITCH-UNKNOWN:foo\n#EXTINF:6.0,\nseg-a.ts\n#EXTINF:6.0,\nseg-b.ts\n"
	segments, err := ExtractSegments(playlist, "https://cdn.example.com/x/720p60/index-dvr.m3u8", 0, 0)
	require.NoError(t, err)
	require.Len(t, segments, 2)
	assert.InDelta(t, 6.0, segments[0].Duration, 0.001)
}

func TestPickVariant(t *testing.T) {
	master := strings.Join([]string{
		"#EXTM3U",
		"#EXT-X-STREAM-INF:BANDWIDTH=8534030",
		"https://cdn.example.com/abc/chunked/index-dvr.m3u8",
		"#EXT-X-STREAM-INF:BANDWIDTH=8533930",
		"https://cdn.example.com/abc/720p60/index-dvr.m3u8",
	}, "\n")

	assert.Equal(t, "https://cdn.example.com/abc/720p60/index-dvr.m3u8", PickVariant(master, "720p60"))
	assert.Equal(t, "https://cdn.example.com/abc/chunked/index-dvr.m3u8", PickVariant(master, "chunked"))
	assert.Empty(t, PickVariant(master, "480p30"))
}
