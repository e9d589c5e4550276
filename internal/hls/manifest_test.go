package hls

import (
	"context"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/twitch-vod-go/internal/domain"
)

// fakeMetadata serves a fixed metadata record
type fakeMetadata struct {
	meta *domain.VodMetadata
	err  error
}

func (f *fakeMetadata) VideoMetadata(_ context.Context, _ string) (*domain.VodMetadata, error) {
	return f.meta, f.err
}

// cannedTransport answers requests from a URL-keyed response table;
// anything not in the table gets a 404.
type cannedTransport struct {
	responses map[string]string
}

func (c *cannedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	body, ok := c.responses[req.URL.String()]
	status := http.StatusOK
	if !ok {
		status = http.StatusNotFound
	}
	return &http.Response{
		StatusCode: status,
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    req,
	}, nil
}

func archiveMeta() *domain.VodMetadata {
	return &domain.VodMetadata{
		VodID:           "123456789",
		BroadcastType:   domain.BroadcastArchive,
		CreatedAt:       time.Now().Add(-48 * time.Hour),
		OwnerLogin:      "somestreamer",
		SeekPreviewsURL: "https://d1m7jfoe9zdc1j.cloudfront.net/abc123def/storyboards/123456789-info.json",
	}
}

func newTestSynthesizer(meta *domain.VodMetadata, responses map[string]string) *Synthesizer {
	return NewSynthesizer(
		&fakeMetadata{meta: meta},
		&http.Client{Transport: &cannedTransport{responses: responses}},
		zap.NewNop(),
	)
}

func TestSynthesize_TwoQualities(t *testing.T) {
	responses := map[string]string{
		"https://d1m7jfoe9zdc1j.cloudfront.net/abc123def/chunked/index-dvr.m3u8": "#EXTM3U\n#EXTINF:10.0,\n0.ts\n",
		"https://d1m7jfoe9zdc1j.cloudfront.net/abc123def/720p60/index-dvr.m3u8":  "#EXTM3U\n#EXTINF:10.0,\n0.ts\n",
	}
	s := newTestSynthesizer(archiveMeta(), responses)

	playlist, err := s.Synthesize(context.Background(), "123456789")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(playlist, "#EXTM3U\n"))
	assert.Equal(t, 2, strings.Count(playlist, "#EXT-X-STREAM-INF:"))
	assert.Equal(t, 2, strings.Count(playlist, "#EXT-X-MEDIA:"))

	// chunked is the default rendition, other qualities are not
	assert.Contains(t, playlist, `NAME="1080p",AUTOSELECT=YES,DEFAULT=YES`)
	assert.Contains(t, playlist, `NAME="720p60",AUTOSELECT=NO,DEFAULT=NO`)
}

func TestSynthesize_ServingID(t *testing.T) {
	responses := map[string]string{
		"https://d1m7jfoe9zdc1j.cloudfront.net/abc123def/chunked/index-dvr.m3u8": "#EXTM3U\n#EXTINF:10.0,\n0.ts\n",
	}
	s := newTestSynthesizer(archiveMeta(), responses)

	playlist, err := s.Synthesize(context.Background(), "123456789")
	require.NoError(t, err)

	m := regexp.MustCompile(`SERVING-ID="([a-z0-9]+)"`).FindStringSubmatch(playlist)
	require.NotNil(t, m, "playlist should carry a serving id")
	assert.Len(t, m[1], 32)
}

func TestSynthesize_DecreasingBandwidth(t *testing.T) {
	responses := map[string]string{
		"https://d1m7jfoe9zdc1j.cloudfront.net/abc123def/chunked/index-dvr.m3u8": "#EXTM3U\n#EXTINF:10.0,\n0.ts\n",
		"https://d1m7jfoe9zdc1j.cloudfront.net/abc123def/720p60/index-dvr.m3u8":  "#EXTM3U\n#EXTINF:10.0,\n0.ts\n",
		"https://d1m7jfoe9zdc1j.cloudfront.net/abc123def/480p30/index-dvr.m3u8":  "#EXTM3U\n#EXTINF:10.0,\n0.ts\n",
	}
	s := newTestSynthesizer(archiveMeta(), responses)

	playlist, err := s.Synthesize(context.Background(), "123456789")
	require.NoError(t, err)

	re := regexp.MustCompile(`BANDWIDTH=(\d+)`)
	var bandwidths []int
	for _, m := range re.FindAllStringSubmatch(playlist, -1) {
		n, err := strconv.Atoi(m[1])
		require.NoError(t, err)
		bandwidths = append(bandwidths, n)
	}

	require.Len(t, bandwidths, 3)
	assert.Equal(t, 8534030, bandwidths[0])
	for i := 1; i < len(bandwidths); i++ {
		assert.Less(t, bandwidths[i], bandwidths[i-1])
	}
}

func TestSynthesize_CodecProbe(t *testing.T) {
	tests := []struct {
		name     string
		playlist string
		initBody string
		hasInit  bool
		want     string
	}{
		{"ts segments", "#EXTM3U\n#EXTINF:10.0,\n0.ts\n", "", false, "avc1.4D001E"},
		{"mp4 hevc init", "#EXTM3U\n#EXTINF:10.0,\n0-muted.mp4\n", "....hev1....", true, "hev1.1.6.L93.B0"},
		{"mp4 avc init", "#EXTM3U\n#EXTINF:10.0,\n0-muted.mp4\n", "....avc1....", true, "avc1.4D001E"},
		{"mp4 missing init", "#EXTM3U\n#EXTINF:10.0,\n0-muted.mp4\n", "", false, "hev1.1.6.L93.B0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			responses := map[string]string{
				"https://d1m7jfoe9zdc1j.cloudfront.net/abc123def/chunked/index-dvr.m3u8": tt.playlist,
			}
			if tt.hasInit {
				responses["https://d1m7jfoe9zdc1j.cloudfront.net/abc123def/chunked/init-0.mp4"] = tt.initBody
			}
			s := newTestSynthesizer(archiveMeta(), responses)

			playlist, err := s.Synthesize(context.Background(), "123456789")
			require.NoError(t, err)
			assert.Contains(t, playlist, `CODECS="`+tt.want+`,mp4a.40.2"`)
		})
	}
}

func TestSynthesize_NoValidQuality(t *testing.T) {
	s := newTestSynthesizer(archiveMeta(), nil)

	_, err := s.Synthesize(context.Background(), "123456789")
	assert.ErrorIs(t, err, domain.ErrNoValidQuality)
}

func TestSynthesize_MissingStorageID(t *testing.T) {
	meta := archiveMeta()
	meta.SeekPreviewsURL = "https://d1m7jfoe9zdc1j.cloudfront.net/other/path.json"
	s := newTestSynthesizer(meta, nil)

	_, err := s.Synthesize(context.Background(), "123456789")
	assert.ErrorIs(t, err, domain.ErrNoMetadata)
}

func TestSynthesize_StripsVersionPrefix(t *testing.T) {
	meta := archiveMeta()
	meta.BroadcastType = domain.BroadcastHighlight
	responses := map[string]string{
		"https://d1m7jfoe9zdc1j.cloudfront.net/abc123def/chunked/highlight-123456789.m3u8": "#EXTM3U\n#EXTINF:10.0,\n0.ts\n",
	}
	s := newTestSynthesizer(meta, responses)

	playlist, err := s.Synthesize(context.Background(), "v2/123456789")
	require.NoError(t, err)
	assert.Contains(t, playlist, "highlight-123456789.m3u8")
	assert.NotContains(t, playlist, "v2/")
}

func TestCandidateURL_Shapes(t *testing.T) {
	s := NewSynthesizer(nil, nil, zap.NewNop())
	loc := domain.CDNLocation{Domain: "cdn.example.com", StorageID: "store1"}

	assert.Equal(t,
		"https://cdn.example.com/store1/chunked/highlight-42.m3u8",
		s.candidateURL("42", "highlight", 1, "alice", loc, "chunked"))

	assert.Equal(t,
		"https://cdn.example.com/alice/42/store1/chunked/index-dvr.m3u8",
		s.candidateURL("42", "upload", 10, "alice", loc, "chunked"))

	// Recent uploads use the default shape
	assert.Equal(t,
		"https://cdn.example.com/store1/chunked/index-dvr.m3u8",
		s.candidateURL("42", "upload", 3, "alice", loc, "chunked"))

	assert.Equal(t,
		"https://cdn.example.com/store1/720p60/index-dvr.m3u8",
		s.candidateURL("42", "archive", 1, "alice", loc, "720p60"))
}
