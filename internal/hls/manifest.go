package hls

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/twitch-vod-go/internal/domain"
)

// MetadataSource resolves VOD metadata, typically over GraphQL
type MetadataSource interface {
	VideoMetadata(ctx context.Context, vodID string) (*domain.VodMetadata, error)
}

// qualityOption is one row of the fixed candidate table
type qualityOption struct {
	key        string
	resolution string
	frameRate  int
}

// Candidate qualities in emission order: highest preference first so the
// synthetic bandwidth values establish ABR ordering by decreasing.
var qualityTable = []qualityOption{
	{"chunked", "1920x1080", 60},
	{"1080p60", "1920x1080", 60},
	{"720p60", "1280x720", 60},
	{"480p30", "854x480", 30},
	{"360p30", "640x360", 30},
	{"160p30", "284x160", 30},
}

const (
	startBandwidth   = 8534030
	bandwidthStep    = 100
	probeTimeout     = 5 * time.Second
	codecH264        = "avc1.4D001E"
	codecHEVC        = "hev1.1.6.L93.B0"
	servingIDLetters = "0123456789abcdefghijklmnopqrstuvwxyz"
)

var versionPrefix = regexp.MustCompile(`^v\d+/`)

// Synthesizer reconstructs a multi-quality HLS master playlist from VOD
// metadata when the origin denies the real one. Read-only aside from
// outbound probe requests.
type Synthesizer struct {
	meta   MetadataSource
	client *http.Client
	log    *zap.Logger
	now    func() time.Time
	rng    *rand.Rand
}

// NewSynthesizer creates a manifest synthesizer. client is used for
// quality probing and may carry its own transport.
func NewSynthesizer(meta MetadataSource, client *http.Client, log *zap.Logger) *Synthesizer {
	if client == nil {
		client = http.DefaultClient
	}
	return &Synthesizer{
		meta:   meta,
		client: client,
		log:    log,
		now:    time.Now,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Synthesize builds a master playlist for the VOD. It returns
// domain.ErrNoMetadata when the metadata query yields no video and
// domain.ErrNoValidQuality when every candidate fails probing.
func (s *Synthesizer) Synthesize(ctx context.Context, vodID string) (string, error) {
	// Usher URLs may carry a version prefix (v2/, v3/) before the id.
	vodID = versionPrefix.ReplaceAllString(vodID, "")

	meta, err := s.meta.VideoMetadata(ctx, vodID)
	if err != nil {
		return "", err
	}

	loc, err := meta.CDNLocation()
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrNoMetadata, err)
	}

	candidates := s.probeCandidates(ctx, vodID, meta, loc)
	if len(candidates) == 0 {
		return "", domain.ErrNoValidQuality
	}

	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	fmt.Fprintf(&b, "#EXT-X-TWITCH-INFO:ORIGIN=\"s3\",B=\"false\",REGION=\"EU\",USER-IP=\"127.0.0.1\",SERVING-ID=%q,CLUSTER=\"cloudfront_vod\",USER-COUNTRY=\"BE\",MANIFEST-CLUSTER=\"cloudfront_vod\"", s.servingID())

	for _, c := range candidates {
		label := c.DisplayLabel()
		enabled := "NO"
		if c.Key == "chunked" {
			enabled = "YES"
		}
		fmt.Fprintf(&b, "\n#EXT-X-MEDIA:TYPE=VIDEO,GROUP-ID=%q,NAME=%q,AUTOSELECT=%s,DEFAULT=%s", label, label, enabled, enabled)
		fmt.Fprintf(&b, "\n#EXT-X-STREAM-INF:BANDWIDTH=%d,CODECS=\"%s,mp4a.40.2\",RESOLUTION=%s,VIDEO=%q,FRAME-RATE=%d", c.Bandwidth, c.Codec, c.Resolution, label, c.FrameRate)
		fmt.Fprintf(&b, "\n%s", c.StreamURL)
	}

	return b.String(), nil
}

// probeCandidates checks every quality in the fixed table and returns the
// reachable ones with probed codec and descending synthetic bandwidth.
func (s *Synthesizer) probeCandidates(ctx context.Context, vodID string, meta *domain.VodMetadata, loc domain.CDNLocation) []domain.QualityCandidate {
	ageDays := meta.AgeDays(s.now())
	broadcastType := strings.ToLower(string(meta.BroadcastType))

	var out []domain.QualityCandidate
	bandwidth := startBandwidth
	for _, q := range qualityTable {
		streamURL := s.candidateURL(vodID, broadcastType, ageDays, meta.OwnerLogin, loc, q.key)

		codec, ok := s.probeQuality(ctx, streamURL)
		if !ok {
			continue
		}

		out = append(out, domain.QualityCandidate{
			Key:        q.key,
			Resolution: q.resolution,
			FrameRate:  q.frameRate,
			Codec:      codec,
			Bandwidth:  bandwidth,
			StreamURL:  streamURL,
		})
		bandwidth -= bandwidthStep
	}
	return out
}

// candidateURL builds the CDN media playlist URL for a quality. The
// shape depends on the broadcast type; uploads older than a week live
// under the owner's login path.
func (s *Synthesizer) candidateURL(vodID, broadcastType string, ageDays float64, ownerLogin string, loc domain.CDNLocation, quality string) string {
	switch {
	case broadcastType == "highlight":
		return fmt.Sprintf("https://%s/%s/%s/highlight-%s.m3u8", loc.Domain, loc.StorageID, quality, vodID)
	case broadcastType == "upload" && ageDays > 7:
		return fmt.Sprintf("https://%s/%s/%s/%s/%s/index-dvr.m3u8", loc.Domain, ownerLogin, vodID, loc.StorageID, quality)
	default:
		return fmt.Sprintf("https://%s/%s/%s/index-dvr.m3u8", loc.Domain, loc.StorageID, quality)
	}
}

// probeQuality fetches a candidate media playlist and derives the codec.
// Playlists referencing .ts segments are H.264; .mp4-backed streams are
// HEVC unless the init segment lacks the hev1 box marker. Both checks
// are best-effort string matches against undocumented origin behavior.
func (s *Synthesizer) probeQuality(ctx context.Context, streamURL string) (string, bool) {
	body, ok := s.fetchText(ctx, streamURL)
	if !ok {
		return "", false
	}

	if strings.Contains(body, ".ts") {
		return codecH264, true
	}
	if strings.Contains(body, ".mp4") {
		initURL := strings.Replace(streamURL, "index-dvr.m3u8", "init-0.mp4", 1)
		initBody, ok := s.fetchText(ctx, initURL)
		if !ok {
			return codecHEVC, true
		}
		if strings.Contains(initBody, "hev1") {
			return codecHEVC, true
		}
		return codecH264, true
	}
	return "", false
}

func (s *Synthesizer) fetchText(ctx context.Context, rawURL string) (string, bool) {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", false
	}
	resp, err := s.client.Do(req)
	if err != nil {
		if s.log != nil {
			s.log.Debug("quality probe failed", zap.String("url", rawURL), zap.Error(err))
		}
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", false
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", false
	}
	return string(body), true
}

// servingID generates the random 32-character id the origin expects in
// diagnostic playlist headers.
func (s *Synthesizer) servingID() string {
	b := make([]byte, 32)
	for i := range b {
		b[i] = servingIDLetters[s.rng.Intn(len(servingIDLetters))]
	}
	return string(b)
}
