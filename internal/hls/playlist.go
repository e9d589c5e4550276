package hls

import (
	"bytes"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/grafov/m3u8"

	"github.com/yourusername/twitch-vod-go/internal/domain"
)

// ExtractSegments parses a media playlist into an ordered segment list,
// clipped to the [clipStart, clipEnd) time window. A segment is included
// if its [cumTime, cumTime+duration) interval overlaps the window.
// Returned entries are re-indexed 0..n-1 in playlist order; pass
// clipEnd <= 0 for an unbounded window.
func ExtractSegments(playlistText, baseURL string, clipStart, clipEnd float64) ([]domain.SegmentEntry, error) {
	if clipEnd <= 0 {
		clipEnd = math.Inf(1)
	}

	raw, err := decodeSegments(playlistText)
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid playlist base URL %q: %w", baseURL, err)
	}

	var out []domain.SegmentEntry
	cumTime := 0.0
	for _, seg := range raw {
		segStart := cumTime
		segEnd := cumTime + seg.Duration
		cumTime = segEnd

		if segEnd <= clipStart || segStart >= clipEnd {
			continue
		}

		resolved := seg.URL
		if !strings.HasPrefix(resolved, "http") {
			ref, err := base.Parse(resolved)
			if err != nil {
				return nil, fmt.Errorf("cannot resolve segment URI %q: %w", resolved, err)
			}
			resolved = ref.String()
		}

		out = append(out, domain.SegmentEntry{
			Index:    len(out),
			URL:      resolved,
			Duration: seg.Duration,
		})
	}

	if len(out) == 0 {
		return nil, domain.ErrNoSegmentsInRange
	}
	return out, nil
}

// decodeSegments tries the strict m3u8 decoder first and falls back to a
// line scanner for playlists the decoder rejects (Twitch emits a few
// non-standard tags).
func decodeSegments(playlistText string) ([]domain.SegmentEntry, error) {
	p, listType, err := m3u8.DecodeFrom(bytes.NewReader([]byte(playlistText)), false)
	if err == nil && listType == m3u8.MEDIA {
		media, ok := p.(*m3u8.MediaPlaylist)
		if ok {
			var out []domain.SegmentEntry
			for _, seg := range media.Segments {
				if seg == nil {
					continue
				}
				out = append(out, domain.SegmentEntry{URL: seg.URI, Duration: seg.Duration})
			}
			if len(out) > 0 {
				return out, nil
			}
		}
	}
	return scanSegments(playlistText), nil
}

// scanSegments is the permissive fallback: a #EXTINF line sets the
// duration attached to the next non-comment, non-empty line.
func scanSegments(playlistText string) []domain.SegmentEntry {
	var out []domain.SegmentEntry
	lastDur := 0.0
	for _, line := range strings.Split(playlistText, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "#EXTINF"):
			lastDur = parseExtInfDuration(trimmed)
		case trimmed != "" && !strings.HasPrefix(trimmed, "#"):
			out = append(out, domain.SegmentEntry{URL: trimmed, Duration: lastDur})
			lastDur = 0
		}
	}
	return out
}

func parseExtInfDuration(line string) float64 {
	rest := strings.TrimPrefix(line, "#EXTINF:")
	if i := strings.IndexByte(rest, ','); i >= 0 {
		rest = rest[:i]
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(rest), 64)
	if err != nil {
		return 0
	}
	return d
}

// PickVariant scans a master playlist for the media playlist URI of the
// requested quality key. It returns the first variant whose URI contains
// the quality path element, or an empty string if none matches.
func PickVariant(masterText, quality string) string {
	needle := "/" + quality + "/"
	for _, line := range strings.Split(masterText, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if strings.Contains(trimmed, needle) {
			return trimmed
		}
	}
	return ""
}
