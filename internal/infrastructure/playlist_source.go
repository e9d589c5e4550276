package infrastructure

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
)

// PlaylistSource resolves a VOD's master playlist by requesting it from
// the usher origin. The client it holds carries the interception
// transport, so a permitted VOD yields the origin playlist and a denied
// one is transparently answered with a synthesized manifest.
type PlaylistSource struct {
	client    *http.Client
	usherBase string
	log       *zap.Logger
}

// NewPlaylistSource creates a playlist source over the shared client
func NewPlaylistSource(client *http.Client, usherBase string, log *zap.Logger) *PlaylistSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &PlaylistSource{
		client:    client,
		usherBase: usherBase,
		log:       log,
	}
}

// MasterURL returns the usher playlist URL for the VOD
func (p *PlaylistSource) MasterURL(vodID string) string {
	return fmt.Sprintf("%s%s.m3u8?allow_source=true&allow_audio_only=true", p.usherBase, vodID)
}

// Master fetches the master playlist for the VOD
func (p *PlaylistSource) Master(ctx context.Context, vodID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.MasterURL(vodID), nil)
	if err != nil {
		return "", err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching master playlist for vod %s: %w", vodID, err)
	}
	defer resp.Body.Close()

	// A denial only surfaces here when interception is not installed
	// or synthesis itself failed.
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("usher returned HTTP %d for vod %s", resp.StatusCode, vodID)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading master playlist for vod %s: %w", vodID, err)
	}

	if p.log != nil {
		p.log.Debug("master playlist resolved",
			zap.String("vod_id", vodID),
			zap.Int("bytes", len(body)))
	}
	return string(body), nil
}
