// Package intercept provides the stream interception capability: an
// installable http.RoundTripper that watches VOD playlist traffic and,
// when the origin denies access, substitutes a synthesized manifest.
package intercept

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Synthesizer produces a replacement master playlist for a denied VOD
type Synthesizer interface {
	Synthesize(ctx context.Context, vodID string) (string, error)
}

const playlistContentType = "application/vnd.apple.mpegurl"

// Transport wraps an http.RoundTripper with the VOD-unlock rules. The
// original transport is captured as a private dependency; Install and
// Uninstall manage its attachment to a client and are idempotent.
type Transport struct {
	mu        sync.Mutex
	base      http.RoundTripper
	synth     Synthesizer
	usherBase string
	log       *zap.Logger

	client    *http.Client
	original  http.RoundTripper
	installed bool
}

// New creates a Transport over base. A nil base uses the default transport.
func New(base http.RoundTripper, synth Synthesizer, usherBase string, log *zap.Logger) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{
		base:      base,
		synth:     synth,
		usherBase: usherBase,
		log:       log,
	}
}

// Install attaches the transport to the client, capturing the client's
// current transport as the pass-through target. Re-installing while
// installed is a no-op, so repeated enable/disable cycles cannot stack
// overrides or leak the original transport.
func (t *Transport) Install(client *http.Client) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.installed {
		return
	}
	t.client = client
	t.original = client.Transport
	if t.original == nil {
		t.original = http.DefaultTransport
	}
	t.base = t.original
	client.Transport = t
	t.installed = true
}

// Uninstall restores the client's original transport
func (t *Transport) Uninstall() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.installed {
		return
	}
	t.client.Transport = t.original
	t.client = nil
	t.installed = false
}

// Installed reports whether the override is currently attached
func (t *Transport) Installed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.installed
}

// RoundTrip applies the interception rules:
//   - usher VOD playlist requests answered with a non-success status are
//     replaced by the synthesized manifest;
//   - CDN edge playlists get the "-unmuted" → "-muted" substitution;
//   - anything else passes through unmodified.
//
// If synthesis fails, the original (denied) response is returned rather
// than an error: degraded playback beats a hard failure.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return resp, err
	}

	rawURL := req.URL.String()

	if strings.Contains(req.URL.Host, "cloudfront") && strings.Contains(rawURL, ".m3u8") {
		return t.rewriteMuted(req, resp)
	}

	if strings.HasPrefix(rawURL, t.usherBase) && (resp.StatusCode < 200 || resp.StatusCode > 299) {
		return t.serveSynthesized(req, resp)
	}

	return resp, nil
}

// rewriteMuted applies the unconditional text substitution that avoids
// serving ad-replacement muted-audio artifacts under their "-unmuted"
// names. A read failure passes the response through untouched.
func (t *Transport) rewriteMuted(req *http.Request, resp *http.Response) (*http.Response, error) {
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("reading edge playlist: %w", err)
	}

	patched := strings.ReplaceAll(string(body), "-unmuted", "-muted")
	return textResponse(req, http.StatusOK, resp.Header.Get("Content-Type"), patched), nil
}

func (t *Transport) serveSynthesized(req *http.Request, resp *http.Response) (*http.Response, error) {
	vodID := vodIDFromUsherURL(req.URL.Path)
	if vodID == "" {
		return resp, nil
	}

	playlist, err := t.synth.Synthesize(req.Context(), vodID)
	if err != nil {
		if t.log != nil {
			t.log.Warn("manifest synthesis failed, passing origin response through",
				zap.String("vod_id", vodID),
				zap.Int("origin_status", resp.StatusCode),
				zap.Error(err))
		}
		return resp, nil
	}
	resp.Body.Close()

	if t.log != nil {
		t.log.Info("served synthesized manifest",
			zap.String("vod_id", vodID),
			zap.Int("origin_status", resp.StatusCode))
	}
	return textResponse(req, http.StatusOK, playlistContentType, playlist), nil
}

// vodIDFromUsherURL extracts the VOD id from a /vod/{id}.m3u8 path,
// keeping any version prefix for the synthesizer to strip.
func vodIDFromUsherURL(path string) string {
	const marker = "/vod/"
	i := strings.Index(path, marker)
	if i < 0 {
		return ""
	}
	rest := path[i+len(marker):]
	return strings.TrimSuffix(rest, ".m3u8")
}

func textResponse(req *http.Request, status int, contentType, body string) *http.Response {
	header := make(http.Header)
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", status, http.StatusText(status)),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}
