package infrastructure

import (
	"fmt"
	"strings"
)

// chatCueDuration is how long each chat message stays on screen
const chatCueDuration = 4

// FormatChatVTT renders chat messages as a WebVTT subtitle track so the
// replay can be loaded alongside the downloaded video.
func FormatChatVTT(messages []ChatMessage) string {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")

	for i, msg := range messages {
		fmt.Fprintf(&b, "%d\n", i+1)
		fmt.Fprintf(&b, "%s --> %s\n", vttTimestamp(msg.OffsetSeconds), vttTimestamp(msg.OffsetSeconds+chatCueDuration))
		fmt.Fprintf(&b, "<v %s>%s\n\n", msg.Username, msg.Text)
	}
	return b.String()
}

func vttTimestamp(seconds int) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d.000", h, m, s)
}

// ChatFilename derives the subtitle filename from the video filename
func ChatFilename(videoFilename string) string {
	for _, ext := range []string{".ts", ".mp4"} {
		if strings.HasSuffix(videoFilename, ext) {
			return strings.TrimSuffix(videoFilename, ext) + ".vtt"
		}
	}
	return videoFilename + ".vtt"
}
