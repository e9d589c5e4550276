package infrastructure

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatChatVTT(t *testing.T) {
	messages := []ChatMessage{
		{OffsetSeconds: 0, Username: "alice", Text: "hello chat"},
		{OffsetSeconds: 3725, Username: "bob", Text: "PogChamp"},
	}

	vtt := FormatChatVTT(messages)

	require.True(t, strings.HasPrefix(vtt, "WEBVTT\n\n"))
	assert.Contains(t, vtt, "1\n00:00:00.000 --> 00:00:04.000\n<v alice>hello chat\n")
	assert.Contains(t, vtt, "2\n01:02:05.000 --> 01:02:09.000\n<v bob>PogChamp\n")
}

func TestFormatChatVTT_Empty(t *testing.T) {
	assert.Equal(t, "WEBVTT\n\n", FormatChatVTT(nil))
}

func TestChatFilename(t *testing.T) {
	assert.Equal(t, "vod123.vtt", ChatFilename("vod123.ts"))
	assert.Equal(t, "vod123.vtt", ChatFilename("vod123.mp4"))
	assert.Equal(t, "weird.bin.vtt", ChatFilename("weird.bin"))
}
