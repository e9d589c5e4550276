package hls

const (
	// tsPacketSize is the fixed MPEG-TS packet length.
	tsPacketSize = 188

	// nullPacketCount is the number of null packets in a placeholder
	// segment. Small on purpose: the placeholder preserves positional
	// continuity, not duration.
	nullPacketCount = 10
)

// NullSegment returns a minimal MPEG-TS placeholder used in place of a
// permanently missing segment. It consists of null-PID packets (sync
// byte 0x47, PID 0x1FFF) so the overall segment count and coarse timing
// alignment of the output survive copyright-blocked gaps.
func NullSegment() []byte {
	buf := make([]byte, tsPacketSize*nullPacketCount)
	for i := 0; i < nullPacketCount; i++ {
		off := i * tsPacketSize
		buf[off] = 0x47   // sync byte
		buf[off+1] = 0x1F // PID high bits (null PID 0x1FFF)
		buf[off+2] = 0xFF // PID low byte
		buf[off+3] = 0x10 // adaptation field control: payload only
	}
	return buf
}
