package app

import (
	"fmt"
	"io"

	"github.com/yourusername/twitch-vod-go/internal/domain"
	"github.com/yourusername/twitch-vod-go/internal/hls"
)

// Reassembler concatenates stored segments into the output file in
// strict index order. Segments that never arrived (copyright-blocked or
// given up after retries) are replaced with a short run of MPEG-TS null
// packets so the timeline stays intact for players.
type Reassembler struct {
	store domain.SegmentStore
}

func NewReassembler(store domain.SegmentStore) *Reassembler {
	return &Reassembler{store: store}
}

// ReassembleResult summarizes one reassembly pass
type ReassembleResult struct {
	Written      int64
	Placeholders int
}

// WriteTo streams segments 0..total-1 of the download to w
func (r *Reassembler) WriteTo(w io.Writer, downloadID string, total int) (ReassembleResult, error) {
	var res ReassembleResult
	for i := 0; i < total; i++ {
		data, err := r.store.Get(downloadID, i)
		if err != nil {
			return res, fmt.Errorf("reading segment %d: %w", i, err)
		}
		if data == nil {
			data = hls.NullSegment()
			res.Placeholders++
		}
		n, err := w.Write(data)
		res.Written += int64(n)
		if err != nil {
			return res, fmt.Errorf("writing segment %d: %w", i, err)
		}
	}
	return res, nil
}
