package webm

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/at-wat/ebml-go"
	"github.com/at-wat/ebml-go/webm"
)

// Matroska track types.
const (
	trackTypeVideo = 1
	trackTypeAudio = 2
)

const defaultTimecodeScale = 1_000_000

// ErrNoTracks is returned when a payload has no audio or video track.
var ErrNoTracks = errors.New("webm payload has no audio or video track")

// Kind identifies a frame's track.
type Kind int

const (
	KindVideo Kind = iota
	KindAudio
)

func (k Kind) String() string {
	if k == KindAudio {
		return "audio"
	}
	return "video"
}

// Frame is one demuxed block.
type Frame struct {
	Kind      Kind
	Timestamp time.Duration
	Keyframe  bool
	Data      []byte
}

// Tracks holds the first video and audio track entries of a stream.
type Tracks struct {
	Video *webm.TrackEntry
	Audio *webm.TrackEntry
}

// Entries returns the present tracks renumbered from 1, video first.
func (t Tracks) Entries() []webm.TrackEntry {
	var out []webm.TrackEntry
	for _, src := range []*webm.TrackEntry{t.Video, t.Audio} {
		if src == nil {
			continue
		}
		entry := *src
		entry.TrackNumber = uint64(len(out) + 1)
		entry.TrackUID = entry.TrackNumber
		out = append(out, entry)
	}
	return out
}

type container struct {
	Header  webm.EBMLHeader `ebml:"EBML"`
	Segment webm.Segment    `ebml:"Segment"`
}

// Stream is a demuxed payload.
type Stream struct {
	Tracks   Tracks
	Frames   []Frame
	Duration time.Duration
}

// Decode demuxes a WebM payload. Truncated input, as produced by a recorder
// stopped mid-cluster, yields the frames decoded before the cut.
func Decode(payload []byte) (*Stream, error) {
	var doc container
	err := ebml.Unmarshal(bytes.NewReader(payload), &doc, ebml.WithIgnoreUnknown(true))
	if err != nil && !(errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)) {
		return nil, fmt.Errorf("decode webm: %w", err)
	}
	if err != nil && len(doc.Segment.Cluster) == 0 {
		return nil, fmt.Errorf("decode webm: %w", err)
	}

	scale := doc.Segment.Info.TimecodeScale
	if scale == 0 {
		scale = defaultTimecodeScale
	}

	stream := &Stream{}
	kinds := make(map[uint64]Kind)
	for i := range doc.Segment.Tracks.TrackEntry {
		entry := doc.Segment.Tracks.TrackEntry[i]
		switch entry.TrackType {
		case trackTypeVideo:
			if stream.Tracks.Video == nil {
				stream.Tracks.Video = &entry
				kinds[entry.TrackNumber] = KindVideo
			}
		case trackTypeAudio:
			if stream.Tracks.Audio == nil {
				stream.Tracks.Audio = &entry
				kinds[entry.TrackNumber] = KindAudio
			}
		}
	}
	if stream.Tracks.Video == nil && stream.Tracks.Audio == nil {
		return nil, ErrNoTracks
	}

	stamp := func(cluster uint64, rel int16) time.Duration {
		units := int64(cluster) + int64(rel)
		return time.Duration(units * int64(scale))
	}
	add := func(block ebml.Block, ts time.Duration, keyframe bool) {
		kind, ok := kinds[block.TrackNumber]
		if !ok {
			return
		}
		if kind == KindAudio {
			keyframe = true
		}
		for _, data := range block.Data {
			stream.Frames = append(stream.Frames, Frame{Kind: kind, Timestamp: ts, Keyframe: keyframe, Data: data})
		}
	}
	for _, cluster := range doc.Segment.Cluster {
		for _, block := range cluster.SimpleBlock {
			add(block, stamp(cluster.Timecode, block.Timecode), block.Keyframe)
		}
		// Block elements carry no keyframe flag; treat the first group of a
		// cluster as the random access point.
		for j, group := range cluster.BlockGroup {
			add(group.Block, stamp(cluster.Timecode, group.Block.Timecode), j == 0)
		}
	}
	sortFrames(stream.Frames)

	if d := doc.Segment.Info.Duration; d > 0 {
		stream.Duration = time.Duration(d * float64(scale))
	} else {
		stream.Duration = estimateDuration(stream.Tracks, stream.Frames)
	}
	return stream, nil
}

// estimateDuration is the last frame end, using the track default duration or
// the last observed frame spacing.
func estimateDuration(tracks Tracks, frames []Frame) time.Duration {
	var end time.Duration
	for _, kind := range []Kind{KindVideo, KindAudio} {
		var last, prev time.Duration
		seen := 0
		for _, f := range frames {
			if f.Kind != kind {
				continue
			}
			if seen > 0 && f.Timestamp > last {
				prev = last
			}
			last = f.Timestamp
			seen++
		}
		if seen == 0 {
			continue
		}
		frameLen := last - prev
		if seen == 1 {
			frameLen = 0
		}
		if entry := tracks.entry(kind); entry != nil && entry.DefaultDuration > 0 {
			frameLen = time.Duration(entry.DefaultDuration)
		}
		if candidate := last + frameLen; candidate > end {
			end = candidate
		}
	}
	return end
}

func (t Tracks) entry(kind Kind) *webm.TrackEntry {
	if kind == KindAudio {
		return t.Audio
	}
	return t.Video
}

func sortFrames(frames []Frame) {
	sort.SliceStable(frames, func(i, j int) bool { return frames[i].Timestamp < frames[j].Timestamp })
}
