package webm

import (
	"context"
	"errors"
	"time"
)

// Info summarizes a payload.
type Info struct {
	Duration   time.Duration
	VideoCodec string
	AudioCodec string
	Frames     int
}

// HasVideo reports whether a video track is present.
func (i Info) HasVideo() bool { return i.VideoCodec != "" }

// HasAudio reports whether an audio track is present.
func (i Info) HasAudio() bool { return i.AudioCodec != "" }

// Inspect demuxes payload and summarizes it.
func Inspect(payload []byte) (Info, error) {
	stream, err := Decode(payload)
	if err != nil {
		return Info{}, err
	}
	info := Info{Duration: stream.Duration, Frames: len(stream.Frames)}
	if stream.Tracks.Video != nil {
		info.VideoCodec = stream.Tracks.Video.CodecID
	}
	if stream.Tracks.Audio != nil {
		info.AudioCodec = stream.Tracks.Audio.CodecID
	}
	return info, nil
}

// Prober measures payload durations in-process.
type Prober struct{}

// Probe returns the payload duration.
func (Prober) Probe(ctx context.Context, payload []byte) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	info, err := Inspect(payload)
	if err != nil {
		return 0, err
	}
	if info.Duration <= 0 {
		return 0, errors.New("webm payload has no measurable duration")
	}
	return info.Duration, nil
}
