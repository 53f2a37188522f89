// Package codec converts raw 16-bit little-endian stereo 48 kHz PCM
// into 20 ms Opus frames suitable for RTP framing by the UDP
// transport.
package codec

import (
	"context"
	"errors"
	"fmt"
	"io"

	"layeh.com/gopus"

	"github.com/lucidwire/discordvoice/pkg/audio"
)

// maxOpusFrameBytes bounds a single encoded Opus frame, per the
// Discord voice wire format.
const maxOpusFrameBytes = 1276

// Pipeline re-chunks a PCM byte stream into fixed 20 ms frames and
// Opus-encodes each one. A Pipeline is not safe for concurrent use by
// multiple readers, but a single Frames call may run while the
// Pipeline is reused for the next source once that call's channel is
// drained and closed.
type Pipeline struct {
	encoder *gopus.Encoder
}

// NewPipeline creates an Opus encoder configured for 48 kHz stereo
// audio application, matching spec.md's codec configuration.
func NewPipeline() (*Pipeline, error) {
	enc, err := gopus.NewEncoder(audio.SampleRate, audio.Channels, gopus.Audio)
	if err != nil {
		return nil, fmt.Errorf("codec: create opus encoder: %w", err)
	}

	return &Pipeline{encoder: enc}, nil
}

// Result is one element of a Frames stream: either an encoded Opus
// frame or a terminal error.
type Result struct {
	Frame []byte
	Err   error
}

// Frames drains r in exact audio.FrameBytes chunks, Opus-encoding
// each into an independent Result. A final chunk shorter than
// audio.FrameBytes is discarded. On clean EOF, Frames appends
// SilenceFlushCount copies of the canonical silence frame before
// closing the returned channel. The channel is also closed (with no
// further sends) if ctx is cancelled mid-stream.
func (p *Pipeline) Frames(ctx context.Context, r io.Reader) <-chan Result {
	out := make(chan Result)

	go func() {
		defer close(out)

		buf := make([]byte, audio.FrameBytes)
		for {
			_, err := io.ReadFull(r, buf)
			if err == nil {
				frame, encErr := p.encode(buf)
				if encErr != nil {
					sendResult(ctx, out, Result{Err: encErr})
					return
				}
				if !sendResult(ctx, out, Result{Frame: frame}) {
					return
				}
				continue
			}

			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}

			sendResult(ctx, out, Result{Err: fmt.Errorf("codec: read pcm: %w", err)})
			return
		}

		for i := 0; i < SilenceFlushCount; i++ {
			if !sendResult(ctx, out, Result{Frame: silenceFrame}) {
				return
			}
		}
	}()

	return out
}

func (p *Pipeline) encode(pcm []byte) ([]byte, error) {
	samples := audio.LEToPCMInt16(pcm)

	frame, err := p.encoder.Encode(samples, audio.FrameSamples, maxOpusFrameBytes)
	if err != nil {
		return nil, fmt.Errorf("codec: opus encode: %w", err)
	}

	return frame, nil
}

func sendResult(ctx context.Context, out chan<- Result, r Result) bool {
	select {
	case out <- r:
		return true
	case <-ctx.Done():
		return false
	}
}
