package codec_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucidwire/discordvoice/codec"
	"github.com/lucidwire/discordvoice/pkg/audio"
)

func TestPipeline_SilenceFlushOnEmptySource(t *testing.T) {
	p, err := codec.NewPipeline()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var frames [][]byte
	for r := range p.Frames(ctx, bytes.NewReader(nil)) {
		require.NoError(t, r.Err)
		frames = append(frames, r.Frame)
	}

	require.Len(t, frames, codec.SilenceFlushCount)
	for _, f := range frames {
		assert.Equal(t, []byte{0xF8, 0xFF, 0xFE}, f)
	}
}

func TestPipeline_EncodesWholeFramesAndDiscardsShortTail(t *testing.T) {
	p, err := codec.NewPipeline()
	require.NoError(t, err)

	// Two full frames plus a short trailing chunk that must be discarded.
	pcm := make([]byte, audio.FrameBytes*2+17)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var encoded int
	var sawSilence bool
	for r := range p.Frames(ctx, bytes.NewReader(pcm)) {
		require.NoError(t, r.Err)
		if bytes.Equal(r.Frame, []byte{0xF8, 0xFF, 0xFE}) {
			sawSilence = true
			continue
		}
		assert.LessOrEqual(t, len(r.Frame), 1276)
		encoded++
	}

	assert.Equal(t, 2, encoded)
	assert.True(t, sawSilence)
}

func TestPipeline_CancelledContextStopsStream(t *testing.T) {
	p, err := codec.NewPipeline()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var count int
	for range p.Frames(ctx, bytes.NewReader(make([]byte, audio.FrameBytes*100))) {
		count++
	}

	// A cancelled context may still let the in-flight send through, but
	// must not allow the stream to run to completion.
	assert.Less(t, count, 100)
}
