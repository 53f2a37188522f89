// Package audio holds the PCM format constants and byte-level helpers
// used by the codec pipeline.
package audio

// Format constants for the PCM stream accepted by the codec pipeline.
const (
	SampleRate = 48_000 // Hz
	Channels   = 2      // interleaved stereo
	FrameMS    = 20     // frame duration

	// FrameSamples is samples per channel per 20 ms frame at 48 kHz.
	FrameSamples = SampleRate * FrameMS / 1000 // 960

	// FrameBytes is the exact byte length of one 20 ms frame of
	// 16-bit little-endian interleaved stereo PCM.
	FrameBytes = FrameSamples * Channels * 2 // 3840
)
