package codec

// silenceFrame is the canonical Opus silence frame. Sending ten
// copies of it on stream end flushes jitter buffers on the receiving
// end, matching the behaviour of reference Discord voice clients.
var silenceFrame = []byte{0xF8, 0xFF, 0xFE}

// SilenceFlushCount is the number of silence frames emitted after the
// PCM source is exhausted.
const SilenceFlushCount = 10
