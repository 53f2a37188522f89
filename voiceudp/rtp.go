package voiceudp

import "encoding/binary"

const (
	rtpHeaderSize = 12
	rtpVersion    = 0x80
	rtpType       = 0x78

	// samplesPerFrame is the RTP timestamp increment per 20 ms frame
	// at 48 kHz.
	samplesPerFrame = 960
)

// rtpHeader is the 12-byte RTP header Discord's voice servers expect:
// version/type bytes, a big-endian sequence number, a big-endian
// timestamp, and a big-endian SSRC.
type rtpHeader struct {
	Sequence  uint16
	Timestamp uint32
	SSRC      uint32
}

func (h rtpHeader) encode() [rtpHeaderSize]byte {
	var b [rtpHeaderSize]byte
	b[0] = rtpVersion
	b[1] = rtpType
	binary.BigEndian.PutUint16(b[2:4], h.Sequence)
	binary.BigEndian.PutUint32(b[4:8], h.Timestamp)
	binary.BigEndian.PutUint32(b[8:12], h.SSRC)
	return b
}

// nonceFromHeader right-pads the 12-byte RTP header with zeros to
// produce the 24-byte secretbox nonce, per spec.md §4.2.5.
func nonceFromHeader(header [rtpHeaderSize]byte) *[24]byte {
	var nonce [24]byte
	copy(nonce[:], header[:])
	return &nonce
}

// next advances the header to the following frame's sequence/timestamp.
func (h rtpHeader) next() rtpHeader {
	return rtpHeader{
		Sequence:  h.Sequence + 1,
		Timestamp: h.Timestamp + samplesPerFrame,
		SSRC:      h.SSRC,
	}
}
