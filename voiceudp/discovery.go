package voiceudp

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	discoveryPacketLen = 74
	discoveryType      = 0x0001
	discoveryLen       = 0x0046
)

// IPDiscoveryResult is the outcome of the one-shot IP discovery
// exchange, posted to the transport's inbound channel.
type IPDiscoveryResult struct {
	SSRC uint32
	IP   string
	Port uint16
}

// buildDiscoveryPacket constructs the 74-byte IP discovery request:
// a 2-byte type, 2-byte length, the session SSRC, and 66 bytes of
// zero-padding reserved for the address/port fields in the reply.
func buildDiscoveryPacket(ssrc uint32) []byte {
	buf := make([]byte, discoveryPacketLen)
	binary.BigEndian.PutUint16(buf[0:2], discoveryType)
	binary.BigEndian.PutUint16(buf[2:4], discoveryLen)
	binary.BigEndian.PutUint32(buf[4:8], ssrc)
	return buf
}

// parseDiscoveryReply parses a discovery response packet: the
// external IP as a null-terminated ASCII string starting at byte 8,
// and the port as a little-endian uint16 in the final two bytes.
func parseDiscoveryReply(pkt []byte) (IPDiscoveryResult, error) {
	if len(pkt) != discoveryPacketLen {
		return IPDiscoveryResult{}, fmt.Errorf("voiceudp: discovery reply has length %d, want %d", len(pkt), discoveryPacketLen)
	}

	ssrc := binary.BigEndian.Uint32(pkt[4:8])

	addrBytes := pkt[8 : discoveryPacketLen-2]
	nullIdx := bytes.IndexByte(addrBytes, 0)
	if nullIdx < 0 {
		nullIdx = len(addrBytes)
	}
	ip := string(addrBytes[:nullIdx])

	port := binary.LittleEndian.Uint16(pkt[discoveryPacketLen-2:])

	return IPDiscoveryResult{SSRC: ssrc, IP: ip, Port: port}, nil
}

// looksLikeDiscoveryReply distinguishes an IP-discovery response from
// any other datagram the socket might receive, by size alone — this
// library does not decode inbound RTP audio.
func looksLikeDiscoveryReply(pkt []byte) bool {
	return len(pkt) == discoveryPacketLen
}
