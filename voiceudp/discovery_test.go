package voiceudp

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDiscoveryPacket(t *testing.T) {
	pkt := buildDiscoveryPacket(12345)
	require.Len(t, pkt, discoveryPacketLen)
	assert.Equal(t, uint16(discoveryType), binary.BigEndian.Uint16(pkt[0:2]))
	assert.Equal(t, uint16(discoveryLen), binary.BigEndian.Uint16(pkt[2:4]))
	assert.Equal(t, uint32(12345), binary.BigEndian.Uint32(pkt[4:8]))
}

func TestParseDiscoveryReply(t *testing.T) {
	pkt := buildDiscoveryPacket(42)
	copy(pkt[8:], []byte("1.2.3.4"))
	binary.LittleEndian.PutUint16(pkt[discoveryPacketLen-2:], 5555)

	result, err := parseDiscoveryReply(pkt)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), result.SSRC)
	assert.Equal(t, "1.2.3.4", result.IP)
	assert.Equal(t, uint16(5555), result.Port)
}

func TestParseDiscoveryReply_WrongLength(t *testing.T) {
	_, err := parseDiscoveryReply(make([]byte, 10))
	assert.Error(t, err)
}

func TestLooksLikeDiscoveryReply(t *testing.T) {
	assert.True(t, looksLikeDiscoveryReply(make([]byte, discoveryPacketLen)))
	assert.False(t, looksLikeDiscoveryReply(make([]byte, discoveryPacketLen+1)))
}
