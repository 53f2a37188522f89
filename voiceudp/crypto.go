package voiceudp

import (
	"errors"

	"golang.org/x/crypto/nacl/secretbox"
)

// ErrDecryptFailed is returned when an inbound packet fails secretbox
// authentication.
var ErrDecryptFailed = errors.New("voiceudp: secretbox authentication failed")

// encrypt authenticates and encrypts opus using the session secret
// key, with the nonce derived from the packet's RTP header. The
// output is ciphertext || 16-byte authentication tag.
func encrypt(opus []byte, header [rtpHeaderSize]byte, key *[32]byte) []byte {
	nonce := nonceFromHeader(header)
	return secretbox.Seal(nil, opus, nonce, key)
}

// decrypt reverses encrypt. Exposed for tests and for any future
// inbound-audio consumer; the transport itself never decrypts
// received datagrams, per spec.md §4.2 (inbound audio decode is out
// of scope).
func decrypt(sealed []byte, header [rtpHeaderSize]byte, key *[32]byte) ([]byte, error) {
	nonce := nonceFromHeader(header)
	opened, ok := secretbox.Open(nil, sealed, nonce, key)
	if !ok {
		return nil, ErrDecryptFailed
	}
	return opened, nil
}
