package voice

import (
	"errors"

	"github.com/lucidwire/discordvoice/voicegateway"
)

// ErrInvalidPayloadOrder re-exports voicegateway's handshake-ordering
// sentinel so callers of Manager can check the full voice error
// taxonomy without importing the low-level transport package
// themselves.
var ErrInvalidPayloadOrder = voicegateway.ErrInvalidPayloadOrder

// ErrNotAvailable is returned by Join when the parent gateway does not
// deliver both the Voice Server and Voice State Update events within
// JoinTimeout, or when the voice session does not become usable (ssrc
// assigned, UDP transport launched) within HandshakeTimeout.
var ErrNotAvailable = errors.New("voice: session did not become available before the join timeout")

// ErrNoServer is returned when Discord reports no voice server
// endpoint for the guild being joined.
var ErrNoServer = errors.New("voice: no voice server is available for this guild")

// ErrNotJoined is returned by operations that require an active
// session in a guild that has none.
var ErrNotJoined = errors.New("voice: guild has no active voice session")

// ErrAlreadyJoined is returned by Join when the coordinator already
// holds a session for the guild.
var ErrAlreadyJoined = errors.New("voice: already connected to a voice channel in this guild")
