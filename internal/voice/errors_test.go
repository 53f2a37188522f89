package voice

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lucidwire/discordvoice/voicegateway"
)

func TestErrInvalidPayloadOrder_MatchesGatewaySentinel(t *testing.T) {
	assert.True(t, errors.Is(ErrInvalidPayloadOrder, voicegateway.ErrInvalidPayloadOrder))
}
