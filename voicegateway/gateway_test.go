package voicegateway

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func mustMarshal(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func TestRaceHelloReady_EitherOrder(t *testing.T) {
	g := &Gateway{logger: zap.NewNop()}

	frameCh := make(chan frameMsg, 2)
	frameCh <- frameMsg{Op: opReady, Data: mustMarshal(t, readyData{SSRC: 12345, IP: "1.2.3.4", Port: 4000})}
	frameCh <- frameMsg{Op: opHello, Data: mustMarshal(t, helloData{HeartbeatInterval: 500})}

	hello, ready, err := g.raceHelloReady(context.Background(), frameCh)
	require.NoError(t, err)
	assert.Equal(t, float64(500), hello.HeartbeatInterval)
	assert.Equal(t, uint32(12345), ready.SSRC)
}

func TestRaceHelloReady_TimesOut(t *testing.T) {
	g := &Gateway{logger: zap.NewNop()}
	frameCh := make(chan frameMsg)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, _, err := g.raceHelloReady(ctx, frameCh)
	assert.Equal(t, ErrHandshakeTimeout, err)
}

func TestRaceHelloResumed(t *testing.T) {
	g := &Gateway{logger: zap.NewNop()}
	frameCh := make(chan frameMsg, 2)
	frameCh <- frameMsg{Op: opResumed}
	frameCh <- frameMsg{Op: opHello, Data: mustMarshal(t, helloData{HeartbeatInterval: 250})}

	hello, err := g.raceHelloResumed(context.Background(), frameCh)
	require.NoError(t, err)
	assert.Equal(t, float64(250), hello.HeartbeatInterval)
}

func TestAwaitSessionDescription_SkipsUnrelatedFrames(t *testing.T) {
	g := &Gateway{logger: zap.NewNop()}
	frameCh := make(chan frameMsg, 2)
	frameCh <- frameMsg{Op: opSpeaking, Data: mustMarshal(t, speakingData{SSRC: 1})}

	var key [32]byte
	key[0] = 9
	frameCh <- frameMsg{Op: opSessionDescription, Data: mustMarshal(t, sessionDescriptionData{Mode: encryptionMode, SecretKey: key})}

	sd, err := g.awaitSessionDescription(context.Background(), frameCh)
	require.NoError(t, err)
	assert.Equal(t, key, sd.SecretKey)
}

func TestDispatch_HandlesHeartbeatAck(t *testing.T) {
	g := &Gateway{logger: zap.NewNop()}
	heartbeatCh := make(chan outboundFrame, 1)

	handled := g.dispatch(context.Background(), frameMsg{Op: opHeartbeatAck}, heartbeatCh)
	assert.True(t, handled)
}

func TestDispatch_EchoesServerHeartbeat(t *testing.T) {
	g := &Gateway{logger: zap.NewNop()}
	heartbeatCh := make(chan outboundFrame, 1)

	handled := g.dispatch(context.Background(), frameMsg{Op: opHeartbeat, Data: mustMarshal(t, 7)}, heartbeatCh)
	assert.True(t, handled)

	select {
	case frame := <-heartbeatCh:
		assert.Equal(t, opHeartbeatAck, frame.op)
	default:
		t.Fatal("expected heartbeat echo to be queued")
	}
}

func TestDispatch_ForwardsUnknownOpcodes(t *testing.T) {
	g := &Gateway{logger: zap.NewNop()}
	handled := g.dispatch(context.Background(), frameMsg{Op: opSpeaking}, make(chan outboundFrame, 1))
	assert.False(t, handled)
}

func TestVoiceWebsocketURL_ParsesExplicitPort(t *testing.T) {
	assert.Equal(t, "wss://voice.discord.gg:5555?v=4", voiceWebsocketURL("voice.discord.gg:5555"))
}

func TestVoiceWebsocketURL_DefaultsToPort443(t *testing.T) {
	assert.Equal(t, "wss://voice.discord.gg:443?v=4", voiceWebsocketURL("voice.discord.gg"))
}

func TestCloseCodeToState(t *testing.T) {
	logger := zap.NewNop()

	cases := []struct {
		code int
		want state
	}{
		{1000, stateClosed},
		{4001, stateClosed},
		{4014, stateStart},
		{4015, stateResume},
		{4006, stateClosed},
	}

	for _, tc := range cases {
		got := closeCodeToState(&websocket.CloseError{Code: tc.code}, logger)
		assert.Equal(t, tc.want, got, "code %d", tc.code)
	}
}

func TestCloseCodeToState_NonCloseErrorResumes(t *testing.T) {
	got := closeCodeToState(assert.AnError, zap.NewNop())
	assert.Equal(t, stateResume, got)
}

func TestSpeaking_BuildsOutboundMessage(t *testing.T) {
	msg := Speaking(999, SpeakingMicrophone)
	assert.Equal(t, opSpeaking, msg.Op)
	data, ok := msg.Data.(speakingData)
	require.True(t, ok)
	assert.Equal(t, uint32(999), data.SSRC)
	assert.Equal(t, int(SpeakingMicrophone), data.Speaking)
}
