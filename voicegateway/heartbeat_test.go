package voicegateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReceiveWatchdog_ResetsOnAnyFrame(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	resetCh := make(chan struct{}, 1)
	timeoutCh := make(chan struct{}, 1)

	go receiveWatchdog(ctx, 20*time.Millisecond, resetCh, timeoutCh)

	resetCh <- struct{}{}
	select {
	case <-timeoutCh:
		t.Fatal("watchdog fired despite a fresh frame")
	case <-time.After(30 * time.Millisecond):
	}
}

func TestReceiveWatchdog_FiresWithoutFrames(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	resetCh := make(chan struct{}, 1)
	timeoutCh := make(chan struct{}, 1)

	go receiveWatchdog(ctx, 10*time.Millisecond, resetCh, timeoutCh)

	select {
	case <-timeoutCh:
	case <-ctx.Done():
		t.Fatal("watchdog never fired")
	}
}

func TestHeartbeatGenerator_StopsOnCancel(t *testing.T) {
	g := &Gateway{}
	ctx, cancel := context.WithCancel(context.Background())

	heartbeatCh := make(chan outboundFrame, 1)
	done := make(chan struct{})
	go func() {
		g.heartbeatGenerator(ctx, time.Hour, heartbeatCh)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(50 * time.Millisecond):
		t.Fatal("heartbeatGenerator did not exit after cancel")
	}
	assert.Empty(t, heartbeatCh)
}

func TestHeartbeatGenerator_QueuesEpochNonceAfterWarmup(t *testing.T) {
	g := &Gateway{}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	heartbeatCh := make(chan outboundFrame, 1)

	start := time.Now()
	go g.heartbeatGenerator(ctx, time.Hour, heartbeatCh)

	select {
	case frame := <-heartbeatCh:
		elapsed := time.Since(start)
		assert.GreaterOrEqual(t, elapsed, 950*time.Millisecond, "heartbeat should wait out the 1s warmup")
		assert.Equal(t, opHeartbeat, frame.op)
		nonce, ok := frame.data.(int64)
		require.True(t, ok)
		assert.InDelta(t, time.Now().Unix(), nonce, 2)
	case <-ctx.Done():
		t.Fatal("heartbeatGenerator never queued a heartbeat")
	}
}

// newTestWSPair spins up a real websocket server and dials it, so the
// sender goroutine exercises an actual single-writer gorilla/websocket
// connection rather than a test seam.
func newTestWSPair(t *testing.T) (*websocket.Conn, <-chan payload) {
	t.Helper()

	received := make(chan payload, 16)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var p payload
			require.NoError(t, json.Unmarshal(raw, &p))
			received <- p
		}
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + srv.URL[len("http"):]
	clientConn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { clientConn.Close() })

	return clientConn, received
}

func TestSender_PrefersHeartbeatQueueOverUserQueue(t *testing.T) {
	conn, received := newTestWSPair(t)
	g := &Gateway{conn: conn, outbound: make(chan OutboundMessage, 4)}

	heartbeatCh := make(chan outboundFrame, 1)
	errCh := make(chan error, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g.outbound <- OutboundMessage{Op: opSpeaking}
	heartbeatCh <- outboundFrame{op: opHeartbeat}

	go g.sender(ctx, heartbeatCh, errCh)

	select {
	case p := <-received:
		assert.Equal(t, opHeartbeat, p.Op, "heartbeat queue must be preferred over the user queue")
	case <-time.After(time.Second):
		t.Fatal("sender never wrote a frame")
	}
}

func TestSender_PacesConsecutiveWrites(t *testing.T) {
	conn, received := newTestWSPair(t)
	g := &Gateway{conn: conn, outbound: make(chan OutboundMessage, 4)}

	heartbeatCh := make(chan outboundFrame, 4)
	errCh := make(chan error, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	heartbeatCh <- outboundFrame{op: opSpeaking}
	heartbeatCh <- outboundFrame{op: opSpeaking}

	go g.sender(ctx, heartbeatCh, errCh)

	start := time.Now()
	<-received
	<-received
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, senderPaceInterval, "consecutive writes must be paced at least senderPaceInterval apart")
}
