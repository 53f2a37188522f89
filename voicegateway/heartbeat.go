package voicegateway

import (
	"context"
	"time"

	"github.com/lucidwire/discordvoice/pkg/util"
)

// senderPaceInterval is the minimum spacing between consecutive
// websocket writes spec.md §4.3/§5 calls for.
const senderPaceInterval = 516 * time.Millisecond

// outboundFrame is a payload queued for the sender goroutine to write.
type outboundFrame struct {
	op   int
	data any
}

// heartbeatGenerator queues a Heartbeat frame every interval, carrying
// the current epoch second as its nonce per spec.md §6, until ctx is
// cancelled. It waits 1s before the first heartbeat rather than a
// full interval, per spec.md §4.3's documented warmup.
func (g *Gateway) heartbeatGenerator(ctx context.Context, interval time.Duration, heartbeatCh chan<- outboundFrame) {
	send := func() bool {
		select {
		case heartbeatCh <- outboundFrame{op: opHeartbeat, data: time.Now().Unix()}:
			return true
		case <-ctx.Done():
			return false
		}
	}

	select {
	case <-time.After(time.Second):
	case <-ctx.Done():
		return
	}
	if !send() {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !send() {
				return
			}
		}
	}
}

// sender is the single goroutine that owns every write to the
// websocket connection for one event-loop lifetime. gorilla/websocket
// forbids concurrent writers, so heartbeats, heartbeat-ack echoes, and
// user-originated frames (Speaking updates) all funnel through here
// instead of calling g.send directly, and every write is paced at
// least senderPaceInterval apart, preferring the heartbeat queue over
// the user queue when both have a frame ready.
func (g *Gateway) sender(ctx context.Context, heartbeatCh <-chan outboundFrame, errCh chan<- error) {
	var lastSend time.Time

	for {
		var frame outboundFrame
		select {
		case <-ctx.Done():
			return
		case frame = <-heartbeatCh:
		default:
			select {
			case <-ctx.Done():
				return
			case frame = <-heartbeatCh:
			case msg, ok := <-g.outbound:
				if !ok {
					return
				}
				frame = outboundFrame{op: msg.Op, data: msg.Data}
			}
		}

		if wait := senderPaceInterval - time.Since(lastSend); wait > 0 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return
			}
		}
		lastSend = time.Now()

		if err := g.send(frame.op, frame.data); err != nil {
			select {
			case errCh <- err:
			case <-ctx.Done():
			}
			return
		}
	}
}

// receiveWatchdog forces a reconnect if no frame is read from the
// connection within 2x the heartbeat interval, built on
// pkg/util.Debouncer. This is the general half-open-TCP defense
// spec.md §4.3 describes: it is reset on every frame the event loop
// receives, not only HeartbeatAcks, since any traffic at all is proof
// the connection is alive.
func receiveWatchdog(ctx context.Context, interval time.Duration, resetCh <-chan struct{}, timeoutCh chan<- struct{}) {
	d := util.NewDebouncer(2 * interval)
	defer d.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-resetCh:
			d.Reset()
		case <-d.C():
			select {
			case timeoutCh <- struct{}{}:
			case <-ctx.Done():
			}
			return
		}
	}
}

func (g *Gateway) logHeartbeatTimeout() {
	g.logger.Warn("voicegateway: no frame received within budget, forcing reconnect")
}
