package voicegateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// frameMsg is one decoded websocket frame, or the terminal error that
// ended the read pump.
type frameMsg struct {
	Op   int
	Data json.RawMessage
	Err  error
}

// startReadPump spawns the single goroutine that owns conn.ReadMessage
// for the lifetime of one connection attempt. Every other method in
// this package that needs to observe inbound frames reads frameCh
// instead of touching the connection directly.
func (g *Gateway) startReadPump(conn *websocket.Conn) <-chan frameMsg {
	out := make(chan frameMsg, 16)
	go func() {
		defer close(out)
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				out <- frameMsg{Err: err}
				return
			}

			var p payload
			if err := json.Unmarshal(raw, &p); err != nil {
				out <- frameMsg{Err: fmt.Errorf("voicegateway: decode frame: %w", err)}
				return
			}
			out <- frameMsg{Op: p.Op, Data: p.Data}
		}
	}()
	return out
}

// raceHelloReady drives the Start handshake's Hello-vs-Ready race
// (spec.md §9): the two frames can arrive in either order and the
// handshake only proceeds once both are in hand.
func (g *Gateway) raceHelloReady(ctx context.Context, frameCh <-chan frameMsg) (helloData, readyData, error) {
	race := newTwoSlotRace[helloData, readyData]()

	for {
		select {
		case <-race.Done():
			return race.Wait(ctx)
		case msg, ok := <-frameCh:
			if !ok || msg.Err != nil {
				return helloData{}, readyData{}, readErrToHandshakeErr(msg.Err, ok)
			}
			switch msg.Op {
			case opHello:
				var h helloData
				if err := json.Unmarshal(msg.Data, &h); err != nil {
					return helloData{}, readyData{}, err
				}
				race.SetA(h)
			case opReady:
				var r readyData
				if err := json.Unmarshal(msg.Data, &r); err != nil {
					return helloData{}, readyData{}, err
				}
				race.SetB(r)
			}
		case <-ctx.Done():
			return helloData{}, readyData{}, ErrHandshakeTimeout
		}
	}
}

// raceHelloResumed drives the Resume handshake's Hello-vs-Resumed
// race, the same pattern with Resumed carrying no payload.
func (g *Gateway) raceHelloResumed(ctx context.Context, frameCh <-chan frameMsg) (helloData, error) {
	race := newTwoSlotRace[helloData, struct{}]()

	for {
		select {
		case <-race.Done():
			h, _, err := race.Wait(ctx)
			return h, err
		case msg, ok := <-frameCh:
			if !ok || msg.Err != nil {
				return helloData{}, readErrToHandshakeErr(msg.Err, ok)
			}
			switch msg.Op {
			case opHello:
				var h helloData
				if err := json.Unmarshal(msg.Data, &h); err != nil {
					return helloData{}, err
				}
				race.SetA(h)
			case opResumed:
				race.SetB(struct{}{})
			}
		case <-ctx.Done():
			return helloData{}, ErrHandshakeTimeout
		}
	}
}

// awaitSessionDescription waits for opSessionDescription, tolerating
// any other frame arriving first in the handshake tail per spec.md §9.
func (g *Gateway) awaitSessionDescription(ctx context.Context, frameCh <-chan frameMsg) (sessionDescriptionData, error) {
	for {
		select {
		case msg, ok := <-frameCh:
			if !ok || msg.Err != nil {
				return sessionDescriptionData{}, readErrToHandshakeErr(msg.Err, ok)
			}
			if msg.Op != opSessionDescription {
				continue
			}
			var sd sessionDescriptionData
			if err := json.Unmarshal(msg.Data, &sd); err != nil {
				return sessionDescriptionData{}, err
			}
			return sd, nil
		case <-ctx.Done():
			return sessionDescriptionData{}, ErrHandshakeTimeout
		}
	}
}

func readErrToHandshakeErr(err error, chanOK bool) error {
	if err != nil {
		return err
	}
	if !chanOK {
		return ErrInvalidPayloadOrder
	}
	return nil
}

// eventLoop is the steady-state dispatcher once the handshake has
// completed: it forwards unrecognised frames to the owner's inbound
// channel, answers heartbeats, resets the receive-timeout watchdog on
// every frame, watches the UDP transport and the parent gateway's
// reconnect signal, and translates close codes into the next FSM
// state per spec.md §4.3's close-code table.
func (g *Gateway) eventLoop(ctx context.Context, frameCh <-chan frameMsg, heartbeatIntervalMS float64, udpErrCh <-chan error, cancelUDP context.CancelFunc) (state, error) {
	loopCtx, cancelLoop := context.WithCancel(ctx)
	defer cancelLoop()
	defer cancelUDP()
	defer g.conn.Close()

	interval := time.Duration(heartbeatIntervalMS) * time.Millisecond

	heartbeatCh := make(chan outboundFrame, 1)
	senderErrCh := make(chan error, 1)
	resetCh := make(chan struct{}, 1)
	timeoutCh := make(chan struct{}, 1)

	go g.heartbeatGenerator(loopCtx, interval, heartbeatCh)
	go g.sender(loopCtx, heartbeatCh, senderErrCh)
	go receiveWatchdog(loopCtx, interval, resetCh, timeoutCh)

	for {
		select {
		case <-ctx.Done():
			return stateClosed, nil

		case err := <-udpErrCh:
			if err != nil {
				g.logger.Warn("voicegateway: udp transport failed, resuming", zap.Error(err))
			}
			return stateResume, nil

		case err := <-senderErrCh:
			g.logger.Warn("voicegateway: heartbeat/send failed, resuming", zap.Error(err))
			return stateResume, nil

		case <-timeoutCh:
			g.logHeartbeatTimeout()
			return stateResume, nil

		case <-g.opts.GatewayReady:
			g.logger.Info("voicegateway: parent gateway reconnected, restarting voice session")
			return stateStart, nil

		case msg, ok := <-frameCh:
			if !ok {
				return stateResume, nil
			}
			if msg.Err != nil {
				return closeCodeToState(msg.Err, g.logger), nil
			}

			// Any frame at all, not just Acks, proves the connection
			// is alive and resets the receive-timeout watchdog.
			select {
			case resetCh <- struct{}{}:
			default:
			}

			if !g.dispatch(loopCtx, msg, heartbeatCh) {
				select {
				case g.inbound <- InboundMessage{Op: msg.Op, Data: msg.Data}:
				case <-ctx.Done():
					return stateClosed, nil
				}
			}
		}
	}
}

// dispatch handles frames the event loop consumes directly, returning
// false for anything that should instead be forwarded to the owner.
// Server-initiated heartbeats are answered by queueing the echo on
// heartbeatCh rather than writing the connection directly, since the
// sender goroutine is the only goroutine allowed to do that.
func (g *Gateway) dispatch(ctx context.Context, msg frameMsg, heartbeatCh chan<- outboundFrame) bool {
	switch msg.Op {
	case opHeartbeatAck:
		return true

	case opHeartbeat:
		// Documented server-initiated-heartbeat deviation: some
		// voice servers send op 3 instead of op 6; echo it back as
		// an Ack immediately rather than treating it as unsolicited.
		select {
		case heartbeatCh <- outboundFrame{op: opHeartbeatAck, data: json.RawMessage(msg.Data)}:
		case <-ctx.Done():
		}
		return true

	default:
		return false
	}
}

// closeCodeToState maps a websocket close error to the next FSM
// state per spec.md §4.3: 1000/4001 terminate, 4014 restart fresh,
// 4015 resume, anything else terminates with a logged warning.
func closeCodeToState(err error, logger *zap.Logger) state {
	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) {
		logger.Warn("voicegateway: connection lost, resuming", zap.Error(err))
		return stateResume
	}

	switch closeErr.Code {
	case 1000, 4001:
		logger.Info("voicegateway: session closed", zap.Int("code", closeErr.Code))
		return stateClosed
	case 4014:
		logger.Info("voicegateway: disconnected, restarting")
		return stateStart
	case 4015:
		logger.Info("voicegateway: server requested resume")
		return stateResume
	default:
		logger.Warn("voicegateway: unexpected close code, terminating",
			zap.Int("code", closeErr.Code), zap.String("text", closeErr.Text))
		return stateClosed
	}
}
