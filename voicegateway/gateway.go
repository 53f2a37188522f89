// Package voicegateway implements the Discord voice websocket client:
// the Identify/Resume handshakes, heartbeats, Session Description
// exchange, and the close-code-driven Start/Resume/Closed
// reconnection state machine described in spec.md §4.3. It owns the
// lifecycle of one voiceudp.Transport per connection attempt.
package voicegateway

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/lucidwire/discordvoice/pkg/util"
	"github.com/lucidwire/discordvoice/voiceudp"
)

// state is the gateway's position in the Start/Resume/Closed FSM of
// spec.md §4.3.
type state int

const (
	stateStart state = iota
	stateResume
	stateClosed
)

func (s state) String() string {
	switch s {
	case stateStart:
		return "start"
	case stateResume:
		return "resume"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// InboundMessage is delivered on the gateway's inbound channel: a
// frame this library doesn't otherwise consume, or a terminal error.
type InboundMessage struct {
	Op   int
	Data []byte
	Err  error
}

// OutboundMessage is a user-originated frame — Speaking updates — fed
// into the websocket's user send queue.
type OutboundMessage struct {
	Op   int
	Data any
}

// Handle is the pair of message channels spec.md §3 describes for the
// websocket handle, plus read-only cells an owner can wait on for the
// session's identity.
type Handle struct {
	Inbound  <-chan InboundMessage
	Outbound chan<- OutboundMessage

	SSRC      *util.Cell[uint32]
	UDPHandle *util.Cell[voiceudp.Handle]
}

// LaunchOptions configures one voice gateway session, matching
// spec.md §3's "Launch options (websocket)".
type LaunchOptions struct {
	BotUserID string
	SessionID string
	Token     string
	GuildID   string
	Endpoint  string

	// GatewayReady receives a value each time the parent Discord
	// gateway reconnects, which invalidates the voice session and
	// forces a fresh Identify. A nil channel disables the watchdog.
	GatewayReady <-chan struct{}
}

// resumeState carries what Resume needs to reuse: the prior UDP
// launch options (same ssrc, same secret key cell) per spec.md §4.3.
type resumeState struct {
	udpOpts   voiceudp.LaunchOptions
	host      string
	port      uint16
}

// Gateway drives one logical voice session across any number of
// Start/Resume cycles until a terminal close code is observed or its
// context is cancelled.
type Gateway struct {
	logger *zap.Logger
	opts   LaunchOptions

	inbound  chan InboundMessage
	outbound chan OutboundMessage

	ssrcCell *util.Cell[uint32]
	udpCell  *util.Cell[voiceudp.Handle]

	conn      *websocket.Conn
	transport *voiceudp.Transport
}

// New creates a Gateway and its Handle. Run must be called to drive
// the connection.
func New(logger *zap.Logger, opts LaunchOptions) (*Gateway, Handle) {
	g := &Gateway{
		logger:   logger,
		opts:     opts,
		inbound:  make(chan InboundMessage, 32),
		outbound: make(chan OutboundMessage, 8),
		ssrcCell: util.NewCell[uint32](),
		udpCell:  util.NewCell[voiceudp.Handle](),
	}

	return g, Handle{
		Inbound:   g.inbound,
		Outbound:  g.outbound,
		SSRC:      g.ssrcCell,
		UDPHandle: g.udpCell,
	}
}

// Run executes the FSM until ctx is cancelled or a terminal close
// code transitions the gateway to Closed. It always tears down the
// UDP transport, the websocket connection, and the sibling goroutines
// before returning, per spec.md §4.3/§5.
func (g *Gateway) Run(ctx context.Context) error {
	defer close(g.inbound)

	st := stateStart
	var resume resumeState

	for {
		switch st {
		case stateStart:
			next, rs, err := g.runStartWithRetry(ctx)
			if err != nil {
				return err
			}
			st, resume = next, rs
		case stateResume:
			next, rs, err := g.runResumeWithRetry(ctx, resume)
			if err != nil {
				return err
			}
			st, resume = next, rs
		case stateClosed:
			return nil
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

// runStartWithRetry performs a full Identify handshake, backing off
// 5s and trying Start again whenever runStart reports stateStart (a
// Hello/Ready timeout, a Session Description wait that fails, or an
// event loop that ends with a restart). An error from runStart, such
// as a failed dial, is returned and ends the gateway; it is not
// retried.
func (g *Gateway) runStartWithRetry(ctx context.Context) (state, resumeState, error) {
	for {
		next, rs, err := g.runStart(ctx)
		if err != nil {
			return stateClosed, resumeState{}, err
		}
		if next != stateStart {
			return next, rs, nil
		}
		if ctx.Err() != nil {
			return stateClosed, resumeState{}, nil
		}

		g.logger.Warn("voicegateway: start attempt failed, retrying")
		select {
		case <-time.After(5 * time.Second):
		case <-ctx.Done():
			return stateClosed, resumeState{}, nil
		}
	}
}

// runStart performs a full Identify handshake: connect, Identify,
// race Hello/Ready, launch the UDP transport, wait for IP discovery,
// Select Protocol, accept Session Description (at any point in the
// handshake tail, per spec.md §9), then hand off to the EventLoop.
func (g *Gateway) runStart(ctx context.Context) (state, resumeState, error) {
	conn, err := g.dial(ctx)
	if err != nil {
		return stateClosed, resumeState{}, err
	}
	g.conn = conn

	if err := g.send(opIdentify, identifyData{
		ServerID:  g.opts.GuildID,
		UserID:    g.opts.BotUserID,
		SessionID: g.opts.SessionID,
		Token:     g.opts.Token,
	}); err != nil {
		conn.Close()
		return stateClosed, resumeState{}, err
	}

	handshakeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	frameCh := g.startReadPump(conn)

	hello, ready, err := g.raceHelloReady(handshakeCtx, frameCh)
	if err != nil {
		conn.Close()
		if err == ErrHandshakeTimeout {
			return stateStart, resumeState{}, nil
		}
		return stateClosed, resumeState{}, err
	}

	ssrc := ready.SSRC
	g.ssrcCell.Set(ssrc)

	secretKeyCell := util.NewCell[[32]byte]()
	transport, udpHandle, err := voiceudp.Dial(g.logger, ready.IP, ready.Port, voiceudp.LaunchOptions{
		SSRC:      ssrc,
		Host:      ready.IP,
		Port:      ready.Port,
		SecretKey: secretKeyCell,
	})
	if err != nil {
		conn.Close()
		return stateClosed, resumeState{}, err
	}
	g.transport = transport

	udpErrCh := make(chan error, 1)
	udpCtx, cancelUDP := context.WithCancel(ctx)
	go func() { udpErrCh <- transport.Run(udpCtx) }()

	discovery, err := g.awaitDiscovery(handshakeCtx, udpHandle)
	if err != nil {
		cancelUDP()
		conn.Close()
		return stateClosed, resumeState{}, err
	}

	if err := g.send(opSelectProtocol, selectProtocolData{
		Protocol: "udp",
		Data: selectProtocolInnerData{
			Address: discovery.IP,
			Port:    discovery.Port,
			Mode:    encryptionMode,
		},
	}); err != nil {
		cancelUDP()
		conn.Close()
		return stateClosed, resumeState{}, err
	}

	sessionDesc, err := g.awaitSessionDescription(handshakeCtx, frameCh)
	if err != nil {
		cancelUDP()
		conn.Close()
		return stateStart, resumeState{}, nil
	}
	secretKeyCell.Set(sessionDesc.SecretKey)
	g.udpCell.Set(udpHandle)

	rs := resumeState{
		udpOpts: voiceudp.LaunchOptions{SSRC: ssrc, SecretKey: secretKeyCell},
		host:    ready.IP,
		port:    ready.Port,
	}

	next, err := g.eventLoop(ctx, frameCh, hello.HeartbeatInterval, udpErrCh, cancelUDP)
	return next, rs, err
}

// runResumeWithRetry performs Resume, backing off 5s between attempts
// if the reconnection itself fails, per spec.md §4.3.
func (g *Gateway) runResumeWithRetry(ctx context.Context, rs resumeState) (state, resumeState, error) {
	for {
		next, newRS, err := g.runResume(ctx, rs)
		if err == nil {
			return next, newRS, nil
		}
		if ctx.Err() != nil {
			return stateClosed, resumeState{}, nil
		}

		g.logger.Warn("voicegateway: resume attempt failed, backing off", zap.Error(err))
		select {
		case <-time.After(5 * time.Second):
		case <-ctx.Done():
			return stateClosed, resumeState{}, nil
		}
	}
}

func (g *Gateway) runResume(ctx context.Context, rs resumeState) (state, resumeState, error) {
	conn, err := g.dial(ctx)
	if err != nil {
		return stateClosed, resumeState{}, err
	}
	g.conn = conn

	if err := g.send(opResume, resumeData{
		ServerID:  g.opts.GuildID,
		SessionID: g.opts.SessionID,
		Token:     g.opts.Token,
	}); err != nil {
		conn.Close()
		return stateClosed, resumeState{}, err
	}

	handshakeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	frameCh := g.startReadPump(conn)

	hello, err := g.raceHelloResumed(handshakeCtx, frameCh)
	if err != nil {
		conn.Close()
		return stateClosed, resumeState{}, err
	}

	transport, udpHandle, err := voiceudp.Dial(g.logger, rs.host, rs.port, rs.udpOpts)
	if err != nil {
		conn.Close()
		return stateClosed, resumeState{}, err
	}
	g.transport = transport
	g.udpCell.Set(udpHandle)

	udpErrCh := make(chan error, 1)
	udpCtx, cancelUDP := context.WithCancel(ctx)
	go func() { udpErrCh <- transport.Run(udpCtx) }()

	next, err := g.eventLoop(ctx, frameCh, hello.HeartbeatInterval, udpErrCh, cancelUDP)
	return next, rs, err
}

// voiceWebsocketURL builds the wss:// URL to dial from a voice server
// endpoint. spec.md §4.3 requires the port be parsed from the endpoint
// string (the suffix after its last ':') rather than discarded, since
// Discord is not guaranteed to hand back the default 443.
func voiceWebsocketURL(endpoint string) string {
	host, port, err := net.SplitHostPort(endpoint)
	if err != nil {
		host, port = endpoint, "443"
	}
	u := url.URL{Scheme: "wss", Host: net.JoinHostPort(host, port), RawQuery: "v=4"}
	return u.String()
}

func (g *Gateway) dial(ctx context.Context) (*websocket.Conn, error) {
	u := voiceWebsocketURL(g.opts.Endpoint)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("voicegateway: dial %s: %w", u, err)
	}
	return conn, nil
}

func (g *Gateway) send(op int, data any) error {
	raw, err := marshalPayload(op, data)
	if err != nil {
		return fmt.Errorf("voicegateway: marshal op %d: %w", op, err)
	}
	if err := g.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		return fmt.Errorf("voicegateway: write op %d: %w", op, err)
	}
	return nil
}

func (g *Gateway) awaitDiscovery(ctx context.Context, handle voiceudp.Handle) (voiceudp.IPDiscoveryResult, error) {
	select {
	case in := <-handle.Inbound:
		if in.Discovery == nil {
			return voiceudp.IPDiscoveryResult{}, ErrInvalidPayloadOrder
		}
		return *in.Discovery, nil
	case <-ctx.Done():
		return voiceudp.IPDiscoveryResult{}, ctx.Err()
	}
}
