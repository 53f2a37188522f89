// Package voiceudp implements the per-session UDP voice transport:
// IP discovery, RTP framing, xsalsa20_poly1305 encryption, and paced
// transmission of pre-encoded Opus frames.
package voiceudp

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lucidwire/discordvoice/pkg/util"
)

// OutboundQueueSize bounds the outbound Opus frame queue at roughly
// 10 seconds of audio. This bound is the transport's backpressure
// mechanism and must not be widened casually: a producer that
// outruns the network blocks here by design, per spec.md §9.
const OutboundQueueSize = 500

// InboundQueueSize bounds the inbound packet queue. It only ever
// carries the one IPDiscoveryResult per session plus any stray
// datagrams; a small buffer is enough to avoid the receive loop
// stalling momentarily on a slow consumer.
const InboundQueueSize = 8

// Inbound is either an IP discovery result or a raw datagram this
// library chooses not to decode (peer audio reception is out of
// scope per spec.md §1).
type Inbound struct {
	Discovery *IPDiscoveryResult
	RawPacket []byte
}

// LaunchOptions configures a Transport for one voice session. SSRC,
// IP, and Port are assigned by the voice gateway's Ready payload;
// SecretKey is filled later, asynchronously, once Select Protocol /
// Session Description completes.
type LaunchOptions struct {
	SSRC      uint32
	Host      string
	Port      uint16
	SecretKey *util.Cell[[32]byte]
}

// Handle is the pair of channels a Transport exposes to its owner,
// matching spec.md §3's "UDP handle".
type Handle struct {
	Inbound  <-chan Inbound
	Outbound chan<- []byte
}

// Transport owns one UDP socket for one voice session.
type Transport struct {
	logger *zap.Logger
	conn   *net.UDPConn
	opts   LaunchOptions

	inbound  chan Inbound
	outbound chan []byte

	closeOnce sync.Once
	closeErr  error
}

// Dial opens the UDP socket to host:port and returns a Transport
// along with the Handle its owner uses to drive it.
func Dial(logger *zap.Logger, host string, port uint16, opts LaunchOptions) (*Transport, Handle, error) {
	conn, err := net.DialUDP("udp", nil, &net.UDPAddr{IP: net.ParseIP(host), Port: int(port)})
	if err != nil {
		return nil, Handle{}, fmt.Errorf("voiceudp: dial: %w", err)
	}

	t := &Transport{
		logger:   logger,
		conn:     conn,
		opts:     opts,
		inbound:  make(chan Inbound, InboundQueueSize),
		outbound: make(chan []byte, OutboundQueueSize),
	}

	return t, Handle{Inbound: t.inbound, Outbound: t.outbound}, nil
}

// Close releases the underlying socket. Safe to call multiple times
// and concurrently with Run; a Run blocked on a socket read observes
// the close as a read error and exits.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}

// Run performs IP discovery, waits for the secret key, then drives
// the paced RTP transmit loop and the inbound datagram reader until
// ctx is cancelled or a socket error occurs. Socket errors are fatal
// to the transport and are returned to the caller; the caller (the
// owning voice websocket) decides whether to resume or terminate.
func (t *Transport) Run(ctx context.Context) error {
	stopWatchdog := make(chan struct{})
	defer close(stopWatchdog)
	go func() {
		select {
		case <-ctx.Done():
			t.Close()
		case <-stopWatchdog:
		}
	}()

	discovery, err := t.discoverIP(ctx)
	if err != nil {
		return err
	}

	select {
	case t.inbound <- Inbound{Discovery: &discovery}:
	case <-ctx.Done():
		return ctx.Err()
	}

	readErrCh := make(chan error, 1)
	go func() { readErrCh <- t.readLoop(ctx) }()

	key, ok := t.opts.SecretKey.Wait(ctx)
	if !ok {
		// Session aborted before the key arrived; exit cleanly.
		return nil
	}

	return t.transmitLoop(ctx, key, readErrCh)
}

// discoverIP sends the IP-discovery request and blocks for the
// single reply packet, per spec.md §4.2.1.
func (t *Transport) discoverIP(ctx context.Context) (IPDiscoveryResult, error) {
	req := buildDiscoveryPacket(t.opts.SSRC)
	if _, err := t.conn.Write(req); err != nil {
		return IPDiscoveryResult{}, fmt.Errorf("voiceudp: send discovery packet: %w", err)
	}

	type readResult struct {
		n   int
		err error
	}
	resCh := make(chan readResult, 1)
	buf := make([]byte, 512)
	go func() {
		n, err := t.conn.Read(buf)
		resCh <- readResult{n: n, err: err}
	}()

	select {
	case res := <-resCh:
		if res.err != nil {
			return IPDiscoveryResult{}, fmt.Errorf("voiceudp: read discovery reply: %w", res.err)
		}
		result, err := parseDiscoveryReply(buf[:res.n])
		if err != nil {
			return IPDiscoveryResult{}, err
		}
		t.logger.Info("voice udp: ip discovery complete",
			zap.String("ip", result.IP), zap.Uint16("port", result.Port))
		return result, nil
	case <-ctx.Done():
		return IPDiscoveryResult{}, ctx.Err()
	}
}

// readLoop forwards unrecognised datagrams to the inbound channel and
// discards anything that looks like a discovery reply (already
// consumed once, up front). Socket errors are fatal.
func (t *Transport) readLoop(ctx context.Context) error {
	buf := make([]byte, 4096)
	for {
		n, err := t.conn.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("voiceudp: read: %w", err)
		}

		pkt := buf[:n]
		if looksLikeDiscoveryReply(pkt) {
			continue
		}

		select {
		case t.inbound <- Inbound{RawPacket: append([]byte(nil), pkt...)}:
		case <-ctx.Done():
			return nil
		default:
			t.logger.Debug("voice udp: inbound queue full, dropping unrecognised packet")
		}
	}
}

// transmitLoop drains the outbound queue and sends encrypted,
// RTP-framed packets paced to a steady 20 ms cadence, compensating
// for scheduling jitter by targeting wall-clock send times rather
// than sleeping a fixed interval per frame.
func (t *Transport) transmitLoop(ctx context.Context, key [32]byte, readErrCh <-chan error) error {
	header := rtpHeader{
		Sequence:  randomUint16(),
		Timestamp: randomUint32(),
		SSRC:      t.opts.SSRC,
	}

	start := time.Now()
	var frameIndex int64

	for {
		select {
		case err := <-readErrCh:
			return err
		case <-ctx.Done():
			return nil
		case frame, ok := <-t.outbound:
			if !ok {
				return nil
			}

			target := start.Add(time.Duration(frameIndex) * 20 * time.Millisecond)
			if d := time.Until(target); d > 0 {
				select {
				case <-time.After(d):
				case <-ctx.Done():
					return nil
				}
			}

			if err := t.sendFrame(header, frame, &key); err != nil {
				return err
			}

			header = header.next()
			frameIndex++
		}
	}
}

func (t *Transport) sendFrame(header rtpHeader, opus []byte, key *[32]byte) error {
	encoded := header.encode()
	sealed := encrypt(opus, encoded, key)

	packet := make([]byte, rtpHeaderSize+len(sealed))
	copy(packet, encoded[:])
	copy(packet[rtpHeaderSize:], sealed)

	if _, err := t.conn.Write(packet); err != nil {
		return fmt.Errorf("voiceudp: send frame: %w", err)
	}
	return nil
}

func randomUint16() uint16 {
	var b [2]byte
	_, _ = rand.Read(b[:])
	return binary.BigEndian.Uint16(b[:])
}

func randomUint32() uint32 {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return binary.BigEndian.Uint32(b[:])
}
