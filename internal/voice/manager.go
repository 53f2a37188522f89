// Package voice is the session coordinator: it joins and leaves
// guild voice channels by driving the gateway liaison and a
// voicegateway.Gateway per guild, and it is the single place that
// knows how to broadcast one Opus stream to every active session at
// once, per spec.md §4.4/§4.5.
package voice

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/diamondburned/arikawa/v3/discord"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/lucidwire/discordvoice/codec"
	"github.com/lucidwire/discordvoice/internal/config"
	"github.com/lucidwire/discordvoice/internal/discordgw"
	"github.com/lucidwire/discordvoice/pkg/util"
	"github.com/lucidwire/discordvoice/voicegateway"
)

// gatewayLiaison is the subset of *discordgw.Liaison the coordinator
// depends on. Narrowing to an interface lets tests exercise Join/Leave
// against a fake parent gateway instead of a live Discord session.
type gatewayLiaison interface {
	DuplicateEvents() <-chan discordgw.Event
	SendUpdateVoiceState(ctx context.Context, guildID discord.GuildID, channelID *discord.ChannelID, selfMute, selfDeaf bool) error
	BotUserID() discord.UserID
}

// Manager owns every guild's voice session and the single playback
// mutex spec.md §4.5 requires: only one Play call drives the
// broadcast sink at a time, so concurrent playback requests queue
// rather than interleave frames.
type Manager struct {
	logger  *zap.Logger
	liaison gatewayLiaison
	cfg     config.VoiceConfig

	mu       sync.RWMutex
	sessions map[discord.GuildID]*Session

	playbackMu sync.Mutex
}

// NewManagerParams holds dependencies for NewManager.
type NewManagerParams struct {
	fx.In
	Logger  *zap.Logger
	Liaison *discordgw.Liaison
	Cfg     *config.Config
}

// NewManager constructs a Manager ready to accept Join/Play calls.
func NewManager(params NewManagerParams) *Manager {
	return &Manager{
		logger:   params.Logger,
		liaison:  params.Liaison,
		cfg:      params.Cfg.Voice,
		sessions: make(map[discord.GuildID]*Session),
	}
}

// Join connects to a voice channel: it asks the parent gateway to
// update voice state, races the resulting Voice Server/Voice State
// Update pair under JoinTimeout, launches a voicegateway.Gateway, and
// waits under a separate HandshakeTimeout for it to reach a usable
// state before returning the new Session. The two timeouts bound
// distinct waits (the gateway-event race, then the voice websocket
// client's own handshake) rather than sharing one deadline across
// both.
func (m *Manager) Join(ctx context.Context, guildID discord.GuildID, channelID discord.ChannelID) (*Session, error) {
	m.mu.Lock()
	if _, exists := m.sessions[guildID]; exists {
		m.mu.Unlock()
		return nil, ErrAlreadyJoined
	}
	m.mu.Unlock()

	events := m.liaison.DuplicateEvents()

	raceCtx, cancelRace := context.WithTimeout(ctx, m.cfg.JoinTimeout)
	defer cancelRace()

	if err := m.liaison.SendUpdateVoiceState(raceCtx, guildID, &channelID, m.cfg.SelfMute, m.cfg.SelfDeaf); err != nil {
		return nil, fmt.Errorf("voice: update voice state: %w", err)
	}

	server, state, err := awaitVoiceServer(raceCtx, events, guildID)
	if err != nil {
		return nil, ErrNotAvailable
	}
	if server.Endpoint == "" {
		return nil, ErrNoServer
	}

	readyCtx, cancelReady := context.WithTimeout(ctx, m.cfg.HandshakeTimeout)
	defer cancelReady()

	sessionCtx, cancel := context.WithCancel(context.Background())

	gw, handle := voicegateway.New(m.logger, voicegateway.LaunchOptions{
		BotUserID:    m.liaison.BotUserID().String(),
		SessionID:    state.SessionID,
		Token:        server.Token,
		GuildID:      guildID.String(),
		Endpoint:     server.Endpoint,
		GatewayReady: reconnectSignal(sessionCtx, events),
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := gw.Run(sessionCtx); err != nil {
			m.logger.Warn("voice: gateway session exited with error",
				zap.String("guild_id", guildID.String()), zap.Error(err))
		}
	}()

	ssrc, ok := handle.SSRC.Wait(readyCtx)
	if !ok {
		cancel()
		<-done
		return nil, ErrNotAvailable
	}

	udpHandle, ok := handle.UDPHandle.Wait(readyCtx)
	if !ok {
		cancel()
		<-done
		return nil, ErrNotAvailable
	}

	sess := &Session{
		GuildID:       guildID,
		ChannelID:     channelID,
		SSRC:          ssrc,
		gatewayHandle: handle,
		udpHandle:     udpHandle,
		cancel:        cancel,
		done:          done,
	}

	m.mu.Lock()
	m.sessions[guildID] = sess
	m.mu.Unlock()

	return sess, nil
}

// Leave tears a session down: cancel its gateway context, wait for
// the sibling goroutines to exit, then tell the parent gateway to
// disconnect. Cleanup happens in that order regardless of whether the
// caller's context is later cancelled, matching spec.md §4.4's
// guaranteed-cleanup requirement.
func (m *Manager) Leave(ctx context.Context, guildID discord.GuildID) error {
	m.mu.Lock()
	sess, ok := m.sessions[guildID]
	if ok {
		delete(m.sessions, guildID)
	}
	m.mu.Unlock()

	if !ok {
		return ErrNotJoined
	}

	sess.cancel()
	<-sess.done

	return m.liaison.SendUpdateVoiceState(ctx, guildID, nil, false, false)
}

// ActiveSessions returns a snapshot of every currently joined
// session's public fields, per spec.md §5's supplemented introspection
// surface.
func (m *Manager) ActiveSessions() []Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, Session{GuildID: s.GuildID, ChannelID: s.ChannelID, SSRC: s.SSRC})
	}
	return out
}

// Play encodes r as a 20ms-framed Opus stream and broadcasts it to
// every session active at the moment Play starts: that set is
// snapshotted once, up front, so a guild that joins mid-playback is
// not retroactively added to the in-flight stream — it only receives
// audio from its next Play call, per spec.md §4.5. Each frame is sent
// to every snapshotted session's UDP outbound queue in parallel, and
// the next frame is not read from the pipeline until every session's
// send for the current frame has completed or Play's context has
// ended. Every snapshotted session is marked speaking for the
// duration of playback and marked not-speaking again once the silence
// flush has gone out, per spec.md §4.4/§8.
func (m *Manager) Play(ctx context.Context, r io.Reader) error {
	m.playbackMu.Lock()
	defer m.playbackMu.Unlock()

	pipeline, err := codec.NewPipeline()
	if err != nil {
		return fmt.Errorf("voice: build codec pipeline: %w", err)
	}

	sessions := m.sessionSnapshot()

	setSpeaking(ctx, m.logger, sessions, voicegateway.SpeakingMicrophone)
	defer setSpeaking(context.Background(), m.logger, sessions, 0)

	for result := range pipeline.Frames(ctx, r) {
		if result.Err != nil {
			return result.Err
		}
		broadcastFrame(ctx, sessions, result.Frame)
	}
	return nil
}

// sessionSnapshot copies the current session set so callers that need
// a fixed membership for the duration of an operation (Play's
// broadcast) don't observe guilds that join or leave partway through.
func (m *Manager) sessionSnapshot() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}

// setSpeaking sends a Speaking update to every session in sessions. A
// session that fails to accept the update is logged and skipped
// rather than aborting playback for the rest.
func setSpeaking(ctx context.Context, logger *zap.Logger, sessions []*Session, flags voicegateway.SpeakingFlag) {
	for _, s := range sessions {
		if err := s.Speak(ctx, flags); err != nil {
			logger.Warn("voice: failed to update speaking state",
				zap.String("guild_id", s.GuildID.String()), zap.Error(err))
		}
	}
}

func broadcastFrame(ctx context.Context, sessions []*Session, frame []byte) {
	var wg sync.WaitGroup
	wg.Add(len(sessions))
	for _, s := range sessions {
		go func(s *Session) {
			defer wg.Done()
			select {
			case s.udpHandle.Outbound <- frame:
			case <-ctx.Done():
			}
		}(s)
	}
	wg.Wait()
}

// awaitVoiceServer races the Voice Server Update and Voice State
// Update events for guildID, the join-time counterpart to
// voicegateway's handshake races.
func awaitVoiceServer(ctx context.Context, events <-chan discordgw.Event, guildID discord.GuildID) (discordgw.VoiceServerUpdate, discordgw.VoiceStateUpdate, error) {
	race := util.NewRace2[discordgw.VoiceServerUpdate, discordgw.VoiceStateUpdate]()

	for {
		select {
		case <-race.Done():
			return race.Wait(ctx)
		case e := <-events:
			if e.VoiceServer != nil && e.VoiceServer.GuildID == guildID {
				race.SetA(*e.VoiceServer)
			}
			if e.VoiceState != nil && e.VoiceState.GuildID == guildID {
				race.SetB(*e.VoiceState)
			}
		case <-ctx.Done():
			return discordgw.VoiceServerUpdate{}, discordgw.VoiceStateUpdate{}, ctx.Err()
		}
	}
}

// reconnectSignal adapts the liaison's duplicated event stream into
// the plain struct{} channel voicegateway's reconnect watchdog
// expects, filtering everything but Reconnected events. The relay
// goroutine exits once ctx is done, since the liaison never closes
// its fan-out channels itself.
func reconnectSignal(ctx context.Context, events <-chan discordgw.Event) <-chan struct{} {
	out := make(chan struct{})
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case e := <-events:
				if e.Reconnected {
					select {
					case out <- struct{}{}:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
	return out
}
