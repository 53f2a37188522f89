package config

import (
	"os"
	"time"

	"github.com/diamondburned/arikawa/v3/discord"
	"gopkg.in/yaml.v3"
)

// DiscordConfig stores Discord specific configuration.
type DiscordConfig struct {
	BotToken      string             `yaml:"bot_token"`
	ApplicationID *discord.Snowflake `yaml:"application_id"`
	GuildIDs      []string           `yaml:"guild_ids"`
}

// VoiceConfig stores the knobs spec.md §5/§9 leaves to the embedder:
// the coordinator's join and handshake timeouts (also shortened in
// its tests to avoid waiting on real wall-clock defaults) and the
// self-mute/self-deaf flags sent when joining.
type VoiceConfig struct {
	// JoinTimeout bounds the Voice-Server/Voice-State Update race that
	// opens a Join call: Discord must deliver both gateway events
	// within this window or Join fails with ErrNotAvailable.
	JoinTimeout time.Duration `yaml:"join_timeout"`

	// HandshakeTimeout bounds Join's wait, after the gateway-event
	// race, for the voice websocket client to hand back an ssrc and a
	// live UDP transport. The client's own Hello/Ready or
	// Hello/Resumed race uses its fixed 10s budget, not this value.
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`

	// SelfDeaf controls whether the bot reports itself as deafened
	// when joining; receiving audio is out of scope so this defaults
	// to true.
	SelfDeaf bool `yaml:"self_deaf"`

	// SelfMute controls whether the bot reports itself as muted.
	SelfMute bool `yaml:"self_mute"`
}

// DefaultVoiceConfig returns the values used when the config file
// omits the voice section entirely.
func DefaultVoiceConfig() VoiceConfig {
	return VoiceConfig{
		JoinTimeout:      5 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		SelfDeaf:         true,
		SelfMute:         false,
	}
}

// Config stores the application configuration.
type Config struct {
	Discord  DiscordConfig `yaml:"discord"`
	Voice    VoiceConfig   `yaml:"voice"`
	LogLevel string        `yaml:"log_level"`
}

// LoadConfig loads the configuration from the given file path. Voice
// fields the file omits keep their DefaultVoiceConfig values, and a
// join or handshake timeout set to zero is replaced by its default;
// the self-mute/self-deaf flags are taken as written.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	cfg := Config{Voice: DefaultVoiceConfig()}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Voice.JoinTimeout == 0 {
		cfg.Voice.JoinTimeout = DefaultVoiceConfig().JoinTimeout
	}
	if cfg.Voice.HandshakeTimeout == 0 {
		cfg.Voice.HandshakeTimeout = DefaultVoiceConfig().HandshakeTimeout
	}

	return &cfg, nil
}
