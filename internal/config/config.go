package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Default configuration values (production)
const (
	DefaultDomain   = "signduel.gg"
	DefaultSTUN     = "stun:stun.l.google.com:19302"
	DefaultTURN     = "" // Optional, empty by default
	DefaultTURNUser = ""
	DefaultTURNPass = ""

	DefaultElo = 1200
)

// Round timing defaults. These mirror the server's pacing; the server is
// authoritative for round lifecycle, the client only paces its own timers.
const (
	DefaultCountdownStart = 5
	DefaultDrawDelay      = 3000 * time.Millisecond
	DefaultFrameInterval  = 100 * time.Millisecond
	DefaultWinThreshold   = 3
)

// Config holds application configuration
type Config struct {
	// Domain is the duel server domain
	Domain string

	// WebSocketURL is constructed from domain
	WebSocketURL string

	// ICE servers for WebRTC
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string

	// Starting Elo reported to matchmaking
	Elo int

	// Round pacing
	CountdownStart int
	DrawDelay      time.Duration
	FrameInterval  time.Duration
}

// Options for loading config with CLI flag overrides
type Options struct {
	Domain     string
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	Elo        int
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	domain := firstNonEmpty(opts.Domain, os.Getenv("SIGNDUEL_DOMAIN"), DefaultDomain)
	stunServer := firstNonEmpty(opts.STUNServer, os.Getenv("STUN_SERVER"), DefaultSTUN)
	turnServer := firstNonEmpty(opts.TURNServer, os.Getenv("TURN_SERVER"), DefaultTURN)
	turnUser := firstNonEmpty(opts.TURNUser, os.Getenv("TURN_USERNAME"), DefaultTURNUser)
	turnPass := firstNonEmpty(opts.TURNPass, os.Getenv("TURN_PASSWORD"), DefaultTURNPass)

	elo := opts.Elo
	if elo == 0 {
		if v, err := strconv.Atoi(os.Getenv("SIGNDUEL_ELO")); err == nil {
			elo = v
		}
	}
	if elo == 0 {
		elo = DefaultElo
	}
	if elo < 0 {
		return nil, fmt.Errorf("invalid elo: %d", elo)
	}

	return &Config{
		Domain:         domain,
		WebSocketURL:   fmt.Sprintf("wss://%s/ws", domain),
		STUNServer:     stunServer,
		TURNServer:     turnServer,
		TURNUser:       turnUser,
		TURNPass:       turnPass,
		Elo:            elo,
		CountdownStart: DefaultCountdownStart,
		DrawDelay:      DefaultDrawDelay,
		FrameInterval:  DefaultFrameInterval,
	}, nil
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Config) GetSTUNServers() []string {
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	return []string{
		fmt.Sprintf("%s:3478?transport=udp", c.TURNServer),
		fmt.Sprintf("%s:3478?transport=tcp", c.TURNServer),
	}
}

// GetTURNCredentials returns TURN username and password
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
