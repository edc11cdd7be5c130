package arena

import (
	"strings"

	"github.com/JeremyLoy/config"
	"github.com/rotisserie/eris"
)

// Config is the instance configuration, filled from the environment.
type Config struct {
	RedisAddress  string `config:"REDIS_ADDRESS"`
	RedisPassword string `config:"REDIS_PASSWORD"`
	// Namespace prefixes every shared redis key so multiple fleets can share
	// one redis.
	Namespace string `config:"ARENA_NAMESPACE"`
	// InstanceID identifies this instance in logs and metrics.
	InstanceID string `config:"ARENA_INSTANCE_ID"`
	Port       string `config:"ARENA_PORT"`
	// PeerAddresses is a comma-separated list of host:port for the other
	// known instances.
	PeerAddresses string `config:"ARENA_PEERS"`
	StatsdAddress string `config:"STATSD_ADDRESS"`

	// MatchRatingDelta enables elo-aware pairing when positive: only players
	// within the delta are paired locally.
	MatchRatingDelta int `config:"ARENA_RATING_DELTA"`
	TurnSeconds      int `config:"ARENA_TURN_SECONDS"`

	MatchSweepMillis int `config:"ARENA_MATCH_SWEEP_MS"`
	TurnSweepMillis  int `config:"ARENA_TURN_SWEEP_MS"`
	RegenSweepMillis int `config:"ARENA_REGEN_SWEEP_MS"`
	TradeSweepMillis int `config:"ARENA_TRADE_SWEEP_MS"`
}

// LoadConfig reads the environment over the defaults.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	if err := config.FromEnv().To(&cfg); err != nil {
		return Config{}, eris.Wrap(err, "failed to load config from environment")
	}
	return cfg, nil
}

// DefaultConfig is a single-instance development setup.
func DefaultConfig() Config {
	return Config{
		RedisAddress:     "localhost:6379",
		Namespace:        "arena",
		InstanceID:       "arena-0",
		Port:             "4040",
		TurnSeconds:      20,
		MatchSweepMillis: 1000,
		TurnSweepMillis:  1000,
		RegenSweepMillis: 2000,
		TradeSweepMillis: 30000,
	}
}

// Peers parses the comma-separated peer list.
func (c Config) Peers() []string {
	if c.PeerAddresses == "" {
		return nil
	}
	parts := strings.Split(c.PeerAddresses, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
