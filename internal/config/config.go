package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	Matchmaking MatchmakingConfig `yaml:"matchmaking"`
	Sweeper     SweeperConfig     `yaml:"sweeper"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// KafkaConfig holds Kafka connection configuration for the search
// event ingestion path
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	GroupID string   `yaml:"group_id"`
	Enabled bool     `yaml:"enabled"`
}

// MatchmakingConfig holds the queue-level constants of the pairing
// engine: the priority scheme, the tolerance table and the eviction cap
type MatchmakingConfig struct {
	BasePriority           int           `yaml:"base_priority"`
	RankedPriorityBonus    int           `yaml:"ranked_priority_bonus"`
	NewPlayerPriorityBonus int           `yaml:"new_player_priority_bonus"`
	NewPlayerGameThreshold int           `yaml:"new_player_game_threshold"`
	PriorityBoostInterval  time.Duration `yaml:"priority_boost_interval"`
	PriorityBoostAmount    int           `yaml:"priority_boost_amount"`
	StrictTolerance        int           `yaml:"strict_tolerance"`
	BalancedTolerance      int           `yaml:"balanced_tolerance"`
	LooseTolerance         int           `yaml:"loose_tolerance"`
	ToleranceWidenPerSec   int           `yaml:"tolerance_widen_per_sec"`
	ToleranceWidenCap      int           `yaml:"tolerance_widen_cap"`
	DefaultSkillRating     int           `yaml:"default_skill_rating"`
	MaxQueueTime           time.Duration `yaml:"max_queue_time"`
}

// SweeperConfig holds expiration sweeper configuration
type SweeperConfig struct {
	Interval time.Duration `yaml:"interval"`
	Enabled  bool          `yaml:"enabled"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply defaults
	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults sets default values for missing configuration
func (c *Config) applyDefaults() {
	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 5 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 120 * time.Second
	}

	// Kafka defaults
	if len(c.Kafka.Brokers) == 0 {
		c.Kafka.Brokers = []string{"localhost:9092"}
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "matchmaking-events"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "matchmaking-consumer"
	}

	// Matchmaking defaults
	if c.Matchmaking.BasePriority == 0 {
		c.Matchmaking.BasePriority = 100
	}
	if c.Matchmaking.RankedPriorityBonus == 0 {
		c.Matchmaking.RankedPriorityBonus = 50
	}
	if c.Matchmaking.NewPlayerPriorityBonus == 0 {
		c.Matchmaking.NewPlayerPriorityBonus = 25
	}
	if c.Matchmaking.NewPlayerGameThreshold == 0 {
		c.Matchmaking.NewPlayerGameThreshold = 10
	}
	if c.Matchmaking.PriorityBoostInterval == 0 {
		c.Matchmaking.PriorityBoostInterval = 30 * time.Second
	}
	if c.Matchmaking.PriorityBoostAmount == 0 {
		c.Matchmaking.PriorityBoostAmount = 10
	}
	if c.Matchmaking.StrictTolerance == 0 {
		c.Matchmaking.StrictTolerance = 50
	}
	if c.Matchmaking.BalancedTolerance == 0 {
		c.Matchmaking.BalancedTolerance = 100
	}
	if c.Matchmaking.LooseTolerance == 0 {
		c.Matchmaking.LooseTolerance = 200
	}
	if c.Matchmaking.ToleranceWidenPerSec == 0 {
		c.Matchmaking.ToleranceWidenPerSec = 1
	}
	if c.Matchmaking.ToleranceWidenCap == 0 {
		c.Matchmaking.ToleranceWidenCap = 100
	}
	if c.Matchmaking.DefaultSkillRating == 0 {
		c.Matchmaking.DefaultSkillRating = 1200
	}
	if c.Matchmaking.MaxQueueTime == 0 {
		c.Matchmaking.MaxQueueTime = 5 * time.Minute
	}

	// Sweeper defaults
	if c.Sweeper.Interval == 0 {
		c.Sweeper.Interval = 30 * time.Second
	}
}

// DefaultConfig returns a configuration with all defaults
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.Sweeper.Enabled = true
	return cfg
}
