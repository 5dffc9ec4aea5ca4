package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

const (
	defaultListenAddress = "127.0.0.1:51634"
	defaultDBPath        = "fipvote.db"
	// defaultVoteLength is one week, in seconds.
	defaultVoteLength        = 60 * 60 * 24 * 7
	defaultMainnetRPC        = "https://api.chain.love/rpc/v0"
	defaultCalibrationRPC    = "https://api.calibration.node.glif.io/rpc/v0"
	defaultOracleTimeoutSecs = 15
)

// Config captures the runtime settings for the voting service. It is loaded
// once at startup and passed by reference into every component; nothing in
// the core reads ambient state.
type Config struct {
	ListenAddress string `yaml:"listen"`
	Env           string `yaml:"env"`
	DBPath        string `yaml:"db_path"`
	// VoteLengthSeconds is the voting window applied to every proposal.
	VoteLengthSeconds uint64      `yaml:"vote_length"`
	Chain             ChainConfig `yaml:"chain"`
	// BootstrapStarters seeds the per-network vote-starter sets at process
	// start. Hex Ethereum addresses.
	BootstrapStarters []string `yaml:"bootstrap_starters"`
}

// ChainConfig describes the per-network chain-data RPC endpoints.
type ChainConfig struct {
	MainnetRPC     string `yaml:"mainnet_rpc"`
	CalibrationRPC string `yaml:"calibration_rpc"`
	// TimeoutSeconds bounds each oracle call.
	TimeoutSeconds uint64 `yaml:"timeout"`
}

// OracleTimeout returns the configured oracle call bound as a duration.
func (c ChainConfig) OracleTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Starters parses the bootstrap allow-list into addresses.
func (c Config) Starters() ([]common.Address, error) {
	starters := make([]common.Address, 0, len(c.BootstrapStarters))
	for _, raw := range c.BootstrapStarters {
		trimmed := strings.TrimSpace(raw)
		if !common.IsHexAddress(trimmed) {
			return nil, fmt.Errorf("config: invalid bootstrap starter %q", raw)
		}
		starters = append(starters, common.HexToAddress(trimmed))
	}
	return starters, nil
}

// Load reads the YAML configuration from disk, filling defaults for any
// omitted field. A missing path yields the defaults outright.
func Load(path string) (Config, error) {
	cfg := defaults()
	if path == "" {
		return cfg, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyDefaults()
	if _, err := cfg.Starters(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func defaults() Config {
	cfg := Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.ListenAddress == "" {
		c.ListenAddress = defaultListenAddress
	}
	if c.DBPath == "" {
		c.DBPath = defaultDBPath
	}
	if c.VoteLengthSeconds == 0 {
		c.VoteLengthSeconds = defaultVoteLength
	}
	if c.Chain.MainnetRPC == "" {
		c.Chain.MainnetRPC = defaultMainnetRPC
	}
	if c.Chain.CalibrationRPC == "" {
		c.Chain.CalibrationRPC = defaultCalibrationRPC
	}
	if c.Chain.TimeoutSeconds == 0 {
		c.Chain.TimeoutSeconds = defaultOracleTimeoutSecs
	}
}
