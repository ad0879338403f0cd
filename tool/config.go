package tool

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/moyoez/cloudsend/types"
)

const (
	DefaultChunkSize   int64 = 4 * 1024 * 1024
	DefaultMaxInFlight       = 6
	DefaultListenPort        = 53318
)

var (
	ConfigPath    = "config.yaml" // be aware that it can be changed, default to ./config.yaml
	CurrentConfig types.AppConfig
)

func defaultConfig() types.AppConfig {
	return types.AppConfig{
		ServerURL:      "http://127.0.0.1:8000",
		ChunkSizeBytes: DefaultChunkSize,
		MaxInFlight:    DefaultMaxInFlight,
		ListenPort:     DefaultListenPort,
		UseNotify:      true,
	}
}

// LoadConfig reads the YAML config at path, creating it with defaults when
// missing, and applies environment overrides.
func LoadConfig(path string) (types.AppConfig, error) {
	if path == "" {
		path = ConfigPath
	}
	ConfigPath = path

	cfg := defaultConfig()

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			if writeErr := writeDefaultConfig(path, cfg); writeErr != nil {
				return cfg, fmt.Errorf("config file not found, and failed to generate default config: %v", writeErr)
			}
			DefaultLogger.Infof("Created new config file at %s", path)
			applyEnvOverrides(&cfg)
			normalizeConfig(&cfg)
			CurrentConfig = cfg
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file: %v", err)
	}
	if info.IsDir() {
		return cfg, fmt.Errorf("config file path is a directory: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %v", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %v", err)
	}

	applyEnvOverrides(&cfg)
	normalizeConfig(&cfg)
	CurrentConfig = cfg
	return cfg, nil
}

// ApplyFlagOverrides merges non-zero CLI flags into cfg.
func ApplyFlagOverrides(cfg *types.AppConfig, flags types.Config) {
	if flags.UseServerURL != "" {
		cfg.ServerURL = flags.UseServerURL
	}
	if flags.UseToken != "" {
		cfg.Token = flags.UseToken
	}
	if flags.UseMaxInFlight > 0 {
		cfg.MaxInFlight = flags.UseMaxInFlight
	}
	if flags.UseChunkSize > 0 {
		cfg.ChunkSizeBytes = flags.UseChunkSize
	}
	if flags.ListenPort > 0 {
		cfg.ListenPort = flags.ListenPort
	}
	if flags.SkipNotify {
		cfg.UseNotify = false
	}
	normalizeConfig(cfg)
	CurrentConfig = *cfg
}

func applyEnvOverrides(cfg *types.AppConfig) {
	if v := os.Getenv("CLOUDSEND_SERVER_URL"); v != "" {
		cfg.ServerURL = v
	}
	if v := os.Getenv("CLOUDSEND_TOKEN"); v != "" {
		cfg.Token = v
	}
}

func normalizeConfig(cfg *types.AppConfig) {
	cfg.ServerURL = strings.TrimRight(strings.TrimSpace(cfg.ServerURL), "/")
	if cfg.ChunkSizeBytes <= 0 {
		cfg.ChunkSizeBytes = DefaultChunkSize
	}
	// Zero follows ChunkSizeBytes, including a -useChunkSize override; the
	// engine resolves it.
	if cfg.ChunkThresholdBytes < 0 {
		cfg.ChunkThresholdBytes = 0
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = DefaultMaxInFlight
	}
	if cfg.ListenPort <= 0 {
		cfg.ListenPort = DefaultListenPort
	}
	if cfg.RequestsPerSecond < 0 {
		cfg.RequestsPerSecond = 0
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
}

func writeDefaultConfig(path string, cfg types.AppConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// ChunkThreshold returns the size from which files are chunked.
func ChunkThreshold(cfg types.AppConfig) int64 {
	if cfg.ChunkThresholdBytes > 0 {
		return cfg.ChunkThresholdBytes
	}
	return cfg.ChunkSizeBytes
}

func GetCurrentConfig() *types.AppConfig {
	return &CurrentConfig
}
