package config

import (
	"log/slog"
	"strings"
	"time"
)

const (
	keychainService   = "roofcheck"
	apiKeyAccount     = "vision_api_key"
	apiTokenAccount   = "api_token"
	defaultVisionURL  = "https://api.openai.com/v1"
	defaultTimeoutStr = "60s"
)

type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Vision   VisionConfig
	Imaging  ImagingConfig
	Analysis AnalysisConfig
	Hail     HailConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port     int
	MaxConns int
	MCPStdio bool
}

type StorageConfig struct {
	DataDir string
}

type VisionConfig struct {
	APIKey          string
	BaseURL         string
	Model           string
	ReportModel     string
	MaxTokens       int
	ReportMaxTokens int
	Temperature     float64
	Timeout         string
}

// TimeoutDuration parses Timeout, falling back to 60s on bad input.
func (v VisionConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(v.Timeout)
	if err != nil || d <= 0 {
		slog.Warn("invalid vision timeout, using default 60s", "value", v.Timeout)
		return 60 * time.Second
	}
	return d
}

type ImagingConfig struct {
	MaxDimension int
	JPEGQuality  int
	MaxPixels    int
}

type AnalysisConfig struct {
	Async bool
}

type HailConfig struct {
	MinHits int
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:     4100,
			MaxConns: 64,
			MCPStdio: true,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Vision: VisionConfig{
			BaseURL:         defaultVisionURL,
			Model:           "gpt-4o",
			ReportModel:     "gpt-4",
			MaxTokens:       1000,
			ReportMaxTokens: 2000,
			Temperature:     0.3,
			Timeout:         defaultTimeoutStr,
		},
		Imaging: ImagingConfig{
			MaxDimension: 1024,
			JPEGQuality:  80,
			MaxPixels:    40_000_000,
		},
		Hail: HailConfig{
			MinHits: 8,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the platform-native backend, environment
// variables, and platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.roofcheck.app) and the
// vision API key falls back to macOS Keychain.
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/roofcheck/config.json
// and the key falls back to $XDG_DATA_HOME/roofcheck/secrets.json.
//
// Environment variables (ROOFCHECK_*) override backend values on all platforms.
// A missing API key is not an error: photo analysis runs in simulated mode.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), NewKeychain())
}

// Keychain abstracts the platform secret store.
type Keychain interface {
	Get(service, account string) (string, error)
	Set(service, account, value string) error
}

func loadWith(b ConfigBackend, kc Keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.Vision.APIKey == "" {
		if key, err := kc.Get(keychainService, apiKeyAccount); err == nil && key != "" {
			cfg.Vision.APIKey = key
		}
	}

	return cfg, nil
}

// HasAPIKey reports whether a vision credential is configured.
func (c Config) HasAPIKey() bool {
	return strings.TrimSpace(c.Vision.APIKey) != ""
}

// APIKeyHint tells the user where the vision API key can be provided.
func APIKeyHint() string {
	return "set ROOFCHECK_VISION_API_KEY or run `roofcheck config set-api-key`" + apiKeyHint()
}

// SetAPIKey stores the vision API key in the platform secret store.
func SetAPIKey(kc Keychain, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errEmptyAPIKey
	}
	return kc.Set(keychainService, apiKeyAccount, key)
}

// NewKeychain returns the platform secret store.
func NewKeychain() Keychain {
	return keychainStore{}
}

// keychainStore reads and writes the platform secret store.
type keychainStore struct{}

func (keychainStore) Get(service, account string) (string, error) {
	out, err := keychainGet(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func (keychainStore) Set(service, account, value string) error {
	return keychainSet(service, account, value)
}
