package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kFloat
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "ROOFCHECK_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.max_conns", typ: kInt, env: "ROOFCHECK_SERVER_MAX_CONNS",
		apply:   func(cfg *Config, v any) { cfg.Server.MaxConns = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.MaxConns },
	},
	{
		key: "server.mcp_stdio", typ: kBool, env: "ROOFCHECK_SERVER_MCP_STDIO",
		apply:   func(cfg *Config, v any) { cfg.Server.MCPStdio = v.(bool) },
		extract: func(cfg Config) any { return cfg.Server.MCPStdio },
	},
	{
		key: "storage.data_dir", typ: kString, env: "ROOFCHECK_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "vision.api_key", typ: kString, env: "ROOFCHECK_VISION_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Vision.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Vision.APIKey },
	},
	{
		key: "vision.base_url", typ: kString, env: "ROOFCHECK_VISION_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Vision.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Vision.BaseURL },
	},
	{
		key: "vision.model", typ: kString, env: "ROOFCHECK_VISION_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Vision.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Vision.Model },
	},
	{
		key: "vision.report_model", typ: kString, env: "ROOFCHECK_VISION_REPORT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Vision.ReportModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Vision.ReportModel },
	},
	{
		key: "vision.max_tokens", typ: kInt, env: "ROOFCHECK_VISION_MAX_TOKENS",
		apply:   func(cfg *Config, v any) { cfg.Vision.MaxTokens = v.(int) },
		extract: func(cfg Config) any { return cfg.Vision.MaxTokens },
	},
	{
		key: "vision.report_max_tokens", typ: kInt, env: "ROOFCHECK_VISION_REPORT_MAX_TOKENS",
		apply:   func(cfg *Config, v any) { cfg.Vision.ReportMaxTokens = v.(int) },
		extract: func(cfg Config) any { return cfg.Vision.ReportMaxTokens },
	},
	{
		key: "vision.temperature", typ: kFloat, env: "ROOFCHECK_VISION_TEMPERATURE",
		apply:   func(cfg *Config, v any) { cfg.Vision.Temperature = v.(float64) },
		extract: func(cfg Config) any { return cfg.Vision.Temperature },
	},
	{
		key: "vision.timeout", typ: kString, env: "ROOFCHECK_VISION_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Vision.Timeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Vision.Timeout },
	},
	{
		key: "imaging.max_dimension", typ: kInt, env: "ROOFCHECK_IMAGING_MAX_DIMENSION",
		apply:   func(cfg *Config, v any) { cfg.Imaging.MaxDimension = v.(int) },
		extract: func(cfg Config) any { return cfg.Imaging.MaxDimension },
	},
	{
		key: "imaging.jpeg_quality", typ: kInt, env: "ROOFCHECK_IMAGING_JPEG_QUALITY",
		apply:   func(cfg *Config, v any) { cfg.Imaging.JPEGQuality = v.(int) },
		extract: func(cfg Config) any { return cfg.Imaging.JPEGQuality },
	},
	{
		key: "imaging.max_pixels", typ: kInt, env: "ROOFCHECK_IMAGING_MAX_PIXELS",
		apply:   func(cfg *Config, v any) { cfg.Imaging.MaxPixels = v.(int) },
		extract: func(cfg Config) any { return cfg.Imaging.MaxPixels },
	},
	{
		key: "analysis.async", typ: kBool, env: "ROOFCHECK_ANALYSIS_ASYNC",
		apply:   func(cfg *Config, v any) { cfg.Analysis.Async = v.(bool) },
		extract: func(cfg Config) any { return cfg.Analysis.Async },
	},
	{
		key: "hail.min_hits", typ: kInt, env: "ROOFCHECK_HAIL_MIN_HITS",
		apply:   func(cfg *Config, v any) { cfg.Hail.MinHits = v.(int) },
		extract: func(cfg Config) any { return cfg.Hail.MinHits },
	},
	{
		key: "log.level", typ: kString, env: "ROOFCHECK_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

// parseRaw converts a raw string value to the Go type expected by a key.
func parseRaw(t keyType, raw string) (any, error) {
	switch t {
	case kInt:
		return strconv.Atoi(raw)
	case kBool:
		return strconv.ParseBool(raw)
	case kFloat:
		return strconv.ParseFloat(raw, 64)
	default:
		return raw, nil
	}
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		if s.typ == kInt {
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
			continue
		}

		raw, ok, err := b.GetString(s.key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if !ok || (raw == "" && s.typ != kString) {
			continue
		}
		v, err := parseRaw(s.typ, raw)
		if err != nil {
			slog.Warn("could not parse config value, using default", "key", s.key, "value", raw, "error", err)
			continue
		}
		s.apply(cfg, v)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		v, err := parseRaw(s.typ, raw)
		if err != nil {
			slog.Warn("could not parse env var, using default", "env", s.env, "value", raw, "error", err)
			continue
		}
		s.apply(cfg, v)
	}
}
