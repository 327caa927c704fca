package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig is the YAML representation. Durations are strings in Go
// duration syntax ("500ms", "30s") and resolved during merge.
type fileConfig struct {
	AssetURL                         *string  `yaml:"assetUrl"`
	MaxBufferDuration                *float64 `yaml:"maxBufferDuration"`
	MinBandwidth                     *int     `yaml:"minBandwidth"`
	MaxBandwidth                     *int     `yaml:"maxBandwidth"`
	SegmentWatchdogTimeout           *string  `yaml:"segmentWatchdogTimeout"`
	FeedInterval                     *string  `yaml:"feedInterval"`
	GapCheckInterval                 *string  `yaml:"gapCheckInterval"`
	MinDesiredFutureSegments         *int     `yaml:"minDesiredFutureSegments"`
	RefreshBufferPercentageThreshold *float64 `yaml:"refreshBufferPercentageThreshold"`
	InitialPosition                  *float64 `yaml:"initialPosition"`
	CongestionControlEnabled         *bool    `yaml:"congestionControlEnabled"`
	UseCanary                        *bool    `yaml:"useCanary"`
}

// Load builds a Playback configuration from defaults, an optional YAML
// file and the process environment, in that precedence order.
func Load(path string) (Playback, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- path is operator supplied
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		var file fileConfig
		if err := yaml.Unmarshal(data, &file); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
		if err := mergeFile(&cfg, &file); err != nil {
			return cfg, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func mergeFile(cfg *Playback, file *fileConfig) error {
	if file.AssetURL != nil {
		cfg.AssetURL = *file.AssetURL
	}
	if file.MaxBufferDuration != nil {
		cfg.MaxBufferDuration = *file.MaxBufferDuration
	}
	if file.MinBandwidth != nil {
		cfg.MinBandwidth = *file.MinBandwidth
	}
	if file.MaxBandwidth != nil {
		cfg.MaxBandwidth = *file.MaxBandwidth
	}
	if err := mergeDuration(&cfg.SegmentWatchdogTimeout, "segmentWatchdogTimeout", file.SegmentWatchdogTimeout); err != nil {
		return err
	}
	if err := mergeDuration(&cfg.FeedInterval, "feedInterval", file.FeedInterval); err != nil {
		return err
	}
	if err := mergeDuration(&cfg.GapCheckInterval, "gapCheckInterval", file.GapCheckInterval); err != nil {
		return err
	}
	if file.MinDesiredFutureSegments != nil {
		cfg.MinDesiredFutureSegments = *file.MinDesiredFutureSegments
	}
	if file.RefreshBufferPercentageThreshold != nil {
		cfg.RefreshBufferPercentageThreshold = *file.RefreshBufferPercentageThreshold
	}
	if file.InitialPosition != nil {
		cfg.InitialPosition = *file.InitialPosition
	}
	if file.CongestionControlEnabled != nil {
		cfg.CongestionControlEnabled = *file.CongestionControlEnabled
	}
	if file.UseCanary != nil {
		cfg.UseCanary = *file.UseCanary
	}
	return nil
}

func mergeDuration(dst *time.Duration, key string, value *string) error {
	if value == nil {
		return nil
	}
	d, err := time.ParseDuration(*value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

// applyEnv overlays PLAYCORE_* environment variables onto cfg.
func applyEnv(cfg *Playback) error {
	if v := os.Getenv("PLAYCORE_ASSET_URL"); v != "" {
		cfg.AssetURL = v
	}
	if err := envFloat("PLAYCORE_MAX_BUFFER_DURATION", &cfg.MaxBufferDuration); err != nil {
		return err
	}
	if err := envInt("PLAYCORE_MIN_BANDWIDTH", &cfg.MinBandwidth); err != nil {
		return err
	}
	if err := envInt("PLAYCORE_MAX_BANDWIDTH", &cfg.MaxBandwidth); err != nil {
		return err
	}
	if err := envDuration("PLAYCORE_SEGMENT_WATCHDOG_TIMEOUT", &cfg.SegmentWatchdogTimeout); err != nil {
		return err
	}
	if err := envDuration("PLAYCORE_FEED_INTERVAL", &cfg.FeedInterval); err != nil {
		return err
	}
	if err := envDuration("PLAYCORE_GAP_CHECK_INTERVAL", &cfg.GapCheckInterval); err != nil {
		return err
	}
	if err := envInt("PLAYCORE_MIN_DESIRED_FUTURE_SEGMENTS", &cfg.MinDesiredFutureSegments); err != nil {
		return err
	}
	if err := envFloat("PLAYCORE_REFRESH_BUFFER_THRESHOLD", &cfg.RefreshBufferPercentageThreshold); err != nil {
		return err
	}
	if err := envFloat("PLAYCORE_INITIAL_POSITION", &cfg.InitialPosition); err != nil {
		return err
	}
	if err := envBool("PLAYCORE_CONGESTION_CONTROL", &cfg.CongestionControlEnabled); err != nil {
		return err
	}
	return envBool("PLAYCORE_USE_CANARY", &cfg.UseCanary)
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = parsed
	return nil
}

func envFloat(key string, dst *float64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = parsed
	return nil
}

func envBool(key string, dst *bool) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = parsed
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = parsed
	return nil
}
