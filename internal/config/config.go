// Package config loads the classification engine's runtime configuration
// from environment variables and an optional config file, via viper.
package config

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config holds every tunable the classification engine's external
// interface exposes.
type Config struct {
	ModelName           string        `mapstructure:"model_name"`
	ModelHost           string        `mapstructure:"model_host"`
	VectorDim           int           `mapstructure:"vector_dim"`
	ConfidenceThreshold float64       `mapstructure:"confidence_threshold"`
	MaxAlternatives     int           `mapstructure:"max_alternatives"`
	RequestTimeout      time.Duration `mapstructure:"request_timeout_ms"`
	MaxInflight         int           `mapstructure:"max_inflight"`
	BindAddr            string        `mapstructure:"bind_addr"`
	BindPort            int           `mapstructure:"bind_port"`
	ArtifactPath        string        `mapstructure:"artifact_path"`
	ArtifactFormat      string        `mapstructure:"artifact_format"`
	WatchArtifact       bool          `mapstructure:"watch_artifact"`
	LogLevel            string        `mapstructure:"log_level"`
}

// Load reads configuration from environment variables (and configFile, if
// non-empty), applying defaults for anything unset.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", configFile, err)
		}
	}

	bindEnvironmentVariables(v)

	cfg := &Config{}
	if err := v.Unmarshal(cfg, viper.DecodeHook(durationFromMillisHook)); err != nil {
		return nil, fmt.Errorf("config: unmarshaling: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("model_name", "static")
	v.SetDefault("model_host", "http://localhost:11434")
	v.SetDefault("vector_dim", 256)
	v.SetDefault("confidence_threshold", 0.5)
	v.SetDefault("max_alternatives", 3)
	v.SetDefault("request_timeout_ms", 2000)
	v.SetDefault("max_inflight", 64)
	v.SetDefault("bind_addr", "0.0.0.0")
	v.SetDefault("bind_port", 8080)
	v.SetDefault("artifact_format", "json")
	v.SetDefault("watch_artifact", false)
	v.SetDefault("log_level", "info")
}

// bindEnvironmentVariables binds the upper-snake-case environment variable
// names the service is configured through explicitly, since viper's
// automatic key replacement alone would only derive MODEL_NAME-shaped
// names from the mapstructure tags, and a few of ours (REQUEST_TIMEOUT_MS)
// need an explicit bind to line up with the millisecond decode hook below.
func bindEnvironmentVariables(v *viper.Viper) {
	binds := map[string]string{
		"model_name":           "MODEL_NAME",
		"model_host":           "MODEL_HOST",
		"vector_dim":           "VECTOR_DIM",
		"confidence_threshold": "CONFIDENCE_THRESHOLD",
		"max_alternatives":     "MAX_ALTERNATIVES",
		"request_timeout_ms":   "REQUEST_TIMEOUT_MS",
		"max_inflight":         "MAX_INFLIGHT",
		"bind_addr":            "BIND_ADDR",
		"bind_port":            "BIND_PORT",
		"artifact_path":        "ARTIFACT_PATH",
		"artifact_format":      "ARTIFACT_FORMAT",
		"watch_artifact":       "WATCH_ARTIFACT",
		"log_level":            "LOG_LEVEL",
	}
	for key, env := range binds {
		_ = v.BindEnv(key, env)
	}
}

// durationFromMillisHook lets REQUEST_TIMEOUT_MS be supplied as a plain
// integer in milliseconds while still decoding into a time.Duration field.
func durationFromMillisHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to != reflect.TypeOf(time.Duration(0)) {
		return data, nil
	}
	switch from.Kind() {
	case reflect.Int, reflect.Int32, reflect.Int64:
		ms := reflect.ValueOf(data).Convert(reflect.TypeOf(int64(0))).Int()
		return time.Duration(ms) * time.Millisecond, nil
	case reflect.String:
		ms, err := strconv.ParseInt(strings.TrimSpace(reflect.ValueOf(data).String()), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("config: request_timeout_ms %q is not an integer number of milliseconds", reflect.ValueOf(data).String())
		}
		return time.Duration(ms) * time.Millisecond, nil
	default:
		return data, nil
	}
}

var _ mapstructure.DecodeHookFunc = durationFromMillisHook

func validate(cfg *Config) error {
	var problems []string

	if cfg.VectorDim <= 0 {
		problems = append(problems, "vector_dim must be positive")
	}
	if cfg.ConfidenceThreshold < 0 || cfg.ConfidenceThreshold > 1 {
		problems = append(problems, "confidence_threshold must be between 0 and 1")
	}
	if cfg.MaxAlternatives < 0 {
		problems = append(problems, "max_alternatives must not be negative")
	}
	if cfg.MaxInflight <= 0 {
		problems = append(problems, "max_inflight must be positive")
	}
	if cfg.ArtifactFormat != "json" && cfg.ArtifactFormat != "sqlite" {
		problems = append(problems, "artifact_format must be \"json\" or \"sqlite\"")
	}

	if len(problems) > 0 {
		return fmt.Errorf("config: invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
