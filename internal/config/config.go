// Package config loads the etl run configuration.
//
// Layers, lowest to highest precedence:
//  1. built-in defaults (Default)
//  2. optional YAML file
//  3. SPARKIFY_* environment variables
//  4. explicit overrides (CLI flags)
//
// Environment names map to keys by dropping the prefix and turning the first
// underscore into a dot: SPARKIFY_INPUT_SONG_DIR -> input.song_dir.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"sparkify/internal/metrics"
)

// EnvPrefix selects the environment variables read by Load.
const EnvPrefix = "SPARKIFY_"

type Config struct {
	Job     string  `koanf:"job" validate:"required"`
	Storage Storage `koanf:"storage"`
	Input   Input   `koanf:"input"`
	Runtime Runtime `koanf:"runtime"`
	Log     Log     `koanf:"log"`
	Metrics Metrics `koanf:"metrics"`
}

type Storage struct {
	// Kind is a registered backend: postgres | sqlite | mssql | memory.
	Kind string `koanf:"kind" validate:"required,oneof=postgres sqlite mssql memory"`
	DSN  string `koanf:"dsn"`
}

type Input struct {
	SongDir   string `koanf:"song_dir" validate:"required_without=LogDir"`
	LogDir    string `koanf:"log_dir"`
	Extension string `koanf:"extension" validate:"required,startswith=."`
}

type Runtime struct {
	// DurationTolerance is the absolute window, in seconds, for matching a
	// logged song length against a stored song duration.
	DurationTolerance float64 `koanf:"duration_tolerance" validate:"gt=0"`
	ContinueOnError   bool    `koanf:"continue_on_error"`
	DryRun            bool    `koanf:"dry_run"`
}

type Log struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

type Metrics struct {
	// Backend is none | datadog | pushgateway.
	Backend        string        `koanf:"backend" validate:"oneof=none datadog pushgateway"`
	PushgatewayURL string        `koanf:"pushgateway_url" validate:"required_if=Backend pushgateway,omitempty,url"`
	Tags           []string      `koanf:"tags"`
	FlushEvery     time.Duration `koanf:"flush_every" validate:"gte=0"`
}

// Default returns the built-in configuration layer.
func Default() Config {
	return Config{
		Job:     "sparkify_etl",
		Storage: Storage{Kind: "sqlite", DSN: "sparkify.db"},
		Input: Input{
			SongDir:   "data/song_data",
			LogDir:    "data/log_data",
			Extension: ".json",
		},
		Runtime: Runtime{DurationTolerance: 1e-4},
		Log:     Log{Level: "info", Format: "console"},
		Metrics: Metrics{
			Backend:        "none",
			PushgatewayURL: "http://localhost:9091",
			FlushEvery:     60 * time.Second,
		},
	}
}

// sliceKeys are parsed from comma-separated strings when set by env or flag.
var sliceKeys = []string{"metrics.tags"}

// Load merges every layer and validates the result. path may be empty;
// overrides maps dotted keys (e.g. "storage.dsn") to values.
func Load(path string, overrides map[string]any) (*Config, error) {
	k := koanf.New(".")

	defaults := Default()
	if err := k.Load(structs.Provider(&defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if strings.TrimSpace(path) != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	for key, v := range overrides {
		if err := k.Set(key, v); err != nil {
			return nil, fmt.Errorf("override %s: %w", key, err)
		}
	}

	if err := splitSlices(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envKey maps SPARKIFY_SECTION_FIELD_NAME to section.field_name.
func envKey(name string) string {
	key := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	return strings.Replace(key, "_", ".", 1)
}

func splitSlices(k *koanf.Koanf) error {
	for _, key := range sliceKeys {
		s, ok := k.Get(key).(string)
		if !ok {
			continue
		}
		if err := k.Set(key, metrics.ParseTagsCSV(s)); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints. Every violation is reported, one per
// line, as "<key>: <rule>".
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		msgs = append(msgs, fmt.Sprintf("%s: %s", fieldKey(fe.Namespace()), rule))
	}
	return fmt.Errorf("invalid config:\n  %s", strings.Join(msgs, "\n  "))
}

// fieldKey turns "Config.Input.SongDir" into "Input.SongDir".
func fieldKey(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
