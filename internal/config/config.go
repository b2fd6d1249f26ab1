package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type InputConfig struct {
	FilterMeta bool `yaml:"filter_meta"`
}

type PlannerConfig struct {
	MaxUnitChars int `yaml:"max_unit_chars"`
}

type StoreConfig struct {
	Dir string `yaml:"dir"`
}

type EngineConfig struct {
	Name       string `yaml:"name"`
	Language   string `yaml:"language"`
	Voice      string `yaml:"voice"`
	SampleRate int    `yaml:"sample_rate"`
	Command    string `yaml:"command"`
	Endpoint   string `yaml:"endpoint"`
	ModelDir   string `yaml:"model_dir"`
	PiperBin   string `yaml:"piper_bin"`
	TimeoutMS  int    `yaml:"timeout_ms"`
}

type PipelineConfig struct {
	MaxRetries       int `yaml:"max_retries"`
	RetryBaseDelayMS int `yaml:"retry_base_delay_ms"`
}

type LedgerConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxRuns       int    `yaml:"max_runs"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type OutputConfig struct {
	EncoderCommand string `yaml:"encoder_command"`
}

type Config struct {
	AppName     string          `yaml:"app_name"`
	Environment string          `yaml:"environment"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Input       InputConfig     `yaml:"input"`
	Planner     PlannerConfig   `yaml:"planner"`
	Store       StoreConfig     `yaml:"store"`
	Engine      EngineConfig    `yaml:"engine"`
	Pipeline    PipelineConfig  `yaml:"pipeline"`
	Ledger      LedgerConfig    `yaml:"ledger"`
	Output      OutputConfig    `yaml:"output"`
}

// Engines is the closed set of synthesis backends.
var Engines = []string{"silero", "piper", "edge", "kokoro", "xtts", "chatterbox", "mock"}

func Default() Config {
	return Config{
		AppName:     "inkvoice",
		Environment: "development",
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: "",
		},
		Input: InputConfig{
			FilterMeta: false,
		},
		Planner: PlannerConfig{
			MaxUnitChars: 1000,
		},
		Store: StoreConfig{
			Dir: "./data/chunks",
		},
		Engine: EngineConfig{
			Name:       "silero",
			Language:   "ru",
			Voice:      "",
			SampleRate: 48000,
			Command:    "python3 -m inkvoice_helpers.silero",
			ModelDir:   "./data/piper-models",
			PiperBin:   "piper",
			TimeoutMS:  120000,
		},
		Pipeline: PipelineConfig{
			MaxRetries:       5,
			RetryBaseDelayMS: 5000,
		},
		Ledger: LedgerConfig{
			Path:          "./data/inkvoice-runs.db",
			RetentionMode: "persistent",
			RetentionDays: 90,
			MaxRuns:       1000,
		},
		Output: OutputConfig{
			EncoderCommand: "ffmpeg -y -i {in} {out}",
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.AppName, "INKVOICE_APP_NAME")
	overrideString(&cfg.Environment, "INKVOICE_ENVIRONMENT")
	overrideString(&cfg.Telemetry.LogLevel, "INKVOICE_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "INKVOICE_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "INKVOICE_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "INKVOICE_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Input.FilterMeta, "INKVOICE_INPUT_FILTER_META")
	overrideInt(&cfg.Planner.MaxUnitChars, "INKVOICE_PLANNER_MAX_UNIT_CHARS")
	overrideString(&cfg.Store.Dir, "INKVOICE_STORE_DIR")
	overrideString(&cfg.Engine.Name, "INKVOICE_ENGINE_NAME")
	overrideString(&cfg.Engine.Language, "INKVOICE_ENGINE_LANGUAGE")
	overrideString(&cfg.Engine.Voice, "INKVOICE_ENGINE_VOICE")
	overrideInt(&cfg.Engine.SampleRate, "INKVOICE_ENGINE_SAMPLE_RATE")
	overrideString(&cfg.Engine.Command, "INKVOICE_ENGINE_COMMAND")
	overrideString(&cfg.Engine.Endpoint, "INKVOICE_ENGINE_ENDPOINT")
	overrideString(&cfg.Engine.ModelDir, "INKVOICE_ENGINE_MODEL_DIR")
	overrideString(&cfg.Engine.PiperBin, "INKVOICE_ENGINE_PIPER_BIN")
	overrideInt(&cfg.Engine.TimeoutMS, "INKVOICE_ENGINE_TIMEOUT_MS")
	overrideInt(&cfg.Pipeline.MaxRetries, "INKVOICE_PIPELINE_MAX_RETRIES")
	overrideInt(&cfg.Pipeline.RetryBaseDelayMS, "INKVOICE_PIPELINE_RETRY_BASE_DELAY_MS")
	overrideString(&cfg.Ledger.Path, "INKVOICE_LEDGER_PATH")
	overrideString(&cfg.Ledger.RetentionMode, "INKVOICE_LEDGER_RETENTION_MODE")
	overrideInt(&cfg.Ledger.RetentionDays, "INKVOICE_LEDGER_RETENTION_DAYS")
	overrideInt(&cfg.Ledger.MaxRuns, "INKVOICE_LEDGER_MAX_RUNS")
	overrideBool(&cfg.Ledger.VacuumOnStart, "INKVOICE_LEDGER_VACUUM_ON_START")
	overrideString(&cfg.Output.EncoderCommand, "INKVOICE_OUTPUT_ENCODER_COMMAND")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func validate(cfg Config) error {
	if cfg.AppName == "" {
		return errors.New("app_name must not be empty")
	}
	if cfg.Planner.MaxUnitChars <= 0 {
		return errors.New("planner.max_unit_chars must be positive")
	}
	if cfg.Store.Dir == "" {
		return errors.New("store.dir must not be empty")
	}
	known := false
	for _, name := range Engines {
		if cfg.Engine.Name == name {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("engine.name must be one of %s", strings.Join(Engines, "|"))
	}
	if cfg.Engine.Language == "" {
		return errors.New("engine.language must not be empty")
	}
	if cfg.Engine.SampleRate <= 0 {
		return errors.New("engine.sample_rate must be positive")
	}
	switch cfg.Engine.Name {
	case "silero", "xtts", "chatterbox":
		if cfg.Engine.Command == "" {
			return fmt.Errorf("engine.command must be set for engine %s", cfg.Engine.Name)
		}
	case "edge", "kokoro":
		if cfg.Engine.Endpoint == "" {
			return fmt.Errorf("engine.endpoint must be set for engine %s", cfg.Engine.Name)
		}
	}
	if cfg.Pipeline.MaxRetries < 0 {
		return errors.New("pipeline.max_retries must be >= 0")
	}
	if cfg.Pipeline.RetryBaseDelayMS <= 0 {
		return errors.New("pipeline.retry_base_delay_ms must be positive")
	}
	switch cfg.Ledger.RetentionMode {
	case "off", "session", "persistent":
		// ok
	default:
		return errors.New("ledger.retention_mode must be one of off|session|persistent")
	}
	if cfg.Ledger.RetentionMode == "persistent" && cfg.Ledger.Path == "" {
		return errors.New("ledger.path must not be empty")
	}
	if cfg.Ledger.RetentionDays < 0 {
		return errors.New("ledger.retention_days must be >= 0")
	}
	if cfg.Output.EncoderCommand != "" && !strings.Contains(cfg.Output.EncoderCommand, "{in}") {
		return errors.New("output.encoder_command must reference the {in} placeholder")
	}
	return nil
}
