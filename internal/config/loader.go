package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads and parses configuration from a file. Missing keys keep their
// Defaults() values.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}
	if info.IsDir() {
		absPath = filepath.Join(absPath, "config.yaml")
		if _, err := os.Stat(absPath); err != nil {
			return nil, fmt.Errorf("directory provided but config.yaml not found: %s", absPath)
		}
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.Source = absPath
	cfg.Fingerprint = HashBytes(data)
	return cfg, nil
}

// Parse decodes YAML over Defaults() and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Defaults()
	interpolated := interpolateEnv(string(data))
	if err := yaml.Unmarshal([]byte(interpolated), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DiscoverConfigPath finds a config file by checking standard locations.
// Priority order: $TIERUP_CONFIG, ~/.config/tierup/config.yaml, ./config.yaml.
// An empty path means none was found and Defaults() should be used.
func DiscoverConfigPath() string {
	if p := os.Getenv("TIERUP_CONFIG"); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		p := filepath.Join(homeDir, ".config", "tierup", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	if _, err := os.Stat("./config.yaml"); err == nil {
		return "./config.yaml"
	}
	return ""
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is (not expanded).
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		// Left in place; validate rejects it where it matters.
		return match
	})
}

// validate performs basic validation on the configuration.
func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Service.LogLevel] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}
	if cfg.Service.LogFormat != "json" && cfg.Service.LogFormat != "text" {
		return fmt.Errorf("service.log_format must be json or text (got %q)", cfg.Service.LogFormat)
	}

	s := cfg.Scheduler
	if s.QueueLength <= 0 {
		return fmt.Errorf("scheduler.queue_length must be positive")
	}
	if s.MaxThreads < 0 {
		return fmt.Errorf("scheduler.max_threads must not be negative")
	}
	if s.WorkerThreads < 0 {
		return fmt.Errorf("scheduler.worker_threads must not be negative")
	}
	if s.RecompilationDelay < 0 {
		return fmt.Errorf("scheduler.recompilation_delay must not be negative")
	}

	sim := cfg.Simulation
	if sim.Contexts <= 0 {
		return fmt.Errorf("simulation.contexts must be positive")
	}
	if sim.Functions <= 0 {
		return fmt.Errorf("simulation.functions must be positive")
	}
	if sim.Rate < 0 {
		return fmt.Errorf("simulation.rate must not be negative")
	}
	if sim.Rate > 0 && sim.Burst <= 0 {
		return fmt.Errorf("simulation.burst must be positive when rate is set")
	}
	for name, v := range map[string]int{
		"prioritize_every": sim.PrioritizeEvery,
		"install_every":    sim.InstallEvery,
		"teardown_every":   sim.TeardownEvery,
		"efficiency_every": sim.EfficiencyEvery,
		"payload_bytes":    sim.PayloadBytes,
		"work_rounds":      sim.WorkRounds,
	} {
		if v < 0 {
			return fmt.Errorf("simulation.%s must not be negative", name)
		}
	}

	if cfg.API.Enabled && cfg.API.Listen == "" {
		return fmt.Errorf("api.listen is required when api is enabled")
	}
	if m := envVarPattern.FindStringSubmatch(cfg.API.Token); len(m) > 1 {
		return fmt.Errorf("api.token: environment variable ${%s} is not set", m[1])
	}
	if cfg.Journal.Enabled && cfg.Journal.Path == "" {
		return fmt.Errorf("journal.path is required when journal is enabled")
	}
	return nil
}
