package config

import (
	"runtime"
	"time"
)

// Config represents the complete tierup configuration.
type Config struct {
	Service    ServiceConfig    `yaml:"service"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Simulation SimulationConfig `yaml:"simulation"`
	API        APIConfig        `yaml:"api,omitempty"`
	Journal    JournalConfig    `yaml:"journal,omitempty"`

	// Source is the absolute path the config was loaded from and Fingerprint
	// its BLAKE3 hash. Both are empty for Defaults().
	Source      string `yaml:"-"`
	Fingerprint string `yaml:"-"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name      string `yaml:"name"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// SchedulerConfig sizes the shared compile executor.
type SchedulerConfig struct {
	// QueueLength is the input queue capacity shared by every context.
	QueueLength int `yaml:"queue_length"`
	// MaxThreads raises the worker slot count. 0 uses the platform worker count.
	MaxThreads int `yaml:"max_threads"`
	// WorkerThreads sizes the platform pool. 0 means NumCPU-1.
	WorkerThreads      int           `yaml:"worker_threads"`
	RecompilationDelay time.Duration `yaml:"recompilation_delay"`
	Trace              bool          `yaml:"trace"`
}

// SimulationConfig drives the synthetic workload of `tierup simulate`.
type SimulationConfig struct {
	Contexts  int `yaml:"contexts"`
	Functions int `yaml:"functions"`
	// Rate is submissions per second per context. 0 disables pacing.
	Rate            float64       `yaml:"rate"`
	Burst           int           `yaml:"burst"`
	PrioritizeEvery int           `yaml:"prioritize_every"`
	InstallEvery    int           `yaml:"install_every"`
	TeardownEvery   int           `yaml:"teardown_every"`
	EfficiencyEvery int           `yaml:"efficiency_every"`
	PayloadBytes    int           `yaml:"payload_bytes"`
	WorkRounds      int           `yaml:"work_rounds"`
	Timeout         time.Duration `yaml:"timeout"`
}

// APIConfig defines the stats HTTP server settings.
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
	// Token, when set, is required as a bearer token on every route but /healthz.
	Token string `yaml:"token,omitempty"`
}

// JournalConfig defines where scheduler events are persisted.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Defaults returns a configuration with sensible default values.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "tierup",
			LogLevel:  "info",
			LogFormat: "text",
		},
		Scheduler: SchedulerConfig{
			QueueLength:   1024,
			WorkerThreads: max(runtime.NumCPU()-1, 1),
		},
		Simulation: SimulationConfig{
			Contexts:        4,
			Functions:       200,
			Rate:            0,
			Burst:           1,
			PrioritizeEvery: 10,
			InstallEvery:    8,
			TeardownEvery:   4,
			EfficiencyEvery: 3,
			PayloadBytes:    4096,
			WorkRounds:      64,
			Timeout:         time.Minute,
		},
		API: APIConfig{
			Enabled: false,
			Listen:  "127.0.0.1:8181",
		},
		Journal: JournalConfig{
			Enabled: false,
			Path:    "./data/journal.db",
		},
	}
}
