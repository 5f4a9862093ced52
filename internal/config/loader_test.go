package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		env     map[string]string
		wantErr string
		checkFn func(t *testing.T, cfg *Config)
	}{
		{
			name: "minimal config keeps defaults",
			yaml: `
service:
  name: bench
`,
			checkFn: func(t *testing.T, cfg *Config) {
				if cfg.Service.Name != "bench" {
					t.Errorf("service.name = %q", cfg.Service.Name)
				}
				if cfg.Scheduler.QueueLength != 1024 {
					t.Errorf("default queue_length not applied: %d", cfg.Scheduler.QueueLength)
				}
				if cfg.Service.LogLevel != "info" {
					t.Errorf("default log_level not applied: %q", cfg.Service.LogLevel)
				}
			},
		},
		{
			name: "scheduler section",
			yaml: `
scheduler:
  queue_length: 8
  max_threads: 3
  worker_threads: 2
  recompilation_delay: 25ms
  trace: true
`,
			checkFn: func(t *testing.T, cfg *Config) {
				s := cfg.Scheduler
				if s.QueueLength != 8 || s.MaxThreads != 3 || s.WorkerThreads != 2 {
					t.Errorf("scheduler sizes not parsed: %+v", s)
				}
				if s.RecompilationDelay != 25*time.Millisecond {
					t.Errorf("recompilation_delay = %v", s.RecompilationDelay)
				}
				if !s.Trace {
					t.Error("trace not parsed")
				}
			},
		},
		{
			name: "env var interpolation",
			yaml: `
api:
  enabled: true
  listen: ${LISTEN_ADDR}
  token: ${API_TOKEN}
journal:
  enabled: true
  path: ${JOURNAL_PATH}
`,
			env: map[string]string{
				"LISTEN_ADDR":  "127.0.0.1:9000",
				"API_TOKEN":    "secret123",
				"JOURNAL_PATH": "/tmp/journal.db",
			},
			checkFn: func(t *testing.T, cfg *Config) {
				if cfg.API.Listen != "127.0.0.1:9000" {
					t.Errorf("env var not interpolated in api.listen: %s", cfg.API.Listen)
				}
				if cfg.API.Token != "secret123" {
					t.Error("env var not interpolated in api.token")
				}
				if cfg.Journal.Path != "/tmp/journal.db" {
					t.Errorf("env var not interpolated in journal.path: %s", cfg.Journal.Path)
				}
			},
		},
		{
			name: "missing env var fails validation",
			yaml: `
api:
  token: ${TIERUP_MISSING_VAR}
`,
			wantErr: "TIERUP_MISSING_VAR",
		},
		{
			name: "invalid log level",
			yaml: `
service:
  log_level: invalid
`,
			wantErr: "service.log_level",
		},
		{
			name: "zero queue length",
			yaml: `
scheduler:
  queue_length: 0
`,
			wantErr: "scheduler.queue_length",
		},
		{
			name: "rate without burst",
			yaml: `
simulation:
  rate: 100
  burst: 0
`,
			wantErr: "simulation.burst",
		},
		{
			name: "negative simulation knob",
			yaml: `
simulation:
  work_rounds: -1
`,
			wantErr: "simulation.work_rounds",
		},
		{
			name:    "malformed yaml",
			yaml:    "scheduler: [",
			wantErr: "failed to parse YAML",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			tmpDir := t.TempDir()
			configPath := filepath.Join(tmpDir, "config.yaml")
			if err := os.WriteFile(configPath, []byte(tt.yaml), 0644); err != nil {
				t.Fatalf("failed to write test config: %v", err)
			}

			cfg, err := Load(configPath)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Load() error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if cfg.Source != configPath {
				t.Errorf("Source = %q, want %q", cfg.Source, configPath)
			}
			if len(cfg.Fingerprint) != 64 {
				t.Errorf("Fingerprint = %q, want 64 hex chars", cfg.Fingerprint)
			}
			if tt.checkFn != nil {
				tt.checkFn(t, cfg)
			}
		})
	}
}

func TestLoadDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte("service:\n  name: dir\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load(dir) error = %v", err)
	}
	if cfg.Service.Name != "dir" {
		t.Errorf("service.name = %q", cfg.Service.Name)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDefaultsAreValid(t *testing.T) {
	if err := validate(Defaults()); err != nil {
		t.Fatalf("Defaults() does not validate: %v", err)
	}
}

func TestDiscoverConfigPathFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tierup.yaml")
	if err := os.WriteFile(path, []byte("{}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TIERUP_CONFIG", path)

	if got := DiscoverConfigPath(); got != path {
		t.Errorf("DiscoverConfigPath() = %q, want %q", got, path)
	}
}
