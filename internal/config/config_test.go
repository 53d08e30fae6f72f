package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.yaml")

	t.Run("defaults", func(t *testing.T) {
		cfg, err := LoadFile(missing)
		if err != nil {
			t.Fatalf("LoadFile() error = %v", err)
		}

		if cfg.Server.Port != 8000 {
			t.Errorf("port = %v, want 8000", cfg.Server.Port)
		}
		if cfg.Server.Addr() != "localhost:8000" {
			t.Errorf("addr = %q, want localhost:8000", cfg.Server.Addr())
		}
		if cfg.Projects.File != "hooks.conf.json" {
			t.Errorf("projects file = %q, want hooks.conf.json", cfg.Projects.File)
		}
		if cfg.Deploy.Timeout != 10*time.Minute {
			t.Errorf("deploy timeout = %v, want 10m", cfg.Deploy.Timeout)
		}
		if cfg.Deploy.Concurrency != ConcurrencyQueue {
			t.Errorf("concurrency = %q, want queue", cfg.Deploy.Concurrency)
		}
		if cfg.Deploy.Shell != "sh" {
			t.Errorf("shell = %q, want sh", cfg.Deploy.Shell)
		}
		if cfg.Storage.Type != "sqlite" {
			t.Errorf("storage type = %q, want sqlite", cfg.Storage.Type)
		}
		if len(cfg.Auth.KeyHashes) != 0 {
			t.Errorf("expected auth disabled by default, got %v", cfg.Auth.KeyHashes)
		}
	})

	t.Run("env var overrides", func(t *testing.T) {
		t.Setenv("DEPLOYHOOK_SERVER__PORT", "9000")
		t.Setenv("DEPLOYHOOK_DEPLOY__TIMEOUT", "30s")
		t.Setenv("DEPLOYHOOK_DEPLOY__CONCURRENCY", "reject")

		cfg, err := LoadFile(missing)
		if err != nil {
			t.Fatalf("LoadFile() error = %v", err)
		}

		if cfg.Server.Port != 9000 {
			t.Errorf("port = %v, want 9000", cfg.Server.Port)
		}
		if cfg.Deploy.Timeout != 30*time.Second {
			t.Errorf("deploy timeout = %v, want 30s", cfg.Deploy.Timeout)
		}
		if cfg.Deploy.Concurrency != ConcurrencyReject {
			t.Errorf("concurrency = %q, want reject", cfg.Deploy.Concurrency)
		}
	})

	t.Run("file values", func(t *testing.T) {
		path := writeFile(t, "config.yaml", `
server:
  host: 0.0.0.0
  port: 8081
projects:
  file: /etc/deployhook/hooks.yaml
storage:
  type: memory
auth:
  key_hashes:
    - abc123
`)

		cfg, err := LoadFile(path)
		if err != nil {
			t.Fatalf("LoadFile() error = %v", err)
		}

		if cfg.Server.Addr() != "0.0.0.0:8081" {
			t.Errorf("addr = %q, want 0.0.0.0:8081", cfg.Server.Addr())
		}
		if cfg.Projects.File != "/etc/deployhook/hooks.yaml" {
			t.Errorf("projects file = %q", cfg.Projects.File)
		}
		if cfg.Storage.Type != "memory" {
			t.Errorf("storage type = %q, want memory", cfg.Storage.Type)
		}
		if len(cfg.Auth.KeyHashes) != 1 || cfg.Auth.KeyHashes[0] != "abc123" {
			t.Errorf("key hashes = %v", cfg.Auth.KeyHashes)
		}
	})

	t.Run("invalid concurrency", func(t *testing.T) {
		t.Setenv("DEPLOYHOOK_DEPLOY__CONCURRENCY", "parallel")

		if _, err := LoadFile(missing); err == nil {
			t.Fatal("expected error for unknown concurrency policy")
		}
	})

	t.Run("invalid storage type", func(t *testing.T) {
		t.Setenv("DEPLOYHOOK_STORAGE__TYPE", "postgres")

		if _, err := LoadFile(missing); err == nil {
			t.Fatal("expected error for unknown storage type")
		}
	})

	t.Run("path substitution", func(t *testing.T) {
		t.Setenv("DEPLOYHOOK_TEST_DIR", "/srv/hooks")
		path := writeFile(t, "config.yaml", "projects:\n  file: ${DEPLOYHOOK_TEST_DIR}/hooks.conf.json\n")

		cfg, err := LoadFile(path)
		if err != nil {
			t.Fatalf("LoadFile() error = %v", err)
		}
		if cfg.Projects.File != "/srv/hooks/hooks.conf.json" {
			t.Errorf("projects file = %q", cfg.Projects.File)
		}
	})
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR", "test-value")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "simple substitution",
			input: "${TEST_VAR}",
			want:  "test-value",
		},
		{
			name:  "substitution in string",
			input: "prefix-${TEST_VAR}-suffix",
			want:  "prefix-test-value-suffix",
		},
		{
			name:  "no substitution",
			input: "plain-string",
			want:  "plain-string",
		},
		{
			name:  "undefined var",
			input: "${UNDEFINED_VAR}",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := substituteEnvVars(tt.input)
			if got != tt.want {
				t.Errorf("substituteEnvVars() = %v, want %v", got, tt.want)
			}
		})
	}
}
