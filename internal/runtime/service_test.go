package runtime

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tjfontaine/deployhook/internal/auth"
	"github.com/tjfontaine/deployhook/internal/config"
	"github.com/tjfontaine/deployhook/internal/domain"
	"github.com/tjfontaine/deployhook/internal/project"
	"github.com/tjfontaine/deployhook/internal/server"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 0},
		Deploy: config.DeployConfig{
			Timeout:        10 * time.Second,
			Concurrency:    config.ConcurrencyQueue,
			Shell:          "sh",
			MaxOutputBytes: 1024,
		},
		Storage: config.StorageConfig{Type: "memory"},
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeDeployScript(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "deploy.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	if err := os.Chmod(path, 0o755); err != nil {
		t.Fatalf("chmod script: %v", err)
	}
	return path
}

// recordingRunner counts invocations instead of spawning a shell.
type recordingRunner struct {
	scripts []string
}

func (r *recordingRunner) Run(ctx context.Context, script string) (domain.ExecResult, error) {
	r.scripts = append(r.scripts, script)
	return domain.ExecResult{ExitCode: 0}, nil
}

func TestService_New_RequiredOptions(t *testing.T) {
	if _, err := New(WithProjects(project.NewStore(nil))); err == nil ||
		err.Error() != "config required (use WithConfig)" {
		t.Errorf("Unexpected error: %v", err)
	}

	if _, err := New(WithConfig(testConfig())); err == nil ||
		err.Error() != "projects required (use WithProjects)" {
		t.Errorf("Unexpected error: %v", err)
	}

	if _, err := New(WithConfig(nil)); err == nil {
		t.Error("Expected error for nil config")
	}
}

func TestService_New_StorageFromConfig(t *testing.T) {
	tests := []struct {
		storageType string
		wantStore   bool
		wantErr     bool
	}{
		{storageType: "memory", wantStore: true},
		{storageType: "sqlite", wantStore: true},
		{storageType: "none", wantStore: false},
		{storageType: "postgres", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.storageType, func(t *testing.T) {
			cfg := testConfig()
			cfg.Storage.Type = tt.storageType
			cfg.Storage.SQLite.Path = filepath.Join(t.TempDir(), "history.db")

			svc, err := New(
				WithConfig(cfg),
				WithProjects(project.NewStore(nil)),
				WithLogger(testLogger()),
			)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			defer svc.Shutdown(context.Background())

			if (svc.store != nil) != tt.wantStore {
				t.Errorf("store present = %v, want %v", svc.store != nil, tt.wantStore)
			}
		})
	}
}

func TestService_Handler_DeployRecordsHistory(t *testing.T) {
	runner := &recordingRunner{}
	script := writeDeployScript(t, t.TempDir(), "exit 0")

	svc, err := New(
		WithConfig(testConfig()),
		WithProjects(project.NewStore(map[string]domain.Project{
			"site": {Branch: "main", Script: script},
		})),
		WithMemoryStorage(),
		WithRunner(runner),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	payload := `{"ref":"main","build_status":"success","repository":{"name":"site"},"extra":true}`
	rec := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/deploy", strings.NewReader(payload)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(runner.scripts) != 1 || runner.scripts[0] != script {
		t.Errorf("runner calls = %v", runner.scripts)
	}

	rec = httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/deploy",
		strings.NewReader(`{"ref":"dev","build_status":"success","repository":{"name":"site"}}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if len(runner.scripts) != 1 {
		t.Errorf("branch mismatch must not run the script, calls = %d", len(runner.scripts))
	}

	rec = httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/deployments?project=site", nil))
	var list server.DeploymentListResponse
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Deployments) != 2 {
		t.Fatalf("deployments = %d, want 2", len(list.Deployments))
	}
	if list.Deployments[0].ErrorKind != domain.ErrorKindBranchMismatch {
		t.Errorf("newest deployment = %+v", list.Deployments[0])
	}
	if list.Deployments[1].Status != domain.DeploymentCompleted {
		t.Errorf("oldest deployment = %+v", list.Deployments[1])
	}
}

func TestService_StartAndShutdown(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "deployed")
	script := writeDeployScript(t, dir, "echo ok > "+marker)

	cfg := testConfig()
	cfg.Auth.KeyHashes = []string{auth.HashToken("ci-secret")}

	svc, err := New(
		WithConfig(cfg),
		WithProjects(project.NewStore(map[string]domain.Project{
			"site": {Branch: "main", Script: script},
		})),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx := context.Background()
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := svc.Start(ctx); err == nil {
		t.Error("second Start should fail")
	}

	base := "http://" + svc.Addr()

	resp, err := http.Get(base + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d", resp.StatusCode)
	}

	req, _ := http.NewRequest("POST", base+"/deploy",
		strings.NewReader(`{"ref":"main","build_status":"success","repository":{"name":"site"}}`))
	req.Header.Set("Authorization", "Bearer ci-secret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("deploy status = %d", resp.StatusCode)
	}

	if data, err := os.ReadFile(marker); err != nil || string(data) != "ok\n" {
		t.Errorf("script did not run: %q, %v", data, err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := svc.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	if _, err := http.Get(base + "/healthz"); err == nil {
		t.Error("expected server to be stopped")
	}
}
