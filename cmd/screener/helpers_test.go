package main

import (
	"bytes"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"screener/internal/config"
	"screener/internal/daemon"
	"screener/internal/gateway"
	"screener/internal/testsupport"
	"screener/internal/workflow"
)

type cliTestEnv struct {
	cfg        *config.Config
	pipeline   *testsupport.Pipeline
	server     *httptest.Server
	configPath string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.PipelineOption) *cliTestEnv {
	t.Helper()

	pipeline := testsupport.NewPipeline(t, opts...)
	cfg := pipeline.Config(t)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	exec := workflow.NewExecutor(workflow.BuildStages(cfg, workflow.NewTaskClient(cfg, nil, nil), nil), nil)
	d, err := daemon.New(cfg, gateway.New(exec, nil, nil), exec, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	server := httptest.NewServer(d.Handler())
	t.Cleanup(server.Close)

	return &cliTestEnv{cfg: cfg, pipeline: pipeline, server: server, configPath: configPath}
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return runCLI(t, args, e.server.URL, e.configPath)
}

func runCLI(t *testing.T, args []string, server, configPath string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if server != "" {
		flags = append(flags, "--server", server)
	}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
