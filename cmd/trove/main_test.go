package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"trove/internal/config"
	"trove/internal/daemon"
	"trove/internal/index"
	"trove/internal/ipc"
	"trove/internal/logging"
	"trove/internal/state"
)

type cliTestEnv struct {
	cfg        *config.Config
	daemon     *daemon.Daemon
	indexStore *index.Store
	socketPath string
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))

	stateDir := filepath.Join(base, "state")
	logDir := filepath.Join(base, "logs")
	watchRoot := filepath.Join(base, "tree")
	for _, dir := range []string{stateDir, logDir, watchRoot, filepath.Join(base, "home")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}

	configPath := filepath.Join(base, "trove.toml")
	content := fmt.Sprintf(`[paths]
state_dir = %q
log_dir = %q

[watch]
root = %q
debounce_ms = 50
`, stateDir, logDir, watchRoot)
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}

	indexStore, err := index.Open(cfg)
	if err != nil {
		t.Fatalf("index.Open: %v", err)
	}
	t.Cleanup(func() { indexStore.Close() })

	stateStore, err := state.Open(cfg)
	if err != nil {
		t.Fatalf("state.Open: %v", err)
	}
	t.Cleanup(func() { stateStore.Close() })

	d, err := daemon.New(cfg, indexStore, stateStore, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Shutdown(context.Background()) })

	server, err := ipc.NewServer(context.Background(), cfg.SocketPath(), d, logging.NewNop())
	if err != nil {
		t.Fatalf("ipc.NewServer: %v", err)
	}
	server.Serve()
	t.Cleanup(server.Close)

	return &cliTestEnv{
		cfg:        cfg,
		daemon:     d,
		indexStore: indexStore,
		socketPath: cfg.SocketPath(),
		configPath: configPath,
	}
}

func runCLI(t *testing.T, args []string, socketPath, configPath string) (string, error) {
	t.Helper()

	cmd := newRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(append(args, "--socket", socketPath, "--config", configPath))
	err := cmd.Execute()
	return buf.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}

func TestPingCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := runCLI(t, []string{"ping"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("ping: %v", err)
	}
	requireContains(t, out, "Daemon alive")
	requireContains(t, out, daemon.Version)
}

func TestStatusCommandAgainstRunningDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	out, err := runCLI(t, []string{"status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Not running")

	if err := env.daemon.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	out, err = runCLI(t, []string{"status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Running (pid")
	requireContains(t, out, "Watching "+env.cfg.Watch.Root)
	requireContains(t, out, "Files")
}

func TestRenderIndexTableFormatsSizes(t *testing.T) {
	out := renderIndexTable(3, 2048, "never")
	requireContains(t, out, "Files")
	requireContains(t, out, "2.0 kB")
	requireContains(t, out, "never")
}

func TestStatusCommandWithoutSocket(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := runCLI(t, []string{"status"}, filepath.Join(t.TempDir(), "absent.sock"), env.configPath)
	if err != nil {
		t.Fatalf("status without daemon should not fail: %v", err)
	}
	requireContains(t, out, "Not running")
}

func TestStatsCommandJSON(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	if err := env.daemon.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	out, err := runCLI(t, []string{"stats", "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	requireContains(t, out, `"files_indexed"`)
	requireContains(t, out, `"total_bytes"`)
}

func TestIndexCommandStartsScan(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	if err := env.daemon.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := os.WriteFile(filepath.Join(env.cfg.Watch.Root, "f.txt"), []byte("data"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	out, err := runCLI(t, []string{"index"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	requireContains(t, out, "Indexing started")

	out, err = runCLI(t, []string{"index", "stop"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("index stop: %v", err)
	}
	requireContains(t, out, "Indexing stopped")
}

func TestIndexCommandRefusedWhenDaemonStopped(t *testing.T) {
	env := setupCLITestEnv(t)

	_, err := runCLI(t, []string{"index"}, env.socketPath, env.configPath)
	if err == nil {
		t.Fatal("index should fail when the daemon is not running")
	}
	requireContains(t, err.Error(), "not running")
}

func TestConfigValidateAndInit(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := runCLI(t, []string{"config", "validate"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, err = runCLI(t, []string{"config", "init", "--path", target}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config missing: %v", err)
	}

	if _, err := runCLI(t, []string{"config", "init", "--path", target}, env.socketPath, env.configPath); err == nil {
		t.Fatal("config init should refuse to overwrite without --overwrite")
	}
}
