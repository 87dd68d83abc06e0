package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"simloop/internal/config"
	"simloop/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	cfg.Logging.Level = "error"
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath}
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

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}

func TestSimsListsBuiltins(t *testing.T) {
	out, _, err := runCLI(t, []string{"sims", "--json"}, "")
	if err != nil {
		t.Fatalf("sims: %v", err)
	}
	var infos []struct{ Name, Title string }
	if err := json.Unmarshal([]byte(out), &infos); err != nil {
		t.Fatalf("decode sims json: %v\n%s", err, out)
	}
	if len(infos) != 2 || infos[0].Name != "orbit" || infos[1].Name != "ripple" {
		t.Fatalf("unexpected simulations %+v", infos)
	}

	out, _, err = runCLI(t, []string{"sims"}, "")
	if err != nil {
		t.Fatalf("sims: %v", err)
	}
	requireContains(t, out, "Ripple")
}

func TestConfigInitShowValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected second init without --overwrite to fail")
	}

	out, _, err = runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, env.cfg.Paths.CaptureDir)

	out, _, err = runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
}

func TestRunWithoutCapture(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"run", "--frames", "4", "--no-capture"}, env.configPath)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	requireContains(t, out, "Simulation: orbit")
	requireContains(t, out, "Frames presented: 4")
}

func TestRunRejectsBadSet(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, []string{"run", "--frames", "1", "--set", "speed"}, env.configPath); err == nil {
		t.Fatal("expected error for --set without a value")
	}
}

func TestSnapshotAndSessions(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"snapshot", "--sim", "ripple", "--format", "jpeg"}, env.configPath)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	requireContains(t, out, "Captured jpeg:")
	clip := filepath.Join(env.cfg.Paths.CaptureDir, "clip1.jpg")
	if _, err := os.Stat(clip); err != nil {
		t.Fatalf("expected snapshot at %s: %v", clip, err)
	}

	out, _, err = runCLI(t, []string{"sessions", "list", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("sessions list: %v", err)
	}
	var views []sessionView
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatalf("decode sessions: %v\n%s", err, out)
	}
	if len(views) != 1 || views[0].Status != "completed" || views[0].Simulation != "ripple" || views[0].OutputPath != clip {
		t.Fatalf("unexpected sessions %+v", views)
	}

	out, _, err = runCLI(t, []string{"sessions", "show", views[0].ID}, env.configPath)
	if err != nil {
		t.Fatalf("sessions show: %v", err)
	}
	requireContains(t, out, views[0].ID)

	exportDir := t.TempDir()
	out, _, err = runCLI(t, []string{"sessions", "export", views[0].ID, exportDir}, env.configPath)
	if err != nil {
		t.Fatalf("sessions export: %v", err)
	}
	requireContains(t, out, "Exported")
	exported, err := os.ReadFile(filepath.Join(exportDir, "clip1.jpg"))
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	original, _ := os.ReadFile(clip)
	if !bytes.Equal(exported, original) {
		t.Fatal("exported snapshot differs from capture")
	}
	if _, _, err := runCLI(t, []string{"sessions", "export", views[0].ID, exportDir, "--archive"}, env.configPath); err == nil {
		t.Fatal("expected error exporting a session without an archive")
	}

	out, _, err = runCLI(t, []string{"sessions", "prune", "--older-than", "0s"}, env.configPath)
	if err != nil {
		t.Fatalf("sessions prune: %v", err)
	}
	requireContains(t, out, "Removed 1 session(s)")

	out, _, err = runCLI(t, []string{"sessions", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("sessions list: %v", err)
	}
	requireContains(t, out, "No capture sessions recorded")
}

func TestSessionsShowIncludesSnapshotPayload(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, []string{"snapshot", "--sim", "orbit", "--set", "speed=3"}, env.configPath); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	out, _, err := runCLI(t, []string{"sessions", "list", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("sessions list: %v", err)
	}
	var views []sessionView
	if err := json.Unmarshal([]byte(out), &views); err != nil || len(views) != 1 {
		t.Fatalf("decode sessions: %v\n%s", err, out)
	}
	if views[0].Payload != "" {
		t.Fatal("list output should not read snapshot files")
	}

	out, _, err = runCLI(t, []string{"sessions", "show", views[0].ID}, env.configPath)
	if err != nil {
		t.Fatalf("sessions show: %v", err)
	}
	var shown sessionView
	if err := json.Unmarshal([]byte(out), &shown); err != nil {
		t.Fatalf("decode show: %v\n%s", err, out)
	}
	for _, want := range []string{"orbit", "speed", "3"} {
		if !strings.Contains(shown.Payload, want) {
			t.Fatalf("payload %q missing %q", shown.Payload, want)
		}
	}
}

func TestDepsReportsOptionalFFmpeg(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithCapture("gif", 0))
	t.Setenv("PATH", "")

	out, _, err := runCLI(t, []string{"deps"}, env.configPath)
	if err != nil {
		t.Fatalf("deps: %v\n%s", err, out)
	}
	requireContains(t, out, "FFmpeg")
	requireContains(t, out, "MISSING")
}

func TestDepsFailsWhenVideoNeedsFFmpeg(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithCapture("h265", 0))
	t.Setenv("PATH", "")

	out, _, err := runCLI(t, []string{"deps"}, env.configPath)
	if err == nil {
		t.Fatal("expected deps to fail without ffmpeg")
	}
	requireContains(t, out, "FAIL")
}

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{"speed=2", " radius = 0.4 ", "label=a=b"})
	if err != nil {
		t.Fatalf("parseParams: %v", err)
	}
	want := map[string]string{"speed": "2", "radius": "0.4", "label": "a=b"}
	for k, v := range want {
		if params[k] != v {
			t.Fatalf("params[%q] = %q, want %q", k, params[k], v)
		}
	}
	for _, bad := range []string{"novalue", "=3"} {
		if _, err := parseParams([]string{bad}); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
