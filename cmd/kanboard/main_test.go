package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/alicebob/miniredis/v2"
	"github.com/evanschultz/kanboard/internal/app"
	"github.com/evanschultz/kanboard/internal/config"
	"github.com/evanschultz/kanboard/internal/domain"
)

// TestMain sets deterministic environment defaults for CLI tests.
func TestMain(m *testing.M) {
	_ = os.Setenv("KANBOARD_DEV_MODE", "false")
	_ = os.Unsetenv("KANBOARD_CONFIG")
	_ = os.Unsetenv("KANBOARD_DB_PATH")
	_ = os.Unsetenv("KANBOARD_APP_NAME")
	os.Exit(m.Run())
}

// fakeProgram represents fake program data used by this package.
type fakeProgram struct {
	runErr error
}

// Run runs the requested command flow.
func (f fakeProgram) Run() (tea.Model, error) {
	return nil, f.runErr
}

// scriptedProgram represents program data used to exercise model flows inside run() tests.
type scriptedProgram struct {
	model tea.Model
	runFn func(tea.Model) (tea.Model, error)
}

// Run runs scripted model interactions and returns the final state.
func (p scriptedProgram) Run() (tea.Model, error) {
	if p.runFn == nil {
		return p.model, nil
	}
	return p.runFn(p.model)
}

// applyModelMsg applies one message and any resulting command chain.
func applyModelMsg(t *testing.T, model tea.Model, msg tea.Msg) tea.Model {
	t.Helper()
	updated, cmd := model.Update(msg)
	return applyModelCmd(t, updated, cmd)
}

// applyModelCmd executes one command chain to completion (bounded for safety).
func applyModelCmd(t *testing.T, model tea.Model, cmd tea.Cmd) tea.Model {
	t.Helper()
	out := model
	currentCmd := cmd
	for i := 0; i < 8 && currentCmd != nil; i++ {
		msg := currentCmd()
		updated, nextCmd := out.Update(msg)
		out = updated
		currentCmd = nextCmd
	}
	return out
}

// stubProgram swaps programFactory for the duration of one test.
func stubProgram(t *testing.T, factory func(tea.Model) program) {
	t.Helper()
	orig := programFactory
	t.Cleanup(func() { programFactory = orig })
	programFactory = factory
}

// tempPaths returns an isolated database and config path pair.
func tempPaths(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	return filepath.Join(dir, "kanboard.db"), filepath.Join(dir, "config.toml")
}

// runOK runs args and fails the test on error.
func runOK(t *testing.T, args ...string) string {
	t.Helper()
	var out strings.Builder
	if err := run(context.Background(), args, &out, io.Discard); err != nil {
		t.Fatalf("run(%v) error = %v", args, err)
	}
	return out.String()
}

// exportSnapshot exports the database at dbPath through the CLI and decodes it.
func exportSnapshot(t *testing.T, dbPath, cfgPath string) app.Snapshot {
	t.Helper()
	out := runOK(t, "--db", dbPath, "--config", cfgPath, "export")
	var snap app.Snapshot
	if err := json.Unmarshal([]byte(out), &snap); err != nil {
		t.Fatalf("Unmarshal() error = %v\n%s", err, out)
	}
	return snap
}

// TestRunVersion verifies behavior for the covered scenario.
func TestRunVersion(t *testing.T) {
	out := runOK(t, "--version")
	if !strings.Contains(out, "kanboard") || !strings.Contains(out, version) {
		t.Fatalf("expected version output, got %q", out)
	}
}

// TestRunStartsProgram verifies behavior for the covered scenario.
func TestRunStartsProgram(t *testing.T) {
	stubProgram(t, func(_ tea.Model) program { return fakeProgram{} })

	dbPath, cfgPath := tempPaths(t)
	runOK(t, "--db", dbPath, "--config", cfgPath)

	snap := exportSnapshot(t, dbPath, cfgPath)
	if len(snap.Tasks) != len(domain.InitialTasks()) {
		t.Fatalf("expected seeded tasks after first run, got %d", len(snap.Tasks))
	}
	if !snap.ShowSidebar {
		t.Fatal("expected sidebar visible after first run")
	}
}

// TestRunProgramErrorIsWrapped verifies TUI failures surface as command errors.
func TestRunProgramErrorIsWrapped(t *testing.T) {
	boom := errors.New("terminal gone")
	stubProgram(t, func(_ tea.Model) program { return fakeProgram{runErr: boom} })

	dbPath, cfgPath := tempPaths(t)
	err := run(context.Background(), []string{"--db", dbPath, "--config", cfgPath}, io.Discard, io.Discard)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped program error, got %v", err)
	}
}

// TestRunScriptedBoardSwitchPersists verifies the TUI model is wired to the opened storage.
func TestRunScriptedBoardSwitchPersists(t *testing.T) {
	stubProgram(t, func(model tea.Model) program {
		return scriptedProgram{
			model: model,
			runFn: func(current tea.Model) (tea.Model, error) {
				current = applyModelCmd(t, current, current.Init())
				current = applyModelMsg(t, current, tea.WindowSizeMsg{Width: 140, Height: 40})
				current = applyModelMsg(t, current, tea.KeyPressMsg{Code: 'b', Text: "b"})
				return current, nil
			},
		}
	})

	dbPath, cfgPath := tempPaths(t)
	runOK(t, "--db", dbPath, "--config", cfgPath)

	snap := exportSnapshot(t, dbPath, cfgPath)
	if snap.ActiveBoard != "Roadmap" {
		t.Fatalf("expected active board Roadmap after b, got %q", snap.ActiveBoard)
	}
}

// TestRunPaths verifies resolved path output and db overrides.
func TestRunPaths(t *testing.T) {
	dbPath, cfgPath := tempPaths(t)
	out := runOK(t, "--app", "kanboard-test", "--db", dbPath, "--config", cfgPath, "paths")
	for _, want := range []string{"app: kanboard-test", "dev_mode: false", "config: " + cfgPath, "db: " + dbPath, "data_dir: "} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in paths output\n%s", want, out)
		}
	}
}

// TestRunPathsHonorsEnvironment verifies KANBOARD_* overrides.
func TestRunPathsHonorsEnvironment(t *testing.T) {
	dbPath, cfgPath := tempPaths(t)
	t.Setenv("KANBOARD_CONFIG", cfgPath)
	t.Setenv("KANBOARD_DB_PATH", dbPath)
	t.Setenv("KANBOARD_APP_NAME", "envboard")
	t.Setenv("KANBOARD_DEV_MODE", "true")

	out := runOK(t, "paths")
	for _, want := range []string{"app: envboard", "dev_mode: true", "config: " + cfgPath, "db: " + dbPath} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in paths output\n%s", want, out)
		}
	}
}

// TestRunTasksTable verifies the task table and board filter.
func TestRunTasksTable(t *testing.T) {
	dbPath, cfgPath := tempPaths(t)

	out := runOK(t, "--db", dbPath, "--config", cfgPath, "tasks")
	for _, want := range []string{"TITLE", "Launch Epic Career", "Sketch the Q3 roadmap", "DOING"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in tasks output\n%s", want, out)
		}
	}

	out = runOK(t, "--db", dbPath, "--config", cfgPath, "tasks", "--board", "Roadmap")
	if !strings.Contains(out, "Sketch the Q3 roadmap") || strings.Contains(out, "Launch Epic Career") {
		t.Fatalf("expected only Roadmap tasks\n%s", out)
	}

	out = runOK(t, "--db", dbPath, "--config", cfgPath, "tasks", "--board", "Nowhere")
	if strings.TrimSpace(out) != "no tasks" {
		t.Fatalf("expected empty marker, got %q", out)
	}
}

// TestRunCreatesConfigDir verifies startup creates the config file's parent directory.
func TestRunCreatesConfigDir(t *testing.T) {
	dbPath, _ := tempPaths(t)
	cfgPath := filepath.Join(t.TempDir(), "nested", "kanboard", "config.toml")

	runOK(t, "--db", dbPath, "--config", cfgPath, "tasks")
	info, err := os.Stat(filepath.Dir(cfgPath))
	if err != nil {
		t.Fatalf("Stat(config dir) error = %v", err)
	}
	if !info.IsDir() {
		t.Fatalf("expected %q to be a directory", filepath.Dir(cfgPath))
	}
	if _, err := os.Stat(cfgPath); !os.IsNotExist(err) {
		t.Fatalf("expected config file itself left absent, err = %v", err)
	}
}

// TestRunExportImportRoundTrip verifies snapshots move state between databases.
func TestRunExportImportRoundTrip(t *testing.T) {
	srcDB, cfgPath := tempPaths(t)
	outPath := filepath.Join(t.TempDir(), "nested", "snapshot.json")
	runOK(t, "--db", srcDB, "--config", cfgPath, "export", "--out", outPath)

	content, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	var snap app.Snapshot
	if err := json.Unmarshal(content, &snap); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	snap.Tasks = snap.Tasks[:2]
	snap.ActiveBoard = snap.Tasks[0].Board
	snap.LightTheme = true
	edited, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if err := os.WriteFile(outPath, edited, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	dstDB := filepath.Join(t.TempDir(), "dst.db")
	runOK(t, "--db", dstDB, "--config", cfgPath, "import", "--in", outPath)

	got := exportSnapshot(t, dstDB, cfgPath)
	if len(got.Tasks) != 2 || !got.LightTheme || got.ActiveBoard != snap.ActiveBoard {
		t.Fatalf("unexpected imported snapshot %#v", got)
	}
}

// TestRunImportFailures verifies missing flags and invalid snapshot files.
func TestRunImportFailures(t *testing.T) {
	dbPath, cfgPath := tempPaths(t)

	err := run(context.Background(), []string{"--db", dbPath, "--config", cfgPath, "import"}, io.Discard, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "--in is required") {
		t.Fatalf("expected --in error, got %v", err)
	}

	badPath := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(badPath, []byte(`{"tasks":[{"id":0,"title":"","status":"todo","board":"A"}]}`), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	err = run(context.Background(), []string{"--db", dbPath, "--config", cfgPath, "import", "--in", badPath}, io.Discard, io.Discard)
	if !errors.Is(err, app.ErrInvalidSnapshot) {
		t.Fatalf("expected ErrInvalidSnapshot, got %v", err)
	}

	snap := exportSnapshot(t, dbPath, cfgPath)
	if len(snap.Tasks) != len(domain.InitialTasks()) {
		t.Fatalf("failed import must leave data untouched, got %d tasks", len(snap.Tasks))
	}
}

// TestRunRejectsUnknownCommandAndConfig verifies argument and config validation.
func TestRunRejectsUnknownCommandAndConfig(t *testing.T) {
	dbPath, cfgPath := tempPaths(t)
	if err := run(context.Background(), []string{"--db", dbPath, "--config", cfgPath, "bogus"}, io.Discard, io.Discard); err == nil {
		t.Fatal("expected unknown command error")
	}

	if err := os.WriteFile(cfgPath, []byte("[storage]\ndriver = \"etcd\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	err := run(context.Background(), []string{"--config", cfgPath, "tasks"}, io.Discard, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "load config") {
		t.Fatalf("expected config load error, got %v", err)
	}
}

// TestRunUsesConfiguredColumnsAndMemoryDriver verifies storage and column config wiring.
func TestRunUsesConfiguredColumnsAndMemoryDriver(t *testing.T) {
	_, cfgPath := tempPaths(t)
	content := `
[storage]
driver = "memory"

[[board.columns]]
id = "todo"
name = "Backlog"

[[board.columns]]
id = "doing"
name = "Active"

[[board.columns]]
id = "done"
name = "Shipped"
`
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	out := runOK(t, "--config", cfgPath, "tasks")
	if !strings.Contains(out, "Active") || !strings.Contains(out, "Shipped") {
		t.Fatalf("expected configured column names\n%s", out)
	}
}

// TestRunServeShutsDownOnCancel verifies serve mode answers health checks and exits cleanly on cancellation.
func TestRunServeShutsDownOnCancel(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	addr := listener.Addr().String()
	if err := listener.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	dbPath, cfgPath := tempPaths(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- run(ctx, []string{"--db", dbPath, "--config", cfgPath, "serve", "--http", addr}, io.Discard, io.Discard)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get("http://" + addr + "/api/v1/tasks")
		if err == nil {
			status := resp.StatusCode
			_ = resp.Body.Close()
			if status != http.StatusOK {
				t.Fatalf("tasks status = %d, want 200", status)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not start: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run(serve) error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}

// TestOpenStorageDrivers verifies each configured driver opens.
func TestOpenStorageDrivers(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	cases := []struct {
		name string
		cfg  config.StorageConfig
	}{
		{name: "memory", cfg: config.StorageConfig{Driver: config.DriverMemory}},
		{name: "sqlite", cfg: config.StorageConfig{Driver: config.DriverSQLite, Path: filepath.Join(t.TempDir(), "kv.db")}},
		{name: "redis", cfg: config.StorageConfig{Driver: config.DriverRedis, Redis: config.RedisConfig{Addr: mr.Addr(), Prefix: "test:"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store, err := openStorage(ctx, tc.cfg)
			if err != nil {
				t.Fatalf("openStorage() error = %v", err)
			}
			t.Cleanup(func() { _ = store.Close() })
			if err := store.SetItem(ctx, "k", "v"); err != nil {
				t.Fatalf("SetItem() error = %v", err)
			}
			got, ok, err := store.GetItem(ctx, "k")
			if err != nil || !ok || got != "v" {
				t.Fatalf("GetItem() = %q, %t, %v", got, ok, err)
			}
		})
	}

	if _, err := openStorage(ctx, config.StorageConfig{Driver: "etcd"}); err == nil {
		t.Fatal("expected unknown driver error")
	}
	if _, err := openStorage(ctx, config.StorageConfig{Driver: config.DriverRedis, Redis: config.RedisConfig{Addr: "127.0.0.1:1"}}); err == nil {
		t.Fatal("expected redis dial error")
	}
}

// TestRuntimeLoggerDevFileSink verifies the dev-file sink receives events while the console is muted.
func TestRuntimeLoggerDevFileSink(t *testing.T) {
	logDir := t.TempDir()
	var console strings.Builder
	logger, err := newRuntimeLogger(&console, "kanboard", true, config.LoggingConfig{
		Level:   "debug",
		DevFile: config.DevFileConfig{Enabled: true, Dir: logDir},
	}, func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) })
	if err != nil {
		t.Fatalf("newRuntimeLogger() error = %v", err)
	}
	if got, want := logger.DevLogPath(), filepath.Join(logDir, "kanboard-20260301.log"); got != want {
		t.Fatalf("DevLogPath() = %q, want %q", got, want)
	}

	logger.Info("visible", "k", 1)
	logger.SetConsoleEnabled(false)
	logger.Warn("file only", "k", 2)
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	if !strings.Contains(console.String(), "visible") || strings.Contains(console.String(), "file only") {
		t.Fatalf("unexpected console output %q", console.String())
	}
	content, err := os.ReadFile(logger.DevLogPath())
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	for _, want := range []string{"msg=visible", `msg="file only"`, "k=2"} {
		if !strings.Contains(string(content), want) {
			t.Fatalf("expected %q in dev log\n%s", want, content)
		}
	}
}

// TestRuntimeLoggerLevels verifies level parsing and the dev-file toggle.
func TestRuntimeLoggerLevels(t *testing.T) {
	if _, err := newRuntimeLogger(io.Discard, "kanboard", false, config.LoggingConfig{Level: "loud"}, nil); err == nil {
		t.Fatal("expected invalid level error")
	}

	var console strings.Builder
	logger, err := newRuntimeLogger(&console, "kanboard", false, config.LoggingConfig{
		Level:   "warn",
		DevFile: config.DevFileConfig{Enabled: true, Dir: t.TempDir()},
	}, nil)
	if err != nil {
		t.Fatalf("newRuntimeLogger() error = %v", err)
	}
	if logger.DevLogPath() != "" {
		t.Fatalf("dev file sink must stay off outside dev mode, got %q", logger.DevLogPath())
	}
	logger.Debug("quiet")
	logger.Info("quiet")
	logger.Error("loud")
	if strings.Contains(console.String(), "quiet") || !strings.Contains(console.String(), "loud") {
		t.Fatalf("unexpected console output %q", console.String())
	}

	var nilLogger *runtimeLogger
	nilLogger.Info("ignored")
	if nilLogger.DevLogPath() != "" || nilLogger.Close() != nil {
		t.Fatal("nil logger must be inert")
	}
}

// TestDevLogFilePathHelpers verifies workspace resolution and file naming.
func TestDevLogFilePathHelpers(t *testing.T) {
	workspace := t.TempDir()
	if err := os.WriteFile(filepath.Join(workspace, "go.mod"), []byte("module example\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	nested := filepath.Join(workspace, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if got := workspaceRootFrom(nested); got != workspace {
		t.Fatalf("workspaceRootFrom() = %q, want %q", got, workspace)
	}

	t.Chdir(nested)
	got, err := devLogFilePath("", "my app", time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("devLogFilePath() error = %v", err)
	}
	if want := filepath.Join(workspace, ".kanboard", "log", "my-app-20260102.log"); got != want {
		t.Fatalf("devLogFilePath() = %q, want %q", got, want)
	}

	cases := map[string]string{
		"":          "kanboard",
		" / ":       "kanboard",
		"a/b:c":     "a-b-c",
		"kanboard ": "kanboard",
	}
	for in, want := range cases {
		if got := sanitizeLogFileStem(in); got != want {
			t.Fatalf("sanitizeLogFileStem(%q) = %q, want %q", in, got, want)
		}
	}
}

// TestLoadDotEnv verifies .env loading and the missing-file case.
func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := loadDotEnv(filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("loadDotEnv(missing) error = %v", err)
	}

	t.Setenv("KANBOARD_APP_NAME", "")
	_ = os.Unsetenv("KANBOARD_APP_NAME")
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("KANBOARD_APP_NAME=dotenv-board\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := loadDotEnv(envPath); err != nil {
		t.Fatalf("loadDotEnv() error = %v", err)
	}
	if got := os.Getenv("KANBOARD_APP_NAME"); got != "dotenv-board" {
		t.Fatalf("KANBOARD_APP_NAME = %q", got)
	}
	out := runOK(t, "paths")
	if !strings.Contains(out, "app: dotenv-board") {
		t.Fatalf("expected dotenv app name in paths output\n%s", out)
	}
}

// TestParseBoolEnv verifies boolean environment parsing.
func TestParseBoolEnv(t *testing.T) {
	t.Setenv("KANBOARD_TEST_BOOL", "yes")
	if _, ok := parseBoolEnv("KANBOARD_TEST_BOOL"); ok {
		t.Fatal("expected invalid bool to be ignored")
	}
	t.Setenv("KANBOARD_TEST_BOOL", " true ")
	if v, ok := parseBoolEnv("KANBOARD_TEST_BOOL"); !ok || !v {
		t.Fatalf("parseBoolEnv() = %t, %t", v, ok)
	}
	t.Setenv("KANBOARD_TEST_BOOL", "")
	if _, ok := parseBoolEnv("KANBOARD_TEST_BOOL"); ok {
		t.Fatal("expected empty value to be ignored")
	}
}
