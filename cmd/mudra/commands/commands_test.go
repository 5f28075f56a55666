package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/translate"
)

// setupTestEnv writes a config pointing at a fresh database and returns the
// config path and the database path.
func setupTestEnv(t *testing.T) (cfgPath, dbPath string) {
	t.Helper()
	dir := t.TempDir()
	dbPath = filepath.Join(dir, "data", "mudra.db")
	cfgPath = filepath.Join(dir, "config.yaml")
	yaml := fmt.Sprintf("history:\n  database: %s\n  max_entries: 50\nsync:\n  plugin_dir: %s\n",
		dbPath, filepath.Join(dir, "plugins"))
	if err := os.WriteFile(cfgPath, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}
	return cfgPath, dbPath
}

func seed(t *testing.T, dbPath string, entries map[string]string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		t.Fatal(err)
	}
	s, err := store.New(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	at := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	i := 0
	for id, sentence := range entries {
		err := s.Translations().Persist(context.Background(), translate.Translation{
			ID:       id,
			Sentence: sentence,
			Signs: []translate.CommitRecord{
				{ID: id + "-0", Seq: 0, Label: sentence[:1], Confidence: 0.9, CommittedAt: at, Auto: true,
					FrameStatus: translate.FrameCaptured, Frame: []byte{0xFF, 0xD8}},
			},
			CreatedAt: at.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatal(err)
		}
		i++
	}
}

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()

	configPath = ""
	logLevel = ""
	historyLimit = 0
	historyJSON = false
	historyYes = false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := runCmd(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "mudra "+Version) {
		t.Errorf("version output = %q", out)
	}
}

func TestHistoryList(t *testing.T) {
	cfg, db := setupTestEnv(t)

	out, err := runCmd(t, "history", "list", "--config", cfg)
	if err != nil {
		t.Fatalf("list on empty history: %v", err)
	}
	if !strings.Contains(out, "No saved translations") {
		t.Errorf("empty list output = %q", out)
	}

	seed(t, db, map[string]string{"id-1": "hello", "id-2": "ok "})

	out, err = runCmd(t, "history", "list", "--config", cfg)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"ID", "SENTENCE", "id-1", "hello", `"ok "`} {
		if !strings.Contains(out, want) {
			t.Errorf("list output missing %q:\n%s", want, out)
		}
	}

	out, err = runCmd(t, "history", "list", "--config", cfg, "--json", "-n", "1")
	if err != nil {
		t.Fatal(err)
	}
	var records []store.TranslationRecord
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		t.Fatalf("--json output is not JSON: %v\n%s", err, out)
	}
	if len(records) != 1 {
		t.Errorf("--limit 1 returned %d records", len(records))
	}
}

func TestHistoryShow(t *testing.T) {
	cfg, db := setupTestEnv(t)
	seed(t, db, map[string]string{"id-1": "hi"})

	out, err := runCmd(t, "history", "show", "id-1", "--config", cfg)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Sentence: hi", "SEQ", "90%", "auto", "yes"} {
		if !strings.Contains(out, want) {
			t.Errorf("show output missing %q:\n%s", want, out)
		}
	}

	if _, err := runCmd(t, "history", "show", "missing", "--config", cfg); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("show missing = %v", err)
	}
}

func TestHistoryDeleteAndClear(t *testing.T) {
	cfg, db := setupTestEnv(t)
	seed(t, db, map[string]string{"a": "one", "b": "two", "c": "three"})

	out, err := runCmd(t, "history", "delete", "a", "--config", cfg)
	if err != nil || !strings.Contains(out, "Deleted a") {
		t.Fatalf("delete = %q, %v", out, err)
	}

	_, err = runCmd(t, "history", "delete", "a", "b", "--config", cfg)
	if err == nil || !strings.Contains(err.Error(), "translation a not found") {
		t.Errorf("delete of a missing id = %v", err)
	}

	if _, err := runCmd(t, "history", "clear", "--config", cfg); err == nil {
		t.Error("clear without --yes should fail")
	}

	out, err = runCmd(t, "history", "clear", "--yes", "--config", cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Deleted 1 translations") {
		t.Errorf("clear output = %q", out)
	}
}

func TestLoadSettings_LogLevelOverride(t *testing.T) {
	cfg, _ := setupTestEnv(t)
	if _, err := runCmd(t, "history", "list", "--config", cfg, "--log-level", "loud"); err == nil {
		t.Error("invalid --log-level should fail")
	}
}

func TestBrowserURL(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{":8080", "http://localhost:8080/"},
		{"127.0.0.1:9000", "http://127.0.0.1:9000/"},
	}
	for _, tt := range tests {
		if got := browserURL(tt.addr); got != tt.want {
			t.Errorf("browserURL(%q) = %q, want %q", tt.addr, got, tt.want)
		}
	}
}

type blockingListener struct {
	err error
}

func (l blockingListener) Serve(ctx context.Context, addr string) error {
	if l.err != nil {
		return l.err
	}
	<-ctx.Done()
	return nil
}

// slowDaemon takes a while to leave Run after cancellation, like a frame
// loop finishing its current frame.
type slowDaemon struct {
	mu               sync.Mutex
	runReturned      bool
	shutdowns        int
	shutdownAfterRun bool
}

func (d *slowDaemon) Run(ctx context.Context) error {
	<-ctx.Done()
	time.Sleep(50 * time.Millisecond)
	d.mu.Lock()
	d.runReturned = true
	d.mu.Unlock()
	return nil
}

func (d *slowDaemon) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.shutdowns++
	d.shutdownAfterRun = d.runReturned
	return nil
}

func TestRunUntilDone_ShutsDownAfterRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	d := &slowDaemon{}
	var quit atomic.Bool

	done := make(chan error, 1)
	go func() {
		done <- runUntilDone(ctx, ":0", blockingListener{}, d, func() { quit.Store(true) })
	}()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runUntilDone() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("runUntilDone did not return")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.shutdowns != 1 {
		t.Errorf("Shutdown called %d times, want 1", d.shutdowns)
	}
	if !d.shutdownAfterRun {
		t.Error("Shutdown ran before the frame loop returned")
	}
	if !quit.Load() {
		t.Error("onDone was not called")
	}
}

func TestRunUntilDone_ServeFailure(t *testing.T) {
	d := &slowDaemon{}
	errBind := errors.New("address in use")

	err := runUntilDone(context.Background(), ":0", blockingListener{err: errBind}, d, nil)
	if !errors.Is(err, errBind) {
		t.Fatalf("runUntilDone() error = %v, want %v", err, errBind)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.shutdowns != 1 || !d.shutdownAfterRun {
		t.Errorf("shutdowns = %d, after run = %v", d.shutdowns, d.shutdownAfterRun)
	}
}
