package plugin

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// writeManifest creates root/dir/plugin.json for m.
func writeManifest(t *testing.T, root, dir string, m Manifest) string {
	t.Helper()

	pluginDir := filepath.Join(root, dir)
	if err := os.MkdirAll(pluginDir, 0755); err != nil {
		t.Fatalf("failed to create plugin dir: %v", err)
	}

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("failed to marshal manifest: %v", err)
	}
	if err := os.WriteFile(filepath.Join(pluginDir, "plugin.json"), data, 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
	return pluginDir
}

func TestManager_Discover(t *testing.T) {
	root := t.TempDir()
	pluginDir := writeManifest(t, root, "archive", Manifest{
		Name:        "archive",
		Version:     "1.0.0",
		Description: "Appends saved sentences to a file",
		Executable:  "archive",
		Actions:     []string{ActionTranslationSaved},
	})

	manager := NewManager(root, nil)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	plugins := manager.List()
	if len(plugins) != 1 {
		t.Fatalf("expected 1 plugin, got %d", len(plugins))
	}

	plugin := plugins[0]
	if plugin.Manifest.Description != "Appends saved sentences to a file" {
		t.Errorf("description = %q", plugin.Manifest.Description)
	}
	if plugin.Path != pluginDir {
		t.Errorf("path = %q, want %q", plugin.Path, pluginDir)
	}
	if plugin.Executable != filepath.Join(pluginDir, "archive") {
		t.Errorf("executable = %q", plugin.Executable)
	}
	if !plugin.Manifest.Handles(ActionTranslationSaved) {
		t.Error("plugin should handle translation.saved")
	}
	if plugin.Manifest.Handles("gesture.recognized") {
		t.Error("plugin should not handle undeclared actions")
	}
}

func TestManager_Discover_SkipsInvalid(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "b-plugin", Manifest{Name: "b", Executable: "b"})
	writeManifest(t, root, "a-plugin", Manifest{Name: "a", Executable: "a"})
	writeManifest(t, root, "no-exec", Manifest{Name: "no-exec"})

	bad := filepath.Join(root, "bad-plugin")
	if err := os.MkdirAll(bad, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(bad, "plugin.json"), []byte("not valid json"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(root, "empty"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "stray.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	manager := NewManager(root, nil)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	var names []string
	for _, p := range manager.List() {
		names = append(names, p.Manifest.Name)
	}
	if diff := cmp.Diff([]string{"a", "b"}, names); diff != "" {
		t.Errorf("List() names mismatch (-want +got):\n%s", diff)
	}
}

func TestManager_Discover_Rescan(t *testing.T) {
	root := t.TempDir()
	dir := writeManifest(t, root, "one", Manifest{Name: "one", Executable: "one"})

	manager := NewManager(root, nil)
	if err := manager.Discover(); err != nil {
		t.Fatal(err)
	}
	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}
	if err := manager.Discover(); err != nil {
		t.Fatal(err)
	}

	if _, err := manager.Get("one"); !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("Get() after removal = %v, want ErrPluginNotFound", err)
	}
}

func TestManager_Get(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "my-plugin", Manifest{Name: "my-plugin", Version: "2.0.0", Executable: "bin"})

	manager := NewManager(root, nil)
	if _, err := manager.Get("my-plugin"); !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("Get() before Discover = %v, want ErrPluginNotFound", err)
	}
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	plugin, err := manager.Get("my-plugin")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if plugin.Manifest.Version != "2.0.0" {
		t.Errorf("version = %q, want 2.0.0", plugin.Manifest.Version)
	}

	if _, err := manager.Get("nonexistent-plugin"); !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("Get() = %v, want ErrPluginNotFound", err)
	}
}

func TestManager_Discover_NonExistentDir(t *testing.T) {
	manager := NewManager("/path/that/does/not/exist", nil)

	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed on non-existent dir: %v", err)
	}
	if plugins := manager.List(); len(plugins) != 0 {
		t.Fatalf("expected 0 plugins, got %d", len(plugins))
	}
	if manager.PluginDir() != "/path/that/does/not/exist" {
		t.Errorf("PluginDir() = %q", manager.PluginDir())
	}
}
