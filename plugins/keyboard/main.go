// Package main provides a keyboard sync plugin.
// It types each saved sentence into the focused window.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// Request is the input from the plugin executor.
type Request struct {
	Action      string          `json:"action"`
	Translation *Translation    `json:"translation"`
	Config      json.RawMessage `json:"config"`
}

// Translation is the saved sentence.
type Translation struct {
	ID       string `json:"id"`
	Sentence string `json:"sentence"`
}

// Response is the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Config controls how the sentence is typed.
type Config struct {
	// DryRun reports what would be typed without sending keystrokes.
	DryRun bool `json:"dry_run"`
	// Newline presses return after the sentence.
	Newline bool `json:"newline"`
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	if req.Action != "translation.saved" {
		writeErrorResponse(fmt.Sprintf("unknown action: %s", req.Action))
		return
	}

	typed, err := handleSaved(req)
	if err != nil {
		writeErrorResponse(fmt.Sprintf("action %s failed: %v", req.Action, err))
		return
	}

	data, _ := json.Marshal(map[string]string{"typed": typed})
	writeResponse(Response{Success: true, Data: data})
}

func handleSaved(req Request) (string, error) {
	if req.Translation == nil {
		return "", fmt.Errorf("translation is required")
	}

	var cfg Config
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			return "", fmt.Errorf("failed to parse config: %w", err)
		}
	}

	text := strings.TrimSpace(req.Translation.Sentence)
	if text == "" {
		return "", fmt.Errorf("sentence is empty")
	}
	if cfg.DryRun {
		return text, nil
	}

	return text, typeText(text, cfg.Newline)
}

// typeText sends text as keystrokes using the platform's automation tool.
func typeText(text string, newline bool) error {
	switch runtime.GOOS {
	case "darwin":
		script := buildAppleScript(text, newline)
		return run("osascript", "-e", script)
	case "linux":
		if err := run("xdotool", "type", "--delay", "20", "--", text); err != nil {
			return err
		}
		if newline {
			return run("xdotool", "key", "Return")
		}
		return nil
	default:
		return fmt.Errorf("typing is not supported on %s", runtime.GOOS)
	}
}

// buildAppleScript generates a System Events script typing text.
func buildAppleScript(text string, newline bool) string {
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(text)
	script := fmt.Sprintf(`tell application "System Events" to keystroke "%s"`, escaped)
	if newline {
		script += "\n" + `tell application "System Events" to key code 36`
	}
	return script
}

func writeErrorResponse(errMsg string) {
	writeResponse(Response{Success: false, Error: errMsg})
}

func writeResponse(resp Response) {
	json.NewEncoder(os.Stdout).Encode(resp)
}

func run(name string, args ...string) error {
	output, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}
