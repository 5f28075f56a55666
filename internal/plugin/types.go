// Package plugin discovers and runs sync plugins: external executables that
// are notified after a translation is saved to history.
//
// A plugin lives in its own directory with a plugin.json manifest. It is run
// once per notification, receives a JSON [Request] on stdin and answers with
// a JSON [Response] on stdout.
package plugin

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/ayusman/mudra/internal/translate"
)

// ActionTranslationSaved is sent after a translation is written to history.
const ActionTranslationSaved = "translation.saved"

// Manifest describes a plugin's metadata and the actions it handles.
type Manifest struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Description  string          `json:"description"`
	Executable   string          `json:"executable"`
	Actions      []string        `json:"actions"`
	ConfigSchema json.RawMessage `json:"configSchema,omitempty"`
}

// Handles reports whether the plugin declares action.
func (m Manifest) Handles(action string) bool {
	return slices.Contains(m.Actions, action)
}

// Request is written to the plugin's stdin.
type Request struct {
	Action      string          `json:"action"`
	Translation *Translation    `json:"translation,omitempty"`
	Config      json.RawMessage `json:"config,omitempty"`
}

// Translation is the plugin view of a saved translation. Captured frames
// are not sent.
type Translation struct {
	ID        string    `json:"id"`
	Sentence  string    `json:"sentence"`
	CreatedAt time.Time `json:"created_at"`
	Signs     []Sign    `json:"signs"`
}

// Sign is one committed sign of a Translation.
type Sign struct {
	Seq         int       `json:"seq"`
	Label       string    `json:"label"`
	Confidence  float64   `json:"confidence"`
	Auto        bool      `json:"auto"`
	CommittedAt time.Time `json:"committed_at"`
}

// NewTranslation converts a saved translation to its plugin payload.
func NewTranslation(t translate.Translation) *Translation {
	out := &Translation{
		ID:        t.ID,
		Sentence:  t.Sentence,
		CreatedAt: t.CreatedAt,
		Signs:     make([]Sign, 0, len(t.Signs)),
	}
	for _, s := range t.Signs {
		out.Signs = append(out.Signs, Sign{
			Seq:         s.Seq,
			Label:       s.Label,
			Confidence:  s.Confidence,
			Auto:        s.Auto,
			CommittedAt: s.CommittedAt,
		})
	}
	return out
}

// Response is read from the plugin's stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin is a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}
