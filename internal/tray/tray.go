// Package tray provides the system tray menu of the Mudra daemon.
package tray

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/getlantern/systray"

	"github.com/ayusman/mudra/internal/translate"
)

// maxTextRunes bounds the sentence shown in the menu.
const maxTextRunes = 32

// Session is the part of the translation pipeline the tray drives.
type Session interface {
	Snapshot() translate.Snapshot
	Subscribe() (<-chan translate.Snapshot, func())
	ToggleAutoAdd() bool
	AddLetterManually() (translate.CommitRecord, error)
	AddSpace()
	SaveToHistory(ctx context.Context) error
	ClearSentence(ctx context.Context) (bool, error)
}

// Tray is the menu bar presence of a running session.
type Tray struct {
	session Session
	logger  *slog.Logger

	onOpen   func()
	onQuit   func()
	onCamera func(enabled bool)

	mu         sync.RWMutex
	camera     bool
	menuCamera *systray.MenuItem
	menuAuto   *systray.MenuItem
	menuText   *systray.MenuItem
	menuLast   *systray.MenuItem
	menuStatus *systray.MenuItem
}

// New creates a Tray over session.
func New(session Session, logger *slog.Logger) *Tray {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tray{session: session, logger: logger, camera: true}
}

// OnCamera sets the callback for pausing and resuming frame processing.
func (t *Tray) OnCamera(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onCamera = fn
}

// OnOpen sets the callback for the "Open Mudra..." item.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback for the quit item.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the tray and blocks until Quit. It must be called from the
// main goroutine on macOS.
func (t *Tray) Run() {
	systray.Run(t.onReady, func() {})
}

// Quit stops the tray loop.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("Mudra")
	systray.SetTooltip("Mudra sign translator")

	snap := t.session.Snapshot()

	t.mu.Lock()
	t.menuCamera = systray.AddMenuItem(cameraTitle(t.camera), "Pause or resume the camera")
	t.menuAuto = systray.AddMenuItem(autoAddTitle(snap.Sentence.AutoAdd), "Toggle auto-add")
	systray.AddSeparator()
	t.menuText = systray.AddMenuItem(textTitle(snap.Sentence.Text), "Current sentence")
	t.menuText.Disable()
	t.menuLast = systray.AddMenuItem(lastTitle(snap), "Last committed sign")
	t.menuLast.Disable()
	t.menuStatus = systray.AddMenuItem("", "Last action")
	t.menuStatus.Hide()
	t.mu.Unlock()
	systray.AddSeparator()

	menuLetter := systray.AddMenuItem("Add Letter", "Commit the detected sign")
	menuSpace := systray.AddMenuItem("Add Space", "Append a space")
	menuSave := systray.AddMenuItem("Save", "Save the sentence to history")
	menuClear := systray.AddMenuItem("Clear", "Save and start a new sentence")
	systray.AddSeparator()
	menuOpen := systray.AddMenuItem("Open Mudra...", "Open the web UI")
	menuQuit := systray.AddMenuItem("Quit", "Quit Mudra")

	updates, unsubscribe := t.session.Subscribe()
	go func() {
		for snap := range updates {
			t.apply(snap)
		}
	}()

	go func() {
		defer unsubscribe()
		for {
			select {
			case <-t.menuCamera.ClickedCh:
				t.handleCamera()
			case <-t.menuAuto.ClickedCh:
				t.handleToggle()
			case <-menuLetter.ClickedCh:
				t.handleLetter()
			case <-menuSpace.ClickedCh:
				t.session.AddSpace()
			case <-menuSave.ClickedCh:
				t.handleSave()
			case <-menuClear.ClickedCh:
				t.handleClear()
			case <-menuOpen.ClickedCh:
				t.handleOpen()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) handleCamera() {
	t.mu.Lock()
	t.camera = !t.camera
	enabled := t.camera
	if t.menuCamera != nil {
		t.menuCamera.SetTitle(cameraTitle(enabled))
	}
	fn := t.onCamera
	t.mu.Unlock()

	if fn != nil {
		fn(enabled)
	}
}

func (t *Tray) handleToggle() {
	enabled := t.session.ToggleAutoAdd()
	t.logger.Debug("auto-add toggled from tray", "enabled", enabled)
}

func (t *Tray) handleLetter() {
	if _, err := t.session.AddLetterManually(); err != nil {
		t.setStatus(err.Error())
		return
	}
	t.setStatus("")
}

func (t *Tray) handleSave() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := t.session.SaveToHistory(ctx); err != nil {
		t.report("save", err)
		return
	}
	t.setStatus("Saved")
}

func (t *Tray) handleClear() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	flushed, err := t.session.ClearSentence(ctx)
	if err != nil {
		t.report("clear", err)
		return
	}
	if flushed {
		t.setStatus("Saved and cleared")
	} else {
		t.setStatus("")
	}
}

// report shows err in the menu; failures that are not advisories are logged.
func (t *Tray) report(op string, err error) {
	if !errors.Is(err, translate.ErrEmptySentence) && !errors.Is(err, translate.ErrNoCapturedSigns) {
		t.logger.Error("tray command failed", "op", op, "err", err)
	}
	t.setStatus(err.Error())
}

func (t *Tray) handleOpen() {
	t.mu.RLock()
	fn := t.onOpen
	t.mu.RUnlock()
	if fn != nil {
		go fn()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	fn := t.onQuit
	t.mu.RUnlock()
	if fn != nil {
		fn()
	}
	systray.Quit()
}

// apply renders a snapshot into the menu.
func (t *Tray) apply(snap translate.Snapshot) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.menuAuto != nil {
		t.menuAuto.SetTitle(autoAddTitle(snap.Sentence.AutoAdd))
	}
	if t.menuText != nil {
		t.menuText.SetTitle(textTitle(snap.Sentence.Text))
	}
	if t.menuLast != nil {
		t.menuLast.SetTitle(lastTitle(snap))
	}
}

func (t *Tray) setStatus(msg string) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.menuStatus == nil {
		return
	}
	if msg == "" {
		t.menuStatus.Hide()
		return
	}
	t.menuStatus.SetTitle(msg)
	t.menuStatus.Show()
}

func cameraTitle(enabled bool) string {
	if enabled {
		return "● Camera"
	}
	return "○ Camera paused"
}

func autoAddTitle(enabled bool) string {
	if enabled {
		return "● Auto-add"
	}
	return "○ Auto-add"
}

// textTitle shows the tail of the sentence, which is where new signs land.
func textTitle(text string) string {
	if text == "" {
		return "Text: (empty)"
	}
	if n := utf8.RuneCountInString(text); n > maxTextRunes {
		runes := []rune(text)
		text = "…" + string(runes[n-maxTextRunes+1:])
	}
	return "Text: " + text
}

func lastTitle(snap translate.Snapshot) string {
	signs := snap.Sentence.Signs
	if len(signs) == 0 {
		return "Last: none"
	}
	last := signs[len(signs)-1]
	label := last.Label
	if label == " " {
		label = "space"
	}
	mode := "manual"
	if last.Auto {
		mode = "auto"
	}
	return "Last: " + label + " (" + mode + ")"
}
