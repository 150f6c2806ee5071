// internal/app/client/wizardtui/app.go
//
// This is the terminal front end of the plan wizard. It uses bubbletea,
// which follows The Elm Architecture:
//
// 1. Model: the App below, wrapping a wizard.Wizard
// 2. Update: keys and async results become wizard calls
// 3. View: renders the current step
//
// The wizard owns the draft and its rules; this package only turns text
// inputs into setter calls and shows what the wizard says.

package wizardtui

import (
	"context"
	"mime"
	"os"
	"path/filepath"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dalemusser/planhub/internal/app/plans/wizard"
	"github.com/dalemusser/planhub/internal/app/system/apperr"
	"github.com/dalemusser/planhub/internal/app/system/opstate"
	"github.com/dalemusser/planhub/internal/domain/models"
)

// Backend commits plans and stores images. planclient.Client is one.
type Backend interface {
	wizard.Committer
	wizard.Uploader
}

// appState represents which screen we're on
type appState int

const (
	stateEditing appState = iota // stepping through the wizard
	stateSaving                  // Finish in flight
	stateDone                    // plan saved
	stateQuit                    // user left without saving
)

// uploadDoneMsg arrives when the latest image upload finishes.
type uploadDoneMsg struct{ err error }

// finishedMsg carries the result of Finish.
type finishedMsg struct {
	plan models.Plan
	err  error
}

// App is the bubbletea model.
type App struct {
	ctx     context.Context
	wiz     *wizard.Wizard
	backend Backend

	state  appState
	fields [wizard.StepCount][]field
	focus  int

	status string
	saved  models.Plan
	ops    *opstate.Tracker

	width, height int

	readFile func(string) ([]byte, error)
}

// NewApp returns a model driving w. tags are the suggestions shown on the
// filters step.
func NewApp(ctx context.Context, w *wizard.Wizard, backend Backend, tags []string) *App {
	a := &App{
		ctx:      ctx,
		wiz:      w,
		backend:  backend,
		fields:   stepFields(tags),
		readFile: os.ReadFile,
	}
	a.loadInputs()
	a.focusField(0)
	return a
}

// TrackOps shows the newest failure recorded in t on the status line until
// it is dismissed with ctrl+d. planclient.Client.Ops is such a tracker.
func (a *App) TrackOps(t *opstate.Tracker) {
	a.ops = t
}

// Saved returns the committed plan once the wizard has finished.
func (a *App) Saved() (models.Plan, bool) {
	return a.saved, a.state == stateDone
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles all incoming messages.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, nil

	case uploadDoneMsg:
		if msg.err != nil {
			a.status = "image upload failed: " + errText(msg.err)
		} else {
			a.status = "image uploaded"
		}
		return a, nil

	case finishedMsg:
		if msg.err != nil {
			a.state = stateEditing
			a.status = "save failed: " + errText(msg.err)
			return a, nil
		}
		a.saved = msg.plan
		a.state = stateDone
		a.status = ""
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	return a.updateFocused(msg)
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		if a.state != stateDone {
			a.wiz.Cancel()
			a.state = stateQuit
		}
		return a, tea.Quit
	}

	switch a.state {
	case stateDone:
		switch key {
		case "q", "enter", "esc":
			return a, tea.Quit
		}
		return a, nil
	case stateSaving:
		return a, nil
	}

	switch key {
	case "tab", "down":
		a.focusField(a.focus + 1)
		return a, nil
	case "shift+tab", "up":
		a.focusField(a.focus - 1)
		return a, nil
	case "esc":
		a.move(a.wiz.Previous())
		return a, nil
	case "ctrl+d":
		a.dismissFailure()
		return a, nil
	case "ctrl+r":
		a.wiz.Cancel()
		a.loadInputs()
		a.move(nil)
		a.status = "draft discarded"
		return a, nil
	case "alt+1", "alt+2", "alt+3", "alt+4", "alt+5":
		a.move(a.wiz.GoTo(wizard.Step(key[len(key)-1] - '1')))
		return a, nil
	case "enter":
		return a.handleEnter()
	}

	return a.updateFocused(msg)
}

// handleEnter uploads from the image field, finishes on the verify step
// and advances otherwise.
func (a *App) handleEnter() (tea.Model, tea.Cmd) {
	step := a.wiz.Step()
	if f := a.focused(); f != nil && f.kind == fieldImage && f.input.Value() != "" {
		cmd := a.startUpload(f.input.Value())
		if cmd != nil {
			f.input.SetValue("")
		}
		return a, cmd
	}
	if step == wizard.StepVerify {
		a.state = stateSaving
		a.status = "saving…"
		return a, a.finishCmd()
	}
	a.move(a.wiz.Next())
	return a, nil
}

// move refocuses after a step change; a failed move keeps the page and
// shows the wizard's message.
func (a *App) move(err error) {
	if err != nil {
		a.status = errText(err)
		return
	}
	a.status = ""
	a.focusField(0)
}

func (a *App) startUpload(path string) tea.Cmd {
	data, err := a.readFile(path)
	if err != nil {
		a.status = "cannot read image: " + err.Error()
		return nil
	}
	ct := mime.TypeByExtension(filepath.Ext(path))
	a.wiz.StartImageUpload(a.ctx, a.backend, filepath.Base(path), ct, data)
	a.status = "uploading " + filepath.Base(path) + "…"
	return a.waitUploadCmd()
}

func (a *App) waitUploadCmd() tea.Cmd {
	return func() tea.Msg {
		return uploadDoneMsg{err: a.wiz.WaitUpload(a.ctx)}
	}
}

func (a *App) finishCmd() tea.Cmd {
	return func() tea.Msg {
		p, err := a.wiz.Finish(a.ctx, a.backend)
		return finishedMsg{plan: p, err: err}
	}
}

// updateFocused passes msg to the focused input and pushes its value into
// the draft. Typing is never blocked, even during an upload.
func (a *App) updateFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	f := a.focused()
	if f == nil || a.state != stateEditing {
		return a, nil
	}
	before := f.input.Value()
	var cmd tea.Cmd
	f.input, cmd = f.input.Update(msg)
	if v := f.input.Value(); v != before {
		f.err = f.apply(a.wiz, v)
	}
	return a, cmd
}

func (a *App) current() []field {
	step := a.wiz.Step()
	if !step.Valid() {
		return nil
	}
	return a.fields[step]
}

func (a *App) focused() *field {
	fs := a.current()
	if a.focus < 0 || a.focus >= len(fs) {
		return nil
	}
	return &fs[a.focus]
}

func (a *App) focusField(i int) {
	fs := a.current()
	if len(fs) == 0 {
		a.focus = 0
		return
	}
	i = (i + len(fs)) % len(fs)
	for j := range fs {
		fs[j].input.Blur()
	}
	a.focus = i
	fs[i].input.Focus()
}

// loadInputs copies the draft into every input.
func (a *App) loadInputs() {
	d := a.wiz.Draft()
	for s := range a.fields {
		for i := range a.fields[s] {
			f := &a.fields[s][i]
			f.input.SetValue(f.load(d))
			f.input.CursorEnd()
			f.err = ""
		}
	}
}

// latestFailure returns the newest failed operation, if any.
func (a *App) latestFailure() (opstate.Key, opstate.State, bool) {
	if a.ops == nil {
		return opstate.Key{}, opstate.State{}, false
	}
	fails := a.ops.Failures()
	if len(fails) == 0 {
		return opstate.Key{}, opstate.State{}, false
	}
	k := fails[len(fails)-1]
	return k, a.ops.Get(k), true
}

func (a *App) dismissFailure() {
	if k, _, ok := a.latestFailure(); ok {
		a.ops.Dismiss(k)
	}
	a.status = ""
}

func errText(err error) string {
	if apperr.KindOf(err) != apperr.KindUnknown {
		return apperr.MessageOf(err)
	}
	return err.Error()
}
