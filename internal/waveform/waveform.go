// Package waveform provides a floating window that shows the microphone
// signal and the text recognized so far during dictation.
package waveform

import (
	"image/color"
	"sync"
	"time"

	"gioui.org/app"
	"gioui.org/io/key"
	"gioui.org/io/system"
	"gioui.org/layout"
	"gioui.org/op"
	"gioui.org/unit"
)

// State is what the window currently displays.
type State int

const (
	StateListening  State = iota // signal and live text
	StateProcessing              // waiting for the final result
	StateResult                  // final text, hidden after ResultTimeout
)

// Config holds window configuration.
type Config struct {
	Width         int
	Height        int
	RefreshRate   time.Duration
	History       int           // samples kept for drawing
	ResultTimeout time.Duration // how long the final text stays on screen
	BGColor       color.NRGBA
	PanelColor    color.NRGBA
	WaveColor     color.NRGBA
	LevelColor    color.NRGBA
	TextColor     color.NRGBA
	TextDimColor  color.NRGBA
	AccentColor   color.NRGBA
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		Width:         380,
		Height:        120,
		RefreshRate:   33 * time.Millisecond,
		History:       4096,
		ResultTimeout: 2500 * time.Millisecond,
		BGColor:       color.NRGBA{R: 30, G: 30, B: 34, A: 245},
		PanelColor:    color.NRGBA{R: 45, G: 45, B: 50, A: 255},
		WaveColor:     color.NRGBA{R: 80, G: 200, B: 120, A: 255},
		LevelColor:    color.NRGBA{R: 255, G: 100, B: 100, A: 255},
		TextColor:     color.NRGBA{R: 240, G: 240, B: 245, A: 255},
		TextDimColor:  color.NRGBA{R: 140, G: 140, B: 150, A: 255},
		AccentColor:   color.NRGBA{R: 88, G: 166, B: 255, A: 255},
	}
}

const windowTitle = "April"

// Window is the dictation overlay. All methods are safe for concurrent use.
type Window struct {
	cfg Config

	mu      sync.Mutex
	state   State
	started time.Time
	samples []float32
	text    string
	hide    *time.Timer

	window  *app.Window
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates a hidden window.
func New(cfg Config) *Window {
	if cfg.History <= 0 {
		cfg.History = DefaultConfig().History
	}
	return &Window{cfg: cfg}
}

// Show opens the window in the listening state, or resets it if already open.
func (w *Window) Show() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.state = StateListening
	w.started = time.Now()
	w.samples = w.samples[:0]
	w.text = ""
	if w.hide != nil {
		w.hide.Stop()
		w.hide = nil
	}

	if w.running {
		if w.window != nil {
			w.window.Option(app.Size(unit.Dp(w.cfg.Width), unit.Dp(w.cfg.Height)))
			w.window.Invalidate()
		}
		return
	}

	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	go w.runEventLoop(w.stopCh, w.doneCh)
}

// Hide closes the window.
func (w *Window) Hide() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	if w.hide != nil {
		w.hide.Stop()
		w.hide = nil
	}
	stopCh, doneCh := w.stopCh, w.doneCh
	w.stopCh = nil
	w.mu.Unlock()

	close(stopCh)
	select {
	case <-doneCh:
	case <-time.After(time.Second):
	}
}

// Push appends a microphone frame to the drawn signal.
func (w *Window) Push(frame []int16) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, s := range frame {
		w.samples = append(w.samples, float32(s)/32768)
	}
	if extra := len(w.samples) - w.cfg.History; extra > 0 {
		w.samples = append(w.samples[:0], w.samples[extra:]...)
	}
}

// SetText replaces the live text.
func (w *Window) SetText(text string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.text = text
}

// Processing switches to the spinner shown while the session is flushed.
func (w *Window) Processing() {
	w.setState(StateProcessing)
}

// Done shows the final text and hides the window after ResultTimeout.
// Empty text hides it at once.
func (w *Window) Done(text string) {
	if text == "" {
		w.Hide()
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	w.text = text
	w.state = StateResult
	if w.hide != nil {
		w.hide.Stop()
	}
	w.hide = time.AfterFunc(w.cfg.ResultTimeout, func() {
		w.mu.Lock()
		current := w.state
		w.mu.Unlock()
		if current == StateResult {
			w.Hide()
		}
	})
}

func (w *Window) setState(state State) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = state
	if w.window != nil {
		w.window.Invalidate()
	}
}

// snapshot copies what a frame needs to draw.
func (w *Window) snapshot() (State, time.Time, []float32, string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	samples := make([]float32, len(w.samples))
	copy(samples, w.samples)
	return w.state, w.started, samples, w.text
}

func (w *Window) runEventLoop(stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	win := new(app.Window)
	win.Option(
		app.Title(windowTitle),
		app.Size(unit.Dp(w.cfg.Width), unit.Dp(w.cfg.Height)),
		app.Decorated(false),
	)
	w.mu.Lock()
	w.window = win
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		if w.window == win {
			w.window = nil
		}
		w.mu.Unlock()
	}()

	go positionWindow(windowTitle, w.cfg.Width, w.cfg.Height)

	ticker := time.NewTicker(w.cfg.RefreshRate)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-stopCh:
				win.Perform(system.ActionClose)
				return
			case <-ticker.C:
				win.Invalidate()
			}
		}
	}()

	var ops op.Ops
	for {
		switch e := win.Event().(type) {
		case app.DestroyEvent:
			return
		case app.FrameEvent:
			gtx := app.NewContext(&ops, e)
			w.draw(gtx)
			e.Frame(gtx.Ops)
		}
	}
}

func (w *Window) draw(gtx layout.Context) {
	for {
		ev, ok := gtx.Event(key.Filter{Name: key.NameEscape})
		if !ok {
			break
		}
		if e, ok := ev.(key.Event); ok && e.State == key.Press {
			go w.Hide()
			return
		}
	}

	state, started, samples, text := w.snapshot()
	elapsed := time.Since(started)

	switch state {
	case StateProcessing:
		drawProcessing(gtx, elapsed, text, w.cfg)
	case StateResult:
		drawResult(gtx, text, w.cfg)
	default:
		drawListening(gtx, samples, elapsed, text, w.cfg)
	}
}
