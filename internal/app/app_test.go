package app

import (
	"bytes"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"aprilgo/internal/audio"
	"aprilgo/internal/config"
	"aprilgo/internal/input"
	"aprilgo/internal/models"
	"aprilgo/internal/notify"
	"aprilgo/internal/speech"
	"aprilgo/pkg/april"
	"aprilgo/pkg/april/apriltest"
)

type fakeMic struct {
	mu      sync.Mutex
	onFrame audio.FrameFunc
	fed     []int16
}

func (m *fakeMic) Start(fn audio.FrameFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onFrame = fn
	return nil
}

func (m *fakeMic) Stop() []int16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onFrame = nil
	return m.fed
}

func (m *fakeMic) IsRecording() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.onFrame != nil
}

func (m *fakeMic) push(frame []int16) {
	m.mu.Lock()
	fn := m.onFrame
	m.fed = append(m.fed, frame...)
	m.mu.Unlock()
	fn(frame)
}

type fakeIndicator struct {
	mu     sync.Mutex
	states []string
}

func (i *fakeIndicator) set(state string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.states = append(i.states, state)
}

func (i *fakeIndicator) Idle()       { i.set("idle") }
func (i *fakeIndicator) Recording()  { i.set("recording") }
func (i *fakeIndicator) Processing() { i.set("processing") }

type fakeOverlay struct {
	mu      sync.Mutex
	events  []string
	samples int
	texts   []string
}

func (o *fakeOverlay) event(e string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, e)
}

func (o *fakeOverlay) Show()       { o.event("show") }
func (o *fakeOverlay) Processing() { o.event("processing") }
func (o *fakeOverlay) Done(text string) {
	o.event("done:" + text)
}

func (o *fakeOverlay) Push(frame []int16) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.samples += len(frame)
}

func (o *fakeOverlay) SetText(text string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.texts = append(o.texts, text)
}

type fixture struct {
	app      *App
	mic      *fakeMic
	engine   *apriltest.Engine
	typed    *bytes.Buffer
	notified *[]string
	ind      *fakeIndicator
	overlay  *fakeOverlay
}

func newFixture(t *testing.T, mode string) *fixture {
	t.Helper()

	e := apriltest.Install()
	t.Cleanup(func() { april.Register(nil) })

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	yaml := "session:\n  mode: " + mode + "\ndictation:\n  type_text: true\nmodels_dir: " + dir + "\n"
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(cfgPath, nil)
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}

	modelPath := filepath.Join(dir, "dictation.april")
	e.AddModel(modelPath, apriltest.ModelSpec{Name: "dictation", Phrase: "hello world"})

	mgr, err := models.NewManager(dir, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	factory := speech.NewFactory(mgr, speech.Options{Mode: cfg.SessionFlags()})
	t.Cleanup(factory.Close)
	if err := factory.LoadPath(modelPath); err != nil {
		t.Fatalf("LoadPath: %v", err)
	}

	var notified []string
	n := notify.New(true, nil)
	n.SetSender(func(title, message, icon string) error {
		notified = append(notified, message)
		return nil
	})

	typed := &bytes.Buffer{}
	mic := &fakeMic{}
	ind := &fakeIndicator{}
	overlay := &fakeOverlay{}
	a := New(Deps{
		Config:    cfg,
		Mic:       mic,
		Factory:   factory,
		Typer:     input.NewWriter(typed),
		Notifier:  n,
		Indicator: ind,
		Overlay:   overlay,
	})
	t.Cleanup(a.Close)
	return &fixture{app: a, mic: mic, engine: e, typed: typed, notified: &notified, ind: ind, overlay: overlay}
}

func TestDictation(t *testing.T) {
	for _, mode := range []string{"sync", "async-rt", "async-nort"} {
		t.Run(mode, func(t *testing.T) {
			f := newFixture(t, mode)

			f.app.Toggle()
			if !f.app.IsRecording() || !f.mic.IsRecording() {
				t.Fatalf("Toggle did not start recording")
			}
			f.mic.push(make([]int16, 1024))
			f.mic.push(make([]int16, 1024))

			f.app.Toggle()
			if f.app.IsRecording() || f.mic.IsRecording() {
				t.Fatalf("Toggle did not stop recording")
			}

			if got := f.typed.String(); got != "hello world\n" {
				t.Fatalf("typed %q", got)
			}
			if f.engine.LiveSessions() != 0 || april.LiveContexts() != 0 {
				t.Fatalf("dictation leaked a session")
			}
			if f.engine.LateCallbacks.Load() != 0 {
				t.Fatalf("results delivered after the session was freed")
			}
			found := false
			for _, m := range *f.notified {
				if m == "hello world" {
					found = true
				}
			}
			if !found {
				t.Fatalf("final transcript not notified: %q", *f.notified)
			}
		})
	}
}

func TestDictationStatus(t *testing.T) {
	for _, mode := range []string{"sync", "async-rt"} {
		t.Run(mode, func(t *testing.T) {
			f := newFixture(t, mode)

			if err := f.app.Start(); err != nil {
				t.Fatalf("Start: %v", err)
			}
			f.mic.push(make([]int16, 1024))
			f.mic.push(make([]int16, 512))
			if err := f.app.Stop(); err != nil {
				t.Fatalf("Stop: %v", err)
			}

			want := []string{"recording", "processing", "idle"}
			if !slices.Equal(f.ind.states, want) {
				t.Fatalf("indicator states %q, want %q", f.ind.states, want)
			}

			f.overlay.mu.Lock()
			defer f.overlay.mu.Unlock()
			wantEvents := []string{"show", "processing", "done:hello world"}
			if !slices.Equal(f.overlay.events, wantEvents) {
				t.Fatalf("overlay events %q, want %q", f.overlay.events, wantEvents)
			}
			if f.overlay.samples != 1536 {
				t.Fatalf("overlay got %d samples, want 1536", f.overlay.samples)
			}
			if !slices.Contains(f.overlay.texts, "hello") {
				t.Fatalf("partial text not shown: %q", f.overlay.texts)
			}
			if last := f.overlay.texts[len(f.overlay.texts)-1]; last != "hello world" {
				t.Fatalf("last overlay text %q", last)
			}
		})
	}
}

func TestStartWithoutRecognizer(t *testing.T) {
	f := newFixture(t, "sync")
	f.app.factory.Close()

	if err := f.app.Start(); err != ErrNoRecognizer {
		t.Fatalf("Start = %v, want ErrNoRecognizer", err)
	}
	if f.mic.IsRecording() {
		t.Fatalf("mic started without a recognizer")
	}
	if len(f.ind.states) != 0 || len(f.overlay.events) != 0 {
		t.Fatalf("status changed without a recognizer: %q %q", f.ind.states, f.overlay.events)
	}
}

func TestStopWithoutStart(t *testing.T) {
	f := newFixture(t, "sync")
	if err := f.app.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
