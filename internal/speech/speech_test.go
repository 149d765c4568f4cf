package speech

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"aprilgo/internal/models"
	"aprilgo/pkg/april"
	"aprilgo/pkg/april/apriltest"
)

const (
	testPath   = "/models/test.april"
	testPhrase = "and so my fellow americans"
)

func installEngine(t *testing.T) *apriltest.Engine {
	t.Helper()
	e := apriltest.Install()
	e.AddModel(testPath, apriltest.ModelSpec{
		Name:     "test-en",
		Language: "en",
		Phrase:   testPhrase,
	})
	t.Cleanup(func() { april.Register(nil) })
	return e
}

func newRecognizer(t *testing.T, opts Options) *AprilRecognizer {
	t.Helper()
	rec, err := NewApril(testPath, opts)
	if err != nil {
		t.Fatalf("NewApril: %v", err)
	}
	t.Cleanup(rec.Close)
	return rec
}

func TestTranscribe(t *testing.T) {
	e := installEngine(t)
	rec := newRecognizer(t, Options{Chunk: 100 * time.Millisecond})

	if rec.Name() != "april/test-en" {
		t.Fatalf("Name = %q", rec.Name())
	}
	if rec.SampleRate() != apriltest.DefaultSampleRate {
		t.Fatalf("SampleRate = %d", rec.SampleRate())
	}

	tr, err := rec.Transcribe(context.Background(), make([]int16, 16000))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if tr.Text() != testPhrase {
		t.Fatalf("Text = %q, want %q", tr.Text(), testPhrase)
	}
	if len(tr.Segments) != 1 || len(tr.Segments[0].Tokens) != 5 {
		t.Fatalf("segments = %+v", tr.Segments)
	}
	if tr.Partial != "" {
		t.Fatalf("partial left after flush: %q", tr.Partial)
	}
	if got := e.FeedCalls.Load(); got != 10 {
		t.Fatalf("feed calls = %d, want 10 chunks of 100ms", got)
	}
	if e.LiveSessions() != 0 {
		t.Fatalf("session left open")
	}
	if april.LiveContexts() != 0 {
		t.Fatalf("callback context leaked")
	}
}

func TestTranscribeEmpty(t *testing.T) {
	e := installEngine(t)
	rec := newRecognizer(t, Options{})

	_, err := rec.Transcribe(context.Background(), nil)
	if !errors.Is(err, april.ErrEmptyAudio) {
		t.Fatalf("Transcribe(nil) = %v, want ErrEmptyAudio", err)
	}
	if e.CreateSessionCalls.Load() != 0 {
		t.Fatalf("session created for empty input")
	}
}

func TestTranscribeCanceled(t *testing.T) {
	e := installEngine(t)
	rec := newRecognizer(t, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := rec.Transcribe(ctx, make([]int16, 3200))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Transcribe = %v, want context.Canceled", err)
	}
	if e.LiveSessions() != 0 || april.LiveContexts() != 0 {
		t.Fatalf("canceled transcription leaked a session")
	}
}

func TestStreamAsync(t *testing.T) {
	e := installEngine(t)
	rec := newRecognizer(t, Options{Mode: april.FlagAsyncRealtime})

	var (
		mu      sync.Mutex
		results []Result
	)
	st, err := rec.Stream(func(r Result) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if st.ID() == "" {
		t.Fatalf("stream has no id")
	}
	if st.Speedup() <= 0 {
		t.Fatalf("Speedup = %v in realtime mode", st.Speedup())
	}

	if err := st.Feed(make([]int16, 1600)); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if err := st.FeedBytes(make([]byte, 3200)); err != nil {
		t.Fatalf("FeedBytes: %v", err)
	}
	if err := st.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(results) != 3 {
		t.Fatalf("got %d results, want 2 partials and a final", len(results))
	}
	last := results[len(results)-1]
	if last.Type != april.ResultRecognitionFinal || last.Text() != testPhrase {
		t.Fatalf("last result = %v %q", last.Type, last.Text())
	}
	if e.LateCallbacks.Load() != 0 {
		t.Fatalf("results delivered after close")
	}
}

func TestStreamOutlivesRecognizer(t *testing.T) {
	e := installEngine(t)
	rec, err := NewApril(testPath, Options{})
	if err != nil {
		t.Fatalf("NewApril: %v", err)
	}
	st, err := rec.Stream(nil)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	rec.Close()
	if e.LiveModels() != 1 {
		t.Fatalf("model freed while a stream is open")
	}
	if err := st.Feed(make([]int16, 160)); err != nil {
		t.Fatalf("Feed after recognizer close: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if e.LiveModels() != 0 {
		t.Fatalf("model not freed after the last stream closed")
	}
}

func TestFactory(t *testing.T) {
	e := apriltest.Install()
	t.Cleanup(func() { april.Register(nil) })

	dir := t.TempDir()
	mgr, err := models.NewManager(dir, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	f := NewFactory(mgr, Options{})
	defer f.Close()

	if err := f.Load("nope"); !errors.Is(err, models.ErrUnknownModel) {
		t.Fatalf("Load(nope) = %v", err)
	}
	if err := f.Load(models.DefaultModelID()); !errors.Is(err, models.ErrNotDownloaded) {
		t.Fatalf("Load before download = %v", err)
	}

	info, _ := models.GetModel(models.DefaultModelID())
	path := filepath.Join(dir, info.Filename)
	if err := os.WriteFile(path, []byte("APRL"), 0o644); err != nil {
		t.Fatal(err)
	}
	e.AddModel(path, apriltest.ModelSpec{Name: "dev", Phrase: "hello"})

	if err := f.Load(info.ID); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !f.IsLoaded() || f.CurrentModelID() != info.ID {
		t.Fatalf("factory state: loaded=%v id=%q", f.IsLoaded(), f.CurrentModelID())
	}
	first := f.Current()

	if err := f.LoadPath(path); err != nil {
		t.Fatalf("LoadPath: %v", err)
	}
	if f.Current() == first {
		t.Fatalf("LoadPath did not replace the recognizer")
	}
	if e.LiveModels() != 1 {
		t.Fatalf("live models = %d, the replaced one should be freed", e.LiveModels())
	}

	rec, err := f.CreateFromPath(path)
	if err != nil {
		t.Fatalf("CreateFromPath: %v", err)
	}
	f.Use(rec, "picked")
	if f.Current() != rec || f.CurrentModelID() != "picked" || e.LiveModels() != 1 {
		t.Fatalf("Use: current=%v id=%q live=%d", f.Current() == rec, f.CurrentModelID(), e.LiveModels())
	}

	f.Close()
	if f.IsLoaded() || e.LiveModels() != 0 {
		t.Fatalf("Close left a model loaded")
	}
}

func TestFloat32ToPCM16(t *testing.T) {
	got := Float32ToPCM16([]float32{0, 1, -1, 2, -2, 0.5})
	want := []int16{0, 32767, -32767, 32767, -32767, 16383}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d = %d, want %d", i, got[i], want[i])
		}
	}
}
