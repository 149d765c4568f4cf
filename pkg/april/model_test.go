package april_test

import (
	"errors"
	"testing"

	"aprilgo/pkg/april"
	"aprilgo/pkg/april/apriltest"
)

const testModelPath = "/models/aprilv0_en-us.april"

func newEngine(t *testing.T) *apriltest.Engine {
	t.Helper()
	e := apriltest.Install()
	e.AddModel(testModelPath, apriltest.ModelSpec{
		Name:        "April English Dev-01110",
		Description: "Trained on a mix of English datasets",
		Language:    "en",
		Phrase:      "and so my fellow americans",
	})
	t.Cleanup(func() { april.Register(nil) })
	return e
}

func loadModel(t *testing.T) *april.Model {
	t.Helper()
	m, err := april.NewModel(testModelPath)
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestNewModelMetadata(t *testing.T) {
	newEngine(t)
	m := loadModel(t)

	info, err := m.Info()
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.Name == "" || info.Description == "" || info.Language == "" {
		t.Fatalf("empty metadata: %+v", info)
	}
	if info.Language != "en" {
		t.Fatalf("Language = %q", info.Language)
	}
	if info.SampleRate != apriltest.DefaultSampleRate {
		t.Fatalf("SampleRate = %d", info.SampleRate)
	}
	if m.Path() != testModelPath {
		t.Fatalf("Path = %q", m.Path())
	}
}

func TestNewModelInvalidPath(t *testing.T) {
	newEngine(t)

	for _, path := range []string{"", "/does/not/exist.april", "relative.april"} {
		m, err := april.NewModel(path)
		if m != nil {
			t.Fatalf("%q: expected nil model", path)
		}
		if !errors.Is(err, april.ErrNullPointer) {
			t.Fatalf("%q: expected ErrNullPointer, got %v", path, err)
		}
	}
}

func TestNewModelPathWithNUL(t *testing.T) {
	e := newEngine(t)

	_, err := april.NewModel("/models/a\x00b.april")
	if !errors.Is(err, april.ErrStringEncoding) {
		t.Fatalf("expected ErrStringEncoding, got %v", err)
	}
	if e.CreateModelCalls.Load() != 0 {
		t.Fatalf("engine must not be called with an unencodable path")
	}
}

func TestNewModelWithoutEngine(t *testing.T) {
	april.Register(nil)

	_, err := april.NewModel(testModelPath)
	if !errors.Is(err, april.ErrNoEngine) {
		t.Fatalf("expected ErrNoEngine, got %v", err)
	}
}

func TestEngineInitRunsOnce(t *testing.T) {
	e := newEngine(t)

	for i := 0; i < 5; i++ {
		m, err := april.NewModel(testModelPath)
		if err != nil {
			t.Fatalf("NewModel: %v", err)
		}
		m.Close()
	}
	// Failed loads go through the gate too.
	april.NewModel("/missing.april")

	if got := e.InitCalls.Load(); got != 1 {
		t.Fatalf("Init called %d times, want 1", got)
	}
}

func TestModelMetadataErrors(t *testing.T) {
	e := newEngine(t)
	e.AddModel("/null.april", apriltest.ModelSpec{NullName: true, NullDescription: true, NullLanguage: true})
	e.AddModel("/bad.april", apriltest.ModelSpec{RawName: []byte{0xff, 0xfe}, Description: "d", Language: "en"})

	m, err := april.NewModel("/null.april")
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}
	defer m.Close()

	if _, err := m.Name(); !errors.Is(err, april.ErrNullPointer) {
		t.Errorf("Name: expected ErrNullPointer, got %v", err)
	}
	if _, err := m.Description(); !errors.Is(err, april.ErrNullPointer) {
		t.Errorf("Description: expected ErrNullPointer, got %v", err)
	}
	if _, err := m.Language(); !errors.Is(err, april.ErrNullPointer) {
		t.Errorf("Language: expected ErrNullPointer, got %v", err)
	}

	bad, err := april.NewModel("/bad.april")
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}
	defer bad.Close()

	if _, err := bad.Name(); !errors.Is(err, april.ErrInvalidUTF8) {
		t.Errorf("Name: expected ErrInvalidUTF8, got %v", err)
	}
	if _, err := bad.Info(); !errors.Is(err, april.ErrInvalidUTF8) {
		t.Errorf("Info: expected ErrInvalidUTF8, got %v", err)
	}
}

func TestModelCloseFreesOnce(t *testing.T) {
	e := newEngine(t)

	m, err := april.NewModel(testModelPath)
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}
	m.Close()
	m.Close()

	if got := e.FreeModelCalls.Load(); got != 1 {
		t.Fatalf("FreeModel called %d times, want 1", got)
	}
	if e.LiveModels() != 0 {
		t.Fatalf("model still live")
	}
	if _, err := m.Name(); !errors.Is(err, april.ErrClosed) {
		t.Fatalf("Name after Close: expected ErrClosed, got %v", err)
	}
	if m.SampleRate() != 0 {
		t.Fatalf("SampleRate after Close should be 0")
	}
}

func TestSessionKeepsModelAlive(t *testing.T) {
	e := newEngine(t)

	m, err := april.NewModel(testModelPath)
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}
	s, err := m.NewSession(april.NewConfig())
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	m.Close()
	if e.FreeModelCalls.Load() != 0 {
		t.Fatalf("model freed while a session is open")
	}
	if err := s.FeedPCM16(make([]int16, 160)); err != nil {
		t.Fatalf("FeedPCM16 after model Close: %v", err)
	}

	s.Close()
	if got := e.FreeModelCalls.Load(); got != 1 {
		t.Fatalf("FreeModel called %d times after last session closed, want 1", got)
	}
}

func TestNewSessionOnClosedModel(t *testing.T) {
	e := newEngine(t)
	m := loadModel(t)
	m.Close()

	before := april.LiveContexts()
	cfg := april.NewConfig()
	cfg.SetHandler(func(april.ResultType, april.Tokens) {})

	if _, err := m.NewSession(cfg); !errors.Is(err, april.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if april.LiveContexts() != before {
		t.Fatalf("handler context leaked")
	}
	if e.CreateSessionCalls.Load() != 0 {
		t.Fatalf("engine called for a closed model")
	}
}

func TestModelClosedDuringQuery(t *testing.T) {
	e := newEngine(t)
	m, err := april.NewModel(testModelPath)
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}

	// The owner closes the model while the engine is answering.
	e.QueryHook = func() { m.Close() }

	name, err := m.Name()
	if err != nil {
		t.Fatalf("Name: %v", err)
	}
	if name != "April English Dev-01110" {
		t.Fatalf("Name = %q", name)
	}
	if e.LiveModels() != 0 || e.FreeModelCalls.Load() != 1 {
		t.Fatalf("model should be freed once after the query: live=%d frees=%d",
			e.LiveModels(), e.FreeModelCalls.Load())
	}
	if m.SampleRate() != 0 {
		t.Fatalf("SampleRate after Close should be 0")
	}
}
