package april_test

import (
	"errors"
	"sync"
	"testing"

	"aprilgo/pkg/april"
)

type recorder struct {
	mu      sync.Mutex
	results []april.ResultType
	final   april.Tokens
}

func (r *recorder) handle(result april.ResultType, tokens april.Tokens) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
	if result == april.ResultRecognitionFinal {
		r.final = tokens
	}
}

func (r *recorder) count(result april.ResultType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, got := range r.results {
		if got == result {
			n++
		}
	}
	return n
}

func (r *recorder) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.results)
}

func newSession(t *testing.T, m *april.Model, flags april.ConfigFlags, rec *recorder) *april.Session {
	t.Helper()
	cfg := april.NewConfig()
	cfg.Flags = flags
	if rec != nil {
		cfg.SetHandler(rec.handle)
	}
	s, err := m.NewSession(cfg)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestFeedEmptyIsNoop(t *testing.T) {
	e := newEngine(t)
	m := loadModel(t)
	rec := &recorder{}
	s := newSession(t, m, 0, rec)

	if err := s.FeedPCM16(nil); err != nil {
		t.Fatalf("FeedPCM16(nil): %v", err)
	}
	if err := s.FeedPCM16([]int16{}); err != nil {
		t.Fatalf("FeedPCM16(empty): %v", err)
	}
	if err := s.FeedPCM16LE(nil); err != nil {
		t.Fatalf("FeedPCM16LE(nil): %v", err)
	}
	if got := e.FeedCalls.Load(); got != 0 {
		t.Fatalf("engine FeedPCM16 called %d times", got)
	}
	if rec.total() != 0 {
		t.Fatalf("handler called for empty audio")
	}
}

func TestSyncFeedAndFlushYieldsFinal(t *testing.T) {
	e := newEngine(t)
	m := loadModel(t)
	rec := &recorder{}
	s := newSession(t, m, 0, rec)

	// One second of audio at the model rate.
	samples := make([]int16, m.SampleRate())
	for i := range samples {
		samples[i] = int16(i % 512)
	}
	if err := s.FeedPCM16(samples); err != nil {
		t.Fatalf("FeedPCM16: %v", err)
	}
	if rec.count(april.ResultRecognitionPartial) == 0 {
		t.Fatalf("no partial result during a sync feed")
	}
	if err := s.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if rec.count(april.ResultRecognitionFinal) == 0 {
		t.Fatalf("no final result before Flush returned")
	}
	if rec.final.Text() == "" {
		t.Fatalf("final tokens are empty")
	}
	if rec.final.Text() != " and so my fellow americans" {
		t.Fatalf("final text = %q", rec.final.Text())
	}
	last := rec.final[len(rec.final)-1]
	if !last.Flags.Has(april.TokenSentenceEnd) {
		t.Fatalf("last token flags = %v", last.Flags)
	}
	if e.LastSession().Samples() != len(samples) {
		t.Fatalf("engine saw %d samples", e.LastSession().Samples())
	}
}

func TestFeedPCM16LE(t *testing.T) {
	e := newEngine(t)
	m := loadModel(t)
	s := newSession(t, m, 0, nil)

	if err := s.FeedPCM16LE([]byte{1, 0, 2}); !errors.Is(err, april.ErrInvalidAudio) {
		t.Fatalf("odd length: expected ErrInvalidAudio, got %v", err)
	}
	if err := s.FeedPCM16LE([]byte{1, 0, 0xff, 0xff}); err != nil {
		t.Fatalf("FeedPCM16LE: %v", err)
	}
	if got := e.LastSession().Samples(); got != 2 {
		t.Fatalf("engine saw %d samples, want 2", got)
	}
}

func TestCloseWithoutFlushReleasesContextOnce(t *testing.T) {
	e := newEngine(t)
	m := loadModel(t)

	before := april.LiveContexts()
	rec := &recorder{}
	cfg := april.NewConfig()
	cfg.SetHandler(rec.handle)
	s, err := m.NewSession(cfg)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if err := s.FeedPCM16(make([]int16, 320)); err != nil {
		t.Fatalf("FeedPCM16: %v", err)
	}
	calls := rec.total()

	s.Close()
	s.Close()

	if got := april.LiveContexts() - before; got != 0 {
		t.Fatalf("%d contexts live after Close", got)
	}
	if got := e.FreeSessionCalls.Load(); got != 1 {
		t.Fatalf("FreeSession called %d times, want 1", got)
	}
	if rec.total() != calls {
		t.Fatalf("handler called after Close")
	}
	if err := s.FeedPCM16(make([]int16, 10)); !errors.Is(err, april.ErrClosed) {
		t.Fatalf("FeedPCM16 after Close: expected ErrClosed, got %v", err)
	}
	if err := s.Flush(); !errors.Is(err, april.ErrClosed) {
		t.Fatalf("Flush after Close: expected ErrClosed, got %v", err)
	}
	if e.LateCallbacks.Load() != 0 {
		t.Fatalf("engine delivered results after free")
	}
}

func TestAsyncSessionDeliversFromEngineThread(t *testing.T) {
	e := newEngine(t)
	m := loadModel(t)

	before := april.LiveContexts()
	rec := &recorder{}
	cfg := april.NewConfig()
	cfg.Flags = april.FlagAsyncRealtime
	cfg.SetHandler(rec.handle)
	s, err := m.NewSession(cfg)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	for i := 0; i < 10; i++ {
		if err := s.FeedPCM16(make([]int16, 1600)); err != nil {
			t.Fatalf("FeedPCM16: %v", err)
		}
	}
	if err := s.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if s.RealtimeSpeedup() <= 0 {
		t.Fatalf("RealtimeSpeedup = %v", s.RealtimeSpeedup())
	}

	// Close waits for the engine to drain, so every queued result has been
	// delivered once it returns, and none after.
	s.Close()
	if got := rec.count(april.ResultRecognitionPartial); got != 10 {
		t.Fatalf("%d partial results, want 10", got)
	}
	if got := rec.count(april.ResultRecognitionFinal); got != 1 {
		t.Fatalf("%d final results, want 1", got)
	}
	if april.LiveContexts() != before {
		t.Fatalf("context leaked")
	}
	if e.LateCallbacks.Load() != 0 {
		t.Fatalf("late callbacks: %d", e.LateCallbacks.Load())
	}
}

func TestNewSessionFailureReleasesContext(t *testing.T) {
	e := newEngine(t)
	m := loadModel(t)
	e.FailSessions.Store(true)

	before := april.LiveContexts()
	cfg := april.NewConfig()
	cfg.SetHandler(func(april.ResultType, april.Tokens) {})

	s, err := m.NewSession(cfg)
	if s != nil || !errors.Is(err, april.ErrNullPointer) {
		t.Fatalf("expected ErrNullPointer, got %v", err)
	}
	if april.LiveContexts() != before {
		t.Fatalf("context leaked on failed session creation")
	}

	// The failed session must not hold a model reference.
	m.Close()
	if e.FreeModelCalls.Load() != 1 {
		t.Fatalf("model not freed after failed session")
	}
}

func TestSessionWithoutHandler(t *testing.T) {
	e := newEngine(t)
	m := loadModel(t)
	s := newSession(t, m, 0, nil)

	if e.LastSession().Config.Context != 0 {
		t.Fatalf("context installed without a handler")
	}
	if err := s.FeedPCM16(make([]int16, 100)); err != nil {
		t.Fatalf("FeedPCM16: %v", err)
	}
	if err := s.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if s.ID() == "" || s.Model() != m {
		t.Fatalf("session accessors")
	}
}

func TestSessionIDsAreUnique(t *testing.T) {
	newEngine(t)
	m := loadModel(t)

	a := newSession(t, m, 0, nil)
	b := newSession(t, m, 0, nil)
	if a.ID() == b.ID() {
		t.Fatalf("duplicate session id %q", a.ID())
	}
}
