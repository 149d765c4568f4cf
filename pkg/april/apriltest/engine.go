// Package apriltest provides an in-memory april.Engine for tests.
//
// The engine recognizes nothing: each model is configured with a fixed
// phrase, and every session "hears" that phrase once audio has been fed.
// Feeding audio emits a partial result, Flush emits the final result. Sessions
// created with an async flag deliver results from a background goroutine,
// one at a time, and FreeSession waits for it to drain.
package apriltest

import (
	"strings"
	"sync"
	"sync/atomic"
	"unsafe"

	"aprilgo/pkg/april"
)

// DefaultSampleRate is the sample rate of models added without one.
const DefaultSampleRate = 16000

// ModelSpec describes a fake model file.
type ModelSpec struct {
	Name        string
	Description string
	Language    string
	SampleRate  int
	// Phrase is what every session of the model recognizes.
	Phrase string

	// RawName overrides Name with arbitrary bytes; NullName makes the engine
	// return NULL for it. Same for the other metadata.
	RawName         []byte
	NullName        bool
	NullLanguage    bool
	NullDescription bool
}

// RawToken is a token as the engine would hand it over.
type RawToken struct {
	Text    string
	Logprob float32
	Flags   uint32
	TimeMS  uint64
}

// Engine is a fake april.Engine. The zero value is not usable; use New.
type Engine struct {
	mu       sync.Mutex
	specs    map[string]ModelSpec
	models   map[*model]struct{}
	sessions map[*Session]struct{}
	last     *Session

	// FailSessions makes CreateSession return NULL.
	FailSessions atomic.Bool
	// QueryHook, if set, runs at the start of every model metadata query,
	// before the model handle is checked. Set it before the model is used.
	QueryHook func()

	InitCalls          atomic.Int64
	CreateModelCalls   atomic.Int64
	FreeModelCalls     atomic.Int64
	CreateSessionCalls atomic.Int64
	FreeSessionCalls   atomic.Int64
	FeedCalls          atomic.Int64
	FlushCalls         atomic.Int64
	// LateCallbacks counts results an engine session tried to deliver after
	// it was freed. A correct binding never makes this non-zero.
	LateCallbacks atomic.Int64
}

var _ april.Engine = (*Engine)(nil)

// New returns an empty engine.
func New() *Engine {
	return &Engine{
		specs:    make(map[string]ModelSpec),
		models:   make(map[*model]struct{}),
		sessions: make(map[*Session]struct{}),
	}
}

// Install creates a new engine and registers it with the binding.
func Install() *Engine {
	e := New()
	april.Register(e)
	return e
}

// AddModel makes path loadable.
func (e *Engine) AddModel(path string, spec ModelSpec) {
	if spec.SampleRate == 0 {
		spec.SampleRate = DefaultSampleRate
	}
	e.mu.Lock()
	e.specs[path] = spec
	e.mu.Unlock()
}

// LiveModels returns the number of models created and not freed.
func (e *Engine) LiveModels() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.models)
}

// LiveSessions returns the number of sessions created and not freed.
func (e *Engine) LiveSessions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sessions)
}

// LastSession returns the most recently created session.
func (e *Engine) LastSession() *Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

type model struct {
	spec ModelSpec
}

func (e *Engine) Init(int32) {
	e.InitCalls.Add(1)
}

func (e *Engine) CreateModel(path string) unsafe.Pointer {
	e.CreateModelCalls.Add(1)

	e.mu.Lock()
	defer e.mu.Unlock()

	spec, ok := e.specs[path]
	if !ok {
		return nil
	}
	m := &model{spec: spec}
	e.models[m] = struct{}{}
	return unsafe.Pointer(m)
}

// queryModel runs QueryHook and then resolves the model handle.
func (e *Engine) queryModel(p unsafe.Pointer) *model {
	if e.QueryHook != nil {
		e.QueryHook()
	}
	return e.lookupModel(p)
}

func (e *Engine) lookupModel(p unsafe.Pointer) *model {
	m := (*model)(p)
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.models[m]; !ok {
		panic("apriltest: use of a freed or unknown model")
	}
	return m
}

func (e *Engine) ModelName(p unsafe.Pointer) ([]byte, bool) {
	spec := e.queryModel(p).spec
	if spec.NullName {
		return nil, false
	}
	if spec.RawName != nil {
		return append([]byte(nil), spec.RawName...), true
	}
	return []byte(spec.Name), true
}

func (e *Engine) ModelDescription(p unsafe.Pointer) ([]byte, bool) {
	spec := e.queryModel(p).spec
	if spec.NullDescription {
		return nil, false
	}
	return []byte(spec.Description), true
}

func (e *Engine) ModelLanguage(p unsafe.Pointer) ([]byte, bool) {
	spec := e.queryModel(p).spec
	if spec.NullLanguage {
		return nil, false
	}
	return []byte(spec.Language), true
}

func (e *Engine) ModelSampleRate(p unsafe.Pointer) int {
	return e.queryModel(p).spec.SampleRate
}

func (e *Engine) FreeModel(p unsafe.Pointer) {
	e.FreeModelCalls.Add(1)
	m := (*model)(p)

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.models[m]; !ok {
		panic("apriltest: model freed twice")
	}
	for s := range e.sessions {
		if s.model == m {
			panic("apriltest: model freed while a session still uses it")
		}
	}
	delete(e.models, m)
}

func (e *Engine) CreateSession(p unsafe.Pointer, cfg april.NativeConfig) unsafe.Pointer {
	e.CreateSessionCalls.Add(1)
	m := e.lookupModel(p)
	if e.FailSessions.Load() {
		return nil
	}

	s := &Session{
		engine: e,
		model:  m,
		Config: cfg,
	}
	if cfg.Flags.Async() {
		s.queue = make(chan emission, 64)
		s.done = make(chan struct{})
		go s.deliverLoop()
	}

	e.mu.Lock()
	e.sessions[s] = struct{}{}
	e.last = s
	e.mu.Unlock()
	return unsafe.Pointer(s)
}

func (e *Engine) session(p unsafe.Pointer) *Session {
	s := (*Session)(p)
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.sessions[s]; !ok {
		panic("apriltest: use of a freed or unknown session")
	}
	return s
}

func (e *Engine) FeedPCM16(p unsafe.Pointer, samples []int16) {
	e.FeedCalls.Add(1)
	e.session(p).feed(samples)
}

func (e *Engine) Flush(p unsafe.Pointer) {
	e.FlushCalls.Add(1)
	e.session(p).flush()
}

func (e *Engine) RealtimeSpeedup(p unsafe.Pointer) float32 {
	s := e.session(p)
	if s.Config.Flags&april.FlagAsyncRealtime == 0 {
		return 0
	}
	return 1.5
}

func (e *Engine) FreeSession(p unsafe.Pointer) {
	e.FreeSessionCalls.Add(1)
	s := e.session(p)
	s.stop()

	e.mu.Lock()
	delete(e.sessions, s)
	e.mu.Unlock()
}

type emission struct {
	code   uint32
	tokens []RawToken
}

// Session is a fake engine session.
type Session struct {
	engine *Engine
	model  *model
	// Config is the config the session was created with.
	Config april.NativeConfig

	mu      sync.Mutex
	samples int
	pending bool
	freed   atomic.Bool

	sendMu   sync.RWMutex
	stopping bool
	queue    chan emission
	done     chan struct{}
}

// Samples returns the number of samples fed so far.
func (s *Session) Samples() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.samples
}

func (s *Session) feed(samples []int16) {
	s.mu.Lock()
	s.samples += len(samples)
	s.pending = true
	offset := s.timeMS()
	s.mu.Unlock()

	words := s.words(offset)
	if len(words) > 0 {
		s.Emit(uint32(april.ResultRecognitionPartial), words[:1]...)
	}
}

func (s *Session) flush() {
	s.mu.Lock()
	pending := s.pending
	s.pending = false
	offset := s.timeMS()
	s.mu.Unlock()

	if !pending {
		s.Emit(uint32(april.ResultSilence))
		return
	}
	s.Emit(uint32(april.ResultRecognitionFinal), s.words(offset)...)
}

// timeMS must be called with s.mu held.
func (s *Session) timeMS() uint64 {
	rate := s.model.spec.SampleRate
	return uint64(s.samples) * 1000 / uint64(rate)
}

func (s *Session) words(end uint64) []RawToken {
	fields := strings.Fields(s.model.spec.Phrase)
	tokens := make([]RawToken, 0, len(fields))
	for i, w := range fields {
		flags := uint32(april.TokenWordBoundary)
		if i == len(fields)-1 {
			flags |= uint32(april.TokenSentenceEnd)
		}
		tokens = append(tokens, RawToken{
			Text:    " " + w,
			Logprob: -0.1,
			Flags:   flags,
			TimeMS:  end * uint64(i) / uint64(len(fields)),
		})
	}
	return tokens
}

// Emit delivers a result to the session's handler the way the engine would:
// inline in sync mode, from the delivery goroutine in async mode.
func (s *Session) Emit(code uint32, tokens ...RawToken) {
	em := emission{code: code, tokens: tokens}
	if s.queue == nil {
		s.deliver(em)
		return
	}

	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.stopping {
		s.engine.LateCallbacks.Add(1)
		return
	}
	s.queue <- em
}

func (s *Session) deliver(em emission) {
	if s.freed.Load() {
		s.engine.LateCallbacks.Add(1)
		return
	}
	if s.Config.Context == 0 {
		return
	}
	april.Dispatch(s.Config.Context, em.code, func() april.Tokens {
		if em.tokens == nil {
			return nil
		}
		out := make(april.Tokens, len(em.tokens))
		for i, t := range em.tokens {
			out[i] = april.NewToken(t.Text, t.Logprob, t.Flags, t.TimeMS)
		}
		return out
	})
}

func (s *Session) deliverLoop() {
	defer close(s.done)
	for em := range s.queue {
		s.deliver(em)
	}
}

// stop drains pending async results and marks the session freed.
func (s *Session) stop() {
	if s.queue != nil {
		s.sendMu.Lock()
		s.stopping = true
		close(s.queue)
		s.sendMu.Unlock()
		<-s.done
	}
	s.freed.Store(true)
}
