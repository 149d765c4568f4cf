package april

import (
	"encoding/binary"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Session is a recognition session created by Model.NewSession.
//
// A Session is not safe for concurrent use. In sync mode the handler runs
// on the goroutine calling FeedPCM16 or Flush; the handler must not call
// back into the same session.
type Session struct {
	id     string
	model  *Model
	engine Engine
	handle unsafe.Pointer
	flags  ConfigFlags

	// context is the callback context id owned by this session, zero when
	// no Go handler was installed.
	context uintptr

	closed    atomic.Bool
	closeOnce sync.Once
}

func newSession(m *Model, handle unsafe.Pointer, nc NativeConfig) *Session {
	s := &Session{
		id:      uuid.NewString(),
		model:   m,
		engine:  m.engine,
		handle:  handle,
		flags:   nc.Flags,
		context: nc.Context,
	}
	Logger().Debug("session created",
		zap.String("session", s.id),
		zap.Stringer("mode", nc.Flags),
		zap.Bool("handler", nc.Context != 0 || nc.RawHandler != nil),
	)
	return s
}

// ID returns a unique id for logging.
func (s *Session) ID() string {
	return s.id
}

// Model returns the model the session was created from.
func (s *Session) Model() *Model {
	return s.model
}

// Flags returns the flags the session was created with.
func (s *Session) Flags() ConfigFlags {
	return s.flags
}

// FeedPCM16 feeds mono 16-bit samples at the model's sample rate. An empty
// slice is a no-op. The engine may modify samples during the call.
func (s *Session) FeedPCM16(samples []int16) error {
	if s.closed.Load() {
		return newError("feed", KindClosed, "session")
	}
	if len(samples) == 0 {
		return nil
	}
	s.engine.FeedPCM16(s.handle, samples)
	return nil
}

// FeedPCM16LE feeds little-endian PCM16 bytes, as read from a raw audio file.
func (s *Session) FeedPCM16LE(data []byte) error {
	if len(data)%2 != 0 {
		return newError("feed", KindInvalidAudio, "odd byte count")
	}
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return s.FeedPCM16(samples)
}

// Flush ends the current utterance and makes the engine emit what it has
// buffered. In sync mode the handler may run before Flush returns.
func (s *Session) Flush() error {
	if s.closed.Load() {
		return newError("flush", KindClosed, "session")
	}
	s.engine.Flush(s.handle)
	return nil
}

// RealtimeSpeedup returns how much faster than realtime the engine is
// processing. Only meaningful with FlagAsyncRealtime.
func (s *Session) RealtimeSpeedup() float32 {
	if s.closed.Load() {
		return 0
	}
	return s.engine.RealtimeSpeedup(s.handle)
}

// Close frees the session. The native session is freed first, which waits
// for any running handler call; only then is the handler released. The
// handler is never called after Close returns. Close is idempotent.
func (s *Session) Close() error {
	s.closeOnce.Do(s.teardown)
	return nil
}

func (s *Session) teardown() {
	s.closed.Store(true)

	s.engine.FreeSession(s.handle)
	s.handle = nil

	releaseContext(s.context)
	s.context = 0

	s.model.release()

	Logger().Debug("session closed", zap.String("session", s.id))
}
