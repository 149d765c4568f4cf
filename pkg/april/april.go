// Package april is a Go binding for the April ASR streaming speech
// recognition engine.
//
// A Model is loaded from a file, a Config carries the result Handler, and
// Model.NewSession turns the Config into a Session that accepts PCM16
// audio. Results are delivered to the Handler, either inline during
// FeedPCM16/Flush or from an engine thread when an async flag is set.
//
// The native engine is plugged in through Register; importing
// aprilgo/pkg/april/capi registers the cgo implementation.
package april

import (
	"os"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

var (
	logger atomic.Pointer[zap.Logger]
	nop    = zap.NewNop()
)

// Logger returns the package logger. It is a no-op logger by default.
// Safe to call from engine threads.
func Logger() *zap.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	return nop
}

// SetLogger configures the package logger. It may be called at any time,
// including while sessions deliver results. A nil l restores the no-op logger.
func SetLogger(l *zap.Logger) {
	logger.Store(l)
}

// fatal terminates the process. It is used where returning would mean
// unwinding through engine frames.
var fatal = func(msg string, fields ...zap.Field) {
	Logger().Fatal(msg, fields...)
	// A custom fatal hook may return.
	os.Exit(2)
}

type registration struct {
	engine Engine
	once   sync.Once
}

var (
	regMu   sync.RWMutex
	current *registration
)

// Register installs the native engine used by NewModel. The engine's Init
// runs once, on the first model load after registration.
func Register(e Engine) {
	regMu.Lock()
	defer regMu.Unlock()

	if e == nil {
		current = nil
		return
	}
	current = &registration{engine: e}
}

// Registered returns the installed engine, or nil.
func Registered() Engine {
	regMu.RLock()
	defer regMu.RUnlock()

	if current == nil {
		return nil
	}
	return current.engine
}

// initEngine returns the registered engine, initializing it on first use.
func initEngine() (Engine, error) {
	regMu.RLock()
	reg := current
	regMu.RUnlock()

	if reg == nil {
		return nil, newError("init", KindNoEngine, "import aprilgo/pkg/april/capi or call Register")
	}

	reg.once.Do(func() {
		Logger().Debug("initializing april engine", zap.Int("version", Version))
		reg.engine.Init(Version)
	})
	return reg.engine, nil
}
