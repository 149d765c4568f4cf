package april

import (
	"strings"
	"sync"
	"unicode/utf8"
	"unsafe"

	"go.uber.org/zap"
)

// Model is a loaded recognition model.
//
// Sessions keep the native model alive: Close releases the caller's
// reference and the model is freed once every session created from it has
// been closed as well.
type Model struct {
	engine Engine
	path   string

	mu     sync.Mutex
	handle unsafe.Pointer
	refs   int
	closed bool
}

// ModelInfo is the metadata reported by a model.
type ModelInfo struct {
	Name        string
	Description string
	Language    string
	SampleRate  int
}

// NewModel loads the model file at path.
func NewModel(path string) (*Model, error) {
	engine, err := initEngine()
	if err != nil {
		return nil, err
	}

	if strings.IndexByte(path, 0) >= 0 {
		return nil, newError("load model", KindStringEncoding, "path contains a NUL byte")
	}

	handle := engine.CreateModel(path)
	if handle == nil {
		return nil, newError("load model", KindNullPointer, path)
	}

	Logger().Debug("model loaded", zap.String("path", path))

	return &Model{
		engine: engine,
		path:   path,
		handle: handle,
		refs:   1,
	}, nil
}

// Path returns the file the model was loaded from.
func (m *Model) Path() string {
	return m.path
}

// hold takes a reference for the duration of a metadata query so that a
// concurrent Close cannot free the native model under it. It returns nil once
// the owner has closed the model; a non-nil handle must be paired with release.
func (m *Model) hold() unsafe.Pointer {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.refs++
	return m.handle
}

// Name returns the model name.
func (m *Model) Name() (string, error) {
	return m.text("model name", m.engine.ModelName)
}

// Description returns the model description.
func (m *Model) Description() (string, error) {
	return m.text("model description", m.engine.ModelDescription)
}

// Language returns the model language code, such as "en".
func (m *Model) Language() (string, error) {
	return m.text("model language", m.engine.ModelLanguage)
}

func (m *Model) text(op string, query func(unsafe.Pointer) ([]byte, bool)) (string, error) {
	h := m.hold()
	if h == nil {
		return "", newError(op, KindClosed, "")
	}
	defer m.release()

	b, ok := query(h)
	if !ok {
		return "", newError(op, KindNullPointer, "")
	}
	if !utf8.Valid(b) {
		return "", newError(op, KindInvalidUTF8, "")
	}
	return string(b), nil
}

// SampleRate returns the sample rate, in Hz, that audio fed to sessions of
// this model must have. It returns 0 after Close.
func (m *Model) SampleRate() int {
	h := m.hold()
	if h == nil {
		return 0
	}
	defer m.release()
	return m.engine.ModelSampleRate(h)
}

// Info returns all model metadata at once.
func (m *Model) Info() (ModelInfo, error) {
	var info ModelInfo
	var err error

	if info.Name, err = m.Name(); err != nil {
		return ModelInfo{}, err
	}
	if info.Description, err = m.Description(); err != nil {
		return ModelInfo{}, err
	}
	if info.Language, err = m.Language(); err != nil {
		return ModelInfo{}, err
	}
	info.SampleRate = m.SampleRate()
	return info, nil
}

// NewSession creates a session and takes ownership of cfg's handler. The
// handler is released when the session is closed, or right away if the
// session cannot be created.
func (m *Model) NewSession(cfg *Config) (*Session, error) {
	if cfg == nil {
		cfg = NewConfig()
	}

	nc, err := cfg.take()
	if err != nil {
		return nil, err
	}

	h, err := m.acquire()
	if err != nil {
		releaseContext(nc.Context)
		return nil, err
	}

	handle := m.engine.CreateSession(h, nc)
	if handle == nil {
		releaseContext(nc.Context)
		m.release()
		return nil, newError("create session", KindNullPointer, "")
	}

	return newSession(m, handle, nc), nil
}

// acquire adds a session reference.
func (m *Model) acquire() (unsafe.Pointer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, newError("create session", KindClosed, "model")
	}
	m.refs++
	return m.handle, nil
}

// release drops a reference and frees the native model with the last one.
func (m *Model) release() {
	m.mu.Lock()
	m.refs--
	if m.refs > 0 {
		m.mu.Unlock()
		return
	}
	h := m.handle
	m.handle = nil
	m.mu.Unlock()

	if h != nil {
		m.engine.FreeModel(h)
		Logger().Debug("model freed", zap.String("path", m.path))
	}
}

// Close releases the caller's reference to the model. It is safe to call
// more than once.
func (m *Model) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.release()
	return nil
}
