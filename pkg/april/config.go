package april

import (
	"fmt"
	"strings"
	"unsafe"
)

// ConfigFlags selects how a session processes audio.
type ConfigFlags int32

const (
	// FlagAsyncRealtime makes FeedPCM16 return immediately; an engine thread
	// processes audio at realtime pace, lowering accuracy when the machine
	// cannot keep up. RealtimeSpeedup reports the current ratio.
	FlagAsyncRealtime ConfigFlags = 1
	// FlagAsyncNonRealtime makes FeedPCM16 return immediately; an engine
	// thread processes audio as fast as it can without dropping accuracy.
	FlagAsyncNonRealtime ConfigFlags = 2
)

// Async reports whether any async flag is set.
func (f ConfigFlags) Async() bool {
	return f&(FlagAsyncRealtime|FlagAsyncNonRealtime) != 0
}

func (f ConfigFlags) String() string {
	switch {
	case f == 0:
		return "sync"
	case f == FlagAsyncRealtime:
		return "async-rt"
	case f == FlagAsyncNonRealtime:
		return "async-nort"
	default:
		return fmt.Sprintf("flags(0x%x)", int32(f))
	}
}

// ParseMode parses "sync", "async-rt" or "async-nort".
func ParseMode(s string) (ConfigFlags, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sync":
		return 0, nil
	case "async-rt", "realtime", "rt":
		return FlagAsyncRealtime, nil
	case "async-nort", "async-no-rt", "nort":
		return FlagAsyncNonRealtime, nil
	default:
		return 0, fmt.Errorf("april: unknown session mode %q", s)
	}
}

// SpeakerID identifies a speaker to the engine. The engine currently
// ignores it.
type SpeakerID [16]byte

// Config describes a session that has not been created yet.
//
// A Config holding a handler owns a callback context. Model.NewSession takes
// that ownership over; a Config that is dropped without being used should
// have ClearHandler called on it. A Config can create one session only.
type Config struct {
	Speaker SpeakerID
	Flags   ConfigFlags

	context     uintptr
	rawHandler  unsafe.Pointer
	rawUserdata unsafe.Pointer
	consumed    bool
}

// NewConfig returns a config with no handler, sync processing and a zero
// speaker.
func NewConfig() *Config {
	return &Config{}
}

// SetHandler installs fn as the result handler, releasing any handler that
// was installed before. A nil fn is the same as ClearHandler. On a config
// that already created a session it does nothing.
func (c *Config) SetHandler(fn Handler) {
	c.ClearHandler()
	if fn == nil || c.consumed {
		return
	}
	c.context = newContext(fn)
}

// SetHandlerData installs fn as the handler of cfg together with the data
// it is called with.
func SetHandlerData[D any](cfg *Config, fn func(data D, result ResultType, tokens Tokens), data D) {
	if fn == nil {
		cfg.ClearHandler()
		return
	}
	cfg.SetHandler(func(result ResultType, tokens Tokens) {
		fn(data, result, tokens)
	})
}

// SetRawHandler installs a C function pointer and its userdata verbatim,
// releasing any Go handler first. fn must have the engine's callback
// signature, must be safe to call from any thread, must never unwind, and
// must not call back into the engine. The caller owns userdata and must keep
// it valid until the session is closed. Like SetHandler it does nothing on a
// consumed config.
func (c *Config) SetRawHandler(fn, userdata unsafe.Pointer) {
	c.ClearHandler()
	if c.consumed {
		return
	}
	c.rawHandler = fn
	c.rawUserdata = userdata
}

// ClearHandler releases the installed handler, if any.
func (c *Config) ClearHandler() {
	if c.context != 0 {
		releaseContext(c.context)
		c.context = 0
	}
	c.rawHandler = nil
	c.rawUserdata = nil
}

// HasHandler reports whether a Go or raw handler is installed.
func (c *Config) HasHandler() bool {
	return c.context != 0 || c.rawHandler != nil
}

// take moves the native form out of c and marks c consumed. The returned
// context id now belongs to the caller.
func (c *Config) take() (NativeConfig, error) {
	if c.consumed {
		return NativeConfig{}, ErrConfigConsumed
	}
	nc := NativeConfig{
		Speaker:     c.Speaker,
		Flags:       c.Flags,
		Context:     c.context,
		RawHandler:  c.rawHandler,
		RawUserdata: c.rawUserdata,
	}
	c.context = 0
	c.rawHandler = nil
	c.rawUserdata = nil
	c.consumed = true
	return nc, nil
}
