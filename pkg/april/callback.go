package april

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Handler receives recognition results. Tokens are owned copies and may be
// kept after the call returns.
//
// The engine never runs two handler calls for the same session at once, but
// with an async flag it calls from its own thread. A Handler must not panic:
// a panic terminates the process, since it cannot unwind through the engine.
type Handler func(result ResultType, tokens Tokens)

// callbackContext is the state the opaque context id stands for.
type callbackContext struct {
	handler Handler
}

// contexts maps opaque context ids to their state. Only the id crosses into
// C, so the engine never holds a Go pointer.
var (
	contexts    sync.Map // uintptr -> *callbackContext
	nextContext atomic.Uintptr
	liveCount   atomic.Int64
)

// newContext stores h and returns its opaque id. The id must be passed to
// releaseContext exactly once.
func newContext(h Handler) uintptr {
	id := nextContext.Add(1)
	contexts.Store(id, &callbackContext{handler: h})
	liveCount.Add(1)
	return id
}

// releaseContext deletes the state behind id. Zero is ignored.
func releaseContext(id uintptr) {
	if id == 0 {
		return
	}
	if _, ok := contexts.LoadAndDelete(id); !ok {
		panic(fmt.Sprintf("april: callback context %d released twice", id))
	}
	liveCount.Add(-1)
}

func lookupContext(id uintptr) (*callbackContext, bool) {
	v, ok := contexts.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*callbackContext), true
}

// LiveContexts returns the number of callback contexts that have been
// created and not yet released.
func LiveContexts() int64 {
	return liveCount.Load()
}

// Dispatch is the Go side of the native trampoline. ctx is the userdata the
// engine passed back, code the raw result code, and marshal copies the
// engine's token array; it runs only after ctx has been validated.
//
// Dispatch never returns by panicking. A zero or unknown ctx, or a panic in
// marshal or in the Handler, terminates the process.
func Dispatch(ctx uintptr, code uint32, marshal func() Tokens) {
	if ctx == 0 {
		fatal("april: result callback invoked with a null context")
		return
	}

	defer func() {
		if r := recover(); r != nil {
			fatal("april: panic in result callback",
				zap.Uintptr("context", ctx),
				zap.Uint32("result_code", code),
				zap.Any("panic", r),
				zap.StackSkip("stack", 1),
			)
		}
	}()

	cc, ok := lookupContext(ctx)
	if !ok {
		fatal("april: result callback invoked with an unknown context", zap.Uintptr("context", ctx))
		return
	}

	result := ResultTypeFromCode(code)
	var tokens Tokens
	if marshal != nil {
		tokens = marshal()
	}
	if tokens == nil {
		tokens = Tokens{}
	}

	cc.handler(result, tokens)
}
