package april

import "unsafe"

// Version is the API version passed to the engine's one-time init call.
const Version = 1

// Engine is the native ABI surface of the recognition engine. Handles are
// opaque; a nil handle means the native call returned NULL.
//
// The cgo implementation lives in package capi. Tests use apriltest.Engine.
type Engine interface {
	// Init performs process-wide engine setup. The binding calls it at most
	// once per registered engine.
	Init(version int32)

	CreateModel(path string) unsafe.Pointer
	// ModelName, ModelDescription and ModelLanguage return ok == false when
	// the engine returned NULL.
	ModelName(model unsafe.Pointer) (text []byte, ok bool)
	ModelDescription(model unsafe.Pointer) (text []byte, ok bool)
	ModelLanguage(model unsafe.Pointer) (text []byte, ok bool)
	ModelSampleRate(model unsafe.Pointer) int
	FreeModel(model unsafe.Pointer)

	CreateSession(model unsafe.Pointer, cfg NativeConfig) unsafe.Pointer
	// FeedPCM16 hands samples to the engine for the duration of the call.
	// The engine may write to the buffer.
	FeedPCM16(session unsafe.Pointer, samples []int16)
	Flush(session unsafe.Pointer)
	RealtimeSpeedup(session unsafe.Pointer) float32
	// FreeSession must not return while a callback for session is running,
	// and no callback may start after it returns.
	FreeSession(session unsafe.Pointer)
}

// NativeConfig is the by-value session config handed to the engine.
//
// When RawHandler is non-nil, RawHandler and RawUserdata are installed
// verbatim. Otherwise a non-zero Context installs the engine's trampoline
// with Context as its userdata, and a zero Context installs no handler.
type NativeConfig struct {
	Speaker     SpeakerID
	Flags       ConfigFlags
	Context     uintptr
	RawHandler  unsafe.Pointer
	RawUserdata unsafe.Pointer
}
