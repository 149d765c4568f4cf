//go:build cgo

package capi

/*
#cgo CFLAGS: -I${SRCDIR}/../../../third_party/april-asr
#cgo LDFLAGS: -L${SRCDIR}/../../../third_party/april-asr/build -laprilasr
#cgo linux LDFLAGS: -lonnxruntime -lstdc++ -lm -lpthread
#cgo darwin LDFLAGS: -lonnxruntime -lc++

#include <stdint.h>
#include <stdlib.h>
#include <string.h>
#include "april_api.h"

// Defined in trampoline.c.
extern void aprilTrampoline(void* userdata, AprilResultType result, size_t count, const AprilToken* tokens);

// The context id is turned into a pointer on the C side so Go never builds
// an unsafe.Pointer from an integer.
static AprilConfig april_make_config(const uint8_t* speaker, uintptr_t ctx, void* raw, void* raw_userdata, int flags) {
    AprilConfig cfg;
    memset(&cfg, 0, sizeof(cfg));
    memcpy(cfg.speaker.data, speaker, sizeof(cfg.speaker.data));
    if (raw != NULL) {
        cfg.handler = (AprilRecognitionResultHandler)raw;
        cfg.userdata = raw_userdata;
    } else if (ctx != 0) {
        cfg.handler = aprilTrampoline;
        cfg.userdata = (void*)ctx;
    }
    cfg.flags = (AprilConfigFlagBits)flags;
    return cfg;
}
*/
import "C"

import (
	"unsafe"

	"aprilgo/pkg/april"
)

func init() {
	april.Register(Engine{})
}

// Engine calls into the April ASR C library.
type Engine struct{}

var _ april.Engine = Engine{}

func (Engine) Init(version int32) {
	C.aam_api_init(C.int(version))
}

func (Engine) CreateModel(path string) unsafe.Pointer {
	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))

	return unsafe.Pointer(C.aam_create_model(cPath))
}

func (Engine) ModelName(model unsafe.Pointer) ([]byte, bool) {
	return goBytes(C.aam_get_name(C.AprilASRModel(model)))
}

func (Engine) ModelDescription(model unsafe.Pointer) ([]byte, bool) {
	return goBytes(C.aam_get_description(C.AprilASRModel(model)))
}

func (Engine) ModelLanguage(model unsafe.Pointer) ([]byte, bool) {
	return goBytes(C.aam_get_language(C.AprilASRModel(model)))
}

func (Engine) ModelSampleRate(model unsafe.Pointer) int {
	return int(C.aam_get_sample_rate(C.AprilASRModel(model)))
}

func (Engine) FreeModel(model unsafe.Pointer) {
	C.aam_free(C.AprilASRModel(model))
}

func (Engine) CreateSession(model unsafe.Pointer, nc april.NativeConfig) unsafe.Pointer {
	cfg := C.april_make_config(
		(*C.uint8_t)(unsafe.Pointer(&nc.Speaker[0])),
		C.uintptr_t(nc.Context),
		nc.RawHandler,
		nc.RawUserdata,
		C.int(nc.Flags),
	)
	return unsafe.Pointer(C.aas_create_session(C.AprilASRModel(model), cfg))
}

func (Engine) FeedPCM16(session unsafe.Pointer, samples []int16) {
	if len(samples) == 0 {
		return
	}
	C.aas_feed_pcm16(
		C.AprilASRSession(session),
		(*C.short)(unsafe.Pointer(&samples[0])),
		C.size_t(len(samples)),
	)
}

func (Engine) Flush(session unsafe.Pointer) {
	C.aas_flush(C.AprilASRSession(session))
}

func (Engine) RealtimeSpeedup(session unsafe.Pointer) float32 {
	return float32(C.aas_realtime_get_speedup(C.AprilASRSession(session)))
}

func (Engine) FreeSession(session unsafe.Pointer) {
	C.aas_free(C.AprilASRSession(session))
}

// goBytes copies a NUL-terminated engine string. The engine keeps ownership
// of p.
func goBytes(p *C.char) ([]byte, bool) {
	if p == nil {
		return nil, false
	}
	return C.GoBytes(unsafe.Pointer(p), C.int(C.strlen(p))), true
}
