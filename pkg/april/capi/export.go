//go:build cgo

package capi

/*
#include <stddef.h>
#include <stdint.h>
#include "april_api.h"
*/
import "C"

import (
	"unsafe"

	"aprilgo/pkg/april"
)

// aprilGoHandler is called by aprilTrampoline for every engine result.
//
//export aprilGoHandler
func aprilGoHandler(userdata C.uintptr_t, result C.uint, count C.size_t, tokens *C.AprilToken) {
	april.Dispatch(uintptr(userdata), uint32(result), func() april.Tokens {
		return copyTokens(tokens, int(count))
	})
}

// copyTokens copies the engine's token array; it is only valid during the
// callback.
func copyTokens(tokens *C.AprilToken, n int) april.Tokens {
	if tokens == nil || n <= 0 {
		return april.Tokens{}
	}

	src := unsafe.Slice(tokens, n)
	out := make(april.Tokens, n)
	for i := range src {
		t := &src[i]
		var text string
		if t.token != nil {
			text = C.GoString(t.token)
		}
		out[i] = april.NewToken(text, float32(t.logprob), uint32(t.flags), uint64(t.time_ms))
	}
	return out
}
