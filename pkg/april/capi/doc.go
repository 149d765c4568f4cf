// Package capi is the cgo implementation of april.Engine on top of the
// April ASR C library (april_api.h). Importing it registers the engine:
//
//	import _ "aprilgo/pkg/april/capi"
//
// The library is expected under third_party/april-asr (see the Makefile);
// CGO_CFLAGS and CGO_LDFLAGS can point elsewhere.
package capi
