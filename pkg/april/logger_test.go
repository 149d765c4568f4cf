package april_test

import (
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"aprilgo/pkg/april"
)

func TestSetLogger(t *testing.T) {
	newEngine(t)
	t.Cleanup(func() { april.SetLogger(nil) })

	core, logs := observer.New(zap.DebugLevel)
	l := zap.New(core)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			april.SetLogger(l)
		}()
		go func() {
			defer wg.Done()
			april.Logger().Debug("concurrent read")
		}()
	}
	wg.Wait()

	loadModel(t)
	if n := logs.FilterMessage("model loaded").Len(); n != 1 {
		t.Fatalf("model loaded logged %d times, want 1", n)
	}

	april.SetLogger(nil)
	if april.Logger().Core().Enabled(zap.ErrorLevel) {
		t.Fatalf("SetLogger(nil) should restore the no-op logger")
	}
}
