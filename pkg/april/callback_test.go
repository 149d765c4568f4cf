package april_test

import (
	"strings"
	"testing"

	"go.uber.org/zap"

	"aprilgo/pkg/april"
	"aprilgo/pkg/april/apriltest"
)

type fatalCall struct {
	msg string
}

// catchFatal runs f with the fatal hook replaced and returns the messages it
// was called with. The hook panics, as the real one never returns.
func catchFatal(t *testing.T, f func()) (msgs []string) {
	t.Helper()
	restore := april.SetFatal(func(msg string, _ ...zap.Field) {
		msgs = append(msgs, msg)
		panic(fatalCall{msg: msg})
	})
	defer restore()

	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(fatalCall); !ok {
				panic(r)
			}
		}
	}()
	f()
	return msgs
}

func TestDispatchNullContextIsFatal(t *testing.T) {
	marshaled := false
	msgs := catchFatal(t, func() {
		april.Dispatch(0, 2, func() april.Tokens {
			marshaled = true
			return nil
		})
	})
	if len(msgs) == 0 || !strings.Contains(msgs[0], "null context") {
		t.Fatalf("fatal messages = %q", msgs)
	}
	if marshaled {
		t.Fatalf("tokens marshaled for a null context")
	}
}

func TestDispatchUnknownContextIsFatal(t *testing.T) {
	msgs := catchFatal(t, func() {
		april.Dispatch(^uintptr(0), 2, nil)
	})
	if len(msgs) == 0 || !strings.Contains(msgs[0], "unknown context") {
		t.Fatalf("fatal messages = %q", msgs)
	}
}

func TestHandlerPanicIsFatal(t *testing.T) {
	e := newEngine(t)
	m := loadModel(t)

	cfg := april.NewConfig()
	cfg.SetHandler(func(april.ResultType, april.Tokens) {
		panic("boom")
	})
	s, err := m.NewSession(cfg)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	defer s.Close()

	msgs := catchFatal(t, func() {
		e.LastSession().Emit(uint32(april.ResultRecognitionFinal), apriltest.RawToken{Text: " hi"})
	})
	if len(msgs) != 1 || !strings.Contains(msgs[0], "panic in result callback") {
		t.Fatalf("fatal messages = %q", msgs)
	}
}

func TestMarshalPanicIsFatal(t *testing.T) {
	cfg := april.NewConfig()
	called := false
	cfg.SetHandler(func(april.ResultType, april.Tokens) { called = true })
	defer cfg.ClearHandler()

	newEngine(t)
	m := loadModel(t)
	s, err := m.NewSession(cfg)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	defer s.Close()

	ctx := lastContext(t)
	msgs := catchFatal(t, func() {
		april.Dispatch(ctx, 1, func() april.Tokens {
			var ts april.Tokens
			_ = ts[3]
			return ts
		})
	})
	if len(msgs) != 1 {
		t.Fatalf("fatal messages = %q", msgs)
	}
	if called {
		t.Fatalf("handler called after marshaling failed")
	}
}

func TestDispatchNilTokensBecomeEmpty(t *testing.T) {
	newEngine(t)
	m := loadModel(t)

	var got april.Tokens
	var result april.ResultType
	cfg := april.NewConfig()
	cfg.SetHandler(func(r april.ResultType, ts april.Tokens) {
		result, got = r, ts
	})
	s, err := m.NewSession(cfg)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	defer s.Close()

	april.Dispatch(lastContext(t), 77, nil)
	if got == nil || len(got) != 0 {
		t.Fatalf("tokens = %#v, want empty non-nil", got)
	}
	if !result.IsOther() || result.Code() != 77 {
		t.Fatalf("result = %v", result)
	}
}

func lastContext(t *testing.T) uintptr {
	t.Helper()
	e, ok := april.Registered().(*apriltest.Engine)
	if !ok {
		t.Fatalf("test engine not registered")
	}
	ctx := e.LastSession().Config.Context
	if ctx == 0 {
		t.Fatalf("no context installed")
	}
	return ctx
}
