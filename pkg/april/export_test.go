package april

import "go.uber.org/zap"

// SetFatal replaces the process-terminating hook for the duration of a test.
func SetFatal(f func(msg string, fields ...zap.Field)) (restore func()) {
	old := fatal
	fatal = f
	return func() { fatal = old }
}
