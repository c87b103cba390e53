package logger

import (
	"go.llib.dev/aggregate/pkg/logging"
)

type testingTB interface {
	Helper()
	Cleanup(func())
}

// Stub the logger.Default and return the buffer where the logging output will be recorded.
// Stub will restore the logger.Default after the test.
func Stub(tb testingTB) logging.StubOutput {
	tb.Helper()
	ogOut, ogLevel, ogTB := Default.Out, Default.Level, Default.TestingTB
	tb.Cleanup(func() {
		Default.Out, Default.Level, Default.TestingTB = ogOut, ogLevel, ogTB
	})
	l, out := logging.Stub(tb)
	Default.Out, Default.Level, Default.TestingTB = out, l.Level, l.TestingTB
	return out
}
