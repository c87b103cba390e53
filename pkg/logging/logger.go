// Package logging provides tooling for structured logging.
// With logging, you can use context to add logging details to your call stack.
package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"go.llib.dev/testcase/clock"
)

type Logger struct {
	Out io.Writer

	// Level is the logging level.
	// The default Level is LevelInfo.
	Level Level
	// TestingTB is used to mark logging methods as helper functions,
	// so when logging is used during testing, it points to the actual logging source in the test log entries.
	TestingTB testingTB

	outLock sync.Mutex
}

func (l *Logger) Debug(ctx context.Context, msg string, ds ...Detail) {
	l.tb().Helper()
	l.Log(ctx, LevelDebug, msg, ds...)
}

func (l *Logger) Info(ctx context.Context, msg string, ds ...Detail) {
	l.tb().Helper()
	l.Log(ctx, LevelInfo, msg, ds...)
}

func (l *Logger) Warn(ctx context.Context, msg string, ds ...Detail) {
	l.tb().Helper()
	l.Log(ctx, LevelWarn, msg, ds...)
}

func (l *Logger) Error(ctx context.Context, msg string, ds ...Detail) {
	l.tb().Helper()
	l.Log(ctx, LevelError, msg, ds...)
}

func (l *Logger) Log(ctx context.Context, level Level, msg string, ds ...Detail) {
	l.tb().Helper()
	if !l.getLevel().allows(level) {
		return
	}
	e := l.toEntry(ctx, ds)
	e["level"] = level
	e["message"] = msg
	e["timestamp"] = clock.Now().Format(time.RFC3339)
	_ = l.write(e)
}

func (l *Logger) toEntry(ctx context.Context, ds []Detail) entry {
	e := make(entry)
	for _, d := range detailsOf(ctx) {
		d.addTo(e)
	}
	for _, d := range ds {
		if d == nil {
			continue
		}
		d.addTo(e)
	}
	return e
}

func (l *Logger) write(e entry) error {
	bs, err := json.Marshal(e)
	if err != nil {
		return err
	}
	l.outLock.Lock()
	defer l.outLock.Unlock()
	_, err = l.out().Write(append(bs, '\n'))
	return err
}

func (l *Logger) out() io.Writer {
	if l.Out != nil {
		return l.Out
	}
	return os.Stdout
}

func (l *Logger) getLevel() Level {
	if len(l.Level) == 0 {
		return defaultLevel
	}
	return l.Level
}

type testingTB interface {
	Helper()
	Cleanup(func())
}

func (l *Logger) tb() testingTB {
	if l.TestingTB != nil {
		return l.TestingTB
	}
	return nullTestingTB{}
}

type nullTestingTB struct{}

func (nullTestingTB) Helper() {}

func (nullTestingTB) Cleanup(func()) {}

// Stub returns a debug level logger that records its output into the returned StubOutput.
func Stub(tb testingTB) (*Logger, StubOutput) {
	buf := &stubOutput{}
	l := &Logger{
		TestingTB: tb,
		Level:     LevelDebug,
		Out:       buf,
	}
	return l, buf
}

type StubOutput interface {
	io.Reader
	io.Writer
	String() string
	Bytes() []byte
}

type stubOutput struct {
	m   sync.Mutex
	buf bytes.Buffer
}

func (o *stubOutput) Read(p []byte) (n int, err error) {
	o.m.Lock()
	defer o.m.Unlock()
	return o.buf.Read(p)
}

func (o *stubOutput) Write(p []byte) (n int, err error) {
	o.m.Lock()
	defer o.m.Unlock()
	return o.buf.Write(p)
}

func (o *stubOutput) String() string {
	o.m.Lock()
	defer o.m.Unlock()
	return o.buf.String()
}

func (o *stubOutput) Bytes() []byte {
	o.m.Lock()
	defer o.m.Unlock()
	return o.buf.Bytes()
}
