package common

import (
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
)

// TestLogLevel is the level used by loggers created for tests.
const TestLogLevel = logrus.DebugLevel

// This can be used as the destination for a logger and it'll
// map them into calls to testing.T.Log, so that you only see
// the logging for failed tests. Lines written after the test has
// finished are dropped; t.Log panics on them.
type testLoggerAdapter struct {
	t      testing.TB
	prefix string

	l    sync.Mutex
	done bool
}

func newTestLoggerAdapter(t testing.TB, prefix string) *testLoggerAdapter {
	a := &testLoggerAdapter{t: t, prefix: prefix}
	t.Cleanup(func() {
		a.l.Lock()
		a.done = true
		a.l.Unlock()
	})
	return a
}

func (a *testLoggerAdapter) Write(d []byte) (int, error) {
	n := len(d)
	if n > 0 && d[n-1] == '\n' {
		d = d[:n-1]
	}

	a.l.Lock()
	defer a.l.Unlock()
	if a.done {
		return n, nil
	}

	if a.prefix != "" {
		a.t.Log(a.prefix + ": " + string(d))
	} else {
		a.t.Log(string(d))
	}
	return n, nil
}

// NewTestLogger returns a logger that writes through t.Log.
func NewTestLogger(t testing.TB) *logrus.Logger {
	logger := logrus.New()
	logger.Out = newTestLoggerAdapter(t, "")
	logger.Level = TestLogLevel
	return logger
}

// NewTestEntry returns a logger entry that writes through t.Log at the given
// level.
func NewTestEntry(t testing.TB, level logrus.Level) *logrus.Entry {
	logger := NewTestLogger(t)
	logger.Level = level
	return logrus.NewEntry(logger)
}

// NewPrefixedTestEntry is like NewTestEntry but prefixes every line, which
// helps telling apart the nodes of a multi-node test.
func NewPrefixedTestEntry(t testing.TB, prefix string) *logrus.Entry {
	logger := logrus.New()
	logger.Out = newTestLoggerAdapter(t, prefix)
	logger.Level = TestLogLevel
	return logrus.NewEntry(logger)
}
