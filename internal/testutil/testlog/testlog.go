package testlog

import (
	"testing"

	"github.com/rs/zerolog"
)

// Logger returns a quiet logger for tests and logs the test name once so
// failures are easy to correlate with output.
func Logger(t *testing.T) zerolog.Logger {
	t.Helper()
	logger := zerolog.Nop()
	t.Logf("test=%s", t.Name())
	return logger
}
