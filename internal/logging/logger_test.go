package logging

import (
	"bytes"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    LogLevel
		wantErr bool
	}{
		{"error", LevelError, false},
		{"WARN", LevelWarn, false},
		{"Info", LevelInfo, false},
		{"debug", LevelDebug, false},
		{"TRACE", LevelTrace, false},
		{"loud", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger("TEST", zapcore.AddSync(&buf))

	l.Debug("hidden %d", 1)
	l.Info("shown %d", 2)
	if strings.Contains(buf.String(), "hidden 1") {
		t.Errorf("debug message logged at info level: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "shown 2") {
		t.Errorf("info message missing: %q", buf.String())
	}

	child := l.WithPrefix("child")
	l.SetLevel(LevelTrace)
	child.Trace("trace %s", "visible")
	if !strings.Contains(buf.String(), "trace visible") {
		t.Errorf("child logger did not follow parent level: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "TEST.child") {
		t.Errorf("child logger name missing: %q", buf.String())
	}
}
