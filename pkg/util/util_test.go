package util

import (
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", "info", false},
		{"debug", "debug", false},
		{"WARN", "warn", false},
		{"loud", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			lvl, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v", err)
			}
			if !tt.wantErr && lvl.String() != tt.want {
				t.Errorf("level = %s, want %s", lvl, tt.want)
			}
		})
	}
}

func TestNewLoggerWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "viewer.log")
	logger, err := NewLoggerWithFile(path, zap.DebugLevel)
	if err != nil {
		t.Fatalf("NewLoggerWithFile: %v", err)
	}
	logger.Sugar().Debugw("test_event", "k", 1)
	_ = logger.Sync()
}

func TestManualClock(t *testing.T) {
	start := time.Unix(1700000000, 0)
	c := NewManualClock(start)

	short := c.After(time.Second)
	long := c.After(time.Minute)
	if c.Waiters() != 2 {
		t.Fatalf("waiters = %d", c.Waiters())
	}

	c.Advance(2 * time.Second)
	select {
	case got := <-short:
		if !got.Equal(start.Add(2 * time.Second)) {
			t.Errorf("fired at %s", got)
		}
	default:
		t.Fatal("short timer did not fire")
	}
	select {
	case <-long:
		t.Fatal("long timer fired early")
	default:
	}
	if c.Waiters() != 1 {
		t.Errorf("waiters = %d, want 1", c.Waiters())
	}

	select {
	case <-c.After(0):
	default:
		t.Error("zero duration should fire immediately")
	}
}
