package logger

import "testing"

func TestNewRespectsLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")

	l, err := New("arb-api", "prod")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.Sync()

	if l.Core().Enabled(-1) { // debug
		t.Fatal("debug should be disabled")
	}
	if l.Core().Enabled(0) { // info
		t.Fatal("info should be disabled at warn level")
	}
	if !l.Core().Enabled(1) {
		t.Fatal("warn should be enabled")
	}
}

func TestNewLocalIsDevelopment(t *testing.T) {
	l, err := New("odds-poller", "local")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !l.Core().Enabled(-1) {
		t.Fatal("local env should log debug")
	}
}
