package engine_test

import (
	"testing"

	"github.com/lnrs/assessment-portal/internal/engine"
)

func TestTimer_CountsDownToZeroOnce(t *testing.T) {
	timer := engine.NewTimer(3600, 300)
	timer.Start()

	fired := 0
	for i := 0; i < 4000; i++ {
		if timer.Tick() {
			fired++
		}
		if timer.Remaining() < 0 {
			t.Fatalf("remaining went negative at tick %d", i)
		}
	}
	if fired != 1 {
		t.Errorf("expiry fired %d times, want 1", fired)
	}
	if timer.Remaining() != 0 || timer.Running() || !timer.Stopped() {
		t.Errorf("remaining=%d running=%v stopped=%v", timer.Remaining(), timer.Running(), timer.Stopped())
	}
}

func TestTimer_StopIgnoresLaterTicks(t *testing.T) {
	timer := engine.NewTimer(10, 3)
	timer.Start()
	timer.Tick()
	timer.Stop()

	if timer.Tick() {
		t.Error("Tick() fired after Stop")
	}
	timer.Start()
	timer.Tick()
	if timer.Remaining() != 9 {
		t.Errorf("remaining = %d, want 9", timer.Remaining())
	}
}

func TestTimer_TickBeforeStartIsNoop(t *testing.T) {
	timer := engine.NewTimer(10, 3)
	if timer.Tick() || timer.Remaining() != 10 {
		t.Errorf("remaining = %d after unstarted tick, want 10", timer.Remaining())
	}
}

func TestTimer_Warning(t *testing.T) {
	timer := engine.NewTimer(302, 300)
	timer.Start()
	if timer.Warning() {
		t.Fatal("warning at 302s")
	}
	timer.Tick()
	timer.Tick()
	if !timer.Warning() {
		t.Error("no warning at 300s")
	}
}

func TestFormatClock(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{3600, "60:00"},
		{300, "05:00"},
		{61, "01:01"},
		{9, "00:09"},
		{0, "00:00"},
		{-5, "00:00"},
	}
	for _, tt := range tests {
		if got := engine.FormatClock(tt.seconds); got != tt.want {
			t.Errorf("FormatClock(%d) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}
