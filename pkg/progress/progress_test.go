package progress

import (
	"testing"
	"time"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
		ok   bool
	}{
		{"00:01:23.45", 83.45, true},
		{"1:02:03.5", 3723.5, true},
		{"2:30", 150, true},
		{"45.5", 45.5, true},
		{"90", 90, true},
		{"N/A", 0, false},
		{"", 0, false},
		{"a:b:c", 0, false},
		{"-5", 0, false},
		{"1:2:3:4", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseTimestamp(tt.raw)
		if ok != tt.ok {
			t.Errorf("ParseTimestamp(%q) ok = %v, want %v", tt.raw, ok, tt.ok)
			continue
		}
		if ok && got != tt.want {
			t.Errorf("ParseTimestamp(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestParseExtractsFields(t *testing.T) {
	tr := NewTracker(300, 10)

	snap := tr.Parse("frame=  150 fps= 60.5 size=    1024kB time=00:00:05.00 bitrate=1800.0kbits/s speed=2.01x")

	if snap.CurrentFrame != 150 {
		t.Errorf("CurrentFrame = %d, want 150", snap.CurrentFrame)
	}
	if snap.FPS != 60.5 {
		t.Errorf("FPS = %v, want 60.5", snap.FPS)
	}
	if snap.CurrentTime != 5 {
		t.Errorf("CurrentTime = %v, want 5", snap.CurrentTime)
	}
	if snap.Speed != 2.01 {
		t.Errorf("Speed = %v, want 2.01", snap.Speed)
	}
	if snap.OutputSize != 1024*1024 {
		t.Errorf("OutputSize = %d, want %d", snap.OutputSize, 1024*1024)
	}
	if snap.Percentage != 50 {
		t.Errorf("Percentage = %v, want 50", snap.Percentage)
	}
}

func TestParseMachineProgressFormat(t *testing.T) {
	tr := NewTracker(0, 10)

	snap := tr.Parse("frame=120\nfps=30.0\nout_time_ms=4000000\nspeed=1.5x\nprogress=continue")

	if snap.CurrentTime != 4 {
		t.Errorf("CurrentTime = %v, want 4 (out_time_ms is microseconds)", snap.CurrentTime)
	}
	if snap.Percentage != 40 {
		t.Errorf("Percentage = %v, want 40", snap.Percentage)
	}
}

func TestParseDefensiveAgainstMissingFields(t *testing.T) {
	tr := NewTracker(100, 0)

	first := tr.Parse("frame=10")
	if first.CurrentFrame != 10 || first.Percentage != 10 {
		t.Errorf("partial chunk mishandled: %+v", first)
	}

	// A chunk with no recognizable fields keeps previous values.
	second := tr.Parse("video:1234kB audio:56kB muxing overhead: 1%")
	if second.CurrentFrame != 10 {
		t.Errorf("CurrentFrame = %d after noise chunk, want 10", second.CurrentFrame)
	}

	// Malformed values are ignored.
	third := tr.Parse("frame=banana speed=chunky")
	if third.CurrentFrame != 10 {
		t.Errorf("malformed frame value overwrote state: %+v", third)
	}
}

func TestPercentageMonotonicAndClamped(t *testing.T) {
	tr := NewTracker(100, 0)

	var last float64
	for _, frame := range []int64{10, 50, 30, 90, 80, 200} {
		snap := tr.Update(frame, -1)
		if snap.Percentage < last {
			t.Fatalf("percentage regressed from %v to %v", last, snap.Percentage)
		}
		if snap.Percentage < 0 || snap.Percentage > 100 {
			t.Fatalf("percentage %v out of [0,100]", snap.Percentage)
		}
		last = snap.Percentage
	}
	if last != 100 {
		t.Errorf("final percentage = %v, want clamped to 100", last)
	}
}

func TestPercentageUsesMaxOfFrameAndTime(t *testing.T) {
	tr := NewTracker(100, 100)

	snap := tr.Update(20, 60)
	if snap.Percentage != 60 {
		t.Errorf("Percentage = %v, want 60 (max of 20%% frames, 60%% time)", snap.Percentage)
	}
}

func TestETAComputation(t *testing.T) {
	tr := NewTracker(100, 0)
	base := time.Now()
	elapsed := time.Duration(0)
	tr.now = func() time.Time { return base.Add(elapsed) }
	tr.startedAt = base

	elapsed = 10 * time.Second
	snap := tr.Update(25, -1)

	// 10s for 25% leaves 30s for the remaining 75%.
	if snap.ETA != 30*time.Second {
		t.Errorf("ETA = %v, want 30s", snap.ETA)
	}
	if snap.Elapsed != 10*time.Second {
		t.Errorf("Elapsed = %v, want 10s", snap.Elapsed)
	}

	elapsed = 40 * time.Second
	done := tr.Update(100, -1)
	if done.ETA != 0 {
		t.Errorf("ETA at 100%% = %v, want 0", done.ETA)
	}
}

func TestNoTotalsMeansZeroPercent(t *testing.T) {
	tr := NewTracker(0, 0)
	snap := tr.Update(5000, 120)
	if snap.Percentage != 0 {
		t.Errorf("Percentage = %v without totals, want 0", snap.Percentage)
	}
}
