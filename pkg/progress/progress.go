// Package progress turns the encoder's line-oriented status output into
// normalized snapshots. Every field of a status chunk is optional, so
// parsing is defensive: absent or malformed fields leave the previous value
// in place.
package progress

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Snapshot is one normalized view of a running conversion. Within a job a
// snapshot is superseded by the next; Percentage never regresses.
type Snapshot struct {
	Percentage    float64 // [0, 100]
	CurrentFrame  int64
	CurrentTime   float64 // seconds of media produced
	TotalFrames   int64
	TotalDuration float64 // seconds, 0 when unknown
	Elapsed       time.Duration
	ETA           time.Duration // 0 when not yet computable
	FPS           float64
	Speed         float64 // encode speed multiplier, 1.0 = realtime
	Bitrate       string
	OutputSize    int64 // bytes written so far
}

// Tracker accumulates encoder status output for one job
type Tracker struct {
	mu            sync.Mutex
	totalFrames   int64
	totalDuration float64
	startedAt     time.Time
	now           func() time.Time

	maxPercent float64
	current    Snapshot
}

// NewTracker creates a Tracker for a job whose totals, when known, come
// from the input probe. Zero totals are allowed; percentage then stays at 0
// until a total becomes known.
func NewTracker(totalFrames int64, totalDuration float64) *Tracker {
	t := &Tracker{
		totalFrames:   totalFrames,
		totalDuration: totalDuration,
		now:           time.Now,
	}
	t.startedAt = t.now()
	t.current.TotalFrames = totalFrames
	t.current.TotalDuration = totalDuration
	return t
}

var reKeyValue = regexp.MustCompile(`(\w+)=\s*([^\s]+)`)

// Parse consumes one chunk of encoder status output, updates the tracker
// and returns the resulting snapshot
func (t *Tracker) Parse(chunk string) Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, m := range reKeyValue.FindAllStringSubmatch(chunk, -1) {
		key, value := m[1], m[2]
		switch key {
		case "frame":
			if v, err := strconv.ParseInt(value, 10, 64); err == nil && v >= 0 {
				t.current.CurrentFrame = v
			}
		case "fps":
			if v, err := strconv.ParseFloat(value, 64); err == nil && v >= 0 {
				t.current.FPS = v
			}
		case "time", "out_time":
			if v, ok := ParseTimestamp(value); ok {
				t.current.CurrentTime = v
			}
		case "out_time_ms", "out_time_us":
			// Despite the _ms name, ffmpeg reports microseconds here.
			if v, err := strconv.ParseInt(value, 10, 64); err == nil && v >= 0 {
				t.current.CurrentTime = float64(v) / 1e6
			}
		case "bitrate":
			if value != "N/A" {
				t.current.Bitrate = value
			}
		case "speed":
			raw := strings.TrimSuffix(value, "x")
			if v, err := strconv.ParseFloat(raw, 64); err == nil && v >= 0 {
				t.current.Speed = v
			}
		case "size", "total_size":
			if v, ok := parseSize(value); ok {
				t.current.OutputSize = v
			}
		}
	}
	return t.refresh()
}

// Update records a frame count and media timestamp directly, bypassing text
// parsing, and returns the resulting snapshot
func (t *Tracker) Update(frame int64, seconds float64) Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	if frame >= 0 {
		t.current.CurrentFrame = frame
	}
	if seconds >= 0 {
		t.current.CurrentTime = seconds
	}
	return t.refresh()
}

// Snapshot returns the latest snapshot without consuming new input
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.refresh()
}

// refresh recomputes percentage, elapsed and ETA. Callers hold the lock.
func (t *Tracker) refresh() Snapshot {
	var frameProgress, timeProgress float64
	if t.totalFrames > 0 {
		frameProgress = float64(t.current.CurrentFrame) / float64(t.totalFrames) * 100
	}
	if t.totalDuration > 0 {
		timeProgress = t.current.CurrentTime / t.totalDuration * 100
	}

	pct := frameProgress
	if timeProgress > pct {
		pct = timeProgress
	}
	if pct > 100 {
		pct = 100
	}
	if pct < 0 {
		pct = 0
	}
	// Never report a regression within a job.
	if pct > t.maxPercent {
		t.maxPercent = pct
	}
	t.current.Percentage = t.maxPercent
	t.current.Elapsed = t.now().Sub(t.startedAt)

	if t.maxPercent > 0 && t.maxPercent < 100 {
		remaining := float64(t.current.Elapsed) / t.maxPercent * (100 - t.maxPercent)
		t.current.ETA = time.Duration(remaining)
	} else {
		t.current.ETA = 0
	}
	return t.current
}

// ParseTimestamp converts an encoder timestamp to seconds. Accepted forms:
// H:MM:SS.ms, M:SS and bare seconds.
func ParseTimestamp(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "N/A" {
		return 0, false
	}
	parts := strings.Split(raw, ":")
	switch len(parts) {
	case 1:
		v, err := strconv.ParseFloat(parts[0], 64)
		if err != nil || v < 0 {
			return 0, false
		}
		return v, true
	case 2:
		min, err1 := strconv.Atoi(parts[0])
		sec, err2 := strconv.ParseFloat(parts[1], 64)
		if err1 != nil || err2 != nil || min < 0 || sec < 0 {
			return 0, false
		}
		return float64(min)*60 + sec, true
	case 3:
		h, err1 := strconv.Atoi(parts[0])
		min, err2 := strconv.Atoi(parts[1])
		sec, err3 := strconv.ParseFloat(parts[2], 64)
		if err1 != nil || err2 != nil || err3 != nil || h < 0 || min < 0 || sec < 0 {
			return 0, false
		}
		return float64(h)*3600 + float64(min)*60 + sec, true
	default:
		return 0, false
	}
}

// parseSize parses a byte count that may carry the classic "kB" suffix
func parseSize(raw string) (int64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "N/A" {
		return 0, false
	}
	if strings.HasSuffix(raw, "kB") {
		v, err := strconv.ParseInt(strings.TrimSuffix(raw, "kB"), 10, 64)
		if err != nil || v < 0 {
			return 0, false
		}
		return v * 1024, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}
