package settings

import "fmt"

// BitratePolicy estimates a target video bitrate when neither CRF nor an
// explicit bitrate was requested. The built-in constants are a heuristic,
// not a contract; callers may substitute their own policy.
type BitratePolicy interface {
	TargetBitrate(width, height int, frameRate float64) string
}

// DefaultBitratePolicy derives bitrate from pixel throughput with a fixed
// bits-per-pixel constant and a megabit ceiling
type DefaultBitratePolicy struct {
	BitsPerPixel float64 // 0 means 0.1
	CeilingKbps  int     // 0 means 20000
}

// TargetBitrate implements BitratePolicy
func (p DefaultBitratePolicy) TargetBitrate(width, height int, frameRate float64) string {
	bpp := p.BitsPerPixel
	if bpp <= 0 {
		bpp = 0.1
	}
	ceiling := p.CeilingKbps
	if ceiling <= 0 {
		ceiling = 20000
	}
	if width <= 0 || height <= 0 {
		width, height = 1920, 1080
	}
	if frameRate <= 0 {
		frameRate = 30
	}
	kbps := int(float64(width) * float64(height) * frameRate * bpp / 1000)
	if kbps > ceiling {
		kbps = ceiling
	}
	if kbps < 100 {
		kbps = 100
	}
	return fmt.Sprintf("%dk", kbps)
}
