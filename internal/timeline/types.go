package timeline

// Frame rate as a rational number
type Ratio struct {
	Num int `json:"num"`
	Den int `json:"den"`
}

// Returns the rate as frames per second, defaulting to 30 when malformed
func (r Ratio) FPS() float64 {
	if r.Num <= 0 || r.Den <= 0 {
		return 30
	}
	return float64(r.Num) / float64(r.Den)
}

// Returns the duration of a single frame in seconds
func (r Ratio) FrameSeconds() float64 {
	return 1 / r.FPS()
}

// Normalized 2D point, 0..1 relative to the surface
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Center returns the midpoint used as the default position and anchor
func Center() Point2D {
	return Point2D{X: 0.5, Y: 0.5}
}
