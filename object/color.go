package object

// Color is the mark state used by the cycle collector. Transitions happen
// under the owning object's header lock; the hot refcount path never
// touches them.
type Color uint8

const (
	// ColorBlack marks an object that is in use or has been scanned and
	// found reachable.
	ColorBlack Color = iota
	// ColorGray marks an object whose children are being trial-decremented.
	ColorGray
	// ColorWhite marks a candidate member of a garbage cycle.
	ColorWhite
	// ColorPurple marks a possible root of a garbage cycle, buffered for
	// the next collection pass.
	ColorPurple
)

// String returns the color name.
func (c Color) String() string {
	switch c {
	case ColorBlack:
		return "black"
	case ColorGray:
		return "gray"
	case ColorWhite:
		return "white"
	case ColorPurple:
		return "purple"
	default:
		return "unknown"
	}
}
