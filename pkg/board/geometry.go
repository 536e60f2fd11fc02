package board

import "math"

// Geometry helpers for frame containment and connector attachment.
//
// All coordinates are canvas-space floats with the origin at the top left.
// Rotation is stored in degrees and applied around an object's center.

// Point is a canvas-space coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Bounds is an axis-aligned box.
type Bounds struct {
	Left, Top, Right, Bottom float64
}

// Area returns the area of the box.
func (b Bounds) Area() float64 {
	return (b.Right - b.Left) * (b.Bottom - b.Top)
}

// Contains reports whether the point lies inside the box, edges inclusive.
func (b Bounds) Contains(x, y float64) bool {
	return x >= b.Left && x <= b.Right && y >= b.Top && y <= b.Bottom
}

// FrameBounds returns the axis-aligned box of a frame. Frames never rotate,
// so no rotation correction is needed.
func FrameBounds(frame *Object) Bounds {
	return Bounds{
		Left:   frame.X,
		Top:    frame.Y,
		Right:  frame.X + frame.Width,
		Bottom: frame.Y + frame.Height,
	}
}

// FindContainingFrame returns the frame whose bounds contain the point,
// preferring the smallest area when several do (the tightest fit wins over
// an enclosing outer frame). Returns nil when no frame contains the point.
func FindContainingFrame(x, y float64, frames []*Object) *Object {
	var best *Object
	var bestArea float64
	for _, f := range frames {
		if !f.IsFrame() {
			continue
		}
		b := FrameBounds(f)
		if !b.Contains(x, y) {
			continue
		}
		if best == nil || b.Area() < bestArea {
			best = f
			bestArea = b.Area()
		}
	}
	return best
}

// Center returns the center point of an object's bounding box.
func Center(o *Object) Point {
	return Point{X: o.X + o.Width/2, Y: o.Y + o.Height/2}
}

// ConnectionPorts returns the four candidate attachment points of an object:
// the midpoints of its top, right, bottom and left edges, in that order,
// rotated around the object's center by its rotation angle.
func ConnectionPorts(o *Object) [4]Point {
	c := Center(o)
	offsets := [4]Point{
		{X: 0, Y: -o.Height / 2},
		{X: o.Width / 2, Y: 0},
		{X: 0, Y: o.Height / 2},
		{X: -o.Width / 2, Y: 0},
	}

	rad := o.Rotation * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)

	var ports [4]Point
	for i, off := range offsets {
		ports[i] = Point{
			X: c.X + off.X*cos - off.Y*sin,
			Y: c.Y + off.X*sin + off.Y*cos,
		}
	}
	return ports
}

// portFor resolves a fixed anchor to its port index in ConnectionPorts order.
func portFor(anchor SnapAnchor) int {
	switch anchor {
	case AnchorTop:
		return 0
	case AnchorRight:
		return 1
	case AnchorBottom:
		return 2
	default: // AnchorLeft
		return 3
	}
}

func sqDist(a, b Point) float64 {
	dx, dy := a.X-b.X, a.Y-b.Y
	// squared distance: only the relative ordering matters
	return dx*dx + dy*dy
}

// NearestPortPair evaluates all 16 port combinations between two objects and
// returns the pair minimizing the distance between them.
func NearestPortPair(a, b *Object) (from, to Point) {
	ap := ConnectionPorts(a)
	bp := ConnectionPorts(b)

	best := math.Inf(1)
	for _, pa := range ap {
		for _, pb := range bp {
			if d := sqDist(pa, pb); d < best {
				best = d
				from, to = pa, pb
			}
		}
	}
	return from, to
}

// ResolveEndpoints computes the attachment points for a connector between a
// and b, honouring fixed snap anchors. When both anchors are auto the nearest
// port pair is used; a fixed anchor pins its side, and an auto side then
// chooses its port nearest to the pinned point.
func ResolveEndpoints(a, b *Object, anchorA, anchorB SnapAnchor) (from, to Point) {
	if anchorA == AnchorAuto && anchorB == AnchorAuto {
		return NearestPortPair(a, b)
	}

	ap := ConnectionPorts(a)
	bp := ConnectionPorts(b)

	switch {
	case anchorA != AnchorAuto && anchorB != AnchorAuto:
		return ap[portFor(anchorA)], bp[portFor(anchorB)]

	case anchorA != AnchorAuto:
		from = ap[portFor(anchorA)]
		to = nearestTo(from, bp)
		return from, to

	default:
		to = bp[portFor(anchorB)]
		from = nearestTo(to, ap)
		return from, to
	}
}

func nearestTo(target Point, ports [4]Point) Point {
	best := math.Inf(1)
	var nearest Point
	for _, p := range ports {
		if d := sqDist(p, target); d < best {
			best = d
			nearest = p
		}
	}
	return nearest
}
