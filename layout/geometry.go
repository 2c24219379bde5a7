package layout

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/signalsfoundry/stockflow-editor/model"
)

// Point is a position in viewport coordinates, origin top-left.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func pt(v r2.Vec) Point { return Point{X: v.X, Y: v.Y} }

// Anchor returns the visual centre of a node. Squares are positioned by
// their top-left corner; every other shape by its centre.
func Anchor(typ model.NodeType, x, y, r float64) Point {
	if typ == model.NodeSquare {
		return Point{X: x + r, Y: y + r}
	}
	return Point{X: x, Y: y}
}

// Clamp keeps a node inside the viewport. Circles are bounded by their
// radius; squares by their full side from the top-left corner. Other
// types are returned unchanged.
func Clamp(typ model.NodeType, x, y, r, w, h float64) (float64, float64) {
	switch typ {
	case model.NodeCircle:
		return within(x, r, w-r), within(y, r, h-r)
	case model.NodeSquare:
		return within(x, 0, w-2*r), within(y, 0, h-2*r)
	default:
		return x, y
	}
}

func within(v, lo, hi float64) float64 { return math.Max(lo, math.Min(hi, v)) }

// ArcRadius is the radius of a link's arc. Higher ranks bend less.
func ArcRadius(source, target r2.Vec, linknum float64) float64 {
	return 4 * r2.Norm(r2.Sub(target, source)) / (linknum + 4)
}

// ArcPath is the SVG path data for a clockwise arc between two anchors.
func ArcPath(from, to Point, radius float64) string {
	return fmt.Sprintf("M%g,%gA%g,%g 0 0,1 %g,%g", from.X, from.Y, radius, radius, to.X, to.Y)
}

// LinkLabel places a link caption beside its arc so that parallel links
// of increasing rank keep their captions apart. Degenerate geometry falls
// back to the chord midpoint.
func LinkLabel(from, to Point, linknum float64) Point {
	xs, ys, xt, yt := from.X, from.Y, to.X, to.Y
	spread := math.Max(6-linknum, 2)

	ax := math.Atan((xt - xs) / (yt - ys))
	k := math.Pi/4 - math.Abs(ax)
	if ys > yt {
		k = -k
	}
	x := (xs+xt)/2 - ((xt-xs)/spread)*math.Tan(math.Pi/2+ax) - (linknum-1)*24*k*(2/math.Pi)

	adj := math.Abs(xt-xs) / 20
	if xs > xt {
		adj = -math.Abs(xt-xs) / 18
	}
	ay := math.Atan((yt - ys) / (xt - xs))
	y := (ys+yt)/2 + ((yt-ys)/spread)*math.Tan(math.Pi/2+ay) + adj
	if ys > yt {
		y += linknum*8*(-math.Pi/2+ay)*(2/math.Pi) + linknum*8
	} else {
		y += linknum*8*(math.Pi/2-ay)*(2/math.Pi) - linknum*8
	}

	if !finite(x) || !finite(y) {
		return Point{X: (xs + xt) / 2, Y: (ys + yt) / 2}
	}
	return Point{X: x, Y: y}
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// NodeLabel is where a proper node's caption sits, just above the shape.
func NodeLabel(typ model.NodeType, x, y, r float64) Point {
	if typ == model.NodeSquare {
		return Point{X: x + r, Y: y - 2}
	}
	return Point{X: x, Y: y - r - 2}
}

// BoundaryX spreads n boundary nodes evenly across the width.
func BoundaryX(w float64, n, ordinal int) float64 {
	return w / float64(n+1) * float64(ordinal+1)
}

// BoundaryLabel is where the caption of the ordinal-th of n sources (or
// sinks) is drawn: along the bottom edge for sources, the top for sinks.
func BoundaryLabel(typ model.NodeType, w, h float64, n, ordinal int) Point {
	y := 9.0
	if typ == model.NodeSource {
		y = h - 2
	}
	return Point{X: BoundaryX(w, n, ordinal), Y: y}
}

// MarkerHeight is the thickness of the clickable strip drawn for a
// boundary node while externals are shown.
const MarkerHeight = 10

// MarkerSuffix turns a node id into its boundary marker's shape id.
const MarkerSuffix = "h"
