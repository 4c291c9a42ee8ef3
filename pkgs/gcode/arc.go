package gcode

import (
	"math"

	"github.com/mcowger/carvera-controller-core/pkgs/cncerr"
)

// chordErrorMax is the maximum allowed deviation (mm) of a chord segment
// from the true circle (§4.D: 25 µm).
const chordErrorMax = 0.025

const minArcSegments = 8
const maxArcSegments = 2048

// arcEndpointTolerance is the maximum distance (mm) the computed end point
// may lie from the requested end point (§4.D: 1 µm).
const arcEndpointTolerance = 0.001

type point2 struct{ u, v float64 }

// planeArc computes the interpolated points of a circular arc in 2-D plane
// coordinates (u,v), from start to end, around center, direction cw,
// excluding the start point and including the end point exactly.
func planeArc(start, end, center point2, cw bool, lineNo int) ([]point2, error) {
	radius := math.Hypot(start.u-center.u, start.v-center.v)
	endRadius := math.Hypot(end.u-center.u, end.v-center.v)
	if math.Abs(endRadius-radius) > arcEndpointTolerance {
		return nil, &cncerr.GCodeParseError{Line: lineNo, Reason: "arc_endpoint"}
	}

	startAngle := math.Atan2(start.v-center.v, start.u-center.u)
	endAngle := math.Atan2(end.v-center.v, end.u-center.u)

	var sweep float64
	if cw {
		sweep = startAngle - endAngle
	} else {
		sweep = endAngle - startAngle
	}
	for sweep < 0 {
		sweep += 2 * math.Pi
	}
	if sweep == 0 {
		sweep = 2 * math.Pi
	}

	// Chord error e relates to segment angle theta by e = r*(1-cos(theta/2)).
	// Solve for the largest theta keeping e <= chordErrorMax, then derive the
	// segment count for the full sweep, clamped to [8,2048] per revolution.
	var segmentsPerRev int
	if radius <= 0 {
		segmentsPerRev = minArcSegments
	} else {
		ratio := 1 - chordErrorMax/radius
		if ratio < -1 {
			ratio = -1
		}
		theta := 2 * math.Acos(ratio)
		if theta <= 0 || math.IsNaN(theta) {
			segmentsPerRev = maxArcSegments
		} else {
			segmentsPerRev = int(math.Ceil(2 * math.Pi / theta))
		}
	}
	if segmentsPerRev < minArcSegments {
		segmentsPerRev = minArcSegments
	}
	if segmentsPerRev > maxArcSegments {
		segmentsPerRev = maxArcSegments
	}

	segments := int(math.Ceil(float64(segmentsPerRev) * sweep / (2 * math.Pi)))
	if segments < 1 {
		segments = 1
	}

	points := make([]point2, 0, segments)
	for i := 1; i <= segments; i++ {
		frac := float64(i) / float64(segments)
		var angle float64
		if cw {
			angle = startAngle - sweep*frac
		} else {
			angle = startAngle + sweep*frac
		}
		points = append(points, point2{
			u: center.u + radius*math.Cos(angle),
			v: center.v + radius*math.Sin(angle),
		})
	}
	// Force the last point to the exact requested end point (within tolerance
	// it already is, but floating point rounding must not violate the
	// invariant that the path's final point equals the declared end point).
	points[len(points)-1] = end
	return points, nil
}

// radiusCenter computes the arc center from start/end and a signed radius
// per the G2/G3 R-word convention: positive R picks the minor arc (sweep <=
// 180deg), negative R picks the major arc (sweep > 180deg).
func radiusCenter(start, end point2, r float64, cw bool) (point2, error) {
	dx := end.u - start.u
	dy := end.v - start.v
	chord := math.Hypot(dx, dy)
	absR := math.Abs(r)
	if chord > 2*absR {
		return point2{}, &cncerr.GCodeParseError{Reason: "radius too small to reach end point"}
	}
	mid := point2{u: (start.u + end.u) / 2, v: (start.v + end.v) / 2}
	h := math.Sqrt(math.Max(absR*absR-(chord/2)*(chord/2), 0))

	// Perpendicular unit vector to the chord.
	var perpU, perpV float64
	if chord > 0 {
		perpU, perpV = -dy/chord, dx/chord
	}

	// Sign convention: negative R selects the major arc, which flips which
	// side of the chord the center falls on relative to the minor-arc case.
	sign := 1.0
	if cw {
		sign = -1.0
	}
	if r < 0 {
		sign = -sign
	}
	return point2{u: mid.u + sign*h*perpU, v: mid.v + sign*h*perpV}, nil
}
