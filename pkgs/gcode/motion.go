package gcode

import (
	"github.com/mcowger/carvera-controller-core/pkgs/cncerr"
	"github.com/mcowger/carvera-controller-core/pkgs/cncstate"
)

func getAxis(p cncstate.Position, letter byte) float64 {
	switch letter {
	case 'X':
		return p.X
	case 'Y':
		return p.Y
	case 'Z':
		return p.Z
	case 'A':
		return p.A
	}
	return 0
}

func setAxis(p *cncstate.Position, letter byte, val float64) {
	switch letter {
	case 'X':
		p.X = val
	case 'Y':
		p.Y = val
	case 'Z':
		p.Z = val
	case 'A':
		p.A = val
	}
}

// planeAxes returns the two in-plane axis letters, their offset-word
// letters (I/J/K), and the third (out-of-plane) axis letter for plane.
func planeAxes(plane cncstate.Plane) (u, v, offU, offV, third byte) {
	switch plane {
	case cncstate.PlaneXZ:
		return 'X', 'Z', 'I', 'K', 'Y'
	case cncstate.PlaneYZ:
		return 'Y', 'Z', 'J', 'K', 'X'
	default:
		return 'X', 'Y', 'I', 'J', 'Z'
	}
}

// emit transforms a work-space position to machine coordinates, appends it
// to the path buffer, and advances lastWork. The margins cover the segment's
// start point (the current machine position) as well as its end point.
func (p *Parser) emit(work cncstate.Position, motion cncstate.MotionKind, lineNo int) {
	machine := p.workToMachine(work)
	from := p.state.Position
	p.state.Margins.Expand(from.X, from.Y, from.Z)
	p.state.Emit(cncstate.PathPoint{X: machine.X, Y: machine.Y, Z: machine.Z, A: machine.A, LineNo: lineNo, Motion: motion})
	p.lastWork = work
}

// runMotion dispatches a single motion-group G-word to its expansion.
func (p *Parser) runMotion(g int, v axisValues, lineNo int) error {
	switch g {
	case 0:
		return p.linearMove(v, cncstate.MotionRapid, lineNo)
	case 1:
		if p.state.Feed.Feed == 0 && !p.hasDefaultFeed {
			return &cncerr.GCodeParseError{Line: lineNo, Reason: "G1 requires a feed rate (F) and none is set"}
		}
		return p.linearMove(v, cncstate.MotionLinear, lineNo)
	case 2:
		return p.arcMove(v, true, lineNo)
	case 3:
		return p.arcMove(v, false, lineNo)
	case 4:
		// Dwell emits no coordinates.
		return nil
	case 28, 30:
		p.emit(p.refPosition, cncstate.MotionRapid, lineNo)
		return nil
	case 81:
		return p.drillCycle(v, lineNo, cannedOpts{})
	case 82:
		return p.drillCycle(v, lineNo, cannedOpts{dwell: true})
	case 83:
		return p.drillCycle(v, lineNo, cannedOpts{peck: true})
	case 85:
		return p.boreCycle(v, lineNo, cannedOpts{feedOut: true})
	case 86:
		return p.boreCycle(v, lineNo, cannedOpts{})
	case 89:
		return p.boreCycle(v, lineNo, cannedOpts{dwell: true, feedOut: true})
	default:
		return nil
	}
}

func (p *Parser) linearMove(v axisValues, motion cncstate.MotionKind, lineNo int) error {
	end := p.resolveWork(v)
	p.emit(end, motion, lineNo)
	return nil
}

func (p *Parser) arcMove(v axisValues, cw bool, lineNo int) error {
	plane := p.state.Modal.Plane
	uL, vL, offUL, offVL, thirdL := planeAxes(plane)

	start := p.lastWork
	end := p.resolveWork(v)

	startPt := point2{u: getAxis(start, uL), v: getAxis(start, vL)}
	endPt := point2{u: getAxis(end, uL), v: getAxis(end, vL)}

	var center point2
	hasIJK := v.has(offUL) || v.has(offVL)
	if hasIJK {
		offU, offV := 0.0, 0.0
		if v.has(offUL) {
			offU = p.toMM(v[offUL])
		}
		if v.has(offVL) {
			offV = p.toMM(v[offVL])
		}
		center = point2{u: startPt.u + offU, v: startPt.v + offV}
	} else if v.has('R') {
		c, err := radiusCenter(startPt, endPt, p.toMM(v['R']), cw)
		if err != nil {
			if gerr, ok := err.(*cncerr.GCodeParseError); ok {
				gerr.Line = lineNo
			}
			return err
		}
		center = c
	} else {
		return &cncerr.GCodeParseError{Line: lineNo, Reason: "arc requires I/J/K offsets or an R word"}
	}

	points, err := planeArc(startPt, endPt, center, cw, lineNo)
	if err != nil {
		return err
	}

	startThird := getAxis(start, thirdL)
	endThird := getAxis(end, thirdL)
	startA, endA := start.A, end.A
	motion := cncstate.MotionCCWArc
	if cw {
		motion = cncstate.MotionCWArc
	}

	n := len(points)
	for i, pt := range points {
		frac := float64(i+1) / float64(n)
		work := start
		setAxis(&work, uL, pt.u)
		setAxis(&work, vL, pt.v)
		setAxis(&work, thirdL, startThird+(endThird-startThird)*frac)
		work.A = startA + (endA-startA)*frac
		p.emit(work, motion, lineNo)
	}
	return nil
}

// cannedOpts parameterises the drilling/boring cycle expansions.
type cannedOpts struct {
	dwell   bool
	peck    bool
	feedOut bool
}

// drillCycle implements G81 (opts zero value), G82 (dwell), and G83 (peck),
// per §4.D: rapid-to-(X,Y,R), feed-to-Z, optional dwell/peck, rapid-to-R
// (or initial Z if G98).
func (p *Parser) drillCycle(v axisValues, lineNo int, opts cannedOpts) error {
	if !v.has('X') && !v.has('Y') {
		return &cncerr.GCodeParseError{Line: lineNo, Reason: "drilling cycle requires X and/or Y"}
	}
	if !v.has('Z') {
		return &cncerr.GCodeParseError{Line: lineNo, Reason: "drilling cycle requires Z"}
	}
	if !v.has('R') {
		return &cncerr.GCodeParseError{Line: lineNo, Reason: "drilling cycle requires R"}
	}

	initialZ := p.lastWork.Z
	target := p.resolveWork(v)
	r := p.toMM(v['R'])

	// Rapid to (X,Y) at the current Z.
	xy := p.lastWork
	xy.X, xy.Y = target.X, target.Y
	p.emit(xy, cncstate.MotionRapid, lineNo)

	// Rapid to R.
	atR := xy
	atR.Z = r
	p.emit(atR, cncstate.MotionRapid, lineNo)

	if opts.peck && v.has('Q') {
		peck := p.toMM(v['Q'])
		if peck <= 0 {
			return &cncerr.GCodeParseError{Line: lineNo, Reason: "G83 Q must be positive"}
		}
		z := r
		for z > target.Z {
			z -= peck
			if z < target.Z {
				z = target.Z
			}
			down := atR
			down.Z = z
			p.emit(down, cncstate.MotionLinear, lineNo)
			if z > target.Z {
				up := atR
				up.Z = r
				p.emit(up, cncstate.MotionRapid, lineNo)
			}
		}
	} else {
		bottom := atR
		bottom.Z = target.Z
		p.emit(bottom, cncstate.MotionLinear, lineNo)
	}

	if opts.dwell && v.has('P') {
		// Dwell emits no coordinates; time is the caller's concern above the core.
	}

	retractZ := r
	if p.state.Modal.CannedRetractToInitialZ {
		retractZ = initialZ
	}
	retract := atR
	retract.Z = retractZ
	p.emit(retract, cncstate.MotionRapid, lineNo)
	return nil
}

// boreCycle implements G85 (feed out), G86 (rapid out), and G89 (dwell +
// feed out), which share the drilling cycle's entry motion but differ in
// bottom/retract behaviour.
func (p *Parser) boreCycle(v axisValues, lineNo int, opts cannedOpts) error {
	if !v.has('X') && !v.has('Y') {
		return &cncerr.GCodeParseError{Line: lineNo, Reason: "boring cycle requires X and/or Y"}
	}
	if !v.has('Z') {
		return &cncerr.GCodeParseError{Line: lineNo, Reason: "boring cycle requires Z"}
	}
	if !v.has('R') {
		return &cncerr.GCodeParseError{Line: lineNo, Reason: "boring cycle requires R"}
	}

	initialZ := p.lastWork.Z
	target := p.resolveWork(v)
	r := p.toMM(v['R'])

	xy := p.lastWork
	xy.X, xy.Y = target.X, target.Y
	p.emit(xy, cncstate.MotionRapid, lineNo)

	atR := xy
	atR.Z = r
	p.emit(atR, cncstate.MotionRapid, lineNo)

	bottom := atR
	bottom.Z = target.Z
	p.emit(bottom, cncstate.MotionLinear, lineNo)

	if opts.dwell && v.has('P') {
		// Dwell emits no coordinates.
	}

	retractZ := r
	if p.state.Modal.CannedRetractToInitialZ {
		retractZ = initialZ
	}
	retract := atR
	retract.Z = retractZ
	if opts.feedOut {
		p.emit(retract, cncstate.MotionLinear, lineNo)
	} else {
		p.emit(retract, cncstate.MotionRapid, lineNo)
	}
	return nil
}
