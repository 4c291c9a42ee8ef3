package gcode

import (
	"fmt"
	"math"

	"github.com/mcowger/carvera-controller-core/pkgs/cncerr"
	"github.com/mcowger/carvera-controller-core/pkgs/cncstate"
)

// mmPerInch converts inch-mode input lengths to millimetres (§3 Units).
const mmPerInch = 25.4

// ParsedLine is the record produced by one ParseLine call (§4.D Output).
type ParsedLine struct {
	LineNo      int
	Words       []Word
	Modal       cncstate.ModalState
	Coordinates []cncstate.PathPoint
}

// Parser is a modal streaming G-code parser. It borrows a *cncstate.CncState
// for the duration of each ParseLine call and is the only writer of that
// state while the call is in progress (§9).
type Parser struct {
	state *cncstate.CncState

	// lastWork is the last commanded position in *work* coordinates (i.e.
	// before the WCS/rotation/tool-length pipeline is applied), used to
	// resolve relative-mode deltas (§4.D Coordinate resolution).
	lastWork cncstate.Position

	// refPosition is the stored reference position for G28/G30.
	refPosition cncstate.Position

	// hasDefaultFeed is set once any line has carried an F word, so a later
	// G1 without F reuses that feed rate.
	hasDefaultFeed bool
}

// NewParser returns a Parser bound to state. The caller owns state's
// lifecycle; NewParser does not reset it.
func NewParser(state *cncstate.CncState) *Parser {
	p := &Parser{state: state}
	p.Resync()
	return p
}

// Resync re-derives the parser's internal work-coordinate cursor from the
// state's current machine position. Call this after InitPath or any
// external repositioning so relative moves and canned-cycle entry motion
// are computed from the right starting point.
func (p *Parser) Resync() {
	p.lastWork = p.state.Position
	p.refPosition = cncstate.Position{}
}

// axisValues is the set of word values relevant to one line, keyed by letter.
type axisValues map[byte]float64

func (a axisValues) has(letter byte) bool { _, ok := a[letter]; return ok }

// ParseLine tokenises line, updates modal state, and for motion words
// produces an interpolated machine-coordinate path. The path buffer is
// reset at the start of every call (§3 Path buffer).
func (p *Parser) ParseLine(line string, lineNo int) (*ParsedLine, error) {
	stripped, err := stripComments(line)
	if err != nil {
		return nil, &cncerr.GCodeParseError{Line: lineNo, Reason: err.Error()}
	}
	words, err := tokenize(stripped, lineNo)
	if err != nil {
		return nil, err
	}

	p.state.ResetPath()

	if err := p.checkModalGroups(words, lineNo); err != nil {
		return nil, err
	}

	values := make(axisValues)
	var gWords, mWords []int
	for _, w := range words {
		switch w.Letter {
		case 'G':
			gWords = append(gWords, int(w.Value))
		case 'M':
			mWords = append(mWords, int(w.Value))
		default:
			values[w.Letter] = w.Value
		}
	}

	// Non-motion modal updates happen before motion so a WCS/units/distance
	// change on the same line as a move takes effect for that move.
	for _, g := range gWords {
		if err := p.applyNonMotionG(g, values, lineNo); err != nil {
			return nil, err
		}
	}
	// A T-word records the pending tool number; the tool length offset only
	// changes on M6 (§4.D Tool handling).
	if values.has('T') {
		p.state.Modal.CurrentTool = int(values['T'])
	}
	for _, m := range mWords {
		p.applyM(m, values)
	}

	if values.has('F') {
		p.state.Feed.Feed = p.toMM(values['F'])
		p.hasDefaultFeed = true
	}
	if values.has('S') {
		p.state.Feed.SpindleRPM = values['S']
	}

	motionG, hasMotion := p.motionWord(gWords)
	if hasMotion {
		if err := p.runMotion(motionG, values, lineNo); err != nil {
			return nil, err
		}
	}

	return &ParsedLine{
		LineNo:      lineNo,
		Words:       words,
		Modal:       p.state.Modal,
		Coordinates: append([]cncstate.PathPoint(nil), p.state.Path...),
	}, nil
}

// checkModalGroups enforces "within one line at most one word per group".
func (p *Parser) checkModalGroups(words []Word, lineNo int) error {
	seen := make(map[modalGroup]int)
	for _, w := range words {
		if w.Letter != 'G' {
			continue
		}
		g := int(w.Value)
		group, known := gWordGroup[g]
		if !known || group == groupNone {
			continue
		}
		if prev, ok := seen[group]; ok && prev != g {
			return &cncerr.GCodeParseError{Line: lineNo, Reason: fmt.Sprintf("G%d conflicts with G%d in the same modal group", g, prev)}
		}
		seen[group] = g
	}
	return nil
}

// motionWord picks the single motion-group G-word present on the line, or a
// G4/G28/G30 word, which runMotion also dispatches.
func (p *Parser) motionWord(gWords []int) (int, bool) {
	for _, g := range gWords {
		if gWordGroup[g] == groupMotion || g == 4 || g == 28 || g == 30 {
			return g, true
		}
	}
	return 0, false
}

func (p *Parser) toMM(v float64) float64 {
	if p.state.Modal.Units == cncstate.UnitsInch {
		return v * mmPerInch
	}
	return v
}

// applyNonMotionG updates modal/WCS/tool state for a single G-word that is
// not itself a motion command (motion words are handled by runMotion).
func (p *Parser) applyNonMotionG(g int, v axisValues, lineNo int) error {
	switch g {
	case 20:
		p.state.Modal.Units = cncstate.UnitsInch
	case 21:
		p.state.Modal.Units = cncstate.UnitsMM
	case 90:
		p.state.Modal.Distance = cncstate.Absolute
	case 91:
		p.state.Modal.Distance = cncstate.Relative
	case 17:
		p.state.Modal.Plane = cncstate.PlaneXY
	case 18:
		p.state.Modal.Plane = cncstate.PlaneXZ
	case 19:
		p.state.Modal.Plane = cncstate.PlaneYZ
	case 54, 55, 56, 57, 58, 59:
		p.state.Modal.ActiveWCS = cncstate.WCSName(wcsByNumber[g])
	case 98:
		p.state.Modal.CannedRetractToInitialZ = true
	case 99:
		p.state.Modal.CannedRetractToInitialZ = false
	case 43:
		p.state.Modal.ToolLenCompOn = true
	case 49:
		p.state.Modal.ToolLenCompOn = false
	case 10:
		return p.applyG10(v, lineNo)
	}
	return nil
}

// applyG10 handles "G10 L2 Px ..." WCS offset/rotation programming.
func (p *Parser) applyG10(v axisValues, lineNo int) error {
	if !v.has('L') || int(v['L']) != 2 {
		return &cncerr.GCodeParseError{Line: lineNo, Reason: "G10 requires L2"}
	}
	if !v.has('P') {
		return &cncerr.GCodeParseError{Line: lineNo, Reason: "G10 L2 requires a P word"}
	}
	wcsNum := int(v['P'])
	name, ok := pToWCS[wcsNum]
	if !ok {
		return &cncerr.GCodeParseError{Line: lineNo, Reason: fmt.Sprintf("G10 L2 P%d does not name a WCS", wcsNum)}
	}
	offset := p.state.WCS[cncstate.WCSName(name)]
	if v.has('X') {
		offset.X = p.toMM(v['X'])
	}
	if v.has('Y') {
		offset.Y = p.toMM(v['Y'])
	}
	if v.has('Z') {
		offset.Z = p.toMM(v['Z'])
	}
	if v.has('R') {
		offset.RotationDeg = v['R']
	}
	p.state.WCS[cncstate.WCSName(name)] = offset
	return nil
}

// applyM handles the M-words the parser gives semantics to; everything else
// is preserved verbatim for transmission but does not alter parser state.
func (p *Parser) applyM(m int, v axisValues) {
	switch m {
	case 3, 4:
		// spindle on, direction encoded by M3/M4; RPM already captured via S.
	case 5:
		p.state.Feed.SpindleRPM = 0
	case 6:
		if v.has('T') {
			p.state.Modal.CurrentTool = int(v['T'])
		}
		tool := p.state.Tools[p.state.Modal.CurrentTool]
		p.state.Modal.ToolLengthOffset = tool.Z
	}
}

// workToMachine runs the §4.D coordinate-resolution pipeline: rotate the
// work vector around the WCS origin, add the WCS offset, then apply tool
// length compensation to Z.
func (p *Parser) workToMachine(work cncstate.Position) cncstate.Position {
	off := p.state.ActiveWCSOffset()
	x, y := work.X, work.Y
	if off.RotationDeg != 0 {
		theta := off.RotationDeg * math.Pi / 180
		cos, sin := math.Cos(theta), math.Sin(theta)
		x = work.X*cos - work.Y*sin
		y = work.X*sin + work.Y*cos
	}
	z := work.Z + off.Z
	if p.state.Modal.ToolLenCompOn {
		z += p.state.Modal.ToolLengthOffset
	}
	return cncstate.Position{
		X: x + off.X,
		Y: y + off.Y,
		Z: z,
		A: work.A,
	}
}

// resolveWork applies distance-mode semantics (absolute value vs. delta
// added to the previous work coordinate) for the axes present in v.
func (p *Parser) resolveWork(v axisValues) cncstate.Position {
	next := p.lastWork
	for letter, axis := range map[byte]*float64{'X': &next.X, 'Y': &next.Y, 'Z': &next.Z, 'A': &next.A} {
		if !v.has(letter) {
			continue
		}
		val := p.toMM(v[letter])
		if p.state.Modal.Distance == cncstate.Relative {
			*axis += val
		} else {
			*axis = val
		}
	}
	return next
}
