// Package cncstate holds the machine's live data model (§3): position,
// modal groups, work coordinate systems, tool offsets and the path/margin
// bookkeeping the parser updates on every line. It is a plain data object;
// the parser is the only writer during a parse call.
package cncstate

import "time"

// MotionKind is the active motion modal group.
type MotionKind string

const (
	MotionRapid MotionKind = "rapid"
	MotionLinear MotionKind = "linear"
	MotionCWArc  MotionKind = "cw-arc"
	MotionCCWArc MotionKind = "ccw-arc"
	MotionDwell  MotionKind = "dwell"
)

// Plane selects which two axes an arc is interpolated in.
type Plane string

const (
	PlaneXY Plane = "XY"
	PlaneXZ Plane = "XZ"
	PlaneYZ Plane = "YZ"
)

// Units is the active unit system. Inch input is converted to mm on parse.
type Units string

const (
	UnitsMM  Units = "mm"
	UnitsInch Units = "inch"
)

// DistanceMode is absolute (G90) or relative (G91).
type DistanceMode string

const (
	Absolute DistanceMode = "absolute"
	Relative DistanceMode = "relative"
)

// Position is the six-axis machine position in millimetres/degrees.
type Position struct {
	X, Y, Z, A, B, C float64
}

// WCSName enumerates the fixed G54..G59 work coordinate systems.
type WCSName string

const (
	G54 WCSName = "G54"
	G55 WCSName = "G55"
	G56 WCSName = "G56"
	G57 WCSName = "G57"
	G58 WCSName = "G58"
	G59 WCSName = "G59"
)

// AllWCS lists the fixed WCS slots in order, used to seed the default map.
var AllWCS = []WCSName{G54, G55, G56, G57, G58, G59}

// WCSOffset is the affine transform for one work coordinate system: an
// offset vector plus a rotation angle (degrees) about Z.
type WCSOffset struct {
	X, Y, Z float64
	RotationDeg float64
}

// ToolOffset is the per-tool (x,y,z) offset table entry.
type ToolOffset struct {
	X, Y, Z float64
}

// Box is an axis-aligned bounding box ("margins").
type Box struct {
	MinX, MinY, MinZ float64
	MaxX, MaxY, MaxZ float64
	initialized      bool
}

// Expand grows the box to include (x,y,z); the first call seeds both bounds.
func (b *Box) Expand(x, y, z float64) {
	if !b.initialized {
		b.MinX, b.MaxX = x, x
		b.MinY, b.MaxY = y, y
		b.MinZ, b.MaxZ = z, z
		b.initialized = true
		return
	}
	if x < b.MinX {
		b.MinX = x
	}
	if x > b.MaxX {
		b.MaxX = x
	}
	if y < b.MinY {
		b.MinY = y
	}
	if y > b.MaxY {
		b.MaxY = y
	}
	if z < b.MinZ {
		b.MinZ = z
	}
	if z > b.MaxZ {
		b.MaxZ = z
	}
}

// PathPoint is one interpolated machine-coordinate tuple emitted by a parsed line.
type PathPoint struct {
	X, Y, Z, A float64
	LineNo     int
	Motion     MotionKind
}

// ModalState groups the modal words that persist across lines.
type ModalState struct {
	Motion       MotionKind
	Plane        Plane
	Units        Units
	Distance     DistanceMode
	ToolLenCompOn bool
	ActiveWCS    WCSName
	CurrentTool  int
	ToolLengthOffset float64
	// CannedRetractToInitialZ is true while G98 is active (retract to the Z
	// height in effect when the canned cycle began); false (G99, default)
	// retracts to the cycle's R plane.
	CannedRetractToInitialZ bool
}

// FeedSpindle carries the current feed/speed/override state.
type FeedSpindle struct {
	Feed            float64 // mm/min
	Seek            float64 // mm/min
	SpindleRPM      float64
	FeedOverridePct float64
	SpindleOverridePct float64
}

// CncState is the full live machine data model. One instance is owned by
// the session (§9); the parser borrows a pointer to it for the duration of
// a single ParseLine call.
type CncState struct {
	Position Position
	Modal    ModalState
	Feed     FeedSpindle

	WCS  map[WCSName]WCSOffset
	Tools map[int]ToolOffset

	Margins Box
	Path    []PathPoint

	Halted       bool
	LastStatusAt time.Time
}

// New returns a CncState with the standard modal defaults: mm units,
// absolute distance mode, XY plane, G54 active, rapid motion.
func New() *CncState {
	s := &CncState{
		Modal: ModalState{
			Motion:   MotionRapid,
			Plane:    PlaneXY,
			Units:    UnitsMM,
			Distance: Absolute,
			ActiveWCS: G54,
		},
		WCS:   make(map[WCSName]WCSOffset),
		Tools: make(map[int]ToolOffset),
	}
	for _, name := range AllWCS {
		s.WCS[name] = WCSOffset{}
	}
	return s
}

// InitPath sets the current position and clears the path buffer, ready for
// a new job boundary.
func (s *CncState) InitPath(x, y, z, a float64) {
	s.Position = Position{X: x, Y: y, Z: z, A: a}
	s.Path = nil
}

// ResetMargins clears the bounding box so it tracks only coordinates
// emitted from this point forward.
func (s *CncState) ResetMargins() {
	s.Margins = Box{}
}

// GetMargins returns the current bounding box.
func (s *CncState) GetMargins() Box {
	return s.Margins
}

// ResetPath clears the path buffer; called at the start of every parse call
// since the buffer holds only the last parsed line's output (§3).
func (s *CncState) ResetPath() {
	s.Path = nil
}

// Emit appends a point to the path buffer, updates margins, and advances
// the tracked position.
func (s *CncState) Emit(p PathPoint) {
	s.Path = append(s.Path, p)
	s.Margins.Expand(p.X, p.Y, p.Z)
	s.Position = Position{X: p.X, Y: p.Y, Z: p.Z, A: p.A, B: s.Position.B, C: s.Position.C}
}

// ActiveWCSOffset returns the offset/rotation for the currently active WCS.
func (s *CncState) ActiveWCSOffset() WCSOffset {
	return s.WCS[s.Modal.ActiveWCS]
}

// ModalDelta is the sparse update taken by ApplyModalDelta, the narrow
// external-caller mutator allowed outside a parse call: it adjusts modal
// fields without touching the path buffer.
type ModalDelta struct {
	Units    *Units
	Distance *DistanceMode
	ActiveWCS *WCSName
}

// ApplyModalDelta applies a sparse modal update; nil fields are left untouched.
func (s *CncState) ApplyModalDelta(d ModalDelta) {
	if d.Units != nil {
		s.Modal.Units = *d.Units
	}
	if d.Distance != nil {
		s.Modal.Distance = *d.Distance
	}
	if d.ActiveWCS != nil {
		s.Modal.ActiveWCS = *d.ActiveWCS
	}
}
