package gcode

// modalGroup identifies one of the G-word modal groups; at most one word
// per group may appear on a single line (§4.D).
type modalGroup int

const (
	groupMotion modalGroup = iota + 1
	groupPlane
	groupDistance
	groupUnits
	groupWCS
	groupToolLenComp
	groupCannedReturn // G98/G99
	groupNone         // recognised but not grouped (e.g. G10, G28, G30, G4)
)

// gWordGroup maps a recognised G-code number (as an int, e.g. 1 for G1, 10
// for G10) to its modal group. Recognised but ungrouped words (G4, G10, G28,
// G30) map to groupNone; G-words not present here are unrecognised and
// preserved verbatim per §4.D.
var gWordGroup = map[int]modalGroup{
	0: groupMotion, 1: groupMotion, 2: groupMotion, 3: groupMotion,
	17: groupPlane, 18: groupPlane, 19: groupPlane,
	20: groupUnits, 21: groupUnits,
	90: groupDistance, 91: groupDistance,
	54: groupWCS, 55: groupWCS, 56: groupWCS, 57: groupWCS, 58: groupWCS, 59: groupWCS,
	98: groupCannedReturn, 99: groupCannedReturn,
	81: groupMotion, 82: groupMotion, 83: groupMotion, 85: groupMotion, 86: groupMotion, 89: groupMotion,
	43: groupToolLenComp, 49: groupToolLenComp,
	4:  groupNone,
	10: groupNone,
	28: groupNone,
	30: groupNone,
}

var wcsByNumber = map[int]string{54: "G54", 55: "G55", 56: "G56", 57: "G57", 58: "G58", 59: "G59"}

// pToWCS maps the 1-based "G10 L2 Pn" slot index to its WCS name: P1..P6
// select G54..G59 (§4.D G10 L2), distinct from the G-word's own G54-G59
// numbering used by gWordGroup/applyNonMotionG.
var pToWCS = map[int]string{1: "G54", 2: "G55", 3: "G56", 4: "G57", 5: "G58", 6: "G59"}
