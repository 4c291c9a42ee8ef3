package syntax

import "github.com/mcowger/carvera-controller-core/pkgs/gcode"

// ValidateGCodeLine checks tokenisation only — it does not execute the line
// or touch any CNC state (§4.G).
func ValidateGCodeLine(s string) bool {
	return gcode.ValidateLine(s)
}
