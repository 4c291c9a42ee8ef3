// Package syntax provides small parsing/geometry helpers used by callers
// that don't need the full G-code parser (§4.G): line validation,
// coordinate-string extraction, and 3-D distance helpers.
package syntax

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Point3 is a plain 3-D point used by Distance and Midpoint.
type Point3 struct {
	X, Y, Z float64
}

// axisLetters are the axis words ParseCoordinateString recognises.
var axisLetters = "XYZA"

// ParseCoordinateString extracts X/Y/Z/A scalars from a fragment such as
// "X10 Y-5.2 Z0". Unrecognised letters are ignored; malformed numbers
// return an error.
func ParseCoordinateString(s string) (map[string]float64, error) {
	result := make(map[string]float64)
	i := 0
	runes := []rune(strings.ToUpper(s))
	for i < len(runes) {
		c := runes[i]
		if c == ' ' || c == '\t' {
			i++
			continue
		}
		if !strings.ContainsRune(axisLetters, c) {
			i++
			continue
		}
		letter := string(c)
		i++
		start := i
		if i < len(runes) && (runes[i] == '+' || runes[i] == '-') {
			i++
		}
		for i < len(runes) && (runes[i] >= '0' && runes[i] <= '9' || runes[i] == '.') {
			i++
		}
		if start == i {
			return nil, fmt.Errorf("parse_coordinate_string: %s missing a value", letter)
		}
		val, err := strconv.ParseFloat(string(runes[start:i]), 64)
		if err != nil {
			return nil, fmt.Errorf("parse_coordinate_string: invalid number for %s: %w", letter, err)
		}
		result[letter] = val
	}
	return result, nil
}

// Distance returns the Euclidean distance between two 3-D points.
func Distance(p1, p2 Point3) float64 {
	dx := p2.X - p1.X
	dy := p2.Y - p1.Y
	dz := p2.Z - p1.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Midpoint returns the midpoint of two 3-D points.
func Midpoint(p1, p2 Point3) Point3 {
	return Point3{
		X: (p1.X + p2.X) / 2,
		Y: (p1.Y + p2.Y) / 2,
		Z: (p1.Z + p2.Z) / 2,
	}
}
