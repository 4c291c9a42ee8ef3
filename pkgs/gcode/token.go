// Package gcode implements the modal streaming G-code parser (§4.D): it
// tokenises each input line, resolves modal state, and for motion words
// produces an interpolated machine-coordinate path.
package gcode

import (
	"fmt"
	"strings"

	"github.com/mcowger/carvera-controller-core/pkgs/cncerr"
)

// recognisedLetters are the word letters the tokenizer accepts (§4.D).
const recognisedLetters = "GMXYZABCIJKRPFSTNHLEQ"

// Word is one letter/value pair as they appear on the line. The number is
// always a double; integer promotion (line numbers, L/P params) happens at
// the call site per §9.
type Word struct {
	Letter byte
	Value  float64
}

// stripComments removes ';' to end-of-line and balanced '(...)' comments.
func stripComments(line string) (string, error) {
	var b strings.Builder
	depth := 0
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == ';' && depth == 0:
			return b.String(), nil
		case c == '(':
			depth++
		case c == ')':
			if depth == 0 {
				return "", fmt.Errorf("unbalanced ')' at column %d", i+1)
			}
			depth--
		case depth == 0:
			b.WriteByte(c)
		}
	}
	if depth != 0 {
		return "", fmt.Errorf("unbalanced '(' comment")
	}
	return b.String(), nil
}

// tokenize splits a comment-stripped line into Words. Letters are
// case-insensitive; numbers may omit leading zeros; exponent form is
// rejected.
func tokenize(line string, lineNo int) ([]Word, error) {
	var words []Word
	i := 0
	runes := []byte(line)
	for i < len(runes) {
		c := runes[i]
		if c == ' ' || c == '\t' || c == '\r' {
			i++
			continue
		}
		upper := toUpper(c)
		if !strings.ContainsRune(recognisedLetters, rune(upper)) {
			return nil, &cncerr.GCodeParseError{Line: lineNo, Column: i + 1, Reason: fmt.Sprintf("unrecognised word letter %q", c)}
		}
		col := i + 1
		i++
		start := i
		if i < len(runes) && (runes[i] == '+' || runes[i] == '-') {
			i++
		}
		sawDigitOrDot := false
		for i < len(runes) {
			ch := runes[i]
			if ch >= '0' && ch <= '9' {
				sawDigitOrDot = true
				i++
				continue
			}
			if ch == '.' {
				i++
				continue
			}
			if ch == 'e' || ch == 'E' {
				return nil, &cncerr.GCodeParseError{Line: lineNo, Column: i + 1, Reason: "exponent notation is not supported"}
			}
			break
		}
		if !sawDigitOrDot || start == i {
			return nil, &cncerr.GCodeParseError{Line: lineNo, Column: col, Reason: fmt.Sprintf("word %q has no numeric value", upper)}
		}
		val, err := parseFloat(string(runes[start:i]))
		if err != nil {
			return nil, &cncerr.GCodeParseError{Line: lineNo, Column: col, Reason: "malformed number: " + err.Error()}
		}
		words = append(words, Word{Letter: upper, Value: val})
	}
	return words, nil
}

func toUpper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}

func parseFloat(s string) (float64, error) {
	var sign float64 = 1
	if strings.HasPrefix(s, "-") {
		sign = -1
		s = s[1:]
	} else if strings.HasPrefix(s, "+") {
		s = s[1:]
	}
	var whole, frac string
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		whole, frac = s[:idx], s[idx+1:]
	} else {
		whole = s
	}
	v := 0.0
	for _, c := range whole {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("invalid digit %q", c)
		}
		v = v*10 + float64(c-'0')
	}
	scale := 0.1
	for _, c := range frac {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("invalid digit %q", c)
		}
		v += float64(c-'0') * scale
		scale /= 10
	}
	return sign * v, nil
}

// ValidateLine checks tokenisation only (§4.G validate_gcode_line).
func ValidateLine(line string) bool {
	stripped, err := stripComments(line)
	if err != nil {
		return false
	}
	_, err = tokenize(stripped, 0)
	return err == nil
}
