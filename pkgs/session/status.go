package session

import (
	"strconv"
	"strings"

	"github.com/mcowger/carvera-controller-core/pkgs/cncstate"
)

// applyStatusLine parses a "<State|MPos:x,y,z,a|WPos:x,y,z,a|F:feed,seek|
// S:rpm|T:tool|H:tool_offset>" line (§6). Fields may appear in any order;
// missing fields leave the previous value intact.
func applyStatusLine(state *cncstate.CncState, line string) {
	trimmed := strings.TrimSuffix(strings.TrimPrefix(line, "<"), ">")
	fields := strings.Split(trimmed, "|")
	if len(fields) == 0 {
		return
	}
	// The first field, if it doesn't contain ':', is the bare State word.
	start := 0
	if !strings.Contains(fields[0], ":") {
		start = 1
	}

	for _, f := range fields[start:] {
		kv := strings.SplitN(f, ":", 2)
		if len(kv) != 2 {
			continue
		}
		key, val := kv[0], kv[1]
		switch key {
		case "MPos":
			applyPosition(&state.Position, val)
		case "WPos":
			// WPos is informational (machine position already authoritative per
			// the invariant); it is not used to mutate Position directly.
		case "F":
			parts := strings.SplitN(val, ",", 2)
			if len(parts) >= 1 {
				if f, err := strconv.ParseFloat(parts[0], 64); err == nil {
					state.Feed.Feed = f
				}
			}
			if len(parts) == 2 {
				if s, err := strconv.ParseFloat(parts[1], 64); err == nil {
					state.Feed.Seek = s
				}
			}
		case "S":
			if v, err := strconv.ParseFloat(val, 64); err == nil {
				state.Feed.SpindleRPM = v
			}
		case "T":
			if v, err := strconv.Atoi(val); err == nil {
				state.Modal.CurrentTool = v
			}
		case "H":
			if v, err := strconv.ParseFloat(val, 64); err == nil {
				state.Modal.ToolLengthOffset = v
			}
		}
	}
}

func applyPosition(pos *cncstate.Position, val string) {
	parts := strings.Split(val, ",")
	axes := []*float64{&pos.X, &pos.Y, &pos.Z, &pos.A}
	for i, p := range parts {
		if i >= len(axes) {
			break
		}
		if v, err := strconv.ParseFloat(strings.TrimSpace(p), 64); err == nil {
			*axes[i] = v
		}
	}
}
