package gcode

import (
	"math"
	"testing"

	"github.com/mcowger/carvera-controller-core/pkgs/cncstate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAbsoluteLinearMove(t *testing.T) {
	state := cncstate.New()
	p := NewParser(state)

	_, err := p.ParseLine("G21", 1)
	require.NoError(t, err)
	_, err = p.ParseLine("G90", 2)
	require.NoError(t, err)
	parsed, err := p.ParseLine("G1 X10 Y0 Z0 F1000", 3)
	require.NoError(t, err)

	require.Len(t, parsed.Coordinates, 1)
	pt := parsed.Coordinates[0]
	assert.InDelta(t, 10.0, pt.X, 1e-6)
	assert.InDelta(t, 0.0, pt.Y, 1e-6)
	assert.InDelta(t, 0.0, pt.Z, 1e-6)
	assert.Equal(t, 1000.0, state.Feed.Feed)

	box := state.GetMargins()
	assert.Equal(t, 0.0, box.MinX)
	assert.Equal(t, 10.0, box.MaxX)
	assert.Equal(t, 0.0, box.MinY)
	assert.Equal(t, 0.0, box.MaxY)
}

func TestArcWithIJ(t *testing.T) {
	state := cncstate.New()
	state.Position = cncstate.Position{X: 10, Y: 0, Z: 0}
	p := NewParser(state)

	parsed, err := p.ParseLine("G2 X0 Y10 I-10 J0 F500", 1)
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(parsed.Coordinates), 8)
	for _, pt := range parsed.Coordinates {
		radius := math.Hypot(pt.X, pt.Y)
		assert.InDelta(t, 10.0, radius, 0.025, "point (%v,%v) strays from the circle", pt.X, pt.Y)
	}
	last := parsed.Coordinates[len(parsed.Coordinates)-1]
	assert.InDelta(t, 0.0, last.X, 0.001)
	assert.InDelta(t, 10.0, last.Y, 0.001)
}

func TestWCSOffsetRoundTrip(t *testing.T) {
	state := cncstate.New()
	p := NewParser(state)

	_, err := p.ParseLine("G10 L2 P1 X100 Y50", 1)
	require.NoError(t, err)
	_, err = p.ParseLine("G54", 2)
	require.NoError(t, err)
	parsed, err := p.ParseLine("G0 X0 Y0", 3)
	require.NoError(t, err)

	require.Len(t, parsed.Coordinates, 1)
	pt := parsed.Coordinates[0]
	assert.InDelta(t, 100.0, pt.X, 1e-6)
	assert.InDelta(t, 50.0, pt.Y, 1e-6)
}

func TestDrillingCycle(t *testing.T) {
	state := cncstate.New()
	state.Position = cncstate.Position{X: 5, Y: 5, Z: 5}
	p := NewParser(state)

	parsed, err := p.ParseLine("G81 X20 Y20 Z-3 R2 F100", 1)
	require.NoError(t, err)

	require.Len(t, parsed.Coordinates, 4)
	expected := [][3]float64{
		{20, 20, 5},
		{20, 20, 2},
		{20, 20, -3},
		{20, 20, 2},
	}
	for i, exp := range expected {
		pt := parsed.Coordinates[i]
		assert.InDelta(t, exp[0], pt.X, 1e-6, "segment %d X", i)
		assert.InDelta(t, exp[1], pt.Y, 1e-6, "segment %d Y", i)
		assert.InDelta(t, exp[2], pt.Z, 1e-6, "segment %d Z", i)
	}
}

func TestRelativeMoveAccumulates(t *testing.T) {
	state := cncstate.New()
	p := NewParser(state)

	_, err := p.ParseLine("G91", 1)
	require.NoError(t, err)
	_, err = p.ParseLine("G21", 2)
	require.NoError(t, err)
	_, err = p.ParseLine("G1 X3 F100", 3)
	require.NoError(t, err)
	_, err = p.ParseLine("G20", 4) // switch to inch before the second delta
	require.NoError(t, err)
	parsed, err := p.ParseLine("G1 X1", 5) // 1 inch == 25.4mm
	require.NoError(t, err)

	last := parsed.Coordinates[len(parsed.Coordinates)-1]
	assert.InDelta(t, 3+25.4, last.X, 1e-6)
}

func TestToolLengthCompensationAppliesOnlyWhenOn(t *testing.T) {
	state := cncstate.New()
	state.Tools[1] = cncstate.ToolOffset{Z: 5}
	p := NewParser(state)

	_, err := p.ParseLine("T1 M6", 1)
	require.NoError(t, err)

	parsed, err := p.ParseLine("G1 Z0 F100", 2)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, parsed.Coordinates[0].Z, 1e-6, "Z should be unaffected before G43")

	_, err = p.ParseLine("G43", 3)
	require.NoError(t, err)
	parsed, err = p.ParseLine("G1 Z0 F100", 4)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, parsed.Coordinates[0].Z, 1e-6, "G43 should add the tool length offset to Z")

	_, err = p.ParseLine("G49", 5)
	require.NoError(t, err)
	parsed, err = p.ParseLine("G1 Z0 F100", 6)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, parsed.Coordinates[0].Z, 1e-6, "G49 should cancel tool length compensation")
}

func TestModalGroupConflictRejected(t *testing.T) {
	state := cncstate.New()
	p := NewParser(state)
	_, err := p.ParseLine("G0 G1 X1", 1)
	require.Error(t, err)
}

func TestG1WithoutFeedRejected(t *testing.T) {
	state := cncstate.New()
	p := NewParser(state)
	_, err := p.ParseLine("G1 X1", 1)
	require.Error(t, err)
}

func TestUnrecognisedLetterRejected(t *testing.T) {
	state := cncstate.New()
	p := NewParser(state)
	_, err := p.ParseLine("W5", 1)
	require.Error(t, err)
}
