package cncstate

import "testing"

func TestBoxExpandSeedsOnFirstCall(t *testing.T) {
	var b Box
	b.Expand(5, -2, 3)
	if b.MinX != 5 || b.MaxX != 5 || b.MinY != -2 || b.MaxY != -2 || b.MinZ != 3 || b.MaxZ != 3 {
		t.Fatalf("first Expand should seed both bounds to the single point, got %+v", b)
	}
}

func TestBoxExpandGrowsBounds(t *testing.T) {
	var b Box
	b.Expand(0, 0, 0)
	b.Expand(10, -5, 2)
	b.Expand(-3, 8, -1)

	want := Box{MinX: -3, MaxX: 10, MinY: -5, MaxY: 8, MinZ: -1, MaxZ: 2, initialized: true}
	if b.MinX != want.MinX || b.MaxX != want.MaxX ||
		b.MinY != want.MinY || b.MaxY != want.MaxY ||
		b.MinZ != want.MinZ || b.MaxZ != want.MaxZ {
		t.Fatalf("Expand() = %+v, want %+v", b, want)
	}
}

func TestNewDefaults(t *testing.T) {
	s := New()
	if s.Modal.Units != UnitsMM {
		t.Errorf("default units = %v, want mm", s.Modal.Units)
	}
	if s.Modal.Distance != Absolute {
		t.Errorf("default distance mode = %v, want absolute", s.Modal.Distance)
	}
	if s.Modal.Plane != PlaneXY {
		t.Errorf("default plane = %v, want XY", s.Modal.Plane)
	}
	if s.Modal.ActiveWCS != G54 {
		t.Errorf("default WCS = %v, want G54", s.Modal.ActiveWCS)
	}
	for _, name := range AllWCS {
		if off, ok := s.WCS[name]; !ok || off != (WCSOffset{}) {
			t.Errorf("WCS %v should start zeroed, got %+v (present=%v)", name, off, ok)
		}
	}
}

func TestEmitUpdatesPathMarginsAndPosition(t *testing.T) {
	s := New()
	s.Emit(PathPoint{X: 1, Y: 2, Z: 3, LineNo: 1, Motion: MotionRapid})
	s.Emit(PathPoint{X: 4, Y: -1, Z: 3, LineNo: 2, Motion: MotionLinear})

	if len(s.Path) != 2 {
		t.Fatalf("len(Path) = %d, want 2", len(s.Path))
	}
	box := s.GetMargins()
	if box.MinX != 1 || box.MaxX != 4 || box.MinY != -1 || box.MaxY != 2 {
		t.Fatalf("margins after two Emit calls = %+v", box)
	}
	if s.Position.X != 4 || s.Position.Y != -1 || s.Position.Z != 3 {
		t.Fatalf("Position after Emit = %+v, want last emitted point", s.Position)
	}
}

func TestResetPathClearsOnlyPath(t *testing.T) {
	s := New()
	s.Emit(PathPoint{X: 1, Y: 1, Z: 1})
	s.ResetPath()
	if len(s.Path) != 0 {
		t.Fatalf("ResetPath left %d points", len(s.Path))
	}
	box := s.GetMargins()
	if box.MaxX != 1 {
		t.Fatalf("ResetPath should not touch margins, got %+v", box)
	}
}

func TestResetMarginsClearsBox(t *testing.T) {
	s := New()
	s.Emit(PathPoint{X: 9, Y: 9, Z: 9})
	s.ResetMargins()
	box := s.GetMargins()
	if box != (Box{}) {
		t.Fatalf("ResetMargins() left %+v, want zero value", box)
	}
}

func TestApplyModalDeltaSparseUpdate(t *testing.T) {
	s := New()
	inch := UnitsInch
	s.ApplyModalDelta(ModalDelta{Units: &inch})
	if s.Modal.Units != UnitsInch {
		t.Errorf("Units not updated by ApplyModalDelta")
	}
	if s.Modal.Distance != Absolute {
		t.Errorf("unspecified field Distance changed from default: %v", s.Modal.Distance)
	}

	rel := Relative
	wcs := G56
	s.ApplyModalDelta(ModalDelta{Distance: &rel, ActiveWCS: &wcs})
	if s.Modal.Distance != Relative || s.Modal.ActiveWCS != G56 {
		t.Errorf("ApplyModalDelta did not update Distance/ActiveWCS: %+v", s.Modal)
	}
	if s.Modal.Units != UnitsInch {
		t.Errorf("previously-set Units field was clobbered: %v", s.Modal.Units)
	}
}

func TestInitPathResetsPositionAndPath(t *testing.T) {
	s := New()
	s.Emit(PathPoint{X: 1, Y: 1, Z: 1})
	s.InitPath(7, 8, 9, 0)
	if len(s.Path) != 0 {
		t.Fatalf("InitPath left %d path points", len(s.Path))
	}
	if s.Position != (Position{X: 7, Y: 8, Z: 9}) {
		t.Fatalf("InitPath position = %+v", s.Position)
	}
}

func TestActiveWCSOffset(t *testing.T) {
	s := New()
	s.WCS[G54] = WCSOffset{X: 1, Y: 2, Z: 3}
	s.WCS[G55] = WCSOffset{X: 100}
	if got := s.ActiveWCSOffset(); got != s.WCS[G54] {
		t.Fatalf("ActiveWCSOffset() = %+v, want G54 offset", got)
	}
	s.Modal.ActiveWCS = G55
	if got := s.ActiveWCSOffset(); got != s.WCS[G55] {
		t.Fatalf("ActiveWCSOffset() after switch = %+v, want G55 offset", got)
	}
}
