package mapping

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/relabs-tech/headtrack/internal/pose"
)

func TestMap_ClampsToInputDomain(t *testing.T) {
	cfg := AxisConfig{MaxInput: 90, MaxOutput: 90}

	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{45, 45},
		{-45, -45},
		{90, 90},
		{120, 90},
		{-500, -90},
		{math.Inf(1), 90},
		{math.Inf(-1), -90},
	}
	for _, tc := range tests {
		if got := Map(tc.in, cfg); got != tc.want {
			t.Errorf("Map(%v): expected %v, got %v", tc.in, tc.want, got)
		}
	}
}

func TestMap_StaysInOutputDomain(t *testing.T) {
	// A curve that overshoots the output range must still be clamped.
	cfg := AxisConfig{
		Curve:     Curve{{X: 10, Y: 50}, {X: 30, Y: 400}},
		MaxInput:  30,
		MaxOutput: 100,
	}
	for x := -1000.0; x <= 1000; x += 7.3 {
		got := Map(x, cfg)
		if got < -cfg.MaxOutput || got > cfg.MaxOutput {
			t.Fatalf("Map(%v)=%v outside ±%v", x, got, cfg.MaxOutput)
		}
		if again := Map(x, cfg); again != got {
			t.Fatalf("Map(%v) not deterministic: %v then %v", x, got, again)
		}
	}
}

func TestMap_CurveInterpolation(t *testing.T) {
	cfg := AxisConfig{
		Curve:     Curve{{X: 10, Y: 5}, {X: 30, Y: 45}},
		MaxInput:  40,
		MaxOutput: 180,
	}

	tests := []struct {
		in, want float64
	}{
		{5, 2.5},   // origin to first point
		{10, 5},    // on a point
		{20, 25},   // between points
		{-20, -25}, // symmetric for negative input
		{35, 45},   // held past the last point
	}
	for _, tc := range tests {
		if got := Map(tc.in, cfg); math.Abs(got-tc.want) > 1e-12 {
			t.Errorf("Map(%v): expected %v, got %v", tc.in, tc.want, got)
		}
	}
}

func TestMap_AltCurveForNegativeInput(t *testing.T) {
	cfg := AxisConfig{
		Curve:     Curve{{X: 10, Y: 20}},
		AltCurve:  Curve{{X: 10, Y: 5}},
		MaxInput:  10,
		MaxOutput: 50,
	}
	if got := Map(10, cfg); got != 20 {
		t.Errorf("Expected positive side to use Curve (20), got %v", got)
	}
	if got := Map(-10, cfg); got != -5 {
		t.Errorf("Expected negative side to use AltCurve (-5), got %v", got)
	}
}

func TestMap_Invert(t *testing.T) {
	cfg := AxisConfig{MaxInput: 50, MaxOutput: 50, Invert: true}
	if got := Map(20, cfg); got != -20 {
		t.Errorf("Expected -20, got %v", got)
	}
	if got := Map(-80, cfg); got != 50 {
		t.Errorf("Expected clamp then invert to give 50, got %v", got)
	}
}

func TestMap_DegenerateDomainIsNeutral(t *testing.T) {
	configs := []AxisConfig{
		{MaxInput: 0, MaxOutput: 10},
		{MaxInput: 10, MaxOutput: 0},
		{MaxInput: -5, MaxOutput: 10},
		{MaxInput: math.NaN(), MaxOutput: 10},
		{},
	}
	for _, cfg := range configs {
		if got := Map(42, cfg); got != 0 {
			t.Errorf("Expected 0 for %+v, got %v", cfg, got)
		}
		if err := cfg.Validate(); !errors.Is(err, ErrDomain) {
			t.Errorf("Expected ErrDomain for %+v, got %v", cfg, err)
		}
	}
	if got := Map(math.NaN(), AxisConfig{MaxInput: 1, MaxOutput: 1}); got != 0 {
		t.Errorf("Expected NaN input to map to 0, got %v", got)
	}
}

func TestCurve_Normalize(t *testing.T) {
	c := Curve{{X: 30, Y: 3}, {X: -1, Y: 9}, {X: 10, Y: 1}, {X: math.NaN(), Y: 0}, {X: 20, Y: 2}}
	got := c.Normalize()

	want := Curve{{X: 10, Y: 1}, {X: 20, Y: 2}, {X: 30, Y: 3}}
	if len(got) != len(want) {
		t.Fatalf("Expected %d points, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("point %d: expected %v, got %v", i, want[i], got[i])
		}
	}
	if c[0].X != 30 {
		t.Error("Expected Normalize to leave the input untouched")
	}
}

func TestSet_ApplyAxesIndependently(t *testing.T) {
	s := DefaultSet()
	s[pose.Yaw] = AxisConfig{MaxInput: 90, MaxOutput: 180, Curve: Curve{{X: 90, Y: 180}}}
	s[pose.Z].Invert = true

	in := pose.New(1, 2, 3, 45, -10, 5)
	got := s.Apply(in)

	want := pose.New(1, 2, -3, 90, -10, 5)
	if got != want {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestTable_UpdateIsCopyOnWrite(t *testing.T) {
	table := NewTable(DefaultSet())
	before := table.Snapshot()

	cfg := AxisConfig{MaxInput: 10, MaxOutput: 20, Curve: Curve{{X: 10, Y: 20}}}
	if err := table.Update(pose.Pitch, cfg); err != nil {
		t.Fatalf("Update: %v", err)
	}
	cfg.Curve[0].Y = 999 // caller keeps mutating its copy

	after := table.Snapshot()
	if before == after {
		t.Fatal("Expected a new snapshot after Update")
	}
	if before[pose.Pitch].MaxInput != 180 {
		t.Errorf("Expected old snapshot unchanged, got %+v", before[pose.Pitch])
	}
	if got := after[pose.Pitch].Curve[0].Y; got != 20 {
		t.Errorf("Expected stored curve isolated from caller, got %v", got)
	}

	if err := table.Update(pose.Axis(6), cfg); !errors.Is(err, ErrAxis) {
		t.Errorf("Expected ErrAxis, got %v", err)
	}
	if _, err := table.Axis(pose.Axis(-1)); !errors.Is(err, ErrAxis) {
		t.Errorf("Expected ErrAxis, got %v", err)
	}
}

func TestTable_ConcurrentUpdates(t *testing.T) {
	table := NewTable(DefaultSet())

	var wg sync.WaitGroup
	for i := 0; i < pose.NumAxes; i++ {
		wg.Add(2)
		go func(axis pose.Axis) {
			defer wg.Done()
			for n := 1; n <= 100; n++ {
				table.Update(axis, AxisConfig{MaxInput: float64(n), MaxOutput: float64(n)})
			}
		}(pose.Axis(i))
		go func() {
			defer wg.Done()
			for n := 0; n < 100; n++ {
				s := table.Snapshot()
				s.Apply(pose.New(1, 1, 1, 1, 1, 1))
			}
		}()
	}
	wg.Wait()

	// Per-axis writers must not lose each other's updates.
	s := table.Snapshot()
	for i := range s {
		if s[i].MaxInput != 100 {
			t.Errorf("axis %v: expected last update to stick, got %+v", pose.Axis(i), s[i])
		}
	}
}

func TestParse(t *testing.T) {
	doc := []byte(`
axes:
  yaw:
    max_input: 90
    max_output: 180
    curve:
      - {x: 90, y: 180}
      - {x: 30, y: 60}
  z:
    invert: true
    max_input: 50
    max_output: 50
`)
	s, err := Parse(doc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	yaw := s[pose.Yaw]
	if yaw.MaxInput != 90 || yaw.MaxOutput != 180 {
		t.Errorf("Expected yaw domain 90/180, got %+v", yaw)
	}
	if len(yaw.Curve) != 2 || yaw.Curve[0].X != 30 {
		t.Errorf("Expected sorted yaw curve, got %v", yaw.Curve)
	}
	if !s[pose.Z].Invert {
		t.Error("Expected z inverted")
	}
	if pitch := s[pose.Pitch]; pitch.MaxInput != 180 || pitch.MaxOutput != 180 || pitch.Curve != nil || pitch.Invert {
		t.Errorf("Expected pitch to keep defaults, got %+v", pitch)
	}

	if _, err := Parse([]byte("axes:\n  sideways: {}\n")); err == nil {
		t.Error("Expected unknown axis to fail")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mappings.yaml")
	if err := os.WriteFile(path, []byte("axes:\n  roll:\n    max_input: 30\n    max_output: 30\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if s[pose.Roll].MaxInput != 30 {
		t.Errorf("Expected roll max input 30, got %v", s[pose.Roll].MaxInput)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}
