package tracker

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/relabs-tech/headtrack/internal/log"
	"github.com/relabs-tech/headtrack/internal/mapping"
	"github.com/relabs-tech/headtrack/internal/pose"
	"github.com/relabs-tech/headtrack/internal/rotation"
)

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard, "error")
	os.Exit(m.Run())
}

// fakeSource returns queued results in order, then repeats the last one.
type fakeSource struct {
	mu       sync.Mutex
	results  []result
	startErr error
	started  bool
	stopped  bool
}

type result struct {
	p   pose.Pose
	err error
}

func (f *fakeSource) push(p pose.Pose, err error) {
	f.mu.Lock()
	f.results = append(f.results, result{p, err})
	f.mu.Unlock()
}

func (f *fakeSource) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = true
	return f.startErr
}

func (f *fakeSource) Next() (pose.Pose, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.results) == 0 {
		return pose.Pose{}, pose.ErrNoSample
	}
	r := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return r.p, r.err
}

func (f *fakeSource) Stop() error {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
	return nil
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.CenterAtStart = false
	return opts
}

func TestStep_PassThroughWithDefaults(t *testing.T) {
	src := &fakeSource{}
	p := pose.New(1, 2, 3, 10, 20, 30)
	src.push(p, nil)

	l := New(src, testOptions())
	l.step()

	raw, mapped := l.CurrentPoses()
	if raw != p {
		t.Errorf("Expected raw %v, got %v", p, raw)
	}
	for i := range mapped {
		if diff := mapped[i] - p[i]; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("Expected mapped %v, got %v", p, mapped)
			break
		}
	}
	if seq := l.Snapshot().Seq; seq != 1 {
		t.Errorf("Expected seq 1, got %d", seq)
	}
}

func TestStep_CenterMakesCurrentPoseNeutral(t *testing.T) {
	src := &fakeSource{}
	opts := testOptions()
	opts.Compensator = rotation.NewCompensator(mgl64.Vec3{0, -8, -10}, true)
	l := New(src, opts)

	p := pose.New(4, -2, 15, 35, -12, 6)
	src.push(p, nil)
	l.RequestCenter()
	l.step()

	if l.Status().CenterPending {
		t.Error("Expected center request to be consumed")
	}
	_, mapped := l.CurrentPoses()
	for i := range mapped {
		if mapped[i] > 1e-9 || mapped[i] < -1e-9 {
			t.Fatalf("Expected neutral mapped pose after centering, got %v", mapped)
		}
	}
	if got := l.Reference().Angles.Yaw; got < 34.999 || got > 35.001 {
		t.Errorf("Expected reference yaw 35, got %v", got)
	}
}

func TestStep_CenterWaitsForFirstSample(t *testing.T) {
	src := &fakeSource{}
	opts := testOptions()
	opts.CenterAtStart = true
	l := New(src, opts)

	l.step() // ErrNoSample
	if !l.Status().CenterPending {
		t.Fatal("Expected center to stay pending without a sample")
	}

	p := pose.New(0, 0, 0, 50, 0, 0)
	src.push(p, nil)
	l.step()
	if l.Status().CenterPending {
		t.Error("Expected center consumed by the first real sample")
	}
	if _, mapped := l.CurrentPoses(); !mapped.IsNeutral() {
		t.Errorf("Expected neutral output, got %v", mapped)
	}
}

func TestStep_ZeroOverride(t *testing.T) {
	src := &fakeSource{}
	p := pose.New(5, 0, 0, 20, 0, 0)
	src.push(p, nil)
	l := New(src, testOptions())

	l.RequestZero(true)
	l.step()
	raw, mapped := l.CurrentPoses()
	if !mapped.IsNeutral() {
		t.Errorf("Expected neutral output while zeroed, got %v", mapped)
	}
	if raw != p {
		t.Errorf("Expected raw to keep updating while zeroed, got %v", raw)
	}
	if l.Reference().Angles != (rotation.Euler{}) {
		t.Error("Expected zero override to leave the reference alone")
	}

	if on := l.ToggleZero(); on {
		t.Fatal("Expected toggle to turn the override off")
	}
	l.step()
	if _, mapped := l.CurrentPoses(); mapped[pose.Yaw] != 20 {
		t.Errorf("Expected yaw 20 after unzero, got %v", mapped[pose.Yaw])
	}
}

func TestStep_Disabled(t *testing.T) {
	src := &fakeSource{}
	src.push(pose.New(0, 0, 0, 10, 0, 0), nil)
	l := New(src, testOptions())

	if on := l.ToggleEnabled(); on {
		t.Fatal("Expected toggle to disable")
	}
	l.step()
	raw, mapped := l.CurrentPoses()
	if !mapped.IsNeutral() {
		t.Errorf("Expected neutral output while disabled, got %v", mapped)
	}
	if raw[pose.Yaw] != 10 {
		t.Errorf("Expected raw yaw 10 while disabled, got %v", raw[pose.Yaw])
	}

	l.SetEnabled(true)
	l.step()
	if _, mapped := l.CurrentPoses(); mapped[pose.Yaw] != 10 {
		t.Errorf("Expected yaw 10 once enabled, got %v", mapped[pose.Yaw])
	}
}

func TestStep_SourceErrorHoldsLastPose(t *testing.T) {
	src := &fakeSource{}
	p := pose.New(1, 1, 1, 5, 5, 5)
	src.push(p, nil)
	src.push(pose.Pose{}, errors.New("tracker unplugged"))

	l := New(src, testOptions())
	l.step()
	if !l.Status().SourceAvailable {
		t.Fatal("Expected source available after a sample")
	}

	l.step()
	l.step()
	raw, _ := l.CurrentPoses()
	if raw != p {
		t.Errorf("Expected last good pose %v, got %v", p, raw)
	}
	st := l.Status()
	if st.SourceAvailable || st.SourceError != "tracker unplugged" {
		t.Errorf("Expected unavailable source with its error, got %+v", st)
	}
	if st.Misses != 2 || st.Iterations != 3 {
		t.Errorf("Expected 2 misses over 3 iterations, got %d/%d", st.Misses, st.Iterations)
	}
	if seq := l.Snapshot().Seq; seq != 3 {
		t.Errorf("Expected a publish every iteration, got seq %d", seq)
	}

	src.push(p, nil)
	l.step() // consumes the error entry
	l.step()
	if st := l.Status(); !st.SourceAvailable || st.SourceError != "" || st.Misses != 0 {
		t.Errorf("Expected source to recover, got %+v", st)
	}
}

func TestStep_MappingUpdatePickedUp(t *testing.T) {
	src := &fakeSource{}
	src.push(pose.New(0, 0, 0, 0, 30, 0), nil)
	l := New(src, testOptions())

	err := l.SetMapping(pose.Pitch, mapping.AxisConfig{
		MaxInput:  60,
		MaxOutput: 90,
		Curve:     mapping.Curve{{X: 60, Y: 90}},
	})
	if err != nil {
		t.Fatalf("SetMapping: %v", err)
	}
	l.step()
	if _, mapped := l.CurrentPoses(); mapped[pose.Pitch] != 45 {
		t.Errorf("Expected pitch 45, got %v", mapped[pose.Pitch])
	}

	// Degenerate domains are accepted and hold the axis at 0.
	if err := l.SetMapping(pose.Pitch, mapping.AxisConfig{}); err != nil {
		t.Fatalf("SetMapping: %v", err)
	}
	l.step()
	if _, mapped := l.CurrentPoses(); mapped[pose.Pitch] != 0 {
		t.Errorf("Expected pitch 0, got %v", mapped[pose.Pitch])
	}

	if err := l.SetMapping(pose.Axis(7), mapping.AxisConfig{}); !errors.Is(err, mapping.ErrAxis) {
		t.Errorf("Expected ErrAxis, got %v", err)
	}
	if _, err := l.Mapping(pose.Axis(7)); !errors.Is(err, mapping.ErrAxis) {
		t.Errorf("Expected ErrAxis, got %v", err)
	}
}

func TestLoop_StartStop(t *testing.T) {
	src := &fakeSource{}
	src.push(pose.New(0, 0, 0, 1, 2, 3), nil)

	opts := testOptions()
	opts.SampleInterval = time.Millisecond
	l := New(src, opts)

	// Wait on a loop that never started must not block.
	l.Wait()

	if err := l.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := l.Start(); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("Expected ErrAlreadyStarted, got %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for l.Snapshot().Seq < 5 {
		if time.Now().After(deadline) {
			t.Fatal("worker did not publish")
		}
		time.Sleep(time.Millisecond)
	}
	if !l.Status().Running {
		t.Error("Expected running status")
	}

	l.RequestStop()
	l.RequestStop()
	select {
	case <-l.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
	l.Wait()

	if l.Status().Running {
		t.Error("Expected stopped status")
	}
	src.mu.Lock()
	stopped := src.stopped
	src.mu.Unlock()
	if !stopped {
		t.Error("Expected source to be stopped by the worker")
	}
}

func TestLoop_StartWithFailingSource(t *testing.T) {
	src := &fakeSource{startErr: errors.New("no device")}
	opts := testOptions()
	opts.SampleInterval = time.Millisecond
	l := New(src, opts)

	if err := l.Start(); err != nil {
		t.Fatalf("Expected a failing source not to stop the loop, got %v", err)
	}
	defer func() {
		l.RequestStop()
		l.Wait()
	}()

	st := l.Status()
	if st.SourceAvailable || st.SourceError == "" {
		t.Errorf("Expected source error in status, got %+v", st)
	}
}

func TestLoop_ConcurrentReadsSeeConsistentPairs(t *testing.T) {
	src := &counterSource{}
	opts := testOptions()
	opts.SampleInterval = 100 * time.Microsecond
	l := New(src, opts)
	if err := l.Start(); err != nil {
		t.Fatal(err)
	}
	defer func() {
		l.RequestStop()
		l.Wait()
	}()

	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 2000; i++ {
				raw, mapped := l.CurrentPoses()
				// Identity mappings: both halves come from the same sample,
				// unless the output was disabled for that iteration.
				if mapped.IsNeutral() {
					continue
				}
				if raw[pose.X] != mapped[pose.X] || raw[pose.Y] != mapped[pose.Y] {
					t.Errorf("Expected matching pair, got raw %v mapped %v", raw, mapped)
					return
				}
			}
		}()
	}
	for i := 0; i < 100; i++ {
		l.ToggleEnabled()
		l.ToggleEnabled()
	}
	wg.Wait()
}

// counterSource yields a new translation on every call.
type counterSource struct {
	mu sync.Mutex
	n  float64
}

func (c *counterSource) Start() error { return nil }
func (c *counterSource) Stop() error  { return nil }

func (c *counterSource) Next() (pose.Pose, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	if c.n > 90 {
		c.n = 1
	}
	return pose.New(c.n, -c.n, 0, 0, 0, 0), nil
}

func TestStore(t *testing.T) {
	var s Store
	if snap := s.Snapshot(); snap.Seq != 0 {
		t.Fatalf("Expected seq 0 before publish, got %d", snap.Seq)
	}
	raw := pose.New(1, 0, 0, 0, 0, 0)
	mapped := pose.New(2, 0, 0, 0, 0, 0)
	if seq := s.Publish(raw, mapped, true, false); seq != 1 {
		t.Errorf("Expected seq 1, got %d", seq)
	}
	gotRaw, gotMapped := s.Read()
	if gotRaw != raw || gotMapped != mapped {
		t.Errorf("Expected %v/%v, got %v/%v", raw, mapped, gotRaw, gotMapped)
	}
	if snap := s.Snapshot(); snap.At.IsZero() {
		t.Error("Expected publish time to be set")
	}
}

func TestLoop_SetMappings(t *testing.T) {
	src := &fakeSource{}
	src.push(pose.New(10, 0, 0, 0, 0, 0), nil)
	l := New(src, testOptions())

	s := mapping.DefaultSet()
	s[pose.X].Invert = true
	l.SetMappings(s)
	s[pose.X].Invert = false // the loop keeps its own copy

	l.step()
	if _, mapped := l.CurrentPoses(); mapped[pose.X] != -10 {
		t.Errorf("Expected inverted x -10, got %v", mapped[pose.X])
	}
	if cfg, err := l.Mapping(pose.X); err != nil || !cfg.Invert {
		t.Errorf("Expected inverted x mapping, got %+v (%v)", cfg, err)
	}
	if !l.Enabled() {
		t.Error("Expected loop enabled by default")
	}
}

// flakySource delivers one pose, then fails with a message that differs
// on every call.
type flakySource struct {
	calls int
	kind  error
}

func (s *flakySource) Start() error { return nil }
func (s *flakySource) Stop() error  { return nil }

func (s *flakySource) Next() (pose.Pose, error) {
	s.calls++
	if s.calls == 1 {
		return pose.New(1, 2, 3, 0, 0, 0), nil
	}
	return pose.Pose{}, fmt.Errorf("no datagram for %dms: %w", s.calls*4, s.kind)
}

func captureWarnings(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	log.SetOutput(&buf, "warn")
	t.Cleanup(func() { log.SetOutput(io.Discard, "error") })
	return &buf
}

func TestStep_SourceOutageLoggedOnce(t *testing.T) {
	buf := captureWarnings(t)
	src := &flakySource{kind: pose.ErrSourceUnavailable}
	l := New(src, testOptions())

	for i := 0; i < 21; i++ {
		l.step()
	}

	if n := strings.Count(buf.String(), "pose source unavailable, holding last pose"); n != 1 {
		t.Errorf("Expected 1 warning for one outage, got %d:\n%s", n, buf.String())
	}
	if st := l.Status(); st.SourceAvailable || st.Misses != 20 {
		t.Errorf("Expected unavailable source with 20 misses, got %+v", st)
	}

	// A different kind of failure during the same outage is reported again.
	src.kind = errors.New("decoder crashed")
	l.step()
	l.step()
	if n := strings.Count(buf.String(), "pose source unavailable, holding last pose"); n != 2 {
		t.Errorf("Expected a second warning when the failure kind changes, got %d", n)
	}
}

func TestStep_SnapshotCarriesGatingFlags(t *testing.T) {
	src := &fakeSource{}
	src.push(pose.New(0, 0, 0, 10, 0, 0), nil)
	l := New(src, testOptions())

	l.SetEnabled(false)
	l.step()
	l.SetEnabled(true)
	l.RequestZero(true)

	snap := l.Snapshot()
	if snap.Enabled || snap.Zeroed || !snap.Mapped.IsNeutral() {
		t.Errorf("Expected flags that produced the pair (disabled, not zeroed), got %+v", snap)
	}

	l.step()
	snap = l.Snapshot()
	if !snap.Enabled || !snap.Zeroed || !snap.Mapped.IsNeutral() {
		t.Errorf("Expected enabled and zeroed after the next step, got %+v", snap)
	}
}

func TestStep_Recorder(t *testing.T) {
	src := &fakeSource{}
	src.push(pose.New(2, 0, 0, 20, 0, 0), nil)

	var records []Record
	opts := testOptions()
	opts.Mappings[pose.X].Invert = true
	opts.Recorder = func(r Record) { records = append(records, r) }
	l := New(src, opts)

	l.step()
	l.RequestCenter()
	l.step()

	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	first := records[0]
	if first.Seq != 1 || first.Raw[pose.X] != 2 || first.Compensated[pose.X] != 2 || first.Mapped[pose.X] != -2 {
		t.Errorf("Unexpected first record %+v", first)
	}
	if second := records[1]; second.Seq != 2 || second.Raw[pose.Yaw] != 20 || second.Compensated[pose.Yaw] != 0 {
		t.Errorf("Expected centered second record, got %+v", second)
	}
}

func TestCSVRecorder(t *testing.T) {
	var buf bytes.Buffer
	rec := CSVRecorder(&buf)
	rec(Record{Seq: 1, Raw: pose.New(1.5, 0, 0, 0, 0, 0), Mapped: pose.New(0, 0, 0, 0, 0, -3)})
	rec(Record{Seq: 2})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected header and 2 rows, got %d:\n%s", len(lines), buf.String())
	}
	header := strings.Split(lines[0], ",")
	if len(header) != 19 || header[0] != "seq" || header[1] != "raw_x" || header[18] != "mapped_roll" {
		t.Errorf("Unexpected header %v", header)
	}
	row := strings.Split(lines[1], ",")
	if row[0] != "1" || row[1] != "1.5000" || row[18] != "-3.0000" {
		t.Errorf("Unexpected row %v", row)
	}
}
