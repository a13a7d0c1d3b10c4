package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"

	"github.com/relabs-tech/doorwatch/internal/door"
	"github.com/relabs-tech/doorwatch/internal/mag"
	"github.com/relabs-tech/doorwatch/internal/sensors"
	"github.com/relabs-tech/doorwatch/internal/telemetry"
)

// scriptedSource replays readings in order; the last entry repeats.
type scriptedSource struct {
	steps []sourceStep
	calls int
}

type sourceStep struct {
	r   mag.AxisReading
	err error
}

func (s *scriptedSource) Acquire() (mag.AxisReading, error) {
	st := s.steps[min(s.calls, len(s.steps)-1)]
	s.calls++
	return st.r, st.err
}

func steady(r mag.AxisReading) *scriptedSource {
	return &scriptedSource{steps: []sourceStep{{r: r}}}
}

type pinWrite struct {
	pin   telemetry.Pin
	value int
}

type fakeChannel struct {
	mu        sync.Mutex
	pending   []telemetry.Command
	writes    []pinWrite
	snapshots []telemetry.Snapshot
	published chan struct{}
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{published: make(chan struct{}, 16)}
}

func (c *fakeChannel) send(cmds ...telemetry.Command) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(c.pending, cmds...)
}

func (c *fakeChannel) Drain() []telemetry.Command {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.pending
	c.pending = nil
	return out
}

func (c *fakeChannel) Write(pin telemetry.Pin, value int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, pinWrite{pin, value})
	return nil
}

func (c *fakeChannel) PublishSnapshot(s telemetry.Snapshot) error {
	c.mu.Lock()
	c.snapshots = append(c.snapshots, s)
	c.mu.Unlock()
	c.published <- struct{}{}
	return nil
}

func (c *fakeChannel) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = nil
	c.snapshots = nil
}

type recordingSink struct {
	results []Result
}

func (s *recordingSink) Show(r Result) error {
	s.results = append(s.results, r)
	return nil
}

// defaults fills in the detection parameters the config layer would supply.
func defaults(o Options) Options {
	d := DefaultOptions()
	o.Baseline = d.Baseline
	o.Threshold = d.Threshold
	return o
}

var (
	monitorOn     = telemetry.Command{Pin: telemetry.PinMonitor, Value: 1}
	monitorOff    = telemetry.Command{Pin: telemetry.PinMonitor, Value: 0}
	calibrateOnce = telemetry.Command{Pin: telemetry.PinCalibrate, Value: 1}
)

func TestStepMonitoringDisabledOnlyAcquires(t *testing.T) {
	src := steady(mag.AxisReading{X: 5, Y: 6, Z: 7})
	ch := newFakeChannel()
	l := New(src, ch, defaults(Options{Clock: clock.NewMock()}))

	l.Step()
	test.That(t, src.calls, test.ShouldEqual, 1)
	test.That(t, ch.writes, test.ShouldBeEmpty)
	test.That(t, ch.snapshots, test.ShouldBeEmpty)
	test.That(t, l.State().Reading, test.ShouldResemble, mag.AxisReading{X: 5, Y: 6, Z: 7})
}

func TestStepPublishesAdjustedValues(t *testing.T) {
	src := steady(mag.AxisReading{X: 1000, Y: 1020, Z: 940})
	ch := newFakeChannel()
	sink := &recordingSink{}
	l := New(src, ch, defaults(Options{MonitorAtStart: true, Clock: clock.NewMock()}), sink)

	l.Step()
	test.That(t, ch.writes, test.ShouldResemble, []pinWrite{
		{telemetry.PinX, 1000},
		{telemetry.PinY, 1020},
		{telemetry.PinZ, 940},
		{telemetry.PinDoorState, int(door.Open)},
	})
	test.That(t, ch.snapshots, test.ShouldHaveLength, 1)
	test.That(t, ch.snapshots[0].State, test.ShouldEqual, "open")
	test.That(t, ch.snapshots[0].Calibrated, test.ShouldBeFalse)
	test.That(t, sink.results, test.ShouldHaveLength, 1)
	test.That(t, sink.results[0].State, test.ShouldEqual, door.Open)
}

func TestCalibrateCommandCentersAndResetsToggle(t *testing.T) {
	src := steady(mag.AxisReading{X: -120, Y: 333, Z: 48})
	ch := newFakeChannel()
	l := New(src, ch, defaults(Options{Clock: clock.NewMock()}))

	ch.send(monitorOn, calibrateOnce)
	l.Step()

	// acquire for the iteration, then one more for calibration
	test.That(t, src.calls, test.ShouldEqual, 2)
	st := l.State()
	test.That(t, st.CalibrationRequested, test.ShouldBeFalse)
	test.That(t, st.Calibration.Valid, test.ShouldBeTrue)
	test.That(t, st.Calibration.Offset, test.ShouldResemble, mag.AxisReading{X: -1120, Y: -667, Z: -952})
	test.That(t, st.Door, test.ShouldEqual, door.Closed)
	test.That(t, ch.writes, test.ShouldResemble, []pinWrite{
		{telemetry.PinCalibrate, 0},
		{telemetry.PinX, 1000},
		{telemetry.PinY, 1000},
		{telemetry.PinZ, 1000},
		{telemetry.PinDoorState, int(door.Closed)},
	})

	// the same orientation keeps reading as the baseline
	ch.reset()
	l.Step()
	test.That(t, ch.writes[:3], test.ShouldResemble, []pinWrite{
		{telemetry.PinX, 1000},
		{telemetry.PinY, 1000},
		{telemetry.PinZ, 1000},
	})
}

func TestDoorOpensWhenFieldMoves(t *testing.T) {
	src := &scriptedSource{steps: []sourceStep{
		{r: mag.AxisReading{X: 200, Y: 200, Z: 200}}, // iteration 1
		{r: mag.AxisReading{X: 200, Y: 200, Z: 200}}, // calibration
		{r: mag.AxisReading{X: 250, Y: 200, Z: 200}}, // iteration 2: at the boundary
		{r: mag.AxisReading{X: 251, Y: 200, Z: 200}}, // iteration 3: past it
		{r: mag.AxisReading{X: 200, Y: 149, Z: 200}}, // iteration 4
	}}
	ch := newFakeChannel()
	l := New(src, ch, defaults(Options{Clock: clock.NewMock()}))
	ch.send(monitorOn, calibrateOnce)

	var states []door.State
	for i := 0; i < 4; i++ {
		l.Step()
		states = append(states, l.State().Door)
	}
	test.That(t, states, test.ShouldResemble, []door.State{door.Closed, door.Closed, door.Open, door.Open})
}

func TestShortReadKeepsStaleReading(t *testing.T) {
	short := fmt.Errorf("read data block: %w", sensors.ErrInsufficientData)
	src := &scriptedSource{steps: []sourceStep{
		{r: mag.AxisReading{X: 1000, Y: 1000, Z: 1000}},
		{err: short},
	}}
	ch := newFakeChannel()
	l := New(src, ch, defaults(Options{MonitorAtStart: true, Clock: clock.NewMock()}))

	l.Step()
	ch.reset()
	l.Step()

	st := l.State()
	test.That(t, st.Stale, test.ShouldBeTrue)
	test.That(t, st.Reading, test.ShouldResemble, mag.AxisReading{X: 1000, Y: 1000, Z: 1000})
	test.That(t, ch.snapshots, test.ShouldHaveLength, 1)
	test.That(t, ch.snapshots[0].Stale, test.ShouldBeTrue)
	test.That(t, ch.snapshots[0].X, test.ShouldEqual, 1000)
}

func TestNoReadingYetPublishesNothing(t *testing.T) {
	src := &scriptedSource{steps: []sourceStep{{err: sensors.ErrInsufficientData}}}
	ch := newFakeChannel()
	l := New(src, ch, defaults(Options{MonitorAtStart: true, Clock: clock.NewMock()}))

	l.Step()
	test.That(t, ch.writes, test.ShouldBeEmpty)
	test.That(t, l.State().HaveReading, test.ShouldBeFalse)
}

func TestCalibrationFailureStaysPending(t *testing.T) {
	src := &scriptedSource{steps: []sourceStep{
		{r: mag.AxisReading{X: 1, Y: 2, Z: 3}},
		{err: errors.New("nack")},
		{r: mag.AxisReading{X: 1, Y: 2, Z: 3}},
	}}
	ch := newFakeChannel()
	l := New(src, ch, defaults(Options{Clock: clock.NewMock()}))
	ch.send(monitorOn, calibrateOnce)

	l.Step()
	st := l.State()
	test.That(t, st.CalibrationRequested, test.ShouldBeTrue)
	test.That(t, st.Calibration.Valid, test.ShouldBeFalse)
	for _, w := range ch.writes {
		test.That(t, w.pin, test.ShouldNotEqual, telemetry.PinCalibrate)
	}

	l.Step()
	st = l.State()
	test.That(t, st.CalibrationRequested, test.ShouldBeFalse)
	test.That(t, st.Calibration.Valid, test.ShouldBeTrue)
}

func TestCommandsApplyInArrivalOrder(t *testing.T) {
	src := steady(mag.AxisReading{X: 1000, Y: 1000, Z: 1000})
	ch := newFakeChannel()
	l := New(src, ch, defaults(Options{Clock: clock.NewMock()}))

	ch.send(monitorOn, monitorOff)
	l.Step()
	test.That(t, l.State().MonitoringEnabled, test.ShouldBeFalse)
	test.That(t, ch.snapshots, test.ShouldBeEmpty)

	ch.send(monitorOff, monitorOn)
	l.Step()
	test.That(t, l.State().MonitoringEnabled, test.ShouldBeTrue)
	test.That(t, ch.snapshots, test.ShouldHaveLength, 1)
}

func TestZeroThresholdIsHonored(t *testing.T) {
	src := steady(mag.AxisReading{X: 1010, Y: 1000, Z: 1000})
	ch := newFakeChannel()
	l := New(src, ch, Options{Baseline: 1000, Threshold: 0, MonitorAtStart: true, Clock: clock.NewMock()})

	l.Step()
	test.That(t, l.State().Door, test.ShouldEqual, door.Open)

	src.steps = []sourceStep{{r: mag.AxisReading{X: 1000, Y: 1000, Z: 1000}}}
	l.Step()
	test.That(t, l.State().Door, test.ShouldEqual, door.Closed)
}

func TestZeroBaselineIsHonored(t *testing.T) {
	src := steady(mag.AxisReading{X: 420, Y: -37, Z: 815})
	ch := newFakeChannel()
	l := New(src, ch, Options{Baseline: 0, Threshold: 50, Clock: clock.NewMock()})
	ch.send(monitorOn, calibrateOnce)

	l.Step()
	test.That(t, ch.writes, test.ShouldResemble, []pinWrite{
		{telemetry.PinCalibrate, 0},
		{telemetry.PinX, 0},
		{telemetry.PinY, 0},
		{telemetry.PinZ, 0},
		{telemetry.PinDoorState, int(door.Closed)},
	})
}

func TestRunStepsOnEveryTick(t *testing.T) {
	mock := clock.NewMock()
	src := steady(mag.AxisReading{X: 1000, Y: 1000, Z: 1000})
	ch := newFakeChannel()
	l := New(src, ch, defaults(Options{MonitorAtStart: true, Interval: time.Second, Clock: mock}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	waitPublished(t, ch)
	mock.Add(time.Second)
	waitPublished(t, ch)
	mock.Add(time.Second)
	waitPublished(t, ch)

	cancel()
	select {
	case err := <-done:
		test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func waitPublished(t *testing.T, ch *fakeChannel) {
	t.Helper()
	select {
	case <-ch.published:
	case <-time.After(5 * time.Second):
		t.Fatal("no snapshot published")
	}
}
