package sampler

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/accel_paddle/internal/accel"
	"github.com/relabs-tech/accel_paddle/internal/adc"
	"github.com/relabs-tech/accel_paddle/internal/calibration"
	"github.com/relabs-tech/accel_paddle/internal/output"
	"github.com/relabs-tech/accel_paddle/internal/record"
)

var sensors = [2]accel.SensorChannels{
	{
		Name: "left",
		X:    adc.Channel{Addr: 0x48, Input: 0},
		Y:    adc.Channel{Addr: 0x48, Input: 1},
		Z:    adc.Channel{Addr: 0x48, Input: 2},
	},
	{
		Name: "right",
		X:    adc.Channel{Addr: 0x49, Input: 0},
		Y:    adc.Channel{Addr: 0x49, Input: 1},
		Z:    adc.Channel{Addr: 0x49, Input: 2},
	},
}

type clock struct{ now time.Duration }

func (c *clock) elapsed() time.Duration { return c.now }

type recordingSink struct {
	statuses []string
	results  []calibration.Result
	headers  int
	records  []record.Record
	onWrite  func(n int)
}

func (r *recordingSink) Status(msg string) error { r.statuses = append(r.statuses, msg); return nil }
func (r *recordingSink) Calibrated(res calibration.Result) error {
	r.results = append(r.results, res)
	return nil
}
func (r *recordingSink) Header([]string) error { r.headers++; return nil }
func (r *recordingSink) Write(rec record.Record) error {
	r.records = append(r.records, rec)
	if r.onWrite != nil {
		r.onWrite(len(r.records))
	}
	return nil
}
func (r *recordingSink) Close() error { return nil }

// restingReader returns two level, stationary sensors with a small mounting
// bias each.
func restingReader() *adc.MockReader {
	m := adc.NewMockReader()
	m.SetG(sensors[0].X, 0.02)
	m.SetG(sensors[0].Y, -0.01)
	m.SetG(sensors[0].Z, 1.03)
	m.SetG(sensors[1].X, -0.03)
	m.SetG(sensors[1].Y, 0.04)
	m.SetG(sensors[1].Z, 0.97)
	return m
}

func newTestSampler(t *testing.T, r adc.Reader, sink output.Sink, c *clock) *Sampler {
	t.Helper()
	s, err := New(r, sensors, sink, Options{
		Calibration: calibration.Options{Sleep: func(time.Duration) {}},
		Elapsed:     c.elapsed,
	})
	require.NoError(t, err)
	return s
}

func TestNew(t *testing.T) {
	t.Run("rejects shared channels", func(t *testing.T) {
		bad := sensors
		bad[1].Z = bad[0].X
		_, err := New(adc.NewMockReader(), bad, &recordingSink{}, Options{})
		assert.ErrorContains(t, err, "share a channel")
	})

	t.Run("rejects alpha above one", func(t *testing.T) {
		_, err := New(adc.NewMockReader(), sensors, &recordingSink{}, Options{Alpha: 1.5})
		assert.Error(t, err)
	})

	t.Run("defaults", func(t *testing.T) {
		s, err := New(adc.NewMockReader(), sensors, &recordingSink{}, Options{})
		require.NoError(t, err)
		assert.Equal(t, uint64(10), s.interval)
		assert.Equal(t, 0.6, s.filter.Alpha)
		assert.Equal(t, StateCalibrating, s.State())
	})
}

func TestTickBeforeCalibration(t *testing.T) {
	s := newTestSampler(t, restingReader(), &recordingSink{}, &clock{now: time.Second})
	_, ok, err := s.Tick()
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrNotCalibrated)
}

func TestCalibrate(t *testing.T) {
	sink := &recordingSink{}
	s := newTestSampler(t, restingReader(), sink, &clock{})

	results, err := s.Calibrate()
	require.NoError(t, err)
	assert.Equal(t, StateSteady, s.State())

	assert.InDelta(t, 0.02, results[0].Offset.X, 0.001)
	assert.InDelta(t, 0.03, results[0].Offset.Z, 0.001)
	assert.InDelta(t, -0.03, results[1].Offset.X, 0.001)
	assert.InDelta(t, -0.03, results[1].Offset.Z, 0.001)
	assert.Equal(t, [2]accel.Triple{results[0].Offset, results[1].Offset}, s.Offsets())

	// filters start at the negated offset
	assert.Equal(t, results[0].Offset.Neg(), s.sensors[0].state)
	assert.Equal(t, results[1].Offset.Neg(), s.sensors[1].state)

	assert.Equal(t, []string{StatusCalibrating, StatusCalibrated}, sink.statuses)
	assert.Len(t, sink.results, 2)
	assert.Equal(t, 1, sink.headers)

	_, err = s.Calibrate()
	assert.Error(t, err, "calibration runs once")
}

func TestCalibrateOrder(t *testing.T) {
	m := restingReader()
	s := newTestSampler(t, m, &recordingSink{}, &clock{})
	_, err := s.Calibrate()
	require.NoError(t, err)

	reads := m.Reads()
	require.Len(t, reads, 2*3*calibration.DefaultSamples)
	n := 3 * calibration.DefaultSamples
	assert.Equal(t, sensors[0].X, reads[0])
	assert.Equal(t, sensors[0].Z, reads[n-1])
	assert.Equal(t, sensors[1].X, reads[n])
}

func TestCalibrateError(t *testing.T) {
	m := restingReader()
	boom := errors.New("nack")
	m.SetError(sensors[1].Y, boom)
	s := newTestSampler(t, m, &recordingSink{}, &clock{})

	_, err := s.Calibrate()
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StateCalibrating, s.State())
}

func TestTimingGate(t *testing.T) {
	c := &clock{}
	sink := &recordingSink{}
	s := newTestSampler(t, restingReader(), sink, c)
	_, err := s.Calibrate()
	require.NoError(t, err)

	steps := []time.Duration{0, 3, 7, 1, 9, 2, 12, 0, 4, 5, 6, 1, 30, 1, 8, 2, 10, 10}
	for _, step := range steps {
		c.now += step * time.Millisecond
		_, _, err := s.Tick()
		require.NoError(t, err)
	}

	require.NotEmpty(t, sink.records)
	for i := 1; i < len(sink.records); i++ {
		gap := sink.records[i].TimeMS - sink.records[i-1].TimeMS
		assert.GreaterOrEqual(t, gap, uint64(10), "records %d and %d", i-1, i)
	}
}

func TestTickNoCatchUp(t *testing.T) {
	c := &clock{now: 5 * time.Millisecond}
	sink := &recordingSink{}
	s := newTestSampler(t, restingReader(), sink, c)
	_, err := s.Calibrate()
	require.NoError(t, err)

	_, ok, err := s.Tick()
	require.NoError(t, err)
	assert.False(t, ok, "5ms after start is not due")

	c.now = 10 * time.Millisecond
	rec, ok, err := s.Tick()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(10), rec.TimeMS)

	// a late loop emits once with the current time
	c.now = 47 * time.Millisecond
	rec, ok, _ = s.Tick()
	require.True(t, ok)
	assert.Equal(t, uint64(47), rec.TimeMS)

	_, ok, _ = s.Tick()
	assert.False(t, ok)

	c.now = 56 * time.Millisecond
	_, ok, _ = s.Tick()
	assert.False(t, ok, "next record is due 10ms after the late one")

	c.now = 57 * time.Millisecond
	_, ok, _ = s.Tick()
	assert.True(t, ok)

	assert.Len(t, sink.records, 3)
}

func TestTickReadError(t *testing.T) {
	c := &clock{}
	m := restingReader()
	sink := &recordingSink{}
	s := newTestSampler(t, m, sink, c)
	_, err := s.Calibrate()
	require.NoError(t, err)

	before := *s.sensors[0]
	boom := errors.New("nack")
	m.SetError(sensors[1].Z, boom)

	c.now = 20 * time.Millisecond
	_, ok, err := s.Tick()
	assert.ErrorIs(t, err, boom)
	assert.False(t, ok)
	assert.Equal(t, before.state, s.sensors[0].state, "no partial filter update")
	assert.Empty(t, sink.records)

	m.SetError(sensors[1].Z, nil)
	_, ok, err = s.Tick()
	require.NoError(t, err)
	assert.False(t, ok)

	c.now = 30 * time.Millisecond
	_, ok, err = s.Tick()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLevelSensorsSettle(t *testing.T) {
	c := &clock{}
	var buf bytes.Buffer
	s := newTestSampler(t, restingReader(), output.NewLineSink(&buf, nil), c)
	_, err := s.Calibrate()
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		c.now += 10 * time.Millisecond
		_, ok, err := s.Tick()
		require.NoError(t, err)
		require.True(t, ok)
	}

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 8)
	assert.Equal(t, StatusCalibrating, lines[0])
	assert.Equal(t, StatusCalibrated, lines[1])
	assert.Equal(t, record.Header, lines[2])

	var prevZ [2]float64
	for i, line := range lines[3:] {
		rec, err := record.ParseCSV(line)
		require.NoError(t, err, "line %q", line)
		assert.Equal(t, uint64(10*(i+1)), rec.TimeMS)

		for j, tr := range []accel.Triple{rec.Sensor1, rec.Sensor2} {
			assert.InDelta(t, 0.0, tr.X, 0.05, "record %d sensor %d x", i, j+1)
			assert.InDelta(t, 0.0, tr.Y, 0.05, "record %d sensor %d y", i, j+1)
			// calibrated Z keeps +1 g of gravity; the filter climbs toward it
			assert.Greater(t, tr.Z, prevZ[j])
			prevZ[j] = tr.Z
		}
	}
	assert.InDelta(t, 1.0, prevZ[0], 0.05)
	assert.InDelta(t, 1.0, prevZ[1], 0.05)
}

func TestTiltedSensorTracksIndependently(t *testing.T) {
	c := &clock{}
	m := restingReader()
	sink := &recordingSink{}
	s := newTestSampler(t, m, sink, c)
	_, err := s.Calibrate()
	require.NoError(t, err)

	// tilt sensor 1 so X reads +1 g on top of its bias
	m.SetG(sensors[0].X, 1.02)

	for i := 0; i < 10; i++ {
		c.now += 10 * time.Millisecond
		_, ok, err := s.Tick()
		require.NoError(t, err)
		require.True(t, ok)
	}

	prev := -1.0
	for i, rec := range sink.records {
		assert.Greater(t, rec.Sensor1.X, prev, "ax1 rises at record %d", i)
		prev = rec.Sensor1.X

		assert.InDelta(t, 0.0, rec.Sensor2.X, 0.05)
		assert.InDelta(t, 0.0, rec.Sensor2.Y, 0.05)
	}
	last := sink.records[len(sink.records)-1]
	assert.InDelta(t, 1.0, last.Sensor1.X, 0.01)
	assert.InDelta(t, 0.0, last.Sensor1.Y, 0.01)
	assert.InDelta(t, 1.0, last.Sensor2.Z, 0.01)
}

func TestRun(t *testing.T) {
	for _, busy := range []bool{false, true} {
		t.Run(map[bool]string{false: "sleep", true: "busy"}[busy], func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			c := &clock{}
			sink := &recordingSink{onWrite: func(n int) {
				if n == 3 {
					cancel()
				}
			}}
			s, err := New(restingReader(), sensors, sink, Options{
				Calibration: calibration.Options{Sleep: func(time.Duration) {}},
				BusyPoll:    busy,
				Elapsed: func() time.Duration {
					if busy {
						c.now += time.Millisecond
					}
					return c.now
				},
			})
			require.NoError(t, err)

			var slept []time.Duration
			s.sleep = func(d time.Duration) {
				slept = append(slept, d)
				c.now += d
			}

			require.NoError(t, s.Run(ctx))
			assert.Equal(t, StateSteady, s.State())
			require.Len(t, sink.records, 3)
			for i := 1; i < 3; i++ {
				assert.Equal(t, uint64(10), sink.records[i].TimeMS-sink.records[i-1].TimeMS)
			}
			if busy {
				assert.Empty(t, slept)
			} else {
				assert.NotEmpty(t, slept)
			}
		})
	}
}
