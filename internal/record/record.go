package record

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/relabs-tech/accel_paddle/internal/accel"
)

// Fields names the CSV columns, in order.
var Fields = []string{"time_ms", "ax1", "ay1", "az1", "ax2", "ay2", "az2"}

// Header is the one-time line announcing the stream layout.
var Header = strings.Join(Fields, ",")

// Record is one sampling tick: both sensors' filtered acceleration (g) and
// the milliseconds elapsed since process start.
type Record struct {
	TimeMS  uint64       `json:"time_ms"`
	Sensor1 accel.Triple `json:"sensor1"`
	Sensor2 accel.Triple `json:"sensor2"`
}

// CSV renders the record as a line without the trailing newline. The
// acceleration fields carry exactly 4 fractional digits.
func (r Record) CSV() string {
	return fmt.Sprintf("%d,%.4f,%.4f,%.4f,%.4f,%.4f,%.4f",
		r.TimeMS,
		r.Sensor1.X, r.Sensor1.Y, r.Sensor1.Z,
		r.Sensor2.X, r.Sensor2.Y, r.Sensor2.Z,
	)
}

// ParseCSV parses a data line. Status lines, the header and anything else
// that is not 7 numeric fields are rejected, so consumers can skip them.
func ParseCSV(line string) (Record, error) {
	line = strings.TrimSpace(line)
	parts := strings.Split(line, ",")
	if len(parts) != len(Fields) {
		return Record{}, fmt.Errorf("not a record: %d fields", len(parts))
	}

	ts, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("not a record: time_ms %q: %w", parts[0], err)
	}

	var v [6]float64
	for i := range v {
		v[i], err = strconv.ParseFloat(parts[i+1], 64)
		if err != nil {
			return Record{}, fmt.Errorf("not a record: %s %q: %w", Fields[i+1], parts[i+1], err)
		}
	}

	return Record{
		TimeMS:  ts,
		Sensor1: accel.Triple{X: v[0], Y: v[1], Z: v[2]},
		Sensor2: accel.Triple{X: v[3], Y: v[4], Z: v[5]},
	}, nil
}
