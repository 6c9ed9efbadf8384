// Package dataset reads and writes the whitespace-delimited measurement
// files used by the simulator and the offline tools. Each line carries one
// sensor reading followed by the ground truth state at the same instant:
//
//	L px py        t gtpx gtpy gtvx gtvy ...
//	R rho phi rhod t gtpx gtpy gtvx gtvy ...
//
// Timestamps are microseconds. Trailing ground truth columns beyond the
// first four (some captures add yaw and turn rate) are ignored.
package dataset

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"tracker-go/fusion"
)

// GroundTruth is the reference state attached to one measurement line.
type GroundTruth struct {
	Px, Py float64
	Vx, Vy float64
}

// Record pairs a measurement with its ground truth.
type Record struct {
	Measurement fusion.Measurement
	Truth       GroundTruth
}

// Line renders the record back into the one-line file format, normalizing
// whitespace to single spaces.
func (r Record) Line() string {
	var sb strings.Builder
	if r.Measurement.Sensor == fusion.SensorRadar {
		sb.WriteString("R")
	} else {
		sb.WriteString("L")
	}
	for _, v := range r.Measurement.Raw {
		fmt.Fprintf(&sb, " %g", v)
	}
	fmt.Fprintf(&sb, " %d %g %g %g %g",
		r.Measurement.Timestamp, r.Truth.Px, r.Truth.Py, r.Truth.Vx, r.Truth.Vy)
	return sb.String()
}

// Parse reads every record from r. Blank lines and lines starting with '#'
// are skipped; anything else malformed is an error naming the line number.
func Parse(r io.Reader) ([]Record, error) {
	var records []Record
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		rec, err := parseLine(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// ParseFile reads every record from the file at path.
func ParseFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

// ParseLine decodes a single sensor line, exported for the streaming
// simulator protocol which carries one line per frame.
func ParseLine(text string) (Record, error) {
	return parseLine(strings.TrimSpace(text))
}

func parseLine(text string) (Record, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return Record{}, fmt.Errorf("empty measurement line")
	}

	var sensor fusion.SensorType
	switch fields[0] {
	case "L":
		sensor = fusion.SensorLaser
	case "R":
		sensor = fusion.SensorRadar
	default:
		return Record{}, fmt.Errorf("unknown sensor tag %q", fields[0])
	}

	dims := sensor.Dims()
	// tag + measurement + timestamp + 4 ground truth columns.
	if len(fields) < 1+dims+1+4 {
		return Record{}, fmt.Errorf("%s line has %d fields, want at least %d", fields[0], len(fields), 1+dims+1+4)
	}

	vals, err := parseFloats(fields[1 : 1+dims])
	if err != nil {
		return Record{}, err
	}
	ts, err := strconv.ParseInt(fields[1+dims], 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("bad timestamp %q: %w", fields[1+dims], err)
	}
	gt, err := parseFloats(fields[2+dims : 6+dims])
	if err != nil {
		return Record{}, err
	}

	rec := Record{
		Measurement: fusion.Measurement{Sensor: sensor, Raw: vals, Timestamp: ts},
		Truth:       GroundTruth{Px: gt[0], Py: gt[1], Vx: gt[2], Vy: gt[3]},
	}
	return rec, rec.Measurement.Validate()
}

func parseFloats(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("bad value %q: %w", f, err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("non-finite value %q", f)
		}
		out[i] = v
	}
	return out, nil
}
