// Command verify sanity-checks a measurement file: per-sensor counts,
// timestamp monotonicity, inter-measurement gaps and value ranges.
package main

import (
	"flag"
	"fmt"
	"math"
	"os"

	"tracker-go/dataset"
	"tracker-go/fusion"
)

func main() {
	inPath := flag.String("input", "", "Measurement file to check")
	flag.Parse()

	if *inPath == "" {
		fmt.Fprintln(os.Stderr, "--input required")
		os.Exit(1)
	}
	if err := run(*inPath); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run(inPath string) error {
	records, err := dataset.ParseFile(inPath)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("%s: no measurements", inPath)
	}

	laser, radar := 0, 0
	outOfOrder := 0
	var maxGap, minGap float64
	minGap = math.Inf(1)
	prev := records[0].Measurement.Timestamp

	for i, rec := range records {
		switch rec.Measurement.Sensor {
		case fusion.SensorLaser:
			laser++
		case fusion.SensorRadar:
			radar++
		}
		if i > 0 {
			gap := float64(rec.Measurement.Timestamp-prev) / 1e6
			if gap < 0 {
				outOfOrder++
			} else {
				if gap > maxGap {
					maxGap = gap
				}
				if gap < minGap {
					minGap = gap
				}
			}
		}
		prev = rec.Measurement.Timestamp

		if rec.Measurement.Sensor == fusion.SensorRadar && rec.Measurement.Raw[0] < 0 {
			fmt.Printf("line %d: negative radar range %g\n", i+1, rec.Measurement.Raw[0])
		}
	}

	first := records[0].Measurement.Timestamp
	last := records[len(records)-1].Measurement.Timestamp

	fmt.Printf("%s: %d measurements (%d laser, %d radar)\n", inPath, len(records), laser, radar)
	fmt.Printf("span: %.2fs, gap min=%.0fms max=%.0fms\n",
		float64(last-first)/1e6, minGap*1e3, maxGap*1e3)
	if outOfOrder > 0 {
		return fmt.Errorf("%d measurements out of timestamp order", outOfOrder)
	}
	fmt.Println("timestamps monotonic")
	return nil
}
