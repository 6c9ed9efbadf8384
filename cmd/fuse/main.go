// Command fuse runs the estimation engine over a measurement file and
// writes the fused track as CSV, with a final accuracy and consistency
// report on stdout.
package main

import (
	"flag"
	"fmt"
	"os"

	"tracker-go/dataset"
	"tracker-go/fusion"
	"tracker-go/metrics"
)

func main() {
	variant := flag.String("filter", "ukf", "Filter variant: ekf or ukf")
	inPath := flag.String("input", "", "Input measurement file")
	outPath := flag.String("out", "fused.csv", "Output CSV path")
	cfgPath := flag.String("config", "", "Optional JSON tuning file")
	useLaser := flag.Bool("use-laser", true, "Process laser measurements")
	useRadar := flag.Bool("use-radar", true, "Process radar measurements")
	stdA := flag.Float64("std-a", 0, "Override acceleration noise std (m/s^2)")
	stdYawdd := flag.Float64("std-yawdd", 0, "Override yaw acceleration noise std (rad/s^2)")
	verbose := flag.Bool("verbose", false, "Log every update")
	flag.Parse()

	if *inPath == "" {
		fmt.Fprintln(os.Stderr, "--input required")
		os.Exit(1)
	}

	cfg := fusion.DefaultConfig()
	if *cfgPath != "" {
		var err error
		if cfg, err = fusion.LoadConfig(*cfgPath); err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
	}
	cfg.UseLaser = *useLaser
	cfg.UseRadar = *useRadar
	cfg.Verbose = *verbose
	if *stdA > 0 {
		cfg.StdA = *stdA
	}
	if *stdYawdd > 0 {
		cfg.StdYawdd = *stdYawdd
	}

	if err := run(*variant, cfg, *inPath, *outPath); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run(variant string, cfg fusion.Config, inPath, outPath string) error {
	records, err := dataset.ParseFile(inPath)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("%s: no measurements", inPath)
	}

	f, err := fusion.New(variant, cfg)
	if err != nil {
		return err
	}

	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer out.Close()
	w := dataset.NewOutputWriter(out)

	var rmse metrics.Accumulator
	skipped := 0
	for _, rec := range records {
		est, err := f.ProcessMeasurement(rec.Measurement)
		if err != nil {
			return fmt.Errorf("%s: %w", inPath, err)
		}
		if est.Skipped {
			skipped++
			continue
		}

		px, py := est.Position()
		vx, vy := est.Velocity()
		rmse.Add(px, py, vx, vy, rec.Truth.Px, rec.Truth.Py, rec.Truth.Vx, rec.Truth.Vy)

		if err := w.WriteRow(est, rec.Truth, rmse.Value()); err != nil {
			return fmt.Errorf("write %s: %w", outPath, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}

	report(os.Stdout, variant, f.Consistency(), rmse, skipped)
	return nil
}

func report(w *os.File, variant string, rep fusion.ConsistencyReport, rmse metrics.Accumulator, skipped int) {
	val := rmse.Value()
	fmt.Fprintf(w, "%s: %d updates (%d skipped)\n", variant, rmse.Count(), skipped)
	fmt.Fprintf(w, "RMSE  x=%.4f y=%.4f vx=%.4f vy=%.4f\n", val.X, val.Y, val.Vx, val.Vy)
	if rep.LaserUpdates > 0 {
		fmt.Fprintf(w, "NIS laser: %.1f%% of %d updates above %.3f\n",
			100*rep.ExceedRate(fusion.SensorLaser), rep.LaserUpdates, fusion.ChiSquare95Laser)
	}
	if rep.RadarUpdates > 0 {
		fmt.Fprintf(w, "NIS radar: %.1f%% of %d updates above %.3f\n",
			100*rep.ExceedRate(fusion.SensorRadar), rep.RadarUpdates, fusion.ChiSquare95Radar)
	}
}
