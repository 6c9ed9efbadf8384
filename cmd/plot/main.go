// Command plot runs the engine over a measurement file and renders an HTML
// page with the fused trajectory against ground truth plus the per-sensor
// NIS series and their 95% chi-square lines.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"tracker-go/dataset"
	"tracker-go/fusion"
)

func main() {
	variant := flag.String("filter", "ukf", "Filter variant: ekf or ukf")
	inPath := flag.String("input", "", "Input measurement file")
	outPath := flag.String("out", "track.html", "Output HTML path")
	cfgPath := flag.String("config", "", "Optional JSON tuning file")
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

	if err := run(*variant, cfg, *inPath, *outPath); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

type series struct {
	fused    []opts.ScatterData
	truth    []opts.ScatterData
	nisLaser []opts.LineData
	nisRadar []opts.LineData
}

func run(variant string, cfg fusion.Config, inPath, outPath string) error {
	records, err := dataset.ParseFile(inPath)
	if err != nil {
		return err
	}
	f, err := fusion.New(variant, cfg)
	if err != nil {
		return err
	}

	var s series
	for _, rec := range records {
		est, err := f.ProcessMeasurement(rec.Measurement)
		if err != nil {
			return fmt.Errorf("%s: %w", inPath, err)
		}
		if est.Skipped {
			continue
		}
		px, py := est.Position()
		s.fused = append(s.fused, opts.ScatterData{Value: []interface{}{px, py}})
		s.truth = append(s.truth, opts.ScatterData{Value: []interface{}{rec.Truth.Px, rec.Truth.Py}})
		switch est.Sensor {
		case fusion.SensorLaser:
			s.nisLaser = append(s.nisLaser, opts.LineData{Value: est.NIS})
		case fusion.SensorRadar:
			s.nisRadar = append(s.nisRadar, opts.LineData{Value: est.NIS})
		}
	}

	page := components.NewPage()
	page.PageTitle = fmt.Sprintf("%s track", variant)
	page.AddCharts(
		trajectoryChart(variant, s),
		nisChart("laser NIS", fusion.ChiSquare95Laser, s.nisLaser),
		nisChart("radar NIS", fusion.ChiSquare95Radar, s.nisRadar),
	)

	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer out.Close()
	return page.Render(out)
}

func trajectoryChart(variant string, s series) *charts.Scatter {
	sc := charts.NewScatter()
	sc.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Fused trajectory", Subtitle: variant}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "x (m)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "y (m)"}),
	)
	sc.AddSeries("fused", s.fused, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))
	sc.AddSeries("truth", s.truth, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}))
	return sc
}

func nisChart(title string, threshold float64, data []opts.LineData) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("95%% threshold %.3f", threshold)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "NIS"}),
	)

	xAxis := make([]int, len(data))
	thresh := make([]opts.LineData, len(data))
	for i := range data {
		xAxis[i] = i
		thresh[i] = opts.LineData{Value: threshold}
	}
	line.SetXAxis(xAxis)
	line.AddSeries("nis", data)
	line.AddSeries("threshold", thresh)
	return line
}
