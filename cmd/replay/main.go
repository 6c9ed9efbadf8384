// Command replay plays a measurement file against a running simserver over
// websocket, pacing frames by their recorded timestamps. It stands in for
// the simulator during development and prints the final RMSE the server
// reports back.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gorilla/websocket"

	"tracker-go/dataset"
	"tracker-go/server"
)

func main() {
	inPath := flag.String("input", "", "Measurement file to replay")
	url := flag.String("url", "ws://localhost:4567/", "Simserver websocket URL")
	speed := flag.Float64("speed", 1.0, "Replay speed factor (0 = as fast as possible)")
	flag.Parse()

	if *inPath == "" {
		fmt.Fprintln(os.Stderr, "--input required")
		os.Exit(1)
	}
	if err := run(*inPath, *url, *speed); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run(inPath, url string, speed float64) error {
	records, err := dataset.ParseFile(inPath)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("%s: no measurements", inPath)
	}

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	log.Printf("replaying %d measurements from %s at %.1fx", len(records), inPath, speed)

	firstTs := records[0].Measurement.Timestamp
	startReal := time.Now()
	var last server.EstimateMarker

	for i, rec := range records {
		if speed > 0 {
			elapsed := time.Duration(float64(rec.Measurement.Timestamp-firstTs)/speed) * time.Microsecond
			if wait := elapsed - time.Since(startReal); wait > 0 {
				time.Sleep(wait)
			}
		}

		frame := telemetryFrame(rec)
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}

		_, reply, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("frame %d reply: %w", i, err)
		}
		event, payload, ok, err := server.DecodeFrame(reply)
		if err != nil || !ok || event != "estimate_marker" {
			continue
		}
		if err := json.Unmarshal(payload, &last); err == nil && (i+1)%100 == 0 {
			log.Printf("%d/%d  est=(%.2f, %.2f)  rmse=(%.3f, %.3f, %.3f, %.3f)",
				i+1, len(records), last.EstimateX, last.EstimateY,
				last.RMSEX, last.RMSEY, last.RMSEVx, last.RMSEVy)
		}
	}

	fmt.Printf("final RMSE: x=%.4f y=%.4f vx=%.4f vy=%.4f\n",
		last.RMSEX, last.RMSEY, last.RMSEVx, last.RMSEVy)
	return nil
}

// telemetryFrame rebuilds the simulator's wire format for one record. The
// measurement line is reconstructed from the parsed values so replay output
// is deterministic regardless of source file whitespace.
func telemetryFrame(rec dataset.Record) []byte {
	line := rec.Line()
	payload, _ := json.Marshal(map[string]string{"sensor_measurement": line})
	return []byte(fmt.Sprintf(`42["telemetry",%s]`, payload))
}
