package server

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// The simulator speaks a socket.io-style framing: every message is the
// digits "42" followed by a JSON array of [event, payload].
const framePrefix = "42"

// EstimateMarker is the payload the simulator draws as the fused track.
type EstimateMarker struct {
	EstimateX float64 `json:"estimate_x"`
	EstimateY float64 `json:"estimate_y"`
	RMSEX     float64 `json:"rmse_x"`
	RMSEY     float64 `json:"rmse_y"`
	RMSEVx    float64 `json:"rmse_vx"`
	RMSEVy    float64 `json:"rmse_vy"`
}

// DecodeFrame splits a simulator message into its event name and raw
// payload. ok is false for messages without the event prefix (socket.io
// pings and the like), which are silently ignored by callers.
func DecodeFrame(data []byte) (event string, payload json.RawMessage, ok bool, err error) {
	if !bytes.HasPrefix(data, []byte(framePrefix)) {
		return "", nil, false, nil
	}
	var parts []json.RawMessage
	if err := json.Unmarshal(data[len(framePrefix):], &parts); err != nil {
		return "", nil, false, fmt.Errorf("malformed frame: %w", err)
	}
	if len(parts) == 0 {
		return "", nil, false, fmt.Errorf("empty frame")
	}
	if err := json.Unmarshal(parts[0], &event); err != nil {
		return "", nil, false, fmt.Errorf("frame event is not a string: %w", err)
	}
	if len(parts) > 1 {
		payload = parts[1]
	}
	return event, payload, true, nil
}

// telemetryPayload is the body of the simulator's "telemetry" event.
type telemetryPayload struct {
	SensorMeasurement string `json:"sensor_measurement"`
}

// EncodeEstimate frames an estimate_marker reply.
func EncodeEstimate(m EstimateMarker) []byte {
	body, _ := json.Marshal(m)
	var buf bytes.Buffer
	buf.WriteString(framePrefix)
	buf.WriteString(`["estimate_marker",`)
	buf.Write(body)
	buf.WriteString(`]`)
	return buf.Bytes()
}

// EncodeManual frames the fallback reply that keeps the simulator stepping
// when a message carries no usable measurement.
func EncodeManual() []byte {
	return []byte(framePrefix + `["manual",{}]`)
}
