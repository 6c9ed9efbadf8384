// Package server connects the estimation engine to the term-2 simulator: a
// websocket endpoint receives telemetry frames, runs them through the
// filter and answers with the fused estimate and running RMSE.
package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"tracker-go/dataset"
	"tracker-go/fusion"
	"tracker-go/metrics"
	"tracker-go/telemetry"
	"tracker-go/web"
)

const DefaultPort = 4567

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// estimateEvent is the JSON shape broadcast to dashboard clients.
type estimateEvent struct {
	Sensor    string  `json:"sensor"`
	Timestamp int64   `json:"ts"`
	Px        float64 `json:"px"`
	Py        float64 `json:"py"`
	V         float64 `json:"v"`
	Yaw       float64 `json:"yaw"`
	YawRate   float64 `json:"yawrate"`
	NIS       float64 `json:"nis"`
	TruthPx   float64 `json:"px_true"`
	TruthPy   float64 `json:"py_true"`
}

// SimServer drives one filter instance from simulator telemetry. A new
// simulator connection resets nothing: the simulator itself restarts the
// dataset, so the filter and RMSE are rebuilt per connection instead.
type SimServer struct {
	newFilter func() (fusion.Filter, error)

	hub    *web.Hub
	sender *telemetry.Sender

	mu sync.Mutex
}

// NewSimServer builds a server that constructs a fresh filter for every
// simulator connection. hub and sender are optional.
func NewSimServer(newFilter func() (fusion.Filter, error), hub *web.Hub, sender *telemetry.Sender) *SimServer {
	return &SimServer{newFilter: newFilter, hub: hub, sender: sender}
}

// Handler returns the HTTP handler the simulator connects to.
func (s *SimServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.serveSimulator)
	return mux
}

// ListenAndServe blocks serving simulator connections on the given port.
func (s *SimServer) ListenAndServe(port int) error {
	addr := fmt.Sprintf(":%d", port)
	log.Printf("simulator endpoint listening on %s", addr)
	return http.ListenAndServe(addr, s.Handler())
}

func (s *SimServer) serveSimulator(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("simulator upgrade: %v", err)
		return
	}
	defer conn.Close()

	f, err := s.newFilter()
	if err != nil {
		log.Printf("simulator session: %v", err)
		return
	}
	var rmse metrics.Accumulator
	log.Printf("simulator connected from %s", r.RemoteAddr)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("simulator read: %v", err)
			}
			break
		}

		reply := s.handleFrame(f, &rmse, data)
		if reply == nil {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, reply); err != nil {
			log.Printf("simulator write: %v", err)
			break
		}
	}

	rep := f.Consistency()
	log.Printf("simulator disconnected: %d steps, laser NIS>95%% on %.1f%%, radar on %.1f%%",
		rep.Steps, 100*rep.ExceedRate(fusion.SensorLaser), 100*rep.ExceedRate(fusion.SensorRadar))
}

// handleFrame runs one simulator message through the filter and builds the
// reply, or nil when the message needs no answer.
func (s *SimServer) handleFrame(f fusion.Filter, rmse *metrics.Accumulator, data []byte) []byte {
	event, payload, ok, err := DecodeFrame(data)
	if err != nil {
		log.Printf("simulator frame: %v", err)
		return EncodeManual()
	}
	if !ok {
		return nil
	}
	if event != "telemetry" || payload == nil {
		return EncodeManual()
	}

	var tp telemetryPayload
	if err := json.Unmarshal(payload, &tp); err != nil || tp.SensorMeasurement == "" {
		return EncodeManual()
	}
	rec, err := dataset.ParseLine(tp.SensorMeasurement)
	if err != nil {
		log.Printf("telemetry line: %v", err)
		return EncodeManual()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	est, err := f.ProcessMeasurement(rec.Measurement)
	if err != nil {
		log.Printf("process %s at t=%d: %v", rec.Measurement.Sensor, rec.Measurement.Timestamp, err)
		return EncodeManual()
	}

	px, py := est.Position()
	vx, vy := est.Velocity()
	rmse.Add(px, py, vx, vy, rec.Truth.Px, rec.Truth.Py, rec.Truth.Vx, rec.Truth.Vy)
	val := rmse.Value()

	s.publish(est, rec.Truth)

	return EncodeEstimate(EstimateMarker{
		EstimateX: px,
		EstimateY: py,
		RMSEX:     val.X,
		RMSEY:     val.Y,
		RMSEVx:    val.Vx,
		RMSEVy:    val.Vy,
	})
}

// publish mirrors the estimate to the dashboard hub and the telemetry
// sender when either is attached.
func (s *SimServer) publish(est fusion.Estimate, truth dataset.GroundTruth) {
	if s.hub != nil {
		msg, err := json.Marshal(estimateEvent{
			Sensor:    est.Sensor.String(),
			Timestamp: est.Timestamp,
			Px:        est.X.AtVec(0),
			Py:        est.X.AtVec(1),
			V:         est.X.AtVec(2),
			Yaw:       est.X.AtVec(3),
			YawRate:   est.X.AtVec(4),
			NIS:       est.NIS,
			TruthPx:   truth.Px,
			TruthPy:   truth.Py,
		})
		if err == nil {
			s.hub.Broadcast(msg)
		}
	}
	if s.sender != nil {
		px, py := est.Position()
		s.sender.Send(telemetry.FormatEstimate(est.Timestamp, px, py, est.X.AtVec(2), est.X.AtVec(3)))
	}
}
