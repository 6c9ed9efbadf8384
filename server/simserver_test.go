package server

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracker-go/fusion"
	"tracker-go/metrics"
)

func newTestFilter(t *testing.T) fusion.Filter {
	t.Helper()
	f, err := fusion.New("ekf", fusion.DefaultConfig())
	require.NoError(t, err)
	return f
}

func TestHandleFrame(t *testing.T) {
	srv := NewSimServer(func() (fusion.Filter, error) {
		return fusion.New("ekf", fusion.DefaultConfig())
	}, nil, nil)

	f := newTestFilter(t)
	var rmse metrics.Accumulator

	t.Run("telemetry produces an estimate", func(t *testing.T) {
		reply := srv.handleFrame(f, &rmse, []byte(`42["telemetry",{"sensor_measurement":"L 1.0 2.0 1000 1.0 2.0 0 0"}]`))
		event, payload, ok, err := DecodeFrame(reply)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "estimate_marker", event)

		var m EstimateMarker
		require.NoError(t, json.Unmarshal(payload, &m))
		assert.InDelta(t, 1.0, m.EstimateX, 1e-9)
		assert.InDelta(t, 2.0, m.EstimateY, 1e-9)
		assert.Equal(t, 1, rmse.Count())
	})

	t.Run("garbage line falls back to manual", func(t *testing.T) {
		reply := srv.handleFrame(f, &rmse, []byte(`42["telemetry",{"sensor_measurement":"bogus"}]`))
		assert.Equal(t, string(EncodeManual()), string(reply))
	})

	t.Run("other events fall back to manual", func(t *testing.T) {
		reply := srv.handleFrame(f, &rmse, []byte(`42["reset",{}]`))
		assert.Equal(t, string(EncodeManual()), string(reply))
	})

	t.Run("pings get no reply", func(t *testing.T) {
		assert.Nil(t, srv.handleFrame(f, &rmse, []byte(`2`)))
	})
}

func TestSimServerRoundTrip(t *testing.T) {
	srv := NewSimServer(func() (fusion.Filter, error) {
		return fusion.New("ukf", fusion.DefaultConfig())
	}, nil, nil)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	lines := []string{
		"L 8.44818 0.251553 1477010443349642 8.45 0.25 -3.00029 0",
		"R 8.60363 0.0290616 -2.99903 1477010443399637 8.6 0.25 -3.00029 0",
		"L 8.45582 0.253997 1477010443449633 8.45 0.25 -3.00029 0",
	}
	for i, line := range lines {
		frame := `42["telemetry",{"sensor_measurement":"` + line + `"}]`
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))

		_, reply, err := conn.ReadMessage()
		require.NoError(t, err)

		event, payload, ok, err := DecodeFrame(reply)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "estimate_marker", event, "reply %d", i)

		var m EstimateMarker
		require.NoError(t, json.Unmarshal(payload, &m))
		assert.InDelta(t, 8.45, m.EstimateX, 0.5, "reply %d", i)
	}
}
