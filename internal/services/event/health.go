package event

import (
	"encoding/json"
	"net/http"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
)

// Deps are the optional external sinks; a nil entry is not configured.
type Deps struct {
	MQTT   mqtt.Client
	Influx influxdb2.Client
	Writer *Writer
}

type depStatus struct {
	Status          string  `json:"status"`
	MQTTEnabled     bool    `json:"mqtt_enabled"`
	MQTTConnected   bool    `json:"mqtt_connected"`
	InfluxEnabled   bool    `json:"influx_enabled"`
	LastWriteErrorS float64 `json:"last_write_error_age_sec,omitempty"`
}

func (d Deps) check(minErrAge time.Duration) (depStatus, bool) {
	st := depStatus{
		MQTTEnabled:   d.MQTT != nil,
		MQTTConnected: d.MQTT != nil && d.MQTT.IsConnectionOpen(),
		InfluxEnabled: d.Influx != nil,
	}
	influxOK := true
	if st.InfluxEnabled {
		age := d.Writer.LastErrorAge()
		st.LastWriteErrorS = age.Seconds()
		influxOK = age > minErrAge
	}
	mqttOK := !st.MQTTEnabled || st.MQTTConnected

	switch {
	case mqttOK && influxOK:
		st.Status = "ok"
	case mqttOK || influxOK:
		st.Status = "degraded"
	default:
		st.Status = "down"
	}
	return st, mqttOK && influxOK
}

type healthHandler struct {
	deps Deps
}

// NewHealthHandler reports sink connectivity; it always answers 200.
func NewHealthHandler(d Deps) http.Handler {
	return &healthHandler{deps: d}
}

func (h *healthHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	st, _ := h.deps.check(30 * time.Second)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(st)
}

// readyHandler answers 200 only when every configured sink is healthy.
type readyHandler struct {
	deps     Deps
	minError time.Duration
}

func NewReadyHandler(d Deps, minOkErrorAge time.Duration) http.Handler {
	return &readyHandler{deps: d, minError: minOkErrorAge}
}

func (h *readyHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	_, ready := h.deps.check(h.minError)
	w.Header().Set("Content-Type", "application/json")
	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	type resp struct {
		Ready bool `json:"ready"`
	}
	_ = json.NewEncoder(w).Encode(resp{Ready: ready})
}
