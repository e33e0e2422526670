// Package status exposes the progress of a run over HTTP and the gRPC
// health protocol.
package status

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/LeonardoBeccarini/yard_tracker/internal/metrics"
	"github.com/LeonardoBeccarini/yard_tracker/internal/model/messages"
)

// SnapshotSource returns the latest published snapshot, or nil before the
// first one.
type SnapshotSource interface {
	Snapshot() *messages.Snapshot
}

type summaryView struct {
	Yards       int  `json:"yards"`
	Machines    int  `json:"machines"`
	Processed   int  `json:"processed"`
	Failed      int  `json:"failed"`
	Transitions int  `json:"transitions"`
	Done        bool `json:"done"`
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// NewHTTPMux serves:
//
//	GET /healthz          liveness
//	GET /summary          counters of the run
//	GET /yards            all yard summaries
//	GET /yards/{id}       one yard
//	GET /machines         machine positions
//	GET /transport        transport statistics (real-time mode)
//	GET /metrics          Prometheus
func NewHTTPMux(src SnapshotSource, m *metrics.Metrics) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) })

	// every data route answers 503 until the first snapshot exists
	withSnap := func(fn func(http.ResponseWriter, *http.Request, *messages.Snapshot)) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			snap := src.Snapshot()
			if snap == nil {
				http.Error(w, "no snapshot yet", http.StatusServiceUnavailable)
				return
			}
			fn(w, r, snap)
		}
	}

	mux.HandleFunc("GET /summary", withSnap(func(w http.ResponseWriter, _ *http.Request, s *messages.Snapshot) {
		writeJSON(w, summaryView{
			Yards:       len(s.Yards),
			Machines:    len(s.Machines),
			Processed:   s.Processed,
			Failed:      s.Failed,
			Transitions: s.Transitions,
			Done:        s.Done,
		})
	}))

	mux.HandleFunc("GET /yards", withSnap(func(w http.ResponseWriter, _ *http.Request, s *messages.Snapshot) {
		writeJSON(w, s.Yards)
	}))

	mux.HandleFunc("GET /yards/{id}", withSnap(func(w http.ResponseWriter, r *http.Request, s *messages.Snapshot) {
		id, err := strconv.Atoi(r.PathValue("id"))
		if err != nil {
			http.Error(w, "invalid yard id", http.StatusBadRequest)
			return
		}
		for _, y := range s.Yards {
			if y.YardID == id {
				writeJSON(w, y)
				return
			}
		}
		http.Error(w, "yard not found", http.StatusNotFound)
	}))

	mux.HandleFunc("GET /machines", withSnap(func(w http.ResponseWriter, _ *http.Request, s *messages.Snapshot) {
		writeJSON(w, s.Machines)
	}))

	mux.HandleFunc("GET /transport", withSnap(func(w http.ResponseWriter, _ *http.Request, s *messages.Snapshot) {
		if s.Transport == nil {
			http.Error(w, "transport simulation not active", http.StatusNotFound)
			return
		}
		writeJSON(w, s.Transport)
	}))

	mux.Handle("GET /metrics", m.Handler())

	return mux
}
