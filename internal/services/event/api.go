package event

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/query"
)

// Transition is the API view of a stored band transition.
type Transition struct {
	YardID    int    `json:"yard_id"`
	MachineID int    `json:"machine_id,omitempty"`
	NewStatus int    `json:"new_status"`
	Time      string `json:"time"` // RFC3339
}

type transitionQueryParams struct {
	Minutes   int
	Limit     int
	YardID    int // 0: all yards
	TimeoutMS int
}

// queryInt reads an integer query parameter clamped to [lo, hi]; hi <= 0
// leaves it unbounded above. Missing or malformed values yield def.
func queryInt(r *http.Request, key string, def, lo, hi int) int {
	n, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get(key)))
	switch {
	case err != nil:
		return def
	case n < lo:
		return lo
	case hi > 0 && n > hi:
		return hi
	}
	return n
}

func parseTransitionQuery(r *http.Request, defMin, defLim, defTOms int) transitionQueryParams {
	return transitionQueryParams{
		Minutes:   queryInt(r, "minutes", defMin, 1, 7*24*60),
		Limit:     queryInt(r, "limit", defLim, 1, 500),
		YardID:    queryInt(r, "yard_id", 0, 0, 0),
		TimeoutMS: queryInt(r, "timeout_ms", defTOms, 200, 5000),
	}
}

func buildTransitionFlux(bucket string, p transitionQueryParams) string {
	yardFilter := ""
	if p.YardID > 0 {
		yardFilter = fmt.Sprintf("\n  |> filter(fn: (r) => r.yard_id == %q)", strconv.Itoa(p.YardID))
	}
	return fmt.Sprintf(`
from(bucket: %q)
  |> range(start: -%dm)
  |> filter(fn: (r) => r._measurement == %q and r._field == "new_status")%s
  |> keep(columns: ["_time","_value","yard_id","machine_id"])
  |> group()
  |> sort(columns: ["_time"], desc: true)
  |> limit(n:%d)
`, bucket, p.Minutes, MeasurementTransition, yardFilter, p.Limit)
}

func tagInt(rec *query.FluxRecord, key string) int {
	v, _ := rec.ValueByKey(key).(string)
	n, _ := strconv.Atoi(v)
	return n
}

func recordTransition(rec *query.FluxRecord) Transition {
	t := Transition{
		YardID:    tagInt(rec, "yard_id"),
		MachineID: tagInt(rec, "machine_id"),
		Time:      rec.Time().UTC().Format(time.RFC3339),
	}
	switch v := rec.Value().(type) {
	case int64:
		t.NewStatus = int(v)
	case float64:
		t.NewStatus = int(v)
	}
	return t
}

// NewTransitionsLatestHandler serves
// GET /transitions/latest?limit=20[&minutes=1440][&yard_id=3]
// newest first. Influx failures answer 502.
func NewTransitionsLatestHandler(influx influxdb2.Client, org, bucket string) http.Handler {
	api := influx.QueryAPI(org)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := parseTransitionQuery(r, 1440, 20, 2000)
		ctx, cancel := context.WithTimeout(r.Context(), time.Duration(p.TimeoutMS)*time.Millisecond)
		defer cancel()

		res, err := api.Query(ctx, buildTransitionFlux(bucket, p))
		if err != nil {
			http.Error(w, "transition query failed: "+err.Error(), http.StatusBadGateway)
			return
		}
		defer func() { _ = res.Close() }()

		out := make([]Transition, 0, p.Limit)
		for res.Next() {
			out = append(out, recordTransition(res.Record()))
		}
		if err := res.Err(); err != nil {
			http.Error(w, "transition query failed: "+err.Error(), http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	})
}
