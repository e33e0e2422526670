package event

import (
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/LeonardoBeccarini/yard_tracker/internal/model/messages"
)

const (
	MeasurementTransition = "yard_transition"
	MeasurementSummary    = "yard_summary"
)

// TransitionToPoint maps a band transition to an InfluxDB point.
func TransitionToPoint(evt messages.TransitionEvent) *write.Point {
	tags := map[string]string{
		"yard_id":    strconv.Itoa(evt.YardID),
		"machine_id": strconv.Itoa(evt.MachineID),
	}
	fields := map[string]interface{}{
		"old_status":      int64(evt.OldStatus),
		"new_status":      int64(evt.NewStatus),
		"work_time_added": evt.WorkTimeAdded,
	}
	return influxdb2.NewPoint(MeasurementTransition, tags, fields, evt.Timestamp)
}

// SummaryToPoint maps the final progress of a yard to a point stamped at.
func SummaryToPoint(s messages.YardSummary, at time.Time) *write.Point {
	tags := map[string]string{"yard_id": strconv.Itoa(s.YardID)}
	fields := map[string]interface{}{
		"completion_pct":  s.CompletionPercentage,
		"cleaned_area":    s.CleanedArea,
		"remaining_area":  s.RemainingArea,
		"total_work_time": s.TotalWorkTime,
		"status":          int64(s.Status),
		"transitions":     int64(s.Transitions),
	}
	return influxdb2.NewPoint(MeasurementSummary, tags, fields, at)
}
