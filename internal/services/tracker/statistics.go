package tracker

import (
	"fmt"

	"github.com/LeonardoBeccarini/yard_tracker/internal/model/entities"
)

// YardStatistics aggregates progress across all yards.
type YardStatistics struct {
	TotalYards         int     `json:"total_yards"`
	CleanedYards       int     `json:"cleaned_yards"`
	PartiallyCleaned   int     `json:"partially_cleaned_yards"`
	UntouchedYards     int     `json:"untouched_yards"`
	AverageCompletion  float64 `json:"average_completion"`
	TotalArea          float64 `json:"total_area"`
	CleanedArea        float64 `json:"cleaned_area"`
	CleaningEfficiency float64 `json:"cleaning_efficiency"` // cleaned/total, percent
}

// MachineStatistics aggregates machine activity.
type MachineStatistics struct {
	TotalMachines       int     `json:"total_machines"`
	ActiveMachines      int     `json:"active_machines"`
	IdleMachines        int     `json:"idle_machines"`
	TotalWorkSessions   int     `json:"total_work_sessions"`
	AverageWorkSessions float64 `json:"average_work_sessions"`
}

// ProcessingStatistics describes how many reports went through the engine.
type ProcessingStatistics struct {
	Processed   int     `json:"total_messages_processed"`
	Successful  int     `json:"successful_messages"`
	Failed      int     `json:"failed_messages"`
	SuccessRate float64 `json:"success_rate_percent"`
}

func (e *Engine) YardStatistics() YardStatistics {
	var st YardStatistics
	var completionSum float64
	e.yards.Each(func(y *entities.Yard) {
		st.TotalYards++
		st.TotalArea += y.Area
		st.CleanedArea += y.CleanedArea
		pct := y.CompletionPercentage()
		completionSum += pct
		switch {
		case y.IsFullyCleaned():
			st.CleanedYards++
		case pct > 0:
			st.PartiallyCleaned++
		}
	})
	st.UntouchedYards = st.TotalYards - st.CleanedYards - st.PartiallyCleaned
	if st.TotalYards > 0 {
		st.AverageCompletion = completionSum / float64(st.TotalYards)
	}
	if st.TotalArea > 0 {
		st.CleaningEfficiency = st.CleanedArea / st.TotalArea * 100
	}
	return st
}

func (e *Engine) MachineStatistics() MachineStatistics {
	var st MachineStatistics
	e.machines.Each(func(m *entities.Machine) {
		st.TotalMachines++
		if m.InYard() {
			st.ActiveMachines++
		}
		st.TotalWorkSessions += m.YardsWorked()
	})
	st.IdleMachines = st.TotalMachines - st.ActiveMachines
	if st.TotalMachines > 0 {
		st.AverageWorkSessions = float64(st.TotalWorkSessions) / float64(st.TotalMachines)
	}
	return st
}

func (e *Engine) ProcessingStatistics() ProcessingStatistics {
	st := ProcessingStatistics{
		Processed:  e.processed,
		Successful: e.processed - e.failed,
		Failed:     e.failed,
	}
	if st.Processed > 0 {
		st.SuccessRate = float64(st.Successful) / float64(st.Processed) * 100
	}
	return st
}

// ValidateConsistency checks every yard invariant and returns one line per
// violation; an empty result means the stores are consistent.
func (e *Engine) ValidateConsistency() []string {
	var issues []string
	e.yards.Each(func(y *entities.Yard) {
		if want := entities.BandFor(y.CompletionPercentage()); y.Status != want {
			issues = append(issues, fmt.Sprintf("yard %d: status %s does not match expected %s", y.ID, y.Status, want))
		}
		if y.CleanedArea < 0 || y.CleanedArea > y.Area {
			issues = append(issues, fmt.Sprintf("yard %d: cleaned area %.2f outside [0, %.2f]", y.ID, y.CleanedArea, y.Area))
		}
		if n := len(y.StatusHistory); n == 0 || y.StatusHistory[n-1] != y.Status {
			issues = append(issues, fmt.Sprintf("yard %d: status history does not end at current status", y.ID))
		}
		for i := 1; i < len(y.StatusHistory); i++ {
			if y.StatusHistory[i] <= y.StatusHistory[i-1] {
				issues = append(issues, fmt.Sprintf("yard %d: status history not increasing at %d", y.ID, i))
				break
			}
		}
	})
	e.machines.Each(func(m *entities.Machine) {
		if m.InYard() == m.YardEntryTime.IsZero() {
			issues = append(issues, fmt.Sprintf("machine %d: yard entry time out of sync with membership", m.ID))
		}
		for yardID, v := range m.DwellByYard {
			if v < 0 {
				issues = append(issues, fmt.Sprintf("machine %d: negative dwell %.2f in yard %d", m.ID, v, yardID))
			}
		}
	})
	return issues
}
