package datafile

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/LeonardoBeccarini/yard_tracker/internal/model/entities"
	"github.com/LeonardoBeccarini/yard_tracker/internal/model/messages"
)

const (
	TransitionsFile = "yard_status_changes.txt"
	PositionsFile   = "final_machine_positions.txt"
	SummaryFile     = "summary_report.txt"
)

// Summary carries everything the summary report prints.
type Summary struct {
	RunID       string
	Realtime    bool
	Speed       float64
	Processed   int
	Failed      int
	Yards       []messages.YardSummary
	Machines    []messages.MachineSnapshot
	Transitions []messages.TransitionEvent
	Transport   *messages.TransportStats // real-time mode only
}

// WriteOutputs creates dir and writes the three report files into it.
func WriteOutputs(dir string, s Summary) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := WriteTransitions(filepath.Join(dir, TransitionsFile), s.Transitions); err != nil {
		return err
	}
	if err := WritePositions(filepath.Join(dir, PositionsFile), s.Machines); err != nil {
		return err
	}
	return WriteSummary(filepath.Join(dir, SummaryFile), s)
}

func WriteTransitions(path string, events []messages.TransitionEvent) error {
	return writeFile(path, func(w *bufio.Writer) {
		fmt.Fprintln(w, "# Yard status changes")
		fmt.Fprintln(w, "# Format: yard_id,status,timestamp")
		fmt.Fprintln(w)
		if len(events) == 0 {
			fmt.Fprintln(w, "# No status changes recorded")
			return
		}
		for _, e := range events {
			fmt.Fprintf(w, "%d,%s,%s\n", e.YardID, e.NewStatus, e.Timestamp.Format(time.RFC3339Nano))
		}
	})
}

func WritePositions(path string, machines []messages.MachineSnapshot) error {
	return writeFile(path, func(w *bufio.Writer) {
		fmt.Fprintln(w, "# Final machine positions")
		fmt.Fprintln(w, "# Format: machine_id,x,y,yard_id")
		fmt.Fprintln(w)
		for _, m := range machines {
			yard := ""
			if m.CurrentYardID != entities.NoYard {
				yard = strconv.Itoa(m.CurrentYardID)
			}
			fmt.Fprintf(w, "%d,%s,%s,%s\n", m.MachineID, formatFloat(m.X), formatFloat(m.Y), yard)
		}
	})
}

func WriteSummary(path string, s Summary) error {
	return writeFile(path, func(w *bufio.Writer) {
		fmt.Fprintln(w, "=== YARD TRACKER SUMMARY ===")
		fmt.Fprintln(w)
		if s.RunID != "" {
			fmt.Fprintf(w, "Run: %s\n", s.RunID)
		}
		fmt.Fprintf(w, "Machines: %d\n", len(s.Machines))
		fmt.Fprintf(w, "Yards: %d\n", len(s.Yards))
		fmt.Fprintf(w, "Status changes: %d\n", len(s.Transitions))
		if s.Realtime {
			fmt.Fprintf(w, "Mode: real-time (speed x%s)\n", formatFloat(s.Speed))
		} else {
			fmt.Fprintln(w, "Mode: batch")
		}
		fmt.Fprintf(w, "Messages processed: %d (failed: %d)\n", s.Processed, s.Failed)

		fmt.Fprintln(w)
		fmt.Fprintln(w, "=== YARDS ===")
		for _, y := range s.Yards {
			fmt.Fprintf(w, "Yard %d: %.1f%% cleaned (status: %s, work time %.1fs, transitions %d)\n",
				y.YardID, y.CompletionPercentage, y.Status, y.TotalWorkTime, y.Transitions)
		}

		fmt.Fprintln(w)
		fmt.Fprintln(w, "=== MACHINES ===")
		for _, m := range s.Machines {
			if m.CurrentYardID != entities.NoYard {
				fmt.Fprintf(w, "Machine %d: in yard %d\n", m.MachineID, m.CurrentYardID)
			} else {
				fmt.Fprintf(w, "Machine %d: outside yards\n", m.MachineID)
			}
		}

		if s.Transport != nil {
			t := s.Transport
			fmt.Fprintln(w)
			fmt.Fprintln(w, "=== TRANSPORT ===")
			fmt.Fprintf(w, "Generated: %d\n", t.Generated)
			fmt.Fprintf(w, "Delivered: %d (%.1f%%)\n", t.Delivered, t.DeliveryRate)
			fmt.Fprintf(w, "Lost: %d\n", t.Lost)
			fmt.Fprintf(w, "Delayed: %d\n", t.Delayed)
			fmt.Fprintf(w, "Corrupted: %d (%.1f%%)\n", t.Corrupted, t.ErrorRate)
		}
	})
}

// WriteYards writes a yard directory LoadYards can read back.
func WriteYards(path string, yards []messages.YardRecord) error {
	return writeFile(path, func(w *bufio.Writer) {
		fmt.Fprintln(w, "# Yard directory")
		fmt.Fprintln(w, "# Format: yard_id,area,cleaning_speed")
		for _, y := range yards {
			fmt.Fprintf(w, "%d,%s,%s\n", y.YardID, formatFloat(y.Area), formatFloat(y.CleaningRate))
		}
	})
}

type messageFile struct {
	Metadata messageMeta       `json:"metadata"`
	Messages []messages.Report `json:"messages"`
}

type messageMeta struct {
	TotalMessages  int       `json:"total_messages"`
	MachinesCount  int       `json:"machines_count"`
	GenerationTime time.Time `json:"generation_time"`
}

// WriteReports writes reports in the {"metadata", "messages"} layout.
func WriteReports(path string, reports []messages.Report) error {
	machines := make(map[int]struct{})
	for _, r := range reports {
		machines[r.MachineID] = struct{}{}
	}
	doc := messageFile{
		Metadata: messageMeta{
			TotalMessages:  len(reports),
			MachinesCount:  len(machines),
			GenerationTime: time.Now().UTC(),
		},
		Messages: reports,
	}
	return writeFile(path, func(w *bufio.Writer) {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(doc)
	})
}

// writeFile buffers body into path; the first write error wins.
func writeFile(path string, body func(w *bufio.Writer)) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := bufio.NewWriter(f)
	body(w)
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
