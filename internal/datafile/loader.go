// Package datafile reads the yard directory and telemetry files and writes
// the run reports.
package datafile

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/yard_tracker/internal/model/messages"
	"github.com/LeonardoBeccarini/yard_tracker/pkg/logger"
)

var (
	ErrNoYards   = errors.New("no valid yard in directory")
	ErrNoReports = errors.New("no valid report in messages file")
)

// timestamp layouts accepted in message files; zone-less values are UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// LoadYards reads "id,area,rate" lines. Blank lines and lines starting with
// '#' are ignored; malformed lines are logged and skipped.
func LoadYards(path string, log *zap.Logger) ([]messages.YardRecord, error) {
	log = logger.OrNop(log)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open yard directory: %w", err)
	}
	defer f.Close()

	var out []messages.YardRecord
	seen := make(map[int]bool)
	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rec, err := parseYardLine(line)
		if err == nil && seen[rec.YardID] {
			err = fmt.Errorf("duplicate yard id %d", rec.YardID)
		}
		if err != nil {
			log.Warn("skipping yard line", zap.String("file", path), zap.Int("line", lineNo), zap.Error(err))
			continue
		}
		seen[rec.YardID] = true
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read yard directory: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoYards)
	}
	log.Info("yard directory loaded", zap.String("file", path), zap.Int("yards", len(out)))
	return out, nil
}

func parseYardLine(line string) (messages.YardRecord, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 3 {
		return messages.YardRecord{}, fmt.Errorf("want 3 fields, got %d", len(parts))
	}
	id, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return messages.YardRecord{}, fmt.Errorf("yard id: %w", err)
	}
	area, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return messages.YardRecord{}, fmt.Errorf("area: %w", err)
	}
	rate, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err != nil {
		return messages.YardRecord{}, fmt.Errorf("cleaning rate: %w", err)
	}
	return messages.NewYardRecord(id, area, rate)
}

// rawReport mirrors a message entry before validation.
type rawReport struct {
	MachineID *int     `json:"machine_id"`
	Timestamp string   `json:"timestamp"`
	X         *float64 `json:"x"`
	Y         *float64 `json:"y"`
	YardID    *int     `json:"yard_id"`
}

// LoadReports reads a JSON file holding either an array of reports or an
// object with a "messages" array. Invalid entries are logged and skipped.
// The result is stably sorted by timestamp.
func LoadReports(path string, log *zap.Logger) ([]messages.Report, error) {
	log = logger.OrNop(log)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read messages file: %w", err)
	}
	entries, err := splitEntries(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	out := make([]messages.Report, 0, len(entries))
	for i, raw := range entries {
		r, err := decodeReport(raw)
		if err != nil {
			log.Warn("skipping message", zap.String("file", path), zap.Int("index", i+1), zap.Error(err))
			continue
		}
		out = append(out, r)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoReports)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })

	log.Info("messages loaded", zap.String("file", path),
		zap.Int("valid", len(out)), zap.Int("skipped", len(entries)-len(out)))
	return out, nil
}

func splitEntries(data []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("empty messages file")
	}
	var entries []json.RawMessage
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, fmt.Errorf("decode message array: %w", err)
		}
		return entries, nil
	}
	var wrapper struct {
		Messages *[]json.RawMessage `json:"messages"`
	}
	if err := json.Unmarshal(trimmed, &wrapper); err != nil {
		return nil, fmt.Errorf("decode messages object: %w", err)
	}
	if wrapper.Messages == nil {
		return nil, errors.New(`unexpected JSON layout: want an array or an object with "messages"`)
	}
	return *wrapper.Messages, nil
}

func decodeReport(raw json.RawMessage) (messages.Report, error) {
	var rr rawReport
	if err := json.Unmarshal(raw, &rr); err != nil {
		return messages.Report{}, err
	}
	var missing []string
	if rr.MachineID == nil {
		missing = append(missing, "machine_id")
	}
	if rr.Timestamp == "" {
		missing = append(missing, "timestamp")
	}
	if rr.X == nil {
		missing = append(missing, "x")
	}
	if rr.Y == nil {
		missing = append(missing, "y")
	}
	if len(missing) > 0 {
		return messages.Report{}, fmt.Errorf("missing fields %s: %w", strings.Join(missing, ", "), messages.ErrInvalidRecord)
	}
	ts, err := ParseTimestamp(rr.Timestamp)
	if err != nil {
		return messages.Report{}, err
	}
	yard := 0
	if rr.YardID != nil {
		yard = *rr.YardID
	}
	return messages.NewReport(*rr.MachineID, ts, *rr.X, *rr.Y, yard)
}

// ParseTimestamp accepts RFC 3339 and zone-less ISO 8601 (read as UTC).
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("timestamp %q: %w", s, messages.ErrInvalidRecord)
}
