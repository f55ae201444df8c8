package callback

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// HeldReport is the on-disk form of an undeliverable report.
type HeldReport struct {
	Status   string    `json:"status"`
	HeldAt   time.Time `json:"held_at"`
	Report   Report    `json:"report"`
	Attempts []Attempt `json:"attempts"`
}

// Hold writes the report to the holding directory and returns the
// file path.
func Hold(dir string, report Report, attempts []Attempt) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create holding dir: %w", err)
	}
	held := HeldReport{
		Status:   "pending",
		HeldAt:   time.Now().UTC(),
		Report:   report,
		Attempts: attempts,
	}
	data, err := json.MarshalIndent(held, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal held report: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("callback_%s_%d.json", report.SessionID, held.HeldAt.UnixNano()))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write held report: %w", err)
	}
	return path, nil
}
