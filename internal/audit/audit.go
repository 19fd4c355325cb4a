// Package audit records one line per gateway decision (run accepted,
// run rejected, judge batch accepted) to a JSONL file and, optionally,
// a sqlite table, for after-the-fact inspection of what the service did
// without needing to correlate raw HTTP access logs.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

type entry struct {
	Timestamp string `json:"timestamp"`
	Decision  string `json:"decision"` // "allow" or "deny"
	Operation string `json:"operation"` // "run" or "judge"
	Reason    string `json:"reason"`
	RunID     string `json:"run_id,omitempty"`
}

var (
	mu        sync.Mutex
	file      *os.File
	db        *sql.DB
	denyCount atomic.Int64
)

// Init opens logs/audit.jsonl under homeDir, creating the directory if
// needed. Calling Init more than once is a no-op.
func Init(homeDir string) error {
	mu.Lock()
	defer mu.Unlock()
	if file != nil {
		return nil
	}
	logDir := filepath.Join(homeDir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(logDir, "audit.jsonl"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	file = f
	return nil
}

// SetDB configures the database audit_log table is written to, in
// addition to the JSONL file.
func SetDB(d *sql.DB) {
	mu.Lock()
	defer mu.Unlock()
	db = d
}

// Close flushes and closes the audit log file.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if file == nil {
		return nil
	}
	err := file.Close()
	file = nil
	return err
}

// DenyCount returns the total number of deny decisions recorded since
// startup. The /info route does not include it.
func DenyCount() int64 {
	return denyCount.Load()
}

// Record appends one audit entry for a gateway decision.
func Record(decision, operation, reason, runID string) {
	if decision == "deny" {
		denyCount.Add(1)
	}

	mu.Lock()
	defer mu.Unlock()

	if file != nil {
		ev := entry{
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			Decision:  decision,
			Operation: operation,
			Reason:    reason,
			RunID:     runID,
		}
		b, err := json.Marshal(ev)
		if err == nil {
			_, _ = file.Write(append(b, '\n'))
		}
	}

	if db != nil {
		_, _ = db.ExecContext(context.Background(), `
			INSERT INTO audit_log (run_id, operation, decision, reason)
			VALUES (?, ?, ?, ?);
		`, runID, operation, decision, reason)
	}
}
