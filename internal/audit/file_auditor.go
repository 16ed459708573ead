package audit

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/guillermoBallester/tablespy/internal/core/port"
)

// fileEntry is the NDJSON-serializable form of an audit record.
type fileEntry struct {
	Timestamp  string   `json:"ts"`
	RunID      string   `json:"run_id"`
	Connection string   `json:"connection"`
	Tables     []string `json:"tables"`
	Manual     bool     `json:"manual"`
	DurationMS int64    `json:"duration_ms"`
	Error      *string  `json:"error"`
}

// FileAuditor writes truncation events as NDJSON (one JSON object per line) to a file.
type FileAuditor struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

var _ port.TruncationAuditor = (*FileAuditor)(nil)

// NewFileAuditor opens (or creates) the file at path for append-only writing.
func NewFileAuditor(path string) (*FileAuditor, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &FileAuditor{
		file: f,
		enc:  json.NewEncoder(f),
	}, nil
}

func (a *FileAuditor) Record(_ context.Context, entry port.AuditEntry) {
	fe := fileEntry{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		RunID:      entry.RunID,
		Connection: entry.Connection,
		Tables:     entry.Tables,
		Manual:     entry.Manual,
		DurationMS: entry.DurationMS,
	}
	if fe.Tables == nil {
		fe.Tables = []string{}
	}
	if entry.Err != nil {
		s := entry.Err.Error()
		fe.Error = &s
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	_ = a.enc.Encode(fe) // best-effort; a truncation never fails on audit I/O
}

func (a *FileAuditor) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.file.Close()
}
