package port

import "context"

// AuditEntry represents a single truncation event on one connection.
type AuditEntry struct {
	RunID      string
	Connection string
	Tables     []string
	Manual     bool
	DurationMS int64
	Err        error
}

// TruncationAuditor records truncation audit events.
type TruncationAuditor interface {
	Record(ctx context.Context, entry AuditEntry)
	Close() error
}

// NoopAuditor discards all audit entries.
type NoopAuditor struct{}

func (NoopAuditor) Record(context.Context, AuditEntry) {}
func (NoopAuditor) Close() error                       { return nil }
