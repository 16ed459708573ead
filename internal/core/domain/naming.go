package domain

import "strings"

const (
	// CollectorTable is the reserved name of the dirty table collector.
	CollectorTable = "tablespy_dirty_tables"

	// TriggerPrefix marks every trigger managed by a sniffer.
	TriggerPrefix = "dirty_table_spy_"
)

// Connection option keys.
const (
	OptionSkip              = "skip"
	OptionSniffer           = "sniffer"
	OptionCollectorMode     = "collector_mode"
	OptionSystemLogSuffixes = "system_log_suffixes"
)

// DefaultSystemLogSuffixes match bookkeeping tables of common migration tools.
var DefaultSystemLogSuffixes = []string{"phinxlog", "schema_migrations", "goose_db_version"}

// TriggerName returns the managed trigger name for a table.
func TriggerName(table string) string {
	return TriggerPrefix + table
}

// IsManagedTrigger reports whether a trigger was created by a sniffer.
func IsManagedTrigger(name string) bool {
	return strings.HasPrefix(name, TriggerPrefix)
}

// TableFromTrigger recovers the table name from a managed trigger name.
func TableFromTrigger(trigger string) string {
	return strings.TrimPrefix(trigger, TriggerPrefix)
}
