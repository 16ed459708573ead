package mysql

const queryListTables = `
	SELECT table_name
	FROM information_schema.tables
	WHERE table_schema = DATABASE()
		AND table_type = 'BASE TABLE'
	ORDER BY table_name`

const queryListTriggers = `
	SELECT trigger_name
	FROM information_schema.triggers
	WHERE trigger_schema = DATABASE()
	ORDER BY trigger_name`

const queryForeignKeyChecks = `SELECT @@SESSION.foreign_key_checks`

// stmtCreateCollector has one %s placeholder for TEMPORARY and one for the table.
const stmtCreateCollector = "CREATE %sTABLE IF NOT EXISTS `%s` (table_name VARCHAR(128) PRIMARY KEY)"

// stmtDropCollector drops the session's temporary collector when there is
// one, the permanent collector otherwise.
const stmtDropCollector = "DROP TABLE IF EXISTS `%s`"

// stmtCreateTrigger placeholders: trigger, table, collector, values.
const stmtCreateTrigger = `
	CREATE TRIGGER %s AFTER INSERT ON %s
	FOR EACH ROW
		INSERT IGNORE INTO %s (table_name) VALUES %s`
