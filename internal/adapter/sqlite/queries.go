package sqlite

const queryListTables = `
	SELECT name
	FROM sqlite_master
	WHERE type = 'table'
		AND name NOT LIKE 'sqlite_%'
	ORDER BY name`

const queryListTriggers = `
	SELECT name FROM sqlite_master WHERE type = 'trigger'
	UNION
	SELECT name FROM sqlite_temp_master WHERE type = 'trigger'
	ORDER BY name`

const querySequenceTable = `SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'sqlite_sequence'`

// stmtCreateCollector has one %s placeholder for TEMP and one for the table.
const stmtCreateCollector = `CREATE %sTABLE IF NOT EXISTS %s (table_name VARCHAR(128) PRIMARY KEY)`

const stmtDropCollector = `DROP TABLE IF EXISTS %s`

// stmtCreateTrigger placeholders: TEMP, trigger, table, collector, values.
const stmtCreateTrigger = `
	CREATE %sTRIGGER %s AFTER INSERT ON %s
	BEGIN
		INSERT OR IGNORE INTO %s (table_name) VALUES %s;
	END`
