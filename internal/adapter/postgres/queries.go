package postgres

const queryListTables = `
	SELECT table_name
	FROM information_schema.tables
	WHERE table_schema = current_schema()
		AND table_type = 'BASE TABLE'
	ORDER BY table_name`

const queryListTriggers = `
	SELECT t.tgname
	FROM pg_trigger t
	JOIN pg_class c ON c.oid = t.tgrelid
	JOIN pg_namespace n ON n.oid = c.relnamespace
	WHERE NOT t.tgisinternal
		AND (n.nspname = current_schema() OR n.oid = pg_my_temp_schema())
	ORDER BY t.tgname`

const queryTriggerTable = `
	SELECT c.relname
	FROM pg_trigger t
	JOIN pg_class c ON c.oid = t.tgrelid
	WHERE NOT t.tgisinternal
		AND t.tgname = $1`

const stmtDeferConstraints = `SET CONSTRAINTS ALL DEFERRED`

// routineName is the shared trigger function. It records TG_TABLE_NAME and,
// when given one, its first argument.
const routineName = "tablespy_mark_dirty"

// stmtCreateRoutine has one %s placeholder for the collector table.
const stmtCreateRoutine = `
	CREATE OR REPLACE FUNCTION tablespy_mark_dirty() RETURNS trigger AS $$
	BEGIN
		INSERT INTO %[1]s (table_name) VALUES (TG_TABLE_NAME) ON CONFLICT DO NOTHING;
		IF TG_NARGS > 0 THEN
			INSERT INTO %[1]s (table_name) VALUES (TG_ARGV[0]) ON CONFLICT DO NOTHING;
		END IF;
		RETURN NULL;
	END;
	$$ LANGUAGE plpgsql`

const stmtDropRoutine = `DROP FUNCTION IF EXISTS tablespy_mark_dirty() CASCADE`

// stmtCreateCollector has one %s placeholder for TEMPORARY and one for the table.
const stmtCreateCollector = `CREATE %sTABLE IF NOT EXISTS %s (table_name VARCHAR(128) PRIMARY KEY)`

const stmtDropCollector = `DROP TABLE IF EXISTS %s`

const stmtMarkDirty = `
	INSERT INTO %s (table_name)
	SELECT unnest($1::text[])
	ON CONFLICT DO NOTHING`
