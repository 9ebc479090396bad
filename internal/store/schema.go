package store

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending', -- pending, running, completed, failed
	input TEXT NOT NULL,
	output TEXT,
	chat_id TEXT NOT NULL,
	schedule_id INTEGER,
	skill_context TEXT,
	delivered INTEGER NOT NULL DEFAULT 0,
	retry_count INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_jobs_chat ON jobs(chat_id, created_at);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_jobs_undelivered ON jobs(status, delivered);

CREATE TABLE IF NOT EXISTS schedules (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	description TEXT NOT NULL,
	natural_schedule TEXT NOT NULL,
	parsed_cron TEXT NOT NULL,
	prompt TEXT NOT NULL,
	enabled INTEGER NOT NULL DEFAULT 1,
	last_run_at DATETIME,
	next_run_at DATETIME NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_schedules_due ON schedules(enabled, next_run_at);

CREATE TABLE IF NOT EXISTS chat_states (
	chat_id TEXT PRIMARY KEY,
	message_count INTEGER NOT NULL DEFAULT 0,
	latest_summary TEXT,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	chat_id TEXT NOT NULL,
	trigger_job_id TEXT NOT NULL,
	message_count INTEGER NOT NULL,
	summary TEXT NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_sessions_chat ON sessions(chat_id, created_at);

CREATE TABLE IF NOT EXISTS solutions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id TEXT NOT NULL UNIQUE,
	title TEXT NOT NULL,
	description TEXT,
	tags TEXT,
	keywords TEXT, -- space-joined normalized tokens used for similarity scoring
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS config (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`
