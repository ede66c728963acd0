package storage

// Schema DDL, applied idempotently at startup. Postgres only.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS records (
		id            TEXT PRIMARY KEY,
		source_code   TEXT NOT NULL,
		external_id   TEXT NOT NULL,
		url           TEXT NOT NULL DEFAULT '',
		title         TEXT NOT NULL DEFAULT '',
		body          TEXT NOT NULL DEFAULT '',
		published_at  TIMESTAMPTZ NOT NULL,
		trust_level   INT NOT NULL DEFAULT 5,
		content_hash  TEXT NOT NULL,
		ingested_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (source_code, external_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_records_content_hash ON records (content_hash)`,
	`CREATE INDEX IF NOT EXISTS idx_records_published_at ON records (published_at)`,

	`CREATE TABLE IF NOT EXISTS cursors (
		source_code            TEXT PRIMARY KEY,
		last_external_id       TEXT NOT NULL DEFAULT '',
		last_timestamp         TIMESTAMPTZ NOT NULL,
		backfill_completed_at  TIMESTAMPTZ
	)`,

	`CREATE TABLE IF NOT EXISTS events (
		id           TEXT PRIMARY KEY,
		record_id    TEXT NOT NULL,
		source_code  TEXT NOT NULL,
		event_type   TEXT NOT NULL,
		title        TEXT NOT NULL DEFAULT '',
		ts           TIMESTAMPTZ NOT NULL,
		tickers      TEXT[] NOT NULL DEFAULT '{}',
		companies    TEXT[] NOT NULL DEFAULT '{}',
		is_anchor    BOOLEAN NOT NULL DEFAULT false,
		confidence   DOUBLE PRECISION NOT NULL DEFAULT 0,
		trust_level  INT NOT NULL DEFAULT 5
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_type_ts ON events (event_type, ts)`,
	`CREATE INDEX IF NOT EXISTS idx_events_ts ON events (ts)`,

	`CREATE TABLE IF NOT EXISTS importance_scores (
		event_id       TEXT NOT NULL,
		novelty        DOUBLE PRECISION NOT NULL,
		burst          DOUBLE PRECISION NOT NULL,
		credibility    DOUBLE PRECISION NOT NULL,
		breadth        DOUBLE PRECISION NOT NULL,
		price_impact   DOUBLE PRECISION NOT NULL,
		total          DOUBLE PRECISION NOT NULL,
		calculated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_importance_event ON importance_scores (event_id, calculated_at DESC)`,

	`CREATE TABLE IF NOT EXISTS triggered_watches (
		id                  TEXT PRIMARY KEY,
		rule_id             TEXT NOT NULL,
		level               TEXT NOT NULL,
		event_id            TEXT NOT NULL,
		triggered_at        TIMESTAMPTZ NOT NULL,
		auto_expire_at      TIMESTAMPTZ NOT NULL,
		expired             BOOLEAN NOT NULL DEFAULT false,
		notifications_sent  BOOLEAN NOT NULL DEFAULT false,
		context             TEXT NOT NULL DEFAULT '{}'
	)`,
	`CREATE INDEX IF NOT EXISTS idx_watches_expiry ON triggered_watches (expired, auto_expire_at)`,

	`CREATE TABLE IF NOT EXISTS predictions (
		id              TEXT PRIMARY KEY,
		watch_id        TEXT NOT NULL,
		base_event_id   TEXT NOT NULL,
		predicted_type  TEXT NOT NULL,
		probability    DOUBLE PRECISION NOT NULL,
		window_days     INT NOT NULL,
		target_date     TIMESTAMPTZ NOT NULL,
		status          TEXT NOT NULL DEFAULT 'PENDING',
		actual_event_id TEXT NOT NULL DEFAULT '',
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		resolved_at     TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_predictions_open ON predictions (status, predicted_type, target_date)`,
}
