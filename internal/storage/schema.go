package storage

const schemaSQL = `
-- One row per extraction run
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY NOT NULL,
    source TEXT NOT NULL,
    rule TEXT NOT NULL,
    selector TEXT,
    status TEXT NOT NULL CHECK (status IN ('completed', 'not_found', 'failed')),
    result_count INTEGER NOT NULL DEFAULT 0,
    error_type TEXT,
    error_message TEXT,
    started_at TEXT NOT NULL,
    finished_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);

-- Asset download attempts made by image/video runs
CREATE TABLE IF NOT EXISTS assets (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    url TEXT NOT NULL,
    file_name TEXT,
    path TEXT,
    bytes INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL CHECK (status IN ('saved', 'failed')),
    error_type TEXT,
    error_message TEXT,
    downloaded_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_assets_run ON assets(run_id);
CREATE INDEX IF NOT EXISTS idx_assets_status ON assets(status);

-- Page load failures, kept separately for diagnostics
CREATE TABLE IF NOT EXISTS fetch_errors (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    source TEXT NOT NULL,
    error_type TEXT NOT NULL,
    error_message TEXT,
    occurred_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_errors_type ON fetch_errors(error_type);

-- View for failed downloads only
CREATE VIEW IF NOT EXISTS failed_assets AS
SELECT
    a.run_id, r.source, a.url, a.file_name, a.error_type, a.error_message, a.downloaded_at
FROM assets a
JOIN runs r ON r.id = a.run_id
WHERE a.status = 'failed';
`
