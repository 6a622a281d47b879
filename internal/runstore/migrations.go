package runstore

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    run_id TEXT PRIMARY KEY,
    job_name TEXT,
    branch TEXT,
    commit_sha TEXT,
    status TEXT NOT NULL,
    error_type TEXT NOT NULL,
    confidence TEXT NOT NULL,
    run_dir TEXT NOT NULL,
    processed_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_processed_at ON runs(processed_at);

CREATE TABLE IF NOT EXISTS patches (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    target TEXT NOT NULL,
    signature TEXT NOT NULL,
    source TEXT,
    run_id TEXT,
    applied_at TEXT NOT NULL,
    UNIQUE(target, signature)
);

CREATE INDEX IF NOT EXISTS idx_patches_target ON patches(target);

CREATE TABLE IF NOT EXISTS decisions (
    id TEXT PRIMARY KEY,
    decision TEXT NOT NULL,
    reason TEXT,
    error_type TEXT,
    decided_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decisions_decided_at ON decisions(decided_at);
`
