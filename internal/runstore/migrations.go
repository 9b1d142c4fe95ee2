package runstore

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    started_at TIMESTAMP,
    finished_at TIMESTAMP,
    succeeded INTEGER DEFAULT 0,
    failed INTEGER DEFAULT 0
);

CREATE TABLE IF NOT EXISTS outcomes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL REFERENCES runs(id),
    account TEXT NOT NULL,
    account_key TEXT NOT NULL,
    provider TEXT NOT NULL,
    method TEXT,
    status TEXT NOT NULL,
    detail TEXT,
    quota INTEGER DEFAULT 0,
    used_quota INTEGER DEFAULT 0,
    timestamp TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_outcomes_run_id ON outcomes(run_id);
CREATE INDEX IF NOT EXISTS idx_outcomes_account ON outcomes(account_key, provider);

CREATE TABLE IF NOT EXISTS balances (
    account_key TEXT NOT NULL,
    provider TEXT NOT NULL,
    quota INTEGER NOT NULL,
    used_quota INTEGER NOT NULL,
    updated_at TIMESTAMP,
    PRIMARY KEY (account_key, provider)
);
`
