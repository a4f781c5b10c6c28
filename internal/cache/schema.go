package cache

// Schema contains SQL schema definitions for the history database.
// Only metadata is kept; message subjects and bodies are never stored.
const Schema = `
-- Inbox retrievals
CREATE TABLE IF NOT EXISTS fetch_runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    account TEXT NOT NULL,
    fetched INTEGER NOT NULL,
    skipped INTEGER NOT NULL,
    duration_ms INTEGER NOT NULL,
    started_at DATETIME NOT NULL
);

-- Classification verdicts
CREATE TABLE IF NOT EXISTS verdicts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    message_id TEXT NOT NULL DEFAULT '',
    sender TEXT NOT NULL DEFAULT '',
    origin TEXT NOT NULL,
    label TEXT NOT NULL,
    source TEXT NOT NULL,
    classified_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fetch_runs_account ON fetch_runs(account);
CREATE INDEX IF NOT EXISTS idx_verdicts_label ON verdicts(label);
CREATE INDEX IF NOT EXISTS idx_verdicts_sender ON verdicts(sender);
CREATE INDEX IF NOT EXISTS idx_verdicts_classified_at ON verdicts(classified_at);
`
