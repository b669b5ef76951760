package store

// ddl takes the embedding dimension as its single format argument.
const ddl = `
PRAGMA journal_mode=WAL;

CREATE TABLE IF NOT EXISTS units (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    source           TEXT NOT NULL,
    extension        TEXT NOT NULL DEFAULT '',
    seq              INTEGER NOT NULL DEFAULT 0,
    content          TEXT NOT NULL,
    original_content TEXT NOT NULL DEFAULT ''
);

CREATE VIRTUAL TABLE IF NOT EXISTS vec_units USING vec0(
    unit_id INTEGER PRIMARY KEY,
    embedding float[%d]
);

CREATE TABLE IF NOT EXISTS meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`
