package kg

// SQLite schema DDL constants

const schemaNodes = `
CREATE TABLE IF NOT EXISTS nodes (
    id    TEXT PRIMARY KEY,
    type  TEXT NOT NULL,
    props TEXT DEFAULT '{}'
)`

const schemaEdges = `
CREATE TABLE IF NOT EXISTS edges (
    src   TEXT NOT NULL,
    dst   TEXT NOT NULL,
    type  TEXT NOT NULL,
    props TEXT DEFAULT '{}',
    PRIMARY KEY (src, dst, type)
)`

const schemaAliases = `
CREATE TABLE IF NOT EXISTS drug_aliases (
    alias   TEXT PRIMARY KEY,
    node_id TEXT NOT NULL
)`

const indexEdgesSrcType = `CREATE INDEX IF NOT EXISTS idx_edges_src_type ON edges(src, type)`
const indexEdgesDstType = `CREATE INDEX IF NOT EXISTS idx_edges_dst_type ON edges(dst, type)`

// SQLite pragmas for a single-writer build process
const pragmaWAL = `PRAGMA journal_mode=WAL`
const pragmaBusyTimeout = `PRAGMA busy_timeout=5000`
const pragmaSynchronous = `PRAGMA synchronous=NORMAL`

// allSchemaStatements returns all schema DDL in order
func allSchemaStatements() []string {
	return []string{
		schemaNodes,
		schemaEdges,
		schemaAliases,
		indexEdgesSrcType,
		indexEdgesDstType,
	}
}

// allPragmas returns all pragma statements
func allPragmas() []string {
	return []string{
		pragmaWAL,
		pragmaBusyTimeout,
		pragmaSynchronous,
	}
}
