package postgres

// Schema DDL for the two graph tables. Both carry the composite primary
// key (id, org_id); audit timestamps are stored as RFC3339 text so they
// survive import/export round-trips unchanged, and properties are stored
// as a JSON string.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS nodes (
	id         TEXT NOT NULL,
	org_id     TEXT NOT NULL,
	type       TEXT NOT NULL,
	properties TEXT NOT NULL DEFAULT '{}',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	created_by TEXT NOT NULL DEFAULT '',
	updated_by TEXT NOT NULL DEFAULT '',
	user_agent TEXT NOT NULL DEFAULT '',
	client_ip  TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (id, org_id)
);

CREATE INDEX IF NOT EXISTS idx_nodes_org_id     ON nodes (org_id);
CREATE INDEX IF NOT EXISTS idx_nodes_type       ON nodes (type);
CREATE INDEX IF NOT EXISTS idx_nodes_created_by ON nodes (created_by);
CREATE INDEX IF NOT EXISTS idx_nodes_updated_by ON nodes (updated_by);
CREATE INDEX IF NOT EXISTS idx_nodes_created_at ON nodes (created_at);
CREATE INDEX IF NOT EXISTS idx_nodes_updated_at ON nodes (updated_at);
CREATE INDEX IF NOT EXISTS idx_nodes_org_type   ON nodes (org_id, type);

CREATE TABLE IF NOT EXISTS edges (
	id                TEXT NOT NULL,
	org_id            TEXT NOT NULL,
	from_node         TEXT NOT NULL,
	to_node           TEXT NOT NULL,
	relationship_type TEXT NOT NULL DEFAULT 'related',
	properties        TEXT NOT NULL DEFAULT '{}',
	created_at        TEXT NOT NULL,
	updated_at        TEXT NOT NULL,
	created_by        TEXT NOT NULL DEFAULT '',
	updated_by        TEXT NOT NULL DEFAULT '',
	user_agent        TEXT NOT NULL DEFAULT '',
	client_ip         TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (id, org_id)
);

CREATE INDEX IF NOT EXISTS idx_edges_org_id       ON edges (org_id);
CREATE INDEX IF NOT EXISTS idx_edges_type         ON edges (relationship_type);
CREATE INDEX IF NOT EXISTS idx_edges_from_node    ON edges (from_node);
CREATE INDEX IF NOT EXISTS idx_edges_to_node      ON edges (to_node);
CREATE INDEX IF NOT EXISTS idx_edges_created_by   ON edges (created_by);
CREATE INDEX IF NOT EXISTS idx_edges_updated_by   ON edges (updated_by);
CREATE INDEX IF NOT EXISTS idx_edges_created_at   ON edges (created_at);
CREATE INDEX IF NOT EXISTS idx_edges_updated_at   ON edges (updated_at);
CREATE INDEX IF NOT EXISTS idx_edges_org_from     ON edges (org_id, from_node);
CREATE INDEX IF NOT EXISTS idx_edges_org_to       ON edges (org_id, to_node);
CREATE INDEX IF NOT EXISTS idx_edges_org_reltype  ON edges (org_id, relationship_type);
`
