package kg

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"go.uber.org/zap"

	"trupharma/backend/pkg/logger"
)

// Store is the single-writer property-graph store over a SQLite file.
// Writes are staged in a transaction and committed in batches via Commit,
// so a mid-run crash loses at most one batch.
type Store struct {
	db     *sql.DB
	tx     *sql.Tx
	logger *zap.Logger
}

// Open creates (or opens) the knowledge graph database at path and ensures
// the schema exists. The store begins its first write batch immediately.
func Open(ctx context.Context, path string) (*Store, error) {
	if parent := filepath.Dir(path); parent != "." && parent != "" {
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to sqlite: %w", err)
	}

	for _, pragma := range allPragmas() {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}

	for _, stmt := range allSchemaStatements() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}

	s := &Store{db: db, logger: logger.Get()}
	if err := s.begin(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) begin(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning write batch: %w", err)
	}
	s.tx = tx
	return nil
}

// Commit finishes the current write batch and starts the next one
func (s *Store) Commit(ctx context.Context) error {
	if s.tx == nil {
		return s.begin(ctx)
	}
	if err := s.tx.Commit(); err != nil {
		return fmt.Errorf("committing write batch: %w", err)
	}
	s.tx = nil
	return s.begin(ctx)
}

// Close commits any pending batch and closes the database
func (s *Store) Close() error {
	if s.tx != nil {
		if err := s.tx.Commit(); err != nil {
			s.tx = nil
			s.db.Close()
			return fmt.Errorf("committing final batch: %w", err)
		}
		s.tx = nil
	}
	return s.db.Close()
}

// NodeTypeConflictError is returned when an upsert would retype an existing
// node. Changing a node's type is always a caller bug, never a merge.
type NodeTypeConflictError struct {
	ID       string
	Existing NodeType
	Proposed NodeType
}

func (e NodeTypeConflictError) Error() string {
	return fmt.Sprintf("node %q already exists with type %s, cannot upsert as %s", e.ID, e.Existing, e.Proposed)
}

// UpsertNode inserts or updates a node. On conflict (same id and type) the
// properties are overwritten last-write-wins; an id reused under a different
// type is rejected with NodeTypeConflictError. A props payload that cannot
// be serialized fails only this call.
func (s *Store) UpsertNode(ctx context.Context, id string, nodeType NodeType, props Properties) error {
	if id == "" {
		return fmt.Errorf("node id is required")
	}

	var existing string
	err := s.tx.QueryRowContext(ctx, `SELECT type FROM nodes WHERE id = ?`, id).Scan(&existing)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("checking node type: %w", err)
	}
	if err == nil && NodeType(existing) != nodeType {
		return NodeTypeConflictError{ID: id, Existing: NodeType(existing), Proposed: nodeType}
	}

	propsJSON, err := marshalProps(props)
	if err != nil {
		return fmt.Errorf("marshaling node props: %w", err)
	}

	_, err = s.tx.ExecContext(ctx, `
		INSERT INTO nodes (id, type, props)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		    type  = excluded.type,
		    props = excluded.props
	`, id, string(nodeType), propsJSON)
	if err != nil {
		return fmt.Errorf("upserting node: %w", err)
	}
	return nil
}

// UpsertEdge inserts or updates a directed edge. At most one edge exists
// per (src, dst, type); re-upserting overwrites the properties.
func (s *Store) UpsertEdge(ctx context.Context, src, dst string, edgeType EdgeType, props Properties) error {
	if src == "" || dst == "" {
		return fmt.Errorf("edge endpoints are required")
	}

	propsJSON, err := marshalProps(props)
	if err != nil {
		return fmt.Errorf("marshaling edge props: %w", err)
	}

	_, err = s.tx.ExecContext(ctx, `
		INSERT INTO edges (src, dst, type, props)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(src, dst, type) DO UPDATE SET
		    props = excluded.props
	`, src, dst, string(edgeType), propsJSON)
	if err != nil {
		return fmt.Errorf("upserting edge: %w", err)
	}
	return nil
}

// CountNodes counts nodes, optionally filtered by type (empty = all)
func (s *Store) CountNodes(ctx context.Context, nodeType NodeType) (int, error) {
	return countRows(ctx, s.tx, "nodes", string(nodeType))
}

// CountEdges counts edges, optionally filtered by type (empty = all)
func (s *Store) CountEdges(ctx context.Context, edgeType EdgeType) (int, error) {
	return countRows(ctx, s.tx, "edges", string(edgeType))
}

// GetNode fetches a node by id, returning nil when it does not exist
func (s *Store) GetNode(ctx context.Context, id string) (*Node, error) {
	return getNode(ctx, s.tx, id)
}

// NodeExists reports whether a node id is present
func (s *Store) NodeExists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.tx.QueryRowContext(ctx, `SELECT 1 FROM nodes WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking node: %w", err)
	}
	return true, nil
}

// DrugNames returns the case-folded set of every known drug name: node ids,
// generic names, and brand names. This is the dictionary used for
// word-boundary matching against label text.
func (s *Store) DrugNames(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.tx.QueryContext(ctx, `SELECT id, props FROM nodes WHERE type = ?`, string(NodeDrug))
	if err != nil {
		return nil, fmt.Errorf("listing drug nodes: %w", err)
	}
	defer rows.Close()

	names := make(map[string]struct{})
	for rows.Next() {
		var id, propsStr string
		if err := rows.Scan(&id, &propsStr); err != nil {
			continue
		}
		names[foldName(id)] = struct{}{}
		props := parseProps(propsStr)
		if gn := props.String("generic_name", ""); gn != "" {
			names[foldName(gn)] = struct{}{}
		}
		for _, bn := range props.Strings("brand_names") {
			if bn != "" {
				names[foldName(bn)] = struct{}{}
			}
		}
	}
	return names, rows.Err()
}

// ReactionTerms returns {case-folded reaction term -> node id} for every
// Reaction node in the store
func (s *Store) ReactionTerms(ctx context.Context) (map[string]string, error) {
	rows, err := s.tx.QueryContext(ctx, `SELECT id FROM nodes WHERE type = ?`, string(NodeReaction))
	if err != nil {
		return nil, fmt.Errorf("listing reaction nodes: %w", err)
	}
	defer rows.Close()

	terms := make(map[string]string)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			continue
		}
		if term := ReactionTerm(id); term != "" {
			terms[foldName(term)] = id
		}
	}
	return terms, rows.Err()
}

// Resolver returns an entity resolver bound to the current write batch, so
// builders observe their own uncommitted writes.
func (s *Store) Resolver() *Resolver {
	return NewResolver(s.tx)
}

// FindNodeID resolves a candidate name to a Drug node id, or "" when no
// strategy matches.
func (s *Store) FindNodeID(ctx context.Context, name string) (string, error) {
	return s.Resolver().FindNodeID(ctx, name)
}

// Helper functions

func marshalProps(props Properties) (string, error) {
	if props == nil {
		props = Properties{}
	}
	data, err := json.Marshal(props)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func parseProps(propsStr string) Properties {
	if propsStr == "" {
		return Properties{}
	}
	var props Properties
	if err := json.Unmarshal([]byte(propsStr), &props); err != nil {
		return Properties{}
	}
	return props
}
