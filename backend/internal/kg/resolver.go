package kg

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// queryer is the minimal read surface the resolver needs. Both *sql.Tx
// (the store's write batch) and *sql.DB (the read-only query engine)
// satisfy it, so resolution behaves identically on both sides.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Resolver maps candidate names (generic name, brand, RxCUI, node id) to
// canonical Drug node ids. It is used by builders while writing and by the
// query engine while reading.
type Resolver struct {
	q queryer
}

// NewResolver creates a resolver over a store transaction or database handle
func NewResolver(q queryer) *Resolver {
	return &Resolver{q: q}
}

// ResolveAlias looks up a case-folded name in the alias index. Returns ""
// when the alias is unknown. A missing alias table (a database built before
// the index existed) is treated as no match, not an error.
func (r *Resolver) ResolveAlias(ctx context.Context, name string) (string, error) {
	folded := foldName(name)
	if folded == "" {
		return "", nil
	}

	var nodeID string
	err := r.q.QueryRowContext(ctx,
		`SELECT node_id FROM drug_aliases WHERE alias = ?`, folded).Scan(&nodeID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		if strings.Contains(err.Error(), "no such table") {
			return "", nil
		}
		return "", fmt.Errorf("resolving alias: %w", err)
	}
	return nodeID, nil
}

// FindNodeID resolves a candidate name to a Drug node id, trying each
// strategy in order: alias index, direct id match, then a linear scan over
// Drug node properties. The scan keeps resolution correct when the alias
// index is stale or absent. Returns "" when nothing matches.
func (r *Resolver) FindNodeID(ctx context.Context, name string) (string, error) {
	raw := strings.TrimSpace(name)
	if raw == "" {
		return "", nil
	}
	folded := foldName(raw)

	// Fast path: alias index
	if id, err := r.ResolveAlias(ctx, folded); err != nil {
		return "", err
	} else if id != "" {
		return id, nil
	}

	// Direct id match, case-folded then raw (RxCUI ids are numeric strings)
	for _, candidate := range []string{folded, raw} {
		var id string
		err := r.q.QueryRowContext(ctx,
			`SELECT id FROM nodes WHERE type = ? AND id = ?`, string(NodeDrug), candidate).Scan(&id)
		if err == nil {
			return id, nil
		}
		if err != sql.ErrNoRows {
			return "", fmt.Errorf("matching node id: %w", err)
		}
	}

	// Slowest fallback: scan Drug node properties
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, props FROM nodes WHERE type = ?`, string(NodeDrug))
	if err != nil {
		return "", fmt.Errorf("scanning drug nodes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, propsStr string
		if err := rows.Scan(&id, &propsStr); err != nil {
			continue
		}
		props := parseProps(propsStr)
		if props.String("rxcui", "") == raw {
			return id, nil
		}
		if foldName(props.String("generic_name", "")) == folded {
			return id, nil
		}
		for _, bn := range props.Strings("brand_names") {
			if foldName(bn) == folded {
				return id, nil
			}
		}
	}
	return "", rows.Err()
}

// GetNode fetches a node by id through the resolver's read handle,
// returning nil when it does not exist
func (r *Resolver) GetNode(ctx context.Context, id string) (*Node, error) {
	return getNode(ctx, r.q, id)
}

// ParseProps decodes a stored JSON properties column, tolerating empty or
// malformed input
func ParseProps(propsStr string) Properties {
	return parseProps(propsStr)
}

// Shared read helpers

func foldName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func getNode(ctx context.Context, q queryer, id string) (*Node, error) {
	var nodeID, nodeType, propsStr string
	err := q.QueryRowContext(ctx,
		`SELECT id, type, props FROM nodes WHERE id = ?`, id).Scan(&nodeID, &nodeType, &propsStr)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching node: %w", err)
	}
	return &Node{ID: nodeID, Type: NodeType(nodeType), Props: parseProps(propsStr)}, nil
}

func countRows(ctx context.Context, q queryer, table, rowType string) (int, error) {
	var count int
	var err error
	// table is one of the fixed schema names, never user input
	if rowType != "" {
		err = q.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM `+table+` WHERE type = ?`, rowType).Scan(&count)
	} else {
		err = q.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("counting %s: %w", table, err)
	}
	return count, nil
}
