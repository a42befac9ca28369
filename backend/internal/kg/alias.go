package kg

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// ============================================================================
// Alias Index
// ============================================================================

// RebuildAliases clears and regenerates the alias index from the current
// Drug nodes. Per drug the generated aliases are the case-folded node id,
// generic name, RxCUI (raw string form), and every brand name.
//
// Collisions resolve first-writer-wins: if two drugs share a brand name the
// second keeps its other aliases but loses that one. Known limitation.
func (s *Store) RebuildAliases(ctx context.Context) (int, error) {
	if _, err := s.tx.ExecContext(ctx, `DELETE FROM drug_aliases`); err != nil {
		return 0, fmt.Errorf("clearing aliases: %w", err)
	}

	rows, err := s.tx.QueryContext(ctx, `SELECT id, props FROM nodes WHERE type = ?`, string(NodeDrug))
	if err != nil {
		return 0, fmt.Errorf("listing drug nodes: %w", err)
	}

	type drugAliases struct {
		nodeID  string
		aliases map[string]struct{}
	}
	var drugs []drugAliases
	for rows.Next() {
		var id, propsStr string
		if err := rows.Scan(&id, &propsStr); err != nil {
			continue
		}
		props := parseProps(propsStr)

		aliases := map[string]struct{}{foldName(id): {}}
		if gn := props.String("generic_name", ""); gn != "" {
			aliases[foldName(gn)] = struct{}{}
		}
		if rxcui := props.String("rxcui", ""); rxcui != "" {
			aliases[rxcui] = struct{}{}
		}
		for _, bn := range props.Strings("brand_names") {
			if bn != "" {
				aliases[foldName(bn)] = struct{}{}
			}
		}
		drugs = append(drugs, drugAliases{nodeID: id, aliases: aliases})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("reading drug nodes: %w", err)
	}
	rows.Close()

	count := 0
	for _, d := range drugs {
		for alias := range d.aliases {
			if _, err := s.tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO drug_aliases (alias, node_id) VALUES (?, ?)`,
				alias, d.nodeID); err != nil {
				return count, fmt.Errorf("inserting alias: %w", err)
			}
			count++
		}
	}

	s.logger.Debug("alias index rebuilt",
		zap.Int("drugs", len(drugs)),
		zap.Int("aliases", count),
	)
	return count, nil
}

// ResolveAlias looks up a name in the alias index, returning "" when absent
func (s *Store) ResolveAlias(ctx context.Context, name string) (string, error) {
	return s.Resolver().ResolveAlias(ctx, name)
}
