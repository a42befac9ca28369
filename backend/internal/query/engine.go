// Package query is the read side of the knowledge graph: a strictly
// read-only engine over a built sqlite file, with per-drug accessors and
// the reaction disparity report. Any number of engines may read the same
// file while a builder writes it.
package query

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	_ "modernc.org/sqlite"

	"trupharma/backend/internal/kg"
	pkgerrors "trupharma/backend/pkg/errors"
)

// Engine answers queries against a built knowledge graph file
type Engine struct {
	db       *sql.DB
	resolver *kg.Resolver
}

// Open opens a knowledge graph file read-only. The file must already
// exist; Open never creates or writes.
func Open(path string) (*Engine, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("knowledge graph %s: %w: %w", path, pkgerrors.ErrStoreNotFound, fs.ErrNotExist)
		}
		return nil, fmt.Errorf("checking knowledge graph file: %w", err)
	}
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("opening knowledge graph: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening knowledge graph: %w", err)
	}
	return &Engine{db: db, resolver: kg.NewResolver(db)}, nil
}

// Close releases the database handle
func (e *Engine) Close() error {
	return e.db.Close()
}

// Resolve maps a free-form drug name to its canonical node id, or "" when
// the name is unknown
func (e *Engine) Resolve(ctx context.Context, name string) (string, error) {
	return e.resolver.FindNodeID(ctx, name)
}

// DrugIdentity is the node view returned by Identity
type DrugIdentity struct {
	NodeID      string   `json:"node_id"`
	GenericName string   `json:"generic_name"`
	RxCUI       string   `json:"rxcui,omitempty"`
	BrandNames  []string `json:"brand_names,omitempty"`
	Confidence  string   `json:"confidence,omitempty"`
	Stub        bool     `json:"stub,omitempty"`
}

// InteractionInfo is one known interaction partner
type InteractionInfo struct {
	DrugID   string `json:"drug_id"`
	DrugName string `json:"drug_name"`
	Source   string `json:"source,omitempty"`
}

// CoReportedInfo is one drug co-occurring in adverse event reports
type CoReportedInfo struct {
	DrugID      string `json:"drug_id"`
	DrugName    string `json:"drug_name"`
	ReportCount int    `json:"report_count"`
	Source      string `json:"source,omitempty"`
}

// ReactionInfo is one reported adverse reaction with its report count
type ReactionInfo struct {
	Reaction    string `json:"reaction"`
	ReportCount int    `json:"report_count"`
	Source      string `json:"source,omitempty"`
}

// LabelReactionInfo is one reaction the drug's label warns about
type LabelReactionInfo struct {
	Reaction string `json:"reaction"`
	Source   string `json:"source,omitempty"`
}

// IngredientInfo is one active ingredient with its strength
type IngredientInfo struct {
	Ingredient string `json:"ingredient"`
	Strength   string `json:"strength,omitempty"`
	Source     string `json:"source,omitempty"`
}

// Identity returns the Drug node view for a name, or nil when the name
// does not resolve
func (e *Engine) Identity(ctx context.Context, name string) (*DrugIdentity, error) {
	node, err := e.lookupDrug(ctx, name)
	if err != nil || node == nil {
		return nil, err
	}
	return &DrugIdentity{
		NodeID:      node.ID,
		GenericName: node.Props.String("generic_name", node.ID),
		RxCUI:       node.Props.String("rxcui", ""),
		BrandNames:  node.Props.Strings("brand_names"),
		Confidence:  node.Props.String("confidence", ""),
		Stub:        node.Props.Bool("stub", false),
	}, nil
}

// Interactions returns the drug's known interaction partners
func (e *Engine) Interactions(ctx context.Context, name string) ([]InteractionInfo, error) {
	nodeID, err := e.Resolve(ctx, name)
	if err != nil || nodeID == "" {
		return nil, err
	}

	rows, err := e.outgoing(ctx, nodeID, kg.EdgeInteractsWith)
	if err != nil {
		return nil, err
	}

	result := make([]InteractionInfo, 0, len(rows))
	for _, row := range rows {
		result = append(result, InteractionInfo{
			DrugID:   row.dst,
			DrugName: row.dstProps.String("generic_name", row.dst),
			Source:   row.edgeProps.String("source", ""),
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].DrugName < result[j].DrugName })
	return result, nil
}

// CoReported returns the drugs most often co-reported with this one,
// report count descending
func (e *Engine) CoReported(ctx context.Context, name string) ([]CoReportedInfo, error) {
	nodeID, err := e.Resolve(ctx, name)
	if err != nil || nodeID == "" {
		return nil, err
	}

	rows, err := e.outgoing(ctx, nodeID, kg.EdgeCoReportedWith)
	if err != nil {
		return nil, err
	}

	result := make([]CoReportedInfo, 0, len(rows))
	for _, row := range rows {
		result = append(result, CoReportedInfo{
			DrugID:      row.dst,
			DrugName:    row.dstProps.String("generic_name", row.dst),
			ReportCount: row.edgeProps.Int("report_count", 0),
			Source:      row.edgeProps.String("source", ""),
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ReportCount > result[j].ReportCount })
	return result, nil
}

// Reactions returns the drug's reported adverse reactions, report count
// descending
func (e *Engine) Reactions(ctx context.Context, name string) ([]ReactionInfo, error) {
	nodeID, err := e.Resolve(ctx, name)
	if err != nil || nodeID == "" {
		return nil, err
	}

	rows, err := e.outgoing(ctx, nodeID, kg.EdgeCausesReaction)
	if err != nil {
		return nil, err
	}

	result := make([]ReactionInfo, 0, len(rows))
	for _, row := range rows {
		result = append(result, ReactionInfo{
			Reaction:    row.dstProps.String("reactionmeddrapt", kg.ReactionTerm(row.dst)),
			ReportCount: row.edgeProps.Int("report_count", 0),
			Source:      row.edgeProps.String("source", ""),
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ReportCount > result[j].ReportCount })
	return result, nil
}

// LabelReactions returns the reactions the drug's label warns about
func (e *Engine) LabelReactions(ctx context.Context, name string) ([]LabelReactionInfo, error) {
	nodeID, err := e.Resolve(ctx, name)
	if err != nil || nodeID == "" {
		return nil, err
	}

	rows, err := e.outgoing(ctx, nodeID, kg.EdgeLabelWarnsReaction)
	if err != nil {
		return nil, err
	}

	result := make([]LabelReactionInfo, 0, len(rows))
	for _, row := range rows {
		result = append(result, LabelReactionInfo{
			Reaction: row.dstProps.String("reactionmeddrapt", kg.ReactionTerm(row.dst)),
			Source:   row.edgeProps.String("source", ""),
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Reaction < result[j].Reaction })
	return result, nil
}

// Ingredients returns the drug's active ingredients
func (e *Engine) Ingredients(ctx context.Context, name string) ([]IngredientInfo, error) {
	nodeID, err := e.Resolve(ctx, name)
	if err != nil || nodeID == "" {
		return nil, err
	}

	rows, err := e.outgoing(ctx, nodeID, kg.EdgeHasActiveIngredient)
	if err != nil {
		return nil, err
	}

	result := make([]IngredientInfo, 0, len(rows))
	for _, row := range rows {
		result = append(result, IngredientInfo{
			Ingredient: row.dstProps.String("name", row.dst),
			Strength:   row.edgeProps.String("strength", ""),
			Source:     row.edgeProps.String("source", ""),
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Ingredient < result[j].Ingredient })
	return result, nil
}

func (e *Engine) lookupDrug(ctx context.Context, name string) (*kg.Node, error) {
	nodeID, err := e.Resolve(ctx, name)
	if err != nil || nodeID == "" {
		return nil, err
	}
	return e.resolver.GetNode(ctx, nodeID)
}

// edgeRow is one outgoing edge joined with its destination node
type edgeRow struct {
	dst       string
	dstProps  kg.Properties
	edgeProps kg.Properties
}

func (e *Engine) outgoing(ctx context.Context, src string, edgeType kg.EdgeType) ([]edgeRow, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT e.dst, e.props, COALESCE(n.props, '{}')
		FROM edges e
		LEFT JOIN nodes n ON n.id = e.dst
		WHERE e.src = ? AND e.type = ?`,
		src, string(edgeType))
	if err != nil {
		return nil, fmt.Errorf("querying %s edges: %w", edgeType, err)
	}
	defer rows.Close()

	var result []edgeRow
	for rows.Next() {
		var dst, edgeProps, dstProps string
		if err := rows.Scan(&dst, &edgeProps, &dstProps); err != nil {
			return nil, fmt.Errorf("scanning edge row: %w", err)
		}
		result = append(result, edgeRow{
			dst:       dst,
			dstProps:  kg.ParseProps(dstProps),
			edgeProps: kg.ParseProps(edgeProps),
		})
	}
	return result, rows.Err()
}

func foldTerm(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
