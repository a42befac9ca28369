package kg

import "strings"

// ============================================================================
// Graph Types
// ============================================================================

// NodeType tags a node with its entity kind. The known kinds are closed
// constants; any other value is treated as an extension type and stored as-is.
type NodeType string

const (
	NodeDrug       NodeType = "Drug"
	NodeIngredient NodeType = "Ingredient"
	NodeReaction   NodeType = "Reaction"
	NodeProduct    NodeType = "Product"
)

// EdgeType labels a directed relationship between two nodes.
type EdgeType string

const (
	EdgeInteractsWith       EdgeType = "INTERACTS_WITH"
	EdgeCoReportedWith      EdgeType = "CO_REPORTED_WITH"
	EdgeCausesReaction      EdgeType = "DRUG_CAUSES_REACTION"
	EdgeLabelWarnsReaction  EdgeType = "LABEL_WARNS_REACTION"
	EdgeHasActiveIngredient EdgeType = "HAS_ACTIVE_INGREDIENT"
	EdgeHasProduct          EdgeType = "HAS_PRODUCT"
)

// Properties is the open string-keyed attribute map persisted as JSON with
// each node and edge. Missing or mistyped keys default rather than error.
type Properties map[string]interface{}

// String returns a string property or the default
func (p Properties) String(key, defaultValue string) string {
	if p == nil {
		return defaultValue
	}
	if s, ok := p[key].(string); ok {
		return s
	}
	return defaultValue
}

// Int returns an integer property or the default. JSON round-trips numbers
// as float64, so both forms are accepted.
func (p Properties) Int(key string, defaultValue int) int {
	if p == nil {
		return defaultValue
	}
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return defaultValue
}

// Bool returns a boolean property or the default
func (p Properties) Bool(key string, defaultValue bool) bool {
	if p == nil {
		return defaultValue
	}
	if b, ok := p[key].(bool); ok {
		return b
	}
	return defaultValue
}

// Strings returns a string-slice property, tolerating the []interface{}
// form produced by JSON unmarshaling
func (p Properties) Strings(key string) []string {
	if p == nil {
		return nil
	}
	switch v := p[key].(type) {
	case []string:
		return v
	case []interface{}:
		result := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				result = append(result, s)
			}
		}
		return result
	}
	return nil
}

// Node is a persisted graph vertex
type Node struct {
	ID    string     `json:"id"`
	Type  NodeType   `json:"type"`
	Props Properties `json:"props"`
}

// Edge is a persisted directed relationship. At most one edge exists per
// (src, dst, type) triple; bidirectional relationships are stored as two
// opposite directed edges.
type Edge struct {
	Src   string     `json:"src"`
	Dst   string     `json:"dst"`
	Type  EdgeType   `json:"type"`
	Props Properties `json:"props"`
}

// ============================================================================
// Working Records
// ============================================================================

// DrugRecord is the transient per-drug record produced by seeding and
// threaded through the later build stages. It is never persisted separately;
// the Drug node owns the durable copy.
type DrugRecord struct {
	NodeID      string   `json:"node_id"`
	GenericName string   `json:"generic_name"`
	RxCUI       string   `json:"rxcui,omitempty"`
	BrandNames  []string `json:"brand_names,omitempty"`
}

// SelfNames returns the case-folded set of names that refer to this drug
// itself: generic name, every brand name, and the RxCUI. Used to exclude
// self-references during extraction.
func (d DrugRecord) SelfNames() map[string]struct{} {
	names := make(map[string]struct{})
	if d.GenericName != "" {
		names[strings.ToLower(d.GenericName)] = struct{}{}
	}
	for _, bn := range d.BrandNames {
		if bn != "" {
			names[strings.ToLower(bn)] = struct{}{}
		}
	}
	if d.RxCUI != "" {
		names[d.RxCUI] = struct{}{}
	}
	return names
}

// Reaction node ids are namespaced so a reaction term can never collide
// with a drug id.
const reactionIDPrefix = "reaction:"

// ReactionNodeID returns the canonical node id for an adverse reaction term
func ReactionNodeID(term string) string {
	return reactionIDPrefix + strings.ToLower(strings.TrimSpace(term))
}

// ReactionTerm extracts the term from a Reaction node id, or "" if the id
// is not in the reaction namespace
func ReactionTerm(nodeID string) string {
	if strings.HasPrefix(nodeID, reactionIDPrefix) {
		return nodeID[len(reactionIDPrefix):]
	}
	return ""
}

// ProductNodeID returns the synthetic Product node id for a drug
func ProductNodeID(drugID string) string {
	return "product:" + drugID
}
