// Package source defines the upstream collaborator interfaces the build
// pipeline consumes. Concrete clients for the data providers live outside
// this module; tests use in-package fakes.
package source

import "context"

// DrugIdentity is the result of resolving a name against the identity
// vocabulary. Confidence "none" with no RxCUI means the name did not resolve.
type DrugIdentity struct {
	RxCUI       string   `json:"rxcui,omitempty"`
	GenericName string   `json:"generic_name"`
	BrandNames  []string `json:"brand_names,omitempty"`
	Confidence  string   `json:"confidence"`
}

// Vocabulary resolves free-form drug names to canonical identities
type Vocabulary interface {
	Resolve(ctx context.Context, name string) (*DrugIdentity, error)
}

// LabelRecord is one structured drug-label document. Upstream stores each
// text section as a list of blocks; callers join them when matching.
type LabelRecord struct {
	DrugInteractionsTable []string `json:"drug_interactions_table,omitempty"`
	DrugInteractions      []string `json:"drug_interactions,omitempty"`
	AdverseReactions      []string `json:"adverse_reactions,omitempty"`
	Warnings              []string `json:"warnings,omitempty"`
	WarningsAndCautions   []string `json:"warnings_and_cautions,omitempty"`
	BoxedWarning          []string `json:"boxed_warning,omitempty"`
	Contraindications     []string `json:"contraindications,omitempty"`
}

// Labels fetches structured label records for a search expression
type Labels interface {
	Search(ctx context.Context, expr string, limit int) ([]LabelRecord, error)
}

// Ingredient is one active ingredient with its strength
type Ingredient struct {
	Name     string `json:"name"`
	Strength string `json:"strength,omitempty"`
}

// Composition is the product metadata for a drug
type Composition struct {
	ActiveIngredients []Ingredient `json:"active_ingredients"`
	DosageForms       []string     `json:"dosage_forms,omitempty"`
	Routes            []string     `json:"routes,omitempty"`
	Manufacturer      string       `json:"manufacturer,omitempty"`
	MarketingCategory string       `json:"marketing_category,omitempty"`
	ProductNDCs       []string     `json:"product_ndcs,omitempty"`
}

// Compositions fetches composition metadata for a drug identity
type Compositions interface {
	Fetch(ctx context.Context, genericName, brandName, rxcui string) (*Composition, error)
}

// TermCount is one entry of a ranked aggregation result
type TermCount struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// Aggregation fields understood by the count collaborator
const (
	// FieldLabelGenericName ranks generic names across all drug labels
	// (seed discovery)
	FieldLabelGenericName = "openfda.generic_name.exact"
	// FieldCoReportedDrug ranks drugs co-occurring in adverse event reports
	FieldCoReportedDrug = "patient.drug.medicinalproduct.exact"
	// FieldReactionTerm ranks adverse reaction terms in event reports
	FieldReactionTerm = "patient.reaction.reactionmeddrapt.exact"
)

// Aggregates runs ranked count queries against the adverse-event statistics
// provider. An empty search expression aggregates over everything.
type Aggregates interface {
	Count(ctx context.Context, search, field string, limit int) ([]TermCount, error)
}

// Extractor is the optional high-recall drug-name extractor applied to
// label prose. Implementations fail open: an error is treated as zero
// candidates by callers, never as a build failure. Extractor output is
// always unioned with dictionary matching, never used alone.
type Extractor interface {
	ExtractDrugNames(ctx context.Context, text, subjectName string) ([]string, error)
}
