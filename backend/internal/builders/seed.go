package builders

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"trupharma/backend/internal/kg"
	"trupharma/backend/internal/source"
	pkgerrors "trupharma/backend/pkg/errors"
)

// SeedResult is the outcome of the seed stage
type SeedResult struct {
	Drugs  []kg.DrugRecord
	Failed int
}

// SeedDrugs discovers the ranked candidate list from label statistics,
// resolves each name against the identity vocabulary, and creates one Drug
// node per unique canonical id. Names that resolve with no confidence and
// no identifier are counted as failed and dropped. The alias index is
// rebuilt afterward.
func (p *Pipeline) SeedDrugs(ctx context.Context) (*SeedResult, error) {
	candidates, err := p.aggregates.Count(ctx, "", source.FieldLabelGenericName, p.opts.MaxDrugs)
	p.pause()
	if err != nil {
		p.logger.Warn("seed discovery failed", zap.Error(err))
		candidates = nil
	}

	names := make([]string, 0, len(candidates))
	for _, c := range candidates {
		term := strings.ToLower(strings.TrimSpace(c.Term))
		if len(term) > 1 {
			names = append(names, term)
		}
	}
	if len(names) == 0 {
		return nil, pkgerrors.ErrNoSeedDrugs
	}
	p.logger.Info("seed candidates discovered", zap.Int("count", len(names)))

	result := &SeedResult{}
	seen := make(map[string]struct{})

	for i, name := range names {
		identity, err := p.vocab.Resolve(ctx, name)
		p.pause()
		if err != nil {
			p.logger.Warn("identity resolution failed",
				zap.String("name", name),
				zap.Error(err),
			)
			result.Failed++
			continue
		}

		generic := identity.GenericName
		if generic == "" {
			generic = name
		}
		confidence := identity.Confidence
		if confidence == "" {
			confidence = "none"
		}

		// Unresolved: no identifier and no confidence
		if confidence == "none" && identity.RxCUI == "" {
			result.Failed++
			continue
		}

		nodeID := identity.RxCUI
		if nodeID == "" {
			nodeID = strings.ToLower(generic)
		}
		if _, dup := seen[nodeID]; dup {
			continue
		}
		seen[nodeID] = struct{}{}

		props := kg.Properties{
			"generic_name": generic,
			"brand_names":  identity.BrandNames,
			"rxcui":        identity.RxCUI,
			"confidence":   confidence,
		}
		if err := p.store.UpsertNode(ctx, nodeID, kg.NodeDrug, props); err != nil {
			p.logger.Warn("drug node upsert failed",
				zap.String("node_id", nodeID),
				zap.Error(err),
			)
			result.Failed++
			continue
		}

		result.Drugs = append(result.Drugs, kg.DrugRecord{
			NodeID:      nodeID,
			GenericName: generic,
			RxCUI:       identity.RxCUI,
			BrandNames:  identity.BrandNames,
		})

		p.maybeCommit(ctx, i+1)
	}

	if err := p.store.Commit(ctx); err != nil {
		return nil, err
	}
	aliases, err := p.store.RebuildAliases(ctx)
	if err != nil {
		return nil, err
	}

	p.logger.Info("drug nodes seeded",
		zap.Int("drugs", len(result.Drugs)),
		zap.Int("failed", result.Failed),
		zap.Int("aliases", aliases),
	)
	return result, nil
}
