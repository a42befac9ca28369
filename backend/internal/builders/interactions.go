package builders

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"trupharma/backend/internal/kg"
)

// BuildInteractions scans each drug's label interaction sections for
// mentions of other known drugs. The structured interaction table and the
// prose section are dictionary-matched against every known drug name; long
// prose additionally goes through the optional extractor, whose candidates
// are unioned with the dictionary hits. Each resolved partner gets a pair
// of directed INTERACTS_WITH edges.
func (p *Pipeline) BuildInteractions(ctx context.Context, drugs []kg.DrugRecord) error {
	known, err := p.store.DrugNames(ctx)
	if err != nil {
		return err
	}
	matcher := NewDictionaryMatcher(known, minDrugNameLength)

	edges := 0
	for i, drug := range drugs {
		records := p.searchLabels(ctx, drug.GenericName, drug.RxCUI)
		if len(records) == 0 {
			continue
		}

		self := drug.SelfNames()
		partners := make(map[string]struct{})

		for _, rec := range records {
			table := strings.Join(rec.DrugInteractionsTable, " ")
			prose := strings.Join(rec.DrugInteractions, " ")

			for name := range matcher.MatchSet(table) {
				partners[name] = struct{}{}
			}
			for name := range matcher.MatchSet(prose) {
				partners[name] = struct{}{}
			}

			if p.extractor != nil && len(prose) > minProseLength {
				extracted, err := p.extractor.ExtractDrugNames(ctx, prose, drug.GenericName)
				if err != nil {
					p.logger.Warn("drug name extraction failed",
						zap.String("drug", drug.GenericName),
						zap.Error(err),
					)
				} else {
					for _, name := range extracted {
						name = strings.ToLower(strings.TrimSpace(name))
						if len(name) >= minDrugNameLength {
							partners[name] = struct{}{}
						}
					}
				}
			}
		}

		for name := range partners {
			if _, own := self[name]; own {
				continue
			}
			partnerID, err := p.store.FindNodeID(ctx, name)
			if err != nil || partnerID == "" || partnerID == drug.NodeID {
				continue
			}
			props := kg.Properties{"source": "label"}
			if err := p.store.UpsertEdge(ctx, drug.NodeID, partnerID, kg.EdgeInteractsWith, props); err != nil {
				p.logger.Warn("interaction edge upsert failed",
					zap.String("src", drug.NodeID),
					zap.String("dst", partnerID),
					zap.Error(err),
				)
				continue
			}
			if err := p.store.UpsertEdge(ctx, partnerID, drug.NodeID, kg.EdgeInteractsWith, props); err != nil {
				p.logger.Warn("interaction edge upsert failed",
					zap.String("src", partnerID),
					zap.String("dst", drug.NodeID),
					zap.Error(err),
				)
				continue
			}
			edges += 2
		}

		p.maybeCommit(ctx, i+1)
	}

	if err := p.store.Commit(ctx); err != nil {
		return err
	}
	p.logger.Info("interaction stage complete", zap.Int("edges", edges))
	return nil
}
