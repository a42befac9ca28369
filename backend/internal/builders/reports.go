package builders

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"trupharma/backend/internal/kg"
	"trupharma/backend/internal/source"
)

// BuildReports mines the adverse-event reports for each drug: the drugs
// most often co-reported alongside it, and the most frequent reaction
// terms. Co-reported names that resolve to no known drug become stub Drug
// nodes so the co-occurrence signal is not lost.
func (p *Pipeline) BuildReports(ctx context.Context, drugs []kg.DrugRecord) error {
	coEdges := 0
	reactionEdges := 0
	stubs := 0

	for i, drug := range drugs {
		search := source.EventSearch(drug.GenericName, drug.RxCUI)

		coReported, err := p.aggregates.Count(ctx, search, source.FieldCoReportedDrug, p.opts.MaxCoReported)
		p.pause()
		if err != nil {
			p.logger.Warn("co-reported fetch failed",
				zap.String("drug", drug.GenericName),
				zap.Error(err),
			)
			coReported = nil
		}

		self := drug.SelfNames()
		for _, tc := range coReported {
			term := strings.ToLower(strings.TrimSpace(tc.Term))
			if len(term) < minDrugNameLength {
				continue
			}
			if _, own := self[term]; own {
				continue
			}

			otherID, err := p.store.FindNodeID(ctx, term)
			if err != nil {
				continue
			}
			if otherID == "" {
				// Unknown drug: keep the signal with a stub node
				otherID = term
				if otherID == drug.NodeID {
					continue
				}
				if err := p.store.UpsertNode(ctx, otherID, kg.NodeDrug, kg.Properties{
					"generic_name": tc.Term,
					"stub":         true,
				}); err != nil {
					p.logger.Warn("stub drug upsert failed",
						zap.String("node_id", otherID),
						zap.Error(err),
					)
					continue
				}
				stubs++
			}
			if otherID == drug.NodeID {
				continue
			}

			if err := p.store.UpsertEdge(ctx, drug.NodeID, otherID, kg.EdgeCoReportedWith, kg.Properties{
				"source":       "faers",
				"report_count": tc.Count,
			}); err != nil {
				p.logger.Warn("co-reported edge upsert failed",
					zap.String("src", drug.NodeID),
					zap.String("dst", otherID),
					zap.Error(err),
				)
				continue
			}
			coEdges++
		}

		reactions, err := p.aggregates.Count(ctx, search, source.FieldReactionTerm, p.opts.MaxReactions)
		p.pause()
		if err != nil {
			p.logger.Warn("reaction fetch failed",
				zap.String("drug", drug.GenericName),
				zap.Error(err),
			)
			reactions = nil
		}

		for _, tc := range reactions {
			term := strings.TrimSpace(tc.Term)
			if term == "" {
				continue
			}
			reactionID := kg.ReactionNodeID(term)
			if err := p.store.UpsertNode(ctx, reactionID, kg.NodeReaction, kg.Properties{
				"reactionmeddrapt": term,
			}); err != nil {
				p.logger.Warn("reaction upsert failed",
					zap.String("term", term),
					zap.Error(err),
				)
				continue
			}
			if err := p.store.UpsertEdge(ctx, drug.NodeID, reactionID, kg.EdgeCausesReaction, kg.Properties{
				"source":       "faers",
				"report_count": tc.Count,
			}); err != nil {
				p.logger.Warn("reaction edge upsert failed",
					zap.String("src", drug.NodeID),
					zap.String("dst", reactionID),
					zap.Error(err),
				)
				continue
			}
			reactionEdges++
		}

		p.maybeCommit(ctx, i+1)
	}

	if err := p.store.Commit(ctx); err != nil {
		return err
	}
	p.logger.Info("report stage complete",
		zap.Int("co_reported_edges", coEdges),
		zap.Int("reaction_edges", reactionEdges),
		zap.Int("stub_drugs", stubs),
	)
	return nil
}
