package builders

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"trupharma/backend/internal/kg"
	pkgerrors "trupharma/backend/pkg/errors"
)

// BuildLabelReactions cross-links drugs to the reaction terms their labels
// warn about. It dictionary-matches every known Reaction term against the
// warning sections of each drug's label and records a LABEL_WARNS_REACTION
// edge per hit. The report stage must have run first: without Reaction
// nodes there is nothing to match against.
func (p *Pipeline) BuildLabelReactions(ctx context.Context, drugs []kg.DrugRecord) error {
	terms, err := p.store.ReactionTerms(ctx)
	if err != nil {
		return err
	}
	if len(terms) == 0 {
		return pkgerrors.ErrNoReactionNodes
	}

	dict := make(map[string]struct{}, len(terms))
	for term := range terms {
		dict[term] = struct{}{}
	}
	matcher := NewDictionaryMatcher(dict, minReactionTermLength)

	edges := 0
	for i, drug := range drugs {
		records := p.searchLabels(ctx, drug.GenericName, drug.RxCUI)
		if len(records) == 0 {
			continue
		}

		matched := make(map[string]struct{})
		for _, rec := range records {
			for _, section := range [][]string{
				rec.AdverseReactions,
				rec.Warnings,
				rec.WarningsAndCautions,
				rec.BoxedWarning,
				rec.Contraindications,
			} {
				if len(section) == 0 {
					continue
				}
				text := strings.Join(section, " ")
				for term := range matcher.MatchSet(text) {
					matched[term] = struct{}{}
				}
			}
		}

		for term := range matched {
			reactionID, ok := terms[term]
			if !ok {
				continue
			}
			if err := p.store.UpsertEdge(ctx, drug.NodeID, reactionID, kg.EdgeLabelWarnsReaction, kg.Properties{
				"source": "label",
			}); err != nil {
				p.logger.Warn("label reaction edge upsert failed",
					zap.String("src", drug.NodeID),
					zap.String("dst", reactionID),
					zap.Error(err),
				)
				continue
			}
			edges++
		}

		p.maybeCommit(ctx, i+1)
	}

	if err := p.store.Commit(ctx); err != nil {
		return err
	}
	p.logger.Info("label reaction stage complete", zap.Int("edges", edges))
	return nil
}
