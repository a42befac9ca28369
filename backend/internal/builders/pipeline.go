// Package builders implements the five-stage knowledge graph build
// pipeline. Stages run sequentially in a fixed order because each consumes
// entities the previous stage created: seed drugs, then ingredients and
// products, then label interactions, then adverse-event reports, then
// label-reaction cross-links.
package builders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"trupharma/backend/internal/kg"
	"trupharma/backend/internal/source"
	"trupharma/backend/pkg/logger"
)

// minProseLength gates the optional extractor: shorter prose is left to
// dictionary matching alone
const minProseLength = 50

// Options tunes the build pipeline
type Options struct {
	MaxDrugs      int           // seed list size
	BatchSize     int           // commit every N processed drugs
	Pause         time.Duration // delay between upstream calls (rate-limit contract)
	LabelLimit    int           // label records fetched per search
	MaxCoReported int           // co-reported drugs fetched per drug
	MaxReactions  int           // reaction terms fetched per drug
}

func (o Options) withDefaults() Options {
	if o.MaxDrugs <= 0 {
		o.MaxDrugs = 200
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 50
	}
	if o.Pause == 0 {
		o.Pause = 200 * time.Millisecond
	}
	if o.LabelLimit <= 0 {
		o.LabelLimit = 3
	}
	if o.MaxCoReported <= 0 {
		o.MaxCoReported = 50
	}
	if o.MaxReactions <= 0 {
		o.MaxReactions = 20
	}
	return o
}

// Pipeline wires the store and the upstream collaborators into the build
// stages. The extractor is optional; when nil, prose extraction relies on
// dictionary matching alone.
type Pipeline struct {
	store        *kg.Store
	vocab        source.Vocabulary
	labels       source.Labels
	compositions source.Compositions
	aggregates   source.Aggregates
	extractor    source.Extractor
	opts         Options
	logger       *zap.Logger
}

// NewPipeline creates a build pipeline
func NewPipeline(
	store *kg.Store,
	vocab source.Vocabulary,
	labels source.Labels,
	compositions source.Compositions,
	aggregates source.Aggregates,
	extractor source.Extractor,
	opts Options,
) *Pipeline {
	return &Pipeline{
		store:        store,
		vocab:        vocab,
		labels:       labels,
		compositions: compositions,
		aggregates:   aggregates,
		extractor:    extractor,
		opts:         opts.withDefaults(),
		logger:       logger.Get(),
	}
}

// pause enforces the politeness delay between upstream calls
func (p *Pipeline) pause() {
	time.Sleep(p.opts.Pause)
}

// maybeCommit commits a write batch every BatchSize processed items
func (p *Pipeline) maybeCommit(ctx context.Context, processed int) {
	if processed%p.opts.BatchSize == 0 {
		if err := p.store.Commit(ctx); err != nil {
			p.logger.Warn("batch commit failed", zap.Error(err))
		}
	}
}

// Run executes all five stages in order. Per-item failures are logged and
// skipped; an unmet stage precondition (no seed drugs, no Reaction nodes)
// aborts the run.
func (p *Pipeline) Run(ctx context.Context) error {
	runID := uuid.New().String()
	log := p.logger.With(zap.String("run_id", runID))
	started := time.Now()

	seeded, err := p.SeedDrugs(ctx)
	if err != nil {
		log.Error("seed stage failed", zap.Error(err))
		return err
	}
	log.Info("seed stage complete",
		zap.Int("drugs", len(seeded.Drugs)),
		zap.Int("failed", seeded.Failed),
	)

	if err := p.BuildComposition(ctx, seeded.Drugs); err != nil {
		log.Error("composition stage failed", zap.Error(err))
		return err
	}

	if err := p.BuildInteractions(ctx, seeded.Drugs); err != nil {
		log.Error("interaction stage failed", zap.Error(err))
		return err
	}

	if err := p.BuildReports(ctx, seeded.Drugs); err != nil {
		log.Error("report stage failed", zap.Error(err))
		return err
	}

	stageErr := p.BuildLabelReactions(ctx, seeded.Drugs)
	if stageErr != nil {
		log.Error("label reaction stage failed", zap.Error(stageErr))
	}

	// Final alias rebuild so stub drugs created by the report stage are
	// reachable by name. Runs even when the last stage aborted.
	if _, err := p.store.RebuildAliases(ctx); err != nil {
		log.Error("final alias rebuild failed", zap.Error(err))
		return err
	}
	if err := p.store.Commit(ctx); err != nil {
		return err
	}
	if stageErr != nil {
		return stageErr
	}

	nodes, _ := p.store.CountNodes(ctx, "")
	edges, _ := p.store.CountEdges(ctx, "")
	log.Info("build complete",
		zap.Int("total_nodes", nodes),
		zap.Int("total_edges", edges),
		zap.Duration("elapsed", time.Since(started)),
	)
	return nil
}

// searchLabels fetches label records for a drug, preferring the generic
// name and falling back to the RxCUI. Any upstream failure is logged and
// treated as no data.
func (p *Pipeline) searchLabels(ctx context.Context, genericName, rxcui string) []source.LabelRecord {
	records, err := p.labels.Search(ctx, source.LabelSearchByGeneric(genericName), p.opts.LabelLimit)
	p.pause()
	if err != nil {
		p.logger.Warn("label fetch failed",
			zap.String("drug", genericName),
			zap.Error(err),
		)
		return nil
	}
	if len(records) == 0 && rxcui != "" {
		records, err = p.labels.Search(ctx, source.LabelSearchByRxCUI(rxcui), p.opts.LabelLimit)
		p.pause()
		if err != nil {
			p.logger.Warn("label fetch by rxcui failed",
				zap.String("drug", genericName),
				zap.Error(err),
			)
			return nil
		}
	}
	return records
}
