package query

import (
	"context"
	"sort"
)

// ReactionSignal is one reaction term with its report volume
type ReactionSignal struct {
	Reaction    string `json:"reaction"`
	ReportCount int    `json:"report_count,omitempty"`
}

// DisparityReport contrasts what patients report against what the label
// warns about. Emerging signals are reported reactions absent from the
// label; they are the pharmacovigilance payoff of the graph.
type DisparityReport struct {
	// Confirmed: reported and on the label, alphabetical
	Confirmed []ReactionSignal `json:"confirmed"`
	// Emerging: reported but not on the label, report count descending
	Emerging []ReactionSignal `json:"emerging"`
	// Unconfirmed: on the label but not reported, alphabetical
	Unconfirmed []string `json:"unconfirmed"`
	// Score: share of reported reactions the label does not cover
	Score float64 `json:"score"`
}

// Disparity computes the reaction disparity report for a drug. Returns nil
// when the name does not resolve or the drug has neither reported nor
// labeled reactions.
func (e *Engine) Disparity(ctx context.Context, name string) (*DisparityReport, error) {
	reported, err := e.Reactions(ctx, name)
	if err != nil {
		return nil, err
	}
	labeled, err := e.LabelReactions(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(reported) == 0 && len(labeled) == 0 {
		return nil, nil
	}

	labelSet := make(map[string]string, len(labeled))
	for _, lr := range labeled {
		labelSet[foldTerm(lr.Reaction)] = lr.Reaction
	}
	reportedSet := make(map[string]struct{}, len(reported))

	report := &DisparityReport{
		Confirmed:   []ReactionSignal{},
		Emerging:    []ReactionSignal{},
		Unconfirmed: []string{},
	}

	for _, r := range reported {
		folded := foldTerm(r.Reaction)
		if _, dup := reportedSet[folded]; dup {
			continue
		}
		reportedSet[folded] = struct{}{}

		signal := ReactionSignal{Reaction: r.Reaction, ReportCount: r.ReportCount}
		if _, onLabel := labelSet[folded]; onLabel {
			report.Confirmed = append(report.Confirmed, signal)
		} else {
			report.Emerging = append(report.Emerging, signal)
		}
	}

	for folded, term := range labelSet {
		if _, wasReported := reportedSet[folded]; !wasReported {
			report.Unconfirmed = append(report.Unconfirmed, term)
		}
	}

	sort.Slice(report.Confirmed, func(i, j int) bool {
		return report.Confirmed[i].Reaction < report.Confirmed[j].Reaction
	})
	sort.Slice(report.Emerging, func(i, j int) bool {
		if report.Emerging[i].ReportCount != report.Emerging[j].ReportCount {
			return report.Emerging[i].ReportCount > report.Emerging[j].ReportCount
		}
		return report.Emerging[i].Reaction < report.Emerging[j].Reaction
	})
	sort.Strings(report.Unconfirmed)

	if len(reportedSet) > 0 {
		report.Score = float64(len(report.Emerging)) / float64(len(reportedSet))
	}
	return report, nil
}

// DrugSummary is the full query view of one drug
type DrugSummary struct {
	Identity       *DrugIdentity       `json:"identity"`
	Interactions   []InteractionInfo   `json:"interactions"`
	CoReported     []CoReportedInfo    `json:"co_reported"`
	Reactions      []ReactionInfo      `json:"reactions"`
	LabelReactions []LabelReactionInfo `json:"label_reactions"`
	Ingredients    []IngredientInfo    `json:"ingredients"`
	Disparity      *DisparityReport    `json:"disparity,omitempty"`
}

// Summary composes every accessor into one view. Returns nil when the name
// does not resolve.
func (e *Engine) Summary(ctx context.Context, name string) (*DrugSummary, error) {
	identity, err := e.Identity(ctx, name)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return nil, nil
	}

	summary := &DrugSummary{Identity: identity}
	if summary.Interactions, err = e.Interactions(ctx, name); err != nil {
		return nil, err
	}
	if summary.CoReported, err = e.CoReported(ctx, name); err != nil {
		return nil, err
	}
	if summary.Reactions, err = e.Reactions(ctx, name); err != nil {
		return nil, err
	}
	if summary.LabelReactions, err = e.LabelReactions(ctx, name); err != nil {
		return nil, err
	}
	if summary.Ingredients, err = e.Ingredients(ctx, name); err != nil {
		return nil, err
	}
	if summary.Disparity, err = e.Disparity(ctx, name); err != nil {
		return nil, err
	}
	return summary, nil
}
