package builders

import (
	"context"
	"errors"
	"strings"
	"testing"

	"trupharma/backend/internal/kg"
	"trupharma/backend/internal/source"
	pkgerrors "trupharma/backend/pkg/errors"
)

func TestBuildInteractions_SymmetricEdges(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	drugs := seedTestDrugs(t, store, []kg.DrugRecord{
		{NodeID: "1191", GenericName: "aspirin", RxCUI: "1191"},
		{NodeID: "warfarin", GenericName: "warfarin"},
	})

	labels := &fakeLabels{records: map[string][]source.LabelRecord{
		source.LabelSearchByGeneric("aspirin"): {{
			DrugInteractionsTable: []string{"Warfarin: increased bleeding risk."},
		}},
	}}

	p := NewPipeline(store, &fakeVocabulary{}, labels, &fakeCompositions{}, &fakeAggregates{}, nil, testOptions())
	if err := p.BuildInteractions(ctx, drugs); err != nil {
		t.Fatalf("BuildInteractions failed: %v", err)
	}

	edges, _ := store.CountEdges(ctx, kg.EdgeInteractsWith)
	if edges != 2 {
		t.Errorf("Expected both directed edges, got %d", edges)
	}
}

func TestBuildInteractions_ExcludesSelfMentions(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	drugs := seedTestDrugs(t, store, []kg.DrugRecord{
		{NodeID: "1191", GenericName: "aspirin", RxCUI: "1191", BrandNames: []string{"Bayer"}},
	})

	labels := &fakeLabels{records: map[string][]source.LabelRecord{
		source.LabelSearchByGeneric("aspirin"): {{
			DrugInteractions: []string{"Aspirin (Bayer) should not be combined with aspirin-containing products."},
		}},
	}}

	p := NewPipeline(store, &fakeVocabulary{}, labels, &fakeCompositions{}, &fakeAggregates{}, nil, testOptions())
	if err := p.BuildInteractions(ctx, drugs); err != nil {
		t.Fatalf("BuildInteractions failed: %v", err)
	}

	edges, _ := store.CountEdges(ctx, kg.EdgeInteractsWith)
	if edges != 0 {
		t.Errorf("Expected no self-interaction edges, got %d", edges)
	}
}

func TestBuildInteractions_ExtractorUnionsWithDictionary(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	drugs := seedTestDrugs(t, store, []kg.DrugRecord{
		{NodeID: "1191", GenericName: "aspirin", RxCUI: "1191"},
		{NodeID: "warfarin", GenericName: "warfarin"},
		{NodeID: "lisinopril", GenericName: "lisinopril"},
	})

	// Prose mentions warfarin (dictionary hit); the extractor additionally
	// surfaces lisinopril, which the dictionary pass missed
	prose := "Concomitant use with warfarin increases bleeding risk. " +
		"ACE inhibitor effects may be diminished."
	labels := &fakeLabels{records: map[string][]source.LabelRecord{
		source.LabelSearchByGeneric("aspirin"): {{
			DrugInteractions: []string{prose},
		}},
	}}
	extractor := &fakeExtractor{names: []string{"lisinopril"}}

	p := NewPipeline(store, &fakeVocabulary{}, labels, &fakeCompositions{}, &fakeAggregates{}, extractor, testOptions())
	if err := p.BuildInteractions(ctx, drugs[:1]); err != nil {
		t.Fatalf("BuildInteractions failed: %v", err)
	}

	if extractor.calls != 1 {
		t.Errorf("Expected 1 extractor call, got %d", extractor.calls)
	}
	edges, _ := store.CountEdges(ctx, kg.EdgeInteractsWith)
	// warfarin and lisinopril, both directions each
	if edges != 4 {
		t.Errorf("Expected 4 directed edges, got %d", edges)
	}
}

func TestBuildInteractions_ShortProseSkipsExtractor(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	drugs := seedTestDrugs(t, store, []kg.DrugRecord{
		{NodeID: "1191", GenericName: "aspirin", RxCUI: "1191"},
	})

	labels := &fakeLabels{records: map[string][]source.LabelRecord{
		source.LabelSearchByGeneric("aspirin"): {{
			DrugInteractions: []string{"See section 7."},
		}},
	}}
	extractor := &fakeExtractor{names: []string{"warfarin"}}

	p := NewPipeline(store, &fakeVocabulary{}, labels, &fakeCompositions{}, &fakeAggregates{}, extractor, testOptions())
	if err := p.BuildInteractions(ctx, drugs); err != nil {
		t.Fatalf("BuildInteractions failed: %v", err)
	}
	if extractor.calls != 0 {
		t.Errorf("Expected extractor to be skipped for short prose, got %d calls", extractor.calls)
	}
}

func TestBuildInteractions_ExtractorFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	drugs := seedTestDrugs(t, store, []kg.DrugRecord{
		{NodeID: "1191", GenericName: "aspirin", RxCUI: "1191"},
		{NodeID: "warfarin", GenericName: "warfarin"},
	})

	prose := strings.Repeat("Concomitant use with warfarin increases bleeding risk. ", 2)
	labels := &fakeLabels{records: map[string][]source.LabelRecord{
		source.LabelSearchByGeneric("aspirin"): {{
			DrugInteractions: []string{prose},
		}},
	}}
	extractor := &fakeExtractor{err: errors.New("model unavailable")}

	p := NewPipeline(store, &fakeVocabulary{}, labels, &fakeCompositions{}, &fakeAggregates{}, extractor, testOptions())
	if err := p.BuildInteractions(ctx, drugs[:1]); err != nil {
		t.Fatalf("BuildInteractions failed: %v", err)
	}

	// The dictionary hit survives the extractor failure
	edges, _ := store.CountEdges(ctx, kg.EdgeInteractsWith)
	if edges != 2 {
		t.Errorf("Expected dictionary edges despite extractor failure, got %d", edges)
	}
}

func TestBuildReports_ReactionsAndCoReported(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	drugs := seedTestDrugs(t, store, []kg.DrugRecord{
		{NodeID: "1191", GenericName: "aspirin", RxCUI: "1191"},
		{NodeID: "warfarin", GenericName: "warfarin"},
	})

	search := source.EventSearch("aspirin", "1191")
	aggregates := &fakeAggregates{results: map[string]map[string][]source.TermCount{
		source.FieldCoReportedDrug: {search: {
			{Term: "warfarin", Count: 150},
			{Term: "aspirin", Count: 120}, // self, must be skipped
		}},
		source.FieldReactionTerm: {search: {
			{Term: "Nausea", Count: 120},
			{Term: "Dizziness", Count: 80},
		}},
	}}

	p := NewPipeline(store, &fakeVocabulary{}, &fakeLabels{}, &fakeCompositions{}, aggregates, nil, testOptions())
	if err := p.BuildReports(ctx, drugs[:1]); err != nil {
		t.Fatalf("BuildReports failed: %v", err)
	}

	coEdges, _ := store.CountEdges(ctx, kg.EdgeCoReportedWith)
	if coEdges != 1 {
		t.Errorf("Expected 1 co-reported edge, got %d", coEdges)
	}
	reactions, _ := store.CountNodes(ctx, kg.NodeReaction)
	if reactions != 2 {
		t.Errorf("Expected 2 reaction nodes, got %d", reactions)
	}
	reactionEdges, _ := store.CountEdges(ctx, kg.EdgeCausesReaction)
	if reactionEdges != 2 {
		t.Errorf("Expected 2 reaction edges, got %d", reactionEdges)
	}

	node, err := store.GetNode(ctx, kg.ReactionNodeID("Nausea"))
	if err != nil || node == nil {
		t.Fatalf("Reaction node missing: %v", err)
	}
	if got := node.Props.String("reactionmeddrapt", ""); got != "Nausea" {
		t.Errorf("Expected original term casing preserved, got %q", got)
	}
}

func TestBuildReports_StubIdempotence(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	drugs := seedTestDrugs(t, store, []kg.DrugRecord{
		{NodeID: "1191", GenericName: "aspirin", RxCUI: "1191"},
	})

	search := source.EventSearch("aspirin", "1191")
	aggregates := &fakeAggregates{results: map[string]map[string][]source.TermCount{
		source.FieldCoReportedDrug: {search: {
			{Term: "mysterydrug", Count: 40},
		}},
		source.FieldReactionTerm: {search: {
			{Term: "Nausea", Count: 10},
		}},
	}}

	p := NewPipeline(store, &fakeVocabulary{}, &fakeLabels{}, &fakeCompositions{}, aggregates, nil, testOptions())
	for i := 0; i < 2; i++ {
		if err := p.BuildReports(ctx, drugs); err != nil {
			t.Fatalf("BuildReports run %d failed: %v", i+1, err)
		}
	}

	// One stub plus the seeded drug, no matter how often the stage runs
	count, _ := store.CountNodes(ctx, kg.NodeDrug)
	if count != 2 {
		t.Errorf("Expected 2 drug nodes after repeated runs, got %d", count)
	}

	stub, err := store.GetNode(ctx, "mysterydrug")
	if err != nil || stub == nil {
		t.Fatalf("Stub node missing: %v", err)
	}
	if !stub.Props.Bool("stub", false) {
		t.Error("Expected stub marker on the stub node")
	}
}

func TestBuildLabelReactions_RequiresReactionNodes(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	drugs := seedTestDrugs(t, store, []kg.DrugRecord{
		{NodeID: "1191", GenericName: "aspirin", RxCUI: "1191"},
	})

	p := NewPipeline(store, &fakeVocabulary{}, &fakeLabels{}, &fakeCompositions{}, &fakeAggregates{}, nil, testOptions())
	err := p.BuildLabelReactions(ctx, drugs)
	if !errors.Is(err, pkgerrors.ErrNoReactionNodes) {
		t.Fatalf("Expected ErrNoReactionNodes, got %v", err)
	}
}

func TestBuildLabelReactions_MatchesWarningSections(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	drugs := seedTestDrugs(t, store, []kg.DrugRecord{
		{NodeID: "1191", GenericName: "aspirin", RxCUI: "1191"},
	})
	for _, term := range []string{"Nausea", "Rash", "Headache"} {
		if err := store.UpsertNode(ctx, kg.ReactionNodeID(term), kg.NodeReaction, kg.Properties{
			"reactionmeddrapt": term,
		}); err != nil {
			t.Fatalf("seeding reaction failed: %v", err)
		}
	}

	labels := &fakeLabels{records: map[string][]source.LabelRecord{
		source.LabelSearchByGeneric("aspirin"): {{
			AdverseReactions: []string{"Nausea and vomiting have been reported."},
			BoxedWarning:     []string{"Severe rash may occur."},
		}},
	}}

	p := NewPipeline(store, &fakeVocabulary{}, labels, &fakeCompositions{}, &fakeAggregates{}, nil, testOptions())
	if err := p.BuildLabelReactions(ctx, drugs); err != nil {
		t.Fatalf("BuildLabelReactions failed: %v", err)
	}

	edges, _ := store.CountEdges(ctx, kg.EdgeLabelWarnsReaction)
	if edges != 2 {
		t.Errorf("Expected 2 label warning edges, got %d", edges)
	}
}

func TestDictionaryMatcher(t *testing.T) {
	terms := map[string]struct{}{
		"aspirin":            {},
		"acetylsalicylic":    {},
		"st. john's wort":    {},
		"ab":                 {}, // below minimum length
		"warfarin":           {},
	}
	m := NewDictionaryMatcher(terms, minDrugNameLength)

	matched := m.MatchSet("Patients taking Aspirin with St. John's Wort or warfarin.")
	for _, want := range []string{"aspirin", "st. john's wort", "warfarin"} {
		if _, ok := matched[want]; !ok {
			t.Errorf("Expected match for %q", want)
		}
	}
	if _, ok := matched["ab"]; ok {
		t.Error("Short term should have been discarded")
	}
	if _, ok := matched["acetylsalicylic"]; ok {
		t.Error("Unmentioned term should not match")
	}

	// Word boundaries: no substring matches
	if hits := m.Match("aspirinophilia is not a drug"); len(hits) != 0 {
		t.Errorf("Expected no substring match, got %v", hits)
	}
}
