package kg

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kg.db")
	store, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_UpsertNode_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	props := Properties{"generic_name": "aspirin", "rxcui": "1191"}
	if err := store.UpsertNode(ctx, "1191", NodeDrug, props); err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	if err := store.UpsertNode(ctx, "1191", NodeDrug, props); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	count, err := store.CountNodes(ctx, NodeDrug)
	if err != nil {
		t.Fatalf("CountNodes failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 drug node, got %d", count)
	}
}

func TestStore_UpsertNode_OverwritesProps(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	if err := store.UpsertNode(ctx, "1191", NodeDrug, Properties{"generic_name": "aspirin"}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if err := store.UpsertNode(ctx, "1191", NodeDrug, Properties{"generic_name": "aspirin", "confidence": "rxnorm"}); err != nil {
		t.Fatalf("re-upsert failed: %v", err)
	}

	node, err := store.GetNode(ctx, "1191")
	if err != nil {
		t.Fatalf("GetNode failed: %v", err)
	}
	if node == nil {
		t.Fatal("node not found after upsert")
	}
	if got := node.Props.String("confidence", ""); got != "rxnorm" {
		t.Errorf("Expected confidence 'rxnorm', got '%s'", got)
	}
}

func TestStore_UpsertNode_TypeConflict(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	if err := store.UpsertNode(ctx, "ibuprofen", NodeDrug, Properties{"generic_name": "ibuprofen"}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	err := store.UpsertNode(ctx, "ibuprofen", NodeIngredient, Properties{"name": "ibuprofen"})
	if err == nil {
		t.Fatal("Expected type conflict error")
	}
	var conflict NodeTypeConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("Expected NodeTypeConflictError, got %T", err)
	}
	if conflict.Existing != NodeDrug || conflict.Proposed != NodeIngredient {
		t.Errorf("Unexpected conflict detail: %+v", conflict)
	}
}

func TestStore_UpsertEdge_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	if err := store.UpsertNode(ctx, "a", NodeDrug, Properties{"generic_name": "a"}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if err := store.UpsertNode(ctx, "b", NodeDrug, Properties{"generic_name": "b"}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := store.UpsertEdge(ctx, "a", "b", EdgeInteractsWith, Properties{"source": "label"}); err != nil {
			t.Fatalf("edge upsert failed: %v", err)
		}
	}

	count, err := store.CountEdges(ctx, EdgeInteractsWith)
	if err != nil {
		t.Fatalf("CountEdges failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 edge, got %d", count)
	}

	// Opposite direction is a distinct edge
	if err := store.UpsertEdge(ctx, "b", "a", EdgeInteractsWith, Properties{"source": "label"}); err != nil {
		t.Fatalf("reverse edge upsert failed: %v", err)
	}
	count, _ = store.CountEdges(ctx, EdgeInteractsWith)
	if count != 2 {
		t.Errorf("Expected 2 directed edges, got %d", count)
	}
}

func TestStore_CommitStartsNextBatch(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	if err := store.UpsertNode(ctx, "first", NodeDrug, Properties{"generic_name": "first"}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if err := store.Commit(ctx); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	// The store must remain writable after a commit
	if err := store.UpsertNode(ctx, "second", NodeDrug, Properties{"generic_name": "second"}); err != nil {
		t.Fatalf("upsert after commit failed: %v", err)
	}

	count, err := store.CountNodes(ctx, NodeDrug)
	if err != nil {
		t.Fatalf("CountNodes failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 nodes, got %d", count)
	}
}

func TestStore_DrugNames(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	if err := store.UpsertNode(ctx, "1191", NodeDrug, Properties{
		"generic_name": "Aspirin",
		"brand_names":  []string{"Bayer", "Ecotrin"},
	}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if err := store.UpsertNode(ctx, "reaction:nausea", NodeReaction, Properties{"reactionmeddrapt": "Nausea"}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	names, err := store.DrugNames(ctx)
	if err != nil {
		t.Fatalf("DrugNames failed: %v", err)
	}

	for _, want := range []string{"1191", "aspirin", "bayer", "ecotrin"} {
		if _, ok := names[want]; !ok {
			t.Errorf("Expected name %q in dictionary", want)
		}
	}
	if _, ok := names["nausea"]; ok {
		t.Error("Reaction term leaked into drug name dictionary")
	}
}

func TestStore_ReactionTerms(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	for _, term := range []string{"Nausea", "Dizziness"} {
		if err := store.UpsertNode(ctx, ReactionNodeID(term), NodeReaction, Properties{
			"reactionmeddrapt": term,
		}); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
	}

	terms, err := store.ReactionTerms(ctx)
	if err != nil {
		t.Fatalf("ReactionTerms failed: %v", err)
	}
	if len(terms) != 2 {
		t.Fatalf("Expected 2 terms, got %d", len(terms))
	}
	if terms["nausea"] != "reaction:nausea" {
		t.Errorf("Expected nausea to map to its node id, got %q", terms["nausea"])
	}
}
