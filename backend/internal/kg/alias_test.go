package kg

import (
	"context"
	"testing"
)

func seedDrug(t *testing.T, store *Store, id string, props Properties) {
	t.Helper()
	if err := store.UpsertNode(context.Background(), id, NodeDrug, props); err != nil {
		t.Fatalf("seeding drug %s failed: %v", id, err)
	}
}

func TestRebuildAliases_Completeness(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	seedDrug(t, store, "1191", Properties{
		"generic_name": "Aspirin",
		"rxcui":        "1191",
		"brand_names":  []string{"Bayer", "Ecotrin"},
	})

	count, err := store.RebuildAliases(ctx)
	if err != nil {
		t.Fatalf("RebuildAliases failed: %v", err)
	}
	// id and rxcui fold to the same alias
	if count != 4 {
		t.Errorf("Expected 4 aliases, got %d", count)
	}

	for _, alias := range []string{"1191", "aspirin", "bayer", "ecotrin"} {
		nodeID, err := store.ResolveAlias(ctx, alias)
		if err != nil {
			t.Fatalf("ResolveAlias(%q) failed: %v", alias, err)
		}
		if nodeID != "1191" {
			t.Errorf("Expected alias %q to resolve to 1191, got %q", alias, nodeID)
		}
	}
}

func TestRebuildAliases_NoDuplicatesOnRebuild(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	seedDrug(t, store, "ibuprofen", Properties{
		"generic_name": "ibuprofen",
		"brand_names":  []string{"Advil"},
	})

	first, err := store.RebuildAliases(ctx)
	if err != nil {
		t.Fatalf("first rebuild failed: %v", err)
	}
	second, err := store.RebuildAliases(ctx)
	if err != nil {
		t.Fatalf("second rebuild failed: %v", err)
	}
	if first != second {
		t.Errorf("Rebuild is not stable: %d then %d aliases", first, second)
	}
}

func TestRebuildAliases_CollisionFirstWriterWins(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	// Two drugs claim the same brand name
	seedDrug(t, store, "a", Properties{
		"generic_name": "drug-a",
		"brand_names":  []string{"Shared"},
	})
	seedDrug(t, store, "b", Properties{
		"generic_name": "drug-b",
		"brand_names":  []string{"Shared"},
	})

	if _, err := store.RebuildAliases(ctx); err != nil {
		t.Fatalf("RebuildAliases failed: %v", err)
	}

	nodeID, err := store.ResolveAlias(ctx, "shared")
	if err != nil {
		t.Fatalf("ResolveAlias failed: %v", err)
	}
	if nodeID != "a" && nodeID != "b" {
		t.Errorf("Shared alias resolved to unexpected node %q", nodeID)
	}

	// The loser keeps its own aliases
	for _, alias := range []string{"drug-a", "drug-b"} {
		if id, _ := store.ResolveAlias(ctx, alias); id == "" {
			t.Errorf("Expected alias %q to survive the collision", alias)
		}
	}
}

func TestResolveAlias_UnknownName(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	nodeID, err := store.ResolveAlias(ctx, "never-heard-of-it")
	if err != nil {
		t.Fatalf("ResolveAlias failed: %v", err)
	}
	if nodeID != "" {
		t.Errorf("Expected empty result, got %q", nodeID)
	}
}
