package builders

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"trupharma/backend/internal/kg"
)

// maxProductNDCs caps how many NDC codes a Product node carries
const maxProductNDCs = 10

// BuildComposition attaches active ingredients and product metadata to each
// seeded drug. Ingredients become shared Ingredient nodes so drugs with a
// common ingredient meet at the same node; product metadata becomes one
// Product node per drug.
func (p *Pipeline) BuildComposition(ctx context.Context, drugs []kg.DrugRecord) error {
	ingredients := 0
	products := 0

	for i, drug := range drugs {
		brand := ""
		if len(drug.BrandNames) > 0 {
			brand = drug.BrandNames[0]
		}
		comp, err := p.compositions.Fetch(ctx, drug.GenericName, brand, drug.RxCUI)
		p.pause()
		if err != nil {
			p.logger.Warn("composition fetch failed",
				zap.String("drug", drug.GenericName),
				zap.Error(err),
			)
			continue
		}
		if comp == nil {
			continue
		}

		for _, ing := range comp.ActiveIngredients {
			name := strings.ToLower(strings.TrimSpace(ing.Name))
			if name == "" {
				continue
			}
			if err := p.store.UpsertNode(ctx, name, kg.NodeIngredient, kg.Properties{
				"name": name,
			}); err != nil {
				p.logger.Warn("ingredient upsert failed",
					zap.String("ingredient", name),
					zap.Error(err),
				)
				continue
			}
			edgeProps := kg.Properties{"source": "ndc"}
			if ing.Strength != "" {
				edgeProps["strength"] = ing.Strength
			}
			if err := p.store.UpsertEdge(ctx, drug.NodeID, name, kg.EdgeHasActiveIngredient, edgeProps); err != nil {
				p.logger.Warn("ingredient edge upsert failed",
					zap.String("drug", drug.NodeID),
					zap.String("ingredient", name),
					zap.Error(err),
				)
				continue
			}
			ingredients++
		}

		if hasProductData(comp.DosageForms, comp.Routes, comp.Manufacturer, comp.MarketingCategory, comp.ProductNDCs) {
			ndcs := comp.ProductNDCs
			if len(ndcs) > maxProductNDCs {
				ndcs = ndcs[:maxProductNDCs]
			}
			productID := kg.ProductNodeID(drug.NodeID)
			if err := p.store.UpsertNode(ctx, productID, kg.NodeProduct, kg.Properties{
				"dosage_forms":       comp.DosageForms,
				"routes":             comp.Routes,
				"manufacturer":       comp.Manufacturer,
				"marketing_category": comp.MarketingCategory,
				"product_ndcs":       ndcs,
			}); err != nil {
				p.logger.Warn("product upsert failed",
					zap.String("drug", drug.NodeID),
					zap.Error(err),
				)
			} else if err := p.store.UpsertEdge(ctx, drug.NodeID, productID, kg.EdgeHasProduct, kg.Properties{
				"source": "ndc",
			}); err != nil {
				p.logger.Warn("product edge upsert failed",
					zap.String("drug", drug.NodeID),
					zap.Error(err),
				)
			} else {
				products++
			}
		}

		p.maybeCommit(ctx, i+1)
	}

	if err := p.store.Commit(ctx); err != nil {
		return err
	}
	p.logger.Info("composition stage complete",
		zap.Int("ingredient_edges", ingredients),
		zap.Int("products", products),
	)
	return nil
}

func hasProductData(forms, routes []string, manufacturer, category string, ndcs []string) bool {
	return len(forms) > 0 || len(routes) > 0 || manufacturer != "" || category != "" || len(ndcs) > 0
}
