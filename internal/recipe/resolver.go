// Package recipe works out which ingredients a sale actually consumed.
package recipe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cafecogs/backend/internal/domain"
	"cafecogs/backend/internal/timeline"
)

var ErrNoRecipe = errors.New("no recipe in effect")

// Source is the slice of the repository the resolver reads from.
type Source interface {
	GetSellable(ctx context.Context, id string) (*domain.Sellable, error)
	ListRecipes(ctx context.Context, productID string) ([]domain.Recipe, error)
	ListOverrides(ctx context.Context, sellableID string) ([]domain.SellableOverride, error)
	ListModifierRecipes(ctx context.Context, modifierOptionID string) ([]domain.ModifierOptionRecipe, error)
}

type Resolver struct {
	source Source
}

func NewResolver(source Source) *Resolver {
	return &Resolver{source: source}
}

type Resolution struct {
	RecipeID   string
	OverrideID string
	Lines      []domain.ResolvedLine
}

// ResolveSellable returns the effective ingredient list of a sellable at t:
// the product's base recipe with the sellable's override applied on top.
func (r *Resolver) ResolveSellable(ctx context.Context, sellableID string, at time.Time) (*Resolution, error) {
	sellable, err := r.source.GetSellable(ctx, sellableID)
	if err != nil {
		return nil, err
	}

	recipes, err := r.source.ListRecipes(ctx, sellable.ProductID)
	if err != nil {
		return nil, err
	}
	base, ok := timeline.New(recipes).At(at)
	if !ok {
		return nil, fmt.Errorf("%w: product %s at %s", ErrNoRecipe, sellable.ProductID, at.Format(time.RFC3339))
	}

	res := &Resolution{RecipeID: base.ID, Lines: fromRecipeLines(base.Lines)}

	overrides, err := r.source.ListOverrides(ctx, sellable.ID)
	if err != nil {
		return nil, err
	}
	if override, ok := timeline.New(overrides).At(at); ok {
		res.OverrideID = override.ID
		res.Lines = ApplyOverride(res.Lines, override.Ops)
	}
	return res, nil
}

// ResolveModifier returns the ingredients a single unit of a modifier option
// adds at t. Modifier options have no override layer.
func (r *Resolver) ResolveModifier(ctx context.Context, modifierOptionID string, at time.Time) (*Resolution, error) {
	versions, err := r.source.ListModifierRecipes(ctx, modifierOptionID)
	if err != nil {
		return nil, err
	}
	current, ok := timeline.New(versions).At(at)
	if !ok {
		return nil, fmt.Errorf("%w: modifier option %s at %s", ErrNoRecipe, modifierOptionID, at.Format(time.RFC3339))
	}
	return &Resolution{RecipeID: current.ID, Lines: fromRecipeLines(current.Lines)}, nil
}

func fromRecipeLines(lines []domain.RecipeLine) []domain.ResolvedLine {
	out := make([]domain.ResolvedLine, 0, len(lines))
	for _, line := range lines {
		out = append(out, domain.ResolvedLine{
			InventoryItemID: line.InventoryItemID,
			Quantity:        line.Quantity,
			Unit:            line.Unit,
			LossPct:         line.LossPct,
		})
	}
	return out
}
