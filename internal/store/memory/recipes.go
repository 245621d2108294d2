package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"cafecogs/backend/internal/domain"
	"cafecogs/backend/internal/store"
	"cafecogs/backend/internal/timeline"
	"cafecogs/backend/internal/xid"
)

// placeVersion checks candidate against its siblings. When supersede is a
// valid index, that sibling must be open-ended and is closed at the
// candidate's start first; the closed copy is returned for the caller to
// store.
func placeVersion[T timeline.Versioned](siblings []T, supersede int, candidate T, closeAt func(T, time.Time) T) (closed *T, err error) {
	if supersede >= 0 {
		prev := siblings[supersede]
		prevFrom, prevTo := prev.Window()
		from, _ := candidate.Window()
		if prevTo != nil || from == nil {
			return nil, fmt.Errorf("%w: only an open version can be superseded by a dated one", store.ErrConflict)
		}
		if prevFrom != nil && !prevFrom.Before(*from) {
			return nil, fmt.Errorf("%w: new version must start after the version it supersedes", store.ErrConflict)
		}
		c := closeAt(prev, *from)
		closed = &c
		siblings = slices.Clone(siblings)
		siblings[supersede] = c
	}
	if err := timeline.New(siblings).Check(candidate); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrConflict, err)
	}
	return closed, nil
}

func (s *Store) recipesFor(productID string) []domain.Recipe {
	result := make([]domain.Recipe, 0, 4)
	for _, r := range s.recipes {
		if productID == "" || r.ProductID == productID {
			result = append(result, cloneRecipe(r))
		}
	}
	slices.SortFunc(result, byCreated(func(r domain.Recipe) time.Time { return r.CreatedAt }, func(r domain.Recipe) string { return r.ID }))
	return result
}

func (s *Store) ListRecipes(_ context.Context, productID string) ([]domain.Recipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recipesFor(productID), nil
}

func (s *Store) GetRecipe(_ context.Context, id string) (*domain.Recipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.recipes[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := cloneRecipe(r)
	return &out, nil
}

func (s *Store) CreateRecipe(_ context.Context, recipe domain.Recipe, supersedeID string) (*domain.Recipe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(recipe.Lines) == 0 {
		return nil, store.ErrInvalidInput
	}
	if _, ok := s.products[recipe.ProductID]; !ok {
		return nil, store.ErrNotFound
	}
	siblings := s.recipesFor(recipe.ProductID)
	idx := -1
	if supersedeID != "" {
		idx = slices.IndexFunc(siblings, func(r domain.Recipe) bool { return r.ID == supersedeID })
		if idx < 0 {
			return nil, store.ErrNotFound
		}
	}
	closed, err := placeVersion(siblings, idx, recipe, func(r domain.Recipe, at time.Time) domain.Recipe {
		r.EffectiveTo = &at
		r.UpdatedAt = time.Now().UTC()
		return r
	})
	if err != nil {
		return nil, err
	}

	if recipe.ID == "" {
		recipe.ID = xid.New("rcp")
	}
	now := time.Now().UTC()
	if recipe.CreatedAt.IsZero() {
		recipe.CreatedAt = now
	}
	recipe.UpdatedAt = now
	if closed != nil {
		s.recipes[closed.ID] = *closed
	}
	s.recipes[recipe.ID] = cloneRecipe(recipe)
	out := cloneRecipe(recipe)
	return &out, nil
}

func (s *Store) UpdateRecipe(_ context.Context, recipe domain.Recipe) (*domain.Recipe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.recipes[recipe.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if len(recipe.Lines) == 0 {
		return nil, store.ErrInvalidInput
	}
	existing.YieldQty = recipe.YieldQty
	existing.YieldUnit = recipe.YieldUnit
	existing.Notes = recipe.Notes
	existing.Lines = cloneLines(recipe.Lines)
	existing.UpdatedAt = time.Now().UTC()
	s.recipes[existing.ID] = existing
	out := cloneRecipe(existing)
	return &out, nil
}

func (s *Store) overridesFor(sellableID string) []domain.SellableOverride {
	result := make([]domain.SellableOverride, 0, 2)
	for _, o := range s.overrides {
		if sellableID == "" || o.SellableID == sellableID {
			result = append(result, cloneOverride(o))
		}
	}
	slices.SortFunc(result, byCreated(func(o domain.SellableOverride) time.Time { return o.CreatedAt }, func(o domain.SellableOverride) string { return o.ID }))
	return result
}

func (s *Store) ListOverrides(_ context.Context, sellableID string) ([]domain.SellableOverride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.overridesFor(sellableID), nil
}

func (s *Store) GetOverride(_ context.Context, id string) (*domain.SellableOverride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.overrides[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := cloneOverride(o)
	return &out, nil
}

func (s *Store) CreateOverride(_ context.Context, override domain.SellableOverride, supersedeID string) (*domain.SellableOverride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sellables[override.SellableID]; !ok {
		return nil, store.ErrNotFound
	}
	siblings := s.overridesFor(override.SellableID)
	idx := -1
	if supersedeID != "" {
		idx = slices.IndexFunc(siblings, func(o domain.SellableOverride) bool { return o.ID == supersedeID })
		if idx < 0 {
			return nil, store.ErrNotFound
		}
	}
	closed, err := placeVersion(siblings, idx, override, func(o domain.SellableOverride, at time.Time) domain.SellableOverride {
		o.EffectiveTo = &at
		o.UpdatedAt = time.Now().UTC()
		return o
	})
	if err != nil {
		return nil, err
	}

	if override.ID == "" {
		override.ID = xid.New("ovr")
	}
	now := time.Now().UTC()
	if override.CreatedAt.IsZero() {
		override.CreatedAt = now
	}
	override.UpdatedAt = now
	if closed != nil {
		s.overrides[closed.ID] = *closed
	}
	s.overrides[override.ID] = cloneOverride(override)
	out := cloneOverride(override)
	return &out, nil
}

func (s *Store) UpdateOverride(_ context.Context, override domain.SellableOverride) (*domain.SellableOverride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.overrides[override.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	existing.Notes = override.Notes
	existing.Ops = cloneOps(override.Ops)
	existing.UpdatedAt = time.Now().UTC()
	s.overrides[existing.ID] = existing
	out := cloneOverride(existing)
	return &out, nil
}

func (s *Store) modifierRecipesFor(optionID string) []domain.ModifierOptionRecipe {
	result := make([]domain.ModifierOptionRecipe, 0, 2)
	for _, m := range s.modifierRecipes {
		if optionID == "" || m.ModifierOptionID == optionID {
			result = append(result, cloneModifierRecipe(m))
		}
	}
	slices.SortFunc(result, func(a, b domain.ModifierOptionRecipe) int {
		if a.ModifierOptionID != b.ModifierOptionID {
			return strings.Compare(a.ModifierOptionID, b.ModifierOptionID)
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return result
}

func (s *Store) ListModifierRecipes(_ context.Context, modifierOptionID string) ([]domain.ModifierOptionRecipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modifierRecipesFor(modifierOptionID), nil
}

func (s *Store) GetModifierRecipe(_ context.Context, id string) (*domain.ModifierOptionRecipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.modifierRecipes[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := cloneModifierRecipe(m)
	return &out, nil
}

func (s *Store) CreateModifierRecipe(_ context.Context, recipe domain.ModifierOptionRecipe, supersedeID string) (*domain.ModifierOptionRecipe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(recipe.Lines) == 0 {
		return nil, store.ErrInvalidInput
	}
	if _, ok := s.modifierOptions[recipe.ModifierOptionID]; !ok {
		return nil, store.ErrNotFound
	}
	siblings := s.modifierRecipesFor(recipe.ModifierOptionID)
	idx := -1
	if supersedeID != "" {
		idx = slices.IndexFunc(siblings, func(m domain.ModifierOptionRecipe) bool { return m.ID == supersedeID })
		if idx < 0 {
			return nil, store.ErrNotFound
		}
	}
	closed, err := placeVersion(siblings, idx, recipe, func(m domain.ModifierOptionRecipe, at time.Time) domain.ModifierOptionRecipe {
		m.EffectiveTo = &at
		m.UpdatedAt = time.Now().UTC()
		return m
	})
	if err != nil {
		return nil, err
	}

	if recipe.ID == "" {
		recipe.ID = xid.New("mrc")
	}
	now := time.Now().UTC()
	if recipe.CreatedAt.IsZero() {
		recipe.CreatedAt = now
	}
	recipe.UpdatedAt = now
	if closed != nil {
		s.modifierRecipes[closed.ID] = *closed
	}
	s.modifierRecipes[recipe.ID] = cloneModifierRecipe(recipe)
	out := cloneModifierRecipe(recipe)
	return &out, nil
}

func (s *Store) UpdateModifierRecipe(_ context.Context, recipe domain.ModifierOptionRecipe) (*domain.ModifierOptionRecipe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.modifierRecipes[recipe.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if len(recipe.Lines) == 0 {
		return nil, store.ErrInvalidInput
	}
	existing.Lines = cloneLines(recipe.Lines)
	existing.UpdatedAt = time.Now().UTC()
	s.modifierRecipes[existing.ID] = existing
	out := cloneModifierRecipe(existing)
	return &out, nil
}

func cloneRecipe(src domain.Recipe) domain.Recipe {
	out := src
	out.EffectiveFrom = cloneTime(src.EffectiveFrom)
	out.EffectiveTo = cloneTime(src.EffectiveTo)
	out.Lines = cloneLines(src.Lines)
	return out
}

func cloneOverride(src domain.SellableOverride) domain.SellableOverride {
	out := src
	out.EffectiveFrom = cloneTime(src.EffectiveFrom)
	out.EffectiveTo = cloneTime(src.EffectiveTo)
	out.Ops = cloneOps(src.Ops)
	return out
}

func cloneModifierRecipe(src domain.ModifierOptionRecipe) domain.ModifierOptionRecipe {
	out := src
	out.EffectiveFrom = cloneTime(src.EffectiveFrom)
	out.EffectiveTo = cloneTime(src.EffectiveTo)
	out.Lines = cloneLines(src.Lines)
	return out
}
