package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cafecogs/backend/internal/domain"
	"cafecogs/backend/internal/recipe"
	"cafecogs/backend/internal/store"
	"cafecogs/backend/internal/timeline"
	"cafecogs/backend/internal/units"
	"cafecogs/backend/internal/validate"
	"cafecogs/backend/internal/xid"
)

// planVersion decides where candidate goes among its siblings. A new
// open-ended version that starts after the current open one supersedes it;
// anything else must fit without overlapping.
func planVersion[T timeline.Versioned](siblings []T, candidate T, id func(T) string, closeAt func(T, time.Time) T) (string, error) {
	tl := timeline.New(siblings)
	from, to := candidate.Window()

	supersedeID := ""
	if open, ok := tl.Open(); ok && from != nil && to == nil {
		openFrom, _ := open.Window()
		if openFrom == nil || openFrom.Before(*from) {
			supersedeID = id(open)
			rest := make([]T, 0, len(siblings))
			for _, v := range siblings {
				if id(v) == supersedeID {
					v = closeAt(v, *from)
				}
				rest = append(rest, v)
			}
			tl = timeline.New(rest)
		}
	}
	if err := tl.Check(candidate); err != nil {
		return "", fmt.Errorf("%w: %v", store.ErrConflict, err)
	}
	return supersedeID, nil
}

// checkLines makes sure every ingredient exists and its unit converts to the
// unit the item is stocked in.
func (s *Service) checkLines(ctx context.Context, field string, lines []domain.RecipeLine) ([]domain.RecipeLine, error) {
	out := make([]domain.RecipeLine, 0, len(lines))
	for i, line := range lines {
		line.InventoryItemID = strings.TrimSpace(line.InventoryItemID)
		line.Unit = units.Normalize(line.Unit)
		if err := s.checkIngredient(ctx, fmt.Sprintf("%s[%d]", field, i), line.InventoryItemID, line.Unit); err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, nil
}

func (s *Service) checkIngredient(ctx context.Context, field string, itemID string, unit string) error {
	item, err := s.repo.GetInventoryItem(ctx, itemID)
	if errors.Is(err, store.ErrNotFound) {
		return invalid("%s: unknown inventory item %s", field, itemID)
	}
	if err != nil {
		return err
	}
	if _, err := units.Convert(1, unit, item.Unit); err != nil {
		return invalid("%s: %v", field, err)
	}
	return nil
}

func checkWindow(from, to *time.Time) error {
	if from != nil && to != nil && !from.Before(*to) {
		return invalid("effective_from must be before effective_to")
	}
	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func (s *Service) ListRecipes(ctx context.Context, productID string) ([]domain.Recipe, error) {
	return s.repo.ListRecipes(ctx, strings.TrimSpace(productID))
}

func (s *Service) GetRecipe(ctx context.Context, id string) (domain.Recipe, error) {
	r, err := s.repo.GetRecipe(ctx, id)
	if err != nil {
		return domain.Recipe{}, err
	}
	return *r, nil
}

func (s *Service) CreateRecipe(ctx context.Context, req domain.RecipeCreateRequest) (domain.Recipe, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.Recipe{}, err
	}
	if err := validate.Struct(req); err != nil {
		return domain.Recipe{}, err
	}
	if err := checkWindow(req.EffectiveFrom, req.EffectiveTo); err != nil {
		return domain.Recipe{}, err
	}
	if _, err := s.repo.GetProduct(ctx, req.ProductID); err != nil {
		return domain.Recipe{}, err
	}
	lines, err := s.checkLines(ctx, "lines", req.Lines)
	if err != nil {
		return domain.Recipe{}, err
	}

	now := s.now()
	candidate := domain.Recipe{
		ID:            xid.New("rcp"),
		ProductID:     req.ProductID,
		EffectiveFrom: utcPtr(req.EffectiveFrom),
		EffectiveTo:   utcPtr(req.EffectiveTo),
		YieldQty:      req.YieldQty,
		YieldUnit:     units.Normalize(req.YieldUnit),
		Notes:         strings.TrimSpace(req.Notes),
		Lines:         lines,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	siblings, err := s.repo.ListRecipes(ctx, req.ProductID)
	if err != nil {
		return domain.Recipe{}, err
	}
	supersedeID, err := planVersion(siblings, candidate,
		func(r domain.Recipe) string { return r.ID },
		func(r domain.Recipe, at time.Time) domain.Recipe {
			r.EffectiveTo = &at
			return r
		})
	if err != nil {
		return domain.Recipe{}, err
	}

	created, err := s.repo.CreateRecipe(ctx, candidate, supersedeID)
	if err != nil {
		return domain.Recipe{}, err
	}
	s.logAudit(ctx, "recipe_create", "recipe", created.ID, fmt.Sprintf("product=%s,lines=%d,supersedes=%s", created.ProductID, len(created.Lines), supersedeID))
	return *created, nil
}

func (s *Service) UpdateRecipe(ctx context.Context, id string, req domain.RecipeUpdateRequest) (domain.Recipe, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.Recipe{}, err
	}
	if err := validate.Struct(req); err != nil {
		return domain.Recipe{}, err
	}
	existing, err := s.repo.GetRecipe(ctx, id)
	if err != nil {
		return domain.Recipe{}, err
	}
	lines, err := s.checkLines(ctx, "lines", req.Lines)
	if err != nil {
		return domain.Recipe{}, err
	}

	updated := *existing
	updated.Lines = lines
	if req.YieldQty != nil {
		updated.YieldQty = *req.YieldQty
	}
	if req.YieldUnit != nil {
		updated.YieldUnit = units.Normalize(*req.YieldUnit)
	}
	if req.Notes != nil {
		updated.Notes = strings.TrimSpace(*req.Notes)
	}

	saved, err := s.repo.UpdateRecipe(ctx, updated)
	if err != nil {
		return domain.Recipe{}, err
	}
	s.logAudit(ctx, "recipe_update", "recipe", saved.ID, fmt.Sprintf("lines=%d", len(saved.Lines)))
	return *saved, nil
}

func (s *Service) ListOverrides(ctx context.Context, sellableID string) ([]domain.SellableOverride, error) {
	return s.repo.ListOverrides(ctx, strings.TrimSpace(sellableID))
}

func (s *Service) checkOps(ctx context.Context, ops []domain.OverrideOp) error {
	if idx, msg := recipe.ValidateOps(ops); idx >= 0 {
		return invalid("ops[%d]: %s", idx, msg)
	}
	for i, op := range ops {
		if op.Op != domain.OpAdd && op.Op != domain.OpReplace {
			continue
		}
		unit := units.Normalize(*op.Unit)
		*op.Unit = unit
		if err := s.checkIngredient(ctx, fmt.Sprintf("ops[%d]", i), *op.InventoryItemID, unit); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) CreateOverride(ctx context.Context, req domain.OverrideCreateRequest) (domain.SellableOverride, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.SellableOverride{}, err
	}
	if err := validate.Struct(req); err != nil {
		return domain.SellableOverride{}, err
	}
	if err := checkWindow(req.EffectiveFrom, req.EffectiveTo); err != nil {
		return domain.SellableOverride{}, err
	}
	if _, err := s.repo.GetSellable(ctx, req.SellableID); err != nil {
		return domain.SellableOverride{}, err
	}
	if err := s.checkOps(ctx, req.Ops); err != nil {
		return domain.SellableOverride{}, err
	}

	now := s.now()
	candidate := domain.SellableOverride{
		ID:            xid.New("ovr"),
		SellableID:    req.SellableID,
		EffectiveFrom: utcPtr(req.EffectiveFrom),
		EffectiveTo:   utcPtr(req.EffectiveTo),
		Notes:         strings.TrimSpace(req.Notes),
		Ops:           req.Ops,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if candidate.Ops == nil {
		candidate.Ops = []domain.OverrideOp{}
	}

	siblings, err := s.repo.ListOverrides(ctx, req.SellableID)
	if err != nil {
		return domain.SellableOverride{}, err
	}
	supersedeID, err := planVersion(siblings, candidate,
		func(o domain.SellableOverride) string { return o.ID },
		func(o domain.SellableOverride, at time.Time) domain.SellableOverride {
			o.EffectiveTo = &at
			return o
		})
	if err != nil {
		return domain.SellableOverride{}, err
	}

	created, err := s.repo.CreateOverride(ctx, candidate, supersedeID)
	if err != nil {
		return domain.SellableOverride{}, err
	}
	s.logAudit(ctx, "override_create", "sellable_override", created.ID, fmt.Sprintf("sellable=%s,ops=%d,supersedes=%s", created.SellableID, len(created.Ops), supersedeID))
	return *created, nil
}

func (s *Service) UpdateOverride(ctx context.Context, id string, req domain.OverrideUpdateRequest) (domain.SellableOverride, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.SellableOverride{}, err
	}
	if err := validate.Struct(req); err != nil {
		return domain.SellableOverride{}, err
	}
	existing, err := s.repo.GetOverride(ctx, id)
	if err != nil {
		return domain.SellableOverride{}, err
	}
	if err := s.checkOps(ctx, req.Ops); err != nil {
		return domain.SellableOverride{}, err
	}

	updated := *existing
	updated.Ops = req.Ops
	if updated.Ops == nil {
		updated.Ops = []domain.OverrideOp{}
	}
	if req.Notes != nil {
		updated.Notes = strings.TrimSpace(*req.Notes)
	}

	saved, err := s.repo.UpdateOverride(ctx, updated)
	if err != nil {
		return domain.SellableOverride{}, err
	}
	s.logAudit(ctx, "override_update", "sellable_override", saved.ID, fmt.Sprintf("ops=%d", len(saved.Ops)))
	return *saved, nil
}

func (s *Service) ListModifierRecipes(ctx context.Context, modifierOptionID string) ([]domain.ModifierOptionRecipe, error) {
	return s.repo.ListModifierRecipes(ctx, strings.TrimSpace(modifierOptionID))
}

func (s *Service) CreateModifierRecipe(ctx context.Context, req domain.ModifierRecipeCreateRequest) (domain.ModifierOptionRecipe, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.ModifierOptionRecipe{}, err
	}
	if err := validate.Struct(req); err != nil {
		return domain.ModifierOptionRecipe{}, err
	}
	if err := checkWindow(req.EffectiveFrom, req.EffectiveTo); err != nil {
		return domain.ModifierOptionRecipe{}, err
	}
	if _, err := s.repo.GetModifierOption(ctx, req.ModifierOptionID); err != nil {
		return domain.ModifierOptionRecipe{}, err
	}
	lines, err := s.checkLines(ctx, "lines", req.Lines)
	if err != nil {
		return domain.ModifierOptionRecipe{}, err
	}

	now := s.now()
	candidate := domain.ModifierOptionRecipe{
		ID:               xid.New("mrc"),
		ModifierOptionID: req.ModifierOptionID,
		EffectiveFrom:    utcPtr(req.EffectiveFrom),
		EffectiveTo:      utcPtr(req.EffectiveTo),
		Lines:            lines,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	siblings, err := s.repo.ListModifierRecipes(ctx, req.ModifierOptionID)
	if err != nil {
		return domain.ModifierOptionRecipe{}, err
	}
	supersedeID, err := planVersion(siblings, candidate,
		func(m domain.ModifierOptionRecipe) string { return m.ID },
		func(m domain.ModifierOptionRecipe, at time.Time) domain.ModifierOptionRecipe {
			m.EffectiveTo = &at
			return m
		})
	if err != nil {
		return domain.ModifierOptionRecipe{}, err
	}

	created, err := s.repo.CreateModifierRecipe(ctx, candidate, supersedeID)
	if err != nil {
		return domain.ModifierOptionRecipe{}, err
	}
	s.logAudit(ctx, "modifier_recipe_create", "modifier_recipe", created.ID, fmt.Sprintf("modifier_option=%s,lines=%d,supersedes=%s", created.ModifierOptionID, len(created.Lines), supersedeID))
	return *created, nil
}

func (s *Service) UpdateModifierRecipe(ctx context.Context, id string, req domain.ModifierRecipeUpdateRequest) (domain.ModifierOptionRecipe, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.ModifierOptionRecipe{}, err
	}
	if err := validate.Struct(req); err != nil {
		return domain.ModifierOptionRecipe{}, err
	}
	existing, err := s.repo.GetModifierRecipe(ctx, id)
	if err != nil {
		return domain.ModifierOptionRecipe{}, err
	}
	lines, err := s.checkLines(ctx, "lines", req.Lines)
	if err != nil {
		return domain.ModifierOptionRecipe{}, err
	}

	updated := *existing
	updated.Lines = lines
	saved, err := s.repo.UpdateModifierRecipe(ctx, updated)
	if err != nil {
		return domain.ModifierOptionRecipe{}, err
	}
	s.logAudit(ctx, "modifier_recipe_update", "modifier_recipe", saved.ID, fmt.Sprintf("lines=%d", len(saved.Lines)))
	return *saved, nil
}

// Resolve reports the ingredient list a sale of sellableID consumes at t.
func (s *Service) Resolve(ctx context.Context, sellableID string, at time.Time) (domain.ResolveResponse, error) {
	sellableID = strings.TrimSpace(sellableID)
	if sellableID == "" {
		return domain.ResolveResponse{}, invalid("sellable_id is required")
	}
	if at.IsZero() {
		at = s.now()
	}
	res, err := s.resolver.ResolveSellable(ctx, sellableID, at)
	if err != nil {
		return domain.ResolveResponse{}, err
	}
	return domain.ResolveResponse{
		SellableID: sellableID,
		At:         at.UTC(),
		RecipeID:   res.RecipeID,
		OverrideID: res.OverrideID,
		Lines:      res.Lines,
	}, nil
}
