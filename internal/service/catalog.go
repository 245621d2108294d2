package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"cafecogs/backend/internal/catalog"
	"cafecogs/backend/internal/domain"
	"cafecogs/backend/internal/store"
	"cafecogs/backend/internal/validate"
	"cafecogs/backend/internal/xid"
)

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}
	req.ExternalItemID = strings.TrimSpace(req.ExternalItemID)
	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	if err := validate.Struct(req); err != nil {
		return domain.Product{}, err
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		ID:             xid.New("prd"),
		ExternalItemID: req.ExternalItemID,
		Name:           req.Name,
		Category:       req.Category,
		Active:         true,
		CreatedAt:      s.now(),
	})
	if err != nil {
		return domain.Product{}, err
	}
	s.logAudit(ctx, "product_create", "product", created.ID, fmt.Sprintf("external_item_id=%s,name=%s", created.ExternalItemID, created.Name))
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}
	if err := validate.Struct(req); err != nil {
		return domain.Product{}, err
	}

	existing, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, invalid("name must not be blank")
		}
		updated.Name = name
	}
	if req.Category != nil {
		updated.Category = strings.TrimSpace(*req.Category)
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}
	s.logAudit(ctx, "product_update", "product", saved.ID, fmt.Sprintf("active=%t,name=%s", saved.Active, saved.Name))
	return *saved, nil
}

func (s *Service) ListSellables(ctx context.Context, productID string) ([]domain.Sellable, error) {
	return s.repo.ListSellables(ctx, strings.TrimSpace(productID))
}

func (s *Service) CreateSellable(ctx context.Context, req domain.SellableCreateRequest) (domain.Sellable, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.Sellable{}, err
	}
	req.ExternalVariationID = strings.TrimSpace(req.ExternalVariationID)
	req.Name = strings.TrimSpace(req.Name)
	if err := validate.Struct(req); err != nil {
		return domain.Sellable{}, err
	}
	if _, err := s.repo.GetProduct(ctx, req.ProductID); err != nil {
		return domain.Sellable{}, err
	}

	created, err := s.repo.CreateSellable(ctx, domain.Sellable{
		ID:                  xid.New("sel"),
		ProductID:           req.ProductID,
		ExternalVariationID: req.ExternalVariationID,
		Name:                req.Name,
		PriceCents:          req.PriceCents,
		Active:              true,
		CreatedAt:           s.now(),
	})
	if err != nil {
		return domain.Sellable{}, err
	}
	s.logAudit(ctx, "sellable_create", "sellable", created.ID, fmt.Sprintf("product=%s,external_variation_id=%s", created.ProductID, created.ExternalVariationID))
	return *created, nil
}

func (s *Service) UpdateSellable(ctx context.Context, id string, req domain.SellableUpdateRequest) (domain.Sellable, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.Sellable{}, err
	}
	if err := validate.Struct(req); err != nil {
		return domain.Sellable{}, err
	}

	existing, err := s.repo.GetSellable(ctx, id)
	if err != nil {
		return domain.Sellable{}, err
	}
	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Sellable{}, invalid("name must not be blank")
		}
		updated.Name = name
	}
	if req.PriceCents != nil {
		updated.PriceCents = *req.PriceCents
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}

	saved, err := s.repo.UpdateSellable(ctx, updated)
	if err != nil {
		return domain.Sellable{}, err
	}
	s.logAudit(ctx, "sellable_update", "sellable", saved.ID, fmt.Sprintf("active=%t,price=%d", saved.Active, saved.PriceCents))
	return *saved, nil
}

func (s *Service) ListModifierSets(ctx context.Context) ([]domain.ModifierSet, error) {
	return s.repo.ListModifierSets(ctx)
}

func (s *Service) CreateModifierSet(ctx context.Context, req domain.ModifierSetCreateRequest) (domain.ModifierSet, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.ModifierSet{}, err
	}
	req.ExternalModifierListID = strings.TrimSpace(req.ExternalModifierListID)
	req.Name = strings.TrimSpace(req.Name)
	if err := validate.Struct(req); err != nil {
		return domain.ModifierSet{}, err
	}

	created, err := s.repo.CreateModifierSet(ctx, domain.ModifierSet{
		ID:                     xid.New("mset"),
		ExternalModifierListID: req.ExternalModifierListID,
		Name:                   req.Name,
		Active:                 true,
		CreatedAt:              s.now(),
	})
	if err != nil {
		return domain.ModifierSet{}, err
	}
	s.logAudit(ctx, "modifier_set_create", "modifier_set", created.ID, fmt.Sprintf("name=%s", created.Name))
	return *created, nil
}

func (s *Service) ListModifierOptions(ctx context.Context, modifierSetID string) ([]domain.ModifierOption, error) {
	return s.repo.ListModifierOptions(ctx, strings.TrimSpace(modifierSetID))
}

func (s *Service) CreateModifierOption(ctx context.Context, req domain.ModifierOptionCreateRequest) (domain.ModifierOption, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.ModifierOption{}, err
	}
	req.ExternalModifierID = strings.TrimSpace(req.ExternalModifierID)
	req.Name = strings.TrimSpace(req.Name)
	if err := validate.Struct(req); err != nil {
		return domain.ModifierOption{}, err
	}

	created, err := s.repo.CreateModifierOption(ctx, domain.ModifierOption{
		ID:                 xid.New("mod"),
		ModifierSetID:      req.ModifierSetID,
		ExternalModifierID: req.ExternalModifierID,
		Name:               req.Name,
		PriceCents:         req.PriceCents,
		Active:             true,
		CreatedAt:          s.now(),
	})
	if err != nil {
		return domain.ModifierOption{}, err
	}
	s.logAudit(ctx, "modifier_option_create", "modifier_option", created.ID, fmt.Sprintf("set=%s,external_modifier_id=%s", created.ModifierSetID, created.ExternalModifierID))
	return *created, nil
}

func (s *Service) UpdateModifierOption(ctx context.Context, id string, req domain.ModifierOptionUpdateRequest) (domain.ModifierOption, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.ModifierOption{}, err
	}
	if err := validate.Struct(req); err != nil {
		return domain.ModifierOption{}, err
	}

	existing, err := s.repo.GetModifierOption(ctx, id)
	if err != nil {
		return domain.ModifierOption{}, err
	}
	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.ModifierOption{}, invalid("name must not be blank")
		}
		updated.Name = name
	}
	if req.PriceCents != nil {
		updated.PriceCents = *req.PriceCents
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}

	saved, err := s.repo.UpdateModifierOption(ctx, updated)
	if err != nil {
		return domain.ModifierOption{}, err
	}
	s.logAudit(ctx, "modifier_option_update", "modifier_option", saved.ID, fmt.Sprintf("active=%t,price=%d", saved.Active, saved.PriceCents))
	return *saved, nil
}

// SyncCatalog upserts the POS catalog into the mapping store by external id.
// Records missing from the POS are left untouched and nothing is deleted.
func (s *Service) SyncCatalog(ctx context.Context) (domain.CatalogSyncResponse, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.CatalogSyncResponse{}, err
	}

	remote, err := s.provider.ListCatalog(ctx)
	if err != nil {
		return domain.CatalogSyncResponse{}, err
	}

	var resp domain.CatalogSyncResponse
	for _, item := range remote.Items {
		product, err := s.upsertProduct(ctx, item)
		if err != nil {
			return domain.CatalogSyncResponse{}, err
		}
		resp.Products++
		for _, variation := range item.Variations {
			if err := s.upsertSellable(ctx, product.ID, variation); err != nil {
				return domain.CatalogSyncResponse{}, err
			}
			resp.Sellables++
		}
	}
	for _, list := range remote.ModifierLists {
		set, err := s.upsertModifierSet(ctx, list)
		if err != nil {
			return domain.CatalogSyncResponse{}, err
		}
		resp.ModifierSets++
		for _, modifier := range list.Modifiers {
			if err := s.upsertModifierOption(ctx, set.ID, modifier); err != nil {
				return domain.CatalogSyncResponse{}, err
			}
			resp.ModifierOptions++
		}
	}

	resp.SyncedAt = s.now().Format(time.RFC3339)
	s.logAudit(ctx, "catalog_sync", "catalog", "pos", fmt.Sprintf("products=%d,sellables=%d,modifier_sets=%d,modifier_options=%d", resp.Products, resp.Sellables, resp.ModifierSets, resp.ModifierOptions))
	return resp, nil
}

func (s *Service) upsertProduct(ctx context.Context, item catalog.Item) (*domain.Product, error) {
	name := defaultString(strings.TrimSpace(item.Name), item.ID)
	existing, err := s.repo.GetProductByExternalID(ctx, item.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return s.repo.CreateProduct(ctx, domain.Product{
			ID:             xid.New("prd"),
			ExternalItemID: item.ID,
			Name:           name,
			Category:       item.Category,
			Active:         true,
			CreatedAt:      s.now(),
		})
	case err != nil:
		return nil, err
	}
	if existing.Name == name && existing.Category == item.Category {
		return existing, nil
	}
	existing.Name = name
	existing.Category = item.Category
	return s.repo.UpdateProduct(ctx, *existing)
}

func (s *Service) upsertSellable(ctx context.Context, productID string, variation catalog.Variation) error {
	name := defaultString(strings.TrimSpace(variation.Name), variation.ID)
	existing, err := s.repo.GetSellableByExternalID(ctx, variation.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		_, err = s.repo.CreateSellable(ctx, domain.Sellable{
			ID:                  xid.New("sel"),
			ProductID:           productID,
			ExternalVariationID: variation.ID,
			Name:                name,
			PriceCents:          variation.PriceCents,
			Active:              true,
			CreatedAt:           s.now(),
		})
		return err
	case err != nil:
		return err
	}
	if existing.Name == name && existing.PriceCents == variation.PriceCents {
		return nil
	}
	existing.Name = name
	existing.PriceCents = variation.PriceCents
	_, err = s.repo.UpdateSellable(ctx, *existing)
	return err
}

func (s *Service) upsertModifierSet(ctx context.Context, list catalog.ModifierList) (*domain.ModifierSet, error) {
	name := defaultString(strings.TrimSpace(list.Name), list.ID)
	existing, err := s.repo.GetModifierSetByExternalID(ctx, list.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return s.repo.CreateModifierSet(ctx, domain.ModifierSet{
			ID:                     xid.New("mset"),
			ExternalModifierListID: list.ID,
			Name:                   name,
			Active:                 true,
			CreatedAt:              s.now(),
		})
	case err != nil:
		return nil, err
	}
	if existing.Name == name {
		return existing, nil
	}
	existing.Name = name
	return s.repo.UpdateModifierSet(ctx, *existing)
}

func (s *Service) upsertModifierOption(ctx context.Context, setID string, modifier catalog.Modifier) error {
	name := defaultString(strings.TrimSpace(modifier.Name), modifier.ID)
	existing, err := s.repo.GetModifierOptionByExternalID(ctx, modifier.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		_, err = s.repo.CreateModifierOption(ctx, domain.ModifierOption{
			ID:                 xid.New("mod"),
			ModifierSetID:      setID,
			ExternalModifierID: modifier.ID,
			Name:               name,
			PriceCents:         modifier.PriceCents,
			Active:             true,
			CreatedAt:          s.now(),
		})
		return err
	case err != nil:
		return err
	}
	if existing.Name == name && existing.PriceCents == modifier.PriceCents {
		return nil
	}
	existing.Name = name
	existing.PriceCents = modifier.PriceCents
	_, err = s.repo.UpdateModifierOption(ctx, *existing)
	return err
}

// Menu lists active sellables grouped by their product's category, plus
// every active modifier option.
func (s *Service) Menu(ctx context.Context) (domain.MenuResponse, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return domain.MenuResponse{}, err
	}
	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		if p.Active {
			byID[p.ID] = p
		}
	}

	sellables, err := s.repo.ListSellables(ctx, "")
	if err != nil {
		return domain.MenuResponse{}, err
	}
	grouped := make(map[string][]domain.MenuItem)
	for _, sel := range sellables {
		product, ok := byID[sel.ProductID]
		if !ok || !sel.Active {
			continue
		}
		category := defaultString(product.Category, "other")
		grouped[category] = append(grouped[category], domain.MenuItem{
			SellableID:          sel.ID,
			ExternalVariationID: sel.ExternalVariationID,
			ProductName:         product.Name,
			Name:                sel.Name,
			PriceCents:          sel.PriceCents,
		})
	}

	resp := domain.MenuResponse{
		Categories: make([]domain.MenuCategory, 0, len(grouped)),
		Modifiers:  []domain.MenuModifier{},
	}
	for category, items := range grouped {
		resp.Categories = append(resp.Categories, domain.MenuCategory{Category: category, Items: items})
	}
	sort.Slice(resp.Categories, func(i, j int) bool {
		return resp.Categories[i].Category < resp.Categories[j].Category
	})

	options, err := s.repo.ListModifierOptions(ctx, "")
	if err != nil {
		return domain.MenuResponse{}, err
	}
	for _, opt := range options {
		if !opt.Active {
			continue
		}
		resp.Modifiers = append(resp.Modifiers, domain.MenuModifier{
			ModifierOptionID:   opt.ID,
			ExternalModifierID: opt.ExternalModifierID,
			Name:               opt.Name,
			PriceCents:         opt.PriceCents,
		})
	}
	return resp, nil
}
