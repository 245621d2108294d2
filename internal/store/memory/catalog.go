package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"cafecogs/backend/internal/domain"
	"cafecogs/backend/internal/store"
	"cafecogs/backend/internal/xid"
)

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Category == b.Category {
			return strings.Compare(a.Name, b.Name)
		}
		return strings.Compare(a.Category, b.Category)
	})
	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) GetProductByExternalID(_ context.Context, externalItemID string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.products {
		if p.ExternalItemID == externalItemID {
			return &p, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.ExternalItemID == "" || product.Name == "" {
		return nil, store.ErrInvalidInput
	}
	for _, existing := range s.products {
		if existing.ExternalItemID == product.ExternalItemID {
			return nil, store.ErrConflict
		}
	}
	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	s.products[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.products[product.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if product.Name == "" {
		return nil, store.ErrInvalidInput
	}
	product.ExternalItemID = existing.ExternalItemID
	product.CreatedAt = existing.CreatedAt
	s.products[product.ID] = product
	updated := product
	return &updated, nil
}

func (s *Store) ListSellables(_ context.Context, productID string) ([]domain.Sellable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Sellable, 0, len(s.sellables))
	for _, sel := range s.sellables {
		if productID != "" && sel.ProductID != productID {
			continue
		}
		result = append(result, sel)
	}
	slices.SortFunc(result, func(a, b domain.Sellable) int {
		if a.ProductID == b.ProductID {
			return strings.Compare(a.Name, b.Name)
		}
		return strings.Compare(a.ProductID, b.ProductID)
	})
	return result, nil
}

func (s *Store) GetSellable(_ context.Context, id string) (*domain.Sellable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sel, ok := s.sellables[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &sel, nil
}

func (s *Store) GetSellableByExternalID(_ context.Context, externalVariationID string) (*domain.Sellable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sel := range s.sellables {
		if sel.ExternalVariationID == externalVariationID {
			return &sel, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateSellable(_ context.Context, sellable domain.Sellable) (*domain.Sellable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sellable.ExternalVariationID == "" || sellable.Name == "" || sellable.PriceCents < 0 {
		return nil, store.ErrInvalidInput
	}
	if _, ok := s.products[sellable.ProductID]; !ok {
		return nil, store.ErrNotFound
	}
	for _, existing := range s.sellables {
		if existing.ExternalVariationID == sellable.ExternalVariationID {
			return nil, store.ErrConflict
		}
	}
	if sellable.ID == "" {
		sellable.ID = xid.New("sel")
	}
	if sellable.CreatedAt.IsZero() {
		sellable.CreatedAt = time.Now().UTC()
	}
	s.sellables[sellable.ID] = sellable
	created := sellable
	return &created, nil
}

func (s *Store) UpdateSellable(_ context.Context, sellable domain.Sellable) (*domain.Sellable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.sellables[sellable.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if sellable.Name == "" || sellable.PriceCents < 0 {
		return nil, store.ErrInvalidInput
	}
	sellable.ProductID = existing.ProductID
	sellable.ExternalVariationID = existing.ExternalVariationID
	sellable.CreatedAt = existing.CreatedAt
	s.sellables[sellable.ID] = sellable
	updated := sellable
	return &updated, nil
}

func (s *Store) ListModifierSets(_ context.Context) ([]domain.ModifierSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.ModifierSet, 0, len(s.modifierSets))
	for _, set := range s.modifierSets {
		result = append(result, set)
	}
	slices.SortFunc(result, func(a, b domain.ModifierSet) int {
		return strings.Compare(a.Name, b.Name)
	})
	return result, nil
}

func (s *Store) GetModifierSetByExternalID(_ context.Context, externalListID string) (*domain.ModifierSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, set := range s.modifierSets {
		if set.ExternalModifierListID == externalListID {
			return &set, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateModifierSet(_ context.Context, set domain.ModifierSet) (*domain.ModifierSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if set.ExternalModifierListID == "" || set.Name == "" {
		return nil, store.ErrInvalidInput
	}
	for _, existing := range s.modifierSets {
		if existing.ExternalModifierListID == set.ExternalModifierListID {
			return nil, store.ErrConflict
		}
	}
	if set.ID == "" {
		set.ID = xid.New("mset")
	}
	if set.CreatedAt.IsZero() {
		set.CreatedAt = time.Now().UTC()
	}
	s.modifierSets[set.ID] = set
	created := set
	return &created, nil
}

func (s *Store) UpdateModifierSet(_ context.Context, set domain.ModifierSet) (*domain.ModifierSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.modifierSets[set.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	set.ExternalModifierListID = existing.ExternalModifierListID
	set.CreatedAt = existing.CreatedAt
	s.modifierSets[set.ID] = set
	updated := set
	return &updated, nil
}

func (s *Store) ListModifierOptions(_ context.Context, modifierSetID string) ([]domain.ModifierOption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.ModifierOption, 0, len(s.modifierOptions))
	for _, opt := range s.modifierOptions {
		if modifierSetID != "" && opt.ModifierSetID != modifierSetID {
			continue
		}
		result = append(result, opt)
	}
	slices.SortFunc(result, func(a, b domain.ModifierOption) int {
		if a.ModifierSetID == b.ModifierSetID {
			return strings.Compare(a.Name, b.Name)
		}
		return strings.Compare(a.ModifierSetID, b.ModifierSetID)
	})
	return result, nil
}

func (s *Store) GetModifierOption(_ context.Context, id string) (*domain.ModifierOption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	opt, ok := s.modifierOptions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &opt, nil
}

func (s *Store) GetModifierOptionByExternalID(_ context.Context, externalModifierID string) (*domain.ModifierOption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, opt := range s.modifierOptions {
		if opt.ExternalModifierID == externalModifierID {
			return &opt, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateModifierOption(_ context.Context, option domain.ModifierOption) (*domain.ModifierOption, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if option.ExternalModifierID == "" || option.Name == "" || option.PriceCents < 0 {
		return nil, store.ErrInvalidInput
	}
	if _, ok := s.modifierSets[option.ModifierSetID]; !ok {
		return nil, store.ErrNotFound
	}
	for _, existing := range s.modifierOptions {
		if existing.ExternalModifierID == option.ExternalModifierID {
			return nil, store.ErrConflict
		}
	}
	if option.ID == "" {
		option.ID = xid.New("mod")
	}
	if option.CreatedAt.IsZero() {
		option.CreatedAt = time.Now().UTC()
	}
	s.modifierOptions[option.ID] = option
	created := option
	return &created, nil
}

func (s *Store) UpdateModifierOption(_ context.Context, option domain.ModifierOption) (*domain.ModifierOption, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.modifierOptions[option.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if option.Name == "" || option.PriceCents < 0 {
		return nil, store.ErrInvalidInput
	}
	option.ModifierSetID = existing.ModifierSetID
	option.ExternalModifierID = existing.ExternalModifierID
	option.CreatedAt = existing.CreatedAt
	s.modifierOptions[option.ID] = option
	updated := option
	return &updated, nil
}
