package postgres

import (
	"context"
	"time"

	"cafecogs/backend/internal/domain"
	"cafecogs/backend/internal/store"
	"cafecogs/backend/internal/xid"
)

const productColumns = `id, external_item_id, name, category, active, created_at`

func scanProduct(row rowScanner) (*domain.Product, error) {
	var p domain.Product
	if err := row.Scan(&p.ID, &p.ExternalItemID, &p.Name, &p.Category, &p.Active, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return &p, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		ORDER BY category, name, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	return p, notFound(err)
}

func (s *Store) GetProductByExternalID(ctx context.Context, externalItemID string) (*domain.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE external_item_id = $1`, externalItemID))
	return p, notFound(err)
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ExternalItemID == "" || product.Name == "" {
		return nil, store.ErrInvalidInput
	}
	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, external_item_id, name, category, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, product.ID, product.ExternalItemID, product.Name, product.Category, product.Active, product.CreatedAt)
	if err != nil {
		return nil, mapWriteErr(err)
	}
	return &product, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" {
		return nil, store.ErrInvalidInput
	}
	p, err := scanProduct(s.db.QueryRowContext(ctx, `
		UPDATE products
		SET name = $2, category = $3, active = $4
		WHERE id = $1
		RETURNING `+productColumns,
		product.ID, product.Name, product.Category, product.Active))
	return p, notFound(err)
}

const sellableColumns = `id, product_id, external_variation_id, name, price_cents, active, created_at`

func scanSellable(row rowScanner) (*domain.Sellable, error) {
	var v domain.Sellable
	if err := row.Scan(&v.ID, &v.ProductID, &v.ExternalVariationID, &v.Name, &v.PriceCents, &v.Active, &v.CreatedAt); err != nil {
		return nil, err
	}
	v.CreatedAt = v.CreatedAt.UTC()
	return &v, nil
}

func (s *Store) ListSellables(ctx context.Context, productID string) ([]domain.Sellable, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sellableColumns+`
		FROM sellables
		WHERE ($1 = '' OR product_id = $1)
		ORDER BY product_id, name, id
	`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sellables := make([]domain.Sellable, 0, 64)
	for rows.Next() {
		v, err := scanSellable(rows)
		if err != nil {
			return nil, err
		}
		sellables = append(sellables, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sellables, nil
}

func (s *Store) GetSellable(ctx context.Context, id string) (*domain.Sellable, error) {
	v, err := scanSellable(s.db.QueryRowContext(ctx, `SELECT `+sellableColumns+` FROM sellables WHERE id = $1`, id))
	return v, notFound(err)
}

func (s *Store) GetSellableByExternalID(ctx context.Context, externalVariationID string) (*domain.Sellable, error) {
	v, err := scanSellable(s.db.QueryRowContext(ctx, `SELECT `+sellableColumns+` FROM sellables WHERE external_variation_id = $1`, externalVariationID))
	return v, notFound(err)
}

func (s *Store) CreateSellable(ctx context.Context, sellable domain.Sellable) (*domain.Sellable, error) {
	if sellable.ProductID == "" || sellable.ExternalVariationID == "" || sellable.Name == "" || sellable.PriceCents < 0 {
		return nil, store.ErrInvalidInput
	}
	if sellable.ID == "" {
		sellable.ID = xid.New("sel")
	}
	if sellable.CreatedAt.IsZero() {
		sellable.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sellables (id, product_id, external_variation_id, name, price_cents, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, sellable.ID, sellable.ProductID, sellable.ExternalVariationID, sellable.Name, sellable.PriceCents, sellable.Active, sellable.CreatedAt)
	if err != nil {
		return nil, mapWriteErr(err)
	}
	return &sellable, nil
}

func (s *Store) UpdateSellable(ctx context.Context, sellable domain.Sellable) (*domain.Sellable, error) {
	if sellable.Name == "" || sellable.PriceCents < 0 {
		return nil, store.ErrInvalidInput
	}
	v, err := scanSellable(s.db.QueryRowContext(ctx, `
		UPDATE sellables
		SET name = $2, price_cents = $3, active = $4
		WHERE id = $1
		RETURNING `+sellableColumns,
		sellable.ID, sellable.Name, sellable.PriceCents, sellable.Active))
	return v, notFound(err)
}

const modifierSetColumns = `id, external_modifier_list_id, name, active, created_at`

func scanModifierSet(row rowScanner) (*domain.ModifierSet, error) {
	var m domain.ModifierSet
	if err := row.Scan(&m.ID, &m.ExternalModifierListID, &m.Name, &m.Active, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.CreatedAt = m.CreatedAt.UTC()
	return &m, nil
}

func (s *Store) ListModifierSets(ctx context.Context) ([]domain.ModifierSet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+modifierSetColumns+`
		FROM modifier_sets
		ORDER BY name, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sets := make([]domain.ModifierSet, 0, 16)
	for rows.Next() {
		m, err := scanModifierSet(rows)
		if err != nil {
			return nil, err
		}
		sets = append(sets, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sets, nil
}

func (s *Store) GetModifierSetByExternalID(ctx context.Context, externalListID string) (*domain.ModifierSet, error) {
	m, err := scanModifierSet(s.db.QueryRowContext(ctx, `SELECT `+modifierSetColumns+` FROM modifier_sets WHERE external_modifier_list_id = $1`, externalListID))
	return m, notFound(err)
}

func (s *Store) CreateModifierSet(ctx context.Context, set domain.ModifierSet) (*domain.ModifierSet, error) {
	if set.ExternalModifierListID == "" || set.Name == "" {
		return nil, store.ErrInvalidInput
	}
	if set.ID == "" {
		set.ID = xid.New("mset")
	}
	if set.CreatedAt.IsZero() {
		set.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO modifier_sets (id, external_modifier_list_id, name, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, set.ID, set.ExternalModifierListID, set.Name, set.Active, set.CreatedAt)
	if err != nil {
		return nil, mapWriteErr(err)
	}
	return &set, nil
}

func (s *Store) UpdateModifierSet(ctx context.Context, set domain.ModifierSet) (*domain.ModifierSet, error) {
	if set.Name == "" {
		return nil, store.ErrInvalidInput
	}
	m, err := scanModifierSet(s.db.QueryRowContext(ctx, `
		UPDATE modifier_sets
		SET name = $2, active = $3
		WHERE id = $1
		RETURNING `+modifierSetColumns,
		set.ID, set.Name, set.Active))
	return m, notFound(err)
}

const modifierOptionColumns = `id, modifier_set_id, external_modifier_id, name, price_cents, active, created_at`

func scanModifierOption(row rowScanner) (*domain.ModifierOption, error) {
	var o domain.ModifierOption
	if err := row.Scan(&o.ID, &o.ModifierSetID, &o.ExternalModifierID, &o.Name, &o.PriceCents, &o.Active, &o.CreatedAt); err != nil {
		return nil, err
	}
	o.CreatedAt = o.CreatedAt.UTC()
	return &o, nil
}

func (s *Store) ListModifierOptions(ctx context.Context, modifierSetID string) ([]domain.ModifierOption, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+modifierOptionColumns+`
		FROM modifier_options
		WHERE ($1 = '' OR modifier_set_id = $1)
		ORDER BY modifier_set_id, name, id
	`, modifierSetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	options := make([]domain.ModifierOption, 0, 32)
	for rows.Next() {
		o, err := scanModifierOption(rows)
		if err != nil {
			return nil, err
		}
		options = append(options, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return options, nil
}

func (s *Store) GetModifierOption(ctx context.Context, id string) (*domain.ModifierOption, error) {
	o, err := scanModifierOption(s.db.QueryRowContext(ctx, `SELECT `+modifierOptionColumns+` FROM modifier_options WHERE id = $1`, id))
	return o, notFound(err)
}

func (s *Store) GetModifierOptionByExternalID(ctx context.Context, externalModifierID string) (*domain.ModifierOption, error) {
	o, err := scanModifierOption(s.db.QueryRowContext(ctx, `SELECT `+modifierOptionColumns+` FROM modifier_options WHERE external_modifier_id = $1`, externalModifierID))
	return o, notFound(err)
}

func (s *Store) CreateModifierOption(ctx context.Context, option domain.ModifierOption) (*domain.ModifierOption, error) {
	if option.ModifierSetID == "" || option.ExternalModifierID == "" || option.Name == "" || option.PriceCents < 0 {
		return nil, store.ErrInvalidInput
	}
	if option.ID == "" {
		option.ID = xid.New("mod")
	}
	if option.CreatedAt.IsZero() {
		option.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO modifier_options (id, modifier_set_id, external_modifier_id, name, price_cents, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, option.ID, option.ModifierSetID, option.ExternalModifierID, option.Name, option.PriceCents, option.Active, option.CreatedAt)
	if err != nil {
		return nil, mapWriteErr(err)
	}
	return &option, nil
}

func (s *Store) UpdateModifierOption(ctx context.Context, option domain.ModifierOption) (*domain.ModifierOption, error) {
	if option.Name == "" || option.PriceCents < 0 {
		return nil, store.ErrInvalidInput
	}
	o, err := scanModifierOption(s.db.QueryRowContext(ctx, `
		UPDATE modifier_options
		SET name = $2, price_cents = $3, active = $4
		WHERE id = $1
		RETURNING `+modifierOptionColumns,
		option.ID, option.Name, option.PriceCents, option.Active))
	return o, notFound(err)
}
