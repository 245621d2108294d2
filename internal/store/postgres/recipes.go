package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"cafecogs/backend/internal/domain"
	"cafecogs/backend/internal/store"
	"cafecogs/backend/internal/xid"
)

// versionTable names a table of effective-dated rows and the column that
// groups its versions.
type versionTable struct {
	name  string
	owner string
}

var (
	recipesTable         = versionTable{name: "recipes", owner: "product_id"}
	overridesTable       = versionTable{name: "sellable_overrides", owner: "sellable_id"}
	modifierRecipesTable = versionTable{name: "modifier_option_recipes", owner: "modifier_option_id"}
)

// supersede closes the open version id at the new version's start. The
// exclusion constraint on the table rejects any overlap left after that.
func (t versionTable) supersede(ctx context.Context, tx *sql.Tx, ownerID string, id string, from *time.Time) error {
	if id == "" {
		return nil
	}
	if from == nil {
		return fmt.Errorf("%w: only a dated version can supersede another", store.ErrConflict)
	}

	res, err := tx.ExecContext(ctx, fmt.Sprintf(`
		UPDATE %s
		SET effective_to = $3, updated_at = now()
		WHERE id = $1 AND %s = $2
			AND effective_to IS NULL
			AND (effective_from IS NULL OR effective_from < $3)
	`, t.name, t.owner), id, ownerID, from.UTC())
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	var exists bool
	if err := tx.QueryRowContext(ctx, fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1 AND %s = $2)`, t.name, t.owner), id, ownerID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return store.ErrNotFound
	}
	return fmt.Errorf("%w: only an open version that starts earlier can be superseded", store.ErrConflict)
}

const recipeColumns = `id, product_id, effective_from, effective_to, yield_qty, yield_unit, notes, lines, created_at, updated_at`

func scanRecipe(row rowScanner) (*domain.Recipe, error) {
	var (
		r        domain.Recipe
		from, to sql.NullTime
		lines    []byte
	)
	if err := row.Scan(&r.ID, &r.ProductID, &from, &to, &r.YieldQty, &r.YieldUnit, &r.Notes, &lines, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.EffectiveFrom, r.EffectiveTo = timePtr(from), timePtr(to)
	r.CreatedAt, r.UpdatedAt = r.CreatedAt.UTC(), r.UpdatedAt.UTC()
	if err := unmarshalJSON(lines, &r.Lines); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) ListRecipes(ctx context.Context, productID string) ([]domain.Recipe, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recipeColumns+`
		FROM recipes
		WHERE ($1 = '' OR product_id = $1)
		ORDER BY created_at, id
	`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recipes := make([]domain.Recipe, 0, 8)
	for rows.Next() {
		r, err := scanRecipe(rows)
		if err != nil {
			return nil, err
		}
		recipes = append(recipes, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return recipes, nil
}

func (s *Store) GetRecipe(ctx context.Context, id string) (*domain.Recipe, error) {
	r, err := scanRecipe(s.db.QueryRowContext(ctx, `SELECT `+recipeColumns+` FROM recipes WHERE id = $1`, id))
	return r, notFound(err)
}

func (s *Store) CreateRecipe(ctx context.Context, recipe domain.Recipe, supersedeID string) (*domain.Recipe, error) {
	if len(recipe.Lines) == 0 {
		return nil, store.ErrInvalidInput
	}
	lines, err := marshalJSON(recipe.Lines)
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

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := recipesTable.supersede(ctx, tx, recipe.ProductID, supersedeID, recipe.EffectiveFrom); err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO recipes (
			id, product_id, effective_from, effective_to, yield_qty, yield_unit, notes, lines, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, recipe.ID, recipe.ProductID, nullTime(recipe.EffectiveFrom), nullTime(recipe.EffectiveTo),
		recipe.YieldQty, recipe.YieldUnit, recipe.Notes, lines, recipe.CreatedAt, recipe.UpdatedAt)
	if err != nil {
		return nil, mapWriteErr(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, mapWriteErr(err)
	}
	return &recipe, nil
}

func (s *Store) UpdateRecipe(ctx context.Context, recipe domain.Recipe) (*domain.Recipe, error) {
	if len(recipe.Lines) == 0 {
		return nil, store.ErrInvalidInput
	}
	lines, err := marshalJSON(recipe.Lines)
	if err != nil {
		return nil, err
	}
	r, err := scanRecipe(s.db.QueryRowContext(ctx, `
		UPDATE recipes
		SET yield_qty = $2, yield_unit = $3, notes = $4, lines = $5, updated_at = now()
		WHERE id = $1
		RETURNING `+recipeColumns,
		recipe.ID, recipe.YieldQty, recipe.YieldUnit, recipe.Notes, lines))
	return r, notFound(err)
}

const overrideColumns = `id, sellable_id, effective_from, effective_to, notes, ops, created_at, updated_at`

func scanOverride(row rowScanner) (*domain.SellableOverride, error) {
	var (
		o        domain.SellableOverride
		from, to sql.NullTime
		ops      []byte
	)
	if err := row.Scan(&o.ID, &o.SellableID, &from, &to, &o.Notes, &ops, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.EffectiveFrom, o.EffectiveTo = timePtr(from), timePtr(to)
	o.CreatedAt, o.UpdatedAt = o.CreatedAt.UTC(), o.UpdatedAt.UTC()
	if err := unmarshalJSON(ops, &o.Ops); err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *Store) ListOverrides(ctx context.Context, sellableID string) ([]domain.SellableOverride, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+overrideColumns+`
		FROM sellable_overrides
		WHERE ($1 = '' OR sellable_id = $1)
		ORDER BY created_at, id
	`, sellableID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	overrides := make([]domain.SellableOverride, 0, 4)
	for rows.Next() {
		o, err := scanOverride(rows)
		if err != nil {
			return nil, err
		}
		overrides = append(overrides, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return overrides, nil
}

func (s *Store) GetOverride(ctx context.Context, id string) (*domain.SellableOverride, error) {
	o, err := scanOverride(s.db.QueryRowContext(ctx, `SELECT `+overrideColumns+` FROM sellable_overrides WHERE id = $1`, id))
	return o, notFound(err)
}

func (s *Store) CreateOverride(ctx context.Context, override domain.SellableOverride, supersedeID string) (*domain.SellableOverride, error) {
	if override.Ops == nil {
		override.Ops = []domain.OverrideOp{}
	}
	ops, err := marshalJSON(override.Ops)
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

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := overridesTable.supersede(ctx, tx, override.SellableID, supersedeID, override.EffectiveFrom); err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO sellable_overrides (
			id, sellable_id, effective_from, effective_to, notes, ops, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, override.ID, override.SellableID, nullTime(override.EffectiveFrom), nullTime(override.EffectiveTo),
		override.Notes, ops, override.CreatedAt, override.UpdatedAt)
	if err != nil {
		return nil, mapWriteErr(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, mapWriteErr(err)
	}
	return &override, nil
}

func (s *Store) UpdateOverride(ctx context.Context, override domain.SellableOverride) (*domain.SellableOverride, error) {
	if override.Ops == nil {
		override.Ops = []domain.OverrideOp{}
	}
	ops, err := marshalJSON(override.Ops)
	if err != nil {
		return nil, err
	}
	o, err := scanOverride(s.db.QueryRowContext(ctx, `
		UPDATE sellable_overrides
		SET notes = $2, ops = $3, updated_at = now()
		WHERE id = $1
		RETURNING `+overrideColumns,
		override.ID, override.Notes, ops))
	return o, notFound(err)
}

const modifierRecipeColumns = `id, modifier_option_id, effective_from, effective_to, lines, created_at, updated_at`

func scanModifierRecipe(row rowScanner) (*domain.ModifierOptionRecipe, error) {
	var (
		m        domain.ModifierOptionRecipe
		from, to sql.NullTime
		lines    []byte
	)
	if err := row.Scan(&m.ID, &m.ModifierOptionID, &from, &to, &lines, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	m.EffectiveFrom, m.EffectiveTo = timePtr(from), timePtr(to)
	m.CreatedAt, m.UpdatedAt = m.CreatedAt.UTC(), m.UpdatedAt.UTC()
	if err := unmarshalJSON(lines, &m.Lines); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) ListModifierRecipes(ctx context.Context, modifierOptionID string) ([]domain.ModifierOptionRecipe, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+modifierRecipeColumns+`
		FROM modifier_option_recipes
		WHERE ($1 = '' OR modifier_option_id = $1)
		ORDER BY modifier_option_id, created_at, id
	`, modifierOptionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recipes := make([]domain.ModifierOptionRecipe, 0, 8)
	for rows.Next() {
		m, err := scanModifierRecipe(rows)
		if err != nil {
			return nil, err
		}
		recipes = append(recipes, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return recipes, nil
}

func (s *Store) GetModifierRecipe(ctx context.Context, id string) (*domain.ModifierOptionRecipe, error) {
	m, err := scanModifierRecipe(s.db.QueryRowContext(ctx, `SELECT `+modifierRecipeColumns+` FROM modifier_option_recipes WHERE id = $1`, id))
	return m, notFound(err)
}

func (s *Store) CreateModifierRecipe(ctx context.Context, recipe domain.ModifierOptionRecipe, supersedeID string) (*domain.ModifierOptionRecipe, error) {
	if len(recipe.Lines) == 0 {
		return nil, store.ErrInvalidInput
	}
	lines, err := marshalJSON(recipe.Lines)
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

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := modifierRecipesTable.supersede(ctx, tx, recipe.ModifierOptionID, supersedeID, recipe.EffectiveFrom); err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO modifier_option_recipes (
			id, modifier_option_id, effective_from, effective_to, lines, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, recipe.ID, recipe.ModifierOptionID, nullTime(recipe.EffectiveFrom), nullTime(recipe.EffectiveTo),
		lines, recipe.CreatedAt, recipe.UpdatedAt)
	if err != nil {
		return nil, mapWriteErr(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, mapWriteErr(err)
	}
	return &recipe, nil
}

func (s *Store) UpdateModifierRecipe(ctx context.Context, recipe domain.ModifierOptionRecipe) (*domain.ModifierOptionRecipe, error) {
	if len(recipe.Lines) == 0 {
		return nil, store.ErrInvalidInput
	}
	lines, err := marshalJSON(recipe.Lines)
	if err != nil {
		return nil, err
	}
	m, err := scanModifierRecipe(s.db.QueryRowContext(ctx, `
		UPDATE modifier_option_recipes
		SET lines = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+modifierRecipeColumns,
		recipe.ID, lines))
	return m, notFound(err)
}
