package memory

import (
	"context"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"cafecogs/backend/internal/domain"
	"cafecogs/backend/internal/logger"
	"cafecogs/backend/internal/store"
)

type Store struct {
	mu              sync.RWMutex
	products        map[string]domain.Product
	sellables       map[string]domain.Sellable
	modifierSets    map[string]domain.ModifierSet
	modifierOptions map[string]domain.ModifierOption
	recipes         map[string]domain.Recipe
	overrides       map[string]domain.SellableOverride
	modifierRecipes map[string]domain.ModifierOptionRecipe
	items           map[string]domain.InventoryItem
	snapshots       []domain.InventorySnapshot
	movements       []domain.StockMovement
	suppliers       map[string]domain.Supplier
	purchaseOrders  map[string]domain.PurchaseOrder
	salesLines      []domain.SalesLine
	checkoutsByKey  map[string]domain.CheckoutRecord
	periods         map[string]domain.COGSPeriod
	reports         map[string]domain.COGSReport
	auditLogs       []domain.AuditLog
	users           map[string]domain.UserAccount
}

// New returns an empty store with no users.
func New() *Store {
	return &Store{
		products:        make(map[string]domain.Product),
		sellables:       make(map[string]domain.Sellable),
		modifierSets:    make(map[string]domain.ModifierSet),
		modifierOptions: make(map[string]domain.ModifierOption),
		recipes:         make(map[string]domain.Recipe),
		overrides:       make(map[string]domain.SellableOverride),
		modifierRecipes: make(map[string]domain.ModifierOptionRecipe),
		items:           make(map[string]domain.InventoryItem),
		snapshots:       make([]domain.InventorySnapshot, 0, 16),
		movements:       make([]domain.StockMovement, 0, 64),
		suppliers:       make(map[string]domain.Supplier),
		purchaseOrders:  make(map[string]domain.PurchaseOrder),
		salesLines:      make([]domain.SalesLine, 0, 256),
		checkoutsByKey:  make(map[string]domain.CheckoutRecord),
		periods:         make(map[string]domain.COGSPeriod),
		reports:         make(map[string]domain.COGSReport),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		users:           make(map[string]domain.UserAccount),
	}
}

// seedUsers builds the dev/demo accounts. Passwords come from
// SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD; unset values fall back to
// well-known dev passwords with a warning. Production runs on PostgreSQL.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	staffPwd := envOr("SEED_STAFF_PASSWORD", "staff123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_STAFF_PASSWORD") == "" {
		logger.WithModule("memory-store").Warn("using default dev credentials; set SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD to override")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"staff", staffPwd, domain.RoleStaff},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			logger.WithModule("memory-store").WithError(err).Fatalf("failed to hash seed password for %s", u.username)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// NewSeeded returns a store with a small café catalog, recipes and stock.
func NewSeeded() *Store {
	s := New()
	s.users = seedUsers()
	now := time.Now().UTC()

	for _, item := range []domain.InventoryItem{
		{ID: "inv-espresso", Name: "Espresso beans", Unit: "lb", UnitCost: decimal.RequireFromString("12.00"), CurrentStock: 20},
		{ID: "inv-milk", Name: "Whole milk", Unit: "gal", UnitCost: decimal.RequireFromString("4.50"), CurrentStock: 10},
		{ID: "inv-oat", Name: "Oat milk", Unit: "l", UnitCost: decimal.RequireFromString("3.20"), CurrentStock: 12},
		{ID: "inv-vanilla", Name: "Vanilla syrup", Unit: "l", UnitCost: decimal.RequireFromString("9.00"), CurrentStock: 3},
		{ID: "inv-cup-12", Name: "Cup 12oz", Unit: "each", UnitCost: decimal.RequireFromString("0.12"), CurrentStock: 500},
		{ID: "inv-cup-16", Name: "Cup 16oz", Unit: "each", UnitCost: decimal.RequireFromString("0.15"), CurrentStock: 500},
		{ID: "inv-croissant", Name: "Croissant dough", Unit: "each", UnitCost: decimal.RequireFromString("0.85"), CurrentStock: 80},
	} {
		item.Active = true
		item.CreatedAt, item.UpdatedAt = now, now
		s.items[item.ID] = item
	}

	for _, p := range []domain.Product{
		{ID: "prd-latte", ExternalItemID: "ITEM_LATTE", Name: "Latte", Category: "coffee"},
		{ID: "prd-americano", ExternalItemID: "ITEM_AMERICANO", Name: "Americano", Category: "coffee"},
		{ID: "prd-croissant", ExternalItemID: "ITEM_CROISSANT", Name: "Butter croissant", Category: "pastry"},
	} {
		p.Active, p.CreatedAt = true, now
		s.products[p.ID] = p
	}

	for _, sel := range []domain.Sellable{
		{ID: "sel-latte-12", ProductID: "prd-latte", ExternalVariationID: "VAR_LATTE_12", Name: "Latte 12oz", PriceCents: 450},
		{ID: "sel-latte-16", ProductID: "prd-latte", ExternalVariationID: "VAR_LATTE_16", Name: "Latte 16oz", PriceCents: 525},
		{ID: "sel-americano-12", ProductID: "prd-americano", ExternalVariationID: "VAR_AMERICANO_12", Name: "Americano 12oz", PriceCents: 350},
		{ID: "sel-croissant", ProductID: "prd-croissant", ExternalVariationID: "VAR_CROISSANT", Name: "Butter croissant", PriceCents: 375},
	} {
		sel.Active, sel.CreatedAt = true, now
		s.sellables[sel.ID] = sel
	}

	for _, set := range []domain.ModifierSet{
		{ID: "mset-milk", ExternalModifierListID: "MODLIST_MILK", Name: "Milk"},
		{ID: "mset-extras", ExternalModifierListID: "MODLIST_EXTRAS", Name: "Extras"},
	} {
		set.Active, set.CreatedAt = true, now
		s.modifierSets[set.ID] = set
	}
	for _, opt := range []domain.ModifierOption{
		{ID: "mod-oat", ModifierSetID: "mset-milk", ExternalModifierID: "MOD_OAT", Name: "Oat milk", PriceCents: 75},
		{ID: "mod-vanilla", ModifierSetID: "mset-extras", ExternalModifierID: "MOD_VANILLA", Name: "Vanilla", PriceCents: 60},
		{ID: "mod-shot", ModifierSetID: "mset-extras", ExternalModifierID: "MOD_EXTRA_SHOT", Name: "Extra shot", PriceCents: 100},
	} {
		opt.Active, opt.CreatedAt = true, now
		s.modifierOptions[opt.ID] = opt
	}

	for _, r := range []domain.Recipe{
		{ID: "rcp-latte", ProductID: "prd-latte", YieldQty: 1, YieldUnit: "each", Lines: []domain.RecipeLine{
			{InventoryItemID: "inv-espresso", Quantity: 18, Unit: "g"},
			{InventoryItemID: "inv-milk", Quantity: 240, Unit: "ml", LossPct: 5},
			{InventoryItemID: "inv-cup-12", Quantity: 1, Unit: "each"},
		}},
		{ID: "rcp-americano", ProductID: "prd-americano", YieldQty: 1, YieldUnit: "each", Lines: []domain.RecipeLine{
			{InventoryItemID: "inv-espresso", Quantity: 18, Unit: "g"},
			{InventoryItemID: "inv-cup-12", Quantity: 1, Unit: "each"},
		}},
		{ID: "rcp-croissant", ProductID: "prd-croissant", YieldQty: 1, YieldUnit: "each", Lines: []domain.RecipeLine{
			{InventoryItemID: "inv-croissant", Quantity: 1, Unit: "each"},
		}},
	} {
		r.CreatedAt, r.UpdatedAt = now, now
		s.recipes[r.ID] = r
	}

	milk, cup12 := "inv-milk", "inv-cup-12"
	cup16, cupUnit := "inv-cup-16", "each"
	one, milkScale := 1.0, 1.3
	s.overrides["ovr-latte-16"] = domain.SellableOverride{
		ID:         "ovr-latte-16",
		SellableID: "sel-latte-16",
		Notes:      "16oz: more milk, bigger cup",
		Ops: []domain.OverrideOp{
			{Op: domain.OpMultiplier, TargetInventoryItemID: &milk, Multiplier: &milkScale},
			{Op: domain.OpReplace, TargetInventoryItemID: &cup12, InventoryItemID: &cup16, Quantity: &one, Unit: &cupUnit},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	for _, m := range []domain.ModifierOptionRecipe{
		{ID: "mrc-oat", ModifierOptionID: "mod-oat", Lines: []domain.RecipeLine{{InventoryItemID: "inv-oat", Quantity: 240, Unit: "ml", LossPct: 5}}},
		{ID: "mrc-vanilla", ModifierOptionID: "mod-vanilla", Lines: []domain.RecipeLine{{InventoryItemID: "inv-vanilla", Quantity: 15, Unit: "ml"}}},
		{ID: "mrc-shot", ModifierOptionID: "mod-shot", Lines: []domain.RecipeLine{{InventoryItemID: "inv-espresso", Quantity: 18, Unit: "g"}}},
	} {
		m.CreatedAt, m.UpdatedAt = now, now
		s.modifierRecipes[m.ID] = m
	}

	s.suppliers["sup-roaster"] = domain.Supplier{ID: "sup-roaster", Name: "Northside Roasters", Phone: "555-0142", CreatedAt: now}
	s.suppliers["sup-dairy"] = domain.Supplier{ID: "sup-dairy", Name: "Valley Dairy", Phone: "555-0177", CreatedAt: now}

	return s
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, len(s.auditLogs))
	for i := len(s.auditLogs) - 1; i >= 0; i-- {
		entry := s.auditLogs[i]
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		result = append(result, entry)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if _, exists := s.users[username]; exists {
		return store.ErrConflict
	}
	user.Username = username
	if user.Role == "" {
		user.Role = domain.RoleStaff
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.users[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}
	user, exists := s.users[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.users[username] = user
	return nil
}

func byCreated[T any](createdAt func(T) time.Time, id func(T) string) func(a, b T) int {
	return func(a, b T) int {
		if c := createdAt(a).Compare(createdAt(b)); c != 0 {
			return c
		}
		return strings.Compare(id(a), id(b))
	}
}

func cloneLines(src []domain.RecipeLine) []domain.RecipeLine {
	return append([]domain.RecipeLine(nil), src...)
}

func cloneOps(src []domain.OverrideOp) []domain.OverrideOp {
	return append([]domain.OverrideOp(nil), src...)
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
