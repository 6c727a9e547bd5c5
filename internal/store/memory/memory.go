// Package memory is an in-process store.Repository used by tests and local
// runs without PostgreSQL. A unit of work holds the store lock for its whole
// duration and works on a copy of the data that replaces the live state only
// when fn returns nil.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"sale-service/internal/models"
	"sale-service/internal/store"
)

type state struct {
	products  map[string]models.Product
	sales     map[string]models.Sale
	lines     map[string][]models.OrderLine
	codes     map[string]models.OhadaCode
	income    []models.IncomeEntry
	saleOrder []string
}

func newState() *state {
	return &state{
		products: map[string]models.Product{},
		sales:    map[string]models.Sale{},
		lines:    map[string][]models.OrderLine{},
		codes:    map[string]models.OhadaCode{},
	}
}

func (st *state) clone() *state {
	c := newState()
	for k, v := range st.products {
		c.products[k] = v
	}
	for k, v := range st.sales {
		c.sales[k] = v
	}
	for k, v := range st.lines {
		c.lines[k] = append([]models.OrderLine(nil), v...)
	}
	for k, v := range st.codes {
		c.codes[k] = v
	}
	c.income = append([]models.IncomeEntry(nil), st.income...)
	c.saleOrder = append([]string(nil), st.saleOrder...)
	return c
}

type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

func New() *Store {
	return &Store{st: newState(), now: func() time.Time { return time.Now().UTC() }}
}

// NewSeeded returns a store holding the default OHADA chart.
func NewSeeded() *Store {
	s := New()
	s.SeedOhadaCodes(
		models.OhadaCode{ID: "ohada-601", Code: "601", Label: "Achats de marchandises", Kind: models.LedgerKindExpense},
		models.OhadaCode{ID: "ohada-701", Code: "701", Label: "Ventes de marchandises", Kind: models.LedgerKindIncome},
		models.OhadaCode{ID: "ohada-706", Code: "706", Label: "Services vendus", Kind: models.LedgerKindIncome},
	)
	return s
}

func (s *Store) SeedOhadaCodes(codes ...models.OhadaCode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range codes {
		s.st.codes[c.Code] = c
	}
}

func (s *Store) Inventory() store.InventoryStore { return &view{store: s} }
func (s *Store) Ledger() store.LedgerStore       { return &view{store: s} }
func (s *Store) Sales() store.SalesStore         { return &view{store: s} }

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Scope) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	work := s.st.clone()
	if err := fn(ctx, &view{store: s, tx: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = work
	return nil
}

// view implements the store interfaces either on the live state (taking
// the lock per call) or on the working copy of an open unit of work.
type view struct {
	store *Store
	tx    *state
}

func (v *view) Inventory() store.InventoryStore { return v }
func (v *view) Ledger() store.LedgerStore       { return v }
func (v *view) Sales() store.SalesStore         { return v }

func (v *view) enter() (*state, func()) {
	if v.tx != nil {
		return v.tx, func() {}
	}
	v.store.mu.Lock()
	return v.store.st, v.store.mu.Unlock
}

func (v *view) CreateProduct(_ context.Context, product *models.Product) error {
	st, done := v.enter()
	defer done()

	if _, ok := st.products[product.ID]; ok {
		return fmt.Errorf("product %s already exists", product.ID)
	}
	for _, p := range st.products {
		if p.ShopID == product.ShopID && p.SKU == product.SKU {
			return fmt.Errorf("sku %s already exists in shop %s", product.SKU, product.ShopID)
		}
	}
	now := v.store.now()
	product.CreatedAt, product.UpdatedAt = now, now
	st.products[product.ID] = *product
	return nil
}

func (v *view) GetProduct(_ context.Context, id string) (*models.Product, error) {
	st, done := v.enter()
	defer done()

	p, ok := st.products[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrProductNotFound, id)
	}
	return &p, nil
}

func (v *view) ListProducts(_ context.Context, shopID string) ([]models.Product, error) {
	st, done := v.enter()
	defer done()

	products := []models.Product{}
	for _, p := range st.products {
		if p.ShopID == shopID {
			products = append(products, p)
		}
	}
	sort.Slice(products, func(i, j int) bool { return products[i].Name < products[j].Name })
	return products, nil
}

func (v *view) ApplyDecrement(_ context.Context, productID string, delta int) (*models.Product, error) {
	st, done := v.enter()
	defer done()

	p, ok := st.products[productID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrProductNotFound, productID)
	}
	if p.Quantity < delta {
		return nil, fmt.Errorf("%w: product %s", store.ErrInsufficientStock, productID)
	}
	p.Quantity -= delta
	p.StockVersion++
	p.UpdatedAt = v.store.now()
	st.products[productID] = p
	return &p, nil
}

func (v *view) ApplyIncrement(_ context.Context, productID string, delta int) (*models.Product, error) {
	st, done := v.enter()
	defer done()

	p, ok := st.products[productID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrProductNotFound, productID)
	}
	p.Quantity += delta
	p.StockVersion++
	p.UpdatedAt = v.store.now()
	st.products[productID] = p
	return &p, nil
}

func (v *view) UpdateStatus(_ context.Context, productID, status string) error {
	st, done := v.enter()
	defer done()

	p, ok := st.products[productID]
	if !ok {
		return fmt.Errorf("%w: %s", store.ErrProductNotFound, productID)
	}
	p.Status = status
	p.UpdatedAt = v.store.now()
	st.products[productID] = p
	return nil
}

func (v *view) GetOhadaCode(_ context.Context, code string) (*models.OhadaCode, error) {
	st, done := v.enter()
	defer done()

	c, ok := st.codes[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrOhadaCodeNotFound, code)
	}
	return &c, nil
}

func (v *view) AppendIncome(_ context.Context, entry *models.IncomeEntry) error {
	st, done := v.enter()
	defer done()

	entry.CreatedAt = v.store.now()
	st.income = append(st.income, *entry)
	return nil
}

func (v *view) ListIncome(_ context.Context, shopID string, from, to time.Time) ([]models.IncomeEntry, error) {
	st, done := v.enter()
	defer done()

	entries := []models.IncomeEntry{}
	for _, e := range st.income {
		if e.ShopID == shopID && !e.Date.Before(from) && e.Date.Before(to) {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func (v *view) CreateSale(_ context.Context, sale *models.Sale) error {
	st, done := v.enter()
	defer done()

	if _, ok := st.sales[sale.ID]; ok {
		return fmt.Errorf("sale %s already exists", sale.ID)
	}
	now := v.store.now()
	sale.CreatedAt, sale.UpdatedAt = now, now
	st.sales[sale.ID] = *sale
	st.saleOrder = append(st.saleOrder, sale.ID)
	return nil
}

func (v *view) CreateOrderLine(_ context.Context, line *models.OrderLine) error {
	st, done := v.enter()
	defer done()

	if _, ok := st.sales[line.SaleID]; !ok {
		return fmt.Errorf("%w: %s", store.ErrSaleNotFound, line.SaleID)
	}
	if _, ok := st.products[line.ProductID]; !ok {
		return fmt.Errorf("%w: %s", store.ErrProductNotFound, line.ProductID)
	}
	line.CreatedAt = v.store.now()
	st.lines[line.SaleID] = append(st.lines[line.SaleID], *line)
	return nil
}

func (v *view) GetSale(_ context.Context, id string) (*models.Sale, error) {
	st, done := v.enter()
	defer done()

	sale, ok := st.sales[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrSaleNotFound, id)
	}
	return &sale, nil
}

func (v *view) GetOrderLines(_ context.Context, saleID string) ([]models.OrderLine, error) {
	st, done := v.enter()
	defer done()

	return append([]models.OrderLine{}, st.lines[saleID]...), nil
}

func (v *view) ListSales(_ context.Context, shopID string, limit int) ([]models.Sale, error) {
	st, done := v.enter()
	defer done()

	sales := []models.Sale{}
	for i := len(st.saleOrder) - 1; i >= 0 && len(sales) < limit; i-- {
		if sale := st.sales[st.saleOrder[i]]; sale.ShopID == shopID {
			sales = append(sales, sale)
		}
	}
	return sales, nil
}

func (v *view) UpdateSaleStatus(_ context.Context, id, status, deliveryStatus string) error {
	st, done := v.enter()
	defer done()

	sale, ok := st.sales[id]
	if !ok {
		return fmt.Errorf("%w: %s", store.ErrSaleNotFound, id)
	}
	sale.Status = status
	sale.DeliveryStatus = deliveryStatus
	sale.UpdatedAt = v.store.now()
	st.sales[id] = sale
	return nil
}

func (v *view) MarkLinesPaid(_ context.Context, saleID string) error {
	st, done := v.enter()
	defer done()

	lines := st.lines[saleID]
	for i := range lines {
		lines[i].PaymentStatus = models.PaymentStatusPaid
	}
	return nil
}
