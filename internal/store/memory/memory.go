package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/AchayoEarnest/smartpos/internal/domain"
	"github.com/AchayoEarnest/smartpos/internal/store"
)

type Store struct {
	mu                  sync.RWMutex
	categoriesByID      map[string]domain.Category
	productsByID        map[string]domain.Product
	inventoryByProduct  map[string]domain.Inventory
	customersByID       map[string]domain.Customer
	suppliersByID       map[string]domain.Supplier
	salesByID           map[string]*domain.Sale
	drawersByID         map[string]domain.CashDrawer
	openDrawerByCashier map[string]string
	purchasesByID       map[string]*domain.Purchase
	expenses            []domain.Expense
	usersByUsername     map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		categoriesByID:      make(map[string]domain.Category),
		productsByID:        make(map[string]domain.Product),
		inventoryByProduct:  make(map[string]domain.Inventory),
		customersByID:       make(map[string]domain.Customer),
		suppliersByID:       make(map[string]domain.Supplier),
		salesByID:           make(map[string]*domain.Sale),
		drawersByID:         make(map[string]domain.CashDrawer),
		openDrawerByCashier: make(map[string]string),
		purchasesByID:       make(map[string]*domain.Purchase),
		expenses:            make([]domain.Expense, 0, 64),
		usersByUsername:     make(map[string]domain.UserAccount),
	}
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD
// environment variables. If unset, hardcoded dev defaults are used with a
// warning printed to stdout. These credentials are never used in production
// (the backend uses PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"cashier", cashierPwd, domain.RoleCashier},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			ID:        uuid.NewString(),
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

func NewSeeded() *Store {
	s := New()
	s.usersByUsername = seedUsers()
	now := time.Now().UTC()

	grocery := domain.Category{ID: uuid.NewString(), Name: "grocery", CreatedAt: now}
	dairy := domain.Category{ID: uuid.NewString(), Name: "dairy", CreatedAt: now}
	bakery := domain.Category{ID: uuid.NewString(), Name: "bakery", CreatedAt: now}
	household := domain.Category{ID: uuid.NewString(), Name: "household", CreatedAt: now}
	for _, c := range []domain.Category{grocery, dairy, bakery, household} {
		s.categoriesByID[c.ID] = c
	}

	seed := []struct {
		name     string
		sku      string
		category string
		cost     string
		selling  string
		unit     string
		stock    string
		reorder  string
	}{
		{"Maize Flour 2kg", "MF-2KG", grocery.ID, "145.00", "175.00", "pc", "120", "20"},
		{"Sugar 1kg", "SG-1KG", grocery.ID, "128.00", "150.00", "pc", "80", "15"},
		{"Cooking Oil 1L", "CO-1L", grocery.ID, "265.00", "310.00", "pc", "60", "10"},
		{"Rice 2kg", "RC-2KG", grocery.ID, "230.00", "280.00", "pc", "70", "12"},
		{"Fresh Milk 500ml", "ML-500", dairy.ID, "48.00", "60.00", "pc", "90", "24"},
		{"White Bread 400g", "BR-400", bakery.ID, "52.00", "65.00", "pc", "45", "10"},
		{"Eggs Tray", "EG-TRY", dairy.ID, "330.00", "390.00", "tray", "40", "8"},
		{"Tea Leaves 250g", "TL-250", grocery.ID, "98.00", "125.00", "pc", "55", "10"},
		{"Bar Soap 800g", "BS-800", household.ID, "135.00", "165.00", "pc", "65", "12"},
		{"Salt 500g", "SL-500", grocery.ID, "22.00", "30.00", "pc", "100", "20"},
	}
	for _, row := range seed {
		p := domain.Product{
			ID:           uuid.NewString(),
			Name:         row.name,
			SKU:          row.sku,
			CategoryID:   row.category,
			CostPrice:    decimal.RequireFromString(row.cost),
			SellingPrice: decimal.RequireFromString(row.selling),
			Unit:         row.unit,
			Active:       true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		s.productsByID[p.ID] = p
		s.inventoryByProduct[p.ID] = domain.Inventory{
			ProductID:      p.ID,
			QuantityOnHand: decimal.RequireFromString(row.stock),
			ReorderLevel:   decimal.RequireFromString(row.reorder),
			UpdatedAt:      now,
		}
	}

	return s
}

func (s *Store) ListCategories(_ context.Context) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	categories := make([]domain.Category, 0, len(s.categoriesByID))
	for _, c := range s.categoriesByID {
		categories = append(categories, c)
	}
	slices.SortFunc(categories, func(a, b domain.Category) int {
		return cmpString(a.Name, b.Name)
	})
	return categories, nil
}

func (s *Store) CreateCategory(_ context.Context, category domain.Category) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	category.Name = strings.TrimSpace(category.Name)
	if category.Name == "" {
		return nil, store.ErrValidation
	}
	for _, existing := range s.categoriesByID {
		if strings.EqualFold(existing.Name, category.Name) {
			return nil, store.ErrConflict
		}
	}
	if category.ID == "" {
		category.ID = uuid.NewString()
	}
	if category.CreatedAt.IsZero() {
		category.CreatedAt = time.Now().UTC()
	}
	s.categoriesByID[category.ID] = category
	created := category
	return &created, nil
}

func (s *Store) ListProducts(_ context.Context, activeOnly bool) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.productsByID))
	for _, p := range s.productsByID {
		if activeOnly && !p.Active {
			continue
		}
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return cmpString(a.Name, b.Name)
	})
	return products, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product, initialStock, reorderLevel decimal.Decimal) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.Name == "" || product.SKU == "" {
		return nil, store.ErrValidation
	}
	for _, existing := range s.productsByID {
		if strings.EqualFold(existing.SKU, product.SKU) {
			return nil, store.ErrConflict
		}
	}
	if product.CategoryID != "" {
		if _, exists := s.categoriesByID[product.CategoryID]; !exists {
			return nil, store.ErrNotFound
		}
	}

	now := time.Now().UTC()
	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now
	product.Active = true

	s.productsByID[product.ID] = product
	s.inventoryByProduct[product.ID] = domain.Inventory{
		ProductID:      product.ID,
		QuantityOnHand: initialStock,
		ReorderLevel:   reorderLevel,
		UpdatedAt:      now,
	}
	created := product
	return &created, nil
}

func (s *Store) GetProductByID(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.productsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.productsByID[product.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if product.Name == "" {
		return nil, store.ErrValidation
	}
	if product.CategoryID != "" {
		if _, ok := s.categoriesByID[product.CategoryID]; !ok {
			return nil, store.ErrNotFound
		}
	}
	product.SKU = existing.SKU
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = time.Now().UTC()
	s.productsByID[product.ID] = product
	updated := product
	return &updated, nil
}

func (s *Store) ListInventory(_ context.Context) ([]domain.InventoryStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.InventoryStatus, 0, len(s.inventoryByProduct))
	for productID, inv := range s.inventoryByProduct {
		product, exists := s.productsByID[productID]
		if !exists {
			continue
		}
		result = append(result, inventoryStatus(product, inv))
	}
	slices.SortFunc(result, func(a, b domain.InventoryStatus) int {
		return cmpString(a.Product.Name, b.Product.Name)
	})
	return result, nil
}

func (s *Store) GetInventory(_ context.Context, productID string) (*domain.Inventory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, exists := s.inventoryByProduct[productID]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyInv := inv
	return &copyInv, nil
}

func (s *Store) UpdateReorderLevel(_ context.Context, productID string, level decimal.Decimal) (*domain.Inventory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, exists := s.inventoryByProduct[productID]
	if !exists {
		return nil, store.ErrNotFound
	}
	inv.ReorderLevel = level
	inv.UpdatedAt = time.Now().UTC()
	s.inventoryByProduct[productID] = inv
	copyInv := inv
	return &copyInv, nil
}

func (s *Store) MoveStock(_ context.Context, productID string, qty decimal.Decimal, direction store.StockDirection) (*domain.Inventory, error) {
	if qty.LessThanOrEqual(decimal.Zero) {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	inv, err := s.applyStockMove(productID, qty, direction)
	if err != nil {
		return nil, err
	}
	copyInv := *inv
	return &copyInv, nil
}

// applyStockMove mutates one inventory row. Callers must hold the write
// lock.
func (s *Store) applyStockMove(productID string, qty decimal.Decimal, direction store.StockDirection) (*domain.Inventory, error) {
	inv, exists := s.inventoryByProduct[productID]
	if !exists {
		return nil, store.ErrNotFound
	}

	switch direction {
	case store.StockDebit:
		next := inv.QuantityOnHand.Sub(qty)
		if next.IsNegative() {
			return nil, store.ErrInsufficientStock
		}
		inv.QuantityOnHand = next
	case store.StockCredit:
		inv.QuantityOnHand = inv.QuantityOnHand.Add(qty)
	default:
		return nil, store.ErrValidation
	}

	inv.UpdatedAt = time.Now().UTC()
	s.inventoryByProduct[productID] = inv
	return &inv, nil
}

func (s *Store) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]domain.Customer, 0, len(s.customersByID))
	for _, c := range s.customersByID {
		customers = append(customers, c)
	}
	slices.SortFunc(customers, func(a, b domain.Customer) int {
		return cmpString(a.Name, b.Name)
	})
	return customers, nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	customer.Name = strings.TrimSpace(customer.Name)
	if customer.Name == "" {
		return nil, store.ErrValidation
	}
	if customer.ID == "" {
		customer.ID = uuid.NewString()
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	s.customersByID[customer.ID] = customer
	created := customer
	return &created, nil
}

func (s *Store) GetCustomerByID(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, exists := s.customersByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyCustomer := customer
	return &copyCustomer, nil
}

func (s *Store) ListSuppliers(_ context.Context) ([]domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	suppliers := make([]domain.Supplier, 0, len(s.suppliersByID))
	for _, sup := range s.suppliersByID {
		suppliers = append(suppliers, sup)
	}
	slices.SortFunc(suppliers, func(a, b domain.Supplier) int {
		return cmpString(a.Name, b.Name)
	})
	return suppliers, nil
}

func (s *Store) CreateSupplier(_ context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	supplier.Name = strings.TrimSpace(supplier.Name)
	if supplier.Name == "" {
		return nil, store.ErrValidation
	}
	if supplier.ID == "" {
		supplier.ID = uuid.NewString()
	}
	if supplier.CreatedAt.IsZero() {
		supplier.CreatedAt = time.Now().UTC()
	}
	s.suppliersByID[supplier.ID] = supplier
	created := supplier
	return &created, nil
}

func (s *Store) GetSupplierByID(_ context.Context, id string) (*domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	supplier, exists := s.suppliersByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copySupplier := supplier
	return &copySupplier, nil
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(sale.Items) == 0 {
		return nil, store.ErrValidation
	}
	for _, item := range sale.Items {
		product, exists := s.productsByID[item.ProductID]
		if !exists || !product.Active {
			return nil, fmt.Errorf("%w: unknown or inactive product %s", store.ErrValidation, item.ProductID)
		}
		if item.Quantity.LessThanOrEqual(decimal.Zero) {
			return nil, store.ErrValidation
		}
	}

	// Check every line before touching stock so a failed sale leaves the
	// ledger untouched.
	for _, item := range sale.Items {
		inv, exists := s.inventoryByProduct[item.ProductID]
		if !exists {
			return nil, fmt.Errorf("%w: unknown or inactive product %s", store.ErrValidation, item.ProductID)
		}
		if inv.QuantityOnHand.Sub(item.Quantity).IsNegative() {
			return nil, store.ErrInsufficientStock
		}
	}
	for _, item := range sale.Items {
		if _, err := s.applyStockMove(item.ProductID, item.Quantity, store.StockDebit); err != nil {
			return nil, err
		}
	}

	if sale.ID == "" {
		sale.ID = uuid.NewString()
	}
	if sale.ReceiptNumber == "" {
		sale.ReceiptNumber = receiptNumber(sale.ID)
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	items := make([]domain.SaleItem, len(sale.Items))
	copy(items, sale.Items)
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = uuid.NewString()
		}
		items[i].Subtotal = items[i].UnitPrice.Mul(items[i].Quantity)
		if p, ok := s.productsByID[items[i].ProductID]; ok {
			items[i].Name = p.Name
		}
	}
	sale.Items = items

	stored := cloneSale(&sale)
	s.salesByID[sale.ID] = stored
	detail := s.saleDetailLocked(stored)
	return detail, nil
}

func (s *Store) GetSaleByID(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, exists := s.salesByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return s.saleDetailLocked(sale), nil
}

func (s *Store) ListSales(_ context.Context, limit int) ([]domain.SaleSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.SaleSummary, 0, len(s.salesByID))
	for _, sale := range s.salesByID {
		result = append(result, domain.SaleSummary{
			ID:            sale.ID,
			ReceiptNumber: sale.ReceiptNumber,
			Cashier:       sale.Cashier,
			PaymentMethod: sale.PaymentMethod,
			TotalAmount:   sale.TotalAmount,
			ItemCount:     len(sale.Items),
			IsRefunded:    sale.IsRefunded,
			CreatedAt:     sale.CreatedAt,
		})
	}
	slices.SortFunc(result, func(a, b domain.SaleSummary) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) RefundSale(_ context.Context, saleID string, at time.Time) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, exists := s.salesByID[saleID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if sale.IsRefunded {
		return nil, store.ErrAlreadyRefunded
	}

	for _, item := range sale.Items {
		if _, err := s.applyStockMove(item.ProductID, item.Quantity, store.StockCredit); err != nil {
			return nil, err
		}
	}

	if at.IsZero() {
		at = time.Now().UTC()
	}
	sale.IsRefunded = true
	sale.RefundedAt = &at
	return s.saleDetailLocked(sale), nil
}

func (s *Store) GetOpenDrawer(_ context.Context, cashierID string) (*domain.CashDrawer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	drawerID, exists := s.openDrawerByCashier[cashierID]
	if !exists {
		return nil, store.ErrNotFound
	}
	drawer := s.drawersByID[drawerID]
	copyDrawer := drawer
	return &copyDrawer, nil
}

func (s *Store) CreateDrawer(_ context.Context, drawer domain.CashDrawer) (*domain.CashDrawer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if drawer.CashierID == "" {
		return nil, store.ErrValidation
	}
	if _, exists := s.openDrawerByCashier[drawer.CashierID]; exists {
		return nil, store.ErrConflict
	}
	if drawer.ID == "" {
		drawer.ID = uuid.NewString()
	}
	if drawer.OpenedAt.IsZero() {
		drawer.OpenedAt = time.Now().UTC()
	}
	drawer.IsOpen = true
	drawer.ClosingBalance = nil
	drawer.ExpectedCash = nil
	drawer.Difference = nil
	drawer.ClosedAt = nil

	s.drawersByID[drawer.ID] = drawer
	s.openDrawerByCashier[drawer.CashierID] = drawer.ID
	created := drawer
	return &created, nil
}

func (s *Store) GetDrawerByID(_ context.Context, id string) (*domain.CashDrawer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	drawer, exists := s.drawersByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyDrawer := drawer
	return &copyDrawer, nil
}

func (s *Store) CloseDrawer(_ context.Context, drawerID string, closingBalance decimal.Decimal, expectedCash decimal.Decimal, at time.Time) (*domain.CashDrawer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	drawer, exists := s.drawersByID[drawerID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if !drawer.IsOpen {
		return nil, store.ErrAlreadyClosed
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}

	difference := closingBalance.Sub(drawer.OpeningBalance)
	drawer.IsOpen = false
	drawer.ClosingBalance = &closingBalance
	drawer.ExpectedCash = &expectedCash
	drawer.Difference = &difference
	drawer.ClosedAt = &at

	s.drawersByID[drawerID] = drawer
	delete(s.openDrawerByCashier, drawer.CashierID)
	closed := drawer
	return &closed, nil
}

func (s *Store) SumCashSales(_ context.Context, cashierID string, from, to time.Time) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := decimal.Zero
	for _, sale := range s.salesByID {
		if sale.CashierID != cashierID || sale.PaymentMethod != domain.PaymentCash || sale.IsRefunded {
			continue
		}
		if sale.CreatedAt.Before(from) || !sale.CreatedAt.Before(to) {
			continue
		}
		total = total.Add(sale.TotalAmount)
	}
	return total, nil
}

func (s *Store) CreatePurchase(_ context.Context, purchase domain.Purchase) (*domain.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if purchase.SupplierID == "" || len(purchase.Items) == 0 {
		return nil, store.ErrValidation
	}
	supplier, exists := s.suppliersByID[purchase.SupplierID]
	if !exists {
		return nil, store.ErrNotFound
	}

	total := decimal.Zero
	items := make([]domain.PurchaseItem, len(purchase.Items))
	copy(items, purchase.Items)
	for i := range items {
		if items[i].Quantity.LessThanOrEqual(decimal.Zero) || items[i].UnitCost.IsNegative() {
			return nil, store.ErrValidation
		}
		product, ok := s.productsByID[items[i].ProductID]
		if !ok {
			return nil, store.ErrNotFound
		}
		if items[i].ID == "" {
			items[i].ID = uuid.NewString()
		}
		items[i].Name = product.Name
		items[i].Subtotal = items[i].UnitCost.Mul(items[i].Quantity)
		total = total.Add(items[i].Subtotal)
	}

	if purchase.ID == "" {
		purchase.ID = uuid.NewString()
	}
	if purchase.CreatedAt.IsZero() {
		purchase.CreatedAt = time.Now().UTC()
	}
	purchase.Status = domain.PurchaseStatusPending
	purchase.Supplier = supplier.Name
	purchase.Items = items
	purchase.TotalCost = total
	purchase.ReceivedAt = nil
	purchase.ReceivedBy = ""

	stored := clonePurchase(&purchase)
	s.purchasesByID[purchase.ID] = stored
	created := *clonePurchase(stored)
	return &created, nil
}

func (s *Store) GetPurchaseByID(_ context.Context, id string) (*domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	purchase, exists := s.purchasesByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return clonePurchase(purchase), nil
}

func (s *Store) ListPurchases(_ context.Context, status string, limit int) ([]domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status = strings.ToUpper(strings.TrimSpace(status))
	result := make([]domain.Purchase, 0, len(s.purchasesByID))
	for _, purchase := range s.purchasesByID {
		if status != "" && purchase.Status != status {
			continue
		}
		result = append(result, *clonePurchase(purchase))
	}
	slices.SortFunc(result, func(a, b domain.Purchase) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) ReceivePurchase(_ context.Context, purchaseID string, receivedBy string, at time.Time) (*domain.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	purchase, exists := s.purchasesByID[purchaseID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if purchase.Status == domain.PurchaseStatusReceived {
		return nil, store.ErrAlreadyReceived
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}

	for _, item := range purchase.Items {
		if _, err := s.applyStockMove(item.ProductID, item.Quantity, store.StockCredit); err != nil {
			return nil, err
		}
	}

	purchase.Status = domain.PurchaseStatusReceived
	purchase.ReceivedBy = strings.TrimSpace(receivedBy)
	purchase.ReceivedAt = &at
	return clonePurchase(purchase), nil
}

func (s *Store) CreateExpense(_ context.Context, expense domain.Expense) (*domain.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if expense.Category == "" || expense.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, store.ErrValidation
	}
	now := time.Now().UTC()
	if expense.ID == "" {
		expense.ID = uuid.NewString()
	}
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = now
	}
	if expense.IncurredAt.IsZero() {
		expense.IncurredAt = now
	}
	s.expenses = append(s.expenses, expense)
	created := expense
	return &created, nil
}

func (s *Store) ListExpenses(_ context.Context, limit int) ([]domain.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Expense, len(s.expenses))
	copy(result, s.expenses)
	slices.SortFunc(result, func(a, b domain.Expense) int {
		if a.IncurredAt.Equal(b.IncurredAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.IncurredAt.After(b.IncurredAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) SalesAggregate(_ context.Context, from, to time.Time) (decimal.Decimal, decimal.Decimal, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := decimal.Zero
	profit := decimal.Zero
	var count int64
	for _, sale := range s.salesByID {
		if sale.CreatedAt.Before(from) || !sale.CreatedAt.Before(to) {
			continue
		}
		count++
		total = total.Add(sale.TotalAmount)
		for _, item := range sale.Items {
			product, exists := s.productsByID[item.ProductID]
			if !exists {
				continue
			}
			profit = profit.Add(itemProfit(item, product))
		}
	}
	return total, profit, count, nil
}

func (s *Store) TopProducts(_ context.Context, from, to time.Time, limit int) ([]domain.TopProduct, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byProduct := map[string]*domain.TopProduct{}
	for _, sale := range s.salesByID {
		if sale.CreatedAt.Before(from) || !sale.CreatedAt.Before(to) {
			continue
		}
		for _, item := range sale.Items {
			entry := byProduct[item.ProductID]
			if entry == nil {
				name := item.Name
				if p, ok := s.productsByID[item.ProductID]; ok {
					name = p.Name
				}
				entry = &domain.TopProduct{ProductID: item.ProductID, Name: name, Quantity: decimal.Zero, Revenue: decimal.Zero}
				byProduct[item.ProductID] = entry
			}
			entry.Quantity = entry.Quantity.Add(item.Quantity)
			entry.Revenue = entry.Revenue.Add(item.UnitPrice.Mul(item.Quantity))
		}
	}

	result := make([]domain.TopProduct, 0, len(byProduct))
	for _, entry := range byProduct {
		result = append(result, *entry)
	}
	slices.SortFunc(result, func(a, b domain.TopProduct) int {
		if a.Revenue.Equal(b.Revenue) {
			return cmpString(a.ProductID, b.ProductID)
		}
		if a.Revenue.GreaterThan(b.Revenue) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) PaymentBreakdown(_ context.Context, from, to time.Time) ([]domain.PaymentBreakdown, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byMethod := map[string]*domain.PaymentBreakdown{}
	for _, sale := range s.salesByID {
		if sale.CreatedAt.Before(from) || !sale.CreatedAt.Before(to) {
			continue
		}
		entry := byMethod[sale.PaymentMethod]
		if entry == nil {
			entry = &domain.PaymentBreakdown{PaymentMethod: sale.PaymentMethod, Total: decimal.Zero}
			byMethod[sale.PaymentMethod] = entry
		}
		entry.Transactions++
		entry.Total = entry.Total.Add(sale.TotalAmount)
	}

	result := make([]domain.PaymentBreakdown, 0, len(byMethod))
	for _, entry := range byMethod {
		result = append(result, *entry)
	}
	slices.SortFunc(result, func(a, b domain.PaymentBreakdown) int {
		return cmpString(a.PaymentMethod, b.PaymentMethod)
	})
	return result, nil
}

func (s *Store) SalesTrend(_ context.Context, from, to time.Time) ([]domain.TrendPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byDate := map[string]*domain.TrendPoint{}
	for _, sale := range s.salesByID {
		if sale.CreatedAt.Before(from) || !sale.CreatedAt.Before(to) {
			continue
		}
		date := sale.CreatedAt.UTC().Format("2006-01-02")
		entry := byDate[date]
		if entry == nil {
			entry = &domain.TrendPoint{Date: date, TotalSales: decimal.Zero}
			byDate[date] = entry
		}
		entry.TransactionCount++
		entry.TotalSales = entry.TotalSales.Add(sale.TotalAmount)
	}

	result := make([]domain.TrendPoint, 0, len(byDate))
	for _, entry := range byDate {
		result = append(result, *entry)
	}
	slices.SortFunc(result, func(a, b domain.TrendPoint) int {
		return cmpString(a.Date, b.Date)
	})
	return result, nil
}

func (s *Store) InventorySummary(_ context.Context) (*domain.InventorySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := domain.InventorySummary{TotalStockValue: decimal.Zero}
	for productID, inv := range s.inventoryByProduct {
		product, exists := s.productsByID[productID]
		if !exists {
			continue
		}
		summary.ProductCount++
		summary.TotalStockValue = summary.TotalStockValue.Add(product.CostPrice.Mul(inv.QuantityOnHand))
		if inv.QuantityOnHand.LessThanOrEqual(decimal.Zero) {
			summary.OutOfStockCount++
		} else if inv.IsLowStock() {
			summary.LowStockCount++
		}
	}
	return &summary, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrValidation
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrConflict
	}
	user.Username = username
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Role == "" {
		user.Role = domain.RoleCashier
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.usersByUsername[strings.ToLower(strings.TrimSpace(username))]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyUser := user
	return &copyUser, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

// saleDetailLocked clones a sale and fills in per-item and total profit
// using the product's current cost price. Callers must hold at least the
// read lock.
func (s *Store) saleDetailLocked(sale *domain.Sale) *domain.Sale {
	detail := cloneSale(sale)
	totalProfit := decimal.Zero
	for i := range detail.Items {
		product, exists := s.productsByID[detail.Items[i].ProductID]
		if !exists {
			continue
		}
		detail.Items[i].Profit = itemProfit(detail.Items[i], product)
		totalProfit = totalProfit.Add(detail.Items[i].Profit)
	}
	detail.Profit = totalProfit
	return detail
}

func itemProfit(item domain.SaleItem, product domain.Product) decimal.Decimal {
	return item.UnitPrice.Sub(product.CostPrice).Mul(item.Quantity)
}

func inventoryStatus(product domain.Product, inv domain.Inventory) domain.InventoryStatus {
	return domain.InventoryStatus{
		Product:        product,
		QuantityOnHand: inv.QuantityOnHand,
		ReorderLevel:   inv.ReorderLevel,
		IsLowStock:     inv.IsLowStock(),
		StockValue:     product.CostPrice.Mul(inv.QuantityOnHand),
	}
}

func receiptNumber(saleID string) string {
	compact := strings.ReplaceAll(saleID, "-", "")
	if len(compact) > 8 {
		compact = compact[:8]
	}
	return "RCP-" + strings.ToUpper(compact)
}

func cmpString(a string, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

func cloneSale(src *domain.Sale) *domain.Sale {
	if src == nil {
		return nil
	}
	dup := *src
	items := make([]domain.SaleItem, len(src.Items))
	copy(items, src.Items)
	dup.Items = items
	return &dup
}

func clonePurchase(src *domain.Purchase) *domain.Purchase {
	if src == nil {
		return nil
	}
	dup := *src
	items := make([]domain.PurchaseItem, len(src.Items))
	copy(items, src.Items)
	dup.Items = items
	return &dup
}
