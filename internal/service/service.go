package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/AchayoEarnest/smartpos/internal/cache"
	"github.com/AchayoEarnest/smartpos/internal/domain"
	"github.com/AchayoEarnest/smartpos/internal/store"
)

// ErrForbidden is returned when the acting user's role does not allow the
// operation.
var ErrForbidden = errors.New("insufficient role")

type Service struct {
	repo       store.Repository
	summaries  cache.SummaryCache
	summaryTTL time.Duration
}

func New(repo store.Repository, summaries cache.SummaryCache, summaryTTL time.Duration) *Service {
	if summaries == nil {
		summaries = cache.NoopSummaryCache{}
	}
	if summaryTTL <= 0 {
		summaryTTL = 5 * time.Minute
	}

	return &Service{
		repo:       repo,
		summaries:  summaries,
		summaryTTL: summaryTTL,
	}
}

func canManageCatalog(actor domain.Actor) bool {
	return actor.Role == domain.RoleAdmin || actor.Role == domain.RoleManager
}

func (s *Service) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return s.repo.ListCategories(ctx)
}

func (s *Service) CreateCategory(ctx context.Context, actor domain.Actor, req domain.CategoryCreateRequest) (*domain.Category, error) {
	if !canManageCatalog(actor) {
		return nil, ErrForbidden
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, fmt.Errorf("%w: category name is required", store.ErrValidation)
	}

	created, err := s.repo.CreateCategory(ctx, domain.Category{
		Name:        req.Name,
		Description: strings.TrimSpace(req.Description),
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(actor, "category_create", "category", created.ID, created.Name)
	return created, nil
}

func (s *Service) ListProducts(ctx context.Context, activeOnly bool) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx, activeOnly)
}

func (s *Service) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: product id is required", store.ErrValidation)
	}
	return s.repo.GetProductByID(ctx, id)
}

func (s *Service) CreateProduct(ctx context.Context, actor domain.Actor, req domain.ProductCreateRequest) (*domain.Product, error) {
	if !canManageCatalog(actor) {
		return nil, ErrForbidden
	}

	req.Name = strings.TrimSpace(req.Name)
	req.SKU = strings.ToUpper(strings.TrimSpace(req.SKU))
	if req.Name == "" || req.SKU == "" {
		return nil, fmt.Errorf("%w: product name and sku are required", store.ErrValidation)
	}
	if req.CostPrice.IsNegative() || req.SellingPrice.IsNegative() {
		return nil, fmt.Errorf("%w: prices cannot be negative", store.ErrValidation)
	}
	if req.InitialStock.IsNegative() || req.ReorderLevel.IsNegative() {
		return nil, fmt.Errorf("%w: stock quantities cannot be negative", store.ErrValidation)
	}
	if req.Unit == "" {
		req.Unit = "pc"
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		Name:         req.Name,
		SKU:          req.SKU,
		CategoryID:   strings.TrimSpace(req.CategoryID),
		CostPrice:    req.CostPrice,
		SellingPrice: req.SellingPrice,
		Unit:         req.Unit,
	}, req.InitialStock, req.ReorderLevel)
	if err != nil {
		return nil, err
	}

	s.logAudit(actor, "product_create", "product", created.ID, fmt.Sprintf("sku=%s,stock=%s", created.SKU, req.InitialStock))
	return created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, actor domain.Actor, id string, req domain.ProductUpdateRequest) (*domain.Product, error) {
	if !canManageCatalog(actor) {
		return nil, ErrForbidden
	}
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: product id is required", store.ErrValidation)
	}

	existing, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: product name cannot be empty", store.ErrValidation)
		}
		updated.Name = name
	}
	if req.CategoryID != nil {
		updated.CategoryID = strings.TrimSpace(*req.CategoryID)
	}
	if req.CostPrice != nil {
		if req.CostPrice.IsNegative() {
			return nil, fmt.Errorf("%w: cost price cannot be negative", store.ErrValidation)
		}
		updated.CostPrice = *req.CostPrice
	}
	if req.SellingPrice != nil {
		if req.SellingPrice.IsNegative() {
			return nil, fmt.Errorf("%w: selling price cannot be negative", store.ErrValidation)
		}
		updated.SellingPrice = *req.SellingPrice
	}
	if req.Unit != nil {
		updated.Unit = strings.TrimSpace(*req.Unit)
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}

	if req.ReorderLevel != nil && req.ReorderLevel.IsNegative() {
		return nil, fmt.Errorf("%w: reorder level cannot be negative", store.ErrValidation)
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return nil, err
	}
	if req.ReorderLevel != nil {
		if _, err := s.repo.UpdateReorderLevel(ctx, saved.ID, *req.ReorderLevel); err != nil {
			return nil, err
		}
	}

	s.logAudit(actor, "product_update", "product", saved.ID, fmt.Sprintf("active=%t,cost=%s,price=%s", saved.Active, saved.CostPrice, saved.SellingPrice))
	return saved, nil
}

func (s *Service) ListInventory(ctx context.Context) ([]domain.InventoryStatus, error) {
	return s.repo.ListInventory(ctx)
}

// ListLowStock filters the inventory down to products at or below their
// reorder level.
func (s *Service) ListLowStock(ctx context.Context) ([]domain.InventoryStatus, error) {
	all, err := s.repo.ListInventory(ctx)
	if err != nil {
		return nil, err
	}

	low := make([]domain.InventoryStatus, 0, len(all))
	for _, status := range all {
		if status.IsLowStock {
			low = append(low, status)
		}
	}
	return low, nil
}

func (s *Service) InventorySummary(ctx context.Context) (*domain.InventorySummary, error) {
	return s.repo.InventorySummary(ctx)
}

// MoveStock applies a manual adjustment outside the sale/refund/receive
// flows, e.g. breakage write-offs or opening counts.
func (s *Service) MoveStock(ctx context.Context, actor domain.Actor, productID string, qty decimal.Decimal, direction store.StockDirection) (*domain.Inventory, error) {
	if !canManageCatalog(actor) {
		return nil, ErrForbidden
	}
	if strings.TrimSpace(productID) == "" {
		return nil, fmt.Errorf("%w: product id is required", store.ErrValidation)
	}
	if qty.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: quantity must be positive", store.ErrValidation)
	}
	if direction != store.StockDebit && direction != store.StockCredit {
		return nil, fmt.Errorf("%w: direction must be debit or credit", store.ErrValidation)
	}

	inv, err := s.repo.MoveStock(ctx, productID, qty, direction)
	if err != nil {
		return nil, err
	}

	s.logAudit(actor, "stock_move", "inventory", productID, fmt.Sprintf("qty=%s,direction=%s", qty, direction))
	return inv, nil
}

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx)
}

func (s *Service) CreateCustomer(ctx context.Context, actor domain.Actor, req domain.CustomerCreateRequest) (*domain.Customer, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, fmt.Errorf("%w: customer name is required", store.ErrValidation)
	}

	created, err := s.repo.CreateCustomer(ctx, domain.Customer{
		Name:  req.Name,
		Phone: strings.TrimSpace(req.Phone),
		Email: strings.TrimSpace(req.Email),
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(actor, "customer_create", "customer", created.ID, created.Name)
	return created, nil
}

func (s *Service) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	return s.repo.ListSuppliers(ctx)
}

func (s *Service) CreateSupplier(ctx context.Context, actor domain.Actor, req domain.SupplierCreateRequest) (*domain.Supplier, error) {
	if !canManageCatalog(actor) {
		return nil, ErrForbidden
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, fmt.Errorf("%w: supplier name is required", store.ErrValidation)
	}

	created, err := s.repo.CreateSupplier(ctx, domain.Supplier{
		Name:  req.Name,
		Phone: strings.TrimSpace(req.Phone),
		Email: strings.TrimSpace(req.Email),
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(actor, "supplier_create", "supplier", created.ID, created.Name)
	return created, nil
}

// CommitSale validates the request, fills in unit prices that the caller
// left blank from the current selling price, and persists the sale with
// its stock debits in one transaction.
func (s *Service) CommitSale(ctx context.Context, actor domain.Actor, req domain.SaleCreateRequest) (*domain.Sale, error) {
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: sale requires at least one item", store.ErrValidation)
	}
	if !domain.ValidPaymentMethod(req.PaymentMethod) {
		return nil, fmt.Errorf("%w: unsupported payment method %q", store.ErrValidation, req.PaymentMethod)
	}
	if req.Discount.IsNegative() || req.TaxAmount.IsNegative() || req.TotalAmount.IsNegative() {
		return nil, fmt.Errorf("%w: amounts cannot be negative", store.ErrValidation)
	}

	if req.CustomerID != "" {
		if _, err := s.repo.GetCustomerByID(ctx, req.CustomerID); err != nil {
			return nil, err
		}
	}

	subtotal := decimal.Zero
	items := make([]domain.SaleItem, 0, len(req.Items))
	for _, input := range req.Items {
		if strings.TrimSpace(input.ProductID) == "" {
			return nil, fmt.Errorf("%w: item product id is required", store.ErrValidation)
		}
		if input.Quantity.LessThanOrEqual(decimal.Zero) {
			return nil, fmt.Errorf("%w: item quantity must be positive", store.ErrValidation)
		}

		unitPrice := decimal.Zero
		if input.UnitPrice != nil {
			if input.UnitPrice.IsNegative() {
				return nil, fmt.Errorf("%w: unit price cannot be negative", store.ErrValidation)
			}
			unitPrice = *input.UnitPrice
		} else {
			product, err := s.repo.GetProductByID(ctx, input.ProductID)
			if err != nil {
				// An unknown product on a sale line is a malformed request,
				// not a missing resource.
				if errors.Is(err, store.ErrNotFound) {
					return nil, fmt.Errorf("%w: unknown product %s", store.ErrValidation, input.ProductID)
				}
				return nil, err
			}
			unitPrice = product.SellingPrice
		}

		lineTotal := unitPrice.Mul(input.Quantity)
		subtotal = subtotal.Add(lineTotal)
		items = append(items, domain.SaleItem{
			ProductID: input.ProductID,
			Quantity:  input.Quantity,
			UnitPrice: unitPrice,
			Subtotal:  lineTotal,
		})
	}

	changeDue := decimal.Zero
	if req.PaymentMethod == domain.PaymentCash {
		if req.AmountTendered.LessThan(req.TotalAmount) {
			return nil, fmt.Errorf("%w: amount tendered is below the sale total", store.ErrValidation)
		}
		changeDue = req.AmountTendered.Sub(req.TotalAmount)
	}

	created, err := s.repo.CreateSale(ctx, domain.Sale{
		CashierID:      actor.ID,
		Cashier:        actor.Username,
		CustomerID:     req.CustomerID,
		PaymentMethod:  req.PaymentMethod,
		Subtotal:       subtotal,
		Discount:       req.Discount,
		TaxAmount:      req.TaxAmount,
		TotalAmount:    req.TotalAmount,
		AmountTendered: req.AmountTendered,
		ChangeDue:      changeDue,
		Items:          items,
	})
	if err != nil {
		return nil, err
	}

	s.invalidateDailySummary(ctx, created.CreatedAt)
	s.logAudit(actor, "sale_commit", "sale", created.ID, fmt.Sprintf("receipt=%s,total=%s,payment=%s", created.ReceiptNumber, created.TotalAmount, created.PaymentMethod))
	return created, nil
}

func (s *Service) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: sale id is required", store.ErrValidation)
	}
	return s.repo.GetSaleByID(ctx, id)
}

func (s *Service) ListSales(ctx context.Context, limit int) ([]domain.SaleSummary, error) {
	return s.repo.ListSales(ctx, limit)
}

// RefundSale is at-most-once: every item is credited back and the sale is
// marked refunded in one transaction. Refunding twice fails.
func (s *Service) RefundSale(ctx context.Context, actor domain.Actor, saleID string) (*domain.Sale, error) {
	if !canManageCatalog(actor) {
		return nil, ErrForbidden
	}
	if strings.TrimSpace(saleID) == "" {
		return nil, fmt.Errorf("%w: sale id is required", store.ErrValidation)
	}

	refunded, err := s.repo.RefundSale(ctx, saleID, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	s.invalidateDailySummary(ctx, refunded.CreatedAt)
	s.logAudit(actor, "sale_refund", "sale", refunded.ID, fmt.Sprintf("receipt=%s,total=%s", refunded.ReceiptNumber, refunded.TotalAmount))
	return refunded, nil
}

// OpenOrGetDrawer is idempotent: when the cashier already has an open
// drawer it is returned as-is and the opening balance is ignored.
func (s *Service) OpenOrGetDrawer(ctx context.Context, actor domain.Actor, openingBalance decimal.Decimal) (*domain.CashDrawer, error) {
	if openingBalance.IsNegative() {
		return nil, fmt.Errorf("%w: opening balance cannot be negative", store.ErrValidation)
	}

	existing, err := s.repo.GetOpenDrawer(ctx, actor.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	created, err := s.repo.CreateDrawer(ctx, domain.CashDrawer{
		CashierID:      actor.ID,
		Cashier:        actor.Username,
		OpeningBalance: openingBalance,
	})
	if err != nil {
		// Lost the race against another open for the same cashier; the
		// winner's drawer is the one to hand back.
		if errors.Is(err, store.ErrConflict) {
			return s.repo.GetOpenDrawer(ctx, actor.ID)
		}
		return nil, err
	}

	s.logAudit(actor, "drawer_open", "cash_drawer", created.ID, fmt.Sprintf("opening=%s", created.OpeningBalance))
	return created, nil
}

// CloseDrawer is one-way. Expected cash sums the cashier's non-refunded
// cash sales between opened_at (inclusive) and closed_at (exclusive);
// difference is closing balance minus opening balance.
func (s *Service) CloseDrawer(ctx context.Context, actor domain.Actor, drawerID string, req domain.DrawerCloseRequest) (*domain.DrawerReconciliation, error) {
	if strings.TrimSpace(drawerID) == "" {
		return nil, fmt.Errorf("%w: drawer id is required", store.ErrValidation)
	}
	if req.ClosingBalance.IsNegative() {
		return nil, fmt.Errorf("%w: closing balance cannot be negative", store.ErrValidation)
	}

	drawer, err := s.repo.GetDrawerByID(ctx, drawerID)
	if err != nil {
		return nil, err
	}
	if !drawer.IsOpen {
		return nil, store.ErrAlreadyClosed
	}

	closedAt := time.Now().UTC()
	expected, err := s.repo.SumCashSales(ctx, drawer.CashierID, drawer.OpenedAt, closedAt)
	if err != nil {
		return nil, err
	}

	closed, err := s.repo.CloseDrawer(ctx, drawerID, req.ClosingBalance, expected, closedAt)
	if err != nil {
		return nil, err
	}

	difference := decimal.Zero
	if closed.Difference != nil {
		difference = *closed.Difference
	}

	s.logAudit(actor, "drawer_close", "cash_drawer", closed.ID, fmt.Sprintf("closing=%s,expected=%s,difference=%s", req.ClosingBalance, expected, difference))
	return &domain.DrawerReconciliation{
		Drawer:       *closed,
		ExpectedCash: expected,
		Difference:   difference,
	}, nil
}

func (s *Service) GetDrawer(ctx context.Context, id string) (*domain.CashDrawer, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: drawer id is required", store.ErrValidation)
	}
	return s.repo.GetDrawerByID(ctx, id)
}

func (s *Service) CreatePurchase(ctx context.Context, actor domain.Actor, req domain.PurchaseCreateRequest) (*domain.Purchase, error) {
	if !canManageCatalog(actor) {
		return nil, ErrForbidden
	}
	if strings.TrimSpace(req.SupplierID) == "" {
		return nil, fmt.Errorf("%w: supplier id is required", store.ErrValidation)
	}
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: purchase requires at least one item", store.ErrValidation)
	}

	if _, err := s.repo.GetSupplierByID(ctx, req.SupplierID); err != nil {
		return nil, err
	}

	var expectedDate *time.Time
	if strings.TrimSpace(req.ExpectedDate) != "" {
		parsed, err := time.Parse("2006-01-02", req.ExpectedDate)
		if err != nil {
			return nil, fmt.Errorf("%w: expected_date must be YYYY-MM-DD", store.ErrValidation)
		}
		d := parsed.UTC()
		expectedDate = &d
	}

	items := make([]domain.PurchaseItem, 0, len(req.Items))
	for _, input := range req.Items {
		if strings.TrimSpace(input.ProductID) == "" {
			return nil, fmt.Errorf("%w: item product id is required", store.ErrValidation)
		}
		if input.Quantity.LessThanOrEqual(decimal.Zero) || input.UnitCost.IsNegative() {
			return nil, fmt.Errorf("%w: item quantity must be positive and unit cost non-negative", store.ErrValidation)
		}
		items = append(items, domain.PurchaseItem{
			ProductID: input.ProductID,
			Quantity:  input.Quantity,
			UnitCost:  input.UnitCost,
		})
	}

	created, err := s.repo.CreatePurchase(ctx, domain.Purchase{
		SupplierID:   req.SupplierID,
		ExpectedDate: expectedDate,
		CreatedBy:    actor.Username,
		Items:        items,
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(actor, "purchase_create", "purchase", created.ID, fmt.Sprintf("supplier=%s,total=%s,items=%d", created.SupplierID, created.TotalCost, len(created.Items)))
	return created, nil
}

func (s *Service) GetPurchase(ctx context.Context, id string) (*domain.Purchase, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: purchase id is required", store.ErrValidation)
	}
	return s.repo.GetPurchaseByID(ctx, id)
}

func (s *Service) ListPurchases(ctx context.Context, status string, limit int) ([]domain.Purchase, error) {
	status = strings.ToUpper(strings.TrimSpace(status))
	if status != "" && status != domain.PurchaseStatusPending && status != domain.PurchaseStatusReceived {
		return nil, fmt.Errorf("%w: unknown purchase status %q", store.ErrValidation, status)
	}
	return s.repo.ListPurchases(ctx, status, limit)
}

// MarkPurchaseReceived flips a pending purchase to RECEIVED and credits
// stock for every line exactly once.
func (s *Service) MarkPurchaseReceived(ctx context.Context, actor domain.Actor, purchaseID string) (*domain.Purchase, error) {
	if !canManageCatalog(actor) {
		return nil, ErrForbidden
	}
	if strings.TrimSpace(purchaseID) == "" {
		return nil, fmt.Errorf("%w: purchase id is required", store.ErrValidation)
	}

	received, err := s.repo.ReceivePurchase(ctx, purchaseID, actor.Username, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	s.logAudit(actor, "purchase_receive", "purchase", received.ID, fmt.Sprintf("received_by=%s,total=%s", actor.Username, received.TotalCost))
	return received, nil
}

func (s *Service) RecordExpense(ctx context.Context, actor domain.Actor, req domain.ExpenseCreateRequest) (*domain.Expense, error) {
	req.Category = strings.TrimSpace(req.Category)
	if req.Category == "" {
		return nil, fmt.Errorf("%w: expense category is required", store.ErrValidation)
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: expense amount must be positive", store.ErrValidation)
	}

	incurredAt := time.Now().UTC()
	if strings.TrimSpace(req.IncurredAt) != "" {
		parsed, err := time.Parse("2006-01-02", req.IncurredAt)
		if err != nil {
			return nil, fmt.Errorf("%w: incurred_at must be YYYY-MM-DD", store.ErrValidation)
		}
		incurredAt = parsed.UTC()
	}

	created, err := s.repo.CreateExpense(ctx, domain.Expense{
		Category:    req.Category,
		Description: strings.TrimSpace(req.Description),
		Amount:      req.Amount,
		RecordedBy:  actor.Username,
		IncurredAt:  incurredAt,
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(actor, "expense_record", "expense", created.ID, fmt.Sprintf("category=%s,amount=%s", created.Category, created.Amount))
	return created, nil
}

func (s *Service) ListExpenses(ctx context.Context, limit int) ([]domain.Expense, error) {
	return s.repo.ListExpenses(ctx, limit)
}

// DailySummary aggregates one calendar day (UTC). Results are cached
// briefly; sale commits and refunds invalidate the affected day.
func (s *Service) DailySummary(ctx context.Context, date string) (*domain.DailySummary, error) {
	day, err := parseDay(date)
	if err != nil {
		return nil, err
	}
	from := day
	to := from.Add(24 * time.Hour)
	key := dailySummaryKey(from)

	if cached, ok, err := s.summaries.Get(ctx, key); err != nil {
		log.Printf("[service] WARN: summary cache read failed key=%s: %v", key, err)
	} else if ok {
		return cached, nil
	}

	total, profit, count, err := s.repo.SalesAggregate(ctx, from, to)
	if err != nil {
		return nil, err
	}
	top, err := s.repo.TopProducts(ctx, from, to, 5)
	if err != nil {
		return nil, err
	}
	payments, err := s.repo.PaymentBreakdown(ctx, from, to)
	if err != nil {
		return nil, err
	}

	summary := &domain.DailySummary{
		Date:               from.Format("2006-01-02"),
		TotalSales:         total,
		TotalProfit:        profit,
		TransactionCount:   count,
		AverageTransaction: averageTransaction(total, count),
		TopProducts:        top,
		PaymentBreakdown:   payments,
	}

	if err := s.summaries.Set(ctx, key, summary, s.summaryTTL); err != nil {
		log.Printf("[service] WARN: summary cache write failed key=%s: %v", key, err)
	}
	return summary, nil
}

// PeriodSummary aggregates the inclusive date range [start, end].
func (s *Service) PeriodSummary(ctx context.Context, startDate, endDate string) (*domain.PeriodSummary, error) {
	start, err := parseDay(startDate)
	if err != nil {
		return nil, err
	}
	end, err := parseDay(endDate)
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end_date is before start_date", store.ErrValidation)
	}
	from := start
	to := end.Add(24 * time.Hour)

	total, profit, count, err := s.repo.SalesAggregate(ctx, from, to)
	if err != nil {
		return nil, err
	}
	top, err := s.repo.TopProducts(ctx, from, to, 10)
	if err != nil {
		return nil, err
	}
	payments, err := s.repo.PaymentBreakdown(ctx, from, to)
	if err != nil {
		return nil, err
	}

	return &domain.PeriodSummary{
		StartDate:          from.Format("2006-01-02"),
		EndDate:            end.Format("2006-01-02"),
		TotalSales:         total,
		TotalProfit:        profit,
		TransactionCount:   count,
		AverageTransaction: averageTransaction(total, count),
		TopProducts:        top,
		PaymentBreakdown:   payments,
	}, nil
}

// SalesTrend returns one point per calendar day for the trailing window,
// today included. Days with no sales appear as zero points.
func (s *Service) SalesTrend(ctx context.Context, days int) (*domain.SalesTrend, error) {
	if days < 1 {
		days = 7
	}
	if days > 90 {
		days = 90
	}

	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	from := today.AddDate(0, 0, -(days - 1))
	to := today.Add(24 * time.Hour)

	points, err := s.repo.SalesTrend(ctx, from, to)
	if err != nil {
		return nil, err
	}

	byDate := make(map[string]domain.TrendPoint, len(points))
	for _, p := range points {
		byDate[p.Date] = p
	}

	filled := make([]domain.TrendPoint, 0, days)
	for d := from; d.Before(to); d = d.Add(24 * time.Hour) {
		date := d.Format("2006-01-02")
		if p, ok := byDate[date]; ok {
			filled = append(filled, p)
			continue
		}
		filled = append(filled, domain.TrendPoint{Date: date, TotalSales: decimal.Zero})
	}

	return &domain.SalesTrend{Days: days, Points: filled}, nil
}

func (s *Service) CreateUser(ctx context.Context, actor domain.Actor, req domain.UserCreateRequest) (*domain.UserInfo, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, ErrForbidden
	}

	req.Username = strings.ToLower(strings.TrimSpace(req.Username))
	if req.Username == "" {
		return nil, fmt.Errorf("%w: username is required", store.ErrValidation)
	}
	if len(req.Password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", store.ErrValidation)
	}
	if req.Role == "" {
		req.Role = domain.RoleCashier
	}
	if !domain.ValidRole(req.Role) {
		return nil, fmt.Errorf("%w: unknown role %q", store.ErrValidation, req.Role)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	account := domain.UserAccount{
		Username:  req.Username,
		Password:  string(hashed),
		Role:      req.Role,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.CreateUser(ctx, account); err != nil {
		return nil, err
	}

	saved, err := s.repo.GetUserByUsername(ctx, req.Username)
	if err != nil {
		return nil, err
	}

	s.logAudit(actor, "user_create", "user", saved.ID, fmt.Sprintf("username=%s,role=%s", saved.Username, saved.Role))
	return &domain.UserInfo{
		ID:        saved.ID,
		Username:  saved.Username,
		Role:      saved.Role,
		Active:    saved.Active,
		CreatedAt: saved.CreatedAt,
	}, nil
}

func (s *Service) ListUsers(ctx context.Context, actor domain.Actor) ([]domain.UserInfo, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, ErrForbidden
	}

	accounts, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	users := make([]domain.UserInfo, 0, len(accounts))
	for _, account := range accounts {
		users = append(users, domain.UserInfo{
			ID:        account.ID,
			Username:  account.Username,
			Role:      account.Role,
			Active:    account.Active,
			CreatedAt: account.CreatedAt,
		})
	}
	return users, nil
}

// VerifyCredentials checks a username/password pair against the stored
// bcrypt hash. Unknown users and bad passwords both come back ErrNotFound
// so the API leaks nothing about which one failed.
func (s *Service) VerifyCredentials(ctx context.Context, username, password string) (*domain.UserInfo, error) {
	account, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if !account.Active {
		return nil, store.ErrNotFound
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.Password), []byte(password)); err != nil {
		return nil, store.ErrNotFound
	}

	return &domain.UserInfo{
		ID:        account.ID,
		Username:  account.Username,
		Role:      account.Role,
		Active:    account.Active,
		CreatedAt: account.CreatedAt,
	}, nil
}

func (s *Service) invalidateDailySummary(ctx context.Context, at time.Time) {
	at = at.UTC()
	day := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, time.UTC)
	key := dailySummaryKey(day)
	if err := s.summaries.Invalidate(ctx, key); err != nil {
		log.Printf("[service] WARN: summary cache invalidate failed key=%s: %v", key, err)
	}
}

func (s *Service) logAudit(actor domain.Actor, action, entityType, entityID, detail string) {
	username := actor.Username
	if username == "" {
		username = "system"
	}
	log.Printf("[audit] actor=%s role=%s action=%s entity=%s/%s %s", username, actor.Role, action, entityType, entityID, detail)
}

func parseDay(date string) (time.Time, error) {
	if strings.TrimSpace(date) == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	parsed, err := time.Parse("2006-01-02", date)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD", store.ErrValidation)
	}
	return parsed.UTC(), nil
}

func dailySummaryKey(day time.Time) string {
	return "summary:daily:" + day.Format("2006-01-02")
}

func averageTransaction(total decimal.Decimal, count int64) decimal.Decimal {
	if count < 1 {
		return decimal.Zero
	}
	return total.Div(decimal.NewFromInt(count)).Round(2)
}
