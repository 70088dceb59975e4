package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/AchayoEarnest/smartpos/internal/domain"
	"github.com/AchayoEarnest/smartpos/internal/store"
	"github.com/AchayoEarnest/smartpos/internal/store/memory"
)

var (
	adminActor   = domain.Actor{ID: "u-admin", Username: "admin", Role: domain.RoleAdmin}
	cashierActor = domain.Actor{ID: "u-cashier", Username: "wanjiku", Role: domain.RoleCashier}
)

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	repo := memory.New()
	return New(repo, nil, 0), repo
}

func createTestProduct(t *testing.T, svc *Service, name, sku, cost, selling, stock, reorder string) *domain.Product {
	t.Helper()
	product, err := svc.CreateProduct(context.Background(), adminActor, domain.ProductCreateRequest{
		Name:         name,
		SKU:          sku,
		CostPrice:    dec(cost),
		SellingPrice: dec(selling),
		InitialStock: dec(stock),
		ReorderLevel: dec(reorder),
	})
	if err != nil {
		t.Fatalf("create product %s: %v", sku, err)
	}
	return product
}

func stockOf(t *testing.T, repo *memory.Store, productID string) decimal.Decimal {
	t.Helper()
	inv, err := repo.GetInventory(context.Background(), productID)
	if err != nil {
		t.Fatalf("get inventory: %v", err)
	}
	return inv.QuantityOnHand
}

func TestCommitSaleDebitsStockAndComputesProfit(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	product := createTestProduct(t, svc, "Sugar 1kg", "SG-1KG", "100.00", "150.00", "10", "2")

	sale, err := svc.CommitSale(ctx, cashierActor, domain.SaleCreateRequest{
		PaymentMethod:  domain.PaymentCash,
		TotalAmount:    dec("300.00"),
		AmountTendered: dec("400.00"),
		Items: []domain.SaleItemInput{
			{ProductID: product.ID, Quantity: dec("2")},
		},
	})
	if err != nil {
		t.Fatalf("commit sale: %v", err)
	}

	if got := stockOf(t, repo, product.ID); !got.Equal(dec("8")) {
		t.Fatalf("expected stock 8 after sale, got %s", got)
	}
	if !sale.Items[0].UnitPrice.Equal(dec("150.00")) {
		t.Fatalf("expected unit price defaulted to selling price, got %s", sale.Items[0].UnitPrice)
	}
	if !sale.Subtotal.Equal(dec("300.00")) {
		t.Fatalf("expected subtotal 300.00, got %s", sale.Subtotal)
	}
	if !sale.Profit.Equal(dec("100.00")) {
		t.Fatalf("expected profit 100.00, got %s", sale.Profit)
	}
	if !sale.ChangeDue.Equal(dec("100.00")) {
		t.Fatalf("expected change 100.00, got %s", sale.ChangeDue)
	}
	if !strings.HasPrefix(sale.ReceiptNumber, "RCP-") {
		t.Fatalf("expected receipt number with RCP- prefix, got %q", sale.ReceiptNumber)
	}
	if sale.CashierID != cashierActor.ID || sale.Cashier != cashierActor.Username {
		t.Fatalf("expected sale attributed to the acting cashier, got %s/%s", sale.CashierID, sale.Cashier)
	}
}

func TestCommitSaleHonorsExplicitUnitPrice(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	product := createTestProduct(t, svc, "Rice 2kg", "RC-2KG", "230.00", "280.00", "10", "2")

	override := dec("250.00")
	sale, err := svc.CommitSale(ctx, cashierActor, domain.SaleCreateRequest{
		PaymentMethod: domain.PaymentMpesa,
		TotalAmount:   dec("250.00"),
		Items: []domain.SaleItemInput{
			{ProductID: product.ID, Quantity: dec("1"), UnitPrice: &override},
		},
	})
	if err != nil {
		t.Fatalf("commit sale: %v", err)
	}
	if !sale.Items[0].UnitPrice.Equal(override) {
		t.Fatalf("expected explicit unit price %s, got %s", override, sale.Items[0].UnitPrice)
	}
	if !sale.Profit.Equal(dec("20.00")) {
		t.Fatalf("expected profit 20.00 with discounted price, got %s", sale.Profit)
	}
}

func TestSaleProfitTracksCurrentCostPrice(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	product := createTestProduct(t, svc, "Cooking Oil 1L", "CO-1L", "265.00", "310.00", "10", "2")

	sale, err := svc.CommitSale(ctx, cashierActor, domain.SaleCreateRequest{
		PaymentMethod: domain.PaymentCard,
		TotalAmount:   dec("310.00"),
		Items:         []domain.SaleItemInput{{ProductID: product.ID, Quantity: dec("1")}},
	})
	if err != nil {
		t.Fatalf("commit sale: %v", err)
	}
	if !sale.Profit.Equal(dec("45.00")) {
		t.Fatalf("expected profit 45.00 at original cost, got %s", sale.Profit)
	}

	newCost := dec("290.00")
	if _, err := svc.UpdateProduct(ctx, adminActor, product.ID, domain.ProductUpdateRequest{CostPrice: &newCost}); err != nil {
		t.Fatalf("update cost: %v", err)
	}

	reread, err := svc.GetSale(ctx, sale.ID)
	if err != nil {
		t.Fatalf("get sale: %v", err)
	}
	if !reread.Profit.Equal(dec("20.00")) {
		t.Fatalf("expected profit recomputed against new cost, got %s", reread.Profit)
	}
}

func TestCommitSaleValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	product := createTestProduct(t, svc, "Salt 500g", "SL-500", "22.00", "30.00", "10", "2")

	_, err := svc.CommitSale(ctx, cashierActor, domain.SaleCreateRequest{
		PaymentMethod: domain.PaymentCash,
		TotalAmount:   dec("30.00"),
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for empty items, got %v", err)
	}

	_, err = svc.CommitSale(ctx, cashierActor, domain.SaleCreateRequest{
		PaymentMethod: "barter",
		TotalAmount:   dec("30.00"),
		Items:         []domain.SaleItemInput{{ProductID: product.ID, Quantity: dec("1")}},
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for unknown payment method, got %v", err)
	}

	_, err = svc.CommitSale(ctx, cashierActor, domain.SaleCreateRequest{
		PaymentMethod:  domain.PaymentCash,
		TotalAmount:    dec("30.00"),
		AmountTendered: dec("20.00"),
		Items:          []domain.SaleItemInput{{ProductID: product.ID, Quantity: dec("1")}},
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for short cash tender, got %v", err)
	}

	_, err = svc.CommitSale(ctx, cashierActor, domain.SaleCreateRequest{
		CustomerID:    "missing-customer",
		PaymentMethod: domain.PaymentCash,
		TotalAmount:   dec("30.00"),
		Items:         []domain.SaleItemInput{{ProductID: product.ID, Quantity: dec("1")}},
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for unknown customer, got %v", err)
	}
}

func TestCommitSaleRejectsUnknownProduct(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	product := createTestProduct(t, svc, "Bar Soap 800g", "BS-800", "135.00", "165.00", "10", "2")

	// Default-price path: the product lookup itself fails.
	_, err := svc.CommitSale(ctx, cashierActor, domain.SaleCreateRequest{
		PaymentMethod: domain.PaymentCash,
		TotalAmount:   dec("165.00"),
		Items:         []domain.SaleItemInput{{ProductID: "no-such-product", Quantity: dec("1")}},
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for unknown product, got %v", err)
	}

	// Explicit-price path skips the lookup; the store's own check must
	// surface the same error kind.
	price := dec("165.00")
	_, err = svc.CommitSale(ctx, cashierActor, domain.SaleCreateRequest{
		PaymentMethod: domain.PaymentMpesa,
		TotalAmount:   dec("165.00"),
		Items:         []domain.SaleItemInput{{ProductID: "no-such-product", Quantity: dec("1"), UnitPrice: &price}},
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for unknown product with explicit price, got %v", err)
	}

	// Inactive products are rejected the same way.
	inactive := false
	if _, err := svc.UpdateProduct(ctx, adminActor, product.ID, domain.ProductUpdateRequest{Active: &inactive}); err != nil {
		t.Fatalf("deactivate product: %v", err)
	}
	_, err = svc.CommitSale(ctx, cashierActor, domain.SaleCreateRequest{
		PaymentMethod:  domain.PaymentCash,
		TotalAmount:    dec("165.00"),
		AmountTendered: dec("165.00"),
		Items:          []domain.SaleItemInput{{ProductID: product.ID, Quantity: dec("1"), UnitPrice: &price}},
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for inactive product, got %v", err)
	}
}

func TestUpdateProductReorderLevel(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	product := createTestProduct(t, svc, "Cooking Oil 1L", "CO-1L", "265.00", "310.00", "20", "2")

	newLevel := dec("30")
	if _, err := svc.UpdateProduct(ctx, adminActor, product.ID, domain.ProductUpdateRequest{ReorderLevel: &newLevel}); err != nil {
		t.Fatalf("update reorder level: %v", err)
	}

	inv, err := repo.GetInventory(ctx, product.ID)
	if err != nil {
		t.Fatalf("get inventory: %v", err)
	}
	if !inv.ReorderLevel.Equal(newLevel) {
		t.Fatalf("expected reorder level 30, got %s", inv.ReorderLevel)
	}

	// Stock 20 with reorder 30 now counts as low.
	low, err := svc.ListLowStock(ctx)
	if err != nil {
		t.Fatalf("list low stock: %v", err)
	}
	if len(low) != 1 || low[0].Product.ID != product.ID {
		t.Fatalf("expected product flagged low after reorder raise, got %+v", low)
	}

	negative := dec("-1")
	if _, err := svc.UpdateProduct(ctx, adminActor, product.ID, domain.ProductUpdateRequest{ReorderLevel: &negative}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for negative reorder level, got %v", err)
	}
}

func TestCommitSaleOversellLeavesStockUntouched(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	plenty := createTestProduct(t, svc, "Maize Flour 2kg", "MF-2KG", "145.00", "175.00", "50", "5")
	scarce := createTestProduct(t, svc, "Eggs Tray", "EG-TRY", "330.00", "390.00", "1", "1")

	_, err := svc.CommitSale(ctx, cashierActor, domain.SaleCreateRequest{
		PaymentMethod: domain.PaymentCash,
		TotalAmount:   dec("955.00"),
		Items: []domain.SaleItemInput{
			{ProductID: plenty.ID, Quantity: dec("1")},
			{ProductID: scarce.ID, Quantity: dec("2")},
		},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	if got := stockOf(t, repo, plenty.ID); !got.Equal(dec("50")) {
		t.Fatalf("expected first line untouched after aborted sale, got %s", got)
	}
	if got := stockOf(t, repo, scarce.ID); !got.Equal(dec("1")) {
		t.Fatalf("expected second line untouched after aborted sale, got %s", got)
	}
}

func TestRefundSaleRestocksAtMostOnce(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	product := createTestProduct(t, svc, "Tea Leaves 250g", "TL-250", "98.00", "125.00", "10", "2")

	sale, err := svc.CommitSale(ctx, cashierActor, domain.SaleCreateRequest{
		PaymentMethod:  domain.PaymentCash,
		TotalAmount:    dec("375.00"),
		AmountTendered: dec("375.00"),
		Items:          []domain.SaleItemInput{{ProductID: product.ID, Quantity: dec("3")}},
	})
	if err != nil {
		t.Fatalf("commit sale: %v", err)
	}
	if got := stockOf(t, repo, product.ID); !got.Equal(dec("7")) {
		t.Fatalf("expected stock 7 after sale, got %s", got)
	}

	refunded, err := svc.RefundSale(ctx, adminActor, sale.ID)
	if err != nil {
		t.Fatalf("refund sale: %v", err)
	}
	if !refunded.IsRefunded || refunded.RefundedAt == nil {
		t.Fatalf("expected sale marked refunded with timestamp")
	}
	if got := stockOf(t, repo, product.ID); !got.Equal(dec("10")) {
		t.Fatalf("expected full restock after refund, got %s", got)
	}

	_, err = svc.RefundSale(ctx, adminActor, sale.ID)
	if !errors.Is(err, store.ErrAlreadyRefunded) {
		t.Fatalf("expected already refunded on second attempt, got %v", err)
	}
	if got := stockOf(t, repo, product.ID); !got.Equal(dec("10")) {
		t.Fatalf("expected stock unchanged by failed refund, got %s", got)
	}
}

func TestRefundSaleRequiresManagerRole(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	product := createTestProduct(t, svc, "Bar Soap 800g", "BS-800", "135.00", "165.00", "10", "2")

	sale, err := svc.CommitSale(ctx, cashierActor, domain.SaleCreateRequest{
		PaymentMethod:  domain.PaymentCash,
		TotalAmount:    dec("165.00"),
		AmountTendered: dec("165.00"),
		Items:          []domain.SaleItemInput{{ProductID: product.ID, Quantity: dec("1")}},
	})
	if err != nil {
		t.Fatalf("commit sale: %v", err)
	}

	if _, err := svc.RefundSale(ctx, cashierActor, sale.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden for cashier refund, got %v", err)
	}
}

func TestOpenOrGetDrawerIsIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.OpenOrGetDrawer(ctx, cashierActor, dec("100.00"))
	if err != nil {
		t.Fatalf("open drawer: %v", err)
	}
	second, err := svc.OpenOrGetDrawer(ctx, cashierActor, dec("999.00"))
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same drawer on repeat open, got %s and %s", first.ID, second.ID)
	}
	if !second.OpeningBalance.Equal(dec("100.00")) {
		t.Fatalf("expected original opening balance preserved, got %s", second.OpeningBalance)
	}
}

func TestCloseDrawerReconciliation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	product := createTestProduct(t, svc, "Fresh Milk 500ml", "ML-500", "48.00", "60.00", "20", "5")

	drawer, err := svc.OpenOrGetDrawer(ctx, cashierActor, dec("100.00"))
	if err != nil {
		t.Fatalf("open drawer: %v", err)
	}

	// One cash sale and one mpesa sale; only cash counts toward expected.
	if _, err := svc.CommitSale(ctx, cashierActor, domain.SaleCreateRequest{
		PaymentMethod:  domain.PaymentCash,
		TotalAmount:    dec("50.00"),
		AmountTendered: dec("50.00"),
		Items:          []domain.SaleItemInput{{ProductID: product.ID, Quantity: dec("1")}},
	}); err != nil {
		t.Fatalf("cash sale: %v", err)
	}
	if _, err := svc.CommitSale(ctx, cashierActor, domain.SaleCreateRequest{
		PaymentMethod: domain.PaymentMpesa,
		TotalAmount:   dec("60.00"),
		Items:         []domain.SaleItemInput{{ProductID: product.ID, Quantity: dec("1")}},
	}); err != nil {
		t.Fatalf("mpesa sale: %v", err)
	}

	recon, err := svc.CloseDrawer(ctx, cashierActor, drawer.ID, domain.DrawerCloseRequest{ClosingBalance: dec("150.00")})
	if err != nil {
		t.Fatalf("close drawer: %v", err)
	}
	if !recon.ExpectedCash.Equal(dec("50.00")) {
		t.Fatalf("expected cash 50.00, got %s", recon.ExpectedCash)
	}
	if !recon.Difference.Equal(dec("50.00")) {
		t.Fatalf("expected difference 50.00, got %s", recon.Difference)
	}
	if recon.Drawer.IsOpen {
		t.Fatalf("expected drawer closed")
	}

	_, err = svc.CloseDrawer(ctx, cashierActor, drawer.ID, domain.DrawerCloseRequest{ClosingBalance: dec("150.00")})
	if !errors.Is(err, store.ErrAlreadyClosed) {
		t.Fatalf("expected already closed on second close, got %v", err)
	}

	// A fresh open after closing starts a new drawer.
	reopened, err := svc.OpenOrGetDrawer(ctx, cashierActor, dec("200.00"))
	if err != nil {
		t.Fatalf("reopen drawer: %v", err)
	}
	if reopened.ID == drawer.ID {
		t.Fatalf("expected a new drawer after close")
	}
}

func TestCloseDrawerExcludesRefundedCashSales(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	product := createTestProduct(t, svc, "White Bread 400g", "BR-400", "52.00", "65.00", "20", "5")

	drawer, err := svc.OpenOrGetDrawer(ctx, cashierActor, dec("0.00"))
	if err != nil {
		t.Fatalf("open drawer: %v", err)
	}

	sale, err := svc.CommitSale(ctx, cashierActor, domain.SaleCreateRequest{
		PaymentMethod:  domain.PaymentCash,
		TotalAmount:    dec("65.00"),
		AmountTendered: dec("65.00"),
		Items:          []domain.SaleItemInput{{ProductID: product.ID, Quantity: dec("1")}},
	})
	if err != nil {
		t.Fatalf("cash sale: %v", err)
	}
	if _, err := svc.RefundSale(ctx, adminActor, sale.ID); err != nil {
		t.Fatalf("refund: %v", err)
	}

	recon, err := svc.CloseDrawer(ctx, cashierActor, drawer.ID, domain.DrawerCloseRequest{ClosingBalance: dec("0.00")})
	if err != nil {
		t.Fatalf("close drawer: %v", err)
	}
	if !recon.ExpectedCash.Equal(dec("0.00")) {
		t.Fatalf("expected refunded cash sale excluded, got expected cash %s", recon.ExpectedCash)
	}
}

func TestPurchaseReceiveCreditsStockExactlyOnce(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	product := createTestProduct(t, svc, "Sugar 1kg", "SG-1KG", "128.00", "150.00", "5", "10")

	supplier, err := svc.CreateSupplier(ctx, adminActor, domain.SupplierCreateRequest{Name: "Kilimo Distributors"})
	if err != nil {
		t.Fatalf("create supplier: %v", err)
	}

	purchase, err := svc.CreatePurchase(ctx, adminActor, domain.PurchaseCreateRequest{
		SupplierID: supplier.ID,
		Items: []domain.PurchaseItemInput{
			{ProductID: product.ID, Quantity: dec("40"), UnitCost: dec("125.00")},
		},
	})
	if err != nil {
		t.Fatalf("create purchase: %v", err)
	}
	if purchase.Status != domain.PurchaseStatusPending {
		t.Fatalf("expected pending status, got %s", purchase.Status)
	}
	if !purchase.TotalCost.Equal(dec("5000.00")) {
		t.Fatalf("expected total cost 5000.00, got %s", purchase.TotalCost)
	}
	if got := stockOf(t, repo, product.ID); !got.Equal(dec("5")) {
		t.Fatalf("expected stock unchanged before receiving, got %s", got)
	}

	received, err := svc.MarkPurchaseReceived(ctx, adminActor, purchase.ID)
	if err != nil {
		t.Fatalf("mark received: %v", err)
	}
	if received.Status != domain.PurchaseStatusReceived || received.ReceivedAt == nil {
		t.Fatalf("expected received status with timestamp")
	}
	if got := stockOf(t, repo, product.ID); !got.Equal(dec("45")) {
		t.Fatalf("expected stock 45 after receiving, got %s", got)
	}

	_, err = svc.MarkPurchaseReceived(ctx, adminActor, purchase.ID)
	if !errors.Is(err, store.ErrAlreadyReceived) {
		t.Fatalf("expected already received on second attempt, got %v", err)
	}
	if got := stockOf(t, repo, product.ID); !got.Equal(dec("45")) {
		t.Fatalf("expected stock unchanged by failed receive, got %s", got)
	}
}

func TestDailySummaryAggregates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	product := createTestProduct(t, svc, "Rice 2kg", "RC-2KG", "230.00", "280.00", "50", "5")

	if _, err := svc.CommitSale(ctx, cashierActor, domain.SaleCreateRequest{
		PaymentMethod:  domain.PaymentCash,
		TotalAmount:    dec("280.00"),
		AmountTendered: dec("280.00"),
		Items:          []domain.SaleItemInput{{ProductID: product.ID, Quantity: dec("1")}},
	}); err != nil {
		t.Fatalf("cash sale: %v", err)
	}
	if _, err := svc.CommitSale(ctx, cashierActor, domain.SaleCreateRequest{
		PaymentMethod: domain.PaymentMpesa,
		TotalAmount:   dec("560.00"),
		Items:         []domain.SaleItemInput{{ProductID: product.ID, Quantity: dec("2")}},
	}); err != nil {
		t.Fatalf("mpesa sale: %v", err)
	}

	summary, err := svc.DailySummary(ctx, "")
	if err != nil {
		t.Fatalf("daily summary: %v", err)
	}
	if summary.TransactionCount != 2 {
		t.Fatalf("expected 2 transactions, got %d", summary.TransactionCount)
	}
	if !summary.TotalSales.Equal(dec("840.00")) {
		t.Fatalf("expected total sales 840.00, got %s", summary.TotalSales)
	}
	if !summary.TotalProfit.Equal(dec("150.00")) {
		t.Fatalf("expected total profit 150.00, got %s", summary.TotalProfit)
	}
	if !summary.AverageTransaction.Equal(dec("420.00")) {
		t.Fatalf("expected average 420.00, got %s", summary.AverageTransaction)
	}
	if len(summary.PaymentBreakdown) != 2 {
		t.Fatalf("expected 2 payment methods, got %d", len(summary.PaymentBreakdown))
	}
	if len(summary.TopProducts) != 1 || !summary.TopProducts[0].Quantity.Equal(dec("3")) {
		t.Fatalf("expected one top product with quantity 3, got %+v", summary.TopProducts)
	}
}

func TestSalesTrendFillsEmptyDays(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	product := createTestProduct(t, svc, "Salt 500g", "SL-500", "22.00", "30.00", "50", "5")

	if _, err := svc.CommitSale(ctx, cashierActor, domain.SaleCreateRequest{
		PaymentMethod: domain.PaymentCard,
		TotalAmount:   dec("30.00"),
		Items:         []domain.SaleItemInput{{ProductID: product.ID, Quantity: dec("1")}},
	}); err != nil {
		t.Fatalf("sale: %v", err)
	}

	trend, err := svc.SalesTrend(ctx, 3)
	if err != nil {
		t.Fatalf("sales trend: %v", err)
	}
	if trend.Days != 3 || len(trend.Points) != 3 {
		t.Fatalf("expected 3 trend points, got days=%d points=%d", trend.Days, len(trend.Points))
	}
	last := trend.Points[len(trend.Points)-1]
	if last.TransactionCount != 1 || !last.TotalSales.Equal(dec("30.00")) {
		t.Fatalf("expected today's point to carry the sale, got %+v", last)
	}
	for _, p := range trend.Points[:len(trend.Points)-1] {
		if p.TransactionCount != 0 || !p.TotalSales.Equal(decimal.Zero) {
			t.Fatalf("expected zero point for empty day, got %+v", p)
		}
	}
}

func TestMoveStockValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	product := createTestProduct(t, svc, "Eggs Tray", "EG-TRY", "330.00", "390.00", "4", "2")

	if _, err := svc.MoveStock(ctx, adminActor, product.ID, dec("0"), store.StockDebit); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for zero quantity, got %v", err)
	}
	if _, err := svc.MoveStock(ctx, adminActor, product.ID, dec("5"), store.StockDebit); !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	inv, err := svc.MoveStock(ctx, adminActor, product.ID, dec("6"), store.StockCredit)
	if err != nil {
		t.Fatalf("credit move: %v", err)
	}
	if !inv.QuantityOnHand.Equal(dec("10")) {
		t.Fatalf("expected stock 10 after credit, got %s", inv.QuantityOnHand)
	}
	if _, err := svc.MoveStock(ctx, cashierActor, product.ID, dec("1"), store.StockDebit); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden for cashier stock move, got %v", err)
	}
}

func TestLowStockListing(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	low := createTestProduct(t, svc, "Tea Leaves 250g", "TL-250", "98.00", "125.00", "5", "10")
	createTestProduct(t, svc, "Maize Flour 2kg", "MF-2KG", "145.00", "175.00", "100", "10")

	listed, err := svc.ListLowStock(ctx)
	if err != nil {
		t.Fatalf("list low stock: %v", err)
	}
	if len(listed) != 1 || listed[0].Product.ID != low.ID {
		t.Fatalf("expected only the low product listed, got %+v", listed)
	}

	summary, err := svc.InventorySummary(ctx)
	if err != nil {
		t.Fatalf("inventory summary: %v", err)
	}
	if summary.ProductCount != 2 || summary.LowStockCount != 1 || summary.OutOfStockCount != 0 {
		t.Fatalf("unexpected inventory summary: %+v", summary)
	}
}

func TestUserLifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, adminActor, domain.UserCreateRequest{
		Username: "Akinyi",
		Password: "hunter2hunter2",
		Role:     domain.RoleManager,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if user.Username != "akinyi" {
		t.Fatalf("expected lowercased username, got %q", user.Username)
	}

	if _, err := svc.CreateUser(ctx, adminActor, domain.UserCreateRequest{Username: "akinyi", Password: "hunter2hunter2"}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict on duplicate username, got %v", err)
	}
	if _, err := svc.CreateUser(ctx, cashierActor, domain.UserCreateRequest{Username: "other", Password: "hunter2hunter2"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden for non-admin, got %v", err)
	}
	if _, err := svc.CreateUser(ctx, adminActor, domain.UserCreateRequest{Username: "weak", Password: "short"}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for short password, got %v", err)
	}

	verified, err := svc.VerifyCredentials(ctx, "akinyi", "hunter2hunter2")
	if err != nil {
		t.Fatalf("verify credentials: %v", err)
	}
	if verified.Role != domain.RoleManager {
		t.Fatalf("expected manager role, got %s", verified.Role)
	}
	if _, err := svc.VerifyCredentials(ctx, "akinyi", "wrong-password"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for bad password, got %v", err)
	}
}

func TestProductCreationRequiresManagerRole(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateProduct(ctx, cashierActor, domain.ProductCreateRequest{
		Name: "Sneaky Item", SKU: "SN-1", SellingPrice: dec("10.00"),
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden for cashier product create, got %v", err)
	}
}
