package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/AchayoEarnest/smartpos/internal/domain"
	"github.com/AchayoEarnest/smartpos/internal/store"
)

func TestSaleRefundDrawerIntegration(t *testing.T) {
	databaseURL := os.Getenv("SMARTPOS_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set SMARTPOS_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}

	stamp := time.Now().UnixNano()
	sku := fmt.Sprintf("IT-%d", stamp)
	// cashier_id columns are UUID typed.
	cashierID := uuid.NewString()

	product, err := s.CreateProduct(ctx, domain.Product{
		Name:         "Integration Sugar 1kg",
		SKU:          sku,
		CostPrice:    decimal.RequireFromString("100.00"),
		SellingPrice: decimal.RequireFromString("150.00"),
		Unit:         "pc",
	}, decimal.RequireFromString("10"), decimal.RequireFromString("2"))
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sale_items WHERE product_id = $1`, product.ID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE cashier_id = $1`, cashierID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM cash_drawers WHERE cashier_id = $1`, cashierID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM inventory WHERE product_id = $1`, product.ID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, product.ID)
	})

	drawer, err := s.CreateDrawer(ctx, domain.CashDrawer{
		CashierID:      cashierID,
		Cashier:        "integration",
		OpeningBalance: decimal.RequireFromString("100.00"),
	})
	if err != nil {
		t.Fatalf("create drawer: %v", err)
	}

	sale, err := s.CreateSale(ctx, domain.Sale{
		CashierID:      cashierID,
		Cashier:        "integration",
		PaymentMethod:  domain.PaymentCash,
		Subtotal:       decimal.RequireFromString("300.00"),
		TotalAmount:    decimal.RequireFromString("300.00"),
		AmountTendered: decimal.RequireFromString("300.00"),
		ChangeDue:      decimal.Zero,
		Items: []domain.SaleItem{
			{ProductID: product.ID, Quantity: decimal.RequireFromString("2"), UnitPrice: decimal.RequireFromString("150.00"), Subtotal: decimal.RequireFromString("300.00")},
		},
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if !sale.Profit.Equal(decimal.RequireFromString("100.00")) {
		t.Fatalf("expected profit 100.00, got %s", sale.Profit)
	}

	inv, err := s.GetInventory(ctx, product.ID)
	if err != nil {
		t.Fatalf("get inventory: %v", err)
	}
	if !inv.QuantityOnHand.Equal(decimal.RequireFromString("8")) {
		t.Fatalf("expected stock 8 after sale, got %s", inv.QuantityOnHand)
	}

	expected, err := s.SumCashSales(ctx, cashierID, drawer.OpenedAt, time.Now().UTC().Add(time.Minute))
	if err != nil {
		t.Fatalf("sum cash sales: %v", err)
	}
	if !expected.Equal(decimal.RequireFromString("300.00")) {
		t.Fatalf("expected cash 300.00, got %s", expected)
	}

	closed, err := s.CloseDrawer(ctx, drawer.ID, decimal.RequireFromString("400.00"), expected, time.Now().UTC())
	if err != nil {
		t.Fatalf("close drawer: %v", err)
	}
	if closed.Difference == nil || !closed.Difference.Equal(decimal.RequireFromString("300.00")) {
		t.Fatalf("expected difference 300.00, got %v", closed.Difference)
	}
	if _, err := s.CloseDrawer(ctx, drawer.ID, decimal.Zero, decimal.Zero, time.Now().UTC()); !errors.Is(err, store.ErrAlreadyClosed) {
		t.Fatalf("expected already closed, got %v", err)
	}

	refunded, err := s.RefundSale(ctx, sale.ID, time.Now().UTC())
	if err != nil {
		t.Fatalf("refund sale: %v", err)
	}
	if !refunded.IsRefunded {
		t.Fatalf("expected sale marked refunded")
	}

	inv, err = s.GetInventory(ctx, product.ID)
	if err != nil {
		t.Fatalf("get inventory after refund: %v", err)
	}
	if !inv.QuantityOnHand.Equal(decimal.RequireFromString("10")) {
		t.Fatalf("expected stock restored to 10, got %s", inv.QuantityOnHand)
	}

	if _, err := s.RefundSale(ctx, sale.ID, time.Now().UTC()); !errors.Is(err, store.ErrAlreadyRefunded) {
		t.Fatalf("expected already refunded, got %v", err)
	}
}
