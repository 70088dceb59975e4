package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/AchayoEarnest/smartpos/internal/domain"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrAlreadyRefunded   = errors.New("sale already refunded")
	ErrAlreadyClosed     = errors.New("drawer already closed")
	ErrAlreadyReceived   = errors.New("purchase already received")
	ErrConflict          = errors.New("concurrent modification conflict")
)

// StockDirection names the two legal inventory movements. Every quantity
// change in the system goes through one of them.
type StockDirection string

const (
	StockDebit  StockDirection = "debit"
	StockCredit StockDirection = "credit"
)

type Repository interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
	CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error)

	ListProducts(ctx context.Context, activeOnly bool) ([]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product, initialStock, reorderLevel decimal.Decimal) (*domain.Product, error)
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)

	ListInventory(ctx context.Context) ([]domain.InventoryStatus, error)
	GetInventory(ctx context.Context, productID string) (*domain.Inventory, error)
	// MoveStock applies a single debit or credit to one product's stock in
	// its own transaction. A debit below zero fails ErrInsufficientStock.
	MoveStock(ctx context.Context, productID string, qty decimal.Decimal, direction StockDirection) (*domain.Inventory, error)
	UpdateReorderLevel(ctx context.Context, productID string, level decimal.Decimal) (*domain.Inventory, error)

	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error)

	ListSuppliers(ctx context.Context) ([]domain.Supplier, error)
	CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)
	GetSupplierByID(ctx context.Context, id string) (*domain.Supplier, error)

	// CreateSale persists the sale and its items and debits stock for every
	// line in one transaction. Insufficient stock on any line aborts the
	// whole sale.
	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	GetSaleByID(ctx context.Context, id string) (*domain.Sale, error)
	ListSales(ctx context.Context, limit int) ([]domain.SaleSummary, error)
	// RefundSale credits back every item and marks the sale refunded, all
	// in one transaction. A refunded sale fails ErrAlreadyRefunded.
	RefundSale(ctx context.Context, saleID string, at time.Time) (*domain.Sale, error)

	GetOpenDrawer(ctx context.Context, cashierID string) (*domain.CashDrawer, error)
	// CreateDrawer fails ErrConflict when the cashier already has an open
	// drawer.
	CreateDrawer(ctx context.Context, drawer domain.CashDrawer) (*domain.CashDrawer, error)
	GetDrawerByID(ctx context.Context, id string) (*domain.CashDrawer, error)
	// CloseDrawer is one-way: a closed drawer fails ErrAlreadyClosed.
	CloseDrawer(ctx context.Context, drawerID string, closingBalance decimal.Decimal, expectedCash decimal.Decimal, at time.Time) (*domain.CashDrawer, error)
	// SumCashSales totals non-refunded cash sales by the cashier in
	// [from, to).
	SumCashSales(ctx context.Context, cashierID string, from, to time.Time) (decimal.Decimal, error)

	CreatePurchase(ctx context.Context, purchase domain.Purchase) (*domain.Purchase, error)
	GetPurchaseByID(ctx context.Context, id string) (*domain.Purchase, error)
	ListPurchases(ctx context.Context, status string, limit int) ([]domain.Purchase, error)
	// ReceivePurchase credits stock for every line and flips the status to
	// RECEIVED in one transaction. A received purchase fails
	// ErrAlreadyReceived.
	ReceivePurchase(ctx context.Context, purchaseID string, receivedBy string, at time.Time) (*domain.Purchase, error)

	CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error)
	ListExpenses(ctx context.Context, limit int) ([]domain.Expense, error)

	// Analytics reads. Profit figures use the current cost price.
	SalesAggregate(ctx context.Context, from, to time.Time) (total decimal.Decimal, profit decimal.Decimal, count int64, err error)
	TopProducts(ctx context.Context, from, to time.Time, limit int) ([]domain.TopProduct, error)
	PaymentBreakdown(ctx context.Context, from, to time.Time) ([]domain.PaymentBreakdown, error)
	SalesTrend(ctx context.Context, from, to time.Time) ([]domain.TrendPoint, error)
	InventorySummary(ctx context.Context) (*domain.InventorySummary, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error)
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
}
