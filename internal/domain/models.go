package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type CategoryCreateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type Product struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	SKU          string          `json:"sku"`
	CategoryID   string          `json:"category_id,omitempty"`
	CostPrice    decimal.Decimal `json:"cost_price"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	Unit         string          `json:"unit"`
	Active       bool            `json:"active"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Margin is the gross margin percentage at current prices. Zero selling
// price reports zero rather than dividing by it.
func (p Product) Margin() decimal.Decimal {
	if p.SellingPrice.IsZero() {
		return decimal.Zero
	}
	return p.SellingPrice.Sub(p.CostPrice).
		Div(p.SellingPrice).
		Mul(decimal.NewFromInt(100)).
		Round(2)
}

type ProductCreateRequest struct {
	Name         string          `json:"name"`
	SKU          string          `json:"sku"`
	CategoryID   string          `json:"category_id,omitempty"`
	CostPrice    decimal.Decimal `json:"cost_price"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	Unit         string          `json:"unit"`
	InitialStock decimal.Decimal `json:"initial_stock"`
	ReorderLevel decimal.Decimal `json:"reorder_level"`
}

type ProductUpdateRequest struct {
	Name         *string          `json:"name,omitempty"`
	CategoryID   *string          `json:"category_id,omitempty"`
	CostPrice    *decimal.Decimal `json:"cost_price,omitempty"`
	SellingPrice *decimal.Decimal `json:"selling_price,omitempty"`
	Unit         *string          `json:"unit,omitempty"`
	Active       *bool            `json:"active,omitempty"`
	ReorderLevel *decimal.Decimal `json:"reorder_level,omitempty"`
}

type Inventory struct {
	ProductID      string          `json:"product_id"`
	QuantityOnHand decimal.Decimal `json:"quantity_on_hand"`
	ReorderLevel   decimal.Decimal `json:"reorder_level"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (i Inventory) IsLowStock() bool {
	return i.QuantityOnHand.LessThanOrEqual(i.ReorderLevel)
}

// InventoryStatus joins a product with its stock row for list endpoints.
type InventoryStatus struct {
	Product        Product         `json:"product"`
	QuantityOnHand decimal.Decimal `json:"quantity_on_hand"`
	ReorderLevel   decimal.Decimal `json:"reorder_level"`
	IsLowStock     bool            `json:"is_low_stock"`
	StockValue     decimal.Decimal `json:"stock_value"`
}

type InventorySummary struct {
	ProductCount    int             `json:"product_count"`
	TotalStockValue decimal.Decimal `json:"total_stock_value"`
	LowStockCount   int             `json:"low_stock_count"`
	OutOfStockCount int             `json:"out_of_stock_count"`
}

type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type CustomerCreateRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

type Supplier struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type SupplierCreateRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

// Actor is the authenticated user performing an operation. It is passed
// explicitly to every mutating service call.
type Actor struct {
	ID       string
	Username string
	Role     string
}

type SaleItemInput struct {
	ProductID string           `json:"product_id"`
	Quantity  decimal.Decimal  `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
}

type SaleCreateRequest struct {
	CustomerID     string          `json:"customer_id,omitempty"`
	PaymentMethod  string          `json:"payment_method"`
	Discount       decimal.Decimal `json:"discount"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	AmountTendered decimal.Decimal `json:"amount_tendered"`
	Items          []SaleItemInput `json:"items"`
}

type SaleItem struct {
	ID        string          `json:"id"`
	ProductID string          `json:"product_id"`
	Name      string          `json:"product_name"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	// Profit uses the product's cost price at read time.
	Profit decimal.Decimal `json:"profit"`
}

type Sale struct {
	ID             string          `json:"id"`
	ReceiptNumber  string          `json:"receipt_number"`
	CashierID      string          `json:"cashier_id"`
	Cashier        string          `json:"cashier"`
	CustomerID     string          `json:"customer_id,omitempty"`
	PaymentMethod  string          `json:"payment_method"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Discount       decimal.Decimal `json:"discount"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	AmountTendered decimal.Decimal `json:"amount_tendered"`
	ChangeDue      decimal.Decimal `json:"change_due"`
	IsRefunded     bool            `json:"is_refunded"`
	RefundedAt     *time.Time      `json:"refunded_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	Items          []SaleItem      `json:"items"`
	Profit         decimal.Decimal `json:"profit"`
}

// SaleSummary is the list-view row: no items, no profit computation.
type SaleSummary struct {
	ID            string          `json:"id"`
	ReceiptNumber string          `json:"receipt_number"`
	Cashier       string          `json:"cashier"`
	PaymentMethod string          `json:"payment_method"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	ItemCount     int             `json:"item_count"`
	IsRefunded    bool            `json:"is_refunded"`
	CreatedAt     time.Time       `json:"created_at"`
}

type CashDrawer struct {
	ID             string           `json:"id"`
	CashierID      string           `json:"cashier_id"`
	Cashier        string           `json:"cashier"`
	OpeningBalance decimal.Decimal  `json:"opening_balance"`
	ClosingBalance *decimal.Decimal `json:"closing_balance,omitempty"`
	ExpectedCash   *decimal.Decimal `json:"expected_cash,omitempty"`
	Difference     *decimal.Decimal `json:"difference,omitempty"`
	IsOpen         bool             `json:"is_open"`
	OpenedAt       time.Time        `json:"opened_at"`
	ClosedAt       *time.Time       `json:"closed_at,omitempty"`
}

type DrawerCloseRequest struct {
	ClosingBalance decimal.Decimal `json:"closing_balance"`
}

// DrawerReconciliation is returned by the one-way close. Difference is
// closing minus opening; expected cash sums the cashier's cash sales
// between opened_at (inclusive) and closed_at (exclusive).
type DrawerReconciliation struct {
	Drawer       CashDrawer      `json:"drawer"`
	ExpectedCash decimal.Decimal `json:"expected_cash"`
	Difference   decimal.Decimal `json:"difference"`
}

type PurchaseItemInput struct {
	ProductID string          `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
}

type PurchaseCreateRequest struct {
	SupplierID   string              `json:"supplier_id"`
	ExpectedDate string              `json:"expected_date,omitempty"`
	Items        []PurchaseItemInput `json:"items"`
}

type PurchaseItem struct {
	ID        string          `json:"id"`
	ProductID string          `json:"product_id"`
	Name      string          `json:"product_name"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type Purchase struct {
	ID           string          `json:"id"`
	SupplierID   string          `json:"supplier_id"`
	Supplier     string          `json:"supplier"`
	Status       string          `json:"status"`
	TotalCost    decimal.Decimal `json:"total_cost"`
	ExpectedDate *time.Time      `json:"expected_date,omitempty"`
	CreatedBy    string          `json:"created_by"`
	ReceivedBy   string          `json:"received_by,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	ReceivedAt   *time.Time      `json:"received_at,omitempty"`
	Items        []PurchaseItem  `json:"items"`
}

type Expense struct {
	ID          string          `json:"id"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	RecordedBy  string          `json:"recorded_by"`
	IncurredAt  time.Time       `json:"incurred_at"`
	CreatedAt   time.Time       `json:"created_at"`
}

type ExpenseCreateRequest struct {
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	IncurredAt  string          `json:"incurred_at,omitempty"`
}

type TopProduct struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  decimal.Decimal `json:"quantity_sold"`
	Revenue   decimal.Decimal `json:"revenue"`
}

type PaymentBreakdown struct {
	PaymentMethod string          `json:"payment_method"`
	Transactions  int64           `json:"transactions"`
	Total         decimal.Decimal `json:"total"`
}

type DailySummary struct {
	Date               string             `json:"date"`
	TotalSales         decimal.Decimal    `json:"total_sales"`
	TotalProfit        decimal.Decimal    `json:"total_profit"`
	TransactionCount   int64              `json:"transaction_count"`
	AverageTransaction decimal.Decimal    `json:"average_transaction"`
	TopProducts        []TopProduct       `json:"top_products"`
	PaymentBreakdown   []PaymentBreakdown `json:"payment_breakdown"`
}

type PeriodSummary struct {
	StartDate          string             `json:"start_date"`
	EndDate            string             `json:"end_date"`
	TotalSales         decimal.Decimal    `json:"total_sales"`
	TotalProfit        decimal.Decimal    `json:"total_profit"`
	TransactionCount   int64              `json:"transaction_count"`
	AverageTransaction decimal.Decimal    `json:"average_transaction"`
	TopProducts        []TopProduct       `json:"top_products"`
	PaymentBreakdown   []PaymentBreakdown `json:"payment_breakdown"`
}

type TrendPoint struct {
	Date             string          `json:"date"`
	TotalSales       decimal.Decimal `json:"total_sales"`
	TransactionCount int64           `json:"transaction_count"`
}

type SalesTrend struct {
	Days   int          `json:"days"`
	Points []TrendPoint `json:"points"`
}

type UserCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type UserInfo struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is the internal persistence model for auth credentials.
type UserAccount struct {
	ID        string
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

const (
	PaymentCash  = "cash"
	PaymentMpesa = "mpesa"
	PaymentCard  = "card"
	PaymentSplit = "split"
)

const (
	PurchaseStatusPending  = "PENDING"
	PurchaseStatusReceived = "RECEIVED"
)

const (
	RoleAdmin      = "admin"
	RoleManager    = "manager"
	RoleCashier    = "cashier"
	RoleAccountant = "accountant"
)

func ValidPaymentMethod(method string) bool {
	switch method {
	case PaymentCash, PaymentMpesa, PaymentCard, PaymentSplit:
		return true
	}
	return false
}

func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleManager, RoleCashier, RoleAccountant:
		return true
	}
	return false
}
