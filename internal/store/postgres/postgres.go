package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"github.com/AchayoEarnest/smartpos/internal/domain"
	"github.com/AchayoEarnest/smartpos/internal/store"
)

//go:embed schema.sql
var schemaSQL string

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema applies the embedded DDL. Every statement is idempotent so
// this is safe to run on every boot.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schemaSQL)
	return err
}

func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, created_at
		FROM categories
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := make([]domain.Category, 0, 16)
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.CreatedAt = c.CreatedAt.UTC()
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return categories, nil
}

func (s *Store) CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error) {
	category.Name = strings.TrimSpace(category.Name)
	if category.Name == "" {
		return nil, store.ErrValidation
	}
	if category.ID == "" {
		category.ID = uuid.NewString()
	}
	if category.CreatedAt.IsZero() {
		category.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, name, description, created_at)
		VALUES ($1,$2,$3,$4)
	`, category.ID, category.Name, category.Description, category.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	created := category
	return &created, nil
}

func (s *Store) ListProducts(ctx context.Context, activeOnly bool) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, sku, COALESCE(category_id::text,''), cost_price, selling_price, unit, active, created_at, updated_at
		FROM products
		WHERE $1 = false OR active = true
		ORDER BY name
	`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.SKU, &p.CategoryID, &p.CostPrice, &p.SellingPrice, &p.Unit, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.CreatedAt = p.CreatedAt.UTC()
		p.UpdatedAt = p.UpdatedAt.UTC()
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product, initialStock, reorderLevel decimal.Decimal) (*domain.Product, error) {
	if product.Name == "" || product.SKU == "" {
		return nil, store.ErrValidation
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

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO products (id, name, sku, category_id, cost_price, selling_price, unit, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, product.ID, product.Name, product.SKU, nullIfEmpty(product.CategoryID), product.CostPrice, product.SellingPrice, product.Unit, product.Active, product.CreatedAt, product.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO inventory (product_id, quantity_on_hand, reorder_level, updated_at)
		VALUES ($1,$2,$3,$4)
	`, product.ID, initialStock, reorderLevel, now)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := product
	return &created, nil
}

func (s *Store) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, sku, COALESCE(category_id::text,''), cost_price, selling_price, unit, active, created_at, updated_at
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.SKU, &p.CategoryID, &p.CostPrice, &p.SellingPrice, &p.Unit, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" {
		return nil, store.ErrValidation
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, category_id = $3, cost_price = $4, selling_price = $5, unit = $6, active = $7, updated_at = now()
		WHERE id = $1
	`, product.ID, product.Name, nullIfEmpty(product.CategoryID), product.CostPrice, product.SellingPrice, product.Unit, product.Active)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetProductByID(ctx, product.ID)
}

func (s *Store) ListInventory(ctx context.Context) ([]domain.InventoryStatus, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.name, p.sku, COALESCE(p.category_id::text,''), p.cost_price, p.selling_price, p.unit, p.active,
			p.created_at, p.updated_at, i.quantity_on_hand, i.reorder_level
		FROM inventory i
		JOIN products p ON p.id = i.product_id
		ORDER BY p.name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.InventoryStatus, 0, 128)
	for rows.Next() {
		var p domain.Product
		var onHand, reorder decimal.Decimal
		if err := rows.Scan(&p.ID, &p.Name, &p.SKU, &p.CategoryID, &p.CostPrice, &p.SellingPrice, &p.Unit, &p.Active, &p.CreatedAt, &p.UpdatedAt, &onHand, &reorder); err != nil {
			return nil, err
		}
		p.CreatedAt = p.CreatedAt.UTC()
		p.UpdatedAt = p.UpdatedAt.UTC()
		result = append(result, domain.InventoryStatus{
			Product:        p,
			QuantityOnHand: onHand,
			ReorderLevel:   reorder,
			IsLowStock:     onHand.LessThanOrEqual(reorder),
			StockValue:     p.CostPrice.Mul(onHand),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) GetInventory(ctx context.Context, productID string) (*domain.Inventory, error) {
	var inv domain.Inventory
	err := s.db.QueryRowContext(ctx, `
		SELECT product_id, quantity_on_hand, reorder_level, updated_at
		FROM inventory
		WHERE product_id = $1
	`, productID).Scan(&inv.ProductID, &inv.QuantityOnHand, &inv.ReorderLevel, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	inv.UpdatedAt = inv.UpdatedAt.UTC()
	return &inv, nil
}

func (s *Store) UpdateReorderLevel(ctx context.Context, productID string, level decimal.Decimal) (*domain.Inventory, error) {
	var inv domain.Inventory
	err := s.db.QueryRowContext(ctx, `
		UPDATE inventory
		SET reorder_level = $2, updated_at = $3
		WHERE product_id = $1
		RETURNING product_id, quantity_on_hand, reorder_level, updated_at
	`, productID, level, time.Now().UTC()).Scan(&inv.ProductID, &inv.QuantityOnHand, &inv.ReorderLevel, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	inv.UpdatedAt = inv.UpdatedAt.UTC()
	return &inv, nil
}

func (s *Store) MoveStock(ctx context.Context, productID string, qty decimal.Decimal, direction store.StockDirection) (*domain.Inventory, error) {
	if qty.LessThanOrEqual(decimal.Zero) {
		return nil, store.ErrValidation
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	inv, err := moveStockTx(ctx, tx, productID, qty, direction)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return inv, nil
}

// moveStockTx is the single write path for stock: the standalone MoveStock
// call and the sale/refund/receive transactions all go through it.
func moveStockTx(ctx context.Context, tx *sql.Tx, productID string, qty decimal.Decimal, direction store.StockDirection) (*domain.Inventory, error) {
	var inv domain.Inventory
	err := tx.QueryRowContext(ctx, `
		SELECT product_id, quantity_on_hand, reorder_level
		FROM inventory
		WHERE product_id = $1
		FOR UPDATE
	`, productID).Scan(&inv.ProductID, &inv.QuantityOnHand, &inv.ReorderLevel)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
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

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
		UPDATE inventory
		SET quantity_on_hand = $2, updated_at = $3
		WHERE product_id = $1
	`, productID, inv.QuantityOnHand, now)
	if err != nil {
		return nil, err
	}
	inv.UpdatedAt = now
	return &inv, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, phone, email, created_at
		FROM customers
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 64)
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.CreatedAt = c.CreatedAt.UTC()
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, phone, email, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, customer.ID, customer.Name, customer.Phone, customer.Email, customer.CreatedAt)
	if err != nil {
		return nil, err
	}
	created := customer
	return &created, nil
}

func (s *Store) GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error) {
	var c domain.Customer
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, phone, email, created_at
		FROM customers
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

func (s *Store) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, phone, email, created_at
		FROM suppliers
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	suppliers := make([]domain.Supplier, 0, 32)
	for rows.Next() {
		var sup domain.Supplier
		if err := rows.Scan(&sup.ID, &sup.Name, &sup.Phone, &sup.Email, &sup.CreatedAt); err != nil {
			return nil, err
		}
		sup.CreatedAt = sup.CreatedAt.UTC()
		suppliers = append(suppliers, sup)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return suppliers, nil
}

func (s *Store) CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO suppliers (id, name, phone, email, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, supplier.ID, supplier.Name, supplier.Phone, supplier.Email, supplier.CreatedAt)
	if err != nil {
		return nil, err
	}
	created := supplier
	return &created, nil
}

func (s *Store) GetSupplierByID(ctx context.Context, id string) (*domain.Supplier, error) {
	var sup domain.Supplier
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, phone, email, created_at
		FROM suppliers
		WHERE id = $1
	`, id).Scan(&sup.ID, &sup.Name, &sup.Phone, &sup.Email, &sup.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	sup.CreatedAt = sup.CreatedAt.UTC()
	return &sup, nil
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if len(sale.Items) == 0 {
		return nil, store.ErrValidation
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

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	for i := range sale.Items {
		item := &sale.Items[i]
		if item.Quantity.LessThanOrEqual(decimal.Zero) {
			return nil, store.ErrValidation
		}

		var name string
		var active bool
		err := tx.QueryRowContext(ctx, `
			SELECT name, active FROM products WHERE id = $1
		`, item.ProductID).Scan(&name, &active)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("%w: unknown or inactive product %s", store.ErrValidation, item.ProductID)
			}
			return nil, err
		}
		if !active {
			return nil, fmt.Errorf("%w: unknown or inactive product %s", store.ErrValidation, item.ProductID)
		}
		item.Name = name

		if _, err := moveStockTx(ctx, tx, item.ProductID, item.Quantity, store.StockDebit); err != nil {
			return nil, err
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sales (
			id, receipt_number, cashier_id, cashier, customer_id, payment_method,
			subtotal, discount, tax_amount, total_amount, amount_tendered, change_due,
			is_refunded, refunded_at, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,false,NULL,$13)
	`, sale.ID, sale.ReceiptNumber, sale.CashierID, sale.Cashier, nullIfEmpty(sale.CustomerID), sale.PaymentMethod,
		sale.Subtotal, sale.Discount, sale.TaxAmount, sale.TotalAmount, sale.AmountTendered, sale.ChangeDue, sale.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	for _, item := range sale.Items {
		itemID := item.ID
		if itemID == "" {
			itemID = uuid.NewString()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sale_items (id, sale_id, product_id, product_name, quantity, unit_price)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, itemID, sale.ID, item.ProductID, item.Name, item.Quantity, item.UnitPrice)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetSaleByID(ctx, sale.ID)
}

func (s *Store) GetSaleByID(ctx context.Context, id string) (*domain.Sale, error) {
	var sale domain.Sale
	var customerID sql.NullString
	var refundedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, receipt_number, cashier_id, cashier, customer_id, payment_method,
			subtotal, discount, tax_amount, total_amount, amount_tendered, change_due,
			is_refunded, refunded_at, created_at
		FROM sales
		WHERE id = $1
	`, id).Scan(
		&sale.ID, &sale.ReceiptNumber, &sale.CashierID, &sale.Cashier, &customerID, &sale.PaymentMethod,
		&sale.Subtotal, &sale.Discount, &sale.TaxAmount, &sale.TotalAmount, &sale.AmountTendered, &sale.ChangeDue,
		&sale.IsRefunded, &refundedAt, &sale.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if customerID.Valid {
		sale.CustomerID = customerID.String
	}
	if refundedAt.Valid {
		at := refundedAt.Time.UTC()
		sale.RefundedAt = &at
	}
	sale.CreatedAt = sale.CreatedAt.UTC()

	// Per-item profit joins the live cost price.
	rows, err := s.db.QueryContext(ctx, `
		SELECT si.id, si.product_id, si.product_name, si.quantity, si.unit_price,
			si.quantity * si.unit_price,
			(si.unit_price - p.cost_price) * si.quantity
		FROM sale_items si
		JOIN products p ON p.id = si.product_id
		WHERE si.sale_id = $1
		ORDER BY si.product_name
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	total := decimal.Zero
	items := make([]domain.SaleItem, 0, 8)
	for rows.Next() {
		var item domain.SaleItem
		if err := rows.Scan(&item.ID, &item.ProductID, &item.Name, &item.Quantity, &item.UnitPrice, &item.Subtotal, &item.Profit); err != nil {
			return nil, err
		}
		total = total.Add(item.Profit)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sale.Items = items
	sale.Profit = total
	return &sale, nil
}

func (s *Store) ListSales(ctx context.Context, limit int) ([]domain.SaleSummary, error) {
	if limit < 1 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.receipt_number, s.cashier, s.payment_method, s.total_amount, s.is_refunded, s.created_at,
			(SELECT COUNT(*) FROM sale_items si WHERE si.sale_id = s.id)::int
		FROM sales s
		ORDER BY s.created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.SaleSummary, 0, limit)
	for rows.Next() {
		var row domain.SaleSummary
		if err := rows.Scan(&row.ID, &row.ReceiptNumber, &row.Cashier, &row.PaymentMethod, &row.TotalAmount, &row.IsRefunded, &row.CreatedAt, &row.ItemCount); err != nil {
			return nil, err
		}
		row.CreatedAt = row.CreatedAt.UTC()
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) RefundSale(ctx context.Context, saleID string, at time.Time) (*domain.Sale, error) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var isRefunded bool
	err = tx.QueryRowContext(ctx, `
		SELECT is_refunded
		FROM sales
		WHERE id = $1
		FOR UPDATE
	`, saleID).Scan(&isRefunded)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if isRefunded {
		return nil, store.ErrAlreadyRefunded
	}

	itemRows, err := tx.QueryContext(ctx, `
		SELECT product_id, quantity
		FROM sale_items
		WHERE sale_id = $1
	`, saleID)
	if err != nil {
		return nil, err
	}
	type line struct {
		productID string
		quantity  decimal.Decimal
	}
	lines := make([]line, 0, 8)
	for itemRows.Next() {
		var l line
		if err := itemRows.Scan(&l.productID, &l.quantity); err != nil {
			_ = itemRows.Close()
			return nil, err
		}
		lines = append(lines, l)
	}
	if err := itemRows.Err(); err != nil {
		_ = itemRows.Close()
		return nil, err
	}
	_ = itemRows.Close()

	for _, l := range lines {
		if _, err := moveStockTx(ctx, tx, l.productID, l.quantity, store.StockCredit); err != nil {
			return nil, err
		}
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE sales
		SET is_refunded = true, refunded_at = $2
		WHERE id = $1 AND is_refunded = false
	`, saleID, at)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrAlreadyRefunded
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetSaleByID(ctx, saleID)
}

func (s *Store) GetOpenDrawer(ctx context.Context, cashierID string) (*domain.CashDrawer, error) {
	return s.getDrawer(ctx, `cashier_id = $1 AND is_open`, cashierID)
}

func (s *Store) GetDrawerByID(ctx context.Context, id string) (*domain.CashDrawer, error) {
	return s.getDrawer(ctx, `id = $1`, id)
}

func (s *Store) getDrawer(ctx context.Context, where string, arg string) (*domain.CashDrawer, error) {
	var d domain.CashDrawer
	var closing, expected, difference decimal.NullDecimal
	var closedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, cashier_id, cashier, opening_balance, closing_balance, expected_cash,
			difference, is_open, opened_at, closed_at
		FROM cash_drawers
		WHERE `+where+`
	`, arg).Scan(&d.ID, &d.CashierID, &d.Cashier, &d.OpeningBalance, &closing, &expected, &difference, &d.IsOpen, &d.OpenedAt, &closedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if closing.Valid {
		d.ClosingBalance = &closing.Decimal
	}
	if expected.Valid {
		d.ExpectedCash = &expected.Decimal
	}
	if difference.Valid {
		d.Difference = &difference.Decimal
	}
	if closedAt.Valid {
		at := closedAt.Time.UTC()
		d.ClosedAt = &at
	}
	d.OpenedAt = d.OpenedAt.UTC()
	return &d, nil
}

func (s *Store) CreateDrawer(ctx context.Context, drawer domain.CashDrawer) (*domain.CashDrawer, error) {
	if drawer.CashierID == "" {
		return nil, store.ErrValidation
	}
	if drawer.ID == "" {
		drawer.ID = uuid.NewString()
	}
	if drawer.OpenedAt.IsZero() {
		drawer.OpenedAt = time.Now().UTC()
	}
	drawer.IsOpen = true

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cash_drawers (id, cashier_id, cashier, opening_balance, is_open, opened_at)
		VALUES ($1,$2,$3,$4,true,$5)
	`, drawer.ID, drawer.CashierID, drawer.Cashier, drawer.OpeningBalance, drawer.OpenedAt)
	if err != nil {
		// The partial unique index rejects a second open drawer for the
		// same cashier.
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	created := drawer
	return &created, nil
}

func (s *Store) CloseDrawer(ctx context.Context, drawerID string, closingBalance decimal.Decimal, expectedCash decimal.Decimal, at time.Time) (*domain.CashDrawer, error) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	var d domain.CashDrawer
	var closing, expected, difference decimal.NullDecimal
	var closedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		UPDATE cash_drawers
		SET is_open = false,
			closing_balance = $2,
			expected_cash = $3,
			difference = $2 - opening_balance,
			closed_at = $4
		WHERE id = $1 AND is_open
		RETURNING id, cashier_id, cashier, opening_balance, closing_balance, expected_cash,
			difference, is_open, opened_at, closed_at
	`, drawerID, closingBalance, expectedCash, at).Scan(
		&d.ID, &d.CashierID, &d.Cashier, &d.OpeningBalance, &closing, &expected, &difference, &d.IsOpen, &d.OpenedAt, &closedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if _, lookupErr := s.GetDrawerByID(ctx, drawerID); lookupErr == nil {
				return nil, store.ErrAlreadyClosed
			}
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if closing.Valid {
		d.ClosingBalance = &closing.Decimal
	}
	if expected.Valid {
		d.ExpectedCash = &expected.Decimal
	}
	if difference.Valid {
		d.Difference = &difference.Decimal
	}
	if closedAt.Valid {
		c := closedAt.Time.UTC()
		d.ClosedAt = &c
	}
	d.OpenedAt = d.OpenedAt.UTC()
	return &d, nil
}

func (s *Store) SumCashSales(ctx context.Context, cashierID string, from, to time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total_amount), 0)
		FROM sales
		WHERE cashier_id = $1
			AND payment_method = $2
			AND is_refunded = false
			AND created_at >= $3
			AND created_at < $4
	`, cashierID, domain.PaymentCash, from, to).Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

func (s *Store) CreatePurchase(ctx context.Context, purchase domain.Purchase) (*domain.Purchase, error) {
	if purchase.SupplierID == "" || len(purchase.Items) == 0 {
		return nil, store.ErrValidation
	}
	if purchase.ID == "" {
		purchase.ID = uuid.NewString()
	}
	if purchase.CreatedAt.IsZero() {
		purchase.CreatedAt = time.Now().UTC()
	}
	purchase.Status = domain.PurchaseStatusPending

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	total := decimal.Zero
	for i := range purchase.Items {
		item := &purchase.Items[i]
		if item.Quantity.LessThanOrEqual(decimal.Zero) || item.UnitCost.IsNegative() {
			return nil, store.ErrValidation
		}
		var name string
		err := tx.QueryRowContext(ctx, `SELECT name FROM products WHERE id = $1`, item.ProductID).Scan(&name)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, store.ErrNotFound
			}
			return nil, err
		}
		item.Name = name
		item.Subtotal = item.UnitCost.Mul(item.Quantity)
		total = total.Add(item.Subtotal)
	}
	purchase.TotalCost = total

	_, err = tx.ExecContext(ctx, `
		INSERT INTO purchases (id, supplier_id, status, total_cost, expected_date, created_by, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, purchase.ID, purchase.SupplierID, purchase.Status, purchase.TotalCost, nullDate(purchase.ExpectedDate), purchase.CreatedBy, purchase.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	for _, item := range purchase.Items {
		itemID := item.ID
		if itemID == "" {
			itemID = uuid.NewString()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO purchase_items (id, purchase_id, product_id, product_name, quantity, unit_cost)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, itemID, purchase.ID, item.ProductID, item.Name, item.Quantity, item.UnitCost)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetPurchaseByID(ctx, purchase.ID)
}

func (s *Store) GetPurchaseByID(ctx context.Context, id string) (*domain.Purchase, error) {
	var p domain.Purchase
	var expectedDate, receivedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT pu.id, pu.supplier_id, sup.name, pu.status, pu.total_cost, pu.expected_date,
			pu.created_by, pu.received_by, pu.created_at, pu.received_at
		FROM purchases pu
		JOIN suppliers sup ON sup.id = pu.supplier_id
		WHERE pu.id = $1
	`, id).Scan(&p.ID, &p.SupplierID, &p.Supplier, &p.Status, &p.TotalCost, &expectedDate, &p.CreatedBy, &p.ReceivedBy, &p.CreatedAt, &receivedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if expectedDate.Valid {
		d := expectedDate.Time.UTC()
		p.ExpectedDate = &d
	}
	if receivedAt.Valid {
		at := receivedAt.Time.UTC()
		p.ReceivedAt = &at
	}
	p.CreatedAt = p.CreatedAt.UTC()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_id, product_name, quantity, unit_cost, quantity * unit_cost
		FROM purchase_items
		WHERE purchase_id = $1
		ORDER BY product_name
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.PurchaseItem, 0, 8)
	for rows.Next() {
		var item domain.PurchaseItem
		if err := rows.Scan(&item.ID, &item.ProductID, &item.Name, &item.Quantity, &item.UnitCost, &item.Subtotal); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	p.Items = items
	return &p, nil
}

func (s *Store) ListPurchases(ctx context.Context, status string, limit int) ([]domain.Purchase, error) {
	if limit < 1 {
		limit = 50
	}
	status = strings.ToUpper(strings.TrimSpace(status))

	rows, err := s.db.QueryContext(ctx, `
		SELECT pu.id, pu.supplier_id, sup.name, pu.status, pu.total_cost, pu.expected_date,
			pu.created_by, pu.received_by, pu.created_at, pu.received_at
		FROM purchases pu
		JOIN suppliers sup ON sup.id = pu.supplier_id
		WHERE ($1 = '' OR pu.status = $1)
		ORDER BY pu.created_at DESC
		LIMIT $2
	`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.Purchase, 0, limit)
	for rows.Next() {
		var p domain.Purchase
		var expectedDate, receivedAt sql.NullTime
		if err := rows.Scan(&p.ID, &p.SupplierID, &p.Supplier, &p.Status, &p.TotalCost, &expectedDate, &p.CreatedBy, &p.ReceivedBy, &p.CreatedAt, &receivedAt); err != nil {
			return nil, err
		}
		if expectedDate.Valid {
			d := expectedDate.Time.UTC()
			p.ExpectedDate = &d
		}
		if receivedAt.Valid {
			at := receivedAt.Time.UTC()
			p.ReceivedAt = &at
		}
		p.CreatedAt = p.CreatedAt.UTC()
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) ReceivePurchase(ctx context.Context, purchaseID string, receivedBy string, at time.Time) (*domain.Purchase, error) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var status string
	err = tx.QueryRowContext(ctx, `
		SELECT status
		FROM purchases
		WHERE id = $1
		FOR UPDATE
	`, purchaseID).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if status == domain.PurchaseStatusReceived {
		return nil, store.ErrAlreadyReceived
	}

	itemRows, err := tx.QueryContext(ctx, `
		SELECT product_id, quantity
		FROM purchase_items
		WHERE purchase_id = $1
	`, purchaseID)
	if err != nil {
		return nil, err
	}
	type line struct {
		productID string
		quantity  decimal.Decimal
	}
	lines := make([]line, 0, 8)
	for itemRows.Next() {
		var l line
		if err := itemRows.Scan(&l.productID, &l.quantity); err != nil {
			_ = itemRows.Close()
			return nil, err
		}
		lines = append(lines, l)
	}
	if err := itemRows.Err(); err != nil {
		_ = itemRows.Close()
		return nil, err
	}
	_ = itemRows.Close()

	for _, l := range lines {
		if _, err := moveStockTx(ctx, tx, l.productID, l.quantity, store.StockCredit); err != nil {
			return nil, err
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE purchases
		SET status = $2, received_by = $3, received_at = $4
		WHERE id = $1
	`, purchaseID, domain.PurchaseStatusReceived, strings.TrimSpace(receivedBy), at)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetPurchaseByID(ctx, purchaseID)
}

func (s *Store) CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error) {
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO expenses (id, category, description, amount, recorded_by, incurred_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, expense.ID, expense.Category, expense.Description, expense.Amount, expense.RecordedBy, expense.IncurredAt, expense.CreatedAt)
	if err != nil {
		return nil, err
	}
	created := expense
	return &created, nil
}

func (s *Store) ListExpenses(ctx context.Context, limit int) ([]domain.Expense, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, category, description, amount, recorded_by, incurred_at, created_at
		FROM expenses
		ORDER BY incurred_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	expenses := make([]domain.Expense, 0, limit)
	for rows.Next() {
		var e domain.Expense
		if err := rows.Scan(&e.ID, &e.Category, &e.Description, &e.Amount, &e.RecordedBy, &e.IncurredAt, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.IncurredAt = e.IncurredAt.UTC()
		e.CreatedAt = e.CreatedAt.UTC()
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return expenses, nil
}

func (s *Store) SalesAggregate(ctx context.Context, from, to time.Time) (decimal.Decimal, decimal.Decimal, int64, error) {
	var total decimal.Decimal
	var count int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total_amount), 0), COUNT(*)::bigint
		FROM sales
		WHERE created_at >= $1 AND created_at < $2
	`, from, to).Scan(&total, &count)
	if err != nil {
		return decimal.Zero, decimal.Zero, 0, err
	}

	var profit decimal.Decimal
	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM((si.unit_price - p.cost_price) * si.quantity), 0)
		FROM sale_items si
		JOIN sales s ON s.id = si.sale_id
		JOIN products p ON p.id = si.product_id
		WHERE s.created_at >= $1 AND s.created_at < $2
	`, from, to).Scan(&profit)
	if err != nil {
		return decimal.Zero, decimal.Zero, 0, err
	}
	return total, profit, count, nil
}

func (s *Store) TopProducts(ctx context.Context, from, to time.Time, limit int) ([]domain.TopProduct, error) {
	if limit < 1 {
		limit = 5
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT si.product_id, MAX(si.product_name),
			COALESCE(SUM(si.quantity), 0),
			COALESCE(SUM(si.quantity * si.unit_price), 0) AS revenue
		FROM sale_items si
		JOIN sales s ON s.id = si.sale_id
		WHERE s.created_at >= $1 AND s.created_at < $2
		GROUP BY si.product_id
		ORDER BY revenue DESC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.TopProduct, 0, limit)
	for rows.Next() {
		var tp domain.TopProduct
		if err := rows.Scan(&tp.ProductID, &tp.Name, &tp.Quantity, &tp.Revenue); err != nil {
			return nil, err
		}
		result = append(result, tp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) PaymentBreakdown(ctx context.Context, from, to time.Time) ([]domain.PaymentBreakdown, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payment_method, COUNT(*)::bigint, COALESCE(SUM(total_amount), 0)
		FROM sales
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY payment_method
		ORDER BY payment_method
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.PaymentBreakdown, 0, 4)
	for rows.Next() {
		var row domain.PaymentBreakdown
		if err := rows.Scan(&row.PaymentMethod, &row.Transactions, &row.Total); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) SalesTrend(ctx context.Context, from, to time.Time) ([]domain.TrendPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day,
			COALESCE(SUM(total_amount), 0),
			COUNT(*)::bigint
		FROM sales
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY day
		ORDER BY day
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := make([]domain.TrendPoint, 0, 32)
	for rows.Next() {
		var p domain.TrendPoint
		if err := rows.Scan(&p.Date, &p.TotalSales, &p.TransactionCount); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return points, nil
}

func (s *Store) InventorySummary(ctx context.Context) (*domain.InventorySummary, error) {
	var summary domain.InventorySummary
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)::int,
			COALESCE(SUM(p.cost_price * i.quantity_on_hand), 0),
			COUNT(*) FILTER (WHERE i.quantity_on_hand <= i.reorder_level AND i.quantity_on_hand > 0)::int,
			COUNT(*) FILTER (WHERE i.quantity_on_hand <= 0)::int
		FROM inventory i
		JOIN products p ON p.id = i.product_id
	`).Scan(&summary.ProductCount, &summary.TotalStockValue, &summary.LowStockCount, &summary.OutOfStockCount)
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrValidation
	}
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (id, username, password, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, user.ID, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error) {
	var user domain.UserAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, password, role, active, created_at
		FROM app_users
		WHERE username = $1
	`, strings.ToLower(strings.TrimSpace(username))).Scan(&user.ID, &user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, password, role, active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.ID, &user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func receiptNumber(saleID string) string {
	compact := strings.ReplaceAll(saleID, "-", "")
	if len(compact) > 8 {
		compact = compact[:8]
	}
	return "RCP-" + strings.ToUpper(compact)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullDate(val *time.Time) any {
	if val == nil {
		return nil
	}
	t := val.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
