// Package storage implements the ledger contract on SQLite. It is the
// durable backend; the schema lives in migrations/ and is applied on open.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"scontrini/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateReceipt inserts the receipt and its items in one transaction.
func (r *SQLiteRepository) CreateReceipt(ctx context.Context, receipt core.Receipt, items []core.Item) (core.Receipt, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Receipt{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if receipt.UploadedAt.IsZero() {
		receipt.UploadedAt = time.Now().UTC()
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO receipts (user_id, store_name, purchase_date, uploaded_at, total_cents)
		 VALUES (?, ?, ?, ?, ?)`,
		receipt.UserID,
		nullString(receipt.StoreName),
		nullTime(receipt.PurchaseDate),
		receipt.UploadedAt,
		receipt.Total.Cents,
	)
	if err != nil {
		return core.Receipt{}, fmt.Errorf("insert receipt: %w", err)
	}
	receipt.ID, err = res.LastInsertId()
	if err != nil {
		return core.Receipt{}, fmt.Errorf("receipt id: %w", err)
	}

	for _, it := range items {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO items (receipt_id, name, price_cents, quantity, category)
			 VALUES (?, ?, ?, ?, ?)`,
			receipt.ID, it.Name, it.Price.Cents, it.Quantity, nullString(it.Category),
		)
		if err != nil {
			return core.Receipt{}, fmt.Errorf("insert item %q: %w", it.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return core.Receipt{}, fmt.Errorf("commit receipt: %w", err)
	}

	slog.InfoContext(ctx, "Receipt saved",
		"id", receipt.ID,
		"user_id", receipt.UserID,
		"items", len(items))
	return receipt, nil
}

func (r *SQLiteRepository) ListReceipts(ctx context.Context, userID string) ([]core.Receipt, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, store_name, purchase_date, uploaded_at, total_cents
		 FROM receipts WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query receipts: %w", err)
	}
	defer rows.Close()

	var out []core.Receipt
	for rows.Next() {
		receipt, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, receipt)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetReceipt(ctx context.Context, userID string, id int64) (core.Receipt, []core.Item, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, store_name, purchase_date, uploaded_at, total_cents
		 FROM receipts WHERE id = ? AND user_id = ?`, id, userID)

	receipt, err := scanReceipt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Receipt{}, nil, core.ErrNotFound
	}
	if err != nil {
		return core.Receipt{}, nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, receipt_id, name, price_cents, quantity, category
		 FROM items WHERE receipt_id = ? ORDER BY id`, id)
	if err != nil {
		return core.Receipt{}, nil, fmt.Errorf("query receipt items: %w", err)
	}
	defer rows.Close()

	var items []core.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return core.Receipt{}, nil, err
		}
		items = append(items, item)
	}
	return receipt, items, rows.Err()
}

// DeleteReceipt removes a receipt and its items. Ownership mismatch reports
// core.ErrNotFound, identical to a missing row.
func (r *SQLiteRepository) DeleteReceipt(ctx context.Context, userID string, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM receipts WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete receipt: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return core.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM items WHERE receipt_id = ?`, id); err != nil {
		return fmt.Errorf("delete receipt items: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListItems(ctx context.Context, userID string) ([]core.Item, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT i.id, i.receipt_id, i.name, i.price_cents, i.quantity, i.category
		 FROM items i
		 JOIN receipts r ON r.id = i.receipt_id
		 WHERE r.user_id = ?
		 ORDER BY i.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	return collectItems(rows)
}

func (r *SQLiteRepository) ListCategoryItemsSince(ctx context.Context, userID, category string, since time.Time) ([]core.Item, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT i.id, i.receipt_id, i.name, i.price_cents, i.quantity, i.category
		 FROM items i
		 JOIN receipts r ON r.id = i.receipt_id
		 WHERE r.user_id = ?
		   AND i.category = ?
		   AND r.purchase_date IS NOT NULL
		   AND r.purchase_date >= ?
		 ORDER BY i.id`, userID, category, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("query category items: %w", err)
	}
	defer rows.Close()

	return collectItems(rows)
}

func (r *SQLiteRepository) ListBudgets(ctx context.Context, userID string) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, category, monthly_limit_cents, current_spent_cents, last_reset
		 FROM budgets WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetBudgetByCategory(ctx context.Context, userID, category string) (core.Budget, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, category, monthly_limit_cents, current_spent_cents, last_reset
		 FROM budgets WHERE user_id = ? AND category = ?`, userID, category)

	b, err := scanBudget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, core.ErrNotFound
	}
	return b, err
}

func (r *SQLiteRepository) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	if b.LastReset.IsZero() {
		b.LastReset = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO budgets (user_id, category, monthly_limit_cents, current_spent_cents, last_reset)
		 VALUES (?, ?, ?, ?, ?)`,
		b.UserID, b.Category, b.MonthlyLimit.Cents, b.CurrentSpent.Cents, b.LastReset,
	)
	if err != nil {
		return core.Budget{}, fmt.Errorf("insert budget: %w", err)
	}
	b.ID, err = res.LastInsertId()
	if err != nil {
		return core.Budget{}, fmt.Errorf("budget id: %w", err)
	}
	return b, nil
}

func (r *SQLiteRepository) UpdateBudgetLimit(ctx context.Context, userID string, id int64, limit core.Money) error {
	return r.execOwned(ctx,
		`UPDATE budgets SET monthly_limit_cents = ? WHERE id = ? AND user_id = ?`,
		limit.Cents, id, userID)
}

func (r *SQLiteRepository) UpdateBudgetTracking(ctx context.Context, userID string, id int64, spent core.Money, lastReset time.Time) error {
	return r.execOwned(ctx,
		`UPDATE budgets SET current_spent_cents = ?, last_reset = ? WHERE id = ? AND user_id = ?`,
		spent.Cents, lastReset.UTC(), id, userID)
}

func (r *SQLiteRepository) DeleteBudget(ctx context.Context, userID string, id int64) error {
	return r.execOwned(ctx,
		`DELETE FROM budgets WHERE id = ? AND user_id = ?`, id, userID)
}

// execOwned runs a mutation that must match both row ID and owner; zero
// affected rows becomes core.ErrNotFound.
func (r *SQLiteRepository) execOwned(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return core.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReceipt(row rowScanner) (core.Receipt, error) {
	var (
		receipt      core.Receipt
		storeName    sql.NullString
		purchaseDate sql.NullTime
		totalCents   sql.NullInt64
	)
	err := row.Scan(&receipt.ID, &receipt.UserID, &storeName, &purchaseDate, &receipt.UploadedAt, &totalCents)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Receipt{}, err
		}
		return core.Receipt{}, fmt.Errorf("scan receipt: %w", err)
	}
	receipt.StoreName = storeName.String
	if purchaseDate.Valid {
		receipt.PurchaseDate = purchaseDate.Time
	}
	receipt.Total = core.Money{Cents: totalCents.Int64}
	return receipt, nil
}

func scanItem(row rowScanner) (core.Item, error) {
	var (
		item     core.Item
		category sql.NullString
	)
	err := row.Scan(&item.ID, &item.ReceiptID, &item.Name, &item.Price.Cents, &item.Quantity, &category)
	if err != nil {
		return core.Item{}, fmt.Errorf("scan item: %w", err)
	}
	item.Category = category.String
	return item, nil
}

func scanBudget(row rowScanner) (core.Budget, error) {
	var b core.Budget
	err := row.Scan(&b.ID, &b.UserID, &b.Category, &b.MonthlyLimit.Cents, &b.CurrentSpent.Cents, &b.LastReset)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Budget{}, err
		}
		return core.Budget{}, fmt.Errorf("scan budget: %w", err)
	}
	return b, nil
}

func collectItems(rows *sql.Rows) ([]core.Item, error) {
	var out []core.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t.UTC(), Valid: !t.IsZero()}
}
