package postgres

/*
Файл order_repo.go — хранение заказов-проектов: сами заказы, позиции,
платежи и метаданные загруженных архивов.
*/

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xela07ax/printhub-backend/internal/domain"
)

type OrderRepo struct {
	pool *pgxpool.Pool
}

func NewOrderRepo(pool *pgxpool.Pool) *OrderRepo {
	return &OrderRepo{pool: pool}
}

// Create вставляет заказ вместе с позициями в одной транзакции.
func (r *OrderRepo) Create(ctx context.Context, o *domain.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO orders (id, user_id, title, note, status, total_price)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := tx.Exec(ctx, query, o.ID, o.UserID, o.Title, o.Note, o.Status, o.TotalPrice); err != nil {
		return fmt.Errorf("postgres: failed to insert order: %w", err)
	}

	for _, it := range o.Items {
		itemQuery := `
			INSERT INTO order_items (id, order_id, name, paper, color, binding, copies, page_count, unit_price)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
		_, err := tx.Exec(ctx, itemQuery,
			it.ID, o.ID, it.Name, it.Paper, it.Color, it.Binding, it.Copies, it.PageCount, it.UnitPrice,
		)
		if err != nil {
			return fmt.Errorf("postgres: failed to insert order item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: failed to commit order: %w", err)
	}
	return nil
}

// AttachFile пишет метаданные архива ПОСЛЕ успешной загрузки на диск.
func (r *OrderRepo) AttachFile(ctx context.Context, f *domain.ProjectFile) error {
	query := `
		INSERT INTO project_files (id, order_id, name, drive_file_id, view_link, size_bytes)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query, f.ID, f.OrderID, f.Name, f.DriveFileID, f.ViewLink, f.SizeBytes)
	if err != nil {
		return fmt.Errorf("postgres: failed to attach file: %w", err)
	}
	return nil
}

// GetByID возвращает заказ с позициями и файлами; (nil, nil) — не найден.
func (r *OrderRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	query := `SELECT id, user_id, title, note, status, total_price, created_at, updated_at
	          FROM orders WHERE id = $1`

	o := &domain.Order{}
	var note sql.NullString
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&o.ID, &o.UserID, &o.Title, &note, &o.Status, &o.TotalPrice, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: failed to get order: %w", err)
	}
	if note.Valid {
		val := note.String
		o.Note = &val
	}

	if o.Items, err = r.loadItems(ctx, id); err != nil {
		return nil, err
	}
	if o.Files, err = r.loadFiles(ctx, id); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *OrderRepo) loadItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	query := `SELECT id, order_id, name, paper, color, binding, copies, page_count, unit_price
	          FROM order_items WHERE order_id = $1`

	rows, err := r.pool.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0)
	for rows.Next() {
		var it domain.OrderItem
		err := rows.Scan(&it.ID, &it.OrderID, &it.Name, &it.Paper, &it.Color, &it.Binding,
			&it.Copies, &it.PageCount, &it.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *OrderRepo) loadFiles(ctx context.Context, orderID string) ([]domain.ProjectFile, error) {
	query := `SELECT id, order_id, name, drive_file_id, view_link, size_bytes, created_at
	          FROM project_files WHERE order_id = $1`

	rows, err := r.pool.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query files: %w", err)
	}
	defer rows.Close()

	files := make([]domain.ProjectFile, 0)
	for rows.Next() {
		var f domain.ProjectFile
		err := rows.Scan(&f.ID, &f.OrderID, &f.Name, &f.DriveFileID, &f.ViewLink, &f.SizeBytes, &f.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// ListByUser — заказы пользователя без вложенных позиций (список для кабинета).
func (r *OrderRepo) ListByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	query := `SELECT id, user_id, title, note, status, total_price, created_at, updated_at
	          FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query orders: %w", err)
	}
	defer rows.Close()

	return collectOrders(rows)
}

// Search — фильтрация для staff-поиска. Запрос собирается по наличию фильтров.
func (r *OrderRepo) Search(ctx context.Context, f domain.OrderFilter) ([]*domain.Order, error) {
	query := `SELECT o.id, o.user_id, o.title, o.note, o.status, o.total_price, o.created_at, o.updated_at
	          FROM orders o JOIN users u ON u.id = o.user_id`

	var args []interface{}
	var where []string
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("o.status = $%d", len(args)))
	}
	if f.Email != "" {
		args = append(args, f.Email)
		where = append(where, fmt.Sprintf("u.email = $%d", len(args)))
	}
	if f.Query != "" {
		args = append(args, "%"+f.Query+"%")
		where = append(where, fmt.Sprintf("o.title ILIKE $%d", len(args)))
	}
	for i, w := range where {
		if i == 0 {
			query += " WHERE " + w
		} else {
			query += " AND " + w
		}
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	query += fmt.Sprintf(" ORDER BY o.created_at DESC LIMIT %d", limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to search orders: %w", err)
	}
	defer rows.Close()

	return collectOrders(rows)
}

func collectOrders(rows pgx.Rows) ([]*domain.Order, error) {
	results := make([]*domain.Order, 0)
	for rows.Next() {
		o := &domain.Order{}
		var note sql.NullString
		err := rows.Scan(&o.ID, &o.UserID, &o.Title, &note, &o.Status, &o.TotalPrice, &o.CreatedAt, &o.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan order: %w", err)
		}
		if note.Valid {
			val := note.String
			o.Note = &val
		}
		results = append(results, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}
	return results, nil
}

// UpdateStatus переводит заказ в новый статус. Проверка допустимости
// перехода — на сервисном слое, здесь только запись.
func (r *OrderRepo) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) error {
	query := `UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2`

	result, err := r.pool.Exec(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("postgres: failed to update status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateUserNote меняет заметку заказа, но только у владельца.
func (r *OrderRepo) UpdateUserNote(ctx context.Context, id, userID, note string) error {
	query := `UPDATE orders SET note = $1, updated_at = NOW() WHERE id = $2 AND user_id = $3`

	result, err := r.pool.Exec(ctx, query, note, id, userID)
	if err != nil {
		return fmt.Errorf("postgres: failed to update note: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CancelUserOrder отменяет заказ владельца. Условие status = 'SUBMITTED'
// в WHERE защищает от отмены заказа, уже взятого в работу (без гонки
// read-then-write).
func (r *OrderRepo) CancelUserOrder(ctx context.Context, id, userID string) error {
	query := `UPDATE orders SET status = $1, updated_at = NOW()
	          WHERE id = $2 AND user_id = $3 AND status = $4`

	result, err := r.pool.Exec(ctx, query, domain.StatusCancelled, id, userID, domain.StatusSubmitted)
	if err != nil {
		return fmt.Errorf("postgres: failed to cancel order: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrInvalidTransition
	}
	return nil
}

// CreatePayment фиксирует платеж по заказу.
func (r *OrderRepo) CreatePayment(ctx context.Context, p *domain.Payment) error {
	query := `
		INSERT INTO payments (id, order_id, method, amount, status, paid_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query, p.ID, p.OrderID, p.Method, p.Amount, p.Status, p.PaidAt)
	if err != nil {
		return fmt.Errorf("postgres: failed to create payment: %w", err)
	}
	return nil
}
