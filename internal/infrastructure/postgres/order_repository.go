package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-tx-propagation/internal/domain/order"
)

type orderRow struct {
	ID        string    `db:"id"`
	Username  string    `db:"username"`
	Amount    int       `db:"amount"`
	PayStatus string    `db:"pay_status"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

const orderColumns = `id, username, amount, pay_status, created_at, updated_at`

type OrderRepository struct{ db *sqlx.DB }

var _ order.Repository = (*OrderRepository)(nil)

func NewOrderRepository(db *sqlx.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Save(ctx context.Context, o *order.Order) error {
	tx, err := currentTx(ctx)
	if err != nil {
		return err
	}
	query := `INSERT INTO orders (username, amount, pay_status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5) RETURNING id`
	if err := tx.QueryRowContext(ctx, query, o.Username, o.Amount, string(o.PayStatus), o.CreatedAt, o.UpdatedAt).Scan(&o.ID); err != nil {
		return fmt.Errorf("注文保存に失敗: %w", err)
	}
	return nil
}

func (r *OrderRepository) Update(ctx context.Context, o *order.Order) error {
	tx, err := currentTx(ctx)
	if err != nil {
		return err
	}
	result, err := tx.ExecContext(ctx, `UPDATE orders SET pay_status = $1, updated_at = $2 WHERE id = $3`, string(o.PayStatus), o.UpdatedAt, o.ID)
	if err != nil {
		return fmt.Errorf("注文更新に失敗: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return order.ErrOrderNotFound
	}
	return nil
}

func (r *OrderRepository) FindByID(ctx context.Context, id string) (*order.Order, error) {
	// uuid として不正なIDは存在しない注文として扱う
	if _, err := uuid.Parse(id); err != nil {
		return nil, order.ErrOrderNotFound
	}
	var row orderRow
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if err := sqlx.GetContext(ctx, queryer(ctx, r.db), &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, order.ErrOrderNotFound
		}
		return nil, fmt.Errorf("注文取得に失敗: %w", err)
	}
	return toOrder(&row), nil
}

func (r *OrderRepository) FindStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]*order.Order, error) {
	var rows []orderRow
	query := `SELECT ` + orderColumns + ` FROM orders WHERE pay_status = $1 AND updated_at <= $2 ORDER BY updated_at LIMIT $3`
	cutoff := time.Now().Add(-olderThan)
	if err := sqlx.SelectContext(ctx, queryer(ctx, r.db), &rows, query, string(order.PayStatusPending), cutoff, limit); err != nil {
		return nil, fmt.Errorf("決済待ち注文取得に失敗: %w", err)
	}
	result := make([]*order.Order, len(rows))
	for i := range rows {
		result[i] = toOrder(&rows[i])
	}
	return result, nil
}

func toOrder(row *orderRow) *order.Order {
	return &order.Order{
		ID:        row.ID,
		Username:  row.Username,
		Amount:    row.Amount,
		PayStatus: order.PayStatus(row.PayStatus),
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}
