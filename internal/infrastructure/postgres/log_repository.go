package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-tx-propagation/internal/domain/auditlog"
)

type logRow struct {
	ID        string    `db:"id"`
	Message   string    `db:"message"`
	CreatedAt time.Time `db:"created_at"`
}

type LogRepository struct{ db *sqlx.DB }

var _ auditlog.Repository = (*LogRepository)(nil)

func NewLogRepository(db *sqlx.DB) *LogRepository {
	return &LogRepository{db: db}
}

func (r *LogRepository) Save(ctx context.Context, l *auditlog.Log) error {
	tx, err := currentTx(ctx)
	if err != nil {
		return err
	}
	query := `INSERT INTO audit_logs (message, created_at) VALUES ($1, $2) RETURNING id`
	if err := tx.QueryRowContext(ctx, query, l.Message, l.CreatedAt).Scan(&l.ID); err != nil {
		return fmt.Errorf("ログ保存に失敗: %w", err)
	}
	return nil
}

func (r *LogRepository) FindByMessage(ctx context.Context, message string) (*auditlog.Log, error) {
	var row logRow
	query := `SELECT id, message, created_at FROM audit_logs WHERE message = $1 ORDER BY created_at LIMIT 1`
	if err := sqlx.GetContext(ctx, queryer(ctx, r.db), &row, query, message); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auditlog.ErrLogNotFound
		}
		return nil, fmt.Errorf("ログ取得に失敗: %w", err)
	}
	return &auditlog.Log{ID: row.ID, Message: row.Message, CreatedAt: row.CreatedAt}, nil
}
