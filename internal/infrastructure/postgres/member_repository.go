package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-tx-propagation/internal/domain/member"
)

type memberRow struct {
	ID        string    `db:"id"`
	Username  string    `db:"username"`
	CreatedAt time.Time `db:"created_at"`
}

type MemberRepository struct{ db *sqlx.DB }

var _ member.Repository = (*MemberRepository)(nil)

func NewMemberRepository(db *sqlx.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

func (r *MemberRepository) Save(ctx context.Context, m *member.Member) error {
	tx, err := currentTx(ctx)
	if err != nil {
		return err
	}
	query := `INSERT INTO members (username, created_at) VALUES ($1, $2) RETURNING id`
	if err := tx.QueryRowContext(ctx, query, m.Username, m.CreatedAt).Scan(&m.ID); err != nil {
		if isUniqueViolation(err) {
			return member.ErrMemberAlreadyExists
		}
		return fmt.Errorf("会員保存に失敗: %w", err)
	}
	return nil
}

func (r *MemberRepository) FindByUsername(ctx context.Context, username string) (*member.Member, error) {
	var row memberRow
	query := `SELECT id, username, created_at FROM members WHERE username = $1`
	if err := sqlx.GetContext(ctx, queryer(ctx, r.db), &row, query, username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, member.ErrMemberNotFound
		}
		return nil, fmt.Errorf("会員取得に失敗: %w", err)
	}
	return &member.Member{ID: row.ID, Username: row.Username, CreatedAt: row.CreatedAt}, nil
}
