package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-tx-propagation/internal/domain/transaction"
)

// TxWrapper は sqlx.Tx を transaction.Tx インターフェースでラップする
type TxWrapper struct {
	*sqlx.Tx
}

// Commit はトランザクションをコミットする
func (t *TxWrapper) Commit() error {
	return t.Tx.Commit()
}

// Rollback はトランザクションをロールバックする
func (t *TxWrapper) Rollback() error {
	return t.Tx.Rollback()
}

// Connector は sqlx.DB から物理トランザクションを開始する
// 新規の物理トランザクションごとにプールから接続を1本取得する
type Connector struct {
	db *sqlx.DB
}

var _ transaction.Connector = (*Connector)(nil)

// NewConnector は新しい Connector を作成する
func NewConnector(db *sqlx.DB) *Connector {
	return &Connector{db: db}
}

// Begin は新しい物理トランザクションを開始する
func (c *Connector) Begin(ctx context.Context, readOnly bool) (transaction.Tx, error) {
	tx, err := c.db.BeginTxx(ctx, &sql.TxOptions{ReadOnly: readOnly})
	if err != nil {
		return nil, err
	}
	return &TxWrapper{Tx: tx}, nil
}

// UnwrapTx は transaction.Tx から sqlx.Tx を取り出す
// リポジトリ実装で使用する
func UnwrapTx(tx transaction.Tx) *sqlx.Tx {
	if wrapper, ok := tx.(*TxWrapper); ok {
		return wrapper.Tx
	}
	return nil
}

// currentTx はコンテキスト上の現在の物理トランザクションを返す
// 書き込みはトランザクションの内側でのみ許可する
func currentTx(ctx context.Context) (*sqlx.Tx, error) {
	tx, err := transaction.CurrentTx(ctx)
	if err != nil {
		return nil, err
	}
	sqlxTx := UnwrapTx(tx)
	if sqlxTx == nil {
		return nil, fmt.Errorf("%w: sqlx 以外のトランザクションです", transaction.ErrIllegalTransactionState)
	}
	return sqlxTx, nil
}

// queryer は読み取り用の実行先を返す
// トランザクションが有効ならその接続を使い、なければプールから直接読む
func queryer(ctx context.Context, db *sqlx.DB) sqlx.QueryerContext {
	if tx, err := currentTx(ctx); err == nil {
		return tx
	}
	return db
}
