package order

import (
	"context"
	"time"
)

// Repository は注文リポジトリのインターフェース
type Repository interface {
	// Save は新しい注文を保存する（トランザクション必須）
	Save(ctx context.Context, order *Order) error

	// Update は注文の決済状態を更新する（トランザクション必須）
	Update(ctx context.Context, order *Order) error

	// FindByID はIDから注文を取得する
	FindByID(ctx context.Context, id string) (*Order, error)

	// FindStalePending は olderThan 以上更新のない決済待ち注文を取得する
	FindStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]*Order, error)
}

// PaymentGateway は外部決済のインターフェース
type PaymentGateway interface {
	// Pay は注文の決済を行う
	// 残高不足は ErrNotEnoughMoney、それ以外の失敗は ErrPaymentSystem をラップして返す
	Pay(ctx context.Context, order *Order) error
}
