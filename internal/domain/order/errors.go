package order

import (
	"errors"

	"github.com/sanosuguru/go-tx-propagation/internal/domain/transaction"
)

// Order ドメインのエラー定義
var (
	ErrOrderNotFound         = errors.New("注文が見つかりません")
	ErrOrderNotPending       = errors.New("注文は決済待ちではありません")
	ErrOrderAlreadyCancelled = errors.New("注文は既にキャンセルされています")
	ErrOrderAlreadyCompleted = errors.New("注文は既に決済済みです")
	ErrUsernameRequired      = errors.New("ユーザー名は必須です")
	ErrInvalidAmount         = errors.New("金額は0以上である必要があります")

	// ErrNotEnoughMoney は業務エラー。注文は決済待ちとしてコミットされる
	ErrNotEnoughMoney = transaction.MarkRecoverable(errors.New("残高が不足しています"))
	// ErrPaymentSystem はシステムエラー。注文はロールバックされる
	ErrPaymentSystem = errors.New("決済システムでエラーが発生しました")
)
