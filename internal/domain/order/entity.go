package order

import (
	"strings"
	"time"
)

// PayStatus は注文の決済状態を表す
type PayStatus string

const (
	PayStatusPending   PayStatus = "pending"
	PayStatusCompleted PayStatus = "completed"
	PayStatusCancelled PayStatus = "cancelled"
)

// Order は注文エンティティを表す
type Order struct {
	ID        string
	Username  string
	Amount    int
	PayStatus PayStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewOrder は決済待ちの注文を作成する
func NewOrder(username string, amount int) *Order {
	now := time.Now()
	return &Order{
		Username:  strings.TrimSpace(username),
		Amount:    amount,
		PayStatus: PayStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate は注文の検証を行う
func (o *Order) Validate() error {
	if o.Username == "" {
		return ErrUsernameRequired
	}
	if o.Amount < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// IsPending は決済待ちかを返す
func (o *Order) IsPending() bool {
	return o.PayStatus == PayStatusPending
}

// Complete は決済を完了にする
func (o *Order) Complete() error {
	if o.PayStatus != PayStatusPending {
		return ErrOrderNotPending
	}
	o.PayStatus = PayStatusCompleted
	o.UpdatedAt = time.Now()
	return nil
}

// AwaitPayment は残高不足の注文を決済待ちのまま保持する
func (o *Order) AwaitPayment() {
	o.PayStatus = PayStatusPending
	o.UpdatedAt = time.Now()
}

// Cancel は決済待ちの注文をキャンセルする
func (o *Order) Cancel() error {
	switch o.PayStatus {
	case PayStatusCancelled:
		return ErrOrderAlreadyCancelled
	case PayStatusCompleted:
		return ErrOrderAlreadyCompleted
	}
	o.PayStatus = PayStatusCancelled
	o.UpdatedAt = time.Now()
	return nil
}

// IsStale は決済待ちのまま threshold 以上経過しているかを返す
func (o *Order) IsStale(now time.Time, threshold time.Duration) bool {
	return o.IsPending() && !o.UpdatedAt.After(now.Add(-threshold))
}
