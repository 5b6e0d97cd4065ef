package payment

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-tx-propagation/internal/domain/order"
	"github.com/sanosuguru/go-tx-propagation/internal/pkg/logger"
)

// 決済結果を切り替えるユーザー名
const (
	SystemErrorUser = "exception"
	NotEnoughUser   = "notEnoughMoney"
)

// SimulatedGateway はユーザー名で決済結果を決める疑似決済ゲートウェイ
type SimulatedGateway struct{}

var _ order.PaymentGateway = (*SimulatedGateway)(nil)

func NewSimulatedGateway() *SimulatedGateway {
	return &SimulatedGateway{}
}

// Pay は注文の決済を行う
func (g *SimulatedGateway) Pay(ctx context.Context, o *order.Order) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", order.ErrPaymentSystem, err)
	}
	switch o.Username {
	case SystemErrorUser:
		logger.Info("決済システム例外発生", zap.String("order_id", o.ID))
		return fmt.Errorf("%w: ゲートウェイ応答なし", order.ErrPaymentSystem)
	case NotEnoughUser:
		logger.Info("残高不足のビジネス例外発生", zap.String("order_id", o.ID))
		return order.ErrNotEnoughMoney
	default:
		logger.Info("決済承認", zap.String("order_id", o.ID), zap.Int("amount", o.Amount))
		return nil
	}
}
