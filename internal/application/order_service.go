package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-tx-propagation/internal/domain/order"
	"github.com/sanosuguru/go-tx-propagation/internal/domain/transaction"
	redisinfra "github.com/sanosuguru/go-tx-propagation/internal/infrastructure/redis"
	"github.com/sanosuguru/go-tx-propagation/internal/pkg/logger"
	"github.com/sanosuguru/go-tx-propagation/internal/pkg/metrics"
)

// 1回のスイープでキャンセルする最大件数
const staleOrderBatchSize = 100

// ErrOrderInProgress は同じユーザーの注文が処理中であることを表す
var ErrOrderInProgress = errors.New("同じユーザーの注文が処理中です")

// 注文結果（メトリクスのラベル）
const (
	orderResultFailed = "failed"
)

type OrderService struct {
	tm          *transaction.Manager
	attrs       *transaction.AttributeSource
	orderRepo   order.Repository
	gateway     order.PaymentGateway
	lockManager redisinfra.LockManagerInterface
	metrics     *metrics.Metrics
}

func NewOrderService(tm *transaction.Manager, attrs *transaction.AttributeSource, or order.Repository, gw order.PaymentGateway, lm redisinfra.LockManagerInterface, m *metrics.Metrics) *OrderService {
	if attrs == nil {
		attrs = DefaultAttributes()
	}
	return &OrderService{tm: tm, attrs: attrs, orderRepo: or, gateway: gw, lockManager: lm, metrics: m}
}

type PlaceOrderInput struct {
	Username string
	Amount   int
}

// PlaceOrder は注文を保存して決済する
//   - システム例外: 注文はロールバックされ、エラーを返す
//   - 残高不足: 注文は決済待ちでコミットされ、注文と ErrNotEnoughMoney の両方を返す
//   - 正常: 注文は決済完了でコミットされる
func (s *OrderService) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*order.Order, error) {
	o := order.NewOrder(input.Username, input.Amount)
	if err := o.Validate(); err != nil {
		return nil, err
	}

	if s.lockManager != nil {
		lock, err := s.lockManager.AcquireLockWithRetry(ctx, "orders:"+o.Username, 10*time.Second, 3, 100*time.Millisecond)
		if err != nil {
			if errors.Is(err, redisinfra.ErrLockNotAcquired) {
				return nil, ErrOrderInProgress
			}
			return nil, fmt.Errorf("ロック取得に失敗: %w", err)
		}
		defer func() {
			if err := lock.Release(ctx); err != nil {
				logger.Warn("注文ロックの解放に失敗", zap.String("username", o.Username), zap.Error(err))
			}
		}()
	}

	var tx *transaction.Handle
	err := s.tm.Execute(ctx, s.attrs.Get(AttrOrderPlace), func(ctx context.Context) error {
		tx, _ = transaction.CurrentHandle(ctx)
		logger.Debug("注文保存", zap.String("username", o.Username))
		if err := s.orderRepo.Save(ctx, o); err != nil {
			return err
		}

		logger.Debug("決済プロセス開始", zap.String("order_id", o.ID))
		if err := s.gateway.Pay(ctx, o); err != nil {
			if errors.Is(err, order.ErrNotEnoughMoney) {
				logger.Info("残高不足のため決済待ちに設定", zap.String("order_id", o.ID))
				o.AwaitPayment()
				if uerr := s.orderRepo.Update(ctx, o); uerr != nil {
					return uerr
				}
			}
			return err
		}

		if err := o.Complete(); err != nil {
			return err
		}
		logger.Debug("決済プロセス完了", zap.String("order_id", o.ID))
		return s.orderRepo.Update(ctx, o)
	})

	if err != nil {
		// 残高不足でこの境界がコミットした場合だけ、決済待ちの注文を返す
		// 外側のトランザクションに参加した場合はまだ確定していない
		committed := tx != nil && tx.IsNew() && tx.State() == transaction.StateCommitted
		if committed && errors.Is(err, order.ErrNotEnoughMoney) {
			s.recordOrder(string(o.PayStatus))
			return o, err
		}
		s.recordOrder(orderResultFailed)
		return nil, err
	}
	s.recordOrder(string(o.PayStatus))
	return o, nil
}

// GetOrder はIDから注文を取得する
func (s *OrderService) GetOrder(ctx context.Context, id string) (*order.Order, error) {
	return transaction.Run(ctx, s.tm, s.attrs.Get(AttrOrderFind), func(ctx context.Context) (*order.Order, error) {
		return s.orderRepo.FindByID(ctx, id)
	})
}

// CancelStalePending は olderThan 以上決済待ちのままの注文をキャンセルする
// 一覧取得は読み取り専用のトランザクションで行い、1件ごとに独立したトランザクションでキャンセルする
func (s *OrderService) CancelStalePending(ctx context.Context, olderThan time.Duration) (int, error) {
	var cancelled int
	err := s.tm.Execute(ctx, s.attrs.Get(AttrOrderSweep), func(ctx context.Context) error {
		orders, err := s.orderRepo.FindStalePending(ctx, olderThan, staleOrderBatchSize)
		if err != nil {
			return err
		}
		for _, o := range orders {
			if err := s.cancelOne(ctx, o.ID); err != nil {
				logger.Warn("決済待ち注文のキャンセルに失敗", zap.String("order_id", o.ID), zap.Error(err))
				continue
			}
			cancelled++
		}
		return nil
	})
	if err != nil {
		return cancelled, fmt.Errorf("決済待ち注文のスイープに失敗: %w", err)
	}
	return cancelled, nil
}

func (s *OrderService) cancelOne(ctx context.Context, id string) error {
	err := s.tm.Execute(ctx, s.attrs.Get(AttrOrderCancel), func(ctx context.Context) error {
		// スイープ後に決済された注文を取り消さないよう読み直す
		o, err := s.orderRepo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := o.Cancel(); err != nil {
			return err
		}
		return s.orderRepo.Update(ctx, o)
	})
	if err != nil {
		return err
	}
	s.recordOrder(string(order.PayStatusCancelled))
	return nil
}

func (s *OrderService) recordOrder(status string) {
	if s.metrics != nil {
		s.metrics.OrdersTotal.WithLabelValues(status).Inc()
	}
}
