package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-tx-propagation/internal/domain/transaction"
	"github.com/sanosuguru/go-tx-propagation/internal/pkg/logger"
)

// StaleOrderCanceller は決済待ちのまま放置された注文をキャンセルするインターフェース
type StaleOrderCanceller interface {
	CancelStalePending(ctx context.Context, olderThan time.Duration) (int, error)
}

// PendingOrderCanceller は決済待ち注文を定期的にキャンセルするワーカー
type PendingOrderCanceller struct {
	orderService StaleOrderCanceller
	interval     time.Duration
	staleAfter   time.Duration
	stopCh       chan struct{}
	doneCh       chan struct{}
	stopOnce     sync.Once
}

// NewPendingOrderCanceller は新しいワーカーを作成
func NewPendingOrderCanceller(
	svc StaleOrderCanceller,
	interval time.Duration,
	staleAfter time.Duration,
) *PendingOrderCanceller {
	return &PendingOrderCanceller{
		orderService: svc,
		interval:     interval,
		staleAfter:   staleAfter,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
}

// Start はワーカーを開始
func (c *PendingOrderCanceller) Start(ctx context.Context) {
	logger.Info("決済待ち注文キャンセルワーカー開始",
		zap.Duration("interval", c.interval),
		zap.Duration("stale_after", c.staleAfter),
	)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	defer close(c.doneCh)

	for {
		select {
		case <-ctx.Done():
			logger.Info("決済待ち注文キャンセルワーカー停止（コンテキストキャンセル）")
			return
		case <-c.stopCh:
			logger.Info("決済待ち注文キャンセルワーカー停止（シグナル受信）")
			return
		case <-ticker.C:
			c.RunOnce(ctx)
		}
	}
}

// Stop はワーカーを停止し、終了を待つ
func (c *PendingOrderCanceller) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	<-c.doneCh
}

// RunOnce は1回分のスイープを実行し、キャンセル件数を返す
// 1回のスイープは独立したトランザクションスコープで実行する
func (c *PendingOrderCanceller) RunOnce(ctx context.Context) int {
	log := logger.Get()
	log.Debug("決済待ち注文のスイープ開始")

	count, err := c.orderService.CancelStalePending(transaction.NewScope(ctx), c.staleAfter)
	if err != nil {
		log.Error("決済待ち注文のスイープ失敗", zap.Error(err), zap.Int("cancelled", count))
		return count
	}

	if count > 0 {
		log.Info("決済待ち注文をキャンセル", zap.Int("count", count))
	} else {
		log.Debug("キャンセル対象の注文なし")
	}
	return count
}
