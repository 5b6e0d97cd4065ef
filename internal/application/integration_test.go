//go:build integration
// +build integration

package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-tx-propagation/internal/config"
	"github.com/sanosuguru/go-tx-propagation/internal/domain/auditlog"
	"github.com/sanosuguru/go-tx-propagation/internal/domain/member"
	"github.com/sanosuguru/go-tx-propagation/internal/domain/order"
	"github.com/sanosuguru/go-tx-propagation/internal/domain/transaction"
	"github.com/sanosuguru/go-tx-propagation/internal/infrastructure/payment"
	"github.com/sanosuguru/go-tx-propagation/internal/infrastructure/postgres"
	redisinfra "github.com/sanosuguru/go-tx-propagation/internal/infrastructure/redis"
)

type integrationEnv struct {
	tm      *transaction.Manager
	members *postgres.MemberRepository
	logs    *postgres.LogRepository
	orders  *postgres.OrderRepository
	locks   redisinfra.LockManagerInterface
}

func setupIntegration(t *testing.T) *integrationEnv {
	cfg := config.Load()

	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		t.Skipf("DB接続エラー: %v", err)
	}

	env := &integrationEnv{
		tm:      transaction.NewManager(postgres.NewConnector(db), transaction.WithLogger(zap.NewNop())),
		members: postgres.NewMemberRepository(db),
		logs:    postgres.NewLogRepository(db),
		orders:  postgres.NewOrderRepository(db),
	}

	if client, err := redisinfra.NewClient(redisinfra.ConfigFrom(&cfg.Redis)); err == nil {
		env.locks = redisinfra.NewLockManager(client)
		t.Cleanup(func() { client.Close() })
	}

	t.Cleanup(func() {
		db.Exec("DELETE FROM audit_logs")
		db.Exec("DELETE FROM members")
		db.Exec("DELETE FROM orders")
		db.Close()
	})
	return env
}

func (e *integrationEnv) memberService(attrs *transaction.AttributeSource) *MemberService {
	return NewMemberService(e.tm, attrs, e.members, e.logs, nil, nil)
}

func (e *integrationEnv) assertJoined(t *testing.T, username string, memberSaved, logSaved bool) {
	t.Helper()
	ctx := context.Background()
	_, err := e.members.FindByUsername(ctx, username)
	if memberSaved {
		assert.NoError(t, err)
	} else {
		assert.ErrorIs(t, err, member.ErrMemberNotFound)
	}
	_, err = e.logs.FindByMessage(ctx, username)
	if logSaved {
		assert.NoError(t, err)
	} else {
		assert.ErrorIs(t, err, auditlog.ErrLogNotFound)
	}
}

func TestIntegration_MemberJoin(t *testing.T) {
	env := setupIntegration(t)
	ctx := context.Background()

	requiresNew := DefaultAttributes()
	requiresNew.Set(AttrLogSave, transaction.Options{RequiresNew: true})

	t.Run("外側なし・正常", func(t *testing.T) {
		_, err := env.memberService(nonTxAttributes()).JoinV1(ctx, "it_nonTx_joinV1")
		require.NoError(t, err)
		env.assertJoined(t, "it_nonTx_joinV1", true, true)
	})

	t.Run("外側なし・ログ失敗", func(t *testing.T) {
		username := auditlog.FailureMarker + "_it_nonTx"
		_, err := env.memberService(nonTxAttributes()).JoinV1(ctx, username)
		assert.ErrorIs(t, err, auditlog.ErrLogRejected)
		env.assertJoined(t, username, true, false)
	})

	t.Run("外側あり・ログ失敗", func(t *testing.T) {
		username := auditlog.FailureMarker + "_it_tx_v1"
		_, err := env.memberService(nil).JoinV1(ctx, username)
		assert.ErrorIs(t, err, auditlog.ErrLogRejected)
		env.assertJoined(t, username, false, false)
	})

	t.Run("外側あり・ログ失敗を回復", func(t *testing.T) {
		username := auditlog.FailureMarker + "_it_tx_v2"
		_, err := env.memberService(nil).JoinV2(ctx, username)
		assert.ErrorIs(t, err, transaction.ErrUnexpectedRollback)
		env.assertJoined(t, username, false, false)
	})

	t.Run("ログを新規トランザクションで保存", func(t *testing.T) {
		username := auditlog.FailureMarker + "_it_requiresNew"
		_, err := env.memberService(requiresNew).JoinV2(ctx, username)
		require.NoError(t, err)
		env.assertJoined(t, username, true, false)
	})
}

func TestIntegration_PlaceOrder(t *testing.T) {
	env := setupIntegration(t)
	svc := NewOrderService(env.tm, nil, env.orders, payment.NewSimulatedGateway(), env.locks, nil)
	ctx := context.Background()

	t.Run("正常決済", func(t *testing.T) {
		o, err := svc.PlaceOrder(ctx, PlaceOrderInput{Username: "normal", Amount: 1000})
		require.NoError(t, err)

		found, err := svc.GetOrder(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, order.PayStatusCompleted, found.PayStatus)
	})

	t.Run("システム例外", func(t *testing.T) {
		o, err := svc.PlaceOrder(ctx, PlaceOrderInput{Username: payment.SystemErrorUser})
		assert.ErrorIs(t, err, order.ErrPaymentSystem)
		assert.Nil(t, o)
	})

	t.Run("残高不足", func(t *testing.T) {
		o, err := svc.PlaceOrder(ctx, PlaceOrderInput{Username: payment.NotEnoughUser})
		assert.ErrorIs(t, err, order.ErrNotEnoughMoney)
		require.NotNil(t, o)

		found, err := svc.GetOrder(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, order.PayStatusPending, found.PayStatus)

		// 決済待ちのまま放置された注文はスイープでキャンセルされる
		count, err := svc.CancelStalePending(ctx, 0)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, count, 1)

		found, err = svc.GetOrder(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, order.PayStatusCancelled, found.PayStatus)
	})

	t.Run("スイープ対象外", func(t *testing.T) {
		count, err := svc.CancelStalePending(ctx, time.Hour)
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})
}
