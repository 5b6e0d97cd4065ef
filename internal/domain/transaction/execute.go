package transaction

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Execute は fn をトランザクション境界の内側で実行する
// fn がエラーを返した場合はロールバック方針に従ってコミットかロールバックを選び、
// fn のエラーは常に呼び出し元へ返す（コミット失敗時は errors.Join で両方を返す）。
// fn が panic した場合はロールバックしてから panic を再送出する。
func (m *Manager) Execute(ctx context.Context, opts Options, fn func(ctx context.Context) error) error {
	txCtx, h, err := m.Begin(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			if !h.completed {
				if rbErr := m.Rollback(txCtx, h); rbErr != nil {
					m.log.Error("panic 後のロールバックに失敗", zap.String("name", opts.Name), zap.Error(rbErr))
				}
			}
			panic(r)
		}
	}()

	fnErr := fn(txCtx)
	if fnErr == nil {
		return m.Commit(txCtx, h)
	}

	d := Evaluate(fnErr, opts)
	m.log.Debug("ロールバック方針を評価",
		zap.String("name", opts.Name),
		zap.Bool("rollback", d.Rollback),
		zap.String("reason", string(d.Reason)),
		zap.Error(fnErr),
	)
	if d.Rollback {
		if rbErr := m.Rollback(txCtx, h); rbErr != nil {
			return errors.Join(fnErr, rbErr)
		}
		return fnErr
	}
	if cErr := m.Commit(txCtx, h); cErr != nil {
		return errors.Join(fnErr, cErr)
	}
	return fnErr
}

// Run は値を返す処理をトランザクション境界の内側で実行する
func Run[T any](ctx context.Context, m *Manager, opts Options, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := m.Execute(ctx, opts, func(ctx context.Context) error {
		v, err := fn(ctx)
		result = v
		return err
	})
	return result, err
}
