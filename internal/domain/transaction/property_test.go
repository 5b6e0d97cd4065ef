package transaction

import (
	"context"
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// nestedBegin は depth 個の論理トランザクションを入れ子で開始する
func nestedBegin(m *Manager, depth int) ([]context.Context, []*Handle, error) {
	ctx := NewScope(context.Background())
	ctxs := make([]context.Context, 0, depth)
	handles := make([]*Handle, 0, depth)
	for i := 0; i < depth; i++ {
		var h *Handle
		var err error
		ctx, h, err = m.Begin(ctx, Options{})
		if err != nil {
			return nil, nil, err
		}
		ctxs = append(ctxs, ctx)
		handles = append(handles, h)
	}
	return ctxs, handles, nil
}

// TestPropagationProperties はプロパティベーステストで伝播の不変条件を検証する
func TestPropagationProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	properties.Property("入れ子の Begin は物理トランザクションを1つだけ作る", prop.ForAll(
		func(depth int) bool {
			m, c := newTestManager()
			ctxs, handles, err := nestedBegin(m, depth)
			if err != nil {
				return false
			}
			if len(c.txs) != 1 || !handles[0].IsNew() {
				return false
			}
			for _, h := range handles[1:] {
				if h.IsNew() || h.PhysicalID() != handles[0].PhysicalID() {
					return false
				}
			}
			for i := depth - 1; i > 0; i-- {
				if m.Commit(ctxs[i], handles[i]) != nil || !IsActive(ctxs[0]) {
					return false
				}
			}
			if m.Commit(ctxs[0], handles[0]) != nil {
				return false
			}
			return c.txs[0].committed == 1 && c.txs[0].rolledBack == 0 && !IsActive(ctxs[0])
		},
		gen.IntRange(1, 12),
	))

	properties.Property("どれか1つの参加者がロールバックすれば外側のコミットは失敗する", prop.ForAll(
		func(depth int, pick int) bool {
			m, c := newTestManager()
			ctxs, handles, err := nestedBegin(m, depth)
			if err != nil {
				return false
			}
			victim := 1 + pick%(depth-1)
			for i := depth - 1; i > 0; i-- {
				var err error
				if i == victim {
					err = m.Rollback(ctxs[i], handles[i])
				} else {
					err = m.Commit(ctxs[i], handles[i])
				}
				if err != nil {
					return false
				}
			}
			err = m.Commit(ctxs[0], handles[0])
			return errors.Is(err, ErrUnexpectedRollback) &&
				handles[0].State() == StateRolledBack &&
				c.txs[0].committed == 0 && c.txs[0].rolledBack == 1
		},
		gen.IntRange(2, 12),
		gen.IntRange(0, 100),
	))

	properties.Property("参加ハンドルの完了は物理操作を行わない", prop.ForAll(
		func(ops []bool) bool {
			m, c := newTestManager()
			ctx, outer, err := m.Begin(context.Background(), Options{})
			if err != nil {
				return false
			}
			for _, commit := range ops {
				innerCtx, inner, err := m.Begin(ctx, Options{})
				if err != nil {
					return false
				}
				if commit {
					err = m.Commit(innerCtx, inner)
				} else {
					err = m.Rollback(innerCtx, inner)
				}
				if err != nil {
					return false
				}
			}
			commits, rollbacks := c.physicalOps()
			return commits == 0 && rollbacks == 0 && IsActive(ctx) && !outer.IsCompleted()
		},
		gen.SliceOf(gen.Bool()),
	))

	properties.Property("RequiresNew の結果は外側の結果から独立している", prop.ForAll(
		func(innerCommits, outerCommits bool) bool {
			m, _ := newTestManager()
			ctx, outer, err := m.Begin(context.Background(), Options{})
			if err != nil {
				return false
			}
			innerCtx, inner, err := m.Begin(ctx, Options{RequiresNew: true})
			if err != nil {
				return false
			}
			if innerCommits {
				err = m.Commit(innerCtx, inner)
			} else {
				err = m.Rollback(innerCtx, inner)
			}
			if err != nil {
				return false
			}
			if outerCommits {
				err = m.Commit(ctx, outer)
			} else {
				err = m.Rollback(ctx, outer)
			}
			if err != nil {
				return false
			}
			return (inner.State() == StateCommitted) == innerCommits &&
				(outer.State() == StateCommitted) == outerCommits
		},
		gen.Bool(),
		gen.Bool(),
	))

	properties.Property("明示ルールはデフォルト方針より優先され RollbackFor が最優先", prop.ForAll(
		func(recoverable, inRollbackFor, inNoRollbackFor bool) bool {
			base := errors.New("任意のエラー")
			err := base
			if recoverable {
				err = MarkRecoverable(base)
			}
			var opts Options
			if inRollbackFor {
				opts.RollbackFor = []ErrorKind{KindOf(base)}
			}
			if inNoRollbackFor {
				opts.NoRollbackFor = []ErrorKind{KindOf(base)}
			}

			var want bool
			switch {
			case inRollbackFor:
				want = true
			case inNoRollbackFor:
				want = false
			default:
				want = !recoverable
			}
			return opts.RollbackOn(err) == want
		},
		gen.Bool(),
		gen.Bool(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
