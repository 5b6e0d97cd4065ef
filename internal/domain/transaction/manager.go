package transaction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-tx-propagation/internal/pkg/logger"
)

// 完了結果（メトリクスのラベル）
const (
	OutcomeCommitted          = "committed"
	OutcomeRolledBack         = "rolled_back"
	OutcomeUnexpectedRollback = "unexpected_rollback"
	OutcomeCommitFailed       = "commit_failed"
)

// 開始種別（メトリクスのラベル）
const (
	BeginNew         = "new"
	BeginJoined      = "joined"
	BeginRequiresNew = "requires_new"
)

// Recorder はトランザクションの計測値を受け取る
type Recorder interface {
	TransactionBegun(kind string)
	TransactionCompleted(outcome string, elapsed time.Duration)
	RollbackOnlyMarked()
}

type nopRecorder struct{}

func (nopRecorder) TransactionBegun(string)                    {}
func (nopRecorder) TransactionCompleted(string, time.Duration) {}
func (nopRecorder) RollbackOnlyMarked()                        {}

// Manager は伝播を考慮したトランザクションマネージャー
type Manager struct {
	connector Connector
	log       *zap.Logger
	recorder  Recorder
}

// ManagerOption は Manager の設定
type ManagerOption func(*Manager)

// WithLogger はロガーを設定する
func WithLogger(l *zap.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// WithRecorder はメトリクスの記録先を設定する
func WithRecorder(r Recorder) ManagerOption {
	return func(m *Manager) {
		if r != nil {
			m.recorder = r
		}
	}
}

// NewManager は新しい Manager を作成する
func NewManager(c Connector, opts ...ManagerOption) *Manager {
	m := &Manager{
		connector: c,
		log:       logger.Get(),
		recorder:  nopRecorder{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Begin は論理トランザクションを開始する
// アクティブな物理トランザクションがあり RequiresNew でなければ参加し、それ以外は新しい物理トランザクションを開始する。
// 返されたコンテキストをネストした呼び出しに渡すこと。
func (m *Manager) Begin(ctx context.Context, opts Options) (context.Context, *Handle, error) {
	reg, ok := RegistryFrom(ctx)
	if !ok {
		ctx = NewScope(ctx)
		reg, _ = RegistryFrom(ctx)
	}

	if reg.IsActive() && !opts.RequiresNew {
		p := reg.current
		m.log.Debug("既存トランザクションに参加",
			zap.String("name", opts.Name),
			zap.String("tx_id", p.id),
			zap.Bool("read_only", p.readOnly),
		)
		m.recorder.TransactionBegun(BeginJoined)
		h := &Handle{name: opts.Name, phys: p, registry: reg}
		return withHandle(ctx, h), h, nil
	}

	suspended := reg.Suspend()
	if suspended {
		m.log.Debug("現在のトランザクションを中断して新規トランザクションを開始", zap.String("name", opts.Name))
	}

	tx, err := m.connector.Begin(ctx, opts.ReadOnly)
	if err != nil {
		if suspended {
			reg.Resume()
		}
		return ctx, nil, fmt.Errorf("%w: %w", ErrBeginFailed, err)
	}

	p := &physical{
		id:        uuid.NewString(),
		tx:        tx,
		readOnly:  opts.ReadOnly,
		state:     StateActive,
		startedAt: time.Now(),
	}
	reg.activate(p)

	kind := BeginNew
	if suspended {
		kind = BeginRequiresNew
	}
	m.recorder.TransactionBegun(kind)
	m.log.Debug("新規トランザクション開始",
		zap.String("name", opts.Name),
		zap.String("tx_id", p.id),
		zap.String("propagation", opts.propagation()),
		zap.Bool("read_only", p.readOnly),
	)

	h := &Handle{name: opts.Name, phys: p, registry: reg, isNew: true, resumes: suspended}
	return withHandle(ctx, h), h, nil
}

// Commit は論理トランザクションをコミットする
// 参加ハンドルでは物理的な操作は行わない。新規ハンドルで rollback-only の場合は
// 物理ロールバックを行い ErrUnexpectedRollback を返す。
func (m *Manager) Commit(ctx context.Context, h *Handle) error {
	if h == nil {
		return ErrInvalidHandle
	}
	if h.completed {
		return ErrTransactionCompleted
	}

	if !h.isNew {
		h.completed = true
		if h.localRollbackOnly {
			m.markRollbackOnly(h)
		}
		return nil
	}

	if h.registry.current != h.phys {
		return fmt.Errorf("%w: 内側の新規トランザクションが完了していません", ErrIllegalTransactionState)
	}
	h.completed = true

	if h.localRollbackOnly {
		m.log.Debug("ロールバックが要求されていたためロールバック", zap.String("name", h.name), zap.String("tx_id", h.phys.id))
		return m.processRollback(ctx, h, OutcomeRolledBack)
	}

	if h.phys.rollbackOnly {
		m.log.Info("rollback-only とマークされていたためコミットせずロールバック",
			zap.String("name", h.name),
			zap.String("tx_id", h.phys.id),
		)
		if err := m.processRollback(ctx, h, OutcomeUnexpectedRollback); err != nil {
			return errors.Join(ErrUnexpectedRollback, err)
		}
		return ErrUnexpectedRollback
	}

	return m.processCommit(ctx, h)
}

// Rollback は論理トランザクションをロールバックする
// 参加ハンドルでは共有物理トランザクションを rollback-only にするだけで、エラーは返さない。
func (m *Manager) Rollback(ctx context.Context, h *Handle) error {
	if h == nil {
		return ErrInvalidHandle
	}
	if h.completed {
		return ErrTransactionCompleted
	}

	if !h.isNew {
		h.completed = true
		m.markRollbackOnly(h)
		return nil
	}

	if h.registry.current != h.phys {
		return fmt.Errorf("%w: 内側の新規トランザクションが完了していません", ErrIllegalTransactionState)
	}
	h.completed = true
	return m.processRollback(ctx, h, OutcomeRolledBack)
}

func (m *Manager) markRollbackOnly(h *Handle) {
	if h.phys.rollbackOnly {
		return
	}
	h.phys.rollbackOnly = true
	m.recorder.RollbackOnlyMarked()
	m.log.Debug("参加トランザクションが失敗したため rollback-only にマーク",
		zap.String("name", h.name),
		zap.String("tx_id", h.phys.id),
	)
}

func (m *Manager) processCommit(ctx context.Context, h *Handle) error {
	p := h.phys

	if err := m.beforeCommit(ctx, h); err != nil {
		m.log.Warn("コミット前処理が失敗したためロールバック", zap.String("tx_id", p.id), zap.Error(err))
		if rbErr := m.processRollback(ctx, h, OutcomeRolledBack); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}

	if err := p.tx.Commit(); err != nil {
		p.state = StateRolledBack
		m.cleanup(h)
		m.recorder.TransactionCompleted(OutcomeCommitFailed, time.Since(p.startedAt))
		m.log.Error("物理コミット失敗", zap.String("tx_id", p.id), zap.Error(err))
		triggerAfterCompletion(ctx, p.syncs, StatusUnknown)
		return fmt.Errorf("%w: %w", ErrCommitFailed, err)
	}

	p.state = StateCommitted
	m.cleanup(h)
	m.recorder.TransactionCompleted(OutcomeCommitted, time.Since(p.startedAt))
	m.log.Debug("トランザクションをコミット", zap.String("name", h.name), zap.String("tx_id", p.id))
	triggerAfterCommit(ctx, p.syncs)
	triggerAfterCompletion(ctx, p.syncs, StatusCommitted)
	return nil
}

// beforeCommit はコミット前処理を実行する
// コールバックが panic した場合は物理トランザクションをロールバックしてから panic を再送出する
func (m *Manager) beforeCommit(ctx context.Context, h *Handle) error {
	defer func() {
		if r := recover(); r != nil {
			if rbErr := m.processRollback(ctx, h, OutcomeRolledBack); rbErr != nil {
				m.log.Error("コミット前処理の panic 後のロールバックに失敗", zap.String("tx_id", h.phys.id), zap.Error(rbErr))
			}
			panic(r)
		}
	}()
	return triggerBeforeCommit(ctx, h.phys.syncs)
}

func (m *Manager) processRollback(ctx context.Context, h *Handle, outcome string) error {
	p := h.phys
	err := p.tx.Rollback()
	p.state = StateRolledBack
	m.cleanup(h)
	m.recorder.TransactionCompleted(outcome, time.Since(p.startedAt))
	m.log.Debug("トランザクションをロールバック",
		zap.String("name", h.name),
		zap.String("tx_id", p.id),
		zap.String("outcome", outcome),
	)
	triggerAfterCompletion(ctx, p.syncs, StatusRolledBack)
	if err != nil {
		return fmt.Errorf("ロールバックに失敗: %w", err)
	}
	return nil
}

// cleanup は物理トランザクションを解放し、中断していた外側のトランザクションを再開する
func (m *Manager) cleanup(h *Handle) {
	h.registry.release()
	if h.resumes {
		h.registry.Resume()
		m.log.Debug("中断していたトランザクションを再開", zap.String("tx_id", h.registry.CurrentID()))
	}
}
