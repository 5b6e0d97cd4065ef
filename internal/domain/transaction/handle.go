package transaction

import "context"

// Handle は Begin が返す論理トランザクション
// 物理トランザクションを開始したハンドル（IsNew）だけがその完了を決められる
type Handle struct {
	name              string
	phys              *physical
	registry          *Registry
	isNew             bool
	resumes           bool
	localRollbackOnly bool
	completed         bool
}

// Name は論理トランザクション名を返す
func (h *Handle) Name() string {
	return h.name
}

// IsNew はこのハンドルが物理トランザクションを開始したかを返す
func (h *Handle) IsNew() bool {
	return h.isNew
}

// PhysicalID は紐づく物理トランザクションのIDを返す
func (h *Handle) PhysicalID() string {
	return h.phys.id
}

// ReadOnly は物理トランザクションが読み取り専用かを返す
func (h *Handle) ReadOnly() bool {
	return h.phys.readOnly
}

// IsRollbackOnly はこのハンドルまたは共有物理トランザクションが rollback-only かを返す
func (h *Handle) IsRollbackOnly() bool {
	return h.localRollbackOnly || h.phys.rollbackOnly
}

// IsGlobalRollbackOnly は共有物理トランザクションが rollback-only かを返す
func (h *Handle) IsGlobalRollbackOnly() bool {
	return h.phys.rollbackOnly
}

// SetRollbackOnly はこのハンドルのコミットをロールバックに切り替える
// 新規ハンドルでは Commit が例外なしにロールバックし、参加ハンドルでは共有トランザクションを rollback-only にする
func (h *Handle) SetRollbackOnly() {
	h.localRollbackOnly = true
}

// IsCompleted はこのハンドルが既にコミット・ロールバック済みかを返す
func (h *Handle) IsCompleted() bool {
	return h.completed
}

// State は物理トランザクションの状態を返す
func (h *Handle) State() State {
	return h.phys.state
}

type handleKey struct{}

func withHandle(ctx context.Context, h *Handle) context.Context {
	return context.WithValue(ctx, handleKey{}, h)
}

// CurrentHandle はコンテキストに紐づく最も内側の論理トランザクションを返す
func CurrentHandle(ctx context.Context) (*Handle, bool) {
	h, ok := ctx.Value(handleKey{}).(*Handle)
	return h, ok && h != nil
}

// SetRollbackOnly は現在の論理トランザクションにロールバックを要求する
func SetRollbackOnly(ctx context.Context) error {
	h, ok := CurrentHandle(ctx)
	if !ok || h.completed {
		return ErrNoActiveTransaction
	}
	h.SetRollbackOnly()
	return nil
}
