package transaction

import (
	"context"
	"time"
)

// physical は接続に紐づく物理トランザクション
// 同じ物理トランザクションに参加する全てのハンドルがこの値をポインタで共有する
type physical struct {
	id           string
	tx           Tx
	readOnly     bool
	rollbackOnly bool
	state        State
	syncs        []Synchronization
	startedAt    time.Time
}

// Registry は処理単位（リクエスト等）ごとのトランザクション状態を保持する
// 並行する処理単位間で共有してはならない
type Registry struct {
	current   *physical
	suspended []*physical
}

// NewRegistry は空のレジストリを作成する
func NewRegistry() *Registry {
	return &Registry{}
}

// IsActive は物理トランザクションがアクティブかを返す
func (r *Registry) IsActive() bool {
	return r.current != nil
}

// IsRollbackOnly はアクティブな物理トランザクションが rollback-only かを返す
func (r *Registry) IsRollbackOnly() bool {
	return r.current != nil && r.current.rollbackOnly
}

// IsReadOnly はアクティブな物理トランザクションが読み取り専用かを返す
func (r *Registry) IsReadOnly() bool {
	return r.current != nil && r.current.readOnly
}

// CurrentID はアクティブな物理トランザクションのIDを返す
func (r *Registry) CurrentID() string {
	if r.current == nil {
		return ""
	}
	return r.current.id
}

// MarkRollbackOnly はアクティブな物理トランザクションを rollback-only にする
// 一度立てたフラグは戻らない
func (r *Registry) MarkRollbackOnly() error {
	if r.current == nil {
		return ErrNoActiveTransaction
	}
	r.current.rollbackOnly = true
	return nil
}

// Suspend はアクティブな物理トランザクションを中断スタックに積む
func (r *Registry) Suspend() bool {
	if r.current == nil {
		return false
	}
	r.suspended = append(r.suspended, r.current)
	r.current = nil
	return true
}

// Resume は直近に中断した物理トランザクションを再開する
func (r *Registry) Resume() bool {
	n := len(r.suspended)
	if n == 0 {
		return false
	}
	r.current = r.suspended[n-1]
	r.suspended[n-1] = nil
	r.suspended = r.suspended[:n-1]
	return true
}

// SuspendedCount は中断中の物理トランザクション数を返す
func (r *Registry) SuspendedCount() int {
	return len(r.suspended)
}

func (r *Registry) activate(p *physical) {
	r.current = p
}

func (r *Registry) release() {
	r.current = nil
}

func (r *Registry) currentTx() (Tx, error) {
	if r.current == nil {
		return nil, ErrNoActiveTransaction
	}
	return r.current.tx, nil
}

type registryKey struct{}

// NewScope は新しいレジストリを持つコンテキストを返す
// goroutine を起動して別の処理単位として扱う場合はここで分離する
func NewScope(ctx context.Context) context.Context {
	return context.WithValue(ctx, registryKey{}, NewRegistry())
}

// RegistryFrom はコンテキストからレジストリを取り出す
func RegistryFrom(ctx context.Context) (*Registry, bool) {
	r, ok := ctx.Value(registryKey{}).(*Registry)
	return r, ok && r != nil
}

// CurrentTx はアクティブな物理トランザクションを返す
// リポジトリ実装で使用する
func CurrentTx(ctx context.Context) (Tx, error) {
	r, ok := RegistryFrom(ctx)
	if !ok {
		return nil, ErrNoActiveTransaction
	}
	return r.currentTx()
}

// IsActive はコンテキストにアクティブなトランザクションがあるかを返す
func IsActive(ctx context.Context) bool {
	r, ok := RegistryFrom(ctx)
	return ok && r.IsActive()
}

// IsReadOnly はアクティブなトランザクションが読み取り専用かを返す
func IsReadOnly(ctx context.Context) bool {
	r, ok := RegistryFrom(ctx)
	return ok && r.IsReadOnly()
}

// CurrentID はアクティブな物理トランザクションのIDを返す（なければ空文字）
func CurrentID(ctx context.Context) string {
	r, ok := RegistryFrom(ctx)
	if !ok {
		return ""
	}
	return r.CurrentID()
}
