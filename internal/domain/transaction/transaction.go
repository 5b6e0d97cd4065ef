package transaction

import "context"

// Tx は物理トランザクションを表すインターフェース
// ドメイン層がインフラ層（sqlx等）に依存しないようにするための抽象化
type Tx interface {
	// Commit はトランザクションをコミットする
	Commit() error
	// Rollback はトランザクションをロールバックする
	Rollback() error
}

// Connector は物理トランザクションを供給するインターフェース
// 新規ハンドル1つにつき1つの接続を消費する
type Connector interface {
	// Begin は新しい物理トランザクションを開始する
	Begin(ctx context.Context, readOnly bool) (Tx, error)
}

// State は物理トランザクションの状態を表す
type State int

const (
	StateInactive State = iota
	StateActive
	StateCommitted
	StateRolledBack
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled_back"
	default:
		return "inactive"
	}
}
