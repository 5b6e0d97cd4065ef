package transaction

import "context"

// CompletionStatus は物理トランザクションの完了結果
type CompletionStatus int

const (
	StatusCommitted CompletionStatus = iota
	StatusRolledBack
	StatusUnknown
)

func (s CompletionStatus) String() string {
	switch s {
	case StatusCommitted:
		return "committed"
	case StatusRolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

// Synchronization は物理トランザクションの完了に連動するコールバック
// 登録時にアクティブだった物理トランザクションにだけ紐づく
type Synchronization struct {
	// BeforeCommit が失敗した場合はコミットせずロールバックする
	BeforeCommit func(ctx context.Context) error
	// AfterCommit は物理コミット成功後に呼ばれる
	AfterCommit func(ctx context.Context)
	// AfterCompletion はコミット・ロールバックのどちらでも最後に呼ばれる
	AfterCompletion func(ctx context.Context, status CompletionStatus)
}

// RegisterSynchronization はアクティブな物理トランザクションにコールバックを登録する
func RegisterSynchronization(ctx context.Context, s Synchronization) error {
	r, ok := RegistryFrom(ctx)
	if !ok || r.current == nil {
		return ErrNoActiveTransaction
	}
	r.current.syncs = append(r.current.syncs, s)
	return nil
}

// AfterCommit はコミット後に実行する処理を登録する
func AfterCommit(ctx context.Context, fn func(ctx context.Context)) error {
	return RegisterSynchronization(ctx, Synchronization{AfterCommit: fn})
}

func triggerBeforeCommit(ctx context.Context, syncs []Synchronization) error {
	for _, s := range syncs {
		if s.BeforeCommit == nil {
			continue
		}
		if err := s.BeforeCommit(ctx); err != nil {
			return err
		}
	}
	return nil
}

func triggerAfterCommit(ctx context.Context, syncs []Synchronization) {
	for _, s := range syncs {
		if s.AfterCommit != nil {
			s.AfterCommit(ctx)
		}
	}
}

func triggerAfterCompletion(ctx context.Context, syncs []Synchronization, status CompletionStatus) {
	for _, s := range syncs {
		if s.AfterCompletion != nil {
			s.AfterCompletion(ctx, status)
		}
	}
}
