package auditlog

import "errors"

// Log ドメインのエラー定義
var (
	ErrLogNotFound     = errors.New("ログが見つかりません")
	ErrMessageRequired = errors.New("ログメッセージは必須です")
	// ErrLogRejected は回復不能なエラーとして扱われる
	ErrLogRejected = errors.New("ログの保存が拒否されました")
)
